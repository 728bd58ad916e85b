package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"namaz/internal/domain"
)

var (
	_ domain.UserRepository    = (*DB)(nil)
	_ domain.SessionRepository = (*SessionRepo)(nil)
)

const (
	userColumns    = "id, email, password_hash, created_at"
	sessionColumns = "token_id, user_id, expires_at, created_at"
)

// getOne runs a single-row query into dst and reports whether a row existed.
func (d *DB) getOne(ctx context.Context, dst any, query string, args ...any) (bool, error) {
	err := d.sql.GetContext(ctx, dst, query, args...)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func (d *DB) userWhere(ctx context.Context, cond string, arg any) (*domain.User, error) {
	var u domain.User
	ok, err := d.getOne(ctx, &u, "SELECT "+userColumns+" FROM users WHERE "+cond, arg)
	if !ok || err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail returns (nil, nil) when no account uses email.
func (d *DB) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return d.userWhere(ctx, "email = $1", email)
}

// GetByID returns (nil, nil) when the user does not exist.
func (d *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return d.userWhere(ctx, "id = $1", id)
}

// Create inserts a user. An empty profile row is created with it so profile
// reads never miss for a known user.
func (d *DB) Create(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	tx, err := d.sql.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var u domain.User
	if err := tx.GetContext(ctx, &u,
		"INSERT INTO users (email, password_hash, created_at) VALUES ($1, $2, $3) RETURNING "+userColumns,
		email, passwordHash, time.Now().UTC(),
	); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO profiles (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING", u.ID,
	); err != nil {
		return nil, err
	}
	return &u, tx.Commit()
}

// SessionRepo stores issued token ids so tokens can be revoked before expiry.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo wraps a DB as a SessionRepository.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Create(ctx context.Context, userID int64, tokenID string, expiresAt time.Time) error {
	_, err := r.db.sql.NamedExecContext(ctx,
		"INSERT INTO sessions ("+sessionColumns+") VALUES (:token_id, :user_id, :expires_at, :created_at)",
		domain.Session{TokenID: tokenID, UserID: userID, ExpiresAt: expiresAt.UTC(), CreatedAt: time.Now().UTC()},
	)
	return err
}

// GetByTokenID returns (nil, nil) for an unknown or revoked token id.
func (r *SessionRepo) GetByTokenID(ctx context.Context, tokenID string) (*domain.Session, error) {
	var s domain.Session
	ok, err := r.db.getOne(ctx, &s, "SELECT "+sessionColumns+" FROM sessions WHERE token_id = $1", tokenID)
	if !ok || err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepo) Delete(ctx context.Context, tokenID string) error {
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM sessions WHERE token_id = $1", tokenID)
	return err
}

// DeleteExpired removes sessions past their expiry and reports how many went.
func (r *SessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.sql.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < $1", time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
