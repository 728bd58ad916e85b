// Package domain contains the core prayer-tracking entities, the pure calendar,
// debt and day-state functions, and the repository ports.
package domain

import (
	"context"
	"time"
)

// User represents an account. PasswordHash is empty for SSO-provisioned users.
type User struct {
	ID           int64     `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

// Session records an issued bearer token by its token id.
type Session struct {
	TokenID   string    `db:"token_id"`
	UserID    int64     `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// UserRepository defines the port for user persistence operations.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, email, passwordHash string) (*User, error)
}

// SessionRepository defines the port for session persistence operations.
type SessionRepository interface {
	Create(ctx context.Context, userID int64, tokenID string, expiresAt time.Time) error
	GetByTokenID(ctx context.Context, tokenID string) (*Session, error)
	Delete(ctx context.Context, tokenID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}
