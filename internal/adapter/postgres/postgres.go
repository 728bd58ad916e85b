// Package postgres implements the domain repositories using PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

const (
	connectAttempts = 5
	connectInterval = 2 * time.Second
)

// DB wraps a *sqlx.DB and implements domain repository interfaces.
type DB struct {
	sql *sqlx.DB
}

// Open connects to PostgreSQL, retrying while the server comes up, then runs migrations.
func Open(connStr string, logger zerolog.Logger) (*DB, error) {
	var (
		s   *sqlx.DB
		err error
	)
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		s, err = connect(connStr)
		if err == nil {
			break
		}
		logger.Error().Err(err).
			Int("attempt", attempt).
			Msgf("failed to connect to database, retrying in %s", connectInterval)
		time.Sleep(connectInterval)
	}
	if err != nil {
		return nil, fmt.Errorf("could not connect to database after %d attempts: %w", connectAttempts, err)
	}
	logger.Info().Msg("connected to database")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	d := &DB{sql: s}
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

func connect(connStr string) (*sqlx.DB, error) {
	s, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS users (id BIGSERIAL PRIMARY KEY, email TEXT UNIQUE NOT NULL, password_hash TEXT NOT NULL DEFAULT '', created_at TIMESTAMPTZ NOT NULL);",
		"CREATE TABLE IF NOT EXISTS sessions (token_id TEXT PRIMARY KEY, user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE, expires_at TIMESTAMPTZ NOT NULL, created_at TIMESTAMPTZ NOT NULL);",
		"CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);",
		`CREATE TABLE IF NOT EXISTS profiles (
			user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			mukellef_since TEXT,
			started_prayer_at TEXT,
			kaza_sabah INTEGER NOT NULL DEFAULT 0 CHECK (kaza_sabah >= 0),
			kaza_ogle INTEGER NOT NULL DEFAULT 0 CHECK (kaza_ogle >= 0),
			kaza_ikindi INTEGER NOT NULL DEFAULT 0 CHECK (kaza_ikindi >= 0),
			kaza_aksam INTEGER NOT NULL DEFAULT 0 CHECK (kaza_aksam >= 0),
			kaza_yatsi INTEGER NOT NULL DEFAULT 0 CHECK (kaza_yatsi >= 0)
		);`,
		`CREATE TABLE IF NOT EXISTS prayer_logs (
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			day TEXT NOT NULL CHECK (day ~ '^\d{4}-\d{2}-\d{2}$'),
			sabah INTEGER NOT NULL DEFAULT 0 CHECK (sabah >= 0),
			ogle INTEGER NOT NULL DEFAULT 0 CHECK (ogle >= 0),
			ikindi INTEGER NOT NULL DEFAULT 0 CHECK (ikindi >= 0),
			aksam INTEGER NOT NULL DEFAULT 0 CHECK (aksam >= 0),
			yatsi INTEGER NOT NULL DEFAULT 0 CHECK (yatsi >= 0),
			vitr INTEGER NOT NULL DEFAULT 0 CHECK (vitr >= 0),
			note TEXT,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, day)
		);`,
	}

	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
