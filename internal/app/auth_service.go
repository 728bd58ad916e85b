// Package app holds the application services and business logic.
package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"namaz/internal/domain"
)

var (
	// ErrInvalidCredentials indicates that the provided email or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrMissingCredentials indicates an empty email or password.
	ErrMissingCredentials = errors.New("email and password required")
	// ErrEmailTaken indicates a signup for an email that already has an account.
	ErrEmailTaken = errors.New("user exists")
	// ErrInvalidToken indicates a bearer token that does not verify.
	ErrInvalidToken = errors.New("invalid token")
	// ErrSessionNotFound indicates that the token's session was revoked or never existed.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates that the session has expired.
	ErrSessionExpired = errors.New("session expired")
	// ErrUserNotFound indicates that the user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// TokenConfig controls bearer token issuance.
type TokenConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// AuthService handles accounts and bearer token sessions.
type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	cfg      TokenConfig
}

// NewAuthService creates a new authentication service.
func NewAuthService(users domain.UserRepository, sessions domain.SessionRepository, cfg TokenConfig) *AuthService {
	if cfg.TTL <= 0 {
		cfg.TTL = 72 * time.Hour
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		cfg:      cfg,
	}
}

// Signup creates an account and returns a bearer token for it.
func (s *AuthService) Signup(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", ErrMissingCredentials
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	user, err := s.users.Create(ctx, email, string(hash))
	if err != nil {
		return "", err
	}
	return s.issue(ctx, user.ID)
}

// Login authenticates a user and returns a bearer token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", ErrMissingCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil || user == nil || user.PasswordHash == "" {
		return "", ErrInvalidCredentials
	}
	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.issue(ctx, user.ID)
}

// LoginWithUser issues a token for a user already authenticated elsewhere
// (SSO), provisioning the account on first sight.
func (s *AuthService) LoginWithUser(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", ErrMissingCredentials
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		// SSO users have no local password.
		user, err = s.users.Create(ctx, email, "")
		if err != nil {
			// Lost a race with a concurrent first login.
			user, err = s.users.GetByEmail(ctx, email)
			if err != nil || user == nil {
				return "", fmt.Errorf("provision sso user: %w", err)
			}
		}
	}
	return s.issue(ctx, user.ID)
}

// ValidateToken verifies a bearer token and returns its user.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetByTokenID(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if time.Now().After(session.ExpiresAt) {
		_ = s.sessions.Delete(ctx, claims.ID)
		return nil, ErrSessionExpired
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Logout revokes the token's session.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}
	return s.sessions.Delete(ctx, claims.ID)
}

// SweepExpired deletes expired sessions and returns how many were removed.
func (s *AuthService) SweepExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx)
}

func (s *AuthService) issue(ctx context.Context, userID int64) (string, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.TTL)
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    s.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", err
	}
	if err := s.sessions.Create(ctx, userID, claims.ID, expiresAt); err != nil {
		return "", err
	}
	return signed, nil
}

func (s *AuthService) parse(token string) (*jwt.RegisteredClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name})}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
