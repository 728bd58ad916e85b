package adapthttp

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"namaz/internal/app"
	"namaz/internal/domain"
	"namaz/internal/observability"
)

type contextKey string

const userContextKey contextKey = "user"

// devUser is the identity of every request when auth is disabled.
var devUser = &domain.User{ID: 1, Email: "dev@localhost"}

// authMiddleware validates the bearer token and stores its user on the context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth if disabled (for tests)
		if s.disableAuth {
			ctx := context.WithValue(r.Context(), userContextKey, devUser)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
			return
		}

		user, err := s.authSvc.ValidateToken(r.Context(), token)
		switch {
		case errors.Is(err, app.ErrInvalidToken),
			errors.Is(err, app.ErrSessionNotFound),
			errors.Is(err, app.ErrSessionExpired),
			errors.Is(err, app.ErrUserNotFound):
			writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
			return
		case err != nil:
			s.logger.Error().Err(err).Msg("validate token")
			writeError(w, http.StatusInternalServerError, errors.New("internal error"))
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

// userID returns the authenticated user's id. Only valid behind authMiddleware.
func userID(r *http.Request) int64 {
	u, _ := r.Context().Value(userContextKey).(*domain.User)
	if u == nil {
		return 0
	}
	return u.ID
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware writes one access log line and records request metrics.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", elapsed).
			Msg("request")
		observability.RecordHTTP(s.routeLabel(r.URL.Path), r.Method, rec.status, elapsed)
	})
}
