// Package adapthttp implements the HTTP adapter for the application.
package adapthttp

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"

	"namaz/internal/app"
)

const stateCookie = "namaz_sso_state"

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// issueFunc is the auth service call behind a token-issuing route.
type issueFunc func(ctx context.Context, email, password string) (string, error)

// handleCredentials serves signup and login: decode credentials, issue a
// token, and answer with status on success.
func (s *Server) handleCredentials(issue issueFunc, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req credentials
		if err := parseJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		token, err := issue(r.Context(), req.Email, req.Password)
		if err != nil {
			s.writeAuthError(w, err)
			return
		}
		writeJSON(w, status, tokenResponse{Token: token})
	}
}

func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrMissingCredentials):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, app.ErrEmailTaken):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err)
	default:
		s.logger.Error().Err(err).Msg("auth")
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

// handleLogout revokes the caller's session. Revocation failures are logged;
// the client drops its token either way.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if token, ok := bearerToken(r); ok {
		if err := s.authSvc.Logout(r.Context(), token); err != nil {
			s.logger.Warn().Err(err).Msg("logout")
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ssoEnabled": s.oidcConfig.Enabled})
}

func (s *Server) handleSSOLogin(w http.ResponseWriter, r *http.Request) {
	if !s.oidcConfig.Enabled {
		writeError(w, http.StatusNotFound, errors.New("sso disabled"))
		return
	}
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	state := base64.RawURLEncoding.EncodeToString(b)

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/api/sso",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})
	http.Redirect(w, r, s.oidcConfig.OAuth2Config.AuthCodeURL(state), http.StatusFound)
}

// handleSSOCallback exchanges the code and answers with a bearer token for the
// verified email, provisioning the account on first login.
func (s *Server) handleSSOCallback(w http.ResponseWriter, r *http.Request) {
	if !s.oidcConfig.Enabled {
		writeError(w, http.StatusNotFound, errors.New("sso disabled"))
		return
	}
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		writeError(w, http.StatusBadRequest, errors.New("invalid sso state"))
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/api/sso", MaxAge: -1})

	email, err := s.verifiedEmail(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		s.logger.Error().Err(err).Msg("sso callback")
		writeError(w, http.StatusUnauthorized, errors.New("sso login failed"))
		return
	}

	token, err := s.authSvc.LoginWithUser(r.Context(), email)
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("sso login")
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// verifiedEmail trades an authorization code for the email in the provider's
// ID token.
func (s *Server) verifiedEmail(ctx context.Context, code string) (string, error) {
	tok, err := s.oidcConfig.OAuth2Config.Exchange(ctx, code)
	if err != nil {
		return "", err
	}
	raw, ok := tok.Extra("id_token").(string)
	if !ok {
		return "", errors.New("provider returned no id_token")
	}
	verifier := s.oidcConfig.Provider.Verifier(&oidc.Config{ClientID: s.oidcConfig.OAuth2Config.ClientID})
	idToken, err := verifier.Verify(ctx, raw)
	if err != nil {
		return "", err
	}
	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", err
	}
	if claims.Email == "" || !claims.EmailVerified {
		return "", errors.New("id token has no verified email")
	}
	return claims.Email, nil
}
