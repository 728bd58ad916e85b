package adapthttp

import (
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"namaz/internal/app"
	"namaz/internal/observability"
)

// OIDCConfig enables the SSO login routes when Enabled is set.
type OIDCConfig struct {
	Enabled      bool
	Provider     *oidc.Provider
	OAuth2Config oauth2.Config
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	logs       *app.LogService
	profiles   *app.ProfileService
	calendar   *app.CalendarService
	authSvc    *app.AuthService
	oidcConfig OIDCConfig
	logger     zerolog.Logger

	disableAuth bool
	routes      map[string]bool
	now         func() time.Time
}

// New creates a Server wired to the given application services.
func New(ls *app.LogService, ps *app.ProfileService, cs *app.CalendarService, auth *app.AuthService, logger zerolog.Logger) *Server {
	return &Server{
		logs:     ls,
		profiles: ps,
		calendar: cs,
		authSvc:  auth,
		logger:   logger,
		routes:   map[string]bool{},
		now:      time.Now,
	}
}

// WithOIDC enables SSO login.
func (s *Server) WithOIDC(cfg OIDCConfig) *Server {
	s.oidcConfig = cfg
	return s
}

// WithoutAuth disables bearer checks; every request acts as user 1. Tests only.
func (s *Server) WithoutAuth() *Server {
	s.disableAuth = true
	return s
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	public := func(path string, h http.HandlerFunc) {
		s.routes["/api"+path] = true
		api.Handle(path, h)
	}
	private := func(path string, h http.HandlerFunc) {
		s.routes["/api"+path] = true
		api.Handle(path, s.authMiddleware(h))
	}

	public("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	public("/config", s.handleConfig)
	public("/signup", s.handleCredentials(s.authSvc.Signup, http.StatusCreated))
	public("/login", s.handleCredentials(s.authSvc.Login, http.StatusOK))
	public("/sso/login", s.handleSSOLogin)
	public("/sso/callback", s.handleSSOCallback)
	private("/logout", s.handleLogout)

	private("/logs", s.handleLogs)
	private("/log", s.handleLog)
	private("/kaza", s.handleKaza)
	private("/profile", s.handleProfile)
	private("/profile/debt", s.handleDebt)
	private("/calendar", s.handleCalendar)

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))
	s.routes["/metrics"] = true
	root.Handle("/metrics", observability.Handler())

	return s.loggingMiddleware(withNoCache(root))
}

// routeLabel bounds the metrics label set to registered routes.
func (s *Server) routeLabel(path string) string {
	if s.routes[path] {
		return path
	}
	return "unmatched"
}
