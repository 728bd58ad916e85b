package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	adapthttp "namaz/internal/adapter/http"
	"namaz/internal/adapter/memory"
	"namaz/internal/adapter/mqtt"
	"namaz/internal/adapter/postgres"
	"namaz/internal/adapter/rediscache"
	"namaz/internal/app"
	"namaz/internal/config"
	"namaz/internal/domain"
)

// repositories groups the ports the services are built on.
type repositories struct {
	logs     domain.LogRepository
	profiles domain.ProfileRepository
	kaza     domain.KazaRepository
	users    domain.UserRepository
	sessions domain.SessionRepository
	close    func() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("config")
	}
	logger := cfg.Logger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := openRepositories(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("db open")
	}
	defer func() { _ = repos.close() }()

	if cfg.RedisAddr != "" {
		rdb, err := rediscache.NewClient(ctx, rediscache.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer func() { _ = rdb.Close() }()
		cached := rediscache.New(repos.profiles, repos.kaza, rdb, cfg.ProfileCacheTTL, logger)
		repos.profiles, repos.kaza = cached, cached
		logger.Info().Str("addr", cfg.RedisAddr).Msg("profile cache enabled")
	}

	var notifier domain.ChangeNotifier = app.NopNotifier{}
	if cfg.MQTTBroker != "" {
		client, err := mqtt.Connect(cfg.MQTTBroker, "namaz-server", logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("mqtt")
		}
		defer client.Disconnect(250)
		notifier = mqtt.NewNotifier(client, logger)
	}

	logSvc := app.NewLogService(repos.logs, repos.kaza, notifier)
	profileSvc := app.NewProfileService(repos.profiles, notifier)
	calendarSvc := app.NewCalendarService(repos.logs, repos.profiles)
	authSvc := app.NewAuthService(repos.users, repos.sessions, app.TokenConfig{
		Secret: cfg.JWTSecret,
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.TokenTTL,
	})

	srv := adapthttp.New(logSvc, profileSvc, calendarSvc, authSvc, logger)
	if cfg.OIDCEnabled() {
		provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
		if err != nil {
			logger.Fatal().Err(err).Str("issuer", cfg.OIDCIssuer).Msg("oidc provider")
		}
		srv.WithOIDC(adapthttp.OIDCConfig{
			Enabled:  true,
			Provider: provider,
			OAuth2Config: oauth2.Config{
				ClientID:     cfg.OIDCClientID,
				ClientSecret: cfg.OIDCClientSecret,
				RedirectURL:  cfg.OIDCRedirectURL,
				Endpoint:     provider.Endpoint(),
				Scopes:       []string{oidc.ScopeOpenID, "email"},
			},
		})
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.Addr).Bool("in_memory", cfg.InMemory()).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		sweepSessions(gctx, authSvc, cfg.SessionSweepInterval, logger)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server")
	}
	logger.Info().Msg("stopped")
}

func openRepositories(cfg *config.Config, logger zerolog.Logger) (*repositories, error) {
	if cfg.InMemory() {
		logger.Warn().Msg("DATABASE_URL not set, using the in-memory store")
		mem := memory.New()
		return &repositories{
			logs:     mem,
			profiles: mem,
			kaza:     mem,
			users:    mem,
			sessions: mem.NewSessionRepo(),
			close:    func() error { return nil },
		}, nil
	}

	db, err := postgres.Open(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	return &repositories{
		logs:     db,
		profiles: db,
		kaza:     db,
		users:    db,
		sessions: postgres.NewSessionRepo(db),
		close:    db.Close,
	}, nil
}

// sweepSessions deletes expired sessions every interval until ctx is done.
func sweepSessions(ctx context.Context, auth *app.AuthService, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := auth.SweepExpired(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("session sweep")
				continue
			}
			if n > 0 {
				logger.Info().Int64("deleted", n).Msg("expired sessions removed")
			}
		}
	}
}
