// Package cli implements namazctl, the command line client. Every command
// works from the local cache and reconciles with the server when a token is
// available.
package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"namaz/internal/adapter/diskv"
	"namaz/internal/adapter/remote"
	"namaz/internal/tracker"
)

const defaultConfigPath = "~/.namaz.yaml"

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	ConfigPath string
	Server     string
	JSON       bool
	Verbose    bool
}

// New returns the namazctl root command.
func New() *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "namazctl",
		Short:         "Track daily prayers and kaza from the command line.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&g.ConfigPath, "config", defaultConfigPath, "Config file.")
	cmd.PersistentFlags().StringVar(&g.Server, "server", "", "Server URL, overrides the config file.")
	cmd.PersistentFlags().BoolVar(&g.JSON, "json", false, "Output as JSON.")
	cmd.PersistentFlags().BoolVarP(&g.Verbose, "verbose", "v", false, "Log sync details to stderr.")

	addCommands(cmd, g)
	return cmd
}

// addCommands registers every subcommand on topLevel.
func addCommands(topLevel *cobra.Command, g *globalOptions) {
	addSignup(topLevel, g)
	addLogin(topLevel, g)
	addLogout(topLevel, g)
	addMonth(topLevel, g)
	addDay(topLevel, g)
	addToggle(topLevel, g)
	addSet(topLevel, g)
	addKaza(topLevel, g)
	addProfile(topLevel, g)
	addDebt(topLevel, g)
	addWatch(topLevel, g)
}

// session is everything a command needs: config, server client, local cache
// and the sync engine restored from that cache.
type session struct {
	v      *viper.Viper
	path   string
	client *remote.Client
	cache  *diskv.Cache
	sync   *tracker.Sync
	cred   tracker.Credential
	logger zerolog.Logger

	out    io.Writer
	errOut io.Writer
	json   bool
}

func loadConfig(g *globalOptions) (*viper.Viper, string, error) {
	path, err := homedir.Expand(g.ConfigPath)
	if err != nil {
		return nil, "", err
	}

	v := viper.New()
	v.SetDefault("server", "http://localhost:8080")
	v.SetDefault("cache", "~/.namaz/cache")
	v.SetDefault("mqtt", "")
	v.SetEnvPrefix("NAMAZ")
	v.AutomaticEnv()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, "", fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if g.Server != "" {
		v.Set("server", g.Server)
	}
	return v, path, nil
}

func openSession(cmd *cobra.Command, g *globalOptions) (*session, error) {
	v, path, err := loadConfig(g)
	if err != nil {
		return nil, err
	}

	cacheDir, err := homedir.Expand(v.GetString("cache"))
	if err != nil {
		return nil, err
	}

	level := zerolog.ErrorLevel
	if g.Verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).Level(level).With().Timestamp().Logger()

	s := &session{
		v:      v,
		path:   path,
		client: remote.New(v.GetString("server")),
		cache:  diskv.Open(cacheDir),
		cred:   tracker.Credential(v.GetString("token")),
		logger: logger,
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		json:   g.JSON,
	}
	s.sync = tracker.New(s.client, s.cache, logger)
	if err := s.sync.Restore(); err != nil {
		logger.Warn().Err(err).Msg("ignoring unreadable cache")
	}
	return s, nil
}

// saveToken stores the bearer token in the config file.
func (s *session) saveToken(cred tracker.Credential) error {
	s.v.Set("token", string(cred))
	s.cred = cred
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write config %s: %w", s.path, err)
	}
	return nil
}
