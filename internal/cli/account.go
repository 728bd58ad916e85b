package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"namaz/internal/adapter/remote"
	"namaz/internal/domain"
)

type credentialOptions struct {
	Email    string
	Password string
}

func addCredentialArgs(cmd *cobra.Command, co *credentialOptions) {
	cmd.Flags().StringVar(&co.Email, "email", "", "Account email.")
	cmd.Flags().StringVar(&co.Password, "password", "", "Account password, defaults to $NAMAZ_PASSWORD.")
	_ = cmd.MarkFlagRequired("email")
}

func (co *credentialOptions) password() (string, error) {
	if co.Password != "" {
		return co.Password, nil
	}
	if p := os.Getenv("NAMAZ_PASSWORD"); p != "" {
		return p, nil
	}
	return "", errors.New("password required: pass --password or set NAMAZ_PASSWORD")
}

func addSignup(topLevel *cobra.Command, g *globalOptions) {
	co := &credentialOptions{}
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := co.password()
			if err != nil {
				return err
			}
			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			cred, err := s.client.Signup(cmd.Context(), co.Email, pw)
			if remote.IsConflict(err) {
				return fmt.Errorf("an account for %s already exists, use login", co.Email)
			}
			if err != nil {
				return err
			}
			if err := s.saveToken(cred); err != nil {
				return err
			}
			_, _ = good.Fprintf(s.out, "signed up as %s\n", co.Email)
			return nil
		},
	}
	addCredentialArgs(cmd, co)
	topLevel.AddCommand(cmd)
}

func addLogin(topLevel *cobra.Command, g *globalOptions) {
	co := &credentialOptions{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the token in the config file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := co.password()
			if err != nil {
				return err
			}
			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			cred, err := s.client.Login(cmd.Context(), co.Email, pw)
			if errors.Is(err, domain.ErrUnauthorized) {
				return errors.New("invalid email or password")
			}
			if err != nil {
				return err
			}
			if err := s.saveToken(cred); err != nil {
				return err
			}
			_, _ = good.Fprintf(s.out, "signed in as %s\n", co.Email)
			return nil
		},
	}
	addCredentialArgs(cmd, co)
	topLevel.AddCommand(cmd)
}

func addLogout(topLevel *cobra.Command, g *globalOptions) {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Revoke the stored token and clear the local cache.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			if s.cred.Present() {
				if err := s.client.Logout(cmd.Context(), s.cred); err != nil {
					s.logger.Warn().Err(err).Msg("server logout failed, forgetting the token anyway")
				}
			}
			if err := s.saveToken(""); err != nil {
				return err
			}
			if err := s.cache.Clear(); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			_, _ = fmt.Fprintln(s.out, "signed out")
			return nil
		},
	}
	topLevel.AddCommand(cmd)
}
