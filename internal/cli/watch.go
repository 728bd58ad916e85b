package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"namaz/internal/adapter/mqtt"
	"namaz/internal/domain"
	"namaz/internal/tracker"
)

// userIDFromToken reads the subject of the bearer token. The signature is not
// checked here; the server does that on every call.
func userIDFromToken(cred tracker.Credential) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(string(cred), claims); err != nil {
		return 0, fmt.Errorf("stored token is unreadable: %w", err)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("stored token has no user: %w", err)
	}
	return id, nil
}

func addWatch(topLevel *cobra.Command, g *globalOptions) {
	var broker string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow changes made from other devices until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			if !s.cred.Present() {
				return errors.New("not signed in: run namazctl login first")
			}
			if broker == "" {
				broker = s.v.GetString("mqtt")
			}
			if broker == "" {
				return errors.New("no MQTT broker: pass --broker or set mqtt in the config file")
			}
			userID, err := userIDFromToken(s.cred)
			if err != nil {
				return err
			}

			client, err := mqtt.Connect(broker, "namazctl-"+uuid.NewString(), s.logger)
			if err != nil {
				return err
			}
			defer client.Disconnect(250)

			_, _ = faint.Fprintf(s.errOut, "watching %s, press Ctrl-C to stop\n", mqtt.Topic(userID))
			return mqtt.Watch(cmd.Context(), client, userID, func(ev domain.ChangeEvent) {
				s.printEvent(ev)
			})
		},
	}
	cmd.Flags().StringVar(&broker, "broker", "", "MQTT broker URL, e.g. tcp://localhost:1883.")
	topLevel.AddCommand(cmd)
}

func (s *session) printEvent(ev domain.ChangeEvent) {
	if s.json {
		_ = writeJSON(s.out, ev)
		return
	}
	when := ev.At.Local().Format("15:04:05")
	switch ev.Kind {
	case domain.ChangeProfile:
		_, _ = fmt.Fprintf(s.out, "%s  profile changed\n", faint.Sprint(when))
	default:
		_, _ = fmt.Fprintf(s.out, "%s  %s recorded for %s\n", faint.Sprint(when), ev.Kind, bold.Sprint(ev.Date))
	}
}
