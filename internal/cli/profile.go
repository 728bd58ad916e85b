package cli

import (
	"github.com/spf13/cobra"

	"namaz/internal/domain"
)

func debtJSON(debt domain.Debt, ok bool) map[string]any {
	return map[string]any{
		"defined":  ok,
		"daysDiff": debt.DaysDiff,
		"owed":     debt.Owed,
	}
}

func addProfile(topLevel *cobra.Command, g *globalOptions) {
	var mukellef, started string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or change the obligation dates.",
		Long: `Show or change the obligation dates.

--mukellef is the day you became obligated to pray, --started the day you
began praying regularly. Pass an empty value to clear a date.`,
		Example: `
namazctl profile
namazctl profile --mukellef 2010-01-01 --started 2015-01-01
namazctl profile --started ""
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			s.reportLoad(s.sync.LoadProfile(cmd.Context(), s.cred))

			var dates domain.ProfileDates
			if cmd.Flags().Changed("mukellef") {
				dates.MukellefSince = &mukellef
			}
			if cmd.Flags().Changed("started") {
				dates.StartedPrayerAt = &started
			}
			if dates.MukellefSince != nil || dates.StartedPrayerAt != nil {
				out, err := s.sync.SaveProfile(cmd.Context(), s.cred, dates)
				if err != nil {
					return err
				}
				s.reportMutation(out)
			}

			p := s.sync.Profile()
			if s.json {
				return writeJSON(s.out, p)
			}
			printProfile(s.out, p)
			return nil
		},
	}
	cmd.Flags().StringVar(&mukellef, "mukellef", "", "Date-key the obligation began.")
	cmd.Flags().StringVar(&started, "started", "", "Date-key regular prayer began.")
	topLevel.AddCommand(cmd)
}

func addDebt(topLevel *cobra.Command, g *globalOptions) {
	cmd := &cobra.Command{
		Use:   "debt",
		Short: "Show the prayers still owed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			s.reportLoad(s.sync.LoadProfile(cmd.Context(), s.cred))

			debt, ok := s.sync.Debt()
			if s.json {
				return writeJSON(s.out, debtJSON(debt, ok))
			}
			printDebt(s.out, debt, ok)
			return nil
		},
	}
	topLevel.AddCommand(cmd)
}
