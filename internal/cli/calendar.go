package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"namaz/internal/domain"
	"namaz/internal/tracker"
)

type cellJSON struct {
	Date  string           `json:"date,omitempty"`
	State *domain.DayState `json:"state,omitempty"`
	Log   *domain.DailyLog `json:"log,omitempty"`
}

func toCellJSON(c tracker.Cell) cellJSON {
	if c.IsPadding() {
		return cellJSON{}
	}
	state := c.State
	return cellJSON{Date: c.Date.Key(), State: &state, Log: c.Log}
}

func addMonth(topLevel *cobra.Command, g *globalOptions) {
	cmd := &cobra.Command{
		Use:   "month [YYYY-MM]",
		Short: "Show a month with the state of every day.",
		Example: `
namazctl month
namazctl month 2025-03 --json
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			ref := s.sync.Today()
			if len(args) == 1 {
				t, err := time.Parse("2006-01", args[0])
				if err != nil {
					return fmt.Errorf("month must be YYYY-MM: %q", args[0])
				}
				ref = domain.NewDate(t.Year(), t.Month(), 1)
			}

			out, err := s.sync.Refresh(cmd.Context(), s.cred, ref)
			if err != nil {
				return err
			}
			s.reportLoad(out)

			weeks := s.sync.MonthView(ref)
			if s.json {
				rows := make([][7]cellJSON, len(weeks))
				for i, week := range weeks {
					for j, c := range week {
						rows[i][j] = toCellJSON(c)
					}
				}
				first, _ := domain.MonthBounds(ref)
				return writeJSON(s.out, map[string]any{
					"month": first.Key()[:7],
					"today": s.sync.Today().Key(),
					"weeks": rows,
				})
			}
			printMonth(s.out, ref, weeks)
			return nil
		},
	}
	topLevel.AddCommand(cmd)
}

func addDay(topLevel *cobra.Command, g *globalOptions) {
	cmd := &cobra.Command{
		Use:   "day [YYYY-MM-DD]",
		Short: "Show the slots of one day, today by default.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			key := s.sync.Today().Key()
			if len(args) == 1 {
				key = args[0]
			}
			if err := s.loadDay(cmd, key); err != nil {
				return err
			}
			return s.showDay(key)
		},
	}
	topLevel.AddCommand(cmd)
}

// loadDay refreshes one day and the profile so the classification is current.
func (s *session) loadDay(cmd *cobra.Command, key string) error {
	out, err := s.sync.LoadRange(cmd.Context(), s.cred, key, key)
	if err != nil {
		return err
	}
	s.reportLoad(out)
	s.sync.LoadProfile(cmd.Context(), s.cred)
	return nil
}

func (s *session) showDay(key string) error {
	c, err := s.sync.Day(key)
	if err != nil {
		return err
	}
	if s.json {
		return writeJSON(s.out, toCellJSON(c))
	}
	printDay(s.out, c)
	return nil
}
