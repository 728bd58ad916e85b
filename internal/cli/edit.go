package cli

import (
	"github.com/spf13/cobra"

	"namaz/internal/domain"
)

// addSlotArgs registers one integer flag per slot.
func addSlotArgs(cmd *cobra.Command, slots []domain.Slot, usage string) {
	for _, slot := range slots {
		cmd.Flags().Int(slot.String(), 0, usage+" "+slot.String()+".")
	}
}

// slotFlags overlays the slot flags the user set onto base.
func slotFlags(cmd *cobra.Command, slots []domain.Slot, base domain.Counts) (domain.Counts, error) {
	for _, slot := range slots {
		if !cmd.Flags().Changed(slot.String()) {
			continue
		}
		n, err := cmd.Flags().GetInt(slot.String())
		if err != nil {
			return base, err
		}
		base = base.With(slot, n)
	}
	return base, nil
}

func noteFlag(cmd *cobra.Command) *string {
	if !cmd.Flags().Changed("note") {
		return nil
	}
	n, _ := cmd.Flags().GetString("note")
	return &n
}

func addToggle(topLevel *cobra.Command, g *globalOptions) {
	cmd := &cobra.Command{
		Use:   "toggle <YYYY-MM-DD> <slot>",
		Short: "Mark one prayer of a day as done, or undo it.",
		Example: `
namazctl toggle 2025-03-15 ogle
`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: slotNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := domain.ParseSlot(args[1])
			if err != nil {
				return err
			}
			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			if err := s.loadDay(cmd, args[0]); err != nil {
				return err
			}
			out, err := s.sync.ToggleSlot(cmd.Context(), s.cred, args[0], slot)
			if err != nil {
				return err
			}
			s.reportMutation(out)
			return s.showDay(args[0])
		},
	}
	topLevel.AddCommand(cmd)
}

func addSet(topLevel *cobra.Command, g *globalOptions) {
	cmd := &cobra.Command{
		Use:   "set <YYYY-MM-DD>",
		Short: "Set the slots of a day. Slots without a flag keep their value.",
		Example: `
namazctl set 2025-03-15 --sabah 1 --ogle 1 --note "travelling"
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			if err := s.loadDay(cmd, key); err != nil {
				return err
			}
			current, _ := s.sync.Store().Get(key)
			counts, err := slotFlags(cmd, domain.AllSlots, current.Counts)
			if err != nil {
				return err
			}
			out, err := s.sync.SetSlots(cmd.Context(), s.cred, key, counts, noteFlag(cmd))
			if err != nil {
				return err
			}
			s.reportMutation(out)
			return s.showDay(key)
		},
	}
	addSlotArgs(cmd, domain.AllSlots, "Count for")
	cmd.Flags().String("note", "", "Free-text note for the day.")
	topLevel.AddCommand(cmd)
}

func addKaza(topLevel *cobra.Command, g *globalOptions) {
	var date string
	cmd := &cobra.Command{
		Use:   "kaza",
		Short: "Record makeup prayers against the outstanding debt.",
		Example: `
namazctl kaza --sabah 2 --yatsi 1
namazctl kaza --ogle 1 --date 2025-03-10 --note "after work"
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deltas, err := slotFlags(cmd, domain.FarzSlots, domain.Counts{})
			if err != nil {
				return err
			}
			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			s.sync.LoadProfile(cmd.Context(), s.cred)

			out, err := s.sync.SubmitKaza(cmd.Context(), s.cred, deltas, date, noteFlag(cmd))
			if err != nil {
				return err
			}
			s.reportMutation(out)

			p := s.sync.Profile()
			debt, ok := s.sync.Debt()
			if s.json {
				return writeJSON(s.out, map[string]any{
					"outcome":    out.String(),
					"kazaTotals": p.KazaTotals,
					"debt":       debtJSON(debt, ok),
				})
			}
			printProfile(s.out, p)
			if ok {
				printDebt(s.out, debt, ok)
			}
			return nil
		},
	}
	addSlotArgs(cmd, domain.FarzSlots, "Makeup count for")
	cmd.Flags().StringVar(&date, "date", "", "Day the makeup was prayed, today by default.")
	cmd.Flags().String("note", "", "Free-text note for the day.")
	topLevel.AddCommand(cmd)
}

func slotNames() []string {
	names := make([]string, 0, len(domain.AllSlots))
	for _, s := range domain.AllSlots {
		names = append(names, s.String())
	}
	return names
}
