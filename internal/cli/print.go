package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"namaz/internal/domain"
	"namaz/internal/tracker"
)

var (
	bold  = color.New(color.Bold)
	faint = color.New(color.Faint)
	warn  = color.New(color.FgYellow)
	good  = color.New(color.FgGreen)
)

// glyph is the one-character marker of a day state, readable without color.
func glyph(s domain.DayState) string {
	switch s {
	case domain.StateAllSlotsLogged:
		return "●"
	case domain.StateRangeComplete:
		return "✓"
	case domain.StatePartial:
		return "◐"
	case domain.StateEmpty:
		return "·"
	}
	return " "
}

func stateColor(s domain.DayState) *color.Color {
	switch s {
	case domain.StateAllSlotsLogged:
		return color.New(color.FgGreen, color.Bold)
	case domain.StateRangeComplete:
		return color.New(color.FgGreen)
	case domain.StatePartial:
		return color.New(color.FgYellow)
	case domain.StateFuture:
		return color.New(color.Faint, color.Italic)
	}
	return faint
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportMutation explains on stderr how far a change got.
func (s *session) reportMutation(o tracker.Outcome) {
	switch o {
	case tracker.LocalOnly:
		_, _ = warn.Fprintln(s.errOut, "saved locally only: not signed in or token rejected")
	case tracker.Degraded:
		_, _ = warn.Fprintln(s.errOut, "server unreachable: saved locally")
	case tracker.Discarded:
		_, _ = faint.Fprintln(s.errOut, "a newer change of this day superseded the server answer")
	}
}

// reportLoad explains on stderr when the shown data did not come from the server.
func (s *session) reportLoad(o tracker.Outcome) {
	switch o {
	case tracker.LocalOnly:
		_, _ = warn.Fprintln(s.errOut, "showing cached data: not signed in or token rejected")
	case tracker.Degraded:
		_, _ = warn.Fprintln(s.errOut, "server unreachable: showing cached data")
	}
}

func printMonth(w io.Writer, ref domain.Date, weeks [][7]tracker.Cell) {
	title := ref.Time().Format("January 2006")
	const width = len("Su  Mo  Tu  We  Th  Fr  Sa")
	pad := (width - len(title)) / 2
	_, _ = bold.Fprintf(w, "%s%s\n", strings.Repeat(" ", pad), title)
	_, _ = faint.Fprintln(w, "Su  Mo  Tu  We  Th  Fr  Sa")

	for _, week := range weeks {
		for i, c := range week {
			if i > 0 {
				_, _ = fmt.Fprint(w, " ")
			}
			if c.IsPadding() {
				_, _ = fmt.Fprint(w, "   ")
				continue
			}
			_, _ = stateColor(c.State).Fprintf(w, "%2d%s", c.Date.Time().Day(), glyph(c.State))
		}
		_, _ = fmt.Fprintln(w)
	}
	_, _ = faint.Fprintf(w, "\n%s all logged  %s range complete  %s partial  %s empty\n",
		glyph(domain.StateAllSlotsLogged), glyph(domain.StateRangeComplete),
		glyph(domain.StatePartial), glyph(domain.StateEmpty))
}

func printDay(w io.Writer, c tracker.Cell) {
	_, _ = bold.Fprintf(w, "%s  ", c.Date.Time().Format("Monday, 2 January 2006"))
	_, _ = stateColor(c.State).Fprintf(w, "%s %s\n", glyph(c.State), c.State)

	var counts domain.Counts
	if c.Log != nil {
		counts = c.Log.Counts
	}
	tbl := uitable.New()
	tbl.Separator = "  "
	for _, slot := range domain.AllSlots {
		mark := faint.Sprint("-")
		if n := counts.Get(slot); n > 0 {
			mark = good.Sprintf("%d", n)
		}
		name := slot.String()
		if !slot.Farz() {
			name += " (sunnah)"
		}
		tbl.AddRow(name, mark)
	}
	tbl.RightAlign(1)
	_, _ = fmt.Fprintln(w, tbl)

	if c.Log == nil {
		_, _ = faint.Fprintln(w, "no log")
	} else if c.Log.Note != nil && *c.Log.Note != "" {
		_, _ = fmt.Fprintf(w, "note: %s\n", *c.Log.Note)
	}
}

func printProfile(w io.Writer, p domain.Profile) {
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("Mükellef since"), orUnset(p.MukellefSince))
	tbl.AddRow(bold.Sprint("Started praying"), orUnset(p.StartedPrayerAt))
	_, _ = fmt.Fprintln(w, tbl)

	_, _ = bold.Fprintln(w, "\nKaza made")
	printCounts(w, p.KazaTotals)
}

func printDebt(w io.Writer, debt domain.Debt, ok bool) {
	if !ok {
		_, _ = warn.Fprintln(w, "debt is undefined: set both dates with `namazctl profile --mukellef D --started D`")
		return
	}
	_, _ = fmt.Fprintf(w, "%s %d days without prayer\n\n", bold.Sprint("Obligation gap:"), debt.DaysDiff)
	_, _ = bold.Fprintln(w, "Still owed")
	printCounts(w, debt.Owed)
}

// printCounts lists the farz slots.
func printCounts(w io.Writer, c domain.Counts) {
	tbl := uitable.New()
	tbl.Separator = "  "
	for _, slot := range domain.FarzSlots {
		tbl.AddRow(slot.String(), fmt.Sprintf("%d", c.Get(slot)))
	}
	tbl.RightAlign(1)
	_, _ = fmt.Fprintln(w, tbl)
}

func orUnset(v string) string {
	if v == "" {
		return faint.Sprint("unset")
	}
	return v
}
