package domain

// DayState is the mutually exclusive state of one calendar day.
type DayState int

const (
	// StateEmpty: no log and no other state applies.
	StateEmpty DayState = iota
	// StatePartial: some but not all farz slots are logged.
	StatePartial
	// StateAllSlotsLogged: every farz slot is logged, inside or outside the committed range.
	StateAllSlotsLogged
	// StateRangeComplete: the day lies in [startedPrayerAt, today] and counts as done
	// whatever the per-slot log says.
	StateRangeComplete
	// StateFuture: after today; not interactive.
	StateFuture
)

var dayStateNames = map[DayState]string{
	StateEmpty:          "empty",
	StatePartial:        "partial",
	StateAllSlotsLogged: "all-logged",
	StateRangeComplete:  "range-complete",
	StateFuture:         "future",
}

func (s DayState) String() string { return dayStateNames[s] }

// MarshalText encodes the state by name.
func (s DayState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Interactive reports whether a day in this state may be edited.
func (s DayState) Interactive() bool { return s != StateFuture }

// Untouched reports the pre-obligation-or-untouched family: a past or present
// day that is neither inside the committed range nor fully logged.
func (s DayState) Untouched() bool { return s == StatePartial || s == StateEmpty }

// Classify returns the state of date given its log (nil when absent), the
// user's startedPrayerAt key and today. Precedence is
// Future > RangeComplete > AllSlotsLogged > Partial > Empty.
//
// There is no separate pre-obligation-or-untouched state. Partial and Empty
// together form that family (see DayState.Untouched): Partial keeps the
// progress visible and Empty covers both days before the obligation began and
// days nobody logged. The /api/calendar "state" field uses the same names.
func Classify(date Date, log *DailyLog, startedPrayerAt string, today Date) DayState {
	if date.After(today) {
		return StateFuture
	}
	if started, err := ParseKey(startedPrayerAt); err == nil && !date.Before(started) {
		return StateRangeComplete
	}
	if log == nil {
		return StateEmpty
	}
	switch n := log.Counts.FarzCompleted(); {
	case n == len(FarzSlots):
		return StateAllSlotsLogged
	case n > 0:
		return StatePartial
	}
	return StateEmpty
}
