package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Slot is one of the tracked daily prayers.
type Slot int

const (
	Sabah Slot = iota
	Ogle
	Ikindi
	Aksam
	Yatsi
	Vitr

	slotCount
)

var slotNames = [slotCount]string{"sabah", "ogle", "ikindi", "aksam", "yatsi", "vitr"}

// FarzSlots are the five obligatory slots, in daily order.
var FarzSlots = []Slot{Sabah, Ogle, Ikindi, Aksam, Yatsi}

// AllSlots includes vitr after the farz slots.
var AllSlots = []Slot{Sabah, Ogle, Ikindi, Aksam, Yatsi, Vitr}

func (s Slot) String() string {
	if s < 0 || s >= slotCount {
		return fmt.Sprintf("Slot(%d)", int(s))
	}
	return slotNames[s]
}

// Farz reports whether s counts toward the obligatory aggregate. Vitr does not.
func (s Slot) Farz() bool {
	return s >= Sabah && s <= Yatsi
}

// ParseSlot maps a slot name to its Slot.
func ParseSlot(name string) (Slot, error) {
	for i, n := range slotNames {
		if n == name {
			return Slot(i), nil
		}
	}
	return 0, fmt.Errorf("unknown prayer slot %q", name)
}

// Counts holds one non-negative integer per slot.
type Counts [slotCount]int

// Get returns the count for s.
func (c Counts) Get(s Slot) int { return c[s] }

// With returns a copy of c with s set to v.
func (c Counts) With(s Slot, v int) Counts {
	c[s] = v
	return c
}

// Add returns the slot-wise sum of c and o.
func (c Counts) Add(o Counts) Counts {
	for i := range c {
		c[i] += o[i]
	}
	return c
}

// FarzCompleted returns how many farz slots are above zero.
func (c Counts) FarzCompleted() int {
	n := 0
	for _, s := range FarzSlots {
		if c[s] > 0 {
			n++
		}
	}
	return n
}

// AllFarzDone reports whether every farz slot is above zero.
func (c Counts) AllFarzDone() bool {
	return c.FarzCompleted() == len(FarzSlots)
}

// IsZero reports whether every slot is zero.
func (c Counts) IsZero() bool {
	return c == Counts{}
}

// Validate rejects negative counts.
func (c Counts) Validate() error {
	for i, v := range c {
		if v < 0 {
			return fmt.Errorf("%w: %s is negative", ErrInvalidCounts, Slot(i))
		}
	}
	return nil
}

// ValidateKaza rejects negative deltas and any vitr delta; kaza only applies to farz.
func (c Counts) ValidateKaza() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c[Vitr] != 0 {
		return fmt.Errorf("%w: vitr cannot be recorded as kaza", ErrInvalidCounts)
	}
	return nil
}

// MarshalJSON encodes counts as an object keyed by slot name.
func (c Counts) MarshalJSON() ([]byte, error) {
	m := make(map[string]int, slotCount)
	for i, v := range c {
		m[slotNames[i]] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes an object keyed by slot name. Missing slots are zero;
// unknown slot names and negative values are rejected.
func (c *Counts) UnmarshalJSON(b []byte) error {
	var m map[string]int
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	var out Counts
	for name, v := range m {
		s, err := ParseSlot(name)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCounts, err)
		}
		out[s] = v
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*c = out
	return nil
}

// DailyLog is the per-day completion record. At most one exists per user and date-key.
type DailyLog struct {
	UserID    int64     `json:"-"`
	Date      string    `json:"date"`
	Counts    Counts    `json:"counts"`
	Note      *string   `json:"note,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Profile is the obligation profile of a user. Empty date strings mean unset.
type Profile struct {
	MukellefSince   string `json:"mukellefSince,omitempty"`
	StartedPrayerAt string `json:"startedPrayerAt,omitempty"`
	KazaTotals      Counts `json:"kazaTotals"`
}

// ProfileDates is a partial profile update. A nil field is left unchanged and
// an empty string clears the stored date.
type ProfileDates struct {
	MukellefSince   *string `json:"mukellefSince,omitempty"`
	StartedPrayerAt *string `json:"startedPrayerAt,omitempty"`
}

// Validate checks that every non-empty provided date is a valid key.
func (p ProfileDates) Validate() error {
	for _, v := range []*string{p.MukellefSince, p.StartedPrayerAt} {
		if v == nil || *v == "" {
			continue
		}
		if _, err := ParseKey(*v); err != nil {
			return err
		}
	}
	return nil
}

// Apply returns prof with the provided dates written over it.
func (p ProfileDates) Apply(prof Profile) Profile {
	if p.MukellefSince != nil {
		prof.MukellefSince = *p.MukellefSince
	}
	if p.StartedPrayerAt != nil {
		prof.StartedPrayerAt = *p.StartedPrayerAt
	}
	return prof
}

// LogRepository is the port for daily log persistence.
type LogRepository interface {
	ListLogs(ctx context.Context, userID int64, startKey, endKey string) ([]DailyLog, error)
	UpsertLog(ctx context.Context, userID int64, dateKey string, counts Counts, note *string) (*DailyLog, error)
}

// ProfileRepository is the port for obligation profile persistence.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID int64) (*Profile, error)
	UpdateProfileDates(ctx context.Context, userID int64, dates ProfileDates) error
}

// KazaRepository applies a kaza submission: totals and the day's log change together.
type KazaRepository interface {
	ApplyKaza(ctx context.Context, userID int64, dateKey string, deltas Counts, note *string) (Counts, *DailyLog, error)
}

// ChangeKind names what changed in a ChangeEvent.
type ChangeKind string

const (
	ChangeLog     ChangeKind = "log"
	ChangeKaza    ChangeKind = "kaza"
	ChangeProfile ChangeKind = "profile"
)

// ChangeEvent announces a stored change so other devices can reload.
type ChangeEvent struct {
	UserID int64      `json:"userId"`
	Kind   ChangeKind `json:"kind"`
	Date   string     `json:"date,omitempty"`
	At     time.Time  `json:"at"`
}

// ChangeNotifier publishes ChangeEvents. Publishing is best-effort.
type ChangeNotifier interface {
	Publish(ctx context.Context, ev ChangeEvent)
}
