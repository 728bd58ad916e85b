package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// KeyLayout is the canonical date-key layout used for storage and lookups.
const KeyLayout = "2006-01-02"

var keyPattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)

// Date is a calendar day with no time-of-day or zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day of t using t's own location fields.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// NewDate builds a Date, normalising overflowing fields the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Key encodes d as YYYY-MM-DD.
func (d Date) Key() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) String() string { return d.Key() }

// Time returns local midnight of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.Local)
}

// utc is used for day arithmetic; UTC has no DST so every day is exactly 24h.
func (d Date) utc() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.utc().AddDate(0, 0, n))
}

// Compare returns -1, 0 or +1 as d is before, equal to or after o.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

// DaysUntil returns the signed number of whole days from d to o.
func (d Date) DaysUntil(o Date) int {
	return int(o.utc().Sub(d.utc()).Hours() / 24)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// EncodeKey returns the date-key for t's local calendar fields. It never goes
// through UTC so a late-evening timestamp keeps its own day.
func EncodeKey(t time.Time) string {
	return DateOf(t).Key()
}

// ParseKey validates a YYYY-MM-DD key and returns its Date.
func ParseKey(key string) (Date, error) {
	m := keyPattern.FindStringSubmatch(key)
	if m == nil {
		return Date{}, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	dd, _ := strconv.Atoi(m[3])
	if mo < 1 || mo > 12 || dd < 1 || dd > DaysIn(y, time.Month(mo)) {
		return Date{}, fmt.Errorf("%w: %q is not a calendar date", ErrMalformedKey, key)
	}
	return Date{Year: y, Month: time.Month(mo), Day: dd}, nil
}

// DecodeKey parses key and returns local midnight of that day.
func DecodeKey(key string) (time.Time, error) {
	d, err := ParseKey(key)
	if err != nil {
		return time.Time{}, err
	}
	return d.Time(), nil
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// KeyRange lists every key from start to end inclusive. It returns nil when
// start is after end.
func KeyRange(start, end Date) []string {
	if start.After(end) {
		return nil
	}
	keys := make([]string, 0, start.DaysUntil(end)+1)
	for d := start; !d.After(end); d = d.AddDays(1) {
		keys = append(keys, d.Key())
	}
	return keys
}
