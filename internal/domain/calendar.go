package domain

// Cell is one slot of a month grid. Padding cells carry the zero Date.
type Cell struct {
	Date Date
}

// IsPadding reports whether the cell lies outside the month.
func (c Cell) IsPadding() bool { return c.Date.IsZero() }

// Week is one Sunday-first row of a month grid.
type Week [7]Cell

// MonthMatrix builds the Sunday-first grid for the month containing ref,
// padded with empty cells to whole weeks.
func MonthMatrix(ref Date) []Week {
	first, _ := MonthBounds(ref)
	days := DaysIn(first.Year, first.Month)
	offset := int(first.utc().Weekday()) // Sunday == 0

	cells := make([]Cell, offset, offset+days+6)
	for day := 1; day <= days; day++ {
		cells = append(cells, Cell{Date: Date{Year: first.Year, Month: first.Month, Day: day}})
	}
	for len(cells)%7 != 0 {
		cells = append(cells, Cell{})
	}

	weeks := make([]Week, 0, len(cells)/7)
	for i := 0; i < len(cells); i += 7 {
		var w Week
		copy(w[:], cells[i:i+7])
		weeks = append(weeks, w)
	}
	return weeks
}

// MonthBounds returns the first and last day of the month containing ref.
func MonthBounds(ref Date) (first, last Date) {
	first = Date{Year: ref.Year, Month: ref.Month, Day: 1}
	last = Date{Year: ref.Year, Month: ref.Month, Day: DaysIn(ref.Year, ref.Month)}
	return first, last
}
