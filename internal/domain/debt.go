package domain

// Debt is the outstanding prayer debt derived from an obligation profile.
type Debt struct {
	DaysDiff int    `json:"daysDiff"`
	Owed     Counts `json:"owed"`
}

// CalculateDebt derives the owed count per farz slot from the two reference
// date-keys and the kaza made so far. ok is false when either date is missing
// or malformed. The result does not depend on the order of the two dates.
func CalculateDebt(mukellefSince, startedPrayerAt string, kazaTotals Counts) (debt Debt, ok bool) {
	a, err := ParseKey(mukellefSince)
	if err != nil {
		return Debt{}, false
	}
	b, err := ParseKey(startedPrayerAt)
	if err != nil {
		return Debt{}, false
	}

	diff := a.DaysUntil(b)
	if diff < 0 {
		diff = -diff
	}

	debt.DaysDiff = diff
	for _, s := range FarzSlots {
		if owed := diff - kazaTotals[s]; owed > 0 {
			debt.Owed[s] = owed
		}
	}
	return debt, true
}

// DebtOf is CalculateDebt applied to a profile.
func DebtOf(p Profile) (Debt, bool) {
	return CalculateDebt(p.MukellefSince, p.StartedPrayerAt, p.KazaTotals)
}
