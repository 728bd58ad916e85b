package app

import (
	"context"

	"namaz/internal/domain"
)

// CalendarService assembles month views from logs and the profile.
type CalendarService struct {
	logs     domain.LogRepository
	profiles domain.ProfileRepository
}

// NewCalendarService creates a CalendarService backed by the given repositories.
func NewCalendarService(logs domain.LogRepository, profiles domain.ProfileRepository) *CalendarService {
	return &CalendarService{logs: logs, profiles: profiles}
}

// DayView is one classified cell. Date is empty for padding. Untouched marks
// the pre-obligation-or-untouched family, which covers "partial" and "empty".
type DayView struct {
	Date      string           `json:"date,omitempty"`
	State     string           `json:"state,omitempty"`
	Untouched bool             `json:"untouched,omitempty"`
	Log       *domain.DailyLog `json:"log,omitempty"`
}

// MonthView is a classified month grid.
type MonthView struct {
	Month string      `json:"month"`
	Today string      `json:"today"`
	Weeks [][]DayView `json:"weeks"`
}

// Month returns the classified grid for the month containing ref.
func (s *CalendarService) Month(ctx context.Context, userID int64, ref, today domain.Date) (*MonthView, error) {
	first, last := domain.MonthBounds(ref)
	logs, err := s.logs.ListLogs(ctx, userID, first.Key(), last.Key())
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = &domain.Profile{}
	}

	byKey := make(map[string]*domain.DailyLog, len(logs))
	for i := range logs {
		byKey[logs[i].Date] = &logs[i]
	}

	view := &MonthView{Month: first.Key()[:7], Today: today.Key()}
	for _, week := range domain.MonthMatrix(ref) {
		row := make([]DayView, 0, len(week))
		for _, cell := range week {
			if cell.IsPadding() {
				row = append(row, DayView{})
				continue
			}
			key := cell.Date.Key()
			log := byKey[key]
			state := domain.Classify(cell.Date, log, profile.StartedPrayerAt, today)
			row = append(row, DayView{
				Date:      key,
				State:     state.String(),
				Untouched: state.Untouched(),
				Log:       log,
			})
		}
		view.Weeks = append(view.Weeks, row)
	}
	return view, nil
}
