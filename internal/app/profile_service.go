package app

import (
	"context"
	"time"

	"namaz/internal/domain"
)

// ProfileService encapsulates obligation profile use cases.
type ProfileService struct {
	repo     domain.ProfileRepository
	notifier domain.ChangeNotifier
}

// NewProfileService creates a ProfileService backed by the given repository.
func NewProfileService(repo domain.ProfileRepository, notifier domain.ChangeNotifier) *ProfileService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ProfileService{repo: repo, notifier: notifier}
}

// Get returns the user's profile.
func (s *ProfileService) Get(ctx context.Context, userID int64) (*domain.Profile, error) {
	return s.repo.GetProfile(ctx, userID)
}

// UpdateDates validates and stores the provided reference dates.
func (s *ProfileService) UpdateDates(ctx context.Context, userID int64, dates domain.ProfileDates) error {
	if err := dates.Validate(); err != nil {
		return err
	}
	if err := s.repo.UpdateProfileDates(ctx, userID, dates); err != nil {
		return err
	}
	s.notifier.Publish(ctx, domain.ChangeEvent{UserID: userID, Kind: domain.ChangeProfile, At: time.Now()})
	return nil
}

// Debt returns the outstanding debt; ok is false while either date is unset.
func (s *ProfileService) Debt(ctx context.Context, userID int64) (domain.Debt, bool, error) {
	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return domain.Debt{}, false, err
	}
	if p == nil {
		return domain.Debt{}, false, nil
	}
	debt, ok := domain.DebtOf(*p)
	return debt, ok, nil
}
