package app

import (
	"context"
	"fmt"
	"time"

	"namaz/internal/domain"
	"namaz/internal/observability"
)

// NopNotifier discards change events.
type NopNotifier struct{}

// Publish implements domain.ChangeNotifier.
func (NopNotifier) Publish(context.Context, domain.ChangeEvent) {}

// LogService encapsulates daily log and kaza use cases.
type LogService struct {
	logs     domain.LogRepository
	kaza     domain.KazaRepository
	notifier domain.ChangeNotifier
	now      func() time.Time
}

// NewLogService creates a LogService backed by the given repositories.
func NewLogService(logs domain.LogRepository, kaza domain.KazaRepository, notifier domain.ChangeNotifier) *LogService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &LogService{logs: logs, kaza: kaza, notifier: notifier, now: time.Now}
}

// KazaResult is the outcome of a stored kaza submission.
type KazaResult struct {
	KazaTotals domain.Counts    `json:"kazaTotals"`
	Log        *domain.DailyLog `json:"log"`
}

// Range returns the logs between startKey and endKey inclusive, ascending.
func (s *LogService) Range(ctx context.Context, userID int64, startKey, endKey string) ([]domain.DailyLog, error) {
	start, err := domain.ParseKey(startKey)
	if err != nil {
		return nil, err
	}
	end, err := domain.ParseKey(endKey)
	if err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, fmt.Errorf("%w: %s is after %s", domain.ErrRangeInvalid, startKey, endKey)
	}
	return s.logs.ListLogs(ctx, userID, start.Key(), end.Key())
}

// Upsert replaces every slot value of the day's log. Sending the same payload
// twice leaves the same stored log.
func (s *LogService) Upsert(ctx context.Context, userID int64, dateKey string, counts domain.Counts, note *string) (*domain.DailyLog, error) {
	if _, err := domain.ParseKey(dateKey); err != nil {
		return nil, err
	}
	if err := counts.Validate(); err != nil {
		return nil, err
	}
	log, err := s.logs.UpsertLog(ctx, userID, dateKey, counts, note)
	if err != nil {
		return nil, err
	}
	s.notifier.Publish(ctx, domain.ChangeEvent{UserID: userID, Kind: domain.ChangeLog, Date: dateKey, At: s.now()})
	return log, nil
}

// RecordKaza adds deltas to the user's kaza totals and to the log of dateKey,
// which defaults to today. It is additive: resubmitting counts twice.
func (s *LogService) RecordKaza(ctx context.Context, userID int64, deltas domain.Counts, dateKey string, note *string) (*KazaResult, error) {
	if err := deltas.ValidateKaza(); err != nil {
		return nil, err
	}
	if deltas.IsZero() {
		return nil, fmt.Errorf("%w: at least one slot must be above zero", domain.ErrInvalidCounts)
	}
	if dateKey == "" {
		dateKey = domain.EncodeKey(s.now())
	} else if _, err := domain.ParseKey(dateKey); err != nil {
		return nil, err
	}

	totals, log, err := s.kaza.ApplyKaza(ctx, userID, dateKey, deltas, note)
	if err != nil {
		return nil, err
	}
	observability.RecordKaza(deltas)
	s.notifier.Publish(ctx, domain.ChangeEvent{UserID: userID, Kind: domain.ChangeKaza, Date: dateKey, At: s.now()})
	return &KazaResult{KazaTotals: totals, Log: log}, nil
}
