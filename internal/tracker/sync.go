package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"namaz/internal/domain"
	"namaz/internal/observability"
)

var (
	// ErrNotEditable indicates an edit of a day after today.
	ErrNotEditable = errors.New("future days cannot be edited")
	// ErrKazaInFlight indicates a kaza submission while another is still running.
	ErrKazaInFlight = errors.New("a kaza submission is already in progress")
)

// Credential is the opaque bearer credential for remote calls.
type Credential string

// Present reports whether a credential was supplied.
func (c Credential) Present() bool { return c != "" }

// Remote is the remote store the engine reconciles with.
type Remote interface {
	FetchLogs(ctx context.Context, cred Credential, startKey, endKey string) ([]domain.DailyLog, error)
	PushLog(ctx context.Context, cred Credential, dateKey string, counts domain.Counts, note *string) (*domain.DailyLog, error)
	PushKaza(ctx context.Context, cred Credential, deltas domain.Counts, dateKey string, note *string) (domain.Counts, *domain.DailyLog, error)
	FetchProfile(ctx context.Context, cred Credential) (*domain.Profile, error)
	PushProfile(ctx context.Context, cred Credential, dates domain.ProfileDates) error
}

// Cache persists the projection between processes. Failures are logged, not returned.
type Cache interface {
	PutLog(log domain.DailyLog) error
	DeleteLog(dateKey string) error
	Logs() ([]domain.DailyLog, error)
	PutProfile(p domain.Profile) error
	Profile() (*domain.Profile, bool, error)
}

// Outcome reports how far a mutation or load got.
type Outcome int

const (
	// Synced: the remote store accepted the call and local state reflects it.
	Synced Outcome = iota
	// LocalOnly: no usable credential; the change lives only in memory and the cache.
	LocalOnly
	// Degraded: the remote call failed; local state was kept or applied locally.
	Degraded
	// Discarded: the remote answered but local state had moved on, so the answer was dropped.
	Discarded
)

var outcomeNames = [...]string{"synced", "local-only", "degraded", "discarded"}

func (o Outcome) String() string { return outcomeNames[o] }

// Durable reports whether the remote store holds the change.
func (o Outcome) Durable() bool { return o == Synced }

// Sync reconciles the LogStore and the obligation profile with a Remote.
type Sync struct {
	store  *LogStore
	remote Remote
	cache  Cache
	logger zerolog.Logger
	now    func() time.Time

	mu             sync.Mutex
	profile        domain.Profile
	profileVersion uint64
	visibleStart   domain.Date
	visibleEnd     domain.Date
	loadGen        uint64

	kazaBusy atomic.Bool
}

// New creates a Sync over an empty store. cache may be nil.
func New(remote Remote, cache Cache, logger zerolog.Logger) *Sync {
	if cache == nil {
		cache = nopCache{}
	}
	return &Sync{
		store:  NewLogStore(),
		remote: remote,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock replaces the source of "today". Tests only.
func (s *Sync) WithClock(now func() time.Time) *Sync {
	s.now = now
	return s
}

// Store exposes the underlying projection.
func (s *Sync) Store() *LogStore { return s.store }

// Today returns the current local calendar date.
func (s *Sync) Today() domain.Date { return domain.DateOf(s.now()) }

// Restore seeds the projection and profile from the cache.
func (s *Sync) Restore() error {
	logs, err := s.cache.Logs()
	if err != nil {
		return fmt.Errorf("restore logs: %w", err)
	}
	s.store.Seed(logs)

	p, ok, err := s.cache.Profile()
	if err != nil {
		return fmt.Errorf("restore profile: %w", err)
	}
	if ok {
		s.mu.Lock()
		s.profile = *p
		s.mu.Unlock()
	}
	return nil
}

// LoadRange makes [startKey, endKey] the visible range and replaces it with
// the remote logs. A response that arrives after another LoadRange started is
// discarded.
func (s *Sync) LoadRange(ctx context.Context, cred Credential, startKey, endKey string) (Outcome, error) {
	start, err := domain.ParseKey(startKey)
	if err != nil {
		return 0, err
	}
	end, err := domain.ParseKey(endKey)
	if err != nil {
		return 0, err
	}
	if start.After(end) {
		return 0, fmt.Errorf("%w: %s is after %s", domain.ErrRangeInvalid, startKey, endKey)
	}

	s.mu.Lock()
	s.loadGen++
	gen := s.loadGen
	s.visibleStart, s.visibleEnd = start, end
	s.mu.Unlock()

	if !cred.Present() {
		return LocalOnly, nil
	}

	since := s.store.Version()
	logs, err := s.remote.FetchLogs(ctx, cred, start.Key(), end.Key())
	if err != nil {
		return s.degrade("load", startKey, err), nil
	}

	s.mu.Lock()
	current := gen == s.loadGen && start == s.visibleStart && end == s.visibleEnd
	s.mu.Unlock()
	if !current {
		s.logger.Debug().Str("start", startKey).Str("end", endKey).Msg("discarding stale range load")
		observability.RecordDiscarded("load")
		return Discarded, nil
	}

	if kept := s.store.ReplaceRange(start, end, logs, since); kept > 0 {
		s.logger.Debug().Int("kept", kept).Msg("kept newer local edits over range load")
	}
	s.persistRange(start, end)
	return Synced, nil
}

// LoadMonth loads the month containing ref.
func (s *Sync) LoadMonth(ctx context.Context, cred Credential, ref domain.Date) (Outcome, error) {
	first, last := domain.MonthBounds(ref)
	return s.LoadRange(ctx, cred, first.Key(), last.Key())
}

// Refresh loads the profile and the month containing ref concurrently. The
// returned outcome is the weaker of the two.
func (s *Sync) Refresh(ctx context.Context, cred Credential, ref domain.Date) (Outcome, error) {
	var profileOut, monthOut Outcome
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profileOut = s.LoadProfile(gctx, cred)
		return nil
	})
	g.Go(func() error {
		var err error
		monthOut, err = s.LoadMonth(gctx, cred, ref)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return weaker(profileOut, monthOut), nil
}

// severity orders outcomes for reporting a combined call. A discarded answer
// means newer local state won, which is not a failure.
var severity = map[Outcome]int{
	Synced:    0,
	Discarded: 1,
	LocalOnly: 2,
	Degraded:  3,
}

func weaker(a, b Outcome) Outcome {
	if severity[b] > severity[a] {
		return b
	}
	return a
}

// ToggleSlot flips one slot of dateKey between done and not done and pushes
// the full slot state.
func (s *Sync) ToggleSlot(ctx context.Context, cred Credential, dateKey string, slot domain.Slot) (Outcome, error) {
	if slot < domain.Sabah || slot > domain.Vitr {
		return 0, fmt.Errorf("%w: %s", domain.ErrInvalidCounts, slot)
	}
	l, _ := s.store.Get(dateKey)
	v := 1
	if l.Counts.Get(slot) > 0 {
		v = 0
	}
	return s.SetSlots(ctx, cred, dateKey, l.Counts.With(slot, v), nil)
}

// SetSlots replaces every slot of dateKey. The edit is applied locally first;
// the remote answer is applied only if no newer edit of the day happened since.
func (s *Sync) SetSlots(ctx context.Context, cred Credential, dateKey string, counts domain.Counts, note *string) (Outcome, error) {
	d, err := domain.ParseKey(dateKey)
	if err != nil {
		return 0, err
	}
	if d.After(s.Today()) {
		return 0, fmt.Errorf("%w: %s", ErrNotEditable, dateKey)
	}
	if err := counts.Validate(); err != nil {
		return 0, err
	}

	seq, local := s.store.ApplyLocalEdit(dateKey, counts, note)
	defer s.store.Settle(dateKey)
	s.persistLog(local)

	if !cred.Present() {
		return LocalOnly, nil
	}

	log, err := s.remote.PushLog(ctx, cred, dateKey, counts, note)
	if err != nil {
		return s.degrade("log", dateKey, err), nil
	}
	if !s.store.ApplyRemote(*log, seq) {
		observability.RecordDiscarded("log")
		return Discarded, nil
	}
	s.persistLog(*log)
	return Synced, nil
}

// SubmitKaza records makeup prayers against the kaza totals and the day's log.
// dateKey defaults to today. Only one submission may run at a time because the
// remote increment is not idempotent. When the remote store cannot take it,
// the increment is applied locally so it is not lost.
func (s *Sync) SubmitKaza(ctx context.Context, cred Credential, deltas domain.Counts, dateKey string, note *string) (Outcome, error) {
	if err := deltas.ValidateKaza(); err != nil {
		return 0, err
	}
	if deltas.IsZero() {
		return 0, fmt.Errorf("%w: at least one slot must be above zero", domain.ErrInvalidCounts)
	}
	if dateKey == "" {
		dateKey = s.Today().Key()
	} else if _, err := domain.ParseKey(dateKey); err != nil {
		return 0, err
	}

	if !s.kazaBusy.CompareAndSwap(false, true) {
		return 0, ErrKazaInFlight
	}
	defer s.kazaBusy.Store(false)

	if !cred.Present() {
		s.applyKazaLocally(dateKey, deltas, note)
		return LocalOnly, nil
	}

	s.store.Begin(dateKey)
	defer s.store.Settle(dateKey)
	seq := s.store.Seq(dateKey)
	s.mu.Lock()
	pv := s.profileVersion
	s.mu.Unlock()

	totals, log, err := s.remote.PushKaza(ctx, cred, deltas, dateKey, note)
	if err != nil {
		out := s.degrade("kaza", dateKey, err)
		s.applyKazaLocally(dateKey, deltas, note)
		return out, nil
	}

	s.mu.Lock()
	if s.profileVersion == pv {
		s.profile.KazaTotals = totals
	} else {
		s.profile.KazaTotals = s.profile.KazaTotals.Add(deltas)
	}
	s.profileVersion++
	p := s.profile
	s.mu.Unlock()
	s.persistProfile(p)

	if s.store.ApplyRemote(*log, seq) {
		s.persistLog(*log)
	} else {
		// The day was edited meanwhile; the server's additive result is stale
		// for the local slots, so fold the increment into the local state.
		s.persistLog(s.store.AddLocal(dateKey, deltas, nil))
	}
	return Synced, nil
}

func (s *Sync) applyKazaLocally(dateKey string, deltas domain.Counts, note *string) {
	s.mu.Lock()
	s.profile.KazaTotals = s.profile.KazaTotals.Add(deltas)
	s.profileVersion++
	p := s.profile
	s.mu.Unlock()
	s.persistProfile(p)
	s.persistLog(s.store.AddLocal(dateKey, deltas, note))
}

// Profile returns the held obligation profile.
func (s *Sync) Profile() domain.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// Debt computes the outstanding debt from the held profile.
func (s *Sync) Debt() (domain.Debt, bool) {
	return domain.DebtOf(s.Profile())
}

// LoadProfile replaces the held profile with the remote one unless the
// profile changed locally while the fetch was running.
func (s *Sync) LoadProfile(ctx context.Context, cred Credential) Outcome {
	if !cred.Present() {
		return LocalOnly
	}
	s.mu.Lock()
	pv := s.profileVersion
	s.mu.Unlock()

	p, err := s.remote.FetchProfile(ctx, cred)
	if err != nil {
		return s.degrade("profile", "", err)
	}

	s.mu.Lock()
	if s.profileVersion != pv {
		s.mu.Unlock()
		observability.RecordDiscarded("profile")
		return Discarded
	}
	s.profile = *p
	s.mu.Unlock()
	s.persistProfile(*p)
	return Synced
}

// SaveProfile applies the provided dates locally and pushes them.
func (s *Sync) SaveProfile(ctx context.Context, cred Credential, dates domain.ProfileDates) (Outcome, error) {
	if err := dates.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.profile = dates.Apply(s.profile)
	s.profileVersion++
	p := s.profile
	s.mu.Unlock()
	s.persistProfile(p)

	if !cred.Present() {
		return LocalOnly, nil
	}
	if err := s.remote.PushProfile(ctx, cred, dates); err != nil {
		return s.degrade("profile", "", err), nil
	}
	return Synced, nil
}

// Cell is one classified calendar cell. Padding cells have a zero Date.
type Cell struct {
	Date  domain.Date
	State domain.DayState
	Log   *domain.DailyLog
}

// IsPadding reports whether the cell lies outside the month.
func (c Cell) IsPadding() bool { return c.Date.IsZero() }

// MonthView classifies every day of the month containing ref from the held
// projection and profile.
func (s *Sync) MonthView(ref domain.Date) [][7]Cell {
	today := s.Today()
	started := s.Profile().StartedPrayerAt

	weeks := domain.MonthMatrix(ref)
	out := make([][7]Cell, len(weeks))
	for i, week := range weeks {
		for j, c := range week {
			if c.IsPadding() {
				continue
			}
			var logp *domain.DailyLog
			if l, ok := s.store.Get(c.Date.Key()); ok {
				logp = &l
			}
			out[i][j] = Cell{
				Date:  c.Date,
				State: domain.Classify(c.Date, logp, started, today),
				Log:   logp,
			}
		}
	}
	return out
}

// Day returns the classified cell for dateKey.
func (s *Sync) Day(dateKey string) (Cell, error) {
	d, err := domain.ParseKey(dateKey)
	if err != nil {
		return Cell{}, err
	}
	var logp *domain.DailyLog
	if l, ok := s.store.Get(dateKey); ok {
		logp = &l
	}
	return Cell{
		Date:  d,
		State: domain.Classify(d, logp, s.Profile().StartedPrayerAt, s.Today()),
		Log:   logp,
	}, nil
}

func (s *Sync) degrade(op, dateKey string, err error) Outcome {
	observability.RecordDegraded(op)
	if errors.Is(err, domain.ErrUnauthorized) {
		s.logger.Warn().Err(err).Str("op", op).Str("date", dateKey).Msg("credential rejected, continuing local-only")
		return LocalOnly
	}
	s.logger.Warn().Err(err).Str("op", op).Str("date", dateKey).Msg("remote call failed, keeping local state")
	return Degraded
}

func (s *Sync) persistLog(l domain.DailyLog) {
	if err := s.cache.PutLog(l); err != nil {
		s.logger.Warn().Err(err).Str("date", l.Date).Msg("cache log")
	}
}

func (s *Sync) persistProfile(p domain.Profile) {
	if err := s.cache.PutProfile(p); err != nil {
		s.logger.Warn().Err(err).Msg("cache profile")
	}
}

// persistRange mirrors the store's view of [start, end] into the cache.
func (s *Sync) persistRange(start, end domain.Date) {
	for d := start; !d.After(end); d = d.AddDays(1) {
		key := d.Key()
		if l, ok := s.store.Get(key); ok {
			s.persistLog(l)
			continue
		}
		if err := s.cache.DeleteLog(key); err != nil {
			s.logger.Warn().Err(err).Str("date", key).Msg("cache delete")
		}
	}
}

type nopCache struct{}

func (nopCache) PutLog(domain.DailyLog) error { return nil }
func (nopCache) DeleteLog(string) error { return nil }
func (nopCache) Logs() ([]domain.DailyLog, error) { return nil, nil }
func (nopCache) PutProfile(domain.Profile) error { return nil }
func (nopCache) Profile() (*domain.Profile, bool, error) { return nil, false, nil }
