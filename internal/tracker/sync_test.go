package tracker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"namaz/internal/domain"
	"namaz/internal/tracker"
)

const cred = tracker.Credential("token")

// fakeRemote delegates to per-call functions and counts calls.
type fakeRemote struct {
	mu           sync.Mutex
	fetchCalls   int
	fetchFn      func(start, end string) ([]domain.DailyLog, error)
	pushFn       func(key string, counts domain.Counts) (*domain.DailyLog, error)
	kazaFn       func(deltas domain.Counts, key string) (domain.Counts, *domain.DailyLog, error)
	profileFn    func() (*domain.Profile, error)
	pushProfFn   func(dates domain.ProfileDates) error
	pushedCounts []domain.Counts
}

func (f *fakeRemote) FetchLogs(_ context.Context, _ tracker.Credential, start, end string) ([]domain.DailyLog, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.mu.Unlock()
	if f.fetchFn != nil {
		return f.fetchFn(start, end)
	}
	return nil, nil
}

func (f *fakeRemote) PushLog(_ context.Context, _ tracker.Credential, key string, counts domain.Counts, _ *string) (*domain.DailyLog, error) {
	f.mu.Lock()
	f.pushedCounts = append(f.pushedCounts, counts)
	f.mu.Unlock()
	if f.pushFn != nil {
		return f.pushFn(key, counts)
	}
	return &domain.DailyLog{Date: key, Counts: counts}, nil
}

func (f *fakeRemote) PushKaza(_ context.Context, _ tracker.Credential, deltas domain.Counts, key string, _ *string) (domain.Counts, *domain.DailyLog, error) {
	if f.kazaFn != nil {
		return f.kazaFn(deltas, key)
	}
	return deltas, &domain.DailyLog{Date: key, Counts: deltas}, nil
}

func (f *fakeRemote) FetchProfile(context.Context, tracker.Credential) (*domain.Profile, error) {
	if f.profileFn != nil {
		return f.profileFn()
	}
	return &domain.Profile{}, nil
}

func (f *fakeRemote) PushProfile(_ context.Context, _ tracker.Credential, dates domain.ProfileDates) error {
	if f.pushProfFn != nil {
		return f.pushProfFn(dates)
	}
	return nil
}

// memCache is an in-memory tracker.Cache.
type memCache struct {
	mu      sync.Mutex
	logs    map[string]domain.DailyLog
	profile *domain.Profile
}

func newMemCache() *memCache { return &memCache{logs: map[string]domain.DailyLog{}} }

func (c *memCache) PutLog(l domain.DailyLog) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs[l.Date] = l
	return nil
}

func (c *memCache) DeleteLog(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.logs, key)
	return nil
}

func (c *memCache) Logs() ([]domain.DailyLog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.DailyLog
	for _, l := range c.logs {
		out = append(out, l)
	}
	return out, nil
}

func (c *memCache) PutProfile(p domain.Profile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profile = &p
	return nil
}

func (c *memCache) Profile() (*domain.Profile, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile, c.profile != nil, nil
}

// fixedNow is 2025-03-25 at noon local time.
func fixedNow() time.Time { return time.Date(2025, time.March, 25, 12, 0, 0, 0, time.Local) }

func newSync(r tracker.Remote, c tracker.Cache) *tracker.Sync {
	return tracker.New(r, c, zerolog.Nop()).WithClock(fixedNow)
}

func TestLoadRange_RejectsBeforeNetwork(t *testing.T) {
	r := &fakeRemote{}
	s := newSync(r, nil)

	_, err := s.LoadRange(context.Background(), cred, "2025-03-31", "2025-03-01")
	assert.ErrorIs(t, err, domain.ErrRangeInvalid)

	_, err = s.LoadRange(context.Background(), cred, "2025-02-30", "2025-03-01")
	assert.ErrorIs(t, err, domain.ErrMalformedKey)

	assert.Zero(t, r.fetchCalls)
}

func TestLoadRange_March15Scenario(t *testing.T) {
	r := &fakeRemote{
		fetchFn: func(start, end string) ([]domain.DailyLog, error) {
			assert.Equal(t, "2025-03-01", start)
			assert.Equal(t, "2025-03-31", end)
			return []domain.DailyLog{{Date: "2025-03-15", Counts: domain.Counts{1, 1, 1, 1, 1, 0}}}, nil
		},
		profileFn: func() (*domain.Profile, error) {
			return &domain.Profile{StartedPrayerAt: "2025-03-20"}, nil
		},
	}
	s := newSync(r, nil)

	out, err := s.Refresh(context.Background(), cred, march1)
	require.NoError(t, err)
	assert.Equal(t, tracker.Synced, out)

	states := map[string]domain.DayState{}
	for _, week := range s.MonthView(march1) {
		for _, c := range week {
			if !c.IsPadding() {
				states[c.Date.Key()] = c.State
			}
		}
	}
	require.Len(t, states, 31)

	assert.Equal(t, domain.StateAllSlotsLogged, states["2025-03-15"])
	for day := 1; day <= 31; day++ {
		key := domain.NewDate(2025, time.March, day).Key()
		switch {
		case key == "2025-03-15":
		case day < 20:
			assert.Equal(t, domain.StateEmpty, states[key], key)
		case day <= 25:
			assert.Equal(t, domain.StateRangeComplete, states[key], key)
		default:
			assert.Equal(t, domain.StateFuture, states[key], key)
		}
	}
}

func TestLoadRange_DiscardsStaleMonth(t *testing.T) {
	marchGate := make(chan struct{})
	marchStarted := make(chan struct{})
	r := &fakeRemote{
		fetchFn: func(start, _ string) ([]domain.DailyLog, error) {
			if start == "2025-03-01" {
				close(marchStarted)
				<-marchGate
				return []domain.DailyLog{{Date: "2025-03-15", Counts: domain.Counts{1}}}, nil
			}
			return []domain.DailyLog{{Date: "2025-04-02", Counts: domain.Counts{1}}}, nil
		},
	}
	s := newSync(r, nil)

	var marchOut tracker.Outcome
	done := make(chan struct{})
	go func() {
		defer close(done)
		marchOut, _ = s.LoadMonth(context.Background(), cred, march1)
	}()
	<-marchStarted

	// Navigate to April before March answers.
	aprilOut, err := s.LoadMonth(context.Background(), cred, domain.NewDate(2025, time.April, 1))
	require.NoError(t, err)
	assert.Equal(t, tracker.Synced, aprilOut)

	close(marchGate)
	<-done
	assert.Equal(t, tracker.Discarded, marchOut)

	_, ok := s.Store().Get("2025-03-15")
	assert.False(t, ok, "stale month must not be applied")
	_, ok = s.Store().Get("2025-04-02")
	assert.True(t, ok)
}

func TestLoadRange_ReloadOnReturn(t *testing.T) {
	r := &fakeRemote{}
	s := newSync(r, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.LoadMonth(ctx, cred, march1)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, r.fetchCalls, "every navigation re-runs the load")
}

func TestSetSlots_OutOfOrderResponses(t *testing.T) {
	for _, firstToAnswer := range []int{1, 2} {
		gates := []chan struct{}{make(chan struct{}), make(chan struct{})}
		received := make(chan int, 2)
		var mu sync.Mutex
		call := 0
		r := &fakeRemote{
			pushFn: func(key string, counts domain.Counts) (*domain.DailyLog, error) {
				mu.Lock()
				n := call
				call++
				mu.Unlock()
				received <- n
				<-gates[n]
				return &domain.DailyLog{Date: key, Counts: counts}, nil
			},
		}
		s := newSync(r, nil)
		ctx := context.Background()
		key := "2025-03-15"
		edit1 := domain.Counts{1}
		edit2 := domain.Counts{1, 1}

		outs := make([]tracker.Outcome, 2)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			outs[0], _ = s.SetSlots(ctx, cred, key, edit1, nil)
		}()
		<-received
		go func() {
			defer wg.Done()
			outs[1], _ = s.SetSlots(ctx, cred, key, edit2, nil)
		}()
		<-received

		if firstToAnswer == 1 {
			close(gates[0])
			time.Sleep(10 * time.Millisecond)
			close(gates[1])
		} else {
			close(gates[1])
			time.Sleep(10 * time.Millisecond)
			close(gates[0])
		}
		wg.Wait()

		l, ok := s.Store().Get(key)
		require.True(t, ok)
		assert.Equal(t, edit2, l.Counts, "first answer %d", firstToAnswer)
		assert.Equal(t, tracker.Discarded, outs[0])
		assert.Equal(t, tracker.Synced, outs[1])
	}
}

func TestSetSlots_FailureKeepsLocal(t *testing.T) {
	r := &fakeRemote{
		pushFn: func(string, domain.Counts) (*domain.DailyLog, error) {
			return nil, domain.ErrRemoteUnavailable
		},
	}
	c := newMemCache()
	s := newSync(r, c)

	out, err := s.SetSlots(context.Background(), cred, "2025-03-15", domain.Counts{1, 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, tracker.Degraded, out)
	assert.False(t, out.Durable())

	l, ok := s.Store().Get("2025-03-15")
	require.True(t, ok)
	assert.Equal(t, domain.Counts{1, 1}, l.Counts)
	assert.Contains(t, c.logs, "2025-03-15")
}

func TestSetSlots_Unauthorized(t *testing.T) {
	r := &fakeRemote{
		pushFn: func(string, domain.Counts) (*domain.DailyLog, error) {
			return nil, domain.ErrUnauthorized
		},
	}
	s := newSync(r, nil)

	out, err := s.SetSlots(context.Background(), cred, "2025-03-15", domain.Counts{1}, nil)
	require.NoError(t, err)
	assert.Equal(t, tracker.LocalOnly, out)
	_, ok := s.Store().Get("2025-03-15")
	assert.True(t, ok)
}

func TestSetSlots_NoCredential(t *testing.T) {
	r := &fakeRemote{}
	s := newSync(r, nil)

	out, err := s.SetSlots(context.Background(), "", "2025-03-15", domain.Counts{1}, nil)
	require.NoError(t, err)
	assert.Equal(t, tracker.LocalOnly, out)
	assert.Empty(t, r.pushedCounts)
}

func TestSetSlots_Validation(t *testing.T) {
	s := newSync(&fakeRemote{}, nil)
	ctx := context.Background()

	_, err := s.SetSlots(ctx, cred, "2025-03-26", domain.Counts{1}, nil)
	assert.ErrorIs(t, err, tracker.ErrNotEditable)

	_, err = s.SetSlots(ctx, cred, "2025-3-1", domain.Counts{1}, nil)
	assert.ErrorIs(t, err, domain.ErrMalformedKey)

	_, err = s.SetSlots(ctx, cred, "2025-03-01", domain.Counts{-1}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidCounts)
}

func TestToggleSlot(t *testing.T) {
	r := &fakeRemote{}
	s := newSync(r, nil)
	ctx := context.Background()
	key := "2025-03-15"

	_, err := s.ToggleSlot(ctx, cred, key, domain.Ogle)
	require.NoError(t, err)
	_, err = s.ToggleSlot(ctx, cred, key, domain.Vitr)
	require.NoError(t, err)
	_, err = s.ToggleSlot(ctx, cred, key, domain.Ogle)
	require.NoError(t, err)

	require.Len(t, r.pushedCounts, 3)
	assert.Equal(t, domain.Counts{0, 1, 0, 0, 0, 0}, r.pushedCounts[0])
	assert.Equal(t, domain.Counts{0, 1, 0, 0, 0, 1}, r.pushedCounts[1], "the full slot state is sent")
	assert.Equal(t, domain.Counts{0, 0, 0, 0, 0, 1}, r.pushedCounts[2])
}

func TestSubmitKaza_Synced(t *testing.T) {
	r := &fakeRemote{
		kazaFn: func(deltas domain.Counts, key string) (domain.Counts, *domain.DailyLog, error) {
			assert.Equal(t, "2025-03-25", key, "date defaults to today")
			return domain.Counts{10, 0, 0, 0, 3, 0}, &domain.DailyLog{Date: key, Counts: deltas}, nil
		},
	}
	s := newSync(r, nil)

	out, err := s.SubmitKaza(context.Background(), cred, domain.Counts{2, 0, 0, 0, 1, 0}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, tracker.Synced, out)
	assert.Equal(t, domain.Counts{10, 0, 0, 0, 3, 0}, s.Profile().KazaTotals)
}

func TestSubmitKaza_SurvivesEarlierRangeLoad(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{})
	r := &fakeRemote{
		fetchFn: func(string, string) ([]domain.DailyLog, error) {
			close(started)
			<-gate
			return nil, nil
		},
	}
	c := newMemCache()
	s := newSync(r, c)
	ctx := context.Background()

	var loadOut tracker.Outcome
	done := make(chan struct{})
	go func() {
		defer close(done)
		loadOut, _ = s.LoadMonth(ctx, cred, march1)
	}()
	<-started

	out, err := s.SubmitKaza(ctx, cred, domain.Counts{2}, "2025-03-10", nil)
	require.NoError(t, err)
	assert.Equal(t, tracker.Synced, out)

	close(gate)
	<-done
	assert.Equal(t, tracker.Synced, loadOut)

	l, ok := s.Store().Get("2025-03-10")
	require.True(t, ok, "a load fetched before the kaza must not remove its log")
	assert.Equal(t, domain.Counts{2}, l.Counts)
	assert.Contains(t, c.logs, "2025-03-10")
}

func TestSubmitKaza_FallsBackLocally(t *testing.T) {
	r := &fakeRemote{
		kazaFn: func(domain.Counts, string) (domain.Counts, *domain.DailyLog, error) {
			return domain.Counts{}, nil, errors.New("connection refused")
		},
	}
	c := newMemCache()
	s := newSync(r, c)
	ctx := context.Background()

	out, err := s.SubmitKaza(ctx, cred, domain.Counts{2, 0, 0, 0, 1, 0}, "2025-03-10", nil)
	require.NoError(t, err)
	assert.Equal(t, tracker.Degraded, out)

	out, err = s.SubmitKaza(ctx, "", domain.Counts{1}, "2025-03-10", nil)
	require.NoError(t, err)
	assert.Equal(t, tracker.LocalOnly, out)

	assert.Equal(t, domain.Counts{3, 0, 0, 0, 1, 0}, s.Profile().KazaTotals)
	l, ok := s.Store().Get("2025-03-10")
	require.True(t, ok)
	assert.Equal(t, domain.Counts{3, 0, 0, 0, 1, 0}, l.Counts)

	require.NotNil(t, c.profile)
	assert.Equal(t, s.Profile().KazaTotals, c.profile.KazaTotals, "local kaza survives a restart")
}

func TestSubmitKaza_SingleInFlight(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{})
	r := &fakeRemote{
		kazaFn: func(deltas domain.Counts, key string) (domain.Counts, *domain.DailyLog, error) {
			close(started)
			<-gate
			return deltas, &domain.DailyLog{Date: key, Counts: deltas}, nil
		},
	}
	s := newSync(r, nil)
	ctx := context.Background()

	done := make(chan error)
	go func() {
		_, err := s.SubmitKaza(ctx, cred, domain.Counts{1}, "", nil)
		done <- err
	}()
	<-started

	_, err := s.SubmitKaza(ctx, cred, domain.Counts{1}, "", nil)
	assert.ErrorIs(t, err, tracker.ErrKazaInFlight)

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, domain.Counts{1}, s.Profile().KazaTotals)
}

func TestSubmitKaza_Validation(t *testing.T) {
	s := newSync(&fakeRemote{}, nil)
	ctx := context.Background()

	_, err := s.SubmitKaza(ctx, cred, domain.Counts{0, 0, 0, 0, 0, 1}, "", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidCounts)
	_, err = s.SubmitKaza(ctx, cred, domain.Counts{}, "", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidCounts)
	_, err = s.SubmitKaza(ctx, cred, domain.Counts{1}, "25-03-2025", nil)
	assert.ErrorIs(t, err, domain.ErrMalformedKey)
}

func TestProfileAndDebt(t *testing.T) {
	r := &fakeRemote{
		profileFn: func() (*domain.Profile, error) {
			return &domain.Profile{MukellefSince: "2010-01-01", StartedPrayerAt: "2015-01-01", KazaTotals: domain.Counts{100}}, nil
		},
	}
	s := newSync(r, nil)
	ctx := context.Background()

	_, ok := s.Debt()
	assert.False(t, ok)

	assert.Equal(t, tracker.Synced, s.LoadProfile(ctx, cred))
	debt, ok := s.Debt()
	require.True(t, ok)
	assert.Equal(t, 1826, debt.DaysDiff)
	assert.Equal(t, 1726, debt.Owed.Get(domain.Sabah))

	r.pushProfFn = func(domain.ProfileDates) error { return domain.ErrRemoteUnavailable }
	empty := ""
	out, err := s.SaveProfile(ctx, cred, domain.ProfileDates{StartedPrayerAt: &empty})
	require.NoError(t, err)
	assert.Equal(t, tracker.Degraded, out)
	_, ok = s.Debt()
	assert.False(t, ok, "the local edit stands even though the push failed")

	bad := "2015-13-01"
	_, err = s.SaveProfile(ctx, cred, domain.ProfileDates{MukellefSince: &bad})
	assert.ErrorIs(t, err, domain.ErrMalformedKey)
}

func TestLoadProfile_FailureKeepsPrevious(t *testing.T) {
	r := &fakeRemote{
		profileFn: func() (*domain.Profile, error) { return nil, domain.ErrRemoteUnavailable },
	}
	c := newMemCache()
	_ = c.PutProfile(domain.Profile{MukellefSince: "2010-01-01"})
	s := newSync(r, c)
	require.NoError(t, s.Restore())

	assert.Equal(t, tracker.Degraded, s.LoadProfile(context.Background(), cred))
	assert.Equal(t, "2010-01-01", s.Profile().MukellefSince)
}

func TestRestore(t *testing.T) {
	c := newMemCache()
	_ = c.PutLog(domain.DailyLog{Date: "2025-03-15", Counts: domain.Counts{1, 1, 1, 1, 1, 0}})
	s := newSync(&fakeRemote{}, c)
	require.NoError(t, s.Restore())

	cell, err := s.Day("2025-03-15")
	require.NoError(t, err)
	assert.Equal(t, domain.StateAllSlotsLogged, cell.State)
	require.NotNil(t, cell.Log)

	cell, err = s.Day("2025-03-26")
	require.NoError(t, err)
	assert.Equal(t, domain.StateFuture, cell.State)
	assert.False(t, cell.State.Interactive())
}

func TestLoadRange_SyncsCache(t *testing.T) {
	c := newMemCache()
	_ = c.PutLog(domain.DailyLog{Date: "2025-03-02", Counts: domain.Counts{1}})
	r := &fakeRemote{
		fetchFn: func(string, string) ([]domain.DailyLog, error) {
			return []domain.DailyLog{{Date: "2025-03-03"}}, nil
		},
	}
	s := newSync(r, c)
	require.NoError(t, s.Restore())

	out, err := s.LoadMonth(context.Background(), cred, march1)
	require.NoError(t, err)
	assert.Equal(t, tracker.Synced, out)
	assert.NotContains(t, c.logs, "2025-03-02")
	assert.Contains(t, c.logs, "2025-03-03")
}
