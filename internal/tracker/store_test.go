package tracker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"namaz/internal/domain"
	"namaz/internal/tracker"
)

var (
	march1  = domain.NewDate(2025, time.March, 1)
	march31 = domain.NewDate(2025, time.March, 31)
)

func TestReplaceRange_AbsentIsNotZero(t *testing.T) {
	s := tracker.NewLogStore()
	s.Seed([]domain.DailyLog{
		{Date: "2025-03-10", Counts: domain.Counts{1, 1, 1, 0, 0, 0}},
		{Date: "2025-03-11", Counts: domain.Counts{1}},
		{Date: "2025-04-01", Counts: domain.Counts{1}},
	})

	since := s.Version()
	kept := s.ReplaceRange(march1, march31, []domain.DailyLog{
		{Date: "2025-03-11"},
		{Date: "2025-03-15", Counts: domain.Counts{1, 1, 1, 1, 1, 0}},
	}, since)
	assert.Zero(t, kept)

	_, ok := s.Get("2025-03-10")
	assert.False(t, ok, "a key missing from the fetch must become absent")

	zero, ok := s.Get("2025-03-11")
	require.True(t, ok, "an all-zero log is a real synced state")
	assert.True(t, zero.Counts.IsZero())

	_, ok = s.Get("2025-04-01")
	assert.True(t, ok, "keys outside the range are left alone")

	logs := s.InRange(march1, march31)
	require.Len(t, logs, 2)
	assert.Equal(t, "2025-03-11", logs[0].Date)
	assert.Equal(t, "2025-03-15", logs[1].Date)
}

func TestReplaceRange_KeepsNewerLocalEdits(t *testing.T) {
	s := tracker.NewLogStore()
	since := s.Version()

	// Edited after the fetch was issued, push still in flight.
	s.ApplyLocalEdit("2025-03-05", domain.Counts{1}, nil)

	kept := s.ReplaceRange(march1, march31, []domain.DailyLog{
		{Date: "2025-03-05", Counts: domain.Counts{0, 1}},
	}, since)
	assert.Equal(t, 1, kept)

	l, ok := s.Get("2025-03-05")
	require.True(t, ok)
	assert.Equal(t, domain.Counts{1}, l.Counts)
}

func TestReplaceRange_PendingPushWins(t *testing.T) {
	s := tracker.NewLogStore()
	s.ApplyLocalEdit("2025-03-05", domain.Counts{1}, nil)

	// Fetch issued after the edit but while its push is still in flight.
	since := s.Version()
	s.ReplaceRange(march1, march31, nil, since)

	_, ok := s.Get("2025-03-05")
	assert.True(t, ok, "an in-flight edit must survive a range load")

	// Once settled, a later load owns the key again.
	s.Settle("2025-03-05")
	s.ReplaceRange(march1, march31, nil, s.Version())
	_, ok = s.Get("2025-03-05")
	assert.False(t, ok)
}

func TestReplaceRange_BegunPushWins(t *testing.T) {
	s := tracker.NewLogStore()
	since := s.Version()

	// A kaza push starts and its result lands before an older fetch returns.
	s.Begin("2025-03-10")
	require.True(t, s.ApplyRemote(domain.DailyLog{Date: "2025-03-10", Counts: domain.Counts{2}}, s.Seq("2025-03-10")))
	s.ReplaceRange(march1, march31, nil, since)
	_, ok := s.Get("2025-03-10")
	assert.True(t, ok, "a pushed day must survive a load fetched before the push")

	// Settling still leaves the key newer than that fetch.
	s.Settle("2025-03-10")
	s.ReplaceRange(march1, march31, nil, since)
	l, ok := s.Get("2025-03-10")
	require.True(t, ok)
	assert.Equal(t, domain.Counts{2}, l.Counts)

	s.ReplaceRange(march1, march31, nil, s.Version())
	_, ok = s.Get("2025-03-10")
	assert.False(t, ok)
}

func TestApplyRemote_SequenceRule(t *testing.T) {
	s := tracker.NewLogStore()
	key := "2025-03-15"

	seq1, _ := s.ApplyLocalEdit(key, domain.Counts{1}, nil)
	seq2, _ := s.ApplyLocalEdit(key, domain.Counts{1, 1}, nil)
	require.Greater(t, seq2, seq1)

	assert.False(t, s.ApplyRemote(domain.DailyLog{Date: key, Counts: domain.Counts{1}}, seq1))
	l, _ := s.Get(key)
	assert.Equal(t, domain.Counts{1, 1}, l.Counts)

	assert.True(t, s.ApplyRemote(domain.DailyLog{Date: key, Counts: domain.Counts{1, 1}}, seq2))
	assert.Equal(t, seq2, s.Seq(key))
}

func TestApplyLocalEdit_Note(t *testing.T) {
	s := tracker.NewLogStore()
	note := "travel"
	s.ApplyLocalEdit("2025-03-15", domain.Counts{1}, &note)
	note = "changed after the call"
	_, l := s.ApplyLocalEdit("2025-03-15", domain.Counts{1, 1}, nil)

	require.NotNil(t, l.Note)
	assert.Equal(t, "travel", *l.Note)
}

func TestAddLocal(t *testing.T) {
	s := tracker.NewLogStore()
	s.AddLocal("2025-03-15", domain.Counts{2, 0, 0, 0, 1, 0}, nil)
	l := s.AddLocal("2025-03-15", domain.Counts{1}, nil)
	assert.Equal(t, domain.Counts{3, 0, 0, 0, 1, 0}, l.Counts)
	assert.NotZero(t, s.Seq("2025-03-15"))
}
