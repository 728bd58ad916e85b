// Package tracker is the client-side engine: a date-keyed projection of daily
// logs kept in step with the remote store through optimistic local edits.
package tracker

import (
	"sort"
	"sync"

	"namaz/internal/domain"
)

// LogStore maps date-keys to daily logs. Every local mutation advances a store
// version; remote results are accepted per key only when no newer local
// mutation happened since the request was issued. The lock is never held
// across a remote call.
type LogStore struct {
	mu      sync.Mutex
	logs    map[string]domain.DailyLog
	version uint64
	// edited is the version of the last local edit per key.
	edited  map[string]uint64
	// touched is the version of the last local edit or settled push per key.
	touched map[string]uint64
	pending map[string]int
}

// NewLogStore returns an empty store.
func NewLogStore() *LogStore {
	return &LogStore{
		logs:    make(map[string]domain.DailyLog),
		edited:  make(map[string]uint64),
		touched: make(map[string]uint64),
		pending: make(map[string]int),
	}
}

// Get returns the log for key. ok is false when there is no log, which is
// different from a log with all slots at zero.
func (s *LogStore) Get(key string) (domain.DailyLog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.logs[key]
	return l, ok
}

// InRange returns the held logs with start <= key <= end, ascending.
func (s *LogStore) InRange(start, end domain.Date) []domain.DailyLog {
	lo, hi := start.Key(), end.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.DailyLog
	for k, l := range s.logs {
		if k >= lo && k <= hi {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Version returns the current store version. Capture it before issuing a
// range fetch and pass it to ReplaceRange.
func (s *LogStore) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Seq returns the version of the last local edit of key, zero if never edited.
func (s *LogStore) Seq(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.edited[key]
}

// Seed loads logs without versioning, for restoring a cached projection.
func (s *LogStore) Seed(logs []domain.DailyLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range logs {
		s.logs[l.Date] = l
	}
}

// ApplyLocalEdit writes an optimistic full replace of key's slots and marks a
// push as in flight. A nil note keeps the held one. The returned sequence tags
// the push; hand it back to Settle and ApplyRemote.
func (s *LogStore) ApplyLocalEdit(key string, counts domain.Counts, note *string) (uint64, domain.DailyLog) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.logs[key]
	if !ok {
		l = domain.DailyLog{Date: key}
	}
	l.Counts = counts
	if note != nil {
		n := *note
		l.Note = &n
	}
	s.logs[key] = l

	seq := s.bump(key)
	s.edited[key] = seq
	s.pending[key]++
	return seq, l
}

// AddLocal adds deltas to key's log in memory only. Used when a kaza
// submission cannot reach the remote store.
func (s *LogStore) AddLocal(key string, deltas domain.Counts, note *string) domain.DailyLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.logs[key]
	if !ok {
		l = domain.DailyLog{Date: key}
	}
	l.Counts = l.Counts.Add(deltas)
	if note != nil {
		n := *note
		l.Note = &n
	}
	s.logs[key] = l
	s.edited[key] = s.bump(key)
	return l
}

// ApplyRemote stores a log returned for a request tagged with sentSeq. It is
// dropped when key was edited locally after the request was sent.
func (s *LogStore) ApplyRemote(log domain.DailyLog, sentSeq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.edited[log.Date] != sentSeq {
		return false
	}
	s.logs[log.Date] = log
	return true
}

// Begin marks a push for key in flight without editing it. Range loads leave
// key alone until the matching Settle.
func (s *LogStore) Begin(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[key]++
	s.bump(key)
}

// Settle ends the in-flight push for key started by ApplyLocalEdit or Begin.
func (s *LogStore) Settle(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending[key] > 0 {
		s.pending[key]--
	}
	if s.pending[key] == 0 {
		delete(s.pending, key)
	}
	s.bump(key)
}

// ReplaceRange installs the result of a range fetch issued at version since.
// Every key in [start, end] takes the fetched log, and keys without one are
// removed. Keys touched locally after since, or with a push in flight, keep
// their local state. It returns the number of keys left untouched that way.
func (s *LogStore) ReplaceRange(start, end domain.Date, logs []domain.DailyLog, since uint64) int {
	fetched := make(map[string]domain.DailyLog, len(logs))
	for _, l := range logs {
		fetched[l.Date] = l
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := 0
	for d := start; !d.After(end); d = d.AddDays(1) {
		key := d.Key()
		if s.touched[key] > since || s.pending[key] > 0 {
			kept++
			continue
		}
		if l, ok := fetched[key]; ok {
			s.logs[key] = l
		} else {
			delete(s.logs, key)
		}
	}
	return kept
}

func (s *LogStore) bump(key string) uint64 {
	s.version++
	s.touched[key] = s.version
	return s.version
}
