// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"namaz/internal/domain"
)

type logKey struct {
	userID int64
	date   string
}

// DB implements an in-memory database storage.
type DB struct {
	mu       sync.Mutex
	logs     map[logKey]domain.DailyLog
	profiles map[int64]domain.Profile
	users    []*domain.User
	sessions map[string]*domain.Session

	userIDCounter int64
	now           func() time.Time
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		logs:     make(map[logKey]domain.DailyLog),
		profiles: make(map[int64]domain.Profile),
		sessions: make(map[string]*domain.Session),
		now:      time.Now,
	}
}

// Ensure interfaces are met.
var _ domain.LogRepository = (*DB)(nil)
var _ domain.ProfileRepository = (*DB)(nil)
var _ domain.KazaRepository = (*DB)(nil)
var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

// --- LogRepository ---

// ListLogs returns the user's logs with startKey <= date <= endKey, ascending.
func (db *DB) ListLogs(ctx context.Context, userID int64, startKey, endKey string) ([]domain.DailyLog, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	// Keys are zero-padded so string order is date order.
	var result []domain.DailyLog
	for k, l := range db.logs {
		if k.userID == userID && k.date >= startKey && k.date <= endKey {
			result = append(result, l)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date < result[j].Date
	})
	return result, nil
}

// UpsertLog replaces the slot values of the day's log. A nil note keeps the
// stored one. Repeating an upsert leaves the stored log, UpdatedAt included,
// unchanged.
func (db *DB) UpsertLog(ctx context.Context, userID int64, dateKey string, counts domain.Counts, note *string) (*domain.DailyLog, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	k := logKey{userID, dateKey}
	l, ok := db.logs[k]
	if ok && l.Counts == counts && (note == nil || (l.Note != nil && *l.Note == *note)) {
		return &l, nil
	}
	if !ok {
		l = domain.DailyLog{UserID: userID, Date: dateKey}
	}
	l.Counts = counts
	if note != nil {
		l.Note = copyNote(note)
	}
	l.UpdatedAt = db.now().UTC()
	db.logs[k] = l
	return &l, nil
}

// --- ProfileRepository ---

// GetProfile returns the user's profile; a user without one gets an empty profile.
func (db *DB) GetProfile(ctx context.Context, userID int64) (*domain.Profile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	p := db.profiles[userID]
	return &p, nil
}

// UpdateProfileDates writes the provided dates, leaving nil fields untouched.
func (db *DB) UpdateProfileDates(ctx context.Context, userID int64, dates domain.ProfileDates) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.profiles[userID] = dates.Apply(db.profiles[userID])
	return nil
}

// --- KazaRepository ---

// ApplyKaza adds deltas to both the kaza totals and the day's log under one lock.
func (db *DB) ApplyKaza(ctx context.Context, userID int64, dateKey string, deltas domain.Counts, note *string) (domain.Counts, *domain.DailyLog, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	p := db.profiles[userID]
	p.KazaTotals = p.KazaTotals.Add(deltas)
	db.profiles[userID] = p

	k := logKey{userID, dateKey}
	l, ok := db.logs[k]
	if !ok {
		l = domain.DailyLog{UserID: userID, Date: dateKey}
	}
	l.Counts = l.Counts.Add(deltas)
	if note != nil {
		l.Note = copyNote(note)
	}
	l.UpdatedAt = db.now().UTC()
	db.logs[k] = l
	return p.KazaTotals, &l, nil
}

func copyNote(note *string) *string {
	n := *note
	return &n
}

// --- UserRepository ---

// GetByEmail retrieves a user by email.
func (db *DB) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Email == email {
			return u, nil
		}
	}
	// Return nil if not found
	return nil, nil
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

// Create creates a new user.
func (db *DB) Create(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Email == email {
			return nil, errors.New("user already exists")
		}
	}

	db.userIDCounter++
	u := &domain.User{
		ID:           db.userIDCounter,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    db.now().UTC(),
	}
	db.users = append(db.users, u)
	return u, nil
}

// --- SessionRepository ---

// SessionRepo implements session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, userID int64, tokenID string, expiresAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.sessions[tokenID] = &domain.Session{
		TokenID:   tokenID,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: r.db.now().UTC(),
	}
	return nil
}

// GetByTokenID retrieves a session by its token id.
func (r *SessionRepo) GetByTokenID(ctx context.Context, tokenID string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if s, ok := r.db.sessions[tokenID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, tokenID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, tokenID)
	return nil
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := r.db.now()
	var n int64
	for k, v := range r.db.sessions {
		if now.After(v.ExpiresAt) {
			delete(r.db.sessions, k)
			n++
		}
	}
	return n, nil
}
