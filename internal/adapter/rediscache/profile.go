// Package rediscache caches obligation profiles in Redis in front of the
// primary repository.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"namaz/internal/domain"
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Username string
	Password string
	TTL      time.Duration
}

// Store is the subset of the go-redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// Repository wraps a profile and kaza repository. Profiles are read through
// the cache under a per-user version; every write goes to the inner repository
// first and then bumps the version, so an entry filled from a read that raced
// the write is never served. Redis failures are logged and fall through to the
// inner repository.
type Repository struct {
	profiles domain.ProfileRepository
	kaza     domain.KazaRepository
	rdb      Store
	ttl      time.Duration
	logger   zerolog.Logger
}

var (
	_ domain.ProfileRepository = (*Repository)(nil)
	_ domain.KazaRepository    = (*Repository)(nil)
)

// NewClient connects to Redis and checks the connection.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// New returns a caching decorator. A zero ttl means ten minutes.
func New(profiles domain.ProfileRepository, kaza domain.KazaRepository, rdb Store, ttl time.Duration, logger zerolog.Logger) *Repository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Repository{profiles: profiles, kaza: kaza, rdb: rdb, ttl: ttl, logger: logger}
}

func versionKey(userID int64) string {
	return fmt.Sprintf("namaz:profile:%d:version", userID)
}

func profileKey(userID int64, version string) string {
	return fmt.Sprintf("namaz:profile:%d:v%s", userID, version)
}

// GetProfile serves the profile from Redis, loading and caching it on a miss.
func (r *Repository) GetProfile(ctx context.Context, userID int64) (*domain.Profile, error) {
	version, err := r.rdb.Get(ctx, versionKey(userID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		version = "0"
	case err != nil:
		r.logger.Warn().Err(err).Int64("user_id", userID).Msg("redis get version")
		return r.profiles.GetProfile(ctx, userID)
	}

	key := profileKey(userID, version)
	val, err := r.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p domain.Profile
		if err := json.Unmarshal(val, &p); err == nil {
			return &p, nil
		}
		r.logger.Warn().Str("key", key).Msg("dropping undecodable cached profile")
	case !errors.Is(err, redis.Nil):
		r.logger.Warn().Err(err).Str("key", key).Msg("redis get")
	}

	p, err := r.profiles.GetProfile(ctx, userID)
	if err != nil || p == nil {
		return p, err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	if err := r.rdb.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("redis set")
	}
	return p, nil
}

// UpdateProfileDates writes through and invalidates.
func (r *Repository) UpdateProfileDates(ctx context.Context, userID int64, dates domain.ProfileDates) error {
	if err := r.profiles.UpdateProfileDates(ctx, userID, dates); err != nil {
		return err
	}
	r.invalidate(ctx, userID)
	return nil
}

// ApplyKaza writes through and invalidates, since kaza changes the totals.
func (r *Repository) ApplyKaza(ctx context.Context, userID int64, dateKey string, deltas domain.Counts, note *string) (domain.Counts, *domain.DailyLog, error) {
	totals, log, err := r.kaza.ApplyKaza(ctx, userID, dateKey, deltas, note)
	if err != nil {
		return totals, log, err
	}
	r.invalidate(ctx, userID)
	return totals, log, nil
}

// invalidate moves the user to a new version. Entries under older versions
// expire on their own.
func (r *Repository) invalidate(ctx context.Context, userID int64) {
	if err := r.rdb.Incr(ctx, versionKey(userID)).Err(); err != nil {
		r.logger.Warn().Err(err).Int64("user_id", userID).Msg("redis incr")
	}
}
