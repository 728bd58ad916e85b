// Package diskv keeps the client-side projection of logs and profile on disk
// so the next process starts from the last known state.
package diskv

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/peterbourgon/diskv/v3"

	"namaz/internal/domain"
	"namaz/internal/tracker"
)

const (
	logPrefix  = "logs-"
	profileKey = "profile-current"
)

var _ tracker.Cache = (*Cache)(nil)

// Cache is a tracker.Cache backed by diskv. Logs are stored one file per day
// under <base>/logs/YYYY/MM/DD.
type Cache struct {
	d *diskv.Diskv
}

// Open returns a cache rooted at basePath.
func Open(basePath string) *Cache {
	return &Cache{d: diskv.New(diskv.Options{
		BasePath:          basePath,
		AdvancedTransform: keyToPath,
		InverseTransform:  pathToKey,
		CacheSizeMax:      1024 * 1024, // 1MB
	})}
}

// PutLog writes one day's log.
func (c *Cache) PutLog(l domain.DailyLog) error {
	if _, err := domain.ParseKey(l.Date); err != nil {
		return err
	}
	data, err := json.Marshal(l)
	if err != nil {
		return err
	}
	return c.d.Write(logPrefix+l.Date, data)
}

// DeleteLog removes the log of dateKey. A missing log is not an error.
func (c *Cache) DeleteLog(dateKey string) error {
	if !c.d.Has(logPrefix + dateKey) {
		return nil
	}
	if err := c.d.Erase(logPrefix + dateKey); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Logs returns every cached log, ascending by date.
func (c *Cache) Logs() ([]domain.DailyLog, error) {
	cancel := make(chan struct{})
	defer close(cancel)

	var out []domain.DailyLog
	for key := range c.d.KeysPrefix(logPrefix, cancel) {
		val, err := c.d.Read(key)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		var l domain.DailyLog
		if err := json.Unmarshal(val, &l); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// PutProfile writes the obligation profile.
func (c *Cache) PutProfile(p domain.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.d.Write(profileKey, data)
}

// Profile returns the cached profile; ok is false when none was written.
func (c *Cache) Profile() (*domain.Profile, bool, error) {
	if !c.d.Has(profileKey) {
		return nil, false, nil
	}
	val, err := c.d.Read(profileKey)
	if err != nil {
		return nil, false, err
	}
	var p domain.Profile
	if err := json.Unmarshal(val, &p); err != nil {
		return nil, false, fmt.Errorf("decode profile: %w", err)
	}
	return &p, true, nil
}

// Clear removes everything, e.g. after logging out.
func (c *Cache) Clear() error {
	return c.d.EraseAll()
}

// keyToPath maps "logs-2025-03-15" to logs/2025/03 with file name 15.
func keyToPath(key string) *diskv.PathKey {
	parts := strings.Split(key, "-")
	return &diskv.PathKey{
		Path:     parts[:len(parts)-1],
		FileName: parts[len(parts)-1],
	}
}

func pathToKey(pk *diskv.PathKey) string {
	return fmt.Sprintf("%s-%s", strings.Join(pk.Path, "-"), pk.FileName)
}
