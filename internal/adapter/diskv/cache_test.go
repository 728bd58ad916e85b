package diskv_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"namaz/internal/adapter/diskv"
	"namaz/internal/domain"
)

func TestCache_Logs(t *testing.T) {
	dir := t.TempDir()
	c := diskv.Open(dir)

	logs, err := c.Logs()
	require.NoError(t, err)
	assert.Empty(t, logs)

	note := "travel"
	require.NoError(t, c.PutLog(domain.DailyLog{Date: "2025-03-15", Counts: domain.Counts{1, 1, 1, 1, 1, 0}, Note: &note}))
	require.NoError(t, c.PutLog(domain.DailyLog{Date: "2025-02-01"}))
	require.NoError(t, c.PutLog(domain.DailyLog{Date: "2025-03-15", Counts: domain.Counts{1}}))
	assert.FileExists(t, filepath.Join(dir, "logs", "2025", "03", "15"))

	// A second instance sees what the first wrote.
	logs, err = diskv.Open(dir).Logs()
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "2025-02-01", logs[0].Date)
	assert.True(t, logs[0].Counts.IsZero())
	assert.Equal(t, domain.Counts{1}, logs[1].Counts)

	require.NoError(t, c.DeleteLog("2025-02-01"))
	require.NoError(t, c.DeleteLog("2025-02-02"))
	logs, err = c.Logs()
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "2025-03-15", logs[0].Date)

	assert.ErrorIs(t, c.PutLog(domain.DailyLog{Date: "2025-3-1"}), domain.ErrMalformedKey)
}

func TestCache_Profile(t *testing.T) {
	c := diskv.Open(t.TempDir())

	_, ok, err := c.Profile()
	require.NoError(t, err)
	assert.False(t, ok)

	want := domain.Profile{MukellefSince: "2010-01-01", KazaTotals: domain.Counts{3, 0, 0, 0, 1, 0}}
	require.NoError(t, c.PutProfile(want))
	require.NoError(t, c.PutLog(domain.DailyLog{Date: "2025-03-15"}))

	got, ok, err := c.Profile()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, *got)

	logs, err := c.Logs()
	require.NoError(t, err)
	assert.Len(t, logs, 1, "the profile is not listed as a log")

	require.NoError(t, c.Clear())
	_, ok, err = c.Profile()
	require.NoError(t, err)
	assert.False(t, ok)
}
