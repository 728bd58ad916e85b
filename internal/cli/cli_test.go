package cli_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapthttp "namaz/internal/adapter/http"
	"namaz/internal/adapter/memory"
	"namaz/internal/app"
	"namaz/internal/cli"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mem := memory.New()
	authSvc := app.NewAuthService(mem, mem.NewSessionRepo(), app.TokenConfig{Secret: "test", TTL: time.Hour})
	srv := adapthttp.New(
		app.NewLogService(mem, mem, nil),
		app.NewProfileService(mem, nil),
		app.NewCalendarService(mem, mem),
		authSvc,
		zerolog.Nop(),
	)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// writeConfig points the CLI at serverURL with a private cache.
func writeConfig(t *testing.T, serverURL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "namaz.yaml")
	cfg := fmt.Sprintf("server: %s\ncache: %s\n", serverURL, filepath.Join(dir, "cache"))
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func run(t *testing.T, cfgPath string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := cli.New()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

type dayJSON struct {
	Date  string `json:"date"`
	State string `json:"state"`
	Log   *struct {
		Counts map[string]int `json:"counts"`
		Note   *string        `json:"note"`
	} `json:"log"`
}

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), s)
	return v
}

func TestCLI_Session(t *testing.T) {
	ts := newServer(t)
	cfg := writeConfig(t, ts.URL)

	out, _, err := run(t, cfg, "signup", "--email", "a@example.com", "--password", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "signed up as a@example.com")

	raw, err := os.ReadFile(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "token:")

	out, stderr, err := run(t, cfg, "set", "2025-03-15", "--sabah", "1", "--ogle", "1", "--ikindi", "1", "--aksam", "1", "--yatsi", "1", "--note", "travel", "--json")
	require.NoError(t, err)
	assert.Empty(t, stderr)
	day := decode[dayJSON](t, out)
	assert.Equal(t, "all-logged", day.State)
	require.NotNil(t, day.Log)
	assert.Equal(t, "travel", *day.Log.Note)

	// A flag-less slot keeps its value.
	out, _, err = run(t, cfg, "set", "2025-03-15", "--ogle", "0", "--json")
	require.NoError(t, err)
	day = decode[dayJSON](t, out)
	assert.Equal(t, "partial", day.State)
	assert.Equal(t, 1, day.Log.Counts["sabah"])
	assert.Equal(t, 0, day.Log.Counts["ogle"])

	out, _, err = run(t, cfg, "toggle", "2025-03-15", "ogle", "--json")
	require.NoError(t, err)
	assert.Equal(t, "all-logged", decode[dayJSON](t, out).State)

	out, _, err = run(t, cfg, "month", "2025-03", "--json")
	require.NoError(t, err)
	month := decode[struct {
		Month string       `json:"month"`
		Weeks [][7]dayJSON `json:"weeks"`
	}](t, out)
	assert.Equal(t, "2025-03", month.Month)
	require.Len(t, month.Weeks, 6)
	assert.Empty(t, month.Weeks[0][5].Date, "March 2025 starts on a Saturday")
	assert.Equal(t, "2025-03-01", month.Weeks[0][6].Date)
	assert.Equal(t, "2025-03-15", month.Weeks[2][6].Date)
	assert.Equal(t, "all-logged", month.Weeks[2][6].State)
	assert.Equal(t, "empty", month.Weeks[2][5].State)

	out, _, err = run(t, cfg, "debt", "--json")
	require.NoError(t, err)
	assert.Equal(t, false, decode[map[string]any](t, out)["defined"])

	_, _, err = run(t, cfg, "profile", "--mukellef", "2010-01-01", "--started", "2015-01-01")
	require.NoError(t, err)

	out, _, err = run(t, cfg, "kaza", "--sabah", "2", "--date", "2025-03-10", "--json")
	require.NoError(t, err)
	kaza := decode[struct {
		Outcome    string         `json:"outcome"`
		KazaTotals map[string]int `json:"kazaTotals"`
		Debt       struct {
			Defined  bool           `json:"defined"`
			DaysDiff int            `json:"daysDiff"`
			Owed     map[string]int `json:"owed"`
		} `json:"debt"`
	}](t, out)
	assert.Equal(t, "synced", kaza.Outcome)
	assert.Equal(t, 2, kaza.KazaTotals["sabah"])
	assert.True(t, kaza.Debt.Defined)
	assert.Equal(t, 1826, kaza.Debt.DaysDiff)
	assert.Equal(t, 1824, kaza.Debt.Owed["sabah"])
	assert.Equal(t, 1826, kaza.Debt.Owed["ogle"])

	out, _, err = run(t, cfg, "month", "2025-03", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"range-complete"`)
	assert.NotContains(t, out, `"all-logged"`, "range-complete takes precedence once the range covers March")

	_, _, err = run(t, cfg, "kaza", "--vitr", "1")
	assert.Error(t, err, "vitr has no kaza flag")

	_, _, err = run(t, cfg, "set", "2999-01-01", "--sabah", "1")
	assert.ErrorContains(t, err, "future days cannot be edited")

	_, _, err = run(t, cfg, "set", "2025-3-1", "--sabah", "1")
	assert.ErrorContains(t, err, "malformed date key")
}

func TestCLI_Offline(t *testing.T) {
	ts := newServer(t)
	cfg := writeConfig(t, ts.URL)

	_, _, err := run(t, cfg, "signup", "--email", "b@example.com", "--password", "pw")
	require.NoError(t, err)
	_, _, err = run(t, cfg, "set", "2025-03-15", "--sabah", "1")
	require.NoError(t, err)

	ts.Close()

	_, stderr, err := run(t, cfg, "set", "2025-03-16", "--ogle", "1", "--json")
	require.NoError(t, err)
	assert.Contains(t, stderr, "server unreachable: saved locally")

	out, stderr, err := run(t, cfg, "day", "2025-03-16", "--json")
	require.NoError(t, err)
	assert.Contains(t, stderr, "showing cached data")
	day := decode[dayJSON](t, out)
	require.NotNil(t, day.Log)
	assert.Equal(t, 1, day.Log.Counts["ogle"])

	out, _, err = run(t, cfg, "kaza", "--yatsi", "3", "--date", "2025-03-16", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"outcome": "degraded"`)

	out, _, err = run(t, cfg, "profile", "--json")
	require.NoError(t, err)
	assert.Equal(t, float64(3), decode[map[string]any](t, out)["kazaTotals"].(map[string]any)["yatsi"])

	out, _, err = run(t, cfg, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "signed out")

	out, _, err = run(t, cfg, "day", "2025-03-15", "--json")
	require.NoError(t, err)
	day = decode[dayJSON](t, out)
	assert.Nil(t, day.Log, "logout clears the cache")
	assert.Equal(t, "empty", day.State)
}

func TestCLI_NotSignedIn(t *testing.T) {
	ts := newServer(t)
	cfg := writeConfig(t, ts.URL)

	_, stderr, err := run(t, cfg, "set", "2025-03-15", "--sabah", "1")
	require.NoError(t, err)
	assert.Contains(t, stderr, "saved locally only")

	_, _, err = run(t, cfg, "watch")
	assert.ErrorContains(t, err, "not signed in")

	_, _, err = run(t, cfg, "login", "--email", "nobody@example.com", "--password", "pw")
	assert.ErrorContains(t, err, "invalid email or password")

	_, _, err = run(t, cfg, "month", "March")
	assert.ErrorContains(t, err, "YYYY-MM")
}
