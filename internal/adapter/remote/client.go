// Package remote is the HTTP client for the namaz API. It implements
// tracker.Remote and the account calls used by the CLI.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"namaz/internal/domain"
	"namaz/internal/tracker"
)

var _ tracker.Remote = (*Client)(nil)

// Client talks to a namaz server. The zero value is not usable; call New.
type Client struct {
	base string
	http *http.Client
}

// New returns a client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/") + "/api",
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// --- Accounts ---

// Signup creates an account and returns its bearer token.
func (c *Client) Signup(ctx context.Context, email, password string) (tracker.Credential, error) {
	return c.token(ctx, "/signup", email, password)
}

// Login returns a bearer token for an existing account.
func (c *Client) Login(ctx context.Context, email, password string) (tracker.Credential, error) {
	return c.token(ctx, "/login", email, password)
}

// Logout revokes cred on the server.
func (c *Client) Logout(ctx context.Context, cred tracker.Credential) error {
	return c.do(ctx, cred, http.MethodPost, "/logout", nil, nil)
}

func (c *Client) token(ctx context.Context, path, email, password string) (tracker.Credential, error) {
	body := map[string]string{"email": email, "password": password}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, "", http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("%w: empty token", domain.ErrRemoteUnavailable)
	}
	return tracker.Credential(resp.Token), nil
}

// --- Logs ---

// FetchLogs returns the logs in [startKey, endKey].
func (c *Client) FetchLogs(ctx context.Context, cred tracker.Credential, startKey, endKey string) ([]domain.DailyLog, error) {
	q := url.Values{"start": {startKey}, "end": {endKey}}
	var resp struct {
		Logs []domain.DailyLog `json:"logs"`
	}
	if err := c.do(ctx, cred, http.MethodGet, "/logs?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	for _, l := range resp.Logs {
		if err := checkLog(&l, ""); err != nil {
			return nil, err
		}
		if l.Date < startKey || l.Date > endKey {
			return nil, fmt.Errorf("%w: log %s outside %s..%s", domain.ErrRemoteUnavailable, l.Date, startKey, endKey)
		}
	}
	return resp.Logs, nil
}

// PushLog replaces the slots of dateKey.
func (c *Client) PushLog(ctx context.Context, cred tracker.Credential, dateKey string, counts domain.Counts, note *string) (*domain.DailyLog, error) {
	body := struct {
		Date   string        `json:"date"`
		Counts domain.Counts `json:"counts"`
		Note   *string       `json:"note,omitempty"`
	}{dateKey, counts, note}
	var resp struct {
		Log *domain.DailyLog `json:"log"`
	}
	if err := c.do(ctx, cred, http.MethodPost, "/log", body, &resp); err != nil {
		return nil, err
	}
	if err := checkLog(resp.Log, dateKey); err != nil {
		return nil, err
	}
	return resp.Log, nil
}

// PushKaza adds deltas to the kaza totals and to the log of dateKey.
func (c *Client) PushKaza(ctx context.Context, cred tracker.Credential, deltas domain.Counts, dateKey string, note *string) (domain.Counts, *domain.DailyLog, error) {
	body := struct {
		Counts domain.Counts `json:"counts"`
		Date   string        `json:"date,omitempty"`
		Note   *string       `json:"note,omitempty"`
	}{deltas, dateKey, note}
	var resp struct {
		KazaTotals *domain.Counts   `json:"kazaTotals"`
		Log        *domain.DailyLog `json:"log"`
	}
	if err := c.do(ctx, cred, http.MethodPost, "/kaza", body, &resp); err != nil {
		return domain.Counts{}, nil, err
	}
	if resp.KazaTotals == nil {
		return domain.Counts{}, nil, fmt.Errorf("%w: kaza response without totals", domain.ErrRemoteUnavailable)
	}
	if err := checkLog(resp.Log, dateKey); err != nil {
		return domain.Counts{}, nil, err
	}
	return *resp.KazaTotals, resp.Log, nil
}

// --- Profile ---

// FetchProfile returns the obligation profile.
func (c *Client) FetchProfile(ctx context.Context, cred tracker.Credential) (*domain.Profile, error) {
	var p domain.Profile
	if err := c.do(ctx, cred, http.MethodGet, "/profile", nil, &p); err != nil {
		return nil, err
	}
	for _, v := range []string{p.MukellefSince, p.StartedPrayerAt} {
		if v == "" {
			continue
		}
		if _, err := domain.ParseKey(v); err != nil {
			return nil, fmt.Errorf("%w: profile: %v", domain.ErrRemoteUnavailable, err)
		}
	}
	return &p, nil
}

// PushProfile writes the provided profile dates.
func (c *Client) PushProfile(ctx context.Context, cred tracker.Credential, dates domain.ProfileDates) error {
	return c.do(ctx, cred, http.MethodPut, "/profile", dates, nil)
}

// checkLog rejects a missing log, a malformed date-key, or one other than
// want when want is set.
func checkLog(l *domain.DailyLog, want string) error {
	if l == nil {
		return fmt.Errorf("%w: response without log", domain.ErrRemoteUnavailable)
	}
	if _, err := domain.ParseKey(l.Date); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	if want != "" && l.Date != want {
		return fmt.Errorf("%w: got log for %s, want %s", domain.ErrRemoteUnavailable, l.Date, want)
	}
	return nil
}

// do sends a JSON request and decodes a JSON response into out when out is
// not nil. 401 maps to domain.ErrUnauthorized; every other failure wraps
// domain.ErrRemoteUnavailable.
func (c *Client) do(ctx context.Context, cred tracker.Credential, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred.Present() {
		req.Header.Set("Authorization", "Bearer "+string(cred))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, errorMessage(resp.Body))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", domain.ErrRemoteUnavailable, path, err)
	}
	return nil
}

// StatusError is a non-2xx response other than 401.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// Unwrap makes every status failure match domain.ErrRemoteUnavailable.
func (e *StatusError) Unwrap() error { return domain.ErrRemoteUnavailable }

// IsConflict reports whether err is a 409 response.
func IsConflict(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusConflict
}

func errorMessage(r io.Reader) string {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(r, 4096)).Decode(&body)
	return body.Error
}
