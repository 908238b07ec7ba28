// Package remote talks to the Supabase-hosted registry and observation
// tables over their PostgREST interface. The remote side is the system of
// record; every call here is a soft dependency that degrades the cycle to
// local-only recording when it fails.
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

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/sony/gobreaker/v2"

	"github.com/audiosolutions/radiowatch/internal/station"
)

const (
	// SourceTag marks every observation written by this monitor.
	SourceTag = "radiowatch"

	// DedupWindow is the trailing span within which an identical historical
	// observation is treated as already recorded.
	DedupWindow = time.Hour

	defaultTimeout    = 15 * time.Second
	defaultMaxRetries = 3
	probeTimeout      = 3 * time.Second

	stationsTable = "radio_stations"
	songsTable    = "scraped_songs"
	historyTable  = "song_history"
)

// ErrUnavailable reports that the remote service could not be reached; the
// caller should fall back to local-only recording.
var ErrUnavailable = errors.New("remote service unavailable")

// Observation is one record pushed to the remote service.
type Observation struct {
	StationName string
	StationID   string
	Title       string
	Artist      string
	NowPlaying  bool
}

// Config holds remote client settings. APIKey is the pre-configured opaque
// capability; its provenance is the config layer's concern.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries uint64
}

// Client is the PostgREST client with retry and circuit-breaker protection.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	maxRetries uint64
	logger     *log.Logger
	now        func() time.Time
}

// New creates a remote client.
func New(cfg Config, logger *log.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("remote: base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = defaultMaxRetries
	}

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "supabase",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		maxRetries: retries,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// EnabledStations reads the active station records from the remote registry.
func (c *Client) EnabledStations(ctx context.Context) ([]station.Remote, error) {
	query := url.Values{
		"select":  {"id,name,scrape_url,enabled"},
		"enabled": {"eq.true"},
	}

	body, status, err := c.do(ctx, http.MethodGet, stationsTable, query, nil, "")
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("list stations: status %d", status)
	}

	var records []stationRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode stations: %w", err)
	}

	out := make([]station.Remote, 0, len(records))
	for _, rec := range records {
		out = append(out, station.Remote{
			ID:        rec.ID.String(),
			Name:      rec.Name,
			ScrapeURL: rec.ScrapeURL,
			Enabled:   rec.Enabled,
		})
	}
	return out, nil
}

// PushObservation writes one observation. Historical entries already present
// within the dedup window are treated as idempotent no-ops; the now-playing
// slot is always written since it represents current state.
func (c *Client) PushObservation(ctx context.Context, obs Observation) error {
	if obs.StationName == "" || obs.Title == "" {
		return errors.New("remote: station name and title are required")
	}

	if !obs.NowPlaying {
		dup, err := c.existsRecent(ctx, obs)
		if err != nil {
			return err
		}
		if dup {
			return nil
		}
	}

	record := map[string]any{
		"station_name":   obs.StationName,
		"title":          obs.Title,
		"artist":         obs.Artist,
		"is_now_playing": obs.NowPlaying,
		"source":         SourceTag,
	}
	if obs.StationID != "" {
		record["station_id"] = obs.StationID
	}

	_, status, err := c.do(ctx, http.MethodPost, songsTable, nil, record, "return=minimal,resolution=ignore-duplicates")
	if err != nil {
		return fmt.Errorf("push observation: %w", err)
	}
	// Conflict means an identical row landed on the same minute; the remote
	// schema treats that as an idempotent no-op.
	if status != http.StatusCreated && status != http.StatusOK && status != http.StatusConflict && status != http.StatusNoContent {
		return fmt.Errorf("push observation: status %d", status)
	}

	return c.pushHistory(ctx, obs)
}

// pushHistory writes the denormalized rolling-history row.
func (c *Client) pushHistory(ctx context.Context, obs Observation) error {
	record := map[string]any{
		"station_name": obs.StationName,
		"title":        obs.Title,
		"artist":       obs.Artist,
		"source":       SourceTag,
	}

	_, status, err := c.do(ctx, http.MethodPost, historyTable, nil, record, "return=minimal,resolution=ignore-duplicates")
	if err != nil {
		return fmt.Errorf("push history: %w", err)
	}
	if status != http.StatusCreated && status != http.StatusOK && status != http.StatusConflict && status != http.StatusNoContent {
		return fmt.Errorf("push history: status %d", status)
	}
	return nil
}

// existsRecent checks the dedup window for an identical historical
// observation.
func (c *Client) existsRecent(ctx context.Context, obs Observation) (bool, error) {
	since := c.now().Add(-DedupWindow).UTC().Format(time.RFC3339)
	query := url.Values{
		"select":         {"id"},
		"station_name":   {"eq." + obs.StationName},
		"title":          {"eq." + obs.Title},
		"artist":         {"eq." + obs.Artist},
		"is_now_playing": {"eq.false"},
		"created_at":     {"gte." + since},
		"limit":          {"1"},
	}

	body, status, err := c.do(ctx, http.MethodGet, songsTable, query, nil, "")
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	if status != http.StatusOK {
		return false, fmt.Errorf("dedup check: status %d", status)
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return false, fmt.Errorf("decode dedup check: %w", err)
	}
	return len(rows) > 0, nil
}

// Reachable probes the REST root with a short timeout. It bypasses retries
// so the scheduler gets a quick answer at cycle boundaries.
func (c *Client) Reachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rest/v1/", nil)
	if err != nil {
		return false
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode < http.StatusInternalServerError
}

// do executes one table request with retry and circuit-breaker protection
// and returns the response body and status.
func (c *Client) do(ctx context.Context, method, table string, query url.Values, payload any, prefer string) ([]byte, int, error) {
	endpoint := c.baseURL + "/rest/v1/" + table
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var encoded []byte
	if payload != nil {
		var err error
		encoded, err = json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("encode payload: %w", err)
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx)

	var (
		body   []byte
		status int
	)

	operation := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			var reader io.Reader
			if encoded != nil {
				reader = bytes.NewReader(encoded)
			}
			req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
			if err != nil {
				return nil, err
			}
			c.setHeaders(req)
			if encoded != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			if prefer != "" {
				req.Header.Set("Prefer", prefer)
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return nil, err
			}
			// 5xx trips the breaker and is retried.
			if resp.StatusCode >= http.StatusInternalServerError {
				_ = resp.Body.Close()
				return nil, fmt.Errorf("server status %d", resp.StatusCode)
			}
			return resp, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrUnavailable)
			}
			return err
		}

		defer func() { _ = resp.Body.Close() }()
		status = resp.StatusCode
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		return nil
	}

	notify := func(err error, next time.Duration) {
		c.logger.Debug("remote request retrying", "table", table, "err", err, "next", next)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, 0, ErrUnavailable
		}
		return nil, 0, err
	}
	return body, status, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

// stationRecord mirrors one radio_stations row. IDs may arrive as numbers
// or UUID strings depending on the schema, so the field is kept flexible.
type stationRecord struct {
	ID        flexID `json:"id"`
	Name      string `json:"name"`
	ScrapeURL string `json:"scrape_url"`
	Enabled   bool   `json:"enabled"`
}

type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

func (f flexID) String() string {
	return string(f)
}
