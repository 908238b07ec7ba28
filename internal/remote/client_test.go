package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: baseURL, APIKey: "anon-key", MaxRetries: 1}, testLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{}, testLogger()); err == nil {
		t.Fatalf("expected error for missing base url")
	}
}

func TestEnabledStations(t *testing.T) {
	var gotPath, gotFilter, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFilter = r.URL.Query().Get("enabled")
		gotKey = r.Header.Get("apikey")
		_, _ = w.Write([]byte(`[
			{"id": 7, "name": "Club FM Recife", "scrape_url": "https://clubefm.com.br/recife", "enabled": true},
			{"id": "a1b2", "name": "Tuner FM", "scrape_url": "https://mytuner-radio.com/radio/x", "enabled": true}
		]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	records, err := c.EnabledStations(context.Background())
	if err != nil {
		t.Fatalf("enabled stations: %v", err)
	}

	if gotPath != "/rest/v1/radio_stations" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotFilter != "eq.true" {
		t.Fatalf("unexpected filter: %s", gotFilter)
	}
	if gotKey != "anon-key" {
		t.Fatalf("apikey header not set")
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "7" || records[1].ID != "a1b2" {
		t.Fatalf("ids not decoded: %+v", records)
	}
}

func TestPushObservationNowPlaying(t *testing.T) {
	var inserts []string
	var dedupQueries int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			dedupQueries++
			_, _ = w.Write([]byte(`[]`))
			return
		}
		body, _ := io.ReadAll(r.Body)
		inserts = append(inserts, r.URL.Path+" "+string(body))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	err := c.PushObservation(context.Background(), Observation{
		StationName: "Club FM Recife",
		StationID:   "7",
		Title:       "Asa Branca",
		Artist:      "Luiz Gonzaga",
		NowPlaying:  true,
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}

	// Now-playing skips the dedup window check entirely.
	if dedupQueries != 0 {
		t.Fatalf("now-playing should not run a dedup query")
	}
	if len(inserts) != 2 {
		t.Fatalf("expected songs + history inserts, got %v", inserts)
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(inserts[0][len("/rest/v1/scraped_songs "):]), &record); err != nil {
		t.Fatalf("decode insert: %v", err)
	}
	if record["is_now_playing"] != true || record["source"] != SourceTag || record["station_id"] != "7" {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestPushObservationDedupWindow(t *testing.T) {
	var inserts int
	var gotCreatedAt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			gotCreatedAt = r.URL.Query().Get("created_at")
			_, _ = w.Write([]byte(`[{"id": 1}]`))
			return
		}
		inserts++
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	err := c.PushObservation(context.Background(), Observation{
		StationName: "Club FM Recife",
		Title:       "Asa Branca",
		Artist:      "Luiz Gonzaga",
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}

	if inserts != 0 {
		t.Fatalf("duplicate within window must not insert")
	}
	want := "gte." + fixed.Add(-DedupWindow).Format(time.RFC3339)
	if gotCreatedAt != want {
		t.Fatalf("created_at filter = %q, want %q", gotCreatedAt, want)
	}
}

func TestPushObservationHistoricalInsert(t *testing.T) {
	var tables []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		tables = append(tables, r.URL.Path)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	err := c.PushObservation(context.Background(), Observation{
		StationName: "Tuner FM",
		Title:       "Imagine",
		Artist:      "John Lennon",
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(tables) != 2 || tables[0] != "/rest/v1/scraped_songs" || tables[1] != "/rest/v1/song_history" {
		t.Fatalf("unexpected inserts: %v", tables)
	}
}

func TestPushObservationConflictIsNoOp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	err := c.PushObservation(context.Background(), Observation{
		StationName: "Tuner FM",
		Title:       "Imagine",
		Artist:      "John Lennon",
	})
	if err != nil {
		t.Fatalf("conflict should be treated as idempotent no-op, got %v", err)
	}
}

func TestDoRetriesTransientFailure(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.EnabledStations(context.Background()); err != nil {
		t.Fatalf("expected retry to recover: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, APIKey: "k", MaxRetries: 4}, testLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	// First call exhausts retries; enough consecutive failures trip the
	// breaker, so the next call short-circuits with ErrUnavailable.
	if _, err := c.EnabledStations(context.Background()); err == nil {
		t.Fatalf("expected failure")
	}
	if _, err := c.EnabledStations(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized) // reachable even when auth fails
	}))

	c := newTestClient(t, srv.URL)
	if !c.Reachable(context.Background()) {
		t.Fatalf("expected reachable")
	}

	srv.Close()
	if c.Reachable(context.Background()) {
		t.Fatalf("expected unreachable after server close")
	}
}
