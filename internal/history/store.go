// Package history is the local resilience cache: a bounded per-station play
// log with duplicate suppression, persisted in SQLite. The remote service is
// the system of record; this store keeps cycles useful while offline.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/audiosolutions/radiowatch/internal/song"
)

// MaxEntriesPerStation caps each station's play log; the oldest rows are
// evicted first.
const MaxEntriesPerStation = 1000

const lastCycleKey = "last_cycle_at"

// Store is the local history and dedup store. It is mutated only by the
// scheduler's single worker.
type Store struct {
	db *sql.DB
}

// Entry is one accepted observation for a station.
type Entry struct {
	Song       song.Song
	ObservedAt time.Time
}

// Snapshot is the last capture result for a station, kept for reporting.
type Snapshot struct {
	StationKey  string
	StationName string
	URL         string
	NowPlaying  string
	Error       string
	CapturedAt  time.Time
}

// Open opens (or creates) the store at path. A corrupt or unmigratable
// database is moved aside and replaced with a fresh one: local history is a
// cache and its loss is never fatal.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	st, err := open(path)
	if err == nil {
		return st, nil
	}

	// Corrupt store: move it aside and start empty.
	if renameErr := os.Rename(path, path+".corrupt"); renameErr != nil && !os.IsNotExist(renameErr) {
		return nil, fmt.Errorf("move corrupt db aside: %w (open error: %v)", renameErr, err)
	}
	return open(path)
}

func open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordIfChanged appends an observation for key unless it matches the most
// recent stored entry. Returns whether an append happened. The per-station
// cap is enforced after each append.
func (s *Store) RecordIfChanged(ctx context.Context, key string, sg song.Song, observedAt time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(key) == "" {
		return false, errors.New("station key is required")
	}
	if observedAt.IsZero() {
		return false, errors.New("observed_at is required")
	}

	var lastTitle, lastArtist string
	err := s.db.QueryRowContext(ctx, `
		SELECT title, artist FROM plays
		WHERE station_key = ?
		ORDER BY id DESC LIMIT 1
	`, key).Scan(&lastTitle, &lastArtist)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("read last play: %w", err)
	}
	if err == nil && lastTitle == sg.Title && lastArtist == sg.Artist {
		return false, nil
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO plays (station_key, title, artist, observed_at)
		VALUES (?, ?, ?, ?)
	`, key, sg.Title, sg.Artist, formatTime(observedAt)); err != nil {
		return false, fmt.Errorf("insert play: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM plays
		WHERE station_key = ? AND id NOT IN (
			SELECT id FROM plays WHERE station_key = ? ORDER BY id DESC LIMIT ?
		)
	`, key, key, MaxEntriesPerStation); err != nil {
		return false, fmt.Errorf("trim plays: %w", err)
	}

	return true, nil
}

// RecentPlays returns up to limit entries for key, newest first.
func (s *Store) RecentPlays(ctx context.Context, key string, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = MaxEntriesPerStation
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT title, artist, observed_at FROM plays
		WHERE station_key = ?
		ORDER BY id DESC LIMIT ?
	`, key, limit)
	if err != nil {
		return nil, fmt.Errorf("get plays: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var observedAt string
		if err := rows.Scan(&e.Song.Title, &e.Song.Artist, &observedAt); err != nil {
			return nil, fmt.Errorf("scan play: %w", err)
		}
		e.ObservedAt = parseTime(observedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plays: %w", err)
	}

	return entries, nil
}

// PlayCount returns the number of stored entries for key.
func (s *Store) PlayCount(ctx context.Context, key string) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM plays WHERE station_key = ?", key).Scan(&n); err != nil {
		return 0, fmt.Errorf("count plays: %w", err)
	}
	return n, nil
}

// SaveSnapshot upserts the latest capture result for a station.
func (s *Store) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(snap.StationKey) == "" {
		return errors.New("station key is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (station_key, station_name, url, now_playing, error, captured_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(station_key) DO UPDATE SET
			station_name = excluded.station_name,
			url = excluded.url,
			now_playing = excluded.now_playing,
			error = excluded.error,
			captured_at = excluded.captured_at
	`, snap.StationKey, snap.StationName, snap.URL, snap.NowPlaying, snap.Error, formatTime(snap.CapturedAt))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Snapshots returns the last capture per station, ordered by station key.
func (s *Store) Snapshots(ctx context.Context) ([]Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT station_key, station_name, url, now_playing, error, captured_at
		FROM snapshots ORDER BY station_key
	`)
	if err != nil {
		return nil, fmt.Errorf("get snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		var capturedAt string
		if err := rows.Scan(&snap.StationKey, &snap.StationName, &snap.URL, &snap.NowPlaying, &snap.Error, &capturedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.CapturedAt = parseTime(capturedAt)
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	return snaps, nil
}

// SetLastCycle records when the last full cycle completed.
func (s *Store) SetLastCycle(ctx context.Context, at time.Time) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, lastCycleKey, formatTime(at))
	if err != nil {
		return fmt.Errorf("set last cycle: %w", err)
	}
	return nil
}

// LastCycle returns the completion time of the last cycle, or the zero time
// when no cycle has completed yet.
func (s *Store) LastCycle(ctx context.Context) (time.Time, error) {
	if s == nil || s.db == nil {
		return time.Time{}, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", lastCycleKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get last cycle: %w", err)
	}
	return parseTime(value), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
