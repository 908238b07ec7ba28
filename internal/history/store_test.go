package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/audiosolutions/radiowatch/internal/song"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "radiowatch.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st, path
}

func TestOpenAndMigrate(t *testing.T) {
	st, path := openTestStore(t)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file not created: %v", err)
	}

	var version string
	if err := st.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&version); err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if version != "1" {
		t.Fatalf("unexpected schema version: %s", version)
	}
}

func TestOpenCorruptDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "radiowatch.db")
	if err := os.WriteFile(path, []byte("this is not a sqlite file"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	st, err := Open(path)
	if err != nil {
		t.Fatalf("open over corrupt file: %v", err)
	}
	defer func() { _ = st.Close() }()

	// Fresh store works and the corrupt file was moved aside.
	n, err := st.PlayCount(context.Background(), "any")
	if err != nil || n != 0 {
		t.Fatalf("fresh store unusable: n=%d err=%v", n, err)
	}
	if _, err := os.Stat(path + ".corrupt"); err != nil {
		t.Fatalf("corrupt file not preserved: %v", err)
	}
}

func TestRecordIfChanged(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	imagine := song.Song{Title: "Imagine", Artist: "John Lennon"}

	added, err := st.RecordIfChanged(ctx, "club_fm_recife", imagine, now)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !added {
		t.Fatalf("first record should append")
	}

	added, err = st.RecordIfChanged(ctx, "club_fm_recife", imagine, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("record repeat: %v", err)
	}
	if added {
		t.Fatalf("immediate repeat should be suppressed")
	}

	n, err := st.PlayCount(ctx, "club_fm_recife")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 entry, got %d", n)
	}

	// A different song appends, and the earlier song may then repeat.
	if added, _ = st.RecordIfChanged(ctx, "club_fm_recife", song.Song{Title: "Help", Artist: "The Beatles"}, now.Add(2*time.Minute)); !added {
		t.Fatalf("different song should append")
	}
	if added, _ = st.RecordIfChanged(ctx, "club_fm_recife", imagine, now.Add(3*time.Minute)); !added {
		t.Fatalf("non-consecutive repeat should append")
	}
}

func TestRecordIfChangedKeysAreIndependent(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	sg := song.Song{Title: "Imagine", Artist: "John Lennon"}
	if added, _ := st.RecordIfChanged(ctx, "station_a", sg, now); !added {
		t.Fatalf("station_a append failed")
	}
	if added, _ := st.RecordIfChanged(ctx, "station_b", sg, now); !added {
		t.Fatalf("same song on another station should append")
	}
}

func TestHistoryCapEvictsOldest(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	for i := 0; i < MaxEntriesPerStation+1; i++ {
		sg := song.Song{Title: fmt.Sprintf("Song %04d", i), Artist: "Artist"}
		added, err := st.RecordIfChanged(ctx, "busy_fm", sg, base.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if !added {
			t.Fatalf("distinct song %d not appended", i)
		}
	}

	n, err := st.PlayCount(ctx, "busy_fm")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != MaxEntriesPerStation {
		t.Fatalf("expected %d entries, got %d", MaxEntriesPerStation, n)
	}

	entries, err := st.RecentPlays(ctx, "busy_fm", 0)
	if err != nil {
		t.Fatalf("recent plays: %v", err)
	}
	oldest := entries[len(entries)-1]
	if oldest.Song.Title != "Song 0001" {
		t.Fatalf("entry #1 should be evicted, oldest is %q", oldest.Song.Title)
	}
}

func TestRecentPlaysOrderAndLimit(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := st.RecordIfChanged(ctx, "k", song.Song{Title: fmt.Sprintf("S%d", i), Artist: "A"}, base.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	entries, err := st.RecentPlays(ctx, "k", 2)
	if err != nil {
		t.Fatalf("recent plays: %v", err)
	}
	if len(entries) != 2 || entries[0].Song.Title != "S4" || entries[1].Song.Title != "S3" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if !entries[0].ObservedAt.Equal(base.Add(4 * time.Minute)) {
		t.Fatalf("timestamp not round-tripped: %v", entries[0].ObservedAt)
	}
}

func TestSnapshots(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	snap := Snapshot{
		StationKey:  "club_fm_recife",
		StationName: "Club FM Recife",
		URL:         "https://clubefm.com.br/recife",
		NowPlaying:  "Asa Branca - Luiz Gonzaga",
		CapturedAt:  now,
	}
	if err := st.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	// Upsert replaces, never duplicates.
	snap.NowPlaying = ""
	snap.Error = "navigation timeout"
	snap.CapturedAt = now.Add(5 * time.Minute)
	if err := st.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("save snapshot again: %v", err)
	}

	snaps, err := st.Snapshots(ctx)
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps))
	}
	if snaps[0].Error != "navigation timeout" || snaps[0].NowPlaying != "" {
		t.Fatalf("snapshot not replaced: %+v", snaps[0])
	}
}

func TestLastCycle(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	got, err := st.LastCycle(ctx)
	if err != nil {
		t.Fatalf("last cycle: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("expected zero time before any cycle, got %v", got)
	}

	at := time.Date(2026, 8, 30, 12, 34, 56, 0, time.UTC)
	if err := st.SetLastCycle(ctx, at); err != nil {
		t.Fatalf("set last cycle: %v", err)
	}
	got, err = st.LastCycle(ctx)
	if err != nil {
		t.Fatalf("last cycle: %v", err)
	}
	if !got.Equal(at) {
		t.Fatalf("last cycle = %v, want %v", got, at)
	}
}
