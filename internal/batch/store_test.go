package batch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeBatchFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func TestLoadLegacyArray(t *testing.T) {
	// The export step used to write a bare array with no download state.
	path := writeBatchFile(t, `[
		{"title": "Song A", "artists": ["Artist A"], "spotify_id": "spA", "video_id": "vidA"},
		{"title": "Song B", "artists": ["Artist B"]}
	]`)

	b, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(b.Tracks) != 2 {
		t.Fatalf("Tracks = %d, want 2", len(b.Tracks))
	}
	if b.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", b.SchemaVersion, SchemaVersion)
	}
	for _, tr := range b.Tracks {
		if tr.State.Status != StatusPending {
			t.Errorf("track %s status = %s, want pending", tr.Title, tr.State.Status)
		}
		if tr.State.AttemptCount != 0 || tr.State.FailureCount != 0 {
			t.Errorf("track %s counters not zeroed", tr.Title)
		}
		if tr.Key == "" {
			t.Errorf("track %s has no key", tr.Title)
		}
	}
	if b.Tracks[0].Key != "spA" {
		t.Errorf("key = %s, want spotify id", b.Tracks[0].Key)
	}
}

func TestEmptyBatchRoundTrip(t *testing.T) {
	// Exporting a playlist whose items were all skipped yields zero tracks.
	// The file it writes must still load.
	path := filepath.Join(t.TempDir(), "batch.json")
	b := &Batch{SchemaVersion: SchemaVersion}

	if err := b.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed on empty batch: %v", err)
	}
	if got.Tracks == nil || len(got.Tracks) != 0 {
		t.Errorf("Tracks = %#v, want empty non-nil slice", got.Tracks)
	}
	if got.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", got.SchemaVersion, SchemaVersion)
	}
}

func TestLoadCorruptState(t *testing.T) {
	path := writeBatchFile(t, `{"schema_version": 1, "tracks": [{`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load should fail on truncated JSON")
	}
	if !IsCorruptState(err) {
		t.Errorf("error %v is not ErrCorruptState", err)
	}
}

func TestLoadNormalizesInvariants(t *testing.T) {
	path := writeBatchFile(t, `{"schema_version": 1, "tracks": [
		{"title": "X", "artists": ["A"], "download_state": {"status": "bogus", "attempt_count": 1, "failure_count": 5}}
	]}`)

	b, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	s := b.Tracks[0].State
	if s.Status != StatusPending {
		t.Errorf("unknown status normalized to %s, want pending", s.Status)
	}
	if s.FailureCount > s.AttemptCount {
		t.Errorf("failure_count %d > attempt_count %d after normalize", s.FailureCount, s.AttemptCount)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	b := &Batch{SchemaVersion: SchemaVersion, Tracks: []Track{
		{
			Key: "spA", Title: "Song A", Artists: []string{"Artist A", "Feat B"},
			Album: "Album", DurationMS: 215000, SpotifyID: "spA", VideoID: "vidA",
			State: DownloadState{
				Status:        StatusCompleted,
				AttemptCount:  3,
				FailureCount:  2,
				LastError:     FailureNone,
				DelaysApplied: []time.Duration{45 * time.Second},
				FilePath:      "/out/a.mp3",
				CompletedAt:   1700000000,
			},
		},
	}}

	if err := b.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want, _ := json.Marshal(b)
	gotJSON, _ := json.Marshal(got)
	if string(want) != string(gotJSON) {
		t.Errorf("round trip mismatch:\n got %s\nwant %s", gotJSON, want)
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.json")
	b := &Batch{SchemaVersion: SchemaVersion, Tracks: []Track{{Key: "k", Title: "T", Artists: []string{"A"}}}}

	if err := b.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "batch.json" {
		t.Errorf("directory contains %v, want only batch.json", entries)
	}
}

func TestStoreApplyPersists(t *testing.T) {
	path := writeBatchFile(t, `[{"title": "Song A", "artists": ["Artist A"], "spotify_id": "spA"}]`)
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	now := time.Now()
	if err := store.Apply("spA", Downloading()); err != nil {
		t.Fatalf("Apply downloading failed: %v", err)
	}
	if err := store.Apply("spA", FromOutcome(Outcome{Class: FailureNone, FilePath: "/out/a.mp3"}, now, DefaultRetryPolicy())); err != nil {
		t.Fatalf("Apply outcome failed: %v", err)
	}

	// Every apply persists: a fresh load must see the completed state.
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	s := reloaded.Tracks[0].State
	if s.Status != StatusCompleted || s.AttemptCount != 1 || s.FilePath != "/out/a.mp3" {
		t.Errorf("persisted state = %+v", s)
	}
}

func TestStoreApplyUnknownKey(t *testing.T) {
	path := writeBatchFile(t, `[{"title": "Song A", "artists": ["Artist A"], "spotify_id": "spA"}]`)
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := store.Apply("nope", Downloading()); err == nil {
		t.Error("Apply should fail for unknown key")
	}
}

func TestFileNameUniquePerTrack(t *testing.T) {
	a := Track{Key: TrackKey("", "Same Title", []string{"Artist"}), Title: "Same Title", Artists: []string{"Artist"}}
	b := Track{Key: TrackKey("other", "Same Title", []string{"Artist"}), Title: "Same Title", Artists: []string{"Artist"}}

	if a.FileName() == b.FileName() {
		t.Errorf("distinct keys produced the same file name: %s", a.FileName())
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"slashes", "AC/DC - Back In Black", "AC_DC - Back In Black"},
		{"colon", "Artist: Live", "Artist- Live"},
		{"question mark", "What?", "What"},
		{"trailing dot", "Name.", "Name"},
		{"empty result", "???", "track"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeFileName(tt.in); got != tt.want {
				t.Errorf("sanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
