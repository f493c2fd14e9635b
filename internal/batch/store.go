package batch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// SchemaVersion tags the persisted batch layout. The schema is additive-only:
// newer fields default to zero values when absent, so older files keep loading.
const SchemaVersion = 1

// ErrCorruptState means the persisted batch could not be parsed at all.
var ErrCorruptState = errors.New("corrupt batch state")

// ErrUnknownTrack means a transition referenced a key not present in the batch.
var ErrUnknownTrack = errors.New("unknown track key")

// IsCorruptState reports whether err indicates an unparsable batch file.
func IsCorruptState(err error) bool {
	return errors.Is(err, ErrCorruptState)
}

// Batch is the full ordered collection of tracks processed together, plus the
// schema tag. It is the entire persisted unit.
type Batch struct {
	SchemaVersion int     `json:"schema_version"`
	Tracks        []Track `json:"tracks"`
}

// Load reads a batch file. Two layouts are accepted: the current object form,
// and the legacy bare array of catalog entries written by the export step
// before download state existed. Per-track state defaults to pending/zeroes.
func Load(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	return Decode(data)
}

// Decode parses batch bytes, tolerating the legacy array layout. The layout is
// picked by the top-level JSON token, so an object with zero tracks still loads
// as the current form.
func Decode(data []byte) (*Batch, error) {
	if head := bytes.TrimLeft(data, " \t\r\n"); len(head) > 0 && head[0] == '[' {
		// Legacy layout: a bare JSON array of tracks with no schema tag.
		var tracks []Track
		if err := json.Unmarshal(data, &tracks); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
		}
		b := Batch{SchemaVersion: 0, Tracks: tracks}
		b.normalize()
		return &b, nil
	}

	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	b.normalize()
	return &b, nil
}

// normalize fills defaults so invariants hold regardless of what was on disk:
// the track slice is never nil, every track has a key, an empty or unknown
// status means pending, and the failure counter never exceeds the attempt
// counter.
func (b *Batch) normalize() {
	b.SchemaVersion = SchemaVersion
	if b.Tracks == nil {
		b.Tracks = []Track{}
	}
	for i := range b.Tracks {
		t := &b.Tracks[i]
		t.EnsureKey()
		switch t.State.Status {
		case StatusPending, StatusDownloading, StatusCompleted, StatusFailed:
		default:
			t.State.Status = StatusPending
		}
		if t.State.FailureCount > t.State.AttemptCount {
			t.State.FailureCount = t.State.AttemptCount
		}
	}
}

// Save writes the batch atomically: marshal to a temp file in the same
// directory, then rename over the canonical name. A crash mid-write never
// leaves a half-written file visible.
func (b *Batch) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create batch directory: %w", err)
	}

	if b.Tracks == nil {
		b.Tracks = []Track{}
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write batch file: %w", err)
	}
	return os.Rename(tempPath, path)
}

// Find returns a pointer to the track with the given key, or nil.
func (b *Batch) Find(key string) *Track {
	for i := range b.Tracks {
		if b.Tracks[i].Key == key {
			return &b.Tracks[i]
		}
	}
	return nil
}

// PendingKeys returns the keys of all pending tracks in batch order.
func (b *Batch) PendingKeys() []string {
	var keys []string
	for i := range b.Tracks {
		if b.Tracks[i].State.Status == StatusPending {
			keys = append(keys, b.Tracks[i].Key)
		}
	}
	return keys
}

// Counts tallies tracks by status.
type Counts struct {
	Pending     int
	Downloading int
	Completed   int
	Failed      int
}

func (c Counts) Total() int {
	return c.Pending + c.Downloading + c.Completed + c.Failed
}

// Count returns the per-status tally for the batch.
func (b *Batch) Count() Counts {
	var c Counts
	for i := range b.Tracks {
		switch b.Tracks[i].State.Status {
		case StatusPending:
			c.Pending++
		case StatusDownloading:
			c.Downloading++
		case StatusCompleted:
			c.Completed++
		case StatusFailed:
			c.Failed++
		}
	}
	return c
}

// Store owns the in-memory batch and its on-disk form. Every mutation goes
// through Apply, which serializes the update and persists before returning,
// so a crash loses at most the attempt that was in flight.
type Store struct {
	mu    sync.Mutex
	path  string
	batch *Batch
	index map[string]int
}

// Open loads the batch at path into a Store.
func Open(path string) (*Store, error) {
	b, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewStore(b, path), nil
}

// NewStore wraps an already-loaded batch.
func NewStore(b *Batch, path string) *Store {
	s := &Store{path: path, batch: b, index: make(map[string]int, len(b.Tracks))}
	for i := range b.Tracks {
		s.index[b.Tracks[i].Key] = i
	}
	return s
}

// Path returns the canonical on-disk location of the batch.
func (s *Store) Path() string {
	return s.path
}

// Apply runs one transition against exactly one track and persists the whole
// batch. Concurrent callers are serialized; the update-then-persist pair is
// atomic with respect to other Apply calls.
func (s *Store) Apply(key string, tr Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTrack, key)
	}
	s.batch.Tracks[i].State = tr(s.batch.Tracks[i].State)
	return s.batch.Save(s.path)
}

// SetVideo attaches a resolved video to one track and persists the batch.
// Video resolution sits outside the download state machine: it edits the
// catalog side of the record and never touches status or counters.
func (s *Store) SetVideo(key, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTrack, key)
	}
	s.batch.Tracks[i].VideoID = videoID
	return s.batch.Save(s.path)
}

// Track returns a copy of one track record.
func (s *Store) Track(key string) (Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[key]
	if !ok {
		return Track{}, false
	}
	return s.batch.Tracks[i], true
}

// Snapshot returns a deep-enough copy of the batch for read-only consumers.
// The track slice is copied; descriptive fields are never mutated.
func (s *Store) Snapshot() Batch {
	s.mu.Lock()
	defer s.mu.Unlock()

	tracks := make([]Track, len(s.batch.Tracks))
	copy(tracks, s.batch.Tracks)
	return Batch{SchemaVersion: s.batch.SchemaVersion, Tracks: tracks}
}

// Count returns the current per-status tally.
func (s *Store) Count() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batch.Count()
}

// PendingKeys returns the keys of all pending tracks in batch order.
func (s *Store) PendingKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batch.PendingKeys()
}

// Flush persists the current batch. Used once after load so freshly defaulted
// legacy files land on disk in the current schema.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batch.Save(s.path)
}
