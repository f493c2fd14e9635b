package batch

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Status is the download lifecycle state of a single track.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// FailureClass is the closed set of fetch outcome classifications.
// It is persisted in last_error, so values are stable strings.
type FailureClass string

const (
	FailureNone        FailureClass = ""
	FailureBotDetected FailureClass = "bot_detected"
	FailureUnavailable FailureClass = "unavailable"
	FailureTransient   FailureClass = "transient_error"
	FailureUnknown     FailureClass = "unknown_error"
)

// Retryable reports whether a failure class is eligible for another attempt.
// Unavailable assets are gone for good; retrying them only burns quota.
func (c FailureClass) Retryable() bool {
	switch c {
	case FailureBotDetected, FailureTransient, FailureUnknown:
		return true
	default:
		return false
	}
}

// DownloadState is the per-track state owned exclusively by the download core.
// All fields default to their zero values so that catalog files written before
// this schema existed load as fresh pending tracks.
type DownloadState struct {
	Status        Status          `json:"status"`
	AttemptCount  int             `json:"attempt_count"`
	FailureCount  int             `json:"failure_count"`
	LastError     FailureClass    `json:"last_error,omitempty"`
	DelaysApplied []time.Duration `json:"delays_applied,omitempty"`
	FilePath      string          `json:"file_path,omitempty"`
	CompletedAt   int64           `json:"completed_at,omitempty"` // Unix timestamp
}

// Track is one catalog entry: the descriptive fields produced by the export
// and search steps, plus its DownloadState.
type Track struct {
	Key        string   `json:"key,omitempty"`
	Title      string   `json:"title"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album,omitempty"`
	DurationMS int64    `json:"duration_ms,omitempty"`
	ArtworkURL string   `json:"artwork_url,omitempty"`
	SpotifyID  string   `json:"spotify_id,omitempty"`
	SpotifyURL string   `json:"spotify_url,omitempty"`
	VideoID    string   `json:"video_id,omitempty"`

	State DownloadState `json:"download_state"`
}

// TrackKey returns the stable key for a track: the Spotify ID when present,
// otherwise a short hash of the artist list and title.
func TrackKey(spotifyID, title string, artists []string) string {
	if spotifyID != "" {
		return spotifyID
	}
	h := sha256.Sum256([]byte(strings.Join(artists, ",") + "|" + title))
	return hex.EncodeToString(h[:8]) // 16 chars
}

// EnsureKey fills in the key for tracks loaded from files that predate keys.
func (t *Track) EnsureKey() {
	if t.Key == "" {
		t.Key = TrackKey(t.SpotifyID, t.Title, t.Artists)
	}
}

// PrimaryArtist returns the first artist, or "Unknown" when the list is empty.
func (t *Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return "Unknown"
	}
	return t.Artists[0]
}

// DisplayName is "Artist - Title", used for logs and progress output.
func (t *Track) DisplayName() string {
	return t.PrimaryArtist() + " - " + t.Title
}

// FileName derives the destination file name. The short key suffix keeps the
// name unique per track so concurrent workers never write to the same path.
func (t *Track) FileName() string {
	base := sanitizeFileName(t.PrimaryArtist() + " - " + t.Title)
	suffix := t.Key
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return base + " [" + suffix + "].mp3"
}

// HasVideo reports whether the match-finding step resolved a media reference.
func (t *Track) HasVideo() bool {
	return t.VideoID != ""
}

var fileNameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "-",
	"*", "",
	"?", "",
	"\"", "'",
	"<", "(",
	">", ")",
	"|", "-",
	"\x00", "",
)

// sanitizeFileName strips characters that are unsafe in file names on the
// platforms we care about and trims trailing dots and spaces.
func sanitizeFileName(name string) string {
	name = fileNameReplacer.Replace(name)
	name = strings.Trim(name, ". ")
	if name == "" {
		return "track"
	}
	// Keep names comfortably under common path component limits.
	if len(name) > 180 {
		name = name[:180]
	}
	return name
}
