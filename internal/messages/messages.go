package messages

import (
	"time"

	"github.com/tunesync/tunesync/internal/batch"
)

// TrackStartedMsg is sent when a worker slot picks up a track.
type TrackStartedMsg struct {
	Key  string
	Name string
}

// TrackFinishedMsg is sent after a fetch outcome has been applied to the
// state store.
type TrackFinishedMsg struct {
	Key      string
	Name     string
	Status   batch.Status
	Class    batch.FailureClass
	Attempts int
}

// BackoffMsg signals that the whole pool is pausing after a bot-detection
// event.
type BackoffMsg struct {
	Key   string // track that triggered the pause
	Name  string
	Delay time.Duration
	Rate  float64 // recent batch failure rate that sized the delay
}

// TagFailedMsg reports a cosmetic post-download tagging failure.
type TagFailedMsg struct {
	Key  string
	Name string
	Err  string
}

// RunFinishedMsg is sent once when the coordinator drains or aborts.
type RunFinishedMsg struct {
	Aborted   bool
	Completed int
	Failed    int
	Elapsed   time.Duration
}

// TickMsg is sent periodically to update the UI.
type TickMsg struct{}
