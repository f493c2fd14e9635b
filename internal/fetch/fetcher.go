// Package fetch acquires audio for a single track from the media source and
// classifies the outcome. All knowledge of the upstream tool's error text
// lives here, behind the Fetcher interface and the Classify function, so the
// heuristics can evolve without touching the state machine.
package fetch

import (
	"context"

	"github.com/tunesync/tunesync/internal/batch"
)

// Result is one classified fetch attempt. Class FailureNone means the file at
// Path was written and passed the size check.
type Result struct {
	Class  batch.FailureClass
	Path   string
	Detail string // trailing raw tool output, for logs and the run summary
}

// Fetcher downloads the audio for one track into destDir.
//
// The returned error is reserved for infrastructure problems (missing binary,
// unwritable destination); per-track failures are reported through
// Result.Class so they never abort the batch.
type Fetcher interface {
	Fetch(ctx context.Context, track batch.Track, destDir string) (Result, error)
}
