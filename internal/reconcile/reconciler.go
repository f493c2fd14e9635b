// Package reconcile aligns persisted download state with the files actually
// on disk. It is what makes resume idempotent: completed records whose files
// vanished go back to pending, finished files whose records lagged behind a
// crash get promoted, and nothing is ever deleted.
package reconcile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tunesync/tunesync/internal/batch"
)

// Change is one corrective transition the reconciler decided on.
type Change struct {
	Key    string
	Name   string
	From   batch.Status
	To     batch.Status
	Path   string
	Reason string
}

// Report is the outcome of one reconciliation pass.
type Report struct {
	Changes []Change
	Orphans []string // files in the directory matching no track record
	Checked int
	Pending int // work list size after the pass
}

// Empty reports whether the pass found nothing to correct.
func (r Report) Empty() bool {
	return len(r.Changes) == 0
}

// String renders the human-readable corrective diff.
func (r Report) String() string {
	var b strings.Builder
	for _, c := range r.Changes {
		fmt.Fprintf(&b, "~ %s: %s -> %s (%s)\n", c.Name, c.From, c.To, c.Reason)
	}
	for _, o := range r.Orphans {
		fmt.Fprintf(&b, "? orphan file: %s\n", o)
	}
	fmt.Fprintf(&b, "%d tracks checked, %d corrected, %d pending\n", r.Checked, len(r.Changes), r.Pending)
	return b.String()
}

// Reconciler compares a batch store against an output directory.
type Reconciler struct {
	store *batch.Store
	dir   string
	log   *zap.Logger
	now   func() time.Time
}

// New returns a Reconciler for the given store and output directory. The
// logger may be nil.
func New(store *batch.Store, dir string, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{store: store, dir: dir, log: log, now: time.Now}
}

// Run performs one pass. With dryRun set it computes and reports the
// corrective diff without applying any transition.
func (r *Reconciler) Run(dryRun bool) (Report, error) {
	snap := r.store.Snapshot()
	report := Report{Checked: len(snap.Tracks)}

	referenced := make(map[string]bool)

	for i := range snap.Tracks {
		t := &snap.Tracks[i]
		candidate := r.candidatePath(t)
		referenced[filepath.Base(candidate)] = true
		if t.State.FilePath != "" {
			referenced[filepath.Base(t.State.FilePath)] = true
		}

		switch t.State.Status {
		case batch.StatusCompleted:
			if err := VerifyAudioFile(candidate); err != nil {
				report.Changes = append(report.Changes, Change{
					Key: t.Key, Name: t.DisplayName(),
					From: t.State.Status, To: batch.StatusPending,
					Path: candidate, Reason: err.Error(),
				})
				if !dryRun {
					if applyErr := r.store.Apply(t.Key, batch.ResetPending()); applyErr != nil {
						return report, applyErr
					}
				}
			}

		case batch.StatusDownloading, batch.StatusFailed:
			if err := VerifyAudioFile(candidate); err == nil {
				// A prior run finished the write but crashed before the
				// record caught up.
				report.Changes = append(report.Changes, Change{
					Key: t.Key, Name: t.DisplayName(),
					From: t.State.Status, To: batch.StatusCompleted,
					Path: candidate, Reason: "file already on disk",
				})
				if !dryRun {
					if applyErr := r.store.Apply(t.Key, batch.ForceCompleted(candidate, r.now())); applyErr != nil {
						return report, applyErr
					}
				}
			} else if t.State.Status == batch.StatusDownloading {
				// Stale in-flight marker from an interrupted run.
				report.Changes = append(report.Changes, Change{
					Key: t.Key, Name: t.DisplayName(),
					From: t.State.Status, To: batch.StatusPending,
					Path: candidate, Reason: "stale downloading marker",
				})
				if !dryRun {
					if applyErr := r.store.Apply(t.Key, batch.ResetPending()); applyErr != nil {
						return report, applyErr
					}
				}
			}
		}
	}

	orphans, err := r.findOrphans(referenced)
	if err != nil {
		return report, err
	}
	report.Orphans = orphans

	if dryRun {
		report.Pending = countPendingAfter(snap, report.Changes)
	} else {
		report.Pending = r.store.Count().Pending
	}

	r.log.Info("reconciliation pass",
		zap.Bool("dry_run", dryRun),
		zap.Int("checked", report.Checked),
		zap.Int("corrected", len(report.Changes)),
		zap.Int("orphans", len(report.Orphans)),
		zap.Int("pending", report.Pending))

	return report, nil
}

// candidatePath is where the track's file is expected: the recorded path when
// present, otherwise the derived name inside the output directory.
func (r *Reconciler) candidatePath(t *batch.Track) string {
	if t.State.FilePath != "" {
		return t.State.FilePath
	}
	return filepath.Join(r.dir, t.FileName())
}

// findOrphans lists audio files in the output directory that no track record
// references. They are reported, never deleted.
func (r *Reconciler) findOrphans(referenced map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	var orphans []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !isAudioName(name) {
			continue
		}
		if !referenced[name] {
			orphans = append(orphans, name)
		}
	}
	return orphans, nil
}

func isAudioName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3", ".m4a", ".opus", ".ogg", ".flac", ".wav":
		return true
	default:
		return false
	}
}

// countPendingAfter simulates the diff on a snapshot for dry-run reporting.
func countPendingAfter(snap batch.Batch, changes []Change) int {
	to := make(map[string]batch.Status, len(changes))
	for _, c := range changes {
		to[c.Key] = c.To
	}
	pending := 0
	for i := range snap.Tracks {
		status := snap.Tracks[i].State.Status
		if s, ok := to[snap.Tracks[i].Key]; ok {
			status = s
		}
		if status == batch.StatusPending {
			pending++
		}
	}
	return pending
}
