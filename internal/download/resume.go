package download

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/tunesync/tunesync/internal/batch"
	"github.com/tunesync/tunesync/internal/fetch"
	"github.com/tunesync/tunesync/internal/reconcile"
)

// ErrBatchLocked means another coordinator already owns this persisted batch.
var ErrBatchLocked = errors.New("batch is locked by another run")

// ResumeResult is the tri-state outcome of a resume run, for scripting.
type ResumeResult int

const (
	// ResumeNothingToDo: every track was already completed on entry.
	ResumeNothingToDo ResumeResult = iota
	// ResumeSuccess: all tracks are completed now.
	ResumeSuccess
	// ResumePartial: tracks remain failed or pending after retries ran out.
	ResumePartial
)

func (r ResumeResult) String() string {
	switch r {
	case ResumeNothingToDo:
		return "nothing-to-do"
	case ResumeSuccess:
		return "success"
	case ResumePartial:
		return "partial"
	default:
		return "unknown"
	}
}

// ExitCode maps each result to a distinct exit signal: 0 all completed now,
// 2 partially resumed, 3 nothing was pending. Aborts exit 1 via the CLI.
func (r ResumeResult) ExitCode() int {
	switch r {
	case ResumeSuccess:
		return 0
	case ResumePartial:
		return 2
	case ResumeNothingToDo:
		return 3
	default:
		return 1
	}
}

// ResumeOptions configures one resume run.
type ResumeOptions struct {
	BatchPath string
	OutputDir string
	Workers   int

	Fetcher     fetch.Fetcher
	Tagger      Tagger // optional
	RetryPolicy batch.RetryPolicy
	Log         *zap.Logger
	Events      chan<- tea.Msg // optional
}

// ResumeReport is everything a caller needs to explain the run: the tri-state
// result, the coordinator summary, and both reconciliation passes.
type ResumeReport struct {
	Result     ResumeResult
	Summary    Summary
	PreReport  reconcile.Report
	PostReport reconcile.Report
	Counts     batch.Counts
}

// Resume is the command-level entry point: take a run lock on the persisted
// batch, reconcile state against the output directory, drain the work list
// through the coordinator, then re-verify with a dry-run reconciliation.
func Resume(ctx context.Context, opts ResumeOptions) (ResumeReport, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	// One coordinator per persisted batch. The lock file sits next to the
	// batch so concurrent runs against different batches stay independent.
	lock := flock.New(opts.BatchPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return ResumeReport{}, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !locked {
		return ResumeReport{}, fmt.Errorf("%w: %s", ErrBatchLocked, opts.BatchPath)
	}
	defer lock.Unlock()

	store, err := batch.Open(opts.BatchPath)
	if err != nil {
		return ResumeReport{}, err
	}
	// Persist immediately so legacy files land on disk in the current schema.
	if err := store.Flush(); err != nil {
		return ResumeReport{}, err
	}

	reconciler := reconcile.New(store, opts.OutputDir, log)
	report := ResumeReport{}

	report.PreReport, err = reconciler.Run(false)
	if err != nil {
		return report, err
	}

	if report.PreReport.Pending == 0 {
		report.Counts = store.Count()
		if report.Counts.Completed == report.Counts.Total() {
			report.Result = ResumeNothingToDo
		} else {
			// Nothing pending but failed tracks remain from earlier runs.
			report.Result = ResumePartial
		}
		report.PostReport = report.PreReport
		return report, nil
	}

	coordinator := NewCoordinator(store, opts.Fetcher, opts.Tagger, Config{
		Workers:     opts.Workers,
		OutputDir:   opts.OutputDir,
		RetryPolicy: opts.RetryPolicy,
	}, log, opts.Events)

	report.Summary, err = coordinator.Run(ctx)
	if err != nil {
		report.Counts = store.Count()
		return report, err
	}

	// Second pass, dry-run: verify that declared state matches the disk.
	report.PostReport, err = reconciler.Run(true)
	if err != nil {
		return report, err
	}

	report.Counts = store.Count()
	if report.Counts.Completed == report.Counts.Total() {
		report.Result = ResumeSuccess
	} else {
		report.Result = ResumePartial
	}
	return report, nil
}
