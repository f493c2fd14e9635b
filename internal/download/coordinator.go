// Package download drains a batch of pending tracks through a bounded pool
// of fetch workers, serializing every state mutation through the batch store
// and pausing the whole pool when the upstream signals bot detection.
package download

import (
	"context"
	"math/rand"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tunesync/tunesync/internal/backoff"
	"github.com/tunesync/tunesync/internal/batch"
	"github.com/tunesync/tunesync/internal/fetch"
	"github.com/tunesync/tunesync/internal/messages"
)

// RunState is the coordinator lifecycle.
type RunState int

const (
	StateInit RunState = iota
	StateRunning
	StateDrained
	StateAborted
)

func (s RunState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateDrained:
		return "drained"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Tagger embeds metadata into a finished file. Its failure is cosmetic: it is
// reported but never reverts a completed download.
type Tagger interface {
	Tag(ctx context.Context, track batch.Track, filePath string) error
}

// Config tunes one coordinator run.
type Config struct {
	// Workers is the pool size. 0 is the fully sequential case and is
	// normalized to a single worker draining the queue in FIFO order.
	Workers int
	// OutputDir is where fetched audio lands.
	OutputDir string
	// RetryPolicy bounds automatic per-track retries; zero value means the
	// default policy.
	RetryPolicy batch.RetryPolicy
	// RateWindow is how many recent attempts feed the batch failure rate
	// used to size backoff pauses. Defaults to 20.
	RateWindow int
}

// FailedTrack is one terminally failed track surfaced in the run summary.
type FailedTrack struct {
	Key       string
	Name      string
	LastError batch.FailureClass
	Attempts  int
}

// TagFailure is one cosmetic tagging failure surfaced in the run summary.
type TagFailure struct {
	Key  string
	Name string
	Err  string
}

// Summary reports one finished coordinator run.
type Summary struct {
	RunID       string
	State       RunState
	Counts      batch.Counts
	Downloaded  int // tracks completed during this run
	Failed      []FailedTrack
	TagFailures []TagFailure
	BackoffTime time.Duration // total pool pause time
	Elapsed     time.Duration
}

// Coordinator owns the worker pool for one batch run. Exactly one coordinator
// may run against a given persisted batch at a time; Resume enforces that
// with a file lock.
type Coordinator struct {
	store   *batch.Store
	fetcher fetch.Fetcher
	tagger  Tagger // optional
	cfg     Config
	log     *zap.Logger
	events  chan<- tea.Msg // optional
	rng     *rand.Rand
	sleep   func(context.Context, time.Duration)
	state   RunState
}

// NewCoordinator wires a coordinator. tagger, log and events may be nil.
func NewCoordinator(store *batch.Store, fetcher fetch.Fetcher, tagger Tagger, cfg Config, log *zap.Logger, events chan<- tea.Msg) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = 20
	}
	if (cfg.RetryPolicy == batch.RetryPolicy{}) {
		cfg.RetryPolicy = batch.DefaultRetryPolicy()
	}
	return &Coordinator{
		store:   store,
		fetcher: fetcher,
		tagger:  tagger,
		cfg:     cfg,
		log:     log,
		events:  events,
		sleep:   sleepCtx,
		state:   StateInit,
	}
}

// State returns the coordinator lifecycle state.
func (c *Coordinator) State() RunState {
	return c.state
}

type workerResult struct {
	key string
	res fetch.Result
	err error // infrastructure failure, aborts the run
}

// Run drains the work list. It returns a non-nil error only for
// infrastructure failures or cancellation; per-track failures land in the
// summary. The state store is consistent on every return path.
func (c *Coordinator) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	summary := Summary{RunID: uuid.NewString()}
	window := newRateWindow(c.cfg.RateWindow)

	queue := newKeyQueue(c.store.PendingKeys())
	results := make(chan workerResult, c.cfg.Workers)
	inflight := 0
	var abortErr error

	c.state = StateRunning
	c.log.Info("coordinator started",
		zap.String("run_id", summary.RunID),
		zap.Int("workers", c.cfg.Workers),
		zap.Int("work_list", queue.len()))

	for {
		// Dispatch until every slot is busy. Dispatch stops permanently once
		// the run is aborted or cancelled; in-flight workers still finish and
		// their transitions are applied below.
		if abortErr == nil && ctx.Err() == nil {
			for inflight < c.cfg.Workers {
				key, ok := queue.pop()
				if !ok {
					break
				}
				if err := c.store.Apply(key, batch.Downloading()); err != nil {
					abortErr = err
					break
				}
				track, _ := c.store.Track(key)
				c.emit(messages.TrackStartedMsg{Key: key, Name: track.DisplayName()})
				inflight++
				go func() {
					res, err := c.fetcher.Fetch(ctx, track, c.cfg.OutputDir)
					results <- workerResult{key: key, res: res, err: err}
				}()
			}
		}

		if inflight == 0 {
			break
		}

		r := <-results
		inflight--

		if r.err != nil {
			// Unrecoverable infrastructure problem. Stop dispatching, let
			// the remaining workers finish, leave the store as last
			// persisted.
			c.log.Error("infrastructure error, aborting run", zap.Error(r.err))
			if abortErr == nil {
				abortErr = r.err
			}
			continue
		}

		if err := c.handleResult(ctx, r, queue, window, &summary); err != nil && abortErr == nil {
			abortErr = err
		}
	}

	if abortErr == nil && ctx.Err() != nil {
		abortErr = ctx.Err()
	}

	counts := c.store.Count()
	summary.Counts = counts
	summary.Elapsed = time.Since(start)
	if abortErr != nil {
		c.state = StateAborted
	} else {
		c.state = StateDrained
	}
	summary.State = c.state
	summary.Failed = c.collectFailed()

	c.emit(messages.RunFinishedMsg{
		Aborted:   c.state == StateAborted,
		Completed: counts.Completed,
		Failed:    counts.Failed,
		Elapsed:   summary.Elapsed,
	})
	c.log.Info("coordinator finished",
		zap.String("run_id", summary.RunID),
		zap.String("state", c.state.String()),
		zap.Int("completed", counts.Completed),
		zap.Int("failed", counts.Failed),
		zap.Duration("elapsed", summary.Elapsed),
		zap.Duration("backoff", summary.BackoffTime))

	return summary, abortErr
}

// handleResult applies one worker outcome to the store and performs the
// follow-up work: tagging on success, pool-wide backoff on bot detection,
// tail re-enqueue for retryable failures.
func (c *Coordinator) handleResult(ctx context.Context, r workerResult, queue *keyQueue, window *rateWindow, summary *Summary) error {
	now := time.Now()
	outcome := batch.Outcome{Class: r.res.Class, FilePath: r.res.Path}
	if err := c.store.Apply(r.key, batch.FromOutcome(outcome, now, c.cfg.RetryPolicy)); err != nil {
		return err
	}
	window.record(r.res.Class != batch.FailureNone)

	track, _ := c.store.Track(r.key)
	c.emit(messages.TrackFinishedMsg{
		Key:      r.key,
		Name:     track.DisplayName(),
		Status:   track.State.Status,
		Class:    r.res.Class,
		Attempts: track.State.AttemptCount,
	})

	switch {
	case r.res.Class == batch.FailureNone:
		summary.Downloaded++
		c.log.Info("track completed",
			zap.String("track", track.DisplayName()),
			zap.String("file", track.State.FilePath))
		c.tagCompleted(ctx, track, summary)

	case r.res.Class == batch.FailureBotDetected:
		delay := backoff.Delay(backoff.Params{
			Threads:           c.cfg.Workers,
			BatchFailureRate:  window.rate(),
			TrackFailureCount: track.State.FailureCount,
		}, c.rng)
		if err := c.store.Apply(r.key, batch.RecordDelay(delay)); err != nil {
			return err
		}
		summary.BackoffTime += delay
		c.emit(messages.BackoffMsg{Key: r.key, Name: track.DisplayName(), Delay: delay, Rate: window.rate()})
		c.log.Warn("bot detection, pausing pool",
			zap.String("track", track.DisplayName()),
			zap.Duration("delay", delay),
			zap.Float64("failure_rate", window.rate()))
		// The pause is a coordinator-level barrier: nothing new is
		// dispatched until it elapses. The signal means the source IP is
		// suspected as a whole, so a per-worker sleep would not help.
		c.sleep(ctx, delay)

	default:
		c.log.Warn("track attempt failed",
			zap.String("track", track.DisplayName()),
			zap.String("class", string(r.res.Class)),
			zap.String("detail", r.res.Detail),
			zap.Int("attempts", track.State.AttemptCount))
	}

	// Retryable failures go to the back of the queue so retries are spread
	// in time instead of hammering the same track from the same slot.
	if track.State.Status == batch.StatusPending {
		queue.push(r.key)
	}
	return nil
}

// tagCompleted runs the tagging collaborator for a finished track. Tag
// failures never revert completed state.
func (c *Coordinator) tagCompleted(ctx context.Context, track batch.Track, summary *Summary) {
	if c.tagger == nil {
		return
	}
	if err := c.tagger.Tag(ctx, track, track.State.FilePath); err != nil {
		summary.TagFailures = append(summary.TagFailures, TagFailure{
			Key: track.Key, Name: track.DisplayName(), Err: err.Error(),
		})
		c.emit(messages.TagFailedMsg{Key: track.Key, Name: track.DisplayName(), Err: err.Error()})
		c.log.Warn("tagging failed", zap.String("track", track.DisplayName()), zap.Error(err))
	}
}

// collectFailed lists terminally failed tracks for the run summary.
func (c *Coordinator) collectFailed() []FailedTrack {
	snap := c.store.Snapshot()
	var failed []FailedTrack
	for i := range snap.Tracks {
		t := &snap.Tracks[i]
		if t.State.Status == batch.StatusFailed {
			failed = append(failed, FailedTrack{
				Key:       t.Key,
				Name:      t.DisplayName(),
				LastError: t.State.LastError,
				Attempts:  t.State.AttemptCount,
			})
		}
	}
	return failed
}

func (c *Coordinator) emit(msg tea.Msg) {
	if c.events != nil {
		c.events <- msg
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// rateWindow tracks the failure rate over the most recent attempts.
type rateWindow struct {
	outcomes []bool // true = failure
	next     int
	filled   int
}

func newRateWindow(size int) *rateWindow {
	return &rateWindow{outcomes: make([]bool, size)}
}

func (w *rateWindow) record(failed bool) {
	w.outcomes[w.next] = failed
	w.next = (w.next + 1) % len(w.outcomes)
	if w.filled < len(w.outcomes) {
		w.filled++
	}
}

func (w *rateWindow) rate() float64 {
	if w.filled == 0 {
		return 0
	}
	failures := 0
	for i := 0; i < w.filled; i++ {
		if w.outcomes[i] {
			failures++
		}
	}
	return float64(failures) / float64(w.filled)
}
