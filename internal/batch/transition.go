package batch

import "time"

// Outcome is the classified result of one fetch attempt.
type Outcome struct {
	Class    FailureClass
	FilePath string // set on success
}

// RetryPolicy bounds automatic retries per track. A track stops being retried
// when it hits MaxAttempts, or when its failure ratio reaches RateCeiling after
// at least MinAttemptsForRate attempts. The grace period matters: without it a
// single failed first attempt has ratio 1/1 and nothing would ever be retried.
type RetryPolicy struct {
	MaxAttempts        int
	RateCeiling        float64
	MinAttemptsForRate int
}

// DefaultRetryPolicy matches the behaviour of the batch downloader this tool
// replaces: up to five attempts, cut off early once 80% of attempts failed.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:        5,
		RateCeiling:        0.8,
		MinAttemptsForRate: 3,
	}
}

// Exhausted reports whether the policy admits no further attempt for the
// given counters.
func (p RetryPolicy) Exhausted(attempts, failures int) bool {
	if attempts >= p.MaxAttempts {
		return true
	}
	if attempts >= p.MinAttemptsForRate {
		if float64(failures)/float64(attempts) >= p.RateCeiling {
			return true
		}
	}
	return false
}

// Transition mutates exactly one track's DownloadState. All state changes go
// through transitions applied by the Store; nothing else writes these fields.
type Transition func(DownloadState) DownloadState

// Downloading marks a track as claimed by a worker slot.
func Downloading() Transition {
	return func(s DownloadState) DownloadState {
		s.Status = StatusDownloading
		return s
	}
}

// FromOutcome folds one fetch outcome into the state: the attempt counter
// always advances, success completes the track, failures either return it to
// pending or mark it failed once the retry policy is exhausted.
func FromOutcome(o Outcome, now time.Time, policy RetryPolicy) Transition {
	return func(s DownloadState) DownloadState {
		s.AttemptCount++

		if o.Class == FailureNone {
			s.Status = StatusCompleted
			s.LastError = FailureNone
			s.FilePath = o.FilePath
			s.CompletedAt = now.Unix()
			return s
		}

		s.FailureCount++
		s.LastError = o.Class

		if !o.Class.Retryable() || policy.Exhausted(s.AttemptCount, s.FailureCount) {
			s.Status = StatusFailed
			return s
		}

		s.Status = StatusPending
		return s
	}
}

// RecordDelay appends a backoff delay that was actually applied on behalf of
// this track, for diagnostics and failure-rate learning.
func RecordDelay(d time.Duration) Transition {
	return func(s DownloadState) DownloadState {
		s.DelaysApplied = append(s.DelaysApplied, d)
		return s
	}
}

// ForceCompleted is the reconciler's corrective promotion: the file is already
// on disk and passes the sanity check, so the record catches up with reality.
func ForceCompleted(path string, now time.Time) Transition {
	return func(s DownloadState) DownloadState {
		s.Status = StatusCompleted
		s.LastError = FailureNone
		s.FilePath = path
		s.CompletedAt = now.Unix()
		return s
	}
}

// ResetPending is the reconciler's corrective demotion: the recorded file is
// missing or corrupt, so the track goes back into the work list. Counters are
// kept; attempt_count is monotonic across runs.
func ResetPending() Transition {
	return func(s DownloadState) DownloadState {
		s.Status = StatusPending
		s.FilePath = ""
		s.CompletedAt = 0
		return s
	}
}
