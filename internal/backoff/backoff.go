// Package backoff sizes the pool-wide pause applied after the upstream flags
// a fetch as automated. The delay is computed from how suspicious the batch
// currently looks, not from a fixed schedule.
package backoff

import (
	"math/rand"
	"time"
)

const (
	// BaseDelay is the conservative lower bound; short-lived upstream blocks
	// tend to clear within it.
	BaseDelay = 45 * time.Second

	// MinDelay and MaxDelay clamp the result so a batch always makes forward
	// progress and never stalls indefinitely on one incident.
	MinDelay = 30 * time.Second
	MaxDelay = 4 * time.Minute

	// threadFactor grows the pause per extra concurrent fetcher; more
	// parallel connections look more automated.
	threadFactor = 0.4

	// problemTrackThreshold marks a track whose own failure count earns it an
	// extra penalty.
	problemTrackThreshold = 3
	problemTrackFactor    = 1.5

	// jitterFraction randomizes the delay by ±20% so pauses never form a
	// predictable fixed-period pattern.
	jitterFraction = 0.2
)

// Params describes one bot-detection incident.
type Params struct {
	// Threads is the configured worker count for the run.
	Threads int
	// BatchFailureRate is failures/attempts over the recent window, 0..1.
	BatchFailureRate float64
	// TrackFailureCount is the offending track's own failure counter.
	TrackFailureCount int
}

// Delay maps an incident to the pause applied to the whole pool. Pure apart
// from the supplied random source; pass a seeded *rand.Rand for deterministic
// tests, or nil to use the global source.
func Delay(p Params, rng *rand.Rand) time.Duration {
	d := float64(BaseDelay)

	threads := p.Threads
	if threads < 1 {
		threads = 1
	}
	d *= 1 + threadFactor*float64(threads-1)

	rate := p.BatchFailureRate
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	d *= 1 + rate // up to 2x as the batch failure rate approaches 100%

	if p.TrackFailureCount > problemTrackThreshold {
		d *= problemTrackFactor
	}

	d *= 1 + jitterFraction*(2*randFloat(rng)-1)

	delay := time.Duration(d)
	if delay < MinDelay {
		delay = MinDelay
	}
	if delay > MaxDelay {
		delay = MaxDelay
	}
	return delay
}

func randFloat(rng *rand.Rand) float64 {
	if rng != nil {
		return rng.Float64()
	}
	return rand.Float64()
}
