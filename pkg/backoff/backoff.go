// Package backoff implements the exponential-jitter retry schedules used by
// the controller status/listen stream restart loop and the client's
// indefinite GetLease retry during lease acquisition.
package backoff

import (
	"math/rand"
	"time"
)

// Jittered produces a sequence of exponentially growing delays, capped at
// Max, with full jitter (a uniform random delay in [0, computed)) so that
// many clients backing off simultaneously don't retry in lockstep.
type Jittered struct {
	Initial time.Duration
	Max     time.Duration

	attempt int
}

// Reset restarts the sequence at Initial, used after a successful call.
func (j *Jittered) Reset() {
	j.attempt = 0
}

// Next returns the delay to wait before the next attempt and advances the
// sequence.
func (j *Jittered) Next() time.Duration {
	base := j.Initial << j.attempt
	if base <= 0 || base > j.Max {
		base = j.Max
	}
	if j.attempt < 62 {
		j.attempt++
	}
	if base <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(base)))
}

// Bounded is a fixed-count retry schedule, used for the controller
// status/listen stream restart loop which fails upward after N retries
// instead of retrying indefinitely.
type Bounded struct {
	Jittered
	MaxRetries int

	retries int
}

// Allow reports whether another retry is permitted and, if so, returns the
// delay to wait; it returns ok=false once MaxRetries has been exhausted.
func (b *Bounded) Allow() (delay time.Duration, ok bool) {
	if b.retries >= b.MaxRetries {
		return 0, false
	}
	b.retries++
	return b.Next(), true
}

func (b *Bounded) Reset() {
	b.Jittered.Reset()
	b.retries = 0
}
