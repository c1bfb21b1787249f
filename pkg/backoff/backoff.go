package backoff

import (
	"math/rand/v2"
	"time"
)

// Backoff implements an exponential backoff strategy that caps the calculated
// delay at a configured maximum. Each delay carries additive jitter of up to
// half the un-jittered step so that a fleet of daemons reconnecting to the
// same broker does not stampede it. It is intentionally free of external
// dependencies so it can be reused across packages.
//
// The produced sequence is non-decreasing: the jittered value of step n never
// exceeds the un-jittered value of step n+1, and nothing ever exceeds the cap.
type Backoff struct {
	base    time.Duration // starting delay
	max     time.Duration // maximum delay cap
	attempt int           // current attempt counter
}

// New creates a new backoff helper with base and max durations.
func New(base, max time.Duration) *Backoff {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	return &Backoff{
		base: base,
		max:  max,
	}
}

// Next returns the delay for the current attempt and increments the internal
// counter so that each subsequent call produces an exponentially longer delay
// until the configured maximum is reached.
func (b *Backoff) Next() time.Duration {
	// Calculate delay: base * 2^attempt.
	delay := b.base << uint(b.attempt) // shift multiplies by powers of two.
	if delay > b.max {
		delay = b.max
	} else {
		b.attempt++
	}
	if half := delay / 2; half > 0 {
		delay += rand.N(half)
	}
	if delay > b.max {
		delay = b.max
	}
	return delay
}

// Reset sets the attempt counter back to zero so that the next call to Next
// returns the base delay again. This should be called after a successful
// operation to restart the back-off sequence.
func (b *Backoff) Reset() {
	b.attempt = 0
}
