package fetch

import (
	"sync"
	"time"
)

// AdaptiveDelay is the request spacing for one target. It grows on blocking
// signals and shrinks after a run of successes, always within [min, max].
type AdaptiveDelay struct {
	mu           sync.Mutex
	current      time.Duration
	min, max     time.Duration
	factor       float64
	recoverAfter int
	streak       int
}

// NewAdaptiveDelay creates a delay starting at base.
func NewAdaptiveDelay(base, min, max time.Duration, factor float64, recoverAfter int) *AdaptiveDelay {
	if max < min {
		max = min
	}
	if factor <= 1 {
		factor = 2
	}
	if recoverAfter <= 0 {
		recoverAfter = 1
	}
	return &AdaptiveDelay{
		current:      clamp(base, min, max),
		min:          min,
		max:          max,
		factor:       factor,
		recoverAfter: recoverAfter,
	}
}

// Current returns the delay to apply before the next request.
func (d *AdaptiveDelay) Current() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Blocked records a blocking signal (403, 429, 503 or an empty body). The
// delay strictly increases unless it is already at the maximum.
func (d *AdaptiveDelay) Blocked() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.streak = 0
	next := time.Duration(float64(d.current) * d.factor)
	if next <= d.current {
		step := d.min
		if step < 10*time.Millisecond {
			step = 10 * time.Millisecond
		}
		next = d.current + step
	}
	d.current = clamp(next, d.min, d.max)
	return d.current
}

// Succeeded records a successful request. After recoverAfter consecutive
// successes the delay shrinks by the factor.
func (d *AdaptiveDelay) Succeeded() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.streak++
	if d.streak >= d.recoverAfter {
		d.streak = 0
		d.current = clamp(time.Duration(float64(d.current)/d.factor), d.min, d.max)
	}
	return d.current
}

// Failed records a non-blocking failure. It breaks the success streak but
// leaves the delay alone.
func (d *AdaptiveDelay) Failed() {
	d.mu.Lock()
	d.streak = 0
	d.mu.Unlock()
}
