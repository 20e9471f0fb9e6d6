// internal/physics/runner.go
//
// Fixed-update driver for a World.
//
// The runner does not call Step itself: it only produces ticks at a steady
// rate so the owning loop can step the world and read positions on its own
// goroutine. A stopped runner exposes a nil channel, which blocks forever in
// a select, so the owner needs no extra state to ignore it.

package physics

import "time"

// DefaultTickRate is the number of fixed updates per second.
const DefaultTickRate = 60

// Runner is a start/stop ticker with a fixed delta.
// It is not safe for concurrent use.
type Runner struct {
	interval time.Duration
	ticker   *time.Ticker
}

// NewRunner returns a stopped runner ticking rate times per second.
// A non-positive rate falls back to DefaultTickRate.
func NewRunner(rate int) *Runner {
	if rate <= 0 {
		rate = DefaultTickRate
	}
	return &Runner{interval: time.Second / time.Duration(rate)}
}

// Start begins ticking. Calling Start on a running runner is a no-op.
func (r *Runner) Start() {
	if r.ticker != nil {
		return
	}
	r.ticker = time.NewTicker(r.interval)
}

// Stop halts the runner. Pending ticks are dropped.
func (r *Runner) Stop() {
	if r.ticker == nil {
		return
	}
	r.ticker.Stop()
	r.ticker = nil
}

// Running reports whether the runner is producing ticks.
func (r *Runner) Running() bool { return r.ticker != nil }

// C returns the tick channel, or nil when stopped.
func (r *Runner) C() <-chan time.Time {
	if r.ticker == nil {
		return nil
	}
	return r.ticker.C
}

// Delta is the fixed simulation step in seconds.
func (r *Runner) Delta() float64 { return r.interval.Seconds() }

// Interval is the wall-clock period between ticks.
func (r *Runner) Interval() time.Duration { return r.interval }
