// Package backoff provides idle-poll delay strategies for worker slots.
// A slot that finds its queue empty asks a Strategy how long to wait before
// claiming again; the delay grows with consecutive empty polls and resets
// once a job is claimed. Strategies are stateless and safe for concurrent
// use. Tracker holds the per-slot miss count.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the wait after a run of empty polls.
type Strategy interface {
	// Delay returns how long to wait after misses consecutive empty polls.
	// misses is at least 1.
	Delay(misses int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always waits the same interval.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the wait on every consecutive miss.
// Delay = min(Min * 2^(misses-1), Max).
type Exponential struct {
	Min time.Duration
	Max time.Duration
}

// NewExponential creates an exponential strategy bounded by [minDelay, maxDelay].
func NewExponential(minDelay, maxDelay time.Duration) *Exponential {
	return &Exponential{Min: minDelay, Max: maxDelay}
}

// Delay returns Min * 2^(misses-1), capped at Max.
func (e *Exponential) Delay(misses int) time.Duration {
	if misses < 1 {
		misses = 1
	}
	d := float64(e.Min) * math.Pow(2, float64(misses-1))
	if e.Max > 0 && d > float64(e.Max) {
		return e.Max
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// ──────────────────────────────────────────────────
// Jitter
// ──────────────────────────────────────────────────

// Jitter spreads another strategy's delay by up to ±Fraction so slots of the
// same pool do not poll the store in lockstep.
type Jitter struct {
	Base     Strategy
	Fraction float64
}

// WithJitter wraps base with ±fraction jitter. fraction is clamped to [0, 1].
func WithJitter(base Strategy, fraction float64) *Jitter {
	return &Jitter{Base: base, Fraction: math.Max(0, math.Min(1, fraction))}
}

// Delay returns the base delay scaled by a random factor in [1-F, 1+F].
func (j *Jitter) Delay(misses int) time.Duration {
	d := float64(j.Base.Delay(misses))
	factor := 1 + j.Fraction*(2*rand.Float64()-1) //nolint:gosec // jitter intentionally uses non-crypto rand
	return time.Duration(d * factor)
}

// ──────────────────────────────────────────────────
// Tracker
// ──────────────────────────────────────────────────

// Tracker counts consecutive empty polls for a single slot. It is not safe
// for concurrent use; each slot owns one.
type Tracker struct {
	strategy Strategy
	misses   int
}

// NewTracker returns a Tracker driven by s.
func NewTracker(s Strategy) *Tracker {
	return &Tracker{strategy: s}
}

// Miss records an empty poll and returns how long to wait.
func (t *Tracker) Miss() time.Duration {
	if t.misses < math.MaxInt32 {
		t.misses++
	}
	return t.strategy.Delay(t.misses)
}

// Reset clears the miss count after a successful claim.
func (t *Tracker) Reset() {
	t.misses = 0
}

// Misses returns the current run of empty polls.
func (t *Tracker) Misses() int {
	return t.misses
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// DefaultStrategy returns the idle backoff used by worker pools:
// Exponential from minDelay up to maxDelay with 10% jitter.
func DefaultStrategy(minDelay, maxDelay time.Duration) Strategy {
	return WithJitter(NewExponential(minDelay, maxDelay), 0.1)
}
