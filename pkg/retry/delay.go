package retry

import (
	"sync/atomic"
	"time"

	"github.com/jdziat/distexec/pkg/security"
)

// Default backoff settings.
const (
	DefaultDelayStep  = 100 * time.Millisecond
	DefaultMaxDelay   = 1000 * time.Millisecond
	DefaultCloseGrace = 100 * time.Millisecond
)

// Delay is a shared backoff counter. Each retry attempt takes the current
// value and advances it by step, never beyond max. A successful attempt
// resets it to zero.
type Delay struct {
	current atomic.Int64
	step    time.Duration
	max     time.Duration
}

// NewDelay creates a delay starting at zero. step and max are clamped to
// sane bounds.
func NewDelay(step, max time.Duration) *Delay {
	step = security.ClampDelayStep(step)
	return &Delay{
		step: step,
		max:  security.ClampMaxDelay(max, step),
	}
}

// Next returns the delay for this attempt and advances the counter.
func (d *Delay) Next() time.Duration {
	for {
		cur := d.current.Load()
		next := cur + int64(d.step)
		if next > int64(d.max) {
			next = int64(d.max)
		}
		if d.current.CompareAndSwap(cur, next) {
			return time.Duration(cur)
		}
	}
}

// Current returns the delay the next attempt would wait.
func (d *Delay) Current() time.Duration {
	return time.Duration(d.current.Load())
}

// Reset sets the delay back to zero.
func (d *Delay) Reset() {
	d.current.Store(0)
}

// Max returns the cap.
func (d *Delay) Max() time.Duration {
	return d.max
}
