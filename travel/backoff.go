package travel

import (
	"context"
	"math/rand"
	"time"
)

// WaitResult reports how a backoff wait ended.
type WaitResult int

const (
	WaitCompleted WaitResult = iota
	WaitCancelled
)

// Waiter performs the randomized pause between attempts. The duration is
// drawn uniformly from [MinSeconds, MaxSeconds] on every call so repeated
// clients hammering the same service desynchronize. The wait runs as
// one-second ticks and observes cancellation at every tick — this is the
// engine's only long suspension point.
type Waiter struct {
	MinSeconds int // inclusive; 0 means the default 61
	MaxSeconds int // inclusive; 0 means the default 65

	// Tick overrides the one-second tick granularity (tests).
	Tick time.Duration

	// OnTick, if set, fires once per tick with the seconds remaining.
	OnTick func(remaining int)
}

const (
	defaultMinWaitSeconds = 61
	defaultMaxWaitSeconds = 65
)

// pickSeconds draws the wait length for one invocation.
func (w *Waiter) pickSeconds() int {
	min, max := w.MinSeconds, w.MaxSeconds
	if min <= 0 {
		min = defaultMinWaitSeconds
	}
	if max <= 0 {
		max = defaultMaxWaitSeconds
	}
	if max < min {
		max = min
	}
	return min + rand.Intn(max-min+1)
}

// Wait blocks for the drawn duration, firing OnTick each second. If ctx is
// cancelled the wait stops at the current tick and returns WaitCancelled;
// no further ticks fire.
func (w *Waiter) Wait(ctx context.Context) WaitResult {
	tick := w.Tick
	if tick <= 0 {
		tick = time.Second
	}

	seconds := w.pickSeconds()
	for remaining := seconds; remaining > 0; remaining-- {
		if w.OnTick != nil {
			w.OnTick(remaining)
		}
		select {
		case <-ctx.Done():
			return WaitCancelled
		case <-time.After(tick):
		}
	}
	return WaitCompleted
}
