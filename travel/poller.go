package travel

import (
	"context"
	"time"
)

// PollResult reports how a polling cycle ended.
type PollResult int

const (
	PollSucceeded PollResult = iota
	PollPrecheckFailed
	PollTimedOut
)

// CheckFunc performs one status check and classifies it. Implementations
// absorb their own remote-call failures into a classification value.
type CheckFunc func(ctx context.Context, attempt int) Classification

// Poller re-checks an order's status on a fixed short interval up to a
// bounded attempt count. The inter-attempt sleep is a plain short wait,
// deliberately distinct from the long cancellable backoff between
// submissions.
type Poller struct {
	MaxAttempts int           // 0 means the default 10
	Interval    time.Duration // 0 means the default 5s
}

const (
	defaultPollAttempts = 10
	defaultPollInterval = 5 * time.Second
)

// Poll invokes check until it yields a terminal classification or the
// attempt budget runs out. Exhausting the budget yields PollTimedOut, which
// callers treat as a reason to re-enter the retry cycle, not as a final
// failure.
func (p *Poller) Poll(ctx context.Context, check CheckFunc) PollResult {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = defaultPollAttempts
	}
	interval := p.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		switch check(ctx, attempt) {
		case StatusSuccess:
			return PollSucceeded
		case StatusPrecheckFailed:
			return PollPrecheckFailed
		}
		if ctx.Err() != nil {
			// Cancellation is acted on by the caller; stop burning attempts.
			return PollTimedOut
		}
		if attempt < attempts {
			time.Sleep(interval)
		}
	}
	return PollTimedOut
}
