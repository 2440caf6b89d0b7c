package travel

// EventEmitter is the interface the orchestrator uses to surface progress
// to a presentation layer. Implementations must return quickly; events are
// delivered from the run's own goroutine.
type EventEmitter interface {
	EmitStateChanged(oldState, newState State)
	EmitAttemptStarted(attempt int)
	EmitOrderSubmitted(orderID string)
	EmitStatusChecked(attempt, maxAttempts int, c Classification)
	EmitBackoffTick(remainingSeconds int)
	EmitFinished(outcome Outcome)
}

// NopEmitter discards all events.
type NopEmitter struct{}

func (NopEmitter) EmitStateChanged(oldState, newState State)               {}
func (NopEmitter) EmitAttemptStarted(attempt int)                          {}
func (NopEmitter) EmitOrderSubmitted(orderID string)                       {}
func (NopEmitter) EmitStatusChecked(attempt, maxAttempts int, c Classification) {}
func (NopEmitter) EmitBackoffTick(remainingSeconds int)                    {}
func (NopEmitter) EmitFinished(outcome Outcome)                            {}
