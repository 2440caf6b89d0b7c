package travel

import "dctravel/api"

// LogFunc is the logging callback signature.
type LogFunc func(format string, args ...interface{})

// Result is the tri-state outcome of an orchestrator run.
type Result int

const (
	ResultSucceeded Result = iota
	ResultFailed
	ResultCancelled
)

func (r Result) String() string {
	switch r {
	case ResultSucceeded:
		return "succeeded"
	case ResultFailed:
		return "failed"
	case ResultCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Outcome is produced exactly once per run. A Cancelled outcome is
// user-initiated and distinct from Failed; it is never retried.
type Outcome struct {
	Result   Result `json:"result"`
	OrderID  string `json:"order_id,omitempty"`
	Attempts int    `json:"attempts"`
}

// TransferRequest is the validated selection tuple for an outbound
// transfer. Constructed by the caller; immutable input to the orchestrator.
type TransferRequest struct {
	SourceArea   api.Area
	SourceServer api.Group
	TargetArea   api.Area
	TargetServer api.Group
	Role         api.Role
}

// ReturnRequest identifies the in-flight travel order to reverse and where
// the character currently is. Home fields are informational (history).
type ReturnRequest struct {
	TravelOrderID string
	RoleName      string

	CurrentArea   api.Area
	CurrentServer api.Group

	HomeAreaName   string
	HomeServerName string
}

// Record is the outcome-recording payload, delivered exactly once per run
// after the terminal state is reached (Cancelled records as unsuccessful).
type Record struct {
	Role         string
	SourceArea   string
	SourceServer string
	TargetArea   string
	TargetServer string
	Succeeded    bool
	OrderID      string
	Attempts     int
}

// RecordFunc is the outcome-recording collaborator.
type RecordFunc func(rec Record)
