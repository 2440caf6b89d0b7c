package travel

import "strings"

// Classification is the abstract outcome of a single status check.
type Classification int

const (
	StatusPending Classification = iota
	StatusSuccess
	StatusPrecheckFailed
	StatusUnknown
)

func (c Classification) String() string {
	switch c {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusPrecheckFailed:
		return "precheck_failed"
	}
	return "unknown"
}

// Numeric migration status codes reported by the service.
const (
	CodePrecheckFailed = -1
	CodeWaiting        = 0
	CodeProcessing     = 1
	CodeInTransit      = 4
	CodeArrived        = 5
)

// numericStatus is the single source of truth for code classification.
var numericStatus = map[int]Classification{
	CodePrecheckFailed: StatusPrecheckFailed,
	CodeWaiting:        StatusPending,
	CodeProcessing:     StatusPending,
	CodeInTransit:      StatusPending,
	CodeArrived:        StatusSuccess,
}

// ClassifyCode maps a numeric migration status onto an abstract outcome.
// Codes outside the table are Unknown: callers treat them as pending for
// retry purposes but log them distinctly.
func ClassifyCode(code int) Classification {
	if c, ok := numericStatus[code]; ok {
		return c
	}
	return StatusUnknown
}

// Textual markers the service embeds in migrationStatusDesc. Return orders
// report progress as free text (Chinese) instead of a numeric code.
const (
	markerInTransit       = "旅行中"
	markerReturnSucceeded = "返回成功"
	markerFailed          = "失败"
	markerTravelEnded     = "旅行结束"
)

// ClassifyDesc maps a free-text status description onto an abstract
// outcome. This path exists only for order types that carry descriptive
// status; it is not interchangeable with ClassifyCode.
func ClassifyDesc(desc string) Classification {
	switch {
	case strings.Contains(desc, markerReturnSucceeded):
		return StatusSuccess
	case strings.Contains(desc, markerFailed):
		return StatusPrecheckFailed
	default:
		return StatusPending
	}
}
