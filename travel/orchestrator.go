package travel

import (
	"context"
	"strings"
	"sync"

	"dctravel/api"
)

// State names the orchestrator's position in its run loop.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StatePolling    State = "polling"
	StateMatching   State = "matching"
	StateWaiting    State = "waiting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// TransferAPI is the remote surface an outbound transfer run needs.
type TransferAPI interface {
	PageInit(ctx context.Context, migrationType int) error
	SubmitTransfer(ctx context.Context, p api.TransferParams) (*api.SubmitResponse, error)
	CheckOrderStatus(ctx context.Context, orderID string) (int, error)
}

// ReturnAPI is the remote surface a return run needs.
type ReturnAPI interface {
	PageInit(ctx context.Context, migrationType int) error
	SubmitReturn(ctx context.Context, p api.ReturnParams) (*api.SubmitResponse, error)
	ListOrders(ctx context.Context, pageIndex, pageNum int) (*api.OrderPage, error)
}

// pageInit modes. The service wants the mode of the page a human would be
// on: the transfer form for outbound, the order list for returns.
const (
	pageInitTransfer = TypeOutbound
	pageInitReturn   = 0
)

const defaultOrderPageSize = 10

// Config holds the parameters needed to create an Orchestrator.
type Config struct {
	Logf    LogFunc
	Debugf  LogFunc
	Emitter EventEmitter
	Record  RecordFunc

	Backoff    Waiter
	Poll       Poller // transfer status polling, defaults 10 x 5s
	ReturnPoll Poller // return order-list polling, defaults 12 x 5s
}

// Orchestrator drives a single action run to its terminal outcome. The
// outer loop retries indefinitely until success or cancellation — that is
// the intended contract (the remote action is expected to eventually
// succeed), not a missing bound. Exactly one outcome record is produced
// per run.
type Orchestrator struct {
	logf    LogFunc
	debugf  LogFunc
	emitter EventEmitter
	record  RecordFunc

	backoff    Waiter
	poll       Poller
	returnPoll Poller

	mu        sync.Mutex
	state     State
	attempts  int
	orderID   string
	remaining int
}

// New creates an Orchestrator. A zero Config yields a silent instance with
// the service's standard timings.
func New(c Config) *Orchestrator {
	logf := c.Logf
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	debugf := c.Debugf
	if debugf == nil {
		debugf = func(string, ...interface{}) {}
	}
	emitter := c.Emitter
	if emitter == nil {
		emitter = NopEmitter{}
	}

	poll := c.Poll
	if poll.MaxAttempts <= 0 {
		poll.MaxAttempts = defaultPollAttempts
	}
	returnPoll := c.ReturnPoll
	if returnPoll.MaxAttempts <= 0 {
		returnPoll.MaxAttempts = 12
	}

	o := &Orchestrator{
		logf:       logf,
		debugf:     debugf,
		emitter:    emitter,
		record:     c.Record,
		backoff:    c.Backoff,
		poll:       poll,
		returnPoll: returnPoll,
		state:      StateIdle,
	}

	userTick := o.backoff.OnTick
	o.backoff.OnTick = func(remaining int) {
		o.mu.Lock()
		o.remaining = remaining
		o.mu.Unlock()
		o.emitter.EmitBackoffTick(remaining)
		if userTick != nil {
			userTick(remaining)
		}
	}
	return o
}

// Snapshot is a point-in-time view of a run for presentation layers.
type Snapshot struct {
	State     State  `json:"state"`
	Attempts  int    `json:"attempts"`
	OrderID   string `json:"order_id,omitempty"`
	Remaining int    `json:"backoff_remaining,omitempty"`
}

// Snapshot returns the current run state. Safe to call from any goroutine.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{
		State:     o.state,
		Attempts:  o.attempts,
		OrderID:   o.orderID,
		Remaining: o.remaining,
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	old := o.state
	o.state = s
	if s != StateWaiting {
		o.remaining = 0
	}
	o.mu.Unlock()
	if old != s {
		o.emitter.EmitStateChanged(old, s)
	}
}

func (o *Orchestrator) nextAttempt() int {
	o.mu.Lock()
	o.attempts++
	n := o.attempts
	o.mu.Unlock()
	return n
}

func (o *Orchestrator) setOrderID(id string) {
	o.mu.Lock()
	o.orderID = id
	o.mu.Unlock()
}

// finish records the single outcome of the run and reports it.
func (o *Orchestrator) finish(rec Record, result Result, orderID string) Outcome {
	o.mu.Lock()
	attempts := o.attempts
	o.mu.Unlock()

	out := Outcome{Result: result, OrderID: orderID, Attempts: attempts}

	switch result {
	case ResultSucceeded:
		o.setState(StateSucceeded)
	case ResultCancelled:
		o.setState(StateCancelled)
	default:
		o.setState(StateFailed)
	}

	if o.record != nil {
		rec.Succeeded = result == ResultSucceeded
		rec.OrderID = orderID
		rec.Attempts = attempts
		o.record(rec)
	}
	o.emitter.EmitFinished(out)
	o.logf("run %s after %d attempt(s)", result, attempts)
	return out
}

// RunTransfer drives an outbound transfer to its terminal outcome.
func (o *Orchestrator) RunTransfer(ctx context.Context, svc TransferAPI, req TransferRequest) Outcome {
	if err := svc.PageInit(ctx, pageInitTransfer); err != nil {
		o.logf("page init: %v (continuing)", err)
	}

	rec := Record{
		Role:         req.Role.RoleName,
		SourceArea:   req.SourceArea.AreaName,
		SourceServer: req.SourceServer.GroupName,
		TargetArea:   req.TargetArea.AreaName,
		TargetServer: req.TargetServer.GroupName,
	}
	params := api.TransferParams{
		AreaID:          req.SourceArea.AreaID.String(),
		AreaName:        req.SourceArea.AreaName,
		GroupID:         req.SourceServer.GroupID.String(),
		GroupCode:       req.SourceServer.GroupCode.String(),
		GroupName:       req.SourceServer.GroupName,
		TargetAreaID:    req.TargetArea.AreaID.String(),
		TargetAreaName:  req.TargetArea.AreaName,
		TargetGroupID:   req.TargetServer.GroupID.String(),
		TargetGroupCode: req.TargetServer.GroupCode.String(),
		TargetGroupName: req.TargetServer.GroupName,
		RoleID:          req.Role.RoleID.String(),
		RoleName:        req.Role.RoleName,
	}

	for {
		attempt := o.nextAttempt()
		o.setState(StateSubmitting)
		o.emitter.EmitAttemptStarted(attempt)
		o.logf("attempt %d: submitting transfer for %s (%s/%s -> %s/%s)",
			attempt, req.Role.RoleName,
			req.SourceArea.AreaName, req.SourceServer.GroupName,
			req.TargetArea.AreaName, req.TargetServer.GroupName)

		resp, err := svc.SubmitTransfer(ctx, params)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return o.finish(rec, ResultCancelled, "")
			}
			// Transient: absorbed, retried after backoff.
			o.logf("submit transfer: %v", err)

		case resp.Accepted():
			o.setOrderID(resp.OrderID)
			o.emitter.EmitOrderSubmitted(resp.OrderID)
			o.logf("order %s accepted, polling status", resp.OrderID)
			o.setState(StatePolling)

			switch o.poll.Poll(ctx, o.transferCheck(svc, resp.OrderID)) {
			case PollSucceeded:
				return o.finish(rec, ResultSucceeded, resp.OrderID)
			case PollPrecheckFailed:
				// The service requires a fresh submission after a precheck
				// rejection; the rejected order is dead.
				o.logf("order %s failed precheck, resubmitting after backoff", resp.OrderID)
			case PollTimedOut:
				o.logf("order %s status unresolved, resubmitting after backoff", resp.OrderID)
			}
			if ctx.Err() != nil {
				return o.finish(rec, ResultCancelled, resp.OrderID)
			}

		case resp.ResultCode == 0 || resp.ResultCode == CodeArrived:
			// Immediate success payload, nothing to poll.
			return o.finish(rec, ResultSucceeded, "")

		default:
			o.logf("transfer rejected: %s (code %d), retrying after backoff", resp.ResultMsg, resp.ResultCode)
		}

		o.setState(StateWaiting)
		if o.backoff.Wait(ctx) == WaitCancelled {
			o.logf("cancelled during backoff")
			return o.finish(rec, ResultCancelled, "")
		}
	}
}

// transferCheck builds the per-poll status check for an accepted order.
// Remote failures are absorbed into StatusPending.
func (o *Orchestrator) transferCheck(svc TransferAPI, orderID string) CheckFunc {
	return func(ctx context.Context, attempt int) Classification {
		var c Classification
		code, err := svc.CheckOrderStatus(ctx, orderID)
		switch {
		case err != nil:
			o.logf("check order status: %v", err)
			c = StatusPending
		default:
			c = ClassifyCode(code)
			if c == StatusUnknown {
				o.logf("order %s: unclassified status code %d, treating as pending", orderID, code)
			}
		}
		o.emitter.EmitStatusChecked(attempt, o.poll.MaxAttempts, c)
		o.debugf("order %s: poll %d/%d -> %s", orderID, attempt, o.poll.MaxAttempts, c)
		return c
	}
}

// RunReturn drives a return-to-origin action to its terminal outcome. The
// caller has already located the travel order (see FindReturnable).
func (o *Orchestrator) RunReturn(ctx context.Context, svc ReturnAPI, req ReturnRequest) Outcome {
	if err := svc.PageInit(ctx, pageInitReturn); err != nil {
		o.logf("page init: %v (continuing)", err)
	}

	rec := Record{
		Role:         req.RoleName,
		SourceArea:   req.CurrentArea.AreaName,
		SourceServer: req.CurrentServer.GroupName,
		TargetArea:   req.HomeAreaName,
		TargetServer: req.HomeServerName,
	}
	params := api.ReturnParams{
		TravelOrderID: req.TravelOrderID,
		GroupID:       req.CurrentServer.GroupID.String(),
		GroupCode:     req.CurrentServer.GroupCode.String(),
		GroupName:     req.CurrentServer.GroupName,
	}

	for {
		attempt := o.nextAttempt()
		o.setState(StateSubmitting)
		o.emitter.EmitAttemptStarted(attempt)
		o.logf("attempt %d: submitting return for order %s (%s/%s -> %s/%s)",
			attempt, req.TravelOrderID,
			req.CurrentArea.AreaName, req.CurrentServer.GroupName,
			req.HomeAreaName, req.HomeServerName)

		resp, err := svc.SubmitReturn(ctx, params)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return o.finish(rec, ResultCancelled, "")
			}
			o.logf("submit return: %v", err)

		case resp.HasResult && resp.ResultCode == 0:
			returnOrderID := resp.OrderID
			if returnOrderID != "" {
				o.setOrderID(returnOrderID)
				o.emitter.EmitOrderSubmitted(returnOrderID)
				o.logf("return accepted, order %s, watching order list", returnOrderID)
			} else {
				o.logf("return accepted, watching order list")
			}
			o.setState(StateMatching)

			switch o.returnPoll.Poll(ctx, o.returnCheck(svc, req.TravelOrderID, returnOrderID)) {
			case PollSucceeded:
				id := returnOrderID
				if id == "" {
					id = req.TravelOrderID
				}
				return o.finish(rec, ResultSucceeded, id)
			case PollPrecheckFailed:
				o.logf("return reported failed, resubmitting after backoff")
			case PollTimedOut:
				o.logf("return not confirmed, resubmitting after backoff")
			}
			if ctx.Err() != nil {
				return o.finish(rec, ResultCancelled, returnOrderID)
			}

		default:
			o.logf("return rejected: %s (code %d), retrying after backoff", resp.ResultMsg, resp.ResultCode)
		}

		o.setState(StateWaiting)
		if o.backoff.Wait(ctx) == WaitCancelled {
			o.logf("cancelled during backoff")
			return o.finish(rec, ResultCancelled, "")
		}
	}
}

// returnCheck builds the per-poll order-list check of the return flow.
// Return orders carry textual status only, so classification goes through
// ClassifyDesc; the original travel order closing out also counts as
// success.
func (o *Orchestrator) returnCheck(svc ReturnAPI, travelOrderID, returnOrderID string) CheckFunc {
	return func(ctx context.Context, attempt int) Classification {
		c := o.checkReturnOnce(ctx, svc, travelOrderID, returnOrderID)
		o.emitter.EmitStatusChecked(attempt, o.returnPoll.MaxAttempts, c)
		o.debugf("return %s: poll %d/%d -> %s", travelOrderID, attempt, o.returnPoll.MaxAttempts, c)
		return c
	}
}

func (o *Orchestrator) checkReturnOnce(ctx context.Context, svc ReturnAPI, travelOrderID, returnOrderID string) Classification {
	page, err := svc.ListOrders(ctx, 1, defaultOrderPageSize)
	if err != nil {
		o.logf("list orders: %v", err)
		return StatusPending
	}

	for _, ord := range page.Orders {
		if ord.MigrationType != TypeReturn {
			continue
		}
		if ord.OrderID != returnOrderID && ord.OrderID != travelOrderID {
			continue
		}
		if c := ClassifyDesc(ord.StatusDesc); c != StatusPending {
			o.logf("return order %s: %s", ord.OrderID, ord.StatusDesc)
			return c
		}
		o.debugf("return order %s still pending: %s", ord.OrderID, ord.StatusDesc)
	}

	// The travel order flipping to "ended" means the return went through
	// even if the return order itself has not shown up yet.
	for _, ord := range page.Orders {
		if ord.OrderID != travelOrderID || ord.MigrationType != TypeOutbound {
			continue
		}
		if strings.Contains(ord.StatusDesc, markerTravelEnded) || ord.TravelStatus == TravelStatusEnded {
			o.logf("travel order %s closed out: %s", ord.OrderID, ord.StatusDesc)
			return StatusSuccess
		}
	}
	return StatusPending
}
