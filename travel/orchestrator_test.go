package travel

import (
	"context"
	"errors"
	"testing"
	"time"

	"dctravel/api"
)

// fastConfig returns orchestrator settings with millisecond timings and a
// capture of every outcome record.
func fastConfig(records *[]Record) Config {
	return Config{
		Record: func(rec Record) { *records = append(*records, rec) },
		Backoff: Waiter{
			MinSeconds: 2,
			MaxSeconds: 2,
			Tick:       time.Millisecond,
		},
		Poll:       Poller{MaxAttempts: 10, Interval: time.Millisecond},
		ReturnPoll: Poller{MaxAttempts: 12, Interval: time.Millisecond},
	}
}

// countingEmitter counts transitions into the waiting state.
type countingEmitter struct {
	NopEmitter
	waits int
}

func (e *countingEmitter) EmitStateChanged(oldState, newState State) {
	if newState == StateWaiting {
		e.waits++
	}
}

type fakeTransferAPI struct {
	submits     []*api.SubmitResponse // nil entry means a network failure
	submitCalls int
	statuses    []int
	statusCalls int
}

func (f *fakeTransferAPI) PageInit(ctx context.Context, migrationType int) error { return nil }

func (f *fakeTransferAPI) SubmitTransfer(ctx context.Context, p api.TransferParams) (*api.SubmitResponse, error) {
	i := f.submitCalls
	f.submitCalls++
	if i >= len(f.submits) {
		return nil, errors.New("fake: no scripted submit response")
	}
	if f.submits[i] == nil {
		return nil, errors.New("fake: connection reset")
	}
	return f.submits[i], nil
}

func (f *fakeTransferAPI) CheckOrderStatus(ctx context.Context, orderID string) (int, error) {
	i := f.statusCalls
	f.statusCalls++
	if i >= len(f.statuses) {
		return 0, errors.New("fake: no scripted status")
	}
	return f.statuses[i], nil
}

func testRequest() TransferRequest {
	return TransferRequest{
		SourceArea:   api.Area{AreaID: "1", AreaName: "Luxendarc"},
		SourceServer: api.Group{GroupID: "11", GroupCode: "lux1", GroupName: "Yulyana"},
		TargetArea:   api.Area{AreaID: "2", AreaName: "Eternia"},
		TargetServer: api.Group{GroupID: "21", GroupCode: "ete1", GroupName: "Braev"},
		Role:         api.Role{RoleID: "900", RoleName: "Tiz"},
	}
}

// Scenario: submit is accepted, the first two polls report pending, the
// third reports success. One submission, one outcome.
func TestRunTransfer_SucceedsAfterPolling(t *testing.T) {
	svc := &fakeTransferAPI{
		submits:  []*api.SubmitResponse{{OrderID: "GM100"}},
		statuses: []int{1, 1, 5},
	}
	var records []Record
	orch := New(fastConfig(&records))

	out := orch.RunTransfer(context.Background(), svc, testRequest())

	if out.Result != ResultSucceeded {
		t.Fatalf("result = %s, want succeeded", out.Result)
	}
	if out.OrderID != "GM100" || out.Attempts != 1 {
		t.Errorf("outcome = %+v, want order GM100 after 1 attempt", out)
	}
	if svc.submitCalls != 1 {
		t.Errorf("submit called %d times, want 1", svc.submitCalls)
	}
	if svc.statusCalls != 3 {
		t.Errorf("status checked %d times, want 3", svc.statusCalls)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want exactly 1", len(records))
	}
	rec := records[0]
	if !rec.Succeeded || rec.OrderID != "GM100" || rec.Role != "Tiz" {
		t.Errorf("record = %+v, want succeeded for Tiz with GM100", rec)
	}
}

// Scenario: the service answers busy twice, then accepts; two backoff
// waits happen before the run succeeds.
func TestRunTransfer_RetriesOnBusy(t *testing.T) {
	busy := &api.SubmitResponse{ResultCode: 2, ResultMsg: "busy", HasResult: true}
	svc := &fakeTransferAPI{
		submits:  []*api.SubmitResponse{busy, busy, {OrderID: "GM200"}},
		statuses: []int{5},
	}
	var records []Record
	cfg := fastConfig(&records)
	emitter := &countingEmitter{}
	cfg.Emitter = emitter
	orch := New(cfg)

	out := orch.RunTransfer(context.Background(), svc, testRequest())

	if out.Result != ResultSucceeded {
		t.Fatalf("result = %s, want succeeded", out.Result)
	}
	if out.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", out.Attempts)
	}
	if svc.submitCalls != 3 {
		t.Errorf("submit called %d times, want 3", svc.submitCalls)
	}
	if emitter.waits != 2 {
		t.Errorf("observed %d backoff waits, want 2", emitter.waits)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want exactly 1", len(records))
	}
}

// Scenario: cancellation during the first backoff wait. The run reports
// cancelled, records one unsuccessful outcome and never submits again.
func TestRunTransfer_CancelledDuringBackoff(t *testing.T) {
	busy := &api.SubmitResponse{ResultCode: 2, ResultMsg: "busy", HasResult: true}
	svc := &fakeTransferAPI{
		submits: []*api.SubmitResponse{busy, busy, busy},
	}

	ctx, cancel := context.WithCancel(context.Background())
	var records []Record
	cfg := fastConfig(&records)
	cfg.Backoff.MinSeconds = 60
	cfg.Backoff.MaxSeconds = 60
	cfg.Backoff.OnTick = func(remaining int) { cancel() }
	orch := New(cfg)

	out := orch.RunTransfer(ctx, svc, testRequest())

	if out.Result != ResultCancelled {
		t.Fatalf("result = %s, want cancelled", out.Result)
	}
	if svc.submitCalls != 1 {
		t.Errorf("submit called %d times, want 1 (no submissions after cancel)", svc.submitCalls)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want exactly 1", len(records))
	}
	if records[0].Succeeded {
		t.Errorf("cancelled run recorded as succeeded")
	}
}

// A precheck rejection kills the order; the orchestrator must submit a
// fresh one after the backoff rather than re-polling the dead order.
func TestRunTransfer_PrecheckFailedResubmits(t *testing.T) {
	svc := &fakeTransferAPI{
		submits:  []*api.SubmitResponse{{OrderID: "GM1"}, {OrderID: "GM2"}},
		statuses: []int{-1, 5},
	}
	var records []Record
	orch := New(fastConfig(&records))

	out := orch.RunTransfer(context.Background(), svc, testRequest())

	if out.Result != ResultSucceeded {
		t.Fatalf("result = %s, want succeeded", out.Result)
	}
	if out.OrderID != "GM2" {
		t.Errorf("order id = %s, want the fresh order GM2", out.OrderID)
	}
	if svc.submitCalls != 2 {
		t.Errorf("submit called %d times, want 2", svc.submitCalls)
	}
}

// An immediate success payload short-circuits without any status polling.
func TestRunTransfer_ImmediateResultSuccess(t *testing.T) {
	svc := &fakeTransferAPI{
		submits: []*api.SubmitResponse{{ResultCode: 0, ResultMsg: "ok", HasResult: true}},
	}
	var records []Record
	orch := New(fastConfig(&records))

	out := orch.RunTransfer(context.Background(), svc, testRequest())

	if out.Result != ResultSucceeded {
		t.Fatalf("result = %s, want succeeded", out.Result)
	}
	if svc.statusCalls != 0 {
		t.Errorf("status checked %d times, want 0", svc.statusCalls)
	}
}

// A submit network failure is absorbed and retried after backoff.
func TestRunTransfer_NetworkFailureRetries(t *testing.T) {
	svc := &fakeTransferAPI{
		submits:  []*api.SubmitResponse{nil, {OrderID: "GM9"}},
		statuses: []int{5},
	}
	var records []Record
	orch := New(fastConfig(&records))

	out := orch.RunTransfer(context.Background(), svc, testRequest())

	if out.Result != ResultSucceeded {
		t.Fatalf("result = %s, want succeeded", out.Result)
	}
	if out.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", out.Attempts)
	}
}

type fakeReturnAPI struct {
	submits     []*api.SubmitResponse
	submitCalls int
	pages       []*api.OrderPage
	listCalls   int
}

func (f *fakeReturnAPI) PageInit(ctx context.Context, migrationType int) error { return nil }

func (f *fakeReturnAPI) SubmitReturn(ctx context.Context, p api.ReturnParams) (*api.SubmitResponse, error) {
	i := f.submitCalls
	f.submitCalls++
	if i >= len(f.submits) {
		return nil, errors.New("fake: no scripted submit response")
	}
	if f.submits[i] == nil {
		return nil, errors.New("fake: connection reset")
	}
	return f.submits[i], nil
}

func (f *fakeReturnAPI) ListOrders(ctx context.Context, pageIndex, pageNum int) (*api.OrderPage, error) {
	i := f.listCalls
	f.listCalls++
	if i >= len(f.pages) {
		return &api.OrderPage{}, nil
	}
	return f.pages[i], nil
}

func testReturnRequest() ReturnRequest {
	return ReturnRequest{
		TravelOrderID:  "GM500",
		RoleName:       "Tiz",
		CurrentArea:    api.Area{AreaID: "2", AreaName: "Eternia"},
		CurrentServer:  api.Group{GroupID: "21", GroupCode: "ete1", GroupName: "Braev"},
		HomeAreaName:   "Luxendarc",
		HomeServerName: "Yulyana",
	}
}

func TestRunReturn_SucceedsViaReturnOrderDesc(t *testing.T) {
	svc := &fakeReturnAPI{
		submits: []*api.SubmitResponse{{OrderID: "GM501", ResultCode: 0, HasResult: true}},
		pages: []*api.OrderPage{
			{Orders: []api.RemoteOrder{{OrderID: "GM501", MigrationType: TypeReturn, StatusDesc: "处理中"}}},
			{Orders: []api.RemoteOrder{{OrderID: "GM501", MigrationType: TypeReturn, StatusDesc: "返回成功"}}},
		},
	}
	var records []Record
	orch := New(fastConfig(&records))

	out := orch.RunReturn(context.Background(), svc, testReturnRequest())

	if out.Result != ResultSucceeded {
		t.Fatalf("result = %s, want succeeded", out.Result)
	}
	if out.OrderID != "GM501" || out.Attempts != 1 {
		t.Errorf("outcome = %+v, want order GM501 after 1 attempt", out)
	}
	if svc.listCalls != 2 {
		t.Errorf("order list fetched %d times, want 2", svc.listCalls)
	}
	if len(records) != 1 || !records[0].Succeeded {
		t.Fatalf("records = %+v, want one successful record", records)
	}
	if records[0].TargetServer != "Yulyana" {
		t.Errorf("record target = %s, want the home server", records[0].TargetServer)
	}
}

// The travel order flipping to "ended" confirms the return even when the
// return order itself never shows up in the list.
func TestRunReturn_SucceedsViaTravelOrderEnded(t *testing.T) {
	svc := &fakeReturnAPI{
		submits: []*api.SubmitResponse{{ResultCode: 0, HasResult: true}},
		pages: []*api.OrderPage{
			{Orders: []api.RemoteOrder{{OrderID: "GM500", MigrationType: TypeOutbound, TravelStatus: TravelStatusEnded}}},
		},
	}
	var records []Record
	orch := New(fastConfig(&records))

	out := orch.RunReturn(context.Background(), svc, testReturnRequest())

	if out.Result != ResultSucceeded {
		t.Fatalf("result = %s, want succeeded", out.Result)
	}
	// No return order id was issued; the travel order id identifies the run.
	if out.OrderID != "GM500" {
		t.Errorf("order id = %s, want GM500", out.OrderID)
	}
}

func TestRunReturn_RejectionThenSuccess(t *testing.T) {
	svc := &fakeReturnAPI{
		submits: []*api.SubmitResponse{
			{ResultCode: 3, ResultMsg: "not allowed yet", HasResult: true},
			{OrderID: "GM502", ResultCode: 0, HasResult: true},
		},
		pages: []*api.OrderPage{
			{Orders: []api.RemoteOrder{{OrderID: "GM502", MigrationType: TypeReturn, StatusDesc: "返回成功"}}},
		},
	}
	var records []Record
	cfg := fastConfig(&records)
	emitter := &countingEmitter{}
	cfg.Emitter = emitter
	orch := New(cfg)

	out := orch.RunReturn(context.Background(), svc, testReturnRequest())

	if out.Result != ResultSucceeded {
		t.Fatalf("result = %s, want succeeded", out.Result)
	}
	if out.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", out.Attempts)
	}
	if emitter.waits != 1 {
		t.Errorf("observed %d backoff waits, want 1", emitter.waits)
	}
}

func TestRunReturn_PollTimeoutResubmits(t *testing.T) {
	accepted := &api.SubmitResponse{OrderID: "GM503", ResultCode: 0, HasResult: true}
	svc := &fakeReturnAPI{
		submits: []*api.SubmitResponse{accepted, accepted},
		pages: []*api.OrderPage{
			// First cycle: nothing conclusive in any poll.
			{}, {},
			// Second cycle: confirmed.
			{Orders: []api.RemoteOrder{{OrderID: "GM503", MigrationType: TypeReturn, StatusDesc: "返回成功"}}},
		},
	}
	var records []Record
	cfg := fastConfig(&records)
	cfg.ReturnPoll.MaxAttempts = 2
	orch := New(cfg)

	out := orch.RunReturn(context.Background(), svc, testReturnRequest())

	if out.Result != ResultSucceeded {
		t.Fatalf("result = %s, want succeeded", out.Result)
	}
	if svc.submitCalls != 2 {
		t.Errorf("submit called %d times, want 2", svc.submitCalls)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want exactly 1", len(records))
	}
}
