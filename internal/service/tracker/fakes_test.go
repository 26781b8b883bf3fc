package tracker

import (
	"context"
	"sync"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-tracker/internal/domain/offline"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/network"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/pubsub"
)

// fakeGateway records calls in order and fails with err when set.
type fakeGateway struct {
	mu     sync.Mutex
	calls  []string
	idle   []attendance.IdleRequest
	err    error
	status attendance.StatusResponse
}

func (g *fakeGateway) record(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, name)
	return g.err
}

func (g *fakeGateway) setState(state attendance.State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status.State = state
}

func (g *fakeGateway) setErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

func (g *fakeGateway) callNames() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string{}, g.calls...)
}

func (g *fakeGateway) PunchIn(_ context.Context, req attendance.PunchInRequest) (attendance.RecordResponse, error) {
	if err := g.record("punch_in"); err != nil {
		return attendance.RecordResponse{}, err
	}
	g.setState(attendance.StatePunchedIn)
	return attendance.RecordResponse{ID: "rec-1", EmployeeID: req.EmployeeID, PunchInTime: req.OccurredAt}, nil
}

func (g *fakeGateway) PunchOut(_ context.Context, req attendance.PunchOutRequest) (attendance.RecordResponse, error) {
	if err := g.record("punch_out"); err != nil {
		return attendance.RecordResponse{}, err
	}
	g.setState(attendance.StatePunchedOut)
	return attendance.RecordResponse{ID: "rec-1", EmployeeID: req.EmployeeID, PunchOutTime: req.OccurredAt}, nil
}

func (g *fakeGateway) StartBreak(_ context.Context, req attendance.BreakRequest) (attendance.BreakResponse, error) {
	if err := g.record("break_start"); err != nil {
		return attendance.BreakResponse{}, err
	}
	g.setState(attendance.StateOnBreak)
	return attendance.BreakResponse{ID: "brk-1", RecordID: "rec-1", StartTime: *req.OccurredAt}, nil
}

func (g *fakeGateway) EndBreak(_ context.Context, req attendance.BreakRequest) (attendance.BreakResponse, error) {
	if err := g.record("break_end"); err != nil {
		return attendance.BreakResponse{}, err
	}
	g.setState(attendance.StatePunchedIn)
	return attendance.BreakResponse{ID: "brk-1", RecordID: "rec-1", EndTime: req.OccurredAt}, nil
}

func (g *fakeGateway) RecordIdle(_ context.Context, req attendance.IdleRequest) (attendance.IdleResponse, error) {
	if err := g.record("idle"); err != nil {
		return attendance.IdleResponse{}, err
	}
	g.mu.Lock()
	g.idle = append(g.idle, req)
	g.mu.Unlock()
	minutes := int(req.EndTime.Sub(req.StartTime).Minutes())
	return attendance.IdleResponse{RecordID: "rec-1", DurationMinutes: minutes, TotalIdleMinutes: minutes}, nil
}

func (g *fakeGateway) GetStatus(_ context.Context) (attendance.StatusResponse, error) {
	if err := g.record("status"); err != nil {
		return attendance.StatusResponse{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status, nil
}

func (g *fakeGateway) Deliver(_ context.Context, action offline.Action) error {
	return g.record("deliver:" + string(action.Type))
}

type fakeNetwork struct {
	mu       sync.Mutex
	online   bool
	failures []error
	bus      pubsub.Bus[network.Status]
}

func (n *fakeNetwork) set(online bool) {
	n.mu.Lock()
	n.online = online
	n.mu.Unlock()
	n.bus.Publish(n.Status())
}

func (n *fakeNetwork) Status() network.Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.online {
		return network.Status{Online: true, Quality: network.QualityGood}
	}
	return network.Status{Quality: network.QualityOffline}
}

func (n *fakeNetwork) IsOnline() bool { return n.Status().Online }

func (n *fakeNetwork) ReportFailure(err error) {
	n.mu.Lock()
	n.online = false
	n.failures = append(n.failures, err)
	n.mu.Unlock()
}

func (n *fakeNetwork) failureCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.failures)
}

func (n *fakeNetwork) Subscribe(handler func(network.Status)) func() {
	return n.bus.Subscribe(handler)
}

func (n *fakeNetwork) Run(ctx context.Context) { <-ctx.Done() }

type fakeLocation struct {
	loc      *attendance.Location
	err      error
	deadline bool
}

func (l *fakeLocation) Current(ctx context.Context) (*attendance.Location, error) {
	_, l.deadline = ctx.Deadline()
	return l.loc, l.err
}
