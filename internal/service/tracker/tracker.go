package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-tracker/internal/domain/idle"
	"github.com/cmlabs-hris/attendance-tracker/internal/domain/offline"
	"github.com/cmlabs-hris/attendance-tracker/internal/domain/tracker"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/network"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/pubsub"
)

const (
	defaultLocationTimeout = 5 * time.Second
	idleReportTimeout      = 15 * time.Second
)

type Options struct {
	EmployeeID      string
	LocationTimeout time.Duration
	Now             func() time.Time
}

type TrackerServiceImpl struct {
	gateway  tracker.Gateway
	syncer   offline.SyncService
	network  tracker.NetworkMonitor
	idle     tracker.IdleMonitor
	location tracker.LocationProvider

	employeeID      string
	locationTimeout time.Duration
	now             func() time.Time

	// opMu serializes attendance actions; mu guards the fields below it.
	opMu    sync.Mutex
	mu      sync.RWMutex
	state   attendance.State
	server  *attendance.StatusResponse
	baseCtx context.Context

	bus pubsub.Bus[tracker.Event]
}

// NewTrackerService wires the agent components for one employee. location may be nil.
func NewTrackerService(
	gateway tracker.Gateway,
	syncService offline.SyncService,
	networkMonitor tracker.NetworkMonitor,
	idleMonitor tracker.IdleMonitor,
	location tracker.LocationProvider,
	opts Options,
) tracker.TrackerService {
	if opts.LocationTimeout <= 0 {
		opts.LocationTimeout = defaultLocationTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &TrackerServiceImpl{
		gateway:         gateway,
		syncer:          syncService,
		network:         networkMonitor,
		idle:            idleMonitor,
		location:        location,
		employeeID:      opts.EmployeeID,
		locationTimeout: opts.LocationTimeout,
		now:             opts.Now,
		state:           attendance.StateNotStarted,
		baseCtx:         context.Background(),
	}

	idleMonitor.Subscribe(s.onIdleEvent)
	networkMonitor.Subscribe(s.onNetworkChange)
	syncService.Subscribe(func(p offline.Progress) {
		s.publish(tracker.EventSync, p)
	})
	return s
}

func (s *TrackerServiceImpl) Subscribe(handler func(tracker.Event)) (unsubscribe func()) {
	return s.bus.Subscribe(handler)
}

// Run restores the local attendance state, then runs network probing and
// background sync until ctx is done.
func (s *TrackerServiceImpl) Run(ctx context.Context) error {
	if s.employeeID == "" {
		return tracker.ErrEmployeeNotConfigured
	}

	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.opMu.Lock()
	s.restore(ctx)
	s.opMu.Unlock()
	if s.current() == attendance.StatePunchedIn {
		s.idle.Start(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.network.Run(gctx)
		return nil
	})
	g.Go(func() error {
		s.syncer.Run(gctx)
		return nil
	})

	<-ctx.Done()
	s.idle.Stop()
	return g.Wait()
}

// restore starts from the api's view of today when reachable and replays
// still-queued actions on top of it. Callers hold opMu.
func (s *TrackerServiceImpl) restore(ctx context.Context) {
	state := attendance.StateNotStarted
	if status, err := s.gateway.GetStatus(ctx); err == nil {
		state = status.State
		s.setServer(&status)
	} else {
		slog.Warn("Could not load attendance status from api", "error", err)
	}

	items, err := s.syncer.Items(ctx)
	if err != nil {
		slog.Error("Failed to read offline queue", "error", err)
	}
	for _, item := range items {
		if next, err := tracker.Next(state, item.Action.Type); err == nil {
			state = next
		}
	}

	if _, err := s.syncer.Pending(ctx); err != nil {
		slog.Error("Failed to count queued actions", "error", err)
	}

	s.setState(state)
	slog.Info("Tracker state restored", "state", state, "queued", len(items))
}

func (s *TrackerServiceImpl) PunchIn(ctx context.Context, notes *string) (tracker.Outcome, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if _, err := tracker.Next(s.current(), offline.ActionPunchIn); err != nil {
		return tracker.Outcome{}, err
	}

	at := s.now().UTC()
	req := attendance.PunchInRequest{
		EmployeeID: s.employeeID,
		Location:   s.lookupLocation(ctx),
		Notes:      notes,
		OccurredAt: &at,
	}

	out, err := s.dispatch(ctx, offline.ActionPunchIn, at, req, func(ctx context.Context) (tracker.Outcome, error) {
		record, err := s.gateway.PunchIn(ctx, req)
		return tracker.Outcome{Record: &record}, err
	})
	if err != nil {
		return tracker.Outcome{}, err
	}

	s.apply(offline.ActionPunchIn)
	s.idle.ResetSession()
	s.idle.Start(s.ctx())
	s.publish(tracker.EventAttendance, out)
	return out, nil
}

func (s *TrackerServiceImpl) PunchOut(ctx context.Context, notes *string) (tracker.Outcome, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	previous := s.current()
	if _, err := tracker.Next(previous, offline.ActionPunchOut); err != nil {
		return tracker.Outcome{}, err
	}

	// Stopping closes an open idle session; it is reported before the punch-out.
	s.idle.Stop()

	at := s.now().UTC()
	req := attendance.PunchOutRequest{
		EmployeeID: s.employeeID,
		Location:   s.lookupLocation(ctx),
		Notes:      notes,
		OccurredAt: &at,
	}

	out, err := s.dispatch(ctx, offline.ActionPunchOut, at, req, func(ctx context.Context) (tracker.Outcome, error) {
		record, err := s.gateway.PunchOut(ctx, req)
		return tracker.Outcome{Record: &record}, err
	})
	if err != nil {
		if previous == attendance.StatePunchedIn {
			s.idle.Start(s.ctx())
		}
		return tracker.Outcome{}, err
	}

	s.apply(offline.ActionPunchOut)
	s.publish(tracker.EventAttendance, out)
	return out, nil
}

func (s *TrackerServiceImpl) StartBreak(ctx context.Context) (tracker.Outcome, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if _, err := tracker.Next(s.current(), offline.ActionBreakStart); err != nil {
		return tracker.Outcome{}, err
	}

	s.idle.Stop()

	at := s.now().UTC()
	req := attendance.BreakRequest{EmployeeID: s.employeeID, OccurredAt: &at}
	out, err := s.dispatch(ctx, offline.ActionBreakStart, at, req, func(ctx context.Context) (tracker.Outcome, error) {
		b, err := s.gateway.StartBreak(ctx, req)
		return tracker.Outcome{Break: &b}, err
	})
	if err != nil {
		s.idle.Start(s.ctx())
		return tracker.Outcome{}, err
	}

	s.apply(offline.ActionBreakStart)
	s.publish(tracker.EventAttendance, out)
	return out, nil
}

func (s *TrackerServiceImpl) EndBreak(ctx context.Context) (tracker.Outcome, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if _, err := tracker.Next(s.current(), offline.ActionBreakEnd); err != nil {
		return tracker.Outcome{}, err
	}

	at := s.now().UTC()
	req := attendance.BreakRequest{EmployeeID: s.employeeID, OccurredAt: &at}
	out, err := s.dispatch(ctx, offline.ActionBreakEnd, at, req, func(ctx context.Context) (tracker.Outcome, error) {
		b, err := s.gateway.EndBreak(ctx, req)
		return tracker.Outcome{Break: &b}, err
	})
	if err != nil {
		return tracker.Outcome{}, err
	}

	s.apply(offline.ActionBreakEnd)
	s.idle.Start(s.ctx())
	s.publish(tracker.EventAttendance, out)
	return out, nil
}

func (s *TrackerServiceImpl) RecordActivity(at time.Time) {
	s.idle.RecordActivity(at)
}

func (s *TrackerServiceImpl) StartIdle(note string) error {
	if s.current() != attendance.StatePunchedIn {
		return attendance.ErrNotPunchedIn
	}
	return s.idle.ManualStartIdle(note)
}

func (s *TrackerServiceImpl) EndIdle() error {
	return s.idle.ManualEndIdle()
}

func (s *TrackerServiceImpl) State(ctx context.Context) tracker.State {
	state := tracker.State{
		EmployeeID: s.employeeID,
		Network:    s.network.Status(),
		Idle:       s.idle.State(),
		Sync:       s.syncer.Progress(),
	}

	if state.Network.Online {
		status, err := s.gateway.GetStatus(ctx)
		switch {
		case err == nil:
			s.setServer(&status)
			s.adopt(status.State)
		case errors.Is(err, tracker.ErrUnavailable):
			s.network.ReportFailure(err)
		default:
			slog.Warn("Failed to load attendance status", "error", err)
		}
	}

	s.mu.RLock()
	state.Attendance = s.state
	state.Server = s.server
	s.mu.RUnlock()
	return state
}

// adopt takes the api's state when nothing is waiting in the queue, so
// server-side changes such as an automatic punch-out reach the agent.
func (s *TrackerServiceImpl) adopt(serverState attendance.State) {
	if serverState == "" {
		return
	}
	if !s.opMu.TryLock() {
		return
	}
	defer s.opMu.Unlock()

	// Read under opMu: restore refreshes the count while holding it
	if s.syncer.Progress().Pending > 0 {
		return
	}

	previous := s.current()
	if previous == serverState {
		return
	}
	s.setState(serverState)
	slog.Info("Tracker state updated from api", "from", previous, "to", serverState)

	if previous == attendance.StatePunchedIn && serverState != attendance.StatePunchedIn {
		s.idle.Stop()
	}
	if serverState == attendance.StatePunchedIn && previous != attendance.StatePunchedIn {
		s.idle.Start(s.ctx())
	}
}

func (s *TrackerServiceImpl) ForceSync(ctx context.Context) (offline.Progress, error) {
	return s.syncer.ForceSyncNow(ctx)
}

func (s *TrackerServiceImpl) RetryFailed(ctx context.Context) (offline.Progress, error) {
	return s.syncer.RetryFailedItems(ctx)
}

func (s *TrackerServiceImpl) Queue(ctx context.Context) ([]offline.QueueItem, error) {
	return s.syncer.Items(ctx)
}

// DiscardQueueItem abandons a queued action the api keeps rejecting. The local
// state is rebuilt from the api status and what is still queued.
func (s *TrackerServiceImpl) DiscardQueueItem(ctx context.Context, id string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.syncer.Discard(ctx, id); err != nil {
		return err
	}

	previous := s.current()
	s.restore(ctx)
	if next := s.current(); next != previous {
		if previous == attendance.StatePunchedIn {
			s.idle.Stop()
		}
		if next == attendance.StatePunchedIn {
			s.idle.Start(s.ctx())
		}
	}
	s.publish(tracker.EventSync, s.syncer.Progress())
	return nil
}

// dispatch sends an action straight to the api when online and nothing is
// queued ahead of it; otherwise it queues the action. A transport failure on
// a direct call marks the network offline and is returned to the caller.
func (s *TrackerServiceImpl) dispatch(
	ctx context.Context,
	actionType offline.ActionType,
	at time.Time,
	body any,
	direct func(ctx context.Context) (tracker.Outcome, error),
) (tracker.Outcome, error) {
	if s.network.IsOnline() && s.queueEmpty(ctx) {
		out, err := direct(ctx)
		if err != nil {
			if errors.Is(err, tracker.ErrUnavailable) {
				s.network.ReportFailure(err)
			}
			return tracker.Outcome{}, err
		}
		out.Action = actionType
		out.OccurredAt = at
		return out, nil
	}

	item, err := s.enqueue(ctx, actionType, at, body)
	if err != nil {
		return tracker.Outcome{}, err
	}
	if s.network.IsOnline() {
		go s.drain()
	}
	return tracker.Outcome{Action: actionType, OccurredAt: at, Queued: true, QueueItemID: item.ID}, nil
}

// queueEmpty reads the count from storage so items persisted by an earlier
// run are seen before the first sync pass. An unreadable queue counts as busy.
func (s *TrackerServiceImpl) queueEmpty(ctx context.Context) bool {
	pending, err := s.syncer.Pending(ctx)
	if err != nil {
		slog.Error("Failed to count queued actions", "error", err)
		return false
	}
	return pending == 0
}

func (s *TrackerServiceImpl) enqueue(ctx context.Context, actionType offline.ActionType, at time.Time, body any) (offline.QueueItem, error) {
	action, err := offline.NewAction(actionType, s.employeeID, at, body)
	if err != nil {
		return offline.QueueItem{}, err
	}
	item, err := s.syncer.Enqueue(ctx, action)
	if err != nil {
		return offline.QueueItem{}, fmt.Errorf("failed to queue %s: %w", actionType, err)
	}
	return item, nil
}

func (s *TrackerServiceImpl) drain() {
	if _, err := s.syncer.ForceSyncNow(context.WithoutCancel(s.ctx())); err != nil && !errors.Is(err, offline.ErrSyncInProgress) {
		slog.Error("Failed to sync queued actions", "error", err)
	}
}

func (s *TrackerServiceImpl) onIdleEvent(e idle.Event) {
	s.publish(tracker.EventIdle, e)

	if e.Type != idle.EventIdleEnded || e.Session == nil || e.Session.EndTime == nil {
		return
	}
	if !s.idle.Settings().PauseTimerOnIdle || s.current() != attendance.StatePunchedIn {
		return
	}
	s.reportIdle(*e.Session)
}

// reportIdle sends a closed idle session through the same online/offline path
// as punches. Unlike punches, a transport failure queues the report.
func (s *TrackerServiceImpl) reportIdle(session idle.Session) {
	if session.Duration(*session.EndTime) < time.Minute {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx()), idleReportTimeout)
	defer cancel()

	end := session.EndTime.UTC()
	req := attendance.IdleRequest{
		EmployeeID: s.employeeID,
		StartTime:  session.StartTime.UTC(),
		EndTime:    end,
		Reason:     string(session.Reason),
	}

	out, err := s.dispatch(ctx, offline.ActionIdleRecord, end, req, func(ctx context.Context) (tracker.Outcome, error) {
		res, err := s.gateway.RecordIdle(ctx, req)
		return tracker.Outcome{Idle: &res}, err
	})
	if errors.Is(err, tracker.ErrUnavailable) {
		out, err = s.queueOnly(ctx, offline.ActionIdleRecord, end, req)
	}
	if err != nil {
		slog.Warn("Failed to report idle period", "start_time", req.StartTime, "end_time", end, "error", err)
		return
	}
	s.publish(tracker.EventAttendance, out)
}

func (s *TrackerServiceImpl) queueOnly(ctx context.Context, actionType offline.ActionType, at time.Time, body any) (tracker.Outcome, error) {
	item, err := s.enqueue(ctx, actionType, at, body)
	if err != nil {
		return tracker.Outcome{}, err
	}
	return tracker.Outcome{Action: actionType, OccurredAt: at, Queued: true, QueueItemID: item.ID}, nil
}

func (s *TrackerServiceImpl) onNetworkChange(status network.Status) {
	s.syncer.OnNetworkChange(status.Online)
	s.publish(tracker.EventNetwork, status)
}

// lookupLocation is best effort: failures are logged and the punch goes ahead.
func (s *TrackerServiceImpl) lookupLocation(ctx context.Context) *attendance.Location {
	if s.location == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.locationTimeout)
	defer cancel()

	loc, err := s.location.Current(ctx)
	if err != nil {
		slog.Warn("Location unavailable", "error", err)
		return nil
	}
	return loc
}

func (s *TrackerServiceImpl) apply(actionType offline.ActionType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if next, err := tracker.Next(s.state, actionType); err == nil {
		s.state = next
	}
}

func (s *TrackerServiceImpl) current() attendance.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *TrackerServiceImpl) setState(state attendance.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *TrackerServiceImpl) setServer(status *attendance.StatusResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.server = status
}

func (s *TrackerServiceImpl) ctx() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseCtx
}

func (s *TrackerServiceImpl) publish(t tracker.EventType, data any) {
	s.bus.Publish(tracker.Event{Type: t, At: s.now(), Data: data})
}
