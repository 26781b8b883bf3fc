package tracker

import (
	"context"
	"time"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-tracker/internal/domain/idle"
	"github.com/cmlabs-hris/attendance-tracker/internal/domain/offline"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/network"
)

// Gateway is the api surface the agent calls while online.
type Gateway interface {
	PunchIn(ctx context.Context, req attendance.PunchInRequest) (attendance.RecordResponse, error)
	PunchOut(ctx context.Context, req attendance.PunchOutRequest) (attendance.RecordResponse, error)
	StartBreak(ctx context.Context, req attendance.BreakRequest) (attendance.BreakResponse, error)
	EndBreak(ctx context.Context, req attendance.BreakRequest) (attendance.BreakResponse, error)
	RecordIdle(ctx context.Context, req attendance.IdleRequest) (attendance.IdleResponse, error)
	GetStatus(ctx context.Context) (attendance.StatusResponse, error)
}

// LocationProvider returns the device position, or an error when unknown.
type LocationProvider interface {
	Current(ctx context.Context) (*attendance.Location, error)
}

type NetworkMonitor interface {
	Status() network.Status
	IsOnline() bool
	ReportFailure(err error)
	Subscribe(handler func(network.Status)) (unsubscribe func())
	Run(ctx context.Context)
}

type IdleMonitor interface {
	Start(ctx context.Context)
	Stop()
	ResetSession()
	RecordActivity(at time.Time)
	ManualStartIdle(note string) error
	ManualEndIdle() error
	State() idle.State
	Settings() idle.Settings
	Subscribe(handler func(idle.Event)) (unsubscribe func())
}

// TrackerService is the agent's attendance surface for one employee.
type TrackerService interface {
	PunchIn(ctx context.Context, notes *string) (Outcome, error)
	PunchOut(ctx context.Context, notes *string) (Outcome, error)
	StartBreak(ctx context.Context) (Outcome, error)
	EndBreak(ctx context.Context) (Outcome, error)

	RecordActivity(at time.Time)
	StartIdle(note string) error
	EndIdle() error

	State(ctx context.Context) State
	ForceSync(ctx context.Context) (offline.Progress, error)
	RetryFailed(ctx context.Context) (offline.Progress, error)
	Queue(ctx context.Context) ([]offline.QueueItem, error)
	DiscardQueueItem(ctx context.Context, id string) error

	Subscribe(handler func(Event)) (unsubscribe func())

	// Run starts the background loops and blocks until ctx is done
	Run(ctx context.Context) error
}
