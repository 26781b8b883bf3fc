package tracker

import (
	"time"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-tracker/internal/domain/idle"
	"github.com/cmlabs-hris/attendance-tracker/internal/domain/offline"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/network"
)

// Outcome is the result of one attendance action taken on the agent.
// Queued is true when the action was stored for later sync instead of sent.
type Outcome struct {
	Action      offline.ActionType         `json:"action"`
	OccurredAt  time.Time                  `json:"occurred_at"`
	Queued      bool                       `json:"queued"`
	QueueItemID string                     `json:"queue_item_id,omitempty"`
	Record      *attendance.RecordResponse `json:"record,omitempty"`
	Break       *attendance.BreakResponse  `json:"break,omitempty"`
	Idle        *attendance.IdleResponse   `json:"idle,omitempty"`
}

type State struct {
	EmployeeID string                     `json:"employee_id"`
	Attendance attendance.State           `json:"attendance"`
	Network    network.Status             `json:"network"`
	Idle       idle.State                 `json:"idle"`
	Sync       offline.Progress           `json:"sync"`
	Server     *attendance.StatusResponse `json:"server,omitempty"`
}

type EventType string

const (
	EventAttendance EventType = "attendance"
	EventIdle       EventType = "idle"
	EventNetwork    EventType = "network"
	EventSync       EventType = "sync"
)

// Event is fanned out to the agent's SSE clients.
type Event struct {
	Type EventType `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

// Next applies action to the locally known attendance state. It mirrors the
// api's state rules so illegal sequences are rejected before they are queued.
func Next(state attendance.State, action offline.ActionType) (attendance.State, error) {
	switch action {
	case offline.ActionPunchIn:
		if state == attendance.StatePunchedIn || state == attendance.StateOnBreak {
			return state, attendance.ErrAlreadyPunchedIn
		}
		return attendance.StatePunchedIn, nil
	case offline.ActionPunchOut:
		if state != attendance.StatePunchedIn && state != attendance.StateOnBreak {
			return state, attendance.ErrNotPunchedIn
		}
		return attendance.StatePunchedOut, nil
	case offline.ActionBreakStart:
		switch state {
		case attendance.StateOnBreak:
			return state, attendance.ErrAlreadyOnBreak
		case attendance.StatePunchedIn:
			return attendance.StateOnBreak, nil
		default:
			return state, attendance.ErrNotPunchedIn
		}
	case offline.ActionBreakEnd:
		if state != attendance.StateOnBreak {
			return state, attendance.ErrNotOnBreak
		}
		return attendance.StatePunchedIn, nil
	case offline.ActionIdleRecord:
		if state != attendance.StatePunchedIn {
			return state, attendance.ErrNotPunchedIn
		}
		return state, nil
	}
	return state, offline.ErrInvalidAction
}
