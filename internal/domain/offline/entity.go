package offline

import (
	"encoding/json"
	"time"
)

type ActionType string

const (
	ActionPunchIn    ActionType = "punch_in"
	ActionPunchOut   ActionType = "punch_out"
	ActionBreakStart ActionType = "break_start"
	ActionBreakEnd   ActionType = "break_end"
	ActionIdleRecord ActionType = "idle_record"
)

func (t ActionType) IsValid() bool {
	switch t {
	case ActionPunchIn, ActionPunchOut, ActionBreakStart, ActionBreakEnd, ActionIdleRecord:
		return true
	}
	return false
}

// Action is one attendance call captured while offline. Payload is the JSON
// request body the api expects for Type, with OccurredAt already set.
type Action struct {
	Type       ActionType      `json:"type"`
	EmployeeID string          `json:"employee_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// QueueItem is a persisted Action. Sequence orders delivery.
type QueueItem struct {
	ID            string     `json:"id"`
	Sequence      int64      `json:"sequence"`
	Action        Action     `json:"action"`
	CreatedAt     time.Time  `json:"created_at"`
	AttemptCount  int        `json:"attempt_count"`
	LastError     *string    `json:"last_error,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
}

type ItemError struct {
	ItemID  string     `json:"item_id"`
	Type    ActionType `json:"type"`
	Message string     `json:"message"`
}

// Progress describes the current or last sync pass.
type Progress struct {
	TotalItems   int         `json:"total_items"`
	SyncedItems  int         `json:"synced_items"`
	FailedItems  int         `json:"failed_items"`
	IsRunning    bool        `json:"is_running"`
	Errors       []ItemError `json:"errors"`
	LastSyncTime *time.Time  `json:"last_sync_time,omitempty"`
	Pending      int         `json:"pending"`
}
