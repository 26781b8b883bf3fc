package offline

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

func (a Action) Validate() error {
	if !a.Type.IsValid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAction, a.Type)
	}
	if strings.TrimSpace(a.EmployeeID) == "" {
		return fmt.Errorf("%w: employee_id is required", ErrInvalidAction)
	}
	if a.OccurredAt.IsZero() {
		return fmt.Errorf("%w: occurred_at is required", ErrInvalidAction)
	}
	if len(a.Payload) == 0 || !json.Valid(a.Payload) {
		return fmt.Errorf("%w: payload must be valid JSON", ErrInvalidAction)
	}
	return nil
}

// NewAction marshals body as the payload of an action of type t.
func NewAction(t ActionType, employeeID string, occurredAt time.Time, body any) (Action, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Action{}, fmt.Errorf("failed to encode %s payload: %w", t, err)
	}
	return Action{Type: t, EmployeeID: employeeID, OccurredAt: occurredAt, Payload: payload}, nil
}
