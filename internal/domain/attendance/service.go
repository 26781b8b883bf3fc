package attendance

import (
	"context"
	"time"
)

// AttendanceService defines business logic for attendance operations
type AttendanceService interface {
	// PunchIn opens today's work session
	PunchIn(ctx context.Context, req PunchInRequest) (RecordResponse, error)

	// PunchOut closes the open work session, closing any open break first
	PunchOut(ctx context.Context, req PunchOutRequest) (RecordResponse, error)

	StartBreak(ctx context.Context, req BreakRequest) (BreakResponse, error)
	EndBreak(ctx context.Context, req BreakRequest) (BreakResponse, error)

	// RecordIdle subtracts a closed idle session from worked time
	RecordIdle(ctx context.Context, req IdleRequest) (IdleResponse, error)

	// GetStatus returns the current state and the allowed transitions
	GetStatus(ctx context.Context, employeeID string) (StatusResponse, error)

	// GetAttendanceSummary aggregates records in a date range; it has no side effects
	GetAttendanceSummary(ctx context.Context, req SummaryRequest) (SummaryResponse, error)

	ListRecords(ctx context.Context, filter RecordFilter) (ListRecordsResponse, error)
	GetRecord(ctx context.Context, id string) (RecordResponse, error)

	GetSettings(ctx context.Context, employeeID string) (SettingsResponse, error)
	UpdateSettings(ctx context.Context, req UpdateSettingsRequest) (SettingsResponse, error)

	// AutoPunchOut closes open sessions of employees with auto punch-out enabled
	// whose scheduled end has passed. It returns the number closed.
	AutoPunchOut(ctx context.Context, now time.Time) (int, error)

	// MarkAbsent creates absent records for employees with no record on the
	// previous working day in their timezone. It returns the number created.
	MarkAbsent(ctx context.Context, now time.Time) (int, error)
}
