package attendance

import (
	"context"
	"time"
)

// AttendanceRepository defines data access methods for attendance records.
type AttendanceRepository interface {
	// Create creates a new attendance record
	Create(ctx context.Context, record Record) (Record, error)

	// GetByID returns ErrRecordNotFound when no record matches
	GetByID(ctx context.Context, id string) (Record, error)

	// GetByEmployeeAndDate returns nil, nil when the employee has no record for date
	GetByEmployeeAndDate(ctx context.Context, employeeID string, date time.Time) (*Record, error)

	// GetOpenSession returns the record with a punch-in and no punch-out, or nil, nil
	GetOpenSession(ctx context.Context, employeeID string) (*Record, error)

	// Update updates an existing attendance record
	Update(ctx context.Context, record Record) error

	// List retrieves attendance records with filters and pagination
	List(ctx context.Context, filter RecordFilter) ([]Record, int64, error)

	// ListByEmployeeAndRange returns records with start <= date <= end ordered by date
	ListByEmployeeAndRange(ctx context.Context, employeeID string, start, end time.Time) ([]Record, error)

	// ListOpenSessions returns every open record across employees
	ListOpenSessions(ctx context.Context) ([]Record, error)
}

// BreakRepository stores break sessions of a record.
type BreakRepository interface {
	CreateBreak(ctx context.Context, b Break) (Break, error)

	// GetOpenBreak returns nil, nil when the record has no open break
	GetOpenBreak(ctx context.Context, recordID string) (*Break, error)

	// GetLastBreak returns the most recently started break, or nil, nil
	GetLastBreak(ctx context.Context, recordID string) (*Break, error)

	UpdateBreak(ctx context.Context, b Break) error

	// ListBreaks returns the record's breaks ordered by start time
	ListBreaks(ctx context.Context, recordID string) ([]Break, error)
}

// IdleRepository stores idle periods reported against a record.
type IdleRepository interface {
	// CreateIdlePeriod returns false when a period with the same record and
	// start time already exists
	CreateIdlePeriod(ctx context.Context, p IdlePeriod) (bool, error)

	// ListIdlePeriods returns the record's idle periods ordered by start time
	ListIdlePeriods(ctx context.Context, recordID string) ([]IdlePeriod, error)
}

// SettingsRepository stores per-employee attendance settings.
type SettingsRepository interface {
	// GetByEmployeeID returns ErrSettingsNotFound when the employee has no row
	GetByEmployeeID(ctx context.Context, employeeID string) (Settings, error)

	Upsert(ctx context.Context, settings Settings) (Settings, error)

	ListAll(ctx context.Context) ([]Settings, error)
}

// Transactor runs fn inside a single database transaction carried by ctx.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
