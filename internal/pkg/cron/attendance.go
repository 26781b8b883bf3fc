package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/attendance"
)

// AttendanceJobs closes forgotten sessions and fills absent days.
type AttendanceJobs struct {
	attendanceService    attendance.AttendanceService
	autoPunchOutInterval time.Duration
	markAbsentInterval   time.Duration
	now                  func() time.Time
}

func NewAttendanceJobs(attendanceService attendance.AttendanceService, autoPunchOutInterval, markAbsentInterval time.Duration) *AttendanceJobs {
	return &AttendanceJobs{
		attendanceService:    attendanceService,
		autoPunchOutInterval: autoPunchOutInterval,
		markAbsentInterval:   markAbsentInterval,
		now:                  time.Now,
	}
}

func (j *AttendanceJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob("auto_punch_out", j.autoPunchOutInterval, j.AutoPunchOut)
	scheduler.AddJob("mark_absent_employees", j.markAbsentInterval, j.MarkAbsentEmployees)
}

// AutoPunchOut punches out employees with auto punch-out enabled whose
// scheduled end has passed.
func (j *AttendanceJobs) AutoPunchOut(ctx context.Context) error {
	closed, err := j.attendanceService.AutoPunchOut(ctx, j.now())
	if err != nil {
		return fmt.Errorf("failed to auto punch out: %w", err)
	}
	if closed > 0 {
		slog.Debug("Cron: auto punch-out completed", "closed", closed)
	}
	return nil
}

// MarkAbsentEmployees creates absent records for the previous working day.
// Records are only created once per day, so running it hourly is safe.
func (j *AttendanceJobs) MarkAbsentEmployees(ctx context.Context) error {
	created, err := j.attendanceService.MarkAbsent(ctx, j.now())
	if err != nil {
		return fmt.Errorf("failed to mark absent employees: %w", err)
	}
	if created > 0 {
		slog.Debug("Cron: marked absent employees", "count", created)
	}
	return nil
}
