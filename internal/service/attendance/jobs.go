package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/workcal"
)

const autoPunchOutNote = "Automatically punched out at the scheduled end of work"

// AutoPunchOut implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) AutoPunchOut(ctx context.Context, now time.Time) (int, error) {
	all, err := a.SettingsRepository.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list attendance settings: %w", err)
	}

	closed := 0
	for _, settings := range all {
		if !settings.AutoPunchOut {
			continue
		}

		open, err := a.AttendanceRepository.GetOpenSession(ctx, settings.EmployeeID)
		if err != nil {
			return closed, fmt.Errorf("failed to get open session: %w", err)
		}
		if open == nil {
			continue
		}

		loc := settings.Location()
		_, workEnd, err := workWindow(settings, workcal.Day(open.Date, loc), loc)
		if err != nil {
			slog.Warn("Skipping auto punch-out: invalid settings", "employee_id", settings.EmployeeID, "error", err)
			continue
		}
		if now.Before(workEnd) {
			continue
		}
		out := workEnd
		if out.Before(*open.PunchInTime) {
			out = *open.PunchInTime
		}

		note := autoPunchOutNote
		_, err = a.PunchOut(ctx, attendance.PunchOutRequest{
			EmployeeID: settings.EmployeeID,
			Notes:      &note,
			OccurredAt: &out,
		})
		if err != nil {
			if errors.Is(err, attendance.ErrRequestInFlight) || errors.Is(err, attendance.ErrNotPunchedIn) {
				slog.Debug("Auto punch-out skipped", "employee_id", settings.EmployeeID, "reason", err)
				continue
			}
			return closed, fmt.Errorf("failed to auto punch-out employee %s: %w", settings.EmployeeID, err)
		}
		closed++
	}

	if closed > 0 {
		slog.Info("Auto punch-out completed", "closed", closed)
	}
	return closed, nil
}

// MarkAbsent implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) MarkAbsent(ctx context.Context, now time.Time) (int, error) {
	all, err := a.SettingsRepository.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list attendance settings: %w", err)
	}

	created := 0
	for _, settings := range all {
		loc := settings.Location()
		yesterday := workcal.DateOf(now, loc).AddDate(0, 0, -1)

		cal, err := workcal.New(settings.WorkingDays)
		if err != nil {
			slog.Warn("Skipping mark absent: invalid working days", "employee_id", settings.EmployeeID, "error", err)
			continue
		}
		if !cal.IsWorkingDay(yesterday) {
			continue
		}

		existing, err := a.AttendanceRepository.GetByEmployeeAndDate(ctx, settings.EmployeeID, yesterday)
		if err != nil {
			return created, fmt.Errorf("failed to get attendance by date: %w", err)
		}
		if existing != nil {
			continue
		}

		_, err = a.AttendanceRepository.Create(ctx, attendance.Record{
			EmployeeID: settings.EmployeeID,
			Date:       yesterday,
			Status:     attendance.StatusAbsent,
		})
		if err != nil {
			return created, fmt.Errorf("failed to create absent record: %w", err)
		}
		created++
	}

	if created > 0 {
		slog.Info("Absent records created", "count", created)
	}
	return created, nil
}
