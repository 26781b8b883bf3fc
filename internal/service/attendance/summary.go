package attendance

import (
	"context"
	"fmt"
	"math"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/timefmt"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/workcal"
)

// GetAttendanceSummary implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) GetAttendanceSummary(ctx context.Context, req attendance.SummaryRequest) (attendance.SummaryResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.SummaryResponse{}, err
	}

	settings, _, err := a.settingsFor(ctx, req.EmployeeID)
	if err != nil {
		return attendance.SummaryResponse{}, err
	}
	loc := settings.Location()

	start, err := workcal.ParseDate(req.StartDate, loc)
	if err != nil {
		return attendance.SummaryResponse{}, fmt.Errorf("failed to parse start date: %w", err)
	}
	end, err := workcal.ParseDate(req.EndDate, loc)
	if err != nil {
		return attendance.SummaryResponse{}, fmt.Errorf("failed to parse end date: %w", err)
	}

	records, err := a.AttendanceRepository.ListByEmployeeAndRange(ctx, req.EmployeeID, start, end)
	if err != nil {
		return attendance.SummaryResponse{}, fmt.Errorf("failed to list attendance records: %w", err)
	}

	cal, err := workcal.New(settings.WorkingDays)
	if err != nil {
		return attendance.SummaryResponse{}, fmt.Errorf("invalid working days in settings: %w", err)
	}
	scheduled, err := cal.CountWorkingDays(start, end)
	if err != nil {
		return attendance.SummaryResponse{}, err
	}

	summary := Summarize(records)
	summary.EmployeeID = req.EmployeeID
	summary.StartDate = start
	summary.EndDate = end
	summary.ScheduledWorkingDays = scheduled

	return mapSummaryToResponse(summary), nil
}

// Summarize aggregates records of one employee. On-leave days are neither
// worked nor missed, so they are left out of TotalWorkingDays.
func Summarize(records []attendance.Record) attendance.Summary {
	var s attendance.Summary
	for _, r := range records {
		switch r.Status {
		case attendance.StatusPresent:
			s.PresentDays++
		case attendance.StatusLate:
			s.PresentDays++
			s.LateDays++
		case attendance.StatusHalfDay:
			s.PresentDays++
			s.HalfDays++
		case attendance.StatusAbsent:
			s.AbsentDays++
		case attendance.StatusOnLeave:
			s.OnLeaveDays++
		}
		s.TotalWorkingHours += r.TotalWorkingHours
		if r.OvertimeHours != nil {
			s.TotalOvertimeHours += *r.OvertimeHours
		}
	}

	s.TotalWorkingDays = s.PresentDays + s.AbsentDays
	s.TotalWorkingHours = round2(s.TotalWorkingHours)
	s.TotalOvertimeHours = round2(s.TotalOvertimeHours)

	if s.PresentDays > 0 {
		s.AverageWorkingHours = round2(s.TotalWorkingHours / float64(s.PresentDays))
		score := math.Round(100 * float64(s.PresentDays-s.LateDays) / float64(s.PresentDays))
		s.PunctualityScore = int(clampPercent(score))
	}
	if s.TotalWorkingDays > 0 {
		rate := 100 * float64(s.PresentDays) / float64(s.TotalWorkingDays)
		s.AttendanceRate = round2(clampPercent(rate))
	}
	return s
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func mapSummaryToResponse(s attendance.Summary) attendance.SummaryResponse {
	return attendance.SummaryResponse{
		EmployeeID:           s.EmployeeID,
		StartDate:            s.StartDate.Format(dateLayout),
		EndDate:              s.EndDate.Format(dateLayout),
		TotalWorkingDays:     s.TotalWorkingDays,
		ScheduledWorkingDays: s.ScheduledWorkingDays,
		PresentDays:          s.PresentDays,
		AbsentDays:           s.AbsentDays,
		LateDays:             s.LateDays,
		HalfDays:             s.HalfDays,
		OnLeaveDays:          s.OnLeaveDays,
		TotalWorkingHours:    s.TotalWorkingHours,
		TotalOvertimeHours:   s.TotalOvertimeHours,
		AverageWorkingHours:  s.AverageWorkingHours,
		PunctualityScore:     s.PunctualityScore,
		AttendanceRate:       s.AttendanceRate,
		WorkingTimeDisplay:   timefmt.FormatHours(s.TotalWorkingHours),
		OvertimeDisplay:      timefmt.FormatHours(s.TotalOvertimeHours),
		AverageDisplay:       timefmt.FormatHours(s.AverageWorkingHours),
	}
}
