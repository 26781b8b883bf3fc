package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/keylock"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/timefmt"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/validator"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/workcal"
	"golang.org/x/sync/errgroup"
)

const dateLayout = "2006-01-02"

// Options tunes policy values that are not part of per-employee settings.
type Options struct {
	// HalfDayFraction of the standard working minutes below which a day is half_day.
	HalfDayFraction float64
	// MaxClockSkew is how far in the future an event timestamp may be.
	MaxClockSkew time.Duration
	Now          func() time.Time
}

type AttendanceServiceImpl struct {
	tx attendance.Transactor
	attendance.AttendanceRepository
	attendance.BreakRepository
	attendance.IdleRepository
	attendance.SettingsRepository

	locks           *keylock.KeyLock
	halfDayFraction float64
	maxClockSkew    time.Duration
	now             func() time.Time
}

func NewAttendanceService(
	tx attendance.Transactor,
	attendanceRepo attendance.AttendanceRepository,
	breakRepo attendance.BreakRepository,
	idleRepo attendance.IdleRepository,
	settingsRepo attendance.SettingsRepository,
	opts Options,
) attendance.AttendanceService {
	if opts.HalfDayFraction <= 0 || opts.HalfDayFraction > 1 {
		opts.HalfDayFraction = 0.5
	}
	if opts.MaxClockSkew <= 0 {
		opts.MaxClockSkew = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &AttendanceServiceImpl{
		tx:                   tx,
		AttendanceRepository: attendanceRepo,
		BreakRepository:      breakRepo,
		IdleRepository:       idleRepo,
		SettingsRepository:   settingsRepo,
		locks:                keylock.New(),
		halfDayFraction:      opts.HalfDayFraction,
		maxClockSkew:         opts.MaxClockSkew,
		now:                  opts.Now,
	}
}

// eventTime resolves the instant an action happened. Replayed offline actions
// carry their own timestamp; live actions use the server clock.
func (a *AttendanceServiceImpl) eventTime(occurredAt *time.Time) (time.Time, error) {
	now := normalize(a.now())
	if occurredAt == nil || occurredAt.IsZero() {
		return now, nil
	}
	at := normalize(*occurredAt)
	if at.Sub(now) > a.maxClockSkew {
		return time.Time{}, attendance.ErrFutureTimestamp
	}
	return at, nil
}

// normalize matches the microsecond precision of timestamptz so replayed
// timestamps compare equal to stored ones.
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func (a *AttendanceServiceImpl) acquire(employeeID string) (func(), error) {
	release, ok := a.locks.TryLock(employeeID)
	if !ok {
		return nil, attendance.ErrRequestInFlight
	}
	return release, nil
}

// settingsFor returns the stored settings or the defaults.
func (a *AttendanceServiceImpl) settingsFor(ctx context.Context, employeeID string) (attendance.Settings, bool, error) {
	settings, err := a.SettingsRepository.GetByEmployeeID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, attendance.ErrSettingsNotFound) {
			return attendance.DefaultSettings(employeeID), true, nil
		}
		return attendance.Settings{}, false, fmt.Errorf("failed to get attendance settings: %w", err)
	}
	return settings, false, nil
}

// recordFor returns the open session, or the record of the calendar day of at.
func (a *AttendanceServiceImpl) recordFor(ctx context.Context, employeeID string, at time.Time, loc *time.Location) (*attendance.Record, error) {
	open, err := a.AttendanceRepository.GetOpenSession(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get open session: %w", err)
	}
	if open != nil {
		return open, nil
	}
	rec, err := a.AttendanceRepository.GetByEmployeeAndDate(ctx, employeeID, workcal.DateOf(at, loc))
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance by date: %w", err)
	}
	return rec, nil
}

// PunchIn implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) PunchIn(ctx context.Context, req attendance.PunchInRequest) (attendance.RecordResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.RecordResponse{}, err
	}
	at, err := a.eventTime(req.OccurredAt)
	if err != nil {
		return attendance.RecordResponse{}, err
	}

	release, err := a.acquire(req.EmployeeID)
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	defer release()

	settings, _, err := a.settingsFor(ctx, req.EmployeeID)
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	loc := settings.Location()
	date := workcal.DateOf(at, loc)

	open, err := a.AttendanceRepository.GetOpenSession(ctx, req.EmployeeID)
	if err != nil {
		return attendance.RecordResponse{}, fmt.Errorf("failed to get open session: %w", err)
	}
	if open != nil {
		if open.PunchInTime.Equal(at) {
			return mapRecordToResponse(*open, loc), nil
		}
		return attendance.RecordResponse{}, attendance.ErrAlreadyPunchedIn
	}

	today, err := a.AttendanceRepository.GetByEmployeeAndDate(ctx, req.EmployeeID, date)
	if err != nil {
		return attendance.RecordResponse{}, fmt.Errorf("failed to get attendance by date: %w", err)
	}
	if today != nil {
		switch {
		case today.PunchInTime != nil:
			if today.PunchInTime.Equal(at) {
				return mapRecordToResponse(*today, loc), nil
			}
			return attendance.RecordResponse{}, attendance.ErrAlreadyPunchedIn
		case today.Status == attendance.StatusOnLeave:
			return attendance.RecordResponse{}, attendance.ErrOnLeave
		}
	}

	if req.Location == nil && settings.RequireLocation {
		slog.Warn("Punch-in without location", "employee_id", req.EmployeeID)
	}

	status, lateMinutes, err := lateness(settings, date, at, loc)
	if err != nil {
		return attendance.RecordResponse{}, err
	}

	var record attendance.Record
	if today != nil {
		// Convert the absent placeholder written by the mark-absent job.
		record = *today
	} else {
		record = attendance.Record{EmployeeID: req.EmployeeID, Date: date}
	}
	record.PunchInTime = &at
	record.Status = status
	record.LateMinutes = lateMinutes
	record.PunchInLocation = req.Location
	record.Notes = req.Notes
	record.IsManual = req.IsManual

	if today != nil {
		if err := a.AttendanceRepository.Update(ctx, record); err != nil {
			return attendance.RecordResponse{}, fmt.Errorf("failed to update attendance record: %w", err)
		}
	} else {
		record, err = a.AttendanceRepository.Create(ctx, record)
		if err != nil {
			return attendance.RecordResponse{}, fmt.Errorf("failed to create attendance record: %w", err)
		}
	}

	slog.Info("Employee punched in", "employee_id", req.EmployeeID, "record_id", record.ID, "status", record.Status)
	return mapRecordToResponse(record, loc), nil
}

// lateness marks the punch late when it is after work start plus the late
// threshold. Late minutes count from work start.
func lateness(settings attendance.Settings, date, at time.Time, loc *time.Location) (attendance.Status, *int, error) {
	start, err := workcal.ParseClock(settings.WorkStartTime)
	if err != nil {
		return "", nil, fmt.Errorf("invalid work start time in settings: %w", err)
	}
	workStart := start.On(date, loc)
	limit := workStart.Add(time.Duration(settings.LateThreshold) * time.Minute)
	if !at.After(limit) {
		return attendance.StatusPresent, nil, nil
	}
	minutes := int(math.Floor(at.Sub(workStart).Minutes()))
	return attendance.StatusLate, &minutes, nil
}

// PunchOut implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) PunchOut(ctx context.Context, req attendance.PunchOutRequest) (attendance.RecordResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.RecordResponse{}, err
	}
	at, err := a.eventTime(req.OccurredAt)
	if err != nil {
		return attendance.RecordResponse{}, err
	}

	release, err := a.acquire(req.EmployeeID)
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	defer release()

	settings, _, err := a.settingsFor(ctx, req.EmployeeID)
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	loc := settings.Location()

	record, err := a.recordFor(ctx, req.EmployeeID, at, loc)
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	if record == nil {
		return attendance.RecordResponse{}, attendance.ErrNotPunchedIn
	}
	if !record.IsOpen() {
		if record.PunchOutTime != nil && record.PunchOutTime.Equal(at) {
			return mapRecordToResponse(*record, loc), nil
		}
		return attendance.RecordResponse{}, attendance.ErrNotPunchedIn
	}
	if at.Before(*record.PunchInTime) {
		return attendance.RecordResponse{}, attendance.ErrInvalidPunchTime
	}

	if req.Location == nil && settings.RequireLocation {
		slog.Warn("Punch-out without location", "employee_id", req.EmployeeID)
	}

	closed := *record
	err = a.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		openBreak, err := a.BreakRepository.GetOpenBreak(txCtx, closed.ID)
		if err != nil {
			return fmt.Errorf("failed to get open break: %w", err)
		}
		if openBreak != nil {
			end := at
			if end.Before(openBreak.StartTime) {
				end = openBreak.StartTime
			}
			openBreak.EndTime = &end
			if err := a.BreakRepository.UpdateBreak(txCtx, *openBreak); err != nil {
				return fmt.Errorf("failed to close open break: %w", err)
			}
			closed.TotalBreakMinutes += openBreak.Minutes()
		}

		if err := a.closeRecord(&closed, settings, at, loc); err != nil {
			return err
		}
		closed.PunchOutLocation = req.Location
		if req.Notes != nil {
			closed.Notes = req.Notes
		}

		if err := a.AttendanceRepository.Update(txCtx, closed); err != nil {
			return fmt.Errorf("failed to update attendance record: %w", err)
		}
		return nil
	})
	if err != nil {
		return attendance.RecordResponse{}, err
	}

	slog.Info("Employee punched out",
		"employee_id", req.EmployeeID,
		"record_id", closed.ID,
		"worked_hours", closed.TotalWorkingHours,
		"status", closed.Status,
	)
	return mapRecordToResponse(closed, loc), nil
}

// closeRecord sets the punch-out and derives worked time, overtime, early
// leave and the half-day status.
func (a *AttendanceServiceImpl) closeRecord(r *attendance.Record, settings attendance.Settings, out time.Time, loc *time.Location) error {
	r.PunchOutTime = &out

	gross := out.Sub(*r.PunchInTime).Minutes()
	worked := math.Max(0, gross-float64(r.TotalBreakMinutes)-float64(r.TotalIdleMinutes))
	r.TotalWorkingHours = round2(worked / 60)

	overtime := round2(math.Max(0, worked-float64(settings.OvertimeThreshold)) / 60)
	r.OvertimeHours = &overtime

	day := workcal.Day(r.Date, loc)
	_, workEnd, err := workWindow(settings, day, loc)
	if err != nil {
		return err
	}
	r.EarlyLeaveMinutes = nil
	earlyLimit := workEnd.Add(-time.Duration(settings.EarlyLeaveThreshold) * time.Minute)
	if out.Before(earlyLimit) {
		minutes := int(math.Floor(workEnd.Sub(out).Minutes()))
		r.EarlyLeaveMinutes = &minutes
	}

	standard, err := standardMinutes(settings)
	if err != nil {
		return err
	}
	if standard > 0 && worked < a.halfDayFraction*standard {
		r.Status = attendance.StatusHalfDay
	}
	return nil
}

// workWindow returns the scheduled start and end on day. An end at or before
// the start belongs to the next day.
func workWindow(settings attendance.Settings, day time.Time, loc *time.Location) (time.Time, time.Time, error) {
	start, err := workcal.ParseClock(settings.WorkStartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid work start time in settings: %w", err)
	}
	end, err := workcal.ParseClock(settings.WorkEndTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid work end time in settings: %w", err)
	}
	startAt := start.On(day, loc)
	endAt := end.On(day, loc)
	if !endAt.After(startAt) {
		endAt = endAt.AddDate(0, 0, 1)
	}
	return startAt, endAt, nil
}

// standardMinutes is the scheduled day length minus the break allowance.
func standardMinutes(settings attendance.Settings) (float64, error) {
	day := time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC)
	start, end, err := workWindow(settings, day, time.UTC)
	if err != nil {
		return 0, err
	}
	return math.Max(0, end.Sub(start).Minutes()-float64(settings.BreakDuration)), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// StartBreak implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) StartBreak(ctx context.Context, req attendance.BreakRequest) (attendance.BreakResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.BreakResponse{}, err
	}
	at, err := a.eventTime(req.OccurredAt)
	if err != nil {
		return attendance.BreakResponse{}, err
	}

	release, err := a.acquire(req.EmployeeID)
	if err != nil {
		return attendance.BreakResponse{}, err
	}
	defer release()

	settings, _, err := a.settingsFor(ctx, req.EmployeeID)
	if err != nil {
		return attendance.BreakResponse{}, err
	}

	record, err := a.recordFor(ctx, req.EmployeeID, at, settings.Location())
	if err != nil {
		return attendance.BreakResponse{}, err
	}
	if record == nil {
		return attendance.BreakResponse{}, attendance.ErrNotPunchedIn
	}

	last, err := a.BreakRepository.GetLastBreak(ctx, record.ID)
	if err != nil {
		return attendance.BreakResponse{}, fmt.Errorf("failed to get last break: %w", err)
	}
	if last != nil && last.StartTime.Equal(at) {
		return mapBreakToResponse(*last, *record), nil
	}
	if !record.IsOpen() {
		return attendance.BreakResponse{}, attendance.ErrNotPunchedIn
	}
	if last != nil && last.EndTime == nil {
		return attendance.BreakResponse{}, attendance.ErrAlreadyOnBreak
	}
	if at.Before(*record.PunchInTime) || (last != nil && at.Before(*last.EndTime)) {
		return attendance.BreakResponse{}, attendance.ErrInvalidBreakTime
	}

	b, err := a.BreakRepository.CreateBreak(ctx, attendance.Break{RecordID: record.ID, StartTime: at})
	if err != nil {
		return attendance.BreakResponse{}, fmt.Errorf("failed to create break: %w", err)
	}

	slog.Info("Employee started break", "employee_id", req.EmployeeID, "record_id", record.ID, "break_id", b.ID)
	return mapBreakToResponse(b, *record), nil
}

// EndBreak implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) EndBreak(ctx context.Context, req attendance.BreakRequest) (attendance.BreakResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.BreakResponse{}, err
	}
	at, err := a.eventTime(req.OccurredAt)
	if err != nil {
		return attendance.BreakResponse{}, err
	}

	release, err := a.acquire(req.EmployeeID)
	if err != nil {
		return attendance.BreakResponse{}, err
	}
	defer release()

	settings, _, err := a.settingsFor(ctx, req.EmployeeID)
	if err != nil {
		return attendance.BreakResponse{}, err
	}

	record, err := a.recordFor(ctx, req.EmployeeID, at, settings.Location())
	if err != nil {
		return attendance.BreakResponse{}, err
	}
	if record == nil {
		return attendance.BreakResponse{}, attendance.ErrNotPunchedIn
	}

	last, err := a.BreakRepository.GetLastBreak(ctx, record.ID)
	if err != nil {
		return attendance.BreakResponse{}, fmt.Errorf("failed to get last break: %w", err)
	}
	if last != nil && last.EndTime != nil && last.EndTime.Equal(at) {
		return mapBreakToResponse(*last, *record), nil
	}
	if !record.IsOpen() {
		return attendance.BreakResponse{}, attendance.ErrNotPunchedIn
	}
	if last == nil || last.EndTime != nil {
		return attendance.BreakResponse{}, attendance.ErrNotOnBreak
	}
	if at.Before(last.StartTime) {
		return attendance.BreakResponse{}, attendance.ErrInvalidBreakTime
	}

	closedBreak := *last
	closedBreak.EndTime = &at
	updated := *record
	updated.TotalBreakMinutes += closedBreak.Minutes()

	err = a.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := a.BreakRepository.UpdateBreak(txCtx, closedBreak); err != nil {
			return fmt.Errorf("failed to close break: %w", err)
		}
		if err := a.AttendanceRepository.Update(txCtx, updated); err != nil {
			return fmt.Errorf("failed to update attendance record: %w", err)
		}
		return nil
	})
	if err != nil {
		return attendance.BreakResponse{}, err
	}

	slog.Info("Employee ended break",
		"employee_id", req.EmployeeID,
		"record_id", updated.ID,
		"break_minutes", closedBreak.Minutes(),
		"total_break_minutes", updated.TotalBreakMinutes,
	)
	return mapBreakToResponse(closedBreak, updated), nil
}

// RecordIdle implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) RecordIdle(ctx context.Context, req attendance.IdleRequest) (attendance.IdleResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.IdleResponse{}, err
	}
	end, err := a.eventTime(&req.EndTime)
	if err != nil {
		return attendance.IdleResponse{}, err
	}
	start := normalize(req.StartTime)

	release, err := a.acquire(req.EmployeeID)
	if err != nil {
		return attendance.IdleResponse{}, err
	}
	defer release()

	open, err := a.AttendanceRepository.GetOpenSession(ctx, req.EmployeeID)
	if err != nil {
		return attendance.IdleResponse{}, fmt.Errorf("failed to get open session: %w", err)
	}
	if open == nil {
		return attendance.IdleResponse{}, attendance.ErrNotPunchedIn
	}
	openBreak, err := a.BreakRepository.GetOpenBreak(ctx, open.ID)
	if err != nil {
		return attendance.IdleResponse{}, fmt.Errorf("failed to get open break: %w", err)
	}
	if openBreak != nil {
		return attendance.IdleResponse{}, attendance.ErrOnBreak
	}
	if start.Before(*open.PunchInTime) {
		return attendance.IdleResponse{}, attendance.ErrInvalidIdlePeriod
	}
	if err := a.checkIdleOverlap(ctx, open.ID, start, end); err != nil {
		return attendance.IdleResponse{}, err
	}

	period := attendance.IdlePeriod{RecordID: open.ID, StartTime: start, EndTime: end, Reason: req.Reason}
	updated := *open
	duplicate := false

	err = a.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		created, err := a.IdleRepository.CreateIdlePeriod(txCtx, period)
		if err != nil {
			return fmt.Errorf("failed to create idle period: %w", err)
		}
		if !created {
			duplicate = true
			return nil
		}
		updated.TotalIdleMinutes += period.Minutes()
		if err := a.AttendanceRepository.Update(txCtx, updated); err != nil {
			return fmt.Errorf("failed to update attendance record: %w", err)
		}
		return nil
	})
	if err != nil {
		return attendance.IdleResponse{}, err
	}

	if duplicate {
		slog.Debug("Duplicate idle period ignored", "employee_id", req.EmployeeID, "start_time", start)
	}
	return attendance.IdleResponse{
		RecordID:         updated.ID,
		DurationMinutes:  period.Minutes(),
		TotalIdleMinutes: updated.TotalIdleMinutes,
		Duplicate:        duplicate,
	}, nil
}

// checkIdleOverlap rejects a period that shares time with a break or with a
// stored idle period, so no minute is subtracted twice. A period starting
// exactly where a stored one starts is a replay and passes through to the
// deduplicating insert.
func (a *AttendanceServiceImpl) checkIdleOverlap(ctx context.Context, recordID string, start, end time.Time) error {
	breaks, err := a.BreakRepository.ListBreaks(ctx, recordID)
	if err != nil {
		return fmt.Errorf("failed to list breaks: %w", err)
	}
	for _, b := range breaks {
		// Open breaks were rejected earlier with ErrOnBreak
		if b.EndTime != nil && overlaps(start, end, b.StartTime, *b.EndTime) {
			return attendance.ErrInvalidIdlePeriod
		}
	}

	periods, err := a.IdleRepository.ListIdlePeriods(ctx, recordID)
	if err != nil {
		return fmt.Errorf("failed to list idle periods: %w", err)
	}
	for _, p := range periods {
		if p.StartTime.Equal(start) {
			continue
		}
		if overlaps(start, end, p.StartTime, p.EndTime) {
			return attendance.ErrInvalidIdlePeriod
		}
	}
	return nil
}

// overlaps treats both ranges as half-open, so periods that only touch do not overlap.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// GetStatus implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) GetStatus(ctx context.Context, employeeID string) (attendance.StatusResponse, error) {
	var (
		settings  attendance.Settings
		isDefault bool
		open      *attendance.Record
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		settings, isDefault, err = a.settingsFor(gctx, employeeID)
		return err
	})
	g.Go(func() error {
		var err error
		open, err = a.AttendanceRepository.GetOpenSession(gctx, employeeID)
		if err != nil {
			return fmt.Errorf("failed to get open session: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return attendance.StatusResponse{}, err
	}

	loc := settings.Location()
	now := a.now()
	date := workcal.DateOf(now, loc)

	today, err := a.AttendanceRepository.GetByEmployeeAndDate(ctx, employeeID, date)
	if err != nil {
		return attendance.StatusResponse{}, fmt.Errorf("failed to get attendance by date: %w", err)
	}

	var openBreak *attendance.Break
	if open != nil {
		openBreak, err = a.BreakRepository.GetOpenBreak(ctx, open.ID)
		if err != nil {
			return attendance.StatusResponse{}, fmt.Errorf("failed to get open break: %w", err)
		}
	}

	cal, err := workcal.New(settings.WorkingDays)
	if err != nil {
		return attendance.StatusResponse{}, fmt.Errorf("invalid working days in settings: %w", err)
	}

	state := attendance.DeriveState(open, openBreak, today)
	onLeave := open == nil && today != nil && today.Status == attendance.StatusOnLeave

	resp := attendance.StatusResponse{
		EmployeeID:    employeeID,
		Date:          date.Format(dateLayout),
		State:         state,
		Settings:      attendance.NewSettingsResponse(settings, isDefault),
		IsWorkingDay:  cal.IsWorkingDay(date),
		CanPunchIn:    state == attendance.StateNotStarted && !onLeave,
		CanPunchOut:   state == attendance.StatePunchedIn || state == attendance.StateOnBreak,
		CanStartBreak: state == attendance.StatePunchedIn,
		CanEndBreak:   state == attendance.StateOnBreak,
	}

	current := open
	if current == nil {
		current = today
	}
	if current != nil {
		r := mapRecordToResponse(*current, loc)
		resp.Record = &r
	}
	if openBreak != nil {
		b := mapBreakToResponse(*openBreak, *open)
		resp.OpenBreak = &b
	}

	switch {
	case onLeave:
		resp.Message = "You are on leave today"
	case state == attendance.StateNotStarted:
		resp.Message = "You have not punched in today"
	case state == attendance.StatePunchedIn:
		resp.Message = "You are punched in"
	case state == attendance.StateOnBreak:
		resp.Message = "You are on a break"
	case state == attendance.StatePunchedOut:
		resp.Message = "You have punched out for today"
	}

	return resp, nil
}

// ListRecords implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) ListRecords(ctx context.Context, filter attendance.RecordFilter) (attendance.ListRecordsResponse, error) {
	if err := filter.Validate(); err != nil {
		return attendance.ListRecordsResponse{}, err
	}

	records, total, err := a.AttendanceRepository.List(ctx, filter)
	if err != nil {
		return attendance.ListRecordsResponse{}, fmt.Errorf("failed to list attendance records: %w", err)
	}

	locations := make(map[string]*time.Location)
	responses := make([]attendance.RecordResponse, 0, len(records))
	for _, r := range records {
		loc, ok := locations[r.EmployeeID]
		if !ok {
			settings, _, err := a.settingsFor(ctx, r.EmployeeID)
			if err != nil {
				return attendance.ListRecordsResponse{}, err
			}
			loc = settings.Location()
			locations[r.EmployeeID] = loc
		}
		responses = append(responses, mapRecordToResponse(r, loc))
	}

	totalPages := int(math.Ceil(float64(total) / float64(filter.Limit)))
	showing := fmt.Sprintf("%d-%d of %d", (filter.Page-1)*filter.Limit+1, min(filter.Page*filter.Limit, int(total)), total)
	if total == 0 {
		showing = "0 of 0"
	}

	return attendance.ListRecordsResponse{
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
		Showing:    showing,
		Records:    responses,
	}, nil
}

// GetRecord implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) GetRecord(ctx context.Context, id string) (attendance.RecordResponse, error) {
	record, err := a.AttendanceRepository.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, attendance.ErrRecordNotFound) {
			return attendance.RecordResponse{}, attendance.ErrRecordNotFound
		}
		return attendance.RecordResponse{}, fmt.Errorf("failed to get attendance record: %w", err)
	}

	settings, _, err := a.settingsFor(ctx, record.EmployeeID)
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	return mapRecordToResponse(record, settings.Location()), nil
}

// GetSettings implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) GetSettings(ctx context.Context, employeeID string) (attendance.SettingsResponse, error) {
	settings, isDefault, err := a.settingsFor(ctx, employeeID)
	if err != nil {
		return attendance.SettingsResponse{}, err
	}
	return attendance.NewSettingsResponse(settings, isDefault), nil
}

// UpdateSettings implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) UpdateSettings(ctx context.Context, req attendance.UpdateSettingsRequest) (attendance.SettingsResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.SettingsResponse{}, err
	}

	current, _, err := a.settingsFor(ctx, req.EmployeeID)
	if err != nil {
		return attendance.SettingsResponse{}, err
	}
	merged := req.Apply(current)

	standard, err := standardMinutes(merged)
	if err != nil {
		return attendance.SettingsResponse{}, err
	}
	if standard <= 0 {
		var errs validator.ValidationErrors
		errs.Add("break_duration", "break_duration must be shorter than the working day")
		return attendance.SettingsResponse{}, errs
	}

	saved, err := a.SettingsRepository.Upsert(ctx, merged)
	if err != nil {
		return attendance.SettingsResponse{}, fmt.Errorf("failed to save attendance settings: %w", err)
	}

	slog.Info("Attendance settings updated", "employee_id", req.EmployeeID)
	return attendance.NewSettingsResponse(saved, false), nil
}

// mapRecordToResponse converts a Record entity to RecordResponse. Times are
// displayed in loc.
func mapRecordToResponse(r attendance.Record, loc *time.Location) attendance.RecordResponse {
	day := workcal.Day(r.Date, loc)
	return attendance.RecordResponse{
		ID:                 r.ID,
		EmployeeID:         r.EmployeeID,
		Date:               day.Format(dateLayout),
		DateDisplay:        timefmt.FormatDate(day, loc),
		PunchInTime:        r.PunchInTime,
		PunchOutTime:       r.PunchOutTime,
		PunchInDisplay:     timefmt.FormatTimePtr(r.PunchInTime, loc),
		PunchOutDisplay:    timefmt.FormatTimePtr(r.PunchOutTime, loc),
		TotalWorkingHours:  r.TotalWorkingHours,
		WorkingTimeDisplay: timefmt.FormatHours(r.TotalWorkingHours),
		TotalBreakMinutes:  r.TotalBreakMinutes,
		BreakTimeDisplay:   timefmt.FormatMinutes(float64(r.TotalBreakMinutes)),
		TotalIdleMinutes:   r.TotalIdleMinutes,
		Status:             r.Status,
		StatusDisplay:      r.Status.Presentation(),
		LateMinutes:        r.LateMinutes,
		EarlyLeaveMinutes:  r.EarlyLeaveMinutes,
		OvertimeHours:      r.OvertimeHours,
		PunchInLocation:    r.PunchInLocation,
		PunchOutLocation:   r.PunchOutLocation,
		Notes:              r.Notes,
		IsManual:           r.IsManual,
		CreatedAt:          r.CreatedAt.Format("2006-01-02 15:04:05"),
		UpdatedAt:          r.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}

func mapBreakToResponse(b attendance.Break, r attendance.Record) attendance.BreakResponse {
	return attendance.BreakResponse{
		ID:                b.ID,
		RecordID:          b.RecordID,
		StartTime:         b.StartTime,
		EndTime:           b.EndTime,
		DurationMinutes:   b.Minutes(),
		TotalBreakMinutes: r.TotalBreakMinutes,
	}
}
