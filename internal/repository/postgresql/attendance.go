package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const dateLayout = "2006-01-02"

const recordColumns = `
	id, employee_id, date, punch_in_time, punch_out_time,
	total_working_hours, total_break_minutes, total_idle_minutes, status,
	late_minutes, early_leave_minutes, overtime_hours,
	punch_in_latitude, punch_in_longitude, punch_in_accuracy,
	punch_out_latitude, punch_out_longitude, punch_out_accuracy,
	notes, is_manual, created_at, updated_at`

type attendanceRepository struct {
	db *database.DB
}

// Create implements attendance.AttendanceRepository.
func (a *attendanceRepository) Create(ctx context.Context, record attendance.Record) (attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	inLat, inLng, inAcc := splitLocation(record.PunchInLocation)
	outLat, outLng, outAcc := splitLocation(record.PunchOutLocation)

	query := `
		INSERT INTO attendance_records (
			employee_id, date, punch_in_time, punch_out_time,
			total_working_hours, total_break_minutes, total_idle_minutes, status,
			late_minutes, early_leave_minutes, overtime_hours,
			punch_in_latitude, punch_in_longitude, punch_in_accuracy,
			punch_out_latitude, punch_out_longitude, punch_out_accuracy,
			notes, is_manual
		) VALUES (
			$1, $2::date, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
		) RETURNING id, created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		record.EmployeeID,
		record.Date.Format(dateLayout),
		record.PunchInTime,
		record.PunchOutTime,
		record.TotalWorkingHours,
		record.TotalBreakMinutes,
		record.TotalIdleMinutes,
		record.Status,
		record.LateMinutes,
		record.EarlyLeaveMinutes,
		record.OvertimeHours,
		inLat, inLng, inAcc,
		outLat, outLng, outAcc,
		record.Notes,
		record.IsManual,
	).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return attendance.Record{}, attendance.ErrAlreadyPunchedIn
		}
		return attendance.Record{}, fmt.Errorf("failed to create attendance record: %w", err)
	}

	return record, nil
}

// GetByID implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetByID(ctx context.Context, id string) (attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE id = $1`

	record, err := scanRecord(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Record{}, attendance.ErrRecordNotFound
		}
		return attendance.Record{}, fmt.Errorf("failed to get attendance record by ID: %w", err)
	}

	return record, nil
}

// GetByEmployeeAndDate implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetByEmployeeAndDate(ctx context.Context, employeeID string, date time.Time) (*attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT ` + recordColumns + `
		FROM attendance_records
		WHERE employee_id = $1 AND date = $2::date
		LIMIT 1`

	record, err := scanRecord(q.QueryRow(ctx, query, employeeID, date.Format(dateLayout)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get attendance by employee and date: %w", err)
	}

	return &record, nil
}

// GetOpenSession implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetOpenSession(ctx context.Context, employeeID string) (*attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT ` + recordColumns + `
		FROM attendance_records
		WHERE employee_id = $1
		  AND punch_in_time IS NOT NULL
		  AND punch_out_time IS NULL
		ORDER BY punch_in_time DESC
		LIMIT 1`

	record, err := scanRecord(q.QueryRow(ctx, query, employeeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get open session: %w", err)
	}

	return &record, nil
}

// Update implements attendance.AttendanceRepository.
func (a *attendanceRepository) Update(ctx context.Context, record attendance.Record) error {
	q := GetQuerier(ctx, a.db)

	inLat, inLng, inAcc := splitLocation(record.PunchInLocation)
	outLat, outLng, outAcc := splitLocation(record.PunchOutLocation)

	query := `
		UPDATE attendance_records SET
			punch_in_time = $2,
			punch_out_time = $3,
			total_working_hours = $4,
			total_break_minutes = $5,
			total_idle_minutes = $6,
			status = $7,
			late_minutes = $8,
			early_leave_minutes = $9,
			overtime_hours = $10,
			punch_in_latitude = $11,
			punch_in_longitude = $12,
			punch_in_accuracy = $13,
			punch_out_latitude = $14,
			punch_out_longitude = $15,
			punch_out_accuracy = $16,
			notes = $17,
			is_manual = $18,
			updated_at = NOW()
		WHERE id = $1
	`

	tag, err := q.Exec(ctx, query,
		record.ID,
		record.PunchInTime,
		record.PunchOutTime,
		record.TotalWorkingHours,
		record.TotalBreakMinutes,
		record.TotalIdleMinutes,
		record.Status,
		record.LateMinutes,
		record.EarlyLeaveMinutes,
		record.OvertimeHours,
		inLat, inLng, inAcc,
		outLat, outLng, outAcc,
		record.Notes,
		record.IsManual,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return attendance.ErrAlreadyPunchedIn
		}
		return fmt.Errorf("failed to update attendance record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return attendance.ErrRecordNotFound
	}

	return nil
}

// List implements attendance.AttendanceRepository.
func (a *attendanceRepository) List(ctx context.Context, filter attendance.RecordFilter) ([]attendance.Record, int64, error) {
	q := GetQuerier(ctx, a.db)

	baseWhere := "1 = 1"
	args := []interface{}{}
	argIdx := 1

	if filter.EmployeeID != nil && *filter.EmployeeID != "" {
		baseWhere += fmt.Sprintf(" AND employee_id = $%d", argIdx)
		args = append(args, *filter.EmployeeID)
		argIdx++
	}
	if filter.StartDate != nil && *filter.StartDate != "" {
		baseWhere += fmt.Sprintf(" AND date >= $%d::date", argIdx)
		args = append(args, *filter.StartDate)
		argIdx++
	}
	if filter.EndDate != nil && *filter.EndDate != "" {
		baseWhere += fmt.Sprintf(" AND date <= $%d::date", argIdx)
		args = append(args, *filter.EndDate)
		argIdx++
	}
	if filter.Status != nil && *filter.Status != "" {
		baseWhere += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}

	countQuery := "SELECT COUNT(*) FROM attendance_records WHERE " + baseWhere
	var total int64
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count attendance records: %w", err)
	}

	orderByField := "date"
	switch filter.SortBy {
	case "punch_in_time":
		orderByField = "punch_in_time"
	case "punch_out_time":
		orderByField = "punch_out_time"
	case "status":
		orderByField = "status"
	}
	sortOrder := "DESC"
	if strings.ToLower(filter.SortOrder) == "asc" {
		sortOrder = "ASC"
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM attendance_records
		WHERE %s
		ORDER BY %s %s, id
		LIMIT $%d OFFSET $%d
	`, recordColumns, baseWhere, orderByField, sortOrder, argIdx, argIdx+1)

	limit := filter.Limit
	if limit == 0 {
		limit = 20
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)

	records, err := a.query(ctx, q, selectQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// ListByEmployeeAndRange implements attendance.AttendanceRepository.
func (a *attendanceRepository) ListByEmployeeAndRange(ctx context.Context, employeeID string, start, end time.Time) ([]attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT ` + recordColumns + `
		FROM attendance_records
		WHERE employee_id = $1 AND date >= $2::date AND date <= $3::date
		ORDER BY date`

	return a.query(ctx, q, query, employeeID, start.Format(dateLayout), end.Format(dateLayout))
}

// ListOpenSessions implements attendance.AttendanceRepository.
func (a *attendanceRepository) ListOpenSessions(ctx context.Context) ([]attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT ` + recordColumns + `
		FROM attendance_records
		WHERE punch_in_time IS NOT NULL AND punch_out_time IS NULL
		ORDER BY punch_in_time`

	return a.query(ctx, q, query)
}

func (a *attendanceRepository) query(ctx context.Context, q database.Querier, query string, args ...interface{}) ([]attendance.Record, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance records: %w", err)
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendance records: %w", err)
	}

	return records, nil
}

func scanRecord(row pgx.Row) (attendance.Record, error) {
	var (
		r                      attendance.Record
		inLat, inLng, inAcc    *float64
		outLat, outLng, outAcc *float64
	)
	err := row.Scan(
		&r.ID, &r.EmployeeID, &r.Date, &r.PunchInTime, &r.PunchOutTime,
		&r.TotalWorkingHours, &r.TotalBreakMinutes, &r.TotalIdleMinutes, &r.Status,
		&r.LateMinutes, &r.EarlyLeaveMinutes, &r.OvertimeHours,
		&inLat, &inLng, &inAcc,
		&outLat, &outLng, &outAcc,
		&r.Notes, &r.IsManual, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return attendance.Record{}, err
	}
	r.PunchInLocation = joinLocation(inLat, inLng, inAcc)
	r.PunchOutLocation = joinLocation(outLat, outLng, outAcc)
	return r, nil
}

func splitLocation(loc *attendance.Location) (lat, lng, acc *float64) {
	if loc == nil {
		return nil, nil, nil
	}
	return &loc.Latitude, &loc.Longitude, loc.Accuracy
}

func joinLocation(lat, lng, acc *float64) *attendance.Location {
	if lat == nil || lng == nil {
		return nil
	}
	return &attendance.Location{Latitude: *lat, Longitude: *lng, Accuracy: acc}
}

func NewAttendanceRepository(db *database.DB) attendance.AttendanceRepository {
	return &attendanceRepository{db: db}
}
