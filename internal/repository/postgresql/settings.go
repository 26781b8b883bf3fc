package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const settingsColumns = `
	employee_id, work_start_time, work_end_time, break_duration,
	late_threshold, early_leave_threshold, overtime_threshold,
	working_days, timezone, require_location, allow_remote_work, auto_punch_out,
	created_at, updated_at`

type settingsRepository struct {
	db *database.DB
}

// GetByEmployeeID implements attendance.SettingsRepository.
func (s *settingsRepository) GetByEmployeeID(ctx context.Context, employeeID string) (attendance.Settings, error) {
	q := GetQuerier(ctx, s.db)

	query := `SELECT ` + settingsColumns + ` FROM attendance_settings WHERE employee_id = $1`

	settings, err := scanSettings(q.QueryRow(ctx, query, employeeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Settings{}, attendance.ErrSettingsNotFound
		}
		return attendance.Settings{}, fmt.Errorf("failed to get attendance settings: %w", err)
	}

	return settings, nil
}

// Upsert implements attendance.SettingsRepository.
func (s *settingsRepository) Upsert(ctx context.Context, settings attendance.Settings) (attendance.Settings, error) {
	q := GetQuerier(ctx, s.db)

	query := `
		INSERT INTO attendance_settings (
			employee_id, work_start_time, work_end_time, break_duration,
			late_threshold, early_leave_threshold, overtime_threshold,
			working_days, timezone, require_location, allow_remote_work, auto_punch_out
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (employee_id) DO UPDATE SET
			work_start_time = EXCLUDED.work_start_time,
			work_end_time = EXCLUDED.work_end_time,
			break_duration = EXCLUDED.break_duration,
			late_threshold = EXCLUDED.late_threshold,
			early_leave_threshold = EXCLUDED.early_leave_threshold,
			overtime_threshold = EXCLUDED.overtime_threshold,
			working_days = EXCLUDED.working_days,
			timezone = EXCLUDED.timezone,
			require_location = EXCLUDED.require_location,
			allow_remote_work = EXCLUDED.allow_remote_work,
			auto_punch_out = EXCLUDED.auto_punch_out,
			updated_at = NOW()
		RETURNING ` + settingsColumns

	saved, err := scanSettings(q.QueryRow(ctx, query,
		settings.EmployeeID,
		settings.WorkStartTime,
		settings.WorkEndTime,
		settings.BreakDuration,
		settings.LateThreshold,
		settings.EarlyLeaveThreshold,
		settings.OvertimeThreshold,
		settings.WorkingDays,
		settings.Timezone,
		settings.RequireLocation,
		settings.AllowRemoteWork,
		settings.AutoPunchOut,
	))
	if err != nil {
		return attendance.Settings{}, fmt.Errorf("failed to save attendance settings: %w", err)
	}

	return saved, nil
}

// ListAll implements attendance.SettingsRepository.
func (s *settingsRepository) ListAll(ctx context.Context) ([]attendance.Settings, error) {
	q := GetQuerier(ctx, s.db)

	rows, err := q.Query(ctx, `SELECT `+settingsColumns+` FROM attendance_settings ORDER BY employee_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance settings: %w", err)
	}
	defer rows.Close()

	var all []attendance.Settings
	for rows.Next() {
		settings, err := scanSettings(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance settings: %w", err)
		}
		all = append(all, settings)
	}

	return all, rows.Err()
}

func scanSettings(row pgx.Row) (attendance.Settings, error) {
	var st attendance.Settings
	err := row.Scan(
		&st.EmployeeID, &st.WorkStartTime, &st.WorkEndTime, &st.BreakDuration,
		&st.LateThreshold, &st.EarlyLeaveThreshold, &st.OvertimeThreshold,
		&st.WorkingDays, &st.Timezone, &st.RequireLocation, &st.AllowRemoteWork, &st.AutoPunchOut,
		&st.CreatedAt, &st.UpdatedAt,
	)
	return st, err
}

func NewSettingsRepository(db *database.DB) attendance.SettingsRepository {
	return &settingsRepository{db: db}
}
