package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/database"
)

type idleRepository struct {
	db *database.DB
}

// CreateIdlePeriod implements attendance.IdleRepository.
func (i *idleRepository) CreateIdlePeriod(ctx context.Context, p attendance.IdlePeriod) (bool, error) {
	q := GetQuerier(ctx, i.db)

	query := `
		INSERT INTO attendance_idle_periods (record_id, start_time, end_time, reason)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (record_id, start_time) DO NOTHING
	`

	tag, err := q.Exec(ctx, query, p.RecordID, p.StartTime, p.EndTime, p.Reason)
	if err != nil {
		return false, fmt.Errorf("failed to create idle period: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// ListIdlePeriods implements attendance.IdleRepository.
func (i *idleRepository) ListIdlePeriods(ctx context.Context, recordID string) ([]attendance.IdlePeriod, error) {
	q := GetQuerier(ctx, i.db)

	query := `
		SELECT id, record_id, start_time, end_time, reason, created_at
		FROM attendance_idle_periods
		WHERE record_id = $1
		ORDER BY start_time
	`

	rows, err := q.Query(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to list idle periods: %w", err)
	}
	defer rows.Close()

	var periods []attendance.IdlePeriod
	for rows.Next() {
		var p attendance.IdlePeriod
		if err := rows.Scan(&p.ID, &p.RecordID, &p.StartTime, &p.EndTime, &p.Reason, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan idle period: %w", err)
		}
		periods = append(periods, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list idle periods: %w", err)
	}
	return periods, nil
}

func NewIdleRepository(db *database.DB) attendance.IdleRepository {
	return &idleRepository{db: db}
}
