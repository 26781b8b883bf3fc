package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type breakRepository struct {
	db *database.DB
}

// CreateBreak implements attendance.BreakRepository.
func (b *breakRepository) CreateBreak(ctx context.Context, br attendance.Break) (attendance.Break, error) {
	q := GetQuerier(ctx, b.db)

	query := `
		INSERT INTO attendance_breaks (record_id, start_time, end_time)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := q.QueryRow(ctx, query, br.RecordID, br.StartTime, br.EndTime).Scan(&br.ID, &br.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return attendance.Break{}, attendance.ErrAlreadyOnBreak
		}
		return attendance.Break{}, fmt.Errorf("failed to create break: %w", err)
	}

	return br, nil
}

// GetOpenBreak implements attendance.BreakRepository.
func (b *breakRepository) GetOpenBreak(ctx context.Context, recordID string) (*attendance.Break, error) {
	q := GetQuerier(ctx, b.db)

	query := `
		SELECT id, record_id, start_time, end_time, created_at
		FROM attendance_breaks
		WHERE record_id = $1 AND end_time IS NULL
		LIMIT 1
	`

	return b.scanOne(q.QueryRow(ctx, query, recordID))
}

// GetLastBreak implements attendance.BreakRepository.
func (b *breakRepository) GetLastBreak(ctx context.Context, recordID string) (*attendance.Break, error) {
	q := GetQuerier(ctx, b.db)

	query := `
		SELECT id, record_id, start_time, end_time, created_at
		FROM attendance_breaks
		WHERE record_id = $1
		ORDER BY start_time DESC
		LIMIT 1
	`

	return b.scanOne(q.QueryRow(ctx, query, recordID))
}

// UpdateBreak implements attendance.BreakRepository.
func (b *breakRepository) UpdateBreak(ctx context.Context, br attendance.Break) error {
	q := GetQuerier(ctx, b.db)

	tag, err := q.Exec(ctx, `UPDATE attendance_breaks SET start_time = $2, end_time = $3 WHERE id = $1`,
		br.ID, br.StartTime, br.EndTime)
	if err != nil {
		return fmt.Errorf("failed to update break: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return attendance.ErrNotOnBreak
	}

	return nil
}

// ListBreaks implements attendance.BreakRepository.
func (b *breakRepository) ListBreaks(ctx context.Context, recordID string) ([]attendance.Break, error) {
	q := GetQuerier(ctx, b.db)

	query := `
		SELECT id, record_id, start_time, end_time, created_at
		FROM attendance_breaks
		WHERE record_id = $1
		ORDER BY start_time
	`

	rows, err := q.Query(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to list breaks: %w", err)
	}
	defer rows.Close()

	var breaks []attendance.Break
	for rows.Next() {
		var br attendance.Break
		if err := rows.Scan(&br.ID, &br.RecordID, &br.StartTime, &br.EndTime, &br.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan break: %w", err)
		}
		breaks = append(breaks, br)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list breaks: %w", err)
	}
	return breaks, nil
}

func (b *breakRepository) scanOne(row pgx.Row) (*attendance.Break, error) {
	var br attendance.Break
	err := row.Scan(&br.ID, &br.RecordID, &br.StartTime, &br.EndTime, &br.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get break: %w", err)
	}
	return &br, nil
}

func NewBreakRepository(db *database.DB) attendance.BreakRepository {
	return &breakRepository{db: db}
}

// isUniqueViolation reports a unique or exclusion constraint failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
