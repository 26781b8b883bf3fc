package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/offline"
)

const schema = `
CREATE TABLE IF NOT EXISTS offline_queue (
	sequence        INTEGER PRIMARY KEY AUTOINCREMENT,
	id              TEXT NOT NULL UNIQUE,
	action_type     TEXT NOT NULL,
	employee_id     TEXT NOT NULL,
	occurred_at     TIMESTAMP NOT NULL,
	payload         TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL,
	attempt_count   INTEGER NOT NULL DEFAULT 0,
	last_error      TEXT,
	last_attempt_at TIMESTAMP
);`

type QueueRepository struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the queue database at path.
func Open(ctx context.Context, path string) (*QueueRepository, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// One writer; keeps sequence assignment and deletes serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create queue schema: %w", err)
	}
	return &QueueRepository{db: db, now: time.Now}, nil
}

func (r *QueueRepository) Close() error {
	return r.db.Close()
}

func (r *QueueRepository) Enqueue(ctx context.Context, action offline.Action) (offline.QueueItem, error) {
	item := offline.QueueItem{
		ID:        uuid.NewString(),
		Action:    action,
		CreatedAt: r.now().UTC(),
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO offline_queue (id, action_type, employee_id, occurred_at, payload, created_at)
		VALUES (?,?,?,?,?,?)`,
		item.ID, string(action.Type), action.EmployeeID, action.OccurredAt.UTC(),
		string(action.Payload), item.CreatedAt,
	)
	if err != nil {
		return offline.QueueItem{}, fmt.Errorf("failed to enqueue action: %w", err)
	}
	item.Sequence, err = res.LastInsertId()
	if err != nil {
		return offline.QueueItem{}, fmt.Errorf("failed to read queue sequence: %w", err)
	}
	return item, nil
}

func (r *QueueRepository) List(ctx context.Context) ([]offline.QueueItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sequence, id, action_type, employee_id, occurred_at, payload,
		       created_at, attempt_count, last_error, last_attempt_at
		FROM offline_queue ORDER BY sequence`)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	defer rows.Close()

	var items []offline.QueueItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *QueueRepository) Get(ctx context.Context, id string) (offline.QueueItem, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT sequence, id, action_type, employee_id, occurred_at, payload,
		       created_at, attempt_count, last_error, last_attempt_at
		FROM offline_queue WHERE id=?`, id)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return offline.QueueItem{}, offline.ErrItemNotFound
	}
	return item, err
}

func (r *QueueRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM offline_queue WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete queue item: %w", err)
	}
	return requireRow(res)
}

func (r *QueueRepository) MarkFailed(ctx context.Context, id string, message string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE offline_queue
		SET attempt_count = attempt_count + 1, last_error = ?, last_attempt_at = ?
		WHERE id=?`, message, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark queue item failed: %w", err)
	}
	return requireRow(res)
}

func (r *QueueRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offline_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (offline.QueueItem, error) {
	var (
		item        offline.QueueItem
		actionType  string
		payload     string
		lastError   sql.NullString
		lastAttempt sql.NullTime
	)
	err := s.Scan(
		&item.Sequence, &item.ID, &actionType, &item.Action.EmployeeID, &item.Action.OccurredAt,
		&payload, &item.CreatedAt, &item.AttemptCount, &lastError, &lastAttempt,
	)
	if err != nil {
		return offline.QueueItem{}, err
	}
	item.Action.Type = offline.ActionType(actionType)
	item.Action.Payload = json.RawMessage(payload)
	if lastError.Valid {
		item.LastError = &lastError.String
	}
	if lastAttempt.Valid {
		t := lastAttempt.Time
		item.LastAttemptAt = &t
	}
	return item, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return offline.ErrItemNotFound
	}
	return nil
}
