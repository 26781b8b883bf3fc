package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/offline"
)

func openTestQueue(t *testing.T, path string) *QueueRepository {
	t.Helper()
	repo, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testAction(t offline.ActionType, at time.Time) offline.Action {
	return offline.Action{
		Type:       t,
		EmployeeID: "emp-1",
		OccurredAt: at,
		Payload:    json.RawMessage(`{"employee_id":"emp-1"}`),
	}
}

func TestQueueRepository_FIFOAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := openTestQueue(t, filepath.Join(t.TempDir(), "queue.db"))
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	first, err := repo.Enqueue(ctx, testAction(offline.ActionPunchIn, at))
	require.NoError(t, err)
	second, err := repo.Enqueue(ctx, testAction(offline.ActionBreakStart, at.Add(time.Hour)))
	require.NoError(t, err)
	third, err := repo.Enqueue(ctx, testAction(offline.ActionBreakEnd, at.Add(2*time.Hour)))
	require.NoError(t, err)

	assert.Less(t, first.Sequence, second.Sequence)
	assert.Less(t, second.Sequence, third.Sequence)

	items, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{first.ID, second.ID, third.ID}, []string{items[0].ID, items[1].ID, items[2].ID})
	assert.Equal(t, offline.ActionPunchIn, items[0].Action.Type)
	assert.True(t, at.Equal(items[0].Action.OccurredAt))
	assert.JSONEq(t, `{"employee_id":"emp-1"}`, string(items[0].Action.Payload))

	require.NoError(t, repo.Delete(ctx, second.ID))
	assert.ErrorIs(t, repo.Delete(ctx, second.ID), offline.ErrItemNotFound)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = repo.Get(ctx, second.ID)
	assert.ErrorIs(t, err, offline.ErrItemNotFound)
}

func TestQueueRepository_MarkFailedIncrementsAttempts(t *testing.T) {
	ctx := context.Background()
	repo := openTestQueue(t, filepath.Join(t.TempDir(), "queue.db"))
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	item, err := repo.Enqueue(ctx, testAction(offline.ActionPunchOut, at))
	require.NoError(t, err)
	assert.Equal(t, 0, item.AttemptCount)
	assert.Nil(t, item.LastError)

	require.NoError(t, repo.MarkFailed(ctx, item.ID, "connection refused", at.Add(time.Minute)))
	require.NoError(t, repo.MarkFailed(ctx, item.ID, "timeout", at.Add(2*time.Minute)))

	got, err := repo.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AttemptCount)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "timeout", *got.LastError)
	require.NotNil(t, got.LastAttemptAt)
	assert.True(t, at.Add(2*time.Minute).Equal(*got.LastAttemptAt))

	assert.ErrorIs(t, repo.MarkFailed(ctx, "missing", "x", at), offline.ErrItemNotFound)
}

func TestQueueRepository_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.db")
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	repo, err := Open(ctx, path)
	require.NoError(t, err)
	item, err := repo.Enqueue(ctx, testAction(offline.ActionPunchIn, at))
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, item.ID, "offline", at))
	require.NoError(t, repo.Close())

	reopened := openTestQueue(t, path)
	items, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, item.ID, items[0].ID)
	assert.Equal(t, 1, items[0].AttemptCount)

	next, err := reopened.Enqueue(ctx, testAction(offline.ActionPunchOut, at.Add(time.Hour)))
	require.NoError(t, err)
	assert.Greater(t, next.Sequence, item.Sequence)
}
