package offline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/offline"
)

type memoryQueue struct {
	mu    sync.Mutex
	seq   int64
	items map[string]offline.QueueItem
}

func newMemoryQueue() *memoryQueue {
	return &memoryQueue{items: make(map[string]offline.QueueItem)}
}

func (q *memoryQueue) Enqueue(_ context.Context, action offline.Action) (offline.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	item := offline.QueueItem{ID: fmt.Sprintf("item-%d", q.seq), Sequence: q.seq, Action: action, CreatedAt: time.Now()}
	q.items[item.ID] = item
	return item, nil
}

func (q *memoryQueue) List(_ context.Context) ([]offline.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]offline.QueueItem, 0, len(q.items))
	for _, item := range q.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (q *memoryQueue) Get(_ context.Context, id string) (offline.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[id]
	if !ok {
		return offline.QueueItem{}, offline.ErrItemNotFound
	}
	return item, nil
}

func (q *memoryQueue) Delete(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.items[id]; !ok {
		return offline.ErrItemNotFound
	}
	delete(q.items, id)
	return nil
}

func (q *memoryQueue) MarkFailed(_ context.Context, id string, message string, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[id]
	if !ok {
		return offline.ErrItemNotFound
	}
	item.AttemptCount++
	item.LastError = &message
	item.LastAttemptAt = &at
	q.items[id] = item
	return nil
}

func (q *memoryQueue) Count(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}

// fakeDeliverer fails actions whose type is in failing and records every call.
type fakeDeliverer struct {
	mu      sync.Mutex
	failing map[offline.ActionType]bool
	calls   []offline.Action
	// block, when set, is received from before each delivery returns
	block   chan struct{}
	started chan struct{}
}

func (d *fakeDeliverer) Deliver(ctx context.Context, action offline.Action) error {
	d.mu.Lock()
	d.calls = append(d.calls, action)
	fail := d.failing[action.Type]
	block, started := d.block, d.started
	d.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fail {
		return errors.New("dial tcp: connection refused")
	}
	return nil
}

func (d *fakeDeliverer) setFailing(types ...offline.ActionType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failing = make(map[offline.ActionType]bool)
	for _, t := range types {
		d.failing[t] = true
	}
}

func (d *fakeDeliverer) callTypes() []offline.ActionType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]offline.ActionType, 0, len(d.calls))
	for _, a := range d.calls {
		out = append(out, a.Type)
	}
	return out
}
