package offline

import (
	"context"
	"time"
)

// QueueRepository is the durable FIFO of actions waiting for delivery.
type QueueRepository interface {
	// Enqueue assigns ID, Sequence and CreatedAt
	Enqueue(ctx context.Context, action Action) (QueueItem, error)

	// List returns every item ordered by sequence
	List(ctx context.Context) ([]QueueItem, error)

	// Get returns ErrItemNotFound when no item matches
	Get(ctx context.Context, id string) (QueueItem, error)

	Delete(ctx context.Context, id string) error

	// MarkFailed increments AttemptCount and records the error
	MarkFailed(ctx context.Context, id string, message string, at time.Time) error

	Count(ctx context.Context) (int, error)
}

// Deliverer sends one action to the api.
type Deliverer interface {
	Deliver(ctx context.Context, action Action) error
}
