package offline

import "context"

// SyncService drains the queue once the api is reachable.
type SyncService interface {
	Enqueue(ctx context.Context, action Action) (QueueItem, error)

	// ForceSyncNow runs one pass over every queued item
	ForceSyncNow(ctx context.Context) (Progress, error)

	// RetryFailedItems runs one pass over items that already failed at least once
	RetryFailedItems(ctx context.Context) (Progress, error)

	Progress() Progress

	// Pending counts queued items in storage and refreshes Progress
	Pending(ctx context.Context) (int, error)

	// Discard abandons a queued item without delivering it. It returns
	// ErrItemNotFound for unknown ids and ErrSyncInProgress during a pass.
	Discard(ctx context.Context, id string) error

	Subscribe(handler func(Progress)) (unsubscribe func())

	Items(ctx context.Context) ([]QueueItem, error)

	// OnNetworkChange starts one automatic pass on an offline to online transition
	OnNetworkChange(online bool)

	// Run serves automatic passes until ctx is done
	Run(ctx context.Context)
}
