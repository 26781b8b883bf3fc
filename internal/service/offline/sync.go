package offline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/offline"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/pubsub"
)

type Options struct {
	// BaseBackoff is the wait after the first failure; each further failure doubles it
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// RetryInterval is how often Run looks for items whose backoff has elapsed
	RetryInterval time.Duration
	Now           func() time.Time
}

type SyncServiceImpl struct {
	offline.QueueRepository
	deliverer offline.Deliverer

	baseBackoff   time.Duration
	maxBackoff    time.Duration
	retryInterval time.Duration
	now           func() time.Time

	mu        sync.Mutex
	progress  offline.Progress
	online    bool
	reconnect chan struct{}

	bus pubsub.Bus[offline.Progress]
}

func NewSyncService(queueRepo offline.QueueRepository, deliverer offline.Deliverer, opts Options) offline.SyncService {
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 30 * time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Minute
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SyncServiceImpl{
		QueueRepository: queueRepo,
		deliverer:       deliverer,
		baseBackoff:     opts.BaseBackoff,
		maxBackoff:      opts.MaxBackoff,
		retryInterval:   opts.RetryInterval,
		now:             opts.Now,
		progress:        offline.Progress{Errors: []offline.ItemError{}},
		reconnect:       make(chan struct{}, 1),
	}
}

// Backoff returns the wait before attempt number attempt+1, given attempt
// failures so far: base * 2^(attempt-1), capped at ceiling.
func Backoff(attempt int, base, ceiling time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	if d > ceiling {
		return ceiling
	}
	return d
}

func (s *SyncServiceImpl) Enqueue(ctx context.Context, action offline.Action) (offline.QueueItem, error) {
	if err := action.Validate(); err != nil {
		return offline.QueueItem{}, err
	}

	item, err := s.QueueRepository.Enqueue(ctx, action)
	if err != nil {
		return offline.QueueItem{}, err
	}
	slog.Info("Action queued for sync", "item_id", item.ID, "type", action.Type, "sequence", item.Sequence)

	s.refreshPending(ctx)
	return item, nil
}

func (s *SyncServiceImpl) ForceSyncNow(ctx context.Context) (offline.Progress, error) {
	return s.pass(ctx, "manual", func(offline.QueueItem) bool { return true })
}

func (s *SyncServiceImpl) RetryFailedItems(ctx context.Context) (offline.Progress, error) {
	return s.pass(ctx, "retry", func(item offline.QueueItem) bool { return item.AttemptCount > 0 })
}

func (s *SyncServiceImpl) Progress() offline.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *SyncServiceImpl) Pending(ctx context.Context) (int, error) {
	pending, err := s.QueueRepository.Count(ctx)
	if err != nil {
		return 0, err
	}
	s.update(func(p *offline.Progress) { p.Pending = pending })
	return pending, nil
}

func (s *SyncServiceImpl) Discard(ctx context.Context, id string) error {
	s.mu.Lock()
	running := s.progress.IsRunning
	s.mu.Unlock()
	if running {
		return offline.ErrSyncInProgress
	}

	item, err := s.QueueRepository.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.QueueRepository.Delete(ctx, id); err != nil {
		return err
	}
	slog.Warn("Queued action discarded",
		"item_id", item.ID,
		"type", item.Action.Type,
		"attempts", item.AttemptCount,
	)

	s.refreshPending(ctx)
	return nil
}

func (s *SyncServiceImpl) Subscribe(handler func(offline.Progress)) (unsubscribe func()) {
	return s.bus.Subscribe(handler)
}

func (s *SyncServiceImpl) Items(ctx context.Context) ([]offline.QueueItem, error) {
	return s.QueueRepository.List(ctx)
}

func (s *SyncServiceImpl) OnNetworkChange(online bool) {
	s.mu.Lock()
	reconnected := online && !s.online
	s.online = online
	s.mu.Unlock()

	if !reconnected {
		return
	}
	select {
	case s.reconnect <- struct{}{}:
	default:
	}
}

// Run serves reconnect passes and, while online, periodic passes over items
// whose backoff has elapsed.
func (s *SyncServiceImpl) Run(ctx context.Context) {
	// Items persisted by an earlier run count as pending before any pass
	s.refreshPending(ctx)

	ticker := time.NewTicker(s.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.reconnect:
			s.automatic(ctx, "reconnect", func(offline.QueueItem) bool { return true })
		case <-ticker.C:
			if !s.isOnline() {
				continue
			}
			now := s.now()
			s.automatic(ctx, "backoff", func(item offline.QueueItem) bool { return s.due(item, now) })
		}
	}
}

func (s *SyncServiceImpl) automatic(ctx context.Context, trigger string, include func(offline.QueueItem) bool) {
	if _, err := s.pass(ctx, trigger, include); err != nil && !errors.Is(err, offline.ErrSyncInProgress) {
		slog.Error("Automatic sync failed", "trigger", trigger, "error", err)
	}
}

func (s *SyncServiceImpl) due(item offline.QueueItem, now time.Time) bool {
	if item.AttemptCount == 0 || item.LastAttemptAt == nil {
		return true
	}
	wait := Backoff(item.AttemptCount, s.baseBackoff, s.maxBackoff)
	return !now.Before(item.LastAttemptAt.Add(wait))
}

func (s *SyncServiceImpl) isOnline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// pass delivers the included items in sequence order, one at a time. A failed
// item stays queued and the pass moves on to the next one.
func (s *SyncServiceImpl) pass(ctx context.Context, trigger string, include func(offline.QueueItem) bool) (offline.Progress, error) {
	s.mu.Lock()
	if s.progress.IsRunning {
		s.mu.Unlock()
		return offline.Progress{}, offline.ErrSyncInProgress
	}
	last := s.progress.LastSyncTime
	s.progress = offline.Progress{IsRunning: true, Errors: []offline.ItemError{}, LastSyncTime: last, Pending: s.progress.Pending}
	s.mu.Unlock()

	items, err := s.QueueRepository.List(ctx)
	if err != nil {
		s.finish(ctx)
		return s.Progress(), err
	}

	var selected []offline.QueueItem
	for _, item := range items {
		if include(item) {
			selected = append(selected, item)
		}
	}

	s.update(func(p *offline.Progress) { p.TotalItems = len(selected) })
	slog.Info("Sync started", "trigger", trigger, "items", len(selected))

	for _, item := range selected {
		if ctx.Err() != nil {
			break
		}
		s.deliver(ctx, item)
	}

	s.finish(ctx)
	progress := s.Progress()
	slog.Info("Sync finished",
		"trigger", trigger,
		"synced", progress.SyncedItems,
		"failed", progress.FailedItems,
		"pending", progress.Pending,
	)
	return progress, nil
}

func (s *SyncServiceImpl) deliver(ctx context.Context, item offline.QueueItem) {
	err := s.deliverer.Deliver(ctx, item.Action)
	if err == nil {
		if delErr := s.QueueRepository.Delete(ctx, item.ID); delErr != nil {
			// Delivered but still queued; the next pass replays it and the api dedupes.
			slog.Error("Failed to delete synced item", "item_id", item.ID, "error", delErr)
		}
		s.update(func(p *offline.Progress) { p.SyncedItems++ })
		return
	}

	slog.Warn("Failed to sync item",
		"item_id", item.ID,
		"type", item.Action.Type,
		"attempt", item.AttemptCount+1,
		"error", err,
	)
	if markErr := s.QueueRepository.MarkFailed(ctx, item.ID, err.Error(), s.now()); markErr != nil {
		slog.Error("Failed to record sync failure", "item_id", item.ID, "error", markErr)
	}
	s.update(func(p *offline.Progress) {
		p.FailedItems++
		p.Errors = append(p.Errors, offline.ItemError{ItemID: item.ID, Type: item.Action.Type, Message: err.Error()})
	})
}

func (s *SyncServiceImpl) finish(ctx context.Context) {
	pending, err := s.QueueRepository.Count(ctx)
	if err != nil {
		slog.Error("Failed to count queued items", "error", err)
	}
	now := s.now()
	s.update(func(p *offline.Progress) {
		p.IsRunning = false
		p.LastSyncTime = &now
		if err == nil {
			p.Pending = pending
		}
	})
}

func (s *SyncServiceImpl) refreshPending(ctx context.Context) {
	pending, err := s.QueueRepository.Count(ctx)
	if err != nil {
		slog.Error("Failed to count queued items", "error", err)
		return
	}
	s.update(func(p *offline.Progress) { p.Pending = pending })
}

func (s *SyncServiceImpl) update(fn func(p *offline.Progress)) {
	s.mu.Lock()
	fn(&s.progress)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.bus.Publish(snapshot)
}

func (s *SyncServiceImpl) snapshotLocked() offline.Progress {
	p := s.progress
	p.Errors = append([]offline.ItemError{}, s.progress.Errors...)
	if s.progress.LastSyncTime != nil {
		t := *s.progress.LastSyncTime
		p.LastSyncTime = &t
	}
	return p
}
