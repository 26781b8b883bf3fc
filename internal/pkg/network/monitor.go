package network

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/pubsub"
)

type Quality string

const (
	QualityGood    Quality = "good"
	QualityFair    Quality = "fair"
	QualityPoor    Quality = "poor"
	QualityOffline Quality = "offline"
)

const (
	goodLatency = 300 * time.Millisecond
	fairLatency = time.Second
)

// Classify maps a successful probe's latency to a quality.
func Classify(latency time.Duration) Quality {
	switch {
	case latency < goodLatency:
		return QualityGood
	case latency < fairLatency:
		return QualityFair
	default:
		return QualityPoor
	}
}

type Status struct {
	Online    bool          `json:"online"`
	Quality   Quality       `json:"quality"`
	Latency   time.Duration `json:"latency"`
	CheckedAt time.Time     `json:"checked_at"`
	Error     string        `json:"error,omitempty"`
}

type Config struct {
	HealthURL string
	Interval  time.Duration
	Timeout   time.Duration
	Client    *http.Client
	Now       func() time.Time
}

// Monitor probes the api health endpoint and publishes a Status on every
// online/offline or quality transition.
type Monitor struct {
	url      string
	interval time.Duration
	timeout  time.Duration
	client   *http.Client
	now      func() time.Time

	mu     sync.RWMutex
	status Status
	bus    pubsub.Bus[Status]
}

func NewMonitor(cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Monitor{
		url:      cfg.HealthURL,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		client:   cfg.Client,
		now:      cfg.Now,
		status:   Status{Quality: QualityOffline},
	}
}

func (m *Monitor) Subscribe(handler func(Status)) (unsubscribe func()) {
	return m.bus.Subscribe(handler)
}

func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) IsOnline() bool {
	return m.Status().Online
}

// Run probes immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check performs one probe and returns the resulting status.
func (m *Monitor) Check(ctx context.Context) Status {
	start := m.now()
	latency, err := m.probe(ctx)

	next := Status{CheckedAt: start}
	if err != nil {
		next.Quality = QualityOffline
		next.Error = err.Error()
	} else {
		next.Online = true
		next.Latency = latency
		next.Quality = Classify(latency)
	}
	m.set(next)
	return next
}

// ReportFailure marks the link offline after a live call failed at the
// transport level.
func (m *Monitor) ReportFailure(err error) {
	next := Status{Quality: QualityOffline, CheckedAt: m.now()}
	if err != nil {
		next.Error = err.Error()
	}
	m.set(next)
}

func (m *Monitor) probe(ctx context.Context) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build health request: %w", err)
	}

	started := time.Now()
	resp, err := m.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	latency := time.Since(started)

	if resp.StatusCode >= http.StatusInternalServerError {
		return 0, fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return latency, nil
}

func (m *Monitor) set(next Status) {
	m.mu.Lock()
	prev := m.status
	m.status = next
	m.mu.Unlock()

	if prev.Online == next.Online && prev.Quality == next.Quality {
		return
	}
	slog.Info("Network status changed",
		"online", next.Online,
		"quality", next.Quality,
		"latency_ms", next.Latency.Milliseconds(),
		"error", next.Error,
	)
	m.bus.Publish(next)
}
