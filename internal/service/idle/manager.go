package idle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/idle"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/pubsub"
)

// Manager detects inactivity and tracks idle sessions for one work session.
//
// Sampling is driven by Start's ticker in production and by calling Evaluate
// directly in tests. Subscribers are called synchronously, outside the lock,
// once per transition.
type Manager struct {
	mu           sync.Mutex
	settings     idle.Settings
	now          func() time.Time
	lastActivity time.Time
	monitoring   bool
	current      *idle.Session
	totalIdle    time.Duration
	warningAt    *time.Time

	cancel   context.CancelFunc
	done     chan struct{}
	interval chan time.Duration

	bus pubsub.Bus[idle.Event]
}

func NewManager(settings idle.Settings, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		settings:     settings,
		now:          now,
		lastActivity: now(),
	}
}

// Subscribe registers handler for every transition.
func (m *Manager) Subscribe(handler func(idle.Event)) (unsubscribe func()) {
	return m.bus.Subscribe(handler)
}

// Start begins monitoring. It is a no-op when already monitoring.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.monitoring {
		m.mu.Unlock()
		return
	}
	now := m.now()
	m.monitoring = true
	m.lastActivity = now

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	interval := make(chan time.Duration, 1)
	m.cancel, m.done, m.interval = cancel, done, interval
	sample := m.settings.SampleInterval
	events := []idle.Event{m.eventLocked(idle.EventMonitoringStarted, now, nil)}
	m.mu.Unlock()

	m.publish(events)
	go m.loop(runCtx, sample, interval, done)
	slog.Debug("Idle monitoring started", "sample_interval", sample)
}

func (m *Manager) loop(ctx context.Context, sample time.Duration, interval <-chan time.Duration, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(sample)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-interval:
			ticker.Reset(d)
		case <-ticker.C:
			m.Evaluate(m.now())
		}
	}
}

// Stop ends monitoring and closes any open idle session at the current time.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.monitoring {
		m.mu.Unlock()
		return
	}
	now := m.now()
	m.monitoring = false
	cancel, done := m.cancel, m.done
	m.cancel, m.done, m.interval = nil, nil, nil

	var events []idle.Event
	if m.warningAt != nil {
		m.warningAt = nil
		events = append(events, m.eventLocked(idle.EventWarningCancelled, now, nil))
	}
	if m.current != nil {
		events = append(events, m.closeLocked(now))
	}
	events = append(events, m.eventLocked(idle.EventMonitoringStopped, now, nil))
	m.mu.Unlock()

	cancel()
	<-done
	m.publish(events)
	slog.Debug("Idle monitoring stopped")
}

// Evaluate takes one sample at now.
func (m *Manager) Evaluate(now time.Time) {
	m.mu.Lock()
	events := m.evaluateLocked(now)
	m.mu.Unlock()

	m.publish(events)
}

func (m *Manager) evaluateLocked(now time.Time) []idle.Event {
	if !m.monitoring || m.current != nil {
		return nil
	}

	inactive := now.Sub(m.lastActivity)
	threshold := m.settings.Threshold()

	var events []idle.Event
	if inactive >= threshold {
		if m.warningAt != nil {
			m.warningAt = nil
		}
		m.current = &idle.Session{StartTime: m.lastActivity, Reason: idle.ReasonInactivity}
		events = append(events, m.eventLocked(idle.EventIdleStarted, now, copySession(m.current)))
		return events
	}

	lead := m.settings.WarningLead()
	if m.settings.ShowIdleWarning && lead > 0 && m.warningAt == nil && inactive >= threshold-lead {
		deadline := m.lastActivity.Add(threshold)
		m.warningAt = &deadline
		events = append(events, m.eventLocked(idle.EventWarningStarted, now, nil))
	}
	return events
}

// RecordActivity reports user input at at. Activity during a manual idle
// session is ignored.
func (m *Manager) RecordActivity(at time.Time) {
	m.mu.Lock()
	var events []idle.Event
	if m.current != nil && m.current.Reason == idle.ReasonManual {
		m.mu.Unlock()
		return
	}
	if at.After(m.lastActivity) {
		m.lastActivity = at
	}
	if m.warningAt != nil {
		m.warningAt = nil
		events = append(events, m.eventLocked(idle.EventWarningCancelled, at, nil))
	}
	if m.current != nil && m.settings.AutoResumeOnActivity {
		events = append(events, m.closeLocked(at))
	}
	m.mu.Unlock()

	m.publish(events)
}

// ManualStartIdle opens a manual idle session, suppressing automatic
// detection until ManualEndIdle.
func (m *Manager) ManualStartIdle(note string) error {
	m.mu.Lock()
	if m.current != nil {
		m.mu.Unlock()
		return idle.ErrAlreadyIdle
	}
	now := m.now()
	var events []idle.Event
	if m.warningAt != nil {
		m.warningAt = nil
		events = append(events, m.eventLocked(idle.EventWarningCancelled, now, nil))
	}
	m.current = &idle.Session{StartTime: now, Reason: idle.ReasonManual, Note: note}
	events = append(events, m.eventLocked(idle.EventIdleStarted, now, copySession(m.current)))
	m.mu.Unlock()

	m.publish(events)
	return nil
}

// ManualEndIdle closes the current idle session, manual or automatic.
func (m *Manager) ManualEndIdle() error {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return idle.ErrNotIdle
	}
	now := m.now()
	events := []idle.Event{m.closeLocked(now)}
	m.lastActivity = now
	m.mu.Unlock()

	m.publish(events)
	return nil
}

// ResetSession starts a new work session: total idle time goes back to zero
// and an open idle session is discarded without being counted.
func (m *Manager) ResetSession() {
	m.mu.Lock()
	now := m.now()
	m.totalIdle = 0
	m.current = nil
	m.warningAt = nil
	m.lastActivity = now
	events := []idle.Event{m.eventLocked(idle.EventSessionReset, now, nil)}
	m.mu.Unlock()

	m.publish(events)
}

func (m *Manager) UpdateSettings(settings idle.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	now := m.now()
	resample := m.monitoring && settings.SampleInterval != m.settings.SampleInterval
	m.settings = settings
	interval := m.interval

	var events []idle.Event
	if m.warningAt != nil && !settings.ShowIdleWarning {
		m.warningAt = nil
		events = append(events, m.eventLocked(idle.EventWarningCancelled, now, nil))
	}
	events = append(events, m.eventLocked(idle.EventSettingsUpdated, now, nil))
	m.mu.Unlock()

	if resample && interval != nil {
		select {
		case interval <- settings.SampleInterval:
		default:
		}
	}
	m.publish(events)
	return nil
}

func (m *Manager) Settings() idle.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

func (m *Manager) State() idle.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() idle.State {
	state := idle.State{
		IsIdle:             m.current != nil,
		TotalIdleTime:      m.totalIdle,
		CurrentIdleSession: copySession(m.current),
		IsMonitoring:       m.monitoring,
		LastActivity:       m.lastActivity,
		Settings:           m.settings,
	}
	if m.warningAt != nil {
		deadline := *m.warningAt
		state.Warning = idle.Warning{Active: true, Deadline: &deadline}
	}
	return state
}

// closeLocked closes the current session at end and counts it.
func (m *Manager) closeLocked(end time.Time) idle.Event {
	closed := *m.current
	if end.Before(closed.StartTime) {
		end = closed.StartTime
	}
	closed.EndTime = &end
	m.totalIdle += closed.Duration(end)
	m.current = nil
	return m.eventLocked(idle.EventIdleEnded, end, &closed)
}

func (m *Manager) eventLocked(t idle.EventType, at time.Time, session *idle.Session) idle.Event {
	return idle.Event{Type: t, At: at, Session: session, State: m.stateLocked()}
}

func (m *Manager) publish(events []idle.Event) {
	for _, e := range events {
		m.bus.Publish(e)
	}
}

func copySession(s *idle.Session) *idle.Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	return &c
}
