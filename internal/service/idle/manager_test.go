package idle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/idle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recorder struct {
	mu     sync.Mutex
	events []idle.Event
}

func (r *recorder) handle(e idle.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []idle.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]idle.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) last() idle.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func testSettings() idle.Settings {
	s := idle.DefaultSettings()
	s.IdleThresholdMinutes = 5
	s.WarningTimeMinutes = 1
	s.SampleInterval = time.Hour // samples are driven by Evaluate
	return s
}

func newTestManager(t *testing.T, settings idle.Settings) (*Manager, *fakeClock, *recorder) {
	t.Helper()
	clk := &fakeClock{now: base}
	m := NewManager(settings, clk.Now)
	rec := &recorder{}
	m.Subscribe(rec.handle)
	m.Start(context.Background())
	t.Cleanup(m.Stop)
	return m, clk, rec
}

func TestManager_InactivityStartsIdleAtLastActivity(t *testing.T) {
	m, _, rec := newTestManager(t, testSettings())

	m.RecordActivity(base.Add(1 * time.Minute))
	m.Evaluate(base.Add(4 * time.Minute))
	assert.False(t, m.State().IsIdle)

	m.Evaluate(base.Add(6 * time.Minute))

	state := m.State()
	require.True(t, state.IsIdle)
	assert.Equal(t, idle.ReasonInactivity, state.CurrentIdleSession.Reason)
	assert.Equal(t, base.Add(1*time.Minute), state.CurrentIdleSession.StartTime)
	assert.Equal(t, idle.EventIdleStarted, rec.last().Type)
}

func TestManager_WarningFiresBeforeThresholdAndActivityCancelsIt(t *testing.T) {
	m, _, rec := newTestManager(t, testSettings())

	m.Evaluate(base.Add(3 * time.Minute))
	assert.False(t, m.State().Warning.Active)

	m.Evaluate(base.Add(4 * time.Minute))
	state := m.State()
	require.True(t, state.Warning.Active)
	assert.Equal(t, base.Add(5*time.Minute), *state.Warning.Deadline)

	// Further samples do not re-fire the warning.
	m.Evaluate(base.Add(4*time.Minute + 30*time.Second))

	m.RecordActivity(base.Add(4*time.Minute + 45*time.Second))
	assert.False(t, m.State().Warning.Active)

	// The clock restarted from the activity.
	m.Evaluate(base.Add(9 * time.Minute))
	assert.False(t, m.State().IsIdle)

	assert.Equal(t, []idle.EventType{
		idle.EventMonitoringStarted,
		idle.EventWarningStarted,
		idle.EventWarningCancelled,
		idle.EventWarningStarted,
	}, rec.types())
}

func TestManager_WarningDisabled(t *testing.T) {
	settings := testSettings()
	settings.ShowIdleWarning = false
	m, _, rec := newTestManager(t, settings)

	m.Evaluate(base.Add(4*time.Minute + 30*time.Second))

	assert.False(t, m.State().Warning.Active)
	assert.Equal(t, []idle.EventType{idle.EventMonitoringStarted}, rec.types())
}

func TestManager_ActivityEndsIdleWithAutoResume(t *testing.T) {
	m, _, rec := newTestManager(t, testSettings())

	m.Evaluate(base.Add(6 * time.Minute))
	require.True(t, m.State().IsIdle)

	m.RecordActivity(base.Add(10 * time.Minute))

	state := m.State()
	assert.False(t, state.IsIdle)
	assert.Equal(t, 10*time.Minute, state.TotalIdleTime)

	ended := rec.last()
	require.Equal(t, idle.EventIdleEnded, ended.Type)
	require.NotNil(t, ended.Session)
	require.NotNil(t, ended.Session.EndTime)
	assert.Equal(t, base, ended.Session.StartTime)
	assert.Equal(t, base.Add(10*time.Minute), *ended.Session.EndTime)
}

func TestManager_ActivityWithoutAutoResumeKeepsIdle(t *testing.T) {
	settings := testSettings()
	settings.AutoResumeOnActivity = false
	m, clk, _ := newTestManager(t, settings)

	m.Evaluate(base.Add(6 * time.Minute))
	m.RecordActivity(base.Add(7 * time.Minute))
	assert.True(t, m.State().IsIdle)

	clk.Set(base.Add(8 * time.Minute))
	require.NoError(t, m.ManualEndIdle())
	assert.Equal(t, 8*time.Minute, m.State().TotalIdleTime)
}

func TestManager_ManualIdleSuppressesDetection(t *testing.T) {
	m, clk, rec := newTestManager(t, testSettings())

	clk.Set(base.Add(2 * time.Minute))
	require.NoError(t, m.ManualStartIdle("lunch errand"))
	assert.ErrorIs(t, m.ManualStartIdle("again"), idle.ErrAlreadyIdle)

	// Activity and samples do not touch a manual session.
	m.RecordActivity(base.Add(3 * time.Minute))
	m.Evaluate(base.Add(20 * time.Minute))
	state := m.State()
	require.True(t, state.IsIdle)
	assert.Equal(t, idle.ReasonManual, state.CurrentIdleSession.Reason)
	assert.Equal(t, "lunch errand", state.CurrentIdleSession.Note)

	clk.Set(base.Add(12 * time.Minute))
	require.NoError(t, m.ManualEndIdle())
	assert.Equal(t, 10*time.Minute, m.State().TotalIdleTime)
	assert.ErrorIs(t, m.ManualEndIdle(), idle.ErrNotIdle)

	// Manual end resets the activity clock.
	m.Evaluate(base.Add(15 * time.Minute))
	assert.False(t, m.State().IsIdle)
	assert.Equal(t, idle.EventIdleEnded, rec.last().Type)
}

func TestManager_TotalIdleIsMonotonicUntilReset(t *testing.T) {
	m, clk, _ := newTestManager(t, testSettings())

	var totals []time.Duration
	activity := base
	for i := 0; i < 3; i++ {
		m.Evaluate(activity.Add(6 * time.Minute))
		activity = activity.Add(8 * time.Minute)
		m.RecordActivity(activity)
		totals = append(totals, m.State().TotalIdleTime)
	}
	for i := 1; i < len(totals); i++ {
		assert.GreaterOrEqual(t, totals[i], totals[i-1])
	}
	assert.Equal(t, 24*time.Minute, totals[2])

	clk.Set(activity)
	m.ResetSession()
	assert.Equal(t, time.Duration(0), m.State().TotalIdleTime)
}

func TestManager_StopClosesOpenSession(t *testing.T) {
	clk := &fakeClock{now: base}
	m := NewManager(testSettings(), clk.Now)
	rec := &recorder{}
	m.Subscribe(rec.handle)
	m.Start(context.Background())

	m.Evaluate(base.Add(6 * time.Minute))
	clk.Set(base.Add(7 * time.Minute))
	m.Stop()

	state := m.State()
	assert.False(t, state.IsMonitoring)
	assert.False(t, state.IsIdle)
	assert.Equal(t, 7*time.Minute, state.TotalIdleTime)
	assert.Equal(t, []idle.EventType{
		idle.EventMonitoringStarted,
		idle.EventIdleStarted,
		idle.EventIdleEnded,
		idle.EventMonitoringStopped,
	}, rec.types())

	// Not monitoring: samples are ignored.
	m.Evaluate(base.Add(30 * time.Minute))
	assert.False(t, m.State().IsIdle)
}

func TestManager_TickerDrivesEvaluation(t *testing.T) {
	settings := testSettings()
	settings.SampleInterval = 5 * time.Millisecond
	clk := &fakeClock{now: base}
	m := NewManager(settings, clk.Now)

	started := make(chan struct{}, 1)
	m.Subscribe(func(e idle.Event) {
		if e.Type == idle.EventIdleStarted {
			select {
			case started <- struct{}{}:
			default:
			}
		}
	})
	m.Start(context.Background())
	defer m.Stop()

	clk.Set(base.Add(10 * time.Minute))

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("idle was not detected by the sampling loop")
	}
}

func TestManager_UpdateSettings(t *testing.T) {
	m, _, rec := newTestManager(t, testSettings())

	bad := testSettings()
	bad.IdleThresholdMinutes = 0
	assert.Error(t, m.UpdateSettings(bad))

	updated := testSettings()
	updated.IdleThresholdMinutes = 10
	require.NoError(t, m.UpdateSettings(updated))
	assert.Equal(t, 10, m.Settings().IdleThresholdMinutes)
	assert.Equal(t, idle.EventSettingsUpdated, rec.last().Type)

	m.Evaluate(base.Add(6 * time.Minute))
	assert.False(t, m.State().IsIdle)
}

func TestManager_UnsubscribeStopsDelivery(t *testing.T) {
	clk := &fakeClock{now: base}
	m := NewManager(testSettings(), clk.Now)
	rec := &recorder{}
	unsubscribe := m.Subscribe(rec.handle)
	unsubscribe()

	m.Start(context.Background())
	defer m.Stop()

	assert.Empty(t, rec.types())
}
