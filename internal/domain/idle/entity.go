package idle

import (
	"time"
)

type Reason string

const (
	ReasonInactivity Reason = "inactivity"
	ReasonManual     Reason = "manual"
)

// Session is one idle period. EndTime is nil while the session is open.
type Session struct {
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Reason    Reason     `json:"reason"`
	Note      string     `json:"note,omitempty"`
}

// Duration is the closed length of the session, or the length up to now when open.
func (s Session) Duration(now time.Time) time.Duration {
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	if end.Before(s.StartTime) {
		return 0
	}
	return end.Sub(s.StartTime)
}

type Settings struct {
	IdleThresholdMinutes int           `json:"idle_threshold_minutes"`
	ShowIdleWarning      bool          `json:"show_idle_warning"`
	WarningTimeMinutes   int           `json:"warning_time_minutes"`
	AutoResumeOnActivity bool          `json:"auto_resume_on_activity"`
	PauseTimerOnIdle     bool          `json:"pause_timer_on_idle"`
	SampleInterval       time.Duration `json:"sample_interval"`
}

func DefaultSettings() Settings {
	return Settings{
		IdleThresholdMinutes: 5,
		ShowIdleWarning:      true,
		WarningTimeMinutes:   1,
		AutoResumeOnActivity: true,
		PauseTimerOnIdle:     true,
		SampleInterval:       15 * time.Second,
	}
}

func (s Settings) Threshold() time.Duration {
	return time.Duration(s.IdleThresholdMinutes) * time.Minute
}

func (s Settings) WarningLead() time.Duration {
	return time.Duration(s.WarningTimeMinutes) * time.Minute
}

// Warning is the countdown shown before automatic idle begins.
type Warning struct {
	Active   bool       `json:"active"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

type State struct {
	IsIdle             bool          `json:"is_idle"`
	TotalIdleTime      time.Duration `json:"total_idle_time"`
	CurrentIdleSession *Session      `json:"current_idle_session,omitempty"`
	IsMonitoring       bool          `json:"is_monitoring"`
	LastActivity       time.Time     `json:"last_activity"`
	Warning            Warning       `json:"warning"`
	Settings           Settings      `json:"settings"`
}

type EventType string

const (
	EventMonitoringStarted EventType = "monitoring_started"
	EventMonitoringStopped EventType = "monitoring_stopped"
	EventWarningStarted    EventType = "warning_started"
	EventWarningCancelled  EventType = "warning_cancelled"
	EventIdleStarted       EventType = "idle_started"
	EventIdleEnded         EventType = "idle_ended"
	EventSessionReset      EventType = "session_reset"
	EventSettingsUpdated   EventType = "settings_updated"
)

// Event is published once per state transition. Session is the session the
// transition concerns; for idle_ended it is the closed session.
type Event struct {
	Type    EventType `json:"type"`
	At      time.Time `json:"at"`
	Session *Session  `json:"session,omitempty"`
	State   State     `json:"state"`
}
