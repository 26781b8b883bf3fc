package attendance

import (
	"time"
)

type Status string

const (
	StatusPresent Status = "present"
	StatusLate    Status = "late"
	StatusAbsent  Status = "absent"
	StatusHalfDay Status = "half_day"
	StatusOnLeave Status = "on_leave"
)

var validStatuses = []Status{StatusPresent, StatusLate, StatusAbsent, StatusHalfDay, StatusOnLeave}

func (s Status) IsValid() bool {
	for _, v := range validStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Presentation is how a status is shown to people. Every response that
// carries a status uses Status.Presentation so the mapping lives in one place.
type Presentation struct {
	Label string `json:"label"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

func (s Status) Presentation() Presentation {
	switch s {
	case StatusPresent:
		return Presentation{Label: "Present", Color: "green", Icon: "check-circle"}
	case StatusLate:
		return Presentation{Label: "Late", Color: "yellow", Icon: "clock"}
	case StatusAbsent:
		return Presentation{Label: "Absent", Color: "red", Icon: "x-circle"}
	case StatusHalfDay:
		return Presentation{Label: "Half Day", Color: "orange", Icon: "circle-half"}
	case StatusOnLeave:
		return Presentation{Label: "On Leave", Color: "blue", Icon: "calendar"}
	default:
		return Presentation{Label: "Unknown", Color: "gray", Icon: "help-circle"}
	}
}

// State is the per-employee tracking state for the current work session.
type State string

const (
	StateNotStarted State = "not_started"
	StatePunchedIn  State = "punched_in"
	StateOnBreak    State = "on_break"
	StatePunchedOut State = "punched_out"
)

// DeriveState computes the state from the open session (if any), its open
// break, and today's record.
func DeriveState(open *Record, openBreak *Break, today *Record) State {
	if open != nil {
		if openBreak != nil {
			return StateOnBreak
		}
		return StatePunchedIn
	}
	if today != nil && today.PunchOutTime != nil {
		return StatePunchedOut
	}
	return StateNotStarted
}

type Location struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

// Record is one employee's attendance for one calendar day.
type Record struct {
	ID                string
	EmployeeID        string
	Date              time.Time
	PunchInTime       *time.Time
	PunchOutTime      *time.Time
	TotalWorkingHours float64
	TotalBreakMinutes int
	TotalIdleMinutes  int
	Status            Status
	LateMinutes       *int
	EarlyLeaveMinutes *int
	OvertimeHours     *float64
	PunchInLocation   *Location
	PunchOutLocation  *Location
	Notes             *string
	IsManual          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsOpen reports whether the record has a punch-in without a punch-out.
func (r Record) IsOpen() bool {
	return r.PunchInTime != nil && r.PunchOutTime == nil
}

// Break is a break session nested inside a record's open interval.
type Break struct {
	ID        string
	RecordID  string
	StartTime time.Time
	EndTime   *time.Time
	CreatedAt time.Time
}

// Minutes is the rounded break length, 0 while the break is open.
func (b Break) Minutes() int {
	if b.EndTime == nil {
		return 0
	}
	return roundMinutes(b.EndTime.Sub(b.StartTime))
}

// IdlePeriod is a closed idle session reported by the agent.
type IdlePeriod struct {
	ID        string
	RecordID  string
	StartTime time.Time
	EndTime   time.Time
	Reason    string
	CreatedAt time.Time
}

func (p IdlePeriod) Minutes() int {
	return roundMinutes(p.EndTime.Sub(p.StartTime))
}

func roundMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d.Round(time.Minute) / time.Minute)
}

// Settings holds the per-employee working rules. Thresholds and durations are minutes.
type Settings struct {
	EmployeeID          string
	WorkStartTime       string
	WorkEndTime         string
	BreakDuration       int
	LateThreshold       int
	EarlyLeaveThreshold int
	OvertimeThreshold   int
	WorkingDays         []int
	Timezone            string
	RequireLocation     bool
	AllowRemoteWork     bool
	AutoPunchOut        bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// DefaultSettings applies to employees without a stored settings row.
func DefaultSettings(employeeID string) Settings {
	return Settings{
		EmployeeID:          employeeID,
		WorkStartTime:       "09:00",
		WorkEndTime:         "17:00",
		BreakDuration:       60,
		LateThreshold:       10,
		EarlyLeaveThreshold: 10,
		OvertimeThreshold:   480,
		WorkingDays:         []int{1, 2, 3, 4, 5},
		Timezone:            "UTC",
		RequireLocation:     false,
		AllowRemoteWork:     true,
		AutoPunchOut:        false,
	}
}

// Location resolves the settings timezone, falling back to UTC.
func (s Settings) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Summary aggregates records over a date range.
type Summary struct {
	EmployeeID           string
	StartDate            time.Time
	EndDate              time.Time
	TotalWorkingDays     int
	ScheduledWorkingDays int
	PresentDays          int
	AbsentDays           int
	LateDays             int
	HalfDays             int
	OnLeaveDays          int
	TotalWorkingHours    float64
	TotalOvertimeHours   float64
	AverageWorkingHours  float64
	PunctualityScore     int
	AttendanceRate       float64
}
