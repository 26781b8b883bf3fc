package attendance

import (
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/validator"
)

// ========================================
// PUNCH DTOs
// ========================================

type PunchInRequest struct {
	EmployeeID string     `json:"employee_id"`
	Location   *Location  `json:"location,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
	IsManual   bool       `json:"is_manual"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"` // set by the agent when replaying offline actions
}

func (r *PunchInRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs.Add("employee_id", "employee_id is required")
	}
	validateLocation(&errs, "location", r.Location)
	validateNotes(&errs, r.Notes)

	return errs.Err()
}

type PunchOutRequest struct {
	EmployeeID string     `json:"employee_id"`
	Location   *Location  `json:"location,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
}

func (r *PunchOutRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs.Add("employee_id", "employee_id is required")
	}
	validateLocation(&errs, "location", r.Location)
	validateNotes(&errs, r.Notes)

	return errs.Err()
}

type BreakRequest struct {
	EmployeeID string     `json:"employee_id"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
}

func (r *BreakRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs.Add("employee_id", "employee_id is required")
	}

	return errs.Err()
}

// IdleRequest reports one closed idle session so its duration is excluded
// from worked time.
type IdleRequest struct {
	EmployeeID string    `json:"employee_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Reason     string    `json:"reason"`
}

func (r *IdleRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs.Add("employee_id", "employee_id is required")
	}
	if r.StartTime.IsZero() {
		errs.Add("start_time", "start_time is required")
	}
	if r.EndTime.IsZero() {
		errs.Add("end_time", "end_time is required")
	}
	if !r.StartTime.IsZero() && !r.EndTime.IsZero() && r.EndTime.Before(r.StartTime) {
		errs.Add("end_time", "end_time must not be before start_time")
	}
	if !validator.IsInSlice(r.Reason, []string{"inactivity", "manual"}) {
		errs.Add("reason", "reason must be one of: inactivity, manual")
	}

	return errs.Err()
}

func validateLocation(errs *validator.ValidationErrors, field string, loc *Location) {
	if loc == nil {
		return
	}
	if !validator.IsValidCoordinate(loc.Latitude, loc.Longitude) {
		errs.Add(field, "latitude must be between -90 and 90 and longitude between -180 and 180")
	}
	if loc.Accuracy != nil && *loc.Accuracy < 0 {
		errs.Add(field+".accuracy", "accuracy must not be negative")
	}
}

func validateNotes(errs *validator.ValidationErrors, notes *string) {
	if notes != nil && len(*notes) > 500 {
		errs.Add("notes", "notes must not exceed 500 characters")
	}
}

// ========================================
// RESPONSE DTOs
// ========================================

type RecordResponse struct {
	ID                 string       `json:"id"`
	EmployeeID         string       `json:"employee_id"`
	Date               string       `json:"date"`
	DateDisplay        string       `json:"date_display"`
	PunchInTime        *time.Time   `json:"punch_in_time,omitempty"`
	PunchOutTime       *time.Time   `json:"punch_out_time,omitempty"`
	PunchInDisplay     string       `json:"punch_in_display"`
	PunchOutDisplay    string       `json:"punch_out_display"`
	TotalWorkingHours  float64      `json:"total_working_hours"`
	WorkingTimeDisplay string       `json:"working_time_display"`
	TotalBreakMinutes  int          `json:"total_break_minutes"`
	BreakTimeDisplay   string       `json:"break_time_display"`
	TotalIdleMinutes   int          `json:"total_idle_minutes"`
	Status             Status       `json:"status"`
	StatusDisplay      Presentation `json:"status_display"`
	LateMinutes        *int         `json:"late_minutes,omitempty"`
	EarlyLeaveMinutes  *int         `json:"early_leave_minutes,omitempty"`
	OvertimeHours      *float64     `json:"overtime_hours,omitempty"`
	PunchInLocation    *Location    `json:"punch_in_location,omitempty"`
	PunchOutLocation   *Location    `json:"punch_out_location,omitempty"`
	Notes              *string      `json:"notes,omitempty"`
	IsManual           bool         `json:"is_manual"`
	CreatedAt          string       `json:"created_at"`
	UpdatedAt          string       `json:"updated_at"`
}

type BreakResponse struct {
	ID                string     `json:"id"`
	RecordID          string     `json:"record_id"`
	StartTime         time.Time  `json:"start_time"`
	EndTime           *time.Time `json:"end_time,omitempty"`
	DurationMinutes   int        `json:"duration_minutes"`
	TotalBreakMinutes int        `json:"total_break_minutes"`
}

type IdleResponse struct {
	RecordID         string `json:"record_id"`
	DurationMinutes  int    `json:"duration_minutes"`
	TotalIdleMinutes int    `json:"total_idle_minutes"`
	Duplicate        bool   `json:"duplicate"`
}

type StatusResponse struct {
	EmployeeID    string           `json:"employee_id"`
	Date          string           `json:"date"`
	State         State            `json:"state"`
	Record        *RecordResponse  `json:"record,omitempty"`
	OpenBreak     *BreakResponse   `json:"open_break,omitempty"`
	Settings      SettingsResponse `json:"settings"`
	IsWorkingDay  bool             `json:"is_working_day"`
	CanPunchIn    bool             `json:"can_punch_in"`
	CanPunchOut   bool             `json:"can_punch_out"`
	CanStartBreak bool             `json:"can_start_break"`
	CanEndBreak   bool             `json:"can_end_break"`
	Message       string           `json:"message"`
}

type ListRecordsResponse struct {
	TotalCount int64            `json:"total_count"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	TotalPages int              `json:"total_pages"`
	Showing    string           `json:"showing"`
	Records    []RecordResponse `json:"records"`
}

// ========================================
// FILTER DTOs
// ========================================

type RecordFilter struct {
	EmployeeID *string `json:"employee_id,omitempty"`
	StartDate  *string `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate    *string `json:"end_date,omitempty"`   // YYYY-MM-DD
	Status     *string `json:"status,omitempty"`

	// Pagination
	Page  int `json:"page"`
	Limit int `json:"limit"`

	// Sorting
	SortBy    string `json:"sort_by"`    // date, punch_in_time, punch_out_time, status
	SortOrder string `json:"sort_order"` // asc, desc
}

func (f *RecordFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.Page < 0 {
		errs.Add("page", "page must be a positive number")
	}
	if f.Page == 0 {
		f.Page = 1
	}

	if f.Limit < 0 {
		errs.Add("limit", "limit must be a positive number")
	}
	if f.Limit == 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		errs.Add("limit", "limit must not exceed 100")
	}

	if f.Status != nil && !Status(*f.Status).IsValid() {
		errs.Add("status", "status must be one of: present, late, absent, half_day, on_leave")
	}

	if f.StartDate != nil && *f.StartDate != "" {
		if _, valid := validator.IsValidDate(*f.StartDate); !valid {
			errs.Add("start_date", "start_date must be in YYYY-MM-DD format")
		}
	}
	if f.EndDate != nil && *f.EndDate != "" {
		if _, valid := validator.IsValidDate(*f.EndDate); !valid {
			errs.Add("end_date", "end_date must be in YYYY-MM-DD format")
		}
	}

	if f.SortBy != "" {
		validSortFields := []string{"date", "punch_in_time", "punch_out_time", "status"}
		if !validator.IsInSlice(f.SortBy, validSortFields) {
			errs.Add("sort_by", "sort_by must be one of: date, punch_in_time, punch_out_time, status")
		}
	} else {
		f.SortBy = "date"
	}

	if f.SortOrder != "" {
		if !validator.IsInSlice(strings.ToLower(f.SortOrder), []string{"asc", "desc"}) {
			errs.Add("sort_order", "sort_order must be one of: asc, desc")
		}
	} else {
		f.SortOrder = "desc"
	}

	return errs.Err()
}

// ========================================
// SUMMARY DTOs
// ========================================

type SummaryRequest struct {
	EmployeeID string `json:"employee_id"`
	StartDate  string `json:"start_date"` // YYYY-MM-DD
	EndDate    string `json:"end_date"`   // YYYY-MM-DD
}

func (r *SummaryRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs.Add("employee_id", "employee_id is required")
	}

	start, startOK := validator.IsValidDate(r.StartDate)
	if !startOK {
		errs.Add("start_date", "start_date must be in YYYY-MM-DD format")
	}
	end, endOK := validator.IsValidDate(r.EndDate)
	if !endOK {
		errs.Add("end_date", "end_date must be in YYYY-MM-DD format")
	}
	if startOK && endOK && end.Before(start) {
		errs.Add("end_date", "end_date must not be before start_date")
	}

	return errs.Err()
}

type SummaryResponse struct {
	EmployeeID           string  `json:"employee_id"`
	StartDate            string  `json:"start_date"`
	EndDate              string  `json:"end_date"`
	TotalWorkingDays     int     `json:"total_working_days"`
	ScheduledWorkingDays int     `json:"scheduled_working_days"`
	PresentDays          int     `json:"present_days"`
	AbsentDays           int     `json:"absent_days"`
	LateDays             int     `json:"late_days"`
	HalfDays             int     `json:"half_days"`
	OnLeaveDays          int     `json:"on_leave_days"`
	TotalWorkingHours    float64 `json:"total_working_hours"`
	TotalOvertimeHours   float64 `json:"total_overtime_hours"`
	AverageWorkingHours  float64 `json:"average_working_hours"`
	PunctualityScore     int     `json:"punctuality_score"`
	AttendanceRate       float64 `json:"attendance_rate"`
	WorkingTimeDisplay   string  `json:"working_time_display"`
	OvertimeDisplay      string  `json:"overtime_display"`
	AverageDisplay       string  `json:"average_display"`
}

// ========================================
// SETTINGS DTOs
// ========================================

type SettingsResponse struct {
	EmployeeID          string `json:"employee_id"`
	WorkStartTime       string `json:"work_start_time"`
	WorkEndTime         string `json:"work_end_time"`
	BreakDuration       int    `json:"break_duration"`
	LateThreshold       int    `json:"late_threshold"`
	EarlyLeaveThreshold int    `json:"early_leave_threshold"`
	OvertimeThreshold   int    `json:"overtime_threshold"`
	WorkingDays         []int  `json:"working_days"`
	Timezone            string `json:"timezone"`
	RequireLocation     bool   `json:"require_location"`
	AllowRemoteWork     bool   `json:"allow_remote_work"`
	AutoPunchOut        bool   `json:"auto_punch_out"`
	IsDefault           bool   `json:"is_default"`
}

func NewSettingsResponse(s Settings, isDefault bool) SettingsResponse {
	return SettingsResponse{
		EmployeeID:          s.EmployeeID,
		WorkStartTime:       s.WorkStartTime,
		WorkEndTime:         s.WorkEndTime,
		BreakDuration:       s.BreakDuration,
		LateThreshold:       s.LateThreshold,
		EarlyLeaveThreshold: s.EarlyLeaveThreshold,
		OvertimeThreshold:   s.OvertimeThreshold,
		WorkingDays:         s.WorkingDays,
		Timezone:            s.Timezone,
		RequireLocation:     s.RequireLocation,
		AllowRemoteWork:     s.AllowRemoteWork,
		AutoPunchOut:        s.AutoPunchOut,
		IsDefault:           isDefault,
	}
}

// UpdateSettingsRequest is a partial update; nil fields keep their value.
type UpdateSettingsRequest struct {
	EmployeeID          string  `json:"employee_id" validate:"required"`
	WorkStartTime       *string `json:"work_start_time,omitempty" validate:"omitempty,hhmm"`
	WorkEndTime         *string `json:"work_end_time,omitempty" validate:"omitempty,hhmm"`
	BreakDuration       *int    `json:"break_duration,omitempty" validate:"omitempty,gte=0,lte=480"`
	LateThreshold       *int    `json:"late_threshold,omitempty" validate:"omitempty,gte=0,lte=240"`
	EarlyLeaveThreshold *int    `json:"early_leave_threshold,omitempty" validate:"omitempty,gte=0,lte=240"`
	OvertimeThreshold   *int    `json:"overtime_threshold,omitempty" validate:"omitempty,gte=0,lte=1440"`
	WorkingDays         []int   `json:"working_days,omitempty" validate:"omitempty,unique,dive,gte=0,lte=6"`
	Timezone            *string `json:"timezone,omitempty" validate:"omitempty,tzname"`
	RequireLocation     *bool   `json:"require_location,omitempty"`
	AllowRemoteWork     *bool   `json:"allow_remote_work,omitempty"`
	AutoPunchOut        *bool   `json:"auto_punch_out,omitempty"`
}

func (r *UpdateSettingsRequest) Validate() error {
	return validator.ValidateStruct(r)
}

// Apply merges the request into s.
func (r *UpdateSettingsRequest) Apply(s Settings) Settings {
	if r.WorkStartTime != nil {
		s.WorkStartTime = *r.WorkStartTime
	}
	if r.WorkEndTime != nil {
		s.WorkEndTime = *r.WorkEndTime
	}
	if r.BreakDuration != nil {
		s.BreakDuration = *r.BreakDuration
	}
	if r.LateThreshold != nil {
		s.LateThreshold = *r.LateThreshold
	}
	if r.EarlyLeaveThreshold != nil {
		s.EarlyLeaveThreshold = *r.EarlyLeaveThreshold
	}
	if r.OvertimeThreshold != nil {
		s.OvertimeThreshold = *r.OvertimeThreshold
	}
	if r.WorkingDays != nil {
		s.WorkingDays = r.WorkingDays
	}
	if r.Timezone != nil {
		s.Timezone = *r.Timezone
	}
	if r.RequireLocation != nil {
		s.RequireLocation = *r.RequireLocation
	}
	if r.AllowRemoteWork != nil {
		s.AllowRemoteWork = *r.AllowRemoteWork
	}
	if r.AutoPunchOut != nil {
		s.AutoPunchOut = *r.AutoPunchOut
	}
	return s
}
