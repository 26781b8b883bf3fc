package attendance

import "errors"

// Attendance domain errors
var (
	// State violations
	ErrAlreadyPunchedIn = errors.New("you have already punched in today")
	ErrNotPunchedIn     = errors.New("you have not punched in yet")
	ErrAlreadyOnBreak   = errors.New("you are already on a break")
	ErrNotOnBreak       = errors.New("you are not on a break")
	ErrOnBreak          = errors.New("action not allowed while on a break")
	ErrOnLeave          = errors.New("you are on leave today")

	// Time validation
	ErrInvalidPunchTime  = errors.New("punch-out time must not be before punch-in time")
	ErrFutureTimestamp   = errors.New("timestamp is too far in the future")
	ErrInvalidBreakTime  = errors.New("break must lie inside the open work session")
	ErrInvalidIdlePeriod = errors.New("idle period must lie inside the open work session")

	// Concurrency
	ErrRequestInFlight = errors.New("another attendance request for this employee is in progress")

	// General errors
	ErrRecordNotFound   = errors.New("attendance record not found")
	ErrSettingsNotFound = errors.New("attendance settings not found")
)

// errorCodes names each sentinel on the wire so the agent can map an api
// error envelope back to the same error.
var errorCodes = map[error]string{
	ErrAlreadyPunchedIn:  "ALREADY_PUNCHED_IN",
	ErrNotPunchedIn:      "NOT_PUNCHED_IN",
	ErrAlreadyOnBreak:    "ALREADY_ON_BREAK",
	ErrNotOnBreak:        "NOT_ON_BREAK",
	ErrOnBreak:           "ON_BREAK",
	ErrOnLeave:           "ON_LEAVE",
	ErrInvalidPunchTime:  "INVALID_PUNCH_TIME",
	ErrFutureTimestamp:   "FUTURE_TIMESTAMP",
	ErrInvalidBreakTime:  "INVALID_BREAK_TIME",
	ErrInvalidIdlePeriod: "INVALID_IDLE_PERIOD",
	ErrRequestInFlight:   "REQUEST_IN_FLIGHT",
	ErrRecordNotFound:    "RECORD_NOT_FOUND",
	ErrSettingsNotFound:  "SETTINGS_NOT_FOUND",
}

// CodeOf returns the wire code of the attendance sentinel err wraps.
func CodeOf(err error) (string, bool) {
	for sentinel, code := range errorCodes {
		if errors.Is(err, sentinel) {
			return code, true
		}
	}
	return "", false
}

// ErrorForCode is the inverse of CodeOf.
func ErrorForCode(code string) (error, bool) {
	for sentinel, c := range errorCodes {
		if c == code {
			return sentinel, true
		}
	}
	return nil, false
}
