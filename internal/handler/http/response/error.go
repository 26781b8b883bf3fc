package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-tracker/internal/domain/idle"
	"github.com/cmlabs-hris/attendance-tracker/internal/domain/offline"
	"github.com/cmlabs-hris/attendance-tracker/internal/domain/tracker"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	// Attendance domain errors carry a stable code the agent maps back
	if code, ok := attendance.CodeOf(err); ok {
		Error(w, attendanceStatus(err), code, err.Error(), nil)
		return
	}

	switch {
	// Auth errors
	case errors.Is(err, jwt.ErrInvalidToken), errors.Is(err, jwt.ErrTokenRevoked):
		Unauthorized(w, err.Error())
	case errors.Is(err, jwt.ErrAdminRoleRequired):
		Forbidden(w, err.Error())

	// Idle errors
	case errors.Is(err, idle.ErrAlreadyIdle):
		Error(w, http.StatusConflict, "ALREADY_IDLE", err.Error(), nil)
	case errors.Is(err, idle.ErrNotIdle):
		Error(w, http.StatusConflict, "NOT_IDLE", err.Error(), nil)

	// Offline queue errors
	case errors.Is(err, offline.ErrSyncInProgress):
		Error(w, http.StatusConflict, "SYNC_IN_PROGRESS", err.Error(), nil)
	case errors.Is(err, offline.ErrItemNotFound):
		NotFound(w, err.Error())
	case errors.Is(err, offline.ErrInvalidAction):
		BadRequest(w, err.Error(), nil)

	// Agent errors
	case errors.Is(err, tracker.ErrUnavailable):
		ServiceUnavailable(w, err.Error())
	case errors.Is(err, tracker.ErrEmployeeNotConfigured):
		InternalServerError(w, err.Error())

	// Default
	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}

func attendanceStatus(err error) int {
	switch {
	case errors.Is(err, attendance.ErrRecordNotFound), errors.Is(err, attendance.ErrSettingsNotFound):
		return http.StatusNotFound
	case errors.Is(err, attendance.ErrInvalidPunchTime),
		errors.Is(err, attendance.ErrFutureTimestamp),
		errors.Is(err, attendance.ErrInvalidBreakTime),
		errors.Is(err, attendance.ErrInvalidIdlePeriod):
		return http.StatusBadRequest
	default:
		return http.StatusConflict
	}
}
