package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Response is the envelope shared by the api and the agent's local surface.
type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
	Meta    *Meta        `json:"meta,omitempty"`
}

type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

type Meta struct {
	Page       int   `json:"page,omitempty"`
	Limit      int   `json:"limit,omitempty"`
	TotalItems int64 `json:"total_items,omitempty"`
	TotalPages int   `json:"total_pages,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Headers are already out; all that is left is to record it
		slog.Error("Failed to encode response", "status", statusCode, "error", err)
	}
}

func ok(w http.ResponseWriter, statusCode int, message string, data any, meta *Meta) {
	writeJSON(w, statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    meta,
	})
}

// Success responses
func Success(w http.ResponseWriter, data any) {
	ok(w, http.StatusOK, "", data, nil)
}

func SuccessWithMessage(w http.ResponseWriter, message string, data any) {
	ok(w, http.StatusOK, message, data, nil)
}

func SuccessWithMeta(w http.ResponseWriter, data any, meta *Meta) {
	ok(w, http.StatusOK, "", data, meta)
}

func Created(w http.ResponseWriter, message string, data any) {
	ok(w, http.StatusCreated, message, data, nil)
}

// Accepted reports an action the agent stored for later delivery.
func Accepted(w http.ResponseWriter, message string, data any) {
	ok(w, http.StatusAccepted, message, data, nil)
}

// Error responses
func Error(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	writeJSON(w, statusCode, Response{
		Success: false,
		Error: &ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func BadRequest(w http.ResponseWriter, message string, details map[string]string) {
	Error(w, http.StatusBadRequest, "BAD_REQUEST", message, details)
}

func ValidationError(w http.ResponseWriter, details map[string]string) {
	Error(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", details)
}

func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

func Forbidden(w http.ResponseWriter, message string) {
	Error(w, http.StatusForbidden, "FORBIDDEN", message, nil)
}

func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, "NOT_FOUND", message, nil)
}

func InternalServerError(w http.ResponseWriter, message string) {
	Error(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", message, nil)
}

func ServiceUnavailable(w http.ResponseWriter, message string) {
	Error(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", message, nil)
}
