package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-tracker/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
)

type AttendanceHandler interface {
	PunchIn(w http.ResponseWriter, r *http.Request)
	PunchOut(w http.ResponseWriter, r *http.Request)
	StartBreak(w http.ResponseWriter, r *http.Request)
	EndBreak(w http.ResponseWriter, r *http.Request)
	RecordIdle(w http.ResponseWriter, r *http.Request)
	Status(w http.ResponseWriter, r *http.Request)
	Summary(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	GetSettings(w http.ResponseWriter, r *http.Request)
	UpdateSettings(w http.ResponseWriter, r *http.Request)
}

type attendanceHandlerImpl struct {
	attendanceService attendance.AttendanceService
}

func NewAttendanceHandler(attendanceService attendance.AttendanceService) AttendanceHandler {
	return &attendanceHandlerImpl{
		attendanceService: attendanceService,
	}
}

// decodeJSON reads an optional JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// targetEmployee resolves whose data a read request is about. Admins may
// pass employee_id; everyone else gets their own.
func targetEmployee(r *http.Request, claims jwt.Claims) string {
	if claims.IsAdmin() {
		if id := r.URL.Query().Get("employee_id"); id != "" {
			return id
		}
	}
	return claims.EmployeeID
}

// PunchIn implements AttendanceHandler.
func (h *attendanceHandlerImpl) PunchIn(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req attendance.PunchInRequest
	if err := decodeJSON(r, &req); err != nil {
		slog.Error("Failed to decode punch-in request", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	req.EmployeeID = claims.EmployeeID

	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.attendanceService.PunchIn(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Punch in successful", result)
}

// PunchOut implements AttendanceHandler.
func (h *attendanceHandlerImpl) PunchOut(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req attendance.PunchOutRequest
	if err := decodeJSON(r, &req); err != nil {
		slog.Error("Failed to decode punch-out request", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	req.EmployeeID = claims.EmployeeID

	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.attendanceService.PunchOut(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Punch out successful", result)
}

// StartBreak implements AttendanceHandler.
func (h *attendanceHandlerImpl) StartBreak(w http.ResponseWriter, r *http.Request) {
	req, ok := h.breakRequest(w, r)
	if !ok {
		return
	}

	result, err := h.attendanceService.StartBreak(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Break started", result)
}

// EndBreak implements AttendanceHandler.
func (h *attendanceHandlerImpl) EndBreak(w http.ResponseWriter, r *http.Request) {
	req, ok := h.breakRequest(w, r)
	if !ok {
		return
	}

	result, err := h.attendanceService.EndBreak(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Break ended", result)
}

func (h *attendanceHandlerImpl) breakRequest(w http.ResponseWriter, r *http.Request) (attendance.BreakRequest, bool) {
	var req attendance.BreakRequest

	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return req, false
	}
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return req, false
	}
	req.EmployeeID = claims.EmployeeID

	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return req, false
	}
	return req, true
}

// RecordIdle implements AttendanceHandler.
func (h *attendanceHandlerImpl) RecordIdle(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req attendance.IdleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	req.EmployeeID = claims.EmployeeID

	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.attendanceService.RecordIdle(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Status implements AttendanceHandler.
func (h *attendanceHandlerImpl) Status(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.attendanceService.GetStatus(r.Context(), targetEmployee(r, claims))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Summary implements AttendanceHandler.
func (h *attendanceHandlerImpl) Summary(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	req := attendance.SummaryRequest{
		EmployeeID: targetEmployee(r, claims),
		StartDate:  r.URL.Query().Get("start_date"),
		EndDate:    r.URL.Query().Get("end_date"),
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.attendanceService.GetAttendanceSummary(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// List implements AttendanceHandler.
func (h *attendanceHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, err := jwt.ClaimsFromContext(ctx)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	// Parse query parameters
	filter := attendance.RecordFilter{}

	// Employees only see their own records
	if claims.IsAdmin() {
		if employeeID := r.URL.Query().Get("employee_id"); employeeID != "" {
			filter.EmployeeID = &employeeID
		}
	} else {
		filter.EmployeeID = &claims.EmployeeID
	}

	// Date range filters
	if startDate := r.URL.Query().Get("start_date"); startDate != "" {
		filter.StartDate = &startDate
	}

	if endDate := r.URL.Query().Get("end_date"); endDate != "" {
		filter.EndDate = &endDate
	}

	// Status filter
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = &status
	}

	// Pagination
	if p := r.URL.Query().Get("page"); p != "" {
		pageNum, err := strconv.Atoi(p)
		if err != nil {
			response.BadRequest(w, "page must be a number", nil)
			return
		}
		filter.Page = pageNum
	}

	if l := r.URL.Query().Get("limit"); l != "" {
		limitNum, err := strconv.Atoi(l)
		if err != nil {
			response.BadRequest(w, "limit must be a number", nil)
			return
		}
		filter.Limit = limitNum
	}

	// Sorting
	filter.SortBy = r.URL.Query().Get("sort_by")
	filter.SortOrder = r.URL.Query().Get("sort_order")

	// Validate filter
	if err := filter.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	results, err := h.attendanceService.ListRecords(ctx, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, results.Records, &response.Meta{
		Page:       results.Page,
		Limit:      results.Limit,
		TotalItems: results.TotalCount,
		TotalPages: results.TotalPages,
	})
}

// Get implements AttendanceHandler.
func (h *attendanceHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	result, err := h.attendanceService.GetRecord(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	// Another employee's record is reported as missing
	if !claims.IsAdmin() && result.EmployeeID != claims.EmployeeID {
		response.HandleError(w, attendance.ErrRecordNotFound)
		return
	}

	response.Success(w, result)
}

// GetSettings implements AttendanceHandler.
func (h *attendanceHandlerImpl) GetSettings(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.attendanceService.GetSettings(r.Context(), targetEmployee(r, claims))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// UpdateSettings implements AttendanceHandler. Admin only.
func (h *attendanceHandlerImpl) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req attendance.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	if employeeID := r.URL.Query().Get("employee_id"); employeeID != "" {
		req.EmployeeID = employeeID
	}

	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.attendanceService.UpdateSettings(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Attendance settings updated", result)
}
