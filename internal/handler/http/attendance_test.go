package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/apiclient"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handlerTestSecret = "test-secret-key-for-jwt"

// fakeAttendanceService records what the handlers pass through.
type fakeAttendanceService struct {
	attendance.AttendanceService

	mu       sync.Mutex
	punchIn  []attendance.PunchInRequest
	filters  []attendance.RecordFilter
	settings []attendance.UpdateSettingsRequest
	record   attendance.RecordResponse
	err      error
}

func (f *fakeAttendanceService) PunchIn(ctx context.Context, req attendance.PunchInRequest) (attendance.RecordResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.punchIn = append(f.punchIn, req)
	if f.err != nil {
		return attendance.RecordResponse{}, f.err
	}
	return attendance.RecordResponse{ID: "rec-1", EmployeeID: req.EmployeeID, Status: attendance.StatusPresent}, nil
}

func (f *fakeAttendanceService) ListRecords(ctx context.Context, filter attendance.RecordFilter) (attendance.ListRecordsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	return attendance.ListRecordsResponse{Page: filter.Page, Limit: filter.Limit, TotalCount: 0, Records: []attendance.RecordResponse{}}, nil
}

func (f *fakeAttendanceService) GetRecord(ctx context.Context, id string) (attendance.RecordResponse, error) {
	return f.record, f.err
}

func (f *fakeAttendanceService) UpdateSettings(ctx context.Context, req attendance.UpdateSettingsRequest) (attendance.SettingsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = append(f.settings, req)
	return attendance.SettingsResponse{EmployeeID: req.EmployeeID}, nil
}

type testAPI struct {
	router   http.Handler
	svc      *fakeAttendanceService
	employee string
	admin    string
}

func newTestAPI(t *testing.T, ping func(ctx context.Context) error) *testAPI {
	t.Helper()
	jwtSvc := jwt.NewJWTService(handlerTestSecret, time.Hour)
	svc := &fakeAttendanceService{}

	employee, _, err := jwtSvc.GenerateAccessToken("emp-1", jwt.RoleEmployee)
	require.NoError(t, err)
	admin, _, err := jwtSvc.GenerateAccessToken("admin-1", jwt.RoleAdmin)
	require.NoError(t, err)

	router := NewRouter(jwtSvc, NewAttendanceHandler(svc), ping, RouterOptions{App: "attendance-api", Env: "test"})
	return &testAPI{router: router, svc: svc, employee: employee, admin: admin}
}

func (a *testAPI) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestAttendanceHandler_PunchIn_UsesTokenEmployee(t *testing.T) {
	// Setup
	api := newTestAPI(t, nil)

	// Act
	rec := api.do(http.MethodPost, "/api/v1/attendance/punch-in", api.employee, map[string]interface{}{
		"employee_id": "someone-else",
		"notes":       "early start",
	})

	// Assert
	require.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	require.Len(t, api.svc.punchIn, 1)
	assert.Equal(t, "emp-1", api.svc.punchIn[0].EmployeeID)
	assert.Equal(t, "early start", *api.svc.punchIn[0].Notes)
}

func TestAttendanceHandler_PunchIn_EmptyBody(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(http.MethodPost, "/api/v1/attendance/punch-in", api.employee, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAttendanceHandler_RequiresToken(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(http.MethodPost, "/api/v1/attendance/punch-in", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodPost, "/api/v1/attendance/punch-in", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAttendanceHandler_StateErrorCodes(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{attendance.ErrAlreadyPunchedIn, http.StatusConflict, "ALREADY_PUNCHED_IN"},
		{attendance.ErrOnLeave, http.StatusConflict, "ON_LEAVE"},
		{attendance.ErrRequestInFlight, http.StatusConflict, "REQUEST_IN_FLIGHT"},
		{attendance.ErrFutureTimestamp, http.StatusBadRequest, "FUTURE_TIMESTAMP"},
		{errors.New("db down"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			api := newTestAPI(t, nil)
			api.svc.err = tt.err

			rec := api.do(http.MethodPost, "/api/v1/attendance/punch-in", api.employee, nil)

			assert.Equal(t, tt.status, rec.Code)
			env := decodeEnvelope(t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestAttendanceHandler_Summary_ValidationError(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(http.MethodGet, "/api/v1/attendance/summary?start_date=2026-03-10&end_date=2026-03-01", api.employee, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Details, "end_date")
}

func TestAttendanceHandler_List_ScopesEmployees(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(http.MethodGet, "/api/v1/attendance?employee_id=emp-2&limit=5", api.employee, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(http.MethodGet, "/api/v1/attendance?employee_id=emp-2", api.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, api.svc.filters, 2)
	assert.Equal(t, "emp-1", *api.svc.filters[0].EmployeeID)
	assert.Equal(t, 5, api.svc.filters[0].Limit)
	assert.Equal(t, "emp-2", *api.svc.filters[1].EmployeeID)
}

func TestAttendanceHandler_Get_HidesOtherEmployees(t *testing.T) {
	api := newTestAPI(t, nil)
	api.svc.record = attendance.RecordResponse{ID: "rec-9", EmployeeID: "emp-2"}

	rec := api.do(http.MethodGet, "/api/v1/attendance/rec-9", api.employee, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/attendance/rec-9", api.admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAttendanceHandler_UpdateSettings_AdminOnly(t *testing.T) {
	api := newTestAPI(t, nil)
	body := map[string]interface{}{"work_start_time": "08:30"}

	rec := api.do(http.MethodPut, "/api/v1/attendance/settings?employee_id=emp-1", api.employee, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodPut, "/api/v1/attendance/settings?employee_id=emp-1", api.admin, body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, api.svc.settings, 1)
	assert.Equal(t, "emp-1", api.svc.settings[0].EmployeeID)

	rec = api.do(http.MethodPut, "/api/v1/attendance/settings?employee_id=emp-1", api.admin, map[string]interface{}{"work_start_time": "8am"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHealth(t *testing.T) {
	healthy := newTestAPI(t, func(ctx context.Context) error { return nil })
	rec := healthy.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	down := newTestAPI(t, func(ctx context.Context) error { return errors.New("no db") })
	rec = down.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAttendanceHandler_ClientRoundTrip(t *testing.T) {
	// Setup
	api := newTestAPI(t, nil)
	server := httptest.NewServer(api.router)
	defer server.Close()

	client := apiclient.New(apiclient.Config{BaseURL: server.URL, Token: api.employee})

	// Act
	record, err := client.PunchIn(context.Background(), attendance.PunchInRequest{EmployeeID: "emp-1"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "rec-1", record.ID)

	api.svc.err = attendance.ErrAlreadyPunchedIn
	_, err = client.PunchIn(context.Background(), attendance.PunchInRequest{EmployeeID: "emp-1"})
	assert.ErrorIs(t, err, attendance.ErrAlreadyPunchedIn)
	assert.True(t, strings.Contains(err.Error(), "already punched in"))
}
