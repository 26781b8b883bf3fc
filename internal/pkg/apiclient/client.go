package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-tracker/internal/domain/offline"
	"github.com/cmlabs-hris/attendance-tracker/internal/domain/tracker"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/validator"
)

const (
	pathPunchIn    = "/api/v1/attendance/punch-in"
	pathPunchOut   = "/api/v1/attendance/punch-out"
	pathBreakStart = "/api/v1/attendance/breaks/start"
	pathBreakEnd   = "/api/v1/attendance/breaks/end"
	pathIdle       = "/api/v1/attendance/idle"
	pathStatus     = "/api/v1/attendance/status"
)

var actionPaths = map[offline.ActionType]string{
	offline.ActionPunchIn:    pathPunchIn,
	offline.ActionPunchOut:   pathPunchOut,
	offline.ActionBreakStart: pathBreakStart,
	offline.ActionBreakEnd:   pathBreakEnd,
	offline.ActionIdleRecord: pathIdle,
}

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Client  *http.Client
}

// Client calls the attendance api on behalf of one employee token.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *http.Client
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		timeout: cfg.Timeout,
		http:    cfg.Client,
	}
}

// APIError is an error envelope returned by the api. It unwraps to the
// matching attendance sentinel, or to validator.ValidationErrors for
// VALIDATION_ERROR responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("attendance api error [%d] %s: %s", e.StatusCode, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	if sentinel, ok := attendance.ErrorForCode(e.Code); ok {
		return sentinel
	}
	if e.Code == "VALIDATION_ERROR" && len(e.Details) > 0 {
		var errs validator.ValidationErrors
		for field, msg := range e.Details {
			errs.Add(field, msg)
		}
		return errs
	}
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func (c *Client) PunchIn(ctx context.Context, req attendance.PunchInRequest) (attendance.RecordResponse, error) {
	var out attendance.RecordResponse
	err := c.do(ctx, http.MethodPost, pathPunchIn, req, &out)
	return out, err
}

func (c *Client) PunchOut(ctx context.Context, req attendance.PunchOutRequest) (attendance.RecordResponse, error) {
	var out attendance.RecordResponse
	err := c.do(ctx, http.MethodPost, pathPunchOut, req, &out)
	return out, err
}

func (c *Client) StartBreak(ctx context.Context, req attendance.BreakRequest) (attendance.BreakResponse, error) {
	var out attendance.BreakResponse
	err := c.do(ctx, http.MethodPost, pathBreakStart, req, &out)
	return out, err
}

func (c *Client) EndBreak(ctx context.Context, req attendance.BreakRequest) (attendance.BreakResponse, error) {
	var out attendance.BreakResponse
	err := c.do(ctx, http.MethodPost, pathBreakEnd, req, &out)
	return out, err
}

func (c *Client) RecordIdle(ctx context.Context, req attendance.IdleRequest) (attendance.IdleResponse, error) {
	var out attendance.IdleResponse
	err := c.do(ctx, http.MethodPost, pathIdle, req, &out)
	return out, err
}

func (c *Client) GetStatus(ctx context.Context) (attendance.StatusResponse, error) {
	var out attendance.StatusResponse
	err := c.do(ctx, http.MethodGet, pathStatus, nil, &out)
	return out, err
}

// Deliver replays a queued action. The payload is sent as is.
func (c *Client) Deliver(ctx context.Context, action offline.Action) error {
	path, ok := actionPaths[action.Type]
	if !ok {
		return fmt.Errorf("%w: unknown type %q", offline.ErrInvalidAction, action.Type)
	}
	return c.do(ctx, http.MethodPost, path, action.Payload, nil)
}

func (c *Client) do(parent context.Context, method, path string, body any, out any) error {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case json.RawMessage:
		reader = bytes.NewReader(b)
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if parent.Err() != nil {
			return parent.Err()
		}
		return fmt.Errorf("%w: %v", tracker.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s %s returned %d", tracker.ErrUnavailable, method, path, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty response from %s %s (%d)", method, path, resp.StatusCode)
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if !env.Success || resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: "UNKNOWN", Message: env.Message}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
