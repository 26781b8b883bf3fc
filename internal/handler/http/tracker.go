package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/idle"
	"github.com/cmlabs-hris/attendance-tracker/internal/domain/tracker"
	"github.com/cmlabs-hris/attendance-tracker/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/sse"
	"github.com/go-chi/chi/v5"
)

// TrackerHandler serves the agent's local surface for the desktop UI.
type TrackerHandler interface {
	PunchIn(w http.ResponseWriter, r *http.Request)
	PunchOut(w http.ResponseWriter, r *http.Request)
	StartBreak(w http.ResponseWriter, r *http.Request)
	EndBreak(w http.ResponseWriter, r *http.Request)

	Activity(w http.ResponseWriter, r *http.Request)
	StartIdle(w http.ResponseWriter, r *http.Request)
	EndIdle(w http.ResponseWriter, r *http.Request)

	SyncNow(w http.ResponseWriter, r *http.Request)
	RetryFailed(w http.ResponseWriter, r *http.Request)
	Queue(w http.ResponseWriter, r *http.Request)
	DiscardQueueItem(w http.ResponseWriter, r *http.Request)
	State(w http.ResponseWriter, r *http.Request)

	// SSE
	Events(w http.ResponseWriter, r *http.Request)
}

type trackerHandlerImpl struct {
	trackerService tracker.TrackerService
	hub            *sse.Hub
	employeeID     string
	keepalive      time.Duration
}

func NewTrackerHandler(trackerService tracker.TrackerService, hub *sse.Hub, employeeID string) TrackerHandler {
	return &trackerHandlerImpl{
		trackerService: trackerService,
		hub:            hub,
		employeeID:     employeeID,
		keepalive:      30 * time.Second,
	}
}

type notesRequest struct {
	Notes *string `json:"notes,omitempty"`
}

type activityRequest struct {
	At *time.Time `json:"at,omitempty"`
}

func writeOutcome(w http.ResponseWriter, message string, outcome tracker.Outcome) {
	if outcome.Queued {
		response.Accepted(w, "Saved offline, will sync when the connection returns", outcome)
		return
	}
	response.SuccessWithMessage(w, message, outcome)
}

// PunchIn implements TrackerHandler.
func (h *trackerHandlerImpl) PunchIn(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	outcome, err := h.trackerService.PunchIn(r.Context(), req.Notes)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	writeOutcome(w, "Punch in successful", outcome)
}

// PunchOut implements TrackerHandler.
func (h *trackerHandlerImpl) PunchOut(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	outcome, err := h.trackerService.PunchOut(r.Context(), req.Notes)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	writeOutcome(w, "Punch out successful", outcome)
}

// StartBreak implements TrackerHandler.
func (h *trackerHandlerImpl) StartBreak(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.trackerService.StartBreak(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	writeOutcome(w, "Break started", outcome)
}

// EndBreak implements TrackerHandler.
func (h *trackerHandlerImpl) EndBreak(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.trackerService.EndBreak(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	writeOutcome(w, "Break ended", outcome)
}

// Activity records user input seen by the desktop shell.
func (h *trackerHandlerImpl) Activity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	at := time.Now()
	if req.At != nil {
		at = *req.At
	}
	h.trackerService.RecordActivity(at)

	w.WriteHeader(http.StatusNoContent)
}

// StartIdle implements TrackerHandler.
func (h *trackerHandlerImpl) StartIdle(w http.ResponseWriter, r *http.Request) {
	var req idle.ManualStartRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	if err := h.trackerService.StartIdle(req.Note); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Idle started", h.trackerService.State(r.Context()).Idle)
}

// EndIdle implements TrackerHandler.
func (h *trackerHandlerImpl) EndIdle(w http.ResponseWriter, r *http.Request) {
	if err := h.trackerService.EndIdle(); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Idle ended", h.trackerService.State(r.Context()).Idle)
}

// SyncNow implements TrackerHandler.
func (h *trackerHandlerImpl) SyncNow(w http.ResponseWriter, r *http.Request) {
	progress, err := h.trackerService.ForceSync(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, progress)
}

// RetryFailed implements TrackerHandler.
func (h *trackerHandlerImpl) RetryFailed(w http.ResponseWriter, r *http.Request) {
	progress, err := h.trackerService.RetryFailed(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, progress)
}

// Queue implements TrackerHandler.
func (h *trackerHandlerImpl) Queue(w http.ResponseWriter, r *http.Request) {
	items, err := h.trackerService.Queue(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, items)
}

// DiscardQueueItem implements TrackerHandler.
func (h *trackerHandlerImpl) DiscardQueueItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.trackerService.DiscardQueueItem(r.Context(), id); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Queued action discarded", h.trackerService.State(r.Context()).Sync)
}

// State implements TrackerHandler.
func (h *trackerHandlerImpl) State(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.trackerService.State(r.Context()))
}

// Events streams tracker events to the UI.
func (h *trackerHandlerImpl) Events(w http.ResponseWriter, r *http.Request) {
	// Check if streaming is supported
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cleanup := h.hub.Subscribe(h.employeeID)
	defer cleanup()

	// Current state first so the UI does not wait for the next transition
	initial := sse.Event{Key: h.employeeID, Event: "state", Data: h.trackerService.State(r.Context())}
	if _, err := initial.WriteTo(w); err != nil {
		slog.Debug("SSE client went away", "error", err)
		return
	}
	flusher.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if _, err := event.WriteTo(w); err != nil {
				slog.Warn("Failed to write SSE event", "event", event.Event, "error", err)
				continue
			}
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// ForwardEvents publishes every tracker event to the hub under employeeID.
func ForwardEvents(trackerService tracker.TrackerService, hub *sse.Hub, employeeID string) (unsubscribe func()) {
	return trackerService.Subscribe(func(e tracker.Event) {
		hub.Publish(sse.Event{Key: employeeID, Event: string(e.Type), Data: e})
	})
}
