package handlers

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/qivr/analytics-etl/internal/trigger"
	"go.uber.org/zap"
)

const maxEventBytes = 64 << 10

// EventHandler is satisfied by *trigger.Handler.
type EventHandler interface {
	Handle(ctx context.Context, payload []byte) (trigger.Response, error)
}

type RunHandler struct {
	events  EventHandler
	logger  *zap.Logger
	running sync.Mutex
}

func NewRunHandler(events EventHandler, logger *zap.Logger) *RunHandler {
	return &RunHandler{events: events, logger: logger}
}

// Create starts a run synchronously and responds with its summary. Only one
// run may be in flight; overlapping requests get 409.
func (h *RunHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "event payload too large")
		return
	}

	if !h.running.TryLock() {
		writeError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	defer h.running.Unlock()

	resp, err := h.events.Handle(r.Context(), body)
	if err != nil {
		h.logger.Error("run failed", zap.Error(err))
		// The store is unreachable; signal the caller to retry later.
		resp.StatusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}
