package trigger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/qivr/analytics-etl/internal/domain"
	"github.com/qivr/analytics-etl/internal/pipeline"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrInvalidEvent = errors.New("invalid trigger event")

type Runner interface {
	Run(ctx context.Context, req pipeline.RunRequest) (*pipeline.Summary, error)
}

// Response mirrors the scheduler's expected {statusCode, body} shape.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type Handler struct {
	runner Runner
	logger *zap.Logger
}

func NewHandler(runner Runner, logger *zap.Logger) *Handler {
	return &Handler{runner: runner, logger: logger}
}

// ParseEvent reads the optional fields of an otherwise opaque event:
// logical_date (YYYY-MM-DD), lookback_days and run_id, at the top level or
// under detail. A scheduled event's time field stands in for a missing
// logical_date.
func ParseEvent(payload []byte) (pipeline.RunRequest, error) {
	var req pipeline.RunRequest
	if len(payload) == 0 || string(payload) == "null" {
		return req, nil
	}
	if !gjson.ValidBytes(payload) {
		return req, fmt.Errorf("%w: payload is not JSON", ErrInvalidEvent)
	}
	doc := gjson.ParseBytes(payload)
	field := func(name string) gjson.Result {
		if v := doc.Get(name); v.Exists() {
			return v
		}
		return doc.Get("detail." + name)
	}

	if v := field("logical_date"); v.Exists() && v.String() != "" {
		t, err := time.Parse(domain.DateLayout, v.String())
		if err != nil {
			return req, fmt.Errorf("%w: logical_date %q is not YYYY-MM-DD", ErrInvalidEvent, v.String())
		}
		req.LogicalDate = t
	} else if v := doc.Get("time"); v.Exists() {
		t, err := time.Parse(time.RFC3339, v.String())
		if err != nil {
			return req, fmt.Errorf("%w: time %q is not RFC3339", ErrInvalidEvent, v.String())
		}
		req.LogicalDate = t.UTC()
	}

	if v := field("lookback_days"); v.Exists() {
		n := v.Int()
		if n <= 0 || n > 366 {
			return req, fmt.Errorf("%w: lookback_days must be between 1 and 366", ErrInvalidEvent)
		}
		req.LookbackDays = int(n)
	}
	if v := field("run_id"); v.Exists() {
		req.RunID = v.String()
	}
	return req, nil
}

// Handle runs the pipeline for one event. It returns an error only when the
// store is unreachable, so the scheduler's retry policy applies; a run in
// which every domain failed is reported as a 500 response.
func (h *Handler) Handle(ctx context.Context, payload []byte) (Response, error) {
	req, err := ParseEvent(payload)
	if err != nil {
		h.logger.Warn("rejected trigger event", zap.Error(err))
		return errorResponse(http.StatusBadRequest, err), nil
	}

	summary, err := h.runner.Run(ctx, req)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, err), err
	}

	body, err := json.Marshal(summary)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, err), nil
	}
	status := http.StatusOK
	if summary.Status == pipeline.RunFailed {
		status = http.StatusInternalServerError
	}
	return Response{StatusCode: status, Body: string(body)}, nil
}

func errorResponse(status int, err error) Response {
	body, _ := json.Marshal(map[string]string{"error": err.Error()})
	return Response{StatusCode: status, Body: string(body)}
}
