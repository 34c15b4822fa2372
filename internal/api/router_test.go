package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/qivr/analytics-etl/internal/metrics"
	"github.com/qivr/analytics-etl/internal/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubEvents struct {
	mu       sync.Mutex
	payloads []string
	resp     trigger.Response
	err      error
	block    chan struct{}
	started  chan struct{}
}

func (s *stubEvents) Handle(ctx context.Context, payload []byte) (trigger.Response, error) {
	s.mu.Lock()
	s.payloads = append(s.payloads, string(payload))
	s.mu.Unlock()
	if s.started != nil {
		close(s.started)
	}
	if s.block != nil {
		<-s.block
	}
	return s.resp, s.err
}

func newTestApp(t *testing.T, events *stubEvents, cfg Config) (*App, *metrics.Metrics) {
	t.Helper()
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
		cfg.RateLimitBurst = 100
	}
	m := metrics.New(prometheus.NewRegistry())
	return NewApp(events, m, cfg, zap.NewNop()), m
}

func postRun(app *App, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func TestRuns_RequiresToken(t *testing.T) {
	events := &stubEvents{resp: trigger.Response{StatusCode: 200, Body: `{}`}}
	app, _ := newTestApp(t, events, Config{TriggerToken: "s3cret"})

	assert.Equal(t, http.StatusUnauthorized, postRun(app, "", `{}`).Code)
	assert.Equal(t, http.StatusUnauthorized, postRun(app, "wrong", `{}`).Code)
	assert.Empty(t, events.payloads)

	rec := postRun(app, "s3cret", `{"logical_date":"2026-10-15"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{`{"logical_date":"2026-10-15"}`}, events.payloads)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRuns_UnconfiguredTokenRejects(t *testing.T) {
	app, _ := newTestApp(t, &stubEvents{}, Config{})
	assert.Equal(t, http.StatusServiceUnavailable, postRun(app, "anything", `{}`).Code)
}

func TestRuns_PassesThroughStatusAndBody(t *testing.T) {
	events := &stubEvents{resp: trigger.Response{StatusCode: 500, Body: `{"status":"failed"}`}}
	app, _ := newTestApp(t, events, Config{TriggerToken: "t"})

	rec := postRun(app, "t", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status":"failed"}`, rec.Body.String())
}

func TestRuns_ConnectionFailureIs503(t *testing.T) {
	events := &stubEvents{
		resp: trigger.Response{StatusCode: 500, Body: `{"error":"connect: refused"}`},
		err:  errors.New("connect: refused"),
	}
	app, _ := newTestApp(t, events, Config{TriggerToken: "t"})
	assert.Equal(t, http.StatusServiceUnavailable, postRun(app, "t", `{}`).Code)
}

func TestRuns_OverlappingRunConflicts(t *testing.T) {
	events := &stubEvents{
		resp:    trigger.Response{StatusCode: 200, Body: `{}`},
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	app, _ := newTestApp(t, events, Config{TriggerToken: "t"})

	done := make(chan int)
	go func() { done <- postRun(app, "t", `{}`).Code }()
	<-events.started

	assert.Equal(t, http.StatusConflict, postRun(app, "t", `{}`).Code)
	close(events.block)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestRuns_RateLimited(t *testing.T) {
	events := &stubEvents{resp: trigger.Response{StatusCode: 200, Body: `{}`}}
	app, _ := newTestApp(t, events, Config{TriggerToken: "t", RateLimitRPS: 0.001, RateLimitBurst: 1})

	assert.Equal(t, http.StatusOK, postRun(app, "t", `{}`).Code)
	rec := postRun(app, "t", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestHealthAndMetrics(t *testing.T) {
	app, _ := newTestApp(t, &stubEvents{}, Config{})

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `analytics_etl_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestApp_StartStop(t *testing.T) {
	app, _ := newTestApp(t, &stubEvents{}, Config{})
	app.Start()
	app.Stop()
}
