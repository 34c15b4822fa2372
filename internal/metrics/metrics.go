package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "analytics_etl"

// Metrics holds the run and HTTP metrics, all registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	// Run metrics
	RecordsExtracted *prometheus.CounterVec
	RecordsPublished *prometheus.CounterVec
	GroupsSuppressed *prometheus.CounterVec
	FieldsDefaulted  *prometheus.CounterVec
	DomainFailures   *prometheus.CounterVec
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	LastPublished    *prometheus.GaugeVec

	// HTTP trigger metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New registers all metrics on reg. A nil reg gets a fresh registry with the
// Go and process collectors.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RecordsExtracted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_extracted_total",
				Help:      "Rows read from the operational store",
			},
			[]string{"domain"},
		),
		RecordsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_published_total",
				Help:      "Anonymized records written to object storage",
			},
			[]string{"domain"},
		),
		GroupsSuppressed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "groups_suppressed_total",
				Help:      "Quasi-identifier groups withheld for falling below K",
			},
			[]string{"domain"},
		),
		FieldsDefaulted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fields_defaulted_total",
				Help:      "Source fields replaced by an explicit default",
			},
			[]string{"domain"},
		),
		DomainFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "domain_failures_total",
				Help:      "Domain failures by stage",
			},
			[]string{"domain", "stage"},
		),
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Runs by final status",
			},
			[]string{"status"},
		),
		RunDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of a full run",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 900},
			},
		),
		LastPublished: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_published_timestamp_seconds",
				Help:      "Unix time of the last successful publish per domain",
			},
			[]string{"domain"},
		),

		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Push sends the current state of the registry to a Pushgateway. Batch
// invocations exit before a scrape would see them.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
