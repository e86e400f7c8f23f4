// Package metrics exposes Prometheus collectors for the pipeline stages.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Collectors groups every pipeline metric. All methods are safe on a nil
// receiver so stages can run without metrics.
type Collectors struct {
	gatherer prometheus.Gatherer

	extractRecords    *prometheus.CounterVec
	extractSkipped    *prometheus.CounterVec
	apiDuration       *prometheus.HistogramVec
	extractDelay      prometheus.Histogram
	loadRows          *prometheus.CounterVec
	exportRows        prometheus.Counter
	stageDuration     *prometheus.HistogramVec
	httpRequestsTotal *prometheus.CounterVec
}

// New registers the collectors on reg. reg doubles as the gatherer used by
// Handler and Push.
func New(reg *prometheus.Registry) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		gatherer: reg,
		extractRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leasecar_extract_records_total",
				Help: "Records decomposed from detail responses, labeled by record kind.",
			},
			[]string{"kind"},
		),
		extractSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leasecar_extract_skipped_total",
				Help: "Identifiers skipped by the extractor, labeled by failure kind.",
			},
			[]string{"kind"},
		),
		apiDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leasecar_api_request_duration_seconds",
				Help:    "Catalog API latencies, labeled by endpoint and status code.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"endpoint", "code"},
		),
		extractDelay: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "leasecar_extract_delay_seconds",
				Help:    "Randomized pauses taken before detail requests.",
				Buckets: []float64{1, 2.5, 5, 7.5, 10, 12.5, 15, 30},
			},
		),
		loadRows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leasecar_load_rows_total",
				Help: "Rows inserted or filtered by the loader, plus aborted table loads (outcome=failed).",
			},
			[]string{"table", "outcome"},
		),
		exportRows: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "leasecar_export_rows_total",
				Help: "Rows written to the export file.",
			},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leasecar_stage_duration_seconds",
				Help:    "Wall time of each stage run, labeled by stage and status.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"stage", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leasecar_http_requests_total",
				Help: "Requests served by the metrics endpoint, labeled by method, route and code.",
			},
			[]string{"method", "route", "code"},
		),
	}
}

// ObserveRecords adds n decomposed records of the given kind.
func (c *Collectors) ObserveRecords(kind string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.extractRecords.WithLabelValues(kind).Add(float64(n))
}

// ObserveSkip counts one skipped identifier.
func (c *Collectors) ObserveSkip(kind string) {
	if c == nil {
		return
	}
	c.extractSkipped.WithLabelValues(kind).Inc()
}

// ObserveAPICall records the latency of one catalog call.
func (c *Collectors) ObserveAPICall(endpoint string, code int, d time.Duration) {
	if c == nil {
		return
	}
	c.apiDuration.WithLabelValues(endpoint, strconv.Itoa(code)).Observe(d.Seconds())
}

// ObserveDelay records one pacing pause.
func (c *Collectors) ObserveDelay(d time.Duration) {
	if c == nil {
		return
	}
	c.extractDelay.Observe(d.Seconds())
}

// ObserveLoad adds n to table's outcome: inserted or filtered rows, or
// failed table loads.
func (c *Collectors) ObserveLoad(table, outcome string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.loadRows.WithLabelValues(table, outcome).Add(float64(n))
}

// ObserveExport adds n exported rows.
func (c *Collectors) ObserveExport(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.exportRows.Add(float64(n))
}

// ObserveStage records how long a stage ran and whether it succeeded.
func (c *Collectors) ObserveStage(stage string, succeeded bool, d time.Duration) {
	if c == nil {
		return
	}
	status := "succeeded"
	if !succeeded {
		status = "failed"
	}
	c.stageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

// Handler returns an http.Handler exposing the registry.
func (c *Collectors) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Push sends the registry to a Prometheus push gateway under job.
func (c *Collectors) Push(ctx context.Context, gatewayURL, job string) error {
	if c == nil || gatewayURL == "" {
		return nil
	}
	if err := push.New(gatewayURL, job).Gatherer(c.gatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// Middleware is a chi middleware that counts served requests.
func (c *Collectors) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		if c == nil {
			return
		}

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}
		c.httpRequestsTotal.WithLabelValues(r.Method, routePattern, strconv.Itoa(ww.status)).Inc()
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
