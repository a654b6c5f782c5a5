package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder records engine and HTTP metrics on its own registry
// nil Recorder는 no-op (CLI 단발 실행, 테스트)
type Recorder struct {
	registry *prometheus.Registry

	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	decisions    *prometheus.CounterVec
	skipped      *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// New creates a recorder with Go/process collectors registered
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taa_runs_total",
				Help: "Strategy runs by outcome",
			},
			[]string{"strategy", "status"},
		),
		runDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taa_run_duration_seconds",
				Help:    "Wall time of one strategy run",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"strategy"},
		),
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taa_decisions_total",
				Help: "Emitted monthly decisions by regime",
			},
			[]string{"strategy", "regime"},
		),
		skipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taa_skipped_months_total",
				Help: "Months skipped because a required score was undefined",
			},
			[]string{"strategy", "reason"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taa_run_cache_lookups_total",
				Help: "Run cache lookups by result",
			},
			[]string{"result"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taa_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taa_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method"},
		),
	}
}

// Registry exposes the underlying registry (tests, custom collectors)
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveRun records one finished run
func (r *Recorder) ObserveRun(strategy, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.runsTotal.WithLabelValues(strategy, status).Inc()
	r.runDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

// RecordDecision counts an emitted decision
func (r *Recorder) RecordDecision(strategy, regime string) {
	if r == nil {
		return
	}
	r.decisions.WithLabelValues(strategy, regime).Inc()
}

// RecordSkip counts a skipped month
func (r *Recorder) RecordSkip(strategy, reason string) {
	if r == nil {
		return
	}
	r.skipped.WithLabelValues(strategy, reason).Inc()
}

// RecordCache counts a cache hit or miss
func (r *Recorder) RecordCache(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served request
func (r *Recorder) ObserveHTTP(route, method string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpLatency.WithLabelValues(route, method).Observe(d.Seconds())
}
