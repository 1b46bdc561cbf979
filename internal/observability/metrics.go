// Package observability owns the process-wide Prometheus registry and the
// OpenTelemetry trace pipeline. Everything registers against a private
// registry so tests never trip duplicate-collector panics.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "statline",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statline",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "statline",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	eventsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statline",
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Events per ingest outcome: accepted, deduped or dropped.",
		},
		[]string{"outcome"},
	)

	checkFindings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statline",
			Subsystem: "checks",
			Name:      "findings_total",
			Help:      "System check findings by severity level.",
		},
		[]string{"level"},
	)

	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statline",
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Completed job attempts by type and outcome.",
		},
		[]string{"job_type", "status"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "statline",
			Subsystem: "jobs",
			Name:      "run_duration_seconds",
			Help:      "Duration of job attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"job_type"},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "statline",
			Subsystem: "jobs",
			Name:      "queue_depth",
			Help:      "Job rows by status, sampled by the worker poll loop.",
		},
		[]string{"status"},
	)

	reportDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "statline",
			Subsystem: "reports",
			Name:      "run_duration_seconds",
			Help:      "Duration of report runs, split by cache outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"report", "cached"},
	)
)

func init() {
	registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		eventsIngested,
		checkFindings,
		jobRuns,
		jobDuration,
		queueDepth,
		reportDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the private registry for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// HTTPInflightAdd moves the in-flight gauge; the metrics middleware calls
// it with +1/-1 around each request.
func HTTPInflightAdd(delta float64) {
	httpInFlight.Add(delta)
}

// ObserveHTTPRequest records one finished request. Path should be the route
// template, not the raw URL, to keep cardinality bounded.
func ObserveHTTPRequest(method, path, status string, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// CountIngested adds n events to one ingest outcome.
func CountIngested(outcome string, n int) {
	if n <= 0 {
		return
	}
	eventsIngested.WithLabelValues(outcome).Add(float64(n))
}

// CountCheckFinding records one system check finding at the given level.
func CountCheckFinding(level string) {
	checkFindings.WithLabelValues(level).Inc()
}

// ObserveJobRun records one finished job attempt.
func ObserveJobRun(jobType, status string, elapsed time.Duration) {
	jobRuns.WithLabelValues(jobType, status).Inc()
	jobDuration.WithLabelValues(jobType).Observe(elapsed.Seconds())
}

// SetQueueDepth publishes the current number of job rows in one status.
func SetQueueDepth(status string, n int64) {
	queueDepth.WithLabelValues(status).Set(float64(n))
}

// ObserveReportRun records one report computation or cache hit.
func ObserveReportRun(report string, cached bool, elapsed time.Duration) {
	c := "false"
	if cached {
		c = "true"
	}
	reportDuration.WithLabelValues(report, c).Observe(elapsed.Seconds())
}
