// Package metrics exposes Prometheus collectors for the sync service.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pollsync",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pollsync",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pollsync",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pollsync",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Total number of contract events received by the webhook.",
		},
		[]string{"event", "outcome"},
	)

	reconcileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pollsync",
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Total number of reconciliation invocations.",
		},
		[]string{"outcome"},
	)

	reconcilePolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pollsync",
			Subsystem: "reconcile",
			Name:      "polls_total",
			Help:      "Polls processed during reconciliation, by result.",
		},
		[]string{"result"},
	)

	reconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pollsync",
			Subsystem: "reconcile",
			Name:      "run_duration_seconds",
			Help:      "Duration of full reconciliation runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		webhookEvents,
		reconcileRuns,
		reconcilePolls,
		reconcileDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordWebhookEvent counts one processed webhook delivery.
func RecordWebhookEvent(event string, ok bool) {
	if event == "" {
		event = "unknown"
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	webhookEvents.WithLabelValues(event, outcome).Inc()
}

// RecordReconcileRun counts one reconciliation run and its per-poll results.
func RecordReconcileRun(synced, failed int, duration time.Duration, fatal bool) {
	outcome := "ok"
	switch {
	case fatal:
		outcome = "fatal"
	case failed > 0:
		outcome = "partial"
	}
	reconcileRuns.WithLabelValues(outcome).Inc()
	reconcilePolls.WithLabelValues("synced").Add(float64(synced))
	reconcilePolls.WithLabelValues("failed").Add(float64(failed))
	reconcileDuration.Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses poll ids so the path label stays low-cardinality.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "polls" {
		return "/" + strings.Join(parts, "/")
	}
	if len(parts) == 1 {
		return "/polls"
	}
	if len(parts) == 2 {
		return "/polls/:id"
	}
	return "/polls/:id/" + parts[2]
}
