package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the service's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	borrowOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "borrow_service",
			Subsystem: "lifecycle",
			Name:      "operations_total",
			Help:      "Borrow lifecycle operations by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	gatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "borrow_service",
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "Remote capability calls by result (success, failure, fallback).",
		},
		[]string{"capability", "result"},
	)

	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "borrow_service",
			Subsystem: "gateway",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per capability (0 closed, 1 open, 2 half-open).",
		},
		[]string{"capability"},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "borrow_service",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Events handed to the sink by topic and result.",
		},
		[]string{"topic", "result"},
	)

	sweepRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "borrow_service",
			Subsystem: "sweeper",
			Name:      "records_total",
			Help:      "Overdue sweep records by result (transitioned, skipped, failed).",
		},
		[]string{"result"},
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "borrow_service",
			Subsystem: "sweeper",
			Name:      "run_duration_seconds",
			Help:      "Duration of overdue sweep runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "borrow_service",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "borrow_service",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)
)

func init() {
	Registry.MustRegister(
		borrowOperations,
		gatewayCalls,
		breakerState,
		eventsPublished,
		sweepRecords,
		sweepDuration,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordBorrowOperation counts a lifecycle operation; outcome is "success",
// a domain error code, or "error".
func RecordBorrowOperation(operation, outcome string) {
	borrowOperations.WithLabelValues(operation, outcome).Inc()
}

func RecordGatewayCall(capability, result string) {
	gatewayCalls.WithLabelValues(capability, result).Inc()
}

func SetBreakerState(capability string, state int) {
	breakerState.WithLabelValues(capability).Set(float64(state))
}

func RecordEventPublished(topic string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	eventsPublished.WithLabelValues(topic, result).Inc()
}

func RecordSweep(duration time.Duration, transitioned, skipped, failed int) {
	sweepDuration.Observe(duration.Seconds())
	sweepRecords.WithLabelValues("transitioned").Add(float64(transitioned))
	sweepRecords.WithLabelValues("skipped").Add(float64(skipped))
	sweepRecords.WithLabelValues("failed").Add(float64(failed))
}

// InstrumentHandler wraps the router with HTTP metrics collection. Routes are
// labelled by their mux path template to keep cardinality bounded.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
