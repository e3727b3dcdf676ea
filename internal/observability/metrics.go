package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	activeThreads       prometheus.Gauge
	sessionLoadDuration prometheus.Histogram
	sessionSaveDuration prometheus.Histogram
	threadsExpiredTotal prometheus.Counter

	completionTotal    *prometheus.CounterVec
	completionDuration prometheus.Histogram

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec

	generateTotal        *prometheus.CounterVec
	generateDuration     prometheus.Histogram
	generateTurns        prometheus.Histogram
	degradedRepliesTotal *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			activeThreads: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_threads",
					Help: "Current live (unexpired) conversation thread count.",
				},
			),
			sessionLoadDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_load_duration_seconds",
					Help:    "Session load duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			sessionSaveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_save_duration_seconds",
					Help:    "Session save duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			threadsExpiredTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "threads_expired_total",
					Help: "Total threads evicted after TTL expiry.",
				},
			),
			completionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "completion_requests_total",
					Help: "Total completion provider requests by status.",
				},
				[]string{"status"},
			),
			completionDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "completion_request_duration_seconds",
					Help:    "Completion provider request duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			generateTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "generate_total",
					Help: "Total generate turns by status.",
				},
				[]string{"status"},
			),
			generateDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "generate_duration_seconds",
					Help:    "End-to-end generate duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			generateTurns: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "generate_loop_turns",
					Help:    "Completion loop iterations per generate call.",
					Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
				},
			),
			degradedRepliesTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "degraded_replies_total",
					Help: "Total locally-recovered degraded replies by reason.",
				},
				[]string{"reason"},
			),
		}

		prometheus.MustRegister(
			m.activeThreads,
			m.sessionLoadDuration,
			m.sessionSaveDuration,
			m.threadsExpiredTotal,
			m.completionTotal,
			m.completionDuration,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.generateTotal,
			m.generateDuration,
			m.generateTurns,
			m.degradedRepliesTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func SetActiveThreads(count int) {
	getMetrics().activeThreads.Set(float64(count))
}

func RecordSessionLoad(duration time.Duration) {
	getMetrics().sessionLoadDuration.Observe(duration.Seconds())
}

func RecordSessionSave(duration time.Duration) {
	getMetrics().sessionSaveDuration.Observe(duration.Seconds())
}

func RecordThreadsExpired(count int) {
	getMetrics().threadsExpiredTotal.Add(float64(count))
}

func RecordCompletion(duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.completionTotal.WithLabelValues(status).Inc()
	m.completionDuration.Observe(duration.Seconds())
}

func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.toolExecutionTotal.WithLabelValues(tool, status).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordGenerate(duration time.Duration, turns int, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.generateTotal.WithLabelValues(status).Inc()
	m.generateDuration.Observe(duration.Seconds())
	m.generateTurns.Observe(float64(turns))
}

func RecordDegradedReply(reason string) {
	getMetrics().degradedRepliesTotal.WithLabelValues(reason).Inc()
}
