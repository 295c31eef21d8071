// Package metrics exposes Prometheus collectors for the lessonwatch service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	progressWritesTotal    *prometheus.CounterVec
	progressWriteErrors    prometheus.Counter
	completionTogglesTotal *prometheus.CounterVec
	trackerSessionsActive  prometheus.Gauge
	trackerTicksTotal      *prometheus.CounterVec
	pipelineEventsDropped  prometheus.Counter
	httpRequestsTotal      *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		progressWritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lessonwatch_progress_writes_total",
				Help: "Persisted watch-percent advances, labeled by lesson.",
			},
			[]string{"lesson"},
		)

		progressWriteErrors = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lessonwatch_progress_write_errors_total",
				Help: "Progress persistence attempts that failed after retries.",
			},
		)

		completionTogglesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lessonwatch_completion_toggles_total",
				Help: "Completion flag toggles, labeled by lesson and new state.",
			},
			[]string{"lesson", "completed"},
		)

		trackerSessionsActive = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "lessonwatch_tracker_sessions_active",
				Help: "Player sessions currently holding a polling timer.",
			},
		)

		trackerTicksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lessonwatch_tracker_ticks_total",
				Help: "Poll ticks processed, labeled by outcome (sampled, skipped).",
			},
			[]string{"outcome"},
		)

		pipelineEventsDropped = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lessonwatch_pipeline_events_dropped_total",
				Help: "Tracker events dropped by the write pipeline under backpressure.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lessonwatch_http_requests_total",
				Help: "HTTP requests served, labeled by method and status code.",
			},
			[]string{"method", "code"},
		)
	})
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordProgressWrite counts one persisted percent advance.
func RecordProgressWrite(lessonID string) {
	if progressWritesTotal != nil {
		progressWritesTotal.WithLabelValues(lessonID).Inc()
	}
}

// RecordProgressWriteError counts a persistence failure.
func RecordProgressWriteError() {
	if progressWriteErrors != nil {
		progressWriteErrors.Inc()
	}
}

// RecordCompletionToggle counts a completion flag change.
func RecordCompletionToggle(lessonID string, completed bool) {
	if completionTogglesTotal != nil {
		completionTogglesTotal.WithLabelValues(lessonID, boolLabel(completed)).Inc()
	}
}

// SessionStarted increments the active session gauge.
func SessionStarted() {
	if trackerSessionsActive != nil {
		trackerSessionsActive.Inc()
	}
}

// SessionStopped decrements the active session gauge.
func SessionStopped() {
	if trackerSessionsActive != nil {
		trackerSessionsActive.Dec()
	}
}

// RecordTick counts one poll tick with its outcome.
func RecordTick(outcome string) {
	if trackerTicksTotal != nil {
		trackerTicksTotal.WithLabelValues(outcome).Inc()
	}
}

// RecordDroppedEvent counts a pipeline drop.
func RecordDroppedEvent() {
	if pipelineEventsDropped != nil {
		pipelineEventsDropped.Inc()
	}
}

// RecordHTTPRequest counts a served request.
func RecordHTTPRequest(method, code string) {
	if httpRequestsTotal != nil {
		httpRequestsTotal.WithLabelValues(method, code).Inc()
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
