package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ANANT0908/lessonwatch/internal/progress"
)

// PrometheusSink exports tracker progress metrics via Prometheus. It owns the
// per-lesson advance counters and the session lifecycle gauge.
type PrometheusSink struct {
	advances    *prometheus.CounterVec
	completions *prometheus.CounterVec
	sessions    prometheus.Gauge
	percent     *prometheus.GaugeVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		advances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lessonwatch_percent_advances_total",
			Help: "Watch-percent advances emitted by the tracker, per lesson.",
		}, []string{"lesson"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lessonwatch_completion_events_total",
			Help: "Completion toggles observed, partitioned by new state.",
		}, []string{"lesson", "completed"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lessonwatch_player_sessions",
			Help: "Player sessions currently polling, as seen by the pipeline.",
		}),
		percent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lessonwatch_last_percent",
			Help: "Last observed watch percent per lesson.",
		}, []string{"lesson"}),
	}
	for _, collector := range []prometheus.Collector{
		s.advances,
		s.completions,
		s.sessions,
		s.percent,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register tracker collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageAdvance:
			s.advances.WithLabelValues(evt.LessonID).Inc()
			s.percent.WithLabelValues(evt.LessonID).Set(float64(evt.Percent))
		case progress.StageCompletion:
			s.completions.WithLabelValues(evt.LessonID, boolLabel(evt.Completed)).Inc()
		case progress.StageSessionStart:
			s.sessions.Inc()
		case progress.StageSessionStop:
			s.sessions.Dec()
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
