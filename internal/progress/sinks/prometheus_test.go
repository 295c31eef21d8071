package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ANANT0908/lessonwatch/internal/progress"
)

func TestPrometheusSinkTracksAdvancesAndSessions(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	batch := []progress.Event{
		{UserID: "u1", LessonID: "lesson1", TS: now, Stage: progress.StageSessionStart},
		{UserID: "u1", LessonID: "lesson1", TS: now, Stage: progress.StageAdvance, Percent: 40},
		{UserID: "u1", LessonID: "lesson1", TS: now, Stage: progress.StageAdvance, Percent: 75},
		{UserID: "u1", LessonID: "lesson1", TS: now, Stage: progress.StageCompletion, Completed: true},
		{UserID: "u1", LessonID: "lesson1", TS: now, Stage: progress.StageSessionStop},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, float64(2), testutil.ToFloat64(sink.advances.WithLabelValues("lesson1")))
	require.Equal(t, float64(75), testutil.ToFloat64(sink.percent.WithLabelValues("lesson1")))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.completions.WithLabelValues("lesson1", "true")))
	require.Equal(t, float64(0), testutil.ToFloat64(sink.sessions))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
