package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/ANANT0908/lessonwatch/internal/progress"
)

// LogSink emits structured logs for debugging tracker streams. It is useful
// during development or audits where a durable store is unavailable.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.logger.Debug("tracker event",
			zap.String("user_id", evt.UserID),
			zap.String("lesson_id", evt.LessonID),
			zap.String("stage", string(evt.Stage)),
			zap.Int("percent", evt.Percent),
			zap.Bool("completed", evt.Completed),
			zap.Time("ts", evt.TS),
		)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
