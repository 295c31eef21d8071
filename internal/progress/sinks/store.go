package sinks

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/ANANT0908/lessonwatch/internal/metrics"
	"github.com/ANANT0908/lessonwatch/internal/progress"
	"github.com/ANANT0908/lessonwatch/internal/store"
)

// StoreSink persists percent advances via a store.UserStore. A batch is
// collapsed to the highest percent per (user, lesson) before writing, so a
// burst of ticks costs one field merge. Completion toggles are persisted
// synchronously by the tracker and are ignored here.
type StoreSink struct {
	users       store.UserStore
	logger      *zap.Logger
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewStoreSink constructs a StoreSink with bounded jittered retry for
// transient store failures.
func NewStoreSink(users store.UserStore, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{
		users:       users,
		logger:      logger,
		maxAttempts: 3,
		baseDelay:   250 * time.Millisecond,
		maxDelay:    2 * time.Second,
	}
}

type advanceKey struct {
	userID   string
	lessonID string
}

// Consume collapses advances and merges them into user documents. A write
// that still fails after retries is logged and counted but does not abort the
// rest of the batch; watch progress is best-effort telemetry.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.users == nil {
		return nil
	}
	advances := make(map[advanceKey]int)
	for _, evt := range batch {
		if evt.Stage != progress.StageAdvance {
			continue
		}
		key := advanceKey{userID: evt.UserID, lessonID: evt.LessonID}
		if evt.Percent > advances[key] {
			advances[key] = evt.Percent
		}
	}
	var firstErr error
	for key, percent := range advances {
		fields := map[string]any{store.ProgressField(key.lessonID): percent}
		if err := s.writeWithRetry(ctx, key.userID, fields); err != nil {
			metrics.RecordProgressWriteError()
			s.logger.Warn("progress write abandoned",
				zap.String("user_id", key.userID),
				zap.String("lesson_id", key.lessonID),
				zap.Int("percent", percent),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		metrics.RecordProgressWrite(key.lessonID)
	}
	return firstErr
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

func (s *StoreSink) writeWithRetry(ctx context.Context, userID string, fields map[string]any) error {
	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("progress write canceled: %w", ctx.Err())
			case <-time.After(s.backoff(attempt)):
			}
		}
		lastErr = s.users.UpdateFields(ctx, userID, fields)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (s *StoreSink) backoff(attempt int) time.Duration {
	delay := float64(s.baseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(s.maxDelay) {
		delay = float64(s.maxDelay)
	}
	return time.Duration(delay/2) + randomJitter(time.Duration(delay)/2)
}

func retryable(err error) bool {
	if errors.Is(err, store.ErrNotFound) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
