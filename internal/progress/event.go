// Package progress defines the event stream emitted by the watch tracker and
// the hub that fans it out to persistence and observability sinks.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	// StageAdvance records a watch-percent increase that should be persisted.
	StageAdvance Stage = "PERCENT_ADVANCE"
	// StageCompletion mirrors a completion toggle for observability. The
	// toggle itself is persisted synchronously by the tracker so the UI flag
	// can be rolled back on failure; sinks must not write it again.
	StageCompletion Stage = "COMPLETION_TOGGLE"
	// StageSessionStart marks a player session acquiring its polling timer.
	StageSessionStart Stage = "SESSION_START"
	// StageSessionStop marks a session releasing its polling timer.
	StageSessionStop Stage = "SESSION_STOP"
)

// Event captures a single tracker milestone for one user and lesson.
type Event struct {
	// UserID identifies the owning user document.
	UserID string
	// LessonID identifies the lesson within the user's maps.
	LessonID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Percent carries the truncated watch percent for StageAdvance.
	Percent int
	// Completed carries the new flag value for StageCompletion.
	Completed bool
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.UserID == "" {
		return errors.New("user id is required")
	}
	if e.LessonID == "" {
		return errors.New("lesson id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageAdvance:
		if e.Percent < 0 || e.Percent > 100 {
			return fmt.Errorf("percent %d out of range", e.Percent)
		}
	case StageCompletion, StageSessionStart, StageSessionStop:
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	return nil
}
