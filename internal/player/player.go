// Package player abstracts the embeddable video widget the dashboard drives.
// The widget lives in the user's browser; this package models its server-side
// handle: availability is asynchronous, duration may be unknown for a while
// after construction, and state changes arrive as events.
package player

import "fmt"

// State mirrors the observable playback states of the embedded widget.
type State int

// Widget playback states.
const (
	StateUnstarted State = iota
	StatePlaying
	StatePaused
	StateBuffering
	StateEnded
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateBuffering:
		return "buffering"
	case StateEnded:
		return "ended"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ParseState converts a wire name into a State.
func ParseState(name string) (State, error) {
	switch name {
	case "unstarted":
		return StateUnstarted, nil
	case "playing":
		return StatePlaying, nil
	case "paused":
		return StatePaused, nil
	case "buffering":
		return StateBuffering, nil
	case "ended":
		return StateEnded, nil
	default:
		return StateUnstarted, fmt.Errorf("unknown player state %q", name)
	}
}

// Player is the handle the tracker polls. Duration and CurrentTime return
// ok=false until the widget has buffered enough to report them; a tick that
// sees ok=false is skipped, not treated as an error.
type Player interface {
	// Ready reports whether the widget API has come up behind the handle.
	Ready() bool
	// Duration returns the total length in seconds once known and non-zero.
	Duration() (float64, bool)
	// CurrentTime returns the playback position in seconds once known.
	CurrentTime() (float64, bool)
	// SeekTo moves playback to the given offset.
	SeekTo(seconds float64, allowSeekAhead bool)
	// OnStateChange registers an observer; the returned func cancels it.
	OnStateChange(fn func(State)) (cancel func())
	// Destroy releases the handle. Further calls on the handle are no-ops.
	Destroy()
}

// Provider constructs player handles bound to a lesson's embed element.
type Provider interface {
	Acquire(userID, lessonID string) (Player, error)
}
