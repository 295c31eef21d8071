package metrics

import "testing"

// TestInitIdempotent ensures repeated Init calls do not re-register collectors
// (promauto panics on duplicate registration).
func TestInitIdempotent(t *testing.T) {
	Init()
	Init()

	RecordProgressWrite("lesson1")
	RecordProgressWriteError()
	RecordCompletionToggle("lesson1", true)
	SessionStarted()
	SessionStopped()
	RecordTick("sampled")
	RecordDroppedEvent()
	RecordHTTPRequest("GET", "200")
}

func TestRecordBeforeInitIsSafe(t *testing.T) {
	// Collectors may be nil when a test package never calls Init; the record
	// helpers must not panic in that state.
	RecordProgressWrite("lesson1")
	RecordTick("skipped")
}
