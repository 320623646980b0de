package playback

import "github.com/wbialy/lektor/internal/app/session/state"

// EventType represents a controller event type.
type EventType int

const (
	EventUnitStarted  EventType = iota // Playback moved to a new unit
	EventPosition                      // Position advanced within the unit
	EventStateChanged                  // Status changed (play/pause/stop)
	EventBookEnded                     // The last unit finished
	EventEngineError                   // The engine reported a failure
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventUnitStarted:
		return "unit_started"
	case EventPosition:
		return "position"
	case EventStateChanged:
		return "state_changed"
	case EventBookEnded:
		return "book_ended"
	case EventEngineError:
		return "engine_error"
	default:
		return "unknown"
	}
}

// Event is a controller event consumed by the session manager.
type Event struct {
	Type     EventType
	Playback state.Playback // Snapshot after the event was applied
	Err      error          // EventEngineError only
}
