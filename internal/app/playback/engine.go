// Package playback bridges the session state to an external playback
// engine.
package playback

import (
	"time"

	"github.com/wbialy/lektor/internal/domain/book"
)

// Engine is the external decode/output collaborator. The controller
// issues commands and consumes the asynchronous event stream; offsets
// are always relative to the loaded unit, so a container-range source
// reports 0 at its start offset.
type Engine interface {
	// Load prepares a source and positions it at offset, paused.
	Load(src book.Source, offset time.Duration) error
	Play() error
	Pause() error
	// Seek repositions within the loaded source.
	Seek(offset time.Duration) error
	// SetRate sets the playback speed multiplier.
	SetRate(rate float64) error
	// SetVolume sets the output volume in [0, 1].
	SetVolume(level float64) error
	// Stop unloads the current source.
	Stop() error
	// Position reports the last known offset; false when nothing is loaded.
	Position() (time.Duration, bool)
	// Events returns the engine's feedback stream. The engine may drop
	// position events under backpressure; the latest one is authoritative.
	// Every Load and Seek call, successful or not, increments the engine's
	// command sequence, and every emitted event carries the sequence
	// current when it was generated. Consumers use the echoed sequence to
	// discard events that were queued before a repositioning command.
	Events() <-chan EngineEvent
	Close() error
}

// EngineEventType represents an engine feedback event type.
type EngineEventType int

const (
	EnginePosition    EngineEventType = iota // Periodic position report
	EngineEndOfStream                        // The loaded unit finished
	EngineFailure                            // Decode or output failure
)

// String returns the string representation of the event type.
func (t EngineEventType) String() string {
	switch t {
	case EnginePosition:
		return "position"
	case EngineEndOfStream:
		return "end_of_stream"
	case EngineFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// EngineEvent is one feedback event from the engine.
type EngineEvent struct {
	Type   EngineEventType
	Offset time.Duration // Position events only
	Err    error         // Failure events only
	Seq    uint64        // Engine command sequence at generation time
}
