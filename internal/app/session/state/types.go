// Package state provides playback state management.
package state

import "time"

// Status represents the playback status.
type Status int

const (
	StatusStopped Status = iota // No unit loaded or playback finished
	StatusPlaying               // Unit is playing
	StatusPaused                // Unit is paused
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Playback is a value snapshot of the live playback state. The manager
// exclusively owns the live state; everyone else only ever sees copies.
type Playback struct {
	UnitIndex int
	Offset    time.Duration
	Speed     float64
	Volume    float64
	Status    Status
}
