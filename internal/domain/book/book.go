// Package book provides the audiobook domain entities.
package book

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
)

// Errors shared by the session core. All of them are recoverable: callers
// convert them into status messages instead of aborting the session.
var (
	ErrMetadataUnreadable = errors.New("container metadata unreadable")
	ErrInvalidPosition    = errors.New("position out of range")
	ErrEmptyCatalog       = errors.New("catalog has no playable units")
)

// Identity is the stable key associating persisted session data with a
// source. Deriving it from the same resolved path always yields the same
// value across runs.
type Identity string

// DeriveIdentity computes the identity for a source path. The path is
// resolved to its absolute form first, so relative invocations from
// different working directories map to the same record.
func DeriveIdentity(path string) (Identity, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve source path")
	}
	sum := sha256.Sum256([]byte(filepath.Clean(abs)))
	return Identity(hex.EncodeToString(sum[:16])), nil
}

// SourceKind discriminates the playable source variants.
type SourceKind int

const (
	SourceWholeFile      SourceKind = iota // The unit spans the whole file
	SourceContainerRange                   // The unit is a time range inside a container file
)

// String returns the string representation of the source kind.
func (k SourceKind) String() string {
	switch k {
	case SourceWholeFile:
		return "whole_file"
	case SourceContainerRange:
		return "container_range"
	default:
		return "unknown"
	}
}

// Source describes where a unit's audio lives. For SourceWholeFile only
// Path is meaningful. For SourceContainerRange, Start and End bound the
// chapter inside the container; End is zero when the container does not
// report it.
type Source struct {
	Kind  SourceKind
	Path  string
	Start time.Duration
	End   time.Duration
}

// Unit represents one navigable segment: a whole file or one chapter
// within a container.
type Unit struct {
	Index    int           // 0-based, contiguous
	Title    string        // From metadata, or a generated fallback
	Duration time.Duration // 0 means unknown
	Source   Source
}

// DurationKnown reports whether the unit has a usable duration.
func (u Unit) DurationKnown() bool {
	return u.Duration > 0
}

// FallbackTitle returns the generated display title for a unit missing
// one in its metadata. Display numbering is 1-based.
func FallbackTitle(index int) string {
	return fmt.Sprintf("Chapter %d", index+1)
}

// Catalog is the ordered unit list resolved for one audiobook.
type Catalog struct {
	Path     string
	Identity Identity
	Title    string // Book-level title (file tag, or filename stem)
	Units    []Unit
}

// Len returns the number of playable units.
func (c *Catalog) Len() int {
	return len(c.Units)
}

// Unit returns the unit at the given index.
func (c *Catalog) Unit(index int) (Unit, bool) {
	if index < 0 || index >= len(c.Units) {
		return Unit{}, false
	}
	return c.Units[index], true
}

// UnitDuration returns the duration of the unit at index, or 0 when the
// index is out of range or the duration is unknown.
func (c *Catalog) UnitDuration(index int) time.Duration {
	u, ok := c.Unit(index)
	if !ok {
		return 0
	}
	return u.Duration
}

// TotalDuration sums the unit durations. The second return value is
// false when any unit's duration is unknown.
func (c *Catalog) TotalDuration() (time.Duration, bool) {
	var total time.Duration
	for _, u := range c.Units {
		if !u.DurationKnown() {
			return 0, false
		}
		total += u.Duration
	}
	return total, true
}

// FormatDuration renders a duration in the compact form used across the
// UI surface: "45s", "3m10s", "1h0m0s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	minutes := total / 60

	if minutes == 0 {
		return fmt.Sprintf("%ds", total)
	}

	hours := minutes / 60
	if hours == 0 {
		return fmt.Sprintf("%dm%ds", minutes, total-minutes*60)
	}

	minutes -= hours * 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, total-hours*3600-minutes*60)
}
