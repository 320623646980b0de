// Package spoiler computes the spoiler-safe view over chapter metadata.
package spoiler

import (
	"fmt"

	"github.com/wbialy/lektor/internal/domain/book"
)

// Placeholder is shown instead of a masked chapter's title.
const Placeholder = "???"

// Entry is one chapter as it may be displayed. For a masked entry the
// title is the placeholder plus the 1-based ordinal and the duration is
// zeroed, so neither the real title nor the length leaks.
type Entry struct {
	Title    string
	Duration int64 // Milliseconds; 0 when masked or unknown
	Masked   bool
}

// Visible computes the display entries for all units. When disabled, the
// original titles and durations pass through unchanged. When enabled,
// units beyond currentUnitIndex are masked.
func Visible(units []book.Unit, currentUnitIndex int, enabled bool) []Entry {
	out := make([]Entry, len(units))
	for i, u := range units {
		if enabled && i > currentUnitIndex {
			out[i] = Entry{
				Title:  fmt.Sprintf("%s %d", Placeholder, i+1),
				Masked: true,
			}
			continue
		}
		out[i] = Entry{
			Title:    u.Title,
			Duration: u.Duration.Milliseconds(),
		}
	}
	return out
}

// VisibleTitles returns just the display strings.
func VisibleTitles(units []book.Unit, currentUnitIndex int, enabled bool) []string {
	entries := Visible(units, currentUnitIndex, enabled)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Title
	}
	return out
}
