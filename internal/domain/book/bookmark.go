package book

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Bookmark marks a user-chosen position inside one unit. Bookmarks are
// immutable after creation except for the label.
type Bookmark struct {
	ID        string
	UnitIndex int
	Offset    time.Duration // Position inside the unit
	Label     string
	CreatedAt time.Time
}

// NewBookmark creates a bookmark at the given position. A fresh ID keeps
// multiple bookmarks at identical positions distinguishable.
func NewBookmark(unitIndex int, offset time.Duration, label string) Bookmark {
	return Bookmark{
		ID:        uuid.New().String(),
		UnitIndex: unitIndex,
		Offset:    offset,
		Label:     label,
		CreatedAt: time.Now(),
	}
}

// Display renders the bookmark for list views: `"label" at 1m30s`.
func (b Bookmark) Display() string {
	label := b.Label
	if label == "" {
		label = "bookmark"
	}
	return fmt.Sprintf("%q at %s", label, FormatDuration(b.Offset))
}
