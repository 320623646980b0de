package store

import (
	"time"

	"github.com/wbialy/lektor/internal/app/session/state"
	"github.com/wbialy/lektor/internal/domain/book"
)

// schemaVersion is the current persisted record format. Records carrying
// any other version are rejected gracefully at load.
const schemaVersion = 1

// Record is the serialized session snapshot for one audiobook. Offsets
// are stored in milliseconds so the format does not depend on Go's
// duration encoding.
type Record struct {
	Version     int              `json:"version"`
	UnitIndex   int              `json:"unit_index"`
	OffsetMs    int64            `json:"offset_ms"`
	Speed       float64          `json:"speed"`
	Volume      float64          `json:"volume"`
	Antispoiler bool             `json:"antispoiler"`
	Bookmarks   []BookmarkRecord `json:"bookmarks,omitempty"`
	SavedAt     time.Time        `json:"saved_at"`
}

// BookmarkRecord is one serialized bookmark.
type BookmarkRecord struct {
	ID        string    `json:"id"`
	UnitIndex int       `json:"unit_index"`
	OffsetMs  int64     `json:"offset_ms"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRecord builds a record from live session values.
func NewRecord(p state.Playback, marks []book.Bookmark, antispoiler bool) *Record {
	rec := &Record{
		Version:     schemaVersion,
		UnitIndex:   p.UnitIndex,
		OffsetMs:    p.Offset.Milliseconds(),
		Speed:       p.Speed,
		Volume:      p.Volume,
		Antispoiler: antispoiler,
		SavedAt:     time.Now(),
	}
	for _, b := range marks {
		rec.Bookmarks = append(rec.Bookmarks, BookmarkRecord{
			ID:        b.ID,
			UnitIndex: b.UnitIndex,
			OffsetMs:  b.Offset.Milliseconds(),
			Label:     b.Label,
			CreatedAt: b.CreatedAt,
		})
	}
	return rec
}

// Playback converts the record back into a state snapshot. The state
// manager re-validates ranges against the fresh catalog on restore.
func (r *Record) Playback() state.Playback {
	return state.Playback{
		UnitIndex: r.UnitIndex,
		Offset:    time.Duration(r.OffsetMs) * time.Millisecond,
		Speed:     r.Speed,
		Volume:    r.Volume,
		Status:    state.StatusStopped,
	}
}

// BookmarkList converts the serialized bookmarks back to domain values.
func (r *Record) BookmarkList() []book.Bookmark {
	out := make([]book.Bookmark, 0, len(r.Bookmarks))
	for _, b := range r.Bookmarks {
		out = append(out, book.Bookmark{
			ID:        b.ID,
			UnitIndex: b.UnitIndex,
			Offset:    time.Duration(b.OffsetMs) * time.Millisecond,
			Label:     b.Label,
			CreatedAt: b.CreatedAt,
		})
	}
	return out
}
