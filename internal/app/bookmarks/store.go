// Package bookmarks provides the ordered collection of user bookmarks
// for the current audiobook.
package bookmarks

import (
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/wbialy/lektor/internal/domain/book"
)

// Store holds the bookmarks for one audiobook. Ordering is by unit index,
// then offset, with insertion order as the tiebreak.
type Store struct {
	mu      sync.RWMutex
	catalog *book.Catalog
	items   []book.Bookmark
}

// New creates an empty store bound to a catalog. The catalog is only
// consulted for duration validation.
func New(catalog *book.Catalog) *Store {
	return &Store{catalog: catalog}
}

// Add creates a bookmark at the given position. Fails with
// book.ErrInvalidPosition when the offset exceeds the addressed unit's
// known duration or the unit does not exist.
func (s *Store) Add(unitIndex int, offset time.Duration, label string) (book.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.catalog.Unit(unitIndex)
	if !ok {
		return book.Bookmark{}, errors.Wrapf(book.ErrInvalidPosition, "unit %d does not exist", unitIndex)
	}
	if offset < 0 || (u.DurationKnown() && offset > u.Duration) {
		return book.Bookmark{}, errors.Wrapf(book.ErrInvalidPosition, "offset %s outside unit %d", offset, unitIndex)
	}

	b := book.NewBookmark(unitIndex, offset, label)
	s.items = append(s.items, b)
	return b, nil
}

// Remove deletes the bookmark with the given ID. Removing a nonexistent
// ID is a no-op, so removal is idempotent.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, b := range s.items {
		if b.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

// Rename changes a bookmark's label, the only mutation bookmarks allow.
func (s *Store) Rename(id, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Label = label
			return nil
		}
	}
	return errors.Newf("bookmark %s not found", id)
}

// List returns the bookmarks ordered by unit index then offset, with
// insertion order breaking ties.
func (s *Store) List() []book.Bookmark {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]book.Bookmark, len(s.items))
	copy(out, s.items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UnitIndex != out[j].UnitIndex {
			return out[i].UnitIndex < out[j].UnitIndex
		}
		return out[i].Offset < out[j].Offset
	})
	return out
}

// JumpTarget returns the seek target for a bookmark.
func (s *Store) JumpTarget(id string) (unitIndex int, offset time.Duration, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.items {
		if b.ID == id {
			return b.UnitIndex, b.Offset, true
		}
	}
	return 0, 0, false
}

// Len returns the number of bookmarks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Replace swaps in a restored bookmark list, keeping its order as the
// insertion order. Used when seeding from the persistence layer.
func (s *Store) Replace(items []book.Bookmark) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make([]book.Bookmark, len(items))
	copy(s.items, items)
}
