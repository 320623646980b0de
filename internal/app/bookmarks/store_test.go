package bookmarks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbialy/lektor/internal/domain/book"
)

func testCatalog() *book.Catalog {
	return &book.Catalog{
		Units: []book.Unit{
			{Index: 0, Title: "One", Duration: 100 * time.Second},
			{Index: 1, Title: "Two", Duration: 200 * time.Second},
			{Index: 2, Title: "Three"}, // unknown duration
		},
	}
}

func TestStore_AddAndList(t *testing.T) {
	s := New(testCatalog())

	b1, err := s.Add(1, 50*time.Second, "later")
	require.NoError(t, err)
	b2, err := s.Add(0, 10*time.Second, "early")
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, b2.ID, list[0].ID)
	assert.Equal(t, b1.ID, list[1].ID)
}

func TestStore_Add_InvalidPosition(t *testing.T) {
	s := New(testCatalog())

	_, err := s.Add(0, 101*time.Second, "")
	assert.ErrorIs(t, err, book.ErrInvalidPosition)

	_, err = s.Add(5, 0, "")
	assert.ErrorIs(t, err, book.ErrInvalidPosition)

	_, err = s.Add(0, -time.Second, "")
	assert.ErrorIs(t, err, book.ErrInvalidPosition)

	// A unit with unknown duration accepts any non-negative offset.
	_, err = s.Add(2, 9*time.Hour, "")
	assert.NoError(t, err)
}

func TestStore_OrderingWithInsertionTiebreak(t *testing.T) {
	s := New(testCatalog())

	first, err := s.Add(1, 30*time.Second, "first")
	require.NoError(t, err)
	second, err := s.Add(1, 30*time.Second, "second")
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
}

func TestStore_Remove_Idempotent(t *testing.T) {
	s := New(testCatalog())

	b, err := s.Add(0, 5*time.Second, "bk")
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())

	s.Remove(b.ID)
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.List())

	// Removing the same ID again has no effect and reports no error.
	s.Remove(b.ID)
	assert.Equal(t, 0, s.Len())

	s.Remove("no-such-id")
	assert.Equal(t, 0, s.Len())
}

func TestStore_JumpTarget(t *testing.T) {
	s := New(testCatalog())

	b, err := s.Add(1, 75*time.Second, "bk")
	require.NoError(t, err)

	unit, offset, ok := s.JumpTarget(b.ID)
	require.True(t, ok)
	assert.Equal(t, 1, unit)
	assert.Equal(t, 75*time.Second, offset)

	_, _, ok = s.JumpTarget("missing")
	assert.False(t, ok)
}

func TestStore_Rename(t *testing.T) {
	s := New(testCatalog())

	b, err := s.Add(0, 5*time.Second, "old")
	require.NoError(t, err)

	require.NoError(t, s.Rename(b.ID, "new"))
	assert.Equal(t, "new", s.List()[0].Label)
	// Position and identity are untouched by a label edit.
	assert.Equal(t, b.ID, s.List()[0].ID)
	assert.Equal(t, b.Offset, s.List()[0].Offset)

	assert.Error(t, s.Rename("missing", "x"))
}

func TestStore_Replace(t *testing.T) {
	s := New(testCatalog())

	restored := []book.Bookmark{
		book.NewBookmark(1, 20*time.Second, "a"),
		book.NewBookmark(0, 10*time.Second, "b"),
	}
	s.Replace(restored)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].Label)
	assert.Equal(t, "a", list[1].Label)
}
