package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbialy/lektor/internal/app/session/state"
	"github.com/wbialy/lektor/internal/domain/book"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveAndLoad(t *testing.T) {
	s := openTestStore(t)
	id := book.Identity("abc123")

	p := state.Playback{UnitIndex: 2, Offset: 5417 * time.Millisecond, Speed: 1.25, Volume: 0.7}
	marks := []book.Bookmark{
		book.NewBookmark(0, 10*time.Second, "start"),
		book.NewBookmark(2, 90*time.Second, ""),
	}
	require.NoError(t, s.Save(id, NewRecord(p, marks, true)))

	rec, err := s.Load(id)
	require.NoError(t, err)

	got := rec.Playback()
	assert.Equal(t, 2, got.UnitIndex)
	assert.Equal(t, 5417*time.Millisecond, got.Offset)
	assert.Equal(t, 1.25, got.Speed)
	assert.Equal(t, 0.7, got.Volume)
	assert.Equal(t, state.StatusStopped, got.Status)
	assert.True(t, rec.Antispoiler)

	restored := rec.BookmarkList()
	require.Len(t, restored, 2)
	assert.Equal(t, marks[0].ID, restored[0].ID)
	assert.Equal(t, "start", restored[0].Label)
	assert.Equal(t, 90*time.Second, restored[1].Offset)
}

func TestStore_LoadMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Load(book.Identity("never-saved"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_OverwriteKeepsLatest(t *testing.T) {
	s := openTestStore(t)
	id := book.Identity("abc123")

	require.NoError(t, s.Save(id, NewRecord(state.Playback{UnitIndex: 0, Offset: time.Second, Speed: 1}, nil, false)))
	require.NoError(t, s.Save(id, NewRecord(state.Playback{UnitIndex: 1, Offset: 9 * time.Second, Speed: 2}, nil, false)))

	rec, err := s.Load(id)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.UnitIndex)
	assert.Equal(t, int64(9000), rec.OffsetMs)
}

func TestStore_RecordsAreIndependentPerIdentity(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Save("book-a", NewRecord(state.Playback{UnitIndex: 1, Speed: 1}, nil, false)))
	require.NoError(t, s.Save("book-b", NewRecord(state.Playback{UnitIndex: 7, Speed: 1}, nil, true)))

	a, err := s.Load("book-a")
	require.NoError(t, err)
	b, err := s.Load("book-b")
	require.NoError(t, err)

	assert.Equal(t, 1, a.UnitIndex)
	assert.Equal(t, 7, b.UnitIndex)
	assert.False(t, a.Antispoiler)
	assert.True(t, b.Antispoiler)
}

func TestStore_CorruptRecordRejectedGracefully(t *testing.T) {
	s := openTestStore(t)
	id := book.Identity("abc123")

	// Plant garbage under the record key.
	require.NoError(t, s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(id), []byte("{not json"))
	}))

	_, err := s.Load(id)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestStore_FutureVersionRejectedGracefully(t *testing.T) {
	s := openTestStore(t)
	id := book.Identity("abc123")

	future, err := json.Marshal(Record{Version: 99, UnitIndex: 3})
	require.NoError(t, err)
	require.NoError(t, s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(id), future)
	}))

	_, err = s.Load(id)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestStore_Delete_Idempotent(t *testing.T) {
	s := openTestStore(t)
	id := book.Identity("abc123")

	require.NoError(t, s.Save(id, NewRecord(state.Playback{Speed: 1}, nil, false)))
	require.NoError(t, s.Delete(id))

	_, err := s.Load(id)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(id))
}

func TestStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	id := book.Identity("abc123")

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(id, NewRecord(state.Playback{UnitIndex: 1, Offset: 5 * time.Second, Speed: 1.5}, nil, false)))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()

	rec, err := s.Load(id)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.UnitIndex)
	assert.Equal(t, int64(5000), rec.OffsetMs)
}
