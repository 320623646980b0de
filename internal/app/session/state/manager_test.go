package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbialy/lektor/internal/domain/book"
)

func threeChapterCatalog() *book.Catalog {
	return &book.Catalog{
		Path:  "/books/dune.m4b",
		Title: "Dune",
		Units: []book.Unit{
			{Index: 0, Title: "One", Duration: 100 * time.Second},
			{Index: 1, Title: "Two", Duration: 200 * time.Second},
			{Index: 2, Title: "Three", Duration: 150 * time.Second},
		},
	}
}

func defaultBounds() Bounds {
	return Bounds{MinSpeed: 0.5, MaxSpeed: 3.0}
}

func TestManager_Defaults(t *testing.T) {
	m := New(threeChapterCatalog(), defaultBounds())

	p := m.Snapshot()
	assert.Equal(t, 0, p.UnitIndex)
	assert.Equal(t, time.Duration(0), p.Offset)
	assert.Equal(t, 1.0, p.Speed)
	assert.Equal(t, StatusStopped, p.Status)
}

func TestManager_Restore(t *testing.T) {
	tests := []struct {
		name      string
		saved     Playback
		wantUnit  int
		wantOff   time.Duration
		wantSpeed float64
	}{
		{
			name:      "valid snapshot",
			saved:     Playback{UnitIndex: 1, Offset: 42 * time.Second, Speed: 1.5, Volume: 0.5},
			wantUnit:  1,
			wantOff:   42 * time.Second,
			wantSpeed: 1.5,
		},
		{
			name:      "unit index beyond catalog resets position and speed",
			saved:     Playback{UnitIndex: 7, Offset: 42 * time.Second, Speed: 1.5},
			wantUnit:  0,
			wantOff:   0,
			wantSpeed: 1.0,
		},
		{
			name:      "negative unit index resets position and speed",
			saved:     Playback{UnitIndex: -2, Offset: 42 * time.Second, Speed: 2.0},
			wantUnit:  0,
			wantOff:   0,
			wantSpeed: 1.0,
		},
		{
			name:      "offset beyond unit duration clamps",
			saved:     Playback{UnitIndex: 0, Offset: time.Hour, Speed: 1.0},
			wantUnit:  0,
			wantOff:   100 * time.Second,
			wantSpeed: 1.0,
		},
		{
			name:      "out of bounds speed clamps",
			saved:     Playback{UnitIndex: 0, Speed: 9.0},
			wantUnit:  0,
			wantOff:   0,
			wantSpeed: 3.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(threeChapterCatalog(), defaultBounds())
			m.Restore(tt.saved)

			p := m.Snapshot()
			assert.Equal(t, tt.wantUnit, p.UnitIndex)
			assert.Equal(t, tt.wantOff, p.Offset)
			assert.Equal(t, tt.wantSpeed, p.Speed)
			assert.Equal(t, StatusStopped, p.Status)
		})
	}
}

func TestManager_PlayPause(t *testing.T) {
	m := New(threeChapterCatalog(), defaultBounds())

	require.NoError(t, m.Play())
	assert.Equal(t, StatusPlaying, m.Status())

	// Playing again is a no-op.
	require.NoError(t, m.Play())
	assert.Equal(t, StatusPlaying, m.Status())

	require.NoError(t, m.Pause())
	assert.Equal(t, StatusPaused, m.Status())

	// Pausing while paused stays paused.
	require.NoError(t, m.Pause())
	assert.Equal(t, StatusPaused, m.Status())

	// Pausing while stopped does not start anything.
	m.Stop()
	require.NoError(t, m.Pause())
	assert.Equal(t, StatusStopped, m.Status())
}

func TestManager_EmptyCatalog(t *testing.T) {
	m := New(&book.Catalog{}, defaultBounds())

	assert.ErrorIs(t, m.Play(), book.ErrEmptyCatalog)
	assert.ErrorIs(t, m.Pause(), book.ErrEmptyCatalog)
	_, err := m.SeekTo(0, 0)
	assert.ErrorIs(t, err, book.ErrEmptyCatalog)
}

func TestManager_SeekTo_Clamps(t *testing.T) {
	m := New(threeChapterCatalog(), defaultBounds())

	// Offset overshoot clamps to the unit's known duration.
	p, err := m.SeekTo(0, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, p.UnitIndex)
	assert.Equal(t, 100*time.Second, p.Offset)

	// Negative offset clamps to zero.
	p, err = m.SeekTo(1, -5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, p.UnitIndex)
	assert.Equal(t, time.Duration(0), p.Offset)

	// Unit index clamps to the valid range.
	p, err = m.SeekTo(99, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, p.UnitIndex)

	p, err = m.SeekTo(-3, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, p.UnitIndex)
}

func TestManager_Tick_DiscardsStale(t *testing.T) {
	m := New(threeChapterCatalog(), defaultBounds())
	_, err := m.SeekTo(1, 0)
	require.NoError(t, err)

	// Tick for the selected unit applies.
	assert.True(t, m.Tick(1, 30*time.Second))
	assert.Equal(t, 30*time.Second, m.Snapshot().Offset)

	// Stale tick for another unit is discarded.
	assert.False(t, m.Tick(0, 99*time.Second))
	assert.Equal(t, 30*time.Second, m.Snapshot().Offset)
	assert.Equal(t, 1, m.Snapshot().UnitIndex)
}

func TestManager_Advance(t *testing.T) {
	m := New(threeChapterCatalog(), defaultBounds())
	require.NoError(t, m.Play())

	p, ok := m.Advance()
	assert.True(t, ok)
	assert.Equal(t, 1, p.UnitIndex)
	assert.Equal(t, time.Duration(0), p.Offset)

	p, ok = m.Advance()
	assert.True(t, ok)
	assert.Equal(t, 2, p.UnitIndex)

	// Advancing past the last unit stops playback at its end.
	p, ok = m.Advance()
	assert.False(t, ok)
	assert.Equal(t, StatusStopped, p.Status)
	assert.Equal(t, 2, p.UnitIndex)
	assert.Equal(t, 150*time.Second, p.Offset)
}

func TestManager_SetSpeed_AlwaysWithinBounds(t *testing.T) {
	m := New(threeChapterCatalog(), defaultBounds())

	// Arbitrary sequences of adjustments never escape the bounds.
	steps := []float64{0.25, -1, 10, 2.75, 0.5, 3.25, 1.0, 0}
	for _, s := range steps {
		got := m.SetSpeed(s)
		assert.GreaterOrEqual(t, got, 0.5)
		assert.LessOrEqual(t, got, 3.0)
		assert.Equal(t, got, m.Speed())
	}

	assert.Equal(t, 2.0, m.SetSpeed(2.0))
}

func TestManager_SetSpeed_IndependentOfStatus(t *testing.T) {
	m := New(threeChapterCatalog(), defaultBounds())

	assert.Equal(t, 1.25, m.SetSpeed(1.25))
	require.NoError(t, m.Play())
	assert.Equal(t, 1.5, m.SetSpeed(1.5))
	require.NoError(t, m.Pause())
	assert.Equal(t, 0.75, m.SetSpeed(0.75))
}

func TestManager_SetVolume(t *testing.T) {
	m := New(threeChapterCatalog(), defaultBounds())

	assert.Equal(t, 0.8, m.SetVolume(0.8))
	assert.Equal(t, 1.0, m.SetVolume(4.2))
	assert.Equal(t, 0.0, m.SetVolume(-1))
}
