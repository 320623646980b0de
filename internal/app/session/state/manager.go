package state

import (
	"sync"
	"time"

	"github.com/wbialy/lektor/internal/domain/book"
)

// Bounds configures the speed and volume clamps.
type Bounds struct {
	MinSpeed float64
	MaxSpeed float64
}

// Manager owns the live playback state and serializes every mutation.
// One control path (user commands) and one feedback path (engine ticks)
// converge here; both funnel position changes through the same clamped
// setter.
type Manager struct {
	mu sync.RWMutex

	catalog *book.Catalog
	cur     Playback
	bounds  Bounds
}

// New creates a manager with the default state: unit 0, offset 0, speed
// 1.0x, stopped.
func New(catalog *book.Catalog, bounds Bounds) *Manager {
	return &Manager{
		catalog: catalog,
		bounds:  bounds,
		cur: Playback{
			UnitIndex: 0,
			Offset:    0,
			Speed:     1.0,
			Volume:    0.5,
			Status:    StatusStopped,
		},
	}
}

// Restore seeds the state from a persisted snapshot. A unit index out of
// range for the freshly resolved catalog (the source's unit count may
// have changed between runs) falls back to the defaults: unit 0, offset
// 0, speed 1.0x, Stopped. Volume keeps the persisted value clamped to
// its range.
func (m *Manager) Restore(p Playback) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cur.Volume = clamp(p.Volume, 0, 1)
	m.cur.Status = StatusStopped

	if p.UnitIndex < 0 || p.UnitIndex >= m.catalog.Len() {
		m.cur.UnitIndex = 0
		m.cur.Offset = 0
		m.cur.Speed = 1.0
		return
	}

	m.cur.UnitIndex = p.UnitIndex
	m.cur.Offset = m.clampOffsetLocked(p.UnitIndex, p.Offset)
	m.cur.Speed = clamp(p.Speed, m.bounds.MinSpeed, m.bounds.MaxSpeed)
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Playback {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// Status returns the current status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur.Status
}

// Catalog returns the resolved catalog the state is bound to.
func (m *Manager) Catalog() *book.Catalog {
	return m.catalog
}

// Play transitions to Playing. It is a no-op when already playing and
// fails with book.ErrEmptyCatalog when there is nothing to play.
func (m *Manager) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.catalog.Len() == 0 {
		return book.ErrEmptyCatalog
	}
	m.cur.Status = StatusPlaying
	return nil
}

// Pause transitions to Paused. Pausing while stopped or already paused
// is a no-op.
func (m *Manager) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.catalog.Len() == 0 {
		return book.ErrEmptyCatalog
	}
	if m.cur.Status == StatusPlaying {
		m.cur.Status = StatusPaused
	}
	return nil
}

// Stop transitions to Stopped without touching the position.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur.Status = StatusStopped
}

// SeekTo moves the position to (unitIndex, offset). The unit index is
// clamped to the valid range and the offset to [0, unit duration] when
// the duration is known. Overshooting a known duration clamps to the end
// of the unit; only the engine's end-of-stream advances to the next one.
// Returns the state after the seek.
func (m *Manager) SeekTo(unitIndex int, offset time.Duration) (Playback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.catalog.Len() == 0 {
		return m.cur, book.ErrEmptyCatalog
	}

	if unitIndex < 0 {
		unitIndex = 0
	}
	if unitIndex >= m.catalog.Len() {
		unitIndex = m.catalog.Len() - 1
	}

	m.cur.UnitIndex = unitIndex
	m.cur.Offset = m.clampOffsetLocked(unitIndex, offset)
	return m.cur, nil
}

// Tick applies a periodic position report from the engine. Reports whose
// unit index does not match the currently selected unit are stale async
// callbacks and are discarded.
func (m *Manager) Tick(unitIndex int, offset time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if unitIndex != m.cur.UnitIndex {
		return false
	}
	m.cur.Offset = m.clampOffsetLocked(unitIndex, offset)
	return true
}

// Advance moves to the next unit at offset 0 when the engine reports
// end-of-unit, or transitions to Stopped when the last unit finished.
// The second return value is false when playback stopped.
func (m *Manager) Advance() (Playback, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.cur.UnitIndex + 1
	if next >= m.catalog.Len() {
		m.cur.Status = StatusStopped
		if d := m.catalog.UnitDuration(m.cur.UnitIndex); d > 0 {
			m.cur.Offset = d
		}
		return m.cur, false
	}

	m.cur.UnitIndex = next
	m.cur.Offset = 0
	return m.cur, true
}

// SetSpeed sets the speed multiplier, clamped to the configured bounds.
// Takes effect regardless of status. Returns the effective value.
func (m *Manager) SetSpeed(multiplier float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cur.Speed = clamp(multiplier, m.bounds.MinSpeed, m.bounds.MaxSpeed)
	return m.cur.Speed
}

// Speed returns the current speed multiplier.
func (m *Manager) Speed() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur.Speed
}

// SetVolume sets the volume level, clamped to [0, 1]. Returns the
// effective value.
func (m *Manager) SetVolume(level float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cur.Volume = clamp(level, 0, 1)
	return m.cur.Volume
}

// clampOffsetLocked clamps an offset into [0, unit duration] when the
// duration is known. Must be called with m.mu held.
func (m *Manager) clampOffsetLocked(unitIndex int, offset time.Duration) time.Duration {
	if offset < 0 {
		return 0
	}
	if d := m.catalog.UnitDuration(unitIndex); d > 0 && offset > d {
		return d
	}
	return offset
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
