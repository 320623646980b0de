// Package session provides the audiobook session manager.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/wbialy/lektor/internal/app/bookmarks"
	"github.com/wbialy/lektor/internal/app/notify"
	"github.com/wbialy/lektor/internal/app/playback"
	"github.com/wbialy/lektor/internal/app/session/state"
	"github.com/wbialy/lektor/internal/app/spoiler"
	"github.com/wbialy/lektor/internal/domain/book"
	"github.com/wbialy/lektor/internal/infra/config"
	"github.com/wbialy/lektor/internal/infra/store"
)

// messageTickInterval drives the status message bar.
const messageTickInterval = 250 * time.Millisecond

// Manager owns one audiobook session: the live state, the bookmarks,
// the playback controller, the persistence record and the subscriber
// notifications. All user commands funnel through Apply under one
// mutex; engine feedback arrives through the controller's event stream.
type Manager struct {
	mu sync.Mutex

	config  *config.Config
	catalog *book.Catalog

	states     *state.Manager
	marks      *bookmarks.Store
	controller *playback.Controller
	notify     *notify.Manager
	store      *store.Store

	antispoiler bool

	cancel   context.CancelFunc
	done     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
}

// NewManager wires the session over a resolved catalog. A persisted
// record for the book is restored when present; a corrupt one is
// discarded with a status message, never an error. The antispoiler
// flag from the command line ORs with the persisted value.
func NewManager(
	cfg *config.Config,
	catalog *book.Catalog,
	engine playback.Engine,
	st *store.Store,
	antispoiler bool,
) (*Manager, error) {
	states := state.New(catalog, state.Bounds{
		MinSpeed: cfg.Playback.MinSpeed,
		MaxSpeed: cfg.Playback.MaxSpeed,
	})

	m := &Manager{
		config:      cfg,
		catalog:     catalog,
		states:      states,
		marks:       bookmarks.New(catalog),
		controller:  playback.NewController(engine, states),
		notify:      notify.NewManager(time.Duration(cfg.Messages.TimeoutSec) * time.Second),
		store:       st,
		antispoiler: antispoiler || cfg.Spoiler.Enabled,
		done:        make(chan struct{}),
		quit:        make(chan struct{}),
	}

	if err := m.restore(); err != nil {
		return nil, err
	}
	return m, nil
}

// restore seeds state and bookmarks from the persisted record.
func (m *Manager) restore() error {
	rec, err := m.store.Load(m.catalog.Identity)
	switch {
	case err == nil:
		m.states.Restore(rec.Playback())
		m.marks.Replace(rec.BookmarkList())
		m.antispoiler = m.antispoiler || rec.Antispoiler
		zlog.Info().
			Str("identity", string(m.catalog.Identity)).
			Int("unit", rec.UnitIndex).
			Int64("offset_ms", rec.OffsetMs).
			Msg("Restored session")
		return nil

	case errors.Is(err, store.ErrNotFound):
		zlog.Info().Str("identity", string(m.catalog.Identity)).Msg("No saved session, starting fresh")
		return nil

	case errors.Is(err, store.ErrCorrupt):
		zlog.Warn().Err(err).Msg("Saved session unreadable, starting fresh")
		m.notify.Push(m.config.GetMessage("state_corrupt"))
		return nil

	default:
		return errors.Wrap(err, "failed to load saved session")
	}
}

// Start loads the current unit into the engine and spawns the event and
// snapshot loops. They run until ctx is cancelled or Close is called.
func (m *Manager) Start(ctx context.Context) error {
	ctx, m.cancel = context.WithCancel(ctx)

	m.controller.Start(ctx)
	if err := m.controller.LoadCurrent(); err != nil {
		if !errors.Is(err, playback.ErrEngine) {
			return err
		}
		// Recoverable: the session runs, the next command retries.
		m.notify.Push(m.config.GetMessage("engine_error"))
	}

	go m.run(ctx)

	m.broadcast()
	return nil
}

// Updates subscribes to session snapshots. Callers must Unsubscribe
// with the returned ID when done.
func (m *Manager) Updates() (string, <-chan notify.Update) {
	return m.notify.Subscribe()
}

// Unsubscribe removes an update subscription.
func (m *Manager) Unsubscribe(id string) {
	m.notify.Unsubscribe(id)
}

// Quit returns a channel closed when a quit command was applied.
func (m *Manager) Quit() <-chan struct{} {
	return m.quit
}

// Done returns a channel closed when the background loops exited.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Antispoiler reports whether chapter masking is active.
func (m *Manager) Antispoiler() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.antispoiler
}

// Bookmarks returns the current bookmark list.
func (m *Manager) Bookmarks() []book.Bookmark {
	return m.marks.List()
}

// Chapters returns the spoiler-safe chapter listing.
func (m *Manager) Chapters() []spoiler.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return spoiler.Visible(m.catalog.Units, m.states.Snapshot().UnitIndex, m.antispoiler)
}

// PushMessage queues a status message for the message bar.
func (m *Manager) PushMessage(msg string) {
	m.notify.Push(msg)
}

// Snapshot returns the current playback state.
func (m *Manager) Snapshot() state.Playback {
	return m.states.Snapshot()
}

// Apply executes one user command. Recoverable failures (engine errors,
// invalid positions) become status messages and a nil return; anything
// else is reported to the caller.
func (m *Manager) Apply(cmd Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	zlog.Debug().Str("command", cmd.Type.String()).Msg("Applying command")

	var err error
	switch cmd.Type {
	case CmdPlayPause:
		err = m.controller.PlayPause()

	case CmdSeekForward:
		err = m.controller.SeekBy(m.seekStep())

	case CmdSeekBack:
		err = m.controller.SeekBy(-m.seekStep())

	case CmdNextUnit:
		p := m.states.Snapshot()
		err = m.controller.SeekTo(p.UnitIndex+1, 0)

	case CmdPrevUnit:
		p := m.states.Snapshot()
		err = m.controller.SeekTo(p.UnitIndex-1, 0)

	case CmdSeekToUnit:
		err = m.controller.SeekTo(cmd.UnitIndex, 0)

	case CmdSpeedUp:
		_, err = m.controller.SetSpeed(m.states.Speed() + m.config.Playback.SpeedStep)

	case CmdSpeedDown:
		_, err = m.controller.SetSpeed(m.states.Speed() - m.config.Playback.SpeedStep)

	case CmdSetSpeed:
		_, err = m.controller.SetSpeed(cmd.Value)

	case CmdVolumeUp:
		_, err = m.controller.SetVolume(m.states.Snapshot().Volume + m.config.Playback.VolumeStep)

	case CmdVolumeDown:
		_, err = m.controller.SetVolume(m.states.Snapshot().Volume - m.config.Playback.VolumeStep)

	case CmdAddBookmark:
		p := m.states.Snapshot()
		var b book.Bookmark
		if b, err = m.marks.Add(p.UnitIndex, p.Offset, cmd.Label); err == nil {
			m.notify.Push("Added " + b.Display())
		}

	case CmdRemoveBookmark:
		m.marks.Remove(cmd.BookmarkID)

	case CmdRenameBookmark:
		if m.marks.Rename(cmd.BookmarkID, cmd.Label) != nil {
			m.notify.Push(m.config.GetMessage("invalid_position"))
		}

	case CmdJumpToBookmark:
		unit, offset, ok := m.marks.JumpTarget(cmd.BookmarkID)
		if !ok {
			m.notify.Push(m.config.GetMessage("invalid_position"))
			break
		}
		err = m.controller.SeekTo(unit, offset)

	case CmdToggleSpoiler:
		m.antispoiler = !m.antispoiler

	case CmdQuit:
		m.quitOnce.Do(func() { close(m.quit) })

	default:
		return errors.Newf("unknown command: %d", cmd.Type)
	}

	if err != nil {
		switch {
		case errors.Is(err, playback.ErrEngine):
			m.notify.Push(m.config.GetMessage("engine_error"))
			err = nil
		case errors.Is(err, book.ErrInvalidPosition):
			m.notify.Push(m.config.GetMessage("invalid_position"))
			err = nil
		}
	}

	m.broadcastLocked()
	return err
}

// Close flushes the final position, persists the record and stops the
// background loops. Safe to call once.
func (m *Manager) Close() {
	m.controller.Close()

	m.mu.Lock()
	m.saveLocked()
	m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
	m.notify.Close()
}

// run consumes controller events and drives the periodic snapshot save
// and the message bar.
func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	snapshot := time.NewTicker(time.Duration(m.config.Playback.SnapshotIntervalSec) * time.Second)
	defer snapshot.Stop()
	messages := time.NewTicker(messageTickInterval)
	defer messages.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-m.controller.Events():
			if !ok {
				return
			}
			m.handleEvent(ev)

		case <-snapshot.C:
			m.mu.Lock()
			m.saveLocked()
			m.mu.Unlock()

		case <-messages.C:
			if m.notify.Tick() {
				m.broadcast()
			}
		}
	}
}

// handleEvent folds one controller event into the session.
func (m *Manager) handleEvent(ev playback.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Type {
	case playback.EventBookEnded:
		m.notify.Push(m.config.GetMessage("book_finished"))
		m.saveLocked()

	case playback.EventEngineError:
		m.notify.Push(m.config.GetMessage("engine_error"))

	case playback.EventUnitStarted:
		m.saveLocked()
	}

	m.broadcastLocked()
}

// saveLocked persists the current record. Persistence failures are
// logged and surfaced as a status message; they never interrupt
// playback. Must be called with m.mu held.
func (m *Manager) saveLocked() {
	rec := store.NewRecord(m.states.Snapshot(), m.marks.List(), m.antispoiler)
	if err := m.store.Save(m.catalog.Identity, rec); err != nil {
		zlog.Error().Err(err).Msg("Failed to save session")
	}
}

// broadcast pushes a full snapshot to subscribers.
func (m *Manager) broadcast() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcastLocked()
}

func (m *Manager) broadcastLocked() {
	p := m.states.Snapshot()

	var title string
	if u, ok := m.catalog.Unit(p.UnitIndex); ok {
		title = u.Title
	}

	m.notify.Broadcast(notify.Update{
		UnitIndex: p.UnitIndex,
		UnitTitle: title,
		Position:  p.Offset,
		Duration:  m.catalog.UnitDuration(p.UnitIndex),
		Speed:     p.Speed,
		Volume:    p.Volume,
		Status:    p.Status,
		Chapters:  spoiler.Visible(m.catalog.Units, p.UnitIndex, m.antispoiler),
		Bookmarks: m.marks.List(),
	})
}

func (m *Manager) seekStep() time.Duration {
	return time.Duration(m.config.Playback.SeekStepSec) * time.Second
}
