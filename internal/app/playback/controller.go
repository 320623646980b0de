package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/wbialy/lektor/internal/app/session/state"
	"github.com/wbialy/lektor/internal/domain/book"
)

// ErrEngine wraps failures reported by the external engine. They are
// recoverable: state is left paused and the next user command retries.
var ErrEngine = errors.New("playback engine failure")

// Controller translates user commands into engine calls and feeds the
// engine's position/end-of-stream events back into the state manager.
//
// Commands are serialized under one mutex. Engine events arrive on their
// own goroutine and may have been queued before the latest repositioning
// command; the engine echoes its Load/Seek sequence on every event, and
// events tagged with an older sequence are discarded so a stale tick can
// never overwrite the effect of a newer command (newer sequence wins).
type Controller struct {
	mu sync.Mutex

	engine Engine
	states *state.Manager

	// Mirror of the engine's Load/Seek sequence. Engine calls are
	// serialized under mu, so counting them here stays in lockstep with
	// the sequence the engine echoes on its events.
	engineSeq uint64

	events chan Event

	cancel context.CancelFunc
	done   chan struct{}
}

// NewController creates a controller over the given engine and state.
func NewController(engine Engine, states *state.Manager) *Controller {
	return &Controller{
		engine: engine,
		states: states,
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
}

// Events returns the controller's event stream.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Start begins consuming engine events until ctx is cancelled or Close
// is called.
func (c *Controller) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.eventLoop(ctx)
}

// LoadCurrent loads the unit the state manager currently points at and
// positions the engine at the saved offset, paused. Speed and volume are
// applied so a later Play resumes with the restored settings.
func (c *Controller) LoadCurrent() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.states.Snapshot()
	return c.loadLocked(p.UnitIndex, p.Offset)
}

// PlayPause toggles between playing and paused.
func (c *Controller) PlayPause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.states.Status() == state.StatusPlaying {
		return c.pauseLocked()
	}
	return c.playLocked()
}

// Play starts or resumes playback.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playLocked()
}

// Pause pauses playback.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pauseLocked()
}

func (c *Controller) playLocked() error {
	if err := c.states.Play(); err != nil {
		return err
	}
	if err := c.engine.Play(); err != nil {
		return c.engineFailedLocked(err)
	}
	c.emit(Event{Type: EventStateChanged, Playback: c.states.Snapshot()})
	return nil
}

func (c *Controller) pauseLocked() error {
	if err := c.states.Pause(); err != nil {
		return err
	}
	if err := c.engine.Pause(); err != nil {
		return c.engineFailedLocked(err)
	}
	c.emit(Event{Type: EventStateChanged, Playback: c.states.Snapshot()})
	return nil
}

// SeekTo moves playback to (unitIndex, offset), loading a different unit
// when needed. Clamping happens in the state manager; the engine is then
// driven to the clamped position.
func (c *Controller) SeekTo(unitIndex int, offset time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.states.Snapshot()
	p, err := c.states.SeekTo(unitIndex, offset)
	if err != nil {
		return err
	}

	if p.UnitIndex != prev.UnitIndex {
		if err := c.loadLocked(p.UnitIndex, p.Offset); err != nil {
			return err
		}
		if prev.Status == state.StatusPlaying {
			if err := c.engine.Play(); err != nil {
				return c.engineFailedLocked(err)
			}
		}
		c.emit(Event{Type: EventUnitStarted, Playback: c.states.Snapshot()})
		return nil
	}

	c.engineSeq++
	if err := c.engine.Seek(p.Offset); err != nil {
		return c.engineFailedLocked(err)
	}
	c.emit(Event{Type: EventPosition, Playback: c.states.Snapshot()})
	return nil
}

// SeekBy seeks relative to the current position within the current unit.
func (c *Controller) SeekBy(delta time.Duration) error {
	p := c.states.Snapshot()
	return c.SeekTo(p.UnitIndex, p.Offset+delta)
}

// SetSpeed applies a clamped speed multiplier immediately, independent
// of status.
func (c *Controller) SetSpeed(multiplier float64) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	effective := c.states.SetSpeed(multiplier)
	if err := c.engine.SetRate(effective); err != nil {
		return effective, c.engineFailedLocked(err)
	}
	c.emit(Event{Type: EventStateChanged, Playback: c.states.Snapshot()})
	return effective, nil
}

// SetVolume applies a clamped volume level.
func (c *Controller) SetVolume(level float64) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	effective := c.states.SetVolume(level)
	if err := c.engine.SetVolume(effective); err != nil {
		return effective, c.engineFailedLocked(err)
	}
	c.emit(Event{Type: EventStateChanged, Playback: c.states.Snapshot()})
	return effective, nil
}

// Flush folds the engine's last known position into the session state.
// Called on shutdown so resume precision does not depend on the engine's
// last periodic tick.
func (c *Controller) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pos, ok := c.engine.Position(); ok {
		p := c.states.Snapshot()
		c.states.Tick(p.UnitIndex, pos)
	}
}

// Close flushes the final position, stops the engine, and ends the event
// loop.
func (c *Controller) Close() {
	c.Flush()

	c.mu.Lock()
	c.states.Stop()
	if err := c.engine.Stop(); err != nil {
		zlog.Warn().Err(err).Msg("playback: engine stop failed")
	}
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	close(c.events)
}

// loadLocked builds the engine load command from the unit's source
// variant and applies the current speed and volume. Must be called with
// c.mu held.
func (c *Controller) loadLocked(unitIndex int, offset time.Duration) error {
	unit, ok := c.states.Catalog().Unit(unitIndex)
	if !ok {
		return errors.Wrapf(book.ErrInvalidPosition, "unit %d does not exist", unitIndex)
	}

	c.engineSeq++
	if err := c.engine.Load(unit.Source, offset); err != nil {
		return c.engineFailedLocked(err)
	}

	p := c.states.Snapshot()
	if err := c.engine.SetRate(p.Speed); err != nil {
		return c.engineFailedLocked(err)
	}
	if err := c.engine.SetVolume(p.Volume); err != nil {
		return c.engineFailedLocked(err)
	}
	return nil
}

// engineFailedLocked converts an engine error into the recoverable
// ErrEngine, pauses the state so a retry is possible, and reports the
// failure upward. Must be called with c.mu held.
func (c *Controller) engineFailedLocked(err error) error {
	wrapped := errors.Mark(err, ErrEngine)
	zlog.Warn().Err(err).Msg("playback: engine command failed")

	if c.states.Status() == state.StatusPlaying {
		_ = c.states.Pause()
	}
	c.emit(Event{Type: EventEngineError, Playback: c.states.Snapshot(), Err: wrapped})
	return wrapped
}

func (c *Controller) eventLoop(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.engine.Events():
			if !ok {
				return
			}
			c.handleEngineEvent(ev)
		}
	}
}

func (c *Controller) handleEngineEvent(ev EngineEvent) {
	switch ev.Type {
	case EnginePosition:
		c.mu.Lock()
		// The tick was queued before the latest load or seek; applying
		// it would revert the position to where playback was earlier.
		if ev.Seq < c.engineSeq {
			c.mu.Unlock()
			return
		}
		p := c.states.Snapshot()
		changed := c.states.Tick(p.UnitIndex, ev.Offset)
		snap := c.states.Snapshot()
		c.mu.Unlock()
		if changed {
			c.emit(Event{Type: EventPosition, Playback: snap})
		}

	case EngineEndOfStream:
		c.advance(ev.Seq)

	case EngineFailure:
		c.mu.Lock()
		_ = c.engineFailedLocked(ev.Err)
		c.mu.Unlock()
	}
}

// advance reacts to end-of-unit: move to the next unit at offset 0 and
// keep playing, or stop after the last unit. An end-of-stream queued
// before the latest load or seek refers to a position the user already
// left and is dropped.
func (c *Controller) advance(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq < c.engineSeq {
		return
	}

	p, more := c.states.Advance()
	if !more {
		if err := c.engine.Stop(); err != nil {
			zlog.Warn().Err(err).Msg("playback: engine stop failed")
		}
		c.emit(Event{Type: EventBookEnded, Playback: p})
		return
	}

	if err := c.loadLocked(p.UnitIndex, 0); err != nil {
		return
	}
	if p.Status == state.StatusPlaying {
		if err := c.engine.Play(); err != nil {
			_ = c.engineFailedLocked(err)
			return
		}
	}
	c.emit(Event{Type: EventUnitStarted, Playback: c.states.Snapshot()})
}

// emit sends an event without blocking; position events may be dropped
// under backpressure since the latest snapshot is authoritative.
func (c *Controller) emit(e Event) {
	select {
	case c.events <- e:
	default:
	}
}
