// Package engine provides playback engine implementations.
package engine

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	zlog "github.com/rs/zerolog/log"

	"github.com/wbialy/lektor/internal/app/playback"
	"github.com/wbialy/lektor/internal/domain/book"
)

const (
	extMP3  = ".mp3"
	extFLAC = ".flac"
	extOGG  = ".ogg"
	extOGA  = ".oga"
	extWAV  = ".wav"
)

// ErrUnsupportedFormat is returned when the audio file cannot be decoded.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

var (
	speakerOnce sync.Once
	speakerErr  error
	speakerRate beep.SampleRate
)

// loaded bundles the resources for one loaded unit. The sample window
// [startSample, endSample) maps the unit onto the decoded file, so a
// whole-file unit covers the full stream and a container range covers
// its slice.
type loaded struct {
	src      book.Source
	file     *os.File
	streamer beep.StreamSeekCloser
	format   beep.Format
	sampler  *beep.Resampler
	ctrl     *beep.Ctrl
	volume   *effects.Volume

	startSample int
	endSample   int

	done    chan struct{}
	eosOnce sync.Once
}

// Beep plays audio through the beep speaker. It implements
// playback.Engine.
type Beep struct {
	cfg *Settings

	mu    sync.Mutex
	cur   *loaded
	rate  float64
	level float64

	// Bumped on every Load and Seek and echoed on emitted events so the
	// consumer can drop feedback queued before a repositioning command.
	seq atomic.Uint64

	events chan playback.EngineEvent
	closed atomic.Bool
}

// NewBeep creates a beep engine from the raw settings map. The speaker
// is initialized once per process at the configured sample rate.
func NewBeep(settings map[string]any) (*Beep, error) {
	cfg, err := decodeSettings(settings)
	if err != nil {
		return nil, errors.Wrap(err, "invalid engine settings")
	}

	speakerOnce.Do(func() {
		speakerRate = beep.SampleRate(cfg.SampleRate)
		bufSize := speakerRate.N(time.Duration(cfg.BufferMs) * time.Millisecond)
		speakerErr = speaker.Init(speakerRate, bufSize)
	})
	if speakerErr != nil {
		return nil, errors.Wrap(speakerErr, "failed to initialize speaker")
	}

	return &Beep{
		cfg:    cfg,
		rate:   1.0,
		level:  1.0,
		events: make(chan playback.EngineEvent, 16),
	}, nil
}

// Load decodes the source file and positions it at offset, paused.
func (e *Beep) Load(src book.Source, offset time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return errors.New("engine closed")
	}

	e.unloadLocked()
	e.seq.Add(1)

	f, err := os.Open(src.Path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", src.Path)
	}

	streamer, format, err := decode(src.Path, f)
	if err != nil {
		f.Close()
		return err
	}

	ls := &loaded{
		src:      src,
		file:     f,
		streamer: streamer,
		format:   format,
		done:     make(chan struct{}),
	}
	if src.Kind == book.SourceContainerRange {
		ls.startSample = format.SampleRate.N(src.Start)
		ls.endSample = format.SampleRate.N(src.End)
	} else {
		ls.endSample = streamer.Len()
	}
	if ls.endSample > streamer.Len() {
		ls.endSample = streamer.Len()
	}

	pos := ls.startSample + format.SampleRate.N(offset)
	if pos > ls.endSample {
		pos = ls.endSample
	}
	if err := streamer.Seek(pos); err != nil {
		streamer.Close()
		f.Close()
		return errors.Wrap(err, "failed to seek")
	}

	ls.sampler = beep.ResampleRatio(e.cfg.Quality, e.ratio(format), streamer)
	ls.ctrl = &beep.Ctrl{Streamer: ls.sampler, Paused: true}
	ls.volume = &effects.Volume{Streamer: ls.ctrl, Base: 2}
	applyLevel(ls.volume, e.level)

	speaker.Clear()
	speaker.Play(beep.Seq(ls.volume, beep.Callback(func() {
		// Runs inside the speaker loop; Seek holds the speaker lock for
		// its bump, so the loaded sequence read here is consistent.
		e.emitEndOfStream(ls, e.seq.Load())
	})))

	e.cur = ls
	go e.watch(ls)

	zlog.Debug().
		Str("path", src.Path).
		Dur("offset", offset).
		Msg("Loaded audio source")
	return nil
}

// Play resumes output of the loaded source.
func (e *Beep) Play() error {
	return e.setPaused(false)
}

// Pause suspends output, keeping the source loaded.
func (e *Beep) Pause() error {
	return e.setPaused(true)
}

func (e *Beep) setPaused(paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cur == nil {
		return errors.New("no source loaded")
	}
	speaker.Lock()
	e.cur.ctrl.Paused = paused
	speaker.Unlock()
	return nil
}

// Seek repositions within the loaded unit.
func (e *Beep) Seek(offset time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cur == nil {
		return errors.New("no source loaded")
	}

	ls := e.cur
	pos := ls.startSample + ls.format.SampleRate.N(offset)
	if pos < ls.startSample {
		pos = ls.startSample
	}
	if pos > ls.endSample {
		pos = ls.endSample
	}

	// The bump shares the speaker lock with the watch goroutine's
	// position read, so a tick holding a pre-seek position can never be
	// stamped with the post-seek sequence.
	speaker.Lock()
	e.seq.Add(1)
	err := ls.streamer.Seek(pos)
	speaker.Unlock()
	return errors.Wrap(err, "failed to seek")
}

// SetRate sets the playback speed multiplier.
func (e *Beep) SetRate(rate float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rate = rate
	if e.cur != nil {
		speaker.Lock()
		e.cur.sampler.SetRatio(e.ratio(e.cur.format))
		speaker.Unlock()
	}
	return nil
}

// SetVolume sets the output volume in [0, 1].
func (e *Beep) SetVolume(level float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.level = level
	if e.cur != nil {
		speaker.Lock()
		applyLevel(e.cur.volume, level)
		speaker.Unlock()
	}
	return nil
}

// Stop unloads the current source.
func (e *Beep) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unloadLocked()
	return nil
}

// Position reports the current unit-relative offset.
func (e *Beep) Position() (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cur == nil {
		return 0, false
	}
	speaker.Lock()
	pos := e.cur.streamer.Position()
	speaker.Unlock()
	return e.cur.offsetAt(pos), true
}

// Events returns the engine feedback stream.
func (e *Beep) Events() <-chan playback.EngineEvent {
	return e.events
}

// Close unloads any source and silences the event stream. The channel
// is left open: the stream drain callback runs inside the speaker loop
// and may race a close, so the stream simply goes quiet instead.
func (e *Beep) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.unloadLocked()
	return nil
}

// ratio converts file rate, speaker rate and playback speed into one
// resampler ratio.
func (e *Beep) ratio(format beep.Format) float64 {
	return float64(format.SampleRate) / float64(speakerRate) * e.rate
}

// unloadLocked releases the current source. Callers hold e.mu.
func (e *Beep) unloadLocked() {
	if e.cur == nil {
		return
	}
	speaker.Clear()
	close(e.cur.done)
	e.cur.streamer.Close()
	e.cur.file.Close()
	e.cur = nil
}

// watch periodically reports the position of one loaded source and
// fences the unit end for container ranges. It exits when the source
// is unloaded.
func (e *Beep) watch(ls *loaded) {
	ticker := time.NewTicker(time.Duration(e.cfg.TickMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ls.done:
			return
		case <-ticker.C:
		}

		speaker.Lock()
		pos := ls.streamer.Position()
		paused := ls.ctrl.Paused
		err := ls.streamer.Err()
		seq := e.seq.Load()
		if pos >= ls.endSample && !paused {
			ls.ctrl.Paused = true
		}
		speaker.Unlock()

		switch {
		case err != nil:
			e.emit(playback.EngineEvent{
				Type: playback.EngineFailure,
				Err:  errors.Wrap(err, "decode failed"),
				Seq:  seq,
			})
			return
		case pos >= ls.endSample && !paused:
			e.emitEndOfStream(ls, seq)
		case !paused:
			e.emit(playback.EngineEvent{
				Type:   playback.EnginePosition,
				Offset: ls.offsetAt(pos),
				Seq:    seq,
			})
		}
	}
}

// emitEndOfStream reports the unit end exactly once per load. Both the
// stream drain callback and the range fence can reach it.
func (e *Beep) emitEndOfStream(ls *loaded, seq uint64) {
	ls.eosOnce.Do(func() {
		e.emit(playback.EngineEvent{Type: playback.EngineEndOfStream, Seq: seq})
	})
}

// emit is a non-blocking send. It runs from the watch goroutine and
// from inside the speaker loop, so it must not take e.mu or the speaker
// lock.
func (e *Beep) emit(ev playback.EngineEvent) {
	if e.closed.Load() {
		return
	}
	select {
	case e.events <- ev:
	default:
		zlog.Warn().Str("type", ev.Type.String()).Msg("Engine event dropped")
	}
}

// offsetAt converts an absolute sample position to the unit-relative
// offset.
func (l *loaded) offsetAt(pos int) time.Duration {
	rel := pos - l.startSample
	if rel < 0 {
		rel = 0
	}
	return l.format.SampleRate.D(rel)
}

// applyLevel maps the linear [0, 1] level onto the logarithmic volume
// effect.
func applyLevel(v *effects.Volume, level float64) {
	if level <= 0 {
		v.Silent = true
		v.Volume = 0
		return
	}
	v.Silent = false
	v.Volume = math.Log2(level)
}

// decode picks the decoder by file extension.
func decode(path string, f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case extMP3:
		return mp3.Decode(f)
	case extFLAC:
		return flac.Decode(f)
	case extOGG, extOGA:
		return vorbis.Decode(f)
	case extWAV:
		return wav.Decode(f)
	default:
		return nil, beep.Format{}, errors.Wrapf(ErrUnsupportedFormat, "%s", filepath.Ext(path))
	}
}
