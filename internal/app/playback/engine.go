package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/previewbox/internal/app/capguard"
	"github.com/osa030/previewbox/internal/app/navigator"
	"github.com/osa030/previewbox/internal/domain/playlist"
)

// Config holds engine configuration.
type Config struct {
	Cap          time.Duration // Preview limit (0 = capguard.DefaultCap)
	PollInterval time.Duration // Auxiliary position poll (0 = disabled)
}

// Listener receives snapshots emitted by the engine.
type Listener func(Snapshot)

// session is the mutable playback state. Only the engine mutates it.
type session struct {
	activeIndex  int
	status       Status
	position     time.Duration
	duration     time.Duration
	playIntent   bool
	previewEnded bool
	notice       Notice
}

// Engine binds the current track of a playlist to one output and enforces the
// preview limit. Commands and output events are serialized by mu.
type Engine struct {
	mu sync.Mutex

	playlist *playlist.Playlist
	nav      *navigator.Navigator
	guard    *capguard.Enforcer
	policy   AutoplayPolicy
	output   Output

	state session
	seq   uint64

	// Current binding and its pending play request
	binding       Binding
	lastBindingID uint64
	autoAttempt   bool

	// Observers
	listeners      map[uint64]Listener
	nextListenerID uint64
	pending        []Snapshot

	// Lifecycle
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates an engine for p that owns out exclusively.
func NewEngine(p *playlist.Playlist, out Output, cfg Config) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		playlist:  p,
		nav:       navigator.New(p),
		guard:     capguard.New(cfg.Cap),
		output:    out,
		state:     session{activeIndex: navigator.None, status: StatusIdle},
		listeners: make(map[uint64]Listener),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	out.Attach(e)

	if cfg.PollInterval > 0 {
		go e.pollLoop(cfg.PollInterval)
	} else {
		close(e.done)
	}
	return e
}

// Playlist returns the playlist the engine plays.
func (e *Engine) Playlist() *playlist.Playlist {
	return e.playlist
}

// Snapshot returns the current session state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Subscribe registers fn for every emitted snapshot and returns the
// unsubscribe function. Snapshots emitted by concurrent operations may
// interleave; Seq orders them.
func (e *Engine) Subscribe(fn Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return func() {}
	}
	e.nextListenerID++
	id := e.nextListenerID
	e.listeners[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

// SelectTrack switches to track i and requests playback of it.
func (e *Engine) SelectTrack(i int) {
	e.do(func() {
		idx, err := e.nav.Select(i)
		if errors.Is(err, navigator.ErrEmptyPlaylist) {
			return
		}
		e.switchLocked(idx, true, true)
	})
}

// Play starts or resumes the active track.
func (e *Engine) Play() {
	e.do(func() {
		t, ok := e.playlist.At(e.state.activeIndex)
		if !ok || !t.Playable() || e.state.status.Active() {
			return
		}
		if e.binding.IsZero() {
			e.switchLocked(e.state.activeIndex, true, true)
			return
		}
		e.guard.Rearm()
		e.state.playIntent = true
		e.state.previewEnded = false
		e.state.notice = Notice{}
		e.requestPlayLocked(true)
	})
}

// Pause stops the output and clears the play intent.
func (e *Engine) Pause() {
	e.do(func() {
		if !e.state.status.Active() {
			return
		}
		e.output.Pause()
		e.autoAttempt = false
		e.state.status = StatusPaused
		e.state.playIntent = false
		e.emitLocked()
	})
}

// Seek moves the active track to pos, clamped to the preview window.
// Reaching the limit through a seek is a cap crossing.
func (e *Engine) Seek(pos time.Duration) {
	e.do(func() {
		if e.binding.IsZero() {
			return
		}
		v := e.guard.Clamp(pos, e.state.duration)
		if v < e.guard.Limit() {
			e.guard.Rearm()
			e.output.Seek(v)
			e.state.position = v
			e.emitLocked()
			return
		}
		if !e.guard.Observe(v) {
			// Crossing already handled; keep the output at the reset position.
			e.output.Seek(0)
			return
		}
		e.boundaryLocked(StatusCapped, v)
	})
}

// Next switches to the following track, keeping the play intent.
func (e *Engine) Next() {
	e.do(func() {
		target := e.nav.Next(e.state.activeIndex)
		if target == navigator.None || target == e.state.activeIndex {
			return
		}
		e.switchLocked(target, e.state.playIntent, true)
	})
}

// Prev switches to the preceding track, keeping the play intent.
func (e *Engine) Prev() {
	e.do(func() {
		target := e.nav.Prev(e.state.activeIndex)
		if target == navigator.None || target == e.state.activeIndex {
			return
		}
		e.switchLocked(target, e.state.playIntent, true)
	})
}

// Close unbinds the output and stops all activity. Later commands and
// output events are ignored.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.cancel()
	e.unbindLocked()
	e.state.status = StatusIdle
	e.state.playIntent = false
	e.listeners = make(map[uint64]Listener)
	e.pending = nil
	e.mu.Unlock()

	<-e.done
	return e.output.Close()
}

// Acknowledge resolves a play request.
func (e *Engine) Acknowledge(b Binding, outcome Outcome, reason string) {
	e.do(func() {
		if !e.currentLocked(b, "acknowledge") {
			return
		}
		if e.state.status != StatusLoading {
			if outcome == OutcomeStarted {
				// Request was cancelled by a pause; silence the late start.
				e.output.Pause()
			}
			return
		}

		switch outcome {
		case OutcomeStarted:
			e.autoAttempt = false
			e.state.status = StatusPlaying
		case OutcomeBlocked:
			zlog.Info().Msgf("playback: play request blocked: url=%s auto=%t reason=%s", b.URL, e.autoAttempt, reason)
			e.output.Pause()
			e.output.Seek(0)
			if e.autoAttempt {
				e.policy.absorb(&e.state, reason)
			} else {
				e.state.status = StatusIdle
				e.state.position = 0
				e.state.playIntent = false
				e.state.notice = Notice{Kind: NoticePlaybackBlocked, Message: blockedMessage(reason)}
			}
			e.autoAttempt = false
		}
		e.emitLocked()
	})
}

// TimeUpdate handles a progress event.
func (e *Engine) TimeUpdate(b Binding, pos time.Duration) {
	e.do(func() {
		if !e.currentLocked(b, "time update") {
			return
		}
		e.observeLocked(pos)
	})
}

// DurationChange records the duration reported by the output.
func (e *Engine) DurationChange(b Binding, d time.Duration) {
	e.do(func() {
		if !e.currentLocked(b, "duration change") || d <= 0 || d == e.state.duration {
			return
		}
		e.state.duration = d
		e.state.position = e.guard.Clamp(e.state.position, d)
		e.emitLocked()
	})
}

// Ended handles the natural end of the bound track.
func (e *Engine) Ended(b Binding) {
	e.do(func() {
		if !e.currentLocked(b, "ended") || !e.state.status.Active() {
			return
		}
		e.boundaryLocked(StatusEnded, e.state.duration)
	})
}

// MediaError handles a load or decode failure of the bound track.
func (e *Engine) MediaError(b Binding, err error) {
	e.do(func() {
		if !e.currentLocked(b, "media error") {
			return
		}
		zlog.Warn().Err(err).Msgf("playback: media error: url=%s", b.URL)
		e.output.Pause()
		e.autoAttempt = false
		e.state.status = StatusIdle
		e.state.position = 0
		e.state.playIntent = false
		e.state.notice = Notice{Kind: NoticeMediaDecodeError, Message: errorMessage(err)}
		e.emitLocked()
	})
}

// poll samples the output position while playing.
func (e *Engine) poll() {
	e.do(func() {
		if e.binding.IsZero() || !e.state.status.Active() {
			return
		}
		e.observeLocked(e.output.Position())
	})
}

func (e *Engine) pollLoop(interval time.Duration) {
	defer close(e.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.poll()
		}
	}
}

// do runs fn under the lock and then delivers the snapshots it emitted.
func (e *Engine) do(fn func()) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	fn()
	emitted := e.pending
	e.pending = nil
	listeners := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		listeners = append(listeners, l)
	}
	e.mu.Unlock()

	for _, s := range emitted {
		for _, l := range listeners {
			l(s)
		}
	}
}

// switchLocked binds track idx, unbinding the previous track first.
// play requests playback of the new track; userInitiated marks the request as
// coming from a user gesture.
func (e *Engine) switchLocked(idx int, play, userInitiated bool) {
	e.unbindLocked()

	t, _ := e.playlist.At(idx)
	e.state.activeIndex = idx
	e.state.duration = t.Duration
	e.state.position = 0
	e.state.previewEnded = false
	e.state.notice = Notice{}
	e.guard.Rearm()

	if !t.Playable() {
		e.state.status = StatusIdle
		e.state.playIntent = false
		e.state.notice = Notice{Kind: NoticeNoPlayableTrack, Message: t.DisplayTitle(idx) + " has no playback url"}
		e.emitLocked()
		return
	}

	e.lastBindingID++
	b := Binding{ID: e.lastBindingID, URL: t.PlaybackURL}
	if err := e.output.Bind(b, Source{URL: t.PlaybackURL, Duration: t.Duration}); err != nil {
		zlog.Warn().Err(err).Msgf("playback: bind failed: index=%d url=%s", idx, t.PlaybackURL)
		e.state.status = StatusIdle
		e.state.playIntent = false
		e.state.notice = Notice{Kind: NoticeMediaDecodeError, Message: errorMessage(err)}
		e.emitLocked()
		return
	}
	e.binding = b
	zlog.Debug().Msgf("playback: bound track: index=%d binding=%d url=%s", idx, b.ID, b.URL)

	if !play {
		e.state.status = StatusPaused
		e.emitLocked()
		return
	}
	e.state.playIntent = true
	e.requestPlayLocked(userInitiated)
}

// requestPlayLocked moves to Loading and issues the play request.
func (e *Engine) requestPlayLocked(userInitiated bool) {
	e.autoAttempt = !userInitiated
	e.state.status = StatusLoading
	e.emitLocked()
	e.output.Play(e.binding, userInitiated)
}

// unbindLocked releases the current binding. Every notification addressed to
// it is stale from here on.
func (e *Engine) unbindLocked() {
	if e.binding.IsZero() {
		return
	}
	e.output.Unbind()
	e.binding = Binding{}
	e.autoAttempt = false
	e.state.position = 0
}

// observeLocked feeds one position sample to the cap guard.
func (e *Engine) observeLocked(pos time.Duration) {
	if !e.state.status.Active() {
		return
	}
	if e.guard.Observe(pos) {
		e.boundaryLocked(StatusCapped, pos)
		return
	}
	if e.guard.Tripped() {
		return
	}
	clamped := e.guard.Clamp(pos, e.state.duration)
	if clamped == e.state.position {
		return
	}
	e.state.position = clamped
	e.emitLocked()
}

// boundaryLocked stops the output at a cap crossing or natural end and
// applies the continuation rules. The boundary snapshot reports the position
// it was reached at; the position is reset to 0 before anything else happens.
func (e *Engine) boundaryLocked(reason Status, at time.Duration) {
	e.output.Pause()
	e.output.Seek(0)
	e.autoAttempt = false
	e.state.status = reason
	e.state.position = e.guard.Clamp(at, e.state.duration)
	if reason == StatusCapped {
		e.state.previewEnded = true
	}
	e.emitLocked()
	e.state.position = 0

	intentBefore := e.state.playIntent
	next, ok := e.nav.NextPlayable(e.state.activeIndex)
	if !ok {
		zlog.Debug().Msgf("playback: playlist exhausted: index=%d reason=%s", e.state.activeIndex, reason)
		e.state.status = StatusIdle
		e.state.playIntent = false
		e.emitLocked()
		return
	}
	if !e.policy.ShouldContinue(intentBefore) {
		e.state.status = StatusIdle
		e.emitLocked()
		return
	}
	zlog.Debug().Msgf("playback: auto advance: from=%d to=%d reason=%s", e.state.activeIndex, next, reason)
	e.switchLocked(next, true, false)
}

// currentLocked reports whether b is the current binding.
func (e *Engine) currentLocked(b Binding, what string) bool {
	if b.IsZero() || b != e.binding {
		zlog.Debug().Msgf("playback: discarding stale %s: binding=%d current=%d", what, b.ID, e.binding.ID)
		return false
	}
	return true
}

func (e *Engine) emitLocked() {
	e.seq++
	e.pending = append(e.pending, e.snapshotLocked())
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		Seq:          e.seq,
		ActiveIndex:  e.state.activeIndex,
		Status:       e.state.status,
		Position:     e.state.position,
		Duration:     e.state.duration,
		Cap:          e.guard.Limit(),
		PlayIntent:   e.state.playIntent,
		PreviewEnded: e.state.previewEnded,
		Notice:       e.state.notice,
	}
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown media error"
	}
	return err.Error()
}
