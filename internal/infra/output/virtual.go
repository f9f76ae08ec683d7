package output

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/previewbox/internal/app/playback"
)

// VirtualConfig represents the settings of the virtual output.
type VirtualConfig struct {
	ProgressIntervalMs int  `yaml:"progress_interval_ms" mapstructure:"progress_interval_ms" default:"250" validate:"gt=0,lte=5000"`
	DefaultDurationSec int  `yaml:"default_duration_sec" mapstructure:"default_duration_sec" default:"180" validate:"gt=0"`
	StartLatencyMs     int  `yaml:"start_latency_ms" mapstructure:"start_latency_ms" validate:"gte=0,lte=10000"`
	BlockAutoplay      bool `yaml:"block_autoplay" mapstructure:"block_autoplay"`
}

// Virtual is a simulated media element. Its position advances on the wall
// clock while playing; no audio is produced.
type Virtual struct {
	cfg VirtualConfig

	mu       sync.Mutex
	events   playback.Events
	binding  playback.Binding
	duration time.Duration

	playing   bool
	startedAt time.Time     // Wall time the current run started
	offset    time.Duration // Position at startedAt (or while stopped)
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewVirtual creates a virtual output.
func NewVirtual(cfg VirtualConfig) *Virtual {
	return &Virtual{cfg: cfg}
}

// Attach registers the event sink.
func (v *Virtual) Attach(events playback.Events) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.events = events
}

// Bind loads src. A source without a declared duration gets the configured
// default one, reported through a duration change.
func (v *Virtual) Bind(b playback.Binding, src playback.Source) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.stopLocked()
	v.binding = b
	v.offset = 0
	v.duration = src.Duration
	if v.duration <= 0 {
		v.duration = time.Duration(v.cfg.DefaultDurationSec) * time.Second
	}

	d := v.duration
	v.dispatchLocked(func(events playback.Events) {
		events.DurationChange(b, d)
	})
	return nil
}

// Unbind stops and releases the current source.
func (v *Virtual) Unbind() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.stopLocked()
	v.binding = playback.Binding{}
	v.offset = 0
	v.duration = 0
}

// Play starts the clock after the configured latency. Automatic requests are
// rejected when autoplay is blocked.
func (v *Virtual) Play(b playback.Binding, userInitiated bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if b != v.binding {
		return
	}
	if !userInitiated && v.cfg.BlockAutoplay {
		v.dispatchLocked(func(events playback.Events) {
			events.Acknowledge(b, playback.OutcomeBlocked, "autoplay is blocked")
		})
		return
	}

	v.stopLocked()
	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel
	v.wg.Add(1)
	go v.run(ctx, b)
}

// Pause stops the clock at the current position.
func (v *Virtual) Pause() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopLocked()
}

// Seek moves the position, clamped to the source duration.
func (v *Virtual) Seek(pos time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.offset = min(max(pos, 0), v.duration)
	if v.playing {
		v.startedAt = toWallTime(time.Now())
	}
}

// Position returns the current position.
func (v *Virtual) Position() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.positionLocked()
}

// Close stops the output and waits for its clock goroutine.
func (v *Virtual) Close() error {
	v.Unbind()
	v.wg.Wait()
	return nil
}

// run acknowledges the play request and drives progress for binding b.
func (v *Virtual) run(ctx context.Context, b playback.Binding) {
	defer v.wg.Done()

	if v.cfg.StartLatencyMs > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(millis(v.cfg.StartLatencyMs)):
		}
	}

	v.mu.Lock()
	if ctx.Err() != nil || b != v.binding {
		v.mu.Unlock()
		return
	}
	v.playing = true
	v.startedAt = toWallTime(time.Now())
	events := v.events
	v.mu.Unlock()

	if events != nil {
		events.Acknowledge(b, playback.OutcomeStarted, "")
	}

	ticker := time.NewTicker(millis(v.cfg.ProgressIntervalMs))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		v.mu.Lock()
		if ctx.Err() != nil {
			v.mu.Unlock()
			return
		}
		pos := v.positionLocked()
		ended := pos >= v.duration
		if ended {
			v.playing = false
			v.offset = v.duration
		}
		v.mu.Unlock()

		if events == nil {
			continue
		}
		events.TimeUpdate(b, pos)
		if ended {
			zlog.Debug().Msgf("output: virtual source ended: binding=%d url=%s", b.ID, b.URL)
			events.Ended(b)
			return
		}
	}
}

// stopLocked freezes the clock and cancels the run goroutine.
func (v *Virtual) stopLocked() {
	v.offset = v.positionLocked()
	v.playing = false
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
}

func (v *Virtual) positionLocked() time.Duration {
	if !v.playing {
		return v.offset
	}
	pos := v.offset + toWallTime(time.Now()).Sub(v.startedAt)
	return min(pos, v.duration)
}

// dispatchLocked delivers an event outside the caller's stack.
func (v *Virtual) dispatchLocked(fn func(playback.Events)) {
	events := v.events
	if events == nil {
		return
	}
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		fn(events)
	}()
}
