//go:build cgo

package output

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/previewbox/internal/app/playback"
)

// AudioAvailable indicates whether audio playback is supported in this build.
const AudioAvailable = true

// playStreamer hands a streamer to the mixer.
var playStreamer = speaker.Play

var (
	speakerMu          sync.Mutex
	speakerInitialized bool
	speakerRate        beep.SampleRate
)

// initSpeaker initializes the sound card once per process.
func initSpeaker(cfg SpeakerConfig) (beep.SampleRate, error) {
	speakerMu.Lock()
	defer speakerMu.Unlock()

	if speakerInitialized {
		return speakerRate, nil
	}
	rate := beep.SampleRate(cfg.SampleRate)
	if err := speaker.Init(rate, rate.N(millis(cfg.BufferMs))); err != nil {
		return 0, errors.Wrap(err, "failed to initialize speaker")
	}
	speakerInitialized = true
	speakerRate = rate
	return rate, nil
}

// Speaker plays mp3 previews through the sound card. The preview is
// downloaded and decoded in memory when playback is first requested.
type Speaker struct {
	cfg    SpeakerConfig
	client *http.Client

	mu       sync.Mutex
	events   playback.Events
	binding  playback.Binding
	src      playback.Source
	loadStop context.CancelFunc

	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	queued   bool // ctrl is in the mixer; cleared when its sequence drains

	progressStop context.CancelFunc
	wg           sync.WaitGroup
}

// NewSpeaker creates a speaker output.
func NewSpeaker(cfg SpeakerConfig) *Speaker {
	return &Speaker{cfg: cfg, client: newDownloadClient(cfg)}
}

// Attach registers the event sink.
func (s *Speaker) Attach(events playback.Events) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = events
}

// Bind records the source; nothing is fetched until Play.
func (s *Speaker) Bind(b playback.Binding, src playback.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseLocked()
	s.binding = b
	s.src = src
	return nil
}

// Unbind stops playback and releases the decoded source.
func (s *Speaker) Unbind() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseLocked()
	s.binding = playback.Binding{}
	s.src = playback.Source{}
}

// Play resumes a loaded source or starts loading it.
func (s *Speaker) Play(b playback.Binding, _ bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b != s.binding {
		return
	}
	if s.ctrl != nil {
		speaker.Lock()
		s.ctrl.Paused = false
		speaker.Unlock()
		if !s.queued {
			// The mixer dropped the sequence after a natural end
			s.queueLocked(b)
		}
		s.startProgressLocked(b)
		s.dispatchLocked(func(events playback.Events) {
			events.Acknowledge(b, playback.OutcomeStarted, "")
		})
		return
	}
	if s.loadStop != nil {
		// Already loading; the acknowledgment follows the load
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.loadStop = cancel
	s.wg.Add(1)
	go s.load(ctx, b, s.src.URL)
}

// Pause pauses playback and cancels a pending load.
func (s *Speaker) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loadStop != nil {
		s.loadStop()
		s.loadStop = nil
	}
	s.stopProgressLocked()
	if s.ctrl != nil {
		speaker.Lock()
		s.ctrl.Paused = true
		speaker.Unlock()
	}
}

// Seek sets the playback position.
func (s *Speaker) Seek(pos time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streamer == nil {
		return
	}

	speaker.Lock()
	defer speaker.Unlock()

	n := s.format.SampleRate.N(max(pos, 0))
	n = min(n, max(s.streamer.Len()-1, 0))
	if err := s.streamer.Seek(n); err != nil {
		zlog.Warn().Err(err).Msgf("output: speaker seek failed: url=%s", s.binding.URL)
	}
}

// Position returns the current playback position.
func (s *Speaker) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

// Close stops playback and waits for pending loads.
func (s *Speaker) Close() error {
	s.Unbind()
	s.wg.Wait()
	return nil
}

// load downloads and decodes the source, then starts it.
func (s *Speaker) load(ctx context.Context, b playback.Binding, url string) {
	defer s.wg.Done()

	streamer, format, err := s.decode(ctx, url)

	s.mu.Lock()
	defer s.mu.Unlock()

	if ctx.Err() != nil || b != s.binding {
		if streamer != nil {
			streamer.Close()
		}
		return
	}
	s.loadStop = nil

	if err != nil {
		zlog.Warn().Err(err).Msgf("output: speaker load failed: url=%s", url)
		s.dispatchLocked(func(events playback.Events) {
			events.MediaError(b, err)
		})
		return
	}

	rate, err := initSpeaker(s.cfg)
	if err != nil {
		streamer.Close()
		s.dispatchLocked(func(events playback.Events) {
			events.MediaError(b, err)
		})
		return
	}

	s.streamer = streamer
	s.format = format
	s.ctrl = &beep.Ctrl{Streamer: beep.Resample(4, format.SampleRate, rate, streamer)}

	d := format.SampleRate.D(streamer.Len())
	s.queueLocked(b)
	s.startProgressLocked(b)

	s.dispatchLocked(func(events playback.Events) {
		events.DurationChange(b, d)
		events.Acknowledge(b, playback.OutcomeStarted, "")
	})
}

func (s *Speaker) decode(ctx context.Context, url string) (beep.StreamSeekCloser, beep.Format, error) {
	data, err := download(ctx, s.client, url, int64(s.cfg.MaxDownloadMB)<<20)
	if err != nil {
		return nil, beep.Format{}, err
	}
	streamer, format, err := mp3.Decode(nopCloser{bytes.NewReader(data)})
	if err != nil {
		return nil, beep.Format{}, errors.Wrap(err, "failed to decode mp3")
	}
	return streamer, format, nil
}

// queueLocked submits the current ctrl to the mixer, followed by the end
// callback for b.
func (s *Speaker) queueLocked(b playback.Binding) {
	ctrl := s.ctrl
	s.queued = true
	playStreamer(beep.Seq(ctrl, beep.Callback(func() {
		// Runs on the speaker goroutine
		go s.finished(b, ctrl)
	})))
}

func (s *Speaker) finished(b playback.Binding, ctrl *beep.Ctrl) {
	s.mu.Lock()
	if ctrl != s.ctrl {
		// Released or replaced by a later load
		s.mu.Unlock()
		return
	}
	s.queued = false
	if b != s.binding {
		s.mu.Unlock()
		return
	}
	s.stopProgressLocked()
	events := s.events
	s.mu.Unlock()

	if events != nil {
		events.Ended(b)
	}
}

func (s *Speaker) startProgressLocked(b playback.Binding) {
	s.stopProgressLocked()
	ctx, cancel := context.WithCancel(context.Background())
	s.progressStop = cancel
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(millis(s.cfg.ProgressIntervalMs))
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			s.mu.Lock()
			if ctx.Err() != nil {
				s.mu.Unlock()
				return
			}
			pos := s.positionLocked()
			events := s.events
			s.mu.Unlock()

			if events != nil {
				events.TimeUpdate(b, pos)
			}
		}
	}()
}

func (s *Speaker) stopProgressLocked() {
	if s.progressStop != nil {
		s.progressStop()
		s.progressStop = nil
	}
}

// releaseLocked stops playback completely.
func (s *Speaker) releaseLocked() {
	if s.loadStop != nil {
		s.loadStop()
		s.loadStop = nil
	}
	s.stopProgressLocked()
	if s.ctrl != nil {
		speaker.Lock()
		s.ctrl.Paused = true
		s.ctrl.Streamer = nil
		speaker.Unlock()
	}
	if s.streamer != nil {
		s.streamer.Close()
		s.streamer = nil
	}
	s.ctrl = nil
	s.queued = false
}

func (s *Speaker) positionLocked() time.Duration {
	if s.streamer == nil {
		return 0
	}

	speaker.Lock()
	pos := s.streamer.Position()
	speaker.Unlock()

	return s.format.SampleRate.D(pos)
}

func (s *Speaker) dispatchLocked(fn func(playback.Events)) {
	events := s.events
	if events == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(events)
	}()
}

// nopCloser wraps a bytes.Reader to implement io.ReadCloser.
type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
