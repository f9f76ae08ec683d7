//go:build !cgo

package output

import (
	"sync"
	"time"

	"github.com/osa030/previewbox/internal/app/playback"
)

// AudioAvailable indicates whether audio playback is supported in this build.
// Audio requires CGO for native sound libraries.
const AudioAvailable = false

// Speaker is the speaker output of builds without cgo. Every play request
// fails with ErrAudioUnavailable.
type Speaker struct {
	mu      sync.Mutex
	events  playback.Events
	binding playback.Binding
	wg      sync.WaitGroup
}

// NewSpeaker creates a speaker output that cannot play.
func NewSpeaker(SpeakerConfig) *Speaker {
	return &Speaker{}
}

func (s *Speaker) Attach(events playback.Events) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = events
}

func (s *Speaker) Bind(b playback.Binding, _ playback.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.binding = b
	return nil
}

func (s *Speaker) Unbind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.binding = playback.Binding{}
}

func (s *Speaker) Play(b playback.Binding, _ bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.events
	if b != s.binding || events == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		events.MediaError(b, ErrAudioUnavailable)
	}()
}

func (s *Speaker) Pause() {}

func (s *Speaker) Seek(time.Duration) {}

func (s *Speaker) Position() time.Duration { return 0 }

func (s *Speaker) Close() error {
	s.Unbind()
	s.wg.Wait()
	return nil
}
