//go:build cgo

package output

import (
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/previewbox/internal/app/playback"
)

// memStreamer is a silent seekable source of a fixed number of samples.
type memStreamer struct {
	mu     sync.Mutex
	pos    int
	length int
}

func (m *memStreamer) Stream(samples [][2]float64) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos >= m.length {
		return 0, false
	}
	n := min(len(samples), m.length-m.pos)
	for i := range n {
		samples[i] = [2]float64{}
	}
	m.pos += n
	return n, true
}

func (m *memStreamer) Err() error { return nil }

func (m *memStreamer) Len() int { return m.length }

func (m *memStreamer) Position() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

func (m *memStreamer) Seek(p int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pos = p
	return nil
}

func (m *memStreamer) Close() error { return nil }

// mixer stands in for the sound card and records submitted streamers.
type mixer struct {
	mu        sync.Mutex
	streamers []beep.Streamer
}

func (m *mixer) play(s ...beep.Streamer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamers = append(m.streamers, s...)
}

func (m *mixer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streamers)
}

// drain plays streamer i to its end.
func (m *mixer) drain(i int) {
	m.mu.Lock()
	s := m.streamers[i]
	m.mu.Unlock()

	buf := make([][2]float64, 64)
	for {
		if _, ok := s.Stream(buf); !ok {
			return
		}
	}
}

func newLoadedSpeaker(t *testing.T, m *mixer) (*Speaker, *eventLog, playback.Binding) {
	t.Helper()

	prev := playStreamer
	playStreamer = m.play
	t.Cleanup(func() { playStreamer = prev })

	s := NewSpeaker(SpeakerConfig{ProgressIntervalMs: 10, DownloadTimeoutSec: 1, MaxDownloadMB: 1})
	log := &eventLog{}
	s.Attach(log)

	b := playback.Binding{ID: 1, URL: "https://cdn.example.com/1.mp3"}
	require.NoError(t, s.Bind(b, playback.Source{URL: b.URL}))

	src := &memStreamer{length: 500}
	s.mu.Lock()
	s.streamer = src
	s.format = beep.Format{SampleRate: 1000, NumChannels: 2, Precision: 2}
	s.ctrl = &beep.Ctrl{Streamer: src}
	s.queueLocked(b)
	s.mu.Unlock()

	t.Cleanup(func() { s.Close() })
	return s, log, b
}

func TestSpeaker_ReplayAfterNaturalEnd(t *testing.T) {
	m := &mixer{}
	s, log, b := newLoadedSpeaker(t, m)
	require.Equal(t, 1, m.count())

	m.drain(0)
	require.Eventually(t, func() bool { return log.snapshot().ended == 1 }, time.Second, 5*time.Millisecond)

	s.Seek(0)
	s.Play(b, true)

	// the drained sequence is gone from the mixer, so a new one is queued
	require.Equal(t, 2, m.count())
	require.Eventually(t, func() bool { return len(log.snapshot().acks) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, playback.OutcomeStarted, log.snapshot().acks[0])

	m.drain(1)
	require.Eventually(t, func() bool { return log.snapshot().ended == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 500*time.Millisecond, s.Position())
}

func TestSpeaker_ResumeKeepsQueuedSequence(t *testing.T) {
	m := &mixer{}
	s, log, b := newLoadedSpeaker(t, m)

	s.Pause()
	s.Play(b, true)

	assert.Equal(t, 1, m.count())
	require.Eventually(t, func() bool { return len(log.snapshot().acks) == 1 }, time.Second, 5*time.Millisecond)
}

func TestSpeaker_ReleasedSequenceDoesNotEnd(t *testing.T) {
	m := &mixer{}
	s, log, b := newLoadedSpeaker(t, m)

	require.NoError(t, s.Bind(playback.Binding{ID: 2, URL: b.URL}, playback.Source{URL: b.URL}))
	m.drain(0)

	// give a stray callback time to run
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, log.snapshot().ended)
}
