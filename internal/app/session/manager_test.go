package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/previewbox/internal/app/playback"
	"github.com/osa030/previewbox/internal/domain/manifest"
)

type fakeSource struct {
	mu      sync.Mutex
	calls   int
	results map[string]*manifest.Manifest
}

func (f *fakeSource) Fetch(_ context.Context, shareID string) (*manifest.Manifest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	m, ok := f.results[shareID]
	if !ok {
		return nil, errors.Mark(errors.New("manifest request failed with status 404"), manifest.ErrManifestFetch)
	}
	return m, nil
}

type fakeCache struct {
	items  map[string]*manifest.Manifest
	getErr error
	setErr error
	sets   int
}

func (f *fakeCache) Get(_ context.Context, shareID string) (*manifest.Manifest, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	m, ok := f.items[shareID]
	return m, ok, nil
}

func (f *fakeCache) Set(_ context.Context, shareID string, m *manifest.Manifest) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.items[shareID] = m
	return nil
}

// nopOutput accepts every call and never reports events.
type nopOutput struct {
	mu     sync.Mutex
	closed bool
}

func (o *nopOutput) Attach(playback.Events)                       {}
func (o *nopOutput) Bind(playback.Binding, playback.Source) error { return nil }
func (o *nopOutput) Unbind()                                      {}
func (o *nopOutput) Play(playback.Binding, bool)                  {}
func (o *nopOutput) Pause()                                       {}
func (o *nopOutput) Seek(time.Duration)                           {}
func (o *nopOutput) Position() time.Duration                      { return 0 }
func (o *nopOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

func sampleManifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Parse([]byte(`{
		"shareId": "album-1",
		"albumTitle": "Night Drive",
		"tracks": [
			{"slot": 1, "title": "Intro", "durationSec": 20, "playbackUrl": "https://cdn.example.com/1.mp3"},
			{"slot": 2, "title": "Long", "durationSec": 50, "playbackUrl": "https://cdn.example.com/2.mp3"}
		]
	}`))
	require.NoError(t, err)
	return m
}

func newTestManager(t *testing.T, cfg Config, cache ManifestCache) (*Manager, *fakeSource, *[]*nopOutput) {
	t.Helper()
	source := &fakeSource{results: map[string]*manifest.Manifest{"album-1": sampleManifest(t)}}
	outputs := &[]*nopOutput{}
	m := NewManager(cfg, NewLoader(source, cache), func() (playback.Output, error) {
		out := &nopOutput{}
		*outputs = append(*outputs, out)
		return out, nil
	})
	t.Cleanup(m.Shutdown)
	return m, source, outputs
}

func TestManager_Open(t *testing.T) {
	m, _, _ := newTestManager(t, Config{Cap: 30 * time.Second}, nil)

	s, err := m.Open(context.Background(), "album-1")
	require.NoError(t, err)
	require.NoError(t, s.LoadErr)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "Night Drive", s.AlbumTitle())
	assert.Equal(t, 2, s.Engine().Playlist().Len())
	assert.Equal(t, 30*time.Second, s.Engine().Snapshot().Cap)
	assert.Equal(t, 1, m.Count())

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestManager_OpenWithManifestFailure(t *testing.T) {
	m, _, _ := newTestManager(t, Config{}, nil)

	s, err := m.Open(context.Background(), "missing")
	require.NoError(t, err)

	assert.True(t, errors.Is(s.LoadErr, manifest.ErrManifestFetch))
	assert.Nil(t, s.Manifest)
	assert.Equal(t, "", s.AlbumTitle())
	assert.Equal(t, 0, s.Engine().Playlist().Len())

	s, err = m.Open(context.Background(), " ")
	require.NoError(t, err)
	assert.True(t, errors.Is(s.LoadErr, manifest.ErrMissingShareID))
}

func TestManager_OpenOutputFailure(t *testing.T) {
	source := &fakeSource{results: map[string]*manifest.Manifest{}}
	m := NewManager(Config{}, NewLoader(source, nil), func() (playback.Output, error) {
		return nil, errors.New("no sound card")
	})
	defer m.Shutdown()

	_, err := m.Open(context.Background(), "album-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sound card")
	assert.Equal(t, 0, m.Count())
}

func TestManager_Close(t *testing.T) {
	m, _, outputs := newTestManager(t, Config{}, nil)

	s, err := m.Open(context.Background(), "album-1")
	require.NoError(t, err)

	require.NoError(t, m.Close(s.ID))
	assert.True(t, (*outputs)[0].closed)
	assert.Equal(t, 0, m.Count())

	_, err = m.Get(s.ID)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
	assert.True(t, errors.Is(m.Close(s.ID), ErrSessionNotFound))
}

func TestManager_SnapshotsReachSubscribers(t *testing.T) {
	m, _, _ := newTestManager(t, Config{}, nil)

	s, err := m.Open(context.Background(), "album-1")
	require.NoError(t, err)

	s.Engine().SelectTrack(1)

	latest := s.Notifier().Latest()
	require.NotNil(t, latest)
	assert.Equal(t, s.ID, latest.SessionID)
	assert.Equal(t, 1, latest.Snapshot.ActiveIndex)
	assert.Equal(t, playback.StatusLoading, latest.Snapshot.Status)
}

func TestManager_ReapIdle(t *testing.T) {
	m, _, outputs := newTestManager(t, Config{IdleTimeout: time.Minute}, nil)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	stale, err := m.Open(context.Background(), "album-1")
	require.NoError(t, err)
	now = now.Add(50 * time.Second)
	fresh, err := m.Open(context.Background(), "album-1")
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, m.reapIdle())

	_, err = m.Get(stale.ID)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
	_, err = m.Get(fresh.ID)
	assert.NoError(t, err)
	assert.True(t, (*outputs)[0].closed)
	assert.False(t, (*outputs)[1].closed)
}

func TestManager_Shutdown(t *testing.T) {
	m, _, outputs := newTestManager(t, Config{IdleTimeout: time.Hour}, nil)

	_, err := m.Open(context.Background(), "album-1")
	require.NoError(t, err)

	m.Shutdown()
	assert.Equal(t, 0, m.Count())
	assert.True(t, (*outputs)[0].closed)

	_, err = m.Open(context.Background(), "album-1")
	assert.True(t, errors.Is(err, ErrManagerClosed))
}

func TestLoader_CacheAside(t *testing.T) {
	cache := &fakeCache{items: map[string]*manifest.Manifest{}}
	source := &fakeSource{results: map[string]*manifest.Manifest{"album-1": sampleManifest(t)}}
	l := NewLoader(source, cache)

	_, err := l.Load(context.Background(), "album-1")
	require.NoError(t, err)
	_, err = l.Load(context.Background(), "album-1")
	require.NoError(t, err)

	assert.Equal(t, 1, source.calls)
	assert.Equal(t, 1, cache.sets)
}

func TestLoader_CacheFailuresAreIgnored(t *testing.T) {
	cache := &fakeCache{
		items:  map[string]*manifest.Manifest{},
		getErr: errors.New("redis down"),
		setErr: errors.New("redis down"),
	}
	source := &fakeSource{results: map[string]*manifest.Manifest{"album-1": sampleManifest(t)}}
	l := NewLoader(source, cache)

	m, err := l.Load(context.Background(), "album-1")
	require.NoError(t, err)
	assert.Equal(t, "Night Drive", m.AlbumTitle)
	assert.Equal(t, 1, source.calls)
}

func TestLoader_FetchErrorIsNotCached(t *testing.T) {
	cache := &fakeCache{items: map[string]*manifest.Manifest{}}
	l := NewLoader(&fakeSource{results: map[string]*manifest.Manifest{}}, cache)

	_, err := l.Load(context.Background(), "gone")
	assert.True(t, errors.Is(err, manifest.ErrManifestFetch))
	assert.Equal(t, 0, cache.sets)
}
