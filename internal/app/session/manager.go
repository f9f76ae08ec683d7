// Package session provides the manager of open preview sessions.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/previewbox/internal/app/notification"
	"github.com/osa030/previewbox/internal/app/playback"
	"github.com/osa030/previewbox/internal/app/session/registry"
	"github.com/osa030/previewbox/internal/domain/playlist"
)

var (
	ErrSessionNotFound = registry.ErrNotFound
	ErrManagerClosed   = errors.New("session manager is closed")
)

// OutputFactory creates the output owned by a new session.
type OutputFactory func() (playback.Output, error)

// Config represents session manager configuration.
type Config struct {
	Cap          time.Duration // Preview limit
	PollInterval time.Duration // Engine position poll
	IdleTimeout  time.Duration // Close sessions unused for this long (0 = never)
}

// Manager manages preview sessions.
type Manager struct {
	config    Config
	loader    *Loader
	newOutput OutputFactory
	sessions  *registry.Registry[*Session]
	now       func() time.Time

	mu     sync.Mutex
	closed bool

	// Channels
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a new session manager and starts the idle reaper.
func NewManager(cfg Config, loader *Loader, newOutput OutputFactory) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:    cfg,
		loader:    loader,
		newOutput: newOutput,
		sessions:  registry.New[*Session](),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	if cfg.IdleTimeout > 0 {
		go m.reapLoop(reapInterval(cfg.IdleTimeout))
	} else {
		close(m.done)
	}
	return m
}

// Open loads the manifest of shareID and opens a session for it.
// A manifest failure still opens a session with an empty playlist; the
// failure is reported on Session.LoadErr.
func (m *Manager) Open(ctx context.Context, shareID string) (*Session, error) {
	mf, loadErr := m.loader.Load(ctx, shareID)
	p := playlist.Empty(shareID)
	if loadErr != nil {
		zlog.Warn().Err(loadErr).Msgf("session: manifest load failed: share_id=%s", shareID)
	} else {
		p = mf.Playlist()
	}

	out, err := m.newOutput()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create output")
	}

	id := registry.NewID()
	engine := playback.NewEngine(p, out, playback.Config{
		Cap:          m.config.Cap,
		PollInterval: m.config.PollInterval,
	})
	notifier := notification.NewManager(id)

	s := &Session{
		ID:          id,
		ShareID:     shareID,
		OpenedAt:    m.now(),
		Manifest:    mf,
		LoadErr:     loadErr,
		engine:      engine,
		notifier:    notifier,
		unsubscribe: engine.Subscribe(notifier.Publish),
		done:        make(chan struct{}),
	}
	s.Touch(s.OpenedAt)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		_ = s.close()
		return nil, ErrManagerClosed
	}
	if err := m.sessions.Add(id, s); err != nil {
		_ = s.close()
		return nil, err
	}

	zlog.Info().Msgf("session: opened: id=%s share_id=%s tracks=%d playable=%d", id, shareID, p.Len(), p.PlayableCount())
	return s, nil
}

// Get returns an open session and records activity on it.
func (m *Manager) Get(id string) (*Session, error) {
	s, err := m.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	s.Touch(m.now())
	return s, nil
}

// Close closes one session.
func (m *Manager) Close(id string) error {
	s, err := m.sessions.Remove(id)
	if err != nil {
		return err
	}
	zlog.Info().Msgf("session: closed: id=%s share_id=%s", id, s.ShareID)
	return s.close()
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	return m.sessions.Count()
}

// Shutdown stops the reaper and closes every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	<-m.done

	for _, s := range m.sessions.RemoveAll() {
		if err := s.close(); err != nil {
			zlog.Warn().Err(err).Msgf("session: close failed: id=%s", s.ID)
		}
	}
	zlog.Info().Msg("session: manager shut down")
}

// reapIdle closes sessions without activity for longer than the idle timeout.
func (m *Manager) reapIdle() int {
	deadline := m.now().Add(-m.config.IdleTimeout)
	closed := 0
	for _, s := range m.sessions.All() {
		if !s.LastActive().Before(deadline) {
			continue
		}
		if err := m.Close(s.ID); err != nil {
			continue
		}
		zlog.Info().Msgf("session: closed idle session: id=%s", s.ID)
		closed++
	}
	return closed
}

func (m *Manager) reapLoop(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.reapIdle()
		}
	}
}

func reapInterval(timeout time.Duration) time.Duration {
	return min(max(timeout/4, time.Second), time.Minute)
}
