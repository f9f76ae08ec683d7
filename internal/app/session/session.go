package session

import (
	"sync/atomic"
	"time"

	"github.com/osa030/previewbox/internal/app/notification"
	"github.com/osa030/previewbox/internal/app/playback"
	"github.com/osa030/previewbox/internal/domain/manifest"
)

// Session is one open preview of a published album.
type Session struct {
	ID       string
	ShareID  string
	OpenedAt time.Time

	// Manifest is nil when loading failed; LoadErr holds the reason.
	Manifest *manifest.Manifest
	LoadErr  error

	engine      *playback.Engine
	notifier    *notification.Manager
	unsubscribe func()
	lastActive  atomic.Int64
	done        chan struct{}
}

// Engine returns the playback engine of the session.
func (s *Session) Engine() *playback.Engine {
	return s.engine
}

// Notifier returns the snapshot broadcaster of the session.
func (s *Session) Notifier() *notification.Manager {
	return s.notifier
}

// AlbumTitle returns the album title, or "" when the manifest did not load.
func (s *Session) AlbumTitle() string {
	if s.Manifest == nil {
		return ""
	}
	return s.Manifest.AlbumTitle
}

// Touch records activity on the session.
func (s *Session) Touch(now time.Time) {
	s.lastActive.Store(now.UnixNano())
}

// LastActive returns the time of the last recorded activity.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// close stops the engine and drops every subscriber.
func (s *Session) close() error {
	s.unsubscribe()
	err := s.engine.Close()
	s.notifier.Close()
	close(s.done)
	return err
}
