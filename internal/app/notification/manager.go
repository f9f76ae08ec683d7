// Package notification provides the notification manager for broadcasting
// playback snapshots of one preview session.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/previewbox/internal/app/playback"
)

// DefaultSendTimeout bounds a single stream send.
const DefaultSendTimeout = 500 * time.Millisecond

// Notification is one snapshot delivered to subscribers.
type Notification struct {
	SequenceNo uint64
	SessionID  string
	Snapshot   playback.Snapshot
}

// Stream represents a notification stream for a subscriber.
// Send may be called from several goroutines.
type Stream interface {
	Send(*Notification) error
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	stream Stream
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	sessionID   string
	sendTimeout time.Duration

	mu            sync.RWMutex
	subscriptions map[string]*subscription

	// Serializes broadcasts so subscribers see snapshots in order
	broadcastMu sync.Mutex
	sequenceNo  uint64
	lastSeq     uint64
	latest      *Notification
}

// NewManager creates a new notification manager for sessionID.
func NewManager(sessionID string) *Manager {
	return &Manager{
		sessionID:     sessionID,
		sendTimeout:   DefaultSendTimeout,
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Publish is a playback.Listener that broadcasts s.
func (m *Manager) Publish(s playback.Snapshot) {
	m.Broadcast(s)
}

// Broadcast sends a snapshot to all subscribers and reports whether it was
// sent. Snapshots older than the last broadcast one are dropped.
// Each stream send is done in a goroutine with a timeout to prevent blocking.
func (m *Manager) Broadcast(s playback.Snapshot) bool {
	m.broadcastMu.Lock()
	defer m.broadcastMu.Unlock()

	if m.latest != nil && s.Seq <= m.lastSeq {
		zlog.Debug().Msgf("notification: dropping out-of-order snapshot: session=%s seq=%d last=%d", m.sessionID, s.Seq, m.lastSeq)
		return false
	}
	m.lastSeq = s.Seq
	m.sequenceNo++
	n := &Notification{
		SequenceNo: m.sequenceNo,
		SessionID:  m.sessionID,
		Snapshot:   s,
	}
	m.latest = n

	m.mu.RLock()
	// Copy subscriptions to avoid holding lock during sends
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	// Send to each subscriber in parallel with timeout
	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- sub.stream.Send(n)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Err(err).Msgf("notification: removing failed subscriber: session=%s subscription=%s", m.sessionID, sub.id)
					m.Unsubscribe(sub.id)
				}
			case <-ctx.Done():
				zlog.Warn().Msgf("notification: send timed out: session=%s subscription=%s seq=%d", m.sessionID, sub.id, n.SequenceNo)
			}
		}(sub)
	}

	// Wait for all sends to complete or timeout
	wg.Wait()
	return true
}

// Latest returns the last broadcast notification, or nil.
func (m *Manager) Latest() *Notification {
	m.broadcastMu.Lock()
	defer m.broadcastMu.Unlock()
	return m.latest
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close closes the manager and removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
