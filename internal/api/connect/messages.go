package connect

import (
	"time"

	"github.com/osa030/previewbox/internal/app/notification"
	"github.com/osa030/previewbox/internal/app/playback"
	"github.com/osa030/previewbox/internal/domain/playlist"
)

// OpenSessionRequest opens a preview of the album published under ShareID.
type OpenSessionRequest struct {
	ShareID string `json:"share_id"`
}

// OpenSessionResponse describes the opened session.
type OpenSessionResponse struct {
	SessionID  string    `json:"session_id"`
	AlbumTitle string    `json:"album_title"`
	CoverURL   string    `json:"cover_url,omitempty"`
	Tracks     []Track   `json:"tracks"`
	Snapshot   *Snapshot `json:"snapshot"`
	LoadError  string    `json:"load_error,omitempty"`
}

// SessionRequest addresses an open session.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// SelectTrackRequest selects and plays a track.
type SelectTrackRequest struct {
	SessionID string `json:"session_id"`
	Index     int    `json:"index"`
}

// SeekRequest moves the active track.
type SeekRequest struct {
	SessionID string  `json:"session_id"`
	Seconds   float64 `json:"seconds"`
}

// SnapshotResponse carries the session state after a command.
type SnapshotResponse struct {
	Snapshot *Snapshot `json:"snapshot"`
}

// CloseSessionResponse acknowledges a closed session.
type CloseSessionResponse struct{}

// Notification is one WatchSession message.
type Notification struct {
	SequenceNo uint64    `json:"sequence_no"`
	SessionID  string    `json:"session_id"`
	Snapshot   *Snapshot `json:"snapshot"`
}

// Track is one playlist entry.
type Track struct {
	Index       int     `json:"index"`
	Slot        int     `json:"slot"`
	Title       string  `json:"title"`
	DurationSec float64 `json:"duration_sec"`
	Playable    bool    `json:"playable"`
}

// Snapshot is the wire form of playback.Snapshot.
type Snapshot struct {
	Seq           uint64  `json:"seq"`
	ActiveIndex   int     `json:"active_index"`
	Status        string  `json:"status"`
	PositionSec   float64 `json:"position_sec"`
	DurationSec   float64 `json:"duration_sec"`
	CapSec        float64 `json:"cap_sec"`
	PlayIntent    bool    `json:"play_intent"`
	PreviewEnded  bool    `json:"preview_ended"`
	Notice        string  `json:"notice,omitempty"`
	NoticeMessage string  `json:"notice_message,omitempty"`
}

func toSnapshot(s playback.Snapshot) *Snapshot {
	result := &Snapshot{
		Seq:          s.Seq,
		ActiveIndex:  s.ActiveIndex,
		Status:       s.Status.String(),
		PositionSec:  s.Position.Seconds(),
		DurationSec:  s.Duration.Seconds(),
		CapSec:       s.Cap.Seconds(),
		PlayIntent:   s.PlayIntent,
		PreviewEnded: s.PreviewEnded,
	}
	if s.Notice.Kind != playback.NoticeNone {
		result.Notice = s.Notice.Kind.String()
		result.NoticeMessage = s.Notice.Message
	}
	return result
}

func toTracks(p *playlist.Playlist) []Track {
	tracks := p.Tracks()
	result := make([]Track, 0, len(tracks))
	for i, t := range tracks {
		result = append(result, Track{
			Index:       i,
			Slot:        t.Slot,
			Title:       t.DisplayTitle(i),
			DurationSec: t.Duration.Seconds(),
			Playable:    t.Playable(),
		})
	}
	return result
}

func toNotification(n *notification.Notification) *Notification {
	return &Notification{
		SequenceNo: n.SequenceNo,
		SessionID:  n.SessionID,
		Snapshot:   toSnapshot(n.Snapshot),
	}
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
