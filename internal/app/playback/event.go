package playback

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/previewbox/internal/app/navigator"
)

// Errors
var (
	ErrPlaybackBlocked = errors.New("playback blocked")
	ErrMediaDecode     = errors.New("media decode error")
)

// NoticeKind identifies an informational playback condition.
type NoticeKind int

const (
	NoticeNone             NoticeKind = iota
	NoticeNoPlayableTrack             // Selected track has no playback URL
	NoticePlaybackBlocked             // Output rejected a play request
	NoticeMediaDecodeError            // Output failed to load or decode the source
)

// String returns the string representation of the notice kind.
func (k NoticeKind) String() string {
	switch k {
	case NoticeNone:
		return "none"
	case NoticeNoPlayableTrack:
		return "no_playable_track"
	case NoticePlaybackBlocked:
		return "playback_blocked"
	case NoticeMediaDecodeError:
		return "media_decode_error"
	default:
		return "unknown"
	}
}

// Notice is a recovered playback error exposed on the snapshot.
type Notice struct {
	Kind    NoticeKind
	Message string
}

// Err returns the notice as an error matching the taxonomy sentinels.
func (n Notice) Err() error {
	var sentinel error
	switch n.Kind {
	case NoticeNoPlayableTrack:
		sentinel = navigator.ErrNoPlayableTrack
	case NoticePlaybackBlocked:
		sentinel = ErrPlaybackBlocked
	case NoticeMediaDecodeError:
		sentinel = ErrMediaDecode
	default:
		return nil
	}
	if n.Message == "" {
		return sentinel
	}
	return errors.Wrap(sentinel, n.Message)
}

// Snapshot is an immutable view of the playback session.
type Snapshot struct {
	Seq          uint64        // Increases with every emitted snapshot
	ActiveIndex  int           // -1 when nothing is selected
	Status       Status        // Engine state
	Position     time.Duration // Always within [0, min(Duration || ∞, Cap)]
	Duration     time.Duration // Known duration of the active track (0 = unknown)
	Cap          time.Duration // Preview limit
	PlayIntent   bool          // Continuous playback requested
	PreviewEnded bool          // Active track was cut at the preview limit
	Notice       Notice        // Last recovered error, cleared by the next bind
}
