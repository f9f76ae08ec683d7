// Package navigator provides index arithmetic over a playlist.
package navigator

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/osa030/previewbox/internal/domain/playlist"
)

// Errors
var (
	ErrEmptyPlaylist   = errors.New("playlist is empty")
	ErrNoPlayableTrack = errors.New("track has no playback url")
)

// None is the index reported when nothing can be selected.
const None = -1

// Navigator selects playlist indexes. It never wraps around.
type Navigator struct {
	playlist *playlist.Playlist
}

// New creates a navigator over p.
func New(p *playlist.Playlist) *Navigator {
	return &Navigator{playlist: p}
}

// Select clamps i into the playlist. The clamped index is returned even when
// the track is unplayable, together with ErrNoPlayableTrack.
func (n *Navigator) Select(i int) (int, error) {
	if n.playlist.Len() == 0 {
		return None, ErrEmptyPlaylist
	}
	idx := n.clamp(i)
	if t, _ := n.playlist.At(idx); !t.Playable() {
		return idx, ErrNoPlayableTrack
	}
	return idx, nil
}

// Next returns the index after cur, or cur at the last index.
func (n *Navigator) Next(cur int) int {
	if n.playlist.Len() == 0 {
		return None
	}
	if cur < 0 {
		return 0
	}
	return n.clamp(cur + 1)
}

// Prev returns the index before cur, or cur at the first index.
func (n *Navigator) Prev(cur int) int {
	if n.playlist.Len() == 0 {
		return None
	}
	if cur < 0 {
		return 0
	}
	return n.clamp(cur - 1)
}

// NextPlayable returns the first playable index after cur.
func (n *Navigator) NextPlayable(cur int) (int, bool) {
	for i := max(cur+1, 0); i < n.playlist.Len(); i++ {
		if t, _ := n.playlist.At(i); t.Playable() {
			return i, true
		}
	}
	return None, false
}

func (n *Navigator) clamp(i int) int {
	return lo.Clamp(i, 0, n.playlist.Len()-1)
}
