// Package playlist provides the Playlist domain entity.
package playlist

import (
	"time"

	"github.com/samber/lo"

	"github.com/osa030/previewbox/internal/domain/track"
)

// Playlist is the ordered, slot de-duplicated track list of one album.
// It is immutable once built.
type Playlist struct {
	id     string
	name   string
	tracks []track.Track
}

// New builds a playlist from manifest tracks, keeping manifest order.
// The first track carrying a given non-zero slot wins; slot 0 is never merged.
func New(id, name string, tracks []track.Track) *Playlist {
	seen := make(map[int]bool, len(tracks))
	kept := lo.Filter(tracks, func(t track.Track, _ int) bool {
		if t.Slot == 0 {
			return true
		}
		if seen[t.Slot] {
			return false
		}
		seen[t.Slot] = true
		return true
	})
	return &Playlist{id: id, name: name, tracks: kept}
}

// Empty returns a playlist without tracks.
func Empty(id string) *Playlist {
	return &Playlist{id: id}
}

// ID returns the share ID the playlist was derived from.
func (p *Playlist) ID() string { return p.id }

// Name returns the album title.
func (p *Playlist) Name() string { return p.name }

// Len returns the number of tracks.
func (p *Playlist) Len() int { return len(p.tracks) }

// At returns the track at index i.
func (p *Playlist) At(i int) (track.Track, bool) {
	if i < 0 || i >= len(p.tracks) {
		return track.Track{}, false
	}
	return p.tracks[i], true
}

// Tracks returns a copy of the tracks.
func (p *Playlist) Tracks() []track.Track {
	result := make([]track.Track, len(p.tracks))
	copy(result, p.tracks)
	return result
}

// PlayableCount returns the number of tracks with a playback URL.
func (p *Playlist) PlayableCount() int {
	return lo.CountBy(p.tracks, func(t track.Track) bool { return t.Playable() })
}

// TotalDuration returns the sum of declared durations.
func (p *Playlist) TotalDuration() time.Duration {
	return lo.SumBy(p.tracks, func(t track.Track) time.Duration { return t.Duration })
}
