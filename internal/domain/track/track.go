// Package track provides the Track domain entity.
package track

import (
	"fmt"
	"time"
)

// Track represents one entry of a published album.
type Track struct {
	Slot        int           // Ordering key from the manifest (0 = unknown)
	Title       string        // Track title
	Duration    time.Duration // Declared duration (0 = unknown)
	PlaybackURL string        // Preview audio URL (empty = unplayable)
}

// Playable reports whether the track can be bound to a media output.
func (t Track) Playable() bool {
	return t.PlaybackURL != ""
}

// HasDuration reports whether the manifest declared a duration.
func (t Track) HasDuration() bool {
	return t.Duration > 0
}

// DisplayTitle returns the title, falling back to the 1-based position.
func (t Track) DisplayTitle(index int) string {
	if t.Title != "" {
		return t.Title
	}
	return fmt.Sprintf("Track %d", index+1)
}
