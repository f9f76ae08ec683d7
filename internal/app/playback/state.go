// Package playback provides the preview playback engine.
package playback

// Status represents the engine state.
type Status int

const (
	StatusIdle    Status = iota // Nothing playing (nothing selected, blocked, or playlist exhausted)
	StatusLoading               // Play requested, waiting for the output acknowledgment
	StatusPlaying               // Output acknowledged and is producing audio
	StatusPaused                // Stopped by the user (or a blocked automatic advance)
	StatusCapped                // Preview limit reached
	StatusEnded                 // Track ended before the preview limit
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusCapped:
		return "capped"
	case StatusEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Active returns true while the output is expected to produce audio.
func (s Status) Active() bool {
	return s == StatusLoading || s == StatusPlaying
}

// Boundary returns true for the statuses that trigger continuation.
func (s Status) Boundary() bool {
	return s == StatusCapped || s == StatusEnded
}
