package playback

import "time"

// Binding identifies one bind of a source to the output. Every asynchronous
// notification carries the binding it refers to; the engine discards those
// that do not match the current one.
type Binding struct {
	ID  uint64
	URL string
}

// IsZero returns true when nothing is bound.
func (b Binding) IsZero() bool {
	return b.ID == 0
}

// Source describes the media to bind.
type Source struct {
	URL      string
	Duration time.Duration // Declared duration, 0 when unknown
}

// Outcome is the resolution of a play request.
type Outcome int

const (
	OutcomeStarted Outcome = iota // Output started producing audio
	OutcomeBlocked                // Output (platform) rejected the request
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeStarted:
		return "started"
	case OutcomeBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Events receives notifications from an output. Outputs deliver them
// asynchronously and never from inside a call made by the engine.
type Events interface {
	Acknowledge(b Binding, outcome Outcome, reason string)
	TimeUpdate(b Binding, pos time.Duration)
	DurationChange(b Binding, d time.Duration)
	Ended(b Binding)
	MediaError(b Binding, err error)
}

// Output is the single audio output owned by an engine.
type Output interface {
	// Attach registers the event sink. Called once by the engine.
	Attach(events Events)
	// Bind loads src; the position starts at 0.
	Bind(b Binding, src Source) error
	// Unbind pauses, resets and releases the current source.
	Unbind()
	// Play requests playback; the outcome arrives through Events.Acknowledge.
	Play(b Binding, userInitiated bool)
	Pause()
	Seek(pos time.Duration)
	Position() time.Duration
	Close() error
}
