// Package capguard enforces the preview length limit on a stream of position samples.
package capguard

import "time"

// DefaultCap is the preview limit applied to every track.
const DefaultCap = 40 * time.Second

// Enforcer reports the first sample at or beyond the cap and stays silent
// until re-armed. Samples may come from several sources (progress events and
// a poll); only the first detection of a crossing fires.
type Enforcer struct {
	limit   time.Duration
	tripped bool
}

// New creates an enforcer for limit. A non-positive limit uses DefaultCap.
func New(limit time.Duration) *Enforcer {
	if limit <= 0 {
		limit = DefaultCap
	}
	return &Enforcer{limit: limit}
}

// Limit returns the cap.
func (e *Enforcer) Limit() time.Duration {
	return e.limit
}

// Observe records a position sample and reports whether it is the crossing.
func (e *Enforcer) Observe(pos time.Duration) bool {
	if pos < e.limit || e.tripped {
		return false
	}
	e.tripped = true
	return true
}

// Tripped reports whether the current crossing has already fired.
func (e *Enforcer) Tripped() bool {
	return e.tripped
}

// Rearm clears the guard after the position went back below the cap.
func (e *Enforcer) Rearm() {
	e.tripped = false
}

// Clamp bounds pos to [0, min(duration, limit)]; a zero duration means unknown.
func (e *Enforcer) Clamp(pos, duration time.Duration) time.Duration {
	upper := e.limit
	if duration > 0 && duration < upper {
		upper = duration
	}
	return min(max(pos, 0), upper)
}
