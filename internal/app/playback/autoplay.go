package playback

// AutoplayPolicy decides whether an automatic advance requests playback and
// absorbs platform rejection of that request.
type AutoplayPolicy struct{}

// ShouldContinue reports whether the track after a boundary is played.
func (AutoplayPolicy) ShouldContinue(intentBefore bool) bool {
	return intentBefore
}

// absorb downgrades the session after an automatic play request was
// rejected. The rejection is informational, never escalated.
func (AutoplayPolicy) absorb(s *session, reason string) {
	s.status = StatusPaused
	s.position = 0
	s.playIntent = false
	s.notice = Notice{Kind: NoticePlaybackBlocked, Message: blockedMessage(reason)}
}

func blockedMessage(reason string) string {
	if reason == "" {
		return "play request was rejected"
	}
	return "play request was rejected: " + reason
}
