package app

import "time"

// Session identifies one CLI invocation in the log. Every line logged while
// the app is open carries the session ID.
type Session struct {
	ID      string
	Command string
	Started time.Time
}

// NewSession creates a session for command started at now. The ID is the UTC
// start time, so log lines of one invocation sort and group together.
func NewSession(command string, now time.Time) *Session {
	return &Session{
		ID:      now.UTC().Format("20060102T150405Z"),
		Command: command,
		Started: now,
	}
}

// Elapsed returns the time since the session started, rounded to milliseconds.
func (s *Session) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.Started).Round(time.Millisecond)
}
