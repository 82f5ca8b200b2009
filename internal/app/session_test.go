package app

import (
	"testing"
	"time"
)

func TestNewSession(t *testing.T) {
	tests := []struct {
		name    string
		command string
		now     time.Time
		wantID  string
	}{
		{
			name:    "utc start",
			command: "list",
			now:     time.Date(2015, 1, 1, 8, 0, 5, 0, time.UTC),
			wantID:  "20150101T080005Z",
		},
		{
			name:    "zoned start is normalized to utc",
			command: "take",
			now:     time.Date(2015, 1, 1, 9, 0, 5, 0, time.FixedZone("CET", 3600)),
			wantID:  "20150101T080005Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(tt.command, tt.now)

			if s.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", s.ID, tt.wantID)
			}
			if s.Command != tt.command {
				t.Errorf("Command = %q, want %q", s.Command, tt.command)
			}
			if !s.Started.Equal(tt.now) {
				t.Errorf("Started = %v, want %v", s.Started, tt.now)
			}
		})
	}
}

func TestSession_Elapsed(t *testing.T) {
	start := time.Date(2015, 1, 1, 8, 0, 0, 0, time.UTC)
	s := NewSession("watch", start)

	got := s.Elapsed(start.Add(1500*time.Millisecond + 300*time.Microsecond))
	if got != 1500*time.Millisecond {
		t.Errorf("Elapsed() = %v, want 1.5s", got)
	}
}
