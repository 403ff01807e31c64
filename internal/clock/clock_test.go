package clock

import (
	"testing"
	"time"
)

func TestLocalSeconds(t *testing.T) {
	tests := []struct {
		name  string
		epoch int64
		tz    int
		want  uint32
	}{
		{"utc midnight", 1767225600, 0, 0}, // 2026-01-01T00:00:00Z
		{"utc morning", 1767225600 + 9*3600 + 30*60, 0, 34200},
		{"east of utc", 1767225600 + 23*3600, 2, 3600},
		{"west of utc", 1767225600 + 1800, -5, 19*3600 + 1800},
		{"before epoch", -1, 0, 86399},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LocalSeconds(tt.epoch, tt.tz); got != tt.want {
				t.Errorf("LocalSeconds(%d, %d): got %d, want %d", tt.epoch, tt.tz, got, tt.want)
			}
		})
	}
}

func TestSystemTracksOffset(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tz := 0
	c := NewSystem(func() time.Time { return now }, func() int { return tz })

	if got := c.SecondsSinceMidnight(); got != 36000 {
		t.Errorf("tz=0: got %d, want 36000", got)
	}
	tz = 3
	if got := c.SecondsSinceMidnight(); got != 46800 {
		t.Errorf("tz=3: got %d, want 46800", got)
	}
	if got := c.EpochSeconds(); got != uint64(now.Unix()) {
		t.Errorf("EpochSeconds: got %d, want %d", got, now.Unix())
	}
}
