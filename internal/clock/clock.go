// Package clock supplies wall-clock time to the lighting engine.
// The host is expected to keep its clock in sync (systemd-timesyncd, chrony);
// this package only applies the configured timezone offset.
package clock

import (
	"time"

	"github.com/sweeney/aqualight/internal/logic"
)

// Clock reports the time used for schedule lookup and client display.
type Clock interface {
	// SecondsSinceMidnight returns local seconds since midnight, [0, 86399].
	SecondsSinceMidnight() uint32

	// EpochSeconds returns seconds since the Unix epoch.
	EpochSeconds() uint64
}

// System reads the host clock and shifts it by a whole-hour timezone offset.
type System struct {
	now    func() time.Time
	offset func() int
}

// NewSystem creates a System clock. offset returns the current timezone in
// hours; it is consulted on every call so settings changes apply at once.
func NewSystem(now func() time.Time, offset func() int) *System {
	if now == nil {
		now = time.Now
	}
	if offset == nil {
		offset = func() int { return 0 }
	}
	return &System{now: now, offset: offset}
}

// SecondsSinceMidnight returns local seconds since midnight.
func (s *System) SecondsSinceMidnight() uint32 {
	return LocalSeconds(s.now().Unix(), s.offset())
}

// EpochSeconds returns seconds since the Unix epoch.
func (s *System) EpochSeconds() uint64 {
	sec := s.now().Unix()
	if sec < 0 {
		return 0
	}
	return uint64(sec)
}

// LocalSeconds converts an epoch timestamp to seconds since local midnight.
func LocalSeconds(epoch int64, tzHours int) uint32 {
	local := (epoch + int64(tzHours)*3600) % logic.SecondsPerDay
	if local < 0 {
		local += logic.SecondsPerDay
	}
	return uint32(local)
}

// Fixed is a test clock returning preset values.
type Fixed struct {
	Seconds uint32
	Epoch   uint64
}

func (f *Fixed) SecondsSinceMidnight() uint32 { return f.Seconds }
func (f *Fixed) EpochSeconds() uint64         { return f.Epoch }
