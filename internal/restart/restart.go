// Package restart carries out operator-requested restarts. A restart waits a
// fixed delay, releases hardware, then either re-executes the daemon or
// reboots the device. A successful restart does not return.
package restart

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Mode selects what a restart does.
type Mode string

const (
	ModeProcess Mode = "process" // re-exec the daemon binary
	ModeReboot  Mode = "reboot"  // reboot the device
)

// DefaultDelay is the wait between the request and the restart.
const DefaultDelay = 5 * time.Second

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeProcess || m == ModeReboot
}

// Restarter restarts the process or the device.
type Restarter struct {
	mode  Mode
	delay time.Duration

	// Before runs after the delay, right before the restart.
	Before func()

	execSelf func() error
	reboot   func() error
}

// New creates a Restarter.
func New(mode Mode, delay time.Duration) (*Restarter, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("restart: unknown mode %q", mode)
	}
	if delay < 0 {
		delay = 0
	}
	return &Restarter{
		mode:     mode,
		delay:    delay,
		execSelf: execSelf,
		reboot:   reboot,
	}, nil
}

// Restart waits the configured delay and restarts. It returns only on
// failure or if ctx is cancelled during the delay.
func (r *Restarter) Restart(ctx context.Context) error {
	log.WithFields(log.Fields{"mode": r.mode, "delay": r.delay}).Warn("restart: scheduled")

	t := time.NewTimer(r.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}

	if r.Before != nil {
		r.Before()
	}

	var err error
	switch r.mode {
	case ModeReboot:
		err = r.reboot()
	default:
		err = r.execSelf()
	}
	return fmt.Errorf("restart (%s): %w", r.mode, err)
}
