//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealEnabler drives the /OE line through the Linux GPIO character device.
type RealEnabler struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealEnabler requests offset on chip as an output. The line starts
// high so the outputs stay disabled until the first configuration.
func NewRealEnabler(chip string, offset int) (*RealEnabler, error) {
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := c.RequestLine(offset, gpiocdev.AsOutput(1), gpiocdev.WithConsumer("aqualight-oe"))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("request OE line %d: %w", offset, err)
	}

	return &RealEnabler{
		chip: c,
		line: line,
	}, nil
}

// SetEnabled drives /OE low to enable the outputs, high to disable them.
func (r *RealEnabler) SetEnabled(enabled bool) error {
	v := 1
	if enabled {
		v = 0
	}
	if err := r.line.SetValue(v); err != nil {
		return fmt.Errorf("set OE line: %w", err)
	}
	return nil
}

// Close leaves the outputs disabled and releases the line.
// Reconfiguring to input lets the board's pull-up hold /OE high (outputs off)
// while the daemon is not running.
func (r *RealEnabler) Close() error {
	var errs []error

	if r.line != nil {
		if err := r.line.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure OE line: %w", err))
		}
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close OE line: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
