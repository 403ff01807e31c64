// Package gpio drives the output-enable line of the PWM expander.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Enabler switches the PWM outputs on or off as a group.
type Enabler interface {
	// SetEnabled drives the line. The PCA9685 /OE input is active low, so
	// enabled=true drives the raw line low.
	SetEnabled(enabled bool) error

	// Close releases GPIO resources.
	Close() error
}

// Defaults for a Raspberry Pi header.
const (
	DefaultChip = "gpiochip0"
	DefaultLine = -1 // no output-enable line wired
)
