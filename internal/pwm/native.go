package pwm

import (
	"errors"
	"fmt"
	"math"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Pin is the part of a periph gpio.PinOut the native backend needs.
type Pin interface {
	String() string
	PWM(duty gpio.Duty, f physic.Frequency) error
}

// PinLookup resolves a channel's pin number; it returns nil for unknown pins.
type PinLookup func(pin int) Pin

// NativeBackend generates PWM on the board's own pins.
type NativeBackend struct {
	lookup PinLookup
	freq   physic.Frequency
	used   map[int]Pin
}

// NewNativeBackend creates a backend resolving pins through lookup.
func NewNativeBackend(lookup PinLookup) *NativeBackend {
	return &NativeBackend{
		lookup: lookup,
		used:   make(map[int]Pin),
	}
}

func (n *NativeBackend) String() string { return "native" }

// Configure stores the carrier frequency; pins pick it up on the next Push.
func (n *NativeBackend) Configure(freqHz uint32) error {
	if freqHz == 0 {
		return errors.New("native: frequency must be positive")
	}
	n.freq = physic.Frequency(freqHz) * physic.Hertz
	return nil
}

// Push sets every output's duty cycle in order, so a pin listed twice ends at
// its last entry. A failing pin does not stop the others.
func (n *NativeBackend) Push(outputs []Output) error {
	if n.freq == 0 {
		return errors.New("native: not configured")
	}
	var errs []error
	for _, o := range outputs {
		p := n.lookup(o.Pin)
		if p == nil {
			errs = append(errs, fmt.Errorf("channel %d: pin %d not found", o.Channel, o.Pin))
			continue
		}
		if err := p.PWM(Duty(o.Percent), n.freq); err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %s: %w", o.Channel, p, err))
			continue
		}
		n.used[o.Pin] = p
	}
	return errors.Join(errs...)
}

// Close drives every pin used so far to 0%.
func (n *NativeBackend) Close() error {
	var errs []error
	for _, p := range n.used {
		if err := p.PWM(0, n.freq); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// Duty converts a percentage to a periph duty cycle.
func Duty(percent float64) gpio.Duty {
	switch {
	case math.IsNaN(percent), percent <= 0:
		return 0
	case percent >= 100:
		return gpio.DutyMax
	}
	return gpio.Duty(math.Round(percent / 100 * float64(gpio.DutyMax)))
}
