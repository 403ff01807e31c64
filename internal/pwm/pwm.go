// Package pwm pushes computed channel levels to the PWM hardware.
//
// A Dispatcher owns one Backend per logic.Generator and rate-limits hardware
// writes: a tick only reaches the bus once every PushInterval unless forced.
package pwm

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/aqualight/internal/clock"
	"github.com/sweeney/aqualight/internal/logic"
)

// PushInterval is the minimum time between unforced hardware pushes.
const PushInterval = 5000 * time.Millisecond

// Output is one channel's level as handed to a backend.
type Output struct {
	Channel int     // engine channel index
	Pin     int     // native pin number; ignored by the expander
	Percent float64 // [0, 100]
}

// Backend drives a set of PWM outputs sharing one carrier frequency.
type Backend interface {
	// Configure sets the carrier frequency. Outputs may glitch while it runs.
	Configure(freqHz uint32) error

	// Push writes all outputs.
	Push(outputs []Output) error

	// Close releases the hardware, leaving outputs off where possible.
	Close() error

	String() string
}

// Dispatcher computes levels from the engine and pushes them to the backend
// selected by the engine's Generator. It is not safe for concurrent use; the
// control loop owns it together with the engine.
type Dispatcher struct {
	engine   *logic.Engine
	clock    clock.Clock
	backends map[logic.Generator]Backend

	configured bool
	active     logic.Generator
	freq       uint32

	lastPush time.Time
	pushed   bool
	pushes   int

	// held is what the active backend was last asked to drive.
	held []Output
}

// NewDispatcher creates a Dispatcher. Backends are looked up by generator;
// a generator without a backend fails at configuration time.
func NewDispatcher(engine *logic.Engine, clk clock.Clock, backends map[logic.Generator]Backend) *Dispatcher {
	return &Dispatcher{
		engine:   engine,
		clock:    clk,
		backends: backends,
	}
}

// Reconfigure applies the engine's generator and frequency to the hardware.
// When the generator changes, whatever the previous backend was driving is
// switched off first.
// Callers should force a tick afterwards.
func (d *Dispatcher) Reconfigure() error {
	gen, freq := d.engine.Generator, d.engine.Frequency
	b, ok := d.backends[gen]
	if !ok {
		return fmt.Errorf("pwm: no backend for generator %s", gen)
	}
	if freq == 0 {
		return fmt.Errorf("pwm: frequency must be positive")
	}

	if d.configured && d.active != gen && len(d.held) > 0 {
		if prev, ok := d.backends[d.active]; ok {
			if err := prev.Push(d.withReleased(nil)); err != nil {
				log.WithField("backend", prev.String()).Warnf("pwm: switch off previous backend: %v", err)
			}
		}
		d.held = nil
	}

	if err := b.Configure(freq); err != nil {
		d.configured = false
		return fmt.Errorf("configure %s at %d Hz: %w", b, freq, err)
	}
	d.configured = true
	d.active = gen
	d.freq = freq
	log.WithFields(log.Fields{"backend": b.String(), "frequency": freq}).Info("pwm: configured")
	return nil
}

// Tick recomputes every active channel and pushes the result, unless the
// last push was less than PushInterval ago and force is false. It reports
// whether a push was attempted. The first tick always pushes.
func (d *Dispatcher) Tick(now time.Time, force bool) (bool, error) {
	if !force && d.pushed && now.Sub(d.lastPush) < PushInterval {
		return false, nil
	}

	d.lastPush = now
	d.pushed = true

	if !d.configured || d.active != d.engine.Generator || d.freq != d.engine.Frequency {
		if err := d.Reconfigure(); err != nil {
			return false, err
		}
	}

	d.engine.Update(d.clock.SecondsSinceMidnight())

	b := d.backends[d.active]
	outs := d.outputs()
	all := d.withReleased(outs)
	d.pushes++
	if err := b.Push(all); err != nil {
		// Keep released outputs so the next push retries switching them off.
		d.held = all
		return true, fmt.Errorf("push to %s: %w", b, err)
	}
	d.held = outs
	log.WithFields(log.Fields{"backend": b.String(), "channels": len(outs)}).Debug("pwm: pushed")
	return true, nil
}

// LastPush returns the time of the last attempted push, zero before the first.
func (d *Dispatcher) LastPush() time.Time {
	return d.lastPush
}

// Pushes returns the number of hardware pushes attempted.
func (d *Dispatcher) Pushes() int {
	return d.pushes
}

// Close closes every backend.
func (d *Dispatcher) Close() error {
	var errs []error
	for gen, b := range d.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", gen, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

type outputKey struct{ channel, pin int }

// withReleased prepends a 0% output for every held output that outs no
// longer covers: channels past a lowered count and pins a channel moved
// away from. Backends apply outputs in order, so outs wins on overlap.
func (d *Dispatcher) withReleased(outs []Output) []Output {
	if len(d.held) == 0 {
		return outs
	}
	seen := make(map[outputKey]bool, len(outs)+len(d.held))
	for _, o := range outs {
		seen[outputKey{o.Channel, o.Pin}] = true
	}
	var all []Output
	for _, o := range d.held {
		k := outputKey{o.Channel, o.Pin}
		if seen[k] {
			continue
		}
		seen[k] = true
		all = append(all, Output{Channel: o.Channel, Pin: o.Pin})
	}
	if len(all) == 0 {
		return outs
	}
	return append(all, outs...)
}

func (d *Dispatcher) outputs() []Output {
	active := d.engine.Active()
	outs := make([]Output, len(active))
	for i, ch := range active {
		outs[i] = Output{Channel: i, Pin: ch.Pin, Percent: ch.Value}
	}
	return outs
}
