package protocol

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/aqualight/internal/clock"
	"github.com/sweeney/aqualight/internal/logic"
	"github.com/sweeney/aqualight/internal/settings"
)

// Ticker is the PWM dispatch the handlers drive.
type Ticker interface {
	Tick(now time.Time, force bool) (bool, error)
	Reconfigure() error
}

// Persister stores and reloads engine state.
type Persister interface {
	Save(logic.Engine) error
	Load() (logic.Engine, error)
}

// Restarter restarts the device. A successful Restart does not return.
type Restarter interface {
	Restart(ctx context.Context) error
}

// Dispatcher applies requests to the engine. It is not safe for concurrent
// use: it runs on the control loop, which owns Engine.
type Dispatcher struct {
	Engine    *logic.Engine
	PWM       Ticker
	Store     Persister
	Clock     clock.Clock
	Restarter Restarter

	// Now stamps forced ticks. Defaults to time.Now.
	Now func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Handle executes one request. View requests return a response; mutations
// return nil. A request failing validation is rejected whole and leaves the
// engine unchanged.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (Response, error) {
	switch r := req.(type) {
	case RequestManual:
		return d.manualView(), nil
	case UpdateManual:
		return nil, d.updateManual(r)
	case RequestSchedule:
		return d.scheduleView(), nil
	case SaveSchedule:
		return nil, d.saveSchedule(r)
	case RequestSettings:
		return d.settingsView(), nil
	case SaveSettings:
		return nil, d.saveSettings(r)
	case Restart:
		return nil, d.restart(ctx)
	case FactoryReset:
		return nil, d.factoryReset()
	}
	return nil, fmt.Errorf("%w: unhandled request %T", ErrUnknownID, req)
}

func (d *Dispatcher) manualView() ManualView {
	active := d.Engine.Active()
	v := ManualView{Channels: make([]ManualChannel, len(active))}
	for i, ch := range active {
		manual, moonlight := ch.Mode.Flags()
		v.Channels[i] = ManualChannel{
			Name:      ch.Name,
			Color:     ch.Color,
			Manual:    manual,
			Moonlight: moonlight,
			Value:     ch.Value,
		}
	}
	return v
}

func (d *Dispatcher) updateManual(r UpdateManual) error {
	active := d.Engine.Active()
	if len(r.Channels) < len(active) {
		return fmt.Errorf("%w: update carries %d channels, %d active", logic.ErrValidation, len(r.Channels), len(active))
	}
	for i := range active {
		if active[i].Mode == logic.ModeMoonlight {
			continue
		}
		if v := r.Channels[i].Value; !logic.ValidPercent(v) {
			return fmt.Errorf("%w: channel %d: value %g outside [0, 100]", logic.ErrValidation, i, v)
		}
	}

	for i := range active {
		ch := &active[i]
		if ch.Mode == logic.ModeMoonlight {
			continue
		}
		ch.Mode = logic.ModeFromFlags(r.Channels[i].Manual, false)
		ch.Value = r.Channels[i].Value
	}
	return d.forceTick()
}

func (d *Dispatcher) scheduleView() ScheduleView {
	active := d.Engine.Active()
	v := ScheduleView{
		Time:            d.Clock.SecondsSinceMidnight(),
		MaxNumOfEntries: logic.MaxEntries,
		Channels:        make([]ScheduleChannel, len(active)),
	}
	for i, ch := range active {
		sc := ScheduleChannel{
			Name:      ch.Name,
			Color:     ch.Color,
			Moonlight: ch.Mode == logic.ModeMoonlight,
			Times:     make([]uint32, 0, ch.NumEntries()),
			Values:    make([]float64, 0, ch.NumEntries()),
		}
		for _, e := range ch.Schedule() {
			sc.Times = append(sc.Times, e.Time)
			sc.Values = append(sc.Values, e.Value)
		}
		v.Channels[i] = sc
	}
	return v
}

func (d *Dispatcher) saveSchedule(r SaveSchedule) error {
	active := d.Engine.Active()
	if len(r.Channels) < len(active) {
		return fmt.Errorf("%w: schedule carries %d channels, %d active", logic.ErrValidation, len(r.Channels), len(active))
	}
	schedules := make([][]logic.Entry, len(active))
	for i := range active {
		if active[i].Mode == logic.ModeMoonlight {
			continue
		}
		entries, err := settings.Entries(r.Channels[i].Times, r.Channels[i].Values)
		if err == nil {
			err = logic.ValidateSchedule(entries)
		}
		if err != nil {
			return fmt.Errorf("channel %d: %w", i, err)
		}
		schedules[i] = entries
	}

	for i := range active {
		if active[i].Mode == logic.ModeMoonlight {
			continue
		}
		if err := active[i].SetSchedule(schedules[i]); err != nil {
			return fmt.Errorf("channel %d: %w", i, err)
		}
	}
	return errors.Join(d.persist(), d.forceTick())
}

func (d *Dispatcher) settingsView() SettingsView {
	e := d.Engine
	v := SettingsView{
		NumOfChannels:    e.ActiveCount(),
		MaxNumOfChannels: logic.MaxChannels,
		Timezone:         e.Timezone,
		Time:             d.Clock.EpochSeconds(),
		PWMFrequency:     e.Frequency,
		PWMGenerator:     uint8(e.Generator),
		CurrentPower:     e.CurrentPower(),
		Channels:         make([]SettingsChannel, logic.MaxChannels),
	}
	for i, ch := range e.Channels {
		v.Channels[i] = SettingsChannel{
			Name:              ch.Name,
			Color:             ch.Color,
			Moonlight:         ch.Mode == logic.ModeMoonlight,
			MaxMoonlightValue: ch.MaxMoonlightValue,
			Pin:               ch.Pin,
			Power:             ch.Power,
		}
	}
	return v
}

func (d *Dispatcher) saveSettings(r SaveSettings) error {
	if err := validateSettings(r); err != nil {
		return err
	}

	e := d.Engine
	gen := logic.Generator(r.PWMGenerator)
	reconfigure := gen != e.Generator || r.PWMFrequency != e.Frequency

	e.SetActiveCount(r.NumOfChannels)
	e.Timezone = r.Timezone
	e.Frequency = r.PWMFrequency
	e.Generator = gen
	for i := 0; i < r.NumOfChannels; i++ {
		ch, sc := &e.Channels[i], r.Channels[i]
		ch.SetName(sc.Name)
		ch.SetColor(sc.Color)
		switch {
		case sc.Moonlight:
			ch.Mode = logic.ModeMoonlight
		case ch.Mode == logic.ModeMoonlight:
			ch.Mode = logic.ModeScheduled
		}
		ch.MaxMoonlightValue = sc.MaxMoonlightValue
		ch.Pin = sc.Pin
		ch.Power = sc.Power
	}

	var errs []error
	if reconfigure {
		if err := d.PWM.Reconfigure(); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pwm: %w", err))
		}
	}
	errs = append(errs, d.persist(), d.forceTick())
	return errors.Join(errs...)
}

func validateSettings(r SaveSettings) error {
	if r.NumOfChannels < 0 || r.NumOfChannels > logic.MaxChannels {
		return fmt.Errorf("%w: %d channels outside [0, %d]", logic.ErrValidation, r.NumOfChannels, logic.MaxChannels)
	}
	if len(r.Channels) < r.NumOfChannels {
		return fmt.Errorf("%w: settings carry %d channels, %d requested", logic.ErrValidation, len(r.Channels), r.NumOfChannels)
	}
	if !logic.ValidTimezone(r.Timezone) {
		return fmt.Errorf("%w: timezone %d", logic.ErrValidation, r.Timezone)
	}
	if r.PWMFrequency == 0 {
		return fmt.Errorf("%w: PWM frequency must be positive", logic.ErrValidation)
	}
	if !logic.Generator(r.PWMGenerator).Valid() {
		return fmt.Errorf("%w: unknown PWM generator %d", logic.ErrValidation, r.PWMGenerator)
	}
	for i := 0; i < r.NumOfChannels; i++ {
		sc := r.Channels[i]
		var scratch logic.Channel
		if err := scratch.SetName(sc.Name); err != nil {
			return fmt.Errorf("channel %d: %w", i, err)
		}
		if err := scratch.SetColor(sc.Color); err != nil {
			return fmt.Errorf("channel %d: %w", i, err)
		}
		if !logic.ValidPercent(sc.MaxMoonlightValue) {
			return fmt.Errorf("%w: channel %d: max moonlight %g outside [0, 100]", logic.ErrValidation, i, sc.MaxMoonlightValue)
		}
		if sc.Pin < 0 {
			return fmt.Errorf("%w: channel %d: pin %d", logic.ErrValidation, i, sc.Pin)
		}
		if sc.Power < 0 {
			return fmt.Errorf("%w: channel %d: power %g", logic.ErrValidation, i, sc.Power)
		}
	}
	return nil
}

func (d *Dispatcher) restart(ctx context.Context) error {
	if d.Restarter == nil {
		return errors.New("restart: not supported")
	}
	log.Warn("protocol: restart requested")
	err := d.Restarter.Restart(ctx)
	// Restart only returns on failure; keep the outputs driven.
	return errors.Join(err, d.forceTick())
}

// factoryReset writes the defaults and reloads them, so live state matches
// what a reboot would produce.
func (d *Dispatcher) factoryReset() error {
	log.Warn("protocol: restoring factory settings")
	defaults := settings.Defaults()
	var errs []error
	if err := d.Store.Save(defaults); err != nil {
		// A document left from before would be stale; run on the defaults.
		errs = append(errs, fmt.Errorf("save defaults: %w", err))
		*d.Engine = defaults
	} else if loaded, err := d.Store.Load(); err != nil {
		errs = append(errs, fmt.Errorf("reload defaults: %w", err))
		*d.Engine = defaults
	} else {
		*d.Engine = loaded
	}

	if err := d.PWM.Reconfigure(); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure pwm: %w", err))
	}
	errs = append(errs, d.forceTick())
	return errors.Join(errs...)
}

func (d *Dispatcher) persist() error {
	if err := d.Store.Save(*d.Engine); err != nil {
		return fmt.Errorf("persist settings: %w", err)
	}
	return nil
}

func (d *Dispatcher) forceTick() error {
	if _, err := d.PWM.Tick(d.now(), true); err != nil {
		return fmt.Errorf("forced tick: %w", err)
	}
	return nil
}
