package logic

import "fmt"

// NumEntries returns the number of control points in the schedule.
func (c *Channel) NumEntries() int {
	return c.numEntries
}

// Schedule returns a copy of the control points in stored order.
func (c *Channel) Schedule() []Entry {
	out := make([]Entry, c.numEntries)
	copy(out, c.entries[:c.numEntries])
	return out
}

// SetSchedule replaces the control points. The whole list is rejected if it
// holds more than MaxEntries points or any point is out of range; the
// previous schedule is then left untouched. Order is the caller's concern.
func (c *Channel) SetSchedule(entries []Entry) error {
	if err := ValidateSchedule(entries); err != nil {
		return err
	}
	c.entries = [MaxEntries]Entry{}
	c.numEntries = copy(c.entries[:], entries)
	return nil
}

// ValidateSchedule checks a control point list without applying it.
func ValidateSchedule(entries []Entry) error {
	if len(entries) > MaxEntries {
		return fmt.Errorf("%w: %d entries exceeds %d", ErrValidation, len(entries), MaxEntries)
	}
	for i, e := range entries {
		if !ValidTime(e.Time) {
			return fmt.Errorf("%w: entry %d: time %d outside [0, %d]", ErrValidation, i, e.Time, SecondsPerDay-1)
		}
		if !ValidPercent(e.Value) {
			return fmt.Errorf("%w: entry %d: value %g outside [0, 100]", ErrValidation, i, e.Value)
		}
	}
	return nil
}

// SetName sets the display name.
func (c *Channel) SetName(name string) error {
	if len(name) > MaxNameLen {
		return fmt.Errorf("%w: name %q longer than %d", ErrValidation, name, MaxNameLen)
	}
	c.Name = name
	return nil
}

// SetColor sets the display color.
func (c *Channel) SetColor(color string) error {
	if len(color) > MaxColorLen {
		return fmt.Errorf("%w: color %q longer than %d", ErrValidation, color, MaxColorLen)
	}
	c.Color = color
	return nil
}

// ActiveCount returns the number of channels in use.
func (e *Engine) ActiveCount() int {
	return e.numChannels
}

// SetActiveCount sets the number of channels in use. Channels past n keep
// their settings but are inert.
func (e *Engine) SetActiveCount(n int) error {
	if n < 0 || n > MaxChannels {
		return fmt.Errorf("%w: %d channels outside [0, %d]", ErrValidation, n, MaxChannels)
	}
	e.numChannels = n
	return nil
}

// Active returns the channels in use. The slice aliases the engine.
func (e *Engine) Active() []Channel {
	return e.Channels[:e.numChannels]
}

// CurrentPower estimates the draw of the active channels in watts.
func (e *Engine) CurrentPower() float64 {
	var p float64
	for _, ch := range e.Active() {
		p += ch.Value / MaxPercent * ch.Power
	}
	return p
}
