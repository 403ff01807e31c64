// Package logic contains the pure lighting model: channels, their schedules and
// the brightness computation.
// This package has NO external dependencies (no GPIO, I2C, MQTT, OS, or time.Sleep).
// Time is always injectable as seconds since local midnight.
package logic

import (
	"errors"
	"fmt"
)

const (
	MaxChannels   = 8     // channels an engine can hold
	MaxEntries    = 16    // control points per schedule
	MaxNameLen    = 20    // display name, bytes
	MaxColorLen   = 7     // display color, e.g. "#FFFF00"
	SecondsPerDay = 86400 // length of the schedule ring
	MaxPercent    = 100.0
	MinTimezone   = -12
	MaxTimezone   = 14
)

// ErrValidation reports a value or count outside the model's bounds.
var ErrValidation = errors.New("validation failed")

// Mode selects how a channel's brightness is produced.
type Mode uint8

const (
	ModeScheduled Mode = iota
	ModeManual
	ModeMoonlight
)

func (m Mode) String() string {
	switch m {
	case ModeScheduled:
		return "SCHEDULED"
	case ModeManual:
		return "MANUAL"
	case ModeMoonlight:
		return "MOONLIGHT"
	}
	return fmt.Sprintf("MODE(%d)", uint8(m))
}

// ModeFromFlags maps the stored manual/moonlight flags to a Mode.
// Moonlight wins over manual when both are set.
func ModeFromFlags(manual, moonlight bool) Mode {
	switch {
	case moonlight:
		return ModeMoonlight
	case manual:
		return ModeManual
	default:
		return ModeScheduled
	}
}

// Flags is the inverse of ModeFromFlags.
func (m Mode) Flags() (manual, moonlight bool) {
	return m == ModeManual, m == ModeMoonlight
}

// Generator selects the PWM hardware backend.
type Generator uint8

const (
	GeneratorNative  Generator = 0 // PWM generated on the board's own pins
	GeneratorPCA9685 Generator = 1 // PCA9685 expander on the I2C bus
)

func (g Generator) String() string {
	switch g {
	case GeneratorNative:
		return "NATIVE"
	case GeneratorPCA9685:
		return "PCA9685"
	}
	return fmt.Sprintf("GENERATOR(%d)", uint8(g))
}

// Valid reports whether g names a known backend.
func (g Generator) Valid() bool {
	return g == GeneratorNative || g == GeneratorPCA9685
}

// Entry is one control point of a schedule.
type Entry struct {
	Time  uint32  // seconds since local midnight, [0, 86399]
	Value float64 // percent, [0, 100]
}

// Channel is a single dimmable output.
type Channel struct {
	Name  string
	Color string
	Mode  Mode

	// Value is the last computed brightness, or the fixed level in manual mode.
	Value float64

	MaxMoonlightValue float64

	// Pin is only meaningful for the native backend.
	Pin int

	// Power is the rated wattage at 100%.
	Power float64

	entries    [MaxEntries]Entry
	numEntries int
}

// Engine is the whole controller state. It is a value type: assigning it copies
// every channel and schedule, so a copy is a safe snapshot.
type Engine struct {
	Channels    [MaxChannels]Channel
	numChannels int

	Frequency uint32 // shared PWM carrier, Hz
	Generator Generator
	Timezone  int // hours from UTC
	NTPServer string
}

// ValidPercent reports whether v is a brightness in [0, 100].
func ValidPercent(v float64) bool {
	return v >= 0 && v <= MaxPercent
}

// ValidTimezone reports whether h is a whole-hour offset in use somewhere.
func ValidTimezone(h int) bool {
	return h >= MinTimezone && h <= MaxTimezone
}

// ValidTime reports whether t lies on the 24h ring.
func ValidTime(t uint32) bool {
	return t < SecondsPerDay
}
