package settings

import (
	"fmt"

	"github.com/sweeney/aqualight/internal/logic"
)

// Factory settings.
const (
	DefaultChannels          = 1
	DefaultFrequency         = 1000
	DefaultNTPServer         = "pool.ntp.org"
	DefaultColor             = "#000000"
	DefaultMaxMoonlightValue = 100
	DefaultPin               = 12
	DefaultPower             = 10
)

// Defaults returns the factory state: one active channel on native pins and
// eight channels with staggered example ramps. Each channel starts a little
// later, ends a little earlier and peaks 5% lower than the one before.
func Defaults() logic.Engine {
	var e logic.Engine
	if err := e.SetActiveCount(DefaultChannels); err != nil {
		panic(fmt.Sprintf("settings: default channel count: %v", err))
	}
	e.Frequency = DefaultFrequency
	e.Generator = logic.GeneratorNative
	e.NTPServer = DefaultNTPServer

	for c := range e.Channels {
		ch := &e.Channels[c]
		ch.Name = fmt.Sprintf("channel %d", c+1)
		ch.Color = DefaultColor
		ch.Mode = logic.ModeScheduled
		ch.MaxMoonlightValue = DefaultMaxMoonlightValue
		ch.Pin = DefaultPin
		ch.Power = DefaultPower

		m := uint32(c) * 60
		scale := func(v float64) float64 { return v * (100 - 5*float64(c)) / 100 }
		err := ch.SetSchedule([]logic.Entry{
			{Time: 9*3600 + 5*m, Value: 0},
			{Time: 10*3600 + 10*m, Value: scale(50)},
			{Time: 11*3600 + 10*m, Value: scale(70)},
			{Time: 19*3600 - 10*m, Value: scale(70)},
			{Time: 20*3600 - 10*m, Value: scale(50)},
			{Time: 21*3600 - 10*m, Value: 0},
		})
		if err != nil {
			panic(fmt.Sprintf("settings: default schedule for channel %d: %v", c+1, err))
		}
	}
	return e
}
