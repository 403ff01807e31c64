package logic

import "math"

// Brightness returns the level of ch at now seconds since local midnight.
//
// Moonlight channels follow Moonlight, manual channels hold their stored
// Value, and scheduled channels interpolate linearly between the two control
// points that bracket now on the 24h ring. Before the first or after the last
// point the segment runs from the last point through midnight to the first.
func Brightness(ch *Channel, now uint32) float64 {
	switch ch.Mode {
	case ModeMoonlight:
		return Moonlight(ch.MaxMoonlightValue, now)
	case ModeManual:
		return ch.Value
	}

	now %= SecondsPerDay
	n := ch.numEntries
	switch n {
	case 0:
		return 0
	case 1:
		return clampPercent(ch.entries[0].Value)
	}

	for i := 0; i < n-1; i++ {
		a, b := ch.entries[i], ch.entries[i+1]
		if now >= a.Time && now < b.Time {
			return lerp(a, b, now-a.Time, b.Time-a.Time)
		}
	}

	// Wrap segment: last -> first, across midnight.
	last, first := ch.entries[n-1], ch.entries[0]
	elapsed := (now + SecondsPerDay - last.Time) % SecondsPerDay
	span := (first.Time + SecondsPerDay - last.Time) % SecondsPerDay
	if span == 0 {
		span = SecondsPerDay
	}
	if elapsed > span {
		// Unsorted schedule; hold the nearest end rather than extrapolate.
		return clampPercent(last.Value)
	}
	return lerp(last, first, elapsed, span)
}

func lerp(a, b Entry, elapsed, span uint32) float64 {
	if span == 0 {
		return clampPercent(b.Value)
	}
	f := float64(elapsed) / float64(span)
	return clampPercent(a.Value + (b.Value-a.Value)*f)
}

// Moonlight returns a simulated moonlight level in [0, max]: a raised cosine
// over the day, max at midnight and 0 at noon. It is monotonic on each half
// day and continuous across midnight.
func Moonlight(max float64, now uint32) float64 {
	max = clampPercent(max)
	phase := 2 * math.Pi * float64(now%SecondsPerDay) / SecondsPerDay
	v := max * (1 + math.Cos(phase)) / 2
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// Update recomputes Value for every active channel.
func (e *Engine) Update(now uint32) {
	for i := 0; i < e.numChannels; i++ {
		ch := &e.Channels[i]
		ch.Value = Brightness(ch, now)
	}
}

func clampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > MaxPercent:
		return MaxPercent
	}
	return v
}
