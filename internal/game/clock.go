package game

import "ink-blade/internal/tuning"

// Clock turns raw frame durations into the effective simulation delta.
//
// Hit-stop freezes the world outright; slow motion scales time down and
// eases back. Both channels merge requests instead of stacking them: a
// hit-stop request only ever raises the remaining freeze to the larger of
// the two, and slow motion keeps the strongest scale and longest duration.
type Clock struct {
	maxDelta float64
	easeBase float64

	hitStop       float64
	slowTarget    float64
	slowRemaining float64
	scale         float64
}

// NewClock creates a clock at normal speed.
func NewClock(t tuning.ClockTuning) *Clock {
	c := &Clock{maxDelta: t.MaxDelta, easeBase: t.EaseBase}
	c.Reset()
	return c
}

// Reset returns the clock to normal speed with nothing pending.
func (c *Clock) Reset() {
	c.hitStop = 0
	c.slowTarget = 1
	c.slowRemaining = 0
	c.scale = 1
}

// RequestHitStop freezes the simulation for at least d seconds.
func (c *Clock) RequestHitStop(d float64) {
	if d > c.hitStop {
		c.hitStop = d
	}
}

// RequestSlowMotion slows time toward scale for d seconds.
func (c *Clock) RequestSlowMotion(scale, d float64) {
	if d <= 0 {
		return
	}
	scale = clamp(scale, 0, 1)
	if scale < c.slowTarget {
		c.slowTarget = scale
	}
	if d > c.slowRemaining {
		c.slowRemaining = d
	}
}

// ClampRaw bounds a raw frame duration to [0, max_delta] so a stalled host
// cannot make entities tunnel.
func (c *Clock) ClampRaw(raw float64) float64 {
	return clamp(raw, 0, c.maxDelta)
}

// Advance consumes one raw frame and returns the effective delta, which is
// zero while a hit-stop is running. raw must already be clamped.
func (c *Clock) Advance(raw float64) float64 {
	if c.hitStop > 0 {
		countdown(&c.hitStop, raw)
		return 0
	}

	if c.slowRemaining > 0 {
		countdown(&c.slowRemaining, raw)
	} else {
		c.slowTarget = 1
	}
	c.scale += (c.slowTarget - c.scale) * ease(c.easeBase, raw)
	return raw * c.scale
}

// HitStopActive reports whether the world is currently frozen.
func (c *Clock) HitStopActive() bool { return c.hitStop > 0 }

// HitStopRemaining is the remaining freeze in seconds.
func (c *Clock) HitStopRemaining() float64 { return c.hitStop }

// Scale is the current eased time scale.
func (c *Clock) Scale() float64 { return c.scale }

// SlowTarget is the scale slow motion is easing toward.
func (c *Clock) SlowTarget() float64 { return c.slowTarget }
