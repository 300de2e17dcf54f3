package game

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ink-blade/internal/tuning"
)

func newTestClock() *Clock {
	return NewClock(tuning.Default().Clock)
}

func TestHitStopRequestsDoNotStack(t *testing.T) {
	c := newTestClock()
	c.RequestHitStop(0.05)
	c.RequestHitStop(0.03)

	assert.InDelta(t, 0.05, c.HitStopRemaining(), 1e-12)

	c.RequestHitStop(0.08)
	assert.InDelta(t, 0.08, c.HitStopRemaining(), 1e-12)
}

func TestHitStopFreezesEffectiveDelta(t *testing.T) {
	c := newTestClock()
	c.RequestHitStop(0.05)

	assert.Zero(t, c.Advance(0.02))
	assert.True(t, c.HitStopActive())
	assert.Zero(t, c.Advance(0.02))
	assert.Zero(t, c.Advance(0.02))
	assert.False(t, c.HitStopActive())

	assert.InDelta(t, 0.02, c.Advance(0.02), 1e-12)
}

func TestSlowMotionMerge(t *testing.T) {
	c := newTestClock()
	c.RequestSlowMotion(0.78, 0.16)
	c.RequestSlowMotion(0.62, 0.10)

	assert.InDelta(t, 0.62, c.SlowTarget(), 1e-12)
	assert.InDelta(t, 0.16, c.slowRemaining, 1e-12)
}

func TestSlowMotionEasesAndRecovers(t *testing.T) {
	c := newTestClock()
	c.RequestSlowMotion(0.5, 0.2)

	dt := c.Advance(0.02)
	assert.Less(t, dt, 0.02)
	assert.Greater(t, dt, 0.01)

	for i := 0; i < 10; i++ {
		c.Advance(0.02)
	}
	assert.InDelta(t, 1.0, c.SlowTarget(), 1e-12, "target resets once the duration runs out")

	for i := 0; i < 200; i++ {
		c.Advance(0.02)
	}
	assert.InDelta(t, 1.0, c.Scale(), 1e-3)
}

func TestClampRaw(t *testing.T) {
	c := newTestClock()
	assert.InDelta(t, 0.033, c.ClampRaw(0.5), 1e-12)
	assert.Zero(t, c.ClampRaw(-1))
	assert.InDelta(t, 0.016, c.ClampRaw(0.016), 1e-12)
}

func TestClockReset(t *testing.T) {
	c := newTestClock()
	c.RequestHitStop(1)
	c.RequestSlowMotion(0.2, 1)
	c.Reset()

	assert.False(t, c.HitStopActive())
	assert.Equal(t, 1.0, c.Scale())
	assert.Equal(t, 1.0, c.SlowTarget())
}
