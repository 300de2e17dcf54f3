package game

import "ink-blade/internal/tuning"

// Combo counts kills since the player last took unguarded damage. The
// streak also lapses when no kill lands within the decay window.
type Combo struct {
	Streak int
	Rank   string
	Best   int

	decay float64
	cfg   tuning.ComboTuning
}

func newCombo(cfg tuning.ComboTuning) *Combo {
	c := &Combo{cfg: cfg}
	c.Rank = c.rankFor(0)
	return c
}

// Increment records a kill and refreshes the decay timer.
func (c *Combo) Increment() {
	c.Streak++
	if c.Streak > c.Best {
		c.Best = c.Streak
	}
	c.decay = c.cfg.Decay
	c.Rank = c.rankFor(c.Streak)
}

// Break resets the streak to zero.
func (c *Combo) Break() {
	c.Streak = 0
	c.decay = 0
	c.Rank = c.rankFor(0)
}

// Tick runs the decay timer; expiry breaks the streak.
func (c *Combo) Tick(dt float64) {
	if c.Streak == 0 {
		return
	}
	countdown(&c.decay, dt)
	if c.decay <= 0 {
		c.Break()
	}
}

// Remaining is the time left before the streak lapses.
func (c *Combo) Remaining() float64 { return c.decay }

func (c *Combo) rankFor(streak int) string {
	label := ""
	for _, r := range c.cfg.Ranks {
		if streak < r.Min {
			break
		}
		label = r.Label
	}
	return label
}
