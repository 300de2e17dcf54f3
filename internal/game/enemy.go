package game

import (
	"math"

	"ink-blade/internal/tuning"
)

// Enemy is one live opponent. Enemies are addressed across steps by ID
// only; slot positions change when the set is compacted.
type Enemy struct {
	ID        uint32
	Archetype Archetype
	Elite     bool

	Pos Vec2
	Vel Vec2

	Health    float64
	HealthMax float64
	Speed     float64
	Damage    float64

	AttackCooldown float64
	Windup         float64
	Attacking      bool
	Stun           float64
	HitFlash       float64

	// Phase is 1 for every enemy; bosses move to 2 once badly hurt.
	Phase         int
	cooldownScale float64

	dead bool
}

// Alive reports whether the enemy still takes part in the step.
func (e *Enemy) Alive() bool { return !e.dead && e.Health > 0 }

// EnemySet holds the active enemies. Removal during a pass only
// tombstones; Compact drops tombstoned slots once the pass is over so no
// entry is skipped or visited twice.
type EnemySet struct {
	list   []*Enemy
	nextID uint32
	live   int
}

func NewEnemySet(capacity int) *EnemySet {
	return &EnemySet{list: make([]*Enemy, 0, capacity), nextID: 1}
}

// Add assigns e a fresh ID and appends it.
func (s *EnemySet) Add(e *Enemy) *Enemy {
	e.ID = s.nextID
	s.nextID++
	s.list = append(s.list, e)
	s.live++
	return e
}

// Remove tombstones e. Removing twice is a no-op.
func (s *EnemySet) Remove(e *Enemy) bool {
	if e.dead {
		return false
	}
	e.dead = true
	s.live--
	return true
}

// Compact drops tombstoned slots in place.
func (s *EnemySet) Compact() int {
	n := 0
	for _, e := range s.list {
		if !e.dead {
			s.list[n] = e
			n++
		}
	}
	removed := len(s.list) - n
	for i := n; i < len(s.list); i++ {
		s.list[i] = nil
	}
	s.list = s.list[:n]
	return removed
}

// Slots exposes the backing slice, tombstones included, for a single pass.
// Callers must not append to or reorder it.
func (s *EnemySet) Slots() []*Enemy { return s.list }

// At returns the enemy in slot i, or nil.
func (s *EnemySet) At(i int) *Enemy {
	if i < 0 || i >= len(s.list) {
		return nil
	}
	return s.list[i]
}

// Get finds a live enemy by ID.
func (s *EnemySet) Get(id uint32) *Enemy {
	for _, e := range s.list {
		if e.ID == id && !e.dead {
			return e
		}
	}
	return nil
}

// Live is the number of enemies not yet removed.
func (s *EnemySet) Live() int { return s.live }

// Reset drops every enemy. IDs keep counting up so stale references from
// the previous match never match a new enemy.
func (s *EnemySet) Reset() {
	for i := range s.list {
		s.list[i] = nil
	}
	s.list = s.list[:0]
	s.live = 0
}

// EnemyAI steers enemies and runs their attack windups. One function
// serves every archetype and branches on the archetype kind.
type EnemyAI struct {
	cfg     *tuning.Tuning
	rng     randSource
	combat  *CombatResolver
	fx      *Feedback
	journal journal
}

// randSource is the subset of *rand.Rand the simulation draws from.
type randSource interface {
	Float64() float64
}

func (ai *EnemyAI) jitter() float64 {
	lo, hi := ai.cfg.Enemy.JitterMin, ai.cfg.Enemy.JitterMax
	return lo + ai.rng.Float64()*(hi-lo)
}

// Update advances one enemy. dt is the effective delta; raw is the
// unscaled frame time, used for the hit flash so it can fade during a
// hit-stop.
func (ai *EnemyAI) Update(e *Enemy, p *Player, dt, raw float64) {
	et := &ai.cfg.Enemy
	w := &ai.cfg.World

	countdown(&e.HitFlash, raw)
	countdown(&e.Stun, dt)
	countdown(&e.AttackCooldown, dt)

	if e.Archetype.Kind == KindBoss && e.Phase == 1 && e.Health <= e.HealthMax*et.PhaseTwoRatio {
		e.Phase = 2
		e.Speed *= et.PhaseTwoSpeed
		e.cooldownScale = et.PhaseTwoCooldown
		ai.fx.AddShake(et.AttackShake * 2)
		ai.fx.AddBurst(e.Pos, 2, e.Archetype.Tag)
		ai.journal.emit(EventTypeBossPhase, "", BossPhasePayload{EnemyID: e.ID, Phase: e.Phase})
	}

	to := p.Pos.Sub(e.Pos)
	d := to.Len()
	dir, _ := to.Normalize()

	var steer Vec2
	switch e.Archetype.Kind {
	case KindBoss:
		steer = dir
	default:
		desire := et.CloseDesire
		if d > e.Archetype.AttackRange*et.ApproachRatio {
			desire = 1
		}
		orbit := dir.Perp().Scale(et.Orbit)
		steer = dir.Scale(desire).Add(orbit)
	}

	speed := e.Speed
	if e.Stun > 0 {
		speed = 0
	}
	e.Vel = e.Vel.Lerp(steer.Scale(speed), ease(ai.cfg.Player.Smoothing, dt))
	e.Pos = Vec2{
		X: clamp(e.Pos.X+e.Vel.X*dt, w.MarginX, w.Width-w.MarginX),
		Y: clamp(e.Pos.Y+e.Vel.Y*dt, w.MarginY, w.Height-w.MarginY),
	}

	if !e.Attacking && e.AttackCooldown <= 0 && d < e.Archetype.AttackRange+et.RangeMargin && e.Stun <= 0 {
		e.Attacking = true
		e.Windup = et.Windup
		e.AttackCooldown = e.Archetype.AttackCooldown * e.cooldownScale * ai.jitter()
		ai.fx.AddTelegraph(e, et.Windup)
	}

	if e.Attacking {
		countdown(&e.Windup, dt)
		if e.Windup <= 0 {
			e.Attacking = false
			ai.combat.ResolveEnemyAttack(e, p)

			power := 1.15
			if e.Elite {
				power = 1.5
			}
			ai.fx.AddBurst(e.Pos.Add(dir.Scale(22)), power*0.75, e.Archetype.Tag)
			ai.fx.AddShake(et.AttackShake)
		}
	}
}

// newEnemy instantiates an archetype. The first attack comes after a
// random delay so a fresh wave does not strike in unison.
func newEnemy(cfg *tuning.Tuning, rng randSource, a Archetype, elite bool, pos Vec2) *Enemy {
	et := &cfg.Enemy
	e := &Enemy{
		Archetype:     a,
		Elite:         elite,
		Pos:           pos,
		Health:        a.Health,
		Speed:         a.Speed,
		Damage:        a.Damage,
		Phase:         1,
		cooldownScale: 1,
	}
	if elite {
		e.Health *= et.EliteHealth
		e.Speed *= et.EliteSpeed
		e.Damage *= et.EliteDamage
	}
	e.HealthMax = e.Health

	lo := math.Min(et.InitialCooldownMin, a.AttackCooldown)
	e.AttackCooldown = lo + rng.Float64()*(a.AttackCooldown-lo)
	return e
}
