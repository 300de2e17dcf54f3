package game

import (
	"log"
	"math"

	"ink-blade/internal/game/spatial"
	"ink-blade/internal/tuning"
)

// Outcome is the result of an enemy attack reaching the end of its windup.
type Outcome uint8

const (
	OutcomeMiss Outcome = iota
	OutcomeHit
	OutcomeGuarded
	OutcomeParried
	outcomeCount
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMiss:
		return "miss"
	case OutcomeHit:
		return "hit"
	case OutcomeGuarded:
		return "guarded"
	case OutcomeParried:
		return "parried"
	default:
		return "unknown"
	}
}

// Hit describes one enemy struck by a player action.
type Hit struct {
	EnemyID uint32
	Pos     Vec2
	Damage  float64
	Health  float64
	Killed  bool
}

// CombatResolver applies damage in both directions and raises the
// feedback that goes with it.
type CombatResolver struct {
	cfg     *tuning.Tuning
	clock   *Clock
	fx      *Feedback
	enemies *EnemySet
	grid    *spatial.Grid
	combo   *Combo
	match   *MatchState
	player  *Player
	store   ScoreStore
	journal journal

	hits []Hit
}

// ResolvePlayerStrike runs one cone test from origin along facing. An
// enemy is hit when its edge is strictly inside reach and the angle
// between facing and the direction to its center is at most halfAngle.
// Elites take the weight's elite damage instead of damage when one is
// tuned. The returned slice is reused by the next resolve call.
func (c *CombatResolver) ResolvePlayerStrike(origin, facing Vec2, reach, halfAngle, damage float64, heavy bool) []Hit {
	c.hits = c.hits[:0]
	face, ok := facing.Normalize()
	if !ok {
		return c.hits
	}

	st := &c.cfg.Light
	if heavy {
		st = &c.cfg.Heavy
	}
	radius := c.cfg.Enemy.Radius

	for _, slot := range c.grid.QueryRadius(origin.X, origin.Y, reach+radius) {
		e := c.enemies.At(int(slot))
		if e == nil || !e.Alive() {
			continue
		}
		to := e.Pos.Sub(origin)
		if to.Len()-radius >= reach {
			continue
		}
		if dir, ok := to.Normalize(); ok && angleBetween(dir, face) > halfAngle {
			continue
		}
		dmg := damage
		if e.Elite && st.DamageVsElite > 0 {
			dmg = st.DamageVsElite
		}
		c.damageEnemy(e, dmg, st.EnemyStun, false)
	}

	if len(c.hits) > 0 {
		c.clock.RequestSlowMotion(st.SlowScale, st.SlowDuration)
		c.fx.AddShake(st.HitShake)
	}
	return c.hits
}

// ResolvePlayerSpecial damages every enemy whose edge is strictly inside
// radius of origin. Feedback always uses the heavy tier.
func (c *CombatResolver) ResolvePlayerSpecial(origin Vec2, radius, damage float64) []Hit {
	c.hits = c.hits[:0]
	er := c.cfg.Enemy.Radius

	for _, slot := range c.grid.QueryRadius(origin.X, origin.Y, radius+er) {
		e := c.enemies.At(int(slot))
		if e == nil || !e.Alive() {
			continue
		}
		if e.Pos.Dist(origin)-er >= radius {
			continue
		}
		c.damageEnemy(e, damage, c.cfg.Special.EnemyStun, true)
	}

	if len(c.hits) > 0 {
		c.fx.AddShake(c.cfg.Heavy.HitShake)
	}
	return c.hits
}

func (c *CombatResolver) damageEnemy(e *Enemy, damage, stun float64, special bool) {
	e.Health -= damage
	e.HitFlash = c.cfg.Enemy.HitFlash
	if stun > e.Stun {
		e.Stun = stun
	}

	power := 1.0
	if e.Elite {
		power = 1.2
	}
	if special {
		power = 1.5
	}
	c.fx.AddBurst(e.Pos, power, e.Archetype.Tag)

	killed := e.Health <= 0
	c.hits = append(c.hits, Hit{EnemyID: e.ID, Pos: e.Pos, Damage: damage, Health: e.Health, Killed: killed})
	if killed {
		c.killEnemy(e, special)
	}
}

// killEnemy removes e and credits the kill. Removal is a tombstone, so a
// second resolve in the same step cannot credit it again.
func (c *CombatResolver) killEnemy(e *Enemy, special bool) {
	if !c.enemies.Remove(e) {
		return
	}

	sc := &c.cfg.Score
	wave := float64(c.match.Wave)
	award := sc.KillBase + sc.KillPerWave*wave
	if special {
		award = sc.SpecialKillBase + sc.SpecialKillPerWave*wave
	} else {
		c.player.addResource(sc.KillResource)
	}
	c.match.Score += award
	c.match.Kills++
	c.combo.Increment()

	c.fx.AddBurst(e.Pos, 1.6, "gold")
	c.journal.emit(EventTypeEnemyKill, "", KillPayload{
		EnemyID:   e.ID,
		Archetype: e.Archetype.Name,
		Elite:     e.Elite,
		Special:   special,
		Award:     award,
		Streak:    c.combo.Streak,
	})
}

// ResolveEnemyAttack settles a completed windup against the player. The
// distance is checked again here so a player who stepped out of range
// during the windup is missed.
func (c *CombatResolver) ResolveEnemyAttack(e *Enemy, p *Player) Outcome {
	outcome := c.resolveEnemyAttack(e, p)
	c.match.outcomes[outcome]++
	if outcome != OutcomeMiss {
		c.journal.emit(EventTypeEnemyAttack, "", AttackPayload{
			EnemyID: e.ID,
			Outcome: outcome.String(),
			Damage:  e.Damage,
			Health:  p.Health,
		})
	}
	return outcome
}

func (c *CombatResolver) resolveEnemyAttack(e *Enemy, p *Player) Outcome {
	if c.match.Mode != ModeRunning {
		return OutcomeMiss
	}
	to := p.Pos.Sub(e.Pos)
	if to.Len() >= e.Archetype.AttackRange+c.cfg.Enemy.ResolveMargin {
		return OutcomeMiss
	}
	if p.Invulnerability > 0 {
		return OutcomeMiss
	}
	dir, _ := to.Normalize()

	if p.Guarding() {
		if p.ParryWindow > 0 {
			pt := &c.cfg.Parry
			p.addResource(pt.ResourceBonus)
			c.clock.RequestHitStop(pt.HitStop)
			c.clock.RequestSlowMotion(pt.SlowScale, pt.SlowDuration)
			c.fx.AddShake(pt.Shake)
			c.fx.Parry = true
			c.fx.AddBurst(p.Pos.Add(dir.Scale(-22)), 1.4, "gold")
			return OutcomeParried
		}

		gt := &c.cfg.Guard
		p.applyDamage(e.Damage * gt.Mitigation)
		p.addResource(gt.ResourceBonus)
		if gt.Invulnerability > p.Invulnerability {
			p.Invulnerability = gt.Invulnerability
		}
		c.fx.AddShake(gt.Shake)
		c.fx.AddBurst(p.Pos, 0.65, "ink")
		c.checkDefeat(p)
		return OutcomeGuarded
	}

	ht := &c.cfg.Hit
	p.applyDamage(e.Damage)
	p.Invulnerability = ht.Invulnerability
	if ht.Stun > p.Stun {
		p.Stun = ht.Stun
	}
	c.combo.Break()
	c.fx.AddShake(ht.Shake)
	c.fx.AddFlash(ht.Flash)
	c.clock.RequestHitStop(ht.HitStop)
	c.clock.RequestSlowMotion(ht.SlowScale, ht.SlowDuration)
	c.fx.AddBurst(p.Pos, 1.15, "crim")
	c.checkDefeat(p)
	return OutcomeHit
}

// checkDefeat ends the match once the player is out of health: the score
// is floored, a better high score is persisted, and the mode flips to
// game over.
func (c *CombatResolver) checkDefeat(p *Player) {
	if p.Health > 0 {
		return
	}
	p.Health = 0

	final := int(math.Floor(c.match.Score))
	c.match.Score = float64(final)
	c.match.Mode = ModeGameOver

	improved := final > c.match.HighScore
	if improved {
		c.match.HighScore = final
		if c.store != nil {
			if err := c.store.Save(final); err != nil {
				log.Printf("⚠️ Failed to save high score %d: %v", final, err)
			}
		}
	}

	c.journal.emit(EventTypeGameOver, "", GameOverPayload{
		Score:     final,
		Kills:     c.match.Kills,
		Wave:      c.match.Wave,
		HighScore: c.match.HighScore,
		NewRecord: improved,
	})
	log.Printf("💀 Game over: score %d, kills %d, wave %d", final, c.match.Kills, c.match.Wave)
}
