package game

import (
	"context"
	"errors"
	"log"

	"github.com/looplab/fsm"

	"ink-blade/internal/tuning"
)

// Player action states.
const (
	StateIdle        = "idle"
	StateMoving      = "moving"
	StateDashing     = "dashing"
	StateStriking    = "striking"
	StateGuarding    = "guarding"
	StateSpecialCast = "special_cast"
)

// Player state machine events.
const (
	eventDash    = "dash"
	eventStrike  = "strike"
	eventSpecial = "special"
	eventGuard   = "guard"
	eventMove    = "move"
	eventRest    = "rest"
	eventFinish  = "finish"
)

// playerEvents is the transition table. Committed actions (dash, strike,
// special) only leave through finish, so nothing interrupts them.
var playerEvents = fsm.Events{
	{Name: eventDash, Src: []string{StateIdle, StateMoving, StateGuarding}, Dst: StateDashing},
	{Name: eventStrike, Src: []string{StateIdle, StateMoving, StateGuarding}, Dst: StateStriking},
	{Name: eventSpecial, Src: []string{StateIdle, StateMoving, StateGuarding}, Dst: StateSpecialCast},
	{Name: eventGuard, Src: []string{StateIdle, StateMoving}, Dst: StateGuarding},
	{Name: eventMove, Src: []string{StateIdle, StateGuarding}, Dst: StateMoving},
	{Name: eventRest, Src: []string{StateMoving, StateGuarding}, Dst: StateIdle},
	{Name: eventFinish, Src: []string{StateDashing, StateStriking, StateSpecialCast}, Dst: StateIdle},
}

// HitResolver performs the hit tests for player actions.
type HitResolver interface {
	ResolvePlayerStrike(origin, facing Vec2, reach, halfAngle, damage float64, heavy bool) []Hit
	ResolvePlayerSpecial(origin Vec2, radius, damage float64) []Hit
}

// Player is the controlled character and its action state machine.
type Player struct {
	Pos    Vec2
	Vel    Vec2
	Facing Vec2

	Health      float64
	HealthMax   float64
	Resource    float64
	ResourceMax float64

	DashCooldown    float64
	StrikeCooldown  float64
	Invulnerability float64
	ParryWindow     float64
	ParryCooldown   float64
	Stun            float64

	// Heavy is the weight of the strike in flight.
	Heavy bool

	actionRemaining float64
	guardWasHeld    bool
	guardPress      bool // fresh guard press not yet seen by the stance pass
	buffer          actionBuffer

	machine *fsm.FSM

	cfg     *tuning.Tuning
	clock   *Clock
	fx      *Feedback
	hits    HitResolver
	journal journal
}

// actionBuffer keeps edge intents alive for a short window so a press
// that lands during an action or a cooldown still fires once allowed.
type actionBuffer struct {
	dash, light, heavy, special float64
}

func (b *actionBuffer) tick(dt float64) {
	countdown(&b.dash, dt)
	countdown(&b.light, dt)
	countdown(&b.heavy, dt)
	countdown(&b.special, dt)
}

func newPlayer(cfg *tuning.Tuning, pos Vec2) *Player {
	pt := &cfg.Player
	return &Player{
		Pos:         pos,
		Facing:      Vec2{0, -1},
		Health:      pt.HealthMax,
		HealthMax:   pt.HealthMax,
		Resource:    clamp(pt.ResourceStart, 0, pt.ResourceMax),
		ResourceMax: pt.ResourceMax,
		machine:     fsm.NewFSM(StateIdle, playerEvents, nil),
		cfg:         cfg,
	}
}

// State is the current action state tag.
func (p *Player) State() string { return p.machine.Current() }

// Guarding reports whether the guard is up.
func (p *Player) Guarding() bool { return p.machine.Is(StateGuarding) }

// Busy reports whether a committed action is in flight.
func (p *Player) Busy() bool {
	switch p.machine.Current() {
	case StateDashing, StateStriking, StateSpecialCast:
		return true
	}
	return false
}

func (p *Player) fire(event string) bool {
	err := p.machine.Event(context.Background(), event)
	if err == nil {
		return true
	}
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return true
	}
	var invalid fsm.InvalidEventError
	if !errors.As(err, &invalid) {
		log.Printf("⚠️ Player state machine: %v", err)
	}
	return false
}

func (p *Player) addResource(v float64) {
	p.Resource = clamp(p.Resource+v, 0, p.ResourceMax)
}

func (p *Player) applyDamage(v float64) {
	p.Health = clamp(p.Health-v, 0, p.HealthMax)
}

// Step advances the player by the effective delta dt.
func (p *Player) Step(dt float64, in Intent) {
	pt := &p.cfg.Player

	countdown(&p.DashCooldown, dt)
	countdown(&p.StrikeCooldown, dt)
	countdown(&p.Invulnerability, dt)
	countdown(&p.ParryWindow, dt)
	countdown(&p.ParryCooldown, dt)
	countdown(&p.Stun, dt)
	p.buffer.tick(dt)
	p.addResource(pt.ResourceRegen * dt)

	p.latch(in)
	if !in.GuardHeld {
		p.guardPress = false
	} else if !p.guardWasHeld {
		p.guardPress = true
	}
	p.guardWasHeld = in.GuardHeld

	if p.Busy() {
		countdown(&p.actionRemaining, dt)
		if p.actionRemaining <= 0 {
			p.finishAction()
		}
	}

	move := in.Move()
	dir, hasDir := move.Normalize()
	if hasDir && !p.Busy() {
		face := p.Facing.Lerp(dir, ease(pt.Smoothing, dt))
		if f, ok := face.Normalize(); ok {
			p.Facing = f
		} else {
			p.Facing = dir
		}
	}

	if !p.Busy() {
		p.tryActions(move)
	}
	if !p.Busy() {
		p.updateStance(in, move)
	}

	p.integrate(dt, move)
}

func (p *Player) latch(in Intent) {
	window := p.cfg.Player.InputBuffer
	if window <= 0 {
		window = epsilon
	}
	if in.Dash {
		p.buffer.dash = window
	}
	if in.LightStrike {
		p.buffer.light = window
	}
	if in.HeavyStrike {
		p.buffer.heavy = window
	}
	if in.Special {
		p.buffer.special = window
	}
}

func (p *Player) finishAction() {
	if p.machine.Is(StateDashing) {
		p.Vel = p.Vel.Scale(p.cfg.Player.DashEndDamping)
	}
	p.actionRemaining = 0
	p.fire(eventFinish)
}

func (p *Player) tryActions(move Vec2) {
	switch {
	case p.buffer.dash > 0 && p.tryDash(move):
		p.buffer.dash = 0
	case p.buffer.special > 0 && p.trySpecial():
		p.buffer.special = 0
	case p.buffer.heavy > 0 && p.tryStrike(true):
		p.buffer.heavy = 0
	case p.buffer.light > 0 && p.tryStrike(false):
		p.buffer.light = 0
	}
}

func (p *Player) tryDash(move Vec2) bool {
	pt := &p.cfg.Player
	if p.DashCooldown > 0 || p.Stun > 0 || !p.machine.Can(eventDash) {
		return false
	}
	dir, ok := move.Normalize()
	if !ok {
		dir = p.Facing
	}
	if !p.fire(eventDash) {
		return false
	}

	p.actionRemaining = pt.DashDuration
	p.Vel = dir.Scale(pt.DashSpeed)
	if pt.DashDuration > p.Invulnerability {
		p.Invulnerability = pt.DashDuration
	}
	p.DashCooldown = pt.DashCooldown

	p.fx.AddShake(pt.DashShake)
	p.clock.RequestHitStop(pt.DashHitStop)
	p.fx.AddBurst(p.Pos, 1.2, "trail")
	p.journal.emit(EventTypeDash, "", ActionPayload{X: p.Pos.X, Y: p.Pos.Y, DirX: dir.X, DirY: dir.Y})
	return true
}

func (p *Player) tryStrike(heavy bool) bool {
	st := &p.cfg.Light
	if heavy {
		st = &p.cfg.Heavy
	}
	if p.StrikeCooldown > 0 || p.Stun > 0 || p.Resource < st.Cost || !p.machine.Can(eventStrike) {
		return false
	}
	if !p.fire(eventStrike) {
		return false
	}

	p.Heavy = heavy
	p.actionRemaining = st.Duration
	p.StrikeCooldown = st.Cooldown
	p.addResource(st.ResourceGain - st.Cost)

	face := p.Facing
	hits := p.hits.ResolvePlayerStrike(p.Pos, face, st.Reach, st.HalfAngle, st.Damage, heavy)

	p.Vel = p.Vel.Add(face.Scale(st.Impulse))
	p.clock.RequestHitStop(st.HitStop)
	p.fx.AddShake(st.Shake)
	p.fx.AddBurst(p.Pos.Add(face.Scale(34)), 0.85, "ink")
	p.journal.emit(EventTypeStrike, "", ActionPayload{
		X: p.Pos.X, Y: p.Pos.Y, DirX: face.X, DirY: face.Y,
		Heavy: heavy, Hits: len(hits),
	})
	return true
}

func (p *Player) trySpecial() bool {
	sp := &p.cfg.Special
	if p.Resource < p.ResourceMax || p.Stun > 0 || !p.machine.Can(eventSpecial) {
		return false
	}
	if !p.fire(eventSpecial) {
		return false
	}

	p.Resource = 0
	p.actionRemaining = sp.Duration
	hits := p.hits.ResolvePlayerSpecial(p.Pos, sp.Radius, sp.Damage)

	p.clock.RequestHitStop(sp.HitStop)
	p.clock.RequestSlowMotion(sp.SlowScale, sp.SlowDuration)
	p.fx.AddShake(sp.Shake)
	p.fx.AddFlash(sp.Flash)
	p.fx.AddBurst(p.Pos, 2.1, "gold")
	p.journal.emit(EventTypeSpecial, "", ActionPayload{X: p.Pos.X, Y: p.Pos.Y, Hits: len(hits)})
	return true
}

// updateStance settles the locomotion state. A fresh guard press opens the
// parry window, but only if the guard actually comes up this step.
func (p *Player) updateStance(in Intent, move Vec2) {
	if in.GuardHeld && p.Stun <= 0 {
		wasGuarding := p.Guarding()
		fresh := p.guardPress
		p.guardPress = false
		p.fire(eventGuard)
		if !wasGuarding && p.Guarding() && fresh && p.ParryCooldown <= 0 {
			p.ParryWindow = p.cfg.Parry.Window
			p.ParryCooldown = p.cfg.Parry.Cooldown
		}
		return
	}
	if !move.IsZero() {
		p.fire(eventMove)
	} else {
		p.fire(eventRest)
	}
}

func (p *Player) integrate(dt float64, move Vec2) {
	pt := &p.cfg.Player
	w := &p.cfg.World

	switch {
	case p.Stun > 0:
		p.Vel = p.Vel.Scale(1 - ease(pt.StunDamping, dt))
	case p.machine.Is(StateDashing):
	default:
		speed := pt.Speed
		if p.Guarding() {
			speed *= pt.GuardSpeedFactor
		}
		p.Vel = p.Vel.Lerp(move.Scale(speed), ease(pt.Smoothing, dt))
	}

	p.Pos = Vec2{
		X: clamp(p.Pos.X+p.Vel.X*dt, w.MarginX, w.Width-w.MarginX),
		Y: clamp(p.Pos.Y+p.Vel.Y*dt, w.MarginY, w.Height-w.MarginY),
	}
}
