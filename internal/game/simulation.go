package game

import (
	"fmt"
	"log"
	"math"
	"math/rand"

	"ink-blade/internal/game/spatial"
	"ink-blade/internal/tuning"
)

// Mode is the match lifecycle.
type Mode uint8

const (
	ModeReady Mode = iota
	ModeRunning
	ModeGameOver
)

func (m Mode) String() string {
	switch m {
	case ModeReady:
		return "ready"
	case ModeRunning:
		return "running"
	case ModeGameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// MatchState is the per-match scoreboard shared by the step components.
type MatchState struct {
	Mode      Mode
	Score     float64
	Kills     int
	Wave      int
	HighScore int
	Tick      uint64
	Elapsed   float64

	outcomes [outcomeCount]int
}

// StepStats summarises the last step for metrics.
type StepStats struct {
	Raw       float64
	Effective float64
	Spawned   int
	Removed   int
	Live      int
	Outcomes  [outcomeCount]int
}

// Options configures a Simulation.
type Options struct {
	Tuning *tuning.Tuning
	Seed   int64
	Store  ScoreStore
	Events EventSink
}

// Simulation owns every piece of combat state and advances it one step at
// a time. It is not safe for concurrent use; Engine serialises access.
type Simulation struct {
	cfg  *tuning.Tuning
	rng  *rand.Rand
	seed int64

	clock   *Clock
	fx      *Feedback
	match   *MatchState
	player  *Player
	enemies *EnemySet
	combo   *Combo
	table   *ArchetypeTable
	grid    *spatial.Grid

	combat  *CombatResolver
	ai      *EnemyAI
	spawner *SpawnScheduler

	store   ScoreStore
	journal journal
	last    StepStats
}

// NewSimulation builds a simulation in ModeReady. The high score is read
// from the store once here; a failing store is logged and treated as 0.
func NewSimulation(opts Options) (*Simulation, error) {
	cfg := opts.Tuning
	if cfg == nil {
		cfg = tuning.Default()
	}
	table, err := NewArchetypeTable(cfg.Archetypes)
	if err != nil {
		return nil, fmt.Errorf("build archetypes: %w", err)
	}

	s := &Simulation{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(opts.Seed)),
		seed:    opts.Seed,
		clock:   NewClock(cfg.Clock),
		fx:      newFeedback(),
		match:   &MatchState{Wave: 1},
		enemies: NewEnemySet(cfg.Spawn.MaxEnemies),
		combo:   newCombo(cfg.Combo),
		table:   table,
		store:   opts.Store,
	}
	s.journal = journal{sink: opts.Events, match: s.match}
	s.grid = spatial.NewGrid(cfg.World.Width, cfg.World.Height, gridCellSize(cfg), cfg.Spawn.MaxEnemies)

	if s.store != nil {
		hi, err := s.store.Load()
		if err != nil {
			log.Printf("⚠️ Failed to load high score: %v", err)
		}
		s.match.HighScore = hi
	}

	s.player = newPlayer(cfg, s.spawnPoint())
	s.wire()
	s.spawner.Reset()
	return s, nil
}

// gridCellSize covers the widest hit test in two cells.
func gridCellSize(cfg *tuning.Tuning) float64 {
	r := math.Max(cfg.Special.Radius, math.Max(cfg.Light.Reach, cfg.Heavy.Reach))
	return math.Max(64, (r+cfg.Enemy.Radius)/2)
}

// wire points every component at the current tuning and shared state.
func (s *Simulation) wire() {
	s.combat = &CombatResolver{
		cfg:     s.cfg,
		clock:   s.clock,
		fx:      s.fx,
		enemies: s.enemies,
		grid:    s.grid,
		combo:   s.combo,
		match:   s.match,
		player:  s.player,
		store:   s.store,
		journal: s.journal,
	}
	s.ai = &EnemyAI{cfg: s.cfg, rng: s.rng, combat: s.combat, fx: s.fx, journal: s.journal}

	timer, interval, bossWave := 0.0, 0.0, 0
	if s.spawner != nil {
		timer, interval, bossWave = s.spawner.timer, s.spawner.interval, s.spawner.bossWave
	}
	s.spawner = &SpawnScheduler{
		cfg:      s.cfg,
		rng:      s.rng,
		table:    s.table,
		enemies:  s.enemies,
		match:    s.match,
		fx:       s.fx,
		journal:  s.journal,
		timer:    timer,
		interval: interval,
		bossWave: bossWave,
	}

	p := s.player
	p.cfg = s.cfg
	p.clock = s.clock
	p.fx = s.fx
	p.hits = s.combat
	p.journal = s.journal
}

func (s *Simulation) spawnPoint() Vec2 {
	return Vec2{s.cfg.World.Width / 2, s.cfg.World.Height / 2}
}

// Start begins the match and spawns the opening wave. Calling it while a
// match is running does nothing; after game over it starts a fresh match.
func (s *Simulation) Start() {
	switch s.match.Mode {
	case ModeRunning:
		return
	case ModeGameOver:
		s.Reset()
	}
	s.match.Mode = ModeRunning
	s.spawner.SpawnInitial(s.player.Pos)
	s.journal.emit(EventTypeMatchStart, "", MatchPayload{
		Seed:      s.seed,
		HighScore: s.match.HighScore,
		Enemies:   s.enemies.Live(),
	})
	log.Printf("⚔️ Match started (high score %d)", s.match.HighScore)
}

// Reset returns to the pre-match state. The high score survives.
func (s *Simulation) Reset() {
	hi := s.match.HighScore
	*s.match = MatchState{Wave: 1, HighScore: hi}

	s.clock.Reset()
	s.fx.reset()
	s.enemies.Reset()
	s.combo.Break()
	s.combo.Best = 0
	s.player = newPlayer(s.cfg, s.spawnPoint())
	s.wire()
	s.spawner.Reset()
	s.last = StepStats{}
	s.journal.emit(EventTypeMatchReset, "", MatchPayload{Seed: s.seed, HighScore: hi})
}

// ApplyTuning swaps the tuning between steps. Entities already alive keep
// the stats they spawned with.
func (s *Simulation) ApplyTuning(t *tuning.Tuning) error {
	table, err := NewArchetypeTable(t.Archetypes)
	if err != nil {
		return fmt.Errorf("build archetypes: %w", err)
	}
	s.cfg = t
	s.table = table
	s.clock.maxDelta = t.Clock.MaxDelta
	s.clock.easeBase = t.Clock.EaseBase
	s.combo.cfg = t.Combo
	s.player.HealthMax = t.Player.HealthMax
	s.player.ResourceMax = t.Player.ResourceMax
	s.player.Health = clamp(s.player.Health, 0, s.player.HealthMax)
	s.player.Resource = clamp(s.player.Resource, 0, s.player.ResourceMax)
	s.grid = spatial.NewGrid(t.World.Width, t.World.Height, gridCellSize(t), t.Spawn.MaxEnemies)
	s.wire()
	s.journal.emit(EventTypeTuning, "", TuningPayload{Tier: t.Tier})
	return nil
}

// Step advances the world by one raw frame. Order: clock, passive score
// and wave, spawn timer, player, combo decay, enemies, removal, top-up.
func (s *Simulation) Step(raw float64, in Intent) {
	s.fx.reset()
	s.last = StepStats{}
	raw = s.clock.ClampRaw(raw)
	s.last.Raw = raw

	if s.match.Mode != ModeRunning {
		s.last.Live = s.enemies.Live()
		return
	}

	s.match.Tick++
	s.match.outcomes = [outcomeCount]int{}
	dt := s.clock.Advance(raw)
	s.last.Effective = dt
	s.match.Elapsed += dt

	sc := &s.cfg.Score
	s.match.Score += dt * (sc.PassiveBase + sc.PassivePerWave*float64(s.match.Wave))

	before := s.enemies.Live()
	s.rebuildGrid()

	s.player.Step(dt, in)
	s.combo.Tick(dt)

	for _, e := range s.enemies.Slots() {
		if s.match.Mode != ModeRunning {
			break
		}
		if !e.Alive() {
			continue
		}
		s.ai.Update(e, s.player, dt, raw)
	}

	// Spawning runs after combat so a kill that crosses a wave threshold
	// raises the wave in the same step.
	s.last.Removed = s.enemies.Compact()
	if s.match.Mode == ModeRunning {
		s.spawner.Advance(dt, s.player.Pos)
		s.spawner.TopUp(s.player.Pos)
	}

	s.last.Spawned = s.enemies.Live() - before + s.last.Removed
	s.last.Live = s.enemies.Live()
	s.last.Outcomes = s.match.outcomes
	s.fx.HitStopActive = s.clock.HitStopActive()
	s.fx.TimeScale = s.clock.Scale()
}

func (s *Simulation) rebuildGrid() {
	s.grid.Clear()
	for i, e := range s.enemies.Slots() {
		if e.Alive() {
			s.grid.Insert(uint32(i), e.Pos.X, e.Pos.Y)
		}
	}
}

// Fill writes the post-step state into dst, reusing its slices.
func (s *Simulation) Fill(dst *Snapshot) {
	p := s.player
	dst.Tick = s.match.Tick
	dst.Mode = s.match.Mode.String()
	dst.Player = PlayerView{
		Pos:          p.Pos,
		Vel:          p.Vel,
		Facing:       p.Facing,
		State:        p.State(),
		Health:       p.Health,
		HealthMax:    p.HealthMax,
		Resource:     p.Resource,
		ResourceMax:  p.ResourceMax,
		Invulnerable: p.Invulnerability > 0,
		Guarding:     p.Guarding(),
		ParryOpen:    p.ParryWindow > 0,
		Stunned:      p.Stun > 0,
		DashReady:    p.DashCooldown <= 0,
		SpecialReady: p.Resource >= p.ResourceMax,
	}

	dst.Enemies = dst.Enemies[:0]
	for _, e := range s.enemies.Slots() {
		if !e.Alive() || len(dst.Enemies) >= MaxSnapshotEnemies {
			continue
		}
		dst.Enemies = append(dst.Enemies, EnemyView{
			ID:        e.ID,
			Pos:       e.Pos,
			Archetype: e.Archetype.Name,
			Kind:      e.Archetype.Kind.String(),
			Tag:       e.Archetype.Tag,
			Elite:     e.Elite,
			Health:    e.Health,
			HealthMax: e.HealthMax,
			Attacking: e.Attacking,
			Windup:    e.Windup,
			HitFlash:  e.HitFlash > 0,
			Phase:     e.Phase,
		})
	}

	dst.Combo = ComboView{Streak: s.combo.Streak, Rank: s.combo.Rank, Best: s.combo.Best}
	dst.World = WorldView{Width: s.cfg.World.Width, Height: s.cfg.World.Height}
	s.fx.copyInto(&dst.Feedback)

	dst.Wave = s.match.Wave
	dst.Score = int(math.Floor(s.match.Score))
	dst.Kills = s.match.Kills
	dst.HighScore = s.match.HighScore
	dst.Elapsed = s.match.Elapsed
}

// Snapshot returns a freshly allocated snapshot of the current state.
func (s *Simulation) Snapshot() Snapshot {
	snap := newSnapshot()
	s.Fill(&snap)
	return snap
}

func (s *Simulation) Player() *Player           { return s.player }
func (s *Simulation) Enemies() *EnemySet        { return s.enemies }
func (s *Simulation) Match() *MatchState        { return s.match }
func (s *Simulation) Clock() *Clock             { return s.clock }
func (s *Simulation) Combo() *Combo             { return s.combo }
func (s *Simulation) Feedback() *Feedback       { return s.fx }
func (s *Simulation) Resolver() *CombatResolver { return s.combat }
func (s *Simulation) Spawner() *SpawnScheduler  { return s.spawner }
func (s *Simulation) Tuning() *tuning.Tuning    { return s.cfg }
func (s *Simulation) Seed() int64               { return s.seed }
func (s *Simulation) LastStep() StepStats       { return s.last }
func (s *Simulation) GridStats() spatial.GridStats {
	return s.grid.Stats()
}

// RebuildIndex refreshes the broad-phase grid outside of Step. Tests that
// place enemies by hand call it before resolving hits.
func (s *Simulation) RebuildIndex() { s.rebuildGrid() }
