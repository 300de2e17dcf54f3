package game

import (
	"math"

	"ink-blade/internal/tuning"
)

// SpawnScheduler keeps enemy pressure in step with the wave number.
type SpawnScheduler struct {
	cfg     *tuning.Tuning
	rng     randSource
	table   *ArchetypeTable
	enemies *EnemySet
	match   *MatchState
	fx      *Feedback
	journal journal

	timer    float64
	interval float64
	bossWave int
}

// Reset clears the accumulator for a new match.
func (s *SpawnScheduler) Reset() {
	s.timer = 0
	s.interval = s.Interval(1)
	s.bossWave = 0
}

// WaveFor is the wave implied by a score.
func (s *SpawnScheduler) WaveFor(score float64) int {
	return 1 + int(math.Floor(score/s.cfg.Spawn.WaveScoreStep))
}

// Interval is the seconds between timed spawns at the given wave.
func (s *SpawnScheduler) Interval(wave int) float64 {
	sp := &s.cfg.Spawn
	return clamp(sp.BaseInterval-float64(wave-1)*sp.DecayPerWave, sp.FloorInterval, sp.BaseInterval)
}

// Advance raises the wave from the current score, runs the spawn timer
// and drops a boss on every boss wave. The wave never goes down.
func (s *SpawnScheduler) Advance(dt float64, around Vec2) {
	if wave := s.WaveFor(s.match.Score); wave > s.match.Wave {
		s.match.Wave = wave
		s.journal.emit(EventTypeWave, "", WavePayload{Wave: wave, Interval: s.Interval(wave)})
	}
	s.interval = s.Interval(s.match.Wave)

	// Reset, not modulo: a long frame must not release a burst of spawns.
	s.timer += dt
	if s.timer >= s.interval {
		s.timer = 0
		s.Spawn(around)
	}

	every := s.cfg.Spawn.BossEveryWaves
	if every > 0 && s.match.Wave%every == 0 && s.match.Wave > s.bossWave {
		s.bossWave = s.match.Wave
		if boss, ok := s.table.Boss(); ok {
			s.spawn(boss, false, s.SpawnPosition(around))
		}
	}
}

// TopUp occasionally adds an enemy when the arena is nearly empty.
func (s *SpawnScheduler) TopUp(around Vec2) {
	sp := &s.cfg.Spawn
	if s.enemies.Live() >= sp.TopUpThreshold || s.match.Wave < sp.TopUpMinWave {
		return
	}
	if s.rng.Float64() < sp.TopUpChance {
		s.Spawn(around)
	}
}

// SpawnInitial places the opening enemies.
func (s *SpawnScheduler) SpawnInitial(around Vec2) {
	for i := 0; i < s.cfg.Spawn.InitialCount; i++ {
		s.Spawn(around)
	}
}

// Spawn draws a weighted archetype, rolls for elite and places it on the
// spawn ring. Returns nil when the arena is at capacity.
func (s *SpawnScheduler) Spawn(around Vec2) *Enemy {
	if s.atCapacity() {
		return nil
	}
	a := s.table.Pick(s.rng.Float64())
	elite := s.rng.Float64() < s.cfg.Enemy.EliteChance
	return s.spawn(a, elite, s.SpawnPosition(around))
}

func (s *SpawnScheduler) atCapacity() bool {
	limit := s.cfg.Spawn.MaxEnemies
	return limit > 0 && s.enemies.Live() >= limit
}

func (s *SpawnScheduler) spawn(a Archetype, elite bool, pos Vec2) *Enemy {
	e := s.enemies.Add(newEnemy(s.cfg, s.rng, a, elite, pos))
	s.fx.AddBurst(e.Pos, 0.9, e.Archetype.Tag)
	s.journal.emit(EventTypeEnemySpawn, "", SpawnPayload{
		EnemyID:   e.ID,
		Archetype: a.Name,
		Elite:     elite,
		X:         e.Pos.X,
		Y:         e.Pos.Y,
	})
	return e
}

// SpawnPosition picks a point on a ring of random radius around the given
// position, clamped into the spawn bounds.
func (s *SpawnScheduler) SpawnPosition(around Vec2) Vec2 {
	sp := &s.cfg.Spawn
	w := &s.cfg.World

	angle := s.rng.Float64() * 2 * math.Pi
	r := sp.RingMin + s.rng.Float64()*(sp.RingMax-sp.RingMin)
	return Vec2{
		X: clamp(around.X+math.Cos(angle)*r, w.SpawnMarginX, w.Width-w.SpawnMarginX),
		Y: clamp(around.Y+math.Sin(angle)*r, w.SpawnMarginY, w.Height-w.SpawnMarginY),
	}
}

// CurrentInterval is the interval in force after the last Advance.
func (s *SpawnScheduler) CurrentInterval() float64 { return s.interval }
