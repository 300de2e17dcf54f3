package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrikeConeSelection(t *testing.T) {
	sim, _ := newTestSim(t)
	p := sim.Player()

	ahead := placeEnemy(t, sim, "bandit", Vec2{0, -50})
	beside := placeEnemy(t, sim, "bandit", Vec2{60, 0})
	behind := placeEnemy(t, sim, "bandit", Vec2{0, 50})
	far := placeEnemy(t, sim, "bandit", Vec2{0, -140})

	hits := sim.Resolver().ResolvePlayerStrike(p.Pos, Vec2{0, -1}, 112, 0.78, 26, false)

	require.Len(t, hits, 1)
	assert.Equal(t, ahead.ID, hits[0].EnemyID)
	assert.InDelta(t, 55-26, ahead.Health, 1e-9)
	assert.InDelta(t, 55, beside.Health, 1e-9)
	assert.InDelta(t, 55, behind.Health, 1e-9)
	assert.InDelta(t, 55, far.Health, 1e-9)
}

func TestStrikeEliteDamage(t *testing.T) {
	tests := []struct {
		name   string
		heavy  bool
		damage float64
		elite  bool
		want   float64
	}{
		{"light on regular", false, 26, false, 26},
		{"light on elite", false, 26, true, 20},
		{"heavy on elite", true, 44, true, 44},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim, _ := newTestSim(t)
			e := placeEnemy(t, sim, "knight", Vec2{0, -60})
			e.Elite = tt.elite
			start := e.Health

			sim.Resolver().ResolvePlayerStrike(sim.Player().Pos, Vec2{0, -1}, 112, 0.78, tt.damage, tt.heavy)
			assert.InDelta(t, tt.want, start-e.Health, 1e-9)
		})
	}
}

func TestStrikeReachIsStrict(t *testing.T) {
	sim, _ := newTestSim(t)
	p := sim.Player()

	// Edge exactly at reach: 112 + enemy radius 20.
	edge := placeEnemy(t, sim, "knight", Vec2{0, -132})
	inside := placeEnemy(t, sim, "knight", Vec2{0, -131})

	hits := sim.Resolver().ResolvePlayerStrike(p.Pos, Vec2{0, -1}, 112, 0.78, 26, false)

	require.Len(t, hits, 1)
	assert.Equal(t, inside.ID, hits[0].EnemyID)
	assert.InDelta(t, 120, edge.Health, 1e-9)
}

func TestStrikeOverlappingCenterCounts(t *testing.T) {
	sim, _ := newTestSim(t)
	e := placeEnemy(t, sim, "knight", Vec2{})

	hits := sim.Resolver().ResolvePlayerStrike(sim.Player().Pos, Vec2{1, 0}, 112, 0.2, 10, false)
	require.Len(t, hits, 1)
	assert.InDelta(t, 110, e.Health, 1e-9)
}

func TestStrikeKillCreditsOnce(t *testing.T) {
	sim, _ := newTestSim(t)
	p := sim.Player()
	p.Resource = 50
	e := placeEnemy(t, sim, "wraith", Vec2{0, -40})
	r := sim.Resolver()

	hits := r.ResolvePlayerStrike(p.Pos, Vec2{0, -1}, 112, 0.78, 44, true)
	require.Len(t, hits, 1)
	assert.True(t, hits[0].Killed)
	assert.False(t, e.Alive())

	m := sim.Match()
	assert.Equal(t, 1, m.Kills)
	assert.InDelta(t, 120+12, m.Score, 1e-9)
	assert.InDelta(t, 58, p.Resource, 1e-9)
	assert.Equal(t, 1, sim.Combo().Streak)

	// The tombstone is not struck again before compaction.
	hits = r.ResolvePlayerStrike(p.Pos, Vec2{0, -1}, 112, 0.78, 44, true)
	assert.Empty(t, hits)
	assert.Equal(t, 1, m.Kills)
	assert.Equal(t, 0, sim.Enemies().Live())
	assert.Equal(t, 1, sim.Enemies().Compact())
}

func TestStrikeHitRaisesFeedback(t *testing.T) {
	sim, _ := newTestSim(t)
	e := placeEnemy(t, sim, "knight", Vec2{0, -60})

	sim.Resolver().ResolvePlayerStrike(sim.Player().Pos, Vec2{0, -1}, 112, 0.78, 26, false)

	cfg := sim.Tuning()
	assert.InDelta(t, cfg.Light.HitShake, sim.Feedback().Shake, 1e-9)
	assert.InDelta(t, cfg.Light.SlowScale, sim.Clock().SlowTarget(), 1e-9)
	assert.InDelta(t, cfg.Enemy.HitFlash, e.HitFlash, 1e-9)
	assert.InDelta(t, cfg.Light.EnemyStun, e.Stun, 1e-9)
	assert.NotEmpty(t, sim.Feedback().Bursts)
}

func TestSpecialRadius(t *testing.T) {
	sim, _ := newTestSim(t)
	p := sim.Player()
	p.Resource = 0

	near := placeEnemy(t, sim, "bandit", Vec2{100, 0})
	edge := placeEnemy(t, sim, "bandit", Vec2{0, 185})
	tough := placeEnemy(t, sim, "knight", Vec2{-140, 0})

	hits := sim.Resolver().ResolvePlayerSpecial(p.Pos, 165, 55)

	require.Len(t, hits, 2)
	assert.False(t, near.Alive())
	assert.True(t, edge.Alive())
	assert.InDelta(t, 120-55, tough.Health, 1e-9)

	m := sim.Match()
	assert.Equal(t, 1, m.Kills)
	assert.InDelta(t, 200+20, m.Score, 1e-9)
	assert.Zero(t, p.Resource, "special kills give no resource")
}

func TestEnemyAttackOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(sim *Simulation)
		offset     Vec2
		want       Outcome
		wantHealth float64
	}{
		{
			name:       "unguarded hit",
			offset:     Vec2{50, 0},
			want:       OutcomeHit,
			wantHealth: 84,
		},
		{
			name:       "out of range",
			offset:     Vec2{96, 0},
			want:       OutcomeMiss,
			wantHealth: 100,
		},
		{
			name:       "invulnerable",
			setup:      func(sim *Simulation) { sim.Player().Invulnerability = 0.1 },
			offset:     Vec2{50, 0},
			want:       OutcomeMiss,
			wantHealth: 100,
		},
		{
			name: "guarded",
			setup: func(sim *Simulation) {
				stepPlayer(sim, Intent{GuardHeld: true}, 1)
				sim.Player().ParryWindow = 0
			},
			offset:     Vec2{50, 0},
			want:       OutcomeGuarded,
			wantHealth: 100 - 16*0.28,
		},
		{
			name:       "parried",
			setup:      func(sim *Simulation) { stepPlayer(sim, Intent{GuardHeld: true}, 1) },
			offset:     Vec2{50, 0},
			want:       OutcomeParried,
			wantHealth: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim, _ := newTestSim(t)
			if tt.setup != nil {
				tt.setup(sim)
			}
			e := placeEnemy(t, sim, "bandit", tt.offset)

			got := sim.Resolver().ResolveEnemyAttack(e, sim.Player())
			assert.Equal(t, tt.want, got)
			assert.InDelta(t, tt.wantHealth, sim.Player().Health, 1e-9)
		})
	}
}

func TestEnemyHitSideEffects(t *testing.T) {
	sim, _ := newTestSim(t)
	p := sim.Player()
	sim.Combo().Increment()
	sim.Combo().Increment()
	e := placeEnemy(t, sim, "bandit", Vec2{0, 50})

	require.Equal(t, OutcomeHit, sim.Resolver().ResolveEnemyAttack(e, p))

	assert.InDelta(t, 84, p.Health, 1e-9)
	assert.InDelta(t, 0.36, p.Invulnerability, 1e-9)
	assert.InDelta(t, 0.16, p.Stun, 1e-9)
	assert.Zero(t, sim.Combo().Streak)
	assert.InDelta(t, 0.07, sim.Clock().HitStopRemaining(), 1e-9)
	assert.InDelta(t, 1, sim.Feedback().Flash, 1e-9)

	// A second attack inside the invulnerability window misses.
	assert.Equal(t, OutcomeMiss, sim.Resolver().ResolveEnemyAttack(e, p))
	assert.InDelta(t, 84, p.Health, 1e-9)
}

func TestGuardAndParryKeepCombo(t *testing.T) {
	sim, _ := newTestSim(t)
	p := sim.Player()
	sim.Combo().Increment()
	stepPlayer(sim, Intent{GuardHeld: true}, 1)
	require.True(t, p.Guarding())
	require.Greater(t, p.ParryWindow, 0.0)
	p.Resource = 10

	e := placeEnemy(t, sim, "bandit", Vec2{40, 0})
	require.Equal(t, OutcomeParried, sim.Resolver().ResolveEnemyAttack(e, p))
	assert.InDelta(t, 44, p.Resource, 1e-9)
	assert.True(t, sim.Feedback().Parry)
	assert.Equal(t, 1, sim.Combo().Streak)

	p.ParryWindow = 0
	require.Equal(t, OutcomeGuarded, sim.Resolver().ResolveEnemyAttack(e, p))
	assert.InDelta(t, 51, p.Resource, 1e-9)
	assert.InDelta(t, 0.12, p.Invulnerability, 1e-9)
	assert.Equal(t, 1, sim.Combo().Streak)
}

func TestDefeatPersistsBetterScore(t *testing.T) {
	sim, store := newTestSim(t)
	p := sim.Player()
	p.Health = 10
	sim.Match().Score = 1234.7
	e := placeEnemy(t, sim, "bandit", Vec2{30, 0})

	require.Equal(t, OutcomeHit, sim.Resolver().ResolveEnemyAttack(e, p))

	m := sim.Match()
	assert.Equal(t, ModeGameOver, m.Mode)
	assert.Zero(t, p.Health)
	assert.Equal(t, 1234.0, m.Score)
	assert.Equal(t, 1234, m.HighScore)
	assert.Equal(t, 1, store.Saves())

	hi, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 1234, hi)

	// No further outcomes once the match is over.
	assert.Equal(t, OutcomeMiss, sim.Resolver().ResolveEnemyAttack(e, p))
}

func TestDefeatKeepsBetterStoredScore(t *testing.T) {
	store := NewMemoryScoreStore(5000)
	sim, err := NewSimulation(Options{Seed: 1, Store: store})
	require.NoError(t, err)
	sim.Match().Mode = ModeRunning
	sim.Player().Health = 1
	sim.Match().Score = 300
	e := placeEnemy(t, sim, "bandit", Vec2{30, 0})

	sim.Resolver().ResolveEnemyAttack(e, sim.Player())

	assert.Equal(t, ModeGameOver, sim.Match().Mode)
	assert.Equal(t, 5000, sim.Match().HighScore)
	assert.Zero(t, store.Saves())
}

func TestGuardedBlowCanEndMatch(t *testing.T) {
	sim, _ := newTestSim(t)
	p := sim.Player()
	stepPlayer(sim, Intent{GuardHeld: true}, 1)
	p.ParryWindow = 0
	p.Health = 2
	e := placeEnemy(t, sim, "knight", Vec2{30, 0})

	require.Equal(t, OutcomeGuarded, sim.Resolver().ResolveEnemyAttack(e, p))
	assert.Equal(t, ModeGameOver, sim.Match().Mode)
}
