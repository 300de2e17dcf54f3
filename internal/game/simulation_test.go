package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ink-blade/internal/tuning"
)

func newReadySim(t *testing.T, seed int64) *Simulation {
	t.Helper()
	sim, err := NewSimulation(Options{Tuning: tuning.Default(), Seed: seed, Store: NewMemoryScoreStore(0)})
	require.NoError(t, err)
	return sim
}

// script cycles through a fixed mix of inputs.
func script(i int) Intent {
	in := Intent{MoveX: 1}
	if (i/90)%2 == 1 {
		in.MoveX = -1
		in.MoveY = 0.5
	}
	switch i % 40 {
	case 5:
		in.LightStrike = true
	case 17:
		in.HeavyStrike = true
	case 29:
		in.Dash = true
	}
	in.GuardHeld = i%120 > 100
	return in
}

func TestStepIgnoredUntilStart(t *testing.T) {
	sim := newReadySim(t, 1)
	sim.Step(frame, Intent{MoveX: 1})

	assert.Equal(t, ModeReady, sim.Match().Mode)
	assert.Zero(t, sim.Match().Tick)
	assert.Zero(t, sim.Enemies().Live())
	assert.Equal(t, sim.spawnPoint(), sim.Player().Pos)
}

func TestStartIsIdempotent(t *testing.T) {
	sim := newReadySim(t, 1)
	sim.Start()
	sim.Start()

	assert.Equal(t, ModeRunning, sim.Match().Mode)
	assert.Equal(t, 4, sim.Enemies().Live())
}

func TestResetRoundTrip(t *testing.T) {
	sim := newReadySim(t, 9)
	sim.Match().HighScore = 777
	sim.Start()
	for i := 0; i < 300; i++ {
		sim.Step(frame, script(i))
	}
	require.NotZero(t, sim.Match().Tick)

	sim.Reset()

	m := sim.Match()
	assert.Equal(t, ModeReady, m.Mode)
	assert.Zero(t, m.Score)
	assert.Zero(t, m.Kills)
	assert.Zero(t, m.Tick)
	assert.Equal(t, 1, m.Wave)
	assert.Equal(t, 777, m.HighScore)
	assert.Zero(t, sim.Enemies().Live())
	assert.Zero(t, sim.Combo().Streak)

	p := sim.Player()
	assert.Equal(t, StateIdle, p.State())
	assert.Equal(t, p.HealthMax, p.Health)
	assert.Equal(t, p.ResourceMax, p.Resource)
	assert.Equal(t, sim.spawnPoint(), p.Pos)
	assert.Equal(t, 1.0, sim.Clock().Scale())

	sim.Start()
	assert.Equal(t, 4, sim.Enemies().Live())
	assert.Same(t, sim.Player(), sim.Resolver().player, "resolver follows the fresh player")
}

func TestStartAfterGameOverResets(t *testing.T) {
	sim := newReadySim(t, 2)
	sim.Start()
	sim.Match().Mode = ModeGameOver
	sim.Match().Score = 500

	sim.Start()
	assert.Equal(t, ModeRunning, sim.Match().Mode)
	assert.Zero(t, sim.Match().Score)
	assert.Equal(t, 4, sim.Enemies().Live())
}

func TestSameSeedSameMatch(t *testing.T) {
	a := newReadySim(t, 42)
	b := newReadySim(t, 42)
	a.Start()
	b.Start()

	for i := 0; i < 600; i++ {
		a.Step(frame, script(i))
		b.Step(frame, script(i))
	}
	assert.Equal(t, a.Snapshot(), b.Snapshot())
}

func TestPassiveScoreAndWave(t *testing.T) {
	sim, _ := newTestSim(t)

	for i := 0; i < 60; i++ {
		sim.Step(frame, Intent{})
	}
	// One second at wave 1: 92 + 7.
	assert.InDelta(t, 99, sim.Match().Score, 1e-6)
	assert.InDelta(t, 1, sim.Match().Elapsed, 1e-9)

	sim.Match().Score = 2400
	sim.Step(frame, Intent{})
	assert.Equal(t, 4, sim.Match().Wave)
}

func TestKillRaisesWaveInSameStep(t *testing.T) {
	sim, _ := newTestSim(t)
	e := placeEnemy(t, sim, "wraith", Vec2{0, -50})
	e.Health = 1
	sim.Match().Score = 790

	sim.Step(frame, Intent{LightStrike: true})

	require.False(t, e.Alive())
	assert.Equal(t, 1, sim.Match().Kills)
	assert.Equal(t, 2, sim.Match().Wave, "wave follows the kill score without a step of lag")
	assert.Equal(t, 1, sim.LastStep().Removed)
}

func TestStepCountsOutcomes(t *testing.T) {
	sim, _ := newTestSim(t)
	e := placeEnemy(t, sim, "bandit", Vec2{40, 0})
	e.AttackCooldown = 0
	e.Attacking = true
	e.Windup = frame / 2

	sim.Step(frame, Intent{})

	stats := sim.LastStep()
	assert.Equal(t, 1, stats.Outcomes[OutcomeHit])
	assert.InDelta(t, 84, sim.Player().Health, 1e-9)
}

func TestEnemyLoopStopsOnDefeat(t *testing.T) {
	sim, _ := newTestSim(t)
	sim.Player().Health = 5
	for _, off := range []Vec2{{30, 0}, {-30, 0}} {
		e := placeEnemy(t, sim, "bandit", off)
		e.Attacking = true
		e.Windup = frame / 2
	}

	sim.Step(frame, Intent{})

	assert.Equal(t, ModeGameOver, sim.Match().Mode)
	assert.Equal(t, 1, sim.LastStep().Outcomes[OutcomeHit])
	assert.Equal(t, "game_over", sim.Snapshot().Mode)
}

func TestApplyTuningSwapsTier(t *testing.T) {
	sim, _ := newTestSim(t)
	master, err := tuning.Default().WithTier("master")
	require.NoError(t, err)

	require.NoError(t, sim.ApplyTuning(master))

	assert.Same(t, master, sim.Tuning())
	assert.Same(t, master, sim.Player().cfg)
	assert.InDelta(t, 0.18, sim.Resolver().cfg.Guard.Mitigation, 1e-9)

	stepPlayer(sim, Intent{GuardHeld: true}, 1)
	sim.Player().ParryWindow = 0
	e := placeEnemy(t, sim, "bandit", Vec2{40, 0})
	require.Equal(t, OutcomeGuarded, sim.Resolver().ResolveEnemyAttack(e, sim.Player()))
	assert.InDelta(t, 100-16*0.18, sim.Player().Health, 1e-9)
}

func TestApplyTuningRejectsBadArchetypes(t *testing.T) {
	sim, _ := newTestSim(t)
	bad := tuning.Default()
	bad.Archetypes = nil

	assert.Error(t, sim.ApplyTuning(bad))
	assert.NotSame(t, bad, sim.Tuning())
}

func TestSnapshotIsDetached(t *testing.T) {
	sim := newReadySim(t, 5)
	sim.Start()
	sim.Step(frame, Intent{})

	snap := sim.Snapshot()
	require.Len(t, snap.Enemies, sim.Enemies().Live())
	snap.Enemies[0].Health = -1

	assert.NotEqual(t, -1.0, sim.Enemies().Slots()[0].Health)
	assert.Equal(t, "running", snap.Mode)
	assert.Equal(t, 2600.0, snap.World.Width)
}
