package game

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ink-blade/internal/tuning"
)

const frame = 1.0 / 60.0

// newTestSim returns a running simulation with no enemies.
func newTestSim(t *testing.T) (*Simulation, *MemoryScoreStore) {
	t.Helper()
	store := NewMemoryScoreStore(0)
	sim, err := NewSimulation(Options{Tuning: tuning.Default(), Seed: 1, Store: store})
	require.NoError(t, err)
	sim.match.Mode = ModeRunning
	return sim, store
}

// archetype looks up an archetype by name.
func archetype(t *testing.T, sim *Simulation, name string) Archetype {
	t.Helper()
	for _, a := range sim.table.all {
		if a.Name == name {
			return a
		}
	}
	t.Fatalf("no archetype %q", name)
	return Archetype{}
}

// placeEnemy adds a non-elite enemy at an offset from the player and
// refreshes the broad-phase index.
func placeEnemy(t *testing.T, sim *Simulation, name string, offset Vec2) *Enemy {
	t.Helper()
	e := newEnemy(sim.cfg, sim.rng, archetype(t, sim, name), false, sim.player.Pos.Add(offset))
	e.AttackCooldown = 10
	sim.enemies.Add(e)
	sim.RebuildIndex()
	return e
}

// stepPlayer advances only the player.
func stepPlayer(sim *Simulation, in Intent, steps int) {
	for i := 0; i < steps; i++ {
		sim.player.Step(frame, in)
	}
}
