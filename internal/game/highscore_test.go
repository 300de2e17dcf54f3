package game

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileScoreStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "highscore.json")
	store := NewFileScoreStore(path)

	hi, err := store.Load()
	require.NoError(t, err)
	assert.Zero(t, hi, "missing file reads as zero")

	require.NoError(t, store.Save(4321))
	hi, err = NewFileScoreStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 4321, hi)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"highScore": 4321`)
}

func TestFileScoreStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "highscore.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileScoreStore(path).Load()
	assert.Error(t, err)

	sim, err := NewSimulation(Options{Seed: 1, Store: NewFileScoreStore(path)})
	require.NoError(t, err)
	assert.Zero(t, sim.Match().HighScore, "unreadable store starts from zero")
}

func TestMemoryScoreStore(t *testing.T) {
	store := NewMemoryScoreStore(10)
	hi, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 10, hi)

	require.NoError(t, store.Save(20))
	hi, _ = store.Load()
	assert.Equal(t, 20, hi)
	assert.Equal(t, 1, store.Saves())
}
