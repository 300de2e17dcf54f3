package game

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLogWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	el := NewEventLog()
	require.NoError(t, el.Start(path))

	assert.True(t, el.EmitSimple(EventTypeEnemyKill, 12, "", KillPayload{EnemyID: 3, Archetype: "bandit", Award: 132}))
	assert.True(t, el.EmitSimple(EventTypeWave, 13, "", WavePayload{Wave: 2, Interval: 1.19}))
	el.Stop()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]interface{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "enemy_kill", lines[0]["type"])
	assert.Equal(t, "wave", lines[1]["type"])

	payload, ok := lines[0]["payload"].(map[string]interface{})
	require.True(t, ok, "payload is inline JSON")
	assert.Equal(t, "bandit", payload["archetype"])
}

func TestEventLogStoppedDropsEmits(t *testing.T) {
	el := NewEventLog()
	assert.False(t, el.EmitSimple(EventTypeTick, 1, "", TickPayload{}))
	assert.Zero(t, el.GetTotalCount())
}

func TestEventLogPerSourceLimit(t *testing.T) {
	el := NewEventLog()
	require.NoError(t, el.Start(""))
	defer el.Stop()

	accepted := 0
	for i := 0; i < 200; i++ {
		if el.EmitSimple(EventTypeStrike, uint64(i), "client-a", ActionPayload{}) {
			accepted++
		}
	}
	assert.Less(t, accepted, 200)
	assert.Greater(t, el.GetDroppedCount(), uint64(0))

	assert.True(t, el.EmitSimple(EventTypeStrike, 1, "client-b", ActionPayload{}), "other sources are unaffected")

	stats := el.GetStats()
	byType, ok := stats["byType"].(map[string]uint64)
	require.True(t, ok)
	assert.Equal(t, uint64(accepted+1), byType["strike"])
}

func TestSourceBudgetsPruneIdle(t *testing.T) {
	b := newSourceBudgets(10, 2)
	now := time.Now()

	assert.True(t, b.allow("old", now.Add(-2*SourceIdleTimeout)))
	assert.True(t, b.allow("fresh", now))
	assert.Equal(t, 2, b.len())

	assert.Equal(t, 1, b.prune(now.Add(-SourceIdleTimeout)))
	assert.True(t, b.allow("old", now), "a pruned source starts with a full bucket")
}

func TestSimulationEventsReachSink(t *testing.T) {
	el := NewEventLog()
	require.NoError(t, el.Start(""))
	defer el.Stop()

	sim, err := NewSimulation(Options{Seed: 3, Store: NewMemoryScoreStore(0), Events: el})
	require.NoError(t, err)
	sim.Start()

	byType := el.GetStats()["byType"].(map[string]uint64)
	assert.Equal(t, uint64(1), byType["match_start"])
	assert.Equal(t, uint64(4), byType["enemy_spawn"])
}
