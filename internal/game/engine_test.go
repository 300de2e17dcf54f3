package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ink-blade/internal/tuning"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(EngineConfig{TickRate: 60, Tuning: tuning.Default(), Seed: 11, Store: NewMemoryScoreStore(0)})
	require.NoError(t, err)
	return e
}

func TestNewEnginePublishesReadySnapshot(t *testing.T) {
	e := newTestEngine(t)

	snap := e.GetSnapshot()
	assert.Equal(t, "ready", snap.Mode)
	assert.Empty(t, snap.Enemies)
	assert.NotZero(t, snap.Sequence)
	assert.Equal(t, 100.0, snap.Player.Health)
}

func TestEngineMatchLifecycle(t *testing.T) {
	e := newTestEngine(t)

	e.StartMatch()
	snap := e.GetSnapshot()
	assert.Equal(t, "running", snap.Mode)
	assert.Len(t, snap.Enemies, 4)

	e.SubmitInput(Intent{MoveX: 1})
	for i := 0; i < 30; i++ {
		e.tick()
	}
	after := e.GetSnapshot()
	assert.Greater(t, after.Player.Pos.X, snap.Player.Pos.X)
	assert.Equal(t, uint64(30), after.Tick)
	assert.Greater(t, after.Sequence, snap.Sequence)

	e.ResetMatch()
	snap = e.GetSnapshot()
	assert.Equal(t, "ready", snap.Mode)
	assert.Empty(t, snap.Enemies)
	assert.Zero(t, snap.Score)
}

func TestEngineSnapshotCopiesAreIndependent(t *testing.T) {
	e := newTestEngine(t)
	e.StartMatch()

	a := e.GetSnapshot()
	a.Enemies[0].Health = -5
	b := e.GetSnapshot()
	assert.NotEqual(t, -5.0, b.Enemies[0].Health)
}

func TestEngineTickObserver(t *testing.T) {
	e := newTestEngine(t)
	e.StartMatch()

	var reports []TickReport
	e.SetTickObserver(func(r TickReport) { reports = append(reports, r) })
	e.tick()
	e.tick()

	require.Len(t, reports, 2)
	assert.Equal(t, ModeRunning, reports[1].Mode)
	assert.InDelta(t, 1.0/60, reports[1].Stats.Effective, 1e-9)
}

func TestEngineStartStop(t *testing.T) {
	e := newTestEngine(t)
	e.StartMatch()

	var mu sync.Mutex
	ticks := 0
	e.SetTickObserver(func(TickReport) {
		mu.Lock()
		ticks++
		mu.Unlock()
	})

	e.Start()
	e.Start()
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ticks >= 3
	}, 2*time.Second, 10*time.Millisecond)
	e.Stop()
	e.Stop()
}

func TestEngineRestartAfterStop(t *testing.T) {
	e := newTestEngine(t)
	e.StartMatch()

	var mu sync.Mutex
	ticks := 0
	e.SetTickObserver(func(TickReport) {
		mu.Lock()
		ticks++
		mu.Unlock()
	})
	ticksAtLeast := func(n int) func() bool {
		return func() bool {
			mu.Lock()
			defer mu.Unlock()
			return ticks >= n
		}
	}

	e.Start()
	assert.Eventually(t, ticksAtLeast(2), 2*time.Second, 5*time.Millisecond)
	e.Stop()

	mu.Lock()
	stopped := ticks
	mu.Unlock()

	e.Start()
	assert.Eventually(t, ticksAtLeast(stopped+2), 2*time.Second, 5*time.Millisecond, "loop runs again after restart")
	assert.NotPanics(t, e.Stop)
	assert.NotPanics(t, e.Stop)
}

func TestEngineConcurrentInputAndReads(t *testing.T) {
	e := newTestEngine(t)
	e.StartMatch()
	e.Start()
	defer e.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				e.SubmitInput(Intent{MoveX: float64(i%2*2 - 1), LightStrike: j%7 == 0})
				_ = e.GetSnapshot()
				time.Sleep(time.Millisecond)
			}
		}(i)
	}
	wg.Wait()
}

func TestEngineApplyTuning(t *testing.T) {
	e := newTestEngine(t)
	veteran, err := tuning.Default().WithTier("veteran")
	require.NoError(t, err)

	require.NoError(t, e.ApplyTuning(veteran))
	assert.Equal(t, "veteran", e.Tuning().Tier)
	assert.InDelta(t, 0.22, e.Tuning().Guard.Mitigation, 1e-9)
}

func TestEngineEventLogStats(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.StartEventLog(""))
	defer e.StopEventLog()

	e.StartMatch()
	e.tick()

	stats := e.GetEventLogStats()
	assert.Equal(t, true, stats["running"])
	assert.GreaterOrEqual(t, stats["total"].(uint64), uint64(6))
}

func TestEngineEventLogCounts(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.StartEventLog(""))
	defer e.StopEventLog()

	e.StartMatch()
	total, dropped := e.EventLogCounts()
	assert.Equal(t, e.GetEventLogStats()["total"], total)
	assert.Zero(t, dropped)
}

func TestEngineJournalsInputBySource(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.StartEventLog(""))
	defer e.StopEventLog()
	e.StartMatch()

	e.SubmitInputFrom("10.0.0.7", Intent{LightStrike: true})
	e.tick()
	e.SubmitInputFrom("10.0.0.7", Intent{MoveX: 1})
	e.tick()

	stats := e.GetEventLogStats()
	byType := stats["byType"].(map[string]uint64)
	assert.Equal(t, uint64(1), byType["input"], "only ticks carrying an edge are journaled")
	assert.Equal(t, 1, stats["sources"])
}

func TestEngineInputBudgetIsPerClient(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.StartEventLog(""))
	defer e.StopEventLog()
	e.StartMatch()

	for i := 0; i < 3*MaxEventsPerSource/10; i++ {
		e.SubmitInputFrom("mashing", Intent{Dash: i%2 == 0, LightStrike: i%2 == 1})
		e.tick()
	}
	e.SubmitInputFrom("calm", Intent{HeavyStrike: true})
	e.tick()

	byType := e.GetEventLogStats()["byType"].(map[string]uint64)
	assert.Less(t, byType["input"], uint64(3*MaxEventsPerSource/10+1), "the mashing client is cut off")
	assert.GreaterOrEqual(t, byType["input"], uint64(MaxEventsPerSource/10+1), "the calm client still gets through")
	_, dropped := e.EventLogCounts()
	assert.NotZero(t, dropped)
}
