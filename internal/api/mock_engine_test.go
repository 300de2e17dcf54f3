package api_test

import (
	"sync"

	"ink-blade/internal/game"
	"ink-blade/internal/game/spatial"
	"ink-blade/internal/tuning"
)

// MockEngine implements api.EngineInterface for testing
type MockEngine struct {
	mu sync.Mutex

	snap      game.Snapshot
	inputs    []game.Intent
	sources   []string
	starts    int
	resets    int
	highScore int
	tuning    *tuning.Tuning
	tuneErr   error
}

func NewMockEngine() *MockEngine {
	return &MockEngine{
		snap: game.Snapshot{
			Mode:    "ready",
			Enemies: []game.EnemyView{},
			Player:  game.PlayerView{Pos: game.Vec2{X: 1300, Y: 2600}, Health: 100, HealthMax: 100},
		},
		tuning: tuning.Default(),
	}
}

func (m *MockEngine) GetSnapshot() game.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Clone()
}

func (m *MockEngine) SubmitInputFrom(source string, in game.Intent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, in)
	m.sources = append(m.sources, source)
}

func (m *MockEngine) StartMatch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	m.snap.Mode = "running"
}

func (m *MockEngine) ResetMatch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	m.snap.Mode = "ready"
}

func (m *MockEngine) HighScore() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.highScore
}

func (m *MockEngine) Tuning() *tuning.Tuning {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tuning
}

func (m *MockEngine) ApplyTuning(t *tuning.Tuning) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tuneErr != nil {
		return m.tuneErr
	}
	m.tuning = t
	return nil
}

func (m *MockEngine) GetEventLogStats() map[string]interface{} {
	return map[string]interface{}{"running": false, "total": uint64(0)}
}

func (m *MockEngine) GridStats() spatial.GridStats {
	return spatial.GridStats{}
}

func (m *MockEngine) Inputs() []game.Intent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]game.Intent(nil), m.inputs...)
}

func (m *MockEngine) InputSources() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sources...)
}

func (m *MockEngine) Counts() (starts, resets int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts, m.resets
}

func (m *MockEngine) SetSnapshot(s game.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = s
}
