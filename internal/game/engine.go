package game

import (
	"fmt"
	"log"
	"sync"
	"time"

	"ink-blade/internal/game/spatial"
	"ink-blade/internal/tuning"
)

// EngineConfig configures the real-time loop around a Simulation.
type EngineConfig struct {
	TickRate int
	Tuning   *tuning.Tuning
	Seed     int64 // 0 picks a time-based seed
	Store    ScoreStore
}

// TickReport is handed to the tick observer after every tick.
type TickReport struct {
	Duration time.Duration
	Mode     Mode
	Stats    StepStats
}

// Engine drives a Simulation from a ticker goroutine. Input arrives from
// other goroutines through the latch; readers get snapshots from the
// triple-buffered pool.
type Engine struct {
	mu  sync.RWMutex
	sim *Simulation

	latch InputLatch

	tickRate int
	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}

	snapshotPool *SnapshotPool
	eventLog     *EventLog

	onTick func(TickReport)
}

// NewEngine creates an engine with its simulation in the ready state.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.TickRate <= 0 {
		cfg.TickRate = 60
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	eventLog := NewEventLog()
	sim, err := NewSimulation(Options{
		Tuning: cfg.Tuning,
		Seed:   cfg.Seed,
		Store:  cfg.Store,
		Events: eventLog,
	})
	if err != nil {
		return nil, fmt.Errorf("create simulation: %w", err)
	}

	e := &Engine{
		sim:          sim,
		tickRate:     cfg.TickRate,
		snapshotPool: NewSnapshotPool(),
		eventLog:     eventLog,
	}
	e.produceSnapshot()
	return e, nil
}

// Start begins the game loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	ticker := time.NewTicker(time.Second / time.Duration(e.tickRate))
	stop := make(chan struct{})
	e.ticker, e.stopChan = ticker, stop
	e.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				e.tick()
			case <-stop:
				return
			}
		}
	}()

	log.Printf("🎮 Game engine started at %d TPS", e.tickRate)
}

// Stop stops the game loop
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	e.running = false
	if e.ticker != nil {
		e.ticker.Stop()
	}
	close(e.stopChan)
	log.Println("🛑 Game engine stopped")
}

// tick advances the simulation by one fixed step.
func (e *Engine) tick() {
	start := time.Now()
	in, source := e.latch.TakeFrom()

	e.mu.Lock()
	raw := 1.0 / float64(e.tickRate)
	e.sim.Step(raw, in)
	if e.sim.match.Mode == ModeRunning {
		if in.HasEdge() {
			e.eventLog.EmitSimple(EventTypeInput, e.sim.match.Tick, source, inputPayload(in))
		}
		e.eventLog.EmitSimple(EventTypeTick, e.sim.match.Tick, "", TickPayload{
			Seed:        e.sim.seed,
			Enemies:     e.sim.enemies.Live(),
			DeltaTimeNs: int64(e.sim.last.Effective * 1e9),
		})
	}
	e.produceSnapshot()
	report := TickReport{Duration: time.Since(start), Mode: e.sim.match.Mode, Stats: e.sim.LastStep()}
	onTick := e.onTick
	e.mu.Unlock()

	if onTick != nil {
		onTick(report)
	}
}

// produceSnapshot publishes the post-step state. Caller holds e.mu.
func (e *Engine) produceSnapshot() {
	snap := e.snapshotPool.AcquireWrite()
	e.sim.Fill(snap)
	e.snapshotPool.PublishWrite()
}

// SubmitInput latches an intent for the next tick.
func (e *Engine) SubmitInput(in Intent) {
	e.latch.Submit(in)
}

// SubmitInputFrom latches an intent and tags its edges with the client
// that sent them; the journal budgets input events per client.
func (e *Engine) SubmitInputFrom(source string, in Intent) {
	e.latch.SubmitFrom(source, in)
}

// StartMatch starts a match; a running match is left alone.
func (e *Engine) StartMatch() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sim.Start()
	e.produceSnapshot()
}

// ResetMatch returns to the pre-match state and drops latched input.
func (e *Engine) ResetMatch() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.latch.Clear()
	e.sim.Reset()
	e.produceSnapshot()
	log.Println("🔄 Match reset")
}

// ApplyTuning swaps tuning between ticks.
func (e *Engine) ApplyTuning(t *tuning.Tuning) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.sim.ApplyTuning(t); err != nil {
		return err
	}
	e.produceSnapshot()
	return nil
}

// GetSnapshot returns a copy of the latest published snapshot.
func (e *Engine) GetSnapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotPool.AcquireRead().Clone()
}

// HighScore is the best recorded final score.
func (e *Engine) HighScore() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sim.match.HighScore
}

// Tuning returns the tuning in force. Callers must not modify it.
func (e *Engine) Tuning() *tuning.Tuning {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sim.cfg
}

// GridStats reports broad-phase occupancy.
func (e *Engine) GridStats() spatial.GridStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sim.GridStats()
}

// SetTickObserver installs a hook called after every tick, outside the
// engine lock.
func (e *Engine) SetTickObserver(fn func(TickReport)) {
	e.mu.Lock()
	e.onTick = fn
	e.mu.Unlock()
}

// StartEventLog initializes the event logging system
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog gracefully stops the event logging system
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// GetEventLogStats returns event log statistics for monitoring
func (e *Engine) GetEventLogStats() map[string]interface{} {
	return e.eventLog.GetStats()
}

// EventLogCounts returns the journal's total and dropped counters.
func (e *Engine) EventLogCounts() (total, dropped uint64) {
	return e.eventLog.GetTotalCount(), e.eventLog.GetDroppedCount()
}
