package game

import (
	"sync/atomic"
	"time"
)

// MaxSnapshotEnemies caps the enemy list in a snapshot.
const MaxSnapshotEnemies = 128

// PlayerView is the read-only player state for rendering and the HUD.
type PlayerView struct {
	Pos          Vec2    `json:"pos"`
	Vel          Vec2    `json:"vel"`
	Facing       Vec2    `json:"facing"`
	State        string  `json:"state"`
	Health       float64 `json:"health"`
	HealthMax    float64 `json:"healthMax"`
	Resource     float64 `json:"resource"`
	ResourceMax  float64 `json:"resourceMax"`
	Invulnerable bool    `json:"invulnerable"`
	Guarding     bool    `json:"guarding"`
	ParryOpen    bool    `json:"parryOpen"`
	Stunned      bool    `json:"stunned"`
	DashReady    bool    `json:"dashReady"`
	SpecialReady bool    `json:"specialReady"`
}

// EnemyView is the read-only state of one enemy.
type EnemyView struct {
	ID        uint32  `json:"id"`
	Pos       Vec2    `json:"pos"`
	Archetype string  `json:"archetype"`
	Kind      string  `json:"kind"`
	Tag       string  `json:"tag"`
	Elite     bool    `json:"elite"`
	Health    float64 `json:"health"`
	HealthMax float64 `json:"healthMax"`
	Attacking bool    `json:"attacking"`
	Windup    float64 `json:"windup"`
	HitFlash  bool    `json:"hitFlash"`
	Phase     int     `json:"phase"`
}

type ComboView struct {
	Streak int    `json:"streak"`
	Rank   string `json:"rank"`
	Best   int    `json:"best"`
}

type WorldView struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Snapshot is the complete post-step state handed to readers. Nothing in
// it aliases simulation memory.
type Snapshot struct {
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Tick      uint64    `json:"tick"`
	Mode      string    `json:"mode"`

	Player   PlayerView  `json:"player"`
	Enemies  []EnemyView `json:"enemies"`
	Combo    ComboView   `json:"combo"`
	World    WorldView   `json:"world"`
	Feedback Feedback    `json:"feedback"`

	Wave      int     `json:"wave"`
	Score     int     `json:"score"`
	Kills     int     `json:"kills"`
	HighScore int     `json:"highScore"`
	Elapsed   float64 `json:"elapsed"`
}

func newSnapshot() Snapshot {
	return Snapshot{
		Enemies: make([]EnemyView, 0, MaxSnapshotEnemies),
		Feedback: Feedback{
			TimeScale:  1,
			Bursts:     make([]Burst, 0, MaxBursts),
			Telegraphs: make([]Telegraph, 0, MaxTelegraphs),
		},
	}
}

// Clone deep-copies s.
func (s *Snapshot) Clone() Snapshot {
	c := *s
	c.Enemies = append([]EnemyView(nil), s.Enemies...)
	c.Feedback.Bursts = append([]Burst(nil), s.Feedback.Bursts...)
	c.Feedback.Telegraphs = append([]Telegraph(nil), s.Feedback.Telegraphs...)
	return c
}

// SnapshotPool pre-allocates snapshots to avoid GC pressure.
// Uses triple buffering: the producer fills one slot while readers see
// the last published one.
type SnapshotPool struct {
	snapshots [3]Snapshot
	writeIdx  uint32 // atomic - producer index
	readIdx   uint32 // atomic - consumer index
	sequence  uint64 // atomic - monotonic sequence
}

func NewSnapshotPool() *SnapshotPool {
	pool := &SnapshotPool{}
	for i := range pool.snapshots {
		pool.snapshots[i] = newSnapshot()
	}
	return pool
}

// AcquireWrite gets the next write slot (producer only, called from the
// engine tick). Slices are truncated but keep their capacity.
func (p *SnapshotPool) AcquireWrite() *Snapshot {
	idx := atomic.AddUint32(&p.writeIdx, 1) % 3
	snap := &p.snapshots[idx]

	snap.Enemies = snap.Enemies[:0]
	snap.Feedback.Bursts = snap.Feedback.Bursts[:0]
	snap.Feedback.Telegraphs = snap.Feedback.Telegraphs[:0]

	snap.Sequence = atomic.AddUint64(&p.sequence, 1)
	snap.Timestamp = time.Now()
	return snap
}

// PublishWrite marks the write complete and advances the read pointer.
func (p *SnapshotPool) PublishWrite() {
	atomic.StoreUint32(&p.readIdx, atomic.LoadUint32(&p.writeIdx))
}

// AcquireRead returns the latest published snapshot. The slot is reused
// two publishes later; callers that keep it must Clone.
func (p *SnapshotPool) AcquireRead() *Snapshot {
	idx := atomic.LoadUint32(&p.readIdx) % 3
	return &p.snapshots[idx]
}
