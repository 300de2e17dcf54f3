package game

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeTick
	EventTypeMatchStart
	EventTypeMatchReset
	EventTypeGameOver
	EventTypeDash
	EventTypeStrike
	EventTypeSpecial
	EventTypeEnemySpawn
	EventTypeEnemyKill
	EventTypeEnemyAttack
	EventTypeWave
	EventTypeBossPhase
	EventTypeTuning
	EventTypeInput
)

// EventVersion for backwards compatibility of the journal format
const EventVersion uint8 = 1

// Event is the core event structure for the event log
type Event struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`
	TickNum   uint64          `json:"tickNum"`
	Source    string          `json:"source,omitempty"` // client that caused it; budgeted per source
	Payload   json.RawMessage `json:"payload"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypeMatchStart:
		return "match_start"
	case EventTypeMatchReset:
		return "match_reset"
	case EventTypeGameOver:
		return "game_over"
	case EventTypeDash:
		return "dash"
	case EventTypeStrike:
		return "strike"
	case EventTypeSpecial:
		return "special"
	case EventTypeEnemySpawn:
		return "enemy_spawn"
	case EventTypeEnemyKill:
		return "enemy_kill"
	case EventTypeEnemyAttack:
		return "enemy_attack"
	case EventTypeWave:
		return "wave"
	case EventTypeBossPhase:
		return "boss_phase"
	case EventTypeTuning:
		return "tuning"
	case EventTypeInput:
		return "input"
	default:
		return "unknown"
	}
}

// MarshalText writes the type by name so the journal stays readable.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Typed payloads for different event types

type TickPayload struct {
	Seed        int64 `json:"seed"`
	Enemies     int   `json:"enemies"`
	DeltaTimeNs int64 `json:"deltaTimeNs"`
}

type MatchPayload struct {
	Seed      int64 `json:"seed"`
	HighScore int   `json:"highScore"`
	Enemies   int   `json:"enemies"`
}

type GameOverPayload struct {
	Score     int  `json:"score"`
	Kills     int  `json:"kills"`
	Wave      int  `json:"wave"`
	HighScore int  `json:"highScore"`
	NewRecord bool `json:"newRecord"`
}

// ActionPayload describes a player dash, strike or special.
type ActionPayload struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	DirX  float64 `json:"dirX,omitempty"`
	DirY  float64 `json:"dirY,omitempty"`
	Heavy bool    `json:"heavy,omitempty"`
	Hits  int     `json:"hits"`
}

type SpawnPayload struct {
	EnemyID   uint32  `json:"enemyId"`
	Archetype string  `json:"archetype"`
	Elite     bool    `json:"elite"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

type KillPayload struct {
	EnemyID   uint32  `json:"enemyId"`
	Archetype string  `json:"archetype"`
	Elite     bool    `json:"elite"`
	Special   bool    `json:"special"`
	Award     float64 `json:"award"`
	Streak    int     `json:"streak"`
}

type AttackPayload struct {
	EnemyID uint32  `json:"enemyId"`
	Outcome string  `json:"outcome"`
	Damage  float64 `json:"damage"`
	Health  float64 `json:"health"`
}

type WavePayload struct {
	Wave     int     `json:"wave"`
	Interval float64 `json:"interval"`
}

type BossPhasePayload struct {
	EnemyID uint32 `json:"enemyId"`
	Phase   int    `json:"phase"`
}

// InputPayload records the edges a client fired in one tick.
type InputPayload struct {
	MoveX   float64 `json:"moveX"`
	MoveY   float64 `json:"moveY"`
	Guard   bool    `json:"guard,omitempty"`
	Dash    bool    `json:"dash,omitempty"`
	Light   bool    `json:"light,omitempty"`
	Heavy   bool    `json:"heavy,omitempty"`
	Special bool    `json:"special,omitempty"`
}

func inputPayload(in Intent) InputPayload {
	return InputPayload{
		MoveX: in.MoveX, MoveY: in.MoveY, Guard: in.GuardHeld,
		Dash: in.Dash, Light: in.LightStrike, Heavy: in.HeavyStrike, Special: in.Special,
	}
}

type TuningPayload struct {
	Tier string `json:"tier"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, source string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		Source:    source,
		Payload:   EncodePayload(payload),
	}
}

// EventSink receives simulation events. *EventLog implements it.
type EventSink interface {
	EmitSimple(eventType EventType, tickNum uint64, source string, payload interface{}) bool
}

// journal stamps events with the current tick before handing them to the
// sink. A nil sink discards everything.
type journal struct {
	sink  EventSink
	match *MatchState
}

func (j journal) emit(t EventType, source string, payload interface{}) {
	if j.sink == nil {
		return
	}
	var tick uint64
	if j.match != nil {
		tick = j.match.Tick
	}
	j.sink.EmitSimple(t, tick, source, payload)
}
