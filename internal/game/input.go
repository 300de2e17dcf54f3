package game

import "sync"

// Intent is one step's worth of player input. Movement and guard are
// levels; the remaining fields are edges that fire once.
type Intent struct {
	MoveX       float64 `json:"moveX"`
	MoveY       float64 `json:"moveY"`
	GuardHeld   bool    `json:"guard"`
	Dash        bool    `json:"dash"`
	LightStrike bool    `json:"light"`
	HeavyStrike bool    `json:"heavy"`
	Special     bool    `json:"special"`
}

// Move returns the movement vector with each axis clamped to [-1,1] and
// the total length capped at 1. NaN axes count as zero.
func (in Intent) Move() Vec2 {
	x, y := in.MoveX, in.MoveY
	if x != x {
		x = 0
	}
	if y != y {
		y = 0
	}
	return Vec2{clamp(x, -1, 1), clamp(y, -1, 1)}.ClampLen(1)
}

// HasEdge reports whether any edge-triggered action is set.
func (in Intent) HasEdge() bool {
	return in.Dash || in.LightStrike || in.HeavyStrike || in.Special
}

// InputLatch merges intents submitted between steps. Edges are OR-ed so a
// tap that arrives and releases between two ticks is not lost; levels take
// the latest submission.
type InputLatch struct {
	mu      sync.Mutex
	pending Intent
	source  string // sender of the latest pending edge
}

// Submit merges in into the pending intent. Safe for concurrent use.
func (l *InputLatch) Submit(in Intent) {
	l.SubmitFrom("", in)
}

// SubmitFrom is Submit with the sender recorded against any edge in in.
func (l *InputLatch) SubmitFrom(source string, in Intent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if in.HasEdge() {
		l.source = source
	}

	l.pending.MoveX = in.MoveX
	l.pending.MoveY = in.MoveY
	l.pending.GuardHeld = in.GuardHeld
	l.pending.Dash = l.pending.Dash || in.Dash
	l.pending.LightStrike = l.pending.LightStrike || in.LightStrike
	l.pending.HeavyStrike = l.pending.HeavyStrike || in.HeavyStrike
	l.pending.Special = l.pending.Special || in.Special
}

// Take returns the merged intent and clears its edges. Levels persist
// until the next Submit.
func (l *InputLatch) Take() Intent {
	in, _ := l.TakeFrom()
	return in
}

// TakeFrom is Take that also returns who sent the latest edge.
func (l *InputLatch) TakeFrom() (Intent, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	in, source := l.pending, l.source
	l.pending.Dash = false
	l.pending.LightStrike = false
	l.pending.HeavyStrike = false
	l.pending.Special = false
	l.source = ""
	return in, source
}

// Clear drops everything, levels included.
func (l *InputLatch) Clear() {
	l.mu.Lock()
	l.pending = Intent{}
	l.source = ""
	l.mu.Unlock()
}
