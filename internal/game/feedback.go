package game

// Per-step caps on feedback lists. A special that kills a full screen of
// enemies would otherwise produce an unbounded burst list.
const (
	MaxBursts     = 48
	MaxTelegraphs = 32
)

// Burst is a particle splash request for the renderer.
type Burst struct {
	Pos   Vec2    `json:"pos"`
	Power float64 `json:"power"`
	Tag   string  `json:"tag"`
}

// Telegraph marks an enemy that just began its attack windup.
type Telegraph struct {
	EnemyID  uint32  `json:"enemyId"`
	Pos      Vec2    `json:"pos"`
	Duration float64 `json:"duration"`
}

// Feedback collects presentation requests raised during one step. Shake
// and flash keep the strongest request; lists are capped.
type Feedback struct {
	Shake         float64     `json:"shake"`
	Flash         float64     `json:"flash"`
	HitStopActive bool        `json:"hitStopActive"`
	TimeScale     float64     `json:"timeScale"`
	Parry         bool        `json:"parry"`
	Bursts        []Burst     `json:"bursts"`
	Telegraphs    []Telegraph `json:"telegraphs"`
}

func newFeedback() *Feedback {
	return &Feedback{
		TimeScale:  1,
		Bursts:     make([]Burst, 0, MaxBursts),
		Telegraphs: make([]Telegraph, 0, MaxTelegraphs),
	}
}

// reset clears the per-step requests, keeping capacity.
func (f *Feedback) reset() {
	f.Shake = 0
	f.Flash = 0
	f.HitStopActive = false
	f.TimeScale = 1
	f.Parry = false
	f.Bursts = f.Bursts[:0]
	f.Telegraphs = f.Telegraphs[:0]
}

func (f *Feedback) AddShake(power float64) {
	if power > f.Shake {
		f.Shake = power
	}
}

func (f *Feedback) AddFlash(intensity float64) {
	if intensity > f.Flash {
		f.Flash = intensity
	}
}

func (f *Feedback) AddBurst(pos Vec2, power float64, tag string) {
	if len(f.Bursts) >= MaxBursts {
		return
	}
	f.Bursts = append(f.Bursts, Burst{Pos: pos, Power: power, Tag: tag})
}

func (f *Feedback) AddTelegraph(e *Enemy, duration float64) {
	if len(f.Telegraphs) >= MaxTelegraphs {
		return
	}
	f.Telegraphs = append(f.Telegraphs, Telegraph{EnemyID: e.ID, Pos: e.Pos, Duration: duration})
}

// copyInto writes f into dst reusing dst's slices.
func (f *Feedback) copyInto(dst *Feedback) {
	bursts := append(dst.Bursts[:0], f.Bursts...)
	telegraphs := append(dst.Telegraphs[:0], f.Telegraphs...)
	*dst = *f
	dst.Bursts = bursts
	dst.Telegraphs = telegraphs
}
