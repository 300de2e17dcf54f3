// Package tuning holds every gameplay constant of the combat core.
//
// Values live in YAML. The embedded default.yaml is always loaded first and
// an optional file on disk is overlaid on top of it, so an override file
// only needs the keys it changes. A named tier then patches the handful of
// values that differ between difficulty presets (guard mitigation, parry
// bonus, dash cooldown, special damage).
package tuning

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Tuning is the complete set of combat constants.
type Tuning struct {
	Tier  string `yaml:"tier"`
	Tiers []Tier `yaml:"tiers"`

	Clock   ClockTuning   `yaml:"clock"`
	World   WorldTuning   `yaml:"world"`
	Player  PlayerTuning  `yaml:"player"`
	Light   StrikeTuning  `yaml:"light_strike"`
	Heavy   StrikeTuning  `yaml:"heavy_strike"`
	Special SpecialTuning `yaml:"special"`
	Guard   GuardTuning   `yaml:"guard"`
	Parry   ParryTuning   `yaml:"parry"`
	Hit     HitTuning     `yaml:"hit"`
	Enemy   EnemyTuning   `yaml:"enemy"`
	Spawn   SpawnTuning   `yaml:"spawn"`
	Score   ScoreTuning   `yaml:"score"`
	Combo   ComboTuning   `yaml:"combo"`

	Archetypes []Archetype `yaml:"archetypes"`

	// untiered is the document as parsed, before any tier was applied.
	// Shared between clones and never mutated.
	untiered *Tuning
}

// Tier overrides a few values of the base document. Nil fields keep the
// base value.
type Tier struct {
	Name               string   `yaml:"name"`
	GuardMitigation    *float64 `yaml:"guard_mitigation,omitempty"`
	ParryResourceBonus *float64 `yaml:"parry_resource_bonus,omitempty"`
	DashCooldown       *float64 `yaml:"dash_cooldown,omitempty"`
	SpecialDamage      *float64 `yaml:"special_damage,omitempty"`
	HitInvulnerability *float64 `yaml:"hit_invulnerability,omitempty"`
}

type ClockTuning struct {
	MaxDelta float64 `yaml:"max_delta"` // seconds; raw frame deltas are clamped to this
	EaseBase float64 `yaml:"ease_base"` // time-scale easing: 1 - base^dt per step
}

type WorldTuning struct {
	Width        float64 `yaml:"width"`
	Height       float64 `yaml:"height"`
	MarginX      float64 `yaml:"margin_x"`
	MarginY      float64 `yaml:"margin_y"`
	SpawnMarginX float64 `yaml:"spawn_margin_x"`
	SpawnMarginY float64 `yaml:"spawn_margin_y"`
}

type PlayerTuning struct {
	Radius           float64 `yaml:"radius"`
	Speed            float64 `yaml:"speed"`
	DashSpeed        float64 `yaml:"dash_speed"`
	DashDuration     float64 `yaml:"dash_duration"`
	DashCooldown     float64 `yaml:"dash_cooldown"`
	DashEndDamping   float64 `yaml:"dash_end_damping"`
	DashShake        float64 `yaml:"dash_shake"`
	DashHitStop      float64 `yaml:"dash_hit_stop"`
	GuardSpeedFactor float64 `yaml:"guard_speed_factor"`
	HealthMax        float64 `yaml:"health_max"`
	ResourceMax      float64 `yaml:"resource_max"`
	ResourceStart    float64 `yaml:"resource_start"`
	ResourceRegen    float64 `yaml:"resource_regen"` // per second
	Smoothing        float64 `yaml:"smoothing"`      // velocity smoothing base
	StunDamping      float64 `yaml:"stun_damping"`
	InputBuffer      float64 `yaml:"input_buffer"` // seconds an edge intent stays latched
}

// StrikeTuning describes one strike weight (light or heavy). DamageVsElite
// replaces Damage against elites when set; zero means no difference.
type StrikeTuning struct {
	Reach         float64 `yaml:"reach"`
	HalfAngle     float64 `yaml:"half_angle"` // radians
	Damage        float64 `yaml:"damage"`
	DamageVsElite float64 `yaml:"damage_vs_elite"`
	Cost          float64 `yaml:"cost"`
	ResourceGain  float64 `yaml:"resource_gain"` // granted on every swing, hit or miss
	Cooldown      float64 `yaml:"cooldown"`
	Duration      float64 `yaml:"duration"`
	Impulse       float64 `yaml:"impulse"`
	HitStop       float64 `yaml:"hit_stop"`
	Shake         float64 `yaml:"shake"`
	HitShake      float64 `yaml:"hit_shake"`
	SlowScale     float64 `yaml:"slow_scale"`
	SlowDuration  float64 `yaml:"slow_duration"`
	EnemyStun     float64 `yaml:"enemy_stun"`
}

type SpecialTuning struct {
	Radius       float64 `yaml:"radius"`
	Damage       float64 `yaml:"damage"`
	Duration     float64 `yaml:"duration"`
	HitStop      float64 `yaml:"hit_stop"`
	SlowScale    float64 `yaml:"slow_scale"`
	SlowDuration float64 `yaml:"slow_duration"`
	Shake        float64 `yaml:"shake"`
	Flash        float64 `yaml:"flash"`
	EnemyStun    float64 `yaml:"enemy_stun"`
}

type GuardTuning struct {
	Mitigation      float64 `yaml:"mitigation"`
	ResourceBonus   float64 `yaml:"resource_bonus"`
	Invulnerability float64 `yaml:"invulnerability"`
	Shake           float64 `yaml:"shake"`
}

type ParryTuning struct {
	Window        float64 `yaml:"window"`
	Cooldown      float64 `yaml:"cooldown"`
	ResourceBonus float64 `yaml:"resource_bonus"`
	HitStop       float64 `yaml:"hit_stop"`
	SlowScale     float64 `yaml:"slow_scale"`
	SlowDuration  float64 `yaml:"slow_duration"`
	Shake         float64 `yaml:"shake"`
}

// HitTuning is the reaction to unguarded enemy damage.
type HitTuning struct {
	Invulnerability float64 `yaml:"invulnerability"`
	Stun            float64 `yaml:"stun"`
	Shake           float64 `yaml:"shake"`
	Flash           float64 `yaml:"flash"`
	HitStop         float64 `yaml:"hit_stop"`
	SlowScale       float64 `yaml:"slow_scale"`
	SlowDuration    float64 `yaml:"slow_duration"`
}

type EnemyTuning struct {
	Radius             float64 `yaml:"radius"`
	Windup             float64 `yaml:"windup"`
	RangeMargin        float64 `yaml:"range_margin"`
	ResolveMargin      float64 `yaml:"resolve_margin"`
	ApproachRatio      float64 `yaml:"approach_ratio"`
	CloseDesire        float64 `yaml:"close_desire"`
	Orbit              float64 `yaml:"orbit"`
	JitterMin          float64 `yaml:"jitter_min"`
	JitterMax          float64 `yaml:"jitter_max"`
	InitialCooldownMin float64 `yaml:"initial_cooldown_min"`
	EliteChance        float64 `yaml:"elite_chance"`
	EliteHealth        float64 `yaml:"elite_health"`
	EliteSpeed         float64 `yaml:"elite_speed"`
	EliteDamage        float64 `yaml:"elite_damage"`
	HitFlash           float64 `yaml:"hit_flash"`
	AttackShake        float64 `yaml:"attack_shake"`
	PhaseTwoRatio      float64 `yaml:"phase_two_ratio"`
	PhaseTwoSpeed      float64 `yaml:"phase_two_speed"`
	PhaseTwoCooldown   float64 `yaml:"phase_two_cooldown"`
}

type SpawnTuning struct {
	InitialCount   int     `yaml:"initial_count"`
	BaseInterval   float64 `yaml:"base_interval"`
	DecayPerWave   float64 `yaml:"decay_per_wave"`
	FloorInterval  float64 `yaml:"floor_interval"`
	RingMin        float64 `yaml:"ring_min"`
	RingMax        float64 `yaml:"ring_max"`
	WaveScoreStep  float64 `yaml:"wave_score_step"`
	TopUpThreshold int     `yaml:"top_up_threshold"`
	TopUpChance    float64 `yaml:"top_up_chance"`
	TopUpMinWave   int     `yaml:"top_up_min_wave"`
	BossEveryWaves int     `yaml:"boss_every_waves"` // 0 disables bosses
	MaxEnemies     int     `yaml:"max_enemies"`
}

type ScoreTuning struct {
	PassiveBase        float64 `yaml:"passive_base"`
	PassivePerWave     float64 `yaml:"passive_per_wave"`
	KillBase           float64 `yaml:"kill_base"`
	KillPerWave        float64 `yaml:"kill_per_wave"`
	SpecialKillBase    float64 `yaml:"special_kill_base"`
	SpecialKillPerWave float64 `yaml:"special_kill_per_wave"`
	KillResource       float64 `yaml:"kill_resource"`
}

type ComboTuning struct {
	Decay float64 `yaml:"decay"`
	Ranks []Rank  `yaml:"ranks"`
}

// Rank maps a minimum streak to a label. Ranks are kept sorted by Min.
type Rank struct {
	Min   int    `yaml:"min"`
	Label string `yaml:"label"`
}

// Archetype is a data-only enemy stat template.
type Archetype struct {
	Name           string  `yaml:"name"`
	Kind           string  `yaml:"kind"`
	Health         float64 `yaml:"health"`
	Speed          float64 `yaml:"speed"`
	AttackRange    float64 `yaml:"attack_range"`
	AttackCooldown float64 `yaml:"attack_cooldown"`
	Damage         float64 `yaml:"damage"`
	Weight         float64 `yaml:"weight"`
	Tag            string  `yaml:"tag"`
}

// Default returns the embedded tuning with its selected tier applied.
func Default() *Tuning {
	t, err := Parse(nil)
	if err != nil {
		panic(fmt.Sprintf("tuning: embedded default.yaml is invalid: %v", err))
	}
	return t
}

// Load reads path (if non-empty) on top of the embedded defaults.
func Load(path string) (*Tuning, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tuning: read %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("tuning: %s: %w", path, err)
	}
	return t, nil
}

// Parse overlays data (which may be nil) on the embedded defaults, applies
// the selected tier and validates the result.
func Parse(data []byte) (*Tuning, error) {
	var t Tuning
	if err := yaml.Unmarshal(defaultYAML, &t); err != nil {
		return nil, fmt.Errorf("unmarshal defaults: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("unmarshal: %w", err)
		}
	}
	t.untiered = t.Clone()
	if err := t.applyTier(); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// WithTier returns a copy of the parsed document resolved against the named
// tier, so switching tiers never carries over another tier's patches. Edits
// made to t after parsing are not carried over either. A Tuning built by
// hand has no parsed document and is used as is.
func (t *Tuning) WithTier(name string) (*Tuning, error) {
	base := t.untiered
	if base == nil {
		base = t.Clone()
	}
	c := base.Clone()
	c.untiered = base
	c.Tier = name
	if err := c.applyTier(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (t *Tuning) applyTier() error {
	if t.Tier == "" {
		return nil
	}
	for _, tier := range t.Tiers {
		if tier.Name != t.Tier {
			continue
		}
		if tier.GuardMitigation != nil {
			t.Guard.Mitigation = *tier.GuardMitigation
		}
		if tier.ParryResourceBonus != nil {
			t.Parry.ResourceBonus = *tier.ParryResourceBonus
		}
		if tier.DashCooldown != nil {
			t.Player.DashCooldown = *tier.DashCooldown
		}
		if tier.SpecialDamage != nil {
			t.Special.Damage = *tier.SpecialDamage
		}
		if tier.HitInvulnerability != nil {
			t.Hit.Invulnerability = *tier.HitInvulnerability
		}
		return nil
	}
	return fmt.Errorf("unknown tier %q", t.Tier)
}

// Validate rejects documents the simulation cannot run with. Archetype
// weights are deliberately not checked: a zero-sum table falls back to the
// first archetype at spawn time.
func (t *Tuning) Validate() error {
	switch {
	case t.World.Width <= 2*t.World.MarginX || t.World.Height <= 2*t.World.MarginY:
		return fmt.Errorf("world %gx%g too small for margins", t.World.Width, t.World.Height)
	case t.World.Width <= 2*t.World.SpawnMarginX || t.World.Height <= 2*t.World.SpawnMarginY:
		return fmt.Errorf("world %gx%g too small for spawn margins", t.World.Width, t.World.Height)
	case t.Clock.MaxDelta <= 0:
		return fmt.Errorf("clock.max_delta must be positive")
	case t.Clock.EaseBase <= 0 || t.Clock.EaseBase >= 1:
		return fmt.Errorf("clock.ease_base must be in (0,1)")
	case t.Player.HealthMax <= 0 || t.Player.ResourceMax <= 0:
		return fmt.Errorf("player health_max and resource_max must be positive")
	case t.Player.Smoothing <= 0 || t.Player.Smoothing >= 1:
		return fmt.Errorf("player.smoothing must be in (0,1)")
	case t.Light.Cost >= t.Heavy.Cost && t.Heavy.Cost > 0:
		return fmt.Errorf("light strike cost %g must be below heavy cost %g", t.Light.Cost, t.Heavy.Cost)
	case t.Light.DamageVsElite < 0 || t.Heavy.DamageVsElite < 0:
		return fmt.Errorf("strike damage_vs_elite must not be negative")
	case t.Light.ResourceGain < 0 || t.Heavy.ResourceGain < 0:
		return fmt.Errorf("strike resource_gain must not be negative")
	case t.Guard.Mitigation < 0 || t.Guard.Mitigation >= 1:
		return fmt.Errorf("guard.mitigation %g must be in [0,1)", t.Guard.Mitigation)
	case t.Spawn.BaseInterval < t.Spawn.FloorInterval || t.Spawn.FloorInterval <= 0:
		return fmt.Errorf("spawn interval floor %g must be positive and <= base %g", t.Spawn.FloorInterval, t.Spawn.BaseInterval)
	case t.Spawn.RingMin > t.Spawn.RingMax:
		return fmt.Errorf("spawn ring_min %g > ring_max %g", t.Spawn.RingMin, t.Spawn.RingMax)
	case t.Spawn.WaveScoreStep <= 0:
		return fmt.Errorf("spawn.wave_score_step must be positive")
	case t.Enemy.JitterMin > t.Enemy.JitterMax:
		return fmt.Errorf("enemy jitter_min %g > jitter_max %g", t.Enemy.JitterMin, t.Enemy.JitterMax)
	case len(t.Archetypes) == 0:
		return fmt.Errorf("at least one archetype is required")
	}
	for i, a := range t.Archetypes {
		if a.Name == "" {
			return fmt.Errorf("archetype %d has no name", i)
		}
		if a.Health <= 0 {
			return fmt.Errorf("archetype %s: health must be positive", a.Name)
		}
	}
	for i := 1; i < len(t.Combo.Ranks); i++ {
		if t.Combo.Ranks[i].Min < t.Combo.Ranks[i-1].Min {
			return fmt.Errorf("combo ranks must be sorted by min")
		}
	}
	return nil
}

// Clone returns a deep copy.
func (t *Tuning) Clone() *Tuning {
	c := *t
	c.Tiers = append([]Tier(nil), t.Tiers...)
	c.Archetypes = append([]Archetype(nil), t.Archetypes...)
	c.Combo.Ranks = append([]Rank(nil), t.Combo.Ranks...)
	return &c
}

// Marshal renders the tuning back to YAML.
func (t *Tuning) Marshal() ([]byte, error) {
	return yaml.Marshal(t)
}
