package game

import (
	"fmt"
	"sort"
	"strings"

	"ink-blade/internal/tuning"
)

// ArchetypeKind tags an archetype for the shared enemy AI. The set is
// closed; behaviour branches on it instead of on per-type methods.
type ArchetypeKind uint8

const (
	KindBandit ArchetypeKind = iota
	KindWraith
	KindKnight
	KindReaper
	KindBoss
)

func (k ArchetypeKind) String() string {
	switch k {
	case KindBandit:
		return "bandit"
	case KindWraith:
		return "wraith"
	case KindKnight:
		return "knight"
	case KindReaper:
		return "reaper"
	case KindBoss:
		return "boss"
	default:
		return "unknown"
	}
}

// ParseArchetypeKind maps a tuning kind name onto the enum.
func ParseArchetypeKind(s string) (ArchetypeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bandit":
		return KindBandit, nil
	case "wraith":
		return KindWraith, nil
	case "knight":
		return KindKnight, nil
	case "reaper":
		return KindReaper, nil
	case "boss":
		return KindBoss, nil
	default:
		return 0, fmt.Errorf("unknown archetype kind %q", s)
	}
}

// Archetype is an enemy stat template.
type Archetype struct {
	Name           string
	Kind           ArchetypeKind
	Health         float64
	Speed          float64
	AttackRange    float64
	AttackCooldown float64
	Damage         float64
	Weight         float64
	Tag            string
}

// ArchetypeTable samples archetypes by weight. Bosses are kept out of the
// weighted draw and only come out of Boss().
type ArchetypeTable struct {
	all    []Archetype
	pool   []int     // indices into all that take part in the draw
	prefix []float64 // running weight sums over pool
	total  float64
	boss   int
}

// NewArchetypeTable builds the prefix-sum table. Negative weights count as
// zero.
func NewArchetypeTable(defs []tuning.Archetype) (*ArchetypeTable, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("archetype table is empty")
	}

	t := &ArchetypeTable{boss: -1}
	for _, d := range defs {
		kind, err := ParseArchetypeKind(d.Kind)
		if err != nil {
			return nil, fmt.Errorf("archetype %s: %w", d.Name, err)
		}
		t.all = append(t.all, Archetype{
			Name:           d.Name,
			Kind:           kind,
			Health:         d.Health,
			Speed:          d.Speed,
			AttackRange:    d.AttackRange,
			AttackCooldown: d.AttackCooldown,
			Damage:         d.Damage,
			Weight:         d.Weight,
			Tag:            d.Tag,
		})
	}

	for i, a := range t.all {
		if a.Kind == KindBoss {
			if t.boss < 0 {
				t.boss = i
			}
			continue
		}
		w := a.Weight
		if w < 0 {
			w = 0
		}
		t.total += w
		t.pool = append(t.pool, i)
		t.prefix = append(t.prefix, t.total)
	}
	return t, nil
}

// Pick maps u in [0,1) onto an archetype. When the weights sum to zero or
// rounding leaves u past the last bucket, the first drawable archetype is
// returned.
func (t *ArchetypeTable) Pick(u float64) Archetype {
	if len(t.pool) == 0 {
		return t.all[0]
	}
	fallback := t.all[t.pool[0]]
	if t.total <= 0 {
		return fallback
	}

	x := u * t.total
	i := sort.Search(len(t.prefix), func(i int) bool { return t.prefix[i] > x })
	if i >= len(t.pool) {
		return fallback
	}
	return t.all[t.pool[i]]
}

// Boss returns the boss archetype, if the table has one.
func (t *ArchetypeTable) Boss() (Archetype, bool) {
	if t.boss < 0 {
		return Archetype{}, false
	}
	return t.all[t.boss], true
}

// Len is the number of archetypes, bosses included.
func (t *ArchetypeTable) Len() int { return len(t.all) }
