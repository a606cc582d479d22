// Package action holds the declarative action and card definitions of the
// tactics core: range shapes and their distance metrics, effects, target
// filters and conditions. Definitions are loaded from YAML by the config
// package; the rules that apply them to a game live in the engine package.
package action

import (
	"fmt"

	"github.com/wricardo/gridtactics/game/grid"
)

// Genre separates offensive from supportive actions.
type Genre string

const (
	Attack  Genre = "attack"
	Support Genre = "support"
)

// Shape selects the distance metric of a range.
type Shape string

const (
	Diamond Shape = "diamond"
	Square  Shape = "square"
	Circle  Shape = "circle"
)

// Distance measures from a to b under the shape's metric. Circle returns the
// squared euclidean distance, compared as-is against the range bound.
func (s Shape) Distance(a, b grid.Point) uint32 {
	dr := diff(a.Row, b.Row)
	dc := diff(a.Col, b.Col)
	switch s {
	case Square:
		return max(dr, dc)
	case Circle:
		return dr*dr + dc*dc
	default:
		return dr + dc
	}
}

// Range limits where an action may land.
type Range struct {
	Shape    Shape  `yaml:"shape" json:"shape"`
	Min      uint32 `yaml:"min" json:"min"`
	Max      uint32 `yaml:"max" json:"max"`
	Headless bool   `yaml:"headless" json:"headless,omitempty"`
}

// Covers reports whether target is within range of a single origin cell.
func (r Range) Covers(origin, target grid.Point) bool {
	d := r.Shape.Distance(origin, target)
	return d >= r.Min && d <= r.Max
}

// Reaches reports whether target is within range of the source chain.
// chain is head first; only the head counts unless the range is headless.
func (r Range) Reaches(chain []grid.Point, target grid.Point) bool {
	if len(chain) == 0 {
		return false
	}
	if !r.Headless {
		return r.Covers(chain[0], target)
	}
	for _, p := range chain {
		if r.Covers(p, target) {
			return true
		}
	}
	return false
}

// EffectKind names what an action does to its target.
type EffectKind string

const (
	DealDamage      EffectKind = "deal_damage"
	IncreaseMaxSize EffectKind = "increase_max_size"

	// Declared by definition files but not resolved by the engine yet.
	IncreaseSpeed   EffectKind = "increase_speed"
	DecreaseSpeed   EffectKind = "decrease_speed"
	DecreaseMaxSize EffectKind = "decrease_max_size"
)

// Implemented reports whether the engine can resolve the effect.
func (k EffectKind) Implemented() bool {
	return k == DealDamage || k == IncreaseMaxSize
}

// Effect is the outcome of an action. Bound only applies to IncreaseMaxSize.
type Effect struct {
	Kind   EffectKind `yaml:"kind" json:"kind"`
	Amount uint32     `yaml:"amount" json:"amount"`
	Bound  uint32     `yaml:"bound,omitempty" json:"bound,omitempty"`
}

func (e Effect) String() string {
	switch e.Kind {
	case IncreaseMaxSize:
		return fmt.Sprintf("%s(%d, bound %d)", e.Kind, e.Amount, e.Bound)
	default:
		return fmt.Sprintf("%s(%d)", e.Kind, e.Amount)
	}
}

// Target filters which curios an action may land on, relative to the source.
type Target string

const (
	TargetAlly  Target = "ally"
	TargetEnemy Target = "enemy"
	TargetSelf  Target = "self"
	TargetAny   Target = "any"
)

// Subject selects whose size a condition inspects.
type Subject string

const (
	SubjectSelf   Subject = "self"
	SubjectTarget Subject = "target"
)

// Condition requires the subject's chain length to lie in [MinSize, MaxSize].
// A zero MaxSize means no upper limit.
type Condition struct {
	Subject Subject `yaml:"subject" json:"subject"`
	MinSize uint32  `yaml:"min_size" json:"min_size,omitempty"`
	MaxSize uint32  `yaml:"max_size" json:"max_size,omitempty"`
}

// Holds reports whether a chain of length size satisfies the condition.
func (c Condition) Holds(size int) bool {
	if size < int(c.MinSize) {
		return false
	}
	return c.MaxSize == 0 || size <= int(c.MaxSize)
}

// Def is a resolved action definition.
type Def struct {
	ID         string      `yaml:"id" json:"id"`
	Name       string      `yaml:"name" json:"name"`
	Genre      Genre       `yaml:"genre" json:"genre"`
	Range      *Range      `yaml:"range,omitempty" json:"range,omitempty"`
	Effect     Effect      `yaml:"effect" json:"effect"`
	Targets    Target      `yaml:"targets" json:"targets"`
	Conditions []Condition `yaml:"conditions,omitempty" json:"conditions,omitempty"`
}

// MaxRange is the outer bound of the action's range, 0 when unranged.
func (d *Def) MaxRange() uint32 {
	if d.Range == nil {
		return 0
	}
	return d.Range.Max
}

// InRange reports whether target is reachable from chain. Unranged actions
// only reach cells of the source chain itself.
func (d *Def) InRange(chain []grid.Point, target grid.Point) bool {
	if d.Range == nil {
		for _, p := range chain {
			if p == target {
				return true
			}
		}
		return false
	}
	return d.Range.Reaches(chain, target)
}

// CardDef describes a curio that can be deployed from an access point.
type CardDef struct {
	ID      string   `yaml:"id" json:"id"`
	Name    string   `yaml:"name" json:"name"`
	Glyph   string   `yaml:"glyph" json:"glyph"`
	Speed   uint32   `yaml:"speed" json:"speed"`
	MaxSize uint32   `yaml:"max_size" json:"max_size"`
	Actions []string `yaml:"actions" json:"actions"`
}

func diff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
