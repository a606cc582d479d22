package action

import (
	"errors"
	"testing"

	"github.com/wricardo/gridtactics/game/grid"
)

func TestShapeDistance(t *testing.T) {
	a, b := grid.Pt(0, 0), grid.Pt(2, 1)
	tests := []struct {
		shape Shape
		want  uint32
	}{
		{Diamond, 3},
		{Square, 2},
		{Circle, 5},
	}
	for _, test := range tests {
		t.Run(string(test.shape), func(t *testing.T) {
			if got := test.shape.Distance(a, b); got != test.want {
				t.Errorf("Expected %d, got %d", test.want, got)
			}
			if got := test.shape.Distance(b, a); got != test.want {
				t.Errorf("Distance should be symmetric, got %d", got)
			}
		})
	}
}

func TestRangeReaches(t *testing.T) {
	chain := []grid.Point{grid.Pt(0, 0), grid.Pt(0, 1), grid.Pt(0, 2)}
	target := grid.Pt(1, 3)

	headed := Range{Shape: Diamond, Min: 1, Max: 1}
	if headed.Reaches(chain, target) {
		t.Error("Head at (0,0) should not reach (1,3) within 1")
	}
	headless := Range{Shape: Diamond, Min: 1, Max: 2, Headless: true}
	if !headless.Reaches(chain, target) {
		t.Error("Headless range should reach (1,3) from the tail at (0,2)")
	}
	withMin := Range{Shape: Square, Min: 2, Max: 3}
	if withMin.Reaches(chain, grid.Pt(1, 1)) {
		t.Error("Target inside the minimum should be out of range")
	}
	if headed.Reaches(nil, target) {
		t.Error("Empty chain should reach nothing")
	}
}

func TestDefInRangeUnranged(t *testing.T) {
	def := Def{ID: "grow", Genre: Support, Targets: TargetSelf, Effect: Effect{Kind: IncreaseMaxSize, Amount: 1, Bound: 5}}
	chain := []grid.Point{grid.Pt(2, 2), grid.Pt(2, 3)}
	if !def.InRange(chain, grid.Pt(2, 3)) {
		t.Error("Unranged action should reach its own cells")
	}
	if def.InRange(chain, grid.Pt(2, 4)) {
		t.Error("Unranged action should not reach other cells")
	}
	if def.MaxRange() != 0 {
		t.Errorf("Expected max range 0, got %d", def.MaxRange())
	}
}

func TestConditionHolds(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
		size int
		want bool
	}{
		{"within", Condition{Subject: SubjectSelf, MinSize: 2, MaxSize: 4}, 3, true},
		{"below", Condition{Subject: SubjectSelf, MinSize: 2, MaxSize: 4}, 1, false},
		{"above", Condition{Subject: SubjectTarget, MinSize: 2, MaxSize: 4}, 5, false},
		{"unbounded", Condition{Subject: SubjectTarget, MinSize: 1}, 99, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.cond.Holds(test.size); got != test.want {
				t.Errorf("Holds(%d): expected %v, got %v", test.size, test.want, got)
			}
		})
	}
}

func TestNewCatalog(t *testing.T) {
	slash := Def{
		ID: "slash", Name: "Slash", Genre: Attack, Targets: TargetEnemy,
		Range:  &Range{Shape: Diamond, Min: 1, Max: 1},
		Effect: Effect{Kind: DealDamage, Amount: 2},
	}
	hack := CardDef{ID: "hack", Name: "Hack", Glyph: "H", Speed: 2, MaxSize: 4, Actions: []string{"slash"}}

	c, err := NewCatalog([]Def{slash}, []CardDef{hack})
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}
	if def, err := c.Action("slash"); err != nil || def.Effect.Amount != 2 {
		t.Errorf("Expected slash with amount 2, got %+v, %v", def, err)
	}
	if _, err := c.Action("zap"); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("Expected ErrUnknownAction, got %v", err)
	}
	if _, err := c.Card("nope"); !errors.Is(err, ErrUnknownCard) {
		t.Errorf("Expected ErrUnknownCard, got %v", err)
	}

	bad := hack
	bad.Actions = []string{"zap"}
	if _, err := NewCatalog([]Def{slash}, []CardDef{bad}); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("Expected ErrUnknownAction for dangling card action, got %v", err)
	}
	if _, err := NewCatalog([]Def{slash, slash}, nil); !errors.Is(err, ErrInvalidDef) {
		t.Errorf("Expected ErrInvalidDef for duplicate id, got %v", err)
	}
}

func TestDefValidate(t *testing.T) {
	base := Def{ID: "x", Genre: Attack, Targets: TargetEnemy, Effect: Effect{Kind: DealDamage, Amount: 1}}
	tests := []struct {
		name   string
		mutate func(*Def)
	}{
		{"missing id", func(d *Def) { d.ID = "" }},
		{"bad genre", func(d *Def) { d.Genre = "heal" }},
		{"bad target", func(d *Def) { d.Targets = "friend" }},
		{"bad effect", func(d *Def) { d.Effect.Kind = "explode" }},
		{"bad shape", func(d *Def) { d.Range = &Range{Shape: "hex", Max: 1} }},
		{"inverted range", func(d *Def) { d.Range = &Range{Shape: Square, Min: 3, Max: 1} }},
		{"bad subject", func(d *Def) { d.Conditions = []Condition{{Subject: "other"}} }},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("Base definition should validate, got %v", err)
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			d := base
			test.mutate(&d)
			if err := d.Validate(); !errors.Is(err, ErrInvalidDef) {
				t.Errorf("Expected ErrInvalidDef, got %v", err)
			}
		})
	}
}
