package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/wricardo/gridtactics/game/action"
	"github.com/wricardo/gridtactics/game/grid"
)

func createTestCatalog(t *testing.T) *action.Catalog {
	t.Helper()
	defs := []action.Def{
		{
			ID: "slash", Name: "Slash", Genre: action.Attack, Targets: action.TargetEnemy,
			Range:  &action.Range{Shape: action.Diamond, Min: 1, Max: 1},
			Effect: action.Effect{Kind: action.DealDamage, Amount: 2},
		},
		{
			ID: "grow", Name: "Grow", Genre: action.Support, Targets: action.TargetSelf,
			Effect: action.Effect{Kind: action.IncreaseMaxSize, Amount: 2, Bound: 4},
		},
		{
			ID: "haste", Name: "Haste", Genre: action.Support, Targets: action.TargetAny,
			Range:  &action.Range{Shape: action.Square, Max: 3},
			Effect: action.Effect{Kind: action.IncreaseSpeed, Amount: 1},
		},
		{
			ID: "bite", Name: "Bite", Genre: action.Attack, Targets: action.TargetEnemy,
			Range:      &action.Range{Shape: action.Diamond, Min: 1, Max: 1},
			Effect:     action.Effect{Kind: action.DealDamage, Amount: 1},
			Conditions: []action.Condition{{Subject: action.SubjectSelf, MinSize: 2}},
		},
	}
	cards := []action.CardDef{
		{ID: "hack", Name: "Hack", Glyph: "h", Speed: 2, MaxSize: 3, Actions: []string{"slash"}},
	}
	c, err := action.NewCatalog(defs, cards)
	if err != nil {
		t.Fatalf("Failed to build catalog: %v", err)
	}
	return c
}

func createTestNode(t *testing.T, b grid.Bounds) *Node {
	t.Helper()
	return NewNode(grid.New[Item](b), createTestCatalog(t))
}

func mustAddCurio(t *testing.T, n *Node, c Curio, points ...grid.Point) grid.Key {
	t.Helper()
	key, err := n.AddCurio(points, c)
	if err != nil {
		t.Fatalf("AddCurio(%s) failed: %v", c.Name, err)
	}
	return key
}

func mustApply(t *testing.T, n *Node, c Change) Undo {
	t.Helper()
	u, err := n.Apply(c)
	if err != nil {
		t.Fatalf("Apply(%#v) failed: %v", c, err)
	}
	return u
}

func TestScenarioMoveAndUndo(t *testing.T) {
	n := createTestNode(t, grid.Bounds{Width: 3, Height: 1})
	a := mustAddCurio(t, n, Curio{Team: TeamPlayer, Name: "A", Speed: 2, MaxSize: 1}, grid.Pt(0, 0))

	before := n.Snapshot()

	changes := []Change{ActivateCurio{Curio: a}, MoveActiveCurio{Direction: grid.East}, MoveActiveCurio{Direction: grid.East}}
	var undos []Undo
	for _, c := range changes {
		undos = append(undos, mustApply(t, n, c))
	}

	if head, _ := n.Grid.Head(a); head != grid.Pt(0, 2) {
		t.Errorf("Expected head (0,2), got %s", head)
	}
	if n.Grid.LenOf(a) != 1 {
		t.Errorf("Expected length 1 after trimming, got %d", n.Grid.LenOf(a))
	}
	c, _ := n.Curio(a)
	if !c.Tapped {
		t.Error("Pure mover should be tapped once its moves run out")
	}

	for i := len(changes) - 1; i >= 0; i-- {
		if err := n.Unapply(changes[i], undos[i]); err != nil {
			t.Fatalf("Unapply(%d) failed: %v", i, err)
		}
	}
	if after := n.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Errorf("State not restored:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestScenarioFatalDamage(t *testing.T) {
	n := createTestNode(t, grid.Bounds{Width: 4, Height: 2})
	attacker := mustAddCurio(t, n, Curio{Team: TeamPlayer, Name: "Att", Speed: 1, MaxSize: 2, Actions: []string{"slash"}}, grid.Pt(0, 0))
	defender := mustAddCurio(t, n, Curio{Team: TeamEnemy, Name: "Def", Speed: 1, MaxSize: 2}, grid.Pt(0, 1))
	mustAddCurio(t, n, Curio{Team: TeamEnemy, Name: "Other", Speed: 1, MaxSize: 2}, grid.Pt(1, 3))

	activate := ActivateCurio{Curio: attacker}
	au := mustApply(t, n, activate)
	before := n.Snapshot()

	act := TakeCurioAction{ActionIndex: 0, Target: grid.Pt(0, 1)}
	u := mustApply(t, n, act)
	undo, ok := u.(ActionUndo)
	if !ok {
		t.Fatalf("Expected ActionUndo, got %T", u)
	}
	if !undo.Fatal {
		t.Error("Expected fatal damage")
	}
	if n.Grid.Contains(defender) {
		t.Error("Defender key should be invalid")
	}
	if !n.Grid.SquareIsFree(grid.Pt(0, 1)) {
		t.Error("Defender square should be free")
	}
	if !n.Active.IsZero() {
		t.Error("Source should be deactivated after acting")
	}
	if c, _ := n.Curio(attacker); !c.Tapped {
		t.Error("Source should be tapped after acting")
	}

	if err := n.Unapply(act, u); err != nil {
		t.Fatalf("Unapply failed: %v", err)
	}
	if owner, _ := n.Grid.ItemKeyAt(grid.Pt(0, 1)); owner != defender {
		t.Errorf("Expected defender %s restored at (0,1), got %s", defender, owner)
	}
	if n.Grid.LenOf(defender) != 1 {
		t.Errorf("Expected defender length 1, got %d", n.Grid.LenOf(defender))
	}
	if after := n.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Errorf("State not restored:\nbefore %+v\nafter  %+v", before, after)
	}
	if err := n.Unapply(activate, au); err != nil {
		t.Fatalf("Unapply activate failed: %v", err)
	}
}

func TestDealDamageNonFatal(t *testing.T) {
	n := createTestNode(t, grid.Bounds{Width: 5, Height: 1})
	attacker := mustAddCurio(t, n, Curio{Team: TeamPlayer, Name: "Att", Speed: 1, MaxSize: 1, Actions: []string{"slash"}}, grid.Pt(0, 0))
	defender := mustAddCurio(t, n, Curio{Team: TeamEnemy, Name: "Def", Speed: 1, MaxSize: 4},
		grid.Pt(0, 1), grid.Pt(0, 2), grid.Pt(0, 3), grid.Pt(0, 4))

	mustApply(t, n, ActivateCurio{Curio: attacker})
	before := n.Snapshot()
	act := TakeCurioAction{Target: grid.Pt(0, 1)}
	u := mustApply(t, n, act)

	if got := n.Grid.LenOf(defender); got != 2 {
		t.Errorf("Expected length 4-2=2, got %d", got)
	}
	if head, _ := n.Grid.Head(defender); head != grid.Pt(0, 1) {
		t.Errorf("Damage should come off the tail, head is %s", head)
	}
	if u.(ActionUndo).Fatal {
		t.Error("Damage should not be fatal")
	}
	if err := n.Unapply(act, u); err != nil {
		t.Fatalf("Unapply failed: %v", err)
	}
	if after := n.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Errorf("State not restored:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestTeamEliminationStillApplies(t *testing.T) {
	n := createTestNode(t, grid.Bounds{Width: 2, Height: 1})
	attacker := mustAddCurio(t, n, Curio{Team: TeamPlayer, Name: "Att", Speed: 1, MaxSize: 1, Actions: []string{"slash"}}, grid.Pt(0, 0))
	mustAddCurio(t, n, Curio{Team: TeamEnemy, Name: "Def", Speed: 1, MaxSize: 1}, grid.Pt(0, 1))

	mustApply(t, n, ActivateCurio{Curio: attacker})
	act := TakeCurioAction{Target: grid.Pt(0, 1)}
	u, err := n.Apply(act)
	if !errors.Is(err, ErrTeamEliminated) {
		t.Fatalf("Expected ErrTeamEliminated, got %v", err)
	}
	if !errors.Is(err, ErrCritical) {
		t.Error("ErrTeamEliminated should be critical")
	}
	if u == nil {
		t.Fatal("Expected an undo payload alongside ErrTeamEliminated")
	}
	if team, gone := n.Eliminated(); !gone || team != TeamEnemy {
		t.Errorf("Expected enemy eliminated, got %s %v", team, gone)
	}
	if err := n.Unapply(act, u); err != nil {
		t.Fatalf("Unapply failed: %v", err)
	}
	if _, gone := n.Eliminated(); gone {
		t.Error("Unapply should bring the team back")
	}
}

func TestActionRejections(t *testing.T) {
	n := createTestNode(t, grid.Bounds{Width: 5, Height: 5})
	hero := mustAddCurio(t, n, Curio{Team: TeamPlayer, Name: "Hero", Speed: 3, MaxSize: 3, Actions: []string{"slash", "grow", "haste", "bite"}}, grid.Pt(2, 2))
	mustAddCurio(t, n, Curio{Team: TeamPlayer, Name: "Ally", Speed: 1, MaxSize: 1}, grid.Pt(2, 3))
	mustAddCurio(t, n, Curio{Team: TeamEnemy, Name: "Far", Speed: 1, MaxSize: 1}, grid.Pt(0, 0))
	mustAddCurio(t, n, Curio{Team: TeamEnemy, Name: "Near", Speed: 1, MaxSize: 1}, grid.Pt(1, 2))

	if _, err := n.Apply(TakeCurioAction{Target: grid.Pt(1, 2)}); !errors.Is(err, ErrInvalid) {
		t.Errorf("Acting without an active curio should be invalid, got %v", err)
	}
	mustApply(t, n, ActivateCurio{Curio: hero})
	before := n.Snapshot()

	tests := []struct {
		name   string
		change TakeCurioAction
		want   error
	}{
		{"bad index", TakeCurioAction{ActionIndex: 9, Target: grid.Pt(1, 2)}, ErrInvalid},
		{"empty target", TakeCurioAction{ActionIndex: 0, Target: grid.Pt(3, 3)}, ErrInvalid},
		{"ally for enemy action", TakeCurioAction{ActionIndex: 0, Target: grid.Pt(2, 3)}, ErrInvalid},
		{"out of range", TakeCurioAction{ActionIndex: 0, Target: grid.Pt(0, 0)}, ErrInvalid},
		{"self action on other", TakeCurioAction{ActionIndex: 1, Target: grid.Pt(2, 3)}, ErrInvalid},
		{"condition not met", TakeCurioAction{ActionIndex: 3, Target: grid.Pt(1, 2)}, ErrInvalid},
		{"unimplemented effect", TakeCurioAction{ActionIndex: 2, Target: grid.Pt(2, 3)}, ErrCritical},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			u, err := n.Apply(test.change)
			if !errors.Is(err, test.want) {
				t.Fatalf("Expected %v, got %v", test.want, err)
			}
			if u != nil {
				t.Error("Rejected change should not return an undo")
			}
			if after := n.Snapshot(); !reflect.DeepEqual(before, after) {
				t.Error("Rejected change mutated the node")
			}
		})
	}
}

func TestIncreaseMaxSizeSaturates(t *testing.T) {
	n := createTestNode(t, grid.Bounds{Width: 3, Height: 3})
	hero := mustAddCurio(t, n, Curio{Team: TeamPlayer, Name: "Hero", Speed: 1, MaxSize: 3, Actions: []string{"grow"}}, grid.Pt(1, 1))
	mustAddCurio(t, n, Curio{Team: TeamEnemy, Name: "E", Speed: 1, MaxSize: 1}, grid.Pt(0, 0))

	mustApply(t, n, ActivateCurio{Curio: hero})
	act := TakeCurioAction{Target: grid.Pt(1, 1)}
	u := mustApply(t, n, act)
	if c, _ := n.Curio(hero); c.MaxSize != 4 {
		t.Errorf("Expected max_size saturated at 4, got %d", c.MaxSize)
	}
	undo := u.(ActionUndo)
	if undo.OldMaxSize != 3 || undo.NewMaxSize != 4 {
		t.Errorf("Expected 3 -> 4 recorded, got %d -> %d", undo.OldMaxSize, undo.NewMaxSize)
	}
	if err := n.Unapply(act, u); err != nil {
		t.Fatalf("Unapply failed: %v", err)
	}
	if c, _ := n.Curio(hero); c.MaxSize != 3 || c.Tapped {
		t.Errorf("Expected max_size 3 and untapped, got %d tapped=%v", c.MaxSize, c.Tapped)
	}
	if n.Active != hero {
		t.Error("Unapply should restore the active pointer")
	}
}

func TestActivateRules(t *testing.T) {
	n := createTestNode(t, grid.Bounds{Width: 4, Height: 4})
	a := mustAddCurio(t, n, Curio{Team: TeamPlayer, Name: "A", Speed: 2, MaxSize: 2, Actions: []string{"slash"}}, grid.Pt(0, 0))
	b := mustAddCurio(t, n, Curio{Team: TeamPlayer, Name: "B", Speed: 2, MaxSize: 2, Actions: []string{"slash"}}, grid.Pt(3, 3))
	e := mustAddCurio(t, n, Curio{Team: TeamEnemy, Name: "E", Speed: 2, MaxSize: 2}, grid.Pt(3, 0))

	if _, err := n.Apply(ActivateCurio{Curio: e}); !errors.Is(err, ErrInvalid) {
		t.Errorf("Activating an enemy curio should be invalid, got %v", err)
	}
	if _, err := n.Apply(ActivateCurio{}); !errors.Is(err, ErrInvalid) {
		t.Errorf("Activating the zero key should be invalid, got %v", err)
	}
	mustApply(t, n, ActivateCurio{Curio: a})
	if _, err := n.Apply(ActivateCurio{Curio: a}); !errors.Is(err, ErrInvalid) {
		t.Errorf("Activating the active curio again should be invalid, got %v", err)
	}

	// Switching away from an unmoved curio leaves it untapped.
	mustApply(t, n, ActivateCurio{Curio: b})
	if c, _ := n.Curio(a); c.Tapped {
		t.Error("Unmoved curio should not be tapped on switch")
	}

	// Switching away from a moved curio taps it.
	mustApply(t, n, MoveActiveCurio{Direction: grid.North})
	u2 := mustApply(t, n, ActivateCurio{Curio: a})
	if c, _ := n.Curio(b); !c.Tapped {
		t.Error("Moved curio should be tapped on switch")
	}
	if !u2.(ActivateUndo).TappedPrevious {
		t.Error("Undo should record the tap")
	}
	if _, err := n.Apply(ActivateCurio{Curio: b}); !errors.Is(err, ErrInvalid) {
		t.Errorf("Activating a tapped curio should be invalid, got %v", err)
	}

	if err := n.Unapply(ActivateCurio{Curio: a}, u2); err != nil {
		t.Fatalf("Unapply failed: %v", err)
	}
	if c, _ := n.Curio(b); c.Tapped || n.Active != b {
		t.Error("Unapply should untap and reactivate the previous curio")
	}
}

func TestDeactivateAndFinishTurn(t *testing.T) {
	n := createTestNode(t, grid.Bounds{Width: 4, Height: 1})
	a := mustAddCurio(t, n, Curio{Team: TeamPlayer, Name: "A", Speed: 2, MaxSize: 2, Actions: []string{"slash"}}, grid.Pt(0, 0))
	e := mustAddCurio(t, n, Curio{Team: TeamEnemy, Name: "E", Speed: 2, MaxSize: 2}, grid.Pt(0, 3))
	ec, _ := n.Curio(e)
	ec.Tapped = true
	ec.MovesTaken = 2

	if _, err := n.Apply(DeactivateCurio{}); !errors.Is(err, ErrInvalid) {
		t.Errorf("Deactivating with nothing active should be invalid, got %v", err)
	}
	before := n.Snapshot()
	changes := []Change{ActivateCurio{Curio: a}, MoveActiveCurio{Direction: grid.East}, DeactivateCurio{}, FinishTurn{}}
	var undos []Undo
	for _, c := range changes {
		undos = append(undos, mustApply(t, n, c))
	}
	if n.ActiveTeam != TeamEnemy || n.Turn != 1 {
		t.Errorf("Expected enemy turn 1, got %s turn %d", n.ActiveTeam, n.Turn)
	}
	if ec.Tapped || ec.MovesTaken != 0 {
		t.Error("FinishTurn should refresh the new team")
	}
	if c, _ := n.Curio(a); !c.Tapped {
		t.Error("FinishTurn should not refresh the finishing team")
	}
	for i := len(changes) - 1; i >= 0; i-- {
		if err := n.Unapply(changes[i], undos[i]); err != nil {
			t.Fatalf("Unapply(%d) failed: %v", i, err)
		}
	}
	if after := n.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Errorf("State not restored:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestUnapplyMismatchedUndo(t *testing.T) {
	n := createTestNode(t, grid.Bounds{Width: 1, Height: 1})
	err := n.Unapply(FinishTurn{}, DeactivateUndo{})
	if !errors.Is(err, ErrCritical) {
		t.Errorf("Expected ErrCritical, got %v", err)
	}
}

func TestIsDurable(t *testing.T) {
	tests := []struct {
		change Change
		human  bool
		ai     bool
	}{
		{ActivateCurio{}, false, false},
		{MoveActiveCurio{Direction: grid.North}, false, false},
		{DeactivateCurio{}, true, false},
		{TakeCurioAction{}, true, false},
		{FinishTurn{}, true, true},
	}
	for _, test := range tests {
		t.Run(string(test.change.Kind()), func(t *testing.T) {
			if got := IsDurable(test.change, false); got != test.human {
				t.Errorf("Human: expected %v, got %v", test.human, got)
			}
			if got := IsDurable(test.change, true); got != test.ai {
				t.Errorf("AI: expected %v, got %v", test.ai, got)
			}
		})
	}
}

func TestReverseUndoRestoresState(t *testing.T) {
	n := createTestNode(t, grid.Bounds{Width: 6, Height: 6})
	a := mustAddCurio(t, n, Curio{Team: TeamPlayer, Name: "A", Speed: 4, MaxSize: 3, Actions: []string{"slash", "grow"}}, grid.Pt(2, 2), grid.Pt(2, 1))
	b := mustAddCurio(t, n, Curio{Team: TeamPlayer, Name: "B", Speed: 3, MaxSize: 2}, grid.Pt(5, 5))
	mustAddCurio(t, n, Curio{Team: TeamEnemy, Name: "E", Speed: 2, MaxSize: 4}, grid.Pt(0, 2), grid.Pt(0, 3), grid.Pt(0, 4))
	mustAddCurio(t, n, Curio{Team: TeamEnemy, Name: "F", Speed: 2, MaxSize: 1}, grid.Pt(5, 0))
	if _, err := n.AddPickup(grid.Pt(1, 2), Pickup{Kind: Currency, Amount: 5}); err != nil {
		t.Fatal(err)
	}

	script := []Change{
		ActivateCurio{Curio: a},
		MoveActiveCurio{Direction: grid.North}, // collects the pickup
		MoveActiveCurio{Direction: grid.East},
		MoveActiveCurio{Direction: grid.South},
		MoveActiveCurio{Direction: grid.North}, // relocates onto its own cell
		ActivateCurio{Curio: b},
		MoveActiveCurio{Direction: grid.North},
		MoveActiveCurio{Direction: grid.North},
		MoveActiveCurio{Direction: grid.North},
		FinishTurn{},
		FinishTurn{},
	}

	var snapshots []Snapshot
	var applied []Change
	var undos []Undo
	for _, c := range script {
		snap := n.Snapshot()
		u, err := n.Apply(c)
		if errors.Is(err, ErrInvalid) {
			continue
		}
		if err != nil {
			t.Fatalf("Apply(%#v) failed: %v", c, err)
		}
		snapshots = append(snapshots, snap)
		applied = append(applied, c)
		undos = append(undos, u)
		for _, e := range n.Grid.Entries() {
			if e.Value.Curio != nil && n.Grid.LenOf(e.Key) > int(e.Value.Curio.MaxSize) {
				t.Fatalf("Curio %s exceeds max_size after %#v", e.Key, c)
			}
		}
	}
	if n.Inventory.Currency != 5 {
		t.Errorf("Expected the pickup collected, got currency %d", n.Inventory.Currency)
	}
	for i := len(applied) - 1; i >= 0; i-- {
		if err := n.Unapply(applied[i], undos[i]); err != nil {
			t.Fatalf("Unapply(%#v) failed: %v", applied[i], err)
		}
		if got := n.Snapshot(); !reflect.DeepEqual(snapshots[i], got) {
			t.Fatalf("State mismatch after undoing %#v:\nwant %+v\ngot  %+v", applied[i], snapshots[i], got)
		}
	}
}
