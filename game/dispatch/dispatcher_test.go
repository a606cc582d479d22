package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/wricardo/gridtactics/game/action"
	"github.com/wricardo/gridtactics/game/engine"
	"github.com/wricardo/gridtactics/game/grid"
)

func createTestNode(t *testing.T, b grid.Bounds) *engine.Node {
	t.Helper()
	catalog, err := action.NewCatalog([]action.Def{
		{
			ID: "slash", Name: "Slash", Genre: action.Attack, Targets: action.TargetEnemy,
			Range:  &action.Range{Shape: action.Diamond, Min: 1, Max: 1},
			Effect: action.Effect{Kind: action.DealDamage, Amount: 2},
		},
		{
			ID: "haste", Name: "Haste", Genre: action.Support, Targets: action.TargetAny,
			Range:  &action.Range{Shape: action.Square, Max: 3},
			Effect: action.Effect{Kind: action.IncreaseSpeed, Amount: 1},
		},
	}, nil)
	if err != nil {
		t.Fatalf("Failed to build catalog: %v", err)
	}
	return engine.NewNode(grid.New[engine.Item](b), catalog)
}

func addCurio(t *testing.T, n *engine.Node, c engine.Curio, points ...grid.Point) grid.Key {
	t.Helper()
	key, err := n.AddCurio(points, c)
	if err != nil {
		t.Fatalf("AddCurio failed: %v", err)
	}
	return key
}

func mustApply(t *testing.T, d *Dispatcher, cmd Command) {
	t.Helper()
	if err := d.Apply(context.Background(), cmd); err != nil {
		t.Fatalf("Apply(%s) failed: %v", cmd, err)
	}
}

type recorder struct {
	calls []string
}

func (r *recorder) Collect(ev Event, _ *engine.Node) {
	r.calls = append(r.calls, fmt.Sprintf("collect %s", ev.Change.Kind()))
}

func (r *recorder) Fail(err error, cmd Command) {
	r.calls = append(r.calls, fmt.Sprintf("fail %s", cmd.Kind))
}

func (r *recorder) Publish(cmd Command) {
	r.calls = append(r.calls, fmt.Sprintf("publish %s", cmd.Kind))
}

func (r *recorder) CollectUndo(ev Event, _ *engine.Node, log []Event) {
	r.calls = append(r.calls, fmt.Sprintf("undo %s (%d left)", ev.Change.Kind(), len(log)))
}

func TestScenarioUndoTwice(t *testing.T) {
	n := createTestNode(t, grid.Bounds{Width: 3, Height: 1})
	a := addCurio(t, n, engine.Curio{Team: engine.TeamPlayer, Name: "A", Speed: 2, MaxSize: 1}, grid.Pt(0, 0))
	before := n.Snapshot()

	d := New(n, Settings{}, nil)
	defer d.Close()
	rec := &recorder{}
	d.Subscribe("rec", rec)

	mustApply(t, d, Command{Kind: CmdActivate, Curio: a})
	mustApply(t, d, Command{Kind: CmdMove, Direction: grid.East})
	mustApply(t, d, Command{Kind: CmdMove, Direction: grid.East})

	if head, _ := n.Grid.Head(a); head != grid.Pt(0, 2) {
		t.Errorf("Expected head (0,2), got %s", head)
	}
	if got := len(d.Events()); got != 4 {
		t.Fatalf("Expected 4 events including the automatic FinishTurn, got %d", got)
	}
	if n.ActiveTeam != engine.TeamEnemy {
		t.Errorf("Expected the turn to pass automatically, got %s", n.ActiveTeam)
	}

	mustApply(t, d, Command{Kind: CmdUndo})
	if got := len(d.Events()); got != 3 {
		t.Errorf("First undo should stop at the durable FinishTurn, %d events left", got)
	}
	mustApply(t, d, Command{Kind: CmdUndo})
	if got := len(d.Events()); got != 0 {
		t.Errorf("Second undo should empty the log, %d events left", got)
	}
	if after := n.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Errorf("State not restored:\nbefore %+v\nafter  %+v", before, after)
	}

	want := []string{
		"collect activate_curio", "publish activate",
		"collect move_active_curio", "publish move",
		"collect move_active_curio", "collect finish_turn", "publish move",
		"undo finish_turn (3 left)", "publish undo",
		"undo move_active_curio (2 left)", "undo move_active_curio (1 left)", "undo activate_curio (0 left)", "publish undo",
	}
	if !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("Expected observer calls %q, got %q", want, rec.calls)
	}

	if err := d.Apply(context.Background(), Command{Kind: CmdUndo}); !errors.Is(err, engine.ErrInvalid) {
		t.Errorf("Undo on an empty log should be invalid, got %v", err)
	}
}

func TestCommandRejections(t *testing.T) {
	n := createTestNode(t, grid.Bounds{Width: 3, Height: 3})
	a := addCurio(t, n, engine.Curio{Team: engine.TeamPlayer, Name: "A", Speed: 1, MaxSize: 1, Actions: []string{"slash"}}, grid.Pt(0, 0))
	addCurio(t, n, engine.Curio{Team: engine.TeamEnemy, Name: "E", Speed: 1, MaxSize: 1}, grid.Pt(2, 2))
	d := New(n, Settings{}, nil)
	defer d.Close()
	rec := &recorder{}
	d.Subscribe("rec", rec)

	tests := []struct {
		name string
		cmd  Command
	}{
		{"skip", Command{Kind: CmdSkip}},
		{"next on a human turn", Command{Kind: CmdNext}},
		{"unknown", Command{Kind: "dance"}},
		{"move without direction", Command{Kind: CmdMove}},
		{"move without active curio", Command{Kind: CmdMove, Direction: grid.East}},
		{"deactivate without active curio", Command{Kind: CmdDeactivate}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if err := d.Apply(context.Background(), test.cmd); !errors.Is(err, engine.ErrInvalid) {
				t.Errorf("Expected ErrInvalid, got %v", err)
			}
		})
	}
	if len(d.Events()) != 0 {
		t.Error("Rejected commands should not be logged")
	}
	if len(rec.calls) != len(tests) {
		t.Errorf("Expected %d fail notifications, got %q", len(tests), rec.calls)
	}

	n.Controllers[engine.TeamPlayer] = engine.AI
	if err := d.Apply(context.Background(), Command{Kind: CmdActivate, Curio: a}); !errors.Is(err, engine.ErrInvalid) {
		t.Errorf("Human command on an ai turn should be invalid, got %v", err)
	}
}

func TestAITurnThroughNext(t *testing.T) {
	n := createTestNode(t, grid.Bounds{Width: 5, Height: 2})
	a := addCurio(t, n, engine.Curio{Team: engine.TeamPlayer, Name: "A", Speed: 1, MaxSize: 2, Actions: []string{"slash"}}, grid.Pt(0, 0))
	addCurio(t, n, engine.Curio{Team: engine.TeamPlayer, Name: "B", Speed: 1, MaxSize: 2}, grid.Pt(1, 0))
	addCurio(t, n, engine.Curio{Team: engine.TeamEnemy, Name: "E", Speed: 2, MaxSize: 1, Actions: []string{"slash"}}, grid.Pt(0, 4))
	n.Controllers[engine.TeamEnemy] = engine.AI

	d := New(n, Settings{}, nil)
	defer d.Close()

	mustApply(t, d, Command{Kind: CmdActivate, Curio: a})
	mustApply(t, d, Command{Kind: CmdMove, Direction: grid.East})
	mustApply(t, d, Command{Kind: CmdDeactivate})
	if n.ActiveTeam != engine.TeamPlayer {
		t.Fatal("B is still untapped; the turn should not pass yet")
	}
	if err := d.Apply(context.Background(), Command{Kind: CmdDeactivate}); !errors.Is(err, engine.ErrInvalid) {
		t.Errorf("Deactivate with nothing active should be invalid, got %v", err)
	}
	bKey, _, _ := n.CurioAt(grid.Pt(1, 0))
	mustApply(t, d, Command{Kind: CmdActivate, Curio: bKey})
	mustApply(t, d, Command{Kind: CmdDeactivate})
	if !d.AITurn() {
		t.Fatal("Expected the ai turn to start")
	}
	humanEvents := len(d.Events())

	for i := 0; d.AITurn(); i++ {
		if i > 20 {
			t.Fatal("AI turn did not finish")
		}
		mustApply(t, d, Command{Kind: CmdNext})
	}
	events := d.Events()
	last := events[len(events)-1]
	if _, ok := last.Change.(engine.FinishTurn); !ok || last.Team != engine.TeamEnemy {
		t.Errorf("Expected the ai to end its own turn, got %#v by %s", last.Change, last.Team)
	}
	var attacked bool
	for _, ev := range events[humanEvents:] {
		if _, ok := ev.Change.(engine.TakeCurioAction); ok {
			attacked = true
		}
	}
	if !attacked {
		t.Error("Expected the ai to attack A at (0,1)")
	}

	// Undo stops at the ai FinishTurn, then rewinds the ai turn up to the
	// human FinishTurn.
	mustApply(t, d, Command{Kind: CmdUndo})
	if got := len(d.Events()); got != len(events)-1 {
		t.Errorf("Expected %d events after the first undo, got %d", len(events)-1, got)
	}
	mustApply(t, d, Command{Kind: CmdUndo})
	if got := len(d.Events()); got != humanEvents-1 {
		t.Errorf("Expected %d events after the second undo, got %d", humanEvents-1, got)
	}
	if n.ActiveTeam != engine.TeamPlayer {
		t.Errorf("Expected the player turn restored, got %s", n.ActiveTeam)
	}
}

func TestTeamEliminationHalts(t *testing.T) {
	n := createTestNode(t, grid.Bounds{Width: 2, Height: 1})
	a := addCurio(t, n, engine.Curio{Team: engine.TeamPlayer, Name: "A", Speed: 1, MaxSize: 1, Actions: []string{"slash"}}, grid.Pt(0, 0))
	addCurio(t, n, engine.Curio{Team: engine.TeamEnemy, Name: "E", Speed: 1, MaxSize: 1}, grid.Pt(0, 1))
	d := New(n, Settings{}, nil)
	defer d.Close()

	mustApply(t, d, Command{Kind: CmdActivate, Curio: a})
	err := d.Apply(context.Background(), Command{Kind: CmdTakeAction, Target: grid.Pt(0, 1)})
	if !errors.Is(err, engine.ErrTeamEliminated) {
		t.Fatalf("Expected ErrTeamEliminated, got %v", err)
	}
	if len(d.Events()) != 2 {
		t.Errorf("The eliminating action should still be logged, got %d events", len(d.Events()))
	}
	if d.Halted() == nil {
		t.Fatal("Expected the dispatcher to halt")
	}
	if err := d.Apply(context.Background(), Command{Kind: CmdUndo}); !errors.Is(err, ErrHalted) {
		t.Errorf("Expected ErrHalted, got %v", err)
	}
}

func TestHaltOnCritical(t *testing.T) {
	for _, halt := range []bool{false, true} {
		t.Run(fmt.Sprintf("halt=%v", halt), func(t *testing.T) {
			n := createTestNode(t, grid.Bounds{Width: 3, Height: 1})
			a := addCurio(t, n, engine.Curio{Team: engine.TeamPlayer, Name: "A", Speed: 1, MaxSize: 1, Actions: []string{"haste"}}, grid.Pt(0, 0))
			addCurio(t, n, engine.Curio{Team: engine.TeamEnemy, Name: "E", Speed: 1, MaxSize: 1}, grid.Pt(0, 2))
			d := New(n, Settings{HaltOnCritical: halt}, nil)
			defer d.Close()

			mustApply(t, d, Command{Kind: CmdActivate, Curio: a})
			err := d.Apply(context.Background(), Command{Kind: CmdTakeAction, Target: grid.Pt(0, 2)})
			if !errors.Is(err, engine.ErrCritical) {
				t.Fatalf("Expected ErrCritical, got %v", err)
			}
			if got := d.Halted() != nil; got != halt {
				t.Errorf("Expected halted=%v, got %v", halt, got)
			}
		})
	}
}

func TestSubscribeReplacesInPlace(t *testing.T) {
	d := New(createTestNode(t, grid.Bounds{Width: 1, Height: 1}), Settings{}, nil)
	d.Subscribe("journal", NopObserver{})
	d.Subscribe("hub", NopObserver{})
	d.Subscribe("journal", &recorder{})
	if got, want := d.Observers(), []string{"journal", "hub"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	d.Unsubscribe("journal")
	if got, want := d.Observers(), []string{"hub"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestReplayRestoresState(t *testing.T) {
	setup := func() (*engine.Node, grid.Key) {
		n := createTestNode(t, grid.Bounds{Width: 4, Height: 2})
		a := addCurio(t, n, engine.Curio{Team: engine.TeamPlayer, Name: "A", Speed: 2, MaxSize: 2, Actions: []string{"slash"}}, grid.Pt(0, 0))
		addCurio(t, n, engine.Curio{Team: engine.TeamEnemy, Name: "E", Speed: 1, MaxSize: 3}, grid.Pt(1, 2), grid.Pt(1, 3), grid.Pt(0, 3))
		return n, a
	}
	n1, a := setup()
	d1 := New(n1, Settings{}, nil)
	defer d1.Close()
	mustApply(t, d1, Command{Kind: CmdActivate, Curio: a})
	mustApply(t, d1, Command{Kind: CmdMove, Direction: grid.East})
	mustApply(t, d1, Command{Kind: CmdMove, Direction: grid.South})
	mustApply(t, d1, Command{Kind: CmdTakeAction, Target: grid.Pt(1, 2)})

	raw, err := json.Marshal(d1.Events())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var events []Event
	if err := json.Unmarshal(raw, &events); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	n2, _ := setup()
	d2 := New(n2, Settings{}, nil)
	defer d2.Close()
	if err := d2.Replay(events); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if !reflect.DeepEqual(n1.Snapshot(), n2.Snapshot()) {
		t.Error("Replayed node differs from the original")
	}

	// The replayed log is undoable.
	mustApply(t, d2, Command{Kind: CmdUndo})
	if got := len(d2.Events()); got != len(events)-1 {
		t.Errorf("Expected %d events after undo, got %d", len(events)-1, got)
	}
}

func TestReplayRejectsWrongTeam(t *testing.T) {
	n := createTestNode(t, grid.Bounds{Width: 1, Height: 1})
	d := New(n, Settings{}, nil)
	err := d.Replay([]Event{{Seq: 1, Team: engine.TeamEnemy, Change: engine.FinishTurn{}}})
	if !errors.Is(err, engine.ErrDecode) {
		t.Errorf("Expected ErrDecode, got %v", err)
	}
}
