package ai

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

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
			Effect: action.Effect{Kind: action.DealDamage, Amount: 1},
		},
		{
			ID: "bolt", Name: "Bolt", Genre: action.Attack, Targets: action.TargetEnemy,
			Range:  &action.Range{Shape: action.Square, Min: 2, Max: 2},
			Effect: action.Effect{Kind: action.DealDamage, Amount: 1},
		},
	}, nil)
	if err != nil {
		t.Fatalf("Failed to build catalog: %v", err)
	}
	n := engine.NewNode(grid.New[engine.Item](b), catalog)
	n.Controllers[engine.TeamEnemy] = engine.AI
	n.ActiveTeam = engine.TeamEnemy
	return n
}

func addCurio(t *testing.T, n *engine.Node, c engine.Curio, points ...grid.Point) grid.Key {
	t.Helper()
	key, err := n.AddCurio(points, c)
	if err != nil {
		t.Fatalf("AddCurio failed: %v", err)
	}
	return key
}

func drain(t *testing.T, w *Worker) []engine.Change {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out []engine.Change
	for {
		c, err := w.Next(ctx)
		if errors.Is(err, ErrExhausted) {
			return out
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		out = append(out, c)
	}
}

func TestWorkerApproachesAndAttacks(t *testing.T) {
	n := createTestNode(t, grid.Bounds{Width: 5, Height: 3})
	addCurio(t, n, engine.Curio{Team: engine.TeamPlayer, Name: "P", Speed: 1, MaxSize: 1}, grid.Pt(0, 0))
	addCurio(t, n, engine.Curio{Team: engine.TeamPlayer, Name: "Q", Speed: 1, MaxSize: 1}, grid.Pt(2, 0))
	e := addCurio(t, n, engine.Curio{Team: engine.TeamEnemy, Name: "E", Speed: 3, MaxSize: 1, Actions: []string{"slash"}}, grid.Pt(0, 4))
	before := n.Snapshot()

	w := Start(context.Background(), n, Options{})
	got := drain(t, w)
	w.Stop()

	want := []engine.Change{
		engine.ActivateCurio{Curio: e},
		engine.MoveActiveCurio{Direction: grid.West},
		engine.MoveActiveCurio{Direction: grid.West},
		engine.MoveActiveCurio{Direction: grid.West},
		engine.TakeCurioAction{ActionIndex: 0, Target: grid.Pt(0, 0)},
		engine.FinishTurn{},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %#v, got %#v", want, got)
	}
	if after := n.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Error("Worker mutated the caller's node")
	}

	// The stream applies cleanly to the authoritative node.
	for _, c := range got {
		if _, err := n.Apply(c); err != nil {
			t.Fatalf("Apply(%#v) failed: %v", c, err)
		}
	}
	if n.ActiveTeam != engine.TeamPlayer {
		t.Errorf("Expected the turn handed back to the player, got %s", n.ActiveTeam)
	}
}

func TestWorkerPrefersLongestRange(t *testing.T) {
	n := createTestNode(t, grid.Bounds{Width: 5, Height: 1})
	addCurio(t, n, engine.Curio{Team: engine.TeamPlayer, Name: "P", Speed: 1, MaxSize: 1}, grid.Pt(0, 0))
	addCurio(t, n, engine.Curio{Team: engine.TeamPlayer, Name: "Q", Speed: 1, MaxSize: 1}, grid.Pt(0, 4))
	e := addCurio(t, n, engine.Curio{Team: engine.TeamEnemy, Name: "E", Speed: 1, MaxSize: 1, Actions: []string{"slash", "bolt"}}, grid.Pt(0, 2))

	w := Start(context.Background(), n, Options{})
	got := drain(t, w)

	want := []engine.Change{
		engine.ActivateCurio{Curio: e},
		engine.TakeCurioAction{ActionIndex: 1, Target: grid.Pt(0, 0)},
		engine.FinishTurn{},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %#v, got %#v", want, got)
	}
}

func TestWorkerDeactivatesWhenNothingReachable(t *testing.T) {
	n := createTestNode(t, grid.Bounds{Width: 8, Height: 1})
	addCurio(t, n, engine.Curio{Team: engine.TeamPlayer, Name: "P", Speed: 1, MaxSize: 1}, grid.Pt(0, 0))
	e := addCurio(t, n, engine.Curio{Team: engine.TeamEnemy, Name: "E", Speed: 2, MaxSize: 1, Actions: []string{"slash"}}, grid.Pt(0, 7))
	mover := addCurio(t, n, engine.Curio{Team: engine.TeamEnemy, Name: "M", Speed: 2, MaxSize: 1}, grid.Pt(0, 5))

	w := Start(context.Background(), n, Options{})
	got := drain(t, w)

	want := []engine.Change{
		engine.ActivateCurio{Curio: e},
		engine.DeactivateCurio{},
		engine.ActivateCurio{Curio: mover},
		engine.DeactivateCurio{},
		engine.FinishTurn{},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %#v, got %#v", want, got)
	}
	if _, err := w.Poll(); !errors.Is(err, ErrExhausted) {
		t.Errorf("Expected ErrExhausted from Poll, got %v", err)
	}
}

func TestWorkerStop(t *testing.T) {
	n := createTestNode(t, grid.Bounds{Width: 6, Height: 6})
	addCurio(t, n, engine.Curio{Team: engine.TeamPlayer, Name: "P", Speed: 1, MaxSize: 1}, grid.Pt(0, 0))
	for c := uint32(0); c < 6; c++ {
		addCurio(t, n, engine.Curio{Team: engine.TeamEnemy, Name: "E", Speed: 1, MaxSize: 1}, grid.Pt(5, c))
	}

	w := Start(context.Background(), n, Options{Buffer: 1})
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return while the worker was blocked on send")
	}

	// Whatever was buffered is still readable, then the stream ends.
	for i := 0; i < 2; i++ {
		if _, err := w.Poll(); errors.Is(err, ErrExhausted) {
			return
		}
	}
	if _, err := w.Poll(); !errors.Is(err, ErrExhausted) {
		t.Errorf("Expected ErrExhausted after Stop, got %v", err)
	}
}

func TestNextHonoursContext(t *testing.T) {
	w := &Worker{changes: make(chan engine.Change), done: make(chan struct{})}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := w.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
	if _, err := w.Poll(); !errors.Is(err, ErrNotReady) {
		t.Errorf("Expected ErrNotReady, got %v", err)
	}
}
