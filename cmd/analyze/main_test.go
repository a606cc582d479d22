package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wricardo/gridtactics/game/config"
	"github.com/wricardo/gridtactics/game/dispatch"
	"github.com/wricardo/gridtactics/game/engine"
)

const scenarioDir = "../../scenarios"

func testManager(t *testing.T) *config.Manager {
	t.Helper()
	manager, err := config.NewManager(scenarioDir, filepath.Join(scenarioDir, "definitions.yaml"))
	if err != nil {
		t.Fatalf("Failed to create scenario manager: %v", err)
	}
	return manager
}

func TestPlayScenario(t *testing.T) {
	manager := testManager(t)

	for _, name := range []string{"duel", "deployment"} {
		t.Run(name, func(t *testing.T) {
			o := playScenario(context.Background(), manager, name, 200, dispatch.Settings{}, nil)
			if o.Err != nil {
				t.Fatalf("Expected the game to play, got %v", o.Err)
			}
			if o.Steps == 0 || o.Events == 0 {
				t.Errorf("Expected steps and events, got %d steps, %d events", o.Steps, o.Events)
			}
			if o.Steps > 200 {
				t.Errorf("Expected at most 200 steps, got %d", o.Steps)
			}
			if o.Finished() {
				loser := engine.TeamPlayer
				if o.Winner == engine.TeamPlayer.String() {
					loser = engine.TeamEnemy
				}
				if o.Survivors[loser] != 0 {
					t.Errorf("Expected the loser to have no curios, got %d", o.Survivors[loser])
				}
			} else if o.Steps != 200 {
				t.Errorf("Expected an unfinished game to use every step, got %d", o.Steps)
			}
		})
	}
}

func TestPlayScenarioUnknown(t *testing.T) {
	o := playScenario(context.Background(), testManager(t), "missing", 10, dispatch.Settings{}, nil)
	if !errors.Is(o.Err, config.ErrScenarioNotFound) {
		t.Errorf("Expected ErrScenarioNotFound, got %v", o.Err)
	}
}

func TestSummarize(t *testing.T) {
	outcomes := []Outcome{
		{Winner: "player"},
		{Winner: "player"},
		{Winner: "enemy"},
		{},
		{Err: errors.New("boom")},
	}
	s := summarize(outcomes)
	want := Summary{Games: 5, PlayerWins: 2, EnemyWins: 1, Unfinished: 1, Failed: 1}
	if s != want {
		t.Errorf("Expected %+v, got %+v", want, s)
	}
}

func TestPrintOutcome(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		want    string
	}{
		{"win", Outcome{Scenario: "duel", Winner: "enemy", Turns: 7}, "enemy wins after 7 turns"},
		{"stalemate", Outcome{Scenario: "duel", Steps: 50}, "No winner after 50 steps"},
		{"error", Outcome{Scenario: "duel", Err: errors.New("boom")}, "Error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printOutcome(&buf, tt.outcome)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("Expected %q in output, got %q", tt.want, buf.String())
			}
		})
	}
}

func TestCommandRun(t *testing.T) {
	var buf bytes.Buffer
	cmd := newCommand()
	cmd.Writer = &buf

	args := []string{"analyze",
		"--dir", scenarioDir,
		"--definitions", filepath.Join(scenarioDir, "definitions.yaml"),
		"--max-steps", "50",
		"duel.yaml",
	}
	if err := cmd.Run(context.Background(), args); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "=== Analyzing duel ===") || !strings.Contains(out, "Games: 1") {
		t.Errorf("Unexpected output: %s", out)
	}
}
