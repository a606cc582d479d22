// Command analyze plays scenarios AI against AI and prints how each game
// went: who won, after how many turns, and what was left standing. Use it
// to spot lopsided or stalemated scenarios.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wricardo/gridtactics/game/config"
	"github.com/wricardo/gridtactics/game/dispatch"
	"github.com/wricardo/gridtactics/game/engine"
)

// DefaultMaxSteps bounds one game. Greedy AIs can circle each other forever.
const DefaultMaxSteps = 2000

// Outcome is the result of one self-play game.
type Outcome struct {
	Scenario  string
	Winner    string // player, enemy, or empty when the game did not finish
	Turns     uint32
	Steps     int
	Events    int
	Survivors map[engine.Team]int
	Err       error
}

// Finished reports whether a team was eliminated.
func (o Outcome) Finished() bool {
	return o.Winner != ""
}

// playScenario runs the named scenario with both teams under AI control.
// Access points are deployed as loaded.
func playScenario(ctx context.Context, manager *config.Manager, name string, maxSteps int, settings dispatch.Settings, logger *zap.Logger) Outcome {
	out := Outcome{Scenario: name, Survivors: map[engine.Team]int{}}
	if logger == nil {
		logger = zap.NewNop()
	}

	node, _, err := manager.NewNode(name)
	if err != nil {
		out.Err = err
		return out
	}
	if _, err := node.Deploy(); err != nil {
		out.Err = fmt.Errorf("deploy: %w", err)
		return out
	}
	node.Controllers[engine.TeamPlayer] = engine.AI
	node.Controllers[engine.TeamEnemy] = engine.AI

	d := dispatch.New(node, settings, logger.With(zap.String("scenario", name)))
	defer d.Close()

	for out.Steps < maxSteps && d.Halted() == nil {
		err := d.Apply(ctx, dispatch.Command{Kind: dispatch.CmdNext})
		out.Steps++
		if err != nil && d.Halted() == nil {
			out.Err = err
			break
		}
	}

	if team, ok := node.Eliminated(); ok {
		out.Winner = team.Opponent().String()
	}
	out.Turns = node.Turn
	out.Events = d.Len()
	for _, team := range []engine.Team{engine.TeamPlayer, engine.TeamEnemy} {
		out.Survivors[team] = len(node.CurioKeys(team))
	}
	return out
}

// Summary aggregates outcomes across scenarios.
type Summary struct {
	Games      int
	PlayerWins int
	EnemyWins  int
	Unfinished int
	Failed     int
}

func summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		s.Games++
		switch {
		case o.Err != nil:
			s.Failed++
		case o.Winner == engine.TeamPlayer.String():
			s.PlayerWins++
		case o.Winner == engine.TeamEnemy.String():
			s.EnemyWins++
		default:
			s.Unfinished++
		}
	}
	return s
}

func printOutcome(w io.Writer, o Outcome) {
	fmt.Fprintf(w, "\n=== Analyzing %s ===\n", o.Scenario)
	if o.Err != nil {
		fmt.Fprintf(w, "❌ Error: %v\n", o.Err)
		return
	}
	if o.Finished() {
		fmt.Fprintf(w, "✅ %s wins after %d turns (%d steps, %d events)\n", o.Winner, o.Turns, o.Steps, o.Events)
	} else {
		fmt.Fprintf(w, "⚠️  No winner after %d steps (%d turns): likely stalemate\n", o.Steps, o.Turns)
	}
	fmt.Fprintf(w, "Survivors: player %d, enemy %d\n", o.Survivors[engine.TeamPlayer], o.Survivors[engine.TeamEnemy])
}

func run(ctx context.Context, cmd *cli.Command) error {
	logger := zap.NewNop()
	if cmd.Bool("debug") {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
		defer logger.Sync()
	}

	manager, err := config.NewManager(cmd.String("dir"), cmd.String("definitions"))
	if err != nil {
		return err
	}

	names := cmd.Args().Slice()
	if len(names) == 0 {
		infos, err := manager.ListScenarios()
		if err != nil {
			return err
		}
		for _, info := range infos {
			names = append(names, info.ScenarioID)
		}
	}

	settings := dispatch.Settings{AITimeout: cmd.Duration("ai-timeout")}
	outcomes := make([]Outcome, 0, len(names))
	for _, name := range names {
		o := playScenario(ctx, manager, strings.TrimSuffix(name, ".yaml"), cmd.Int("max-steps"), settings, logger)
		printOutcome(cmd.Writer, o)
		outcomes = append(outcomes, o)
	}

	s := summarize(outcomes)
	fmt.Fprintf(cmd.Writer, "\n%s\n", strings.Repeat("=", 40))
	fmt.Fprintf(cmd.Writer, "Games: %d, player wins: %d, enemy wins: %d, unfinished: %d, failed: %d\n",
		s.Games, s.PlayerWins, s.EnemyWins, s.Unfinished, s.Failed)
	if s.Failed > 0 {
		return errors.New("some scenarios failed to play")
	}
	return nil
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "play scenarios AI against AI",
		ArgsUsage: "[scenario...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Value:   "scenarios",
				Usage:   "scenario directory",
				Sources: cli.EnvVars("GRIDTACTICS_SCENARIO_DIR"),
			},
			&cli.StringFlag{
				Name:    "definitions",
				Value:   "scenarios/definitions.yaml",
				Usage:   "action and card definitions",
				Sources: cli.EnvVars("GRIDTACTICS_DEFINITIONS"),
			},
			&cli.IntFlag{
				Name:  "max-steps",
				Value: DefaultMaxSteps,
				Usage: "AI steps before a game is called a stalemate",
			},
			&cli.DurationFlag{
				Name:    "ai-timeout",
				Value:   dispatch.DefaultAITimeout,
				Usage:   "time the AI may take for one change",
				Sources: cli.EnvVars("GRIDTACTICS_AI_TIMEOUT"),
			},
			&cli.BoolFlag{Name: "debug", Usage: "log every dispatched change"},
		},
		Action: run,
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
