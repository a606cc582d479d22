// Command validate checks the scenario files in a scenario directory. For
// each file it verifies:
//   - the document matches the scenario schema
//   - every card, action and placement resolves against the definitions
//   - both teams field at least one curio or loaded access point
//   - every enemy curio can be reached from a player curio over open squares
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/gridtactics/game/action"
	"github.com/wricardo/gridtactics/game/config"
	"github.com/wricardo/gridtactics/game/engine"
	"github.com/wricardo/gridtactics/game/grid"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// validateScenario loads and validates a single scenario file.
func validateScenario(filePath string, catalog *action.Catalog) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	scenario, err := config.ParseScenario(data)
	if err != nil {
		result.fail("Invalid scenario: %v", err)
		return result
	}

	node, err := scenario.Build(catalog)
	if err != nil {
		result.fail("Build failed: %v", err)
		return result
	}
	accessPoints := len(node.Snapshot().AccessPoints)
	if _, err := node.Deploy(); err != nil {
		result.fail("Deploy failed: %v", err)
		return result
	}

	counts := map[engine.Team]int{}
	for _, team := range []engine.Team{engine.TeamPlayer, engine.TeamEnemy} {
		counts[team] = len(node.CurioKeys(team))
		if counts[team] == 0 {
			result.fail("Team %s has no curios after deployment", team)
		}
	}

	if result.Valid {
		reachability := validateConnectivity(node.Snapshot())
		if !reachability.Valid {
			result.Valid = false
		}
		result.Errors = append(result.Errors, reachability.Errors...)
	}

	if result.Valid {
		b := node.Grid.Bounds()
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Name: %s", scenario.Name))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Grid: %dx%d", b.Width, b.Height))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Curios: player %d, enemy %d", counts[engine.TeamPlayer], counts[engine.TeamEnemy]))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Access points: %d", accessPoints))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Pickups: %d", len(scenario.Pickups)))
	}
	return result
}

// validateConnectivity ensures every enemy curio is reachable from some
// player curio using 4-directional movement over open squares. Squares
// held by curios and pickups count as open.
func validateConnectivity(state engine.Snapshot) ValidationResult {
	result := ValidationResult{
		Valid:  true,
		Errors: []string{},
	}

	b := state.Bounds
	closed := make(map[grid.Point]bool, len(state.Closed))
	for _, p := range state.Closed {
		closed[p] = true
	}

	var queue []grid.Point
	visited := map[grid.Point]bool{}
	var enemies []engine.CurioView
	for _, c := range state.Curios {
		if c.Curio.Team == engine.TeamEnemy {
			enemies = append(enemies, c)
			continue
		}
		for _, p := range c.Points {
			if !visited[p] {
				visited[p] = true
				queue = append(queue, p)
			}
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dir := range grid.Directions {
			next := current.Step(dir, b)
			if closed[next] || visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, next)
		}
	}

	unreachable := []string{}
	for _, enemy := range enemies {
		reached := false
		for _, p := range enemy.Points {
			if visited[p] {
				reached = true
				break
			}
		}
		if !reached {
			unreachable = append(unreachable, fmt.Sprintf("%s at (%d,%d)", enemy.Curio.Name, enemy.Points[0].Row, enemy.Points[0].Col))
		}
	}

	if len(unreachable) > 0 {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Connectivity failure: %d/%d enemy curios unreachable", len(unreachable), len(enemies)))
		for _, u := range unreachable {
			result.Errors = append(result.Errors, fmt.Sprintf("Unreachable: %s", u))
		}
	} else {
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Connectivity: All %d enemy curios reachable", len(enemies)))
	}
	return result
}

// validateDir validates every scenario in dir, writes a report to w and
// reports whether all of them are valid.
func validateDir(w io.Writer, dir, definitions string) (bool, error) {
	catalog, err := config.LoadDefinitions(definitions)
	if err != nil {
		return false, err
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return false, fmt.Errorf("finding scenario files: %w", err)
	}

	defs, _ := filepath.Abs(definitions)
	allValid := true
	for _, file := range files {
		if abs, _ := filepath.Abs(file); abs == defs {
			continue
		}
		result := validateScenario(file, catalog)

		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)
		if result.Valid {
			fmt.Fprintln(w, "✅ VALID")
			for _, info := range result.Errors {
				fmt.Fprintln(w, "  "+info)
			}
		} else {
			fmt.Fprintln(w, "❌ INVALID")
			allValid = false
			for _, e := range result.Errors {
				if !strings.HasPrefix(e, "✓") {
					fmt.Fprintln(w, "  ❌ "+e)
				}
			}
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintln(w, "✅ All scenarios are valid!")
	} else {
		fmt.Fprintln(w, "❌ Some scenarios have errors")
	}
	return allValid, nil
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "check scenario files",
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
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ok, err := validateDir(cmd.Writer, cmd.String("dir"), cmd.String("definitions"))
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("some scenarios have errors")
			}
			return nil
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
