package ai

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/wricardo/gridtactics/game/action"
	"github.com/wricardo/gridtactics/game/engine"
	"github.com/wricardo/gridtactics/game/grid"
)

// maxExpansions bounds the work of one path search.
const maxExpansions = 20000

// planner runs the greedy heuristic: every untapped curio, in key order,
// walks to the nearest cell from which its longest enemy-targeting action
// reaches an enemy, then uses it. It ignores danger and damage totals.
type planner struct {
	node   *engine.Node
	logger *zap.Logger
	emit   func(engine.Change) bool
	halted bool
}

func (p *planner) playTurn(ctx context.Context) {
	team := p.node.ActiveTeam
	for _, key := range p.node.UntappedKeys(team) {
		if p.halted || ctx.Err() != nil {
			return
		}
		if c, ok := p.node.Curio(key); !ok || c.Tapped {
			continue
		}
		p.playCurio(key)
	}
	if !p.halted {
		p.apply(engine.FinishTurn{})
	}
}

func (p *planner) playCurio(key grid.Key) {
	if !p.apply(engine.ActivateCurio{Curio: key}) {
		return
	}
	c, _ := p.node.Curio(key)
	index, def := bestAttack(p.node.Catalog, c)
	if def == nil {
		p.apply(engine.DeactivateCurio{})
		return
	}

	if path, ok := p.approach(key, c, def); ok {
		for _, d := range path {
			if !p.apply(engine.MoveActiveCurio{Direction: d}) {
				break
			}
		}
	}
	if p.halted {
		return
	}
	if target, ok := p.targetInRange(key, def); ok {
		p.apply(engine.TakeCurioAction{ActionIndex: index, Target: target})
		return
	}
	p.apply(engine.DeactivateCurio{})
}

// apply settles c on the worker's copy and sends it. It returns false when
// the change was rejected or the worker should stop.
func (p *planner) apply(c engine.Change) bool {
	if p.halted {
		return false
	}
	_, err := p.node.Apply(c)
	switch {
	case errors.Is(err, engine.ErrTeamEliminated):
		p.halted = true
		p.emit(c)
		return false
	case err != nil:
		p.logger.Debug("ai change rejected", zap.String("change", string(c.Kind())), zap.Error(err))
		if errors.Is(err, engine.ErrCritical) {
			p.halted = true
		}
		return false
	}
	if !p.emit(c) {
		p.halted = true
		return false
	}
	return true
}

// bestAttack picks the enemy-targeting action with the longest reach.
func bestAttack(catalog *action.Catalog, c *engine.Curio) (int, *action.Def) {
	best := -1
	var bestDef *action.Def
	for i, id := range c.Actions {
		def, err := catalog.Action(id)
		if err != nil || def.Targets != action.TargetEnemy || !def.Effect.Kind.Implemented() || def.Range == nil {
			continue
		}
		if bestDef == nil || def.MaxRange() > bestDef.MaxRange() {
			best, bestDef = i, def
		}
	}
	return best, bestDef
}

// approach finds a path to the nearest cell within the curio's remaining
// moves from which def reaches an enemy.
func (p *planner) approach(key grid.Key, c *engine.Curio, def *action.Def) ([]grid.Direction, bool) {
	head, ok := p.node.Grid.Head(key)
	if !ok {
		return nil, false
	}
	enemies := p.enemyCells(c.Team)
	if len(enemies) == 0 {
		return nil, false
	}

	moves := c.MovesLeft()
	b := p.node.Grid.Bounds()
	var candidates []grid.Point
	for r := uint32(0); r < b.Height; r++ {
		for col := uint32(0); col < b.Width; col++ {
			at := grid.Pt(r, col)
			if manhattan(head, at) > moves || !p.passable(key, at) {
				continue
			}
			for _, e := range enemies {
				if def.Range.Covers(at, e) {
					candidates = append(candidates, at)
					break
				}
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		di, dj := manhattan(head, candidates[i]), manhattan(head, candidates[j])
		if di != dj {
			return di < dj
		}
		if candidates[i].Row != candidates[j].Row {
			return candidates[i].Row < candidates[j].Row
		}
		return candidates[i].Col < candidates[j].Col
	})

	for _, goal := range candidates {
		if goal == head {
			return nil, true
		}
		if path, ok := findPath(b, head, goal, int(moves), func(q grid.Point) bool { return p.passable(key, q) }); ok {
			return path, true
		}
	}
	return nil, false
}

// targetInRange returns the first enemy cell, in key order, the active
// curio can hit with def.
func (p *planner) targetInRange(key grid.Key, def *action.Def) (grid.Point, bool) {
	c, ok := p.node.Curio(key)
	if !ok {
		return grid.Point{}, false
	}
	for _, ek := range p.node.CurioKeys(c.Team.Opponent()) {
		for _, cell := range p.node.Grid.Points(ek) {
			if _, err := p.node.CheckAction(key, def, cell); err == nil {
				return cell, true
			}
		}
	}
	return grid.Point{}, false
}

func (p *planner) enemyCells(team engine.Team) []grid.Point {
	var cells []grid.Point
	for _, ek := range p.node.CurioKeys(team.Opponent()) {
		cells = append(cells, p.node.Grid.Points(ek)...)
	}
	return cells
}

// passable reports whether the curio under key may step onto q.
func (p *planner) passable(key grid.Key, q grid.Point) bool {
	if p.node.Grid.SquareIsClosed(q) {
		return false
	}
	owner, ok := p.node.Grid.ItemKeyAt(q)
	if !ok || owner == key {
		return true
	}
	it, _ := p.node.Grid.Item(owner)
	return it.Pickup != nil
}

// findPath is a depth-first search capped at limit steps. Steps that bring
// the head closer to goal are tried first and dead ends are backtracked.
func findPath(b grid.Bounds, from, goal grid.Point, limit int, passable func(grid.Point) bool) ([]grid.Direction, bool) {
	visited := map[grid.Point]bool{from: true}
	var path []grid.Direction
	expansions := 0

	var search func(at grid.Point) bool
	search = func(at grid.Point) bool {
		if at == goal {
			return true
		}
		if len(path) >= limit || expansions >= maxExpansions {
			return false
		}
		expansions++
		for _, d := range biasedDirections(at, goal) {
			next := at.Step(d, b)
			if next == at || visited[next] || !passable(next) {
				continue
			}
			if int(manhattan(next, goal)) > limit-len(path)-1 {
				continue
			}
			visited[next] = true
			path = append(path, d)
			if search(next) {
				return true
			}
			path = path[:len(path)-1]
			visited[next] = false
		}
		return false
	}

	if !search(from) {
		return nil, false
	}
	return path, true
}

// biasedDirections orders the four directions so that those reducing the
// distance to goal come first.
func biasedDirections(at, goal grid.Point) []grid.Direction {
	dirs := at.Toward(goal)
	for _, d := range grid.Directions {
		if !containsDirection(dirs, d) {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

func containsDirection(dirs []grid.Direction, d grid.Direction) bool {
	for _, x := range dirs {
		if x == d {
			return true
		}
	}
	return false
}

func manhattan(a, b grid.Point) uint32 {
	return action.Diamond.Distance(a, b)
}
