package engine

import (
	"github.com/wricardo/gridtactics/game/action"
	"github.com/wricardo/gridtactics/game/grid"
)

func (n *Node) takeAction(index int, target grid.Point) (Undo, error) {
	source, c, ok := n.ActiveCurio()
	if n.Active.IsZero() {
		return nil, invalidf("no active curio")
	}
	if !ok {
		return nil, criticalf("active curio %s vanished without deactivation", n.Active)
	}
	if index < 0 || index >= len(c.Actions) {
		return nil, invalidf("curio %s has no action %d", source, index)
	}
	def, err := n.Catalog.Action(c.Actions[index])
	if err != nil {
		return nil, invalidf("%v", err)
	}
	if !def.Effect.Kind.Implemented() {
		return nil, criticalf("effect %s is not implemented", def.Effect.Kind)
	}
	targetKey, err := n.CheckAction(source, def, target)
	if err != nil {
		return nil, err
	}

	u := ActionUndo{Source: source, Action: def.ID, Effect: def.Effect.Kind, Target: targetKey}
	n.applyEffect(def.Effect, targetKey, &u)

	if src, ok := n.Curio(source); ok {
		u.SourceTapped = !src.Tapped
		src.Tapped = true
	} else {
		u.SourceDestroyed = true
	}
	n.Active = grid.Key{}

	if _, gone := n.Eliminated(); gone {
		return u, ErrTeamEliminated
	}
	return u, nil
}

// CheckAction validates def used by source against target and returns the
// key of the targeted curio. It never mutates the node.
func (n *Node) CheckAction(source grid.Key, def *action.Def, target grid.Point) (grid.Key, error) {
	src, ok := n.Curio(source)
	if !ok {
		return grid.Key{}, invalidf("no curio %s", source)
	}
	targetKey, tc, ok := n.CurioAt(target)
	if !ok {
		return grid.Key{}, invalidf("no curio at %s", target)
	}
	switch def.Targets {
	case action.TargetAlly:
		ok = tc.Team == src.Team
	case action.TargetEnemy:
		ok = tc.Team != src.Team
	case action.TargetSelf:
		ok = targetKey == source
	case action.TargetAny:
		ok = true
	default:
		ok = false
	}
	if !ok {
		return grid.Key{}, invalidf("%s cannot target %s %s", def.ID, tc.Team, targetKey)
	}
	if !def.InRange(n.Grid.Points(source), target) {
		return grid.Key{}, invalidf("%s is out of range of %s", target, def.ID)
	}
	for _, cond := range def.Conditions {
		size := n.Grid.LenOf(source)
		if cond.Subject == action.SubjectTarget {
			size = n.Grid.LenOf(targetKey)
		}
		if !cond.Holds(size) {
			return grid.Key{}, invalidf("%s condition on %s size %d not met", def.ID, cond.Subject, size)
		}
	}
	return targetKey, nil
}

func (n *Node) applyEffect(e action.Effect, target grid.Key, u *ActionUndo) {
	switch e.Kind {
	case action.DealDamage:
		u.Removed = n.Grid.PopBackN(target, int(e.Amount))
		u.Fatal = !n.Grid.Contains(target)
	case action.IncreaseMaxSize:
		c, _ := n.Curio(target)
		u.OldMaxSize = c.MaxSize
		u.NewMaxSize = max(c.MaxSize, min(c.MaxSize+e.Amount, e.Bound))
		c.MaxSize = u.NewMaxSize
	}
}

func (n *Node) untakeAction(u ActionUndo) error {
	switch u.Effect {
	case action.DealDamage:
		rest := u.Removed
		if u.Fatal {
			if len(rest) == 0 {
				return criticalf("undo action: fatal damage without removed cells")
			}
			if err := n.Grid.Revive(u.Target, rest[len(rest)-1]); err != nil {
				return criticalf("undo action: %v", err)
			}
			rest = rest[:len(rest)-1]
		}
		for i := len(rest) - 1; i >= 0; i-- {
			if !n.Grid.Reinsert(u.Target, rest[i], 0) {
				return criticalf("undo action: cannot restore cell %s", rest[i])
			}
		}
	case action.IncreaseMaxSize:
		c, ok := n.Curio(u.Target)
		if !ok {
			return criticalf("undo action: target %s not found", u.Target)
		}
		c.MaxSize = u.OldMaxSize
	default:
		return criticalf("undo action: effect %s", u.Effect)
	}

	if !u.SourceDestroyed && u.SourceTapped {
		src, ok := n.Curio(u.Source)
		if !ok {
			return criticalf("undo action: source %s not found", u.Source)
		}
		src.Tapped = false
	}
	n.Active = u.Source
	return nil
}
