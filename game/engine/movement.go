package engine

import (
	"slices"

	"github.com/wricardo/gridtactics/game/grid"
)

// moveActive walks the active curio along dirs. It stops at the first
// step that cannot be taken or when the curio runs out of moves.
func (n *Node) moveActive(dirs []grid.Direction) (Undo, error) {
	key, c, ok := n.ActiveCurio()
	if n.Active.IsZero() {
		return nil, invalidf("no active curio")
	}
	if !ok {
		return nil, criticalf("active curio %s vanished without deactivation", n.Active)
	}
	if c.MovesLeft() == 0 {
		return nil, invalidf("curio %s has no moves left", key)
	}

	u := MoveUndo{Curio: key}
	for _, d := range dirs {
		if c.MovesLeft() == 0 {
			break
		}
		step, ok := n.step(key, d)
		if !ok {
			break
		}
		u.Steps = append(u.Steps, step)
		c.MovesTaken++
	}
	if len(u.Steps) == 0 {
		return nil, invalidf("curio %s cannot move %v", key, dirs)
	}

	if c.MovesLeft() == 0 && len(c.Actions) == 0 && !c.Tapped {
		c.Tapped = true
		u.Tapped = true
	}
	if excess := n.Grid.LenOf(key) - int(c.MaxSize); excess > 0 {
		u.Trimmed = n.Grid.PopBackN(key, excess)
	}
	return u, nil
}

// step takes one step from the head. Pickups at the destination are
// collected into the inventory.
func (n *Node) step(key grid.Key, d grid.Direction) (MoveStep, bool) {
	head, _ := n.Grid.Head(key)
	to := head.Step(d, n.Grid.Bounds())
	if to == head || n.Grid.SquareIsClosed(to) {
		return MoveStep{}, false
	}

	s := MoveStep{To: to, Relocated: -1}
	if owner, ok := n.Grid.ItemKeyAt(to); ok && owner != key {
		it, _ := n.Grid.Item(owner)
		if it.Pickup == nil {
			return MoveStep{}, false
		}
		s.Pickup = &CollectedPickup{Key: owner, Point: to, Pickup: *it.Pickup}
		n.Grid.Remove(owner)
		n.Inventory.Add(*it.Pickup)
	} else if ok {
		points := n.Grid.Points(key)
		s.Relocated = len(points) - 1 - slices.Index(points, to)
	}

	if !n.Grid.PushFront(to, key) {
		if s.Pickup != nil {
			n.restorePickup(s.Pickup)
		}
		return MoveStep{}, false
	}
	return s, true
}

func (n *Node) unmove(u MoveUndo) error {
	c, ok := n.Curio(u.Curio)
	if !ok {
		return criticalf("undo move: curio %s not found", u.Curio)
	}
	for i := len(u.Trimmed) - 1; i >= 0; i-- {
		if !n.Grid.Reinsert(u.Curio, u.Trimmed[i], 0) {
			return criticalf("undo move: cannot restore trimmed cell %s", u.Trimmed[i])
		}
	}
	if u.Tapped {
		c.Tapped = false
	}
	for i := len(u.Steps) - 1; i >= 0; i-- {
		s := u.Steps[i]
		head, ok := n.Grid.PopFront(u.Curio)
		if !ok || head != s.To {
			return criticalf("undo move: expected head %s, got %s", s.To, head)
		}
		if c.MovesTaken == 0 {
			return criticalf("undo move: curio %s has no moves to return", u.Curio)
		}
		c.MovesTaken--
		if s.Relocated >= 0 && !n.Grid.Reinsert(u.Curio, s.To, s.Relocated) {
			return criticalf("undo move: cannot restore relocated cell %s", s.To)
		}
		if s.Pickup != nil {
			if err := n.restorePickup(s.Pickup); err != nil {
				return err
			}
		}
	}
	return nil
}

func (n *Node) restorePickup(p *CollectedPickup) error {
	if !n.Inventory.Take(p.Pickup) {
		return criticalf("undo move: %s missing from inventory", p.Pickup)
	}
	if err := n.Grid.Revive(p.Key, p.Point); err != nil {
		return criticalf("undo move: restore pickup: %v", err)
	}
	return nil
}
