package engine

import (
	"github.com/wricardo/gridtactics/game/grid"
)

func (n *Node) activate(key grid.Key) (Undo, error) {
	c, ok := n.Curio(key)
	if !ok {
		return nil, invalidf("no curio %s", key)
	}
	if c.Team != n.ActiveTeam {
		return nil, invalidf("curio %s belongs to %s, %s is active", key, c.Team, n.ActiveTeam)
	}
	if c.Tapped {
		return nil, invalidf("curio %s is tapped", key)
	}
	if key == n.Active {
		return nil, invalidf("curio %s is already active", key)
	}

	u := ActivateUndo{Previous: n.Active}
	if prev, ok := n.Curio(n.Active); ok && prev.MovesTaken > 0 && !prev.Tapped {
		prev.Tapped = true
		u.TappedPrevious = true
	}
	n.Active = key
	return u, nil
}

func (n *Node) unactivate(u ActivateUndo) error {
	if u.TappedPrevious {
		prev, ok := n.Curio(u.Previous)
		if !ok {
			return criticalf("undo activate: previous curio %s vanished", u.Previous)
		}
		prev.Tapped = false
	}
	n.Active = u.Previous
	return nil
}

func (n *Node) deactivate() (Undo, error) {
	if n.Active.IsZero() {
		return nil, invalidf("no active curio")
	}
	c, ok := n.Curio(n.Active)
	if !ok {
		return nil, criticalf("active curio %s vanished without deactivation", n.Active)
	}
	u := DeactivateUndo{Curio: n.Active, WasTapped: c.Tapped}
	c.Tapped = true
	n.Active = grid.Key{}
	return u, nil
}

func (n *Node) undeactivate(u DeactivateUndo) error {
	c, ok := n.Curio(u.Curio)
	if !ok {
		return criticalf("undo deactivate: curio %s not found", u.Curio)
	}
	c.Tapped = u.WasTapped
	n.Active = u.Curio
	return nil
}

func (n *Node) finishTurn() Undo {
	u := FinishUndo{Previous: n.Active}
	n.Active = grid.Key{}
	n.ActiveTeam = n.ActiveTeam.Opponent()
	n.Turn++
	for _, key := range n.CurioKeys(n.ActiveTeam) {
		c, _ := n.Curio(key)
		u.Reset = append(u.Reset, CurioReset{Curio: key, Tapped: c.Tapped, MovesTaken: c.MovesTaken})
		c.Tapped = false
		c.MovesTaken = 0
	}
	return u
}

func (n *Node) unfinishTurn(u FinishUndo) error {
	if n.Turn == 0 {
		return criticalf("undo finish turn: turn counter already 0")
	}
	for _, r := range u.Reset {
		c, ok := n.Curio(r.Curio)
		if !ok {
			return criticalf("undo finish turn: curio %s not found", r.Curio)
		}
		c.Tapped = r.Tapped
		c.MovesTaken = r.MovesTaken
	}
	n.Turn--
	n.ActiveTeam = n.ActiveTeam.Opponent()
	n.Active = u.Previous
	return nil
}
