package engine

import (
	"strings"

	"github.com/wricardo/gridtactics/game/grid"
)

// CurioView is a curio with its key and chain, head first.
type CurioView struct {
	Key    grid.Key     `json:"key"`
	Curio  Curio        `json:"curio"`
	Points []grid.Point `json:"points"`
}

// PickupView is a pickup on the grid.
type PickupView struct {
	Key    grid.Key   `json:"key"`
	Point  grid.Point `json:"point"`
	Pickup Pickup     `json:"pickup"`
}

// AccessView is an access point on the grid.
type AccessView struct {
	Key    grid.Key    `json:"key"`
	Point  grid.Point  `json:"point"`
	Access AccessPoint `json:"access"`
}

// Snapshot is a read-only copy of a node for transports and observers.
type Snapshot struct {
	Bounds       grid.Bounds         `json:"bounds"`
	Closed       []grid.Point        `json:"closed,omitempty"`
	Turn         uint32              `json:"turn"`
	ActiveTeam   Team                `json:"active_team"`
	Active       grid.Key            `json:"active"`
	Controllers  map[Team]Controller `json:"controllers"`
	Curios       []CurioView         `json:"curios"`
	Pickups      []PickupView        `json:"pickups,omitempty"`
	AccessPoints []AccessView        `json:"access_points,omitempty"`
	Inventory    Inventory           `json:"inventory"`
	Board        []string            `json:"board"`
}

// Snapshot captures the node.
func (n *Node) Snapshot() Snapshot {
	s := Snapshot{
		Bounds:     n.Grid.Bounds(),
		Closed:     n.Grid.ClosedPoints(),
		Turn:       n.Turn,
		ActiveTeam: n.ActiveTeam,
		Active:     n.Active,
		Controllers: map[Team]Controller{
			TeamPlayer: n.Controllers[TeamPlayer],
			TeamEnemy:  n.Controllers[TeamEnemy],
		},
		Inventory: *n.Inventory.clone(),
		Board:     n.Render(),
	}
	for _, e := range n.Grid.Entries() {
		points := n.Grid.Points(e.Key)
		switch {
		case e.Value.Curio != nil:
			s.Curios = append(s.Curios, CurioView{Key: e.Key, Curio: *e.Value.Curio.clone(), Points: points})
		case e.Value.Pickup != nil:
			s.Pickups = append(s.Pickups, PickupView{Key: e.Key, Point: points[0], Pickup: *e.Value.Pickup})
		case e.Value.Access != nil:
			s.AccessPoints = append(s.AccessPoints, AccessView{Key: e.Key, Point: points[0], Access: *e.Value.Access})
		}
	}
	return s
}

// Render draws the board one string per row: '#' closed, '.' free, '$'
// pickup, '@' access point. Curio heads use their glyph in upper case and
// body cells in lower case.
func (n *Node) Render() []string {
	b := n.Grid.Bounds()
	rows := make([]string, 0, b.Height)
	for r := uint32(0); r < b.Height; r++ {
		var sb strings.Builder
		for c := uint32(0); c < b.Width; c++ {
			sb.WriteByte(n.glyphAt(grid.Pt(r, c)))
		}
		rows = append(rows, sb.String())
	}
	return rows
}

func (n *Node) glyphAt(p grid.Point) byte {
	if n.Grid.SquareIsClosed(p) {
		return '#'
	}
	key, ok := n.Grid.ItemKeyAt(p)
	if !ok {
		return '.'
	}
	it, _ := n.Grid.Item(key)
	switch {
	case it.Pickup != nil:
		return '$'
	case it.Access != nil:
		return '@'
	}
	g := byte('?')
	if it.Curio.Glyph != "" {
		g = it.Curio.Glyph[0]
	} else if it.Curio.Name != "" {
		g = it.Curio.Name[0]
	}
	if head, _ := n.Grid.Head(key); head == p {
		return upper(g)
	}
	return lower(g)
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b - 'A' + 'a'
	}
	return b
}
