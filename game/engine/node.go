package engine

import (
	"fmt"

	"github.com/wricardo/gridtactics/game/action"
	"github.com/wricardo/gridtactics/game/grid"
)

// Node is the full mutable state of one game.
type Node struct {
	Grid        *grid.Grid[Item]
	ActiveTeam  Team
	Active      grid.Key
	Turn        uint32
	Controllers [2]Controller
	Behavior    Behavior
	Inventory   *Inventory

	// Catalog is shared between clones and never mutated after load.
	Catalog *action.Catalog
}

// NewNode creates a node with both teams under human control.
func NewNode(g *grid.Grid[Item], catalog *action.Catalog) *Node {
	if catalog == nil {
		catalog, _ = action.NewCatalog(nil, nil)
	}
	return &Node{
		Grid:        g,
		Controllers: [2]Controller{Human, Human},
		Behavior:    Greedy,
		Inventory:   &Inventory{},
		Catalog:     catalog,
	}
}

// Clone deep-copies the node. The catalog is shared.
func (n *Node) Clone() *Node {
	out := *n
	out.Grid = n.Grid.Clone(Item.clone)
	out.Inventory = n.Inventory.clone()
	return &out
}

// IsAIControlled reports whether team is driven by the AI.
func (n *Node) IsAIControlled(team Team) bool {
	return n.Controllers[team] == AI
}

// Curio resolves a key to a live curio.
func (n *Node) Curio(key grid.Key) (*Curio, bool) {
	it, ok := n.Grid.Item(key)
	if !ok || it.Curio == nil {
		return nil, false
	}
	return it.Curio, true
}

// CurioAt returns the curio owning p.
func (n *Node) CurioAt(p grid.Point) (grid.Key, *Curio, bool) {
	key, ok := n.Grid.ItemKeyAt(p)
	if !ok {
		return grid.Key{}, nil, false
	}
	c, ok := n.Curio(key)
	return key, c, ok
}

// ActiveCurio returns the active curio, if any.
func (n *Node) ActiveCurio() (grid.Key, *Curio, bool) {
	if n.Active.IsZero() {
		return grid.Key{}, nil, false
	}
	c, ok := n.Curio(n.Active)
	return n.Active, c, ok
}

// CurioKeys lists the live curios of team in key order.
func (n *Node) CurioKeys(team Team) []grid.Key {
	return n.Grid.FilteredKeys(func(_ grid.Key, it Item) bool {
		return it.Curio != nil && it.Curio.Team == team
	})
}

// UntappedKeys lists the curios of team that may still be activated.
func (n *Node) UntappedKeys(team Team) []grid.Key {
	return n.Grid.FilteredKeys(func(_ grid.Key, it Item) bool {
		return it.Curio != nil && it.Curio.Team == team && !it.Curio.Tapped
	})
}

// Eliminated reports whether either team has no curios left.
func (n *Node) Eliminated() (Team, bool) {
	for _, team := range []Team{TeamPlayer, TeamEnemy} {
		if len(n.CurioKeys(team)) == 0 {
			return team, true
		}
	}
	return 0, false
}

// AddCurio places a curio on points, head first. Setup only; not undoable.
func (n *Node) AddCurio(points []grid.Point, c Curio) (grid.Key, error) {
	if len(points) == 0 {
		return grid.Key{}, invalidf("curio %q has no points", c.Name)
	}
	if c.MaxSize == 0 {
		return grid.Key{}, invalidf("curio %q has max_size 0", c.Name)
	}
	if uint32(len(points)) > c.MaxSize {
		return grid.Key{}, invalidf("curio %q has %d points, max_size %d", c.Name, len(points), c.MaxSize)
	}
	for _, id := range c.Actions {
		if _, err := n.Catalog.Action(id); err != nil {
			return grid.Key{}, invalidf("curio %q: %v", c.Name, err)
		}
	}
	key, ok := n.Grid.PutItem(points[len(points)-1], Item{Curio: c.clone()})
	if !ok {
		return grid.Key{}, invalidf("curio %q: square %s is not free", c.Name, points[len(points)-1])
	}
	for i := len(points) - 2; i >= 0; i-- {
		if !n.Grid.PushFront(points[i], key) {
			n.Grid.Remove(key)
			return grid.Key{}, invalidf("curio %q: cannot extend to %s", c.Name, points[i])
		}
	}
	return key, nil
}

// CurioFromCard builds an untouched curio from a card definition.
func CurioFromCard(team Team, card *action.CardDef) Curio {
	return Curio{
		Team:    team,
		Name:    card.Name,
		Glyph:   card.Glyph,
		Card:    card.ID,
		Actions: card.Actions,
		Speed:   card.Speed,
		MaxSize: card.MaxSize,
	}
}

// AddPickup places a collectible.
func (n *Node) AddPickup(p grid.Point, pickup Pickup) (grid.Key, error) {
	key, ok := n.Grid.PutItem(p, Item{Pickup: &pickup})
	if !ok {
		return grid.Key{}, invalidf("pickup: square %s is not free", p)
	}
	return key, nil
}

// AddAccessPoint places an empty deployment slot for team.
func (n *Node) AddAccessPoint(p grid.Point, team Team) (grid.Key, error) {
	key, ok := n.Grid.PutItem(p, Item{Access: &AccessPoint{Team: team}})
	if !ok {
		return grid.Key{}, invalidf("access point: square %s is not free", p)
	}
	return key, nil
}

// LoadAccessPoint binds a card to an access point.
func (n *Node) LoadAccessPoint(key grid.Key, cardID string) error {
	ap, err := n.accessPoint(key)
	if err != nil {
		return err
	}
	if _, err := n.Catalog.Card(cardID); err != nil {
		return invalidf("%v", err)
	}
	ap.Card = cardID
	return nil
}

// UnloadAccessPoint clears the card of an access point.
func (n *Node) UnloadAccessPoint(key grid.Key) error {
	ap, err := n.accessPoint(key)
	if err != nil {
		return err
	}
	ap.Card = ""
	return nil
}

// Deploy ends the setup phase: loaded access points become curios and
// empty ones are removed. It returns the keys of the deployed curios.
func (n *Node) Deploy() ([]grid.Key, error) {
	var deployed []grid.Key
	for _, e := range n.Grid.Entries() {
		ap := e.Value.Access
		if ap == nil {
			continue
		}
		points := n.Grid.Remove(e.Key)
		if ap.Card == "" {
			continue
		}
		card, err := n.Catalog.Card(ap.Card)
		if err != nil {
			return deployed, invalidf("%v", err)
		}
		key, err := n.AddCurio(points[:1], CurioFromCard(ap.Team, card))
		if err != nil {
			return deployed, fmt.Errorf("deploy %s: %w", ap.Card, err)
		}
		deployed = append(deployed, key)
	}
	return deployed, nil
}

func (n *Node) accessPoint(key grid.Key) (*AccessPoint, error) {
	it, ok := n.Grid.Item(key)
	if !ok || it.Access == nil {
		return nil, invalidf("no access point %s", key)
	}
	return it.Access, nil
}
