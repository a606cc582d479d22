package engine

import (
	"fmt"
	"maps"
	"slices"
)

// Team identifies one of the two sides.
type Team uint8

const (
	TeamPlayer Team = iota
	TeamEnemy
)

// Opponent returns the other team.
func (t Team) Opponent() Team {
	if t == TeamPlayer {
		return TeamEnemy
	}
	return TeamPlayer
}

func (t Team) String() string {
	if t == TeamEnemy {
		return "enemy"
	}
	return "player"
}

// ParseTeam accepts "player" and "enemy".
func ParseTeam(s string) (Team, error) {
	switch s {
	case "player":
		return TeamPlayer, nil
	case "enemy":
		return TeamEnemy, nil
	}
	return 0, fmt.Errorf("unknown team %q", s)
}

func (t Team) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Team) UnmarshalText(text []byte) error {
	parsed, err := ParseTeam(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Controller says who drives a team.
type Controller string

const (
	Human Controller = "human"
	AI    Controller = "ai"
)

// Behavior selects the AI heuristic. Greedy is the only one.
type Behavior string

const Greedy Behavior = "greedy"

// Curio is a teamed unit occupying a chain of grid points.
type Curio struct {
	Team       Team              `json:"team"`
	Name       string            `json:"name"`
	Glyph      string            `json:"glyph,omitempty"`
	Card       string            `json:"card,omitempty"`
	Actions    []string          `json:"actions"`
	Speed      uint32            `json:"speed"`
	MovesTaken uint32            `json:"moves_taken"`
	Tapped     bool              `json:"tapped"`
	MaxSize    uint32            `json:"max_size"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// MovesLeft returns the steps the curio may still take this turn.
func (c *Curio) MovesLeft() uint32 {
	if c.MovesTaken >= c.Speed {
		return 0
	}
	return c.Speed - c.MovesTaken
}

func (c *Curio) clone() *Curio {
	out := *c
	out.Actions = slices.Clone(c.Actions)
	out.Metadata = maps.Clone(c.Metadata)
	return &out
}

// PickupKind is the class of a collectible.
type PickupKind string

const (
	Currency PickupKind = "currency"
	CardDrop PickupKind = "card"
	ItemDrop PickupKind = "item"
	PlotItem PickupKind = "plot_item"
)

// Pickup is a single-cell collectible. Amount applies to currency, ID to
// everything else.
type Pickup struct {
	Kind   PickupKind `json:"kind"`
	Amount uint32     `json:"amount,omitempty"`
	ID     string     `json:"id,omitempty"`
}

func (p Pickup) String() string {
	if p.Kind == Currency {
		return fmt.Sprintf("%d currency", p.Amount)
	}
	return fmt.Sprintf("%s %s", p.Kind, p.ID)
}

// AccessPoint is a deployment slot, optionally loaded with a card.
type AccessPoint struct {
	Team Team   `json:"team"`
	Card string `json:"card,omitempty"`
}

// Item is what a grid chain holds. Exactly one field is set.
type Item struct {
	Curio  *Curio       `json:"curio,omitempty"`
	Pickup *Pickup      `json:"pickup,omitempty"`
	Access *AccessPoint `json:"access,omitempty"`
}

func (it Item) clone() Item {
	var out Item
	if it.Curio != nil {
		out.Curio = it.Curio.clone()
	}
	if it.Pickup != nil {
		p := *it.Pickup
		out.Pickup = &p
	}
	if it.Access != nil {
		a := *it.Access
		out.Access = &a
	}
	return out
}

// Inventory collects pickups.
type Inventory struct {
	Currency  uint32   `json:"currency"`
	Cards     []string `json:"cards,omitempty"`
	Items     []string `json:"items,omitempty"`
	PlotItems []string `json:"plot_items,omitempty"`
}

// Add stores a collected pickup.
func (inv *Inventory) Add(p Pickup) {
	switch p.Kind {
	case Currency:
		inv.Currency += p.Amount
	case CardDrop:
		inv.Cards = append(inv.Cards, p.ID)
	case ItemDrop:
		inv.Items = append(inv.Items, p.ID)
	case PlotItem:
		inv.PlotItems = append(inv.PlotItems, p.ID)
	}
}

// Take reverses the most recent Add of p.
func (inv *Inventory) Take(p Pickup) bool {
	switch p.Kind {
	case Currency:
		if inv.Currency < p.Amount {
			return false
		}
		inv.Currency -= p.Amount
		return true
	case CardDrop:
		return takeLast(&inv.Cards, p.ID)
	case ItemDrop:
		return takeLast(&inv.Items, p.ID)
	case PlotItem:
		return takeLast(&inv.PlotItems, p.ID)
	}
	return false
}

func (inv *Inventory) clone() *Inventory {
	return &Inventory{
		Currency:  inv.Currency,
		Cards:     slices.Clone(inv.Cards),
		Items:     slices.Clone(inv.Items),
		PlotItems: slices.Clone(inv.PlotItems),
	}
}

func takeLast(list *[]string, id string) bool {
	for i := len(*list) - 1; i >= 0; i-- {
		if (*list)[i] == id {
			*list = slices.Delete(*list, i, i+1)
			return true
		}
	}
	return false
}
