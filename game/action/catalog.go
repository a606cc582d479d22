package action

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrUnknownCard   = errors.New("unknown card")
	ErrInvalidDef    = errors.New("invalid definition")
)

// Catalog resolves action and card ids to their definitions.
type Catalog struct {
	Actions map[string]*Def
	Cards   map[string]*CardDef
}

// NewCatalog indexes defs by id after validating each of them.
func NewCatalog(actions []Def, cards []CardDef) (*Catalog, error) {
	c := &Catalog{
		Actions: make(map[string]*Def, len(actions)),
		Cards:   make(map[string]*CardDef, len(cards)),
	}
	for i := range actions {
		def := actions[i]
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.Actions[def.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate action id %q", ErrInvalidDef, def.ID)
		}
		c.Actions[def.ID] = &def
	}
	for i := range cards {
		card := cards[i]
		if card.ID == "" {
			return nil, fmt.Errorf("%w: card without id", ErrInvalidDef)
		}
		if _, dup := c.Cards[card.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate card id %q", ErrInvalidDef, card.ID)
		}
		for _, id := range card.Actions {
			if _, ok := c.Actions[id]; !ok {
				return nil, fmt.Errorf("card %q: %w %q", card.ID, ErrUnknownAction, id)
			}
		}
		c.Cards[card.ID] = &card
	}
	return c, nil
}

// Action looks up an action definition.
func (c *Catalog) Action(id string) (*Def, error) {
	def, ok := c.Actions[id]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownAction, id)
	}
	return def, nil
}

// Card looks up a card definition.
func (c *Catalog) Card(id string) (*CardDef, error) {
	card, ok := c.Cards[id]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownCard, id)
	}
	return card, nil
}

// ActionIDs lists action ids in sorted order.
func (c *Catalog) ActionIDs() []string {
	ids := make([]string, 0, len(c.Actions))
	for id := range c.Actions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks the parts of a definition the engine relies on.
func (d *Def) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: action without id", ErrInvalidDef)
	}
	switch d.Genre {
	case Attack, Support:
	default:
		return fmt.Errorf("%w: action %q has genre %q", ErrInvalidDef, d.ID, d.Genre)
	}
	switch d.Targets {
	case TargetAlly, TargetEnemy, TargetSelf, TargetAny:
	default:
		return fmt.Errorf("%w: action %q targets %q", ErrInvalidDef, d.ID, d.Targets)
	}
	switch d.Effect.Kind {
	case DealDamage, IncreaseMaxSize, IncreaseSpeed, DecreaseSpeed, DecreaseMaxSize:
	default:
		return fmt.Errorf("%w: action %q has effect %q", ErrInvalidDef, d.ID, d.Effect.Kind)
	}
	if r := d.Range; r != nil {
		switch r.Shape {
		case Diamond, Square, Circle:
		default:
			return fmt.Errorf("%w: action %q has range shape %q", ErrInvalidDef, d.ID, r.Shape)
		}
		if r.Min > r.Max {
			return fmt.Errorf("%w: action %q range min %d exceeds max %d", ErrInvalidDef, d.ID, r.Min, r.Max)
		}
	}
	for _, c := range d.Conditions {
		if c.Subject != SubjectSelf && c.Subject != SubjectTarget {
			return fmt.Errorf("%w: action %q condition subject %q", ErrInvalidDef, d.ID, c.Subject)
		}
		if c.MaxSize != 0 && c.MinSize > c.MaxSize {
			return fmt.Errorf("%w: action %q condition size range %d..%d", ErrInvalidDef, d.ID, c.MinSize, c.MaxSize)
		}
	}
	return nil
}
