package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/wricardo/gridtactics/game/action"
	"github.com/wricardo/gridtactics/game/engine"
	"github.com/wricardo/gridtactics/game/grid"
)

// Scenario is a starting position: board shape, controllers and the
// curios, pickups and access points placed on it.
type Scenario struct {
	// ID is the file name the scenario was loaded from.
	ID          string `yaml:"-" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Either Shape (a shape descriptor) or Layout ('.' open, '#' closed).
	Shape  string   `yaml:"shape,omitempty" json:"shape,omitempty"`
	Layout []string `yaml:"layout,omitempty" json:"layout,omitempty"`

	First       string          `yaml:"first,omitempty" json:"first,omitempty"`
	Behavior    engine.Behavior `yaml:"behavior,omitempty" json:"behavior,omitempty"`
	Controllers struct {
		Player engine.Controller `yaml:"player,omitempty" json:"player,omitempty"`
		Enemy  engine.Controller `yaml:"enemy,omitempty" json:"enemy,omitempty"`
	} `yaml:"controllers" json:"controllers"`

	Curios       []CurioSpec  `yaml:"curios,omitempty" json:"curios,omitempty"`
	Pickups      []PickupSpec `yaml:"pickups,omitempty" json:"pickups,omitempty"`
	AccessPoints []AccessSpec `yaml:"access_points,omitempty" json:"access_points,omitempty"`
}

// CurioSpec places a curio. Fields left empty are taken from Card.
type CurioSpec struct {
	Team    string       `yaml:"team" json:"team"`
	Card    string       `yaml:"card,omitempty" json:"card,omitempty"`
	Name    string       `yaml:"name,omitempty" json:"name,omitempty"`
	Glyph   string       `yaml:"glyph,omitempty" json:"glyph,omitempty"`
	Speed   uint32       `yaml:"speed,omitempty" json:"speed,omitempty"`
	MaxSize uint32       `yaml:"max_size,omitempty" json:"max_size,omitempty"`
	Actions []string     `yaml:"actions,omitempty" json:"actions,omitempty"`
	Points  []grid.Point `yaml:"points" json:"points"` // head first
}

type PickupSpec struct {
	At     grid.Point        `yaml:"at" json:"at"`
	Kind   engine.PickupKind `yaml:"kind" json:"kind"`
	Amount uint32            `yaml:"amount,omitempty" json:"amount,omitempty"`
	ID     string            `yaml:"id,omitempty" json:"id,omitempty"`
}

type AccessSpec struct {
	At   grid.Point `yaml:"at" json:"at"`
	Team string     `yaml:"team" json:"team"`
	Card string     `yaml:"card,omitempty" json:"card,omitempty"`
}

// ParseScenario validates and decodes a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	if err := validateYAML(scenarioSchema, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	if _, err := s.Descriptor(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Descriptor returns the shape descriptor of the board.
func (s *Scenario) Descriptor() (string, error) {
	if s.Shape == "" {
		return LayoutShape(s.Layout)
	}
	if _, _, err := grid.DecodeShape(s.Shape); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	return s.Shape, nil
}

// LayoutShape turns layout rows into a shape descriptor.
func LayoutShape(layout []string) (string, error) {
	if len(layout) == 0 {
		return "", fmt.Errorf("%w: empty layout", ErrInvalidScenario)
	}
	b := grid.Bounds{Width: uint32(len(layout[0])), Height: uint32(len(layout))}
	open := make([]bool, 0, b.Area())
	for row, line := range layout {
		if uint32(len(line)) != b.Width {
			return "", fmt.Errorf("%w: layout row %d has width %d, expected %d", ErrInvalidScenario, row, len(line), b.Width)
		}
		for col, ch := range line {
			switch ch {
			case '.':
				open = append(open, true)
			case '#':
				open = append(open, false)
			default:
				return "", fmt.Errorf("%w: layout row %d col %d: unknown cell %q", ErrInvalidScenario, row, col, ch)
			}
		}
	}
	return grid.EncodeShape(b, open), nil
}

// Build creates the starting node of the scenario. Access points are
// placed but not deployed; call Deploy on the node to start play.
func (s *Scenario) Build(catalog *action.Catalog) (*engine.Node, error) {
	shape, err := s.Descriptor()
	if err != nil {
		return nil, err
	}
	g, err := grid.FromShape[engine.Item](shape)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	node := engine.NewNode(g, catalog)

	if s.Controllers.Player != "" {
		node.Controllers[engine.TeamPlayer] = s.Controllers.Player
	}
	if s.Controllers.Enemy != "" {
		node.Controllers[engine.TeamEnemy] = s.Controllers.Enemy
	}
	if s.Behavior != "" {
		node.Behavior = s.Behavior
	}
	if s.First != "" {
		if node.ActiveTeam, err = engine.ParseTeam(s.First); err != nil {
			return nil, fmt.Errorf("%w: first: %v", ErrInvalidScenario, err)
		}
	}

	for i, spec := range s.Curios {
		c, err := spec.curio(catalog)
		if err != nil {
			return nil, fmt.Errorf("%w: curio %d: %v", ErrInvalidScenario, i, err)
		}
		if _, err := node.AddCurio(spec.Points, c); err != nil {
			return nil, fmt.Errorf("%w: curio %d: %v", ErrInvalidScenario, i, err)
		}
	}
	for i, spec := range s.Pickups {
		p := engine.Pickup{Kind: spec.Kind, Amount: spec.Amount, ID: spec.ID}
		if _, err := node.AddPickup(spec.At, p); err != nil {
			return nil, fmt.Errorf("%w: pickup %d: %v", ErrInvalidScenario, i, err)
		}
	}
	for i, spec := range s.AccessPoints {
		team, err := engine.ParseTeam(spec.Team)
		if err != nil {
			return nil, fmt.Errorf("%w: access point %d: %v", ErrInvalidScenario, i, err)
		}
		key, err := node.AddAccessPoint(spec.At, team)
		if err != nil {
			return nil, fmt.Errorf("%w: access point %d: %v", ErrInvalidScenario, i, err)
		}
		if spec.Card == "" {
			continue
		}
		if err := node.LoadAccessPoint(key, spec.Card); err != nil {
			return nil, fmt.Errorf("%w: access point %d: %v", ErrInvalidScenario, i, err)
		}
	}
	return node, nil
}

func (spec CurioSpec) curio(catalog *action.Catalog) (engine.Curio, error) {
	team, err := engine.ParseTeam(spec.Team)
	if err != nil {
		return engine.Curio{}, err
	}
	c := engine.Curio{Team: team}
	if spec.Card != "" {
		card, err := catalog.Card(spec.Card)
		if err != nil {
			return engine.Curio{}, err
		}
		c = engine.CurioFromCard(team, card)
	}
	if spec.Name != "" {
		c.Name = spec.Name
	}
	if spec.Glyph != "" {
		c.Glyph = spec.Glyph
	}
	if spec.Speed != 0 {
		c.Speed = spec.Speed
	}
	if spec.MaxSize != 0 {
		c.MaxSize = spec.MaxSize
	}
	if spec.Actions != nil {
		c.Actions = spec.Actions
	}
	return c, nil
}
