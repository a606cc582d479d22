package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wricardo/gridtactics/game/action"
)

// Definitions is the on-disk form of an action catalog.
type Definitions struct {
	Actions []action.Def     `yaml:"actions"`
	Cards   []action.CardDef `yaml:"cards"`
}

// ParseDefinitions validates and decodes a definitions document.
func ParseDefinitions(data []byte) (*action.Catalog, error) {
	if err := validateYAML(definitionsSchema, data); err != nil {
		return nil, fmt.Errorf("%w: definitions: %v", ErrInvalidScenario, err)
	}
	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("%w: definitions: %v", ErrInvalidScenario, err)
	}
	catalog, err := action.NewCatalog(defs.Actions, defs.Cards)
	if err != nil {
		return nil, fmt.Errorf("%w: definitions: %v", ErrInvalidScenario, err)
	}
	return catalog, nil
}

// LoadDefinitions reads a definitions file.
func LoadDefinitions(path string) (*action.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions file: %w", err)
	}
	return ParseDefinitions(data)
}
