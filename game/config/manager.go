package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/wricardo/gridtactics/game/action"
	"github.com/wricardo/gridtactics/game/engine"
	"github.com/wricardo/gridtactics/game/grid"
)

var (
	ErrScenarioNotFound = errors.New("scenario not found")
	ErrInvalidScenario  = errors.New("invalid scenario")
)

// DefaultScenario is loaded as the default when present.
const DefaultScenario = "skirmish"

const scenarioExt = ".yaml"

// ScenarioInfo summarises a scenario file for listings.
type ScenarioInfo struct {
	Filename    string `json:"filename"`
	ScenarioID  string `json:"scenario_id"` // The identifier to use for session creation
	Name        string `json:"name"`
	Description string `json:"description"`
	Width       uint32 `json:"width"`
	Height      uint32 `json:"height"`
	Curios      int    `json:"curios"`
}

// Manager loads scenarios from a directory and caches them. All
// scenarios share the catalog read from the definitions file.
type Manager struct {
	scenarioDir     string
	catalog         *action.Catalog
	defaultScenario *Scenario
	scenarios       map[string]*Scenario
	mu              sync.RWMutex
}

// NewManager creates a manager over scenarioDir with the catalog in
// definitionsPath.
func NewManager(scenarioDir, definitionsPath string) (*Manager, error) {
	if _, err := os.Stat(scenarioDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("scenario directory does not exist: %s", scenarioDir)
	}

	catalog, err := LoadDefinitions(definitionsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load definitions: %w", err)
	}

	m := &Manager{
		scenarioDir: scenarioDir,
		catalog:     catalog,
		scenarios:   make(map[string]*Scenario),
	}
	m.loadDefaultScenario()
	return m, nil
}

// Catalog returns the shared action catalog.
func (m *Manager) Catalog() *action.Catalog {
	return m.catalog
}

// LoadScenario loads a scenario by name. Returned scenarios are shared
// and must not be modified.
func (m *Manager) LoadScenario(name string) (*Scenario, error) {
	name = strings.TrimSuffix(name, scenarioExt)

	m.mu.RLock()
	if s, exists := m.scenarios[name]; exists {
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if s, exists := m.scenarios[name]; exists {
		return s, nil
	}

	data, err := os.ReadFile(filepath.Join(m.scenarioDir, name+scenarioExt))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrScenarioNotFound, name)
		}
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	s.ID = name
	if _, err := s.Build(m.catalog); err != nil {
		return nil, err
	}

	m.scenarios[name] = s
	return s, nil
}

// NewNode builds a fresh node for the named scenario, or the default
// one when name is empty.
func (m *Manager) NewNode(name string) (*engine.Node, *Scenario, error) {
	s := m.GetDefault()
	if name != "" && name != s.ID {
		var err error
		if s, err = m.LoadScenario(name); err != nil {
			return nil, nil, err
		}
	}
	node, err := s.Build(m.catalog)
	if err != nil {
		return nil, nil, err
	}
	return node, s, nil
}

// ListScenarios describes every loadable scenario, sorted by id.
func (m *Manager) ListScenarios() ([]*ScenarioInfo, error) {
	entries, err := os.ReadDir(m.scenarioDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var infos []*ScenarioInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), scenarioExt) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), scenarioExt)

		s, err := m.LoadScenario(id)
		if err != nil {
			// Skip invalid scenarios
			continue
		}
		shape, _ := s.Descriptor()
		b, _, _ := grid.DecodeShape(shape)

		infos = append(infos, &ScenarioInfo{
			Filename:    entry.Name(),
			ScenarioID:  id,
			Name:        s.Name,
			Description: s.Description,
			Width:       b.Width,
			Height:      b.Height,
			Curios:      len(s.Curios),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ScenarioID < infos[j].ScenarioID })
	return infos, nil
}

// GetDefault returns the default scenario.
func (m *Manager) GetDefault() *Scenario {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultScenario
}

// SetDefault sets the default scenario by name.
func (m *Manager) SetDefault(name string) error {
	s, err := m.LoadScenario(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultScenario = s
	return nil
}

// RefreshCache drops every cached scenario and reloads the default.
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	m.scenarios = make(map[string]*Scenario)
	m.mu.Unlock()

	m.loadDefaultScenario()
}

func (m *Manager) loadDefaultScenario() {
	s, err := m.LoadScenario(DefaultScenario)
	if err != nil {
		// Fall back to the first valid scenario
		infos, listErr := m.ListScenarios()
		if listErr != nil || len(infos) == 0 {
			s = createMinimalScenario()
		} else if s, err = m.LoadScenario(infos[0].ScenarioID); err != nil {
			s = createMinimalScenario()
		}
	}

	m.mu.Lock()
	m.defaultScenario = s
	m.mu.Unlock()
}

// SaveScenario validates s against the catalog and writes it to disk.
func (m *Manager) SaveScenario(name string, s *Scenario) error {
	name = strings.TrimSuffix(name, scenarioExt)
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: bad scenario name %q", ErrInvalidScenario, name)
	}
	if _, err := s.Build(m.catalog); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}
	if err := validateYAML(scenarioSchema, data); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}

	path := filepath.Join(m.scenarioDir, name+scenarioExt)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write scenario file: %w", err)
	}

	s.ID = name
	m.mu.Lock()
	m.scenarios[name] = s
	m.mu.Unlock()
	return nil
}

// createMinimalScenario is a two-scout board used when no scenario file
// can be loaded.
func createMinimalScenario() *Scenario {
	s := &Scenario{
		ID:          "default",
		Name:        "default",
		Description: "Default minimal scenario",
		Layout: []string{
			".....",
			".#.#.",
			".....",
			".#.#.",
			".....",
		},
		Curios: []CurioSpec{
			{Team: "player", Name: "Scout", Glyph: "s", Speed: 2, MaxSize: 2, Points: []grid.Point{grid.Pt(0, 0)}},
			{Team: "enemy", Name: "Scout", Glyph: "z", Speed: 2, MaxSize: 2, Points: []grid.Point{grid.Pt(4, 4)}},
		},
	}
	s.Controllers.Player = engine.Human
	s.Controllers.Enemy = engine.AI
	return s
}
