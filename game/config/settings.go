package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/wricardo/gridtactics/game/dispatch"
)

// Settings are the runtime knobs read from the environment.
type Settings struct {
	ScenarioDir     string        `env:"GRIDTACTICS_SCENARIO_DIR" envDefault:"scenarios"`
	DefinitionsFile string        `env:"GRIDTACTICS_DEFINITIONS" envDefault:"scenarios/definitions.yaml"`
	SessionDir      string        `env:"GRIDTACTICS_SESSION_DIR" envDefault:"sessions"`
	JournalDir      string        `env:"GRIDTACTICS_JOURNAL_DIR"`
	IndexDB         string        `env:"GRIDTACTICS_INDEX_DB"`
	AITimeout       time.Duration `env:"GRIDTACTICS_AI_TIMEOUT" envDefault:"5s"`
	WorkerBuffer    int           `env:"GRIDTACTICS_WORKER_BUFFER" envDefault:"16"`
	HaltOnCritical  bool          `env:"GRIDTACTICS_HALT_ON_CRITICAL" envDefault:"false"`
}

// LoadSettings parses Settings from the process environment.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	if s.WorkerBuffer < 0 {
		return Settings{}, fmt.Errorf("parse env: GRIDTACTICS_WORKER_BUFFER must not be negative, got %d", s.WorkerBuffer)
	}
	return s, nil
}

// Dispatch returns the dispatcher settings.
func (s Settings) Dispatch() dispatch.Settings {
	return dispatch.Settings{
		AITimeout:      s.AITimeout,
		WorkerBuffer:   s.WorkerBuffer,
		HaltOnCritical: s.HaltOnCritical,
	}
}
