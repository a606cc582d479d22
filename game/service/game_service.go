package service

import (
	"context"

	"github.com/wricardo/gridtactics/game/config"
	"github.com/wricardo/gridtactics/game/dispatch"
	"github.com/wricardo/gridtactics/game/engine"
	"github.com/wricardo/gridtactics/game/grid"
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, scenarioID string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Setup
	LoadAccessPoint(ctx context.Context, sessionID string, at grid.Point, card string) (*engine.Snapshot, error)
	Deploy(ctx context.Context, sessionID string) (*engine.Snapshot, error)

	// Game Operations
	Command(ctx context.Context, sessionID string, cmd dispatch.Command) (*CommandResult, error)
	BulkCommand(ctx context.Context, sessionID string, cmds []dispatch.Command) (*BulkCommandResult, error)
	AdvanceAI(ctx context.Context, sessionID string, limit int) (*BulkCommandResult, error)
	Reset(ctx context.Context, sessionID string) (*engine.Snapshot, error)

	// Game State
	GetGameState(ctx context.Context, sessionID string) (*engine.Snapshot, error)
	GetHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Scenarios
	ListScenarios(ctx context.Context) ([]*config.ScenarioInfo, error)
	LoadScenario(ctx context.Context, scenarioID string) (*config.Scenario, error)
	SaveScenario(ctx context.Context, scenarioID string, scenario *config.Scenario) error
}

// SessionManager defines session storage operations. Methods taking a
// *Session expect the caller to hold its lock.
type SessionManager interface {
	Create(id, scenarioID string) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id, scenarioID string) (*Session, error)
	List() []*Session
	Delete(id string) error
	Touch(session *Session)
	Rebuild(session *Session) error
	Save(session *Session) error
}

// ScenarioSaver is implemented by scenario managers that can store new
// scenarios.
type ScenarioSaver interface {
	SaveScenario(name string, scenario *config.Scenario) error
}

// ScenarioManager handles scenario loading
type ScenarioManager interface {
	LoadScenario(name string) (*config.Scenario, error)
	ListScenarios() ([]*config.ScenarioInfo, error)
	GetDefault() *config.Scenario
	NewNode(name string) (*engine.Node, *config.Scenario, error)
}
