package service

import (
	"sync"
	"time"

	"github.com/wricardo/gridtactics/game/dispatch"
	"github.com/wricardo/gridtactics/game/engine"
	"github.com/wricardo/gridtactics/game/grid"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string           `json:"id"`
	ScenarioID     string           `json:"scenario_id"`
	CreatedAt      time.Time        `json:"created_at"`
	LastAccessedAt time.Time        `json:"last_accessed_at"`
	Setup          bool             `json:"setup"`
	Events         int              `json:"events"`
	Halted         string           `json:"halted,omitempty"`
	State          *engine.Snapshot `json:"state"`
}

// CommandResult is the outcome of one command.
type CommandResult struct {
	Success   bool             `json:"success"`
	Command   dispatch.Command `json:"command"`
	Message   string           `json:"message,omitempty"`
	ErrorCode string           `json:"error_code,omitempty"` // invalid|critical|team_eliminated|halted|setup_phase|ai_timeout|error
	Applied   []dispatch.Event `json:"applied,omitempty"`
	Undone    int              `json:"undone,omitempty"`
	Halted    string           `json:"halted,omitempty"`
	AITurn    bool             `json:"ai_turn"`
	State     *engine.Snapshot `json:"state"`
}

// BulkCommandResult is the outcome of a command sequence. Execution stops
// at the first failing command.
type BulkCommandResult struct {
	Requested  int              `json:"requested"`
	Executed   int              `json:"executed"`
	Success    bool             `json:"success"`
	StoppedOn  int              `json:"stopped_on,omitempty"`  // 1-based index of the command that stopped the run
	StopReason string           `json:"stop_reason,omitempty"` // error code, or human_turn|limit for AI runs
	Message    string           `json:"message,omitempty"`
	Truncated  bool             `json:"truncated,omitempty"`
	Limit      int              `json:"limit,omitempty"`
	Applied    []dispatch.Event `json:"applied"`
	Undone     int              `json:"undone,omitempty"`
	Halted     string           `json:"halted,omitempty"`
	AITurn     bool             `json:"ai_turn"`
	State      *engine.Snapshot `json:"state"`
}

// HistoryOptions configures event history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated event history
type HistoryResponse struct {
	Events      []dispatch.Event `json:"events"`
	TotalEvents int              `json:"total_events"`
	Page        int              `json:"page"`
	PageSize    int              `json:"page_size"`
	TotalPages  int              `json:"total_pages"`
	HasNext     bool             `json:"has_next"`
	HasPrevious bool             `json:"has_previous"`
}

// Loadout is a card placed on an access point during setup. An empty
// card unloads it.
type Loadout struct {
	At   grid.Point `json:"at"`
	Card string     `json:"card,omitempty"`
}

// Session is one running game. Every field but ID and ScenarioID is
// guarded by the session lock.
type Session struct {
	ID             string
	ScenarioID     string
	Dispatcher     *dispatch.Dispatcher
	CreatedAt      time.Time
	LastAccessedAt time.Time

	// Setup is true until the access points of the scenario are deployed.
	Setup   bool
	Loadout []Loadout

	mu sync.Mutex
}

// Lock serialises access to the session and its dispatcher.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session lock.
func (s *Session) Unlock() { s.mu.Unlock() }
