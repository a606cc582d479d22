package session

import (
	"time"

	"github.com/wricardo/gridtactics/game/dispatch"
	"github.com/wricardo/gridtactics/game/service"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// Save persists a session to storage
	Save(data *PersistedSessionData) error

	// Load retrieves a session from storage by ID
	Load(id string) (*PersistedSessionData, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData is the stored form of a session. The node is not
// stored; it is rebuilt from the scenario and the event log.
type PersistedSessionData struct {
	ID             string            `json:"id"`
	ScenarioID     string            `json:"scenario_id"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	Setup          bool              `json:"setup"`
	Loadout        []service.Loadout `json:"loadout,omitempty"`
	Events         []dispatch.Event  `json:"events"`
}

func persistedData(s *service.Session) *PersistedSessionData {
	return &PersistedSessionData{
		ID:             s.ID,
		ScenarioID:     s.ScenarioID,
		CreatedAt:      s.CreatedAt,
		LastAccessedAt: s.LastAccessedAt,
		Setup:          s.Setup,
		Loadout:        s.Loadout,
		Events:         s.Dispatcher.Events(),
	}
}
