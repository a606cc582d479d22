package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/gridtactics/game/dispatch"
	"github.com/wricardo/gridtactics/game/engine"
	"github.com/wricardo/gridtactics/game/grid"
	"github.com/wricardo/gridtactics/game/service"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

// Hook is called with every session whose dispatcher was just built,
// before the session is handed out. It runs with the session locked.
type Hook func(s *service.Session)

// Manager handles game session lifecycle
type Manager struct {
	sessions    map[string]*service.Session
	scenarios   service.ScenarioManager
	persistence SessionPersistence
	settings    dispatch.Settings
	logger      *zap.Logger
	hooks       []Hook
	mu          sync.RWMutex
}

// NewManager creates a new session manager
func NewManager(scenarios service.ScenarioManager, settings dispatch.Settings, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions:  make(map[string]*service.Session),
		scenarios: scenarios,
		settings:  settings,
		logger:    logger,
	}
}

// NewManagerWithPersistence creates a new session manager with persistence
func NewManagerWithPersistence(scenarios service.ScenarioManager, settings dispatch.Settings, logger *zap.Logger, persistence SessionPersistence) *Manager {
	m := NewManager(scenarios, settings, logger)
	m.persistence = persistence
	return m
}

// OnSession registers a hook. Hooks are not applied to sessions that
// already exist.
func (m *Manager) OnSession(h Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, h)
}

// Create creates a new session with the given ID from a scenario. An
// empty scenario ID selects the default scenario.
func (m *Manager) Create(id, scenarioID string) (*service.Session, error) {
	if id == "" {
		id = m.generateSessionID()
	} else if strings.ContainsAny(id, `/\. `) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}

	node, scenario, err := m.scenarios.NewNode(scenarioID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &service.Session{
		ID:             id,
		ScenarioID:     scenario.ID,
		CreatedAt:      now,
		LastAccessedAt: now,
		Setup:          hasAccessPoints(node),
	}
	session.Dispatcher = dispatch.New(node, m.settings, m.logger.With(zap.String("session", id)))
	session.Lock()
	defer session.Unlock()

	m.mu.Lock()
	// Check if session already exists (case-insensitive)
	if m.sessionExists(id) {
		m.mu.Unlock()
		session.Dispatcher.Close()
		return nil, ErrSessionAlreadyExists
	}
	m.sessions[strings.ToLower(id)] = session
	hooks := m.hooks
	m.mu.Unlock()

	m.runHooks(session, hooks)

	// Auto-save if persistence is enabled
	if err := m.Save(session); err != nil {
		m.logger.Warn("failed to persist session", zap.String("session", id), zap.Error(err))
	}

	m.logger.Info("session created", zap.String("session", id), zap.String("scenario", session.ScenarioID))
	return session, nil
}

// Get retrieves a session by ID (case-insensitive)
func (m *Manager) Get(id string) (*service.Session, error) {
	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()

	if exists {
		return session, nil
	}

	// Try loading from persistence if not in memory
	if m.persistence != nil && m.persistence.Exists(id) {
		data, err := m.persistence.Load(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load persisted session: %w", err)
		}
		session, err := m.restore(data)
		if err != nil {
			return nil, fmt.Errorf("failed to restore session %s: %w", id, err)
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		// Another caller may have restored it meanwhile
		if existing, ok := m.sessions[strings.ToLower(id)]; ok {
			session.Dispatcher.Close()
			return existing, nil
		}
		m.sessions[strings.ToLower(id)] = session
		return session, nil
	}

	return nil, ErrSessionNotFound
}

// GetOrCreate gets an existing session or creates a new one
func (m *Manager) GetOrCreate(id, scenarioID string) (*service.Session, error) {
	session, err := m.Get(id)
	if err == nil {
		return session, nil
	}

	if errors.Is(err, ErrSessionNotFound) {
		return m.Create(id, scenarioID)
	}

	return nil, err
}

// List returns all active sessions
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}

	return result
}

// Delete removes a session from memory and storage.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	session, inMemory := m.sessions[strings.ToLower(id)]
	delete(m.sessions, strings.ToLower(id))
	m.mu.Unlock()

	if inMemory {
		session.Lock()
		session.Dispatcher.Close()
		session.Unlock()
	}

	if m.persistence != nil && m.persistence.Exists(id) {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
		return nil
	}

	if !inMemory {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteFromMemory removes a session from memory only (not from persistence)
func (m *Manager) DeleteFromMemory(id string) error {
	m.mu.Lock()
	session, exists := m.sessions[strings.ToLower(id)]
	delete(m.sessions, strings.ToLower(id))
	m.mu.Unlock()

	if !exists {
		return ErrSessionNotFound
	}
	session.Lock()
	session.Dispatcher.Close()
	session.Unlock()
	return nil
}

// Touch updates the last accessed time of a locked session.
func (m *Manager) Touch(session *service.Session) {
	session.LastAccessedAt = time.Now()
}

// Rebuild replaces the dispatcher of a locked session with a fresh one
// built from its scenario. The event log and loadout are discarded.
func (m *Manager) Rebuild(session *service.Session) error {
	node, _, err := m.scenarios.NewNode(session.ScenarioID)
	if err != nil {
		return err
	}
	session.Dispatcher.Close()
	session.Dispatcher = dispatch.New(node, m.settings, m.logger.With(zap.String("session", session.ID)))
	session.Setup = hasAccessPoints(node)
	session.Loadout = nil

	m.mu.RLock()
	hooks := m.hooks
	m.mu.RUnlock()
	m.runHooks(session, hooks)
	return nil
}

// Save writes a locked session to persistence.
func (m *Manager) Save(session *service.Session) error {
	if m.persistence == nil {
		return nil // No persistence configured
	}
	return m.persistence.Save(persistedData(session))
}

// CleanupExpiredSessions removes sessions that haven't been accessed in
// the given duration from memory. Persisted copies stay on disk.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	var expired []string
	for _, session := range m.List() {
		session.Lock()
		if session.LastAccessedAt.Before(cutoff) {
			expired = append(expired, session.ID)
		}
		session.Unlock()
	}

	removed := 0
	for _, id := range expired {
		if err := m.DeleteFromMemory(id); err == nil {
			removed++
		}
	}
	return removed
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// generateSessionID generates a random 4-character session ID
func (m *Manager) generateSessionID() string {
	// Generate 2 random bytes (4 hex characters)
	bytes := make([]byte, 2)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// sessionExists checks if a session exists (case-insensitive)
func (m *Manager) sessionExists(id string) bool {
	_, exists := m.sessions[strings.ToLower(id)]
	return exists
}

// restore rebuilds a session by replaying its loadout and event log over
// a fresh scenario node.
func (m *Manager) restore(data *PersistedSessionData) (*service.Session, error) {
	node, scenario, err := m.scenarios.NewNode(data.ScenarioID)
	if err != nil {
		return nil, err
	}

	for _, l := range data.Loadout {
		key, ok := node.Grid.ItemKeyAt(l.At)
		if !ok {
			return nil, fmt.Errorf("%w: loadout: no access point at %s", engine.ErrDecode, l.At)
		}
		if l.Card == "" {
			err = node.UnloadAccessPoint(key)
		} else {
			err = node.LoadAccessPoint(key, l.Card)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: loadout: %v", engine.ErrDecode, err)
		}
	}
	if !data.Setup && hasAccessPoints(node) {
		if _, err := node.Deploy(); err != nil {
			return nil, fmt.Errorf("%w: deploy: %v", engine.ErrDecode, err)
		}
	}

	d := dispatch.New(node, m.settings, m.logger.With(zap.String("session", data.ID)))
	if err := d.Replay(data.Events); err != nil {
		d.Close()
		return nil, err
	}

	session := &service.Session{
		ID:             data.ID,
		ScenarioID:     scenario.ID,
		Dispatcher:     d,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
		Setup:          data.Setup,
		Loadout:        data.Loadout,
	}

	m.mu.RLock()
	hooks := m.hooks
	m.mu.RUnlock()
	session.Lock()
	m.runHooks(session, hooks)
	session.Unlock()

	m.logger.Info("session restored",
		zap.String("session", data.ID),
		zap.String("scenario", session.ScenarioID),
		zap.Int("events", len(data.Events)),
	)
	return session, nil
}

func (m *Manager) runHooks(session *service.Session, hooks []Hook) {
	for _, h := range hooks {
		h(session)
	}
}

// LoadPersistedSessions loads all persisted sessions into memory
func (m *Manager) LoadPersistedSessions() error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	sessionIDs, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	loaded := 0
	for _, id := range sessionIDs {
		m.mu.RLock()
		exists := m.sessionExists(id)
		m.mu.RUnlock()
		if exists {
			continue
		}

		if _, err := m.Get(id); err != nil {
			m.logger.Warn("failed to load persisted session", zap.String("session", id), zap.Error(err))
			continue
		}
		loaded++
	}

	if loaded > 0 {
		m.logger.Info("loaded persisted sessions", zap.Int("count", loaded))
	}
	return nil
}

// SaveAllSessions saves all in-memory sessions to persistence
func (m *Manager) SaveAllSessions() error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	errorCount := 0
	for _, session := range m.List() {
		session.Lock()
		err := m.Save(session)
		session.Unlock()
		if err != nil {
			m.logger.Warn("failed to save session", zap.String("session", session.ID), zap.Error(err))
			errorCount++
		}
	}

	if errorCount > 0 {
		return fmt.Errorf("failed to save %d sessions", errorCount)
	}
	return nil
}

// Close stops every AI worker.
func (m *Manager) Close() {
	for _, session := range m.List() {
		session.Lock()
		session.Dispatcher.Close()
		session.Unlock()
	}
}

func hasAccessPoints(node *engine.Node) bool {
	return len(node.Grid.FilteredKeys(func(_ grid.Key, it engine.Item) bool {
		return it.Access != nil
	})) > 0
}
