package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/wricardo/gridtactics/game/config"
	"github.com/wricardo/gridtactics/game/dispatch"
	"github.com/wricardo/gridtactics/game/engine"
	"github.com/wricardo/gridtactics/game/grid"
	"github.com/wricardo/gridtactics/game/service"
	"github.com/wricardo/gridtactics/game/session"
	"github.com/wricardo/gridtactics/transport/websocket"
)

// maxScenarioBytes bounds an uploaded scenario.
const maxScenarioBytes = 1 << 20

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
	logger  *zap.Logger
}

// NewServer creates a new API server. hub may be nil.
func NewServer(gameService service.GameService, hub *websocket.Hub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
		logger:  logger,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// Setup
	api.HandleFunc("/sessions/{id}/loadout", s.handleLoadout).Methods("POST")
	api.HandleFunc("/sessions/{id}/deploy", s.handleDeploy).Methods("POST")

	// Game operations
	api.HandleFunc("/sessions/{id}/state", s.handleGetGameState).Methods("GET")
	api.HandleFunc("/sessions/{id}/commands", s.handleCommand).Methods("POST")
	api.HandleFunc("/sessions/{id}/bulk-commands", s.handleBulkCommand).Methods("POST")
	api.HandleFunc("/sessions/{id}/ai", s.handleAdvanceAI).Methods("POST")
	api.HandleFunc("/sessions/{id}/reset", s.handleReset).Methods("POST")
	api.HandleFunc("/sessions/{id}/history", s.handleGetHistory).Methods("GET")

	// Scenarios
	api.HandleFunc("/scenarios", s.handleListScenarios).Methods("GET")
	api.HandleFunc("/scenarios", s.handleCreateScenario).Methods("POST")
	api.HandleFunc("/scenarios/{name}", s.handleGetScenario).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, config.ErrScenarioNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidSessionID), errors.Is(err, config.ErrInvalidScenario), errors.Is(err, engine.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrSetupPhase):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	respondError(w, status, err.Error())
}

func (s *Server) broadcast(sessionID string, state *engine.Snapshot) {
	if s.hub != nil {
		s.hub.BroadcastToSession(sessionID, state)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id,omitempty"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	info, err := s.service.CreateSession(r.Context(), req.ScenarioID)
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}

	query := r.URL.Query()
	sortBy := query.Get("sort")    // "created", "accessed" (default)
	order := query.Get("order")    // "asc", "desc" (default: "desc")
	limitStr := query.Get("limit") // number of sessions to return
	scenario := query.Get("scenario")

	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	if scenario != "" {
		filtered := sessions[:0]
		for _, info := range sessions {
			if info.ScenarioID == scenario {
				filtered = append(filtered, info)
			}
		}
		sessions = filtered
	}
	total := len(sessions)

	sort.Slice(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		} else {
			ti, tj = sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		}
		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	limit := len(sessions)
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(sessions) {
			limit = l
		}
	}
	sessions = sessions[:limit]

	respondJSON(w, http.StatusOK, map[string]any{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

// Setup Handlers

func (s *Server) handleLoadout(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	var req struct {
		At   *grid.Point `json:"at"`
		Card string      `json:"card"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.At == nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: need at {row, col} and card")
		return
	}

	state, err := s.service.LoadAccessPoint(r.Context(), sessionID, *req.At, req.Card)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.broadcast(sessionID, state)
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	state, err := s.service.Deploy(r.Context(), sessionID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.broadcast(sessionID, state)
	respondJSON(w, http.StatusOK, state)
}

// Game Operation Handlers

func (s *Server) handleGetGameState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.GetGameState(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// commandRequest accepts either the textual form ("move east") or the
// structured one.
type commandRequest struct {
	Text string `json:"command,omitempty"`
	dispatch.Command
}

func (c commandRequest) resolve() (dispatch.Command, error) {
	if c.Text != "" {
		return service.ParseCommand(c.Text)
	}
	if c.Kind == "" {
		return dispatch.Command{}, fmt.Errorf("%w: missing command", engine.ErrInvalid)
	}
	return c.Command, nil
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	cmd, err := req.resolve()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.service.Command(r.Context(), sessionID, cmd)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.logger.Info("command",
		zap.String("session", sessionID),
		zap.Stringer("command", cmd),
		zap.Bool("success", result.Success),
		zap.String("code", result.ErrorCode),
		zap.Int("applied", len(result.Applied)),
		zap.Int("undone", result.Undone),
	)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleBulkCommand(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	var req struct {
		Commands []string `json:"commands"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	cmds := make([]dispatch.Command, 0, len(req.Commands))
	for i, text := range req.Commands {
		cmd, err := service.ParseCommand(text)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("command %d: %v", i+1, err))
			return
		}
		cmds = append(cmds, cmd)
	}

	result, err := s.service.BulkCommand(r.Context(), sessionID, cmds)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.logger.Info("bulk command",
		zap.String("session", sessionID),
		zap.Int("executed", result.Executed),
		zap.Int("requested", result.Requested),
		zap.String("stop", result.StopReason),
	)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleAdvanceAI(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	limit := 0
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}

	result, err := s.service.AdvanceAI(r.Context(), sessionID, limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.logger.Info("ai advanced",
		zap.String("session", sessionID),
		zap.Int("executed", result.Executed),
		zap.String("stop", result.StopReason),
	)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	state, err := s.service.Reset(r.Context(), sessionID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.broadcast(sessionID, state)
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Game reset successfully",
		"state":   state,
	})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	opts := service.HistoryOptions{
		Page:  1,
		Limit: 20,
		Order: "desc",
	}

	query := r.URL.Query()
	if p, err := strconv.Atoi(query.Get("page")); err == nil && p > 0 {
		opts.Page = p
	}
	if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 {
		opts.Limit = l
	}
	if order := query.Get("order"); order == "asc" || order == "desc" {
		opts.Order = order
	}

	history, err := s.service.GetHistory(r.Context(), mux.Vars(r)["id"], opts)
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// Scenario Handlers

func (s *Server) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios, err := s.service.ListScenarios(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, scenarios)
}

func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(mux.Vars(r)["name"], ".yaml")
	scenario, err := s.service.LoadScenario(r.Context(), name)
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, scenario)
}

// handleCreateScenario accepts a scenario as YAML or JSON. The file name
// comes from ?name=, falling back to the scenario name.
func (s *Server) handleCreateScenario(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxScenarioBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	scenario, err := config.ParseScenario(data)
	if err != nil {
		s.fail(w, err)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = scenario.Name
	}
	if err := s.service.SaveScenario(r.Context(), name, scenario); err != nil {
		s.fail(w, err)
		return
	}
	if scenario.ID == "" {
		scenario.ID = strings.TrimSuffix(name, ".yaml")
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message":     "Scenario saved successfully",
		"scenario_id": scenario.ID,
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "websocket disabled", http.StatusNotFound)
		return
	}
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}

	info, err := s.service.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "Invalid session", http.StatusNotFound)
		return
	}
	s.hub.ServeWS(w, r, info.ID, info.State)
}
