package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wricardo/gridtactics/game/config"
	"github.com/wricardo/gridtactics/game/dispatch"
	"github.com/wricardo/gridtactics/game/engine"
	"github.com/wricardo/gridtactics/game/grid"
)

var (
	// ErrSetupPhase rejects play commands before deployment and setup
	// operations after it.
	ErrSetupPhase = errors.New("setup phase")
)

const (
	// MaxBulkCommands caps a BulkCommand call.
	MaxBulkCommands = 50
	// DefaultAISteps and MaxAISteps bound an AdvanceAI call.
	DefaultAISteps = 100
	MaxAISteps     = 500
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions  SessionManager
	scenarios ScenarioManager
	logger    *zap.Logger
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, scenarios ScenarioManager, logger *zap.Logger) GameService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &gameServiceImpl{
		sessions:  sessions,
		scenarios: scenarios,
		logger:    logger,
	}
}

// CreateSession creates a new game session
func (s *gameServiceImpl) CreateSession(ctx context.Context, scenarioID string) (*SessionInfo, error) {
	sess, err := s.sessions.Create("", scenarioID)
	if err != nil {
		if errors.Is(err, config.ErrScenarioNotFound) {
			// Provide helpful error message with available options
			available, listErr := s.scenarios.ListScenarios()
			if listErr == nil && len(available) > 0 {
				ids := make([]string, 0, len(available))
				for _, info := range available {
					ids = append(ids, info.ScenarioID)
				}
				return nil, fmt.Errorf("scenario '%s' not found. Available scenarios: %v: %w", scenarioID, ids, err)
			}
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	sess.Lock()
	defer sess.Unlock()
	return sessionInfo(sess), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := s.lock(sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.Unlock()

	s.sessions.Touch(sess)
	return sessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		sess.Lock()
		result = append(result, sessionInfo(sess))
		sess.Unlock()
	}
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(sessionID)
}

// LoadAccessPoint puts card on the access point at at.
func (s *gameServiceImpl) LoadAccessPoint(ctx context.Context, sessionID string, at grid.Point, card string) (*engine.Snapshot, error) {
	sess, err := s.lock(sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.Unlock()
	s.sessions.Touch(sess)

	if !sess.Setup {
		return nil, fmt.Errorf("%w: session %s is already deployed", ErrSetupPhase, sess.ID)
	}
	node := sess.Dispatcher.Node()
	key, ok := node.Grid.ItemKeyAt(at)
	if !ok {
		return nil, fmt.Errorf("%w: no access point at %s", engine.ErrInvalid, at)
	}
	if card == "" {
		err = node.UnloadAccessPoint(key)
	} else {
		err = node.LoadAccessPoint(key, card)
	}
	if err != nil {
		return nil, err
	}
	sess.Loadout = append(sess.Loadout, Loadout{At: at, Card: card})
	s.save(sess)

	snap := node.Snapshot()
	return &snap, nil
}

// Deploy ends the setup phase.
func (s *gameServiceImpl) Deploy(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	sess, err := s.lock(sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.Unlock()
	s.sessions.Touch(sess)

	if !sess.Setup {
		return nil, fmt.Errorf("%w: session %s is already deployed", ErrSetupPhase, sess.ID)
	}
	node := sess.Dispatcher.Node()
	if err := checkDeployable(node); err != nil {
		return nil, err
	}
	keys, err := node.Deploy()
	if err != nil {
		return nil, fmt.Errorf("%w: deploy: %v", engine.ErrCritical, err)
	}
	sess.Setup = false
	s.logger.Info("session deployed", zap.String("session", sess.ID), zap.Int("curios", len(keys)))
	s.save(sess)

	snap := node.Snapshot()
	return &snap, nil
}

// checkDeployable rejects a deployment that would leave a team without
// curios.
func checkDeployable(node *engine.Node) error {
	var fielded [2]int
	for _, team := range []engine.Team{engine.TeamPlayer, engine.TeamEnemy} {
		fielded[team] = len(node.CurioKeys(team))
	}
	for _, ap := range node.Snapshot().AccessPoints {
		if ap.Access.Card != "" {
			fielded[ap.Access.Team]++
		}
	}
	for _, team := range []engine.Team{engine.TeamPlayer, engine.TeamEnemy} {
		if fielded[team] == 0 {
			return fmt.Errorf("%w: %s has nothing to deploy", engine.ErrInvalid, team)
		}
	}
	return nil
}

// Command runs one command against a session.
func (s *gameServiceImpl) Command(ctx context.Context, sessionID string, cmd dispatch.Command) (*CommandResult, error) {
	sess, err := s.lock(sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.Unlock()
	s.sessions.Touch(sess)

	result := s.apply(ctx, sess, cmd)
	s.save(sess)
	return result, nil
}

// BulkCommand runs commands in order and stops at the first failure.
func (s *gameServiceImpl) BulkCommand(ctx context.Context, sessionID string, cmds []dispatch.Command) (*BulkCommandResult, error) {
	sess, err := s.lock(sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.Unlock()
	s.sessions.Touch(sess)

	result := &BulkCommandResult{
		Requested: len(cmds),
		Success:   true,
		Applied:   make([]dispatch.Event, 0),
	}

	// Limit commands to prevent abuse
	if len(cmds) > MaxBulkCommands {
		result.Truncated = true
		result.Limit = MaxBulkCommands
		cmds = cmds[:MaxBulkCommands]
	}

	for i, cmd := range cmds {
		r := s.apply(ctx, sess, cmd)
		result.add(r)
		if !r.Success {
			result.StoppedOn = i + 1
			result.StopReason = r.ErrorCode
			break
		}
	}
	s.finish(sess, result)
	s.save(sess)
	return result, nil
}

// AdvanceAI plays Next commands until a human team is active, the
// session halts, a command fails or limit commands ran.
func (s *gameServiceImpl) AdvanceAI(ctx context.Context, sessionID string, limit int) (*BulkCommandResult, error) {
	sess, err := s.lock(sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.Unlock()
	s.sessions.Touch(sess)

	if limit <= 0 {
		limit = DefaultAISteps
	}
	limit = min(limit, MaxAISteps)

	result := &BulkCommandResult{Success: true, Limit: limit, Applied: make([]dispatch.Event, 0)}
	for {
		switch {
		case sess.Dispatcher.Halted() != nil:
			result.StopReason = "halted"
		case !sess.Setup && !sess.Dispatcher.AITurn():
			result.StopReason = "human_turn"
		case result.Executed >= limit:
			result.StopReason = "limit"
		}
		if result.StopReason != "" {
			break
		}
		result.Requested++
		r := s.apply(ctx, sess, dispatch.Command{Kind: dispatch.CmdNext})
		result.add(r)
		if !r.Success {
			result.StoppedOn = result.Requested
			result.StopReason = r.ErrorCode
			break
		}
	}
	s.finish(sess, result)
	s.save(sess)
	return result, nil
}

func (r *BulkCommandResult) add(c *CommandResult) {
	if !c.Success {
		r.Success = false
		r.Message = c.Message
		return
	}
	r.Executed++
	r.Applied = append(r.Applied, c.Applied...)
	r.Undone += c.Undone
}

func (s *gameServiceImpl) finish(sess *Session, r *BulkCommandResult) {
	snap := sess.Dispatcher.Node().Snapshot()
	r.State = &snap
	r.AITurn = sess.Dispatcher.AITurn()
	if err := sess.Dispatcher.Halted(); err != nil {
		r.Halted = err.Error()
	}
}

// Reset rebuilds the session from its scenario.
func (s *gameServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	sess, err := s.lock(sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.Unlock()
	s.sessions.Touch(sess)

	if err := s.sessions.Rebuild(sess); err != nil {
		return nil, fmt.Errorf("failed to reset session: %w", err)
	}
	s.save(sess)

	snap := sess.Dispatcher.Node().Snapshot()
	return &snap, nil
}

// GetGameState returns the current state of a session
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	sess, err := s.lock(sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.Unlock()
	s.sessions.Touch(sess)

	snap := sess.Dispatcher.Node().Snapshot()
	return &snap, nil
}

// GetHistory returns paginated event history
func (s *gameServiceImpl) GetHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	sess, err := s.lock(sessionID)
	if err != nil {
		return nil, err
	}
	history := sess.Dispatcher.Events()
	sess.Unlock()

	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	// Calculate pagination
	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := min(start+opts.Limit, total)

	events := []dispatch.Event{}
	if opts.Order == "desc" {
		// Most recent first
		for i := total - 1 - start; i >= 0 && i >= total-end; i-- {
			events = append(events, history[i])
		}
	} else if start < total {
		events = history[start:end]
	}

	return &HistoryResponse{
		Events:      events,
		TotalEvents: total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// ListScenarios returns available scenarios
func (s *gameServiceImpl) ListScenarios(ctx context.Context) ([]*config.ScenarioInfo, error) {
	return s.scenarios.ListScenarios()
}

// LoadScenario returns a scenario by id
func (s *gameServiceImpl) LoadScenario(ctx context.Context, scenarioID string) (*config.Scenario, error) {
	return s.scenarios.LoadScenario(scenarioID)
}

// SaveScenario stores a scenario when the scenario manager supports it.
func (s *gameServiceImpl) SaveScenario(ctx context.Context, scenarioID string, scenario *config.Scenario) error {
	saver, ok := s.scenarios.(ScenarioSaver)
	if !ok {
		return errors.New("scenario manager is read-only")
	}
	if err := saver.SaveScenario(scenarioID, scenario); err != nil {
		return err
	}
	s.logger.Info("scenario saved", zap.String("scenario", scenarioID))
	return nil
}

// lock fetches a session and takes its lock.
func (s *gameServiceImpl) lock(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	sess.Lock()
	return sess, nil
}

// apply runs cmd on a locked session and describes the outcome.
func (s *gameServiceImpl) apply(ctx context.Context, sess *Session, cmd dispatch.Command) *CommandResult {
	d := sess.Dispatcher
	before := d.Len()

	var err error
	if sess.Setup {
		err = fmt.Errorf("%w: deploy session %s before playing", ErrSetupPhase, sess.ID)
	} else {
		err = d.Apply(ctx, cmd)
	}

	result := &CommandResult{Success: err == nil, Command: cmd, AITurn: d.AITurn()}
	if err != nil {
		result.Message = err.Error()
		result.ErrorCode = ErrorCode(err)
		s.logger.Debug("command failed",
			zap.String("session", sess.ID),
			zap.Stringer("command", cmd),
			zap.Error(err),
		)
	}
	switch after := d.Len(); {
	case after < before:
		result.Undone = before - after
	case after > before:
		result.Applied = d.Events()[before:]
	}
	if halted := d.Halted(); halted != nil {
		result.Halted = halted.Error()
	}
	snap := d.Node().Snapshot()
	result.State = &snap
	return result
}

func (s *gameServiceImpl) save(sess *Session) {
	if err := s.sessions.Save(sess); err != nil {
		s.logger.Warn("failed to persist session", zap.String("session", sess.ID), zap.Error(err))
	}
}

// ErrorCode maps a command error to the machine-friendly code used in
// results.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, engine.ErrTeamEliminated):
		return "team_eliminated"
	case errors.Is(err, dispatch.ErrHalted):
		return "halted"
	case errors.Is(err, ErrSetupPhase):
		return "setup_phase"
	case errors.Is(err, context.DeadlineExceeded):
		return "ai_timeout"
	case errors.Is(err, engine.ErrCritical):
		return "critical"
	case errors.Is(err, engine.ErrInvalid):
		return "invalid"
	}
	return "error"
}

func sessionInfo(sess *Session) *SessionInfo {
	snap := sess.Dispatcher.Node().Snapshot()
	info := &SessionInfo{
		ID:             sess.ID,
		ScenarioID:     sess.ScenarioID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		Setup:          sess.Setup,
		Events:         sess.Dispatcher.Len(),
		State:          &snap,
	}
	if err := sess.Dispatcher.Halted(); err != nil {
		info.Halted = err.Error()
	}
	return info
}

// ParseCommand builds a command from its textual form, as accepted by
// the REST and MCP transports: "next", "skip", "undo", "deactivate",
// "activate <key>", "move <dir>", "take_action <index> <row> <col>".
func ParseCommand(text string) (dispatch.Command, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return dispatch.Command{}, fmt.Errorf("%w: empty command", engine.ErrInvalid)
	}
	cmd := dispatch.Command{Kind: dispatch.CommandKind(strings.ToLower(fields[0]))}
	args := fields[1:]
	want := 0
	switch cmd.Kind {
	case dispatch.CmdNext, dispatch.CmdSkip, dispatch.CmdUndo, dispatch.CmdDeactivate:
	case dispatch.CmdActivate, dispatch.CmdMove:
		want = 1
	case dispatch.CmdTakeAction:
		want = 3
	default:
		return dispatch.Command{}, fmt.Errorf("%w: unknown command %q", engine.ErrInvalid, fields[0])
	}
	if len(args) != want {
		return dispatch.Command{}, fmt.Errorf("%w: %s takes %d arguments, got %d", engine.ErrInvalid, cmd.Kind, want, len(args))
	}

	var err error
	switch cmd.Kind {
	case dispatch.CmdActivate:
		cmd.Curio, err = grid.ParseKey(args[0])
	case dispatch.CmdMove:
		cmd.Direction, err = grid.ParseDirection(args[0])
	case dispatch.CmdTakeAction:
		var idx, row, col int
		if _, err = fmt.Sscan(strings.Join(args, " "), &idx, &row, &col); err == nil {
			if idx < 0 || row < 0 || col < 0 {
				err = errors.New("negative argument")
			}
			cmd.ActionIndex = idx
			cmd.Target = grid.Pt(uint32(row), uint32(col))
		}
	}
	if err != nil {
		return dispatch.Command{}, fmt.Errorf("%w: %s: %v", engine.ErrInvalid, cmd.Kind, err)
	}
	return cmd, nil
}
