// Package dispatch routes external commands into the engine, keeps the
// append-only event log, drives undo, notifies observers and owns the AI
// worker of the current AI turn.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/gridtactics/game/ai"
	"github.com/wricardo/gridtactics/game/engine"
)

// ErrHalted is returned for every command after the dispatcher stopped.
var ErrHalted = errors.New("dispatcher halted")

// DefaultAITimeout bounds a Next command when Settings.AITimeout is 0.
const DefaultAITimeout = 5 * time.Second

// Settings tunes a dispatcher.
type Settings struct {
	// AITimeout bounds the wait for one AI change.
	AITimeout time.Duration
	// WorkerBuffer is the AI worker channel capacity.
	WorkerBuffer int
	// HaltOnCritical stops the dispatcher on any critical engine error.
	// Team elimination always stops it.
	HaltOnCritical bool
}

// Dispatcher is not safe for concurrent use; callers serialise access.
type Dispatcher struct {
	node      *engine.Node
	log       []Event
	seq       uint64
	observers []namedObserver
	worker    *ai.Worker
	settings  Settings
	logger    *zap.Logger
	halted    error
	now       func() time.Time
}

// New creates a dispatcher owning node.
func New(node *engine.Node, settings Settings, logger *zap.Logger) *Dispatcher {
	if settings.AITimeout <= 0 {
		settings.AITimeout = DefaultAITimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		node:     node,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// Node returns the authoritative node. Read it only while holding
// whatever serialises access to the dispatcher.
func (d *Dispatcher) Node() *engine.Node {
	return d.node
}

// Events returns a copy of the event log.
func (d *Dispatcher) Events() []Event {
	return slices.Clone(d.log)
}

// Len returns the number of events in the log.
func (d *Dispatcher) Len() int {
	return len(d.log)
}

// Halted returns the error that stopped the dispatcher, or nil.
func (d *Dispatcher) Halted() error {
	return d.halted
}

// AITurn reports whether the active team is AI-controlled.
func (d *Dispatcher) AITurn() bool {
	return d.node.IsAIControlled(d.node.ActiveTeam)
}

// Apply runs one command to completion, including any FinishTurn it
// triggers. Rejections are reported to observers through Fail.
func (d *Dispatcher) Apply(ctx context.Context, cmd Command) error {
	err := d.apply(ctx, cmd)
	if err != nil {
		d.fail(err, cmd)
		return err
	}
	for _, o := range d.observers {
		o.obs.Publish(cmd)
	}
	return nil
}

func (d *Dispatcher) apply(ctx context.Context, cmd Command) error {
	if d.halted != nil {
		return fmt.Errorf("%w: %v", ErrHalted, d.halted)
	}
	switch cmd.Kind {
	case CmdNext:
		return d.next(ctx)
	case CmdSkip:
		return fmt.Errorf("%w: skip is not implemented", engine.ErrInvalid)
	case CmdUndo:
		return d.undo()
	}

	if d.AITurn() {
		return fmt.Errorf("%w: %s is under ai control", engine.ErrInvalid, d.node.ActiveTeam)
	}
	change, err := cmd.change()
	if err != nil {
		return err
	}
	if err := d.commit(change); err != nil {
		return err
	}
	if _, ok := change.(engine.ActivateCurio); ok {
		return nil
	}
	if len(d.node.UntappedKeys(d.node.ActiveTeam)) > 0 {
		return nil
	}
	if err := d.commit(engine.FinishTurn{}); err != nil {
		return err
	}
	d.spawnWorker()
	return nil
}

// next applies one change of the current AI turn.
func (d *Dispatcher) next(ctx context.Context) error {
	if !d.AITurn() {
		return fmt.Errorf("%w: next needs an ai turn, %s is human", engine.ErrInvalid, d.node.ActiveTeam)
	}
	d.spawnWorker()

	ctx, cancel := context.WithTimeout(ctx, d.settings.AITimeout)
	defer cancel()
	change, err := d.worker.Next(ctx)
	if errors.Is(err, ai.ErrExhausted) {
		// The worker gave up before finishing its turn.
		d.logger.Warn("ai worker ended without finishing its turn", zap.Stringer("team", d.node.ActiveTeam))
		d.discardWorker()
		change = engine.FinishTurn{}
	} else if err != nil {
		return err
	}

	if err := d.commit(change); err != nil {
		d.discardWorker()
		return err
	}
	if _, ok := change.(engine.FinishTurn); ok {
		d.discardWorker()
		d.spawnWorker()
	}
	return nil
}

// undo pops events until a durable one was undone or the log is empty.
func (d *Dispatcher) undo() error {
	d.discardWorker()
	if len(d.log) == 0 {
		return fmt.Errorf("%w: nothing to undo", engine.ErrInvalid)
	}
	for len(d.log) > 0 {
		ev := d.log[len(d.log)-1]
		if err := d.node.Unapply(ev.Change, ev.Undo); err != nil {
			return fmt.Errorf("undo event %d: %w", ev.Seq, err)
		}
		d.log = d.log[:len(d.log)-1]
		d.logger.Debug("undo", zap.Uint64("seq", ev.Seq), zap.String("change", string(ev.Change.Kind())))
		for _, o := range d.observers {
			o.obs.CollectUndo(ev, d.node, d.log)
		}
		if engine.IsDurable(ev.Change, d.node.IsAIControlled(ev.Team)) {
			break
		}
	}
	return nil
}

// commit applies change and appends it to the log.
func (d *Dispatcher) commit(change engine.Change) error {
	team := d.node.ActiveTeam
	undo, err := d.node.Apply(change)
	if err != nil && !errors.Is(err, engine.ErrTeamEliminated) {
		return err
	}
	d.seq++
	ev := Event{Seq: d.seq, Team: team, Change: change, Undo: undo, At: d.now()}
	d.log = append(d.log, ev)
	d.logger.Debug("change applied",
		zap.Uint64("seq", ev.Seq),
		zap.Stringer("team", team),
		zap.String("change", string(change.Kind())),
	)
	for _, o := range d.observers {
		o.obs.Collect(ev, d.node)
	}
	return err
}

// Replay re-applies persisted events without notifying observers. Undo
// payloads are recomputed.
func (d *Dispatcher) Replay(events []Event) error {
	for _, ev := range events {
		if ev.Team != d.node.ActiveTeam {
			return fmt.Errorf("replay event %d: %w: recorded for %s, %s is active", ev.Seq, engine.ErrDecode, ev.Team, d.node.ActiveTeam)
		}
		undo, err := d.node.Apply(ev.Change)
		if err != nil && !errors.Is(err, engine.ErrTeamEliminated) {
			return fmt.Errorf("replay event %d: %w", ev.Seq, err)
		}
		ev.Undo = undo
		d.log = append(d.log, ev)
		d.seq = max(d.seq, ev.Seq)
		if err != nil {
			d.halted = err
		}
	}
	return nil
}

// Close stops the AI worker.
func (d *Dispatcher) Close() {
	d.discardWorker()
}

func (d *Dispatcher) spawnWorker() {
	if d.worker != nil || d.halted != nil || !d.AITurn() {
		return
	}
	d.worker = ai.Start(context.Background(), d.node, ai.Options{
		Buffer: d.settings.WorkerBuffer,
		Logger: d.logger,
	})
}

func (d *Dispatcher) discardWorker() {
	if d.worker == nil {
		return
	}
	d.worker.Stop()
	d.worker = nil
}

func (d *Dispatcher) fail(err error, cmd Command) {
	switch {
	case errors.Is(err, engine.ErrTeamEliminated):
		d.logger.Info("team eliminated, halting", zap.Stringer("command", cmd))
		d.halt(err)
	case errors.Is(err, engine.ErrCritical):
		d.logger.Error("critical engine error", zap.Stringer("command", cmd), zap.Error(err))
		if d.settings.HaltOnCritical {
			d.halt(err)
		}
	case errors.Is(err, ErrHalted):
	default:
		d.logger.Debug("command rejected", zap.Stringer("command", cmd), zap.Error(err))
	}
	for _, o := range d.observers {
		o.obs.Fail(err, cmd)
	}
}

func (d *Dispatcher) halt(err error) {
	if d.halted == nil {
		d.halted = err
	}
	d.discardWorker()
}
