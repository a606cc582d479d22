// Package ai computes an AI team's turn on a background goroutine and
// streams it back as engine changes.
package ai

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wricardo/gridtactics/game/engine"
)

var (
	// ErrExhausted is returned once the worker has sent its last change.
	ErrExhausted = errors.New("ai worker exhausted")

	// ErrNotReady is returned by Poll when no change is waiting.
	ErrNotReady = errors.New("ai worker has no change ready")
)

// DefaultBuffer is the channel capacity used when Options.Buffer is 0.
const DefaultBuffer = 16

// Options configures a worker.
type Options struct {
	Buffer int
	Logger *zap.Logger
}

// Worker plays one turn of the active team on its own copy of the node.
// The channel is the only thing it shares with the caller.
type Worker struct {
	changes chan engine.Change
	cancel  context.CancelFunc
	done    chan struct{}
	team    engine.Team
	logger  *zap.Logger
}

// Start clones node on the calling goroutine and plans the turn of its
// active team in the background. Cancel ctx or call Stop to abandon it.
func Start(ctx context.Context, node *engine.Node, opts Options) *Worker {
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	w := &Worker{
		changes: make(chan engine.Change, opts.Buffer),
		cancel:  cancel,
		done:    make(chan struct{}),
		team:    node.ActiveTeam,
		logger:  opts.Logger.With(zap.Stringer("team", node.ActiveTeam)),
	}
	go w.run(ctx, node.Clone())
	return w
}

// Team is the team the worker plays for.
func (w *Worker) Team() engine.Team {
	return w.team
}

// Next blocks until the worker sends a change, the stream ends or ctx is
// done.
func (w *Worker) Next(ctx context.Context) (engine.Change, error) {
	select {
	case c, ok := <-w.changes:
		if !ok {
			return nil, ErrExhausted
		}
		return c, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for ai change: %w", ctx.Err())
	}
}

// Poll returns a waiting change without blocking.
func (w *Worker) Poll() (engine.Change, error) {
	select {
	case c, ok := <-w.changes:
		if !ok {
			return nil, ErrExhausted
		}
		return c, nil
	default:
		return nil, ErrNotReady
	}
}

// Stop cancels the worker and waits for its goroutine to exit.
func (w *Worker) Stop() {
	w.cancel()
	<-w.done
}

func (w *Worker) run(ctx context.Context, node *engine.Node) {
	defer close(w.done)
	defer close(w.changes)

	p := &planner{node: node, logger: w.logger}
	p.emit = func(c engine.Change) bool {
		select {
		case w.changes <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}
	p.playTurn(ctx)
}
