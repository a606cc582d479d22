// Package journal records what happens in game sessions: every applied
// change, every rejected command and every undo. Records go to sinks, an
// hourly rotated zstd JSONL writer and a SQLite index.
package journal

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wricardo/gridtactics/game/dispatch"
	"github.com/wricardo/gridtactics/game/engine"
)

// Kind tags a record.
type Kind string

const (
	KindEvent Kind = "event"
	KindFail  Kind = "fail"
	KindUndo  Kind = "undo"
)

// Record is one journal line.
type Record struct {
	Run     string          `json:"run"`
	Session string          `json:"session"`
	Kind    Kind            `json:"kind"`
	Seq     uint64          `json:"seq,omitempty"`
	Team    string          `json:"team,omitempty"`
	Turn    uint32          `json:"turn"`
	Change  json.RawMessage `json:"change,omitempty"`
	Command string          `json:"command,omitempty"`
	Error   string          `json:"error,omitempty"`
	At      time.Time       `json:"at"`
}

// Sink receives records. Implementations must be safe for concurrent use;
// observers of different sessions share them.
type Sink interface {
	WriteRecord(r Record) error
}

// Observer is a dispatch.Observer that turns one session's notifications
// into records.
type Observer struct {
	dispatch.NopObserver

	run     string
	session string
	sinks   []Sink
	logger  *zap.Logger
	turn    uint32
	now     func() time.Time
}

// NewRunID returns a fresh run identifier. One run covers one process.
func NewRunID() string {
	return uuid.NewString()
}

// NewObserver creates an observer for session writing to sinks.
func NewObserver(run, session string, logger *zap.Logger, sinks ...Sink) *Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Observer{
		run:     run,
		session: session,
		sinks:   sinks,
		logger:  logger,
		now:     time.Now,
	}
}

func (o *Observer) Collect(ev dispatch.Event, node *engine.Node) {
	o.turn = node.Turn
	change, err := engine.EncodeChange(ev.Change)
	if err != nil {
		o.logger.Warn("journal: encode change", zap.Uint64("seq", ev.Seq), zap.Error(err))
		return
	}
	o.write(Record{
		Kind:   KindEvent,
		Seq:    ev.Seq,
		Team:   ev.Team.String(),
		Turn:   node.Turn,
		Change: change,
		At:     ev.At,
	})
}

func (o *Observer) Fail(err error, cmd dispatch.Command) {
	o.write(Record{
		Kind:    KindFail,
		Turn:    o.turn,
		Command: cmd.String(),
		Error:   err.Error(),
		At:      o.now(),
	})
}

func (o *Observer) CollectUndo(ev dispatch.Event, node *engine.Node, _ []dispatch.Event) {
	o.turn = node.Turn
	o.write(Record{
		Kind: KindUndo,
		Seq:  ev.Seq,
		Team: ev.Team.String(),
		Turn: node.Turn,
		At:   o.now(),
	})
}

func (o *Observer) write(r Record) {
	r.Run = o.run
	r.Session = o.session
	if r.At.IsZero() {
		r.At = o.now()
	}
	var errs []error
	for _, s := range o.sinks {
		if err := s.WriteRecord(r); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		o.logger.Warn("journal write failed", zap.String("session", o.session), zap.Error(err))
	}
}
