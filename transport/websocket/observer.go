package websocket

import (
	"github.com/wricardo/gridtactics/game/dispatch"
	"github.com/wricardo/gridtactics/game/engine"
)

// sessionObserver batches the changes of one command and sends them with
// the resulting state once the command settled.
type sessionObserver struct {
	hub       *Hub
	sessionID string

	node   *engine.Node
	events []dispatch.Event
	undone []uint64
}

func (o *sessionObserver) Collect(ev dispatch.Event, node *engine.Node) {
	o.node = node
	o.events = append(o.events, ev)
}

func (o *sessionObserver) CollectUndo(ev dispatch.Event, node *engine.Node, _ []dispatch.Event) {
	o.node = node
	o.undone = append(o.undone, ev.Seq)
}

func (o *sessionObserver) Publish(dispatch.Command) {
	o.flush()
}

func (o *sessionObserver) Fail(err error, cmd dispatch.Command) {
	// A failing command may still have applied changes first.
	o.flush()
	o.hub.BroadcastEvent(o.sessionID, EventRejected, map[string]string{
		"command": cmd.String(),
		"error":   err.Error(),
	})
}

func (o *sessionObserver) flush() {
	if o.node == nil {
		return
	}
	state := o.node.Snapshot()
	msg := &Message{
		SessionID: o.sessionID,
		Event:     EventState,
		State:     &state,
		Events:    o.events,
	}
	if len(o.undone) > 0 {
		msg.Data = map[string][]uint64{"undone": o.undone}
	}
	o.hub.enqueue(msg)
	o.node = nil
	o.events = nil
	o.undone = nil
}
