package dispatch

import "github.com/wricardo/gridtactics/game/engine"

// Observer is notified synchronously on the dispatcher's goroutine. The
// node must not be mutated or retained.
type Observer interface {
	// Collect is called for every applied change.
	Collect(ev Event, node *engine.Node)
	// Fail is called for every rejected command.
	Fail(err error, cmd Command)
	// Publish is called once a command and everything it triggered settled.
	Publish(cmd Command)
	// CollectUndo is called for every undone event with the remaining log.
	CollectUndo(ev Event, node *engine.Node, log []Event)
}

// NopObserver implements Observer with no-ops, for embedding.
type NopObserver struct{}

func (NopObserver) Collect(Event, *engine.Node)              {}
func (NopObserver) Fail(error, Command)                      {}
func (NopObserver) Publish(Command)                          {}
func (NopObserver) CollectUndo(Event, *engine.Node, []Event) {}

type namedObserver struct {
	name string
	obs  Observer
}

// Subscribe registers o under name. Observers are notified in
// subscription order; subscribing an existing name replaces it in place.
func (d *Dispatcher) Subscribe(name string, o Observer) {
	for i := range d.observers {
		if d.observers[i].name == name {
			d.observers[i].obs = o
			return
		}
	}
	d.observers = append(d.observers, namedObserver{name: name, obs: o})
}

// Unsubscribe removes the observer registered under name.
func (d *Dispatcher) Unsubscribe(name string) {
	for i := range d.observers {
		if d.observers[i].name == name {
			d.observers = append(d.observers[:i], d.observers[i+1:]...)
			return
		}
	}
}

// Observers lists the registered names in notification order.
func (d *Dispatcher) Observers() []string {
	names := make([]string, len(d.observers))
	for i, o := range d.observers {
		names[i] = o.name
	}
	return names
}
