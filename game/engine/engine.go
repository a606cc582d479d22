package engine

import (
	"github.com/wricardo/gridtactics/game/action"
	"github.com/wricardo/gridtactics/game/grid"
)

// ChangeKind names a change variant on the wire.
type ChangeKind string

const (
	KindActivateCurio   ChangeKind = "activate_curio"
	KindDeactivateCurio ChangeKind = "deactivate_curio"
	KindMoveActiveCurio ChangeKind = "move_active_curio"
	KindTakeCurioAction ChangeKind = "take_curio_action"
	KindFinishTurn      ChangeKind = "finish_turn"
)

// Change is one of the five node mutations. The set is closed.
type Change interface {
	Kind() ChangeKind
	isChange()
}

// ActivateCurio makes Curio the active curio of the active team.
type ActivateCurio struct {
	Curio grid.Key `json:"curio"`
}

// DeactivateCurio taps the active curio and clears the active pointer.
type DeactivateCurio struct{}

// MoveActiveCurio steps the active curio once.
type MoveActiveCurio struct {
	Direction grid.Direction `json:"direction"`
}

// TakeCurioAction uses action ActionIndex of the active curio on Target.
type TakeCurioAction struct {
	ActionIndex int        `json:"action_index"`
	Target      grid.Point `json:"target"`
}

// FinishTurn hands control to the other team.
type FinishTurn struct{}

func (ActivateCurio) Kind() ChangeKind   { return KindActivateCurio }
func (DeactivateCurio) Kind() ChangeKind { return KindDeactivateCurio }
func (MoveActiveCurio) Kind() ChangeKind { return KindMoveActiveCurio }
func (TakeCurioAction) Kind() ChangeKind { return KindTakeCurioAction }
func (FinishTurn) Kind() ChangeKind      { return KindFinishTurn }

func (ActivateCurio) isChange()   {}
func (DeactivateCurio) isChange() {}
func (MoveActiveCurio) isChange() {}
func (TakeCurioAction) isChange() {}
func (FinishTurn) isChange()      {}

// Undo is the payload Apply returns for inverting a change. Each change
// kind has its own payload type.
type Undo interface {
	Kind() ChangeKind
}

// ActivateUndo restores the previously active curio.
type ActivateUndo struct {
	Previous       grid.Key `json:"previous"`
	TappedPrevious bool     `json:"tapped_previous,omitempty"`
}

// DeactivateUndo restores the active pointer and tapped flag.
type DeactivateUndo struct {
	Curio     grid.Key `json:"curio"`
	WasTapped bool     `json:"was_tapped"`
}

// MoveStep records one successful step.
type MoveStep struct {
	To grid.Point `json:"to"`
	// Relocated is the tail-first chain index To held before the step, or
	// -1 when To was not part of the chain.
	Relocated int             `json:"relocated"`
	Pickup    *CollectedPickup `json:"pickup,omitempty"`
}

// CollectedPickup is a pickup removed from the grid during a move.
type CollectedPickup struct {
	Key    grid.Key   `json:"key"`
	Point  grid.Point `json:"point"`
	Pickup Pickup     `json:"pickup"`
}

// MoveUndo reverses a move.
type MoveUndo struct {
	Curio   grid.Key     `json:"curio"`
	Steps   []MoveStep   `json:"steps"`
	Trimmed []grid.Point `json:"trimmed,omitempty"`
	Tapped  bool         `json:"tapped,omitempty"`
}

// ActionUndo reverses an action and the deactivation that followed it.
type ActionUndo struct {
	Source grid.Key          `json:"source"`
	Action string            `json:"action"`
	Effect action.EffectKind `json:"effect"`
	Target grid.Key          `json:"target"`

	// DealDamage: cells in removal order, and whether the target died.
	Removed []grid.Point `json:"removed,omitempty"`
	Fatal   bool         `json:"fatal,omitempty"`

	// IncreaseMaxSize.
	OldMaxSize uint32 `json:"old_max_size,omitempty"`
	NewMaxSize uint32 `json:"new_max_size,omitempty"`

	SourceTapped    bool `json:"source_tapped,omitempty"`
	SourceDestroyed bool `json:"source_destroyed,omitempty"`
}

// CurioReset is one curio's state before FinishTurn refreshed it.
type CurioReset struct {
	Curio      grid.Key `json:"curio"`
	Tapped     bool     `json:"tapped"`
	MovesTaken uint32   `json:"moves_taken"`
}

// FinishUndo reverses a turn change.
type FinishUndo struct {
	Previous grid.Key     `json:"previous"`
	Reset    []CurioReset `json:"reset,omitempty"`
}

func (ActivateUndo) Kind() ChangeKind   { return KindActivateCurio }
func (DeactivateUndo) Kind() ChangeKind { return KindDeactivateCurio }
func (MoveUndo) Kind() ChangeKind       { return KindMoveActiveCurio }
func (ActionUndo) Kind() ChangeKind     { return KindTakeCurioAction }
func (FinishUndo) Kind() ChangeKind     { return KindFinishTurn }

// Apply mutates the node. On ErrInvalid the node is unchanged and the
// undo is nil. ErrTeamEliminated comes with a non-nil undo: the change
// was applied.
func (n *Node) Apply(c Change) (Undo, error) {
	switch c := c.(type) {
	case ActivateCurio:
		return n.activate(c.Curio)
	case DeactivateCurio:
		return n.deactivate()
	case MoveActiveCurio:
		return n.moveActive([]grid.Direction{c.Direction})
	case TakeCurioAction:
		return n.takeAction(c.ActionIndex, c.Target)
	case FinishTurn:
		return n.finishTurn(), nil
	default:
		return nil, criticalf("unknown change %T", c)
	}
}

// Unapply inverts the most recent Apply of c. Any failure is critical.
func (n *Node) Unapply(c Change, u Undo) error {
	if c == nil || u == nil || c.Kind() != u.Kind() {
		return criticalf("undo payload %T does not match change %T", u, c)
	}
	switch u := u.(type) {
	case ActivateUndo:
		return n.unactivate(u)
	case DeactivateUndo:
		return n.undeactivate(u)
	case MoveUndo:
		return n.unmove(u)
	case ActionUndo:
		return n.untakeAction(u)
	case FinishUndo:
		return n.unfinishTurn(u)
	default:
		return criticalf("unknown undo %T", u)
	}
}

// IsDurable reports whether undo should stop after reverting c. An AI
// team only ever stops at turn boundaries.
func IsDurable(c Change, aiControlled bool) bool {
	switch c.(type) {
	case FinishTurn:
		return true
	case DeactivateCurio, TakeCurioAction:
		return !aiControlled
	default:
		return false
	}
}
