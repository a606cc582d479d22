package dispatch

import (
	"fmt"

	"github.com/wricardo/gridtactics/game/engine"
	"github.com/wricardo/gridtactics/game/grid"
)

// CommandKind names an external command.
type CommandKind string

const (
	CmdNext       CommandKind = "next"
	CmdSkip       CommandKind = "skip"
	CmdUndo       CommandKind = "undo"
	CmdActivate   CommandKind = "activate"
	CmdDeactivate CommandKind = "deactivate"
	CmdMove       CommandKind = "move"
	CmdTakeAction CommandKind = "take_action"
)

// Command is the input surface of the dispatcher. FinishTurn is not a
// command; the dispatcher issues it itself.
type Command struct {
	Kind        CommandKind    `json:"kind"`
	Curio       grid.Key       `json:"curio,omitempty"`
	Direction   grid.Direction `json:"direction,omitempty"`
	ActionIndex int            `json:"action_index,omitempty"`
	Target      grid.Point     `json:"target"`
}

func (c Command) String() string {
	switch c.Kind {
	case CmdActivate:
		return fmt.Sprintf("activate %s", c.Curio)
	case CmdMove:
		return fmt.Sprintf("move %s", c.Direction)
	case CmdTakeAction:
		return fmt.Sprintf("take_action %d at %s", c.ActionIndex, c.Target)
	default:
		return string(c.Kind)
	}
}

// change maps a human command to its engine change.
func (c Command) change() (engine.Change, error) {
	switch c.Kind {
	case CmdActivate:
		return engine.ActivateCurio{Curio: c.Curio}, nil
	case CmdDeactivate:
		return engine.DeactivateCurio{}, nil
	case CmdMove:
		if c.Direction == 0 {
			return nil, fmt.Errorf("%w: move without direction", engine.ErrInvalid)
		}
		return engine.MoveActiveCurio{Direction: c.Direction}, nil
	case CmdTakeAction:
		return engine.TakeCurioAction{ActionIndex: c.ActionIndex, Target: c.Target}, nil
	}
	return nil, fmt.Errorf("%w: unknown command %q", engine.ErrInvalid, c.Kind)
}
