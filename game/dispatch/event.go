package dispatch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wricardo/gridtactics/game/engine"
)

// Event is one applied change in the log. Team is the team that was active
// when the change was applied.
type Event struct {
	Seq    uint64
	Team   engine.Team
	Change engine.Change
	Undo   engine.Undo
	At     time.Time
}

type eventJSON struct {
	Seq    uint64          `json:"seq"`
	Team   engine.Team     `json:"team"`
	Change json.RawMessage `json:"change"`
	Undo   json.RawMessage `json:"undo,omitempty"`
	At     time.Time       `json:"at"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	change, err := engine.EncodeChange(e.Change)
	if err != nil {
		return nil, err
	}
	out := eventJSON{Seq: e.Seq, Team: e.Team, Change: change, At: e.At}
	if e.Undo != nil {
		if out.Undo, err = engine.EncodeUndo(e.Undo); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var in eventJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("%w: event: %v", engine.ErrDecode, err)
	}
	change, err := engine.DecodeChange(in.Change)
	if err != nil {
		return err
	}
	var undo engine.Undo
	if len(in.Undo) > 0 {
		if undo, err = engine.DecodeUndo(in.Undo); err != nil {
			return err
		}
	}
	*e = Event{Seq: in.Seq, Team: in.Team, Change: change, Undo: undo, At: in.At}
	return nil
}
