package engine

import (
	"encoding/json"
	"fmt"
)

// envelope is the wire form of changes and undo payloads.
type envelope struct {
	Kind ChangeKind      `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// EncodeChange marshals c into a kind-tagged envelope.
func EncodeChange(c Change) (json.RawMessage, error) {
	if c == nil {
		return nil, fmt.Errorf("encode change: nil")
	}
	return encode(c.Kind(), c)
}

// DecodeChange parses an envelope produced by EncodeChange.
func DecodeChange(raw json.RawMessage) (Change, error) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}
	switch env.Kind {
	case KindActivateCurio:
		return decodeData[ActivateCurio](env)
	case KindDeactivateCurio:
		return DeactivateCurio{}, nil
	case KindMoveActiveCurio:
		c, err := decodeData[MoveActiveCurio](env)
		if err == nil && c.Direction == 0 {
			return nil, fmt.Errorf("%w: move without direction", ErrDecode)
		}
		return c, err
	case KindTakeCurioAction:
		return decodeData[TakeCurioAction](env)
	case KindFinishTurn:
		return FinishTurn{}, nil
	}
	return nil, fmt.Errorf("%w: unknown change kind %q", ErrDecode, env.Kind)
}

// EncodeUndo marshals u into a kind-tagged envelope.
func EncodeUndo(u Undo) (json.RawMessage, error) {
	if u == nil {
		return nil, fmt.Errorf("encode undo: nil")
	}
	return encode(u.Kind(), u)
}

// DecodeUndo parses an envelope produced by EncodeUndo.
func DecodeUndo(raw json.RawMessage) (Undo, error) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}
	switch env.Kind {
	case KindActivateCurio:
		return decodeData[ActivateUndo](env)
	case KindDeactivateCurio:
		return decodeData[DeactivateUndo](env)
	case KindMoveActiveCurio:
		return decodeData[MoveUndo](env)
	case KindTakeCurioAction:
		return decodeData[ActionUndo](env)
	case KindFinishTurn:
		return decodeData[FinishUndo](env)
	}
	return nil, fmt.Errorf("%w: unknown undo kind %q", ErrDecode, env.Kind)
}

func encode(kind ChangeKind, v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	return json.Marshal(envelope{Kind: kind, Data: data})
}

func decodeEnvelope(raw json.RawMessage) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if env.Kind == "" {
		return env, fmt.Errorf("%w: missing kind", ErrDecode)
	}
	return env, nil
}

func decodeData[T any](env envelope) (T, error) {
	var v T
	if len(env.Data) == 0 {
		return v, fmt.Errorf("%w: %s without data", ErrDecode, env.Kind)
	}
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return v, fmt.Errorf("%w: %s: %v", ErrDecode, env.Kind, err)
	}
	return v, nil
}
