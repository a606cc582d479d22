package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalid marks a change that is not applicable right now. The node
	// is left untouched.
	ErrInvalid = errors.New("invalid change")

	// ErrCritical marks a broken invariant. The node may be inconsistent.
	ErrCritical = errors.New("critical engine error")

	// ErrTeamEliminated is returned together with a valid undo when an
	// action leaves a team without curios. The change has been applied.
	ErrTeamEliminated = fmt.Errorf("%w: team eliminated", ErrCritical)

	// ErrDecode is returned for malformed change or undo envelopes.
	ErrDecode = errors.New("decode change")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func criticalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCritical, fmt.Sprintf(format, args...))
}
