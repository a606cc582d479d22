// Package engine provides the change/undo core of the tactics game.
//
// A Node holds the occupancy grid, the active team and curio, the turn
// counter, team controllers and the inventory. It is mutated only through
// five changes:
//   - ActivateCurio selects an untapped curio of the active team
//   - DeactivateCurio taps the active curio
//   - MoveActiveCurio steps the active curio, collecting pickups and
//     trimming its tail to max_size
//   - TakeCurioAction resolves an action from the catalog against a target
//   - FinishTurn hands control to the other team
//
// Apply returns a typed Undo payload and Unapply inverts the change with
// it. Undoing changes in exact reverse order restores the node.
//
// Usage:
//
//	node := engine.NewNode(g, catalog)
//	key, err := node.AddCurio([]grid.Point{grid.Pt(0, 0)}, curio)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	undo, err := node.Apply(engine.ActivateCurio{Curio: key})
//	if errors.Is(err, engine.ErrInvalid) {
//		// rejected, node unchanged
//	}
//	_ = node.Unapply(engine.ActivateCurio{Curio: key}, undo)
//
// Errors:
//
// ErrInvalid means the change does not apply right now and nothing was
// mutated. ErrCritical means an invariant broke; the caller decides whether
// to halt. ErrTeamEliminated is returned together with an undo payload.
package engine
