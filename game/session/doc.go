// Package session provides session management for Grid Tactics.
//
// The session package implements:
//   - Session storage and retrieval keyed by case-insensitive IDs
//   - Building a dispatcher for each session from its scenario
//   - File persistence of the event log, restored by replay
//   - Session cleanup and expiration
//
// Core Types:
//
// Manager owns every live session. A session wraps one dispatcher and its
// node; the session lock serialises every command against it.
//
// Session Identifiers:
//
// Generated sessions use 4-character hex IDs from crypto/rand. Callers may
// pick their own ID when it contains no path separators.
//
// Persistence:
//
// A persisted session is its scenario ID, the cards loaded on access
// points during setup and the event log. Loading rebuilds the scenario,
// redeploys and replays the log, recomputing every undo payload, so the
// restored session can undo past the point it was saved. A malformed
// event fails the load with engine.ErrDecode.
//
// Usage:
//
//	manager := session.NewManagerWithPersistence(scenarios, settings, logger, persistence)
//	manager.OnSession(func(s *service.Session) {
//		s.Dispatcher.Subscribe("journal", journal)
//	})
//
//	sess, err := manager.Create("", "skirmish")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Retrieve existing session, from disk if needed
//	sess, err = manager.Get(sessionID)
package session
