// Package api provides HTTP REST API handlers for Grid Tactics.
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - Create new session ({"scenario_id": "duel"})
//   - GET /api/sessions - List sessions (?scenario=, sort, order, limit)
//   - GET /api/sessions/{id} - Get specific session
//   - DELETE /api/sessions/{id} - Delete session
//
// Setup phase:
//   - POST /api/sessions/{id}/loadout - Put a card on an access point ({"at": {"row": 2, "col": 1}, "card": "medic"})
//   - POST /api/sessions/{id}/deploy - Turn loaded access points into curios
//
// Play:
//   - GET /api/sessions/{id}/state - Current snapshot
//   - POST /api/sessions/{id}/commands - One command, text or structured
//   - POST /api/sessions/{id}/bulk-commands - Command texts, stops at the first failure
//   - POST /api/sessions/{id}/ai - Let AI teams play (?limit=)
//   - POST /api/sessions/{id}/reset - Back to the scenario's start
//   - GET /api/sessions/{id}/history - Paginated events (page, limit, order)
//
// Scenarios:
//   - GET /api/scenarios - List scenarios
//   - GET /api/scenarios/{name} - Get one scenario
//   - POST /api/scenarios - Upload a scenario (YAML or JSON body, ?name=)
//
// Other:
//   - GET /api/health
//   - GET /ws?session={id} - WebSocket updates for one session
//
// A command is sent either as text or in structured form:
//
//	{"command": "move east"}
//	{"kind": "take_action", "action_index": 0, "target": {"row": 3, "col": 4}}
//
// A rejected command is not an HTTP error: the response is 200 with
// success false and an error_code (invalid, setup_phase, halted, ...).
//
// Errors are returned as JSON with appropriate HTTP status codes:
//
//	{"error": "error message"}
//
// Usage:
//
//	server := api.NewServer(gameService, hub, logger)
//	http.ListenAndServe(":8080", server)
package api
