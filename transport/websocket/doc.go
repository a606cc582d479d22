// Package websocket fans game session updates out to WebSocket clients.
//
// A central Hub owns every connection. Clients attach to one session via
// the ?session= query parameter and receive:
//   - welcome: sent once on connect, with the client id and current state
//   - state_update: the events applied by one command plus the resulting state
//   - command_rejected: the command and the error it was rejected with
//
// The hub hooks into sessions through Attach, which subscribes an observer
// to the session's dispatcher. Observers never block the dispatcher: when
// the hub's queue is full, messages are dropped and logged.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//	sessions.OnSession(hub.Attach)
//
// Commands are not accepted over the socket; they go through the REST API.
package websocket
