// Package mcp exposes Grid Tactics to AI agents over the Model Context Protocol.
//
// The Client is a thin proxy: every tool call becomes a request to the REST
// API, and the JSON response is rendered as text for the agent.
//
// MCP Tools:
//   - create_session, get_session, list_sessions: session management
//   - game_state, describe_cell: inspect the board
//   - command, bulk_command: play commands in text form
//   - advance_ai: let AI-controlled teams move
//   - load_access_point, deploy: the setup phase
//   - reset_game, history, list_scenarios, game_instructions
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
//
// The same MCP server also answers JSON-RPC posted to /mcp when the HTTP
// server runs.
package mcp
