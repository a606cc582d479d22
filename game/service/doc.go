// Package service provides the business logic layer for Grid Tactics.
//
// The service package implements:
//   - Multi-session game management
//   - The setup phase: loading cards on access points, then deploying
//   - Command execution, single and bulk, and AI turn advancement
//   - Paginated event history
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, and lifecycle.
// ScenarioManager loads scenarios and builds their starting nodes.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the dispatcher. Every call takes the session lock for its whole duration,
// so a dispatcher is never used from two goroutines at once. Rejected
// commands are not errors at this level: they come back as a CommandResult
// with Success false and a machine-friendly ErrorCode.
//
// Usage:
//
//	gameService := service.NewGameService(sessionMgr, scenarioMgr, logger)
//
//	info, err := gameService.CreateSession(ctx, "skirmish")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	cmd, _ := service.ParseCommand("move east")
//	result, err := gameService.Command(ctx, info.ID, cmd)
package service
