// Package config loads scenarios, action definitions and runtime settings.
//
// Scenarios and definitions are YAML documents. Each document is checked
// against an embedded JSON Schema before it is decoded, then checked again
// by building it: a scenario is only accepted when every curio, pickup and
// access point can be placed on its board.
//
// Scenario format:
//
//	name: skirmish
//	layout:            # or shape: <descriptor>
//	  - "....."
//	  - ".#.#."
//	first: player
//	controllers: {player: human, enemy: ai}
//	curios:
//	  - team: player
//	    card: hack
//	    points: [{row: 0, col: 0}]
//	  - team: enemy
//	    name: Warden
//	    max_size: 3
//	    actions: [slash]
//	    points: [{row: 4, col: 4}, {row: 4, col: 3}]
//	pickups:
//	  - {at: {row: 2, col: 2}, kind: currency, amount: 5}
//
// Usage:
//
//	manager, err := config.NewManager("scenarios", "scenarios/definitions.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	node, scenario, err := manager.NewNode("skirmish")
//
// Runtime settings come from GRIDTACTICS_* environment variables; see
// Settings.
package config
