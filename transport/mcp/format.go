package mcp

import (
	"fmt"
	"strings"

	"github.com/wricardo/gridtactics/game/dispatch"
	"github.com/wricardo/gridtactics/game/engine"
	"github.com/wricardo/gridtactics/game/grid"
	"github.com/wricardo/gridtactics/game/service"
)

func formatSessionInfo(info *service.SessionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\nScenario: %s\nCreated: %s\nLast accessed: %s\nEvents: %d\n",
		info.ID, info.ScenarioID,
		info.CreatedAt.Format("2006-01-02 15:04:05"),
		info.LastAccessedAt.Format("2006-01-02 15:04:05"),
		info.Events)
	if info.Setup {
		b.WriteString("Phase: setup (load access points, then deploy)\n")
	}
	if info.Halted != "" {
		fmt.Fprintf(&b, "Halted: %s\n", info.Halted)
	}
	if info.State != nil {
		b.WriteString("\n")
		b.WriteString(formatState(info.State))
	}
	return b.String()
}

func formatState(state *engine.Snapshot) string {
	if state == nil {
		return "No state available"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Turn %d, %s to play (%s)\n", state.Turn, state.ActiveTeam, state.Controllers[state.ActiveTeam])
	if !state.Active.IsZero() {
		fmt.Fprintf(&b, "Active curio: %s\n", state.Active)
	}

	b.WriteString("\nGrid:\n   ")
	for col := uint32(0); col < state.Bounds.Width; col++ {
		fmt.Fprintf(&b, "%d", col%10)
	}
	b.WriteString("\n")
	for row, line := range state.Board {
		fmt.Fprintf(&b, "%2d %s\n", row, line)
	}

	if len(state.Curios) > 0 {
		b.WriteString("\nCurios:\n")
		for i := range state.Curios {
			b.WriteString(formatCurio(&state.Curios[i], state.Active))
		}
	}
	if len(state.Pickups) > 0 {
		b.WriteString("\nPickups:\n")
		for _, p := range state.Pickups {
			fmt.Fprintf(&b, "  (%d,%d) %s\n", p.Point.Row, p.Point.Col, p.Pickup)
		}
	}
	if len(state.AccessPoints) > 0 {
		b.WriteString("\nAccess points:\n")
		for _, a := range state.AccessPoints {
			card := a.Access.Card
			if card == "" {
				card = "(empty)"
			}
			fmt.Fprintf(&b, "  (%d,%d) %s: %s\n", a.Point.Row, a.Point.Col, a.Access.Team, card)
		}
	}

	inv := state.Inventory
	fmt.Fprintf(&b, "\nInventory: %d currency", inv.Currency)
	if len(inv.Cards) > 0 {
		fmt.Fprintf(&b, ", cards %s", strings.Join(inv.Cards, " "))
	}
	if len(inv.Items) > 0 {
		fmt.Fprintf(&b, ", items %s", strings.Join(inv.Items, " "))
	}
	if len(inv.PlotItems) > 0 {
		fmt.Fprintf(&b, ", plot items %s", strings.Join(inv.PlotItems, " "))
	}
	b.WriteString("\n")
	return b.String()
}

func formatCurio(v *engine.CurioView, active grid.Key) string {
	marker := " "
	if v.Key == active {
		marker = "*"
	}
	status := ""
	if v.Curio.Tapped {
		status = " tapped"
	}
	head := "-"
	if len(v.Points) > 0 {
		head = fmt.Sprintf("(%d,%d)", v.Points[0].Row, v.Points[0].Col)
	}
	actions := "none"
	if len(v.Curio.Actions) > 0 {
		parts := make([]string, len(v.Curio.Actions))
		for i, a := range v.Curio.Actions {
			parts[i] = fmt.Sprintf("%d=%s", i, a)
		}
		actions = strings.Join(parts, " ")
	}
	return fmt.Sprintf(" %s %s %s [%s] head %s size %d/%d moves %d/%d actions %s%s\n",
		marker, v.Key, v.Curio.Name, v.Curio.Team, head,
		len(v.Points), v.Curio.MaxSize, v.Curio.MovesLeft(), v.Curio.Speed, actions, status)
}

func formatEvents(events []dispatch.Event) string {
	var b strings.Builder
	for _, ev := range events {
		fmt.Fprintf(&b, "  #%d %s %s\n", ev.Seq, ev.Team, ev.Change.Kind())
	}
	return b.String()
}

func formatCommandResult(result *service.CommandResult) string {
	var b strings.Builder
	if result.Success {
		fmt.Fprintf(&b, "✓ %s\n", result.Command)
	} else {
		fmt.Fprintf(&b, "✗ %s rejected (%s): %s\n", result.Command, result.ErrorCode, result.Message)
	}
	if len(result.Applied) > 0 {
		b.WriteString("Applied:\n")
		b.WriteString(formatEvents(result.Applied))
	}
	if result.Undone > 0 {
		fmt.Fprintf(&b, "Undid %d events\n", result.Undone)
	}
	if result.Halted != "" {
		fmt.Fprintf(&b, "Game over: %s\n", result.Halted)
	} else if result.AITurn {
		b.WriteString("AI turn: call advance_ai\n")
	}
	b.WriteString("\n")
	b.WriteString(formatState(result.State))
	return b.String()
}

func formatBulkResult(result *service.BulkCommandResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Executed %d of %d", result.Executed, result.Requested)
	if result.StoppedOn > 0 {
		fmt.Fprintf(&b, ", stopped on #%d", result.StoppedOn)
	}
	if result.StopReason != "" {
		fmt.Fprintf(&b, " (%s)", result.StopReason)
	}
	b.WriteString("\n")
	if result.Message != "" {
		fmt.Fprintf(&b, "%s\n", result.Message)
	}
	if result.Truncated {
		fmt.Fprintf(&b, "Truncated to %d commands\n", result.Limit)
	}
	if len(result.Applied) > 0 {
		b.WriteString("Applied:\n")
		b.WriteString(formatEvents(result.Applied))
	}
	if result.Undone > 0 {
		fmt.Fprintf(&b, "Undid %d events\n", result.Undone)
	}
	if result.Halted != "" {
		fmt.Fprintf(&b, "Game over: %s\n", result.Halted)
	}
	b.WriteString("\n")
	b.WriteString(formatState(result.State))
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "History page %d/%d (%d events)\n", history.Page, history.TotalPages, history.TotalEvents)
	b.WriteString(formatEvents(history.Events))
	if history.HasNext {
		fmt.Fprintf(&b, "More: page %d\n", history.Page+1)
	}
	return b.String()
}

func describeCell(state *engine.Snapshot, row, col int) string {
	if row < 0 || col < 0 || uint32(row) >= state.Bounds.Height || uint32(col) >= state.Bounds.Width {
		return fmt.Sprintf("(%d,%d) is outside the %dx%d grid", row, col, state.Bounds.Width, state.Bounds.Height)
	}
	pt := grid.Pt(uint32(row), uint32(col))
	for _, c := range state.Closed {
		if c == pt {
			return fmt.Sprintf("(%d,%d) is a closed square", row, col)
		}
	}
	for i := range state.Curios {
		v := &state.Curios[i]
		for j, p := range v.Points {
			if p != pt {
				continue
			}
			part := "tail segment"
			if j == 0 {
				part = "head"
			}
			return fmt.Sprintf("(%d,%d) holds the %s of %s (%s, team %s)", row, col, part, v.Curio.Name, v.Key, v.Curio.Team)
		}
	}
	for _, p := range state.Pickups {
		if p.Point == pt {
			return fmt.Sprintf("(%d,%d) holds a pickup: %s", row, col, p.Pickup)
		}
	}
	for _, a := range state.AccessPoints {
		if a.Point == pt {
			card := a.Access.Card
			if card == "" {
				card = "no card"
			}
			return fmt.Sprintf("(%d,%d) is an access point for %s with %s", row, col, a.Access.Team, card)
		}
	}
	return fmt.Sprintf("(%d,%d) is an open square", row, col)
}
