package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/gridtactics/game/action"
	"github.com/wricardo/gridtactics/game/dispatch"
	"github.com/wricardo/gridtactics/game/engine"
	"github.com/wricardo/gridtactics/game/grid"
	"github.com/wricardo/gridtactics/game/service"
)

func testSession(t *testing.T) (*service.Session, grid.Key) {
	t.Helper()
	catalog, err := action.NewCatalog(nil, nil)
	if err != nil {
		t.Fatalf("Failed to build catalog: %v", err)
	}
	n := engine.NewNode(grid.New[engine.Item](grid.Bounds{Width: 3, Height: 1}), catalog)
	key, err := n.AddCurio([]grid.Point{grid.Pt(0, 0)}, engine.Curio{Team: engine.TeamPlayer, Name: "A", Speed: 2, MaxSize: 1})
	if err != nil {
		t.Fatalf("AddCurio failed: %v", err)
	}
	d := dispatch.New(n, dispatch.Settings{}, nil)
	t.Cleanup(d.Close)
	return &service.Session{ID: "ws01", Dispatcher: d}, key
}

func newClient(hub *Hub, sessionID string) *Client {
	return &Client{hub: hub, id: "c-" + sessionID, sessionID: sessionID, send: make(chan []byte, 256)}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		return message
	case <-time.After(time.Second):
		t.Fatal("No message received within timeout")
	}
	return Message{}
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub(nil)
	client := newClient(hub, "test-session")

	hub.registerClient(client)

	if !hub.sessions["test-session"][client] {
		t.Error("Client was not registered in session")
	}
	if len(hub.sessions["test-session"]) != 1 {
		t.Errorf("Expected 1 client in session, got %d", len(hub.sessions["test-session"]))
	}
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub(nil)
	client := newClient(hub, "test-session")

	hub.registerClient(client)
	hub.unregisterClient(client)

	if _, exists := hub.sessions["test-session"]; exists {
		t.Error("Session should have been cleaned up after last client unregistered")
	}
	if _, ok := <-client.send; ok {
		t.Error("Expected the send channel to be closed")
	}
	// Unregistering twice is harmless.
	hub.unregisterClient(client)
}

func TestHubMultipleClientsInSession(t *testing.T) {
	hub := NewHub(nil)
	client1 := newClient(hub, "multi")
	client2 := newClient(hub, "multi")

	hub.registerClient(client1)
	hub.registerClient(client2)
	if len(hub.sessions["multi"]) != 2 {
		t.Errorf("Expected 2 clients in session, got %d", len(hub.sessions["multi"]))
	}

	hub.unregisterClient(client1)
	if len(hub.sessions["multi"]) != 1 {
		t.Errorf("Expected 1 client remaining in session, got %d", len(hub.sessions["multi"]))
	}
	if !hub.sessions["multi"][client2] {
		t.Error("client2 should still be registered")
	}
}

func TestHubBroadcastOnlyToSession(t *testing.T) {
	hub := NewHub(nil)
	mine := newClient(hub, "mine")
	other := newClient(hub, "other")
	hub.registerClient(mine)
	hub.registerClient(other)

	hub.BroadcastEvent("mine", "custom-event", "test-data")
	hub.broadcastMessage(<-hub.broadcast)

	message := receive(t, mine)
	if message.Event != "custom-event" || message.Data != "test-data" {
		t.Errorf("Unexpected message %+v", message)
	}
	select {
	case <-other.send:
		t.Error("Client of another session received the message")
	default:
	}
}

func TestHubDropsWhenQueueFull(t *testing.T) {
	hub := NewHub(nil)
	for i := 0; i < cap(hub.broadcast)+10; i++ {
		hub.BroadcastEvent("s", "e", i)
	}
	if len(hub.broadcast) != cap(hub.broadcast) {
		t.Errorf("Expected a full queue, got %d of %d", len(hub.broadcast), cap(hub.broadcast))
	}
}

func TestSessionObserverFanOut(t *testing.T) {
	hub := NewHub(nil)
	session, key := testSession(t)
	hub.Attach(session)
	client := newClient(hub, session.ID)
	hub.registerClient(client)

	ctx := context.Background()
	if err := session.Dispatcher.Apply(ctx, dispatch.Command{Kind: dispatch.CmdActivate, Curio: key}); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	hub.broadcastMessage(<-hub.broadcast)

	message := receive(t, client)
	if message.Event != EventState {
		t.Fatalf("Expected %s, got %s", EventState, message.Event)
	}
	if len(message.Events) != 1 || message.Events[0].Change.Kind() != engine.KindActivateCurio {
		t.Errorf("Expected the activate event, got %+v", message.Events)
	}
	if message.State == nil || message.State.Active != key {
		t.Errorf("Expected state with %s active", key)
	}

	// Two moves exhaust the curio and finish the turn: one message.
	for range 2 {
		if err := session.Dispatcher.Apply(ctx, dispatch.Command{Kind: dispatch.CmdMove, Direction: grid.East}); err != nil {
			t.Fatalf("Move failed: %v", err)
		}
	}
	hub.broadcastMessage(<-hub.broadcast)
	hub.broadcastMessage(<-hub.broadcast)
	receive(t, client)
	message = receive(t, client)
	if n := len(message.Events); n != 2 {
		t.Errorf("Expected move and finish events, got %d", n)
	}
	if message.State.Board[0] != "..A" {
		t.Errorf("Expected board ..A, got %q", message.State.Board[0])
	}

	if err := session.Dispatcher.Apply(ctx, dispatch.Command{Kind: dispatch.CmdSkip}); err == nil {
		t.Fatal("Expected skip to be rejected")
	}
	hub.broadcastMessage(<-hub.broadcast)
	message = receive(t, client)
	if message.Event != EventRejected {
		t.Errorf("Expected %s, got %s", EventRejected, message.Event)
	}

	if err := session.Dispatcher.Apply(ctx, dispatch.Command{Kind: dispatch.CmdUndo}); err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	hub.broadcastMessage(<-hub.broadcast)
	message = receive(t, client)
	undone, ok := message.Data.(map[string]any)["undone"].([]any)
	if !ok || len(undone) != 1 {
		t.Errorf("Expected one undone event, got %v", message.Data)
	}
}

func TestWebSocketEndToEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(nil)
	go hub.Run(ctx)

	session, key := testSession(t)
	hub.Attach(session)
	initial := session.Dispatcher.Node().Snapshot()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("session"), &initial)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=" + session.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	read := func() Message {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var message Message
		if err := conn.ReadJSON(&message); err != nil {
			t.Fatalf("Failed to read WebSocket message: %v", err)
		}
		return message
	}

	welcome := read()
	if welcome.Event != EventWelcome || welcome.State == nil {
		t.Fatalf("Expected welcome with state, got %+v", welcome)
	}
	if id, _ := welcome.Data.(map[string]any)["client_id"].(string); id == "" {
		t.Error("Expected a client id in the welcome message")
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients(ctx, session.ID) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("Client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := session.Dispatcher.Apply(ctx, dispatch.Command{Kind: dispatch.CmdActivate, Curio: key}); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	update := read()
	if update.Event != EventState || update.State.Active != key {
		t.Errorf("Expected state update with %s active, got %+v", key, update)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.Clients(ctx, session.ID) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Client never unregistered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
