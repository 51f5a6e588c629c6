package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/guieduc/guieduc/internal/remote"
	"github.com/guieduc/guieduc/internal/schema"
)

var _ remote.Notifier = (*Server)(nil)

func startTestServer(t *testing.T) *Server {
	t.Helper()

	server := NewServer(&Config{
		Host:   "127.0.0.1",
		Port:   0,
		Logger: log.New(io.Discard, "", 0),
	})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { server.Stop() })
	return server
}

func dial(t *testing.T, ctx context.Context, server *Server) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

// waitForClients polls until the server has registered n clients.
func waitForClients(t *testing.T, server *Server, n int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for server.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", server.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWelcomeIsStats(t *testing.T) {
	server := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)
	if msg := readMessage(t, ctx, conn); msg.Type != MessageTypeStats {
		t.Errorf("welcome type = %s, want %s", msg.Type, MessageTypeStats)
	}
	waitForClients(t, server, 1)
}

func TestEventsSavedBroadcast(t *testing.T) {
	server := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conns := []*websocket.Conn{dial(t, ctx, server), dial(t, ctx, server)}
	for _, c := range conns {
		readMessage(t, ctx, c)
	}
	waitForClients(t, server, 2)

	server.EventsSaved(1, []schema.Event{{
		ID:      "e1",
		Entity:  schema.EntityAluno,
		Op:      schema.OpCreate,
		Payload: json.RawMessage(`{"nome":"Ana"}`),
		TS:      99,
	}})

	for i, c := range conns {
		msg := readMessage(t, ctx, c)
		if msg.Type != MessageTypeEventsSaved {
			t.Fatalf("client %d got %s, want %s", i, msg.Type, MessageTypeEventsSaved)
		}
		var data EventsSavedData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			t.Fatal(err)
		}
		if data.Saved != 1 || len(data.Events) != 1 || data.Events[0].ID != "e1" || data.Events[0].TS != 99 {
			t.Errorf("client %d data = %+v", i, data)
		}
	}

	stats := server.Stats()
	if stats.Pushes != 1 || stats.Saved != 1 || stats.ByEntity["aluno"] != 1 || stats.ByOp["create"] != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestStatsOnRequest(t *testing.T) {
	server := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server.EventsSaved(2, []schema.Event{{ID: "a", Entity: schema.EntityTurma}, {ID: "b", Entity: schema.EntityTurma}})

	conn := dial(t, ctx, server)
	readMessage(t, ctx, conn)

	req, _ := json.Marshal(Message{Type: MessageTypeStats})
	if err := conn.Write(ctx, websocket.MessageText, req); err != nil {
		t.Fatal(err)
	}
	msg := readMessage(t, ctx, conn)
	var data StatsData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatal(err)
	}
	if msg.Type != MessageTypeStats || data.Saved != 2 || data.ByEntity["turma"] != 2 {
		t.Errorf("stats reply = %s %+v", msg.Type, data)
	}
}

func TestClientDisconnect(t *testing.T) {
	server := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	readMessage(t, ctx, conn)
	waitForClients(t, server, 1)

	conn.Close(websocket.StatusNormalClosure, "")
	waitForClients(t, server, 0)
}

func TestHealth(t *testing.T) {
	server := startTestServer(t)

	resp, err := http.Get("http://" + server.Addr() + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("health = %v", body)
	}
}

func TestBroadcastDropsFullClient(t *testing.T) {
	server := NewServer(&Config{Logger: log.New(io.Discard, "", 0)})

	slow := &client{addr: "slow", out: make(chan []byte, 1), done: make(chan struct{})}
	fast := &client{addr: "fast", out: make(chan []byte, 4), done: make(chan struct{})}
	server.register(slow)
	server.register(fast)

	server.Broadcast(Message{Type: MessageTypeStats})
	server.Broadcast(Message{Type: MessageTypeStats})

	select {
	case <-slow.done:
	default:
		t.Error("full client was not dropped")
	}
	if n := server.ClientCount(); n != 1 {
		t.Errorf("ClientCount() = %d, want 1", n)
	}
	if n := len(fast.out); n != 2 {
		t.Errorf("fast client queued %d frames, want 2", n)
	}
}

func TestRegisterAfterStop(t *testing.T) {
	server := startTestServer(t)
	if err := server.Stop(); err != nil {
		t.Fatal(err)
	}
	if server.register(newClient(nil, "late")) {
		t.Error("register() succeeded on a stopped feed")
	}
}
