package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/tetris-online/tetris/server/internal/gamestate"
	"github.com/tetris-online/tetris/server/internal/identity"
	"github.com/tetris-online/tetris/server/internal/protocol"
)

func startHub(t *testing.T) (*Hub, *gamestate.Cache) {
	t.Helper()
	states := gamestate.NewCache(nil)
	h := NewHub(states)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	go h.Run(ctx)
	return h, states
}

func newTestClient(h *Hub, buffer int) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:    h,
		id:     identity.NewConnID(),
		send:   make(chan []byte, buffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// registerClient registers c and consumes its welcome frame.
func registerClient(t *testing.T, h *Hub, c *Client) {
	t.Helper()
	h.Register(c)
	msg := receive(t, c)
	if msg["type"] != protocol.TypeConnected {
		t.Fatalf("expected connected greeting, got %v", msg)
	}
}

func receive(t *testing.T, c *Client) map[string]any {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if !ok {
			t.Fatalf("send channel for %s closed", c.id)
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message on %s", c.id)
	}
	return nil
}

func waitForCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d clients, got %d", want, h.ClientCount())
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("expected no message on %s, got %s", c.id, data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegisterSendsGreeting(t *testing.T) {
	h, _ := startHub(t)
	c := newTestClient(h, 4)

	h.Register(c)
	msg := receive(t, c)
	if msg["type"] != "connected" || msg["message"] != protocol.WelcomeText {
		t.Fatalf("unexpected greeting %v", msg)
	}
	if ts, _ := msg["timestamp"].(string); ts == "" {
		t.Error("expected timestamp in greeting")
	}
	if got := h.ClientCount(); got != 1 {
		t.Errorf("expected 1 client, got %d", got)
	}
	h.mu.RLock()
	live := h.isLiveLocked(c)
	h.mu.RUnlock()
	if !live {
		t.Error("expected registered client to be live")
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	h, _ := startHub(t)
	c := newTestClient(h, 4)
	registerClient(t, h, c)

	h.Unregister(c)
	h.Unregister(c)

	if got := h.Size(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
	if _, ok := <-c.send; ok {
		t.Error("expected send channel to be closed")
	}
	if c.ctx.Err() == nil {
		t.Error("expected client context to be cancelled")
	}
}

func TestBroadcastToAllSkipsFullClients(t *testing.T) {
	h, _ := startHub(t)
	slow := newTestClient(h, 1)
	fast := newTestClient(h, 4)
	registerClient(t, h, slow)
	registerClient(t, h, fast)

	slow.send <- []byte("occupied")
	h.BroadcastToAll(protocol.NewPlayerGameOver("ann", 10))

	if msg := receive(t, fast); msg["type"] != protocol.TypePlayerGameOver {
		t.Errorf("expected playerGameOver, got %v", msg)
	}
	if got := string(<-slow.send); got != "occupied" {
		t.Errorf("expected only the occupying frame, got %s", got)
	}
	expectNothing(t, slow)

	if got := h.ClientCount(); got != 2 {
		t.Errorf("skipped client must stay registered, got %d clients", got)
	}
}

func TestDispatchGameOverReachesEveryClient(t *testing.T) {
	h, _ := startHub(t)
	clients := []*Client{newTestClient(h, 4), newTestClient(h, 4), newTestClient(h, 4)}
	for _, c := range clients {
		registerClient(t, h, c)
	}

	h.Dispatch(clients[0], []byte(`{"type":"gameOver","playerName":"ann","score":4200}`))

	for _, c := range clients {
		msg := receive(t, c)
		if msg["type"] != protocol.TypePlayerGameOver || msg["playerName"] != "ann" || msg["score"] != float64(4200) {
			t.Errorf("unexpected broadcast %v", msg)
		}
		expectNothing(t, c)
	}
}

func TestDispatchGetOnlinePlayersRepliesToSenderOnly(t *testing.T) {
	h, _ := startHub(t)
	a := newTestClient(h, 4)
	b := newTestClient(h, 4)
	registerClient(t, h, a)
	registerClient(t, h, b)

	h.Dispatch(a, []byte(`{"type":"getOnlinePlayers"}`))

	msg := receive(t, a)
	if msg["type"] != protocol.TypeOnlinePlayers || msg["count"] != float64(2) {
		t.Errorf("unexpected reply %v", msg)
	}
	expectNothing(t, b)
}

func TestDispatchGameStateUpdatesCacheSilently(t *testing.T) {
	h, states := startHub(t)
	c := newTestClient(h, 4)
	registerClient(t, h, c)

	h.Dispatch(c, []byte(`{"type":"gameState","playerId":"p1","score":300,"level":2,"lines":8}`))

	st, ok := states.Get("p1")
	if !ok {
		t.Fatal("expected cached state for p1")
	}
	if st.Score != 300 || st.Level != 2 || st.Lines != 8 {
		t.Errorf("unexpected state %+v", st)
	}
	expectNothing(t, c)
}

func TestDispatchDropsMalformedAndUnknown(t *testing.T) {
	h, states := startHub(t)
	c := newTestClient(h, 4)
	registerClient(t, h, c)

	h.Dispatch(c, []byte(`{{not json`))
	h.Dispatch(c, []byte(`{"type":"teleport"}`))

	expectNothing(t, c)
	if got := h.ClientCount(); got != 1 {
		t.Errorf("expected client to stay registered, got %d", got)
	}
	if states.Len() != 0 {
		t.Errorf("expected no cached states, got %d", states.Len())
	}
}

func TestSendToUnregisteredClientIsSkipped(t *testing.T) {
	h, _ := startHub(t)
	c := newTestClient(h, 4)
	registerClient(t, h, c)
	h.Unregister(c)
	waitForCount(t, h, 0)

	if h.Send(c, protocol.NewOnlinePlayers(1)) {
		t.Error("expected Send to report false for an unregistered client")
	}
}

func TestSendSkipsStaleClientWithSameID(t *testing.T) {
	h, _ := startHub(t)
	c := newTestClient(h, 4)
	registerClient(t, h, c)

	impostor := newTestClient(h, 4)
	impostor.id = c.id
	if h.Send(impostor, protocol.NewOnlinePlayers(1)) {
		t.Error("expected Send to refuse a client that does not own the id")
	}
	expectNothing(t, c)
}

func TestRunClosesClientsOnShutdown(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	c := newTestClient(h, 4)
	registerClient(t, h, c)

	cancel()
	<-h.done

	if _, ok := <-c.send; ok {
		t.Error("expected send channel closed on shutdown")
	}
	if h.ClientCount() != 0 {
		t.Errorf("expected no clients after shutdown, got %d", h.ClientCount())
	}

	// Neither call may block once the hub has stopped.
	late := newTestClient(h, 1)
	h.Register(late)
	h.Unregister(late)
	if late.ctx.Err() == nil {
		t.Error("expected late client to be cancelled")
	}
}
