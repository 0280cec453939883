// Package hub implements the real-time connection registry. The Hub goroutine
// owns membership changes through register/unregister channels; reads
// (presence counts, broadcast and unicast delivery) go through an RWMutex so
// that membership cannot change mid-iteration.
package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tetris-online/tetris/server/internal/clock"
	"github.com/tetris-online/tetris/server/internal/gamestate"
	"github.com/tetris-online/tetris/server/internal/protocol"
)

// Hub maintains the set of live clients and fans messages out to them.
type Hub struct {
	// clients maps connection IDs to live clients.
	clients map[string]*Client

	// register receives clients to add to the live set.
	register chan *Client

	// unregister receives clients to remove from the live set.
	unregister chan *Client

	// done is closed once Run has returned.
	done chan struct{}

	// mu protects clients for readers outside the Run goroutine.
	mu sync.RWMutex

	states *gamestate.Cache
	now    clock.Func
}

// NewHub creates a Hub that records reported game states in states.
// A nil states cache gets a fresh one.
func NewHub(states *gamestate.Cache) *Hub {
	if states == nil {
		states = gamestate.NewCache(nil)
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		states:     states,
		now:        clock.System,
	}
}

// Run processes register and unregister events until ctx is cancelled, then
// closes every remaining client. Run should be called in its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			welcome, err := json.Marshal(protocol.NewConnected(h.now()))
			if err != nil {
				log.Error().Err(err).Str("conn", client.id).Msg("encode greeting")
			}
			h.mu.Lock()
			h.clients[client.id] = client
			if err == nil {
				client.enqueue(welcome)
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Info().Str("conn", client.id).Int("connections", n).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			removed := false
			if h.isLiveLocked(client) {
				delete(h.clients, client.id)
				close(client.send)
				client.cancel()
				removed = true
			}
			n := len(h.clients)
			h.mu.Unlock()
			if removed {
				log.Info().Str("conn", client.id).Int("connections", n).Msg("client unregistered")
			}

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.send)
				client.cancel()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			log.Info().Msg("hub stopped")
			return
		}
	}
}

// ClientCount returns the number of live clients. It is safe for concurrent use.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Size is an alias for ClientCount.
func (h *Hub) Size() int { return h.ClientCount() }

// Register queues a client for registration. Once registered the client is
// sent a connected greeting. After the hub has stopped the client is
// cancelled instead.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.cancel()
	}
}

// Unregister queues a client for removal. Unregistering a client that is not
// live is a no-op.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastToAll encodes msg once and queues it for every live client.
// Clients whose outbound queue is full are skipped; delivery failures are
// never reported to the caller.
func (h *Hub) BroadcastToAll(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("encode broadcast")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !client.enqueue(data) {
			log.Debug().Str("conn", client.id).Msg("broadcast skipped: send buffer full")
		}
	}
}

// Send queues msg for a single client. It reports false when the client is
// no longer live or its queue is full.
func (h *Hub) Send(client *Client, msg any) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("encode message")
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.isLiveLocked(client) {
		return false
	}
	return client.enqueue(data)
}

// Dispatch decodes one inbound frame from client and acts on it. Malformed
// frames and unknown types are logged and dropped; the connection stays open.
func (h *Hub) Dispatch(client *Client, raw []byte) {
	msg, err := protocol.Decode(raw)
	if err != nil {
		log.Warn().Err(err).Str("conn", client.id).Msg("dropping malformed message")
		return
	}

	switch m := msg.(type) {
	case protocol.GameState:
		h.states.Upsert(string(m.PlayerID), m.Score, m.Level, m.Lines)

	case protocol.GameOver:
		h.BroadcastToAll(protocol.NewPlayerGameOver(m.PlayerName, m.Score))

	case protocol.GetOnlinePlayers:
		h.Send(client, protocol.NewOnlinePlayers(h.ClientCount()))

	case protocol.Unknown:
		log.Info().Str("conn", client.id).Str("type", m.Type).Msg("unknown message type")
	}
}

// isLiveLocked reports whether client is the registered owner of its ID.
// Callers must hold h.mu.
func (h *Hub) isLiveLocked(client *Client) bool {
	existing, ok := h.clients[client.id]
	return ok && existing == client
}
