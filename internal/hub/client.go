package hub

import (
	"context"
	"errors"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tetris-online/tetris/server/internal/identity"
)

const (
	// sendBuffer is the number of outbound frames queued per client.
	sendBuffer = 256

	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	pingTimeout  = 10 * time.Second
)

// Client is one live WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	id   string

	// send carries encoded frames to WritePump. Closed by the hub on unregister.
	send chan []byte

	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient wraps conn with a fresh connection ID. The client's context is
// derived from serverCtx so that server shutdown ends every pump.
func NewClient(h *Hub, conn *websocket.Conn, serverCtx context.Context) *Client {
	ctx, cancel := context.WithCancel(serverCtx)
	return &Client{
		hub:    h,
		conn:   conn,
		id:     identity.NewConnID(),
		send:   make(chan []byte, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// ID returns the connection ID.
func (c *Client) ID() string { return c.id }

// enqueue offers data to the outbound queue without blocking.
// Callers must hold the hub lock so send cannot be closed concurrently.
func (c *Client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// ReadPump reads frames and hands them to the hub until the connection
// fails, then unregisters the client.
func (c *Client) ReadPump() {
	defer c.hub.Unregister(c)

	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			switch status := websocket.CloseStatus(err); {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				log.Debug().Str("conn", c.id).Msg("client closed connection")
			case errors.Is(err, context.Canceled):
			default:
				log.Warn().Err(err).Str("conn", c.id).Msg("websocket read error")
			}
			return
		}
		c.hub.Dispatch(c, data)
	}
}

// WritePump drains the outbound queue to the connection. It closes the
// connection when the queue is closed or a write fails.
func (c *Client) WritePump() {
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				log.Warn().Err(err).Str("conn", c.id).Msg("websocket write error")
				_ = c.conn.CloseNow()
				return
			}
		case <-c.ctx.Done():
			_ = c.conn.CloseNow()
			return
		}
	}
}

// HeartbeatLoop pings the peer periodically and drops it when a ping goes
// unanswered.
func (c *Client) HeartbeatLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, pingTimeout)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				log.Debug().Err(err).Str("conn", c.id).Msg("ping failed")
				_ = c.conn.CloseNow()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}
