package httpserver

import (
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tetris-online/tetris/server/internal/hub"
)

// upgradeWebSocket routes upgrade requests on any path to the WebSocket
// handler, so browser clients may connect to the server root.
func (s *Server) upgradeWebSocket(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isWebSocketUpgrade(r) {
			s.handleWebSocket(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}

// handleWebSocket accepts the connection, registers it with the hub and
// starts its pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The game client may be served from any origin.
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Error().Err(err).Str("remote", r.RemoteAddr).Msg("websocket accept error")
		return
	}

	client := hub.NewClient(s.hub, conn, s.ctx)
	log.Info().Str("conn", client.ID()).Str("remote", r.RemoteAddr).Msg("new client connected")
	s.hub.Register(client)

	go client.ReadPump()
	go client.WritePump()
	go client.HeartbeatLoop()
}
