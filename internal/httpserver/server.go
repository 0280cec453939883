// Package httpserver wires the HTTP surface of the leaderboard service:
// the JSON API under /api, the WebSocket endpoint, and static assets.
package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/tetris-online/tetris/server/internal/hub"
	"github.com/tetris-online/tetris/server/internal/score"
)

// Options tunes the HTTP layer.
type Options struct {
	// ClientOrigin is the CORS allow-origin; "*" allows any origin.
	ClientOrigin string

	// StaticDir is served for unmatched GET paths when it exists.
	StaticDir string

	// RateLimitRPS bounds score submissions per client IP; 0 disables it.
	RateLimitRPS   int
	RateLimitBurst int
}

// Server bundles the router with the leaderboard and the connection hub.
type Server struct {
	r      *chi.Mux
	scores *score.Store
	hub    *hub.Hub
	opts   Options

	// ctx bounds the lifetime of accepted WebSocket clients.
	ctx context.Context
}

// New constructs a Server, installs middleware, and registers routes.
// WebSocket clients accepted by the server end when ctx is cancelled.
func New(ctx context.Context, opts Options, scores *score.Store, h *hub.Hub) *Server {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.ClientOrigin == "" {
		opts.ClientOrigin = "*"
	}
	s := &Server{r: chi.NewRouter(), scores: scores, hub: h, opts: opts, ctx: ctx}

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(s.upgradeWebSocket) // ws on any path, before timeouts apply
	s.r.Use(requestLogger)
	s.r.Use(chimw.Recoverer)
	s.r.Use(cors(opts.ClientOrigin))

	s.r.Get("/ws", s.handleWebSocket)

	s.r.Route("/api", func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Use(jsonContentType)

		r.Get("/health", s.handleHealth)
		r.Get("/scores", s.handleTopScores)
		r.With(newIPRateLimiter(ctx, opts.RateLimitRPS, opts.RateLimitBurst).middleware).
			Post("/scores", s.handleSubmitScore)
		r.Get("/scores/player/{playerName}", s.handlePlayerBest)
		r.Get("/stats", s.handleStats)
	})

	s.r.NotFound(s.serveStaticOrNotFound())

	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.r }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// serveStaticOrNotFound serves files from StaticDir, falling back to a JSON 404.
func (s *Server) serveStaticOrNotFound() http.HandlerFunc {
	var files http.Handler
	root := http.Dir(s.opts.StaticDir)
	if s.opts.StaticDir != "" {
		if info, err := os.Stat(s.opts.StaticDir); err == nil && info.IsDir() {
			files = http.FileServer(root)
			log.Info().Str("dir", s.opts.StaticDir).Msg("serving static assets")
		} else {
			log.Info().Str("dir", s.opts.StaticDir).Msg("static dir not found, static assets disabled")
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if files != nil && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
			if f, err := root.Open(r.URL.Path); err == nil {
				f.Close()
				files.ServeHTTP(w, r)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	}
}

// writeJSON encodes v with status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
