package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/tetris-online/tetris/server/internal/score"
)

const maxBodyBytes = 64 << 10

type healthRes struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Connections int    `json:"connections"`
	Goroutines  int    `json:"goroutines"`
}

// handleHealth reports liveness plus connection and goroutine counts.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthRes{
		Status:      "ok",
		Message:     "Tetris server is running",
		Connections: s.hub.ClientCount(),
		Goroutines:  runtime.NumGoroutine(),
	})
}

// handleTopScores serves GET /api/scores?limit=N. A missing or unparsable
// limit means the default page size.
func (s *Server) handleTopScores(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, s.scores.TopScores(limit))
}

// handleSubmitScore serves POST /api/scores.
func (s *Server) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	var sub score.Submission
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	rec, err := s.scores.Submit(sub)
	if err != nil {
		if errors.Is(err, score.ErrValidation) {
			writeError(w, http.StatusBadRequest, score.ErrValidation.Error())
			return
		}
		log.Error().Err(err).Msg("submit score")
		writeError(w, http.StatusInternalServerError, "submit_failed")
		return
	}

	log.Info().Str("player", rec.PlayerName).Float64("score", rec.Score).Msg("score submitted")
	writeJSON(w, http.StatusCreated, rec)
}

// handlePlayerBest serves GET /api/scores/player/{playerName}.
func (s *Server) handlePlayerBest(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "playerName")
	if r.URL.RawPath != "" {
		// chi matched on the escaped path; undo it for the lookup.
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	}
	writeJSON(w, http.StatusOK, s.scores.PlayerBest(name))
}

// handleStats serves GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scores.Stats(s.hub))
}
