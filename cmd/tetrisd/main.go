package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tetris-online/tetris/server/internal/config"
	"github.com/tetris-online/tetris/server/internal/gamestate"
	"github.com/tetris-online/tetris/server/internal/httpserver"
	"github.com/tetris-online/tetris/server/internal/hub"
	"github.com/tetris-online/tetris/server/internal/score"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	states := gamestate.NewCache(nil)
	h := hub.NewHub(states)
	go h.Run(ctx)

	scores := score.NewStore(score.WithCapacity(cfg.MaxScores))

	api := httpserver.New(ctx, httpserver.Options{
		ClientOrigin:   cfg.ClientOrigin,
		StaticDir:      cfg.StaticDir,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}, scores, h)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start server in a goroutine so we can listen for shutdown signals.
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("http", "http://localhost:"+cfg.Port).
			Str("ws", "ws://localhost:"+cfg.Port).
			Int("max_scores", cfg.MaxScores).
			Msg("tetris server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Int("scores", scores.Len()).Msg("server stopped")
}

// setupLogging applies LOG_LEVEL and LOG_FORMAT to the global logger.
func setupLogging(cfg config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, using info")
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
