package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/abhinav-singh-5383/rift-money-mulling/internal/api"
	"github.com/abhinav-singh-5383/rift-money-mulling/internal/config"
	"github.com/abhinav-singh-5383/rift-money-mulling/internal/db"
	"github.com/abhinav-singh-5383/rift-money-mulling/internal/heuristics"
	"github.com/abhinav-singh-5383/rift-money-mulling/internal/jobs"
	"github.com/abhinav-singh-5383/rift-money-mulling/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	gin.SetMode(cfg.Server.GinMode)

	log.Info().Msg("Starting RIFT Financial Forensic Engine...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := heuristics.NewEngine(cfg.Engine.Options())
	cache := jobs.NewCache()
	manager := jobs.NewManager(engine, cache)

	// Setup WebSocket Hub
	wsHub := api.NewHub()
	go wsHub.Run()
	defer wsHub.Close()
	manager.OnFinish(wsHub.BroadcastJob)

	// The audit store is optional; without it results live in memory only.
	if cfg.Database.URL != "" {
		store, err := db.Connect(ctx, cfg.Database.URL, cfg.Database.ConnectTimeout)
		if err != nil {
			log.Warn().Err(err).Msg("continuing without the audit store")
		} else {
			defer store.Close()
			if err := store.InitSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("audit schema init failed")
			}
			manager.OnFinish(store.Recorder())
		}
	}

	r := api.SetupRouter(api.Deps{
		Engine: engine,
		Jobs:   manager,
		Cache:  cache,
		Hub:    wsHub,
		Server: cfg.Server,
	})

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.ListenAddr).Msg("engine listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
