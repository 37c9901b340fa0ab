package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxserve/voxserve/internal/api"
	"github.com/voxserve/voxserve/internal/config"
	"github.com/voxserve/voxserve/internal/engine/xtts"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		slog.Error("failed to create output dir", "dir", cfg.Output.Dir, "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		slog.Warn("redis unavailable at startup, job dispatch will fail until it returns", "error", err)
	}
	defer rdb.Close()

	// The API never runs inference; this engine instance only reports
	// whether the shared model volume holds a usable model.
	eng := xtts.New(xtts.Config{
		ModelDir:       cfg.Model.Dir,
		RuntimeURL:     cfg.Model.RuntimeURL,
		RuntimeTimeout: cfg.Model.RuntimeTimeout,
	})
	if !eng.IsReady() {
		slog.Warn("voice model not ready, synthesis submissions will be rejected",
			"missing", eng.MissingArtifacts())
	}

	router := api.NewRouter(cfg, rdb, eng)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
