package main

import (
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/voxserve/voxserve/internal/config"
	"github.com/voxserve/voxserve/internal/queue"
	"github.com/voxserve/voxserve/internal/queue/workers"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// One synthesis at a time: the loaded model owns the process's
			// accelerator memory budget.
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				queue.QueueSynthesis: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.Use(workers.Recycle(cfg.Worker.MaxTasksPerProcess, func() {
		slog.Info("task budget reached, recycling worker process",
			"max_tasks", cfg.Worker.MaxTasksPerProcess)
		srv.Shutdown()
	}))
	mux.Handle(queue.TypeSynthesisGenerate, workers.NewSynthesisWorker(cfg))

	slog.Info("starting synthesis worker",
		"concurrency", cfg.Worker.Concurrency,
		"task_timeout", cfg.Worker.TaskTimeout,
		"soft_timeout", cfg.Worker.SoftTimeout,
		"max_tasks", cfg.Worker.MaxTasksPerProcess)
	if err := srv.Run(mux); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
