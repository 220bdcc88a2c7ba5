package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/doc2md/config"
	"github.com/feichai0017/doc2md/internal/service/document"
	"github.com/feichai0017/doc2md/pkg/logger"
	"github.com/feichai0017/doc2md/pkg/queue"
	"github.com/feichai0017/doc2md/pkg/worker"
)

const cleanupSchedule = "@every 1h"

func main() {
	cfg, err := config.Get()
	if err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(logger.FromConfig(cfg.Log))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	docService, err := document.GetService(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to create document service", logger.Error(err))
		os.Exit(1)
	}

	documentWorker := worker.NewDocumentWorker(worker.Config{
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		Concurrency:   cfg.Queue.Concurrency,
		Queues:        queue.Queues,
		RetryDelay:    cfg.Queue.RetryDelay,
	}, docService, log)

	if err := documentWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}

	scheduler := asynq.NewScheduler(queue.RedisOpt(queue.Config{
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	}), nil)
	if _, err := scheduler.Register(cleanupSchedule, asynq.NewTask(queue.TaskTypeCleanup, nil), asynq.Queue(queue.QueueLow)); err != nil {
		log.Error("Failed to register cleanup task", logger.Error(err))
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		log.Error("Failed to start scheduler", logger.Error(err))
		os.Exit(1)
	}

	log.Info("Worker started", logger.Int("concurrency", cfg.Queue.Concurrency))
	<-ctx.Done()

	log.Info("Shutting down worker...")
	scheduler.Shutdown()
	documentWorker.Stop()
	log.Info("Worker stopped")
}
