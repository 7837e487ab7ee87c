// Package main provides the task worker entry point.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Itoktsnhc/stat.itok/internal/adapter"
	"github.com/Itoktsnhc/stat.itok/internal/config"
	"github.com/Itoktsnhc/stat.itok/internal/logging"
	"github.com/Itoktsnhc/stat.itok/internal/queue"
	"github.com/Itoktsnhc/stat.itok/internal/storage"
	"github.com/Itoktsnhc/stat.itok/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("failed to load configuration")
	}

	logging.InitGlobalLogger(cfg.Logging.Level, cfg.Logging.Format)
	logger := logging.GetGlobalLogger()
	logger.Info("worker starting")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisStore(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	defer redis.Close()

	blobs, err := storage.NewBlobStore(context.Background(), &cfg.Blob)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to blob store")
	}

	configRepo := storage.NewJobConfigRepository(postgres)
	runRepo := storage.NewJobRunRepository(postgres)
	payloadStore := storage.NewPayloadStore(redis)
	dedupIndex := storage.NewDedupIndex(redis)
	taskQueue := queue.New(redis, cfg.Worker.QueueName)

	fcalc := adapter.NewFCalcClient(cfg.Platform.FCalcURL, cfg.StatInk.AgentName, cfg.StatInk.AgentVersion)
	nintendo := adapter.NewNintendoClient(&cfg.Platform, fcalc)
	statink := adapter.NewStatInkClient(&cfg.StatInk)

	taskWorker, err := worker.NewTaskWorker(worker.TaskWorkerConfig{
		Worker:   &cfg.Worker,
		Agent:    &cfg.StatInk,
		Configs:  configRepo,
		Runs:     runRepo,
		Payloads: payloadStore,
		Dedup:    dedupIndex,
		Blobs:    blobs,
		TaskQ:    taskQueue,
		Nintendo: nintendo,
		StatInk:  statink,
		Logger:   logger.WithField("component", "task-worker"),
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to build task worker")
	}

	poisonWorker := worker.NewPoisonWorker(taskQueue, blobs, logger.WithField("component", "poison-worker"))

	taskWorker.Start()
	poisonWorker.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	taskWorker.Stop()
	poisonWorker.Stop()
}
