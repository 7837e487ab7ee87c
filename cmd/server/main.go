// Package main provides the API server entry point.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Itoktsnhc/stat.itok/internal/adapter"
	"github.com/Itoktsnhc/stat.itok/internal/api"
	"github.com/Itoktsnhc/stat.itok/internal/auth"
	"github.com/Itoktsnhc/stat.itok/internal/config"
	"github.com/Itoktsnhc/stat.itok/internal/dispatcher"
	"github.com/Itoktsnhc/stat.itok/internal/logging"
	"github.com/Itoktsnhc/stat.itok/internal/notify"
	"github.com/Itoktsnhc/stat.itok/internal/queue"
	"github.com/Itoktsnhc/stat.itok/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("failed to load configuration")
	}

	logging.InitGlobalLogger(cfg.Logging.Level, cfg.Logging.Format)
	logger := logging.GetGlobalLogger()
	logger.Info("server starting")

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

	configRepo := storage.NewJobConfigRepository(postgres)
	runRepo := storage.NewJobRunRepository(postgres)
	payloadStore := storage.NewPayloadStore(redis)
	dedupIndex := storage.NewDedupIndex(redis)
	taskQueue := queue.New(redis, cfg.Worker.QueueName)

	fcalc := adapter.NewFCalcClient(cfg.Platform.FCalcURL, cfg.StatInk.AgentName, cfg.StatInk.AgentVersion)
	nintendo := adapter.NewNintendoClient(&cfg.Platform, fcalc)
	statink := adapter.NewStatInkClient(&cfg.StatInk)
	sessions := auth.NewSessionManager(nintendo, logger)
	notifier := notify.NewWebhookNotifier(&cfg.Notify, logger)

	disp, err := dispatcher.New(dispatcher.Config{
		Dispatch: &cfg.Dispatch,
		Configs:  configRepo,
		Runs:     runRepo,
		Dedup:    dedupIndex,
		Payloads: payloadStore,
		TaskQ:    taskQueue,
		Sessions: sessions,
		Nintendo: nintendo,
		StatInk:  statink,
		Notifier: notifier,
		Logger:   logger.WithField("component", "dispatcher"),
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to build dispatcher")
	}
	if err := disp.Start(); err != nil {
		logger.WithError(err).Fatal("failed to start dispatcher")
	}
	defer disp.Stop()

	server := api.NewServer(&cfg.Server, configRepo, runRepo, sessions, statink, disp, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}
