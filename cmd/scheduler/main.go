package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/vikasavnish/mfbroker/internal/config"
	"github.com/vikasavnish/mfbroker/internal/logging"
	"github.com/vikasavnish/mfbroker/internal/scheduler"
	"github.com/vikasavnish/mfbroker/internal/services"
)

func main() {
	cfg, err := config.LoadScheduler()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	logger := logging.New(cfg.Log)

	redisOpt, err := asynq.ParseRedisURI(cfg.Redis.URL)
	if err != nil {
		logger.Fatalf("Invalid REDIS_URL: %v", err)
	}

	tokenService, err := services.NewTokenService(cfg.JWT.SecretKeyBytes(), cfg.JWT.Algorithm)
	if err != nil {
		logger.Fatalf("Failed to create token service: %v", err)
	}

	trigger := scheduler.NewTrigger(cfg.Scheduler.RefreshURL, cfg.Scheduler.Timeout, tokenService, logger)
	worker, err := scheduler.NewWorker(scheduler.WorkerConfig{
		Redis:      redisOpt,
		Cron:       cfg.Scheduler.Cron,
		MaxRetry:   cfg.Scheduler.MaxRetry,
		RetryDelay: cfg.Scheduler.RetryDelay,
		Timeout:    cfg.Scheduler.Timeout,
		Logger:     logger,
	}, trigger)
	if err != nil {
		logger.Fatalf("Failed to create scheduler: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(logrus.Fields{
		"cron": cfg.Scheduler.Cron,
		"url":  cfg.Scheduler.RefreshURL,
	}).Info("Starting NAV refresh scheduler")
	if err := worker.Run(ctx); err != nil {
		logger.Fatalf("Scheduler failed: %v", err)
	}
}
