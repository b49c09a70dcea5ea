package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vikasavnish/mfbroker/internal/api"
	"github.com/vikasavnish/mfbroker/internal/config"
	"github.com/vikasavnish/mfbroker/internal/db"
	"github.com/vikasavnish/mfbroker/internal/fundclient"
	"github.com/vikasavnish/mfbroker/internal/logging"
	"github.com/vikasavnish/mfbroker/internal/observability"
	"github.com/vikasavnish/mfbroker/internal/tasks"
	"github.com/vikasavnish/mfbroker/internal/websocket"
)

func main() {
	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	logger := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connection
	database, err := db.Connect(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, database); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize Redis client
	redisClient, err := db.ConnectRedis(cfg.Redis)
	if err != nil {
		logger.Warnf("Failed to connect to Redis, NAV refresh runs are only guarded in-process: %v", err)
	} else {
		defer redisClient.Close()
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run(ctx)

	srv, err := api.SetupRouter(api.Dependencies{
		DB:      database,
		Redis:   redisClient,
		Hub:     wsHub,
		Funds:   fundclient.New(cfg.RapidAPI, logger),
		Metrics: observability.NewMetrics(),
		Config:  cfg,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatalf("Failed to set up router: %v", err)
	}

	// Initialize scheduled tasks
	taskManager := tasks.NewManager(logger)
	if cfg.Server.InProcessScheduler {
		taskManager.RegisterTask(tasks.NewNAVRefreshTask(srv.Job, cfg.Scheduler.Interval, cfg.Scheduler.LockTTL, logger))
		taskManager.StartScheduledTasks()
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.WrapHandler(srv.Router, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	taskManager.StopAllTasks()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Graceful shutdown failed: %v", err)
	}
}
