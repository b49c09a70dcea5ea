package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/vikasavnish/mfbroker/internal/api"
	"github.com/vikasavnish/mfbroker/internal/config"
	"github.com/vikasavnish/mfbroker/internal/db"
	"github.com/vikasavnish/mfbroker/internal/fundclient"
	"github.com/vikasavnish/mfbroker/internal/logging"
	"github.com/vikasavnish/mfbroker/internal/scheduler"
	"github.com/vikasavnish/mfbroker/internal/services"
	"github.com/vikasavnish/mfbroker/internal/tasks"
)

func load() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(cfg.Log), nil
}

// --- migrateCmd ---

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "applies pending database migrations" }
func (*migrateCmd) Usage() string {
	return `migrate

Applies every embedded migration that has not run yet against DATABASE_URL.
`
}
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}
	database, err := db.Connect(cfg.Database)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		return subcommands.ExitFailure
	}
	if err := db.Migrate(ctx, database); err != nil {
		logger.Errorf("Migration failed: %v", err)
		return subcommands.ExitFailure
	}
	logger.Info("Migrations applied")
	return subcommands.ExitSuccess
}

// --- refreshCmd ---

type refreshCmd struct {
	enqueue bool
}

func (*refreshCmd) Name() string     { return "refresh-navs" }
func (*refreshCmd) Synopsis() string { return "revalues every investment from the latest NAVs" }
func (*refreshCmd) Usage() string {
	return `refresh-navs [-enqueue]

Runs the NAV refresh in this process, or with -enqueue hands one run to the
scheduler queue instead.
`
}
func (c *refreshCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.enqueue, "enqueue", false, "Enqueue a refresh task for the scheduler instead of running it here.")
}

func (c *refreshCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.enqueue {
		redisOpt, err := asynq.ParseRedisURI(cfg.Redis.URL)
		if err != nil {
			logger.Errorf("Invalid REDIS_URL: %v", err)
			return subcommands.ExitFailure
		}
		client := asynq.NewClient(redisOpt)
		defer client.Close()

		info, err := scheduler.Enqueue(ctx, client, cfg.Scheduler.MaxRetry)
		if err != nil {
			logger.Errorf("Failed to enqueue refresh: %v", err)
			return subcommands.ExitFailure
		}
		logger.WithField("task_id", info.ID).Info("Refresh enqueued")
		return subcommands.ExitSuccess
	}

	database, err := db.Connect(cfg.Database)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		return subcommands.ExitFailure
	}

	var locker tasks.Locker
	if redisClient, err := db.ConnectRedis(cfg.Redis); err != nil {
		logger.Warnf("Running without the shared refresh lock: %v", err)
	} else {
		defer redisClient.Close()
		locker = tasks.NewRedisLocker(redisClient, api.RefreshLockKey, cfg.Scheduler.LockTTL)
	}

	job := tasks.NewNAVRefreshJob(
		services.NewInvestmentService(database),
		fundclient.New(cfg.RapidAPI, logger),
		locker, nil, nil, logger,
	)

	runCtx, cancel := context.WithTimeout(ctx, cfg.Scheduler.LockTTL)
	defer cancel()
	result, err := job.Run(runCtx)
	if err != nil {
		logger.Errorf("%s: %v", tasks.MessageRefreshFailed, err)
		return subcommands.ExitFailure
	}
	logger.WithFields(logrus.Fields{
		"updated": result.Updated,
		"skipped": result.Skipped,
	}).Info(result.Message)
	return subcommands.ExitSuccess
}

// --- routesCmd ---

type routesCmd struct{}

func (*routesCmd) Name() string     { return "routes" }
func (*routesCmd) Synopsis() string { return "prints every registered HTTP route" }
func (*routesCmd) Usage() string {
	return `routes

Lists path templates and methods of the API router.
`
}
func (*routesCmd) SetFlags(*flag.FlagSet) {}

func (*routesCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}
	srv, err := api.SetupRouter(api.Dependencies{Config: cfg, Logger: logger})
	if err != nil {
		logger.Errorf("Failed to set up router: %v", err)
		return subcommands.ExitFailure
	}
	if err := api.PrintRoutes(os.Stdout, srv.Router); err != nil {
		logger.Errorf("Failed to print routes: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
