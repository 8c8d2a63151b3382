package main

import (
	"context"
	"errors"
	"os"
	"time"

	"budget/internal/amqp"
	"budget/internal/cli"
	"budget/internal/log"
	"budget/internal/persistence"
	"budget/internal/remote"
	gsheet "budget/internal/sheets/google"
	"budget/internal/storage"
	"budget/internal/worker"

	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		// The logger is not configured yet.
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err)
		return err
	}
	logger, err := cli.SetupLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger = logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting budget-worker", log.FieldOperation, log.OpStartup)

	if cfg.DataBackend != "sqlite" || cfg.AMQPURL == "" {
		err := errors.New("the worker needs DATA_BACKEND=sqlite and AMQP_URL")
		logger.Error("Worker not configured", log.FieldError, err)
		return err
	}

	ctx, stop := cli.GracefulShutdown(context.Background(), logger)
	defer stop()

	// Initialize SQLite repository to read saved snapshots
	sqliteRepo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		return err
	}
	defer sqliteRepo.Close()

	opts := worker.Options{HistoryMonths: cfg.HistoryMonths, Logger: logger}

	if cfg.RedisURL != "" {
		client, err := remote.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("Failed to connect to Redis", log.FieldError, err)
			return err
		}
		defer client.Close()
		opts.Replicas = func(userID string) persistence.Replica {
			return remote.NewRedisReplica(client, cfg.RedisKeyPrefix, userID, logger)
		}
		logger.Info("Redis replica enabled", "prefix", cfg.RedisKeyPrefix)
	} else {
		logger.Info("Redis replica disabled - no REDIS_URL provided")
	}

	if cfg.SheetsEnabled() {
		sheetsClient, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
			Logger:             logger,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			return err
		}
		opts.Sheets = sheetsClient
		logger.Info("Google Sheets mirror enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	if opts.Replicas == nil && opts.Sheets == nil {
		err := errors.New("nothing to replicate to: set REDIS_URL or GOOGLE_SPREADSHEET_ID")
		logger.Error("Worker not configured", log.FieldError, err)
		return err
	}

	// Initialize AMQP client for consuming messages
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		return err
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(sqliteRepo, opts)
	users := []string{cfg.UserID}

	// Catch up on anything saved while the worker was down.
	if err := syncWorker.ProcessPending(ctx, users); err != nil {
		logger.Error("Startup sync check failed", log.FieldError, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := amqpClient.ConsumeSnapshotSync(ctx, syncWorker.HandleSnapshotSync)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	// Periodic pass for messages that never arrived.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := syncWorker.ProcessPending(ctx, users); err != nil {
					logger.Error("Periodic sync failed", log.FieldError, err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Message consumption failed", log.FieldError, err)
		return err
	}
	logger.Info("Worker shutdown complete", log.FieldOperation, log.OpShutdown)
	return nil
}
