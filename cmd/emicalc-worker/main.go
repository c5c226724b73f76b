package main

import (
	"context"
	"errors"
	"os"
	"sync"

	"emicalc/internal/amqp"
	"emicalc/internal/backend"
	"emicalc/internal/cli"
	applog "emicalc/internal/log"
	"emicalc/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(applog.ComponentWorker)
	logger.Info("Starting emicalc-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	// the worker reads what the web process wrote, so it needs the shared database
	if backendCfg.JournalType != backend.JournalSQLite {
		logger.Error("The export worker requires JOURNAL_BACKEND=sqlite", "journal", cfg.JournalBackend)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger.Logger)

	journal, err := factory.CreateJournal(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize quote journal", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer journal.Close()

	exporter, err := factory.CreateExporter(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize exporter", applog.FieldError, err)
		os.Exit(1)
	}

	exportWorker := worker.NewExportWorker(journal, exporter.Exporter, cfg.ExportBatchSize, cfg.ExportConcurrency)

	ctx, done := cli.GracefulShutdown(logger, cli.ShutdownTimeout, nil)

	logger.Info("Performing startup export check...", "exporter", exporter.Kind)
	if err := exportWorker.StartupCheck(ctx); err != nil {
		// keep running; the periodic sweep retries
		logger.Error("Failed startup export check", applog.FieldError, err)
	}

	var wg sync.WaitGroup

	if cfg.AMQPEnabled() {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			err := amqpClient.ConsumeQuoteRecorded(ctx, exportWorker.HandleQuoteRecorded)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", applog.FieldError, err)
			}
		}()
	} else {
		logger.Info("AMQP disabled, relying on the periodic export sweep", "interval", cfg.ExportInterval)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		exportWorker.Run(ctx, cfg.ExportInterval)
	}()

	cli.WaitForShutdown(ctx, done)
	wg.Wait()
	logger.Info("Worker shutdown complete")
}
