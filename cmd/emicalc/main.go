package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"emicalc/internal/backend"
	"emicalc/internal/cache"
	"emicalc/internal/chart"
	"emicalc/internal/cli"
	"emicalc/internal/core"
	apphttp "emicalc/internal/http"
	applog "emicalc/internal/log"
	"emicalc/internal/session"
)

const cacheCleanupInterval = time.Minute

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}

	ctx := context.Background()
	factory := backend.NewFactory(logger.Logger)

	sessions, err := factory.CreateSessionStore(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize session store", applog.FieldError, err, "backend", cfg.SessionBackend)
		os.Exit(1)
	}

	quotes, journal, err := factory.CreateQuoteService(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize quote journal", applog.FieldError, err, "backend", cfg.JournalBackend)
		os.Exit(1)
	}

	renderer, err := chart.New(cfg.ChartRenderer)
	if err != nil {
		logger.Error("Failed to initialize chart renderer", applog.FieldError, err)
		os.Exit(1)
	}

	manager := session.NewManager(sessions.Store, core.DefaultLimits())
	manager.OnChange(quotes.OnChange)

	caches := cache.NewManager()
	if sessions.Cleaner != nil {
		caches.Register("sessions", sessions.Cleaner)
		caches.StartCleanup(cacheCleanupInterval)
	}

	ready := map[string]apphttp.ReadyCheck{}
	if sessions.Ping != nil {
		ready["sessions"] = apphttp.ReadyCheck(sessions.Ping)
	}
	if journal != nil {
		ready["journal"] = journal.Ping
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Sessions:           manager,
		Quotes:             quotes,
		Renderer:           renderer,
		Caches:             caches,
		Logger:             logger,
		ReadyChecks:        ready,
		SessionTTL:         cfg.SessionTTL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	shutdownCtx, done := cli.GracefulShutdown(logger, cli.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := quotes.Close(); err != nil {
			logger.Error("Failed to close quote service", applog.FieldError, err)
		}
		if sessions.Cleanup != nil {
			if err := sessions.Cleanup(); err != nil {
				logger.Error("Failed to close session store", applog.FieldError, err)
			}
		}
	})

	logger.Info("Starting emicalc server",
		"port", cfg.Port,
		"sessions", cfg.SessionBackend,
		"journal", cfg.JournalBackend,
		"chart", cfg.ChartRenderer,
		"amqp", cfg.AMQPEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
