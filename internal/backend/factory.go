package backend

import (
	"context"
	"fmt"
	"log/slog"

	"emicalc/internal/amqp"
	"emicalc/internal/services"
	"emicalc/internal/session"
	gsheet "emicalc/internal/sheets/google"
	"emicalc/internal/sheets/memory"
	"emicalc/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

func (f *DefaultFactory) CreateSessionStore(ctx context.Context, config Config) (*SessionResult, error) {
	switch config.SessionType {
	case SessionRedis:
		store := session.NewRedisStore(config.RedisAddr, config.SessionTTL)
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to reach Redis at %s: %w", config.RedisAddr, err)
		}
		f.logger.Info("Initialized Redis session store", "addr", config.RedisAddr, "ttl", config.SessionTTL)
		return &SessionResult{Store: store, Ping: store.Ping, Cleanup: store.Close}, nil

	case SessionMemory:
		store := session.NewMemoryStore(config.SessionMax, config.SessionTTL)
		f.logger.Info("Initialized memory session store", "max", config.SessionMax, "ttl", config.SessionTTL)
		return &SessionResult{Store: store, Cleaner: store.Cleaner()}, nil

	default:
		return nil, fmt.Errorf("unsupported session backend: %s", config.SessionType)
	}
}

func (f *DefaultFactory) CreateJournal(_ context.Context, config Config) (Journal, error) {
	switch config.JournalType {
	case JournalNone, "":
		f.logger.Info("Quote journal disabled")
		return nil, nil
	case JournalMemory:
		f.logger.Info("Initialized memory quote journal")
		return storage.NewMemoryJournal(), nil
	case JournalSQLite:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite quote journal", "db_path", config.SQLiteDBPath)
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported journal backend: %s", config.JournalType)
	}
}

func (f *DefaultFactory) CreateQuoteService(ctx context.Context, config Config) (*services.QuoteService, Journal, error) {
	journal, err := f.CreateJournal(ctx, config)
	if err != nil {
		return nil, nil, err
	}
	if journal == nil {
		return services.NewQuoteService(nil, nil), nil, nil
	}

	// AMQP is optional; without it the worker's periodic sweep exports quotes
	var publisher services.EventPublisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			publisher = client
		}
	}

	return services.NewQuoteService(journal, publisher), journal, nil
}

func (f *DefaultFactory) CreateExporter(ctx context.Context, config Config) (*ExporterResult, error) {
	if config.GoogleSpreadsheetID == "" {
		f.logger.Info("No spreadsheet configured, exporting quotes to memory")
		return &ExporterResult{Exporter: memory.New(), Kind: "memory"}, nil
	}

	cli, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		SheetName:          config.GoogleSheetName,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
		OAuthClientJSON:    config.GoogleOAuthClientJSON,
		OAuthClientFile:    config.GoogleOAuthClientFile,
		OAuthTokenFile:     config.GoogleOAuthTokenFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets exporter", "sheet", config.GoogleSheetName)
	return &ExporterResult{Exporter: cli, Kind: "google"}, nil
}
