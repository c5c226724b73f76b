package backend

import (
	"context"
	"time"

	"emicalc/internal/cache"
	"emicalc/internal/services"
	"emicalc/internal/session"
	"emicalc/internal/sheets"
	"emicalc/internal/worker"
)

// Journal is the full quote journal: written by the web process, read by
// the export worker.
type Journal interface {
	services.QuoteRecorder
	worker.QuoteJournal
	Ping(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// PingFunc reports whether a dependency is reachable.
type PingFunc func(ctx context.Context) error

// SessionResult is a session store with its lifecycle hooks. Cleaner is nil
// for stores that expire entries on their own.
type SessionResult struct {
	Store   session.Store
	Cleaner cache.Cleaner
	Ping    PingFunc
	Cleanup CleanupFunc
}

// ExporterResult is the quote export target used by the worker.
type ExporterResult struct {
	Exporter sheets.QuoteExporter
	Kind     string
}

// Factory creates backends based on configuration
type Factory interface {
	CreateSessionStore(ctx context.Context, config Config) (*SessionResult, error)
	// CreateJournal returns nil without error for JournalNone.
	CreateJournal(ctx context.Context, config Config) (Journal, error)
	// CreateQuoteService wires the journal and, when configured, the AMQP
	// publisher.
	CreateQuoteService(ctx context.Context, config Config) (*services.QuoteService, Journal, error)
	CreateExporter(ctx context.Context, config Config) (*ExporterResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	SessionType SessionType
	RedisAddr   string
	SessionTTL  time.Duration
	SessionMax  int

	JournalType  JournalType
	SQLiteDBPath string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	GoogleOAuthClientJSON    string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string
}

type SessionType string

const (
	SessionMemory SessionType = "memory"
	SessionRedis  SessionType = "redis"
)

func (t SessionType) IsValid() bool {
	return t == SessionMemory || t == SessionRedis
}

type JournalType string

const (
	JournalNone   JournalType = "none"
	JournalMemory JournalType = "memory"
	JournalSQLite JournalType = "sqlite"
)

func (t JournalType) IsValid() bool {
	switch t {
	case JournalNone, JournalMemory, JournalSQLite:
		return true
	default:
		return false
	}
}
