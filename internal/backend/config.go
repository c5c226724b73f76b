package backend

import (
	"fmt"

	"emicalc/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	c := Config{
		SessionType: SessionType(appConfig.SessionBackend),
		RedisAddr:   appConfig.RedisAddr,
		SessionTTL:  appConfig.SessionTTL,
		SessionMax:  appConfig.SessionMax,

		JournalType:  JournalType(appConfig.JournalBackend),
		SQLiteDBPath: appConfig.SQLiteDBPath,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleOAuthClientJSON:    appConfig.GoogleOAuthClientJSON,
		GoogleOAuthClientFile:    appConfig.GoogleOAuthClientFile,
		GoogleOAuthTokenFile:     appConfig.GoogleOAuthTokenFile,
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.SessionType.IsValid() {
		return fmt.Errorf("invalid session backend: %s", c.SessionType)
	}
	if c.SessionType == SessionRedis && c.RedisAddr == "" {
		return fmt.Errorf("Redis address is required for redis session backend")
	}
	if c.SessionMax < 1 {
		return fmt.Errorf("session max must be positive, got %d", c.SessionMax)
	}

	if !c.JournalType.IsValid() {
		return fmt.Errorf("invalid journal backend: %s", c.JournalType)
	}
	if c.JournalType == JournalSQLite && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite journal")
	}
	return nil
}
