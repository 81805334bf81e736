package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

const appDir = "tempo"

// MinSyncInterval is the floor for the periodic push interval.
const MinSyncInterval = 15 * time.Second

type Config struct {
	// Dataset store backend
	DataBackend  string
	BoltDBPath   string
	SQLiteDBPath string

	// AMQP (optional operation-log event publishing)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets remote store for sync
	GoogleSpreadsheetID string
	GoogleSheetPrefix   string

	// Sync
	SyncEnabled  bool
	SyncInterval time.Duration

	// Logging
	LogLevel slog.Level
	LogFile  string
}

func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DataBackend:  getEnv("DATA_BACKEND", "bolt"),
		BoltDBPath:   getEnv("BOLT_DB_PATH", defaultDataFile("tempo.db")),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", defaultDataFile("tempo.sqlite")),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "tempo"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "tempo_ops"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetPrefix:   getEnv("GOOGLE_SHEET_PREFIX", "tempo"),

		SyncEnabled:  getEnvBool("SYNC_ENABLED", false),
		SyncInterval: getEnvDuration("SYNC_INTERVAL", 5*time.Minute),

		LogLevel: parseLevel(getEnv("LOG_LEVEL", "info")),
		LogFile:  getEnv("LOG_FILE", ""),
	}

	if cfg.SyncInterval < MinSyncInterval {
		cfg.SyncInterval = MinSyncInterval
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	var errors []string

	switch c.DataBackend {
	case "memory", "bolt", "sqlite":
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [memory bolt sqlite]", c.DataBackend))
	}

	if c.DataBackend == "bolt" && c.BoltDBPath == "" {
		errors = append(errors, "bolt database path cannot be empty when using bolt backend")
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}

		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}

		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SyncEnabled && c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required when sync is enabled")
	}

	if c.SyncInterval < MinSyncInterval {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least %v", c.SyncInterval, MinSyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// defaultDataFile resolves a file under the XDG data home, falling
// back to a local ./data directory when that fails.
func defaultDataFile(name string) string {
	path, err := xdg.DataFile(filepath.Join(appDir, name))
	if err != nil {
		return filepath.Join("data", name)
	}

	return path
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
