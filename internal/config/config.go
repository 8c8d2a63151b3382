package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"budget/internal/log"

	"github.com/BurntSushi/toml"
)

// DefaultFile is read when BUDGET_CONFIG is unset and the file exists.
const DefaultFile = "budget.toml"

type Config struct {
	// HTTP Server
	Port string

	// Storage
	DataBackend  string
	SQLiteDBPath string
	UserID       string

	// AMQP (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Redis replica (optional)
	RedisURL       string
	RedisKeyPrefix string

	// Google Sheets mirror (optional)
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Sync
	SyncInterval  time.Duration
	HistoryMonths int

	LogLevel string

	// Source is the TOML file the config was read from, if any.
	Source string
}

// fileConfig is the layout of budget.toml.
type fileConfig struct {
	Port     string `toml:"port"`
	LogLevel string `toml:"log_level"`
	UserID   string `toml:"user_id"`

	Storage struct {
		Backend    string `toml:"backend"`
		SQLitePath string `toml:"sqlite_path"`
	} `toml:"storage"`

	AMQP struct {
		URL      string `toml:"url"`
		Exchange string `toml:"exchange"`
		Queue    string `toml:"queue"`
	} `toml:"amqp"`

	Redis struct {
		URL       string `toml:"url"`
		KeyPrefix string `toml:"key_prefix"`
	} `toml:"redis"`

	Google struct {
		SpreadsheetID      string `toml:"spreadsheet_id"`
		SheetName          string `toml:"sheet_name"`
		ServiceAccountFile string `toml:"service_account_file"`
	} `toml:"google"`

	Sync struct {
		Interval      string `toml:"interval"`
		HistoryMonths int    `toml:"history_months"`
	} `toml:"sync"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:            "8081",
		DataBackend:     "sqlite",
		SQLiteDBPath:    "./data/budget.db",
		UserID:          "local",
		AMQPExchange:    "budget",
		AMQPQueue:       "snapshot_sync",
		RedisKeyPrefix:  "budget",
		GoogleSheetName: "Budget",
		SyncInterval:    30 * time.Second,
		HistoryMonths:   6,
		LogLevel:        "info",
	}
}

// Load builds the configuration from defaults, then the TOML file named by
// BUDGET_CONFIG (or ./budget.toml when present), then the environment.
// Malformed environment values keep the previous value.
func Load() (*Config, error) {
	cfg := Default()

	path, explicit := os.Getenv("BUDGET_CONFIG"), true
	if path == "" {
		path, explicit = DefaultFile, false
	}
	if err := cfg.mergeFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
	} else {
		cfg.Source = path
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DataBackend = getEnv("DATA_BACKEND", cfg.DataBackend)
	cfg.SQLiteDBPath = getEnv("SQLITE_DB_PATH", cfg.SQLiteDBPath)
	cfg.UserID = getEnv("USER_ID", cfg.UserID)

	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.AMQPQueue = getEnv("AMQP_QUEUE", cfg.AMQPQueue)

	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.RedisKeyPrefix = getEnv("REDIS_KEY_PREFIX", cfg.RedisKeyPrefix)

	cfg.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", cfg.GoogleSpreadsheetID)
	cfg.GoogleSheetName = getEnv("GOOGLE_SHEET_NAME", cfg.GoogleSheetName)
	cfg.GoogleServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", cfg.GoogleServiceAccountFile)
	cfg.GoogleServiceAccountJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", cfg.GoogleServiceAccountJSON)

	cfg.SyncInterval = getEnvDuration("SYNC_INTERVAL", cfg.SyncInterval)
	cfg.HistoryMonths = getEnvInt("HISTORY_MONTHS", cfg.HistoryMonths)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	var f fileConfig
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}

	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	set(&c.Port, f.Port)
	set(&c.LogLevel, f.LogLevel)
	set(&c.UserID, f.UserID)
	set(&c.DataBackend, f.Storage.Backend)
	set(&c.SQLiteDBPath, f.Storage.SQLitePath)
	set(&c.AMQPURL, f.AMQP.URL)
	set(&c.AMQPExchange, f.AMQP.Exchange)
	set(&c.AMQPQueue, f.AMQP.Queue)
	set(&c.RedisURL, f.Redis.URL)
	set(&c.RedisKeyPrefix, f.Redis.KeyPrefix)
	set(&c.GoogleSpreadsheetID, f.Google.SpreadsheetID)
	set(&c.GoogleSheetName, f.Google.SheetName)
	set(&c.GoogleServiceAccountFile, f.Google.ServiceAccountFile)

	if f.Sync.Interval != "" {
		d, err := time.ParseDuration(f.Sync.Interval)
		if err != nil {
			return fmt.Errorf("parsing config %s: sync.interval: %w", path, err)
		}
		c.SyncInterval = d
	}
	if f.Sync.HistoryMonths != 0 {
		c.HistoryMonths = f.Sync.HistoryMonths
	}
	return nil
}

// SheetsEnabled reports whether a spreadsheet mirror is configured.
func (c *Config) SheetsEnabled() bool { return c.GoogleSpreadsheetID != "" }

// Validate validates the configuration and returns an error listing every
// problem found.
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if strings.TrimSpace(c.UserID) == "" {
		errors = append(errors, "user id cannot be empty")
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
		if c.DataBackend == "memory" {
			errors = append(errors, "AMQP sync needs the sqlite backend: the worker reads snapshots from the database")
		}
	}

	if c.RedisURL != "" {
		if u, err := url.Parse(c.RedisURL); err == nil && strings.Contains(c.RedisURL, "://") && u.Scheme != "redis" && u.Scheme != "rediss" {
			errors = append(errors, fmt.Sprintf("invalid Redis URL scheme '%s': must be 'redis' or 'rediss'", u.Scheme))
		}
	}

	if c.SheetsEnabled() {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet is configured")
		}
		if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for the sheets mirror")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if c.HistoryMonths < 1 || c.HistoryMonths > 120 {
		errors = append(errors, fmt.Sprintf("invalid history months %d: must be between 1 and 120", c.HistoryMonths))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
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
