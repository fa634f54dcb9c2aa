package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	gomoney "github.com/Rhymond/go-money"
	"github.com/robfig/cron/v3"
)

type Config struct {
	// Database
	SQLiteDBPath string

	// AMQP (optional; empty URL disables cross-process notifications)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Admission control
	AdmissionLimit     int
	AdmissionWindow    time.Duration
	AdmissionRulesFile string

	// View cache and notifications
	CacheSize       int
	CacheTTL        time.Duration
	NotifyQueueSize int

	// Audit worker
	AuditSchedule string
	AuditRepair   bool

	// Receipt extraction
	GeminiAPIKey string
	GeminiModel  string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	LogLevel        string
	DefaultCurrency string
}

func Load() *Config {
	cfg := &Config{
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/ledger.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ledger"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "stale_views"),

		AdmissionLimit:     getEnvInt("ADMISSION_LIMIT", 10),
		AdmissionWindow:    getEnvDuration("ADMISSION_WINDOW", time.Hour),
		AdmissionRulesFile: getEnv("ADMISSION_RULES_FILE", ""),

		CacheSize:       getEnvInt("CACHE_SIZE", 1000),
		CacheTTL:        getEnvDuration("CACHE_TTL", 5*time.Minute),
		NotifyQueueSize: getEnvInt("NOTIFY_QUEUE_SIZE", 256),

		AuditSchedule: getEnv("AUDIT_SCHEDULE", "@every 1h"),
		AuditRepair:   getEnvBool("AUDIT_REPAIR", false),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", "EUR")),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if strings.TrimSpace(c.SQLiteDBPath) == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	}

	// Validate AMQP URL if provided
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

	if c.AdmissionLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid admission limit %d: must be at least 1", c.AdmissionLimit))
	}
	if c.AdmissionWindow < time.Second {
		errors = append(errors, fmt.Sprintf("invalid admission window %v: must be at least 1 second", c.AdmissionWindow))
	}
	if c.AdmissionRulesFile != "" {
		if _, err := os.Stat(c.AdmissionRulesFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("admission rules file does not exist: %s", c.AdmissionRulesFile))
		}
	}

	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	} else if c.CacheSize > 100000 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at most 100000", c.CacheSize))
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	} else if c.CacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at most 24 hours", c.CacheTTL))
	}
	if c.NotifyQueueSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid notify queue size %d: must be at least 1", c.NotifyQueueSize))
	}

	if _, err := cron.ParseStandard(c.AuditSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid audit schedule '%s': %v", c.AuditSchedule, err))
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if gomoney.GetCurrency(c.DefaultCurrency) == nil {
		errors = append(errors, fmt.Sprintf("unknown currency code '%s'", c.DefaultCurrency))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ExportEnabled reports whether Google Sheets export is configured.
func (c *Config) ExportEnabled() bool {
	return c.GoogleSpreadsheetID != "" && (c.GoogleServiceAccountFile != "" || c.GoogleServiceAccountJSON != "")
}

// ReceiptsEnabled reports whether receipt extraction is configured.
func (c *Config) ReceiptsEnabled() bool {
	return c.GeminiAPIKey != ""
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
