package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection: livingapps, sqlite or memory
	DataBackend string
	DataDir     string

	// Living Apps
	LivingAppsBaseURL string
	LivingAppsSession string
	LivingAppsToken   string
	AppIDCostGroups   string
	AppIDReceipts     string
	AppIDHandovers    string

	// Database
	SQLiteDBPath string

	// AMQP, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Mirror worker
	MirrorSchedule string
	MirrorTimeout  time.Duration

	// Google Sheets export, optional
	GoogleSpreadsheetID      string
	GoogleExportSheet        string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Logging
	LogLevel  string
	LogFormat string

	// Mutating requests per client and minute
	RateLimitPerMinute int
}

const (
	BackendLivingApps = "livingapps"
	BackendSQLite     = "sqlite"
	BackendMemory     = "memory"
)

var ValidBackends = []string{BackendLivingApps, BackendSQLite, BackendMemory}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		DataBackend: getEnv("DATA_BACKEND", BackendLivingApps),
		DataDir:     getEnv("DATA_DIR", "./data"),

		LivingAppsBaseURL: getEnv("LIVINGAPPS_BASE_URL", "https://my.living-apps.de/rest"),
		LivingAppsSession: getEnv("LIVINGAPPS_SESSION", ""),
		LivingAppsToken:   getEnv("LIVINGAPPS_TOKEN", ""),
		AppIDCostGroups:   getEnv("APP_ID_KOSTENGRUPPEN", "698db1e550eb37f16846d889"),
		AppIDReceipts:     getEnv("APP_ID_BELEGBUCHUNGEN", "698db1eaa3041ca34d1f38c4"),
		AppIDHandovers:    getEnv("APP_ID_UEBERGABEN", "698db1ead8a6024900573129"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/buchhaltung.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "buchhaltung"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "record_changes"),

		MirrorSchedule: getEnv("MIRROR_SCHEDULE", "@every 15m"),
		MirrorTimeout:  getEnvDuration("MIRROR_TIMEOUT", 2*time.Minute),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleExportSheet:        getEnv("GOOGLE_EXPORT_SHEET", "Übergabe"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}
}

var appIDPattern = regexp.MustCompile(`^[a-fA-F0-9]{24}$`)

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	isValidBackend := false
	for _, backend := range ValidBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, ValidBackends))
	}

	if c.DataBackend == BackendLivingApps {
		if u, err := url.Parse(c.LivingAppsBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid Living Apps base URL '%s': must be an absolute http(s) URL", c.LivingAppsBaseURL))
		}
	}

	// app ids also build cost group references in the local backends
	for _, app := range [][2]string{
		{"APP_ID_KOSTENGRUPPEN", c.AppIDCostGroups},
		{"APP_ID_BELEGBUCHUNGEN", c.AppIDReceipts},
		{"APP_ID_UEBERGABEN", c.AppIDHandovers},
	} {
		if !appIDPattern.MatchString(app[1]) {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': must be 24 hex characters", app[0], app[1]))
		}
	}

	if c.DataBackend == BackendSQLite {
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

	if _, err := cron.ParseStandard(c.MirrorSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid mirror schedule '%s': %v", c.MirrorSchedule, err))
	}
	if c.MirrorTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid mirror timeout %v: must be at least 1 second", c.MirrorTimeout))
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleExportSheet == "" {
			errors = append(errors, "Google export sheet name is required when a spreadsheet ID is set")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for the sheets export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ExportEnabled reports whether the Google Sheets export is configured.
func (c *Config) ExportEnabled() bool {
	return c.GoogleSpreadsheetID != ""
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
