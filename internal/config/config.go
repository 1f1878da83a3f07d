package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port        int      // HTTP server port
	CORSOrigins []string // Allowed CORS origins

	// Logging
	LogLevel  string
	LogFormat string // json or text

	// Storage
	StoreDriver string // memory, sqlite or postgres
	DatabaseURL string // required for postgres
	SQLitePath  string

	// Retention
	RetentionMaxAge   time.Duration // evaluations older than this are pruned, 0 keeps everything
	RetentionInterval time.Duration

	// Scanning
	Domains         []string      // domains for auto and scheduled scans
	ScanConcurrency int           // parallel scans in a batch
	ScanRatePerSec  float64       // navigations started per second, 0 means unlimited
	NavTimeout      time.Duration // per-navigation timeout
	BannerWait      time.Duration // wait after load before profiling the banner
	SettleDelay     time.Duration // wait after a banner click before re-reading cookies
	ScanSchedule    string        // cron expression, empty disables scheduled scans
	RulesFile       string        // optional YAML rules overlay

	// Browser
	BrowserDriver   string // chrome or static
	BrowserPoolSize int
	ChromePath      string
	UserAgent       string
}

// Load reads configuration from environment variables
// and returns a Config struct with defaults applied
func Load() *Config {
	return &Config{
		Port:        getEnvAsInt("PORT", 8080),
		CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"*"}),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		StoreDriver: getEnv("STORE_DRIVER", "memory"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "cookieguard.db"),

		RetentionMaxAge:   getEnvAsDuration("RETENTION_MAX_AGE_MS", 0),
		RetentionInterval: getEnvAsDuration("RETENTION_INTERVAL_MS", time.Hour),

		Domains:         getEnvAsList("DOMAINS", nil),
		ScanConcurrency: getEnvAsInt("SCAN_CONCURRENCY", 2),
		ScanRatePerSec:  getEnvAsFloat("SCAN_RATE_PER_SEC", 0),
		NavTimeout:      getEnvAsDuration("NAV_TIMEOUT_MS", 45000*time.Millisecond),
		BannerWait:      getEnvAsDuration("BANNER_WAIT_MS", 2000*time.Millisecond),
		SettleDelay:     getEnvAsDuration("SETTLE_DELAY_MS", 1000*time.Millisecond),
		ScanSchedule:    getEnv("SCAN_SCHEDULE", ""),
		RulesFile:       getEnv("RULES_FILE", ""),

		BrowserDriver:   getEnv("BROWSER_DRIVER", "chrome"),
		BrowserPoolSize: getEnvAsInt("BROWSER_POOL_SIZE", 2),
		ChromePath:      getEnv("CHROME_PATH", ""),
		UserAgent:       getEnv("USER_AGENT", ""),
	}
}

// Validate reports every setting that would make the service unusable
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	switch c.StoreDriver {
	case "memory", "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for STORE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.StoreDriver == "sqlite" && c.SQLitePath == "" {
		errs = append(errs, errors.New("SQLITE_PATH is required for STORE_DRIVER=sqlite"))
	}
	switch c.BrowserDriver {
	case "chrome", "static":
	default:
		errs = append(errs, fmt.Errorf("unknown BROWSER_DRIVER %q", c.BrowserDriver))
	}
	if c.ScanConcurrency < 1 {
		errs = append(errs, errors.New("SCAN_CONCURRENCY must be at least 1"))
	}
	if c.ScanRatePerSec < 0 {
		errs = append(errs, errors.New("SCAN_RATE_PER_SEC must not be negative"))
	}
	if c.NavTimeout <= 0 {
		errs = append(errs, errors.New("NAV_TIMEOUT_MS must be positive"))
	}
	if c.RetentionMaxAge < 0 {
		errs = append(errs, errors.New("RETENTION_MAX_AGE_MS must not be negative"))
	}
	if c.RetentionMaxAge > 0 && c.RetentionInterval <= 0 {
		errs = append(errs, errors.New("RETENTION_INTERVAL_MS must be positive"))
	}
	if c.ScanSchedule != "" && len(c.Domains) == 0 {
		errs = append(errs, errors.New("SCAN_SCHEDULE needs DOMAINS"))
	}

	return errors.Join(errs...)
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as an integer
// If the variable doesn't exist or can't be parsed, returns the default
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsDuration reads an environment variable as milliseconds and converts to time.Duration
// If the variable doesn't exist or can't be parsed, returns the default
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	// Parse as milliseconds
	ms, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return time.Duration(ms) * time.Millisecond
}

// getEnvAsList splits a comma or whitespace separated variable
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if strings.TrimSpace(valueStr) == "" {
		return defaultValue
	}

	return strings.FieldsFunc(valueStr, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}
