// Package config provides centralized configuration management for blockcheck.
// It loads configuration from environment variables (optionally seeded from a
// .env file), lets CLI flags override individual fields, validates the result,
// and provides sensible defaults.
//
// The driver setting selects how scenarios reach the editor: "sim" runs the
// reference editor in-process, "playwright" and "chromedp" drive a real browser.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kuitang/blockcheck/internal/logutil"
	"github.com/kuitang/blockcheck/internal/urlutil"
)

// Driver names.
const (
	DriverSim        = "sim"
	DriverPlaywright = "playwright"
	DriverChromedp   = "chromedp"
)

// Editor flavors.
const (
	FlavorLocal     = "local"
	FlavorWordPress = "wordpress"
)

// Snapshot modes.
const (
	SnapshotRecord = "record"
	SnapshotUpdate = "update"
	SnapshotCI     = "ci"
)

const (
	defaultActionTimeout   = 5 * time.Second
	defaultScenarioTimeout = 30 * time.Second
)

// Config holds all application configuration.
type Config struct {
	// Driver settings
	Driver       string
	BaseURL      string // empty: browser drivers start the local editor server
	Flavor       string
	Headless     bool
	Platform     string // GOOS-style name used to resolve modifier aliases
	StorageState string // Playwright storage state file (logged-in WordPress sessions)

	// Timeouts
	ActionTimeout   time.Duration // wait budget for a single driver call
	ScenarioTimeout time.Duration // budget for a whole scenario

	// Snapshot store
	SnapshotDir    string
	SnapshotMode   string
	SnapshotBucket string // non-empty selects the S3 backend
	SnapshotPrefix string

	// S3 (uses AWS_ env vars, same as the object store tooling)
	AWSEndpointS3      string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	// Scenario gates enabled for this run (e.g. "menu-remove")
	Gates []string

	// Local editor server
	ListenAddr     string
	RateLimitRPS   float64
	RateLimitBurst int

	// Logging
	LogFile  string
	LogLevel string
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// LoadConfig loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment variables win.
// The result is not validated: callers apply flag overrides and then call Validate.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}

	// Driver settings
	cfg.Driver = getEnvOrDefault("BLOCKCHECK_DRIVER", DriverSim)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("BASE_URL")), "/")
	cfg.Flavor = getEnvOrDefault("EDITOR_FLAVOR", FlavorLocal)
	cfg.Headless = parseBoolOrDefault("HEADLESS", true)
	cfg.Platform = getEnvOrDefault("BLOCKCHECK_PLATFORM", runtime.GOOS)
	cfg.StorageState = strings.TrimSpace(os.Getenv("STORAGE_STATE"))

	// Timeouts
	cfg.ActionTimeout = parseDurationOrDefault("ACTION_TIMEOUT", defaultActionTimeout)
	cfg.ScenarioTimeout = parseDurationOrDefault("SCENARIO_TIMEOUT", defaultScenarioTimeout)

	// Snapshot store
	cfg.SnapshotDir = getEnvOrDefault("SNAPSHOT_DIR", "__snapshots__")
	cfg.SnapshotMode = getEnvOrDefault("SNAPSHOT_MODE", SnapshotRecord)
	if os.Getenv("SNAPSHOT_MODE") == "" && parseBoolOrDefault("CI", false) {
		cfg.SnapshotMode = SnapshotCI
	}
	cfg.SnapshotBucket = strings.TrimSpace(os.Getenv("SNAPSHOT_BUCKET"))
	cfg.SnapshotPrefix = getEnvOrDefault("SNAPSHOT_PREFIX", "snapshots")

	cfg.AWSEndpointS3 = strings.TrimSpace(os.Getenv("AWS_ENDPOINT_URL_S3"))
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", "us-east-1")
	cfg.AWSAccessKeyID = strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	cfg.AWSSecretAccessKey = strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))

	cfg.Gates = ParseList(os.Getenv("BLOCKCHECK_GATES"))

	// Local editor server
	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", "127.0.0.1:8089")
	cfg.RateLimitRPS = parseFloat64OrDefault("RATE_LIMIT_RPS", 500)
	cfg.RateLimitBurst = parseIntOrDefault("RATE_LIMIT_BURST", 1000)

	cfg.LogFile = strings.TrimSpace(os.Getenv("LOG_FILE"))
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	return cfg, nil
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	var errs []string

	switch c.Driver {
	case DriverSim, DriverPlaywright, DriverChromedp:
	default:
		errs = append(errs, fmt.Sprintf("BLOCKCHECK_DRIVER must be one of %s, %s, %s (got %q)",
			DriverSim, DriverPlaywright, DriverChromedp, c.Driver))
	}

	switch c.Flavor {
	case FlavorLocal:
	case FlavorWordPress:
		if c.Driver == DriverSim {
			errs = append(errs, "EDITOR_FLAVOR=wordpress requires a browser driver")
		}
		if c.BaseURL == "" {
			errs = append(errs, "BASE_URL is required for EDITOR_FLAVOR=wordpress")
		}
	default:
		errs = append(errs, fmt.Sprintf("EDITOR_FLAVOR must be %s or %s (got %q)", FlavorLocal, FlavorWordPress, c.Flavor))
	}

	if c.BaseURL != "" {
		if _, err := urlutil.Origin(c.BaseURL); err != nil {
			errs = append(errs, "BASE_URL: "+err.Error())
		}
	}

	if c.ActionTimeout <= 0 {
		errs = append(errs, "ACTION_TIMEOUT must be positive")
	}
	if c.ScenarioTimeout <= 0 {
		errs = append(errs, "SCENARIO_TIMEOUT must be positive")
	} else if c.ScenarioTimeout < c.ActionTimeout {
		errs = append(errs, "SCENARIO_TIMEOUT must not be shorter than ACTION_TIMEOUT")
	}

	switch c.SnapshotMode {
	case SnapshotRecord, SnapshotUpdate, SnapshotCI:
	default:
		errs = append(errs, fmt.Sprintf("SNAPSHOT_MODE must be one of %s, %s, %s (got %q)",
			SnapshotRecord, SnapshotUpdate, SnapshotCI, c.SnapshotMode))
	}
	if c.SnapshotBucket == "" && c.SnapshotDir == "" {
		errs = append(errs, "SNAPSHOT_DIR is required when SNAPSHOT_BUCKET is not set")
	}
	if c.SnapshotBucket != "" && c.AWSRegion == "" {
		errs = append(errs, "AWS_REGION is required when SNAPSHOT_BUCKET is set")
	}

	if c.RateLimitRPS <= 0 {
		errs = append(errs, "RATE_LIMIT_RPS must be positive")
	}
	if c.RateLimitBurst <= 0 {
		errs = append(errs, "RATE_LIMIT_BURST must be positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}

	return nil
}

// GateEnabled reports whether a scenario gate is switched on.
func (c *Config) GateEnabled(gate string) bool {
	return slices.Contains(c.Gates, gate) || slices.Contains(c.Gates, "all")
}

// UsesBrowser reports whether the configured driver launches a real browser.
func (c *Config) UsesBrowser() bool {
	return c.Driver != DriverSim
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
func (c *Config) PrintStartupSummary() {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "blockcheck starting...")
	fmt.Fprintf(os.Stderr, "  Driver:    %s (flavor: %s, headless: %t)\n", c.Driver, c.Flavor, c.Headless)
	if c.BaseURL != "" {
		fmt.Fprintf(os.Stderr, "  Editor:    %s\n", c.BaseURL)
	} else if c.UsesBrowser() {
		fmt.Fprintln(os.Stderr, "  Editor:    local editor server (auto)")
	} else {
		fmt.Fprintln(os.Stderr, "  Editor:    in-process")
	}
	if c.SnapshotBucket != "" {
		fmt.Fprintf(os.Stderr, "  Snapshots: s3://%s/%s (%s)\n", c.SnapshotBucket, c.SnapshotPrefix, c.SnapshotMode)
	} else {
		fmt.Fprintf(os.Stderr, "  Snapshots: %s (%s)\n", c.SnapshotDir, c.SnapshotMode)
	}
	if len(c.Gates) > 0 {
		fmt.Fprintf(os.Stderr, "  Gates:     %s\n", strings.Join(c.Gates, ", "))
	}
	fmt.Fprintln(os.Stderr, "")
}

// LogAttrs returns the settings as slog key/value pairs with credentials
// redacted.
func (c *Config) LogAttrs() []any {
	return []any{
		"driver", c.Driver,
		"flavor", c.Flavor,
		"base_url", c.BaseURL,
		"headless", c.Headless,
		"platform", c.Platform,
		"action_timeout", c.ActionTimeout.String(),
		"scenario_timeout", c.ScenarioTimeout.String(),
		"snapshot_mode", c.SnapshotMode,
		"snapshot_bucket", c.SnapshotBucket,
		"aws_access_key_id", logutil.RedactValue("aws_access_key_id", c.AWSAccessKeyID),
		"aws_secret_access_key", logutil.RedactValue("aws_secret_access_key", c.AWSSecretAccessKey),
		"gates", strings.Join(c.Gates, ","),
	}
}

// ParseList splits a comma-separated list, dropping blanks.
func ParseList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
