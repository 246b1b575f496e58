package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// Season being processed. Zero means "derive from the clock".
	Season int `envconfig:"SEASON" default:"0"`

	// Upstream (nflverse data releases)
	UpstreamScheduleURL    string        `envconfig:"UPSTREAM_SCHEDULE_URL" default:"https://github.com/nflverse/nfldata/raw/master/data/games.csv"`
	UpstreamTeamStatsURL   string        `envconfig:"UPSTREAM_TEAM_STATS_URL" default:"https://github.com/nflverse/nflverse-data/releases/download/stats_team/stats_team_week_%d.csv"`
	UpstreamPlayerStatsURL string        `envconfig:"UPSTREAM_PLAYER_STATS_URL" default:"https://github.com/nflverse/nflverse-data/releases/download/stats_player/stats_player_week_%d.csv"`
	RequestTimeout         time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	StatsWindow            int           `envconfig:"STATS_WINDOW" default:"8"`

	// Retry policy shared by every outbound call
	RetryBaseDelay   time.Duration `envconfig:"RETRY_BASE_DELAY" default:"1s"`
	RetryMaxDelay    time.Duration `envconfig:"RETRY_MAX_DELAY" default:"60s"`
	RetryMaxAttempts int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"5"`

	// Prediction engine
	ModelVersion string `envconfig:"MODEL_VERSION" default:"logit-v1"`

	// Working surface (Google Sheets)
	SpreadsheetID         string `envconfig:"SPREADSHEET_ID"`
	SheetName             string `envconfig:"SHEET_NAME" default:"Picks"`
	SheetsCredentialsFile string `envconfig:"SHEETS_CREDENTIALS_FILE"`

	// Document store (MongoDB)
	StoreURI             string        `envconfig:"STORE_URI" default:"mongodb://localhost:27017"`
	StoreDatabase        string        `envconfig:"STORE_DATABASE" default:"confident_picks"`
	StoreCredentialsFile string        `envconfig:"STORE_CREDENTIALS_FILE"`
	LockTTL              time.Duration `envconfig:"LOCK_TTL" default:"15m"`

	// Relational archive (optional)
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Redis upstream cache (optional)
	RedisURL         string        `envconfig:"REDIS_URL"`
	CacheTTLUpstream time.Duration `envconfig:"CACHE_TTL_UPSTREAM" default:"5m"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Scheduler
	EnableScheduler bool   `envconfig:"ENABLE_SCHEDULER" default:"true"`
	PassCron        string `envconfig:"PASS_CRON" default:"*/15 * * * *"`
	RunOnStart      bool   `envconfig:"RUN_ON_START" default:"true"`

	// Monitoring
	EnableMetrics  bool   `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort    int    `envconfig:"METRICS_PORT" default:"9090"`
	PushgatewayURL string `envconfig:"PUSHGATEWAY_URL"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if present
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.SpreadsheetID == "" {
		return fmt.Errorf("SPREADSHEET_ID is required")
	}

	if c.SheetsCredentialsFile == "" {
		return fmt.Errorf("SHEETS_CREDENTIALS_FILE is required")
	}

	if c.StoreURI == "" {
		return fmt.Errorf("STORE_URI is required")
	}

	if c.Season < 0 {
		return fmt.Errorf("SEASON must not be negative")
	}

	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}

	if c.RetryBaseDelay <= 0 || c.RetryMaxDelay < c.RetryBaseDelay {
		return fmt.Errorf("RETRY_BASE_DELAY must be positive and not exceed RETRY_MAX_DELAY")
	}

	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive")
	}

	if c.StatsWindow < 1 {
		return fmt.Errorf("STATS_WINDOW must be at least 1")
	}

	return nil
}

// SeasonAt returns the configured season, or the NFL season in progress at t.
// Seasons start in September; January and February belong to the previous year.
func (c *Config) SeasonAt(t time.Time) int {
	if c.Season > 0 {
		return c.Season
	}
	if t.Month() < time.March {
		return t.Year() - 1
	}
	return t.Year()
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// MustLoad loads configuration or exits on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
