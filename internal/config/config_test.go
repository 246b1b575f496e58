package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("SPREADSHEET_ID", "sheet-123")
	t.Setenv("SHEETS_CREDENTIALS_FILE", "/secrets/sheets.json")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Picks", cfg.SheetName)
	assert.Equal(t, "logit-v1", cfg.ModelVersion)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, 60*time.Second, cfg.RetryMaxDelay)
	assert.Equal(t, 5, cfg.RetryMaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.LockTTL)
	assert.Equal(t, 8, cfg.StatsWindow)
	assert.Empty(t, cfg.DatabaseURL)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_ProductionEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_MissingSpreadsheet(t *testing.T) {
	t.Setenv("SPREADSHEET_ID", "")
	t.Setenv("SHEETS_CREDENTIALS_FILE", "/secrets/sheets.json")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SPREADSHEET_ID")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			SpreadsheetID:         "id",
			SheetsCredentialsFile: "creds.json",
			StoreURI:              "mongodb://localhost:27017",
			RetryBaseDelay:        time.Second,
			RetryMaxDelay:         time.Minute,
			RetryMaxAttempts:      5,
			LockTTL:               time.Minute,
			StatsWindow:           8,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no store", func(c *Config) { c.StoreURI = "" }, "STORE_URI"},
		{"zero attempts", func(c *Config) { c.RetryMaxAttempts = 0 }, "RETRY_MAX_ATTEMPTS"},
		{"cap below base", func(c *Config) { c.RetryMaxDelay = time.Millisecond }, "RETRY_BASE_DELAY"},
		{"no lock ttl", func(c *Config) { c.LockTTL = 0 }, "LOCK_TTL"},
		{"negative season", func(c *Config) { c.Season = -1 }, "SEASON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSeasonAt(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 2024, cfg.SeasonAt(time.Date(2025, time.January, 20, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2025, cfg.SeasonAt(time.Date(2025, time.October, 5, 0, 0, 0, 0, time.UTC)))

	cfg.Season = 2023
	assert.Equal(t, 2023, cfg.SeasonAt(time.Date(2025, time.October, 5, 0, 0, 0, 0, time.UTC)))
}
