package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "account.txt", cfg.Files.Accounts)
	assert.Equal(t, "proxy.txt", cfg.Files.Proxies)
	assert.Equal(t, "https://api-hunter.membit.ai", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.Schedule.ScrollInterval)
	assert.Equal(t, 10*time.Second, cfg.Schedule.EpochPollInterval)
	assert.Equal(t, 5*time.Second, cfg.Schedule.SubmissionGap)
	assert.True(t, cfg.Dashboard.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MEMBITNODE_ACCOUNTS_FILE", "/etc/membitnode/accounts")
	t.Setenv("MEMBITNODE_API_BASE_URL", "https://staging.example.com")
	t.Setenv("MEMBITNODE_SCROLL_INTERVAL", "15m")
	t.Setenv("MEMBITNODE_DASHBOARD", "false")
	t.Setenv("MEMBITNODE_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "/etc/membitnode/accounts", cfg.Files.Accounts)
	assert.Equal(t, "https://staging.example.com", cfg.API.BaseURL)
	assert.Equal(t, 15*time.Minute, cfg.Schedule.ScrollInterval)
	assert.False(t, cfg.Dashboard.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvIgnoresBadDurations(t *testing.T) {
	t.Setenv("MEMBITNODE_SCROLL_INTERVAL", "not-a-duration")
	t.Setenv("MEMBITNODE_SUBMISSION_GAP", "-5s")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 30*time.Minute, cfg.Schedule.ScrollInterval)
	assert.Equal(t, 5*time.Second, cfg.Schedule.SubmissionGap)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
files:
  accounts: custom-accounts.txt
api:
  base_url: https://api.example.com
  timeout: 10s
schedule:
  scroll_interval: 45m
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "custom-accounts.txt", cfg.Files.Accounts)
	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 45*time.Minute, cfg.Schedule.ScrollInterval)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// untouched sections keep their defaults
	assert.Equal(t, "proxy.txt", cfg.Files.Proxies)
	assert.Equal(t, 10*time.Second, cfg.Schedule.EpochPollInterval)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing accounts file",
			mutate:  func(c *Config) { c.Files.Accounts = "" },
			wantErr: "accounts file path is required",
		},
		{
			name:    "bad base URL scheme",
			mutate:  func(c *Config) { c.API.BaseURL = "ftp://api.example.com" },
			wantErr: "must start with http",
		},
		{
			name:    "zero scroll interval",
			mutate:  func(c *Config) { c.Schedule.ScrollInterval = 0 },
			wantErr: "scroll interval must be positive",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateJoinsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Files.Accounts = ""
	cfg.API.BaseURL = ""
	cfg.Schedule.SubmissionGap = -time.Second

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accounts file path is required")
	assert.Contains(t, err.Error(), "API base URL is required")
	assert.Contains(t, err.Error(), "submission gap must be positive")
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"accounts":        "flag-accounts.txt",
		"scroll-interval": 20 * time.Minute,
		"no-dashboard":    true,
		"log-level":       "debug",
	})

	assert.Equal(t, "flag-accounts.txt", cfg.Files.Accounts)
	assert.Equal(t, 20*time.Minute, cfg.Schedule.ScrollInterval)
	assert.False(t, cfg.Dashboard.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Files.Accounts = "saved-accounts.txt"
	require.NoError(t, cfg.Save(path))

	reloaded := DefaultConfig()
	require.NoError(t, reloaded.LoadFromFile(path))
	assert.Equal(t, "saved-accounts.txt", reloaded.Files.Accounts)
}
