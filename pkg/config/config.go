package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the node runner
type Config struct {
	// Input file locations
	Files FilesConfig `yaml:"files" json:"files"`

	// Rewards API settings
	API APIConfig `yaml:"api" json:"api"`

	// Scheduling intervals
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`

	// Dashboard preferences
	Dashboard DashboardConfig `yaml:"dashboard" json:"dashboard"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// FilesConfig locates the account and proxy list files
type FilesConfig struct {
	Accounts string `yaml:"accounts" json:"accounts"`
	Proxies  string `yaml:"proxies" json:"proxies"`
}

// APIConfig holds rewards API connection settings
type APIConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// ScheduleConfig holds the node scheduling intervals
type ScheduleConfig struct {
	ScrollInterval    time.Duration `yaml:"scroll_interval" json:"scroll_interval"`
	EpochPollInterval time.Duration `yaml:"epoch_poll_interval" json:"epoch_poll_interval"`
	SubmissionGap     time.Duration `yaml:"submission_gap" json:"submission_gap"`
}

// DashboardConfig holds terminal dashboard preferences
type DashboardConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Files: FilesConfig{
			Accounts: "account.txt",
			Proxies:  "proxy.txt",
		},
		API: APIConfig{
			BaseURL: "https://api-hunter.membit.ai",
			Timeout: 30 * time.Second,
		},
		Schedule: ScheduleConfig{
			ScrollInterval:    30 * time.Minute,
			EpochPollInterval: 10 * time.Second,
			SubmissionGap:     5 * time.Second,
		},
		Dashboard: DashboardConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if accounts := os.Getenv("MEMBITNODE_ACCOUNTS_FILE"); accounts != "" {
		c.Files.Accounts = accounts
	}
	if proxies := os.Getenv("MEMBITNODE_PROXIES_FILE"); proxies != "" {
		c.Files.Proxies = proxies
	}
	if baseURL := os.Getenv("MEMBITNODE_API_BASE_URL"); baseURL != "" {
		c.API.BaseURL = baseURL
	}
	if timeout := os.Getenv("MEMBITNODE_API_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			c.API.Timeout = d
		}
	}
	if interval := os.Getenv("MEMBITNODE_SCROLL_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil && d > 0 {
			c.Schedule.ScrollInterval = d
		}
	}
	if interval := os.Getenv("MEMBITNODE_EPOCH_POLL_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil && d > 0 {
			c.Schedule.EpochPollInterval = d
		}
	}
	if gap := os.Getenv("MEMBITNODE_SUBMISSION_GAP"); gap != "" {
		if d, err := time.ParseDuration(gap); err == nil && d > 0 {
			c.Schedule.SubmissionGap = d
		}
	}
	if dashboard := os.Getenv("MEMBITNODE_DASHBOARD"); dashboard != "" {
		c.Dashboard.Enabled = strings.ToLower(dashboard) == "true"
	}
	if logLevel := os.Getenv("MEMBITNODE_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("MEMBITNODE_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".membitnode.yaml",
		".membitnode.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "membitnode", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "membitnode", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".membitnode.yaml"),
		filepath.Join(os.Getenv("HOME"), ".membitnode.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Files.Accounts == "" {
		errs = append(errs, errors.New("accounts file path is required"))
	}

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("API base URL is required"))
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		errs = append(errs, errors.New("API base URL must start with http:// or https://"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("API timeout must be positive"))
	}

	if c.Schedule.ScrollInterval <= 0 {
		errs = append(errs, errors.New("scroll interval must be positive"))
	}
	if c.Schedule.EpochPollInterval <= 0 {
		errs = append(errs, errors.New("epoch poll interval must be positive"))
	}
	if c.Schedule.SubmissionGap <= 0 {
		errs = append(errs, errors.New("submission gap must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if accounts, ok := flags["accounts"].(string); ok && accounts != "" {
		c.Files.Accounts = accounts
	}
	if proxies, ok := flags["proxies"].(string); ok && proxies != "" {
		c.Files.Proxies = proxies
	}
	if baseURL, ok := flags["api-base-url"].(string); ok && baseURL != "" {
		c.API.BaseURL = baseURL
	}
	if interval, ok := flags["scroll-interval"].(time.Duration); ok && interval > 0 {
		c.Schedule.ScrollInterval = interval
	}
	if dashboard, ok := flags["no-dashboard"].(bool); ok && dashboard {
		c.Dashboard.Enabled = false
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".env"))
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".membitnode.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
