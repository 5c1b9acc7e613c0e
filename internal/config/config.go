// Package config handles client and server configuration for finking.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"

	"github.com/siskocapital/finking/internal/models"
)

// MarkdownConfig configures markdown rendering of assistant replies
type MarkdownConfig struct {
	// Enabled renders assistant replies as markdown
	Enabled bool `json:"enabled" env:"FINKING_MARKDOWN"`
	// Style is "dark", "light", or a path to a JSON theme
	Style            string `json:"style" env:"FINKING_MARKDOWN_STYLE"`
	EnableEmoji      bool   `json:"enable_emoji"`
	PreserveNewLines bool   `json:"preserve_newlines"`
	TableWrap        bool   `json:"table_wrap"`
	InlineTableLinks bool   `json:"inline_table_links"`
}

// Config represents the client configuration
type Config struct {
	// Endpoint is the base URL of the chat backend
	Endpoint string `json:"endpoint" env:"FINKING_ENDPOINT"`
	// Verbose mirrors diagnostic logs to stderr in query mode
	Verbose         bool   `json:"verbose" env:"FINKING_VERBOSE"`
	CopyToClipboard bool   `json:"copy_to_clipboard" env:"FINKING_COPY_TO_CLIPBOARD"`
	LogLevel        string `json:"log_level" env:"FINKING_LOG_LEVEL"`
	// LogFile overrides ~/.finking/finking.log
	LogFile  string         `json:"log_file,omitempty" env:"FINKING_LOG_FILE"`
	Markdown MarkdownConfig `json:"markdown"`
}

// DefaultMarkdownConfig returns the default markdown configuration
func DefaultMarkdownConfig() MarkdownConfig {
	return MarkdownConfig{
		Enabled:          false,
		Style:            "dark",
		EnableEmoji:      true,
		PreserveNewLines: true,
		TableWrap:        true,
		InlineTableLinks: false,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Endpoint:        models.DefaultEndpoint,
		Verbose:         false,
		CopyToClipboard: false,
		LogLevel:        "info",
		Markdown:        DefaultMarkdownConfig(),
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".finking"), nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetLogPath returns the diagnostic log file for client surfaces
func GetLogPath(cfg Config) (string, error) {
	if cfg.LogFile != "" {
		return cfg.LogFile, nil
	}
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "finking.log"), nil
}

// LoadConfig loads the configuration from disk and applies environment
// overrides. A missing file means defaults.
func LoadConfig() (Config, error) {
	cfg, err := LoadFileConfig()
	if err != nil {
		return cfg, err
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return cfg, cfg.Validate()
}

// LoadFileConfig loads only the configuration file over the defaults
func LoadFileConfig() (Config, error) {
	cfg := DefaultConfig()

	configPath, err := GetConfigPath()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to disk
func SaveConfig(cfg Config) error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.json")

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
