package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/siskocapital/finking/internal/models"
)

// ServerConfig configures `finking serve`. It is read from the environment only.
type ServerConfig struct {
	APIKey           string        `env:"DEEPSEEK_API_KEY"`
	APIURL           string        `env:"DEEPSEEK_API_URL" envDefault:"https://api.deepseek.com/chat/completions"`
	Model            string        `env:"DEEPSEEK_MODEL" envDefault:"deepseek-chat"`
	Host             string        `env:"FINKING_HOST" envDefault:"0.0.0.0"`
	Port             int           `env:"PORT" envDefault:"5000"`
	SystemPromptFile string        `env:"FINKING_SYSTEM_PROMPT_FILE"`
	UpstreamTimeout  time.Duration `env:"FINKING_UPSTREAM_TIMEOUT" envDefault:"30s"`
	LogLevel         string        `env:"FINKING_LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout  time.Duration `env:"FINKING_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// LoadServerConfig reads the server configuration. Variables from dotenv
// files are loaded first without overriding the real environment; missing
// files are ignored.
func LoadServerConfig(dotenvFiles ...string) (ServerConfig, error) {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return ServerConfig{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse server environment: %w", err)
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIURL == "" {
		cfg.APIURL = models.UpstreamEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = models.UpstreamModel
	}
	return cfg, nil
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HasAPIKey reports whether an upstream credential is configured
func (c ServerConfig) HasAPIKey() bool {
	return c.APIKey != ""
}

// SystemPrompt returns the contents of SystemPromptFile, or fallback when
// no file is configured.
func (c ServerConfig) SystemPrompt(fallback string) (string, error) {
	if c.SystemPromptFile == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(c.SystemPromptFile)
	if err != nil {
		return "", fmt.Errorf("failed to read system prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return fallback, nil
	}
	return prompt, nil
}
