package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	apierrors "github.com/siskocapital/finking/internal/errors"
)

var logLevels = []string{"trace", "debug", "info", "warn", "warning", "error", "disabled", "off"}

// SettableKeys lists the keys accepted by Set
func SettableKeys() []string {
	return []string{
		"endpoint",
		"verbose",
		"copy_to_clipboard",
		"log_level",
		"log_file",
		"markdown.enabled",
		"markdown.style",
		"markdown.enable_emoji",
		"markdown.preserve_newlines",
		"markdown.table_wrap",
		"markdown.inline_table_links",
	}
}

// Set assigns a single configuration value by key and validates the result
func (c *Config) Set(key, value string) error {
	value = strings.TrimSpace(value)

	var err error
	switch strings.ToLower(key) {
	case "endpoint":
		c.Endpoint = strings.TrimRight(value, "/")
	case "verbose":
		err = setBool(&c.Verbose, value)
	case "copy_to_clipboard":
		err = setBool(&c.CopyToClipboard, value)
	case "log_level":
		c.LogLevel = strings.ToLower(value)
	case "log_file":
		c.LogFile = value
	case "markdown", "markdown.enabled":
		err = setBool(&c.Markdown.Enabled, value)
	case "markdown.style":
		c.Markdown.Style = value
	case "markdown.enable_emoji":
		err = setBool(&c.Markdown.EnableEmoji, value)
	case "markdown.preserve_newlines":
		err = setBool(&c.Markdown.PreserveNewLines, value)
	case "markdown.table_wrap":
		err = setBool(&c.Markdown.TableWrap, value)
	case "markdown.inline_table_links":
		err = setBool(&c.Markdown.InlineTableLinks, value)
	default:
		return apierrors.NewConfigError(key, fmt.Sprintf("unknown key (valid: %s)", strings.Join(SettableKeys(), ", ")))
	}
	if err != nil {
		return apierrors.NewConfigError(key, err.Error())
	}
	return c.Validate()
}

func setBool(dst *bool, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("expected true or false, got %q", value)
	}
	*dst = b
	return nil
}

// Validate checks the endpoint URL and log level
func (c Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apierrors.NewConfigError("endpoint", fmt.Sprintf("must be an http(s) URL, got %q", c.Endpoint))
	}

	if !validLogLevel(c.LogLevel) {
		return apierrors.NewConfigError("log_level", fmt.Sprintf("must be one of %s", strings.Join(logLevels, ", ")))
	}
	return nil
}

func validLogLevel(level string) bool {
	if level == "" {
		return true
	}
	for _, l := range logLevels {
		if strings.EqualFold(level, l) {
			return true
		}
	}
	return false
}
