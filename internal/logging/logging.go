// Package logging builds the zerolog loggers used by the client surfaces and
// the chat backend.
package logging

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options selects where and how much to log
type Options struct {
	// Level is a zerolog level name; unknown names mean info
	Level string
	// File, when set, receives JSON log lines (appended)
	File string
	// Console mirrors log lines to Stderr in human readable form
	Console bool
	// Stderr overrides os.Stderr for the console writer
	Stderr io.Writer
}

// ParseLevel converts a level name into a zerolog.Level with a safe default
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	case "info":
		fallthrough
	default:
		return zerolog.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds a logger from opts. The returned closer releases the log file
// and is safe to call when no file was opened.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}

	if opts.Console {
		out := opts.Stderr
		if out == nil {
			out = os.Stderr
		}
		writers = append(writers, zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
	}

	if len(writers) == 0 {
		return zerolog.Nop(), closer, nil
	}

	var w io.Writer = writers[0]
	if len(writers) > 1 {
		w = zerolog.MultiLevelWriter(writers...)
	}

	logger := zerolog.New(w).Level(ParseLevel(opts.Level)).With().Timestamp().Logger()
	return logger, closer, nil
}

var sensitiveHeaders = map[string]struct{}{
	"authorization": {},
	"x-api-key":     {},
	"cookie":        {},
	"set-cookie":    {},
}

const redacted = "<redacted>"

// RedactHeader returns v, or a placeholder when k names a credential header
func RedactHeader(k, v string) string {
	if v == "" {
		return ""
	}
	if _, ok := sensitiveHeaders[strings.ToLower(k)]; ok {
		return redacted
	}
	return v
}

// SafeHeaders returns the first value of every header with credentials
// redacted, suitable for a log field.
func SafeHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) == 0 {
			continue
		}
		out[k] = RedactHeader(k, v[0])
	}
	return out
}
