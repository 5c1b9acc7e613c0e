// Package render prepares message content for terminal display: control
// sequence sanitising and optional markdown rendering.
package render

import (
	"os"

	"github.com/siskocapital/finking/internal/config"
)

// Options configures the markdown renderer behavior.
type Options struct {
	// Width defines the maximum output width (default: 80)
	Width int

	// Style defines the theme: "dark", "light", a glamour built-in, or path to JSON file
	Style string

	// EnableEmoji converts :emoji: to unicode characters
	EnableEmoji bool

	// PreserveNewLines preserves original line breaks
	PreserveNewLines bool

	// TableWrap enables word wrap in table cells
	TableWrap bool

	// InlineTableLinks renders links inline in tables
	InlineTableLinks bool
}

// DefaultOptions returns the default configuration.
func DefaultOptions() Options {
	md := config.DefaultMarkdownConfig()
	return Options{
		Width:            80,
		Style:            md.Style,
		EnableEmoji:      md.EnableEmoji,
		PreserveNewLines: md.PreserveNewLines,
		TableWrap:        md.TableWrap,
		InlineTableLinks: md.InlineTableLinks,
	}
}

// OptionsFromConfig builds options from the markdown section of the user
// configuration. GLAMOUR_STYLE takes precedence over the configured style.
func OptionsFromConfig(md config.MarkdownConfig, width int) Options {
	opts := DefaultOptions()
	if md.Style != "" {
		opts.Style = md.Style
	}
	opts.EnableEmoji = md.EnableEmoji
	opts.PreserveNewLines = md.PreserveNewLines
	opts.TableWrap = md.TableWrap
	opts.InlineTableLinks = md.InlineTableLinks

	if style := os.Getenv("GLAMOUR_STYLE"); style != "" {
		opts.Style = style
	}
	return opts.WithWidth(width)
}

// WithWidth returns Options with the specified width. Non-positive widths
// keep the current value.
func (o Options) WithWidth(width int) Options {
	if width > 0 {
		o.Width = width
	}
	return o
}

// WithStyle returns Options with the specified style.
func (o Options) WithStyle(style string) Options {
	o.Style = style
	return o
}
