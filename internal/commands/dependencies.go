package commands

import (
	"context"
	"io"
	"os"

	"github.com/atotto/clipboard"
	"golang.org/x/term"

	"github.com/siskocapital/finking/internal/api"
	"github.com/siskocapital/finking/internal/server"
	"github.com/siskocapital/finking/internal/tui"
)

// Dependencies holds the external dependencies for the commands.
// This allows for dependency injection and easier testing.
type Dependencies struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// IsTerminal reports whether stdout is a terminal
	IsTerminal func() bool
	// StdinPiped reports whether stdin carries piped input
	StdinPiped func() bool
	// TermWidth returns the terminal width in cells
	TermWidth func() int

	// NewEndpoint builds the chat backend client
	NewEndpoint func(endpoint string) (api.ChatEndpoint, error)
	// NewCompleter builds the upstream completions client for the backend
	NewCompleter func(apiKey string, opts ...api.CompletionOption) (api.Completer, error)

	// RunChat runs the interactive chat TUI
	RunChat func(session tui.ChatSession, opts tui.Options) error
	// Serve runs the backend until ctx is done
	Serve func(ctx context.Context, srv *server.Server, addr string) error

	// Copy writes text to the system clipboard
	Copy func(text string) error
}

// NewDependencies creates a new Dependencies struct with default implementations.
func NewDependencies() *Dependencies {
	return &Dependencies{
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		IsTerminal: isStdoutTTY,
		StdinPiped: isStdinPiped,
		TermWidth:  getTerminalWidth,
		NewEndpoint: func(endpoint string) (api.ChatEndpoint, error) {
			client, err := api.NewClient(api.WithEndpoint(endpoint))
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		NewCompleter: func(apiKey string, opts ...api.CompletionOption) (api.Completer, error) {
			client, err := api.NewCompletionClient(apiKey, opts...)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		RunChat: tui.RunChat,
		Serve: func(ctx context.Context, srv *server.Server, addr string) error {
			return srv.ListenAndServe(ctx, addr)
		},
		Copy: clipboard.WriteAll,
	}
}

// getTerminalWidth returns the terminal width or a default value
func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80 // default width
	}
	return width
}

// isStdoutTTY returns true if stdout is connected to a terminal
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// isStdinPiped returns true if stdin is a pipe or a file
func isStdinPiped() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}
