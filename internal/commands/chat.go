package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/siskocapital/finking/internal/chat"
	"github.com/siskocapital/finking/internal/render"
	"github.com/siskocapital/finking/internal/tui"
)

// NewChatCmd creates the interactive chat command
func NewChatCmd(deps *Dependencies, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session with FinKing.

The conversation is kept for the life of the session and sent along with
every question. Type 'exit', 'quit', or press Esc or Ctrl+C to end the
session. Ctrl+Y or '/copy' copies the last reply.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(deps, flags)
		},
	}
}

func runChat(deps *Dependencies, flags *globalFlags) error {
	cfg, err := loadSettings(flags, deps.Stderr)
	if err != nil {
		return err
	}

	// The TUI owns the terminal, so logs only go to the file
	logger, closer, err := newLogger(cfg, deps.Stderr, false)
	if err != nil {
		return err
	}
	defer closer.Close()

	endpoint, err := deps.NewEndpoint(cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	session := chat.NewSession(endpoint, chat.WithLogger(logger))
	logger.Info().Str("session", session.ID()).Str("endpoint", cfg.Endpoint).Msg("starting chat")

	return deps.RunChat(session, tui.Options{
		Endpoint: cfg.Endpoint,
		Markdown: cfg.Markdown.Enabled,
		Render:   render.OptionsFromConfig(cfg.Markdown, deps.TermWidth()),
		Logger:   logger,
		Copy:     deps.Copy,
	})
}
