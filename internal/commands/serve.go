package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/siskocapital/finking/internal/api"
	"github.com/siskocapital/finking/internal/config"
	"github.com/siskocapital/finking/internal/logging"
	"github.com/siskocapital/finking/internal/server"
)

// NewServeCmd creates the chat backend command
func NewServeCmd(deps *Dependencies) *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the FinKing chat backend",
		Long: `Run the FinKing chat backend. It serves POST /api/chat, GET /api/health
and GET /metrics, and forwards conversations to an OpenAI-compatible
completions API (DeepSeek by default).

Environment:
  DEEPSEEK_API_KEY             Upstream API key (required for chat)
  DEEPSEEK_API_URL             Upstream completions URL
  DEEPSEEK_MODEL               Upstream model
  FINKING_HOST, PORT           Listen address (default 0.0.0.0:5000)
  FINKING_SYSTEM_PROMPT_FILE   Replace the built-in system prompt
  FINKING_UPSTREAM_TIMEOUT     Upstream request timeout (default 30s)
  FINKING_LOG_LEVEL            Log level (default info)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, deps, envFile)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Load environment variables from this file if it exists")
	return cmd
}

func runServe(ctx context.Context, deps *Dependencies, envFile string) error {
	cfg, err := config.LoadServerConfig(envFile)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Console: true,
		Stderr:  deps.Stderr,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	if !cfg.HasAPIKey() {
		logger.Warn().Msg("DEEPSEEK_API_KEY not set; chat requests will fail until it is configured")
	}

	prompt, err := cfg.SystemPrompt(server.DefaultSystemPrompt)
	if err != nil {
		return err
	}

	completer, err := deps.NewCompleter(cfg.APIKey,
		api.WithCompletionEndpoint(cfg.APIURL),
		api.WithCompletionModel(cfg.Model),
		api.WithCompletionTimeout(cfg.UpstreamTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create upstream client: %w", err)
	}

	srv := server.New(completer,
		server.WithLogger(logger),
		server.WithSystemPrompt(prompt),
		server.WithAPIKeyConfigured(cfg.HasAPIKey()),
		server.WithShutdownTimeout(cfg.ShutdownTimeout),
	)

	logger.Info().
		Str("model", cfg.Model).
		Str("upstream", cfg.APIURL).
		Msg("chat backend configured")

	return deps.Serve(ctx, srv, cfg.Addr())
}
