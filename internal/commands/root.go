// Package commands provides CLI commands for finking.
package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/siskocapital/finking/internal/config"
	apierrors "github.com/siskocapital/finking/internal/errors"
	"github.com/siskocapital/finking/internal/logging"
)

var (
	// Version info (set at build time)
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// globalFlags are the persistent flags shared by every command
type globalFlags struct {
	endpoint string
	logLevel string
	verbose  bool
	markdown bool
}

// NewRootCmd creates the finking command tree
func NewRootCmd(deps *Dependencies) *cobra.Command {
	flags := &globalFlags{}
	var outputFlag, fileFlag string

	cmd := &cobra.Command{
		Use:   "finking [question]",
		Short: "Terminal chat with FinKing, the AI investment analyst",
		Long: `finking is a command-line client for the FinKing AI investment analyst.
It talks to a FinKing chat backend, which you can run locally with
'finking serve'.

Examples:
  finking chat                          Start interactive chat
  finking serve                         Run the chat backend
  finking health                        Check the chat backend
  finking config                        Show settings
  finking "Should I buy index funds?"   Ask a single question
  finking -f question.md                Read the question from file
  cat question.md | finking             Read the question from stdin
  finking "Hello" -o reply.md           Save the reply to file`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Check for version flag
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Fprintf(deps.Stdout, "finking %s (built %s)\n", Version, BuildTime)
				return nil
			}

			prompt, ok, err := readPrompt(deps, fileFlag, args)
			if err != nil {
				return err
			}
			if !ok {
				// No input - show help
				return cmd.Help()
			}

			cfg, err := loadSettings(flags, deps.Stderr)
			if err != nil {
				return err
			}
			logger, closer, err := newLogger(cfg, deps.Stderr, cfg.Verbose)
			if err != nil {
				return err
			}
			defer closer.Close()

			return runQuery(cmd.Context(), deps, cfg, logger, prompt, outputFlag)
		},
	}

	cmd.SetIn(deps.Stdin)
	cmd.SetOut(deps.Stdout)
	cmd.SetErr(deps.Stderr)

	// Global flags
	cmd.PersistentFlags().StringVarP(&flags.endpoint, "endpoint", "e", "", "Chat backend URL (e.g., http://localhost:5000)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error, disabled)")
	cmd.PersistentFlags().BoolVar(&flags.verbose, "verbose", false, "Mirror diagnostic logs to stderr")
	cmd.PersistentFlags().BoolVar(&flags.markdown, "markdown", false, "Render replies as markdown")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Save reply to file")
	cmd.Flags().StringVarP(&fileFlag, "file", "f", "", "Read question from file")
	cmd.Flags().BoolP("version", "v", false, "Show version and exit")

	// Add subcommands
	cmd.AddCommand(NewChatCmd(deps, flags))
	cmd.AddCommand(NewServeCmd(deps))
	cmd.AddCommand(NewHealthCmd(deps, flags))
	cmd.AddCommand(NewConfigCmd(deps))

	return cmd
}

// Execute runs the root command
func Execute() {
	deps := NewDependencies()
	if err := NewRootCmd(deps).Execute(); err != nil {
		fmt.Fprintln(deps.Stderr, formatErrorMessage(err, "Error"))
		os.Exit(1)
	}
}

// readPrompt picks the question from a file, piped stdin or the positional
// argument, in that order. Empty stdin falls through. ok is false when there
// is no input at all.
func readPrompt(deps *Dependencies, file string, args []string) (string, bool, error) {
	// Check for file input
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", false, fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), true, nil
	}

	// Check for stdin
	if deps.StdinPiped() {
		data, err := io.ReadAll(deps.Stdin)
		if err != nil {
			return "", false, fmt.Errorf("failed to read stdin: %w", err)
		}
		if strings.TrimSpace(string(data)) != "" {
			return string(data), true, nil
		}
	}

	// Check for positional argument
	if len(args) > 0 {
		return args[0], true, nil
	}

	return "", false, nil
}

// loadSettings resolves the client configuration: file, then environment,
// then flags.
func loadSettings(flags *globalFlags, stderr io.Writer) (config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		if apierrors.IsConfigError(err) {
			return cfg, err
		}
		fmt.Fprintf(stderr, "Warning: %v (using defaults)\n", err)
	}

	if flags.endpoint != "" {
		if err := cfg.Set("endpoint", flags.endpoint); err != nil {
			return cfg, err
		}
	}
	if flags.logLevel != "" {
		if err := cfg.Set("log_level", flags.logLevel); err != nil {
			return cfg, err
		}
	}
	if flags.verbose {
		cfg.Verbose = true
	}
	if flags.markdown {
		cfg.Markdown.Enabled = true
	}
	return cfg, nil
}

// newLogger opens the client diagnostic log. console mirrors it to stderr.
func newLogger(cfg config.Config, stderr io.Writer, console bool) (zerolog.Logger, io.Closer, error) {
	path, err := config.GetLogPath(cfg)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to resolve log path: %w", err)
	}
	logger, closer, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    path,
		Console: console,
		Stderr:  stderr,
	})
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	return logger, closer, nil
}
