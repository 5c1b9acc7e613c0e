package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/siskocapital/finking/internal/chat"
	"github.com/siskocapital/finking/internal/config"
	apierrors "github.com/siskocapital/finking/internal/errors"
	"github.com/siskocapital/finking/internal/render"
)

// errQueryFailed is returned when the exchange resolved to the connectivity
// notice. The cause is only in the diagnostic log.
var errQueryFailed = errors.New("chat request failed, details are in the log")

// Gradient colors for animation
var gradientColors = []lipgloss.Color{
	lipgloss.Color("#e5b567"), // Gold
	lipgloss.Color("#f0c674"), // Light gold
	lipgloss.Color("#8fbf7f"), // Green
	lipgloss.Color("#6fa8a0"), // Teal
	lipgloss.Color("#7aa2f7"), // Blue
	lipgloss.Color("#6fa8a0"), // Teal
	lipgloss.Color("#8fbf7f"), // Green
	lipgloss.Color("#f0c674"), // Light gold
}

var (
	colorText     = lipgloss.Color("#d8d4c8")
	colorTextDim  = lipgloss.Color("#7a776e")
	colorTextMute = lipgloss.Color("#4a4840")
	colorSuccess  = lipgloss.Color("#8fbf7f")
	colorPrimary  = lipgloss.Color("#e5b567")
	colorError    = lipgloss.Color("#e06c75")
)

// Styles matching the chat TUI
var (
	assistantLabelStyle  lipgloss.Style
	assistantBubbleStyle lipgloss.Style
	noticeBubbleStyle    lipgloss.Style
)

func init() {
	assistantLabelStyle = lipgloss.NewStyle().
		Foreground(colorPrimary).
		Bold(true)

	assistantBubbleStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorPrimary).
		Foreground(colorText).
		Padding(0, 1).
		MarginTop(1).
		MarginBottom(1)

	noticeBubbleStyle = assistantBubbleStyle.
		BorderForeground(colorError)
}

// spinner handles the animated loading indicator
type spinner struct {
	out     io.Writer
	message string
	stop    chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	frame   int
	stopped bool // Flag to prevent double-close
}

// newSpinner creates a new animated spinner drawing on out
func newSpinner(out io.Writer, message string) *spinner {
	return &spinner{
		out:     out,
		message: message,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// start begins the animation
func (s *spinner) start() {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		// Hide cursor
		fmt.Fprint(s.out, "\033[?25l")

		for {
			select {
			case <-s.stop:
				// Clear line and show cursor
				fmt.Fprint(s.out, "\r\033[K\033[?25h")
				return
			case <-ticker.C:
				s.mu.Lock()
				s.render()
				s.frame++
				s.mu.Unlock()
			}
		}
	}()
}

// render draws the current animation frame
func (s *spinner) render() {
	chars := []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}
	barChars := []string{"█", "█", "█", "█", "█", "█", "▓", "▒", "░"}

	spinIdx := s.frame % len(chars)
	spinColor := gradientColors[s.frame%len(gradientColors)]
	spinnerChar := lipgloss.NewStyle().Foreground(spinColor).Bold(true).Render(chars[spinIdx])

	barWidth := 16
	var bar strings.Builder
	for i := 0; i < barWidth; i++ {
		colorIdx := (i + s.frame) % len(gradientColors)
		charIdx := (i + s.frame/2) % len(barChars)
		style := lipgloss.NewStyle().Foreground(gradientColors[colorIdx])
		bar.WriteString(style.Render(barChars[charIdx]))
	}

	var dots strings.Builder
	numDots := (s.frame / 3) % 4
	for i := 0; i < 3; i++ {
		if i < numDots {
			dotColor := gradientColors[(s.frame+i)%len(gradientColors)]
			dots.WriteString(lipgloss.NewStyle().Foreground(dotColor).Render("●"))
		} else {
			dots.WriteString(lipgloss.NewStyle().Foreground(colorTextMute).Render("○"))
		}
	}

	msg := lipgloss.NewStyle().Foreground(colorText).Render(s.message)

	fmt.Fprintf(s.out, "\r\033[K%s %s %s %s", spinnerChar, bar.String(), msg, dots.String())
}

// stopOnce safely closes the stop channel only once
func (s *spinner) stopOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		close(s.stop)
		s.stopped = true
	}
}

// stopWithSuccess stops the spinner and shows success message
func (s *spinner) stopWithSuccess(message string) {
	s.stopOnce()
	<-s.done

	checkmark := lipgloss.NewStyle().Foreground(colorSuccess).Bold(true).Render("✓")
	msg := lipgloss.NewStyle().Foreground(colorSuccess).Render(message)
	fmt.Fprintf(s.out, "%s %s\n", checkmark, msg)
}

// stopWithError stops the spinner and leaves the line clear
func (s *spinner) stopWithError() {
	s.stopOnce()
	<-s.done
}

// runQuery asks a single question through a fresh chat session and prints
// the reply. A terminal gets the decorated output; anything else gets only
// the reply text.
func runQuery(ctx context.Context, deps *Dependencies, cfg config.Config, logger zerolog.Logger, prompt, output string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return fmt.Errorf("prompt cannot be empty")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	rawOutput := !deps.IsTerminal()

	endpoint, err := deps.NewEndpoint(cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	session := chat.NewSession(endpoint, chat.WithLogger(logger))
	session.Initialize()

	if cfg.Verbose && !rawOutput {
		fmt.Fprintf(deps.Stderr, "[verbose] Endpoint: %s\n", cfg.Endpoint)
		fmt.Fprintf(deps.Stderr, "[verbose] Session: %s\n", session.ID())
	}

	var spin *spinner
	if !rawOutput {
		spin = newSpinner(deps.Stderr, "Asking FinKing")
		spin.start()
	}

	// Track request timing for verbose output
	startTime := time.Now()
	outcome, err := session.Submit(ctx, prompt)
	requestDuration := time.Since(startTime)
	if err != nil {
		if spin != nil {
			spin.stopWithError()
		}
		return err
	}

	text := render.Sanitize(outcome.Reply)

	if outcome.Failed() {
		if rawOutput {
			fmt.Fprintln(deps.Stderr, text)
		} else {
			spin.stopWithError()
			fmt.Fprintln(deps.Stderr, noticeBubbleStyle.Width(bubbleWidth(deps)).Render(text))
		}
		if path, err := config.GetLogPath(cfg); err == nil {
			return fmt.Errorf("%w (%s)", errQueryFailed, path)
		}
		return errQueryFailed
	}

	if !rawOutput {
		spin.stopWithSuccess("Done")
	}

	if cfg.Verbose && !rawOutput {
		fmt.Fprintf(deps.Stderr, "[verbose] Request took %s\n", requestDuration.Round(time.Millisecond))
		if outcome.Fallback {
			fmt.Fprintln(deps.Stderr, "[verbose] Backend returned no reply text")
		}
	}

	// Raw output mode: output only the reply text
	if rawOutput {
		if output != "" {
			return writeOutput(output, text)
		}
		fmt.Fprintln(deps.Stdout, text)
		return nil
	}

	// Decorated output mode (TTY)
	fmt.Fprintln(deps.Stderr)

	if cfg.CopyToClipboard {
		if err := deps.Copy(text); err != nil {
			// Log warning but don't fail
			logger.Warn().Err(err).Msg("clipboard copy failed")
			warnMsg := lipgloss.NewStyle().Foreground(colorError).Render(
				fmt.Sprintf("⚠ Failed to copy to clipboard: %v", err),
			)
			fmt.Fprintln(deps.Stderr, warnMsg)
		} else {
			clipMsg := lipgloss.NewStyle().Foreground(colorSuccess).Render("✓ Copied to clipboard")
			fmt.Fprintln(deps.Stderr, clipMsg)
		}
	}

	if output != "" {
		if err := writeOutput(output, text); err != nil {
			return err
		}
		successMsg := lipgloss.NewStyle().Foreground(colorSuccess).Render(
			fmt.Sprintf("✓ Reply saved to %s", output),
		)
		fmt.Fprintln(deps.Stderr, successMsg)
		return nil
	}

	width := bubbleWidth(deps)
	contentWidth := width - 4

	fmt.Fprintln(deps.Stdout, assistantLabelStyle.Render("♛ FinKing"))

	renderOpts := render.OptionsFromConfig(cfg.Markdown, contentWidth)
	rendered := render.Reply(text, cfg.Markdown.Enabled, renderOpts)

	fmt.Fprintln(deps.Stdout, assistantBubbleStyle.Width(width).Render(rendered))
	return nil
}

// bubbleWidth fits the reply bubble to the terminal
func bubbleWidth(deps *Dependencies) int {
	width := deps.TermWidth() - 4
	if width < 40 {
		width = 40
	}
	if width > 120 {
		width = 120
	}
	return width
}

func writeOutput(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// formatErrorMessage formats an error with additional context from structured errors
func formatErrorMessage(err error, label string) string {
	if err == nil {
		return ""
	}

	errorStyle := lipgloss.NewStyle().Foreground(colorError)
	dimStyle := lipgloss.NewStyle().Foreground(colorTextDim)

	var sb strings.Builder
	sb.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s: %v", label, err)))

	if status := apierrors.GetHTTPStatus(err); status > 0 {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n  HTTP Status: %d", status)))
	}

	switch {
	case apierrors.IsNetworkError(err):
		sb.WriteString(dimStyle.Render("\n  Hint: Check that the chat backend is running (finking serve) and the endpoint is correct"))
	case apierrors.IsTimeoutError(err):
		sb.WriteString(dimStyle.Render("\n  Hint: Request timed out. Try again or check your connection"))
	case apierrors.IsConfigError(err):
		sb.WriteString(dimStyle.Render("\n  Hint: Inspect your settings with 'finking config'"))
	case errors.Is(err, errQueryFailed):
		sb.WriteString(dimStyle.Render("\n  Hint: Run 'finking health' to check the chat backend"))
	}

	return sb.String()
}
