// Package tui provides the terminal chat interface for finking.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/siskocapital/finking/internal/errors"
)

// Palette
var (
	colorSurface = lipgloss.Color("#1f2430")
	colorBorder  = lipgloss.Color("#3b4252")

	colorPrimary   = lipgloss.Color("#e5b567") // gold
	colorSecondary = lipgloss.Color("#8fbf7f") // green
	colorAccent    = lipgloss.Color("#7fb4ca")
	colorError     = lipgloss.Color("#e06c75")

	colorText     = lipgloss.Color("#d8dee9")
	colorTextDim  = lipgloss.Color("#7b8496")
	colorTextMute = lipgloss.Color("#4c566a")
)

// Gradient colors for the loading animation
var gradientColors = []lipgloss.Color{
	lipgloss.Color("#e5b567"),
	lipgloss.Color("#d4a24c"),
	lipgloss.Color("#c89b3c"),
	lipgloss.Color("#8fbf7f"),
	lipgloss.Color("#6fa86a"),
	lipgloss.Color("#7fb4ca"),
}

var (
	headerStyle          lipgloss.Style
	titleStyle           lipgloss.Style
	subtitleStyle        lipgloss.Style
	hintStyle            lipgloss.Style
	messagesAreaStyle    lipgloss.Style
	userBubbleStyle      lipgloss.Style
	userLabelStyle       lipgloss.Style
	assistantBubbleStyle lipgloss.Style
	assistantLabelStyle  lipgloss.Style
	pendingBubbleStyle   lipgloss.Style
	inputPanelStyle      lipgloss.Style
	inputLabelStyle      lipgloss.Style
	loadingStyle         lipgloss.Style
	statusBarStyle       lipgloss.Style
	statusKeyStyle       lipgloss.Style
	statusDescStyle      lipgloss.Style
	noticeStyle          lipgloss.Style
	errorStyle           lipgloss.Style
)

func init() {
	headerStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 2).
		MarginBottom(1)

	titleStyle = lipgloss.NewStyle().
		Foreground(colorPrimary).
		Bold(true)

	subtitleStyle = lipgloss.NewStyle().
		Foreground(colorTextDim)

	hintStyle = lipgloss.NewStyle().
		Foreground(colorTextMute).
		Italic(true)

	messagesAreaStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(1)

	userBubbleStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorSecondary).
		Padding(0, 1).
		MarginLeft(4)

	userLabelStyle = lipgloss.NewStyle().
		Foreground(colorSecondary).
		Bold(true).
		MarginLeft(4)

	assistantBubbleStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorPrimary).
		Foreground(colorText).
		Padding(0, 1).
		MarginRight(4)

	assistantLabelStyle = lipgloss.NewStyle().
		Foreground(colorPrimary).
		Bold(true)

	pendingBubbleStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorTextMute).
		Foreground(colorTextDim).
		Padding(0, 1).
		Italic(true)

	inputPanelStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		MarginTop(1)

	inputLabelStyle = lipgloss.NewStyle().
		Foreground(colorPrimary).
		Bold(true).
		MarginRight(1)

	loadingStyle = lipgloss.NewStyle().
		Foreground(colorAccent).
		Bold(true)

	statusBarStyle = lipgloss.NewStyle().
		Foreground(colorTextMute).
		MarginTop(1)

	statusKeyStyle = lipgloss.NewStyle().
		Foreground(colorTextDim).
		Bold(true)

	statusDescStyle = lipgloss.NewStyle().
		Foreground(colorTextMute)

	noticeStyle = lipgloss.NewStyle().
		Foreground(colorSecondary).
		Background(colorSurface).
		Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
		Foreground(colorError).
		Bold(true)
}

// FormatError returns a styled error message with additional context.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	errStyle := lipgloss.NewStyle().Foreground(colorError)
	dimStyle := lipgloss.NewStyle().Foreground(colorTextDim)

	var sb strings.Builder
	sb.WriteString(errStyle.Render(fmt.Sprintf("✗ %v", err)))

	if status := errors.GetHTTPStatus(err); status > 0 {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n  HTTP Status: %d", status)))
	}

	switch {
	case errors.IsNetworkError(err):
		sb.WriteString(dimStyle.Render("\n  Hint: Check that the chat backend is running (finking serve) and the endpoint is correct"))
	case errors.IsTimeoutError(err):
		sb.WriteString(dimStyle.Render("\n  Hint: Request timed out. Try again"))
	case errors.IsConfigError(err):
		sb.WriteString(dimStyle.Render("\n  Hint: Inspect your settings with 'finking config'"))
	}

	return sb.String()
}

// PrintError prints a styled error message.
func PrintError(err error) {
	if err == nil {
		return
	}
	fmt.Println(FormatError(err))
}
