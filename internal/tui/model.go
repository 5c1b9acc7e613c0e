package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/siskocapital/finking/internal/chat"
	apierrors "github.com/siskocapital/finking/internal/errors"
	"github.com/siskocapital/finking/internal/models"
	"github.com/siskocapital/finking/internal/render"
)

// eventBuffer bounds the events queued between the session and the UI loop
const eventBuffer = 64

// Animation tick message
type animationTickMsg time.Time

// Message types for the TUI
type (
	// sessionEventMsg carries one session event into the update loop
	sessionEventMsg struct {
		event chat.Event
	}
	// outcomeMsg is sent when an exchange resolves
	outcomeMsg struct {
		outcome chat.Outcome
	}
	// clipboardMsg reports the result of a copy
	clipboardMsg struct {
		err error
	}
)

// ChatSession is the part of chat.Session the TUI drives
type ChatSession interface {
	Initialize()
	Begin(text string) (*chat.Exchange, error)
	Subscribe(fn chat.Listener) func()
	LastReply() string
}

// Options configures the chat model
type Options struct {
	// Endpoint is shown in the header
	Endpoint string
	// Markdown renders assistant replies through glamour
	Markdown bool
	Render   render.Options
	Logger   zerolog.Logger
	// Copy replaces the system clipboard, mainly for tests
	Copy func(string) error
}

// Model represents the TUI state
type Model struct {
	session     ChatSession
	events      <-chan chat.Event
	unsubscribe func()
	opts        Options

	// UI components
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	// State
	messages       []models.Message // Mirror of the session history, built from events
	ready          bool
	err            error
	notice         string
	animationFrame int

	// Dimensions
	width  int
	height int
}

// NewChatModel subscribes to session, initialises it and returns the model
func NewChatModel(session ChatSession, opts Options) Model {
	if opts.Copy == nil {
		opts.Copy = clipboard.WriteAll
	}
	if opts.Render.Style == "" {
		opts.Render = render.DefaultOptions()
	}

	ta := textarea.New()
	ta.Placeholder = "Ask FinKing about your money..."
	ta.CharLimit = 4000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.Focus()

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(colorText)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(colorTextDim)
	ta.BlurredStyle = ta.FocusedStyle

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = loadingStyle

	listener, events := chat.ChannelListener(eventBuffer)
	unsubscribe := session.Subscribe(listener)
	session.Initialize()

	return Model{
		session:     session,
		events:      events,
		unsubscribe: unsubscribe,
		opts:        opts,
		textarea:    ta,
		spinner:     s,
		messages:    []models.Message{},
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.waitForEvent(),
	)
}

// waitForEvent blocks on the next session event
func (m Model) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return sessionEventMsg{event: ev}
	}
}

// awaitExchange resolves an accepted exchange off the update loop
func awaitExchange(exchange *chat.Exchange) tea.Cmd {
	return func() tea.Msg {
		return outcomeMsg{outcome: exchange.Await(context.Background())}
	}
}

// animationTick returns a command that sends animation tick messages
func animationTick() tea.Cmd {
	return tea.Tick(time.Millisecond*80, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

// copyReply copies text off the update loop
func (m Model) copyReply(text string) tea.Cmd {
	copyFn := m.opts.Copy
	return func() tea.Msg {
		return clipboardMsg{err: copyFn(text)}
	}
}

// loading reports whether the transient placeholder is displayed
func (m Model) loading() bool {
	for _, msg := range m.messages {
		if msg.Role == models.RoleLoading {
			return true
		}
	}
	return false
}

// isExitCommand reports whether input asks to leave the chat
func isExitCommand(input string) bool {
	switch strings.ToLower(input) {
	case "exit", "quit", "/exit", "/quit":
		return true
	}
	return false
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 4 // Header panel with border
		inputHeight := 6  // Input panel with border
		statusHeight := 2 // Status bar and notice line
		padding := 2

		vpHeight := m.height - headerHeight - inputHeight - statusHeight - padding
		if vpHeight < 5 {
			vpHeight = 5
		}

		contentWidth := m.width - 4

		if !m.ready {
			m.viewport = viewport.New(contentWidth, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = contentWidth
			m.viewport.Height = vpHeight
		}
		m.textarea.SetWidth(contentWidth - 4)
		m.updateViewport()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.close()
			return m, tea.Quit

		case "ctrl+y":
			return m, m.copyLastReply()

		case "enter":
			input := strings.TrimSpace(m.textarea.Value())
			if isExitCommand(input) {
				m.close()
				return m, tea.Quit
			}
			if input == "/copy" {
				m.textarea.Reset()
				return m, m.copyLastReply()
			}

			exchange, err := m.session.Begin(input)
			if err != nil {
				if !apierrors.IsRejected(err) {
					m.err = err
				}
				if input == "" {
					m.textarea.Reset()
				}
				return m, nil
			}

			m.err = nil
			m.notice = ""
			m.animationFrame = 0
			m.textarea.Reset()

			return m, tea.Batch(
				awaitExchange(exchange),
				m.spinner.Tick,
				animationTick(),
			)
		}

	case sessionEventMsg:
		m.apply(msg.event)
		m.updateViewport()
		m.viewport.GotoBottom()
		cmds = append(cmds, m.waitForEvent())

	case outcomeMsg:
		if msg.outcome.Failed() {
			m.notice = "Request failed. Details are in the log."
		}

	case clipboardMsg:
		if msg.err != nil {
			m.opts.Logger.Warn().Err(msg.err).Msg("clipboard copy failed")
			m.notice = "Could not copy to clipboard."
		} else {
			m.notice = "Copied last reply to clipboard."
		}

	case spinner.TickMsg:
		if m.loading() {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case animationTickMsg:
		if m.loading() {
			m.animationFrame++
			cmds = append(cmds, animationTick())
		}
	}

	// Only pass KeyMsg to the textarea to prevent escape sequence leaks
	if _, ok := msg.(tea.KeyMsg); ok {
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// copyLastReply copies the most recent assistant reply
func (m *Model) copyLastReply() tea.Cmd {
	reply := m.session.LastReply()
	if reply == "" {
		m.notice = "Nothing to copy yet."
		return nil
	}
	return m.copyReply(reply)
}

// apply mirrors one session event into the local message list
func (m *Model) apply(ev chat.Event) {
	switch ev.Kind {
	case chat.MessageAdded:
		if ev.Index < 0 || ev.Index > len(m.messages) {
			m.messages = append(m.messages, ev.Message)
			return
		}
		m.messages = append(m.messages, models.Message{})
		copy(m.messages[ev.Index+1:], m.messages[ev.Index:])
		m.messages[ev.Index] = ev.Message
	case chat.MessageRemoved:
		if ev.Index < 0 || ev.Index >= len(m.messages) {
			return
		}
		m.messages = append(m.messages[:ev.Index], m.messages[ev.Index+1:]...)
	}
}

func (m *Model) close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}

	var sections []string
	contentWidth := m.width - 4

	// Header
	headerContent := lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render("♛ FinKing"),
		hintStyle.Render("  •  "),
		subtitleStyle.Render(m.opts.Endpoint),
	)
	sections = append(sections, headerStyle.Width(contentWidth).Render(headerContent))

	// Messages
	messagesPanel := messagesAreaStyle.
		Width(contentWidth).
		Height(m.viewport.Height).
		Render(m.viewport.View())
	sections = append(sections, messagesPanel)

	// Input
	var inputContent string
	if m.loading() {
		inputContent = m.renderLoadingAnimation()
	} else {
		inputContent = lipgloss.JoinVertical(
			lipgloss.Left,
			inputLabelStyle.Render("You"),
			m.textarea.View(),
		)
	}
	sections = append(sections, inputPanelStyle.Width(contentWidth).Render(inputContent))

	sections = append(sections, m.renderStatusBar(contentWidth))

	if m.notice != "" {
		sections = append(sections, noticeStyle.Render(m.notice))
	}
	if m.err != nil {
		sections = append(sections, errorStyle.Render(fmt.Sprintf("⚠ Error: %v", m.err)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderLoadingAnimation renders a colorful animated loading indicator
func (m Model) renderLoadingAnimation() string {
	chars := []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}
	barChars := []string{"█", "█", "█", "█", "█", "▓", "▒", "░"}

	frame := m.animationFrame

	spinColor := gradientColors[frame%len(gradientColors)]
	spin := lipgloss.NewStyle().Foreground(spinColor).Bold(true).Render(chars[frame%len(chars)])

	barWidth := 20
	var bar strings.Builder
	for i := 0; i < barWidth; i++ {
		colorIdx := (i + frame) % len(gradientColors)
		charIdx := (i + frame/2) % len(barChars)
		style := lipgloss.NewStyle().Foreground(gradientColors[colorIdx])
		bar.WriteString(style.Render(barChars[charIdx]))
	}

	var dots strings.Builder
	numDots := (frame / 3) % 4
	for i := 0; i < 3; i++ {
		if i < numDots {
			dots.WriteString(lipgloss.NewStyle().Foreground(gradientColors[(frame+i)%len(gradientColors)]).Render("●"))
		} else {
			dots.WriteString(lipgloss.NewStyle().Foreground(colorTextMute).Render("○"))
		}
	}

	text := lipgloss.NewStyle().Foreground(colorText).Render(" FinKing is thinking ")
	return fmt.Sprintf("%s %s %s %s", spin, bar.String(), text, dots.String())
}

// renderStatusBar renders the bottom status bar with shortcuts
func (m Model) renderStatusBar(width int) string {
	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Enter", "Send"},
		{"Ctrl+Y", "Copy reply"},
		{"Esc", "Quit"},
		{"↑↓", "Scroll"},
	}

	var items []string
	for _, s := range shortcuts {
		items = append(items, lipgloss.JoinHorizontal(
			lipgloss.Center,
			statusKeyStyle.Render(s.key),
			statusDescStyle.Render(" "+s.desc),
		))
	}

	bar := strings.Join(items, "  │  ")
	return statusBarStyle.Width(width).Align(lipgloss.Center).Render(bar)
}

// updateViewport refreshes the viewport content with styled messages
func (m *Model) updateViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderMessages(m.viewport.Width - 6))
}

// renderMessages renders the mirrored history as chat bubbles
func (m Model) renderMessages(bubbleWidth int) string {
	if bubbleWidth < 20 {
		bubbleWidth = 20
	}

	var content strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			content.WriteString("\n")
		}

		switch msg.Role {
		case models.RoleUser:
			label := userLabelStyle.Render("● You")
			bubble := userBubbleStyle.Width(bubbleWidth).Render(render.Sanitize(msg.Content))
			content.WriteString(label + "\n" + bubble)

		case models.RoleLoading:
			label := assistantLabelStyle.Render("♛ FinKing")
			bubble := pendingBubbleStyle.Render("thinking…")
			content.WriteString(label + "\n" + bubble)

		default:
			label := assistantLabelStyle.Render("♛ FinKing")
			body := render.Reply(msg.Content, m.opts.Markdown, m.opts.Render.WithWidth(bubbleWidth-4))
			bubble := assistantBubbleStyle.Width(bubbleWidth).Render(body)
			content.WriteString(label + "\n" + bubble)
		}
		content.WriteString("\n")
	}
	return content.String()
}

// RunChat starts the chat TUI on session
func RunChat(session ChatSession, opts Options) error {
	m := NewChatModel(session, opts)
	defer m.close()

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
