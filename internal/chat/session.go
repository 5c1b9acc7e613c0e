// Package chat implements the conversation lifecycle shared by every finking
// surface: ordered history, the single-flight request guard and the render
// events that keep a display in sync.
package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/siskocapital/finking/internal/api"
	apierrors "github.com/siskocapital/finking/internal/errors"
	"github.com/siskocapital/finking/internal/models"
)

// Session owns one conversation
type Session struct {
	id       string
	endpoint api.ChatEndpoint
	logger   zerolog.Logger
	welcome  string

	// deliverMu is held from a mutation until its events are delivered, so
	// listeners see changes in the order they were made.
	deliverMu sync.Mutex

	mu          sync.Mutex // Protects everything below
	messages    []models.Message
	inFlight    bool
	initialized bool
	listeners   []subscription
	nextSubID   int
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the diagnostic logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithWelcome overrides the seeded welcome message
func WithWelcome(text string) Option {
	return func(s *Session) {
		s.welcome = text
	}
}

// WithID sets the session id used in logs
func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// NewSession creates a session bound to a chat endpoint. Call Initialize
// before submitting.
func NewSession(endpoint api.ChatEndpoint, opts ...Option) *Session {
	s := &Session{
		id:       uuid.NewString(),
		endpoint: endpoint,
		logger:   zerolog.Nop(),
		welcome:  models.WelcomeMessage,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("session", s.id).Logger()
	return s
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Subscribe registers a listener and returns a function that removes it
func (s *Session) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.listeners {
			if sub.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Initialize seeds the history with the welcome message. Later calls are no-ops.
func (s *Session) Initialize() {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return
	}
	s.initialized = true
	ev := s.appendLocked(models.Message{Role: models.RoleAssistant, Content: s.welcome})
	listeners := s.listenersLocked()
	s.mu.Unlock()

	deliver(listeners, ev)
	s.logger.Debug().Msg("session initialized")
}

// Messages returns a copy of the displayed history, transient entries included
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// History returns the history as it would be transmitted
func (s *Session) History() []models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.ToHistory(s.messages)
}

// InFlight reports whether an exchange is awaiting its response
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// LastReply returns the content of the most recent assistant message
func (s *Session) LastReply() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == models.RoleAssistant {
			return s.messages[i].Content
		}
	}
	return ""
}

// Submit runs a full exchange: Begin followed by Await.
// Rejected input is reported as ErrEmptyMessage or ErrRequestInFlight.
func (s *Session) Submit(ctx context.Context, text string) (Outcome, error) {
	exchange, err := s.Begin(text)
	if err != nil {
		return Outcome{}, err
	}
	return exchange.Await(ctx), nil
}

// Begin accepts a user message: it appends the user entry, raises the
// in-flight flag and appends the loading placeholder. The request itself is
// sent by Exchange.Await.
func (s *Session) Begin(text string) (*Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apierrors.ErrEmptyMessage
	}

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return nil, apierrors.ErrNotInitialized
	}
	if s.inFlight {
		s.mu.Unlock()
		s.logger.Debug().Msg("submit rejected: request in flight")
		return nil, apierrors.ErrRequestInFlight
	}

	prior := models.ToHistory(s.messages)
	userEv := s.appendLocked(models.Message{Role: models.RoleUser, Content: text})
	s.inFlight = true
	loadingEv := s.appendLocked(models.Message{Role: models.RoleLoading})
	listeners := s.listenersLocked()
	s.mu.Unlock()

	deliver(listeners, userEv, loadingEv)

	s.logger.Debug().Int("history", len(prior)).Msg("exchange started")

	return &Exchange{
		session: s,
		request: models.ChatRequest{Message: text, History: prior},
	}, nil
}

// resolve swaps the loading placeholder for the assistant reply
func (s *Session) resolve(reply string) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	var events []Event
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == models.RoleLoading {
			removed := s.messages[i]
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			events = append(events, Event{Kind: MessageRemoved, Index: i, Message: removed})
			break
		}
	}
	events = append(events, s.appendLocked(models.Message{Role: models.RoleAssistant, Content: reply}))
	listeners := s.listenersLocked()
	s.mu.Unlock()

	deliver(listeners, events...)
}

// clearInFlight lowers the single-flight guard
func (s *Session) clearInFlight() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
}

// appendLocked appends msg and returns its event. MUST be called with s.mu held.
func (s *Session) appendLocked(msg models.Message) Event {
	s.messages = append(s.messages, msg)
	return Event{Kind: MessageAdded, Index: len(s.messages) - 1, Message: msg}
}

// listenersLocked copies the listener list. MUST be called with s.mu held.
func (s *Session) listenersLocked() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for _, sub := range s.listeners {
		out = append(out, sub.fn)
	}
	return out
}

func deliver(listeners []Listener, events ...Event) {
	for _, ev := range events {
		for _, fn := range listeners {
			fn(ev)
		}
	}
}

// Exchange is one accepted submission awaiting its response
type Exchange struct {
	session *Session
	request models.ChatRequest

	once    sync.Once
	outcome Outcome
}

// Request returns the payload this exchange sends
func (e *Exchange) Request() models.ChatRequest {
	return e.request
}

// Await sends the request and reconciles the history with the result.
// It resolves exactly once; later calls return the same outcome.
func (e *Exchange) Await(ctx context.Context) Outcome {
	e.once.Do(func() {
		e.outcome = e.run(ctx)
	})
	return e.outcome
}

func (e *Exchange) run(ctx context.Context) (outcome Outcome) {
	s := e.session
	resolved := false
	defer func() {
		if !resolved {
			s.resolve(models.ConnectivityNotice)
		}
		s.clearInFlight()
	}()

	body, err := s.endpoint.SendChat(ctx, e.request)
	if err == nil {
		reply, ok, parseErr := ResolveReply(body)
		if parseErr != nil {
			err = parseErr
		} else {
			outcome = Outcome{Reply: reply, Fallback: !ok}
			if !ok {
				s.logger.Warn().Msg("endpoint returned no reply text")
			}
		}
	}
	if err != nil {
		s.logger.Error().
			Err(err).
			Int("status", apierrors.GetHTTPStatus(err)).
			Msg("chat request failed")
		outcome = Outcome{Reply: models.ConnectivityNotice, Err: err}
	}

	s.resolve(outcome.Reply)
	resolved = true
	return outcome
}
