// Package server implements the finking chat backend: the /api/chat and
// /api/health endpoints, proxying conversations to an OpenAI-compatible
// completions API.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/siskocapital/finking/internal/api"
	"github.com/siskocapital/finking/internal/models"
)

// Server is the chat backend
type Server struct {
	completer       api.Completer
	logger          zerolog.Logger
	metrics         *Metrics
	router          *mux.Router
	systemPrompt    string
	apiKeySet       bool
	shutdownTimeout time.Duration
	now             func() time.Time
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithSystemPrompt replaces DefaultSystemPrompt
func WithSystemPrompt(prompt string) Option {
	return func(s *Server) {
		s.systemPrompt = prompt
	}
}

// WithAPIKeyConfigured tells the server whether the upstream credential is
// present. Without it every chat request fails with a configuration error.
func WithAPIKeyConfigured(ok bool) Option {
	return func(s *Server) {
		s.apiKeySet = ok
	}
}

// WithMetrics shares a metrics registry
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithShutdownTimeout bounds graceful shutdown
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// WithClock overrides time.Now for response timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New builds a backend around completer
func New(completer api.Completer, opts ...Option) *Server {
	s := &Server{
		completer:       completer,
		logger:          zerolog.Nop(),
		systemPrompt:    DefaultSystemPrompt,
		apiKeySet:       true,
		shutdownTimeout: 10 * time.Second,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}

	s.router = mux.NewRouter()
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc(models.PathChat, s.handleChat).Methods(http.MethodPost)
	s.router.HandleFunc(models.PathHealth, s.handleHealth).Methods(http.MethodGet)
	s.router.Handle(models.PathMetrics, s.metrics.Handler()).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)
}

// Handler returns the full middleware chain around the router
func (s *Server) Handler() http.Handler {
	return cors(s.instrument(s.router))
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("starting FinKing AI server")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("server listen error")
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		s.logger.Info().Msg("shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("server shutdown error")
			return err
		}
		s.logger.Info().Msg("server shutdown complete")
		return nil
	})

	return eg.Wait()
}

// ListenAndServe listens on addr and calls Serve
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
