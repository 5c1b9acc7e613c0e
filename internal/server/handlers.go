package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	apierrors "github.com/siskocapital/finking/internal/errors"
	"github.com/siskocapital/finking/internal/models"
)

// Client-facing error texts
const (
	msgInvalidRequest  = "Invalid request. Please provide a message."
	msgEmptyMessage    = "Message cannot be empty."
	msgConfig          = "API configuration error. Please contact support."
	msgAuth            = "API authentication failed. Please check configuration."
	msgRateLimit       = "Rate limit exceeded. Please try again in a moment."
	msgUnavailable     = "API service unavailable. Please try again later."
	msgInvalidUpstream = "Invalid response from AI service."
	msgTimeout         = "Request timeout. Please try again."
	msgNetwork         = "Network error. Please check your connection and try again."
	msgUnexpected      = "An unexpected error occurred. Please try again."
	msgNotFound        = "Endpoint not found"
	msgNotAllowed      = "Method not allowed"
	msgInternal        = "Internal server error. Please try again later."
)

// maxRequestBody caps the accepted chat request size
const maxRequestBody = 1 << 20

// logPreview is how much of a message is echoed into the log
const logPreview = 50

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= logPreview {
		return s
	}
	return string(r[:logPreview]) + "..."
}

// parseChatRequest validates the body and returns the trimmed message and
// the usable history entries. It returns the client error text on failure.
func parseChatRequest(body []byte) (string, []models.HistoryEntry, string) {
	if !gjson.ValidBytes(body) {
		return "", nil, msgInvalidRequest
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsObject() {
		return "", nil, msgInvalidRequest
	}

	message := parsed.Get("message")
	if !message.Exists() || message.Type != gjson.String {
		return "", nil, msgInvalidRequest
	}
	text := strings.TrimSpace(message.String())
	if text == "" {
		return "", nil, msgEmptyMessage
	}

	var history []models.HistoryEntry
	parsed.Get("history").ForEach(func(_, entry gjson.Result) bool {
		role := models.Role(entry.Get("role").String())
		content := entry.Get("content")
		if (role == models.RoleUser || role == models.RoleAssistant) && content.Type == gjson.String {
			history = append(history, models.HistoryEntry{Role: string(role), Content: content.String()})
		}
		return true
	})

	return text, history, ""
}

// upstreamFailure maps a completion error to the client status, text and a
// metrics label.
func upstreamFailure(err error) (int, string, string) {
	switch {
	case errors.Is(err, apierrors.ErrMissingAPIKey):
		return http.StatusInternalServerError, msgConfig, "config"
	case apierrors.IsAuthError(err):
		return http.StatusInternalServerError, msgAuth, "auth"
	case apierrors.IsRateLimitError(err):
		return http.StatusTooManyRequests, msgRateLimit, "rate_limit"
	case apierrors.IsTimeoutError(err), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, msgTimeout, "timeout"
	case apierrors.IsNetworkError(err):
		return http.StatusServiceUnavailable, msgNetwork, "network"
	case apierrors.IsAPIError(err):
		return http.StatusServiceUnavailable, msgUnavailable, "status"
	case errors.Is(err, apierrors.ErrInvalidResponse):
		return http.StatusInternalServerError, msgInvalidUpstream, "invalid_response"
	default:
		return http.StatusInternalServerError, msgUnexpected, "unexpected"
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read request body")
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	text, history, problem := parseChatRequest(body)
	if problem != "" {
		logger.Warn().Str("problem", problem).Msg("rejected chat request")
		writeError(w, http.StatusBadRequest, problem)
		return
	}

	if !s.apiKeySet {
		logger.Error().Msg("upstream API key not configured")
		writeError(w, http.StatusInternalServerError, msgConfig)
		return
	}

	logger.Info().Str("message", preview(text)).Int("history", len(history)).Msg("processing chat request")

	messages := make([]models.HistoryEntry, 0, len(history)+2)
	messages = append(messages, models.HistoryEntry{Role: "system", Content: s.systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, models.HistoryEntry{Role: string(models.RoleUser), Content: text})

	start := time.Now()
	reply, err := s.completer.Complete(r.Context(), messages)
	elapsed := time.Since(start)

	if err != nil {
		status, message, kind := upstreamFailure(err)
		s.metrics.observeUpstream(kind, elapsed)
		logger.Error().
			Err(err).
			Int("status", status).
			Int("upstream_status", apierrors.GetHTTPStatus(err)).
			Msg("upstream completion failed")
		writeError(w, status, message)
		return
	}
	s.metrics.observeUpstream("", elapsed)

	logger.Info().Str("reply", preview(reply)).Dur("upstream", elapsed).Msg("generated response")

	writeJSON(w, http.StatusOK, models.ChatResponse{
		Reply:     reply,
		Timestamp: models.Timestamp(s.now()),
		Model:     s.completer.Model(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Service:   models.ServiceName,
		Version:   models.ServiceVersion,
		Timestamp: models.Timestamp(s.now()),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, msgNotFound)
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, msgNotAllowed)
}
