package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"

	apierrors "github.com/siskocapital/finking/internal/errors"
	"github.com/siskocapital/finking/internal/models"
)

// Completer produces a single assistant reply for a conversation
type Completer interface {
	Complete(ctx context.Context, messages []models.HistoryEntry) (string, error)
	Model() string
}

// CompletionClient calls an OpenAI-compatible chat completions endpoint
type CompletionClient struct {
	httpClient HTTPDoer
	endpoint   string
	apiKey     string
	model      string
	timeout    time.Duration
}

// Ensure CompletionClient implements Completer
var _ Completer = (*CompletionClient)(nil)

// CompletionOption configures a CompletionClient
type CompletionOption func(*CompletionClient)

// WithCompletionEndpoint overrides the completions URL
func WithCompletionEndpoint(endpoint string) CompletionOption {
	return func(c *CompletionClient) {
		c.endpoint = endpoint
	}
}

// WithCompletionModel sets the model name sent upstream
func WithCompletionModel(model string) CompletionOption {
	return func(c *CompletionClient) {
		c.model = model
	}
}

// WithCompletionTimeout bounds each upstream call
func WithCompletionTimeout(timeout time.Duration) CompletionOption {
	return func(c *CompletionClient) {
		c.timeout = timeout
	}
}

// WithCompletionHTTPClient replaces the transport (used by tests)
func WithCompletionHTTPClient(doer HTTPDoer) CompletionOption {
	return func(c *CompletionClient) {
		c.httpClient = doer
	}
}

// NewCompletionClient creates a client for the upstream completions API
func NewCompletionClient(apiKey string, opts ...CompletionOption) (*CompletionClient, error) {
	client := &CompletionClient{
		endpoint: models.UpstreamEndpoint,
		apiKey:   apiKey,
		model:    models.UpstreamModel,
		timeout:  30 * time.Second,
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.httpClient == nil {
		httpClient, err := newTLSClient(client.timeout)
		if err != nil {
			return nil, err
		}
		client.httpClient = httpClient
	}

	return client, nil
}

// Model returns the upstream model name
func (c *CompletionClient) Model() string {
	return c.model
}

// completionMessage is one entry of the upstream "messages" array
type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// completionRequest is the upstream request body
type completionRequest struct {
	Model            string              `json:"model"`
	Messages         []completionMessage `json:"messages"`
	Temperature      float64             `json:"temperature"`
	MaxTokens        int                 `json:"max_tokens"`
	TopP             float64             `json:"top_p"`
	FrequencyPenalty float64             `json:"frequency_penalty"`
	PresencePenalty  float64             `json:"presence_penalty"`
}

// buildCompletionPayload serialises the conversation with the fixed sampling parameters
func buildCompletionPayload(model string, messages []models.HistoryEntry) (string, error) {
	msgs := make([]completionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, completionMessage{Role: m.Role, Content: m.Content})
	}

	payload, err := json.Marshal(completionRequest{
		Model:            model,
		Messages:         msgs,
		Temperature:      models.Temperature,
		MaxTokens:        models.MaxTokens,
		TopP:             models.TopP,
		FrequencyPenalty: models.FrequencyPenalty,
		PresencePenalty:  models.PresencePenalty,
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// Complete sends the conversation upstream and returns the first choice's content
func (c *CompletionClient) Complete(ctx context.Context, messages []models.HistoryEntry) (string, error) {
	if c.apiKey == "" {
		return "", apierrors.ErrMissingAPIKey
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages to complete")
	}

	payload, err := buildCompletionPayload(c.model, messages)
	if err != nil {
		return "", fmt.Errorf("failed to build payload: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequest(http.MethodPost, c.endpoint, strings.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError("completion", c.endpoint, err)
	}
	defer func() {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		message := gjson.GetBytes(errorBody, PathUpstreamError).String()

		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return "", apierrors.NewAuthError(message)
		case http.StatusTooManyRequests:
			return "", apierrors.NewRateLimitError(message)
		default:
			return "", apierrors.NewAPIErrorWithBody(resp.StatusCode, c.endpoint, "completion failed", string(errorBody))
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyTransportError("read completion", c.endpoint, err)
	}

	return parseCompletion(body)
}

// parseCompletion extracts the reply text from an upstream response
func parseCompletion(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", apierrors.NewParseError("response is not valid JSON", "")
	}

	choices := gjson.GetBytes(body, PathChoices)
	if !choices.IsArray() || len(choices.Array()) == 0 {
		return "", apierrors.NewParseError("no choices in response", PathChoices)
	}

	content := gjson.GetBytes(body, PathChoiceContent)
	if !content.Exists() {
		return "", apierrors.NewParseError("choice has no message content", PathChoiceContent)
	}
	return content.String(), nil
}
