package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"

	apierrors "github.com/siskocapital/finking/internal/errors"
	"github.com/siskocapital/finking/internal/models"
)

// SendChat posts a message with its prior history to the chat backend
func (c *Client) SendChat(ctx context.Context, chatReq models.ChatRequest) ([]byte, error) {
	if c.IsClosed() {
		return nil, fmt.Errorf("client is closed")
	}
	if chatReq.History == nil {
		chatReq.History = []models.HistoryEntry{}
	}

	payload, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to build payload: %w", err)
	}

	endpoint := c.url(models.PathChat)
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, string(payload))
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError("chat", endpoint, err)
	}
	defer func() {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp, endpoint, "chat request failed")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierrors.NewNetworkErrorWithEndpoint("read chat response", endpoint, err)
	}
	return body, nil
}

// Health queries the backend health endpoint
func (c *Client) Health(ctx context.Context) (*models.HealthResponse, error) {
	if c.IsClosed() {
		return nil, fmt.Errorf("client is closed")
	}

	endpoint := c.url(models.PathHealth)
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, "")
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError("health check", endpoint, err)
	}
	defer func() {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, endpoint, "health check failed")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierrors.NewNetworkErrorWithEndpoint("read health response", endpoint, err)
	}

	parsed := gjson.ParseBytes(body)
	if !parsed.IsObject() || !parsed.Get(PathHealthStatus).Exists() {
		return nil, apierrors.NewParseError("health response has no status", PathHealthStatus)
	}

	var health models.HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, apierrors.NewParseError(err.Error(), "")
	}
	return &health, nil
}

// statusError reads a bounded slice of the body and wraps it in an APIError.
// The backend's {"error": "..."} text becomes the message when present.
func statusError(resp *http.Response, endpoint, fallback string) error {
	errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	message := fallback
	if msg := gjson.GetBytes(errorBody, PathError); msg.Type == gjson.String && msg.String() != "" {
		message = msg.String()
	}
	return apierrors.NewAPIErrorWithBody(resp.StatusCode, endpoint, message, string(errorBody))
}

// timeoutError is implemented by url.Error and net.Error
type timeoutError interface {
	Timeout() bool
}

// classifyTransportError maps an error from Do into the typed errors
func classifyTransportError(operation, endpoint string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apierrors.NewTimeoutError(fmt.Sprintf("%s (%s)", operation, endpoint))
	}
	var te timeoutError
	if errors.As(err, &te) && te.Timeout() {
		return apierrors.NewTimeoutError(fmt.Sprintf("%s (%s)", operation, endpoint))
	}
	return apierrors.NewNetworkErrorWithEndpoint(operation, endpoint, err)
}
