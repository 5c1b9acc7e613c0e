package api

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"

	"github.com/siskocapital/finking/internal/models"
)

// HTTPDoer is the subset of tls_client.HttpClient the API clients use
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ChatEndpoint is the chat backend as seen by a chat session
type ChatEndpoint interface {
	// SendChat posts one exchange and returns the raw success body.
	// Any non-2xx status is returned as an *errors.APIError.
	SendChat(ctx context.Context, req models.ChatRequest) ([]byte, error)
	Health(ctx context.Context) (*models.HealthResponse, error)
}

// Client talks to the finking chat backend
type Client struct {
	httpClient HTTPDoer
	endpoint   string
	timeout    time.Duration
	headers    map[string]string
	mu         sync.RWMutex
	closed     bool
}

// Ensure Client implements ChatEndpoint
var _ ChatEndpoint = (*Client)(nil)

// ClientOption is a function that configures the client
type ClientOption func(*Client)

// WithEndpoint sets the base URL of the chat backend
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.endpoint = strings.TrimRight(endpoint, "/")
	}
}

// WithHTTPClient replaces the transport (used by tests)
func WithHTTPClient(doer HTTPDoer) ClientOption {
	return func(c *Client) {
		c.httpClient = doer
	}
}

// WithTimeout bounds each request. Zero means the client waits for the
// transport to settle on its own.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHeader adds a header sent with every request
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// NewClient creates a new chat backend client
func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{
		endpoint: models.DefaultEndpoint,
		headers:  models.DefaultHeaders(),
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

// newTLSClient creates the default transport
func newTLSClient(timeout time.Duration) (tls_client.HttpClient, error) {
	options := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(int(timeout / time.Second)),
		tls_client.WithClientProfile(profiles.Chrome_120),
		tls_client.WithNotFollowRedirects(),
	}

	httpClient, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return httpClient, nil
}

// Endpoint returns the configured base URL
func (c *Client) Endpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoint
}

// Close marks the client as closed; later requests fail immediately
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// url joins the endpoint with an API path
func (c *Client) url(path string) string {
	return c.Endpoint() + path
}

// newRequest builds a request carrying the default headers
func (c *Client) newRequest(ctx context.Context, method, url string, body string) (*http.Request, error) {
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req = req.WithContext(ctx)

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	return req, nil
}
