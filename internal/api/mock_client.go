package api

import (
	"context"
	"sync"

	"github.com/siskocapital/finking/internal/models"
)

// MockChatEndpoint is a mock implementation of ChatEndpoint for testing
type MockChatEndpoint struct {
	// Mock return values
	SendChatVal []byte
	SendChatErr error
	HealthVal   *models.HealthResponse
	HealthErr   error

	// SendChatFunc, when set, takes precedence over SendChatVal/SendChatErr
	SendChatFunc func(ctx context.Context, req models.ChatRequest) ([]byte, error)

	// Call recorders
	mu           sync.Mutex
	Requests     []models.ChatRequest
	HealthCalled bool
}

// Ensure MockChatEndpoint implements ChatEndpoint
var _ ChatEndpoint = (*MockChatEndpoint)(nil)

func (m *MockChatEndpoint) SendChat(ctx context.Context, req models.ChatRequest) ([]byte, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	fn := m.SendChatFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return m.SendChatVal, m.SendChatErr
}

func (m *MockChatEndpoint) Health(ctx context.Context) (*models.HealthResponse, error) {
	m.mu.Lock()
	m.HealthCalled = true
	m.mu.Unlock()
	return m.HealthVal, m.HealthErr
}

// Calls returns a copy of the recorded requests
func (m *MockChatEndpoint) Calls() []models.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ChatRequest, len(m.Requests))
	copy(out, m.Requests)
	return out
}

// MockCompleter is a mock implementation of Completer for testing
type MockCompleter struct {
	CompleteVal string
	CompleteErr error
	ModelName   string

	mu           sync.Mutex
	LastMessages []models.HistoryEntry
	CallCount    int
}

// Ensure MockCompleter implements Completer
var _ Completer = (*MockCompleter)(nil)

func (m *MockCompleter) Complete(ctx context.Context, messages []models.HistoryEntry) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount++
	m.LastMessages = append([]models.HistoryEntry(nil), messages...)
	return m.CompleteVal, m.CompleteErr
}

func (m *MockCompleter) Model() string {
	if m.ModelName == "" {
		return models.UpstreamModel
	}
	return m.ModelName
}
