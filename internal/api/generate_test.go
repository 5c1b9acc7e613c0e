package api

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	apierrors "github.com/siskocapital/finking/internal/errors"
	"github.com/siskocapital/finking/internal/models"
)

func newTestClient(t *testing.T, doer *fakeDoer) *Client {
	t.Helper()
	client, err := NewClient(WithEndpoint("http://finking.test"), WithHTTPClient(doer))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestSendChat_Success(t *testing.T) {
	doer := &fakeDoer{status: 200, body: `{"reply":"Buy and hold.","model":"deepseek-chat"}`}
	client := newTestClient(t, doer)

	body, err := client.SendChat(context.Background(), models.ChatRequest{
		Message: "Should I trade daily?",
		History: []models.HistoryEntry{{Role: "assistant", Content: models.WelcomeMessage}},
	})
	if err != nil {
		t.Fatalf("SendChat() error = %v", err)
	}
	if gjson.GetBytes(body, "reply").String() != "Buy and hold." {
		t.Errorf("SendChat() body = %s", body)
	}

	req := doer.lastRequest()
	if req.Method != "POST" {
		t.Errorf("method = %s, want POST", req.Method)
	}
	if req.URL.String() != "http://finking.test/api/chat" {
		t.Errorf("url = %s", req.URL.String())
	}
	if req.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %s", req.Header.Get("Content-Type"))
	}

	sent := doer.lastBody()
	if gjson.Get(sent, "message").String() != "Should I trade daily?" {
		t.Errorf("payload message = %s", sent)
	}
	if gjson.Get(sent, "history.#").Int() != 1 {
		t.Errorf("payload history = %s", sent)
	}
	if gjson.Get(sent, "history.0.role").String() != "assistant" {
		t.Errorf("payload history role = %s", sent)
	}
}

func TestSendChat_NilHistoryEncodesAsArray(t *testing.T) {
	doer := &fakeDoer{status: 200, body: `{}`}
	client := newTestClient(t, doer)

	if _, err := client.SendChat(context.Background(), models.ChatRequest{Message: "hi"}); err != nil {
		t.Fatalf("SendChat() error = %v", err)
	}

	history := gjson.Get(doer.lastBody(), "history")
	if !history.IsArray() {
		t.Errorf("history should encode as an array, got %s", history.Raw)
	}
}

func TestSendChat_NonSuccessStatus(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{"server error with backend message", 503, `{"error":"API service unavailable. Please try again later."}`, "API service unavailable. Please try again later."},
		{"bad request", 400, `{"error":"Message cannot be empty."}`, "Message cannot be empty."},
		{"non json body", 502, `<html>bad gateway</html>`, "chat request failed"},
		{"redirect is not success", 302, ``, "chat request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, &fakeDoer{status: tt.status, body: tt.body})

			_, err := client.SendChat(context.Background(), models.ChatRequest{Message: "hi"})
			if err == nil {
				t.Fatal("SendChat() expected error")
			}

			var apiErr *apierrors.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %T", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.wantMessage)
			}
		})
	}
}

func TestSendChat_TransportErrors(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		client := newTestClient(t, &fakeDoer{err: errors.New("dial tcp: connection refused")})

		_, err := client.SendChat(context.Background(), models.ChatRequest{Message: "hi"})
		if !apierrors.IsNetworkError(err) {
			t.Errorf("expected network error, got %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		urlErr := &url.Error{Op: "Post", URL: "http://finking.test/api/chat", Err: timeoutErr{}}
		client := newTestClient(t, &fakeDoer{err: urlErr})

		_, err := client.SendChat(context.Background(), models.ChatRequest{Message: "hi"})
		if !apierrors.IsTimeoutError(err) {
			t.Errorf("expected timeout error, got %v", err)
		}
	})

	t.Run("deadline exceeded", func(t *testing.T) {
		client := newTestClient(t, &fakeDoer{err: context.DeadlineExceeded})

		_, err := client.SendChat(context.Background(), models.ChatRequest{Message: "hi"})
		if !apierrors.IsTimeoutError(err) {
			t.Errorf("expected timeout error, got %v", err)
		}
	})
}

func TestSendChat_Closed(t *testing.T) {
	doer := &fakeDoer{status: 200, body: `{}`}
	client := newTestClient(t, doer)
	client.Close()

	if _, err := client.SendChat(context.Background(), models.ChatRequest{Message: "hi"}); err == nil {
		t.Error("SendChat() on closed client should fail")
	}
	if doer.lastRequest() != nil {
		t.Error("closed client must not issue requests")
	}
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		doer := &fakeDoer{status: 200, body: `{"status":"healthy","service":"FinKing AI API","version":"1.0.0","timestamp":"2025-01-01T00:00:00.000000Z"}`}
		client := newTestClient(t, doer)

		health, err := client.Health(context.Background())
		if err != nil {
			t.Fatalf("Health() error = %v", err)
		}
		if health.Status != "healthy" || health.Service != models.ServiceName {
			t.Errorf("Health() = %+v", health)
		}
		if !strings.HasSuffix(doer.lastRequest().URL.Path, "/api/health") {
			t.Errorf("path = %s", doer.lastRequest().URL.Path)
		}
	})

	t.Run("missing status", func(t *testing.T) {
		client := newTestClient(t, &fakeDoer{status: 200, body: `{"ok":true}`})
		if _, err := client.Health(context.Background()); !errors.Is(err, apierrors.ErrInvalidResponse) {
			t.Errorf("expected parse error, got %v", err)
		}
	})

	t.Run("server down", func(t *testing.T) {
		client := newTestClient(t, &fakeDoer{status: 500, body: `{"error":"Internal server error. Please try again later."}`})
		_, err := client.Health(context.Background())
		if apierrors.GetHTTPStatus(err) != 500 {
			t.Errorf("expected status 500, got %v", err)
		}
	})
}
