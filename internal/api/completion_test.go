package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	apierrors "github.com/siskocapital/finking/internal/errors"
	"github.com/siskocapital/finking/internal/models"
)

func newTestCompletion(t *testing.T, doer *fakeDoer, key string) *CompletionClient {
	t.Helper()
	client, err := NewCompletionClient(key,
		WithCompletionHTTPClient(doer),
		WithCompletionEndpoint("https://upstream.test/chat/completions"),
	)
	if err != nil {
		t.Fatalf("NewCompletionClient() error = %v", err)
	}
	return client
}

var testConversation = []models.HistoryEntry{
	{Role: "system", Content: "You are an analyst."},
	{Role: "user", Content: "Is gold a hedge?"},
}

func TestComplete_Success(t *testing.T) {
	doer := &fakeDoer{status: 200, body: `{"choices":[{"message":{"role":"assistant","content":"Partially."}}]}`}
	client := newTestCompletion(t, doer, "sk-test")

	reply, err := client.Complete(context.Background(), testConversation)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply != "Partially." {
		t.Errorf("Complete() = %q", reply)
	}

	req := doer.lastRequest()
	if req.Header.Get("Authorization") != "Bearer sk-test" {
		t.Errorf("Authorization = %q", req.Header.Get("Authorization"))
	}

	sent := doer.lastBody()
	checks := map[string]interface{}{
		"model":              models.UpstreamModel,
		"messages.#":         int64(2),
		"messages.0.role":    "system",
		"messages.1.content": "Is gold a hedge?",
		"temperature":        0.7,
		"max_tokens":         int64(1024),
		"top_p":              0.9,
	}
	for path, want := range checks {
		got := gjson.Get(sent, path)
		switch w := want.(type) {
		case string:
			if got.String() != w {
				t.Errorf("%s = %v, want %v", path, got.String(), w)
			}
		case int64:
			if got.Int() != w {
				t.Errorf("%s = %v, want %v", path, got.Int(), w)
			}
		case float64:
			if got.Float() != w {
				t.Errorf("%s = %v, want %v", path, got.Float(), w)
			}
		}
	}
	if !gjson.Get(sent, "frequency_penalty").Exists() || !gjson.Get(sent, "presence_penalty").Exists() {
		t.Error("penalties should always be sent")
	}
}

func TestComplete_MissingKey(t *testing.T) {
	doer := &fakeDoer{status: 200}
	client := newTestCompletion(t, doer, "")

	_, err := client.Complete(context.Background(), testConversation)
	if !errors.Is(err, apierrors.ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
	if doer.lastRequest() != nil {
		t.Error("no request should be sent without a key")
	}
}

func TestComplete_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"unauthorized", 401, `{"error":{"message":"bad key"}}`, apierrors.IsAuthError},
		{"rate limited", 429, `{"error":{"message":"slow down"}}`, apierrors.IsRateLimitError},
		{"server error", 500, `oops`, apierrors.IsAPIError},
		{"bad gateway", 502, ``, apierrors.IsAPIError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestCompletion(t, &fakeDoer{status: tt.status, body: tt.body}, "sk-test")
			_, err := client.Complete(context.Background(), testConversation)
			if !tt.check(err) {
				t.Errorf("unexpected error type %T: %v", err, err)
			}
		})
	}
}

func TestComplete_InvalidBodies(t *testing.T) {
	bodies := []string{
		`not json`,
		`{}`,
		`{"choices":[]}`,
		`{"choices":[{"message":{}}]}`,
	}

	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			client := newTestCompletion(t, &fakeDoer{status: 200, body: body}, "sk-test")
			_, err := client.Complete(context.Background(), testConversation)
			if !errors.Is(err, apierrors.ErrInvalidResponse) {
				t.Errorf("expected parse error, got %v", err)
			}
		})
	}
}

func TestComplete_TransportErrors(t *testing.T) {
	client := newTestCompletion(t, &fakeDoer{err: context.DeadlineExceeded}, "sk-test")
	if _, err := client.Complete(context.Background(), testConversation); !apierrors.IsTimeoutError(err) {
		t.Errorf("expected timeout, got %v", err)
	}

	client = newTestCompletion(t, &fakeDoer{err: errors.New("no route to host")}, "sk-test")
	if _, err := client.Complete(context.Background(), testConversation); !apierrors.IsNetworkError(err) {
		t.Errorf("expected network error, got %v", err)
	}
}

func TestCompletionClient_Options(t *testing.T) {
	client, err := NewCompletionClient("k",
		WithCompletionHTTPClient(&fakeDoer{}),
		WithCompletionModel("deepseek-reasoner"),
		WithCompletionTimeout(10*time.Second),
	)
	if err != nil {
		t.Fatalf("NewCompletionClient() error = %v", err)
	}
	if client.Model() != "deepseek-reasoner" {
		t.Errorf("Model() = %s", client.Model())
	}
	if client.timeout != 10*time.Second {
		t.Errorf("timeout = %v", client.timeout)
	}
	if client.endpoint != models.UpstreamEndpoint {
		t.Errorf("endpoint = %s", client.endpoint)
	}
}

func TestComplete_EmptyConversation(t *testing.T) {
	client := newTestCompletion(t, &fakeDoer{status: 200}, "sk-test")
	if _, err := client.Complete(context.Background(), nil); err == nil {
		t.Error("Complete() with no messages should fail")
	}
}
