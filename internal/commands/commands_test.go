package commands

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/siskocapital/finking/internal/api"
	"github.com/siskocapital/finking/internal/chat"
	"github.com/siskocapital/finking/internal/config"
	apierrors "github.com/siskocapital/finking/internal/errors"
	"github.com/siskocapital/finking/internal/models"
	"github.com/siskocapital/finking/internal/server"
	"github.com/siskocapital/finking/internal/tui"
)

type testEnv struct {
	deps     *Dependencies
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
	endpoint *api.MockChatEndpoint
	home     string
	copied   []string
	urls     []string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	env := &testEnv{
		stdout:   &bytes.Buffer{},
		stderr:   &bytes.Buffer{},
		endpoint: &api.MockChatEndpoint{SendChatVal: []byte(`{"reply":"Diversify."}`)},
		home:     home,
	}
	env.deps = &Dependencies{
		Stdin:      strings.NewReader(""),
		Stdout:     env.stdout,
		Stderr:     env.stderr,
		IsTerminal: func() bool { return false },
		StdinPiped: func() bool { return false },
		TermWidth:  func() int { return 80 },
		NewEndpoint: func(url string) (api.ChatEndpoint, error) {
			env.urls = append(env.urls, url)
			return env.endpoint, nil
		},
		NewCompleter: func(apiKey string, opts ...api.CompletionOption) (api.Completer, error) {
			return &api.MockCompleter{CompleteVal: "unused"}, nil
		},
		RunChat: func(session tui.ChatSession, opts tui.Options) error {
			return errors.New("unexpected RunChat")
		},
		Serve: func(ctx context.Context, srv *server.Server, addr string) error {
			return errors.New("unexpected Serve")
		},
		Copy: func(text string) error {
			env.copied = append(env.copied, text)
			return nil
		},
	}
	return env
}

func (e *testEnv) run(args ...string) error {
	cmd := NewRootCmd(e.deps)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestRootCmd_Version(t *testing.T) {
	env := newTestEnv(t)
	if err := env.run("-v"); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.HasPrefix(env.stdout.String(), "finking "+Version) {
		t.Errorf("stdout = %q", env.stdout.String())
	}
}

func TestRootCmd_NoInputShowsHelp(t *testing.T) {
	env := newTestEnv(t)
	if err := env.run(); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(env.stdout.String(), "Usage:") {
		t.Errorf("expected help output, got %q", env.stdout.String())
	}
	if len(env.endpoint.Calls()) != 0 {
		t.Error("no request expected without input")
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd(newTestEnv(t).deps)
	want := []string{"chat", "serve", "health", "config"}
	for _, name := range want {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestQuery_RawOutput(t *testing.T) {
	env := newTestEnv(t)
	if err := env.run("  Should I buy index funds?  "); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if got := env.stdout.String(); got != "Diversify.\n" {
		t.Errorf("stdout = %q, want only the reply", got)
	}

	calls := env.endpoint.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 request, got %d", len(calls))
	}
	if calls[0].Message != "Should I buy index funds?" {
		t.Errorf("Message = %q", calls[0].Message)
	}
	if len(calls[0].History) != 1 || calls[0].History[0].Content != models.WelcomeMessage {
		t.Errorf("History = %+v, want the welcome message only", calls[0].History)
	}
	if env.urls[0] != models.DefaultEndpoint {
		t.Errorf("endpoint = %q", env.urls[0])
	}
}

func TestQuery_InputSources(t *testing.T) {
	t.Run("stdin", func(t *testing.T) {
		env := newTestEnv(t)
		env.deps.StdinPiped = func() bool { return true }
		env.deps.Stdin = strings.NewReader("from stdin\n")

		if err := env.run(); err != nil {
			t.Fatalf("run() error = %v", err)
		}
		if got := env.endpoint.Calls()[0].Message; got != "from stdin" {
			t.Errorf("Message = %q", got)
		}
	})

	t.Run("empty stdin falls back to argument", func(t *testing.T) {
		env := newTestEnv(t)
		env.deps.StdinPiped = func() bool { return true }

		if err := env.run("from arg"); err != nil {
			t.Fatalf("run() error = %v", err)
		}
		if got := env.endpoint.Calls()[0].Message; got != "from arg" {
			t.Errorf("Message = %q", got)
		}
	})

	t.Run("file", func(t *testing.T) {
		env := newTestEnv(t)
		path := filepath.Join(t.TempDir(), "question.md")
		if err := os.WriteFile(path, []byte("from file"), 0o644); err != nil {
			t.Fatal(err)
		}

		if err := env.run("-f", path, "ignored"); err != nil {
			t.Fatalf("run() error = %v", err)
		}
		if got := env.endpoint.Calls()[0].Message; got != "from file" {
			t.Errorf("Message = %q", got)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.run("-f", filepath.Join(t.TempDir(), "nope.md"))
		if err == nil || !strings.Contains(err.Error(), "failed to read file") {
			t.Errorf("error = %v", err)
		}
	})
}

func TestQuery_EmptyPrompt(t *testing.T) {
	env := newTestEnv(t)
	err := env.run("   ")
	if err == nil || !strings.Contains(err.Error(), "prompt cannot be empty") {
		t.Errorf("error = %v", err)
	}
	if len(env.endpoint.Calls()) != 0 {
		t.Error("no request expected for empty prompt")
	}
}

func TestQuery_OutputFile(t *testing.T) {
	env := newTestEnv(t)
	out := filepath.Join(t.TempDir(), "reply.md")

	if err := env.run("question", "-o", out); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "Diversify." {
		t.Errorf("file = %q", data)
	}
	if env.stdout.Len() != 0 {
		t.Errorf("stdout should be empty, got %q", env.stdout.String())
	}
}

func TestQuery_Failure(t *testing.T) {
	env := newTestEnv(t)
	env.endpoint.SendChatVal = nil
	env.endpoint.SendChatErr = apierrors.NewNetworkError("chat request", errors.New("dial tcp 127.0.0.1:5000: connection refused"))

	err := env.run("question")
	if !errors.Is(err, errQueryFailed) {
		t.Fatalf("error = %v, want errQueryFailed", err)
	}
	if strings.Contains(err.Error(), "connection refused") {
		t.Error("raw cause leaked into the returned error")
	}
	if !strings.Contains(env.stderr.String(), models.ConnectivityNotice) {
		t.Errorf("stderr = %q, want the connectivity notice", env.stderr.String())
	}
	if strings.Contains(env.stderr.String(), "connection refused") {
		t.Error("raw cause leaked to stderr")
	}
	if env.stdout.Len() != 0 {
		t.Errorf("stdout should be empty, got %q", env.stdout.String())
	}

	logData, err := os.ReadFile(filepath.Join(env.home, ".finking", "finking.log"))
	if err != nil {
		t.Fatalf("log file: %v", err)
	}
	if !strings.Contains(string(logData), "connection refused") {
		t.Errorf("log should carry the cause, got %q", logData)
	}
}

func TestQuery_FallbackReplyIsNotFailure(t *testing.T) {
	env := newTestEnv(t)
	env.endpoint.SendChatVal = []byte(`{"status":"ok"}`)

	if err := env.run("question"); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if got := env.stdout.String(); got != models.FallbackReply+"\n" {
		t.Errorf("stdout = %q", got)
	}
}

func TestQuery_SanitizesReply(t *testing.T) {
	env := newTestEnv(t)
	env.endpoint.SendChatVal = []byte(`{"reply":"\u001b[31mred\u001b[0m alert"}`)

	if err := env.run("question"); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if got := env.stdout.String(); got != "red alert\n" {
		t.Errorf("stdout = %q", got)
	}
}

func TestQuery_Decorated(t *testing.T) {
	env := newTestEnv(t)
	env.deps.IsTerminal = func() bool { return true }
	t.Setenv("FINKING_COPY_TO_CLIPBOARD", "true")

	if err := env.run("question", "--verbose"); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	out := env.stdout.String()
	if !strings.Contains(out, "FinKing") || !strings.Contains(out, "Diversify.") {
		t.Errorf("stdout = %q", out)
	}
	if strings.Contains(out, models.WelcomeMessage) {
		t.Error("welcome message should not be printed")
	}
	if len(env.copied) != 1 || env.copied[0] != "Diversify." {
		t.Errorf("copied = %v", env.copied)
	}
	if !strings.Contains(env.stderr.String(), "[verbose] Request took") {
		t.Errorf("stderr = %q", env.stderr.String())
	}
}

func TestQuery_EndpointFlag(t *testing.T) {
	env := newTestEnv(t)
	if err := env.run("question", "--endpoint", "http://10.1.2.3:8080/"); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if env.urls[0] != "http://10.1.2.3:8080" {
		t.Errorf("endpoint = %q", env.urls[0])
	}

	err := env.run("question", "--endpoint", "localhost:5000")
	if !apierrors.IsConfigError(err) {
		t.Errorf("error = %v, want ConfigError", err)
	}
}

func TestChatCmd(t *testing.T) {
	env := newTestEnv(t)
	var gotOpts tui.Options
	var gotSession tui.ChatSession
	env.deps.RunChat = func(session tui.ChatSession, opts tui.Options) error {
		gotSession = session
		gotOpts = opts
		return nil
	}

	if err := env.run("chat", "--endpoint", "http://chat.internal:5000", "--markdown"); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if _, ok := gotSession.(*chat.Session); !ok {
		t.Fatalf("session = %T, want *chat.Session", gotSession)
	}
	if gotOpts.Endpoint != "http://chat.internal:5000" {
		t.Errorf("Endpoint = %q", gotOpts.Endpoint)
	}
	if !gotOpts.Markdown {
		t.Error("expected markdown enabled by flag")
	}
	if gotOpts.Copy == nil {
		t.Error("expected clipboard hook")
	}
	if env.urls[0] != "http://chat.internal:5000" {
		t.Errorf("endpoint = %q", env.urls[0])
	}
}

func TestChatCmd_RejectsArgs(t *testing.T) {
	env := newTestEnv(t)
	if err := env.run("chat", "extra"); err == nil {
		t.Error("expected error for positional argument")
	}
}

func TestHealthCmd(t *testing.T) {
	env := newTestEnv(t)
	env.endpoint.HealthVal = &models.HealthResponse{
		Status:    "healthy",
		Service:   models.ServiceName,
		Version:   models.ServiceVersion,
		Timestamp: "2025-03-14T09:26:53.589000Z",
	}

	if err := env.run("health"); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	out := env.stdout.String()
	if !strings.Contains(out, "FinKing AI API 1.0.0 is healthy") {
		t.Errorf("stdout = %q", out)
	}
	if !strings.Contains(out, models.DefaultEndpoint) {
		t.Errorf("stdout should name the endpoint, got %q", out)
	}
}

func TestHealthCmd_Failure(t *testing.T) {
	env := newTestEnv(t)
	env.endpoint.HealthErr = apierrors.NewAPIError(503, "/api/health", "health check failed")

	err := env.run("health")
	if err == nil || !strings.Contains(err.Error(), "health check failed for") {
		t.Fatalf("error = %v", err)
	}
	if apierrors.GetHTTPStatus(err) != 503 {
		t.Errorf("status = %d", apierrors.GetHTTPStatus(err))
	}
}

func TestConfigCmd(t *testing.T) {
	env := newTestEnv(t)

	if err := env.run("config", "init"); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	path := filepath.Join(env.home, ".finking", "config.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	if err := env.run("config", "init"); err == nil {
		t.Error("expected error when config exists")
	}
	if err := env.run("config", "init", "--force"); err != nil {
		t.Errorf("config init --force error = %v", err)
	}

	if err := env.run("config", "set", "markdown.style", "light"); err != nil {
		t.Fatalf("config set error = %v", err)
	}
	cfg, err := config.LoadFileConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Markdown.Style != "light" {
		t.Errorf("Markdown.Style = %q", cfg.Markdown.Style)
	}

	if err := env.run("config", "set", "model", "x"); !apierrors.IsConfigError(err) {
		t.Errorf("unknown key error = %v", err)
	}

	env.stdout.Reset()
	if err := env.run("config"); err != nil {
		t.Fatalf("config error = %v", err)
	}
	if !strings.Contains(env.stdout.String(), `"style": "light"`) {
		t.Errorf("stdout = %q", env.stdout.String())
	}

	env.stdout.Reset()
	if err := env.run("config", "path"); err != nil {
		t.Fatalf("config path error = %v", err)
	}
	if !strings.Contains(env.stdout.String(), path) {
		t.Errorf("stdout = %q", env.stdout.String())
	}
}

func TestConfigSet_DoesNotPersistEnv(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("FINKING_ENDPOINT", "http://from-env:1")

	if err := env.run("config", "set", "verbose", "true"); err != nil {
		t.Fatalf("config set error = %v", err)
	}
	cfg, err := config.LoadFileConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Endpoint != models.DefaultEndpoint {
		t.Errorf("Endpoint = %q, env value was written to the file", cfg.Endpoint)
	}
	if !cfg.Verbose {
		t.Error("expected verbose saved")
	}
}

func TestServeCmd(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("DEEPSEEK_API_KEY", " sk-test ")
	t.Setenv("FINKING_HOST", "127.0.0.1")
	t.Setenv("PORT", "6001")

	var gotKey, gotAddr string
	completer := &api.MockCompleter{CompleteVal: "Stay invested."}
	env.deps.NewCompleter = func(apiKey string, opts ...api.CompletionOption) (api.Completer, error) {
		gotKey = apiKey
		return completer, nil
	}
	var srv *server.Server
	env.deps.Serve = func(ctx context.Context, s *server.Server, addr string) error {
		srv = s
		gotAddr = addr
		return nil
	}

	if err := env.run("serve", "--env-file", filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("serve error = %v", err)
	}
	if gotKey != "sk-test" {
		t.Errorf("api key = %q", gotKey)
	}
	if gotAddr != "127.0.0.1:6001" {
		t.Errorf("addr = %q", gotAddr)
	}
	if strings.Contains(env.stderr.String(), "DEEPSEEK_API_KEY not set") {
		t.Error("unexpected missing key warning")
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, models.PathChat, strings.NewReader(`{"message":"hi"}`))
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Stay invested.") {
		t.Errorf("chat = %d %s", rec.Code, rec.Body.String())
	}
	if completer.LastMessages[0].Content != server.DefaultSystemPrompt {
		t.Error("expected the built-in system prompt")
	}
}

func TestServeCmd_MissingKey(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("DEEPSEEK_API_KEY", "")

	var srv *server.Server
	env.deps.Serve = func(ctx context.Context, s *server.Server, addr string) error {
		srv = s
		return nil
	}

	if err := env.run("serve", "--env-file", filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("serve error = %v", err)
	}
	if !strings.Contains(env.stderr.String(), "DEEPSEEK_API_KEY not set") {
		t.Errorf("stderr = %q, want a startup warning", env.stderr.String())
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, models.PathChat, strings.NewReader(`{"message":"hi"}`))
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestServeCmd_SystemPromptFile(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	promptFile := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(promptFile, []byte("Answer in one line.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FINKING_SYSTEM_PROMPT_FILE", promptFile)

	completer := &api.MockCompleter{CompleteVal: "ok"}
	env.deps.NewCompleter = func(string, ...api.CompletionOption) (api.Completer, error) {
		return completer, nil
	}
	var srv *server.Server
	env.deps.Serve = func(ctx context.Context, s *server.Server, addr string) error {
		srv = s
		return nil
	}

	if err := env.run("serve", "--env-file", filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("serve error = %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, models.PathChat, strings.NewReader(`{"message":"hi"}`)))
	if completer.LastMessages[0].Content != "Answer in one line." {
		t.Errorf("system prompt = %q", completer.LastMessages[0].Content)
	}
}

func TestFormatErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{"api error", apierrors.NewAPIError(502, "/api/chat", "chat request failed"), []string{"HTTP Status: 502"}},
		{"network", apierrors.NewNetworkError("chat request", errors.New("refused")), []string{"finking serve"}},
		{"timeout", apierrors.NewTimeoutError("chat request"), []string{"timed out"}},
		{"config", apierrors.NewConfigError("endpoint", "must be an http(s) URL"), []string{"finking config"}},
		{"query failed", errQueryFailed, []string{"finking health"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := formatErrorMessage(tt.err, "Error")
			if !strings.Contains(out, "Error: ") {
				t.Errorf("missing label in %q", out)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("missing %q in %q", w, out)
				}
			}
		})
	}

	if got := formatErrorMessage(nil, "Error"); got != "" {
		t.Errorf("nil error = %q", got)
	}
}

func TestSpinnerLifecycle(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner(&buf, "Asking FinKing")
	s.start()
	s.stopWithSuccess("Done")
	// A second stop must not panic
	s.stopWithError()

	if !strings.Contains(buf.String(), "Done") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestBubbleWidth(t *testing.T) {
	deps := &Dependencies{}
	for _, tt := range []struct{ term, want int }{{20, 40}, {84, 80}, {300, 120}} {
		deps.TermWidth = func() int { return tt.term }
		if got := bubbleWidth(deps); got != tt.want {
			t.Errorf("bubbleWidth(%d) = %d, want %d", tt.term, got, tt.want)
		}
	}
}
