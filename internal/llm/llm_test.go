package llm

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, lines []string, got *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		case "/api/chat":
		default:
			http.NotFound(w, r)
			return
		}
		if got != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, l := range lines {
			_, _ = w.Write([]byte(l + "\n"))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaModel_Stream(t *testing.T) {
	var req chatRequest
	srv := chatServer(t, []string{
		`{"message":{"role":"assistant","content":"Office "},"done":false}`,
		`{"message":{"role":"assistant","content":"hours are "},"done":false}`,
		`{"message":{"role":"assistant","content":"9 to 5."},"done":false}`,
		`{"message":{"role":"assistant","content":""},"done":true}`,
	}, &req)

	m := NewOllamaModel(OllamaConfig{BaseURL: srv.URL, Model: "qwen2.5:3b", Temperature: 0.2})
	var frags []string
	for frag, err := range m.Stream(context.Background(), Request{
		System:  "answer from context",
		History: []models.Turn{{Role: models.RoleUser, Text: "hi"}, {Role: models.RoleAssistant, Text: "hello"}},
		User:    "office hours?",
	}) {
		require.NoError(t, err)
		frags = append(frags, frag)
	}
	assert.Equal(t, []string{"Office ", "hours are ", "9 to 5."}, frags)

	assert.True(t, req.Stream)
	assert.Equal(t, "qwen2.5:3b", req.Model)
	require.Len(t, req.Messages, 4)
	assert.Equal(t, chatMessage{Role: "system", Content: "answer from context"}, req.Messages[0])
	assert.Equal(t, "assistant", req.Messages[2].Role)
	assert.Equal(t, chatMessage{Role: "user", Content: "office hours?"}, req.Messages[3])
	require.NotNil(t, req.Options)
	assert.InDelta(t, 0.2, req.Options.Temperature, 1e-9)

	require.NoError(t, m.Ping(context.Background()))
}

func TestOllamaModel_StreamErrors(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{"error line", []string{`{"message":{"content":"par"}}`, `{"error":"model crashed"}`}},
		{"truncated", []string{`{"message":{"content":"par"},"done":false}`}},
		{"bad json", []string{`not json`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := chatServer(t, tt.lines, nil)
			_, err := Collect(NewOllamaModel(OllamaConfig{BaseURL: srv.URL}).Stream(context.Background(), Request{User: "q"}))
			assert.Error(t, err)
		})
	}
}

func TestOllamaModel_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Complete(context.Background(), NewOllamaModel(OllamaConfig{BaseURL: srv.URL}), Request{User: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "model not found")
}

func TestNewOllamaModel_Defaults(t *testing.T) {
	m := NewOllamaModel(OllamaConfig{BaseURL: "http://ollama:11434/"})
	assert.Equal(t, DefaultModel, m.Name())
	assert.Equal(t, "http://ollama:11434", m.baseURL)
}

func TestMockModel(t *testing.T) {
	m := NewMockModel(func(req Request) (string, error) { return "echo: " + req.User, nil })
	var frags []string
	for frag, err := range m.Stream(context.Background(), Request{User: "where is it"}) {
		require.NoError(t, err)
		frags = append(frags, frag)
	}
	assert.Equal(t, []string{"echo: ", "where ", "is ", "it"}, frags)
	require.Len(t, m.Calls(), 1)
	assert.Equal(t, "where is it", m.Calls()[0].User)
}

func TestMockModel_StopsEarly(t *testing.T) {
	m := NewMockModel(func(Request) (string, error) { return "a b c d", nil })
	n := 0
	for range m.Stream(context.Background(), Request{}) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

// blockingModel yields one fragment and then waits for ctx.
type blockingModel struct{}

func (blockingModel) Name() string { return "blocking" }

func (blockingModel) Stream(ctx context.Context, _ Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !yield("partial ", nil) {
			return
		}
		<-ctx.Done()
		yield("", ctx.Err())
	}
}

func TestGuardedModel_Timeout(t *testing.T) {
	g := WithTimeout(blockingModel{}, 20*time.Millisecond)
	answer, err := Complete(context.Background(), g, Request{User: "q"})
	assert.Empty(t, answer)
	assert.ErrorIs(t, err, models.ErrGenerationUnavailable)
}

func TestGuardedModel_CallerCancel(t *testing.T) {
	g := WithTimeout(blockingModel{}, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)
	_, err := Complete(ctx, g, Request{User: "q"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, models.ErrGenerationUnavailable)
}

func TestGuardedModel_MapsFailure(t *testing.T) {
	g := WithTimeout(NewMockModel(func(Request) (string, error) { return "", errors.New("connection refused") }), 0)
	_, err := Complete(context.Background(), g, Request{User: "q"})
	assert.ErrorIs(t, err, models.ErrGenerationUnavailable)
	assert.Equal(t, "mock", g.Name())
}

func TestPing_ThroughGuard(t *testing.T) {
	ctx := context.Background()
	down, err := New(config.LLMConfig{Backend: "ollama", BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	require.NoError(t, err)
	assert.ErrorIs(t, Ping(ctx, down), models.ErrGenerationUnavailable)

	mock, err := New(config.LLMConfig{Backend: "mock"})
	require.NoError(t, err)
	assert.NoError(t, Ping(ctx, mock))
}

func TestNew(t *testing.T) {
	m, err := New(config.LLMConfig{Backend: "mock", Timeout: time.Second})
	require.NoError(t, err)
	got, err := Complete(context.Background(), m, Request{User: "ping"})
	require.NoError(t, err)
	assert.Equal(t, "ping", got)

	m, err = New(config.LLMConfig{Model: "llama3.2"})
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", m.Name())

	_, err = New(config.LLMConfig{Backend: "openai"})
	assert.Error(t, err)
}
