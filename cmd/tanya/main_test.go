package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/tanya/internal/cli"
	"github.com/hyperjump/tanya/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
corpus:
  directory: "./documents"
storage:
  database_path: "./data/tanya.db"
  index_path: "./data/vector_db"
  sessions_path: "./data/sessions"
embedding:
  backend: mock
  dimensions: 32
llm:
  backend: mock
`

// setupWorkspace writes a config using the offline backends and a one-file corpus.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(testConfig), 0600))
	docs := filepath.Join(dir, "documents")
	require.NoError(t, os.MkdirAll(docs, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "hours.txt"),
		[]byte("The office is open from 9 to 5 on weekdays. Registration closes at noon on Fridays."), 0600))
	return filepath.Join(dir, "config.yaml")
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"hours"}, "hours"},
		{"multiple words", []string{"office", "hours"}, "office hours"},
		{"single quoted phrase", []string{"office hours"}, "office hours"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuery(tt.args); got != tt.expected {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_explicitPath(t *testing.T) {
	cfgPath := setupWorkspace(t)
	cfg, used, err := loadConfig(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, cfgPath, used)
	assert.Equal(t, "mock", cfg.Embedding.Backend)
	assert.Equal(t, filepath.Join(filepath.Dir(cfgPath), "documents"), cfg.Corpus.Directory)
}

func TestLoadConfig_missing(t *testing.T) {
	_, _, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestIngestCommand(t *testing.T) {
	cfgPath := setupWorkspace(t)

	out, err := execute(t, "", "ingest", "--config", cfgPath, "-o", "json")
	require.NoError(t, err)
	var report struct {
		Created    bool     `json:"created"`
		NewSources []string `json:"new_sources"`
		IndexSize  int      `json:"index_size"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.True(t, report.Created)
	assert.Equal(t, []string{"hours.txt"}, report.NewSources)
	assert.Positive(t, report.IndexSize)

	out, err = execute(t, "", "ingest", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "New sources: 0")
}

func TestAskAndEditCommands(t *testing.T) {
	cfgPath := setupWorkspace(t)

	out, err := execute(t, "", "ask", "--config", cfgPath, "--session", "s1", "-o", "json", "When", "does", "the", "office", "open?")
	require.NoError(t, err)
	var answer struct {
		SessionID string `json:"session_id"`
		Answer    string `json:"answer"`
		Sources   []any  `json:"sources"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &answer), out)
	assert.Equal(t, "s1", answer.SessionID)
	// The mock model echoes the user message.
	assert.Equal(t, "When does the office open?", answer.Answer)
	assert.NotEmpty(t, answer.Sources)

	_, err = execute(t, "", "edit", "--config", cfgPath, "--session", "s1", "When does registration close?")
	require.NoError(t, err)

	cfg, _, err := loadConfig(cfgPath)
	require.NoError(t, err)
	store, err := cli.NewSessionStore(cfg.Storage.SessionsPath)
	require.NoError(t, err)
	sess, err := store.Load("s1")
	require.NoError(t, err)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, "When does registration close?", sess.Messages[0].Text)
	assert.Equal(t, "When does registration close?", sess.Messages[1].Text)
}

func TestEditCommand_unknownSession(t *testing.T) {
	cfgPath := setupWorkspace(t)
	_, err := execute(t, "", "edit", "--config", cfgPath, "--session", "nope", "new text")
	assert.ErrorIs(t, err, cli.ErrSessionNotFound)
}

func TestEditCommand_requiresSession(t *testing.T) {
	cfgPath := setupWorkspace(t)
	_, err := execute(t, "", "edit", "--config", cfgPath, "new text")
	assert.Error(t, err)
}

func TestAskCommand_emptyCorpus(t *testing.T) {
	cfgPath := setupWorkspace(t)
	require.NoError(t, os.Remove(filepath.Join(filepath.Dir(cfgPath), "documents", "hours.txt")))
	_, err := execute(t, "", "ask", "--config", cfgPath, "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty corpus")
}

func TestChatCommand(t *testing.T) {
	cfgPath := setupWorkspace(t)
	input := "When does the office open?\n/history\n/edit Is it open on Fridays?\n/bogus\n/quit\n"
	out, err := execute(t, input, "chat", "--config", cfgPath, "--session", "c1")
	require.NoError(t, err)
	assert.Contains(t, out, "Session c1")
	assert.Contains(t, out, "user: When does the office open?")
	assert.Contains(t, out, "Is it open on Fridays?")

	out, err = execute(t, "", "sessions", "show", "c1", "--config", cfgPath, "-o", "json")
	require.NoError(t, err)
	var sess cli.Session
	require.NoError(t, json.Unmarshal([]byte(out), &sess), out)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, "Is it open on Fridays?", sess.Messages[0].Text)
}

func TestSessionsCommands(t *testing.T) {
	cfgPath := setupWorkspace(t)
	_, err := execute(t, "", "ask", "--config", cfgPath, "--session", "keep", "--topic", "hours", "office hours?")
	require.NoError(t, err)

	out, err := execute(t, "", "sessions", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "keep")
	assert.Contains(t, out, "2 turn(s)")

	out, err = execute(t, "", "sessions", "delete", "keep", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Session deleted: keep")

	out, err = execute(t, "", "sessions", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions.")
}

func TestReadLines_StopsWhenDone(t *testing.T) {
	done := make(chan struct{})
	lines, _ := readLines(strings.NewReader("first\nsecond\nthird\n"), done)
	assert.Equal(t, "first", <-lines)
	close(done)

	select {
	case _, ok := <-lines:
		for ok {
			_, ok = <-lines
		}
	case <-time.After(time.Second):
		t.Fatal("reader goroutine did not exit after done was closed")
	}
}

func TestStatusCommand(t *testing.T) {
	cfgPath := setupWorkspace(t)
	_, err := execute(t, "", "ingest", "--config", cfgPath)
	require.NoError(t, err)

	out, err := execute(t, "", "status", "--config", cfgPath, "-o", "json")
	require.NoError(t, err)
	var status statusResponse
	require.NoError(t, json.Unmarshal([]byte(out), &status), out)
	assert.Equal(t, int64(1), status.ProcessedSources)
	assert.True(t, status.IndexExists)
	assert.Positive(t, status.IndexSize)
	assert.Positive(t, status.DiskUsageBytes)
	require.NotNil(t, status.Config)
	assert.Equal(t, "memory", status.Config.IndexType)

	assert.Equal(t, vector.IsFAISSAvailable(), status.FAISSAvailable)
	assert.Equal(t, backendStatus{Backend: "mock", Reachable: true}, status.LLM)
	assert.True(t, status.Embedding.Reachable)

	out, err = execute(t, "", "status", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "processed_sources:  1")
	assert.Contains(t, out, "faiss_available:")
	assert.Contains(t, out, "llm_backend:        mock reachable")
}

func TestStatusCommand_UnreachableLLM(t *testing.T) {
	cfgPath := setupWorkspace(t)
	cfg := strings.Replace(testConfig, "llm:\n  backend: mock\n",
		"llm:\n  backend: ollama\n  base_url: \"http://127.0.0.1:1\"\n", 1)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0600))
	t.Setenv("TANYA_OLLAMA_URL", "")

	out, err := execute(t, "", "status", "--config", cfgPath, "-o", "json")
	require.NoError(t, err)
	var status statusResponse
	require.NoError(t, json.Unmarshal([]byte(out), &status), out)
	assert.False(t, status.IndexExists)
	assert.Equal(t, "ollama", status.LLM.Backend)
	assert.False(t, status.LLM.Reachable)
	assert.NotEmpty(t, status.LLM.Error)
	assert.True(t, status.Embedding.Reachable)
}

func TestUnknownOutputFormat(t *testing.T) {
	cfgPath := setupWorkspace(t)
	_, err := execute(t, "", "status", "--config", cfgPath, "-o", "yaml")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "tanya version dev\n", out)
}
