package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/tanya/internal/indexer"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/rag"
)

func sampleAnswer() *rag.Answer {
	return &rag.Answer{
		Text:            "Office hours are 9 to 5.",
		StandaloneQuery: "What are the office hours?",
		NewSources:      []string{"hours.txt"},
		Chunks: []*models.RetrievedChunk{
			{Rank: 1, Score: 0.91, Chunk: &models.Chunk{ID: "c1", Source: "hours.txt", Content: "Office hours\nare 9 to 5."}},
		},
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteAnswer_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, "s1", sampleAnswer(), OutputJSON, false); err != nil {
		t.Fatalf("WriteAnswer(json): %v", err)
	}
	var decoded answerOutput
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.SessionID != "s1" || decoded.Answer != "Office hours are 9 to 5." {
		t.Errorf("decoded = %+v", decoded)
	}
	if len(decoded.Sources) != 1 || decoded.Sources[0].Chunk.Source != "hours.txt" {
		t.Errorf("sources = %+v", decoded.Sources)
	}
}

func TestWriteAnswer_JSONNoSources(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, "", &rag.Answer{Text: "x"}, OutputJSON, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"sources": []`) {
		t.Errorf("expected empty sources array:\n%s", buf.String())
	}
}

func TestWriteAnswer_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, "s1", sampleAnswer(), OutputText, true); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Ingested 1 new source(s): hours.txt", "Office hours are 9 to 5.", "--- Sources ---", "[1] hours.txt (score 0.9100)", "Office hours are 9 to 5."} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteAnswer_textHidesSources(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, "s1", sampleAnswer(), OutputText, false); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "Sources") {
		t.Errorf("sources should be hidden:\n%s", buf.String())
	}
}

func TestWriteIngestReport(t *testing.T) {
	report := &indexer.IngestReport{
		Created:    true,
		NewSources: []string{"a.txt"},
		NewChunks:  3,
		IndexSize:  3,
		Skipped:    []*models.FileError{{Source: "b.pdf", Err: models.ErrUnsupportedFileType}},
	}
	var buf bytes.Buffer
	if err := WriteIngestReport(&buf, report, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Created a new index.", "New sources: 1 (3 chunks)", "+ a.txt", "skipped b.pdf: unsupported file type"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}

	buf.Reset()
	if err := WriteIngestReport(&buf, report, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded ingestOutput
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !decoded.Created || decoded.NewChunks != 3 || len(decoded.Skipped) != 1 || decoded.Skipped[0].Source != "b.pdf" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteIngestReport_JSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteIngestReport(&buf, &indexer.IngestReport{}, OutputJSON); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, `"new_sources": []`) || !strings.Contains(out, `"skipped": []`) {
		t.Errorf("expected empty arrays:\n%s", out)
	}
}

func TestWriteTranscriptAndSessions(t *testing.T) {
	sess := &Session{ID: "s1", Topic: "hours", Messages: models.Transcript{
		{Role: models.RoleUser, Text: "When?"},
		{Role: models.RoleAssistant, Text: "9 to 5."},
	}}
	var buf bytes.Buffer
	if err := WriteTranscript(&buf, sess, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"Session s1 (hours)", "user: When?", "assistant: 9 to 5."} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("transcript missing %q:\n%s", sub, buf.String())
		}
	}

	buf.Reset()
	if err := WriteSessions(&buf, nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No sessions.") {
		t.Errorf("got %q", buf.String())
	}

	buf.Reset()
	if err := WriteSessions(&buf, []*Session{sess}, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "s1") || !strings.Contains(buf.String(), "2 turn(s)") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteAnswer_propagatesWriterError(t *testing.T) {
	err := WriteAnswer(failingWriter{}, "s1", sampleAnswer(), OutputJSON, false)
	if err == nil {
		t.Error("expected writer error")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		maxWords int
		want     string
	}{
		{"empty", "", 3, ""},
		{"few words", "one two", 3, "one two"},
		{"exact", "one two three", 3, "one two three"},
		{"more", "one two three four", 3, "one two three..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateWords(tt.s, tt.maxWords); got != tt.want {
				t.Errorf("TruncateWords(%q, %d) = %q, want %q", tt.s, tt.maxWords, got, tt.want)
			}
		})
	}
}
