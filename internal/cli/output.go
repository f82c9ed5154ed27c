// Package cli provides output formatting and session persistence for the tanya CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/tanya/internal/indexer"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/rag"
	"github.com/hyperjump/tanya/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// answerOutput is the JSON shape of one answered turn.
type answerOutput struct {
	SessionID       string                   `json:"session_id,omitempty"`
	Answer          string                   `json:"answer"`
	StandaloneQuery string                   `json:"standalone_query"`
	NewSources      []string                 `json:"new_sources,omitempty"`
	Sources         []*models.RetrievedChunk `json:"sources"`
}

// WriteAnswer writes an answered turn to w. showSources lists the retrieved chunks in text mode.
func WriteAnswer(w io.Writer, sessionID string, answer *rag.Answer, format OutputFormat, showSources bool) error {
	if format == OutputJSON {
		out := answerOutput{
			SessionID:       sessionID,
			Answer:          answer.Text,
			StandaloneQuery: answer.StandaloneQuery,
			NewSources:      answer.NewSources,
			Sources:         answer.Chunks,
		}
		if out.Sources == nil {
			out.Sources = []*models.RetrievedChunk{}
		}
		return writeJSON(w, out)
	}
	if len(answer.NewSources) > 0 {
		fmt.Fprintf(w, "Ingested %d new source(s): %s\n\n", len(answer.NewSources), strings.Join(answer.NewSources, ", "))
	}
	fmt.Fprintln(w, answer.Text)
	if showSources && len(answer.Chunks) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "--- Sources ---")
		for _, rc := range answer.Chunks {
			fmt.Fprintf(w, "[%d] %s (score %.4f)\n    %s\n", rc.Rank, rc.Chunk.Source, rc.Score,
				TruncateWords(strings.Join(strings.Fields(rc.Chunk.Content), " "), 24))
		}
	}
	return nil
}

// ingestOutput is the JSON shape of an ingestion report.
type ingestOutput struct {
	Created          bool          `json:"created"`
	NewSources       []string      `json:"new_sources"`
	NewChunks        int           `json:"new_chunks"`
	AlreadyProcessed int           `json:"already_processed"`
	IndexSize        int           `json:"index_size"`
	Skipped          []skippedFile `json:"skipped"`
}

type skippedFile struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// WriteIngestReport writes the outcome of an ingestion pass to w.
func WriteIngestReport(w io.Writer, report *indexer.IngestReport, format OutputFormat) error {
	if format == OutputJSON {
		out := ingestOutput{
			Created:          report.Created,
			NewSources:       report.NewSources,
			NewChunks:        report.NewChunks,
			AlreadyProcessed: report.AlreadyProcessed,
			IndexSize:        report.IndexSize,
			Skipped:          []skippedFile{},
		}
		if out.NewSources == nil {
			out.NewSources = []string{}
		}
		for _, fe := range report.Skipped {
			out.Skipped = append(out.Skipped, skippedFile{Source: fe.Source, Error: fe.Err.Error()})
		}
		return writeJSON(w, out)
	}
	if report.Created {
		fmt.Fprintln(w, "Created a new index.")
	}
	fmt.Fprintf(w, "New sources: %d (%d chunks), already processed: %d, index size: %d\n",
		len(report.NewSources), report.NewChunks, report.AlreadyProcessed, report.IndexSize)
	for _, s := range report.NewSources {
		fmt.Fprintf(w, "  + %s\n", s)
	}
	for _, fe := range report.Skipped {
		fmt.Fprintf(w, "  ! skipped %s: %v\n", fe.Source, fe.Err)
	}
	return nil
}

// WriteTranscript writes every turn of a session to w.
func WriteTranscript(w io.Writer, s *Session, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "Session %s", s.ID)
	if s.Topic != "" {
		fmt.Fprintf(w, " (%s)", s.Topic)
	}
	fmt.Fprintln(w)
	for _, turn := range s.Messages {
		fmt.Fprintf(w, "\n%s: %s\n", turn.Role, turn.Text)
	}
	return nil
}

// WriteSessions lists sessions, one per line in text mode.
func WriteSessions(w io.Writer, sessions []*Session, format OutputFormat) error {
	if format == OutputJSON {
		if sessions == nil {
			sessions = []*Session{}
		}
		return writeJSON(w, sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions.")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintf(w, "%s  %-24s  %d turn(s)\n", s.ID, utils.Truncate(s.Topic, 24), len(s.Messages))
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
