package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hyperjump/tanya/internal/cli"
	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/llm"
	"github.com/hyperjump/tanya/internal/storage"
	"github.com/hyperjump/tanya/internal/vector"
	"github.com/spf13/cobra"
)

// statusConfigResponse holds configuration info returned by status.
type statusConfigResponse struct {
	CorpusDirectory  string `json:"corpus_directory"`
	IndexType        string `json:"index_type"`
	RetrievalMode    string `json:"retrieval_mode"`
	TopK             int    `json:"top_k"`
	EmbeddingBackend string `json:"embedding_backend"`
	EmbeddingModel   string `json:"embedding_model,omitempty"`
	LLMModel         string `json:"llm_model"`
	ChunkSize        int    `json:"chunk_size"`
	ChunkOverlap     int    `json:"chunk_overlap"`
	Refresh          string `json:"refresh"`
	DatabasePath     string `json:"database_path"`
	IndexPath        string `json:"index_path"`
}

// pingTimeout bounds each backend reachability check.
const pingTimeout = 5 * time.Second

// backendStatus reports whether a model backend answered a ping.
type backendStatus struct {
	Backend   string `json:"backend"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

func pingBackend(ctx context.Context, backend string, ping func(context.Context) error) backendStatus {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	st := backendStatus{Backend: backend, Reachable: true}
	if err := ping(ctx); err != nil {
		st.Reachable = false
		st.Error = err.Error()
	}
	return st
}

type statusResponse struct {
	ProcessedSources int64                 `json:"processed_sources"`
	IndexExists      bool                  `json:"index_exists"`
	IndexSize        int                   `json:"index_size"`
	DiskUsageBytes   int64                 `json:"disk_usage_bytes"`
	DiskUsage        []storage.PathUsage   `json:"disk_usage,omitempty"`
	FAISSAvailable   bool                  `json:"faiss_available"`
	Embedding        backendStatus         `json:"embedding"`
	LLM              backendStatus         `json:"llm"`
	Config           *statusConfigResponse `json:"config"`
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show ingestion and index status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := initializeComponents(opts)
			if err != nil {
				return err
			}
			defer c.Close()

			count, err := c.Ledger.Count(cmd.Context())
			if err != nil {
				return fmt.Errorf("count processed sources: %w", err)
			}
			exists, size, err := c.Manager.Stats()
			if err != nil {
				return fmt.Errorf("read index: %w", err)
			}
			cfg := c.Config
			usage, total, err := storage.DiskUsage(cfg.Storage.DatabasePath, cfg.Storage.IndexPath, cfg.Storage.SessionsPath)
			if err != nil {
				return fmt.Errorf("disk usage: %w", err)
			}
			status := statusResponse{
				ProcessedSources: count,
				IndexExists:      exists,
				IndexSize:        size,
				DiskUsageBytes:   total,
				DiskUsage:        usage,
				FAISSAvailable:   vector.IsFAISSAvailable(),
				Embedding: pingBackend(cmd.Context(), cfg.Embedding.Backend, func(ctx context.Context) error {
					return embedding.Ping(ctx, c.Embedder)
				}),
				LLM: pingBackend(cmd.Context(), cfg.LLM.Backend, func(ctx context.Context) error {
					return llm.Ping(ctx, c.Model)
				}),
				Config: &statusConfigResponse{
					CorpusDirectory:  cfg.Corpus.Directory,
					IndexType:        cfg.Index.Type,
					RetrievalMode:    cfg.Index.Mode,
					TopK:             cfg.Index.TopK,
					EmbeddingBackend: cfg.Embedding.Backend,
					EmbeddingModel:   cfg.Embedding.Model,
					LLMModel:         cfg.LLM.Model,
					ChunkSize:        cfg.Chunking.Size,
					ChunkOverlap:     cfg.Chunking.Overlap,
					Refresh:          cfg.Pipeline.Refresh,
					DatabasePath:     cfg.Storage.DatabasePath,
					IndexPath:        cfg.Storage.IndexPath,
				},
			}
			return writeStatus(cmd.OutOrStdout(), &status, c.Format)
		},
	}
}

func writeStatus(w io.Writer, status *statusResponse, format cli.OutputFormat) error {
	if format == cli.OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}
	fmt.Fprintf(w, "processed_sources:  %d   # sources recorded in the ledger\n", status.ProcessedSources)
	fmt.Fprintf(w, "index_exists:       %t\n", status.IndexExists)
	fmt.Fprintf(w, "index_size:         %d   # chunks in the vector index\n", status.IndexSize)
	fmt.Fprintf(w, "disk_usage_bytes:   %d   # ledger + index + sessions on disk\n", status.DiskUsageBytes)
	fmt.Fprintf(w, "faiss_available:    %t\n", status.FAISSAvailable)
	writeBackendStatus(w, "embedding_backend: ", status.Embedding)
	writeBackendStatus(w, "llm_backend:       ", status.LLM)
	if cfg := status.Config; cfg != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "corpus_directory:   %s\n", cfg.CorpusDirectory)
		fmt.Fprintf(w, "index_type:         %s\n", cfg.IndexType)
		fmt.Fprintf(w, "retrieval_mode:     %s (top_k %d)\n", cfg.RetrievalMode, cfg.TopK)
		fmt.Fprintf(w, "embedding:          %s %s\n", cfg.EmbeddingBackend, cfg.EmbeddingModel)
		fmt.Fprintf(w, "llm_model:          %s\n", cfg.LLMModel)
		fmt.Fprintf(w, "chunk_size:         %d\n", cfg.ChunkSize)
		fmt.Fprintf(w, "chunk_overlap:      %d\n", cfg.ChunkOverlap)
		fmt.Fprintf(w, "refresh:            %s\n", cfg.Refresh)
		fmt.Fprintf(w, "database_path:      %s\n", cfg.DatabasePath)
		fmt.Fprintf(w, "index_path:         %s\n", cfg.IndexPath)
	}
	return nil
}

func writeBackendStatus(w io.Writer, label string, st backendStatus) {
	if st.Reachable {
		fmt.Fprintf(w, "%s %s reachable\n", label, st.Backend)
		return
	}
	fmt.Fprintf(w, "%s %s unreachable (%s)\n", label, st.Backend, st.Error)
}
