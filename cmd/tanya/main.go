// Package main is the tanya CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hyperjump/tanya/internal/cli"
	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/conversation"
	"github.com/hyperjump/tanya/internal/corpus"
	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/extract"
	"github.com/hyperjump/tanya/internal/indexer"
	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/llm"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/rag"
	"github.com/hyperjump/tanya/internal/storage"
	"github.com/hyperjump/tanya/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/tanya/config.yaml"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	debug      bool
	output     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "tanya",
		Short: "Chat with a folder of documents",
		Long: `tanya answers questions grounded in a folder of .txt, .doc and .docx files.
New files are ingested automatically; earlier turns of a session are used to resolve follow-up questions.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "config file path")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "output format: text or json")

	root.AddCommand(
		newIngestCmd(opts),
		newAskCmd(opts),
		newEditCmd(opts),
		newChatCmd(opts),
		newSessionsCmd(opts),
		newStatusCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("tanya version %s\n", version)
		},
	}
}

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// Components holds initialized services.
type Components struct {
	Config   *config.Config
	Logger   *zap.Logger
	Format   cli.OutputFormat
	Ledger   *storage.SQLiteLedger
	Embedder embedding.Embedder
	Model    llm.Model
	Manager  *indexer.Manager
	Index    *rag.CorpusIndex
	Service  *conversation.Service
	Sessions *cli.SessionStore
}

// initializeComponents wires the ledger, embedder, index manager, pipeline and session store.
func initializeComponents(opts *rootOptions) (c *Components, err error) {
	format, err := cli.ParseOutputFormat(opts.output)
	if err != nil {
		return nil, err
	}
	cfg, resolvedPath, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	debugMode := cfg.Debug || opts.debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolvedPath))

	c = &Components{Config: cfg, Logger: logger, Format: format}
	defer func() {
		if err != nil {
			c.Close()
			c = nil
		}
	}()

	c.Ledger, err = storage.NewSQLiteLedger(cfg.Storage.DatabasePath)
	if err != nil {
		return c, fmt.Errorf("open ledger: %w", err)
	}
	c.Embedder, err = embedding.New(cfg.Embedding)
	if err != nil {
		return c, fmt.Errorf("create embedder: %w", err)
	}

	loader := corpus.NewLoader(extract.NewExtractor(),
		corpus.WithRecursive(cfg.Corpus.Recursive),
		corpus.WithExclude(cfg.Corpus.Exclude),
		corpus.WithLogger(logger),
	)
	chunker := indexer.NewChunker(cfg.Chunking.Size, cfg.Chunking.Overlap)
	managerOpts := []indexer.ManagerOption{
		indexer.WithLogger(logger),
		indexer.WithTopK(cfg.Index.TopK),
		indexer.WithIndexType(cfg.Index.Type),
	}
	if cfg.Index.Mode == "hybrid" {
		managerOpts = append(managerOpts, indexer.WithHybrid(cfg.Index.KeywordWeight, cfg.Index.SemanticWeight,
			&keyword.SearchOptions{SourceBoost: 2.0, PhraseBoost: 1.5}))
	}
	c.Manager, err = indexer.NewManager(c.Ledger, loader, chunker, c.Embedder, cfg.Storage.IndexPath, managerOpts...)
	if err != nil {
		return c, fmt.Errorf("create index manager: %w", err)
	}
	c.Index, err = rag.NewCorpusIndex(c.Manager, cfg.Corpus.Directory,
		rag.WithRefresh(cfg.Pipeline.Refresh),
		rag.WithWatchOptions(cfg.Corpus.Recursive),
		rag.WithIndexLogger(logger),
	)
	if err != nil {
		return c, err
	}

	c.Model, err = llm.New(cfg.LLM)
	if err != nil {
		return c, fmt.Errorf("create chat model: %w", err)
	}
	pipelineOpts := []rag.Option{
		rag.WithLogger(logger),
		rag.WithContextualizeEmptyHistory(cfg.Pipeline.ContextualizeEmptyHistory),
		rag.WithRefuseOnEmptyContext(cfg.Pipeline.RefuseOnEmptyContextOrDefault()),
	}
	if cfg.Pipeline.MaxContextTokens > 0 {
		counter, err := rag.NewTiktokenCounter()
		if err != nil {
			return c, err
		}
		pipelineOpts = append(pipelineOpts, rag.WithContextBudget(counter, cfg.Pipeline.MaxContextTokens))
	}
	c.Service = conversation.NewService(rag.NewPipeline(c.Index, c.Model, pipelineOpts...),
		conversation.WithLogger(logger))

	c.Sessions, err = cli.NewSessionStore(cfg.Storage.SessionsPath)
	if err != nil {
		return c, err
	}
	return c, nil
}

// Close releases every component that holds resources.
func (c *Components) Close() {
	if c.Index != nil {
		c.Index.Close()
	}
	if c.Manager != nil {
		if err := c.Manager.Close(); err != nil {
			c.Logger.Warn("close index", zap.Error(err))
		}
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Ledger != nil {
		_ = c.Ledger.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}

// describeError turns pipeline sentinels into messages a user can act on.
func describeError(err error) error {
	switch {
	case errors.Is(err, models.ErrEmptyCorpus):
		return fmt.Errorf("%w; add .txt, .doc or .docx files to the corpus directory", err)
	case errors.Is(err, models.ErrEmbeddingUnavailable):
		return fmt.Errorf("%w; check that the embedding backend is running", err)
	case errors.Is(err, models.ErrGenerationUnavailable):
		return fmt.Errorf("%w; check that the chat model backend is running", err)
	default:
		return err
	}
}
