package rag

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hyperjump/tanya/internal/extract"
	"github.com/hyperjump/tanya/internal/indexer"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/watcher"
	"go.uber.org/zap"
)

// Refresh policies for CorpusIndex.
const (
	// RefreshAlways ingests the corpus before every turn.
	RefreshAlways = "always"
	// RefreshWatch ingests once, then again only after the corpus folder changes.
	RefreshWatch = "watch"
)

// Retriever returns the chunks most relevant to a query, best first.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]*models.RetrievedChunk, error)
}

// Index hands the pipeline a retriever that reflects the current corpus, together with the
// sources ingested while producing it.
type Index interface {
	Retriever(ctx context.Context) (Retriever, []string, error)
}

// CorpusIndex is the Index over one corpus folder backed by an indexer.Manager.
type CorpusIndex struct {
	manager   *indexer.Manager
	corpusDir string
	refresh   string
	recursive bool
	watchOpts []watcher.WatcherOption
	logger    *zap.Logger

	stale   atomic.Bool
	mu      sync.Mutex
	cached  Retriever
	watcher *watcher.Watcher
}

var _ Index = (*CorpusIndex)(nil)

// CorpusIndexOption configures a CorpusIndex.
type CorpusIndexOption func(*CorpusIndex)

// WithRefresh sets the refresh policy, RefreshAlways (default) or RefreshWatch.
func WithRefresh(policy string) CorpusIndexOption {
	return func(c *CorpusIndex) { c.refresh = policy }
}

// WithWatchOptions configures the folder watcher used by RefreshWatch.
func WithWatchOptions(recursive bool, opts ...watcher.WatcherOption) CorpusIndexOption {
	return func(c *CorpusIndex) {
		c.recursive = recursive
		c.watchOpts = opts
	}
}

// WithIndexLogger sets a logger.
func WithIndexLogger(l *zap.Logger) CorpusIndexOption {
	return func(c *CorpusIndex) { c.logger = l }
}

// NewCorpusIndex creates an index over corpusDir.
func NewCorpusIndex(manager *indexer.Manager, corpusDir string, opts ...CorpusIndexOption) (*CorpusIndex, error) {
	c := &CorpusIndex{manager: manager, corpusDir: corpusDir, refresh: RefreshAlways, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	switch c.refresh {
	case RefreshAlways, RefreshWatch:
	default:
		return nil, fmt.Errorf("unknown refresh policy: %s (supported: always, watch)", c.refresh)
	}
	c.stale.Store(true)
	return c, nil
}

// Start begins watching the corpus folder when the policy is RefreshWatch. It is a no-op
// otherwise. The watcher stops when ctx is done or Close is called.
func (c *CorpusIndex) Start(ctx context.Context) error {
	if c.refresh != RefreshWatch {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watcher != nil {
		return nil
	}
	exts := []string{extract.KindText.String(), extract.KindDoc.String(), extract.KindDocx.String()}
	opts := append([]watcher.WatcherOption{watcher.WithLogger(c.logger)}, c.watchOpts...)
	w := watcher.NewWatcher(c.corpusDir, exts, c.recursive, func(string) { c.Invalidate() }, opts...)
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("watch corpus: %w", err)
	}
	c.watcher = w
	return nil
}

// Invalidate forces the next Retriever call to ingest the corpus.
func (c *CorpusIndex) Invalidate() {
	c.stale.Store(true)
}

// Retriever ingests the corpus when the policy requires it and returns a retriever over
// the index with the newly ingested source ids.
func (c *CorpusIndex) Retriever(ctx context.Context) (Retriever, []string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refresh == RefreshWatch && c.cached != nil && !c.stale.Load() {
		return c.cached, nil, nil
	}
	c.stale.Store(false)
	r, report, err := c.manager.EnsureIndex(ctx, c.corpusDir)
	if err != nil {
		c.stale.Store(true)
		return nil, nil, err
	}
	c.cached = r
	return r, report.NewSources, nil
}

// Close stops the watcher.
func (c *CorpusIndex) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watcher != nil {
		c.watcher.Stop()
		c.watcher = nil
	}
}
