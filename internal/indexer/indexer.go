package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hyperjump/tanya/internal/corpus"
	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/search"
	"github.com/hyperjump/tanya/internal/storage"
	"github.com/hyperjump/tanya/internal/vector"
	"go.uber.org/zap"
)

// KeywordDir is the bleve index directory inside the index location, used in hybrid mode.
const KeywordDir = "keyword.bleve"

// locations serializes reload/append/persist per index directory across every Manager in the
// process.
var locations sync.Map // abs index dir -> *sync.Mutex

func locationLock(dir string) *sync.Mutex {
	mu, _ := locations.LoadOrStore(dir, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// IngestReport summarizes one ingestion pass.
type IngestReport struct {
	// NewSources are the sources chunked and indexed in this pass, in corpus order.
	NewSources []string
	// NewChunks is the number of chunks appended to the index.
	NewChunks int
	// Skipped holds the per-file failures that were logged and skipped.
	Skipped []*models.FileError
	// AlreadyProcessed counts sources the ledger reported as ingested.
	AlreadyProcessed int
	// Created is true when the pass built the index for the first time.
	Created bool
	// IndexSize is the number of chunks in the index after the pass.
	IndexSize int
}

// Manager owns the vector index at one location and keeps it in step with a corpus folder.
// A Manager owns the keyword index in its location; use one Manager per location per process.
type Manager struct {
	ledger    storage.Ledger
	loader    *corpus.Loader
	chunker   *Chunker
	embedder  embedding.Embedder
	indexDir  string
	indexType string
	topK      int

	hybrid         bool
	keywordWeight  float64
	semanticWeight float64
	keywordOpts    *keyword.SearchOptions

	logger *zap.Logger

	// Guarded by the location lock.
	store      *vector.Store
	storeStamp stamp
	keyword    *keyword.BleveIndex
}

// stamp identifies the docstore file a cached store was loaded from or saved to.
type stamp struct {
	modTime time.Time
	size    int64
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets a logger for ingestion output.
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithTopK sets the number of chunks returned by retrievers. Default 3.
func WithTopK(k int) ManagerOption {
	return func(m *Manager) { m.topK = k }
}

// WithIndexType selects the vector index implementation ("memory" or "faiss").
func WithIndexType(t string) ManagerOption {
	return func(m *Manager) { m.indexType = t }
}

// WithHybrid keeps a keyword index beside the vectors and fuses it into retrieval.
func WithHybrid(keywordWeight, semanticWeight float64, opts *keyword.SearchOptions) ManagerOption {
	return func(m *Manager) {
		m.hybrid = true
		m.keywordWeight = keywordWeight
		m.semanticWeight = semanticWeight
		m.keywordOpts = opts
	}
}

// NewManager creates a Manager that persists its index in indexDir.
func NewManager(ledger storage.Ledger, loader *corpus.Loader, chunker *Chunker, embedder embedding.Embedder, indexDir string, opts ...ManagerOption) (*Manager, error) {
	abs, err := filepath.Abs(indexDir)
	if err != nil {
		return nil, fmt.Errorf("absolute index path: %w", err)
	}
	m := &Manager{
		ledger:    ledger,
		loader:    loader,
		chunker:   chunker,
		embedder:  embedder,
		indexDir:  abs,
		indexType: string(vector.IndexTypeMemory),
		topK:      3,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// IndexDir returns the absolute index location.
func (m *Manager) IndexDir() string { return m.indexDir }

type staged struct {
	sources []string
	chunks  []*models.Chunk
}

// EnsureIndex ingests the sources of corpusDir the ledger has not seen, appends their chunks to
// the persisted index (building it on first use), and returns a retriever over the result.
// Per-file failures are logged and reported, not returned. With no persisted index and no new
// chunks it fails with models.ErrEmptyCorpus. Ledger and index failures wrap
// models.ErrPersistence; sources are marked processed only after the index is saved.
func (m *Manager) EnsureIndex(ctx context.Context, corpusDir string) (*search.Retriever, *IngestReport, error) {
	mu := locationLock(m.indexDir)
	mu.Lock()
	defer mu.Unlock()

	report := &IngestReport{}
	batch, err := m.stage(ctx, corpusDir, report)
	if err != nil {
		return nil, nil, err
	}

	store, err := m.loadStore()
	if err != nil {
		return nil, nil, err
	}
	if store == nil && len(batch.chunks) == 0 {
		return nil, nil, models.ErrEmptyCorpus
	}

	if len(batch.chunks) > 0 {
		if err := m.embed(ctx, batch.chunks); err != nil {
			return nil, nil, err
		}
	}
	if store == nil {
		store, err = vector.NewStore(m.indexDir, m.indexType, m.embedder.Dimensions())
		if err != nil {
			return nil, nil, fmt.Errorf("%w: create index: %v", models.ErrPersistence, err)
		}
		report.Created = true
	}
	if report.Created || len(batch.chunks) > 0 {
		if err := m.persist(store, batch.chunks); err != nil {
			return nil, nil, err
		}
	}
	m.store = store

	if len(batch.sources) > 0 {
		if err := m.ledger.MarkProcessed(ctx, batch.sources...); err != nil {
			return nil, nil, err
		}
	}

	// The keyword index is derived from the store and rebuilt on the next pass if this fails.
	if m.hybrid {
		if err := m.syncKeyword(ctx, batch.chunks); err != nil {
			return nil, nil, err
		}
	}
	report.NewSources = batch.sources
	report.NewChunks = len(batch.chunks)
	report.IndexSize = store.Size()
	if report.NewChunks > 0 || len(report.Skipped) > 0 {
		m.logger.Info("corpus ingested",
			zap.String("corpus", corpusDir),
			zap.Int("new_sources", len(report.NewSources)),
			zap.Int("new_chunks", report.NewChunks),
			zap.Int("skipped", len(report.Skipped)),
			zap.Int("index_size", report.IndexSize),
			zap.Bool("created", report.Created))
	}
	return m.retriever(store), report, nil
}

// stage loads and splits every source the ledger has not recorded.
func (m *Manager) stage(ctx context.Context, corpusDir string, report *IngestReport) (*staged, error) {
	batch := &staged{}
	for doc, err := range m.loader.Documents(ctx, corpusDir) {
		if err != nil {
			var fe *models.FileError
			if errors.As(err, &fe) {
				m.logger.Warn("skipping corpus file", zap.String("source", fe.Source), zap.Error(fe.Err))
				report.Skipped = append(report.Skipped, fe)
				continue
			}
			return nil, err
		}
		done, err := m.ledger.IsProcessed(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		if done {
			report.AlreadyProcessed++
			continue
		}
		chunks := m.chunker.Split(doc)
		m.logger.Debug("source staged", zap.String("source", doc.ID), zap.Int("chunks", len(chunks)))
		batch.sources = append(batch.sources, doc.ID)
		batch.chunks = append(batch.chunks, chunks...)
	}
	return batch, nil
}

// loadStore returns the cached store when the docstore on disk is the one it came from,
// otherwise reloads it. It returns nil when no index has been persisted.
func (m *Manager) loadStore() (*vector.Store, error) {
	st, exists := m.docstoreStamp()
	if !exists {
		m.store = nil
		return nil, nil
	}
	if m.store != nil && st == m.storeStamp {
		return m.store, nil
	}
	store, err := vector.OpenStore(m.indexDir, m.indexType, m.embedder.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("%w: load index: %v", models.ErrPersistence, err)
	}
	m.logger.Debug("index loaded", zap.String("path", m.indexDir), zap.Int("chunks", store.Size()))
	m.store = store
	m.storeStamp = st
	return store, nil
}

func (m *Manager) docstoreStamp() (stamp, bool) {
	if !vector.Exists(m.indexDir) {
		return stamp{}, false
	}
	info, err := os.Stat(filepath.Join(m.indexDir, vector.DocstoreFile))
	if err != nil {
		return stamp{}, false
	}
	return stamp{modTime: info.ModTime(), size: info.Size()}, true
}

func (m *Manager) embed(ctx context.Context, chunks []*models.Chunk) error {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vecs, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("%w: got %d embeddings for %d chunks", models.ErrEmbeddingUnavailable, len(vecs), len(chunks))
	}
	for i := range chunks {
		chunks[i].Embedding = vecs[i]
	}
	return nil
}

// persist appends chunks and saves. On failure the cached store is dropped so the next pass
// reloads what is on disk.
func (m *Manager) persist(store *vector.Store, chunks []*models.Chunk) error {
	if err := store.Add(context.Background(), chunks); err != nil {
		m.store = nil
		return fmt.Errorf("%w: append to index: %v", models.ErrPersistence, err)
	}
	if err := store.Save(); err != nil {
		m.store = nil
		return fmt.Errorf("%w: save index: %v", models.ErrPersistence, err)
	}
	m.storeStamp, _ = m.docstoreStamp()
	return nil
}

// syncKeyword brings the keyword index in line with the vector store: the new chunks are
// appended, or the whole index is rebuilt when the counts disagree.
func (m *Manager) syncKeyword(ctx context.Context, added []*models.Chunk) error {
	path := filepath.Join(m.indexDir, KeywordDir)
	if m.keyword == nil {
		kw, err := keyword.NewBleveIndex(path)
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrPersistence, err)
		}
		m.keyword = kw
	}
	count, err := m.keyword.DocCount()
	if err != nil {
		return fmt.Errorf("%w: keyword count: %v", models.ErrPersistence, err)
	}
	want := uint64(m.store.Size())
	switch {
	case count == want:
		return nil
	case count+uint64(len(added)) == want:
		if err := m.keyword.Index(ctx, added); err != nil {
			return fmt.Errorf("%w: %v", models.ErrPersistence, err)
		}
		return nil
	}
	m.logger.Info("rebuilding keyword index", zap.Uint64("keyword_chunks", count), zap.Uint64("vector_chunks", want))
	_ = m.keyword.Close()
	m.keyword = nil
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("%w: remove keyword index: %v", models.ErrPersistence, err)
	}
	kw, err := keyword.NewBleveIndex(path)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	m.keyword = kw
	if err := kw.Index(ctx, m.store.Chunks()); err != nil {
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	return nil
}

func (m *Manager) retriever(store *vector.Store) *search.Retriever {
	var opts []search.Option
	if m.hybrid && m.keyword != nil {
		opts = append(opts, search.WithKeyword(m.keyword, m.keywordWeight, m.semanticWeight, m.keywordOpts))
	}
	return search.NewRetriever(store, m.embedder, m.topK, opts...)
}

// Stats reports the persisted index without ingesting. Size is 0 when no index exists.
func (m *Manager) Stats() (exists bool, size int, err error) {
	mu := locationLock(m.indexDir)
	mu.Lock()
	defer mu.Unlock()
	store, err := m.loadStore()
	if err != nil || store == nil {
		return false, 0, err
	}
	return true, store.Size(), nil
}

// Close releases the cached indexes.
func (m *Manager) Close() error {
	mu := locationLock(m.indexDir)
	mu.Lock()
	defer mu.Unlock()
	var errs []error
	if m.keyword != nil {
		errs = append(errs, m.keyword.Close())
		m.keyword = nil
	}
	if m.store != nil {
		errs = append(errs, m.store.Close())
		m.store = nil
	}
	return errors.Join(errs...)
}
