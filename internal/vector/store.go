package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hyperjump/tanya/internal/models"
)

// DocstoreFile is written last when an index directory is saved; its presence marks a
// persisted index.
const DocstoreFile = "docstore.json"

const docstoreVersion = 1

// docstore is the JSON layout of DocstoreFile. Chunks are kept in insertion order.
type docstore struct {
	Version    int             `json:"version"`
	IndexType  string          `json:"index_type"`
	Dimensions int             `json:"dimensions"`
	Chunks     []*models.Chunk `json:"chunks"`
}

// Store pairs a VectorIndex with the chunks it indexes and persists both to one directory.
type Store struct {
	dir    string
	index  VectorIndex
	chunks map[string]*models.Chunk
	order  []*models.Chunk
	mu     sync.RWMutex
}

// Exists reports whether a persisted index is present in dir.
func Exists(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, DocstoreFile))
	return err == nil && info.Mode().IsRegular()
}

// NewStore creates an empty, unsaved store for dir.
func NewStore(dir, indexType string, dimensions int) (*Store, error) {
	index, err := NewVectorIndex(indexType, dimensions)
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir, index: index, chunks: make(map[string]*models.Chunk)}, nil
}

// OpenStore loads the persisted index in dir. The saved index type and dimensions must
// match the requested ones.
func OpenStore(dir, indexType string, dimensions int) (*Store, error) {
	data, err := os.ReadFile(filepath.Join(dir, DocstoreFile))
	if err != nil {
		return nil, fmt.Errorf("read docstore: %w", err)
	}
	var ds docstore
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse docstore: %w", err)
	}
	if ds.Version != docstoreVersion {
		return nil, fmt.Errorf("unsupported docstore version %d", ds.Version)
	}
	if indexType == "" {
		indexType = string(IndexTypeMemory)
	}
	if ds.IndexType != indexType {
		return nil, fmt.Errorf("index type mismatch: saved %s, configured %s", ds.IndexType, indexType)
	}
	if ds.Dimensions != dimensions {
		return nil, fmt.Errorf("dimension mismatch: saved %d, configured %d", ds.Dimensions, dimensions)
	}

	s, err := NewStore(dir, indexType, dimensions)
	if err != nil {
		return nil, err
	}
	if err := s.index.Load(dir); err != nil {
		_ = s.index.Close()
		return nil, err
	}
	if s.index.Size() != len(ds.Chunks) {
		_ = s.index.Close()
		return nil, fmt.Errorf("docstore has %d chunks, index has %d vectors", len(ds.Chunks), s.index.Size())
	}
	for _, ch := range ds.Chunks {
		s.chunks[ch.ID] = ch
		s.order = append(s.order, ch)
	}
	return s, nil
}

// Add appends chunks with their embeddings. Vectors are normalized so search ranks by cosine
// similarity. Chunks without an embedding are rejected before anything is added.
func (s *Store) Add(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	ids := make([]string, len(chunks))
	vectors := make([][]float32, len(chunks))
	for i, ch := range chunks {
		if len(ch.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", ch.ID)
		}
		ids[i] = ch.ID
		vectors[i] = Normalized(ch.Embedding)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, dup := s.chunks[id]; dup {
			return fmt.Errorf("duplicate chunk id %s", id)
		}
	}
	if err := s.index.Add(ctx, ids, vectors); err != nil {
		return err
	}
	for _, ch := range chunks {
		s.chunks[ch.ID] = ch
		s.order = append(s.order, ch)
	}
	return nil
}

// Search returns the k chunks most similar to query, best first, ties in insertion order.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]*models.RetrievedChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hits, err := s.index.Search(ctx, Normalized(query), k)
	if err != nil {
		return nil, err
	}
	out := make([]*models.RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		ch, ok := s.chunks[h.ID]
		if !ok {
			continue
		}
		out = append(out, &models.RetrievedChunk{Chunk: ch, Score: h.Score, Rank: len(out) + 1})
	}
	return out, nil
}

// Save writes the vector files and then the docstore, each through a temporary file.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.index.Save(s.dir); err != nil {
		return err
	}
	ds := docstore{
		Version:    docstoreVersion,
		IndexType:  s.index.Type(),
		Dimensions: s.index.Dimensions(),
		Chunks:     s.order,
	}
	if ds.Chunks == nil {
		ds.Chunks = []*models.Chunk{}
	}
	data, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("marshal docstore: %w", err)
	}
	return writeFileAtomic(filepath.Join(s.dir, DocstoreFile), data)
}

// Chunks returns the indexed chunks in insertion order.
func (s *Store) Chunks() []*models.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.Chunk(nil), s.order...)
}

// Chunk returns the chunk with the given id.
func (s *Store) Chunk(id string) (*models.Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.chunks[id]
	return ch, ok
}

// Size returns the number of indexed chunks.
func (s *Store) Size() int {
	return s.index.Size()
}

// Dir returns the index directory.
func (s *Store) Dir() string {
	return s.dir
}

// Close releases the index.
func (s *Store) Close() error {
	return s.index.Close()
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
