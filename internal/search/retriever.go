package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/vector"
)

// minCandidates is the smallest candidate pool fetched from each side in hybrid mode.
const minCandidates = 20

// Retriever returns the top-k chunks of an index for a query.
type Retriever struct {
	store          *vector.Store
	embedder       embedding.Embedder
	keywordIndex   keyword.KeywordIndex
	keywordOpts    *keyword.SearchOptions
	topK           int
	keywordWeight  float64
	semanticWeight float64
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithKeyword enables hybrid retrieval: vector hits are fused with keyword hits using the
// given weights.
func WithKeyword(idx keyword.KeywordIndex, keywordWeight, semanticWeight float64, opts *keyword.SearchOptions) Option {
	return func(r *Retriever) {
		r.keywordIndex = idx
		r.keywordWeight = keywordWeight
		r.semanticWeight = semanticWeight
		r.keywordOpts = opts
	}
}

// NewRetriever creates a retriever over store. Queries are embedded with embedder, which must
// be the model the store was built with.
func NewRetriever(store *vector.Store, embedder embedding.Embedder, topK int, opts ...Option) *Retriever {
	r := &Retriever{store: store, embedder: embedder, topK: topK}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TopK returns the number of chunks returned per query.
func (r *Retriever) TopK() int { return r.topK }

// Hybrid reports whether keyword search is fused into the results.
func (r *Retriever) Hybrid() bool { return r.keywordIndex != nil }

// Retrieve returns up to k chunks for query, best first. Fewer are returned when the index
// holds fewer chunks. Embedding failures wrap models.ErrEmbeddingUnavailable.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]*models.RetrievedChunk, error) {
	if r.topK <= 0 || r.store.Size() == 0 {
		return nil, nil
	}
	if r.keywordIndex == nil {
		vec, err := r.embedder.Embed(ctx, query)
		if err != nil {
			return nil, err
		}
		return r.store.Search(ctx, vec, r.topK)
	}
	return r.retrieveHybrid(ctx, query)
}

func (r *Retriever) retrieveHybrid(ctx context.Context, query string) ([]*models.RetrievedChunk, error) {
	candidates := max(r.topK*4, minCandidates)
	var (
		keywordResults  []*keyword.KeywordResult
		semanticResults []*models.RetrievedChunk
		errChan         = make(chan error, 2)
		wg              sync.WaitGroup
	)

	if r.keywordWeight > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := r.keywordIndex.Search(ctx, query, candidates, r.keywordOpts)
			if err != nil {
				errChan <- fmt.Errorf("keyword search failed: %w", err)
				return
			}
			keywordResults = results
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		vec, err := r.embedder.Embed(ctx, query)
		if err != nil {
			errChan <- err
			return
		}
		results, err := r.store.Search(ctx, vec, candidates)
		if err != nil {
			errChan <- fmt.Errorf("vector search failed: %w", err)
			return
		}
		semanticResults = results
	}()

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	fused := Fuse(NormalizeKeywordScores(keywordResults), NormalizeSemanticScores(semanticResults), r.keywordWeight, r.semanticWeight)
	out := make([]*models.RetrievedChunk, 0, r.topK)
	for _, f := range fused {
		if len(out) == r.topK {
			break
		}
		ch, ok := r.store.Chunk(f.ChunkID)
		if !ok {
			continue
		}
		out = append(out, &models.RetrievedChunk{Chunk: ch, Score: f.Score, Rank: len(out) + 1})
	}
	return out, nil
}
