// Package keyword provides the Bleve implementation of KeywordIndex.
package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/tanya/internal/models"
)

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

var _ KeywordIndex = (*BleveIndex)(nil)

// chunkDoc is the indexed form of a chunk. Source is the file name with separators turned
// into spaces so the standard analyzer splits it into words.
type chunkDoc struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// NewBleveIndex creates or opens a Bleve index at path.
// If the path already exists, the existing index is opened and reused.
// If you change the index mapping in code, remove the index directory to force a rebuild.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so queries match exact words.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("source", textFieldMapping)
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes chunks in one batch.
func (b *BleveIndex) Index(ctx context.Context, chunks []*models.Chunk) error {
	batch := b.index.NewBatch()
	for _, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Index(ch.ID, chunkDoc{Source: normalizeSource(ch.Source), Content: ch.Content}); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", ch.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to apply Bleve batch: %w", err)
	}
	return nil
}

// normalizeSource turns "leave_policy-2024.docx" into "leave policy 2024 docx".
func normalizeSource(source string) string {
	return strings.NewReplacer("_", " ", "-", " ", ".", " ", "/", " ").Replace(source)
}

// Search returns up to limit chunks matching query, best first. Without boosts a single match
// over source and content is run. With a source or phrase boost the source and content scores
// are added, scaled by the share of query terms a chunk matches, and multiplied by the phrase
// boost when the query occurs as a phrase.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	o := resolveOptions(opts)
	if limit <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if o.SourceBoost <= 1 && o.PhraseBoost <= 1 {
		hits, err := b.run(b.matchQuery(query, "", o), limit)
		if err != nil {
			return nil, err
		}
		out := make([]*KeywordResult, 0, len(hits))
		for id, score := range hits {
			out = append(out, &KeywordResult{ID: id, Score: score})
		}
		return rank(out, limit), nil
	}
	return b.searchWithBoosts(ctx, query, limit, o)
}

func resolveOptions(opts *SearchOptions) SearchOptions {
	o := SearchOptions{SourceBoost: 1, PhraseBoost: 1, Fuzziness: 2}
	if opts == nil {
		return o
	}
	if opts.SourceBoost > 0 {
		o.SourceBoost = opts.SourceBoost
	}
	if opts.PhraseBoost > 0 {
		o.PhraseBoost = opts.PhraseBoost
	}
	o.FuzzyEnabled = opts.FuzzyEnabled
	if opts.Fuzziness > 0 {
		o.Fuzziness = opts.Fuzziness
	}
	return o
}

func (b *BleveIndex) searchWithBoosts(ctx context.Context, query string, limit int, o SearchOptions) ([]*KeywordResult, error) {
	reqSize := max(limit*2, 50)
	terms := tokenizeQuery(query)

	sourceHits, err := b.run(b.matchQuery(query, "source", o), reqSize)
	if err != nil {
		return nil, err
	}
	contentHits, err := b.run(b.matchQuery(query, "content", o), reqSize)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	coverage := map[string]int{}
	if len(terms) > 1 {
		for _, term := range terms {
			hits, err := b.run(b.matchQuery(term, "", o), reqSize)
			if err != nil {
				continue
			}
			for id := range hits {
				coverage[id]++
			}
		}
	}
	phrase := map[string]bool{}
	if o.PhraseBoost > 1 && len(terms) > 1 {
		for _, field := range []string{"content", "source"} {
			pq := bleve.NewMatchPhraseQuery(query)
			pq.SetField(field)
			hits, err := b.run(pq, reqSize)
			if err != nil {
				continue
			}
			for id := range hits {
				phrase[id] = true
			}
		}
	}

	scores := make(map[string]float64, len(contentHits)+len(sourceHits))
	for id, s := range contentHits {
		scores[id] += s
	}
	for id, s := range sourceHits {
		scores[id] += s * o.SourceBoost
	}
	out := make([]*KeywordResult, 0, len(scores))
	for id, score := range scores {
		if len(terms) > 1 {
			// Squared coverage: a chunk matching half the terms keeps a quarter of its score.
			share := float64(max(coverage[id], 1)) / float64(len(terms))
			score *= share * share
		}
		if phrase[id] {
			score *= o.PhraseBoost
		}
		out = append(out, &KeywordResult{ID: id, Score: score})
	}
	return rank(out, limit), nil
}

// matchQuery builds a match query, or a disjunction of fuzzy term queries when fuzzy matching
// is on. An empty field searches all fields.
func (b *BleveIndex) matchQuery(query, field string, o SearchOptions) blevequery.Query {
	terms := tokenizeQuery(query)
	if !o.FuzzyEnabled || len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		if field != "" {
			mq.SetField(field)
		}
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(o.Fuzziness)
		if field != "" {
			fq.SetField(field)
		}
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// run executes q and returns hit scores by chunk ID.
func (b *BleveIndex) run(q blevequery.Query, size int) (map[string]float64, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = size
	res, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	hits := make(map[string]float64, len(res.Hits))
	for _, hit := range res.Hits {
		hits[hit.ID] = hit.Score
	}
	return hits, nil
}

// rank sorts by score descending, ties by ID, and keeps the first limit results.
func rank(results []*KeywordResult, limit int) []*KeywordResult {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}
