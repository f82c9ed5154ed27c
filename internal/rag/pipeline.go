// Package rag answers questions from a document corpus: it rewrites the question into a
// standalone query, retrieves chunks, and asks the language model for an answer grounded in them.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/tanya/internal/llm"
	"github.com/hyperjump/tanya/internal/models"
	"go.uber.org/zap"
)

// Answer is the result of one turn.
type Answer struct {
	Text            string
	StandaloneQuery string
	Chunks          []*models.RetrievedChunk
	// NewSources are the corpus sources ingested during this turn.
	NewSources []string
}

// Pipeline runs the conversational retrieval turn. It holds no per-session state and is safe
// for concurrent use by different sessions.
type Pipeline struct {
	index              Index
	model              llm.Model
	contextualizeEmpty bool
	refuseOnEmpty      bool
	counter            TokenCounter
	maxContextTokens   int
	logger             *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithContextualizeEmptyHistory sends the question through the rewriting model even when
// there is no history. Off by default: with no history the question is the query.
func WithContextualizeEmptyHistory(on bool) Option {
	return func(p *Pipeline) { p.contextualizeEmpty = on }
}

// WithRefuseOnEmptyContext answers with RefusalMessage without calling the model when
// retrieval returns nothing. On by default.
func WithRefuseOnEmptyContext(on bool) Option {
	return func(p *Pipeline) { p.refuseOnEmpty = on }
}

// WithContextBudget caps the tokens of retrieved context; lower-ranked chunks are dropped first.
func WithContextBudget(counter TokenCounter, maxTokens int) Option {
	return func(p *Pipeline) {
		p.counter = counter
		p.maxContextTokens = maxTokens
	}
}

// NewPipeline creates a pipeline over index and model.
func NewPipeline(index Index, model llm.Model, opts ...Option) *Pipeline {
	p := &Pipeline{index: index, model: model, refuseOnEmpty: true, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Answer answers question given the prior turns in history. history is not modified.
// Model failures wrap models.ErrGenerationUnavailable, embedding failures
// models.ErrEmbeddingUnavailable, and a cancelled ctx yields models.ErrTurnCancelled.
// No partial answer is returned on error.
func (p *Pipeline) Answer(ctx context.Context, question string, history models.Transcript) (*Answer, error) {
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}
	retriever, newSources, err := p.index.Retriever(ctx)
	if err != nil {
		return nil, p.turnErr(ctx, err)
	}

	query, err := p.contextualize(ctx, question, history)
	if err != nil {
		return nil, p.turnErr(ctx, err)
	}

	chunks, err := retriever.Retrieve(ctx, query)
	if err != nil {
		return nil, p.turnErr(ctx, err)
	}
	chunks = fitBudget(chunks, p.counter, p.maxContextTokens)
	p.logger.Debug("context retrieved", zap.String("query", query), zap.Int("chunks", len(chunks)))

	out := &Answer{StandaloneQuery: query, Chunks: chunks, NewSources: newSources}
	if len(chunks) == 0 && p.refuseOnEmpty {
		out.Text = RefusalMessage
		return out, nil
	}

	contents := make([]string, len(chunks))
	for i, rc := range chunks {
		contents[i] = rc.Chunk.Content
	}
	text, err := llm.Complete(ctx, p.model, llm.Request{
		System:  AnswerPrompt(contents),
		History: history,
		User:    question,
	})
	if err != nil {
		return nil, p.turnErr(ctx, err)
	}
	out.Text = text
	return out, nil
}

// contextualize returns the standalone query for question. With no history the question is
// returned verbatim unless rewriting of first questions is enabled.
func (p *Pipeline) contextualize(ctx context.Context, question string, history models.Transcript) (string, error) {
	if len(history) == 0 && !p.contextualizeEmpty {
		return question, nil
	}
	rewritten, err := llm.Complete(ctx, p.model, llm.Request{
		System:  ContextualizePrompt,
		History: history,
		User:    question,
	})
	if err != nil {
		return "", err
	}
	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return question, nil
	}
	p.logger.Debug("question contextualized", zap.String("question", question), zap.String("query", rewritten))
	return rewritten, nil
}

func (p *Pipeline) turnErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return cancelled(err)
	}
	if errors.Is(err, context.Canceled) {
		return cancelled(err)
	}
	return err
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %v", models.ErrTurnCancelled, err)
}
