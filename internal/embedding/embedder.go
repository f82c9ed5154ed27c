// Package embedding provides text embedding models: ONNX (local), Ollama (remote), and a
// deterministic mock, plus an LRU cache and a timeout guard.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/tanya/internal/models"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Pinger is implemented by embedders backed by a remote server.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks that e can serve requests. Local embedders are always reachable.
func Ping(ctx context.Context, e Embedder) error {
	if p, ok := e.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// GuardedEmbedder bounds every call with a timeout and reports any failure as
// models.ErrEmbeddingUnavailable. A cancellation by the caller is returned as is.
type GuardedEmbedder struct {
	inner   Embedder
	timeout time.Duration
	window  int
}

var _ Embedder = (*GuardedEmbedder)(nil)

// GuardOption configures a GuardedEmbedder.
type GuardOption func(*GuardedEmbedder)

// WithWindow sets how many texts of a batch share one deadline. Use the inner embedder's
// request concurrency so a window costs about one call. Default 1.
func WithWindow(n int) GuardOption {
	return func(g *GuardedEmbedder) {
		if n > 0 {
			g.window = n
		}
	}
}

// WithTimeout wraps e. A zero timeout only maps errors.
func WithTimeout(e Embedder, timeout time.Duration, opts ...GuardOption) *GuardedEmbedder {
	g := &GuardedEmbedder{inner: e, timeout: timeout, window: 1}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GuardedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := g.withDeadline(ctx)
	defer cancel()
	v, err := g.inner.Embed(ctx, text)
	if err != nil {
		return nil, g.mapErr(ctx, err)
	}
	return v, nil
}

// EmbedBatch embeds texts window by window, each window under its own deadline, so the
// timeout bounds a call and not the size of the batch.
func (g *GuardedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += g.window {
		end := min(start+g.window, len(texts))
		v, err := g.embedWindow(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, v...)
	}
	return out, nil
}

func (g *GuardedEmbedder) embedWindow(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := g.withDeadline(ctx)
	defer cancel()
	v, err := g.inner.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, g.mapErr(ctx, err)
	}
	if len(v) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", models.ErrEmbeddingUnavailable, len(v), len(texts))
	}
	return v, nil
}

// Ping forwards to the wrapped embedder under the timeout.
func (g *GuardedEmbedder) Ping(ctx context.Context) error {
	ctx, cancel := g.withDeadline(ctx)
	defer cancel()
	if err := Ping(ctx, g.inner); err != nil {
		return g.mapErr(ctx, err)
	}
	return nil
}

func (g *GuardedEmbedder) Dimensions() int { return g.inner.Dimensions() }

func (g *GuardedEmbedder) Close() error { return g.inner.Close() }

func (g *GuardedEmbedder) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *GuardedEmbedder) mapErr(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, models.ErrEmbeddingUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", models.ErrEmbeddingUnavailable, err)
}
