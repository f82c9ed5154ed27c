// Package llm defines the streaming language-model contract and its Ollama and mock adapters.
package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/hyperjump/tanya/internal/models"
)

// Request is one model invocation: a system instruction, prior turns, and the user message.
type Request struct {
	System  string
	History []models.Turn
	User    string
}

// Model is a chat language model. Stream returns a lazy, finite, non-restartable sequence of
// text fragments; a non-nil error ends the sequence.
type Model interface {
	Stream(ctx context.Context, req Request) iter.Seq2[string, error]
	Name() string
}

// Collect drains a fragment sequence and concatenates the fragments in emission order.
// Nothing is returned on error: a partial answer is discarded.
func Collect(seq iter.Seq2[string, error]) (string, error) {
	var b strings.Builder
	for frag, err := range seq {
		if err != nil {
			return "", err
		}
		b.WriteString(frag)
	}
	return b.String(), nil
}

// Complete runs req on m and returns the full answer.
func Complete(ctx context.Context, m Model, req Request) (string, error) {
	return Collect(m.Stream(ctx, req))
}

// Pinger is implemented by models backed by a remote server.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks that m can serve requests. Local models are always reachable.
func Ping(ctx context.Context, m Model) error {
	if p, ok := m.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// GuardedModel bounds a whole stream with a timeout and reports any model failure as
// models.ErrGenerationUnavailable. A cancellation by the caller is returned as is.
type GuardedModel struct {
	inner   Model
	timeout time.Duration
}

var _ Model = (*GuardedModel)(nil)

// WithTimeout wraps m. A zero timeout only maps errors.
func WithTimeout(m Model, timeout time.Duration) *GuardedModel {
	return &GuardedModel{inner: m, timeout: timeout}
}

// Stream forwards fragments from the wrapped model under the deadline.
func (g *GuardedModel) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var cancel context.CancelFunc
		if g.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
		} else {
			ctx, cancel = context.WithCancel(ctx)
		}
		defer cancel()
		for frag, err := range g.inner.Stream(ctx, req) {
			if err != nil {
				yield("", g.mapErr(ctx, err))
				return
			}
			if !yield(frag, nil) {
				return
			}
		}
	}
}

// Ping forwards to the wrapped model.
func (g *GuardedModel) Ping(ctx context.Context) error {
	if err := Ping(ctx, g.inner); err != nil {
		return g.mapErr(ctx, err)
	}
	return nil
}

// Name returns the wrapped model's name.
func (g *GuardedModel) Name() string { return g.inner.Name() }

func (g *GuardedModel) mapErr(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, models.ErrGenerationUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", models.ErrGenerationUnavailable, err)
}
