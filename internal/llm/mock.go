package llm

import (
	"context"
	"iter"
	"strings"
	"sync"
)

// Responder produces the full answer for a request.
type Responder func(req Request) (string, error)

// MockModel is a scripted model for tests. It streams the responder's answer word by word
// and records every request it receives.
type MockModel struct {
	respond Responder
	mu      sync.Mutex
	calls   []Request
}

var _ Model = (*MockModel)(nil)

// NewMockModel returns a model that answers with respond.
func NewMockModel(respond Responder) *MockModel {
	return &MockModel{respond: respond}
}

// Stream yields the answer in whitespace-preserving fragments, checking ctx between fragments.
func (m *MockModel) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		m.mu.Lock()
		m.calls = append(m.calls, req)
		m.mu.Unlock()

		answer, err := m.respond(req)
		if err != nil {
			yield("", err)
			return
		}
		for _, frag := range fragments(answer) {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(frag, nil) {
				return
			}
		}
	}
}

// Name returns "mock".
func (m *MockModel) Name() string { return "mock" }

// Calls returns the requests received so far.
func (m *MockModel) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// fragments splits s after each space so that joining the parts gives back s.
func fragments(s string) []string {
	parts := strings.SplitAfter(s, " ")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
