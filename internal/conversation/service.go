package conversation

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/rag"
	"go.uber.org/zap"
)

// Answerer produces the answer for one turn.
type Answerer interface {
	Answer(ctx context.Context, question string, history models.Transcript) (*rag.Answer, error)
}

// Service runs turns for many sessions. Turns of one session are serialized; turns of
// different sessions run concurrently.
type Service struct {
	answerer Answerer
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	sem  chan struct{}
	refs int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service.
func NewService(answerer Answerer, opts ...ServiceOption) *Service {
	s := &Service{answerer: answerer, logger: zap.NewNop(), locks: make(map[string]*sessionLock)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask answers question in the session and returns the transcript with the exchange appended.
// On error the returned transcript is t unchanged.
func (s *Service) Ask(ctx context.Context, sessionID string, t models.Transcript, question string) (models.Transcript, *rag.Answer, error) {
	unlock, err := s.lock(ctx, sessionID)
	if err != nil {
		return t, nil, err
	}
	defer unlock()

	ans, err := s.answerer.Answer(ctx, question, t)
	if err != nil {
		s.logger.Warn("turn failed", zap.String("session", sessionID), zap.Error(err))
		return t, nil, err
	}
	s.logger.Debug("turn answered", zap.String("session", sessionID), zap.Int("chunks", len(ans.Chunks)), zap.Strings("new_sources", ans.NewSources))
	return AppendExchange(t, question, ans.Text), ans, nil
}

// Edit replaces the last user message of the session with newText and regenerates the reply.
// On error the returned transcript is t unchanged.
func (s *Service) Edit(ctx context.Context, sessionID string, t models.Transcript, newText string) (models.Transcript, *rag.Answer, error) {
	unlock, err := s.lock(ctx, sessionID)
	if err != nil {
		return t, nil, err
	}
	defer unlock()

	var ans *rag.Answer
	out, err := EditLastUserAndRegenerate(ctx, t, newText, func(ctx context.Context, question string, history models.Transcript) (string, error) {
		a, err := s.answerer.Answer(ctx, question, history)
		if err != nil {
			return "", err
		}
		ans = a
		return a.Text, nil
	})
	if err != nil {
		s.logger.Warn("edit failed", zap.String("session", sessionID), zap.Error(err))
		return t, nil, err
	}
	return out, ans, nil
}

// lock waits for the session's turn slot. Waiting ends with models.ErrTurnCancelled when ctx
// is done first.
func (s *Service) lock(ctx context.Context, sessionID string) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{sem: make(chan struct{}, 1)}
		s.locks[sessionID] = l
	}
	l.refs++
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, sessionID)
		}
		s.mu.Unlock()
	}

	select {
	case l.sem <- struct{}{}:
		return func() {
			<-l.sem
			release()
		}, nil
	case <-ctx.Done():
		release()
		return nil, fmt.Errorf("%w: %v", models.ErrTurnCancelled, ctx.Err())
	}
}
