package rerank

import (
	"context"
	"fmt"
	"time"

	"github.com/DreamCats/caseindex/internal/config"
	"github.com/DreamCats/caseindex/internal/resilience"
)

// Scorer is the pairwise relevance service: one score per passage, same order.
type Scorer interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// CallRecorder observes the outcome of each relevance call.
type CallRecorder interface {
	ModelCall(service, status string)
}

// Service wraps a Scorer with a per-call deadline, retry and breaker policy.
type Service struct {
	scorer   Scorer
	exec     *resilience.Executor
	recorder CallRecorder
	timeout  time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithExecutor routes relevance calls through retry and breaker policy.
func WithExecutor(exec *resilience.Executor) Option {
	return func(s *Service) { s.exec = exec }
}

// WithRecorder reports every relevance call to r.
func WithRecorder(r CallRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// NewService creates the relevance service for the configured provider.
func NewService(cfg *config.RerankConfig, opts ...Option) (*Service, error) {
	switch cfg.Provider {
	case "tei":
		client, err := NewTEIClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create rerank client: %w", err)
		}
		return NewServiceWithScorer(client, cfg.Timeout, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported rerank provider: %s", cfg.Provider)
	}
}

// NewServiceWithScorer wraps an existing scorer.
func NewServiceWithScorer(scorer Scorer, timeout time.Duration, opts ...Option) *Service {
	s := &Service{scorer: scorer, timeout: timeout}
	for _, opt := range opts {
		opt(s)
	}
	if s.exec == nil {
		s.exec = resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 1})
	}
	return s
}

// Score scores every passage against query in a single provider call.
func (s *Service) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var scores []float64
	err := s.exec.Execute(ctx, "rerank", func(ctx context.Context) error {
		callCtx := ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		out, err := s.scorer.Score(callCtx, query, texts)
		if err != nil {
			return err
		}
		scores = out
		return nil
	}, resilience.ClassifyHTTP)

	if err == nil && len(scores) != len(texts) {
		err = fmt.Errorf("expected %d scores, got %d", len(texts), len(scores))
	}
	if s.recorder != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.recorder.ModelCall("rerank", status)
	}
	if err != nil {
		return nil, fmt.Errorf("relevance service: %w", err)
	}
	return scores, nil
}
