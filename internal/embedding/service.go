package embedding

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/DreamCats/caseindex/internal/config"
	"github.com/DreamCats/caseindex/internal/resilience"
)

// Client is the interface for embedding providers. EmbedBatch returns one
// vector per input, in input order.
type Client interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// CallRecorder observes the outcome of each provider call.
type CallRecorder interface {
	ModelCall(service, status string)
}

// Service provides embedding generation on top of a provider client
type Service struct {
	client    Client
	exec      *resilience.Executor
	recorder  CallRecorder
	batchSize int
	timeout   time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithRecorder reports every provider call to r.
func WithRecorder(r CallRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithExecutor routes provider calls through retry and breaker policy.
func WithExecutor(exec *resilience.Executor) Option {
	return func(s *Service) { s.exec = exec }
}

// NewService creates a new embedding service for the configured provider
func NewService(cfg *config.EmbeddingConfig, opts ...Option) (*Service, error) {
	var client Client
	var err error

	switch cfg.Provider {
	case "tei":
		client, err = NewTEIClient(cfg)
	case "openai":
		client, err = NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	return NewServiceWithClient(client, cfg.BatchSize, cfg.Timeout, opts...), nil
}

// NewServiceWithClient wraps an existing client.
func NewServiceWithClient(client Client, batchSize int, timeout time.Duration, opts ...Option) *Service {
	if batchSize <= 0 {
		batchSize = 32
	}
	s := &Service{
		client:    client,
		batchSize: batchSize,
		timeout:   timeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.exec == nil {
		s.exec = resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 1})
	}
	return s
}

// Embed generates an embedding for a single text
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts. Inputs larger than the
// provider batch size are split; the result always has len(texts) vectors.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("cannot embed empty text at position %d", i)
		}
	}

	results := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += s.batchSize {
		end := min(i+s.batchSize, len(texts))

		vectors, err := s.call(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch %d-%d: %w", i, end, err)
		}
		results = append(results, vectors...)
	}

	return results, nil
}

func (s *Service) call(ctx context.Context, batch []string) ([][]float32, error) {
	var vectors [][]float32
	err := s.exec.Execute(ctx, "embedding", func(ctx context.Context) error {
		callCtx := ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		out, err := s.client.EmbedBatch(callCtx, batch)
		if err != nil {
			return err
		}
		vectors = out
		return nil
	}, resilience.ClassifyHTTP)

	if err == nil {
		err = s.check(batch, vectors)
	}
	s.record(err)
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

func (s *Service) check(batch []string, vectors [][]float32) error {
	if len(vectors) != len(batch) {
		return fmt.Errorf("expected %d embeddings, got %d", len(batch), len(vectors))
	}
	dims := s.client.Dimensions()
	for i, v := range vectors {
		if dims > 0 && len(v) != dims {
			return fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), dims)
		}
	}
	return nil
}

func (s *Service) record(err error) {
	if s.recorder == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.recorder.ModelCall("embedding", status)
}

// Dimensions returns the dimension of the embeddings
func (s *Service) Dimensions() int {
	return s.client.Dimensions()
}

// Similarity computes cosine similarity between two vectors
func Similarity(a, b []float32) float32 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("vector dimension mismatch: %d vs %d", len(a), len(b)))
	}

	var dotProduct float32
	var normA float32
	var normB float32

	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

// SquaredL2 computes the squared Euclidean distance between two vectors
func SquaredL2(a, b []float32) float32 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("vector dimension mismatch: %d vs %d", len(a), len(b)))
	}

	var sum float32
	for i := 0; i < len(a); i++ {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

// L2Distance computes L2 (Euclidean) distance between two vectors
func L2Distance(a, b []float32) float32 {
	return float32(math.Sqrt(float64(SquaredL2(a, b))))
}
