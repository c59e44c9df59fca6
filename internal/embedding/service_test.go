package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DreamCats/caseindex/internal/config"
	"github.com/DreamCats/caseindex/internal/resilience"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float32
	}{
		{
			name:     "identical vectors",
			a:        []float32{1, 2, 3},
			b:        []float32{1, 2, 3},
			expected: 1.0,
		},
		{
			name:     "orthogonal vectors",
			a:        []float32{1, 0, 0},
			b:        []float32{0, 1, 0},
			expected: 0.0,
		},
		{
			name:     "opposite vectors",
			a:        []float32{1, 1, 1},
			b:        []float32{-1, -1, -1},
			expected: -1.0,
		},
		{
			name:     "similar vectors",
			a:        []float32{1, 2, 3},
			b:        []float32{1.1, 2.1, 3.1},
			expected: 0.999, // Approximately
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Similarity(tt.a, tt.b)
			diff := result - tt.expected
			if diff < 0 {
				diff = -diff
			}
			if diff > 0.001 {
				t.Errorf("Similarity() = %v, want %v (diff: %v)", result, tt.expected, diff)
			}
		})
	}
}

func TestL2Distance(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float32
	}{
		{
			name:     "identical vectors",
			a:        []float32{1, 2, 3},
			b:        []float32{1, 2, 3},
			expected: 0.0,
		},
		{
			name:     "different vectors",
			a:        []float32{0, 0, 0},
			b:        []float32{3, 4, 0},
			expected: 5.0,
		},
		{
			name:     "unit distance",
			a:        []float32{0, 0},
			b:        []float32{1, 0},
			expected: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := L2Distance(tt.a, tt.b)
			diff := result - tt.expected
			if diff < 0 {
				diff = -diff
			}
			if diff > 0.001 {
				t.Errorf("L2Distance() = %v, want %v (diff: %v)", result, tt.expected, diff)
			}
		})
	}
}

func TestSimilarityPanic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for dimension mismatch")
		}
	}()

	Similarity([]float32{1, 2}, []float32{1, 2, 3})
}

func TestL2DistancePanic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for dimension mismatch")
		}
	}()

	L2Distance([]float32{1, 2}, []float32{1, 2, 3})
}

func TestSquaredL2(t *testing.T) {
	if got := SquaredL2([]float32{0, 0}, []float32{3, 4}); got != 25 {
		t.Errorf("SquaredL2() = %v, want 25", got)
	}
}

type fakeClient struct {
	dims    int
	calls   [][]string
	respond func(texts []string) ([][]float32, error)
}

func (f *fakeClient) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, append([]string(nil), texts...))
	if f.respond != nil {
		return f.respond(texts)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func (f *fakeClient) Dimensions() int { return f.dims }

type countingRecorder struct {
	ok, failed int
}

func (r *countingRecorder) ModelCall(service, status string) {
	if status == "ok" {
		r.ok++
	} else {
		r.failed++
	}
}

func TestServiceEmbedBatchSplitsAndPreservesOrder(t *testing.T) {
	client := &fakeClient{dims: 2}
	rec := &countingRecorder{}
	svc := NewServiceWithClient(client, 2, time.Second, WithRecorder(rec))

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := svc.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if int(v[0]) != len(texts[i]) {
			t.Errorf("vector %d = %v, does not belong to %q", i, v, texts[i])
		}
	}
	if len(client.calls) != 3 {
		t.Errorf("expected 3 provider calls, got %d", len(client.calls))
	}
	if rec.ok != 3 || rec.failed != 0 {
		t.Errorf("recorder ok=%d failed=%d", rec.ok, rec.failed)
	}
}

func TestServiceRejectsEmptyText(t *testing.T) {
	svc := NewServiceWithClient(&fakeClient{dims: 2}, 8, 0)
	if _, err := svc.EmbedBatch(context.Background(), []string{"ok", ""}); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestServiceCountMismatch(t *testing.T) {
	client := &fakeClient{dims: 2, respond: func(texts []string) ([][]float32, error) {
		return [][]float32{{1, 2}}, nil
	}}
	rec := &countingRecorder{}
	svc := NewServiceWithClient(client, 8, 0, WithRecorder(rec))

	if _, err := svc.EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected count mismatch error")
	}
	if rec.failed != 1 {
		t.Errorf("expected one failed call, got %d", rec.failed)
	}
}

func TestServiceDimensionMismatch(t *testing.T) {
	client := &fakeClient{dims: 3}
	svc := NewServiceWithClient(client, 8, 0)
	if _, err := svc.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestServiceTimeoutSurfacesDeadline(t *testing.T) {
	client := &slowClient{}
	svc := NewServiceWithClient(client, 8, 10*time.Millisecond)

	_, err := svc.Embed(context.Background(), "slow")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

type slowClient struct{}

func (slowClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowClient) Dimensions() int { return 0 }

func TestTEIClientEmbed(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("model loading"))
			return
		}
		var req TEIEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !req.Normalize {
			t.Errorf("expected normalize=true")
		}
		out := make([][]float32, len(req.Inputs))
		for i := range req.Inputs {
			out[i] = []float32{float32(i), 0.5, 0.25}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	cfg := &config.EmbeddingConfig{Provider: "tei", Endpoint: srv.URL + "/", Dimensions: 3, BatchSize: 16, Normalize: true}
	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
	})
	svc, err := NewService(cfg, WithExecutor(exec))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	vectors, err := svc.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(vectors) != 2 || vectors[1][0] != 1 || len(vectors[0]) != 3 {
		t.Errorf("unexpected vectors: %v", vectors)
	}
	if calls.Load() != 2 {
		t.Errorf("expected retry after 503, got %d calls", calls.Load())
	}
}

func TestTEIClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "input too long", http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	client, err := NewTEIClient(&config.EmbeddingConfig{Endpoint: srv.URL, Dimensions: 3})
	if err != nil {
		t.Fatal(err)
	}
	_, err = client.EmbedBatch(context.Background(), []string{"x"})

	var statusErr *resilience.HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 status error, got %v", err)
	}
	if !strings.Contains(err.Error(), "input too long") {
		t.Errorf("error should carry response body: %v", err)
	}
}

func TestNewServiceUnknownProvider(t *testing.T) {
	if _, err := NewService(&config.EmbeddingConfig{Provider: "cohere"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
