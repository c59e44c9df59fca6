package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/DreamCats/caseindex/internal/store"
)

// QueryEmbedder turns a query into a vector.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DenseSearcher finds nearest chunk vectors.
type DenseSearcher interface {
	Search(query []float32, k int) ([]store.DenseHit, error)
}

// LexicalSearcher finds keyword matches over chunk text.
type LexicalSearcher interface {
	Search(query string, k int, op store.Operator) ([]store.LexicalHit, error)
}

// HybridRetriever combines dense and lexical search over one chunk id space
type HybridRetriever struct {
	embedder QueryEmbedder
	dense    DenseSearcher
	lexical  LexicalSearcher
	opts     Options
}

// NewHybridRetriever creates a new hybrid retriever
func NewHybridRetriever(embedder QueryEmbedder, dense DenseSearcher, lexical LexicalSearcher, opts Options) *HybridRetriever {
	return &HybridRetriever{
		embedder: embedder,
		dense:    dense,
		lexical:  lexical,
		opts:     opts.withDefaults(),
	}
}

// Options returns the effective fusion options.
func (h *HybridRetriever) Options() Options { return h.opts }

// Retrieve returns up to topK fused candidates for query. Dense and lexical
// searches run concurrently; if either fails the retrieval fails.
func (h *HybridRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Candidate, error) {
	if topK <= 0 {
		return nil, nil
	}

	var denseHits []store.DenseHit
	var lexicalHits []store.LexicalHit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vector, err := h.embedder.Embed(gctx, query)
		if err != nil {
			return fmt.Errorf("failed to embed query: %w", err)
		}
		hits, err := h.dense.Search(vector, topK)
		if err != nil {
			return fmt.Errorf("dense search failed: %w", err)
		}
		denseHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := h.lexical.Search(query, topK, h.opts.Operator)
		if err != nil {
			return fmt.Errorf("lexical search failed: %w", err)
		}
		lexicalHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Fuse(denseHits, lexicalHits, topK, h.opts), nil
}
