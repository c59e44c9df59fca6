package search

import (
	"fmt"

	"github.com/DreamCats/caseindex/internal/config"
	"github.com/DreamCats/caseindex/internal/embedding"
	"github.com/DreamCats/caseindex/internal/metrics"
	"github.com/DreamCats/caseindex/internal/rerank"
	"github.com/DreamCats/caseindex/internal/resilience"
	"github.com/DreamCats/caseindex/internal/retrieval"
	"github.com/DreamCats/caseindex/internal/store"
)

// Open loads the published artifacts and builds an engine from configuration.
// The caller closes the returned store.
func Open(cfg *config.Config, m *metrics.Metrics) (*Engine, *store.Store, error) {
	indexDir, err := cfg.IndexDir()
	if err != nil {
		return nil, nil, err
	}
	metric, err := store.ParseMetric(cfg.Retrieval.Metric)
	if err != nil {
		return nil, nil, err
	}
	operator, err := store.ParseOperator(cfg.Retrieval.Operator)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(indexDir, metric)
	if err != nil {
		return nil, nil, err
	}

	exec := resilience.NewExecutor(resilience.FromConfig(cfg.Resilience))

	embedSvc, err := embedding.NewService(&cfg.Embedding, embedding.WithExecutor(exec), embedding.WithRecorder(m))
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	if dims := st.Manifest().Dimensions; dims != embedSvc.Dimensions() {
		st.Close()
		return nil, nil, fmt.Errorf("%w: index built with %d dimensions, embedding.dimensions is %d",
			store.ErrStaleArtifacts, dims, embedSvc.Dimensions())
	}

	rerankSvc, err := rerank.NewService(&cfg.Rerank, rerank.WithExecutor(exec), rerank.WithRecorder(m))
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	retriever := retrieval.NewHybridRetriever(embedSvc, st.Dense(), st.Lexical(), retrieval.Options{
		DenseWeight:   cfg.Retrieval.DenseWeight,
		LexicalWeight: cfg.Retrieval.LexicalWeight,
		Normalize:     retrieval.Normalization(cfg.Retrieval.Normalize),
		Operator:      operator,
	})
	reranker := rerank.NewReranker(rerankSvc, st, cfg.Search.SnippetSize)

	return NewEngine(retriever, reranker, m, cfg.Search.TopK, cfg.Search.TopN), st, nil
}
