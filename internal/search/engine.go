// Package search answers queries end to end: hybrid retrieval, then reranking.
package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DreamCats/caseindex/internal/metrics"
	"github.com/DreamCats/caseindex/internal/rerank"
	"github.com/DreamCats/caseindex/internal/retrieval"
)

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("query is empty")

// Retriever produces fused first-stage candidates.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Candidate, error)
}

// Reranker orders candidates by pairwise relevance.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []retrieval.Candidate, topN int, mode rerank.TextMode) ([]rerank.RankedResult, error)
}

// Request is one search call. Zero TopK or TopN use the engine defaults.
type Request struct {
	Query    string `json:"query"`
	TopK     int    `json:"top_k,omitempty"`
	TopN     int    `json:"top_n,omitempty"`
	FullText bool   `json:"full_text,omitempty"`
}

// Response carries the final ranked passages.
type Response struct {
	QueryID    string                `json:"query_id"`
	Query      string                `json:"query"`
	Candidates int                   `json:"candidates"`
	Results    []rerank.RankedResult `json:"results"`
	TookMs     int64                 `json:"took_ms"`
}

// Engine wires retrieval and reranking
type Engine struct {
	retriever Retriever
	reranker  Reranker
	metrics   *metrics.Metrics
	topK      int
	topN      int
}

// NewEngine creates a search engine; m may be nil.
func NewEngine(retriever Retriever, reranker Reranker, m *metrics.Metrics, topK, topN int) *Engine {
	if topK <= 0 {
		topK = 20
	}
	if topN <= 0 {
		topN = 3
	}
	return &Engine{retriever: retriever, reranker: reranker, metrics: m, topK: topK, topN: topN}
}

// Search retrieves topK candidates and returns the best topN after reranking.
// No candidates is an empty response, not an error.
func (e *Engine) Search(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	query := strings.TrimSpace(req.Query)
	resp := Response{QueryID: uuid.NewString(), Query: query, Results: []rerank.RankedResult{}}

	if query == "" {
		e.metrics.SearchRequest("invalid")
		return resp, ErrEmptyQuery
	}

	topK := req.TopK
	if topK <= 0 {
		topK = e.topK
	}
	topN := req.TopN
	if topN <= 0 {
		topN = e.topN
	}
	mode := rerank.TextSnippet
	if req.FullText {
		mode = rerank.TextFull
	}

	stageStart := time.Now()
	candidates, err := e.retriever.Retrieve(ctx, query, topK)
	e.metrics.ObserveStage("retrieve", time.Since(stageStart))
	if err != nil {
		e.metrics.SearchRequest("error")
		log.Printf("[search] id=%s stage=retrieve err=%v", resp.QueryID, err)
		return resp, fmt.Errorf("retrieve: %w", err)
	}
	resp.Candidates = len(candidates)
	e.metrics.ObserveCandidates(len(candidates))

	if len(candidates) == 0 {
		resp.TookMs = time.Since(start).Milliseconds()
		e.metrics.SearchRequest("empty")
		log.Printf("[search] id=%s candidates=0 took=%dms", resp.QueryID, resp.TookMs)
		return resp, nil
	}

	stageStart = time.Now()
	results, err := e.reranker.Rerank(ctx, query, candidates, topN, mode)
	e.metrics.ObserveStage("rerank", time.Since(stageStart))
	if err != nil {
		e.metrics.SearchRequest("error")
		log.Printf("[search] id=%s stage=rerank err=%v", resp.QueryID, err)
		return resp, fmt.Errorf("rerank: %w", err)
	}

	resp.Results = results
	resp.TookMs = time.Since(start).Milliseconds()
	e.metrics.SearchRequest("ok")
	log.Printf("[search] id=%s candidates=%d results=%d took=%dms", resp.QueryID, resp.Candidates, len(results), resp.TookMs)
	return resp, nil
}
