// Package rerank reorders first-stage candidates with a pairwise relevance model.
package rerank

import (
	"context"
	"fmt"
	"sort"

	"github.com/DreamCats/caseindex/internal/retrieval"
	"github.com/DreamCats/caseindex/internal/store"
)

// DefaultSnippetSize is the snippet length in characters.
const DefaultSnippetSize = 400

// TextMode selects what text a result carries.
type TextMode int

const (
	// TextSnippet truncates passages to the snippet size.
	TextSnippet TextMode = iota
	// TextFull carries the whole chunk text.
	TextFull
)

// ChunkLookup resolves chunk ids to their text and source.
type ChunkLookup interface {
	Chunk(id int) (store.Chunk, error)
}

// RankedResult is one final, reranked passage.
type RankedResult struct {
	Rank        int     `json:"rank"`
	ChunkID     int     `json:"chunk_id"`
	Source      string  `json:"source"`
	BaseScore   float64 `json:"base_score"`
	RerankScore float64 `json:"rerank_score"`
	Text        string  `json:"text"`
}

// Reranker scores candidates against the query and keeps the best topN.
type Reranker struct {
	scorer      Scorer
	chunks      ChunkLookup
	snippetSize int
}

// NewReranker creates a reranker; a non-positive snippetSize uses the default.
func NewReranker(scorer Scorer, chunks ChunkLookup, snippetSize int) *Reranker {
	if snippetSize <= 0 {
		snippetSize = DefaultSnippetSize
	}
	return &Reranker{scorer: scorer, chunks: chunks, snippetSize: snippetSize}
}

// Rerank issues one batched relevance call for all candidates, orders them by
// relevance descending (ties by ascending chunk id) and returns the first topN
// with 1-based ranks. A failed relevance call fails the whole rerank.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []retrieval.Candidate, topN int, mode TextMode) ([]RankedResult, error) {
	if len(candidates) == 0 || topN <= 0 {
		return []RankedResult{}, nil
	}

	chunks := make([]store.Chunk, len(candidates))
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		chunk, err := r.chunks.Chunk(c.ID)
		if err != nil {
			return nil, fmt.Errorf("resolve candidate %d: %w", c.ID, err)
		}
		chunks[i] = chunk
		texts[i] = chunk.Text
	}

	scores, err := r.scorer.Score(ctx, query, texts)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("relevance service returned %d scores for %d passages", len(scores), len(candidates))
	}

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		i, j := order[a], order[b]
		if scores[i] != scores[j] {
			return scores[i] > scores[j]
		}
		return candidates[i].ID < candidates[j].ID
	})

	if len(order) > topN {
		order = order[:topN]
	}

	results := make([]RankedResult, len(order))
	for rank, i := range order {
		text := chunks[i].Text
		if mode == TextSnippet {
			text = Snippet(text, r.snippetSize)
		}
		results[rank] = RankedResult{
			Rank:        rank + 1,
			ChunkID:     candidates[i].ID,
			Source:      chunks[i].Source,
			BaseScore:   candidates[i].Score,
			RerankScore: scores[i],
			Text:        text,
		}
	}
	return results, nil
}

// Snippet returns the first size characters of text, with "..." appended only
// when something was cut. Short passages come back unchanged rather than with
// an unconditional trailing "...".
func Snippet(text string, size int) string {
	if size <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= size {
		return text
	}
	return string(runes[:size]) + "..."
}
