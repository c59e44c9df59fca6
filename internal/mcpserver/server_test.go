package mcpserver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DreamCats/caseindex/internal/config"
	"github.com/DreamCats/caseindex/internal/rerank"
	"github.com/DreamCats/caseindex/internal/retrieval"
	"github.com/DreamCats/caseindex/internal/search"
	"github.com/DreamCats/caseindex/internal/store"
)

type allRetriever struct{ n int }

func (r allRetriever) Retrieve(_ context.Context, _ string, topK int) ([]retrieval.Candidate, error) {
	var out []retrieval.Candidate
	for i := 0; i < r.n && i < topK; i++ {
		out = append(out, retrieval.Candidate{ID: i, Score: 1 / float64(i+1)})
	}
	return out, nil
}

// lengthScorer prefers longer passages.
type lengthScorer struct{}

func (lengthScorer) Score(_ context.Context, _ string, texts []string) ([]float64, error) {
	out := make([]float64, len(texts))
	for i, t := range texts {
		out[i] = float64(len(t))
	}
	return out, nil
}

func publish(t *testing.T, root string, texts ...string) {
	t.Helper()
	art := store.Artifacts{DocumentCount: 1, Model: "fake"}
	for i, text := range texts {
		art.Chunks = append(art.Chunks, store.Chunk{ID: i, Text: text, Source: "06_1.xml"})
		art.Vectors = append(art.Vectors, []float32{float32(i), 1})
	}
	if _, _, err := store.Publish(root, art, 0); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
}

func newTestServer(t *testing.T) (*Server, string, *int) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{}
	cfg.Index.Dir = root

	opens := 0
	open := func(cfg *config.Config) (*search.Engine, *store.Store, error) {
		st, err := store.Open(cfg.Index.Dir, store.MetricL2)
		if err != nil {
			return nil, nil, err
		}
		opens++
		engine := search.NewEngine(allRetriever{n: st.Len()}, rerank.NewReranker(lengthScorer{}, st, 0), nil, 20, 3)
		return engine, st, nil
	}
	s := New(cfg, "test", open)
	t.Cleanup(func() { s.Close() })
	return s, root, &opens
}

func TestSearchToolNotIndexed(t *testing.T) {
	s, _, _ := newTestServer(t)
	_, _, err := s.searchTool(context.Background(), nil, SearchInput{Query: "bail"})
	if !errors.Is(err, store.ErrNotIndexed) {
		t.Fatalf("expected ErrNotIndexed, got %v", err)
	}
}

func TestSearchToolValidation(t *testing.T) {
	s, _, _ := newTestServer(t)
	if _, _, err := s.searchTool(context.Background(), nil, SearchInput{}); err == nil {
		t.Error("expected error for empty query")
	}
	if _, _, err := s.searchTool(context.Background(), nil, SearchInput{Query: "x", TopN: -1}); err == nil {
		t.Error("expected error for negative top_n")
	}
}

func TestSearchToolReloadsNewGeneration(t *testing.T) {
	s, root, opens := newTestServer(t)
	publish(t, root, "short", "a much longer passage")

	_, out, err := s.searchTool(context.Background(), nil, SearchInput{Query: "passage", TopN: 1})
	if err != nil {
		t.Fatalf("searchTool() error = %v", err)
	}
	if out.Count != 1 || out.Results[0].ChunkID != 1 || out.Results[0].File != "06_1.xml" || out.Candidates != 2 {
		t.Errorf("output = %+v", out)
	}

	if _, _, err := s.searchTool(context.Background(), nil, SearchInput{Query: "again"}); err != nil {
		t.Fatal(err)
	}
	if *opens != 1 {
		t.Errorf("same generation reopened: opens = %d", *opens)
	}

	publish(t, root, "one", "two", "the longest passage of all three")
	_, out, err = s.searchTool(context.Background(), nil, SearchInput{Query: "passage", TopN: 1})
	if err != nil {
		t.Fatal(err)
	}
	if *opens != 2 || out.Results[0].ChunkID != 2 || out.Candidates != 3 {
		t.Errorf("expected reload onto new generation: opens=%d output=%+v", *opens, out)
	}
}

func TestStatusTool(t *testing.T) {
	s, root, _ := newTestServer(t)

	_, out, err := s.statusTool(context.Background(), nil, StatusInput{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Indexed || !out.IsStale || !strings.Contains(out.StaleReason, "caseindex index") || out.IndexDir != root {
		t.Errorf("unindexed status = %+v", out)
	}

	publish(t, root, "alpha", "beta")
	_, out, err = s.statusTool(context.Background(), nil, StatusInput{})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Indexed || out.IsStale || out.Stats == nil || out.Stats.Chunks != 2 || out.Stats.Model != "fake" {
		t.Errorf("indexed status = %+v stats = %+v", out, out.Stats)
	}
	if out.Generation == "" || out.BuiltAt == "" {
		t.Errorf("missing generation details: %+v", out)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
