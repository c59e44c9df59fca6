package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DreamCats/caseindex/internal/config"
	"github.com/DreamCats/caseindex/internal/retrieval"
	"github.com/DreamCats/caseindex/internal/store"
)

type chunkTable []store.Chunk

func (c chunkTable) Chunk(id int) (store.Chunk, error) {
	if id < 0 || id >= len(c) {
		return store.Chunk{}, fmt.Errorf("no chunk %d", id)
	}
	return c[id], nil
}

type scoreFunc func(query string, texts []string) ([]float64, error)

func (f scoreFunc) Score(_ context.Context, query string, texts []string) ([]float64, error) {
	return f(query, texts)
}

func testChunks() chunkTable {
	return chunkTable{
		{ID: 0, Text: "zero", Source: "a.xml"},
		{ID: 1, Text: "one", Source: "a.xml"},
		{ID: 2, Text: strings.Repeat("x", 450), Source: "b.xml"},
		{ID: 3, Text: "three", Source: "c.xml"},
	}
}

func TestRerankInvertsFirstStageOrder(t *testing.T) {
	candidates := []retrieval.Candidate{{ID: 0, Score: 0.9}, {ID: 1, Score: 0.8}, {ID: 3, Score: 0.1}}
	calls := 0
	scorer := scoreFunc(func(query string, texts []string) ([]float64, error) {
		calls++
		if query != "bail" {
			t.Errorf("query = %q", query)
		}
		// The lowest base score gets the highest relevance.
		return []float64{-2, 1.5, 7}, nil
	})

	r := NewReranker(scorer, testChunks(), 0)
	got, err := r.Rerank(context.Background(), "bail", candidates, 3, TextSnippet)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("expected one batched call, got %d", calls)
	}

	want := []RankedResult{
		{Rank: 1, ChunkID: 3, Source: "c.xml", BaseScore: 0.1, RerankScore: 7, Text: "three"},
		{Rank: 2, ChunkID: 1, Source: "a.xml", BaseScore: 0.8, RerankScore: 1.5, Text: "one"},
		{Rank: 3, ChunkID: 0, Source: "a.xml", BaseScore: 0.9, RerankScore: -2, Text: "zero"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("result %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRerankTopNAndTies(t *testing.T) {
	candidates := []retrieval.Candidate{{ID: 3}, {ID: 1}, {ID: 0}}
	scorer := scoreFunc(func(string, []string) ([]float64, error) {
		return []float64{5, 5, 1}, nil
	})

	got, err := NewReranker(scorer, testChunks(), 0).Rerank(context.Background(), "q", candidates, 2, TextFull)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ChunkID != 1 || got[1].ChunkID != 3 {
		t.Errorf("got %+v, want chunks [1 3]", got)
	}
}

func TestRerankTextModes(t *testing.T) {
	candidates := []retrieval.Candidate{{ID: 2}}
	scorer := scoreFunc(func(_ string, texts []string) ([]float64, error) {
		if len(texts[0]) != 450 {
			t.Errorf("scorer must see full text, got %d chars", len(texts[0]))
		}
		return []float64{1}, nil
	})
	r := NewReranker(scorer, testChunks(), 400)

	snip, err := r.Rerank(context.Background(), "q", candidates, 3, TextSnippet)
	if err != nil {
		t.Fatal(err)
	}
	if want := strings.Repeat("x", 400) + "..."; snip[0].Text != want {
		t.Errorf("snippet length = %d, want 403", len(snip[0].Text))
	}

	full, err := r.Rerank(context.Background(), "q", candidates, 3, TextFull)
	if err != nil {
		t.Fatal(err)
	}
	if len(full[0].Text) != 450 {
		t.Errorf("full text length = %d, want 450", len(full[0].Text))
	}
}

func TestRerankEmptyAndFailure(t *testing.T) {
	errDown := errors.New("connection refused")
	scorer := scoreFunc(func(string, []string) ([]float64, error) { return nil, errDown })
	r := NewReranker(scorer, testChunks(), 0)

	got, err := r.Rerank(context.Background(), "q", nil, 3, TextSnippet)
	if err != nil || len(got) != 0 {
		t.Errorf("empty candidates: got %v, %v", got, err)
	}

	if _, err := r.Rerank(context.Background(), "q", []retrieval.Candidate{{ID: 0}}, 3, TextSnippet); !errors.Is(err, errDown) {
		t.Errorf("expected relevance failure, got %v", err)
	}
}

func TestRerankScoreCountMismatch(t *testing.T) {
	scorer := scoreFunc(func(string, []string) ([]float64, error) { return []float64{1}, nil })
	r := NewReranker(scorer, testChunks(), 0)
	if _, err := r.Rerank(context.Background(), "q", []retrieval.Candidate{{ID: 0}, {ID: 1}}, 3, TextSnippet); err == nil {
		t.Fatal("expected score count mismatch error")
	}
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		text string
		size int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"eleven chars", 10, "eleven cha..."},
		{"héllo wörld", 5, "héllo..."},
	}
	for _, tt := range tests {
		if got := Snippet(tt.text, tt.size); got != tt.want {
			t.Errorf("Snippet(%q, %d) = %q, want %q", tt.text, tt.size, got, tt.want)
		}
	}
}

func TestTEIServiceScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req TEIRerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if !req.RawScores || req.Query != "duty of care" {
			t.Errorf("unexpected request %+v", req)
		}
		// TEI returns results sorted by score, not by input index.
		_ = json.NewEncoder(w).Encode([]TEIRerankScore{{Index: 1, Score: 4.2}, {Index: 0, Score: -1.3}})
	}))
	defer srv.Close()

	rec := &recorder{}
	svc, err := NewService(&config.RerankConfig{Provider: "tei", Endpoint: srv.URL, Timeout: time.Second}, WithRecorder(rec))
	if err != nil {
		t.Fatal(err)
	}
	scores, err := svc.Score(context.Background(), "duty of care", []string{"first", "second"})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(scores) != 2 || scores[0] != -1.3 || scores[1] != 4.2 {
		t.Errorf("scores = %v, want [-1.3 4.2]", scores)
	}
	if rec.calls["ok"] != 1 {
		t.Errorf("recorder = %v", rec.calls)
	}
}

func TestTEIServiceBadIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]TEIRerankScore{{Index: 0, Score: 1}, {Index: 0, Score: 2}})
	}))
	defer srv.Close()

	client, err := NewTEIClient(&config.RerankConfig{Endpoint: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Score(context.Background(), "q", []string{"a", "b"}); err == nil {
		t.Fatal("expected duplicate index error")
	}
}

type recorder struct {
	calls map[string]int
}

func (r *recorder) ModelCall(_ string, status string) {
	if r.calls == nil {
		r.calls = map[string]int{}
	}
	r.calls[status]++
}
