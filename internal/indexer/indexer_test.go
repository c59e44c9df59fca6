package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/DreamCats/caseindex/internal/corpus"
	"github.com/DreamCats/caseindex/internal/store"
)

// hashEmbedder maps a text to a vector derived from its length and first byte.
type hashEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  map[string]bool
}

func (h *hashEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if h.fail[text] {
			return nil, errors.New("embedding service returned 500")
		}
		out[i] = []float32{float32(len(text)), float32(text[0])}
	}
	return out, nil
}

func fakeReader(docs map[string][]string) SentenceReader {
	return func(doc corpus.Document) ([]string, error) {
		sentences, ok := docs[doc.ID]
		if !ok {
			return nil, fmt.Errorf("open %s: no such file", doc.ID)
		}
		return sentences, nil
	}
}

func documents(ids ...string) []corpus.Document {
	out := make([]corpus.Document, len(ids))
	for i, id := range ids {
		out[i] = corpus.Document{ID: id, Path: "/corpus/" + id}
	}
	return out
}

func TestCollectAlignsIDs(t *testing.T) {
	reader := fakeReader(map[string][]string{
		"a.xml": {"one two three", "four five six", "seven"},
		"b.xml": {},
		"c.xml": {"alpha beta"},
	})

	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			emb := &hashEmbedder{}
			x := New(emb, Options{MaxWords: 4, Workers: workers, Reader: reader})

			art, report, err := x.Collect(context.Background(), documents("a.xml", "b.xml", "c.xml", "missing.xml"))
			if err != nil {
				t.Fatalf("Collect() error = %v", err)
			}

			wantTexts := []string{"one two three", "four five six seven", "alpha beta"}
			wantSources := []string{"a.xml", "a.xml", "c.xml"}
			var texts, sources []string
			for i, c := range art.Chunks {
				if c.ID != i {
					t.Errorf("chunk %d has id %d", i, c.ID)
				}
				texts = append(texts, c.Text)
				sources = append(sources, c.Source)
				if want := []float32{float32(len(c.Text)), float32(c.Text[0])}; !reflect.DeepEqual(art.Vectors[i], want) {
					t.Errorf("vector %d does not belong to chunk %q", i, c.Text)
				}
			}
			if !reflect.DeepEqual(texts, wantTexts) || !reflect.DeepEqual(sources, wantSources) {
				t.Errorf("chunks = %q sources = %q", texts, sources)
			}

			if report.Indexed != 2 || report.Skipped != 1 || report.Failed != 1 || report.Chunks != 3 {
				t.Errorf("report = %+v", report)
			}
			if art.DocumentCount != 2 {
				t.Errorf("DocumentCount = %d, want 2", art.DocumentCount)
			}
			if emb.calls != 2 {
				t.Errorf("expected one embed call per non-empty document, got %d", emb.calls)
			}
		})
	}
}

func TestCollectSkipsEmbedFailure(t *testing.T) {
	reader := fakeReader(map[string][]string{
		"a.xml": {"good text"},
		"b.xml": {"broken text"},
		"c.xml": {"more text"},
	})
	emb := &hashEmbedder{fail: map[string]bool{"broken text": true}}
	x := New(emb, Options{Reader: reader})

	art, report, err := x.Collect(context.Background(), documents("a.xml", "b.xml", "c.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(art.Chunks) != 2 || art.Chunks[1].Source != "c.xml" || art.Chunks[1].ID != 1 {
		t.Errorf("chunks = %+v", art.Chunks)
	}
	if report.Results[1].Status != StatusFailed || report.Results[1].Err == nil {
		t.Errorf("b.xml result = %+v", report.Results[1])
	}
}

func TestCollectCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	x := New(&hashEmbedder{}, Options{Reader: fakeReader(map[string][]string{"a.xml": {"x"}})})
	if _, _, err := x.Collect(ctx, documents("a.xml")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBuildPublishes(t *testing.T) {
	root := t.TempDir()
	logger, err := OpenIndexLogger(filepath.Join(root, "logs"), "test")
	if err != nil {
		t.Fatal(err)
	}

	reader := fakeReader(map[string][]string{
		"a.xml": {"The tenant must give notice."},
		"b.xml": {},
	})
	x := New(&hashEmbedder{}, Options{Reader: reader, Model: "fake", KeepGenerations: 2, Logger: logger})

	report, err := x.Build(context.Background(), filepath.Join(root, "index"), documents("a.xml", "b.xml"))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	logger.Close()

	st, err := store.Open(filepath.Join(root, "index"), store.MetricL2)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	defer st.Close()

	// The empty document contributes nothing to the source list.
	if got := st.Sources(); !reflect.DeepEqual(got, []string{"a.xml"}) {
		t.Errorf("Sources() = %v", got)
	}
	if st.Manifest().Model != "fake" || st.Manifest().DocumentCount != 1 {
		t.Errorf("manifest = %+v", st.Manifest())
	}
	if report.Generation.Name != st.Generation().Name {
		t.Errorf("report generation %s, store opened %s", report.Generation.Name, st.Generation().Name)
	}

	data, err := os.ReadFile(logger.Path())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"document indexed chunks=1 doc=a.xml", "document produced no chunks doc=b.xml", "build finished"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("index log missing %q", want)
		}
	}
}

func TestBuildEmptyCorpus(t *testing.T) {
	root := t.TempDir()
	x := New(&hashEmbedder{}, Options{Reader: fakeReader(map[string][]string{"a.xml": nil})})

	_, err := x.Build(context.Background(), root, documents("a.xml"))
	if !errors.Is(err, store.ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
	if _, err := store.Current(root); !errors.Is(err, store.ErrNotIndexed) {
		t.Errorf("empty build must not publish: %v", err)
	}
}

type countingProgress struct {
	total, n int
	done     bool
}

func (p *countingProgress) Start(total int) { p.total = total }
func (p *countingProgress) Increment()      { p.n++ }
func (p *countingProgress) Finish()         { p.done = true }

func TestCollectReportsProgress(t *testing.T) {
	p := &countingProgress{}
	reader := fakeReader(map[string][]string{"a.xml": {"x"}, "b.xml": {"y"}})
	x := New(&hashEmbedder{}, Options{Reader: reader, Workers: 2, Progress: p})
	if _, _, err := x.Collect(context.Background(), documents("a.xml", "b.xml")); err != nil {
		t.Fatal(err)
	}
	if p.total != 2 || p.n != 2 || !p.done {
		t.Errorf("progress = %+v", p)
	}
}
