// Package indexer turns a corpus into published retrieval artifacts.
package indexer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DreamCats/caseindex/internal/chunker"
	"github.com/DreamCats/caseindex/internal/corpus"
	"github.com/DreamCats/caseindex/internal/store"
)

// Document outcomes.
const (
	StatusIndexed = "indexed"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Embedder embeds a batch of texts, one vector per text in order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// SentenceReader extracts the ordered sentences of a document.
type SentenceReader func(doc corpus.Document) ([]string, error)

// Options configures a build.
type Options struct {
	MaxWords        int
	Workers         int
	Model           string
	KeepGenerations int
	Progress        ProgressReporter
	Logger          *IndexLogger
	Reader          SentenceReader
}

// DocumentResult is the outcome of one document.
type DocumentResult struct {
	ID     string
	Status string
	Chunks int
	Err    error
}

// BuildReport summarizes a build.
type BuildReport struct {
	Documents  int
	Indexed    int
	Skipped    int
	Failed     int
	Chunks     int
	Results    []DocumentResult
	Generation store.Generation
	Manifest   store.Manifest
	Duration   time.Duration
}

// Indexer handles the complete indexing pipeline
type Indexer struct {
	embedder Embedder
	opts     Options
}

// New creates an indexer.
func New(embedder Embedder, opts Options) *Indexer {
	if opts.MaxWords <= 0 {
		opts.MaxWords = chunker.DefaultMaxWords
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Reader == nil {
		opts.Reader = corpus.ReadSentences
	}
	return &Indexer{embedder: embedder, opts: opts}
}

type docOutput struct {
	texts   []string
	vectors [][]float32
	result  DocumentResult
}

// Collect reads, chunks and embeds every document and assembles the artifact
// set. Chunk ids are assigned in document order regardless of worker count.
// Per-document failures are recorded and skipped; only cancellation aborts.
func (x *Indexer) Collect(ctx context.Context, docs []corpus.Document) (store.Artifacts, BuildReport, error) {
	report := BuildReport{Documents: len(docs)}
	outputs := make([]docOutput, len(docs))

	progress := x.opts.Progress
	if progress != nil {
		progress.Start(len(docs))
	}
	var progressMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.opts.Workers)
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outputs[i] = x.processDocument(gctx, doc)
			if progress != nil {
				progressMu.Lock()
				progress.Increment()
				progressMu.Unlock()
			}
			return nil
		})
	}
	err := g.Wait()
	if progress != nil {
		progress.Finish()
	}
	if err != nil {
		return store.Artifacts{}, report, err
	}
	if err := ctx.Err(); err != nil {
		return store.Artifacts{}, report, err
	}

	art := store.Artifacts{Model: x.opts.Model}
	for _, out := range outputs {
		report.Results = append(report.Results, out.result)
		switch out.result.Status {
		case StatusIndexed:
			report.Indexed++
		case StatusSkipped:
			report.Skipped++
			continue
		case StatusFailed:
			report.Failed++
			continue
		}

		for j, text := range out.texts {
			art.Chunks = append(art.Chunks, store.Chunk{
				ID:     len(art.Chunks),
				Text:   text,
				Source: out.result.ID,
			})
			art.Vectors = append(art.Vectors, out.vectors[j])
		}
	}
	art.DocumentCount = report.Indexed
	report.Chunks = len(art.Chunks)
	return art, report, nil
}

func (x *Indexer) processDocument(ctx context.Context, doc corpus.Document) docOutput {
	result := DocumentResult{ID: doc.ID}

	sentences, err := x.opts.Reader(doc)
	if err != nil {
		return x.fail(result, "read", err)
	}

	texts := chunker.Chunk(sentences, x.opts.MaxWords)
	if len(texts) == 0 {
		result.Status = StatusSkipped
		x.opts.Logger.Warn("document produced no chunks", map[string]interface{}{"doc": doc.ID})
		log.Printf("Skipped %s: no sentences", doc.ID)
		return docOutput{result: result}
	}

	vectors, err := x.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return x.fail(result, "embed", err)
	}
	if len(vectors) != len(texts) {
		return x.fail(result, "embed", fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(texts)))
	}

	result.Status = StatusIndexed
	result.Chunks = len(texts)
	x.opts.Logger.Info("document indexed", map[string]interface{}{"doc": doc.ID, "chunks": len(texts)})
	return docOutput{texts: texts, vectors: vectors, result: result}
}

func (x *Indexer) fail(result DocumentResult, stage string, err error) docOutput {
	result.Status = StatusFailed
	result.Err = fmt.Errorf("%s: %w", stage, err)
	x.opts.Logger.Error("document failed", map[string]interface{}{"doc": result.ID, "stage": stage, "error": err})
	log.Printf("Error processing %s: %v", result.ID, result.Err)
	return docOutput{result: result}
}

// Build collects the corpus and publishes it as a new generation under root.
// Nothing is published when the corpus yields no chunks.
func (x *Indexer) Build(ctx context.Context, root string, docs []corpus.Document) (BuildReport, error) {
	start := time.Now()
	x.opts.Logger.Info("build started", map[string]interface{}{"documents": len(docs), "workers": x.opts.Workers, "index_dir": root})

	art, report, err := x.Collect(ctx, docs)
	if err != nil {
		report.Duration = time.Since(start)
		return report, err
	}
	if len(art.Chunks) == 0 {
		report.Duration = time.Since(start)
		x.opts.Logger.Error("build produced no chunks", nil)
		return report, store.ErrEmptyCorpus
	}

	gen, manifest, err := store.Publish(root, art, x.opts.KeepGenerations)
	report.Generation = gen
	report.Manifest = manifest
	report.Duration = time.Since(start)
	if err != nil {
		x.opts.Logger.Error("publish failed", map[string]interface{}{"error": err})
		return report, fmt.Errorf("publish artifacts: %w", err)
	}

	x.opts.Logger.Info("build finished", map[string]interface{}{
		"generation": gen.Name,
		"indexed":    report.Indexed,
		"skipped":    report.Skipped,
		"failed":     report.Failed,
		"chunks":     report.Chunks,
		"duration":   report.Duration,
	})
	return report, nil
}
