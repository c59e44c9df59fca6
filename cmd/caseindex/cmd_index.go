package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/DreamCats/caseindex/cmd/caseindex/internal"
	"github.com/DreamCats/caseindex/internal/config"
	"github.com/DreamCats/caseindex/internal/corpus"
	"github.com/DreamCats/caseindex/internal/embedding"
	"github.com/DreamCats/caseindex/internal/indexer"
	"github.com/DreamCats/caseindex/internal/resilience"
)

// handleIndex implements the index subcommand
func handleIndex(ctx context.Context, cfg *config.Config, corpusName string, args []string) error {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	var include, exclude internal.StringList
	workers := fs.Int("workers", cfg.Index.Workers, "Parallel document workers")
	keep := fs.Int("keep", cfg.Index.KeepGenerations, "Generations kept on disk after publishing")
	noProgress := fs.Bool("no-progress", false, "Disable the progress bar")
	verbose := fs.Bool("v", false, "Print the outcome of every document")
	fs.Var(&include, "include", "Include pattern (repeatable, replaces corpus.include)")
	fs.Var(&exclude, "exclude", "Exclude pattern (repeatable, added to corpus.exclude)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    caseindex index [options]

DESCRIPTION:
    Build a new index generation for the corpus.
    This will:
      1. Read the sentences of every selected document
      2. Group them into chunks of at most chunker.max_words words
      3. Embed every chunk
      4. Write the chunk store, vector store and keyword index
      5. Switch readers to the new generation

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # Index the configured corpus
    caseindex index

    # Only 2008 decisions, four workers
    caseindex index -include "2008/**/*.xml" -workers 4

    # Print every document outcome
    caseindex index -v
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(cfg.Corpus.Path); err != nil {
		return fmt.Errorf("corpus path %s: %w", cfg.Corpus.Path, err)
	}
	indexDir, err := cfg.IndexDir()
	if err != nil {
		return err
	}

	filter := corpus.Filter{Include: cfg.Corpus.Include, Exclude: cfg.Corpus.Exclude}
	if len(include) > 0 {
		filter.Include = include
	}
	filter.Exclude = append(filter.Exclude, exclude...)

	docs, err := corpus.Walk(cfg.Corpus.Path, filter)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no documents under %s match %v", cfg.Corpus.Path, filter.Include)
	}

	fmt.Printf("Building index for: %s\n", cfg.Corpus.Path)
	fmt.Printf("Documents: %d   Index: %s\n\n", len(docs), indexDir)

	exec := resilience.NewExecutor(resilience.FromConfig(cfg.Resilience))
	embedSvc, err := embedding.NewService(&cfg.Embedding, embedding.WithExecutor(exec))
	if err != nil {
		return err
	}

	var indexLog *indexer.IndexLogger
	if logDir, err := internal.LogDir(); err == nil {
		indexLog, err = indexer.OpenIndexLogger(logDir, corpusName)
		if err != nil {
			log.Printf("Warning: failed to open index log: %v", err)
		}
	}
	defer indexLog.Close()

	idx := indexer.New(embedSvc, indexer.Options{
		MaxWords:        cfg.Chunker.MaxWords,
		Workers:         *workers,
		Model:           cfg.Embedding.Model,
		KeepGenerations: *keep,
		Progress:        indexer.NewProgress(!*noProgress && indexer.DefaultProgressEnabled()),
		Logger:          indexLog,
	})

	report, err := idx.Build(ctx, indexDir, docs)
	if *verbose || report.Failed > 0 {
		printDocumentResults(report, *verbose)
	}
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Indexing completed successfully!")
	fmt.Printf("\nDuration:   %v\n", report.Duration.Round(time.Millisecond))
	fmt.Printf("Generation: %s\n", report.Generation.Name)
	fmt.Println("\nStatistics:")
	fmt.Printf("   Documents: %6d\n", report.Documents)
	fmt.Printf("   Indexed:   %6d\n", report.Indexed)
	fmt.Printf("   Skipped:   %6d\n", report.Skipped)
	fmt.Printf("   Failed:    %6d\n", report.Failed)
	fmt.Printf("   Chunks:    %6d\n", report.Chunks)
	if path := indexLog.Path(); path != "" {
		fmt.Printf("\nIndex log: %s\n", path)
	}
	return nil
}

func printDocumentResults(report indexer.BuildReport, all bool) {
	for _, r := range report.Results {
		switch {
		case r.Status == indexer.StatusFailed:
			fmt.Printf("  FAILED  %s: %v\n", r.ID, r.Err)
		case !all:
		case r.Status == indexer.StatusSkipped:
			fmt.Printf("  skipped %s (no sentences)\n", r.ID)
		default:
			fmt.Printf("  indexed %s (%d chunks)\n", r.ID, r.Chunks)
		}
	}
}
