package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/DreamCats/caseindex/cmd/caseindex/internal"
	"github.com/DreamCats/caseindex/internal/config"
	"github.com/DreamCats/caseindex/internal/metrics"
	"github.com/DreamCats/caseindex/internal/report"
	"github.com/DreamCats/caseindex/internal/search"
)

// handleEval implements the eval subcommand
func handleEval(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	queriesPath := fs.String("queries", "", "File with one query per line (default: built-in legal questions)")
	output := fs.String("output", report.DefaultOutput, "Text report path")
	xlsxPath := fs.String("xlsx", "", "Also write an xlsx workbook to this path")
	topK := fs.Int("k", cfg.Search.TopK, "Candidates retrieved before reranking")
	topN := fs.Int("n", cfg.Search.TopN, "Results kept per query")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    caseindex eval [options]

DESCRIPTION:
    Run a batch of queries and write, for each query, the reranked passages
    with their file, base score, rerank score and full text.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    caseindex eval
    caseindex eval -queries my-questions.txt -output run1.txt -xlsx run1.xlsx
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	queries := report.DefaultQueries
	if *queriesPath != "" {
		loaded, err := report.LoadQueries(*queriesPath)
		if err != nil {
			return err
		}
		queries = loaded
	}

	engine, st, err := search.Open(cfg, metrics.New())
	if err != nil {
		return err
	}
	defer st.Close()

	results, summary, err := report.Run(ctx, engine, queries, *topK, *topN)
	if err != nil {
		return err
	}

	textPath, err := internal.ResolveOutput(*output)
	if err != nil {
		return err
	}
	if err := report.WriteTextFile(textPath, results); err != nil {
		return err
	}
	if *xlsxPath != "" {
		if err := report.WriteXLSX(*xlsxPath, results); err != nil {
			return err
		}
		fmt.Printf("Workbook saved to '%s'\n", *xlsxPath)
	}

	fmt.Printf("\nRetrieval complete! Results saved to '%s'\n", textPath)
	fmt.Printf("Queries: %d   Failed: %d   Without results: %d   Duration: %v\n",
		summary.Queries, summary.Failed, summary.Empty, summary.Duration.Round(time.Millisecond))
	return nil
}
