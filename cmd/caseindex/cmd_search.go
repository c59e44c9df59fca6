package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/DreamCats/caseindex/internal/config"
	"github.com/DreamCats/caseindex/internal/metrics"
	"github.com/DreamCats/caseindex/internal/repl"
	"github.com/DreamCats/caseindex/internal/search"
)

// handleSearch implements the search subcommand
func handleSearch(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)

	var topK, topN int
	var jsonOutput, fullText bool

	fs.IntVar(&topK, "k", cfg.Search.TopK, "Candidates retrieved before reranking")
	fs.IntVar(&topN, "n", cfg.Search.TopN, "Results returned after reranking")
	fs.BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	fs.BoolVar(&fullText, "full", false, "Print whole passages instead of snippets")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    caseindex search [options] "<query>"

DESCRIPTION:
    Answer one query: hybrid retrieval over the index, then reranking
    with the relevance model.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    caseindex search "What constitutes unfair dismissal?"
    caseindex search -n 5 -full "duty of care"
    caseindex search -json "insider trading penalties"
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: search query is required\n\n")
		fs.Usage()
		os.Exit(1)
	}
	query := strings.Join(fs.Args(), " ")

	engine, st, err := search.Open(cfg, metrics.New())
	if err != nil {
		return err
	}
	defer st.Close()

	resp, err := engine.Search(ctx, search.Request{Query: query, TopK: topK, TopN: topN, FullText: fullText})
	if err != nil {
		return err
	}

	if jsonOutput {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal results: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(resp.Results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d result(s) for: %s\n", len(resp.Results), resp.Query)
	for _, r := range resp.Results {
		fmt.Printf("\n%s\n", repl.FormatResultLine(r))
		fmt.Println(r.Text)
	}
	return nil
}
