package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/DreamCats/caseindex/cmd/caseindex/internal"
	"github.com/DreamCats/caseindex/internal/config"
	"github.com/DreamCats/caseindex/internal/metrics"
	"github.com/DreamCats/caseindex/internal/repl"
	"github.com/DreamCats/caseindex/internal/search"
)

// handleAsk implements the interactive ask subcommand
func handleAsk(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	topK := fs.Int("k", cfg.Search.TopK, "Candidates retrieved before reranking")
	topN := fs.Int("n", cfg.Search.TopN, "Results shown per query")
	plain := fs.Bool("plain", false, "Disable terminal styling")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    caseindex ask [options]

DESCRIPTION:
    Read questions from stdin and print the best reranked passages.
    Type 'exit' to quit.

OPTIONS:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	engine, st, err := search.Open(cfg, metrics.New())
	if err != nil {
		return err
	}
	defer st.Close()

	session := repl.New(engine, os.Stdin, os.Stdout, repl.Options{
		Styled: !*plain && internal.StdoutIsTerminal(),
		TopK:   *topK,
		TopN:   *topN,
	})
	if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
