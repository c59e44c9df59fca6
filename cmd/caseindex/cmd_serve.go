package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/DreamCats/caseindex/internal/config"
	"github.com/DreamCats/caseindex/internal/httpapi"
	"github.com/DreamCats/caseindex/internal/metrics"
	"github.com/DreamCats/caseindex/internal/search"
)

// handleServe implements the serve subcommand
func handleServe(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", cfg.Server.Addr, "Listen address")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    caseindex serve [options]

DESCRIPTION:
    Serve the current index generation over HTTP:
      POST /v1/search   {"query": "...", "top_k": 20, "top_n": 3, "full_text": false}
      GET  /healthz
      GET  /metrics

OPTIONS:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	indexDir, err := cfg.IndexDir()
	if err != nil {
		return err
	}
	m := metrics.New()
	engine, st, err := search.Open(cfg, m)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := httpapi.NewServer(engine, search.StatusOf(indexDir, st), m)
	return httpapi.ListenAndServe(ctx, *addr, srv)
}
