package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/DreamCats/caseindex/cmd/caseindex/internal"
	"github.com/DreamCats/caseindex/internal/config"
	"github.com/DreamCats/caseindex/internal/mcpserver"
)

// handleMCP implements the MCP stdio server subcommand
func handleMCP(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    caseindex mcp

DESCRIPTION:
    Run an MCP stdio server exposing:
      - caseindex_search
      - caseindex_status
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	server := mcpserver.New(cfg, internal.Version, nil)
	return server.Run(ctx)
}
