package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/DreamCats/caseindex/internal/config"
	"github.com/DreamCats/caseindex/internal/search"
	"github.com/DreamCats/caseindex/internal/store"
)

// handleStats implements the stats subcommand
func handleStats(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	var jsonOutput bool
	fs.BoolVar(&jsonOutput, "json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    caseindex stats [options]

DESCRIPTION:
    Show statistics about the current index generation.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # Show human-readable statistics
    caseindex stats

    # JSON output
    caseindex stats -json
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	indexDir, err := cfg.IndexDir()
	if err != nil {
		return err
	}
	metric, err := store.ParseMetric(cfg.Retrieval.Metric)
	if err != nil {
		return err
	}
	st, err := store.Open(indexDir, metric)
	if err != nil {
		return err
	}
	defer st.Close()

	status := search.StatusOf(indexDir, st)

	if jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println("Index Statistics")
	fmt.Println()
	fmt.Printf("Index dir:  %s\n", status.IndexDir)
	fmt.Printf("Generation: %s\n", status.Generation)
	fmt.Printf("Built at:   %s\n", status.BuiltAt.Local().Format(time.RFC3339))
	fmt.Printf("Model:      %s (%d dims)\n", status.Model, status.Dimensions)
	fmt.Println()
	fmt.Printf("Documents:  %6d\n", status.Documents)
	fmt.Printf("Sources:    %6d\n", status.Sources)
	fmt.Printf("Chunks:     %6d\n", status.Chunks)
	fmt.Printf("Database:   %6d KB\n", status.DatabaseBytes/1024)
	return nil
}
