package internal

import (
	"fmt"
	"os"
	"strings"
)

const Version = "0.3.0"

// PrintUsage prints the command overview to stderr.
func PrintUsage() {
	fmt.Fprintf(os.Stderr, `caseindex - Hybrid retrieval and reranking over legal case documents

Version: %s

USAGE:
    caseindex [global options] <command> [command options]

GLOBAL OPTIONS:
    -config <path>
        Path to config file (default: ~/.caseindex/config/caseindex.yaml)

    -corpus <path>
        Override corpus directory

    -v, -version
        Show version information

    -h, -help
        Show this help message

COMMANDS:
    index
        Chunk, embed and index the corpus into a new generation

    ask
        Interactive question loop (type 'exit' to quit)

    search
        Answer one query and print the reranked passages

    eval
        Run a batch of queries and write a retrieval report

    stats
        Show index statistics

    serve
        Run the HTTP API (POST /v1/search, GET /healthz, GET /metrics)

    mcp
        Run MCP stdio server (tools: caseindex_search, caseindex_status)

EXAMPLES:
    # Index the configured corpus
    caseindex index

    # Index another folder
    caseindex -corpus /data/fca-2008 index

    # Ask questions interactively
    caseindex ask

    # One-shot search as JSON
    caseindex search -json "requirements for granting bail"

    # Built-in evaluation queries to text and xlsx
    caseindex eval -xlsx results.xlsx

    # Serve the HTTP API
    caseindex serve -addr 127.0.0.1:7700

For detailed help on each command, use:
    caseindex <command> -help
`, Version)
}

// StringList is a flag.Value that collects multiple strings
type StringList []string

// String returns the values joined by commas.
func (s *StringList) String() string {
	return strings.Join(*s, ",")
}

// Set appends one value; repeated flags accumulate.
func (s *StringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}
