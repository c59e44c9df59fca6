// Package mcpserver exposes caseindex search over MCP stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DreamCats/caseindex/internal/config"
	"github.com/DreamCats/caseindex/internal/metrics"
	"github.com/DreamCats/caseindex/internal/search"
	"github.com/DreamCats/caseindex/internal/store"
)

// Server exposes caseindex search and status via MCP stdio.
type Server struct {
	cfg     *config.Config
	version string
	open    Opener

	mu     sync.RWMutex
	engine *search.Engine
	st     *store.Store
}

// New creates a new MCP server wrapper. A nil opener uses search.Open.
func New(cfg *config.Config, version string, open Opener) *Server {
	if open == nil {
		m := metrics.New()
		open = func(cfg *config.Config) (*search.Engine, *store.Store, error) {
			return search.Open(cfg, m)
		}
	}
	return &Server{cfg: cfg, version: version, open: open}
}

// Run starts the MCP stdio server.
func (s *Server) Run(ctx context.Context) error {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "caseindex",
		Title:   "CaseIndex",
		Version: s.version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name: "caseindex_search",
		Description: `Find passages from indexed legal case documents relevant to a question.

Combines semantic and keyword retrieval, then reorders the candidates with a relevance model.
Each result carries its source file, the first-stage score and the relevance score.

Options:
- top_k: candidates considered before reranking
- top_n: passages returned
- full_text: return whole passages instead of 400-character snippets`,
	}, s.searchTool)

	mcp.AddTool(server, &mcp.Tool{
		Name: "caseindex_status",
		Description: `Check the status of the case index.

Returns:
- Whether the corpus is indexed
- Generation, build time and age
- Chunk, document and source counts
- Staleness indicator (if the index may be outdated)`,
	}, s.statusTool)

	defer s.Close()
	return server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) searchTool(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if input.Query == "" {
		return nil, SearchOutput{}, fmt.Errorf("query is required")
	}
	if input.TopK < 0 || input.TopN < 0 {
		return nil, SearchOutput{}, fmt.Errorf("top_k and top_n must not be negative")
	}

	var output SearchOutput
	err := s.withEngine(func(_ string, engine *search.Engine, _ *store.Store) error {
		resp, err := engine.Search(ctx, search.Request{
			Query:    input.Query,
			TopK:     input.TopK,
			TopN:     input.TopN,
			FullText: input.FullText,
		})
		if err != nil {
			return err
		}
		output = toSearchOutput(resp)
		return nil
	})
	if errors.Is(err, store.ErrNotIndexed) {
		return nil, SearchOutput{}, fmt.Errorf("%w: run 'caseindex index' first", err)
	}
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, output, nil
}

func (s *Server) statusTool(_ context.Context, _ *mcp.CallToolRequest, _ StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
	output := StatusOutput{IsStale: true}

	err := s.withEngine(func(indexDir string, _ *search.Engine, st *store.Store) error {
		status := search.StatusOf(indexDir, st)
		output.Indexed = true
		output.IndexDir = indexDir
		output.Generation = status.Generation
		output.Stamp = status.Stamp
		output.BuiltAt = status.BuiltAt.UTC().Format(time.RFC3339)
		output.Stats = &IndexStats{
			Chunks:        status.Chunks,
			Documents:     status.Documents,
			Sources:       status.Sources,
			Dimensions:    status.Dimensions,
			Model:         status.Model,
			DatabaseSize:  formatBytes(status.DatabaseBytes),
			DatabaseBytes: status.DatabaseBytes,
		}
		applyAge(&output, time.Since(status.BuiltAt))
		return nil
	})
	if err != nil {
		if dir, dirErr := s.cfg.IndexDir(); dirErr == nil {
			output.IndexDir = dir
		}
		switch {
		case errors.Is(err, store.ErrNotIndexed):
			output.StaleReason = "Index does not exist. Run 'caseindex index' to build it."
		case errors.Is(err, store.ErrStaleArtifacts):
			output.StaleReason = fmt.Sprintf("Index artifacts are inconsistent: %v. Run 'caseindex index' to rebuild.", err)
		default:
			output.StaleReason = fmt.Sprintf("Failed to open index: %v", err)
		}
	}
	return nil, output, nil
}

func applyAge(output *StatusOutput, age time.Duration) {
	output.IndexAge = formatDuration(age)
	switch {
	case age > 24*time.Hour:
		output.IsStale = true
		output.StaleReason = fmt.Sprintf("Index is %s old. Consider re-indexing if the corpus changed.", output.IndexAge)
	case age > time.Hour:
		output.IsStale = false
		output.StaleReason = fmt.Sprintf("Index is %s old. Recent corpus changes may not be reflected.", output.IndexAge)
	default:
		output.IsStale = false
		output.StaleReason = ""
	}
}

func toSearchOutput(resp search.Response) SearchOutput {
	items := make([]SearchResultItem, 0, len(resp.Results))
	for _, r := range resp.Results {
		items = append(items, SearchResultItem{
			Rank:        r.Rank,
			ChunkID:     r.ChunkID,
			File:        r.Source,
			BaseScore:   r.BaseScore,
			RerankScore: r.RerankScore,
			Text:        r.Text,
		})
	}
	return SearchOutput{
		QueryID:    resp.QueryID,
		Query:      resp.Query,
		Candidates: resp.Candidates,
		Count:      len(items),
		Results:    items,
	}
}

// formatBytes formats bytes to human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// formatDuration formats duration to human-readable string
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%.1f hours", d.Hours())
	}
	return fmt.Sprintf("%.1f days", d.Hours()/24)
}
