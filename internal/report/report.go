// Package report runs a batch of queries and writes the ranked passages
// to a text report and optionally an xlsx workbook.
package report

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/DreamCats/caseindex/internal/rerank"
	"github.com/DreamCats/caseindex/internal/search"
)

// DefaultOutput is the text report file name.
const DefaultOutput = "retrieval_results.txt"

var rule = strings.Repeat("=", 80)

// Searcher answers one query.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (search.Response, error)
}

// QueryResult holds the outcome of one query. Index is 1-based.
type QueryResult struct {
	Index   int
	Query   string
	Results []rerank.RankedResult
	Err     error
}

// Summary counts the outcomes of a run.
type Summary struct {
	Queries  int
	Failed   int
	Empty    int
	Duration time.Duration
}

// Run searches every query in order with full passage text. A failed query
// is recorded and the run continues; cancellation stops it.
func Run(ctx context.Context, searcher Searcher, queries []string, topK, topN int) ([]QueryResult, Summary, error) {
	start := time.Now()
	summary := Summary{Queries: len(queries)}
	out := make([]QueryResult, 0, len(queries))

	for i, query := range queries {
		if err := ctx.Err(); err != nil {
			return out, summary, err
		}
		qr := QueryResult{Index: i + 1, Query: query}
		resp, err := searcher.Search(ctx, search.Request{Query: query, TopK: topK, TopN: topN, FullText: true})
		switch {
		case errors.Is(err, context.Canceled):
			return out, summary, err
		case err != nil:
			qr.Err = err
			summary.Failed++
			log.Printf("[eval] query=%d err=%v", qr.Index, err)
		default:
			qr.Results = resp.Results
			if len(resp.Results) == 0 {
				summary.Empty++
			}
		}
		out = append(out, qr)
	}
	summary.Duration = time.Since(start)
	return out, summary, nil
}

// WriteText writes one block per query: a rule, the query line, a rule,
// then each result's header line and full text.
func WriteText(w io.Writer, results []QueryResult) error {
	bw := bufio.NewWriter(w)
	for _, qr := range results {
		fmt.Fprintf(bw, "%s\nQuery %d: %s\n%s\n", rule, qr.Index, qr.Query, rule)
		if qr.Err != nil {
			fmt.Fprintf(bw, "\nSearch failed: %v\n", qr.Err)
		} else if len(qr.Results) == 0 {
			fmt.Fprint(bw, "\nNo results found.\n")
		}
		for _, r := range qr.Results {
			fmt.Fprintf(bw, "\nRank %d | File: %s | Base Score: %.4f | Rerank Score: %.4f\n",
				r.Rank, r.Source, r.BaseScore, r.RerankScore)
			fmt.Fprintf(bw, "%s\n", r.Text)
		}
		fmt.Fprint(bw, "\n\n")
	}
	return bw.Flush()
}

// WriteTextFile writes the text report to path.
func WriteTextFile(path string, results []QueryResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := WriteText(f, results); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}
