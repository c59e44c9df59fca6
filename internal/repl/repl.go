// Package repl runs the interactive ask loop.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/DreamCats/caseindex/internal/rerank"
	"github.com/DreamCats/caseindex/internal/search"
)

// ExitCommand ends the session, compared case-insensitively.
const ExitCommand = "exit"

const prompt = "\nEnter query (or 'exit'): "

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	rankStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Searcher answers one query.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (search.Response, error)
}

// Session reads queries line by line and prints reranked results.
type Session struct {
	searcher Searcher
	in       io.Reader
	out      io.Writer
	styled   bool
	topK     int
	topN     int
}

// Options tunes a session. Zero TopK or TopN use the engine defaults.
type Options struct {
	Styled bool
	TopK   int
	TopN   int
}

// New creates a session reading from in and writing to out.
func New(searcher Searcher, in io.Reader, out io.Writer, opts Options) *Session {
	return &Session{
		searcher: searcher,
		in:       in,
		out:      out,
		styled:   opts.Styled,
		topK:     opts.TopK,
		topN:     opts.TopN,
	}
}

// Run loops until the exit command, end of input or cancellation.
// A failed query is reported and the loop continues.
func (s *Session) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(s.out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if strings.EqualFold(query, ExitCommand) {
			return nil
		}

		resp, err := s.searcher.Search(ctx, search.Request{Query: query, TopK: s.topK, TopN: s.topN})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			fmt.Fprintf(s.out, "\nSearch failed: %v\n", err)
			continue
		}
		s.printResults(resp.Results)
	}
}

func (s *Session) printResults(results []rerank.RankedResult) {
	if len(results) == 0 {
		fmt.Fprintln(s.out, "\nNo results found.")
		return
	}

	fmt.Fprintf(s.out, "\n%s\n", s.render(headerStyle, "Final Reranked Results:"))
	for _, r := range results {
		line := FormatResultLine(r)
		fmt.Fprintf(s.out, "\n%s\n", s.render(rankStyle, line))
		fmt.Fprintln(s.out, s.render(dimStyle, r.Text))
	}
}

func (s *Session) render(style lipgloss.Style, text string) string {
	if !s.styled {
		return text
	}
	return style.Render(text)
}

// FormatResultLine renders the header line of one result.
func FormatResultLine(r rerank.RankedResult) string {
	return fmt.Sprintf("Rank %d | File: %s | Rerank Score: %.4f", r.Rank, r.Source, r.RerankScore)
}
