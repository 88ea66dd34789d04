package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/matsen/citethreads/internal/paper"
)

// Constants for output formatting.
const (
	DefaultSearchLimit = 10 // Default limit for search

	SearchTitleMaxLen = 70 // Used in search result summaries
	ListTitleMaxLen   = 50 // Used in project list output
	EdgeTitleMaxLen   = 40 // Used in graph edge listings
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	return encodeJSON(os.Stdout, v)
}

// encodeJSON writes a value as formatted JSON to w.
func encodeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
	Path   string `json:"path,omitempty"`
}

// truncateString truncates a string to maxLen runes, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

// formatAuthorsShort formats authors as "A, B, C et al.".
func formatAuthorsShort(authors []string, n int) string {
	if len(authors) == 0 {
		return "Unknown"
	}
	if len(authors) <= n {
		return strings.Join(authors, ", ")
	}
	return strings.Join(authors[:n], ", ") + " et al."
}

// printPaperHuman prints a paper's details.
func printPaperHuman(p paper.Paper) {
	fmt.Printf("%s\n", p.Title)
	fmt.Printf("  ID:       %s\n", p.ID)
	fmt.Printf("  Authors:  %s\n", formatAuthorsShort(p.Authors, 5))
	if p.Year > 0 {
		fmt.Printf("  Year:     %d\n", p.Year)
	}
	if p.Venue != "" {
		fmt.Printf("  Venue:    %s\n", p.Venue)
	}
	if p.DOI != "" {
		fmt.Printf("  DOI:      %s\n", p.DOI)
	}
	if p.ArXivID != "" {
		fmt.Printf("  arXiv:    %s\n", p.ArXivID)
	}
	fmt.Printf("  Cited by: %d\n", p.CitationCount)
}

// printPaperListHuman prints papers as a numbered list.
func printPaperListHuman(papers []paper.Paper) {
	for i, p := range papers {
		year := "n.d."
		if p.Year > 0 {
			year = fmt.Sprintf("%d", p.Year)
		}
		fmt.Printf("%d. %s\n", i+1, p.ID)
		fmt.Printf("   %s\n", truncateString(p.Title, SearchTitleMaxLen))
		fmt.Printf("   %s (%s), cited by %d\n\n", formatAuthorsShort(p.Authors, 3), year, p.CitationCount)
	}
}

// printGraphHuman prints a graph summary followed by its edges.
func printGraphHuman(g paper.GraphData) {
	stats := g.ComputeStats()
	fmt.Printf("%d papers, %d citations", stats.TotalNodes, stats.TotalEdges)
	if stats.MinYear > 0 {
		fmt.Printf(" (%d-%d)", stats.MinYear, stats.MaxYear)
	}
	fmt.Println()
	if len(g.Edges) == 0 {
		return
	}

	titles := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		titles[n.ID] = truncateString(n.Title, EdgeTitleMaxLen)
	}
	fmt.Println()
	for _, e := range g.Edges {
		fmt.Printf("  %-8s %s\n           -> %s\n", e.Intent, titles[e.Source], titles[e.Target])
	}
}
