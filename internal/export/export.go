package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/matsen/citethreads/internal/paper"
)

// Format is an export file format.
type Format string

const (
	FormatJSON   Format = "json"
	FormatBibTeX Format = "bibtex"
	FormatRIS    Format = "ris"
)

// ParseFormat parses a format name. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatBibTeX, FormatRIS:
		return f, nil
	case "bib":
		return FormatBibTeX, nil
	}
	return "", fmt.Errorf("unsupported format %q: must be json, bibtex, or ris", s)
}

// ContentType returns the HTTP content type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatBibTeX:
		return "application/x-bibtex"
	case FormatRIS:
		return "application/x-research-info-systems"
	default:
		return "application/json"
	}
}

// Extension returns the conventional file extension, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatBibTeX:
		return "bib"
	case FormatRIS:
		return "ris"
	default:
		return "json"
	}
}

// Render serializes a graph. JSON keeps the whole graph; the citation
// formats list only the nodes.
func Render(g paper.GraphData, f Format) ([]byte, error) {
	switch f {
	case FormatBibTeX:
		return []byte(ToBibTeXList(g.Nodes)), nil
	case FormatRIS:
		return []byte(ToRISList(g.Nodes)), nil
	case FormatJSON, "":
		if g.Nodes == nil {
			g.Nodes = []paper.Paper{}
		}
		if g.Edges == nil {
			g.Edges = []paper.CitationEdge{}
		}
		return json.MarshalIndent(g, "", "  ")
	}
	return nil, fmt.Errorf("unsupported format %q", f)
}
