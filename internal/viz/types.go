// Package viz renders citation graphs as interactive Cytoscape.js pages.
package viz

// GraphData contains all data needed to render the visualization.
type GraphData struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node represents a paper in the graph.
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Seed  bool   `json:"seed,omitempty"`

	// Tooltip fields
	Title   string `json:"title,omitempty"`
	Authors string `json:"authors,omitempty"`
	Year    int    `json:"year,omitempty"`
	Venue   string `json:"venue,omitempty"`
	URL     string `json:"url,omitempty"`

	CitationCount int `json:"citationCount"`
	// Size is the rendered diameter in pixels, scaled by citation count.
	Size int `json:"size"`
}

// Edge represents a citation: Source cites Target.
type Edge struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
	Note       string  `json:"note,omitempty"`
	Color      string  `json:"color"`
}

// IsEmpty returns true if the graph has no nodes.
func (g *GraphData) IsEmpty() bool {
	return len(g.Nodes) == 0
}
