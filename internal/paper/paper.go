// Package paper defines the core domain types for citation graphs.
package paper

// Paper represents an academic paper as reported by one data source.
//
// Identity is source-qualified: the same real-world paper may appear under
// different IDs (S2:..., OpenAlex:..., DOI:...) depending on which source
// returned it.
type Paper struct {
	// Identity
	ID      string `json:"id"`                 // Namespaced identifier (prefix denotes origin source)
	DOI     string `json:"doi,omitempty"`      // Digital Object Identifier, without prefix
	ArXivID string `json:"arxiv_id,omitempty"` // arXiv identifier, without prefix

	// Metadata
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Year     int      `json:"year,omitempty"`
	Venue    string   `json:"venue,omitempty"`
	Abstract string   `json:"abstract,omitempty"`
	Fields   []string `json:"fields"`
	URL      string   `json:"url,omitempty"`

	// Counts
	CitationCount  int `json:"citation_count"`
	ReferenceCount int `json:"reference_count"`
}

// Namespace returns the origin-source prefix of the paper's ID.
func (p Paper) Namespace() Namespace {
	return ParseID(p.ID).Namespace
}

// HasAbstract reports whether the paper carries a non-empty abstract.
func (p Paper) HasAbstract() bool {
	return p.Abstract != ""
}

// GraphData is a citation graph: a node list and an edge list.
//
// Every edge's endpoints exist in Nodes, node IDs are unique and there is at
// most one edge per ordered (source, target) pair.
type GraphData struct {
	Nodes []Paper        `json:"nodes"`
	Edges []CitationEdge `json:"edges"`
}

// IsEmpty returns true if the graph has no nodes.
func (g *GraphData) IsEmpty() bool {
	return len(g.Nodes) == 0
}

// NodeMap indexes the graph's nodes by ID.
func (g *GraphData) NodeMap() map[string]Paper {
	m := make(map[string]Paper, len(g.Nodes))
	for _, n := range g.Nodes {
		m[n.ID] = n
	}
	return m
}

// Stats summarizes a graph.
type Stats struct {
	TotalNodes int `json:"total_nodes"`
	TotalEdges int `json:"total_edges"`
	MinYear    int `json:"min_year,omitempty"`
	MaxYear    int `json:"max_year,omitempty"`
}

// ComputeStats returns node/edge counts and the publication year range.
func (g *GraphData) ComputeStats() Stats {
	s := Stats{TotalNodes: len(g.Nodes), TotalEdges: len(g.Edges)}
	for _, n := range g.Nodes {
		if n.Year == 0 {
			continue
		}
		if s.MinYear == 0 || n.Year < s.MinYear {
			s.MinYear = n.Year
		}
		if n.Year > s.MaxYear {
			s.MaxYear = n.Year
		}
	}
	return s
}

// RemoveNode deletes a node and every edge incident to it.
// Returns false if no node with that ID exists.
func (g *GraphData) RemoveNode(id string) bool {
	idx := -1
	for i, n := range g.Nodes {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	g.Nodes = append(g.Nodes[:idx], g.Nodes[idx+1:]...)

	kept := g.Edges[:0]
	for _, e := range g.Edges {
		if e.Source != id && e.Target != id {
			kept = append(kept, e)
		}
	}
	g.Edges = kept
	return true
}
