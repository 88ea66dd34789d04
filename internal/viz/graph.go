package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/matsen/citethreads/internal/paper"
)

// Intent colours.
const (
	ColorSupport = "#2E7D32"
	ColorOppose  = "#C62828"
	ColorNeutral = "#9E9E9E"
	ColorUnknown = "#DDDDDD"
)

const (
	minNodeSize = 20
	maxNodeSize = 70
)

// FromGraph converts a citation graph into visualization data. seedID marks
// the seed node; it may be empty.
func FromGraph(g paper.GraphData, seedID string) *GraphData {
	maxCites := 0
	for _, n := range g.Nodes {
		maxCites = max(maxCites, n.CitationCount)
	}

	nodes := make([]Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, newPaperNode(n, maxCites, n.ID == seedID))
	}

	edges := make([]Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		edges = append(edges, Edge{
			Source:     e.Source,
			Target:     e.Target,
			Intent:     string(e.Intent),
			Confidence: e.Confidence,
			Reasoning:  e.Reasoning,
			Note:       e.Note,
			Color:      IntentColor(e.Intent),
		})
	}

	return &GraphData{Nodes: nodes, Edges: edges}
}

// FindSeed finds the node the build started from. The stored seed is the ID
// the user typed, which may differ from the resolved node ID. The builder
// adds the seed first, so the first node is the fallback.
func FindSeed(g paper.GraphData, seed string) string {
	want := paper.ParseID(seed)
	for _, n := range g.Nodes {
		if n.ID == seed || n.ID == want.String() {
			return n.ID
		}
		if want.Namespace == paper.NamespaceDOI && n.DOI != "" && paper.NormalizeDOI(n.DOI) == want.Value {
			return n.ID
		}
		if want.Namespace == paper.NamespaceArXiv && n.ArXivID == want.Value {
			return n.ID
		}
	}
	if len(g.Nodes) > 0 {
		return g.Nodes[0].ID
	}
	return ""
}

// IntentColor returns the edge colour for an intent.
func IntentColor(intent paper.Intent) string {
	switch intent {
	case paper.IntentSupport:
		return ColorSupport
	case paper.IntentOppose:
		return ColorOppose
	case paper.IntentNeutral:
		return ColorNeutral
	default:
		return ColorUnknown
	}
}

// newPaperNode creates a visualization node from a paper.
func newPaperNode(p paper.Paper, maxCites int, seed bool) Node {
	return Node{
		ID:            p.ID,
		Label:         nodeLabel(p),
		Seed:          seed,
		Title:         p.Title,
		Authors:       authorsToString(p.Authors),
		Year:          p.Year,
		Venue:         p.Venue,
		URL:           p.URL,
		CitationCount: p.CitationCount,
		Size:          nodeSize(p.CitationCount, maxCites),
	}
}

// nodeSize scales on a log curve so a single highly cited paper does not
// flatten the rest of the graph.
func nodeSize(cites, maxCites int) int {
	if maxCites <= 0 || cites <= 0 {
		return minNodeSize
	}
	frac := math.Log1p(float64(cites)) / math.Log1p(float64(maxCites))
	return minNodeSize + int(math.Round(frac*float64(maxNodeSize-minNodeSize)))
}

// nodeLabel is "Surname Year", or the ID when there are no authors.
func nodeLabel(p paper.Paper) string {
	if len(p.Authors) == 0 {
		return p.ID
	}
	fields := strings.Fields(p.Authors[0])
	last := p.Authors[0]
	if len(fields) > 0 {
		last = fields[len(fields)-1]
	}
	if len(p.Authors) > 1 {
		last += " et al."
	}
	if p.Year > 0 {
		return fmt.Sprintf("%s %d", last, p.Year)
	}
	return last
}

// authorsToString joins author names, eliding all but the first three.
func authorsToString(authors []string) string {
	if len(authors) <= 3 {
		return strings.Join(authors, ", ")
	}
	return strings.Join(authors[:3], ", ") + fmt.Sprintf(", +%d more", len(authors)-3)
}
