package viz

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/matsen/citethreads/internal/paper"
)

func testGraph() paper.GraphData {
	support := paper.NewEdge("S2:b", "S2:a")
	support.Intent = paper.IntentSupport
	support.Confidence = 0.9
	support.Reasoning = "builds on the model"
	oppose := paper.NewEdge("S2:c", "S2:a")
	oppose.Intent = paper.IntentOppose
	return paper.GraphData{
		Nodes: []paper.Paper{
			{ID: "S2:a", Title: "Seed paper", Authors: []string{"Ada Lovelace", "Charles Babbage"}, Year: 1843, CitationCount: 1000},
			{ID: "S2:b", Title: "Follow up", Authors: []string{"Grace Hopper"}, Year: 1952, CitationCount: 10},
			{ID: "S2:c", Title: "Untitled"},
		},
		Edges: []paper.CitationEdge{support, oppose, paper.NewEdge("S2:c", "S2:b")},
	}
}

func TestFromGraph(t *testing.T) {
	g := FromGraph(testGraph(), "S2:a")

	if len(g.Nodes) != 3 || len(g.Edges) != 3 {
		t.Fatalf("FromGraph() = %d nodes %d edges", len(g.Nodes), len(g.Edges))
	}
	if !g.Nodes[0].Seed || g.Nodes[1].Seed {
		t.Errorf("seed flags = %v %v", g.Nodes[0].Seed, g.Nodes[1].Seed)
	}
	if g.Nodes[0].Size != maxNodeSize {
		t.Errorf("most cited size = %d, want %d", g.Nodes[0].Size, maxNodeSize)
	}
	if g.Nodes[2].Size != minNodeSize {
		t.Errorf("uncited size = %d, want %d", g.Nodes[2].Size, minNodeSize)
	}
	if g.Nodes[1].Size <= minNodeSize || g.Nodes[1].Size >= maxNodeSize {
		t.Errorf("middle size = %d, want strictly between bounds", g.Nodes[1].Size)
	}

	wantColors := []string{ColorSupport, ColorOppose, ColorUnknown}
	for i, want := range wantColors {
		if g.Edges[i].Color != want {
			t.Errorf("Edges[%d].Color = %s, want %s", i, g.Edges[i].Color, want)
		}
	}
}

func TestFindSeed(t *testing.T) {
	g := paper.GraphData{Nodes: []paper.Paper{
		{ID: "S2:abc"},
		{ID: "OpenAlex:W2", DOI: "10.1/xyz"},
		{ID: "OpenAlex:W3", ArXivID: "1706.03762"},
	}}
	tests := []struct {
		seed, want string
	}{
		{"S2:abc", "S2:abc"},
		{"DOI:10.1/XYZ", "OpenAlex:W2"},
		{"arXiv:1706.03762", "OpenAlex:W3"},
		{"W2", "OpenAlex:W2"},
		{"something else", "S2:abc"},
	}
	for _, tt := range tests {
		if got := FindSeed(g, tt.seed); got != tt.want {
			t.Errorf("FindSeed(%q) = %q, want %q", tt.seed, got, tt.want)
		}
	}
}

func TestNodeLabel(t *testing.T) {
	tests := []struct {
		name string
		p    paper.Paper
		want string
	}{
		{"single author", paper.Paper{ID: "x", Authors: []string{"Grace Hopper"}, Year: 1952}, "Hopper 1952"},
		{"multiple authors", paper.Paper{ID: "x", Authors: []string{"Ada Lovelace", "C B"}, Year: 1843}, "Lovelace et al. 1843"},
		{"no year", paper.Paper{ID: "x", Authors: []string{"Hopper"}}, "Hopper"},
		{"no authors", paper.Paper{ID: "S2:abc"}, "S2:abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nodeLabel(tt.p); got != tt.want {
				t.Errorf("nodeLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthorsToString(t *testing.T) {
	if got := authorsToString([]string{"A", "B"}); got != "A, B" {
		t.Errorf("authorsToString() = %q", got)
	}
	if got := authorsToString([]string{"A", "B", "C", "D", "E"}); got != "A, B, C, +2 more" {
		t.Errorf("authorsToString() = %q", got)
	}
}

func TestIntentColor(t *testing.T) {
	tests := map[paper.Intent]string{
		paper.IntentSupport: ColorSupport,
		paper.IntentOppose:  ColorOppose,
		paper.IntentNeutral: ColorNeutral,
		paper.IntentUnknown: ColorUnknown,
		"":                  ColorUnknown,
	}
	for intent, want := range tests {
		if got := IntentColor(intent); got != want {
			t.Errorf("IntentColor(%q) = %s, want %s", intent, got, want)
		}
	}
}

func TestToCytoscapeJSON(t *testing.T) {
	g := FromGraph(testGraph(), "S2:a")
	out, err := g.ToCytoscapeJSON()
	if err != nil {
		t.Fatalf("ToCytoscapeJSON() error = %v", err)
	}

	var elements struct {
		Nodes []struct {
			Data map[string]any `json:"data"`
		} `json:"nodes"`
		Edges []struct {
			Data map[string]any `json:"data"`
		} `json:"edges"`
	}
	if err := json.Unmarshal([]byte(out), &elements); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(elements.Edges) != 3 {
		t.Fatalf("edges = %d, want 3", len(elements.Edges))
	}
	e := elements.Edges[0].Data
	if e["id"] != "S2:b->S2:a" || e["source"] != "S2:b" || e["intent"] != "SUPPORT" {
		t.Errorf("edge data = %v", e)
	}
}

func TestGenerateHTML(t *testing.T) {
	html, err := GenerateHTML(FromGraph(testGraph(), "S2:a"), HTMLOptions{Title: "My <Project>", Layout: "circle"})
	if err != nil {
		t.Fatalf("GenerateHTML() error = %v", err)
	}
	for _, want := range []string{"cytoscape", `"circle"`, "My &lt;Project&gt;", ColorSupport, "Seed paper"} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
}

func TestGenerateHTMLEmpty(t *testing.T) {
	html, err := GenerateHTML(&GraphData{}, DefaultOptions())
	if err != nil {
		t.Fatalf("GenerateHTML() error = %v", err)
	}
	if !strings.Contains(html, "No graph data") {
		t.Error("empty graph should render the empty state")
	}
}

func TestGenerateHTMLErrors(t *testing.T) {
	if _, err := GenerateHTML(nil, DefaultOptions()); err == nil {
		t.Error("GenerateHTML(nil) should fail")
	}
	if _, err := GenerateHTML(&GraphData{}, HTMLOptions{Layout: "spiral"}); err == nil {
		t.Error("GenerateHTML() with invalid layout should fail")
	}
}
