package paper

import "testing"

func TestParseID(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantNS    Namespace
		wantValue string
	}{
		{"s2 prefix", "S2:649def34f8be52c8b66281af98ae884c09aef38b", NamespaceS2, "649def34f8be52c8b66281af98ae884c09aef38b"},
		{"openalex prefix", "OpenAlex:W2741809807", NamespaceOpenAlex, "W2741809807"},
		{"doi prefix normalized", "DOI:10.1038/Nature12373", NamespaceDOI, "10.1038/nature12373"},
		{"lowercase doi prefix", "doi:10.1/abc", NamespaceDOI, "10.1/abc"},
		{"arxiv prefix", "arXiv:1706.03762", NamespaceArXiv, "1706.03762"},
		{"arxiv prefix upper", "ARXIV:1706.03762", NamespaceArXiv, "1706.03762"},
		{"asta prefix", "ASTA:abc", NamespaceASTA, "abc"},
		{"bare doi", "10.1145/3292500.3330701", NamespaceDOI, "10.1145/3292500.3330701"},
		{"doi url", "https://doi.org/10.1038/nature12373", NamespaceDOI, "10.1038/nature12373"},
		{"raw s2 id", "649def34f8be52c8b66281af98ae884c09aef38b", NamespaceS2, "649def34f8be52c8b66281af98ae884c09aef38b"},
		{"bare openalex", "W2741809807", NamespaceOpenAlex, "W2741809807"},
		{"bare arxiv versioned", "2106.15928v2", NamespaceArXiv, "2106.15928v2"},
		{"unknown", "Smith2024", NamespaceNone, "Smith2024"},
		{"whitespace trimmed", "  S2:abc  ", NamespaceS2, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseID(tt.input)
			if got.Namespace != tt.wantNS {
				t.Errorf("ParseID(%q).Namespace = %q, want %q", tt.input, got.Namespace, tt.wantNS)
			}
			if got.Value != tt.wantValue {
				t.Errorf("ParseID(%q).Value = %q, want %q", tt.input, got.Value, tt.wantValue)
			}
		})
	}
}

func TestMakeID(t *testing.T) {
	if got := MakeID(NamespaceS2, "abc"); got != "S2:abc" {
		t.Errorf("MakeID = %q, want S2:abc", got)
	}
	if got := MakeID(NamespaceNone, "abc"); got != "abc" {
		t.Errorf("MakeID with no namespace = %q, want abc", got)
	}
}

func TestPaperNamespace(t *testing.T) {
	p := Paper{ID: "OpenAlex:W1"}
	if p.Namespace() != NamespaceOpenAlex {
		t.Errorf("Namespace() = %q, want OpenAlex", p.Namespace())
	}
}

func TestDedupEdges_KeepsFirst(t *testing.T) {
	first := NewEdge("a", "b")
	first.Reasoning = "first"
	second := NewEdge("a", "b")
	second.Reasoning = "second"
	reverse := NewEdge("b", "a")

	got := DedupEdges([]CitationEdge{first, reverse, second})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Reasoning != "first" {
		t.Errorf("kept %q, want first occurrence", got[0].Reasoning)
	}
	if got[1].Key() != reverse.Key() {
		t.Errorf("second edge = %v, want reverse edge", got[1].Key())
	}
}

func TestFilterOrphanEdges(t *testing.T) {
	nodes := map[string]Paper{"a": {ID: "a"}, "b": {ID: "b"}}
	edges := []CitationEdge{NewEdge("a", "b"), NewEdge("a", "c"), NewEdge("d", "b")}

	got := FilterOrphanEdges(edges, nodes)
	if len(got) != 1 || got[0].Key() != (EdgeKey{"a", "b"}) {
		t.Errorf("FilterOrphanEdges() = %v, want only a->b", got)
	}
}

func TestTopCited(t *testing.T) {
	var papers []Paper
	for i := 0; i < 15; i++ {
		papers = append(papers, Paper{ID: string(rune('a' + i)), CitationCount: i})
	}

	got := TopCited(papers, 10)
	if len(got) != 10 {
		t.Fatalf("len = %d, want 10", len(got))
	}
	for i, p := range got {
		if want := 14 - i; p.CitationCount != want {
			t.Errorf("got[%d].CitationCount = %d, want %d", i, p.CitationCount, want)
		}
	}
	if papers[0].CitationCount != 0 {
		t.Error("TopCited modified its input")
	}
}

func TestDedupPapers(t *testing.T) {
	papers := []Paper{
		{ID: "S2:1", DOI: "10.1/ABC", Title: "Attention Is All You Need"},
		{ID: "OpenAlex:W1", DOI: "10.1/abc", Title: "Different"},
		{ID: "arXiv:1706.03762", Title: "attention is all you need!"},
		{ID: "S2:2", Title: "BERT"},
	}

	got := DedupPapers(papers)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %v", len(got), got)
	}
	if got[0].ID != "S2:1" || got[1].ID != "S2:2" {
		t.Errorf("got IDs %s, %s; want S2:1, S2:2", got[0].ID, got[1].ID)
	}
}

func TestNormalizeTitle(t *testing.T) {
	if got := NormalizeTitle("  Deep   Learning: A Review! "); got != "deep learning a review" {
		t.Errorf("NormalizeTitle() = %q", got)
	}
}

func TestDirectionOrient(t *testing.T) {
	fwd := Forward.Orient("p", "n")
	if fwd.Source != "p" || fwd.Target != "n" {
		t.Errorf("forward edge = %s->%s, want p->n", fwd.Source, fwd.Target)
	}
	back := Backward.Orient("p", "n")
	if back.Source != "n" || back.Target != "p" {
		t.Errorf("backward edge = %s->%s, want n->p", back.Source, back.Target)
	}
	if back.Intent != IntentUnknown {
		t.Errorf("new edge intent = %s, want UNKNOWN", back.Intent)
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{"", Forward, false},
		{"forward", Forward, false},
		{"backward", Backward, false},
		{"both", Both, false},
		{"sideways", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDirection(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDirection(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseDirection(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := Both.Expand(); len(got) != 2 || got[0] != Forward {
		t.Errorf("Both.Expand() = %v", got)
	}
}

func TestCitationEdge_Validate(t *testing.T) {
	tests := []struct {
		name    string
		edge    CitationEdge
		wantErr error
	}{
		{"valid", NewEdge("a", "b"), nil},
		{"empty source", NewEdge("", "b"), ErrEmptySource},
		{"empty target", NewEdge("a", ""), ErrEmptyTarget},
		{"self edge", NewEdge("a", "a"), ErrSelfEdge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.edge.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseIntent(t *testing.T) {
	if got, err := ParseIntent(" support "); err != nil || got != IntentSupport {
		t.Errorf("ParseIntent(support) = %q, %v", got, err)
	}
	if _, err := ParseIntent("agree"); err != ErrInvalidIntent {
		t.Errorf("ParseIntent(agree) error = %v, want ErrInvalidIntent", err)
	}
}

func TestGraphData_RemoveNode(t *testing.T) {
	g := &GraphData{
		Nodes: []Paper{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Edges: []CitationEdge{NewEdge("a", "b"), NewEdge("b", "c"), NewEdge("a", "c")},
	}

	if !g.RemoveNode("b") {
		t.Fatal("RemoveNode(b) = false")
	}
	if len(g.Nodes) != 2 {
		t.Errorf("nodes = %d, want 2", len(g.Nodes))
	}
	if len(g.Edges) != 1 || g.Edges[0].Key() != (EdgeKey{"a", "c"}) {
		t.Errorf("edges = %v, want only a->c", g.Edges)
	}
	if g.RemoveNode("zzz") {
		t.Error("RemoveNode(zzz) = true for missing node")
	}
}

func TestGraphData_ComputeStats(t *testing.T) {
	g := &GraphData{
		Nodes: []Paper{{ID: "a", Year: 2019}, {ID: "b"}, {ID: "c", Year: 2023}},
		Edges: []CitationEdge{NewEdge("a", "c")},
	}
	s := g.ComputeStats()
	if s.TotalNodes != 3 || s.TotalEdges != 1 || s.MinYear != 2019 || s.MaxYear != 2023 {
		t.Errorf("ComputeStats() = %+v", s)
	}
}
