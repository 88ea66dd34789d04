package openalex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matsen/citethreads/internal/source"
)

const workJSON = `{
	"id": "https://openalex.org/W2741809807",
	"display_name": "The state of OA",
	"publication_year": 2018,
	"ids": {"doi": "https://doi.org/10.7717/peerj.4375"},
	"authorships": [{"author": {"display_name": "Heather Piwowar"}}],
	"primary_location": {"source": {"display_name": "PeerJ"}},
	"cited_by_count": 900,
	"referenced_works": ["https://openalex.org/W1", "https://openalex.org/W2"],
	"abstract_inverted_index": {"Despite": [0], "growing": [1], "interest": [2, 4], "in": [3]},
	"concepts": [{"display_name": "Computer science", "level": 0}, {"display_name": "Library science", "level": 1}]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(WithBaseURL(server.URL))
}

func TestReconstructAbstract(t *testing.T) {
	index := map[string][]int{"world": {1}, "hello": {0, 2}}
	if got := ReconstructAbstract(index); got != "hello world hello" {
		t.Errorf("ReconstructAbstract() = %q", got)
	}
	if got := ReconstructAbstract(nil); got != "" {
		t.Errorf("ReconstructAbstract(nil) = %q", got)
	}
}

func TestClient_GetPaper(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/works/doi:10.7717/peerj.4375" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(workJSON))
	})

	p, err := client.GetPaper(context.Background(), "DOI:10.7717/peerj.4375")
	if err != nil {
		t.Fatalf("GetPaper() error = %v", err)
	}
	if p.ID != "OpenAlex:W2741809807" {
		t.Errorf("ID = %q", p.ID)
	}
	if p.DOI != "10.7717/peerj.4375" {
		t.Errorf("DOI = %q", p.DOI)
	}
	if p.Venue != "PeerJ" || p.CitationCount != 900 || p.ReferenceCount != 2 {
		t.Errorf("venue/counts = %q %d %d", p.Venue, p.CitationCount, p.ReferenceCount)
	}
	if p.Abstract != "Despite growing interest in interest" {
		t.Errorf("Abstract = %q", p.Abstract)
	}
	if len(p.Fields) != 1 || p.Fields[0] != "Computer science" {
		t.Errorf("Fields = %v", p.Fields)
	}
}

func TestClient_GetPaper_ArXivViaDOI(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/works/doi:10.48550/arxiv.1706.03762" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(workJSON))
	})
	if _, err := client.GetPaper(context.Background(), "arXiv:1706.03762v5"); err != nil {
		t.Fatalf("GetPaper() error = %v", err)
	}
}

func TestClient_GetPaper_S2Unsupported(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := client.GetPaper(context.Background(), "S2:abc")
	if !source.IsUnsupported(err) {
		t.Errorf("error = %v, want ErrUnsupported", err)
	}
}

func TestClient_GetReferences_ResolvesDOI(t *testing.T) {
	var filters []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/works/doi:10.7717/peerj.4375":
			w.Write([]byte(workJSON))
		case "/works":
			filters = append(filters, r.URL.Query().Get("filter"))
			w.Write([]byte(`{"results": [{"id": "https://openalex.org/W9", "display_name": "Ref"}]}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	})

	refs, err := client.GetReferences(context.Background(), "DOI:10.7717/peerj.4375", 20)
	if err != nil {
		t.Fatalf("GetReferences() error = %v", err)
	}
	if len(refs) != 1 || refs[0].ID != "OpenAlex:W9" {
		t.Errorf("refs = %+v", refs)
	}
	if len(filters) != 1 || filters[0] != "cited_by:W2741809807" {
		t.Errorf("filters = %v", filters)
	}
}

func TestClient_GetCitations(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("filter"); got != "cites:W1" {
			t.Errorf("filter = %q", got)
		}
		if got := r.URL.Query().Get("per-page"); got != "20" {
			t.Errorf("per-page = %q", got)
		}
		w.Write([]byte(`{"results": [{"id": "https://openalex.org/W5", "display_name": "Citer"}]}`))
	})

	cites, err := client.GetCitations(context.Background(), "OpenAlex:W1", 20)
	if err != nil {
		t.Fatalf("GetCitations() error = %v", err)
	}
	if len(cites) != 1 || cites[0].Title != "Citer" {
		t.Errorf("cites = %+v", cites)
	}
}

func TestClient_Mailto(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("mailto") != "me@example.org" {
			t.Errorf("mailto = %q", r.URL.Query().Get("mailto"))
		}
		w.Write([]byte(`{"results": []}`))
	})
	client.mailto = "me@example.org"
	if _, err := client.Search(context.Background(), "open access", 5); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
}

func TestClient_RateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := client.GetPaper(context.Background(), "OpenAlex:W1")
	if !source.IsRateLimited(err) {
		t.Errorf("error = %v, want rate limited", err)
	}
}
