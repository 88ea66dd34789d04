package asta

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matsen/citethreads/internal/source"
)

// sseServer replies to each tool call with the text produced by respond.
func sseServer(t *testing.T, respond func(tool string, args map[string]any) []string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req MCPRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": ping\n\nevent: message\n")
		for _, text := range respond(req.Params.Name, req.Params.Arguments) {
			msg := MCPResponse{JSONRPC: "2.0", ID: req.ID, Result: &MCPResult{
				Content: []MCPContent{{Type: "text", Text: text}},
			}}
			data, _ := json.Marshal(msg)
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestParseSSEResponse(t *testing.T) {
	stream := ": ping\n\nevent: message\ndata: {\"result\":{\"content\":[{\"type\":\"text\",\"text\":\"a\"}]}}\ndata: not-json\ndata: {\"result\":{\"content\":[{\"type\":\"text\",\"text\":\"b\"}]}}\n"
	got, err := parseSSEResponse(strings.NewReader(stream))
	if err != nil {
		t.Fatalf("parseSSEResponse() error = %v", err)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("got %q", got)
	}
}

func TestParseSSEResponse_Error(t *testing.T) {
	stream := "data: {\"error\":{\"code\":429,\"message\":\"slow down\"}}\n"
	_, err := parseSSEResponse(strings.NewReader(stream))
	if !source.IsRateLimited(err) {
		t.Errorf("error = %v, want rate limited", err)
	}
}

func TestCombineStreamingResults(t *testing.T) {
	got, err := combineStreamingResults([]string{`{"a":1}`, `{"a":2}`})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"result":[{"a":1},{"a":2}]}` {
		t.Errorf("got %s", got)
	}
	if _, err := combineStreamingResults(nil); err == nil {
		t.Error("expected error for empty content")
	}
}

func TestClient_GetPaper(t *testing.T) {
	server := sseServer(t, func(tool string, args map[string]any) []string {
		if tool != "get_paper" || args["paper_id"] != "DOI:10.1/x" {
			t.Errorf("tool = %s args = %v", tool, args)
		}
		return []string{`{"paperId":"p1","title":"Paper","authors":[{"name":"A"}],"citationCount":3,"externalIds":{"DOI":"10.1/x"}}`}
	})

	client := NewClient(WithBaseURL(server.URL))
	p, err := client.GetPaper(context.Background(), "DOI:10.1/x")
	if err != nil {
		t.Fatalf("GetPaper() error = %v", err)
	}
	if p.ID != "ASTA:p1" || p.DOI != "10.1/x" || p.CitationCount != 3 {
		t.Errorf("paper = %+v", p)
	}
}

func TestClient_GetReferences(t *testing.T) {
	server := sseServer(t, func(tool string, args map[string]any) []string {
		return []string{`{"paperId":"p1","references":[{"paperId":"r1","title":"R1"},{"paperId":"","title":"skip"},{"paperId":"r2","title":"R2"}]}`}
	})
	client := NewClient(WithBaseURL(server.URL))
	refs, err := client.GetReferences(context.Background(), "ASTA:p1", 2)
	if err != nil {
		t.Fatalf("GetReferences() error = %v", err)
	}
	if len(refs) != 1 || refs[0].ID != "ASTA:r1" {
		t.Errorf("refs = %+v", refs)
	}
}

func TestClient_GetCitations_Streamed(t *testing.T) {
	server := sseServer(t, func(tool string, args map[string]any) []string {
		return []string{`{"citingPaper":{"paperId":"c1","title":"C1"}}`, `{"citingPaper":{"paperId":"c2","title":"C2"}}`}
	})
	client := NewClient(WithBaseURL(server.URL))
	cites, err := client.GetCitations(context.Background(), "S2:p1", 10)
	if err != nil {
		t.Fatalf("GetCitations() error = %v", err)
	}
	if len(cites) != 2 || cites[1].ID != "ASTA:c2" {
		t.Errorf("cites = %+v", cites)
	}
}

func TestClient_CitationContexts(t *testing.T) {
	server := sseServer(t, func(tool string, args map[string]any) []string {
		if args["paper_id"] != "DOI:10.1/cited" {
			t.Errorf("paper_id = %v", args["paper_id"])
		}
		return []string{`{"result":[
			{"citingPaper":{"paperId":"a","externalIds":{"DOI":"10.1/other"}},"contexts":["x"]},
			{"citingPaper":{"paperId":"b","externalIds":{"DOI":"10.1/Citing"}},"contexts":["builds on  [4]"]}
		]}`}
	})
	client := NewClient(WithBaseURL(server.URL))
	got, err := client.CitationContexts(context.Background(), "10.1/citing", "10.1/cited")
	if err != nil {
		t.Fatalf("CitationContexts() error = %v", err)
	}
	if len(got) != 1 || got[0] != "builds on [4]" {
		t.Errorf("contexts = %q", got)
	}
}

func TestClient_Search_BareArray(t *testing.T) {
	server := sseServer(t, func(tool string, args map[string]any) []string {
		return []string{`[{"paperId":"s1","title":"One"}]`}
	})
	client := NewClient(WithBaseURL(server.URL))
	papers, err := client.Search(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(papers) != 1 || papers[0].Title != "One" {
		t.Errorf("papers = %+v", papers)
	}
}

func TestClient_HTTPRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	_, err := client.GetPaper(context.Background(), "ASTA:p")
	if !source.IsRateLimited(err) {
		t.Errorf("error = %v, want rate limited", err)
	}
}

func TestClient_OpenAlexUnsupported(t *testing.T) {
	client := NewClient(WithBaseURL("http://127.0.0.1:0"))
	if _, err := client.GetPaper(context.Background(), "OpenAlex:W1"); !source.IsUnsupported(err) {
		t.Errorf("error = %v, want unsupported", err)
	}
}
