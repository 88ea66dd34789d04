package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matsen/citethreads/internal/llm"
	"github.com/matsen/citethreads/internal/paper"
)

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

// fakeCompleter answers every prompt with a fixed response and tracks
// how many calls were in flight at once.
type fakeCompleter struct {
	response string
	err      error
	delay    time.Duration

	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
	prompts  []string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string, _ llm.Params) (string, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.response, f.err
}

// fakeContexts returns snippets for pairs listed in byPair.
type fakeContexts struct {
	byPair map[string][]string
	err    error
	calls  atomic.Int32
}

func (f *fakeContexts) CitationContexts(_ context.Context, citingDOI, citedDOI string) ([]string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.byPair[citingDOI+">"+citedDOI], nil
}

const supportResponse = "INTENT: SUPPORT\nCONFIDENCE: 0.9\nREASONING: builds on it"

// star builds a graph where n citing papers (citation counts 1..n) each
// cite a single hub paper.
func star(n int) (map[string]paper.Paper, []paper.CitationEdge) {
	nodes := map[string]paper.Paper{"hub": {ID: "hub", Title: "Hub"}}
	var edges []paper.CitationEdge
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("p%d", i)
		nodes[id] = paper.Paper{ID: id, Title: "Paper " + id, CitationCount: i}
		edges = append(edges, paper.NewEdge(id, "hub"))
	}
	return nodes, edges
}

func TestRun_CapsByCitingCitationCount(t *testing.T) {
	nodes, edges := star(30)
	fc := &fakeCompleter{response: supportResponse}
	pl := New(fc)

	res, err := pl.Run(context.Background(), nodes, edges, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := fc.calls.Load(); got != DefaultCap {
		t.Errorf("completer called %d times, want %d", got, DefaultCap)
	}
	if len(res.Edges) != 30 {
		t.Fatalf("got %d edges, want all 30 back", len(res.Edges))
	}
	for i, e := range res.Edges {
		wantID := fmt.Sprintf("p%d", 30-i)
		if e.Source != wantID {
			t.Errorf("edge %d source = %s, want %s", i, e.Source, wantID)
		}
		wantIntent := paper.IntentSupport
		if i >= DefaultCap {
			wantIntent = paper.IntentUnknown
		}
		if e.Intent != wantIntent {
			t.Errorf("edge %d intent = %s, want %s", i, e.Intent, wantIntent)
		}
	}
	if res.Stats.Total != DefaultCap || res.Stats.LLMClassified != DefaultCap {
		t.Errorf("Stats = %+v", res.Stats)
	}
}

func TestRun_BoundedConcurrency(t *testing.T) {
	nodes, edges := star(12)
	fc := &fakeCompleter{response: supportResponse, delay: 20 * time.Millisecond}
	pl := New(fc, WithConcurrency(3))

	if _, err := pl.Run(context.Background(), nodes, edges, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if peak := fc.peak.Load(); peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}
}

func TestRun_CacheSkipsRepeatPairs(t *testing.T) {
	nodes, edges := star(3)
	fc := &fakeCompleter{response: supportResponse}
	pl := New(fc)

	if _, err := pl.Run(context.Background(), nodes, edges, nil); err != nil {
		t.Fatal(err)
	}
	res, err := pl.Run(context.Background(), nodes, edges, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := fc.calls.Load(); got != 3 {
		t.Errorf("completer called %d times across two runs, want 3", got)
	}
	if res.Stats.Cached != 3 || res.Stats.LLMClassified != 0 {
		t.Errorf("Stats = %+v, want 3 cached", res.Stats)
	}
	for _, e := range res.Edges {
		if e.Intent != paper.IntentSupport {
			t.Errorf("cached intent = %s", e.Intent)
		}
	}
}

func TestRun_ContextsBypassCache(t *testing.T) {
	nodes := map[string]paper.Paper{
		"a": {ID: "a", DOI: "10.1/a", Title: "A"},
		"b": {ID: "b", DOI: "10.1/b", Title: "B"},
	}
	edges := []paper.CitationEdge{paper.NewEdge("a", "b")}
	fc := &fakeCompleter{response: supportResponse + "\nFUNCTION: BASIS\nSENTIMENT: POSITIVE\nIMPORTANCE: 5\nKEY_CONCEPT: x"}
	cp := &fakeContexts{byPair: map[string][]string{"10.1/a>10.1/b": {"we build on [3]"}}}
	pl := New(fc, WithContextProvider("semantic_scholar", cp))

	for i := 0; i < 2; i++ {
		res, err := pl.Run(context.Background(), nodes, edges, nil)
		if err != nil {
			t.Fatal(err)
		}
		e := res.Edges[0]
		if len(e.Contexts) != 1 || e.Function != paper.FunctionBasis || e.Importance != 5 {
			t.Errorf("run %d: edge = %+v", i, e)
		}
	}
	if got := fc.calls.Load(); got != 2 {
		t.Errorf("completer called %d times, want 2 (contexts force recompute)", got)
	}
	if !strings.Contains(fc.prompts[0], "we build on [3]") {
		t.Error("deep prompt should include the citation context")
	}
}

func TestRun_ContextsOnlyWithBothDOIs(t *testing.T) {
	nodes := map[string]paper.Paper{
		"a": {ID: "a", DOI: "10.1/a"},
		"b": {ID: "b"},
	}
	edges := []paper.CitationEdge{paper.NewEdge("a", "b")}
	cp := &fakeContexts{}
	pl := New(&fakeCompleter{response: supportResponse}, WithContextProvider("s2", cp))

	if _, err := pl.Run(context.Background(), nodes, edges, nil); err != nil {
		t.Fatal(err)
	}
	if cp.calls.Load() != 0 {
		t.Error("context provider called for an edge without two DOIs")
	}
}

func TestRun_ContextFailureIsEmpty(t *testing.T) {
	nodes := map[string]paper.Paper{
		"a": {ID: "a", DOI: "10.1/a"},
		"b": {ID: "b", DOI: "10.1/b"},
	}
	edges := []paper.CitationEdge{paper.NewEdge("a", "b")}
	fc := &fakeCompleter{response: supportResponse}
	pl := New(fc, WithContextProvider("s2", &fakeContexts{err: errors.New("503")}))

	res, err := pl.Run(context.Background(), nodes, edges, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Edges[0].Intent != paper.IntentSupport || len(res.Edges[0].Contexts) != 0 {
		t.Errorf("edge = %+v", res.Edges[0])
	}
}

func TestRun_CompleterErrorNotCached(t *testing.T) {
	nodes, edges := star(1)
	fc := &fakeCompleter{err: errors.New("upstream down")}
	cache := NewMemoryCache()
	pl := New(fc, WithCache(cache))

	res, err := pl.Run(context.Background(), nodes, edges, nil)
	if err != nil {
		t.Fatal(err)
	}
	e := res.Edges[0]
	if e.Intent != paper.IntentNeutral || e.Confidence != 0.5 || !strings.HasPrefix(e.Reasoning, "analysis failed:") {
		t.Errorf("edge = %+v", e)
	}
	if res.Stats.Errors != 1 {
		t.Errorf("Stats = %+v", res.Stats)
	}
	if cache.Len() != 0 {
		t.Error("failed classification was cached")
	}
}

func TestRun_NoCompleter(t *testing.T) {
	nodes, edges := star(2)
	res, err := New(nil).Run(context.Background(), nodes, edges, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range res.Edges {
		if e.Intent != paper.IntentUnknown || e.Confidence != 0 || e.Reasoning != "LLM not configured" {
			t.Errorf("edge = %+v", e)
		}
	}
}

func TestRun_PreservesManualNote(t *testing.T) {
	nodes, edges := star(1)
	edges[0].Note = "checked by hand"
	res, err := New(&fakeCompleter{response: supportResponse}).Run(context.Background(), nodes, edges, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Edges[0].Note != "checked by hand" {
		t.Errorf("Note = %q", res.Edges[0].Note)
	}
}

func TestRun_Progress(t *testing.T) {
	nodes, edges := star(4)
	var (
		mu    sync.Mutex
		snaps []paper.Progress
	)
	pl := New(&fakeCompleter{response: supportResponse}, WithConcurrency(2))
	_, err := pl.Run(context.Background(), nodes, edges, func(p paper.Progress) {
		mu.Lock()
		snaps = append(snaps, p)
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 5 {
		t.Fatalf("got %d snapshots, want 5", len(snaps))
	}
	last := snaps[len(snaps)-1]
	if last.Status != paper.StatusAnalyzing || last.Progress != 4 || last.Total != 4 {
		t.Errorf("last snapshot = %+v", last)
	}
}

func TestRun_Cancelled(t *testing.T) {
	nodes, edges := star(5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(&fakeCompleter{response: supportResponse, delay: time.Second}).Run(ctx, nodes, edges, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestClassifyPair(t *testing.T) {
	fc := &fakeCompleter{response: "INTENT: OPPOSE\nCONFIDENCE: 0.6"}
	pl := New(fc)
	ann := pl.ClassifyPair(context.Background(), paper.Paper{ID: "a"}, paper.Paper{ID: "b"}, nil)
	if ann.Intent != paper.IntentOppose || ann.Confidence != 0.6 {
		t.Errorf("ClassifyPair() = %+v", ann)
	}
}
