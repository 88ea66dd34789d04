package project

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/matsen/citethreads/internal/availability"
	"github.com/matsen/citethreads/internal/classify"
	"github.com/matsen/citethreads/internal/config"
	"github.com/matsen/citethreads/internal/graph"
	"github.com/matsen/citethreads/internal/llm"
	"github.com/matsen/citethreads/internal/paper"
	"github.com/matsen/citethreads/internal/resolver"
	"github.com/matsen/citethreads/internal/source/sourcetest"
	"github.com/matsen/citethreads/internal/store"
	"github.com/matsen/citethreads/internal/task"
)

type cannedCompleter string

func (c cannedCompleter) Complete(context.Context, string, llm.Params) (string, error) {
	return string(c), nil
}

type recordingMirror struct {
	mu       sync.Mutex
	mirrored map[string]paper.GraphData
	deleted  []string
}

func (m *recordingMirror) MirrorGraph(_ context.Context, id string, g paper.GraphData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mirrored == nil {
		m.mirrored = make(map[string]paper.GraphData)
	}
	m.mirrored[id] = g
	return nil
}

func (m *recordingMirror) DeleteProject(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	return nil
}

func oa(n, citations int) paper.Paper {
	return paper.Paper{ID: fmt.Sprintf("OpenAlex:W%d", n), Title: fmt.Sprintf("Paper %d", n), Year: 2000 + n, CitationCount: citations}
}

// seedSource holds W1 citing W2 and W3, and W4 citing W1.
func seedSource() *sourcetest.Mem {
	mem := sourcetest.NewMem(config.SourceOpenAlex)
	w1, w2, w3, w4 := oa(1, 10), oa(2, 5), oa(3, 1), oa(4, 7)
	mem.Add(w1, w2, w3, w4)
	mem.Link(w1, w2)
	mem.Link(w1, w3)
	mem.Link(w4, w1)
	return mem
}

type fixture struct {
	svc    *Service
	db     *store.DB
	mem    *sourcetest.Mem
	mirror *recordingMirror
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newBuilderFixture(t, nil, opts...)
}

// newBuilderFixture is newFixture with extra graph builder options.
func newBuilderFixture(t *testing.T, builderOpts []graph.Option, opts ...Option) *fixture {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "projects.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mem := seedSource()
	chain := []resolver.Entry{{Source: mem}}
	r := resolver.New(availability.New(), chain, chain)
	b := graph.NewBuilder(r, append([]graph.Option{graph.WithPacingDelay(0)}, builderOpts...)...)
	tasks := task.NewManager(nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tasks.Shutdown(ctx)
	})

	mirror := &recordingMirror{}
	opts = append([]Option{WithMirror(mirror)}, opts...)
	return &fixture{
		svc:    NewService(db, b, tasks, opts...),
		db:     db,
		mem:    mem,
		mirror: mirror,
	}
}

func wait(t *testing.T, h *task.Handle) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	select {
	case <-h.Done():
		return h.Err()
	case <-ctx.Done():
		t.Fatal("task did not finish")
		return nil
	}
}

func TestCreateBuildsGraph(t *testing.T) {
	f := newFixture(t)

	p, h, err := f.svc.Create(CreateRequest{SeedPaperID: "OpenAlex:W1", MaxPapers: 10})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.Config.Direction != paper.Both || p.Config.Depth != 1 {
		t.Errorf("defaults not applied: %+v", p.Config)
	}
	if err := wait(t, h); err != nil {
		t.Fatalf("build error = %v", err)
	}

	got, err := f.svc.Get(p.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != paper.StatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if got.StatusMsg != "Done! 4 papers, 3 citations" {
		t.Errorf("StatusMsg = %q", got.StatusMsg)
	}
	if got.Stats == nil || got.Stats.TotalNodes != 4 || got.Stats.TotalEdges != 3 {
		t.Errorf("Stats = %+v", got.Stats)
	}

	prog, err := f.svc.Status(p.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if prog.Status != paper.StatusCompleted || prog.Progress != 100 {
		t.Errorf("Status() = %+v", prog)
	}

	if g, ok := f.mirror.mirrored[p.ID]; !ok || len(g.Nodes) != 4 {
		t.Errorf("mirror received %+v", f.mirror.mirrored)
	}
}

// countingClassifier records how many builds asked for classification.
type countingClassifier struct {
	mu    sync.Mutex
	calls int
}

func (c *countingClassifier) Classify(_ context.Context, _ map[string]paper.Paper, edges []paper.CitationEdge, _ paper.ProgressFunc) ([]paper.CitationEdge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return edges, nil
}

func TestCreateClassifyOption(t *testing.T) {
	off := false
	tests := []struct {
		name      string
		classify  *bool
		wantCalls int
	}{
		{"default classifies", nil, 1},
		{"disabled skips classification", &off, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls := &countingClassifier{}
			f := newBuilderFixture(t, []graph.Option{graph.WithClassifier(cls)})

			p, h, err := f.svc.Create(CreateRequest{SeedPaperID: "OpenAlex:W1", Classify: tt.classify})
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if err := wait(t, h); err != nil {
				t.Fatalf("build error = %v", err)
			}
			if cls.calls != tt.wantCalls {
				t.Errorf("classifier calls = %d, want %d", cls.calls, tt.wantCalls)
			}

			got, err := f.svc.Get(p.ID)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if want := tt.wantCalls == 1; got.Config.ShouldClassify() != want {
				t.Errorf("stored ShouldClassify() = %v, want %v", got.Config.ShouldClassify(), want)
			}
		})
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{"empty seed", CreateRequest{}, ErrEmptySeed},
		{"depth too deep", CreateRequest{SeedPaperID: "x", Depth: 4}, ErrInvalidDepth},
		{"too few papers", CreateRequest{SeedPaperID: "x", MaxPapers: 5}, ErrInvalidPapers},
		{"too many papers", CreateRequest{SeedPaperID: "x", MaxPapers: 500}, ErrInvalidPapers},
		{"unknown source", CreateRequest{SeedPaperID: "x", DataSource: "scopus"}, ErrInvalidSource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := f.svc.Create(tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Create() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, _, err := f.svc.Create(CreateRequest{SeedPaperID: "x", Direction: "sideways"}); err == nil {
		t.Error("Create() with bad direction should fail")
	}

	list, _ := f.svc.List()
	if len(list) != 0 {
		t.Errorf("invalid requests stored %d projects", len(list))
	}
}

func TestBuildFailureIsRecorded(t *testing.T) {
	f := newFixture(t)

	// Crossref is a known source but not in this resolver's chains.
	p, h, err := f.svc.Create(CreateRequest{SeedPaperID: "OpenAlex:W1", DataSource: config.SourceCrossref})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := wait(t, h); !errors.Is(err, graph.ErrInvalidRequest) {
		t.Fatalf("build error = %v, want ErrInvalidRequest", err)
	}
	got, _ := f.svc.Get(p.ID)
	if got.Status != paper.StatusFailed {
		t.Errorf("Status = %q, want failed", got.Status)
	}
	if h.Progress().Status != paper.StatusFailed {
		t.Errorf("handle status = %q, want failed", h.Progress().Status)
	}
}

func TestDeleteCancelsRunningBuild(t *testing.T) {
	f := newFixture(t)
	f.mem.Block()
	defer f.mem.Release()

	p, h, err := f.svc.Create(CreateRequest{SeedPaperID: "OpenAlex:W1"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	prog, err := f.svc.Status(p.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if prog.Status != paper.StatusCrawling {
		t.Errorf("Status() = %q while running, want crawling", prog.Status)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.svc.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !h.Finished() {
		t.Error("Delete() returned before the build stopped")
	}
	if _, err := f.svc.Get(p.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if len(f.mirror.deleted) != 1 || f.mirror.deleted[0] != p.ID {
		t.Errorf("mirror deletions = %v", f.mirror.deleted)
	}
	if err := f.svc.Delete(ctx, p.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestAnalyze(t *testing.T) {
	pipeline := classify.New(cannedCompleter("INTENT: SUPPORT\nCONFIDENCE: 0.9\nREASONING: extends it"))
	f := newFixture(t, WithPipeline(pipeline))

	p, h, err := f.svc.Create(CreateRequest{SeedPaperID: "OpenAlex:W1"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := wait(t, h); err != nil {
		t.Fatalf("build error = %v", err)
	}

	h, err = f.svc.Analyze(p.ID)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if err := wait(t, h); err != nil {
		t.Fatalf("analysis error = %v", err)
	}

	g, _ := f.svc.Graph(p.ID)
	for _, e := range g.Edges {
		if e.Intent != paper.IntentSupport || e.Confidence != 0.9 {
			t.Errorf("edge %s = %s %.2f, want SUPPORT 0.90", e.Key(), e.Intent, e.Confidence)
		}
	}
	got, _ := f.svc.Get(p.ID)
	if got.Status != paper.StatusCompleted {
		t.Errorf("Status = %q", got.Status)
	}
	if got.StatusMsg != "Analyzed 3 citations (3 classified, 0 cached, 0 failed)" {
		t.Errorf("StatusMsg = %q", got.StatusMsg)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Analyze("anything"); !errors.Is(err, ErrNotClassifying) {
		t.Errorf("Analyze() without pipeline error = %v, want ErrNotClassifying", err)
	}

	f = newFixture(t, WithPipeline(classify.New(nil)))
	if _, err := f.svc.Analyze("missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Analyze(missing) error = %v, want ErrNotFound", err)
	}

	f.mem.Block()
	defer f.mem.Release()
	p, _, err := f.svc.Create(CreateRequest{SeedPaperID: "OpenAlex:W1"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := f.svc.Analyze(p.ID); !errors.Is(err, task.ErrRunning) {
		t.Errorf("Analyze() during build error = %v, want ErrRunning", err)
	}
}

func TestCuration(t *testing.T) {
	f := newFixture(t)
	p, h, _ := f.svc.Create(CreateRequest{SeedPaperID: "OpenAlex:W1", Name: "Curated"})
	if err := wait(t, h); err != nil {
		t.Fatalf("build error = %v", err)
	}

	if err := f.svc.UpdateEdge(p.ID, "OpenAlex:W1", "OpenAlex:W2", "oppose", "contradicts results"); err != nil {
		t.Fatalf("UpdateEdge() error = %v", err)
	}
	if err := f.svc.UpdateEdge(p.ID, "OpenAlex:W1", "OpenAlex:W2", "maybe", ""); !errors.Is(err, paper.ErrInvalidIntent) {
		t.Errorf("UpdateEdge(bad intent) error = %v, want ErrInvalidIntent", err)
	}
	if err := f.svc.DeletePaper(p.ID, "OpenAlex:W3"); err != nil {
		t.Fatalf("DeletePaper() error = %v", err)
	}

	renamed, err := f.svc.Rename(p.ID, "Renamed")
	if err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if renamed.Name != "Renamed" {
		t.Errorf("Name = %q", renamed.Name)
	}

	g, _ := f.svc.Graph(p.ID)
	if len(g.Nodes) != 3 || len(g.Edges) != 2 {
		t.Fatalf("graph = %d nodes %d edges, want 3 and 2", len(g.Nodes), len(g.Edges))
	}
	for _, e := range g.Edges {
		if e.Target == "OpenAlex:W2" && (e.Intent != paper.IntentOppose || e.Note != "contradicts results") {
			t.Errorf("curated edge = %+v", e)
		}
	}
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		id   string
		want error
	}{
		{"1a2b3c4d", nil},
		{"my-project", nil},
		{"", ErrEmptyID},
		{"UPPER", ErrInvalidID},
		{"-dash", ErrInvalidID},
		{"has space", ErrInvalidID},
	}
	for _, tt := range tests {
		if err := ValidateID(tt.id); !errors.Is(err, tt.want) {
			t.Errorf("ValidateID(%q) = %v, want %v", tt.id, err, tt.want)
		}
	}
}
