// Package graph builds bounded citation graphs by breadth-first traversal
// over a fallback resolver.
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matsen/citethreads/internal/logger"
	"github.com/matsen/citethreads/internal/metrics"
	"github.com/matsen/citethreads/internal/paper"
	"github.com/matsen/citethreads/internal/resolver"
)

// Defaults for a build.
const (
	DefaultMaxPapers     = 30
	DefaultMaxDepth      = 1
	DefaultPerPaperLimit = 10
	DefaultPacingDelay   = 800 * time.Millisecond
)

// ErrInvalidRequest is returned for requests that cannot start a build.
var ErrInvalidRequest = errors.New("invalid build request")

// Classifier annotates the edges of a finished graph. It returns the edges
// with the same membership, possibly reordered, and only fails when ctx is
// cancelled.
type Classifier interface {
	Classify(ctx context.Context, nodes map[string]paper.Paper, edges []paper.CitationEdge, progress paper.ProgressFunc) ([]paper.CitationEdge, error)
}

// Request describes one build.
type Request struct {
	Seed       string          `json:"seed"`
	MaxDepth   int             `json:"max_depth"`
	Direction  paper.Direction `json:"direction"`
	Classify   bool            `json:"classify"`
	MaxPapers  int             `json:"max_papers"`
	DataSource string          `json:"data_source,omitempty"` // "auto" or a single source name
}

// Builder runs BFS builds. A Builder holds no per-build state and may run
// several builds concurrently.
type Builder struct {
	resolver      *resolver.Resolver
	classifier    Classifier
	perPaperLimit int
	pacing        time.Duration
	direction     paper.Direction
	metrics       *metrics.Metrics
	log           *logger.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithClassifier enables edge classification for requests that ask for it.
func WithClassifier(c Classifier) Option {
	return func(b *Builder) {
		b.classifier = c
	}
}

// WithPerPaperLimit sets how many neighbors are kept per paper per direction.
func WithPerPaperLimit(k int) Option {
	return func(b *Builder) {
		b.perPaperLimit = k
	}
}

// WithPacingDelay sets the pause between dependent external calls.
func WithPacingDelay(d time.Duration) Option {
	return func(b *Builder) {
		b.pacing = d
	}
}

// WithDefaultDirection sets the direction used when a request has none.
func WithDefaultDirection(d paper.Direction) Option {
	return func(b *Builder) {
		b.direction = d
	}
}

// WithMetrics records build outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) {
		b.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(b *Builder) {
		b.log = l
	}
}

// NewBuilder creates a builder over r.
func NewBuilder(r *resolver.Resolver, opts ...Option) *Builder {
	b := &Builder{
		resolver:      r,
		perPaperLimit: DefaultPerPaperLimit,
		pacing:        DefaultPacingDelay,
		direction:     paper.Both,
		log:           logger.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = logger.OrNop(b.log).With("component", "graph")
	return b
}

// normalize fills request defaults and rejects impossible values.
func (b *Builder) normalize(req Request) (Request, error) {
	if req.Seed == "" {
		return req, fmt.Errorf("%w: seed is required", ErrInvalidRequest)
	}
	if req.MaxPapers == 0 {
		req.MaxPapers = DefaultMaxPapers
	}
	if req.MaxPapers < 0 {
		return req, fmt.Errorf("%w: max_papers must be positive", ErrInvalidRequest)
	}
	if req.MaxDepth < 0 {
		return req, fmt.Errorf("%w: max_depth must not be negative", ErrInvalidRequest)
	}
	if req.Direction == "" {
		req.Direction = b.direction
	}
	if _, err := paper.ParseDirection(string(req.Direction)); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.DataSource == "" {
		req.DataSource = resolver.DataSourceAuto
	}
	return req, nil
}

// frontierItem is a queued paper ID and the depth it was discovered at.
type frontierItem struct {
	id    string
	depth int
	// stub is the record the neighbor list reported for id. It stands in
	// for the paper when no source can resolve id.
	stub paper.Paper
}

// crawl is the mutable state of one build.
type crawl struct {
	req         Request
	frontier    []frontierItem
	visited     map[string]bool
	nodes       map[string]paper.Paper
	order       []string          // node IDs in first-insertion order
	aliases     map[string]string // enqueued ID -> resolved ID
	edges       []paper.CitationEdge
	processed   int
	rateLimited bool
	progress    paper.ProgressFunc
}

func (c *crawl) report(status paper.Status, msg, current string) {
	total := len(c.visited) + len(c.frontier)
	if total > c.req.MaxPapers {
		total = c.req.MaxPapers
	}
	c.progress.Report(paper.Progress{
		Status:       status,
		Progress:     c.processed,
		Total:        total,
		Message:      msg,
		CurrentPaper: current,
	})
}

func (c *crawl) insert(p paper.Paper) {
	if _, ok := c.nodes[p.ID]; !ok {
		c.order = append(c.order, p.ID)
	}
	c.nodes[p.ID] = p
}

// Build traverses the citation graph around req.Seed.
//
// The returned graph never exceeds req.MaxPapers nodes, holds at most one
// edge per (source, target) pair and has no edge whose endpoints are
// missing. A neighbor no source can resolve keeps the record its neighbor
// list reported; an unresolvable seed yields an empty graph.
// If ctx is cancelled the partial graph is returned together with ctx.Err().
func (b *Builder) Build(ctx context.Context, req Request, progress paper.ProgressFunc) (paper.GraphData, error) {
	start := time.Now()
	req, err := b.normalize(req)
	if err != nil {
		return emptyGraph(), err
	}
	res, err := b.resolver.Restrict(req.DataSource)
	if err != nil {
		return emptyGraph(), fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	c := &crawl{
		req:      req,
		frontier: []frontierItem{{id: req.Seed}},
		visited:  make(map[string]bool),
		nodes:    make(map[string]paper.Paper),
		aliases:  make(map[string]string),
		progress: progress,
	}
	log := b.log.With("seed", req.Seed)
	log.Info("starting graph build",
		"max_depth", req.MaxDepth,
		"direction", req.Direction,
		"max_papers", req.MaxPapers,
		"data_source", req.DataSource,
	)
	c.report(paper.StatusCrawling, fmt.Sprintf("Starting graph build (source: %s)...", req.DataSource), "")

	err = b.traverse(ctx, res, c)
	g := c.assemble()

	if err != nil {
		log.Warn("graph build cancelled", "nodes", len(g.Nodes), "edges", len(g.Edges), "error", err)
		b.metrics.RecordBuild(string(paper.StatusCancelled), time.Since(start))
		return g, err
	}
	log.Info("graph built", "nodes", len(g.Nodes), "edges", len(g.Edges))

	if req.Classify && b.classifier != nil && len(g.Edges) > 0 {
		c.report(paper.StatusAnalyzing, "Analyzing citation intents...", "")
		edges, err := b.classifier.Classify(ctx, c.nodes, g.Edges, progress)
		if err != nil {
			b.metrics.RecordBuild(string(paper.StatusCancelled), time.Since(start))
			return g, err
		}
		g.Edges = edges
	}

	msg := fmt.Sprintf("Done! %d papers, %d citations", len(g.Nodes), len(g.Edges))
	if c.rateLimited {
		msg += " (some data unavailable due to rate limiting)"
	}
	c.report(paper.StatusCompleted, msg, "")
	b.metrics.RecordBuild(string(paper.StatusCompleted), time.Since(start))
	return g, nil
}

// traverse runs the BFS loop until the frontier empties, the node budget
// fills or ctx is cancelled.
func (b *Builder) traverse(ctx context.Context, res *resolver.Resolver, c *crawl) error {
	for len(c.frontier) > 0 && len(c.nodes) < c.req.MaxPapers {
		if err := ctx.Err(); err != nil {
			return err
		}

		item := c.frontier[0]
		c.frontier = c.frontier[1:]
		if c.visited[item.id] {
			continue
		}
		c.visited[item.id] = true
		c.processed++
		c.report(paper.StatusCrawling, fmt.Sprintf("Fetching paper %d/%d...", c.processed, c.req.MaxPapers), item.id)

		p, ok := res.FetchPaper(ctx, item.id)
		if !ok {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if len(res.LimitedSources()) > 0 {
				c.rateLimited = true
				c.report(paper.StatusRateLimited, "Rate limited, trying fallback sources...", item.id)
			}
			if item.stub.ID == "" {
				continue
			}
			b.log.Debug("keeping neighbor record", "paper", item.id)
			p = item.stub
		}

		_, seen := c.nodes[p.ID]
		if !seen {
			c.insert(p)
		}
		if p.ID != item.id {
			c.aliases[item.id] = p.ID
			c.visited[p.ID] = true
		}
		if seen {
			continue
		}

		if item.depth >= c.req.MaxDepth || len(c.nodes) >= c.req.MaxPapers {
			continue
		}
		if err := b.pause(ctx); err != nil {
			return err
		}

		for _, dir := range c.req.Direction.Expand() {
			if err := b.expand(ctx, res, c, p, item.depth, dir); err != nil {
				return err
			}
		}
	}
	return ctx.Err()
}

// expand fetches one direction of p's neighbors, records edges to the top
// cited ones and enqueues those not yet visited.
func (b *Builder) expand(ctx context.Context, res *resolver.Resolver, c *crawl, p paper.Paper, depth int, dir paper.Direction) error {
	label := "references"
	if dir == paper.Backward {
		label = "citations"
	}
	c.report(paper.StatusCrawling, fmt.Sprintf("Fetching %s: %s...", label, truncate(p.Title, 35)), p.ID)

	neighbors, ok := res.FetchNeighbors(ctx, p, dir, 2*b.perPaperLimit)
	if !ok {
		b.log.Debug("no neighbors found", "paper", p.ID, "direction", dir)
	}
	for _, n := range paper.TopCited(neighbors, b.perPaperLimit) {
		if n.ID == "" || n.ID == p.ID {
			continue
		}
		c.edges = append(c.edges, dir.Orient(p.ID, n.ID))
		if !c.visited[n.ID] && len(c.nodes) < c.req.MaxPapers {
			c.frontier = append(c.frontier, frontierItem{id: n.ID, depth: depth + 1, stub: n})
		}
	}
	return b.pause(ctx)
}

// assemble produces the final graph: edge endpoints rewritten through the
// alias map, duplicates and orphans dropped, nodes sorted by citations.
func (c *crawl) assemble() paper.GraphData {
	edges := make([]paper.CitationEdge, 0, len(c.edges))
	for _, e := range c.edges {
		e.Source = c.resolve(e.Source)
		e.Target = c.resolve(e.Target)
		if e.Validate() != nil {
			continue
		}
		edges = append(edges, e)
	}
	edges = paper.FilterOrphanEdges(paper.DedupEdges(edges), c.nodes)

	nodes := make([]paper.Paper, 0, len(c.order))
	for _, id := range c.order {
		nodes = append(nodes, c.nodes[id])
	}
	paper.SortByCitations(nodes)
	return paper.GraphData{Nodes: nodes, Edges: edges}
}

func (c *crawl) resolve(id string) string {
	if alias, ok := c.aliases[id]; ok {
		return alias
	}
	return id
}

// pause waits for the pacing delay or until ctx is done.
func (b *Builder) pause(ctx context.Context) error {
	if b.pacing <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(b.pacing)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func emptyGraph() paper.GraphData {
	return paper.GraphData{Nodes: []paper.Paper{}, Edges: []paper.CitationEdge{}}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
