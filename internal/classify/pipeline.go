// Package classify annotates citation edges with an intent label inferred
// by a text-completion model.
//
// A batch runs in two bounded-concurrency stages: citation-context retrieval
// for edges whose endpoints both carry a DOI, then label inference with a
// prompt chosen by the richest available signal. Only the highest-priority
// edges are sent through; the rest keep an UNKNOWN annotation.
package classify

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/matsen/citethreads/internal/llm"
	"github.com/matsen/citethreads/internal/logger"
	"github.com/matsen/citethreads/internal/metrics"
	"github.com/matsen/citethreads/internal/paper"
	"github.com/matsen/citethreads/internal/source"
)

// Defaults for a pipeline.
const (
	DefaultCap         = 20
	DefaultConcurrency = 5
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 300
)

// Classification outcomes, used as metric labels.
const (
	OutcomeLLM     = "llm"
	OutcomeCached  = "cached"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Stats summarizes one batch.
type Stats struct {
	Total         int `json:"total"`
	LLMClassified int `json:"llm_classified"`
	Cached        int `json:"cached"`
	Errors        int `json:"errors"`
}

// Pipeline classifies edges. It is safe for concurrent use; the cache is
// shared by every batch run through the same Pipeline.
type Pipeline struct {
	completer   llm.Completer
	contexts    source.ContextProvider
	contextName string
	cache       Cache
	cap         int
	concurrency int
	params      llm.Params
	metrics     *metrics.Metrics
	log         *logger.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithContextProvider enables stage A using p, reported under name.
func WithContextProvider(name string, p source.ContextProvider) Option {
	return func(pl *Pipeline) {
		pl.contextName = name
		pl.contexts = p
	}
}

// WithCache replaces the default in-memory cache.
func WithCache(c Cache) Option {
	return func(pl *Pipeline) {
		pl.cache = c
	}
}

// WithCap sets how many edges per batch are classified.
func WithCap(n int) Option {
	return func(pl *Pipeline) {
		pl.cap = n
	}
}

// WithConcurrency bounds simultaneous outbound calls in each stage.
func WithConcurrency(n int) Option {
	return func(pl *Pipeline) {
		pl.concurrency = n
	}
}

// WithParams overrides the completion parameters.
func WithParams(p llm.Params) Option {
	return func(pl *Pipeline) {
		pl.params = p
	}
}

// WithMetrics records classification outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(pl *Pipeline) {
		pl.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(pl *Pipeline) {
		pl.log = l
	}
}

// New creates a pipeline. A nil completer is allowed: every edge then gets
// an UNKNOWN annotation explaining that no model is configured.
func New(completer llm.Completer, opts ...Option) *Pipeline {
	pl := &Pipeline{
		completer:   completer,
		cap:         DefaultCap,
		concurrency: DefaultConcurrency,
		params:      llm.Params{Temperature: DefaultTemperature, MaxTokens: DefaultMaxTokens},
	}
	for _, opt := range opts {
		opt(pl)
	}
	if pl.cache == nil {
		pl.cache = NewMemoryCache()
	}
	if pl.concurrency < 1 {
		pl.concurrency = 1
	}
	pl.log = logger.OrNop(pl.log).With("component", "classify")
	return pl
}

// Result is a classified batch.
type Result struct {
	Edges []paper.CitationEdge
	Stats Stats
}

// Classify implements graph.Classifier.
func (pl *Pipeline) Classify(ctx context.Context, nodes map[string]paper.Paper, edges []paper.CitationEdge, progress paper.ProgressFunc) ([]paper.CitationEdge, error) {
	res, err := pl.Run(ctx, nodes, edges, progress)
	return res.Edges, err
}

// Run classifies up to the cap of edges, ranked by the citing paper's
// citation count. The returned edges are the classified ones in rank order
// followed by the untouched remainder. Only cancellation of ctx fails a
// batch; every other failure is folded into an edge's annotation.
func (pl *Pipeline) Run(ctx context.Context, nodes map[string]paper.Paper, edges []paper.CitationEdge, progress paper.ProgressFunc) (Result, error) {
	ranked := rankEdges(nodes, edges)
	n := len(ranked)
	if pl.cap >= 0 && n > pl.cap {
		n = pl.cap
	}
	head := ranked[:n]

	if err := ctx.Err(); err != nil {
		return Result{Edges: ranked}, err
	}
	progress.Report(paper.Progress{
		Status:  paper.StatusAnalyzing,
		Total:   len(head),
		Message: "Fetching citation contexts...",
	})
	contexts, err := pl.fetchContexts(ctx, nodes, head)
	if err != nil {
		return Result{Edges: ranked}, err
	}

	outcomes := make([]string, len(head))
	annotations := make([]paper.Annotation, len(head))
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pl.concurrency)
	for i, e := range head {
		citing, okS := nodes[e.Source]
		cited, okT := nodes[e.Target]
		if !okS || !okT {
			annotations[i] = e.Annotation
			outcomes[i] = OutcomeSkipped
			continue
		}
		g.Go(func() error {
			ann, outcome := pl.classifyPair(gctx, citing, cited, contexts[i])
			if err := gctx.Err(); err != nil {
				return err
			}
			annotations[i] = ann
			outcomes[i] = outcome

			mu.Lock()
			defer mu.Unlock()
			done++
			progress.Report(paper.Progress{
				Status:   paper.StatusAnalyzing,
				Progress: done,
				Total:    len(head),
				Message:  fmt.Sprintf("Classifying citations (%d/%d)", done, len(head)),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{Edges: ranked}, err
	}

	out := make([]paper.CitationEdge, len(ranked))
	copy(out, ranked)
	stats := Stats{Total: len(head)}
	for i := range head {
		note := out[i].Note
		out[i].Annotation = annotations[i]
		out[i].Note = note
		if len(contexts[i]) > 0 {
			out[i].Contexts = contexts[i]
		}

		switch outcomes[i] {
		case OutcomeLLM:
			stats.LLMClassified++
		case OutcomeCached:
			stats.Cached++
		case OutcomeError:
			stats.Errors++
		}
		pl.metrics.RecordClassification(outcomes[i])
	}

	pl.log.Info("classification batch finished",
		"edges", len(edges),
		"classified", stats.Total,
		"llm", stats.LLMClassified,
		"cached", stats.Cached,
		"errors", stats.Errors,
	)
	return Result{Edges: out, Stats: stats}, nil
}

// fetchContexts runs stage A. Slot i holds the snippets for head[i]; a
// failed or skipped lookup leaves it empty.
func (pl *Pipeline) fetchContexts(ctx context.Context, nodes map[string]paper.Paper, head []paper.CitationEdge) ([][]string, error) {
	out := make([][]string, len(head))
	if pl.contexts == nil {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pl.concurrency)
	for i, e := range head {
		citing, cited := nodes[e.Source], nodes[e.Target]
		if citing.DOI == "" || cited.DOI == "" {
			continue
		}
		g.Go(func() error {
			snippets, err := pl.contexts.CitationContexts(gctx, citing.DOI, cited.DOI)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				pl.metrics.RecordFetch(pl.contextName, metrics.OpContexts, metrics.ResultError)
				pl.log.Debug("citation context lookup failed", "citing", citing.DOI, "cited", cited.DOI, "error", err)
				return nil
			}
			result := metrics.ResultSuccess
			if len(snippets) == 0 {
				result = metrics.ResultEmpty
			}
			pl.metrics.RecordFetch(pl.contextName, metrics.OpContexts, result)
			out[i] = snippets
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ClassifyPair classifies a single citing/cited pair outside a batch.
func (pl *Pipeline) ClassifyPair(ctx context.Context, citing, cited paper.Paper, contexts []string) paper.Annotation {
	ann, outcome := pl.classifyPair(ctx, citing, cited, contexts)
	pl.metrics.RecordClassification(outcome)
	return ann
}

// classifyPair consults the cache unless fresh contexts are available, then
// asks the model. Failed and unconfigured results are never cached.
func (pl *Pipeline) classifyPair(ctx context.Context, citing, cited paper.Paper, contexts []string) (paper.Annotation, string) {
	key := paper.EdgeKey{Source: citing.ID, Target: cited.ID}
	if len(contexts) == 0 {
		if ann, ok := pl.cache.Get(ctx, key); ok {
			return ann, OutcomeCached
		}
	}

	if pl.completer == nil {
		ann := paper.UnknownAnnotation()
		ann.Reasoning = "LLM not configured"
		return ann, OutcomeSkipped
	}

	prompt, tier := BuildPrompt(citing, cited, contexts)
	text, err := pl.completer.Complete(ctx, prompt, pl.params)
	if err != nil {
		pl.log.Warn("classification call failed", "citing", citing.ID, "cited", cited.ID, "error", err)
		ann := paper.UnknownAnnotation()
		ann.Intent = paper.IntentNeutral
		ann.Confidence = 0.5
		ann.Reasoning = "analysis failed: " + err.Error()
		return ann, OutcomeError
	}

	ann := ParseResponse(text, tier == TierDeep)
	ann.Contexts = contexts
	pl.cache.Set(ctx, key, ann)
	return ann, OutcomeLLM
}

// rankEdges returns a copy of edges sorted by the citing paper's citation
// count, highest first; ties keep their input order.
func rankEdges(nodes map[string]paper.Paper, edges []paper.CitationEdge) []paper.CitationEdge {
	ranked := make([]paper.CitationEdge, len(edges))
	copy(ranked, edges)
	sort.SliceStable(ranked, func(i, j int) bool {
		return nodes[ranked[i].Source].CitationCount > nodes[ranked[j].Source].CitationCount
	})
	return ranked
}
