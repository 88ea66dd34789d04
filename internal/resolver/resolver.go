// Package resolver fetches papers and their neighbors through an ordered
// fallback chain of data sources, skipping sources that are cooling down
// after a rate limit.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matsen/citethreads/internal/availability"
	"github.com/matsen/citethreads/internal/logger"
	"github.com/matsen/citethreads/internal/metrics"
	"github.com/matsen/citethreads/internal/paper"
	"github.com/matsen/citethreads/internal/source"
)

// DataSourceAuto selects the full fallback chain.
const DataSourceAuto = "auto"

// ErrNoSources is returned when a restriction leaves an empty chain.
var ErrNoSources = errors.New("no data sources available")

// Entry is one position in a fallback chain.
type Entry struct {
	Source source.Source

	// Translate maps a resolved paper to this source's ID for neighbor
	// lookups. Nil uses the Translators table entry for the source name.
	Translate Translator

	// MarkOnFailure marks the source limited when a paper fetch fails for
	// any reason, not only on an explicit rate limit.
	MarkOnFailure bool
}

func (e Entry) name() string {
	return e.Source.Name()
}

func (e Entry) translate(p paper.Paper) (string, bool) {
	if e.Translate != nil {
		return e.Translate(p)
	}
	return translatorFor(e.name())(p)
}

// Resolver walks fallback chains. It is safe for concurrent use as long as
// the sources and tracker are.
type Resolver struct {
	papers      []Entry
	neighbors   []Entry
	search      []source.Source
	tracker     *availability.Tracker
	callTimeout time.Duration
	metrics     *metrics.Metrics
	log         *logger.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCallTimeout bounds every individual source call.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.callTimeout = d
	}
}

// WithMetrics records per-source call outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Resolver) {
		r.log = l
	}
}

// WithSearchSources overrides the sources queried by Search. By default
// every distinct source in either chain is searched.
func WithSearchSources(srcs ...source.Source) Option {
	return func(r *Resolver) {
		r.search = srcs
	}
}

// New creates a resolver over a paper chain and a neighbor chain sharing
// one availability tracker.
func New(tracker *availability.Tracker, paperChain, neighborChain []Entry, opts ...Option) *Resolver {
	if tracker == nil {
		tracker = availability.New()
	}
	r := &Resolver{
		papers:    paperChain,
		neighbors: neighborChain,
		tracker:   tracker,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logger.OrNop(r.log)
	if r.search == nil {
		r.search = distinctSources(paperChain, neighborChain)
	}
	return r
}

func distinctSources(chains ...[]Entry) []source.Source {
	seen := make(map[string]bool)
	var out []source.Source
	for _, chain := range chains {
		for _, e := range chain {
			if seen[e.name()] {
				continue
			}
			seen[e.name()] = true
			out = append(out, e.Source)
		}
	}
	return out
}

// Tracker returns the shared availability tracker.
func (r *Resolver) Tracker() *availability.Tracker {
	return r.tracker
}

// Restrict returns a resolver limited to a single named source. "auto" or
// an empty name returns r unchanged. The restricted resolver shares r's
// tracker, so cooldowns carry over.
func (r *Resolver) Restrict(name string) (*Resolver, error) {
	if name == "" || name == DataSourceAuto {
		return r, nil
	}
	filter := func(chain []Entry) []Entry {
		var out []Entry
		for _, e := range chain {
			if e.name() == name {
				out = append(out, e)
			}
		}
		return out
	}
	rr := *r
	rr.papers = filter(r.papers)
	rr.neighbors = filter(r.neighbors)
	if len(rr.papers) == 0 && len(rr.neighbors) == 0 {
		return nil, fmt.Errorf("%w: %q is not configured", ErrNoSources, name)
	}
	rr.search = distinctSources(rr.papers, rr.neighbors)
	return &rr, nil
}

// SourceNames returns the paper chain's source names in order.
func (r *Resolver) SourceNames() []string {
	names := make([]string, 0, len(r.papers))
	for _, e := range r.papers {
		names = append(names, e.name())
	}
	return names
}

// LimitedSources returns the chain sources currently cooling down.
func (r *Resolver) LimitedSources() []string {
	var out []string
	for _, s := range distinctSources(r.papers, r.neighbors) {
		if !r.tracker.IsAvailable(s.Name()) {
			out = append(out, s.Name())
		}
	}
	return out
}

// FetchPaper returns the first successful result from the paper chain.
// Unavailable sources are skipped. A rate-limit error always marks the
// source limited; entries with MarkOnFailure are also marked on transport
// errors and invalid responses, but never on a missing paper. The boolean is false when every source failed or was skipped.
func (r *Resolver) FetchPaper(ctx context.Context, id string) (paper.Paper, bool) {
	for _, e := range r.papers {
		if ctx.Err() != nil {
			return paper.Paper{}, false
		}
		name := e.name()
		if !r.tracker.IsAvailable(name) {
			r.metrics.RecordFetch(name, metrics.OpPaper, metrics.ResultSkipped)
			continue
		}

		callCtx, cancel := r.callContext(ctx)
		p, err := e.Source.GetPaper(callCtx, id)
		cancel()

		if err == nil && p.ID != "" {
			r.metrics.RecordFetch(name, metrics.OpPaper, metrics.ResultSuccess)
			return p, true
		}
		if err == nil {
			err = source.ErrNotFound
		}
		r.recordFailure(ctx, name, metrics.OpPaper, err, e.MarkOnFailure)
	}
	return paper.Paper{}, false
}

// FetchNeighbors returns up to limit neighbors of p in a single direction
// (Forward for references, Backward for citations) from the first source
// that yields a non-empty list. Sources that cannot address p are skipped.
func (r *Resolver) FetchNeighbors(ctx context.Context, p paper.Paper, dir paper.Direction, limit int) ([]paper.Paper, bool) {
	op := metrics.OpReferences
	if dir == paper.Backward {
		op = metrics.OpCitations
	}

	for _, e := range r.neighbors {
		if ctx.Err() != nil {
			return nil, false
		}
		name := e.name()
		if !r.tracker.IsAvailable(name) {
			r.metrics.RecordFetch(name, op, metrics.ResultSkipped)
			continue
		}
		id, ok := e.translate(p)
		if !ok {
			continue
		}

		callCtx, cancel := r.callContext(ctx)
		var (
			papers []paper.Paper
			err    error
		)
		if dir == paper.Backward {
			papers, err = e.Source.GetCitations(callCtx, id, limit)
		} else {
			papers, err = e.Source.GetReferences(callCtx, id, limit)
		}
		cancel()

		if err != nil {
			r.recordFailure(ctx, name, op, err, false)
			continue
		}
		if len(papers) == 0 {
			r.metrics.RecordFetch(name, op, metrics.ResultEmpty)
			continue
		}
		r.metrics.RecordFetch(name, op, metrics.ResultSuccess)
		return papers, true
	}
	return nil, false
}

func (r *Resolver) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.callTimeout > 0 {
		return context.WithTimeout(ctx, r.callTimeout)
	}
	return context.WithCancel(ctx)
}

// recordFailure logs, counts and, where required, marks a failed call.
// Unsupported lookups, missing papers and caller cancellation never mark a
// source.
func (r *Resolver) recordFailure(ctx context.Context, name, op string, err error, markOnFailure bool) {
	switch {
	case ctx.Err() != nil:
		return
	case source.IsRateLimited(err):
		r.metrics.RecordFetch(name, op, metrics.ResultRateLimited)
		r.log.Warn("source rate limited", "source", name, "op", op)
		r.tracker.MarkLimited(name)
	case source.IsUnsupported(err):
		r.metrics.RecordFetch(name, op, metrics.ResultSkipped)
	case source.IsNotFound(err):
		r.metrics.RecordFetch(name, op, metrics.ResultNotFound)
	default:
		r.metrics.RecordFetch(name, op, metrics.ResultError)
		r.log.Debug("source call failed", "source", name, "op", op, "error", err)
		if markOnFailure {
			r.tracker.MarkLimited(name)
		}
	}
}
