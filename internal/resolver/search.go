package resolver

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/matsen/citethreads/internal/metrics"
	"github.com/matsen/citethreads/internal/paper"
	"github.com/matsen/citethreads/internal/source"
)

// QueryType classifies a user-entered lookup string.
type QueryType string

const (
	QueryDOI   QueryType = "doi"
	QueryArXiv QueryType = "arxiv"
	QueryTitle QueryType = "title"
)

var (
	doiQueryPattern   = regexp.MustCompile(`^10\.\d{4,}/`)
	arxivQueryPattern = regexp.MustCompile(`(?i)^(arxiv:)?\d{4}\.\d{4,5}(v\d+)?$`)
)

// DetectQueryType decides whether q is a DOI, an arXiv ID or free text.
func DetectQueryType(q string) QueryType {
	q = strings.TrimSpace(q)
	bare := paper.NormalizeDOI(q)
	switch {
	case doiQueryPattern.MatchString(bare):
		return QueryDOI
	case arxivQueryPattern.MatchString(q), strings.Contains(strings.ToLower(q), "arxiv.org"):
		return QueryArXiv
	}
	return QueryTitle
}

// SearchResult is the merged outcome of a multi-source search.
type SearchResult struct {
	Papers []paper.Paper      `json:"papers"`
	Errors map[string]string `json:"errors,omitempty"` // Per-source failure messages
}

// Search queries every search source concurrently, or only those named in
// sources when it is non-empty. Results are concatenated in source order
// and deduplicated by DOI and normalized title. A failing source never
// fails the whole search; its error is reported in SearchResult.Errors.
func (r *Resolver) Search(ctx context.Context, query string, sources []string, limit int) SearchResult {
	selected := r.searchSources(sources)
	perSource := make([][]paper.Paper, len(selected))
	errs := make(map[string]string)
	var mu sync.Mutex
	fail := func(name, msg string) {
		mu.Lock()
		errs[name] = msg
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range selected {
		name := src.Name()
		if !r.tracker.IsAvailable(name) {
			r.metrics.RecordFetch(name, metrics.OpSearch, metrics.ResultSkipped)
			fail(name, "rate limited")
			continue
		}
		g.Go(func() error {
			callCtx, cancel := r.callContext(gctx)
			defer cancel()
			papers, err := src.Search(callCtx, query, limit)
			if err != nil {
				r.recordFailure(gctx, name, metrics.OpSearch, err, false)
				fail(name, err.Error())
				return nil
			}
			r.metrics.RecordFetch(name, metrics.OpSearch, metrics.ResultSuccess)
			perSource[i] = papers
			return nil
		})
	}
	_ = g.Wait()

	var all []paper.Paper
	for _, papers := range perSource {
		all = append(all, papers...)
	}
	res := SearchResult{Papers: paper.DedupPapers(all)}
	if len(errs) > 0 {
		res.Errors = errs
	}
	return res
}

func (r *Resolver) searchSources(names []string) []source.Source {
	if len(names) == 0 {
		return r.search
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []source.Source
	for _, s := range r.search {
		if want[s.Name()] {
			out = append(out, s)
		}
	}
	return out
}

// Lookup resolves a user query. DOIs and arXiv IDs are fetched directly
// through the paper chain; anything else is searched by title and filtered
// to results sharing a significant word with the query.
func (r *Resolver) Lookup(ctx context.Context, query string, sources []string, limit int) SearchResult {
	switch DetectQueryType(query) {
	case QueryDOI:
		return r.lookupID(ctx, paper.MakeID(paper.NamespaceDOI, paper.NormalizeDOI(query)))
	case QueryArXiv:
		return r.lookupID(ctx, paper.MakeID(paper.NamespaceArXiv, extractArXivID(query)))
	}

	res := r.Search(ctx, query, sources, limit)
	res.Papers = FilterTitleMatches(res.Papers, query)
	if limit > 0 && len(res.Papers) > limit {
		res.Papers = res.Papers[:limit]
	}
	return res
}

func (r *Resolver) lookupID(ctx context.Context, id string) SearchResult {
	p, ok := r.FetchPaper(ctx, id)
	if !ok {
		return SearchResult{Papers: []paper.Paper{}}
	}
	return SearchResult{Papers: []paper.Paper{p}}
}

var arxivInURL = regexp.MustCompile(`\d{4}\.\d{4,5}(v\d+)?`)

func extractArXivID(q string) string {
	if m := arxivInURL.FindString(q); m != "" {
		return m
	}
	return strings.TrimSpace(q)
}

// FilterTitleMatches keeps papers whose normalized title contains at least
// one query word of four or more characters. When the query has no such
// word, papers are returned unchanged.
func FilterTitleMatches(papers []paper.Paper, query string) []paper.Paper {
	var words []string
	for _, w := range strings.Fields(paper.NormalizeTitle(query)) {
		if len(w) >= 4 {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return papers
	}

	out := make([]paper.Paper, 0, len(papers))
	for _, p := range papers {
		title := paper.NormalizeTitle(p.Title)
		for _, w := range words {
			if strings.Contains(title, w) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
