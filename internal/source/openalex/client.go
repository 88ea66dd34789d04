// Package openalex provides an OpenAlex works API source.
package openalex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/matsen/citethreads/internal/logger"
	"github.com/matsen/citethreads/internal/paper"
	"github.com/matsen/citethreads/internal/source"
)

const (
	// Name is the source name used in chains and logs.
	Name = "openalex"

	// BaseURL is the OpenAlex API base URL.
	BaseURL = "https://api.openalex.org"

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second

	// RateLimit stays well under OpenAlex's 10 requests per second.
	RateLimit = 8.0

	// maxPerPage is the largest page size OpenAlex accepts.
	maxPerPage = 200

	// arxivDOIPrefix is the DataCite prefix arXiv registers its DOIs under.
	arxivDOIPrefix = "10.48550/arxiv."
)

// Client is a rate-limited OpenAlex source.
type Client struct {
	http    *source.HTTPClient
	baseURL string
	mailto  string
	timeout time.Duration
	hc      *http.Client
	log     *logger.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMailto identifies the caller for OpenAlex's polite pool.
func WithMailto(email string) ClientOption {
	return func(c *Client) {
		c.mailto = email
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.hc = hc
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient creates a new OpenAlex client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: BaseURL,
		timeout: DefaultTimeout,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.http = source.NewHTTPClient(Name, RateLimit, c.timeout)
	if c.hc != nil {
		c.http.HTTP = c.hc
	}
	ua := "CiteThreads/1.0"
	if c.mailto != "" {
		ua += " (mailto:" + c.mailto + ")"
	}
	c.http.Header.Set("User-Agent", ua)
	c.log = logger.OrNop(c.log).With("source", Name)
	return c
}

// Name implements source.Source.
func (c *Client) Name() string { return Name }

// workPath returns the /works/{id} path segment for a namespaced ID.
func workPath(id string) (string, error) {
	pid := paper.ParseID(id)
	switch pid.Namespace {
	case paper.NamespaceOpenAlex:
		return pid.Value, nil
	case paper.NamespaceDOI:
		return "doi:" + pid.Value, nil
	case paper.NamespaceArXiv:
		return "doi:" + arxivDOIPrefix + stripVersion(pid.Value), nil
	}
	return "", fmt.Errorf("%w: %s cannot resolve %s IDs", source.ErrUnsupported, Name, pid.Namespace)
}

func (c *Client) url(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	if c.mailto != "" {
		params.Set("mailto", c.mailto)
	}
	u := c.baseURL + path
	if enc := params.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

// GetPaper fetches a work by OpenAlex, DOI or arXiv ID.
func (c *Client) GetPaper(ctx context.Context, id string) (paper.Paper, error) {
	path, err := workPath(id)
	if err != nil {
		return paper.Paper{}, err
	}

	var w Work
	if err := c.http.GetJSON(ctx, c.url("/works/"+path, nil), &w); err != nil {
		c.log.Warn("work lookup failed", "id", id, "error", err)
		return paper.Paper{}, err
	}
	if w.ID == "" {
		return paper.Paper{}, fmt.Errorf("%w: %s", source.ErrNotFound, id)
	}
	return MapWorkToPaper(w), nil
}

// GetReferences returns works cited by id.
func (c *Client) GetReferences(ctx context.Context, id string, limit int) ([]paper.Paper, error) {
	return c.filterWorks(ctx, id, "cited_by", limit)
}

// GetCitations returns works citing id.
func (c *Client) GetCitations(ctx context.Context, id string, limit int) ([]paper.Paper, error) {
	return c.filterWorks(ctx, id, "cites", limit)
}

func (c *Client) filterWorks(ctx context.Context, id, filter string, limit int) ([]paper.Paper, error) {
	workID, err := c.resolveWorkID(ctx, id)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("filter", filter+":"+workID)
	params.Set("per-page", strconv.Itoa(clampPerPage(limit)))
	params.Set("sort", "cited_by_count:desc")

	return c.listWorks(ctx, params)
}

// resolveWorkID returns the W-id for a namespaced ID, looking it up when
// the ID is not already an OpenAlex one.
func (c *Client) resolveWorkID(ctx context.Context, id string) (string, error) {
	pid := paper.ParseID(id)
	if pid.Namespace == paper.NamespaceOpenAlex {
		return pid.Value, nil
	}
	p, err := c.GetPaper(ctx, id)
	if err != nil {
		return "", fmt.Errorf("resolving %s to OpenAlex work: %w", id, err)
	}
	workID := paper.ParseID(p.ID).Value
	c.log.Debug("resolved work id", "id", id, "work", workID)
	return workID, nil
}

// Search returns works whose title matches query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]paper.Paper, error) {
	params := url.Values{}
	params.Set("filter", "title.search:"+query)
	params.Set("per-page", strconv.Itoa(clampPerPage(limit)))
	return c.listWorks(ctx, params)
}

func (c *Client) listWorks(ctx context.Context, params url.Values) ([]paper.Paper, error) {
	var list WorkList
	if err := c.http.GetJSON(ctx, c.url("/works", params), &list); err != nil {
		c.log.Warn("works query failed", "filter", params.Get("filter"), "error", err)
		return nil, err
	}
	papers := make([]paper.Paper, 0, len(list.Results))
	for _, w := range list.Results {
		papers = append(papers, MapWorkToPaper(w))
	}
	return papers, nil
}

func clampPerPage(limit int) int {
	if limit <= 0 {
		return 25
	}
	if limit > maxPerPage {
		return maxPerPage
	}
	return limit
}

// stripVersion removes a trailing vN from an arXiv ID.
func stripVersion(id string) string {
	if i := strings.LastIndex(id, "v"); i > 0 {
		if _, err := strconv.Atoi(id[i+1:]); err == nil {
			return id[:i]
		}
	}
	return id
}

var _ source.Source = (*Client)(nil)
