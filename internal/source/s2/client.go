// Package s2 provides a Semantic Scholar Graph API source.
package s2

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
	Name = "semantic_scholar"

	// BaseURL is the Semantic Scholar Graph API base URL.
	BaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 15 * time.Second

	// RateLimit is 1 request per second for unauthenticated use.
	RateLimit = 1.0

	// AuthenticatedRateLimit applies when an API key is configured.
	AuthenticatedRateLimit = 10.0

	// PaperFields are the fields requested for paper lookups.
	PaperFields = "paperId,title,authors,year,venue,abstract,citationCount,referenceCount,externalIds,fieldsOfStudy"

	// NeighborFields are the fields requested for each reference or citation.
	NeighborFields = "paperId,title,authors,year,venue,citationCount,externalIds,fieldsOfStudy"

	// maxNeighborLimit is the largest page the references/citations endpoints accept.
	maxNeighborLimit = 1000
)

// Client is a rate-limited Semantic Scholar source.
type Client struct {
	http    *source.HTTPClient
	baseURL string
	apiKey  string
	rps     float64
	timeout time.Duration
	hc      *http.Client
	log     *logger.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the API key for authenticated requests.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
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

// WithRateLimit overrides the requests-per-second limit.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		c.rps = rps
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient creates a new Semantic Scholar client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: BaseURL,
		timeout: DefaultTimeout,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.rps == 0 {
		c.rps = RateLimit
		if c.apiKey != "" {
			c.rps = AuthenticatedRateLimit
		}
	}

	c.http = source.NewHTTPClient(Name, c.rps, c.timeout)
	if c.hc != nil {
		c.http.HTTP = c.hc
	}
	c.http.Header.Set("User-Agent", "CiteThreads/1.0")
	if c.apiKey != "" {
		c.http.Header.Set("x-api-key", c.apiKey)
	}
	c.log = logger.OrNop(c.log).With("source", Name)
	return c
}

// Name implements source.Source.
func (c *Client) Name() string { return Name }

// apiID converts a namespaced paper ID into the S2 path form.
func apiID(id string) (string, error) {
	pid := paper.ParseID(id)
	switch pid.Namespace {
	case paper.NamespaceS2, paper.NamespaceASTA:
		return pid.Value, nil
	case paper.NamespaceDOI:
		return "DOI:" + pid.Value, nil
	case paper.NamespaceArXiv:
		return "ARXIV:" + pid.Value, nil
	case paper.NamespaceNone:
		return pid.Value, nil
	}
	return "", fmt.Errorf("%w: %s cannot resolve %s IDs", source.ErrUnsupported, Name, pid.Namespace)
}

// GetPaper fetches a paper by S2, DOI or arXiv ID.
func (c *Client) GetPaper(ctx context.Context, id string) (paper.Paper, error) {
	aid, err := apiID(id)
	if err != nil {
		return paper.Paper{}, err
	}

	u := fmt.Sprintf("%s/paper/%s?fields=%s", c.baseURL, escapeID(aid), PaperFields)
	var p S2Paper
	if err := c.http.GetJSON(ctx, u, &p); err != nil {
		c.log.Warn("paper lookup failed", "id", id, "error", err)
		return paper.Paper{}, err
	}
	if p.PaperID == "" {
		return paper.Paper{}, fmt.Errorf("%w: %s", source.ErrNotFound, id)
	}
	return MapS2ToPaper(p), nil
}

// GetReferences returns papers cited by id.
func (c *Client) GetReferences(ctx context.Context, id string, limit int) ([]paper.Paper, error) {
	list, err := c.neighbors(ctx, id, "references", NeighborFields, limit)
	if err != nil {
		return nil, err
	}
	papers := make([]paper.Paper, 0, len(list.Data))
	for _, r := range list.Data {
		if r.CitedPaper != nil && r.CitedPaper.PaperID != "" {
			papers = append(papers, MapS2ToPaper(*r.CitedPaper))
		}
	}
	return papers, nil
}

// GetCitations returns papers citing id.
func (c *Client) GetCitations(ctx context.Context, id string, limit int) ([]paper.Paper, error) {
	list, err := c.neighbors(ctx, id, "citations", NeighborFields, limit)
	if err != nil {
		return nil, err
	}
	papers := make([]paper.Paper, 0, len(list.Data))
	for _, r := range list.Data {
		if r.CitingPaper != nil && r.CitingPaper.PaperID != "" {
			papers = append(papers, MapS2ToPaper(*r.CitingPaper))
		}
	}
	return papers, nil
}

func (c *Client) neighbors(ctx context.Context, id, endpoint, fields string, limit int) (*CitationList, error) {
	aid, err := apiID(id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxNeighborLimit {
		limit = maxNeighborLimit
	}

	u := fmt.Sprintf("%s/paper/%s/%s?fields=%s&limit=%d", c.baseURL, escapeID(aid), endpoint, fields, limit)
	var list CitationList
	if err := c.http.GetJSON(ctx, u, &list); err != nil {
		c.log.Warn("neighbor lookup failed", "id", id, "endpoint", endpoint, "error", err)
		return nil, err
	}
	return &list, nil
}

// Search returns papers matching query by relevance.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]paper.Paper, error) {
	if limit <= 0 {
		limit = 10
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("fields", PaperFields)
	params.Set("limit", strconv.Itoa(limit))

	var resp SearchResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/paper/search?"+params.Encode(), &resp); err != nil {
		c.log.Warn("search failed", "query", query, "error", err)
		return nil, err
	}
	papers := make([]paper.Paper, 0, len(resp.Data))
	for _, p := range resp.Data {
		papers = append(papers, MapS2ToPaper(p))
	}
	return papers, nil
}

// escapeID escapes an S2 path ID, keeping the "TYPE:" prefix and DOI slashes.
func escapeID(id string) string {
	return strings.ReplaceAll(url.PathEscape(id), "%2F", "/")
}

var _ source.Source = (*Client)(nil)
