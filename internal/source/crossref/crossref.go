// Package crossref provides a Crossref REST API source for DOI metadata.
// Crossref exposes no citation graph, so neighbor lookups are unsupported.
package crossref

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/matsen/citethreads/internal/logger"
	"github.com/matsen/citethreads/internal/paper"
	"github.com/matsen/citethreads/internal/source"
)

const (
	// Name is the source name used in chains and logs.
	Name = "crossref"

	// BaseURL is the Crossref REST API base URL.
	BaseURL = "https://api.crossref.org"

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second

	// RateLimit follows Crossref's public pool guidance.
	RateLimit = 5.0
)

// Work is a Crossref work record.
type Work struct {
	DOI            string   `json:"DOI"`
	Title          []string `json:"title"`
	Author         []Author `json:"author"`
	ContainerTitle []string `json:"container-title"`
	Issued         struct {
		DateParts [][]int `json:"date-parts"`
	} `json:"issued"`
	IsReferencedByCount int      `json:"is-referenced-by-count"`
	ReferencesCount     int      `json:"references-count"`
	Abstract            string   `json:"abstract"`
	Subject             []string `json:"subject"`
	URL                 string   `json:"URL"`
}

type Author struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"`
}

type workResponse struct {
	Message Work `json:"message"`
}

type listResponse struct {
	Message struct {
		Items []Work `json:"items"`
	} `json:"message"`
}

// Client is a rate-limited Crossref source.
type Client struct {
	http    *source.HTTPClient
	baseURL string
	mailto  string
	log     *logger.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMailto identifies the caller for Crossref's polite pool.
func WithMailto(email string) ClientOption {
	return func(c *Client) { c.mailto = email }
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http.HTTP = hc }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient creates a new Crossref client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:    source.NewHTTPClient(Name, RateLimit, DefaultTimeout),
		baseURL: BaseURL,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
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

// GetPaper fetches metadata for a DOI.
func (c *Client) GetPaper(ctx context.Context, id string) (paper.Paper, error) {
	pid := paper.ParseID(id)
	if pid.Namespace != paper.NamespaceDOI {
		return paper.Paper{}, fmt.Errorf("%w: %s only resolves DOIs", source.ErrUnsupported, Name)
	}

	var resp workResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/works/"+pid.Value, &resp); err != nil {
		c.log.Warn("work lookup failed", "doi", pid.Value, "error", err)
		return paper.Paper{}, err
	}
	if resp.Message.DOI == "" {
		return paper.Paper{}, fmt.Errorf("%w: %s", source.ErrNotFound, id)
	}
	return MapWorkToPaper(resp.Message), nil
}

// GetReferences is not supported by Crossref.
func (c *Client) GetReferences(ctx context.Context, id string, limit int) ([]paper.Paper, error) {
	return nil, fmt.Errorf("%w: %s has no reference graph", source.ErrUnsupported, Name)
}

// GetCitations is not supported by Crossref.
func (c *Client) GetCitations(ctx context.Context, id string, limit int) ([]paper.Paper, error) {
	return nil, fmt.Errorf("%w: %s has no citation graph", source.ErrUnsupported, Name)
}

// Search returns works matching a bibliographic query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]paper.Paper, error) {
	if limit <= 0 {
		limit = 10
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("rows", strconv.Itoa(limit))
	if c.mailto != "" {
		params.Set("mailto", c.mailto)
	}

	var resp listResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/works?"+params.Encode(), &resp); err != nil {
		c.log.Warn("search failed", "query", query, "error", err)
		return nil, err
	}
	papers := make([]paper.Paper, 0, len(resp.Message.Items))
	for _, w := range resp.Message.Items {
		papers = append(papers, MapWorkToPaper(w))
	}
	return papers, nil
}

var jatsTag = regexp.MustCompile(`<[^>]+>`)

// MapWorkToPaper converts a Crossref work into a DOI-namespaced Paper.
func MapWorkToPaper(w Work) paper.Paper {
	p := paper.Paper{
		ID:             paper.MakeID(paper.NamespaceDOI, paper.NormalizeDOI(w.DOI)),
		DOI:            w.DOI,
		Title:          "Unknown Title",
		Authors:        make([]string, 0, len(w.Author)),
		Fields:         []string{},
		CitationCount:  w.IsReferencedByCount,
		ReferenceCount: w.ReferencesCount,
		URL:            w.URL,
	}
	if len(w.Title) > 0 && strings.TrimSpace(w.Title[0]) != "" {
		p.Title = strings.TrimSpace(w.Title[0])
	}
	for _, a := range w.Author {
		name := strings.TrimSpace(a.Given + " " + a.Family)
		if name == "" {
			name = a.Name
		}
		if name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	if len(w.Issued.DateParts) > 0 && len(w.Issued.DateParts[0]) > 0 {
		p.Year = w.Issued.DateParts[0][0]
	}
	if len(w.ContainerTitle) > 0 {
		p.Venue = w.ContainerTitle[0]
	}
	if w.Abstract != "" {
		p.Abstract = strings.Join(strings.Fields(jatsTag.ReplaceAllString(w.Abstract, " ")), " ")
	}
	return p
}

var _ source.Source = (*Client)(nil)
