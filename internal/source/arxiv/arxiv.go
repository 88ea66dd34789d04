// Package arxiv provides an arXiv Atom API source for metadata lookup and
// search. arXiv publishes no citation graph.
package arxiv

import (
	"context"
	"encoding/xml"
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
	Name = "arxiv"

	// BaseURL is the arXiv query API endpoint.
	BaseURL = "https://export.arxiv.org/api/query"

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second

	// RateLimit is one request every three seconds per arXiv's terms of use.
	RateLimit = 1.0 / 3.0
)

// Feed is an arXiv Atom response.
type Feed struct {
	XMLName xml.Name `xml:"http://www.w3.org/2005/Atom feed"`
	Entries []Entry  `xml:"http://www.w3.org/2005/Atom entry"`
}

// Entry is one Atom entry.
type Entry struct {
	ID         string     `xml:"http://www.w3.org/2005/Atom id"`
	Title      string     `xml:"http://www.w3.org/2005/Atom title"`
	Summary    string     `xml:"http://www.w3.org/2005/Atom summary"`
	Published  string     `xml:"http://www.w3.org/2005/Atom published"`
	Authors    []Author   `xml:"http://www.w3.org/2005/Atom author"`
	Categories []Category `xml:"http://www.w3.org/2005/Atom category"`
	Primary    Category   `xml:"http://arxiv.org/schemas/atom primary_category"`
	DOI        string     `xml:"http://arxiv.org/schemas/atom doi"`
	JournalRef string     `xml:"http://arxiv.org/schemas/atom journal_ref"`
}

type Author struct {
	Name string `xml:"http://www.w3.org/2005/Atom name"`
}

type Category struct {
	Term string `xml:"term,attr"`
}

var absIDPattern = regexp.MustCompile(`abs/([^/]+/\d{7}|\d{4}\.\d{4,5})(v\d+)?`)

// Client is a rate-limited arXiv source.
type Client struct {
	http    *source.HTTPClient
	baseURL string
	log     *logger.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom endpoint (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http.HTTP = hc }
}

// WithRateLimit overrides the requests-per-second limit.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) { c.http = source.NewHTTPClient(Name, rps, c.http.Timeout) }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient creates a new arXiv client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:    source.NewHTTPClient(Name, RateLimit, DefaultTimeout),
		baseURL: BaseURL,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrNop(c.log).With("source", Name)
	return c
}

// Name implements source.Source.
func (c *Client) Name() string { return Name }

// GetPaper fetches an arXiv paper by its arXiv ID.
func (c *Client) GetPaper(ctx context.Context, id string) (paper.Paper, error) {
	pid := paper.ParseID(id)
	if pid.Namespace != paper.NamespaceArXiv {
		return paper.Paper{}, fmt.Errorf("%w: %s only resolves arXiv IDs", source.ErrUnsupported, Name)
	}

	params := url.Values{}
	params.Set("id_list", pid.Value)
	params.Set("max_results", "1")

	entries, err := c.query(ctx, params)
	if err != nil {
		return paper.Paper{}, err
	}
	// arXiv reports unknown IDs as a single entry titled "Error".
	if len(entries) == 0 || strings.TrimSpace(entries[0].Title) == "" || strings.TrimSpace(entries[0].Title) == "Error" {
		return paper.Paper{}, fmt.Errorf("%w: %s", source.ErrNotFound, id)
	}
	return MapEntryToPaper(entries[0]), nil
}

// GetReferences is not supported by arXiv.
func (c *Client) GetReferences(ctx context.Context, id string, limit int) ([]paper.Paper, error) {
	return nil, fmt.Errorf("%w: %s has no reference graph", source.ErrUnsupported, Name)
}

// GetCitations is not supported by arXiv.
func (c *Client) GetCitations(ctx context.Context, id string, limit int) ([]paper.Paper, error) {
	return nil, fmt.Errorf("%w: %s has no citation graph", source.ErrUnsupported, Name)
}

// Search returns papers matching query across all fields, by relevance.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]paper.Paper, error) {
	if limit <= 0 {
		limit = 10
	}
	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(limit))
	params.Set("sortBy", "relevance")
	params.Set("sortOrder", "descending")

	entries, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}
	papers := make([]paper.Paper, 0, len(entries))
	for _, e := range entries {
		papers = append(papers, MapEntryToPaper(e))
	}
	return papers, nil
}

func (c *Client) query(ctx context.Context, params url.Values) ([]Entry, error) {
	body, err := c.http.Get(ctx, c.baseURL+"?"+params.Encode())
	if err != nil {
		c.log.Warn("query failed", "params", params.Encode(), "error", err)
		return nil, err
	}
	var feed Feed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("%w: %s: parsing feed: %v", source.ErrInvalidResponse, Name, err)
	}
	return feed.Entries, nil
}

// MapEntryToPaper converts an Atom entry into an arXiv-namespaced Paper.
func MapEntryToPaper(e Entry) paper.Paper {
	id := ExtractID(e.ID)
	p := paper.Paper{
		ID:       paper.MakeID(paper.NamespaceArXiv, id),
		ArXivID:  id,
		DOI:      strings.TrimSpace(e.DOI),
		Title:    collapse(e.Title),
		Abstract: collapse(e.Summary),
		Authors:  make([]string, 0, len(e.Authors)),
		Venue:    "arXiv",
		Fields:   []string{},
		URL:      "https://arxiv.org/abs/" + id,
	}
	if e.JournalRef != "" {
		p.Venue = collapse(e.JournalRef)
	}
	for _, a := range e.Authors {
		if name := collapse(a.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	if len(e.Published) >= 4 {
		if y, err := strconv.Atoi(e.Published[:4]); err == nil {
			p.Year = y
		}
	}
	if e.Primary.Term != "" {
		p.Fields = append(p.Fields, e.Primary.Term)
	}
	for _, cat := range e.Categories {
		if cat.Term != "" && cat.Term != e.Primary.Term {
			p.Fields = append(p.Fields, cat.Term)
		}
	}
	return p
}

// ExtractID returns the versionless arXiv ID from an abs URL or a bare ID.
func ExtractID(s string) string {
	if m := absIDPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	s = strings.TrimSpace(s)
	if len(s) > 6 && strings.EqualFold(s[:6], "arxiv:") {
		s = s[6:]
	}
	return s
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var _ source.Source = (*Client)(nil)
