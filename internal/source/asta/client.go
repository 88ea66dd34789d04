// Package asta provides a source backed by the ASTA MCP tool server, which
// fronts the Semantic Scholar corpus.
package asta

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/matsen/citethreads/internal/logger"
	"github.com/matsen/citethreads/internal/paper"
	"github.com/matsen/citethreads/internal/source"
)

const (
	// Name is the source name used in chains and logs.
	Name = "asta"

	// BaseURL is the ASTA MCP API base URL.
	BaseURL = "https://asta-tools.allen.ai/mcp/v1"

	// DefaultTimeout bounds one tool call including the SSE stream.
	DefaultTimeout = 30 * time.Second

	// RateLimit is 10 requests per second per ASTA documentation.
	RateLimit = 10.0

	// DefaultPaperFields are the fields requested by default for paper lookups.
	DefaultPaperFields = "title,abstract,authors,year,venue,url,citationCount,referenceCount,externalIds,fieldsOfStudy"

	// neighborFields are the fields requested for references and citations.
	neighborFields = "title,authors,year,venue,citationCount,externalIds"
)

// Client is a rate-limited HTTP client for the ASTA MCP API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	baseURL    string
	timeout    time.Duration
	requestID  atomic.Int32
	log        *logger.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the API key for authenticated requests.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithTimeout overrides the per-call timeout.
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

// NewClient creates a new ASTA MCP API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
		timeout:    DefaultTimeout,
		log:        logger.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.log = logger.OrNop(c.log).With("source", Name)
	return c
}

// Name implements source.Source.
func (c *Client) Name() string { return Name }

// parseSSEResponse extracts text content from an SSE/MCP response stream.
func parseSSEResponse(body io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var allTextContent []string

	for scanner.Scan() {
		line := scanner.Text()

		// Skip ping events, empty lines, and event type lines
		if strings.HasPrefix(line, ": ping") || line == "" || strings.HasPrefix(line, "event:") {
			continue
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var mcpResp MCPResponse
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &mcpResp); err != nil {
			continue
		}

		if mcpResp.Error != nil {
			return nil, &source.APIError{
				Source:     Name,
				StatusCode: mcpResp.Error.Code,
				Message:    mcpResp.Error.Message,
			}
		}

		if mcpResp.Result != nil {
			for _, content := range mcpResp.Result.Content {
				if content.Type == "text" && content.Text != "" {
					allTextContent = append(allTextContent, content.Text)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading SSE stream: %w", err)
	}

	return allTextContent, nil
}

// combineStreamingResults combines multiple streaming responses into a single JSON result.
func combineStreamingResults(textContent []string) ([]byte, error) {
	if len(textContent) == 0 {
		return nil, fmt.Errorf("%w: %s: no content received", source.ErrInvalidResponse, Name)
	}

	if len(textContent) == 1 {
		return []byte(textContent[0]), nil
	}

	// Multiple responses indicate streaming results - combine into array
	var combined strings.Builder
	combined.WriteString(`{"result":[`)
	for i, text := range textContent {
		if i > 0 {
			combined.WriteString(",")
		}
		combined.WriteString(text)
	}
	combined.WriteString("]}")
	return []byte(combined.String()), nil
}

// callTool executes an MCP tool call and returns the raw JSON result.
func (c *Client) callTool(ctx context.Context, toolName string, args map[string]any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := MCPRequest{
		JSONRPC: "2.0",
		ID:      int(c.requestID.Add(1)),
		Method:  "tools/call",
		Params: MCPParams{
			Name:      toolName,
			Arguments: args,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", source.ErrNetworkError, Name, err)
	}
	defer resp.Body.Close()

	if err := source.CheckStatus(Name, resp); err != nil {
		return nil, err
	}

	textContent, err := parseSSEResponse(resp.Body)
	if err != nil {
		return nil, err
	}

	return combineStreamingResults(textContent)
}

// s2ID converts a namespaced ID into the identifier ASTA's S2 tools accept.
func s2ID(id string) (string, error) {
	pid := paper.ParseID(id)
	switch pid.Namespace {
	case paper.NamespaceASTA, paper.NamespaceS2, paper.NamespaceNone:
		return pid.Value, nil
	case paper.NamespaceDOI:
		return "DOI:" + pid.Value, nil
	case paper.NamespaceArXiv:
		return "ARXIV:" + pid.Value, nil
	}
	return "", fmt.Errorf("%w: %s cannot resolve %s IDs", source.ErrUnsupported, Name, pid.Namespace)
}

// GetPaper fetches a paper by its identifier.
func (c *Client) GetPaper(ctx context.Context, id string) (paper.Paper, error) {
	pid, err := s2ID(id)
	if err != nil {
		return paper.Paper{}, err
	}

	result, err := c.callTool(ctx, "get_paper", map[string]any{
		"paper_id": pid,
		"fields":   DefaultPaperFields,
	})
	if err != nil {
		c.log.Warn("get_paper failed", "id", id, "error", err)
		return paper.Paper{}, err
	}

	var p ASTAPaper
	if err := json.Unmarshal(result, &p); err != nil {
		return paper.Paper{}, fmt.Errorf("%w: parsing paper: %v", source.ErrInvalidResponse, err)
	}
	if p.PaperID == "" {
		return paper.Paper{}, fmt.Errorf("%w: %s", source.ErrNotFound, id)
	}
	return MapToPaper(p), nil
}

// GetCitations fetches papers that cite the given paper.
func (c *Client) GetCitations(ctx context.Context, id string, limit int) ([]paper.Paper, error) {
	entries, err := c.citations(ctx, id, neighborFields, limit)
	if err != nil {
		return nil, err
	}
	papers := make([]paper.Paper, 0, len(entries))
	for _, e := range entries {
		if e.CitingPaper.PaperID != "" {
			papers = append(papers, MapToPaper(e.CitingPaper))
		}
	}
	return papers, nil
}

func (c *Client) citations(ctx context.Context, id, fields string, limit int) ([]citationEntry, error) {
	pid, err := s2ID(id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	result, err := c.callTool(ctx, "get_citations", map[string]any{
		"paper_id": pid,
		"fields":   fields,
		"limit":    limit,
	})
	if err != nil {
		c.log.Warn("get_citations failed", "id", id, "error", err)
		return nil, err
	}

	// Parse citations response - format: {"result": [{"citingPaper": {...}}, ...]}
	var wrapper struct {
		Result []citationEntry `json:"result"`
	}
	if err := json.Unmarshal(result, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: parsing citations: %v", source.ErrInvalidResponse, err)
	}
	return wrapper.Result, nil
}

// GetReferences fetches papers referenced by the given paper.
// ASTA has no references tool, so this reads get_paper's references field.
func (c *Client) GetReferences(ctx context.Context, id string, limit int) ([]paper.Paper, error) {
	pid, err := s2ID(id)
	if err != nil {
		return nil, err
	}

	result, err := c.callTool(ctx, "get_paper", map[string]any{
		"paper_id": pid,
		"fields":   "references,references.title,references.authors,references.year,references.venue,references.citationCount,references.externalIds",
	})
	if err != nil {
		c.log.Warn("get_paper references failed", "id", id, "error", err)
		return nil, err
	}

	var withRefs struct {
		PaperID    string      `json:"paperId"`
		References []ASTAPaper `json:"references"`
	}
	if err := json.Unmarshal(result, &withRefs); err != nil {
		return nil, fmt.Errorf("%w: parsing references: %v", source.ErrInvalidResponse, err)
	}

	refs := withRefs.References
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	papers := make([]paper.Paper, 0, len(refs))
	for _, r := range refs {
		if r.PaperID != "" {
			papers = append(papers, MapToPaper(r))
		}
	}
	return papers, nil
}

// Search searches for papers by keyword relevance.
func (c *Client) Search(ctx context.Context, keyword string, limit int) ([]paper.Paper, error) {
	if limit <= 0 {
		limit = 50
	}

	result, err := c.callTool(ctx, "search_papers_by_relevance", map[string]any{
		"keyword": keyword,
		"fields":  DefaultPaperFields,
		"limit":   limit,
	})
	if err != nil {
		c.log.Warn("search failed", "query", keyword, "error", err)
		return nil, err
	}

	// Response is wrapped in {"result": [...]}, or a bare array
	var wrapper struct {
		Result []ASTAPaper `json:"result"`
	}
	if err := json.Unmarshal(result, &wrapper); err != nil || wrapper.Result == nil {
		var bare []ASTAPaper
		if err := json.Unmarshal(result, &bare); err != nil {
			return nil, fmt.Errorf("%w: parsing search results: %v", source.ErrInvalidResponse, err)
		}
		wrapper.Result = bare
	}

	papers := make([]paper.Paper, 0, len(wrapper.Result))
	for _, p := range wrapper.Result {
		papers = append(papers, MapToPaper(p))
	}
	return papers, nil
}

// CitationContexts returns the sentences in which citingDOI cites citedDOI,
// read from the cited paper's citations with the contexts field.
func (c *Client) CitationContexts(ctx context.Context, citingDOI, citedDOI string) ([]string, error) {
	if citingDOI == "" || citedDOI == "" {
		return nil, nil
	}

	cited := paper.MakeID(paper.NamespaceDOI, paper.NormalizeDOI(citedDOI))
	entries, err := c.citations(ctx, cited, "externalIds,contexts", 1000)
	if err != nil {
		return nil, err
	}

	want := paper.NormalizeDOI(citingDOI)
	for _, e := range entries {
		if paper.NormalizeDOI(e.CitingPaper.ExternalIDs.DOI) != want {
			continue
		}
		contexts := make([]string, 0, len(e.Contexts))
		for _, s := range e.Contexts {
			if s = strings.Join(strings.Fields(s), " "); s != "" {
				contexts = append(contexts, s)
			}
		}
		return contexts, nil
	}
	return nil, nil
}

// MapToPaper converts an ASTA paper to an ASTA-namespaced Paper.
func MapToPaper(p ASTAPaper) paper.Paper {
	out := paper.Paper{
		ID:             paper.MakeID(paper.NamespaceASTA, p.PaperID),
		DOI:            p.ExternalIDs.DOI,
		ArXivID:        p.ExternalIDs.ArXiv,
		Title:          strings.TrimSpace(p.Title),
		Authors:        make([]string, 0, len(p.Authors)),
		Year:           p.Year,
		Venue:          p.Venue,
		Abstract:       p.Abstract,
		Fields:         p.Fields,
		CitationCount:  p.CitationCount,
		ReferenceCount: p.ReferenceCount,
		URL:            p.URL,
	}
	for _, a := range p.Authors {
		if a.Name != "" {
			out.Authors = append(out.Authors, a.Name)
		}
	}
	if out.Fields == nil {
		out.Fields = []string{}
	}
	if out.URL == "" {
		out.URL = "https://www.semanticscholar.org/paper/" + p.PaperID
	}
	return out
}

var (
	_ source.Source          = (*Client)(nil)
	_ source.ContextProvider = (*Client)(nil)
)
