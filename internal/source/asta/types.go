package asta

// MCPRequest is a JSON-RPC tools/call request.
type MCPRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int       `json:"id"`
	Method  string    `json:"method"`
	Params  MCPParams `json:"params"`
}

type MCPParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// MCPResponse is one JSON-RPC message from the SSE stream.
type MCPResponse struct {
	JSONRPC string     `json:"jsonrpc"`
	ID      int        `json:"id"`
	Result  *MCPResult `json:"result,omitempty"`
	Error   *MCPError  `json:"error,omitempty"`
}

type MCPResult struct {
	Content []MCPContent `json:"content"`
}

type MCPContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ASTAPaper is a Semantic Scholar paper as returned through ASTA tools.
type ASTAPaper struct {
	PaperID        string       `json:"paperId"`
	ExternalIDs    ExternalIDs  `json:"externalIds,omitempty"`
	Title          string       `json:"title"`
	Abstract       string       `json:"abstract,omitempty"`
	Authors        []ASTAAuthor `json:"authors,omitempty"`
	Year           int          `json:"year,omitempty"`
	Venue          string       `json:"venue,omitempty"`
	URL            string       `json:"url,omitempty"`
	CitationCount  int          `json:"citationCount,omitempty"`
	ReferenceCount int          `json:"referenceCount,omitempty"`
	Fields         []string     `json:"fieldsOfStudy,omitempty"`
}

type ExternalIDs struct {
	DOI   string `json:"DOI,omitempty"`
	ArXiv string `json:"ArXiv,omitempty"`
}

type ASTAAuthor struct {
	AuthorID string `json:"authorId,omitempty"`
	Name     string `json:"name"`
}

// citationEntry is one element of a get_citations result.
type citationEntry struct {
	CitingPaper ASTAPaper `json:"citingPaper"`
	Contexts    []string  `json:"contexts,omitempty"`
}
