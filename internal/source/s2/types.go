package s2

// S2Paper represents a paper from the Semantic Scholar API.
type S2Paper struct {
	PaperID     string      `json:"paperId"`
	ExternalIDs ExternalIDs `json:"externalIds,omitempty"`
	Title       string      `json:"title"`
	Abstract    string      `json:"abstract,omitempty"`
	Authors     []S2Author  `json:"authors,omitempty"`
	Year        int         `json:"year,omitempty"`
	Venue       string      `json:"venue,omitempty"`
	Citations   int         `json:"citationCount,omitempty"`
	References  int         `json:"referenceCount,omitempty"`
	Fields      []string    `json:"fieldsOfStudy,omitempty"`
}

// ExternalIDs contains various external identifiers for a paper.
type ExternalIDs struct {
	DOI   string `json:"DOI,omitempty"`
	ArXiv string `json:"ArXiv,omitempty"`
}

// S2Author represents an author from the Semantic Scholar API.
type S2Author struct {
	AuthorID string `json:"authorId,omitempty"`
	Name     string `json:"name"`
}

// CitationResult represents a citation or reference in API responses.
type CitationResult struct {
	CitingPaper *S2Paper `json:"citingPaper,omitempty"` // For citations endpoint
	CitedPaper  *S2Paper `json:"citedPaper,omitempty"`  // For references endpoint
	Contexts    []string `json:"contexts,omitempty"`
}

// CitationList is the response from the citations and references endpoints.
type CitationList struct {
	Offset int              `json:"offset"`
	Next   int              `json:"next,omitempty"`
	Data   []CitationResult `json:"data"`
}

// SearchResponse is the response from the paper search endpoint.
type SearchResponse struct {
	Total  int       `json:"total"`
	Offset int       `json:"offset"`
	Next   int       `json:"next,omitempty"`
	Data   []S2Paper `json:"data"`
}
