package paper

import (
	"errors"
	"strings"
)

// Intent is the rhetorical stance of a citation.
type Intent string

const (
	IntentSupport Intent = "SUPPORT"
	IntentOppose  Intent = "OPPOSE"
	IntentNeutral Intent = "NEUTRAL"
	IntentUnknown Intent = "UNKNOWN"
)

// Function is the role a citation plays in the citing paper.
type Function string

const (
	FunctionBackground  Function = "BACKGROUND"
	FunctionMethodology Function = "METHODOLOGY"
	FunctionComparison  Function = "COMPARISON"
	FunctionCritique    Function = "CRITIQUE"
	FunctionBasis       Function = "BASIS"
	FunctionUnknown     Function = "UNKNOWN"
)

// Sentiment is the tone of a citation.
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
	SentimentNegative Sentiment = "NEGATIVE"
	SentimentUnknown  Sentiment = "UNKNOWN"
)

// ValidIntents lists the intents a user may assign manually.
var ValidIntents = []Intent{IntentSupport, IntentOppose, IntentNeutral, IntentUnknown}

// ParseIntent parses a user-supplied intent name (case-insensitive).
func ParseIntent(s string) (Intent, error) {
	switch Intent(strings.ToUpper(strings.TrimSpace(s))) {
	case IntentSupport:
		return IntentSupport, nil
	case IntentOppose:
		return IntentOppose, nil
	case IntentNeutral:
		return IntentNeutral, nil
	case IntentUnknown:
		return IntentUnknown, nil
	}
	return "", ErrInvalidIntent
}

// Annotation is the classification bundle attached to an edge.
type Annotation struct {
	Intent     Intent    `json:"intent"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning,omitempty"`
	Contexts   []string  `json:"citation_contexts,omitempty"`
	Function   Function  `json:"citation_function"`
	Sentiment  Sentiment `json:"citation_sentiment"`
	Importance int       `json:"importance_score"` // 0 (unknown) to 5
	KeyConcept string    `json:"key_concept,omitempty"`
	Note       string    `json:"note,omitempty"` // Manual annotation note
}

// UnknownAnnotation returns the annotation carried by unclassified edges.
func UnknownAnnotation() Annotation {
	return Annotation{
		Intent:    IntentUnknown,
		Function:  FunctionUnknown,
		Sentiment: SentimentUnknown,
	}
}

// CitationEdge is a directed citation: Source cites Target.
type CitationEdge struct {
	Source string `json:"source"` // Citing paper ID
	Target string `json:"target"` // Cited paper ID
	Annotation
}

// NewEdge creates an unclassified edge from citing to cited.
func NewEdge(citing, cited string) CitationEdge {
	return CitationEdge{
		Source:     citing,
		Target:     cited,
		Annotation: UnknownAnnotation(),
	}
}

// Key returns the unique identity of this edge.
func (e CitationEdge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target}
}

// EdgeKey is the ordered (citing, cited) pair identifying an edge.
type EdgeKey struct {
	Source string
	Target string
}

// String returns the key as "source|target".
func (k EdgeKey) String() string {
	return k.Source + "|" + k.Target
}

// Validation errors.
var (
	ErrEmptySource   = errors.New("source is required")
	ErrEmptyTarget   = errors.New("target is required")
	ErrSelfEdge      = errors.New("source and target cannot be the same")
	ErrInvalidIntent = errors.New("intent must be one of SUPPORT, OPPOSE, NEUTRAL, UNKNOWN")
)

// Validate checks the edge's endpoints.
func (e CitationEdge) Validate() error {
	if e.Source == "" {
		return ErrEmptySource
	}
	if e.Target == "" {
		return ErrEmptyTarget
	}
	if e.Source == e.Target {
		return ErrSelfEdge
	}
	return nil
}
