package classify

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/matsen/citethreads/internal/paper"
)

// Field defaults applied when a response omits or garbles a value.
const (
	DefaultConfidence = 0.7
	DefaultImportance = 0
)

var (
	nonUpperPattern   = regexp.MustCompile(`[^A-Z]`)
	confidencePattern = regexp.MustCompile(`0\.\d+|1\.0|0`)
	importancePattern = regexp.MustCompile(`[1-5]`)

	fieldPatterns = map[string]*regexp.Regexp{}
)

// functionNames and sentimentNames are matched as substrings, in order.
var (
	functionNames = []paper.Function{
		paper.FunctionBackground,
		paper.FunctionMethodology,
		paper.FunctionComparison,
		paper.FunctionCritique,
		paper.FunctionBasis,
	}
	sentimentNames = []paper.Sentiment{
		paper.SentimentPositive,
		paper.SentimentNeutral,
		paper.SentimentNegative,
	}
)

func init() {
	for _, key := range []string{"INTENT", "CONFIDENCE", "REASONING", "FUNCTION", "SENTIMENT", "IMPORTANCE", "KEY_CONCEPT"} {
		fieldPatterns[key] = regexp.MustCompile(`(?i)` + key + `\s*[:：]\s*(.*)`)
	}
}

// extractField returns the trimmed value following "KEY:" (ASCII or
// full-width colon, any case), or def when the key is absent.
func extractField(text, key, def string) string {
	re, ok := fieldPatterns[key]
	if !ok {
		return def
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return def
	}
	return strings.TrimSpace(m[1])
}

// ParseResponse extracts an annotation from free-text "KEY: value" lines.
//
// Every field has a default, so malformed or empty input still yields a
// usable annotation: unparseable intent becomes NEUTRAL, confidence 0.7 and
// importance 0. Function, sentiment, importance and key concept are only
// read when deep is true; otherwise they stay UNKNOWN/zero.
func ParseResponse(text string, deep bool) paper.Annotation {
	ann := paper.UnknownAnnotation()
	ann.Intent = parseIntent(extractField(text, "INTENT", string(paper.IntentNeutral)))
	ann.Confidence = parseConfidence(extractField(text, "CONFIDENCE", ""))
	ann.Reasoning = extractField(text, "REASONING", "")

	if !deep {
		return ann
	}

	fn := strings.ToUpper(extractField(text, "FUNCTION", ""))
	for _, f := range functionNames {
		if strings.Contains(fn, string(f)) {
			ann.Function = f
			break
		}
	}
	sent := strings.ToUpper(extractField(text, "SENTIMENT", ""))
	for _, s := range sentimentNames {
		if strings.Contains(sent, string(s)) {
			ann.Sentiment = s
			break
		}
	}
	ann.Importance = parseImportance(extractField(text, "IMPORTANCE", ""))
	ann.KeyConcept = extractField(text, "KEY_CONCEPT", "")
	return ann
}

func parseIntent(s string) paper.Intent {
	clean := nonUpperPattern.ReplaceAllString(strings.ToUpper(s), "")
	switch paper.Intent(clean) {
	case paper.IntentSupport, paper.IntentOppose, paper.IntentNeutral:
		return paper.Intent(clean)
	}
	return paper.IntentNeutral
}

func parseConfidence(s string) float64 {
	m := confidencePattern.FindString(s)
	if m == "" {
		return DefaultConfidence
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return DefaultConfidence
	}
	return v
}

func parseImportance(s string) int {
	m := importancePattern.FindString(s)
	if m == "" {
		return DefaultImportance
	}
	v, _ := strconv.Atoi(m)
	return v
}
