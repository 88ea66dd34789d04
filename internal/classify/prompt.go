package classify

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/matsen/citethreads/internal/paper"
)

// Tier names the prompt shape chosen for an edge.
type Tier string

const (
	// TierDeep uses citation-context snippets and asks for every field.
	TierDeep Tier = "deep"
	// TierAbstract uses both abstracts.
	TierAbstract Tier = "abstract"
	// TierTitle uses titles and years only.
	TierTitle Tier = "title"
)

const (
	maxContexts         = 3
	deepAbstractChars   = 300
	abstractPromptChars = 500
	noAbstract          = "No abstract"
)

const deepPrompt = `Analyze the citation relationship between the following two papers.
You act as a senior academic researcher conducting a deep rhetorical analysis of citations.

Citing Paper: %s
Citing Abstract: %s

Cited Paper: %s
Cited Abstract: %s

[CRITICAL] Citation Context (Evidence):
"%s"

Task:
1. Classify the INTENT (SUPPORT/OPPOSE/NEUTRAL).
2. Determine the FUNCTION (BACKGROUND/METHODOLOGY/COMPARISON/CRITIQUE/BASIS).
3. Determine the SENTIMENT (POSITIVE/NEUTRAL/NEGATIVE).
4. Extract the KEY CONCEPT borrowed or discussed.
5. Rate importance (1-5).

Output STRICT Key-Value Text Format (No JSON, No Markdown):
INTENT: [SUPPORT/OPPOSE/NEUTRAL]
CONFIDENCE: [0.0-1.0]
REASONING: [Brief explanation]
FUNCTION: [BACKGROUND/METHODOLOGY/COMPARISON/CRITIQUE/BASIS]
SENTIMENT: [POSITIVE/NEUTRAL/NEGATIVE]
IMPORTANCE: [1-5]
KEY_CONCEPT: [Concept Name]
`

const abstractPrompt = `Analyze the citation relationship between two papers and decide the citation intent.

Citing paper: %s
Abstract: %s

Cited paper: %s
Abstract: %s

Intent categories:
- SUPPORT: the citing paper adopts, extends or validates the cited method or theory
- OPPOSE: the citing paper questions, refutes or corrects the cited claims
- NEUTRAL: mentioned as background only, no direct scholarly relationship

Output strict key-value lines:
INTENT: [SUPPORT/OPPOSE/NEUTRAL]
CONFIDENCE: [0.0-1.0]
REASONING: [short reason]
`

const titlePrompt = `Decide the citation intent:
Citing paper: %s (%s)
Cited paper: %s (%s)

Output strict key-value lines:
INTENT: [SUPPORT/OPPOSE/NEUTRAL]
CONFIDENCE: [0.0-1.0]
REASONING: [reason]
`

// SelectTier picks the richest prompt shape the available data supports.
func SelectTier(citing, cited paper.Paper, contexts []string) Tier {
	switch {
	case len(contexts) > 0:
		return TierDeep
	case citing.HasAbstract() && cited.HasAbstract():
		return TierAbstract
	default:
		return TierTitle
	}
}

// BuildPrompt renders the prompt for one citing/cited pair.
func BuildPrompt(citing, cited paper.Paper, contexts []string) (string, Tier) {
	tier := SelectTier(citing, cited, contexts)
	switch tier {
	case TierDeep:
		if len(contexts) > maxContexts {
			contexts = contexts[:maxContexts]
		}
		return fmt.Sprintf(deepPrompt,
			citing.Title, abstractOr(citing, deepAbstractChars),
			cited.Title, abstractOr(cited, deepAbstractChars),
			strings.Join(contexts, "\n...\n"),
		), tier
	case TierAbstract:
		return fmt.Sprintf(abstractPrompt,
			citing.Title, abstractOr(citing, abstractPromptChars),
			cited.Title, abstractOr(cited, abstractPromptChars),
		), tier
	}
	return fmt.Sprintf(titlePrompt,
		citing.Title, yearOr(citing),
		cited.Title, yearOr(cited),
	), tier
}

func abstractOr(p paper.Paper, n int) string {
	if !p.HasAbstract() {
		return noAbstract
	}
	return truncateRunes(p.Abstract, n)
}

func yearOr(p paper.Paper) string {
	if p.Year == 0 {
		return "?"
	}
	return fmt.Sprint(p.Year)
}

// truncateRunes cuts s to at most n characters without splitting a
// multi-byte character.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
