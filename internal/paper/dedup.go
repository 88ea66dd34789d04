package paper

import (
	"sort"
	"strings"
	"unicode"
)

// DedupEdges removes duplicate (source, target) edges, keeping the first
// occurrence of each pair. The input slice is not modified.
func DedupEdges(edges []CitationEdge) []CitationEdge {
	seen := make(map[EdgeKey]bool, len(edges))
	out := make([]CitationEdge, 0, len(edges))
	for _, e := range edges {
		k := e.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

// FilterOrphanEdges drops edges whose endpoints are not both in nodes.
func FilterOrphanEdges(edges []CitationEdge, nodes map[string]Paper) []CitationEdge {
	out := make([]CitationEdge, 0, len(edges))
	for _, e := range edges {
		if _, ok := nodes[e.Source]; !ok {
			continue
		}
		if _, ok := nodes[e.Target]; !ok {
			continue
		}
		out = append(out, e)
	}
	return out
}

// SortByCitations sorts papers by citation count, highest first.
// The sort is stable so equal counts keep their input order.
func SortByCitations(papers []Paper) {
	sort.SliceStable(papers, func(i, j int) bool {
		return papers[i].CitationCount > papers[j].CitationCount
	})
}

// TopCited returns at most k papers with the highest citation counts,
// without modifying the input slice.
func TopCited(papers []Paper, k int) []Paper {
	sorted := make([]Paper, len(papers))
	copy(sorted, papers)
	SortByCitations(sorted)
	if k >= 0 && len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}

// DedupPapers removes papers that share a DOI (case-insensitive) or a
// normalized title with an earlier paper.
func DedupPapers(papers []Paper) []Paper {
	seenDOIs := make(map[string]bool)
	seenTitles := make(map[string]bool)
	out := make([]Paper, 0, len(papers))

	for _, p := range papers {
		if p.DOI != "" {
			doi := strings.ToLower(p.DOI)
			if seenDOIs[doi] {
				continue
			}
			seenDOIs[doi] = true
		}

		title := NormalizeTitle(p.Title)
		if title != "" {
			if seenTitles[title] {
				continue
			}
			seenTitles[title] = true
		}

		out = append(out, p)
	}
	return out
}

// NormalizeTitle lowercases a title, strips punctuation and collapses
// whitespace.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
