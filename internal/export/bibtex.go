// Package export provides functions to export citation graphs to various formats.
package export

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/matsen/citethreads/internal/paper"
)

// maxAbstract is the longest abstract written to an export entry.
const maxAbstract = 500

var nameSuffixes = map[string]bool{
	"jr":   true,
	"jr.":  true,
	"sr":   true,
	"sr.":  true,
	"ii":   true,
	"iii":  true,
	"iv":   true,
	"phd":  true,
	"ph.d": true,
	"md":   true,
}

// ToBibTeX converts a paper to a BibTeX entry.
func ToBibTeX(p paper.Paper) string {
	entryType := determineEntryType(p)
	var b strings.Builder

	b.WriteString(fmt.Sprintf("@%s{%s,\n", entryType, CiteKey(p)))

	if len(p.Authors) > 0 {
		b.WriteString(fmt.Sprintf("  author = {%s},\n", formatAuthors(p.Authors)))
	}

	b.WriteString(fmt.Sprintf("  title = {%s},\n", escapeLatex(p.Title)))

	if p.Venue != "" {
		fieldName := "journal"
		if entryType == "inproceedings" {
			fieldName = "booktitle"
		}
		b.WriteString(fmt.Sprintf("  %s = {%s},\n", fieldName, escapeLatex(p.Venue)))
	}

	if p.Year > 0 {
		b.WriteString(fmt.Sprintf("  year = {%d},\n", p.Year))
	}

	if p.DOI != "" {
		b.WriteString(fmt.Sprintf("  doi = {%s},\n", p.DOI))
	}

	if p.ArXivID != "" {
		b.WriteString(fmt.Sprintf("  eprint = {%s},\n", p.ArXivID))
		b.WriteString("  archiveprefix = {arXiv},\n")
	}

	if p.URL != "" {
		b.WriteString(fmt.Sprintf("  url = {%s},\n", p.URL))
	}

	if p.Abstract != "" {
		b.WriteString(fmt.Sprintf("  abstract = {%s},\n", escapeLatex(truncateAbstract(p.Abstract))))
	}

	b.WriteString("}\n")

	return b.String()
}

// ToBibTeXList converts multiple papers to BibTeX format.
func ToBibTeXList(papers []paper.Paper) string {
	entries := make([]string, 0, len(papers))
	for _, p := range papers {
		entries = append(entries, ToBibTeX(p))
	}
	return strings.Join(entries, "\n")
}

// CiteKey builds "<Surname><Year>_<id6>", e.g. "Vaswani2017_204e30".
// The id fragment keeps keys unique when an author publishes twice a year.
func CiteKey(p paper.Paper) string {
	last := "Unknown"
	if len(p.Authors) > 0 {
		if _, l := splitAuthorName(p.Authors[0]); l != "" {
			last = l
		}
	}
	var b strings.Builder
	for _, r := range last {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if p.Year > 0 {
		b.WriteString(fmt.Sprint(p.Year))
	}
	b.WriteString("_")
	b.WriteString(idFragment(p.ID))
	return b.String()
}

// idFragment returns the first six alphanumerics of the ID's value part.
func idFragment(id string) string {
	value := paper.ParseID(id).Value
	var b strings.Builder
	for _, r := range value {
		if b.Len() == 6 {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// determineEntryType returns the BibTeX entry type for a paper.
func determineEntryType(p paper.Paper) string {
	venue := strings.ToLower(p.Venue)

	if strings.Contains(venue, "proceedings") ||
		strings.Contains(venue, "conference") ||
		strings.Contains(venue, "workshop") ||
		strings.Contains(venue, "symposium") {
		return "inproceedings"
	}

	if venue == "" && p.ArXivID != "" {
		return "misc"
	}

	return "article"
}

// formatAuthors formats authors in BibTeX style: "Last, First and Last, First"
func formatAuthors(authors []string) string {
	formatted := make([]string, 0, len(authors))
	for _, name := range authors {
		first, last := splitAuthorName(name)
		if last == "" {
			continue
		}
		if first != "" {
			formatted = append(formatted, fmt.Sprintf("%s, %s", last, first))
		} else {
			formatted = append(formatted, last)
		}
	}
	return strings.Join(formatted, " and ")
}

// splitAuthorName splits a full name into first and last name.
// Handles common suffixes (Jr, Sr, II, III, IV, PhD, MD).
//
// Known limitations:
// - Multi-part surnames (von Neumann, van der Waals) split incorrectly
// - Middle names are included in the first name
func splitAuthorName(name string) (first, last string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	}

	lastPart := strings.ToLower(parts[len(parts)-1])
	if nameSuffixes[lastPart] && len(parts) > 2 {
		last = parts[len(parts)-2] + " " + parts[len(parts)-1]
		first = strings.Join(parts[:len(parts)-2], " ")
	} else {
		last = parts[len(parts)-1]
		first = strings.Join(parts[:len(parts)-1], " ")
	}
	return first, last
}

// truncateAbstract caps an abstract at maxAbstract runes, marking the cut.
func truncateAbstract(s string) string {
	r := []rune(s)
	if len(r) <= maxAbstract {
		return s
	}
	return string(r[:maxAbstract]) + "..."
}

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	// Order matters: & must be first (before other escapes that might produce &)
	replacer := strings.NewReplacer(
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"{", `\{`,
		"}", `\}`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}
