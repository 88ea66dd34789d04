package paper

import (
	"regexp"
	"strings"
)

// Namespace is the origin-source prefix of a paper ID.
type Namespace string

// Known namespaces.
const (
	NamespaceS2       Namespace = "S2"
	NamespaceOpenAlex Namespace = "OpenAlex"
	NamespaceDOI      Namespace = "DOI"
	NamespaceArXiv    Namespace = "arXiv"
	NamespaceASTA     Namespace = "ASTA"
	NamespaceNone     Namespace = ""
)

// namespacePrefixes is checked in order; matching is case-insensitive.
var namespacePrefixes = []Namespace{
	NamespaceS2,
	NamespaceOpenAlex,
	NamespaceDOI,
	NamespaceArXiv,
	NamespaceASTA,
}

var (
	// s2IDPattern matches a 40-character hex string (raw S2 paper ID).
	s2IDPattern = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)
	// openAlexIDPattern matches an OpenAlex work ID such as W2741809807.
	openAlexIDPattern = regexp.MustCompile(`^W\d+$`)
	// arxivIDPattern matches new-style arXiv IDs, optionally versioned.
	arxivIDPattern = regexp.MustCompile(`^\d{4}\.\d{4,5}(v\d+)?$`)
)

// ID is a parsed namespaced identifier.
type ID struct {
	Namespace Namespace
	Value     string
}

// String reassembles the namespaced form.
func (id ID) String() string {
	if id.Namespace == NamespaceNone {
		return id.Value
	}
	return string(id.Namespace) + ":" + id.Value
}

// ParseID parses a paper identifier string into its namespace and value.
// Supports formats:
//   - S2:649def34f8be52c8b66281af98ae884c09aef38b
//   - OpenAlex:W2741809807
//   - DOI:10.1038/nature12373
//   - arXiv:1706.03762
//   - ASTA:649def34f8be52c8b66281af98ae884c09aef38b
//   - bare DOIs, https://doi.org/ URLs, arXiv IDs, OpenAlex W-ids and
//     40-character S2 IDs, which are assigned the matching namespace
func ParseID(raw string) ID {
	raw = strings.TrimSpace(raw)

	for _, ns := range namespacePrefixes {
		prefix := string(ns) + ":"
		if len(raw) > len(prefix) && strings.EqualFold(raw[:len(prefix)], prefix) {
			value := raw[len(prefix):]
			if ns == NamespaceDOI {
				value = NormalizeDOI(value)
			}
			return ID{Namespace: ns, Value: value}
		}
	}

	switch {
	case IsDOI(raw):
		return ID{Namespace: NamespaceDOI, Value: NormalizeDOI(raw)}
	case s2IDPattern.MatchString(raw):
		return ID{Namespace: NamespaceS2, Value: raw}
	case openAlexIDPattern.MatchString(raw):
		return ID{Namespace: NamespaceOpenAlex, Value: raw}
	case arxivIDPattern.MatchString(raw):
		return ID{Namespace: NamespaceArXiv, Value: raw}
	}

	return ID{Namespace: NamespaceNone, Value: raw}
}

// MakeID builds a namespaced ID string.
func MakeID(ns Namespace, value string) string {
	return ID{Namespace: ns, Value: value}.String()
}

// IsDOI reports whether s looks like a DOI (with or without URL prefix).
func IsDOI(s string) bool {
	return strings.HasPrefix(NormalizeDOI(s), "10.")
}

// NormalizeDOI normalizes a DOI to a consistent format for comparison.
// It removes common URL prefixes (https://doi.org/, DOI:) and converts to lowercase.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "https://dx.doi.org/")
	doi = strings.TrimPrefix(doi, "doi.org/")
	if len(doi) >= 4 && strings.EqualFold(doi[:4], "doi:") {
		doi = doi[4:]
	}
	return strings.ToLower(strings.TrimSpace(doi))
}
