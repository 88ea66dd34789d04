package openalex

import (
	"sort"
	"strings"

	"github.com/matsen/citethreads/internal/paper"
)

const (
	openAlexPrefix = "https://openalex.org/"
	doiPrefix      = "https://doi.org/"
	arxivPrefix    = "https://arxiv.org/abs/"
)

// MapWorkToPaper converts an OpenAlex work into a Paper with an
// OpenAlex-namespaced ID.
func MapWorkToPaper(w Work) paper.Paper {
	workID := shortID(w.ID)
	p := paper.Paper{
		ID:             paper.MakeID(paper.NamespaceOpenAlex, workID),
		DOI:            strings.TrimPrefix(w.IDs.DOI, doiPrefix),
		ArXivID:        strings.TrimPrefix(w.IDs.ArXiv, arxivPrefix),
		Title:          strings.TrimSpace(w.DisplayName),
		Authors:        make([]string, 0, len(w.Authorships)),
		Year:           w.PublicationYear,
		Abstract:       ReconstructAbstract(w.AbstractInvertedIndex),
		Fields:         []string{},
		CitationCount:  w.CitedByCount,
		ReferenceCount: len(w.ReferencedWorks),
	}
	if p.Title == "" {
		p.Title = "Unknown Title"
	}

	for _, a := range w.Authorships {
		if a.Author.DisplayName != "" {
			p.Authors = append(p.Authors, a.Author.DisplayName)
		}
	}

	if w.PrimaryLocation != nil {
		if w.PrimaryLocation.Source != nil {
			p.Venue = w.PrimaryLocation.Source.DisplayName
		}
		p.URL = w.PrimaryLocation.LandingPageURL
	}
	if w.IDs.DOI != "" {
		p.URL = w.IDs.DOI
	}
	if p.URL == "" {
		p.URL = w.ID
	}

	for _, c := range w.Concepts {
		if c.Level == 0 {
			p.Fields = append(p.Fields, c.DisplayName)
		}
	}
	return p
}

// ReconstructAbstract rebuilds abstract text from OpenAlex's inverted index
// (word -> positions).
func ReconstructAbstract(index map[string][]int) string {
	if len(index) == 0 {
		return ""
	}
	byPos := make(map[int]string)
	for word, positions := range index {
		for _, pos := range positions {
			byPos[pos] = word
		}
	}
	positions := make([]int, 0, len(byPos))
	for pos := range byPos {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	words := make([]string, len(positions))
	for i, pos := range positions {
		words[i] = byPos[pos]
	}
	return strings.Join(words, " ")
}

// shortID strips the https://openalex.org/ prefix from a work ID.
func shortID(id string) string {
	return strings.TrimPrefix(id, openAlexPrefix)
}
