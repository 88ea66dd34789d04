package s2

import (
	"strings"

	"github.com/matsen/citethreads/internal/paper"
)

// MapS2ToPaper converts an S2Paper to a Paper with an S2-namespaced ID.
func MapS2ToPaper(p S2Paper) paper.Paper {
	out := paper.Paper{
		ID:             paper.MakeID(paper.NamespaceS2, p.PaperID),
		DOI:            p.ExternalIDs.DOI,
		ArXivID:        p.ExternalIDs.ArXiv,
		Title:          strings.TrimSpace(p.Title),
		Authors:        mapAuthors(p.Authors),
		Year:           p.Year,
		Venue:          p.Venue,
		Abstract:       p.Abstract,
		Fields:         p.Fields,
		CitationCount:  p.Citations,
		ReferenceCount: p.References,
		URL:            "https://www.semanticscholar.org/paper/" + p.PaperID,
	}
	if out.Title == "" {
		out.Title = "Unknown"
	}
	if out.Fields == nil {
		out.Fields = []string{}
	}
	return out
}

func mapAuthors(authors []S2Author) []string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return names
}
