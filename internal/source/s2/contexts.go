package s2

import (
	"context"
	"strings"

	"github.com/matsen/citethreads/internal/paper"
	"github.com/matsen/citethreads/internal/source"
)

// CitationContexts returns the sentences in which the paper with citingDOI
// cites the paper with citedDOI. It scans the citing paper's references, so
// an unmatched pair yields no contexts and no error.
func (c *Client) CitationContexts(ctx context.Context, citingDOI, citedDOI string) ([]string, error) {
	if citingDOI == "" || citedDOI == "" {
		return nil, nil
	}

	citingID := paper.MakeID(paper.NamespaceDOI, paper.NormalizeDOI(citingDOI))
	list, err := c.neighbors(ctx, citingID, "references", "contexts,externalIds", maxNeighborLimit)
	if err != nil {
		return nil, err
	}

	want := paper.NormalizeDOI(citedDOI)
	for _, r := range list.Data {
		if r.CitedPaper == nil {
			continue
		}
		if paper.NormalizeDOI(r.CitedPaper.ExternalIDs.DOI) == want {
			return cleanContexts(r.Contexts), nil
		}
	}
	return nil, nil
}

func cleanContexts(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.Join(strings.Fields(s), " ")
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

var _ source.ContextProvider = (*Client)(nil)
