// Package source defines the contract every bibliographic data source
// implements, plus the errors and HTTP plumbing the adapters share.
package source

import (
	"context"

	"github.com/matsen/citethreads/internal/paper"
)

// Source is a bibliographic backend that can be placed in a fallback chain.
//
// Implementations report failures as errors (ErrNotFound, ErrRateLimited,
// ErrUnsupported, network errors) and never panic. Returned papers carry
// IDs namespaced with the source's own prefix.
type Source interface {
	// Name returns the stable source name used in configuration and logs.
	Name() string

	// GetPaper fetches a single paper by an ID in a format this source
	// accepts. Returns ErrNotFound when the source has no such paper.
	GetPaper(ctx context.Context, id string) (paper.Paper, error)

	// GetReferences returns up to limit papers cited by id.
	GetReferences(ctx context.Context, id string, limit int) ([]paper.Paper, error)

	// GetCitations returns up to limit papers citing id.
	GetCitations(ctx context.Context, id string, limit int) ([]paper.Paper, error)

	// Search returns up to limit papers matching a free-text query.
	Search(ctx context.Context, query string, limit int) ([]paper.Paper, error)
}

// ContextProvider retrieves the sentences in which one paper cites another.
type ContextProvider interface {
	CitationContexts(ctx context.Context, citingDOI, citedDOI string) ([]string, error)
}
