// Package project runs the lifecycle of stored citation-graph projects:
// creation, background builds, re-analysis and manual curation.
package project

import (
	"errors"
	"regexp"
	"strings"

	"github.com/matsen/citethreads/internal/paper"
)

// Limits on API-created projects.
const (
	MinDepth     = 1
	MaxDepth     = 3
	MinMaxPapers = 10
	MaxMaxPapers = 200

	DefaultDepth     = 1
	DefaultMaxPapers = 30
)

// CreateRequest describes a new project.
type CreateRequest struct {
	SeedPaperID string          `json:"seed_paper_id"`
	Name        string          `json:"name,omitempty"`
	Depth       int             `json:"depth,omitempty"`
	Direction   paper.Direction `json:"direction,omitempty"`
	MaxPapers   int             `json:"max_papers,omitempty"`
	DataSource  string          `json:"data_source,omitempty"`
	Classify    *bool           `json:"classify,omitempty"` // defaults to true
}

// IDPattern is the regex pattern for valid project IDs.
var IDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Validation errors.
var (
	ErrEmptyID        = errors.New("id is required")
	ErrInvalidID      = errors.New("id must match pattern: lowercase alphanumeric, hyphens, underscores; must start with alphanumeric")
	ErrEmptySeed      = errors.New("seed_paper_id is required")
	ErrInvalidDepth   = errors.New("depth must be between 1 and 3")
	ErrInvalidPapers  = errors.New("max_papers must be between 10 and 200")
	ErrInvalidDir     = errors.New("direction must be forward, backward or both")
	ErrInvalidSource  = errors.New("unknown data_source")
	ErrNotClassifying = errors.New("citation analysis is not configured")
)

// Normalize fills defaults and validates the request.
func (r *CreateRequest) Normalize() error {
	r.SeedPaperID = strings.TrimSpace(r.SeedPaperID)
	if r.SeedPaperID == "" {
		return ErrEmptySeed
	}
	if r.Depth == 0 {
		r.Depth = DefaultDepth
	}
	if r.Depth < MinDepth || r.Depth > MaxDepth {
		return ErrInvalidDepth
	}
	if r.MaxPapers == 0 {
		r.MaxPapers = DefaultMaxPapers
	}
	if r.MaxPapers < MinMaxPapers || r.MaxPapers > MaxMaxPapers {
		return ErrInvalidPapers
	}
	if r.Direction == "" {
		r.Direction = paper.Both
	}
	dir, err := paper.ParseDirection(string(r.Direction))
	if err != nil {
		return ErrInvalidDir
	}
	r.Direction = dir
	if r.Classify == nil {
		classify := true
		r.Classify = &classify
	}
	return nil
}

// ValidateID validates a project ID before lookup.
func ValidateID(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if !IDPattern.MatchString(id) {
		return ErrInvalidID
	}
	return nil
}
