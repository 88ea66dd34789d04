// Package sourcetest provides an in-memory source.Source for tests.
package sourcetest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/matsen/citethreads/internal/paper"
	"github.com/matsen/citethreads/internal/source"
)

// Mem serves a fixed citation graph from memory. It is safe for
// concurrent use.
type Mem struct {
	name string

	mu     sync.Mutex
	papers map[string]paper.Paper
	refs   map[string][]paper.Paper
	cites  map[string][]paper.Paper
	gate   chan struct{}
}

// NewMem creates an empty source called name.
func NewMem(name string) *Mem {
	return &Mem{
		name:   name,
		papers: make(map[string]paper.Paper),
		refs:   make(map[string][]paper.Paper),
		cites:  make(map[string][]paper.Paper),
	}
}

// Add registers papers under their own IDs.
func (m *Mem) Add(ps ...paper.Paper) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range ps {
		m.papers[p.ID] = p
	}
}

// Link records that citing cites cited.
func (m *Mem) Link(citing, cited paper.Paper) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs[citing.ID] = append(m.refs[citing.ID], cited)
	m.cites[cited.ID] = append(m.cites[cited.ID], citing)
}

// Block makes every GetPaper call wait until Release or until its context
// ends.
func (m *Mem) Block() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
}

// Release unblocks pending and future GetPaper calls.
func (m *Mem) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

func (m *Mem) Name() string { return m.name }

func (m *Mem) GetPaper(ctx context.Context, id string) (paper.Paper, error) {
	m.mu.Lock()
	gate := m.gate
	m.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return paper.Paper{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.papers[id]
	if !ok {
		return paper.Paper{}, source.ErrNotFound
	}
	return p, nil
}

func (m *Mem) GetReferences(_ context.Context, id string, limit int) ([]paper.Paper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return head(m.refs[id], limit), nil
}

func (m *Mem) GetCitations(_ context.Context, id string, limit int) ([]paper.Paper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return head(m.cites[id], limit), nil
}

// Search matches query case-insensitively against titles.
func (m *Mem) Search(_ context.Context, query string, limit int) ([]paper.Paper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(query)
	var out []paper.Paper
	for _, p := range m.papers {
		if strings.Contains(strings.ToLower(p.Title), q) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CitationCount != out[j].CitationCount {
			return out[i].CitationCount > out[j].CitationCount
		}
		return out[i].ID < out[j].ID
	})
	return head(out, limit), nil
}

func head(ps []paper.Paper, n int) []paper.Paper {
	if n > 0 && len(ps) > n {
		ps = ps[:n]
	}
	return append([]paper.Paper(nil), ps...)
}
