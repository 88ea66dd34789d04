package paper

import "fmt"

// Direction selects which neighbors of a paper are expanded.
type Direction string

const (
	// Forward follows references (what the paper cites).
	Forward Direction = "forward"
	// Backward follows citations (who cites the paper).
	Backward Direction = "backward"
	// Both follows references and citations.
	Both Direction = "both"
)

// ParseDirection parses a direction name. An empty string means Forward.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case "", Forward:
		return Forward, nil
	case Backward:
		return Backward, nil
	case Both:
		return Both, nil
	}
	return "", fmt.Errorf("invalid direction %q: must be forward, backward or both", s)
}

// Expand returns the single directions this direction covers, references
// first.
func (d Direction) Expand() []Direction {
	switch d {
	case Backward:
		return []Direction{Backward}
	case Both:
		return []Direction{Forward, Backward}
	default:
		return []Direction{Forward}
	}
}

// Orient returns the (citing, cited) edge for a paper and one of its
// neighbors found in direction d. In Forward the paper cites the neighbor;
// in Backward the neighbor cites the paper.
func (d Direction) Orient(paperID, neighborID string) CitationEdge {
	if d == Backward {
		return NewEdge(neighborID, paperID)
	}
	return NewEdge(paperID, neighborID)
}
