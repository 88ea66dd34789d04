package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/matsen/citethreads/internal/config"
	"github.com/matsen/citethreads/internal/logger"
	"github.com/matsen/citethreads/internal/paper"
)

const neo4jTimeout = 10 * time.Second

// Neo4jMirror copies finished project graphs into Neo4j as
// (:Paper)-[:CITES]->(:Paper), scoped by project id.
type Neo4jMirror struct {
	driver   neo4j.DriverWithContext
	database string
	log      *logger.Logger
}

// NewNeo4jMirror connects to Neo4j. It returns nil, nil when no URI is
// configured.
func NewNeo4jMirror(ctx context.Context, cfg config.Neo4jConfig, log *logger.Logger) (*Neo4jMirror, error) {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, nil
	}
	user := cfg.User
	if user == "" {
		user = "neo4j"
	}

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, cfg.Password, ""), func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = 10
		c.SocketConnectTimeout = neo4jTimeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, neo4jTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}

	return &Neo4jMirror{
		driver:   driver,
		database: cfg.Database,
		log:      logger.OrNop(log).With("component", "Neo4jMirror"),
	}, nil
}

// Close releases the driver.
func (m *Neo4jMirror) Close(ctx context.Context) error {
	if m == nil || m.driver == nil {
		return nil
	}
	err := m.driver.Close(ctx)
	m.driver = nil
	return err
}

// MirrorGraph replaces the project's subgraph with g.
func (m *Neo4jMirror) MirrorGraph(ctx context.Context, projectID string, g paper.GraphData) error {
	if m == nil || m.driver == nil {
		return nil
	}
	nodes, rels := graphRows(projectID, g, time.Now())

	session := m.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: m.database,
	})
	defer session.Close(ctx)

	// Best-effort schema init.
	q := `CREATE CONSTRAINT paper_project_id_unique IF NOT EXISTS FOR (p:Paper) REQUIRE (p.project_id, p.id) IS UNIQUE`
	if res, err := session.Run(ctx, q, nil); err != nil {
		m.log.Warn("neo4j schema init failed (continuing)", "error", err)
	} else {
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := run(ctx, tx, `
MATCH (p:Paper {project_id: $project_id})
DETACH DELETE p
`, map[string]any{"project_id": projectID}); err != nil {
			return nil, err
		}
		if len(nodes) > 0 {
			if err := run(ctx, tx, `
UNWIND $nodes AS n
MERGE (p:Paper {project_id: n.project_id, id: n.id})
SET p += n
`, map[string]any{"nodes": nodes}); err != nil {
				return nil, err
			}
		}
		if len(rels) > 0 {
			if err := run(ctx, tx, `
UNWIND $rels AS r
MATCH (a:Paper {project_id: r.project_id, id: r.source})
MATCH (b:Paper {project_id: r.project_id, id: r.target})
MERGE (a)-[c:CITES]->(b)
SET c.intent = r.intent,
    c.confidence = r.confidence,
    c.function = r.function,
    c.sentiment = r.sentiment,
    c.importance = r.importance,
    c.reasoning = r.reasoning,
    c.synced_at = r.synced_at
`, map[string]any{"rels": rels}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j: mirror project %s: %w", projectID, err)
	}
	m.log.Debug("mirrored graph", "project", projectID, "nodes", len(nodes), "edges", len(rels))
	return nil
}

// DeleteProject removes the project's subgraph.
func (m *Neo4jMirror) DeleteProject(ctx context.Context, projectID string) error {
	if m == nil || m.driver == nil {
		return nil
	}
	session := m.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: m.database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, run(ctx, tx, `MATCH (p:Paper {project_id: $project_id}) DETACH DELETE p`,
			map[string]any{"project_id": projectID})
	})
	if err != nil {
		return fmt.Errorf("neo4j: delete project %s: %w", projectID, err)
	}
	return nil
}

func run(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) error {
	res, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

// graphRows flattens a graph into UNWIND parameter rows. Neo4j properties
// cannot hold nested maps, so authors are joined and fields kept as a list.
func graphRows(projectID string, g paper.GraphData, now time.Time) (nodes, rels []map[string]any) {
	synced := now.UTC().Format(time.RFC3339Nano)
	nodes = make([]map[string]any, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		fields := n.Fields
		if fields == nil {
			fields = []string{}
		}
		nodes = append(nodes, map[string]any{
			"project_id":     projectID,
			"id":             n.ID,
			"doi":            n.DOI,
			"title":          n.Title,
			"authors":        strings.Join(n.Authors, "; "),
			"year":           int64(n.Year),
			"venue":          n.Venue,
			"fields":         fields,
			"citation_count": int64(n.CitationCount),
			"synced_at":      synced,
		})
	}
	rels = make([]map[string]any, 0, len(g.Edges))
	for _, e := range g.Edges {
		rels = append(rels, map[string]any{
			"project_id": projectID,
			"source":     e.Source,
			"target":     e.Target,
			"intent":     string(e.Intent),
			"confidence": e.Confidence,
			"function":   string(e.Function),
			"sentiment":  string(e.Sentiment),
			"importance": int64(e.Importance),
			"reasoning":  e.Reasoning,
			"synced_at":  synced,
		})
	}
	return nodes, rels
}
