// Package store persists citation-graph projects in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/matsen/citethreads/internal/paper"
)

// StatusCreated is the status of a project whose build has not started.
const StatusCreated paper.Status = "created"

// Lookup errors.
var (
	ErrNotFound      = errors.New("project not found")
	ErrEdgeNotFound  = errors.New("edge not found")
	ErrPaperNotFound = errors.New("paper not found")
	ErrEmptyName     = errors.New("name is required")
)

// Config records how a project's graph was requested.
type Config struct {
	Seed       string          `json:"seed_paper_id"`
	Depth      int             `json:"depth"`
	Direction  paper.Direction `json:"direction"`
	MaxPapers  int             `json:"max_papers"`
	DataSource string          `json:"data_source,omitempty"`
	// Classify is nil for projects stored before the option existed.
	Classify   *bool           `json:"classify,omitempty"`
}

// ShouldClassify reports whether the build classifies citation intents.
// It defaults to true.
func (c Config) ShouldClassify() bool {
	return c.Classify == nil || *c.Classify
}

// Project is a saved graph build and its metadata.
type Project struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Config    Config       `json:"config"`
	Status    paper.Status `json:"status"`
	StatusMsg string       `json:"status_msg,omitempty"`
	Stats     *paper.Stats `json:"stats,omitempty"`
}

// DB wraps a SQLite database connection.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the project database at path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &DB{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			config_json TEXT NOT NULL,
			status TEXT NOT NULL,
			status_msg TEXT,
			stats_json TEXT,
			graph_json TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_projects_created ON projects(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// newProjectID returns a short random project ID.
func newProjectID() string {
	return uuid.NewString()[:8]
}

// Create stores a new project with an empty graph. An empty name defaults
// to "Project <id>".
func (d *DB) Create(name string, cfg Config) (*Project, error) {
	now := d.now().UTC()
	p := &Project{
		ID:        newProjectID(),
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
		Config:    cfg,
		Status:    StatusCreated,
	}
	if p.Name == "" {
		p.Name = "Project " + p.ID
	}

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	graphJSON, err := json.Marshal(emptyGraph())
	if err != nil {
		return nil, fmt.Errorf("encoding graph: %w", err)
	}

	_, err = d.db.Exec(`
		INSERT INTO projects (id, name, created_at, updated_at, config_json, status, graph_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, formatTime(p.CreatedAt), formatTime(p.UpdatedAt), string(cfgJSON), string(p.Status), string(graphJSON))
	if err != nil {
		return nil, fmt.Errorf("inserting project %s: %w", p.ID, err)
	}
	return p, nil
}

const selectProjectFields = `id, name, created_at, updated_at, config_json, status, status_msg, stats_json`

// projectScanFields holds the scan targets for a project row.
type projectScanFields struct {
	id, name, createdAt, updatedAt, config, status sql.NullString
	statusMsg, stats                               sql.NullString
}

func (f *projectScanFields) targets() []any {
	return []any{&f.id, &f.name, &f.createdAt, &f.updatedAt, &f.config, &f.status, &f.statusMsg, &f.stats}
}

// toProject converts scanned fields to a Project.
func (f *projectScanFields) toProject() (Project, error) {
	p := Project{
		ID:        f.id.String,
		Name:      f.name.String,
		CreatedAt: parseTime(f.createdAt.String),
		UpdatedAt: parseTime(f.updatedAt.String),
		Status:    paper.Status(f.status.String),
		StatusMsg: f.statusMsg.String,
	}
	if err := json.Unmarshal([]byte(f.config.String), &p.Config); err != nil {
		return p, fmt.Errorf("decoding config of %s: %w", p.ID, err)
	}
	if f.stats.Valid && f.stats.String != "" {
		var s paper.Stats
		if err := json.Unmarshal([]byte(f.stats.String), &s); err != nil {
			return p, fmt.Errorf("decoding stats of %s: %w", p.ID, err)
		}
		p.Stats = &s
	}
	return p, nil
}

// Get returns a project's metadata.
func (d *DB) Get(id string) (*Project, error) {
	var f projectScanFields
	err := d.db.QueryRow(`SELECT `+selectProjectFields+` FROM projects WHERE id = ?`, id).Scan(f.targets()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying project %s: %w", id, err)
	}
	p, err := f.toProject()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns every project, newest first.
func (d *DB) List() ([]Project, error) {
	rows, err := d.db.Query(`SELECT ` + selectProjectFields + ` FROM projects ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		var f projectScanFields
		if err := rows.Scan(f.targets()...); err != nil {
			return nil, err
		}
		p, err := f.toProject()
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Graph returns a project's stored graph.
func (d *DB) Graph(id string) (paper.GraphData, error) {
	var raw string
	err := d.db.QueryRow(`SELECT graph_json FROM projects WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return paper.GraphData{}, ErrNotFound
	}
	if err != nil {
		return paper.GraphData{}, fmt.Errorf("querying graph of %s: %w", id, err)
	}
	g := emptyGraph()
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		return paper.GraphData{}, fmt.Errorf("decoding graph of %s: %w", id, err)
	}
	return g, nil
}

// Rename changes a project's display name.
func (d *DB) Rename(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	return d.update(id, `UPDATE projects SET name = ?, updated_at = ? WHERE id = ?`, name, formatTime(d.now()), id)
}

// SetStatus records a project's phase and an optional message.
func (d *DB) SetStatus(id string, status paper.Status, msg string) error {
	return d.update(id, `UPDATE projects SET status = ?, status_msg = ?, updated_at = ? WHERE id = ?`,
		string(status), nullableString(msg), formatTime(d.now()), id)
}

// SaveGraph replaces a project's graph and recomputes its stats.
func (d *DB) SaveGraph(id string, g paper.GraphData) error {
	if g.Nodes == nil {
		g.Nodes = []paper.Paper{}
	}
	if g.Edges == nil {
		g.Edges = []paper.CitationEdge{}
	}
	graphJSON, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encoding graph: %w", err)
	}
	statsJSON, err := json.Marshal(g.ComputeStats())
	if err != nil {
		return fmt.Errorf("encoding stats: %w", err)
	}
	return d.update(id, `UPDATE projects SET graph_json = ?, stats_json = ?, updated_at = ? WHERE id = ?`,
		string(graphJSON), string(statsJSON), formatTime(d.now()), id)
}

// Delete removes a project and its graph.
func (d *DB) Delete(id string) error {
	return d.update(id, `DELETE FROM projects WHERE id = ?`, id)
}

// UpdateEdge sets a manual intent on one edge. A manual label carries full
// confidence; note replaces any previous note when non-empty.
func (d *DB) UpdateEdge(id, source, target string, intent paper.Intent, note string) error {
	g, err := d.Graph(id)
	if err != nil {
		return err
	}
	found := false
	for i := range g.Edges {
		e := &g.Edges[i]
		if e.Source != source || e.Target != target {
			continue
		}
		e.Intent = intent
		e.Confidence = 1.0
		if note != "" {
			e.Note = note
		}
		found = true
		break
	}
	if !found {
		return ErrEdgeNotFound
	}
	return d.SaveGraph(id, g)
}

// DeletePaper removes a node and every edge touching it.
func (d *DB) DeletePaper(id, paperID string) error {
	g, err := d.Graph(id)
	if err != nil {
		return err
	}
	if !g.RemoveNode(paperID) {
		return ErrPaperNotFound
	}
	return d.SaveGraph(id, g)
}

// update runs a single-row statement and maps "no rows" to ErrNotFound.
func (d *DB) update(id, query string, args ...any) error {
	res, err := d.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("updating project %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func emptyGraph() paper.GraphData {
	return paper.GraphData{Nodes: []paper.Paper{}, Edges: []paper.CitationEdge{}}
}

// nullableString converts an empty string to SQL NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
