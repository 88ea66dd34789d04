package project

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/matsen/citethreads/internal/classify"
	"github.com/matsen/citethreads/internal/config"
	"github.com/matsen/citethreads/internal/graph"
	"github.com/matsen/citethreads/internal/logger"
	"github.com/matsen/citethreads/internal/paper"
	"github.com/matsen/citethreads/internal/resolver"
	"github.com/matsen/citethreads/internal/store"
	"github.com/matsen/citethreads/internal/task"
)

// Mirror receives finished graphs. store.Neo4jMirror implements it.
type Mirror interface {
	MirrorGraph(ctx context.Context, projectID string, g paper.GraphData) error
	DeleteProject(ctx context.Context, projectID string) error
}

// Service coordinates the project store, graph builds and classification.
type Service struct {
	db       *store.DB
	builder  *graph.Builder
	pipeline *classify.Pipeline
	tasks    *task.Manager
	mirror   Mirror
	log      *logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPipeline enables re-analysis of stored graphs.
func WithPipeline(p *classify.Pipeline) Option {
	return func(s *Service) {
		s.pipeline = p
	}
}

// WithMirror copies completed graphs to m.
func WithMirror(m Mirror) Option {
	return func(s *Service) {
		s.mirror = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

// NewService creates a Service. Builds run on tasks.
func NewService(db *store.DB, builder *graph.Builder, tasks *task.Manager, opts ...Option) *Service {
	s := &Service{db: db, builder: builder, tasks: tasks}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrNop(s.log).With("component", "project")
	return s
}

// Tasks returns the task manager running builds.
func (s *Service) Tasks() *task.Manager {
	return s.tasks
}

// Create stores a project and starts building its graph in the background.
func (s *Service) Create(req CreateRequest) (*store.Project, *task.Handle, error) {
	if err := req.Normalize(); err != nil {
		return nil, nil, err
	}
	if req.DataSource != "" && req.DataSource != resolver.DataSourceAuto && !slices.Contains(config.KnownSources, req.DataSource) {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidSource, req.DataSource)
	}

	p, err := s.db.Create(req.Name, store.Config{
		Seed:       req.SeedPaperID,
		Depth:      req.Depth,
		Direction:  req.Direction,
		MaxPapers:  req.MaxPapers,
		DataSource: req.DataSource,
		Classify:   req.Classify,
	})
	if err != nil {
		return nil, nil, err
	}
	h, err := s.StartBuild(p)
	if err != nil {
		return p, nil, err
	}
	return p, h, nil
}

// StartBuild launches the graph build for an existing project.
func (s *Service) StartBuild(p *store.Project) (*task.Handle, error) {
	id := p.ID
	cfg := p.Config
	return s.tasks.Start(id, paper.StatusCrawling, func(ctx context.Context, report paper.ProgressFunc) error {
		if err := s.db.SetStatus(id, paper.StatusCrawling, ""); err != nil {
			return err
		}
		var done string
		g, err := s.builder.Build(ctx, graph.Request{
			Seed:       cfg.Seed,
			MaxDepth:   cfg.Depth,
			Direction:  cfg.Direction,
			Classify:   cfg.ShouldClassify(),
			MaxPapers:  cfg.MaxPapers,
			DataSource: cfg.DataSource,
		}, s.persisting(id, report, &done))
		return s.finish(ctx, id, g, err, done)
	})
}

// Analyze re-runs classification over a stored graph in the background.
func (s *Service) Analyze(id string) (*task.Handle, error) {
	if s.pipeline == nil {
		return nil, ErrNotClassifying
	}
	if _, err := s.db.Get(id); err != nil {
		return nil, err
	}
	return s.tasks.Start(id, paper.StatusAnalyzing, func(ctx context.Context, report paper.ProgressFunc) error {
		g, err := s.db.Graph(id)
		if err != nil {
			return err
		}
		if err := s.db.SetStatus(id, paper.StatusAnalyzing, ""); err != nil {
			return err
		}
		res, err := s.pipeline.Run(ctx, g.NodeMap(), g.Edges, report)
		if err != nil {
			return s.finish(ctx, id, paper.GraphData{}, err, "")
		}
		g.Edges = res.Edges
		msg := fmt.Sprintf("Analyzed %d citations (%d classified, %d cached, %d failed)",
			res.Stats.Total, res.Stats.LLMClassified, res.Stats.Cached, res.Stats.Errors)
		report.Report(paper.Progress{Status: paper.StatusCompleted, Progress: res.Stats.Total, Total: res.Stats.Total, Message: msg})
		return s.finish(ctx, id, g, nil, msg)
	})
}

// persisting forwards progress and records phase changes in the store.
// The completion message is kept in done.
func (s *Service) persisting(id string, report paper.ProgressFunc, done *string) paper.ProgressFunc {
	last := paper.StatusCrawling
	return func(p paper.Progress) {
		report.Report(p)
		if p.Status == paper.StatusCompleted {
			*done = p.Message
		}
		if p.Status == paper.StatusAnalyzing && last != paper.StatusAnalyzing {
			if err := s.db.SetStatus(id, paper.StatusAnalyzing, ""); err != nil {
				s.log.Warn("failed to record status", "project", id, "error", err)
			}
			last = paper.StatusAnalyzing
		}
	}
}

// finish stores the outcome of a task. A cancelled build keeps its partial
// graph; a failed one keeps whatever was stored before.
func (s *Service) finish(ctx context.Context, id string, g paper.GraphData, err error, msg string) error {
	switch {
	case err == nil:
		if saveErr := s.db.SaveGraph(id, g); saveErr != nil {
			return saveErr
		}
		if msg == "" {
			stats := g.ComputeStats()
			msg = fmt.Sprintf("Done! %d papers, %d citations", stats.TotalNodes, stats.TotalEdges)
		}
		if setErr := s.db.SetStatus(id, paper.StatusCompleted, msg); setErr != nil {
			return setErr
		}
		if s.mirror != nil {
			if mErr := s.mirror.MirrorGraph(ctx, id, g); mErr != nil {
				s.log.Warn("graph mirror failed", "project", id, "error", mErr)
			}
		}
		return nil

	case errors.Is(err, context.Canceled):
		if len(g.Nodes) > 0 {
			if saveErr := s.db.SaveGraph(id, g); saveErr != nil {
				s.log.Warn("failed to save partial graph", "project", id, "error", saveErr)
			}
		}
		s.setStatus(id, paper.StatusCancelled, "Cancelled")
		return err

	default:
		s.setStatus(id, paper.StatusFailed, fmt.Sprintf("Error: %v", err))
		return err
	}
}

func (s *Service) setStatus(id string, status paper.Status, msg string) {
	if err := s.db.SetStatus(id, status, msg); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.Warn("failed to record status", "project", id, "status", status, "error", err)
	}
}

// Status returns the live progress of a running task, or the stored status
// once no task is running.
func (s *Service) Status(id string) (paper.Progress, error) {
	if h, ok := s.tasks.Get(id); ok && !h.Finished() {
		return h.Progress(), nil
	}
	p, err := s.db.Get(id)
	if err != nil {
		return paper.Progress{}, err
	}
	prog := paper.Progress{Status: p.Status, Message: p.StatusMsg}
	if p.Status == paper.StatusCompleted {
		prog.Progress, prog.Total = 100, 100
	}
	return prog, nil
}

// Get returns a project's metadata.
func (s *Service) Get(id string) (*store.Project, error) {
	return s.db.Get(id)
}

// Graph returns a project's stored graph.
func (s *Service) Graph(id string) (paper.GraphData, error) {
	return s.db.Graph(id)
}

// List returns every project, newest first.
func (s *Service) List() ([]store.Project, error) {
	return s.db.List()
}

// Rename changes a project's display name.
func (s *Service) Rename(id, name string) (*store.Project, error) {
	if err := s.db.Rename(id, name); err != nil {
		return nil, err
	}
	return s.db.Get(id)
}

// Delete cancels any running task for the project, then removes it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.db.Get(id); err != nil {
		return err
	}
	s.tasks.Cancel(ctx, id)
	s.tasks.Forget(id)
	if err := s.db.Delete(id); err != nil {
		return err
	}
	if s.mirror != nil {
		if err := s.mirror.DeleteProject(ctx, id); err != nil {
			s.log.Warn("graph mirror delete failed", "project", id, "error", err)
		}
	}
	return nil
}

// UpdateEdge records a manual intent label and note on one edge.
func (s *Service) UpdateEdge(id, source, target, intent, note string) error {
	in, err := paper.ParseIntent(intent)
	if err != nil {
		return err
	}
	return s.db.UpdateEdge(id, source, target, in, note)
}

// DeletePaper removes a paper and its edges from a project's graph.
func (s *Service) DeletePaper(id, paperID string) error {
	return s.db.DeletePaper(id, paperID)
}
