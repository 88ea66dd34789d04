package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/matsen/citethreads/internal/availability"
	"github.com/matsen/citethreads/internal/classify"
	"github.com/matsen/citethreads/internal/config"
	"github.com/matsen/citethreads/internal/graph"
	"github.com/matsen/citethreads/internal/llm"
	"github.com/matsen/citethreads/internal/logger"
	"github.com/matsen/citethreads/internal/metrics"
	"github.com/matsen/citethreads/internal/project"
	"github.com/matsen/citethreads/internal/resolver"
	"github.com/matsen/citethreads/internal/source"
	"github.com/matsen/citethreads/internal/source/arxiv"
	"github.com/matsen/citethreads/internal/source/asta"
	"github.com/matsen/citethreads/internal/source/crossref"
	"github.com/matsen/citethreads/internal/source/openalex"
	"github.com/matsen/citethreads/internal/source/s2"
	"github.com/matsen/citethreads/internal/store"
	"github.com/matsen/citethreads/internal/task"
)

// shutdownTimeout bounds how long running tasks get to stop on exit.
const shutdownTimeout = 10 * time.Second

// app holds the components shared by every command.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	tracker  *availability.Tracker
	resolver *resolver.Resolver
	builder  *graph.Builder

	// pipeline is always set; completer is nil when no LLM is configured.
	pipeline  *classify.Pipeline
	completer llm.Completer

	closers []func()
}

// mustApp loads configuration and wires the resolver, builder and
// classification pipeline, exiting on failure.
func mustApp(ctx context.Context) *app {
	a, err := newApp(ctx)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return a
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)
	a.tracker = newTracker(cfg, a.metrics, log)

	sources := newSources(cfg, log)
	papers, neighbors := buildChains(cfg, sources, log)
	a.resolver = resolver.New(a.tracker, papers, neighbors,
		resolver.WithCallTimeout(cfg.Build.CallTimeout),
		resolver.WithMetrics(a.metrics),
		resolver.WithLogger(log),
	)

	a.completer, err = llm.New(cfg.LLM, log)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		log.Info("citation classification disabled", "reason", err.Error())
	case err != nil:
		return nil, err
	}
	a.pipeline = a.newPipeline(ctx, sources)

	a.builder = graph.NewBuilder(a.resolver,
		graph.WithClassifier(a.pipeline),
		graph.WithPerPaperLimit(cfg.Build.PerPaperLimit),
		graph.WithPacingDelay(cfg.Build.PacingDelay),
		graph.WithMetrics(a.metrics),
		graph.WithLogger(log),
	)
	return a, nil
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.LoadGlobalConfig()
}

func newTracker(cfg *config.Config, m *metrics.Metrics, log *logger.Logger) *availability.Tracker {
	opts := []availability.Option{
		availability.WithLogger(log),
		availability.WithMarkHook(m.RecordMarkedLimited),
	}
	for name, d := range cfg.Cooldowns {
		if name == config.DefaultCooldownKey {
			opts = append(opts, availability.WithDefaultCooldown(d))
			continue
		}
		opts = append(opts, availability.WithCooldown(name, d))
	}
	return availability.New(opts...)
}

// newSources constructs one client per known source. ASTA needs an API key
// and is left out without one.
func newSources(cfg *config.Config, log *logger.Logger) map[string]source.Source {
	srcs := map[string]source.Source{
		config.SourceSemanticScholar: s2.NewClient(s2.WithAPIKey(cfg.Sources.S2APIKey), s2.WithLogger(log)),
		config.SourceOpenAlex:        openalex.NewClient(openalex.WithMailto(cfg.Sources.Mailto), openalex.WithLogger(log)),
		config.SourceCrossref:        crossref.NewClient(crossref.WithMailto(cfg.Sources.Mailto), crossref.WithLogger(log)),
		config.SourceArXiv:           arxiv.NewClient(arxiv.WithLogger(log)),
	}
	if cfg.Sources.ASTAAPIKey != "" {
		srcs[config.SourceASTA] = asta.NewClient(asta.WithAPIKey(cfg.Sources.ASTAAPIKey), asta.WithLogger(log))
	}
	return srcs
}

// buildChains turns the configured chain orders into resolver entries.
// Semantic Scholar paper fetches mark the source limited on transport
// failures unless strict marking is off. When ASTA is available but not listed in
// the neighbor chain, it is inserted right after Semantic Scholar.
func buildChains(cfg *config.Config, srcs map[string]source.Source, log *logger.Logger) (papers, neighbors []resolver.Entry) {
	log = logger.OrNop(log)
	entries := func(names []string, strict bool) []resolver.Entry {
		var out []resolver.Entry
		for _, name := range names {
			src, ok := srcs[name]
			if !ok {
				log.Warn("source not available, skipping", "source", name)
				continue
			}
			out = append(out, resolver.Entry{
				Source:        src,
				MarkOnFailure: strict && name == config.SourceSemanticScholar,
			})
		}
		return out
	}

	papers = entries(cfg.Sources.PaperChain, cfg.Build.Strict())
	neighborNames := withASTA(cfg.Sources.NeighborChain, srcs)
	neighbors = entries(neighborNames, false)
	return papers, neighbors
}

func withASTA(names []string, srcs map[string]source.Source) []string {
	if _, ok := srcs[config.SourceASTA]; !ok {
		return names
	}
	for _, n := range names {
		if n == config.SourceASTA {
			return names
		}
	}
	out := make([]string, 0, len(names)+1)
	inserted := false
	for _, n := range names {
		out = append(out, n)
		if n == config.SourceSemanticScholar {
			out = append(out, config.SourceASTA)
			inserted = true
		}
	}
	if !inserted {
		out = append([]string{config.SourceASTA}, out...)
	}
	return out
}

// newPipeline builds the classification pipeline with a Redis cache when one
// is configured and Semantic Scholar as the citation context provider.
func (a *app) newPipeline(ctx context.Context, srcs map[string]source.Source) *classify.Pipeline {
	opts := []classify.Option{
		classify.WithCap(a.cfg.Classify.Cap),
		classify.WithConcurrency(a.cfg.Classify.Concurrency),
		classify.WithParams(llm.Params{Temperature: a.cfg.LLM.Temperature, MaxTokens: a.cfg.LLM.MaxTokens}),
		classify.WithMetrics(a.metrics),
		classify.WithLogger(a.log),
	}
	if p, ok := srcs[config.SourceSemanticScholar].(source.ContextProvider); ok {
		opts = append(opts, classify.WithContextProvider(config.SourceSemanticScholar, p))
	}
	if a.cfg.Redis.Addr != "" {
		cache, err := classify.NewRedisCache(ctx, a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB, a.cfg.Classify.CacheTTL, a.log)
		if err != nil {
			a.log.Warn("redis cache unavailable, using in-memory cache", "addr", a.cfg.Redis.Addr, "error", err)
		} else {
			opts = append(opts, classify.WithCache(cache))
			a.onClose(func() { _ = cache.Close() })
		}
	}
	return classify.New(a.completer, opts...)
}

// openService opens the project store and wires the project service,
// including the Neo4j mirror when configured.
func (a *app) openService(ctx context.Context) (*project.Service, error) {
	db, err := store.Open(a.cfg.DBPath())
	if err != nil {
		return nil, err
	}
	a.onClose(func() { _ = db.Close() })

	opts := []project.Option{project.WithLogger(a.log)}
	if a.completer != nil {
		opts = append(opts, project.WithPipeline(a.pipeline))
	}
	mirror, err := store.NewNeo4jMirror(ctx, a.cfg.Neo4j, a.log)
	if err != nil {
		a.log.Warn("neo4j mirror disabled", "uri", a.cfg.Neo4j.URI, "error", err)
	} else if mirror != nil {
		opts = append(opts, project.WithMirror(mirror))
		a.onClose(func() { _ = mirror.Close(context.Background()) })
	}

	tasks := task.NewManager(a.log)
	a.onClose(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = tasks.Shutdown(ctx)
	})
	return project.NewService(db, a.builder, tasks, opts...), nil
}

// mustService is openService that exits on failure.
func (a *app) mustService(ctx context.Context) *project.Service {
	svc, err := a.openService(ctx)
	if err != nil {
		exitWithError(ExitConfigError, "opening project store: %v", err)
	}
	return svc
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.log.Sync()
}
