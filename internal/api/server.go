// Package api exposes projects, builds and paper lookup over HTTP.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matsen/citethreads/internal/logger"
	"github.com/matsen/citethreads/internal/project"
	"github.com/matsen/citethreads/internal/resolver"
)

// DefaultStreamInterval is how often /stream pushes a progress event.
const DefaultStreamInterval = 500 * time.Millisecond

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	projects       *project.Service
	resolver       *resolver.Resolver
	gatherer       prometheus.Gatherer
	streamInterval time.Duration
	log            *logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer serves gatherer's metrics on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithStreamInterval sets the progress stream period.
func WithStreamInterval(d time.Duration) Option {
	return func(s *Server) {
		s.streamInterval = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// NewServer creates a Server.
func NewServer(projects *project.Service, r *resolver.Resolver, opts ...Option) *Server {
	s := &Server{
		projects:       projects,
		resolver:       r,
		streamInterval: DefaultStreamInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrNop(s.log).With("component", "api")
	return s
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.log))
	s.RegisterRoutes(router.Group("/api"))

	router.GET("/healthz", s.handleHealth)
	if s.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	return router
}

// RegisterRoutes registers the /api routes on rg.
//
//	POST   /projects                     create a project and start its build
//	GET    /projects                     list projects, newest first
//	GET    /projects/:id                 project metadata and graph
//	PATCH  /projects/:id                 rename
//	DELETE /projects/:id                 cancel any build and delete
//	GET    /projects/:id/status          latest progress snapshot
//	GET    /projects/:id/stream          progress as server-sent events
//	POST   /projects/:id/analyze         re-run citation classification
//	PUT    /projects/:id/edges           manual intent label on one edge
//	DELETE /projects/:id/papers/*paper   remove a paper and its edges
//	GET    /projects/:id/export          json, bibtex or ris download
//	GET    /projects/:id/viz             interactive HTML graph
//	GET    /papers/search                search or look up papers
//	GET    /papers/lookup/*paper         fetch one paper through the fallback chain
func (s *Server) RegisterRoutes(rg *gin.RouterGroup) {
	projects := rg.Group("/projects")
	{
		projects.POST("", s.handleCreateProject)
		projects.GET("", s.handleListProjects)
		projects.GET("/:id", s.handleGetProject)
		projects.PATCH("/:id", s.handleRenameProject)
		projects.DELETE("/:id", s.handleDeleteProject)
		projects.GET("/:id/status", s.handleStatus)
		projects.GET("/:id/stream", s.handleStream)
		projects.POST("/:id/analyze", s.handleAnalyze)
		projects.PUT("/:id/edges", s.handleUpdateEdge)
		projects.DELETE("/:id/papers/*paper", s.handleDeletePaper)
		projects.GET("/:id/export", s.handleExport)
		projects.GET("/:id/viz", s.handleViz)
	}

	papers := rg.Group("/papers")
	{
		papers.GET("/search", s.handleSearch)
		papers.GET("/lookup/*paper", s.handleGetPaper)
	}
}

// HealthResponse reports server and source availability.
type HealthResponse struct {
	Status  string   `json:"status"`
	Sources []string `json:"sources"`
	Limited []string `json:"rate_limited"`
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Sources: []string{}, Limited: []string{}}
	if s.resolver != nil {
		resp.Sources = s.resolver.SourceNames()
		if limited := s.resolver.LimitedSources(); limited != nil {
			resp.Limited = limited
		}
	}
	c.JSON(http.StatusOK, resp)
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Debug("HTTP request", fields...)
		}
	}
}
