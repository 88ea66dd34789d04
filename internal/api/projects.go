package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/matsen/citethreads/internal/export"
	"github.com/matsen/citethreads/internal/paper"
	"github.com/matsen/citethreads/internal/project"
	"github.com/matsen/citethreads/internal/store"
	"github.com/matsen/citethreads/internal/viz"
)

// ProjectResponse is a project with its graph.
type ProjectResponse struct {
	*store.Project
	Graph paper.GraphData `json:"graph"`
}

// CreateResponse is returned when a project is created.
type CreateResponse struct {
	*store.Project
	TaskID string `json:"task_id,omitempty"`
}

// RenameRequest is the body of PATCH /projects/:id.
type RenameRequest struct {
	Name string `json:"name"`
}

// EdgeUpdateRequest is the body of PUT /projects/:id/edges.
type EdgeUpdateRequest struct {
	Source string `json:"source" binding:"required"`
	Target string `json:"target" binding:"required"`
	Intent string `json:"intent" binding:"required"`
	Note   string `json:"note"`
}

// StatusResponse is the body of an accepted background task.
type StatusResponse struct {
	Status  paper.Status `json:"status"`
	Message string       `json:"message"`
	TaskID  string       `json:"task_id,omitempty"`
}

// projectID validates the :id parameter, writing a 400 when it is malformed.
func projectID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if err := project.ValidateID(id); err != nil {
		badRequest(c, err.Error())
		return "", false
	}
	return id, true
}

func (s *Server) handleCreateProject(c *gin.Context) {
	var req project.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	p, h, err := s.projects.Create(req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	resp := CreateResponse{Project: p}
	if h != nil {
		resp.TaskID = h.ID
	}
	s.log.Info("project created", "project", p.ID, "seed", p.Config.Seed)
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleListProjects(c *gin.Context) {
	projects, err := s.projects.List()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (s *Server) handleGetProject(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	p, err := s.projects.Get(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	g, err := s.projects.Graph(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ProjectResponse{Project: p, Graph: g})
}

func (s *Server) handleRenameProject(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	p, err := s.projects.Rename(id, req.Name)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleDeleteProject(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	if err := s.projects.Delete(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (s *Server) handleStatus(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	prog, err := s.projects.Status(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, prog)
}

// handleStream pushes a "progress" event every stream interval until the
// project reaches a terminal status or the client goes away.
func (s *Server) handleStream(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	prog, err := s.projects.Status(id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()
	for {
		c.SSEvent("progress", prog)
		c.Writer.Flush()
		if isTerminal(prog.Status) {
			return
		}
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}
		if prog, err = s.projects.Status(id); err != nil {
			c.SSEvent("error", ErrorResponse{Error: err.Error()})
			return
		}
	}
}

func isTerminal(status paper.Status) bool {
	switch status {
	case paper.StatusCompleted, paper.StatusFailed, paper.StatusCancelled:
		return true
	}
	return false
}

func (s *Server) handleAnalyze(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	h, err := s.projects.Analyze(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, StatusResponse{
		Status:  paper.StatusAnalyzing,
		Message: "Analysis started",
		TaskID:  h.ID,
	})
}

func (s *Server) handleUpdateEdge(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	var req EdgeUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "source, target and intent are required")
		return
	}
	if err := s.projects.UpdateEdge(id, req.Source, req.Target, req.Intent, req.Note); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

func (s *Server) handleDeletePaper(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	paperID := strings.TrimPrefix(c.Param("paper"), "/")
	if paperID == "" {
		badRequest(c, "paper id is required")
		return
	}
	if err := s.projects.DeletePaper(id, paperID); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": paperID})
}

func (s *Server) handleExport(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	g, err := s.projects.Graph(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	data, err := export.Render(g, format)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="citethreads_%s.%s"`, id, format.Extension()))
	c.Data(http.StatusOK, format.ContentType(), data)
}

func (s *Server) handleViz(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	p, err := s.projects.Get(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	g, err := s.projects.Graph(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	opts := viz.DefaultOptions()
	opts.Title = p.Name
	if layout := c.Query("layout"); layout != "" {
		opts.Layout = layout
	}
	html, err := viz.GenerateHTML(viz.FromGraph(g, viz.FindSeed(g, p.Config.Seed)), opts)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
