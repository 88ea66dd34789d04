package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/matsen/citethreads/internal/paper"
	"github.com/matsen/citethreads/internal/project"
	"github.com/matsen/citethreads/internal/store"
	"github.com/matsen/citethreads/internal/task"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// errorStatus maps a service error to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "PROJECT_NOT_FOUND"
	case errors.Is(err, store.ErrEdgeNotFound):
		return http.StatusNotFound, "EDGE_NOT_FOUND"
	case errors.Is(err, store.ErrPaperNotFound):
		return http.StatusNotFound, "PAPER_NOT_FOUND"
	case errors.Is(err, task.ErrRunning):
		return http.StatusConflict, "TASK_RUNNING"
	case errors.Is(err, project.ErrNotClassifying):
		return http.StatusServiceUnavailable, "LLM_NOT_CONFIGURED"
	case errors.Is(err, project.ErrEmptySeed),
		errors.Is(err, project.ErrInvalidDepth),
		errors.Is(err, project.ErrInvalidPapers),
		errors.Is(err, project.ErrInvalidDir),
		errors.Is(err, project.ErrInvalidSource),
		errors.Is(err, project.ErrEmptyID),
		errors.Is(err, project.ErrInvalidID),
		errors.Is(err, store.ErrEmptyName),
		errors.Is(err, paper.ErrInvalidIntent):
		return http.StatusBadRequest, "INVALID_REQUEST"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func (s *Server) writeError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "INVALID_REQUEST"})
}
