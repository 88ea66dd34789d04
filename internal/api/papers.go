package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/matsen/citethreads/internal/resolver"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// handleSearch serves GET /papers/search?q=...&sources=a,b&limit=n.
// DOI and arXiv queries resolve directly; anything else is a title search.
func (s *Server) handleSearch(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		badRequest(c, "q is required")
		return
	}
	limit := defaultSearchLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxSearchLimit {
			badRequest(c, "limit must be between 1 and 50")
			return
		}
		limit = n
	}
	var sources []string
	if raw := c.Query("sources"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				sources = append(sources, name)
			}
		}
	}

	res := s.resolver.Lookup(c.Request.Context(), q, sources, limit)
	c.JSON(http.StatusOK, gin.H{
		"query":      q,
		"query_type": resolver.DetectQueryType(q),
		"papers":     res.Papers,
		"errors":     res.Errors,
	})
}

// handleGetPaper serves GET /papers/lookup/<id>; the ID may contain slashes.
func (s *Server) handleGetPaper(c *gin.Context) {
	id := strings.TrimPrefix(c.Param("paper"), "/")
	if id == "" {
		badRequest(c, "paper id is required")
		return
	}
	p, ok := s.resolver.FetchPaper(c.Request.Context(), id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "paper not found in any available source", Code: "PAPER_NOT_FOUND"})
		return
	}
	c.JSON(http.StatusOK, p)
}
