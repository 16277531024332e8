package sources

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// SourceAPIServer exposes source status and run history over HTTP.
type SourceAPIServer struct {
	store *SourceStore
}

// NewSourceAPIServer creates a new source API server.
func NewSourceAPIServer(store *SourceStore) *SourceAPIServer {
	return &SourceAPIServer{
		store: store,
	}
}

// SetupRouter configures a standalone Gin router with the source routes.
func (s *SourceAPIServer) SetupRouter() *gin.Engine {
	router := gin.Default()
	s.RegisterRoutes(router.Group("/api/v1"))
	return router
}

// RegisterRoutes adds the source routes to group.
func (s *SourceAPIServer) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/sources", s.HandleListSources)
	group.GET("/sources/:id", s.HandleGetSource)
	group.GET("/sources/:id/runs", s.HandleListRuns)
	group.POST("/sources/:id/enable", s.HandleEnableSource)
	group.POST("/sources/:id/disable", s.HandleDisableSource)
}

// ListSourcesResponse represents the response for GET /api/v1/sources.
type ListSourcesResponse struct {
	Sources []SourceStatus `json:"sources"`
	Total   int            `json:"total"`
}

// ListRunsResponse represents the response for GET /api/v1/sources/{id}/runs.
type ListRunsResponse struct {
	Runs  []RunRecord `json:"runs"`
	Total int         `json:"total"`
}

// DisableSourceRequest is the optional body of the disable route.
type DisableSourceRequest struct {
	Reason string `json:"reason"`
}

// errorResponse creates a standardized error response.
func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// handleError maps domain errors to HTTP responses.
func (s *SourceAPIServer) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSourceNotFound):
		c.JSON(http.StatusNotFound, errorResponse("not_found", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to process request"))
	}
}

// HandleListSources handles GET /api/v1/sources. The optional enabled query
// parameter filters by status.
func (s *SourceAPIServer) HandleListSources(c *gin.Context) {
	statuses, err := s.store.ListStatus()
	if err != nil {
		s.handleError(c, err)
		return
	}

	if enabledParam := c.Query("enabled"); enabledParam != "" {
		enabled := enabledParam == "true"
		filtered := []SourceStatus{}
		for _, st := range statuses {
			if st.Enabled == enabled {
				filtered = append(filtered, st)
			}
		}
		statuses = filtered
	}

	c.JSON(http.StatusOK, ListSourcesResponse{
		Sources: statuses,
		Total:   len(statuses),
	})
}

// HandleGetSource handles GET /api/v1/sources/{id}.
func (s *SourceAPIServer) HandleGetSource(c *gin.Context) {
	status, err := s.store.GetStatus(c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// HandleListRuns handles GET /api/v1/sources/{id}/runs.
func (s *SourceAPIServer) HandleListRuns(c *gin.Context) {
	sourceID := c.Param("id")
	if _, err := s.store.GetStatus(sourceID); err != nil {
		s.handleError(c, err)
		return
	}

	limit := 20
	if limitParam := c.Query("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", "Invalid limit parameter"))
			return
		}
		limit = min(parsed, 500)
	}

	runs, err := s.store.ListRuns(sourceID, limit)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListRunsResponse{
		Runs:  runs,
		Total: len(runs),
	})
}

// HandleEnableSource handles POST /api/v1/sources/{id}/enable.
func (s *SourceAPIServer) HandleEnableSource(c *gin.Context) {
	s.setEnabled(c, true, "")
}

// HandleDisableSource handles POST /api/v1/sources/{id}/disable.
func (s *SourceAPIServer) HandleDisableSource(c *gin.Context) {
	var req DisableSourceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "disabled via API"
	}
	s.setEnabled(c, false, req.Reason)
}

func (s *SourceAPIServer) setEnabled(c *gin.Context, enabled bool, reason string) {
	sourceID := c.Param("id")
	if err := s.store.SetEnabled(sourceID, enabled, reason); err != nil {
		s.handleError(c, err)
		return
	}

	status, err := s.store.GetStatus(sourceID)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
