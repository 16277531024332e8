package newsfeed

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// APIServer serves the output records over HTTP for the publisher.
type APIServer struct {
	feed *NewsFeed
}

// NewAPIServer creates a new API server with the given news feed.
func NewAPIServer(feed *NewsFeed) *APIServer {
	return &APIServer{
		feed: feed,
	}
}

// SetupRouter configures a standalone Gin router with the record routes.
func (s *APIServer) SetupRouter() *gin.Engine {
	router := gin.Default()
	s.RegisterRoutes(router.Group("/api/v1"))
	return router
}

// RegisterRoutes adds the record routes to group.
func (s *APIServer) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/records", s.HandleListRecords)
	group.GET("/records/:filename", s.HandleGetRecord)
	group.POST("/records/:filename/published", s.HandleMarkPublished)
}

// RecordResponse is a record with its filename.
type RecordResponse struct {
	Filename string `json:"filename"`
	Record
}

// ListRecordsResponse represents the response for GET /api/v1/records.
type ListRecordsResponse struct {
	Records []RecordResponse `json:"records"`
	Total   int              `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
	// Unreadable counts files that could not be decoded.
	Unreadable int `json:"unreadable"`
}

// MarkPublishedRequest is the body of the published route.
type MarkPublishedRequest struct {
	Published string `json:"published"`
}

func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// HandleListRecords handles GET /api/v1/records. Supported filters: source
// (12-hex source hash), content_type, unpublished=true|false, since and
// until (YYYY-MM-DD, inclusive), sort=date_desc|date_asc, limit and offset.
func (s *APIServer) HandleListRecords(c *gin.Context) {
	result, err := s.feed.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to list records: "+err.Error()))
		return
	}
	entries := result.Entries

	if source := c.Query("source"); source != "" {
		entries = filterEntries(entries, func(e Entry) bool { return e.Record.Source == source })
	}
	if contentType := c.Query("content_type"); contentType != "" {
		entries = filterEntries(entries, func(e Entry) bool { return e.Record.ContentType == contentType })
	}
	switch c.Query("unpublished") {
	case "true":
		entries = filterEntries(entries, func(e Entry) bool { return !e.Record.IsPublished() })
	case "false":
		entries = filterEntries(entries, func(e Entry) bool { return e.Record.IsPublished() })
	}

	for _, bound := range []string{"since", "until"} {
		value := c.Query(bound)
		if value == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", value); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", "Invalid "+bound+" parameter: must be YYYY-MM-DD"))
			return
		}
		if bound == "since" {
			entries = filterEntries(entries, func(e Entry) bool { return e.Record.Date >= value })
		} else {
			entries = filterEntries(entries, func(e Entry) bool { return e.Record.Date <= value })
		}
	}

	// Filenames embed date and sequence, so they order records within a
	// source; date breaks ties across sources.
	switch c.DefaultQuery("sort", "date_desc") {
	case "date_asc":
		sort.SliceStable(entries, func(i, j int) bool { return lessEntry(entries[i], entries[j]) })
	case "date_desc":
		sort.SliceStable(entries, func(i, j int) bool { return lessEntry(entries[j], entries[i]) })
	default:
		c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", "Invalid sort parameter"))
		return
	}

	total := len(entries)

	limit := 50
	if limitParam := c.Query("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", "Invalid limit parameter"))
			return
		}
		limit = min(parsed, 1000)
	}

	offset := 0
	if offsetParam := c.Query("offset"); offsetParam != "" {
		parsed, err := strconv.Atoi(offsetParam)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", "Invalid offset parameter"))
			return
		}
		offset = parsed
	}

	records := []RecordResponse{}
	if offset < len(entries) {
		for _, e := range entries[offset:min(offset+limit, len(entries))] {
			records = append(records, RecordResponse{Filename: e.Filename, Record: e.Record})
		}
	}

	c.JSON(http.StatusOK, ListRecordsResponse{
		Records:    records,
		Total:      total,
		Limit:      limit,
		Offset:     offset,
		Unreadable: len(result.Errors),
	})
}

// HandleGetRecord handles GET /api/v1/records/{filename}.
func (s *APIServer) HandleGetRecord(c *gin.Context) {
	filename := c.Param("filename")
	rec, err := s.feed.Get(filename)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, RecordResponse{Filename: filename, Record: *rec})
}

// HandleMarkPublished handles POST /api/v1/records/{filename}/published. A
// record that is already published is never overwritten.
func (s *APIServer) HandleMarkPublished(c *gin.Context) {
	var req MarkPublishedRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Published == "" {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "published is required"))
		return
	}

	filename := c.Param("filename")
	if err := s.feed.MarkPublished(filename, req.Published); err != nil {
		s.handleError(c, err)
		return
	}

	rec, err := s.feed.Get(filename)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, RecordResponse{Filename: filename, Record: *rec})
}

func (s *APIServer) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrRecordNotFound):
		c.JSON(http.StatusNotFound, errorResponse("not_found", err.Error()))
	case errors.Is(err, ErrAlreadyPublished):
		c.JSON(http.StatusConflict, errorResponse("conflict", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to process request"))
	}
}

func filterEntries(entries []Entry, keep func(Entry) bool) []Entry {
	filtered := []Entry{}
	for _, e := range entries {
		if keep(e) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func lessEntry(a, b Entry) bool {
	if a.Record.Date != b.Record.Date {
		return a.Record.Date < b.Record.Date
	}
	return a.Filename < b.Filename
}
