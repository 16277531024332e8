package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pevans/postfeed/newsfeed"
	"github.com/pevans/postfeed/sources"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Test helper: create a router over empty stores
func setupTestRouter(t *testing.T, trigger func()) *gin.Engine {
	dir := t.TempDir()
	feed, err := newsfeed.NewNewsFeed(filepath.Join(dir, "out"))
	require.NoError(t, err)
	store, err := sources.NewSourceStore(filepath.Join(dir, "status.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return NewServer(feed, store, nil, trigger).Router()
}

func get(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestRouter_MountsComponentRoutes verifies each component is reachable.
func TestRouter_MountsComponentRoutes(t *testing.T) {
	router := setupTestRouter(t, nil)

	assert.Equal(t, http.StatusOK, get(router, http.MethodGet, "/health").Code)
	assert.Equal(t, http.StatusOK, get(router, http.MethodGet, "/api/v1/records").Code)
	assert.Equal(t, http.StatusOK, get(router, http.MethodGet, "/api/v1/sources").Code)
	assert.Equal(t, http.StatusNotFound, get(router, http.MethodGet, "/api/v1/config").Code, "config routes are optional")
	assert.Equal(t, http.StatusNotFound, get(router, http.MethodPost, "/api/v1/runs").Code)
}

// TestRouter_TriggerRun verifies the manual run route calls the trigger.
func TestRouter_TriggerRun(t *testing.T) {
	triggered := 0
	router := setupTestRouter(t, func() { triggered++ })

	w := get(router, http.MethodPost, "/api/v1/runs")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, triggered)
}
