package sources

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Test helper: create a router backed by a seeded store
func setupTestSourceRouter(t *testing.T) (*gin.Engine, *SourceStore) {
	store := createTestSourceStore(t)
	require.NoError(t, store.EnsureSource("klix", "Klix.ba"))
	require.NoError(t, store.EnsureSource("usk", "Vlada USK"))
	_, err := store.RecordRun(createTestRun("klix", time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC), false, 4), 0)
	require.NoError(t, err)

	return NewSourceAPIServer(store).SetupRouter(), store
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestHandleListSources verifies listing and the enabled filter.
func TestHandleListSources(t *testing.T) {
	router, store := setupTestSourceRouter(t)
	require.NoError(t, store.SetEnabled("usk", false, "broken"))

	w := doRequest(router, http.MethodGet, "/api/v1/sources", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListSourcesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)

	w = doRequest(router, http.MethodGet, "/api/v1/sources?enabled=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "klix", resp.Sources[0].SourceID)
}

// TestHandleGetSource verifies single-source lookups.
func TestHandleGetSource(t *testing.T) {
	router, _ := setupTestSourceRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/sources/klix", "")
	require.Equal(t, http.StatusOK, w.Code)

	var status SourceStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 4, status.TotalItems)

	w = doRequest(router, http.MethodGet, "/api/v1/sources/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestHandleListRuns verifies run history and limit validation.
func TestHandleListRuns(t *testing.T) {
	router, _ := setupTestSourceRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/sources/klix/runs", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListRunsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, 4, resp.Runs[0].NewItems)

	w = doRequest(router, http.MethodGet, "/api/v1/sources/klix/runs?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/sources/missing/runs", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestHandleEnableDisable verifies the toggle routes.
func TestHandleEnableDisable(t *testing.T) {
	router, store := setupTestSourceRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/sources/usk/disable", `{"reason":"maintenance"}`)
	require.Equal(t, http.StatusOK, w.Code)

	status, err := store.GetStatus("usk")
	require.NoError(t, err)
	assert.False(t, status.Enabled)
	require.NotNil(t, status.DisabledReason)
	assert.Equal(t, "maintenance", *status.DisabledReason)

	w = doRequest(router, http.MethodPost, "/api/v1/sources/usk/enable", "")
	require.Equal(t, http.StatusOK, w.Code)
	enabled, err := store.IsEnabled("usk")
	require.NoError(t, err)
	assert.True(t, enabled)

	w = doRequest(router, http.MethodPost, "/api/v1/sources/missing/disable", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
