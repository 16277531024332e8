package config

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Test helper: create a router over a loaded sample config
func setupTestConfigRouter(t *testing.T) *gin.Engine {
	cfg, err := LoadConfigFile(createTestConfigFile(t, sampleConfig))
	require.NoError(t, err)
	cfg.SourcesDir = ""
	catalog, err := cfg.Catalog()
	require.NoError(t, err)
	return NewConfigAPIServer(cfg, catalog).SetupRouter()
}

// TestHandleGetConfig verifies the effective engine settings are served.
func TestHandleGetConfig(t *testing.T) {
	router := setupTestConfigRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/config", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var resp struct {
		Engine struct {
			PolitenessDelay  string `json:"politeness_delay"`
			MaxContentLength int    `json:"max_content_length"`
		} `json:"engine"`
		Schedule string `json:"schedule"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "1.5s", resp.Engine.PolitenessDelay)
	assert.Equal(t, 1200, resp.Engine.MaxContentLength)
	assert.Equal(t, "@every 15m", resp.Schedule)
}

// TestHandleCatalog verifies catalog listing and lookup.
func TestHandleCatalog(t *testing.T) {
	router := setupTestConfigRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp CatalogResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "Klix.ba", resp.Sources[0].Name)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/catalog/klix", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/catalog/missing", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestCORSMiddleware_Preflight verifies OPTIONS requests end early.
func TestCORSMiddleware_Preflight(t *testing.T) {
	router := setupTestConfigRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/config", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "GET")
}
