package config

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pevans/postfeed/scraper"
)

// ConfigAPIServer exposes the effective configuration and the source
// catalog read-only.
type ConfigAPIServer struct {
	config  *FileConfig
	catalog *scraper.Catalog
}

// NewConfigAPIServer creates a new config API server.
func NewConfigAPIServer(config *FileConfig, catalog *scraper.Catalog) *ConfigAPIServer {
	return &ConfigAPIServer{
		config:  config,
		catalog: catalog,
	}
}

// SetupRouter configures a standalone Gin router with the config routes.
func (c *ConfigAPIServer) SetupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(CORSMiddleware())
	c.RegisterRoutes(router.Group("/api/v1"))
	return router
}

// RegisterRoutes adds the config routes to group.
func (c *ConfigAPIServer) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/config", c.HandleGetConfig)
	group.GET("/catalog", c.HandleListCatalog)
	group.GET("/catalog/:id", c.HandleGetCatalogSource)
}

// CORSMiddleware allows browser dashboards on other origins to read the API.
func CORSMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Header("Access-Control-Allow-Origin", "*")
		ctx.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		ctx.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if ctx.Request.Method == "OPTIONS" {
			ctx.AbortWithStatus(http.StatusOK)
			return
		}

		ctx.Next()
	}
}

// CatalogResponse represents the response for GET /api/v1/catalog.
type CatalogResponse struct {
	Sources []scraper.SourceConfig `json:"sources"`
	Total   int                    `json:"total"`
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

// HandleGetConfig handles GET /api/v1/config. Inline sources are served by
// the catalog routes instead.
func (c *ConfigAPIServer) HandleGetConfig(ctx *gin.Context) {
	engine, err := c.config.EngineConfig()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"engine": gin.H{
			"output_dir":         engine.OutputDir,
			"state_dir":          engine.StateDir,
			"min_content_length": engine.MinContentLength,
			"max_content_length": engine.MaxContentLength,
			"politeness_delay":   engine.PolitenessDelay.String(),
			"fetch_timeout":      engine.FetchTimeout.String(),
			"concurrency":        engine.Concurrency,
			"user_agent":         engine.UserAgent,
			"max_items":          engine.MaxItems,
			"hash_prefix_length": engine.HashPrefixLength,
			"disable_threshold":  engine.DisableThreshold,
		},
		"status_db":   c.config.StatusDB,
		"schedule":    c.config.Schedule,
		"listen":      c.config.Listen,
		"sources_dir": c.config.SourcesDir,
	})
}

// HandleListCatalog handles GET /api/v1/catalog.
func (c *ConfigAPIServer) HandleListCatalog(ctx *gin.Context) {
	sources := c.catalog.Sources
	if sources == nil {
		sources = []scraper.SourceConfig{}
	}
	ctx.JSON(http.StatusOK, CatalogResponse{
		Sources: sources,
		Total:   len(sources),
	})
}

// HandleGetCatalogSource handles GET /api/v1/catalog/{id}.
func (c *ConfigAPIServer) HandleGetCatalogSource(ctx *gin.Context) {
	src, ok := c.catalog.Get(ctx.Param("id"))
	if !ok {
		ctx.JSON(http.StatusNotFound, errorResponse("not_found", "source not in catalog"))
		return
	}
	ctx.JSON(http.StatusOK, src)
}
