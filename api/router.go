// Package api assembles the daemon's HTTP surface: health, source status,
// records and configuration.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pevans/postfeed/config"
	"github.com/pevans/postfeed/newsfeed"
	"github.com/pevans/postfeed/sources"
)

// Server holds the component servers mounted under /api/v1.
type Server struct {
	records *newsfeed.APIServer
	sources *sources.SourceAPIServer
	config  *config.ConfigAPIServer
	trigger func()
	started time.Time
}

// NewServer creates a server. configAPI and trigger may be nil; a nil
// trigger leaves out the manual run route.
func NewServer(
	feed *newsfeed.NewsFeed,
	store *sources.SourceStore,
	configAPI *config.ConfigAPIServer,
	trigger func(),
) *Server {
	return &Server{
		records: newsfeed.NewAPIServer(feed),
		sources: sources.NewSourceAPIServer(store),
		config:  configAPI,
		trigger: trigger,
		started: time.Now(),
	}
}

// Router returns a Gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), config.CORSMiddleware())
	s.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts all routes on r.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		s.records.RegisterRoutes(v1)
		s.sources.RegisterRoutes(v1)
		if s.config != nil {
			s.config.RegisterRoutes(v1)
		}
		if s.trigger != nil {
			v1.POST("/runs", s.triggerRun)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

// triggerRun handles POST /api/v1/runs by starting a run in the background.
func (s *Server) triggerRun(c *gin.Context) {
	s.trigger()
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}
