package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/prerender/api/handler"
	"github.com/use-agent/prerender/api/middleware"
	"github.com/use-agent/prerender/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger → CORS
//
// The bare /scrape and /health paths are what existing clients call; the
// /api/v1 group serves the same handlers under versioned names.
func NewRouter(rd handler.Renderer, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	health := handler.Health(startTime)
	render := handler.Render(rd)

	r.GET("/health", health)
	r.POST("/scrape", render)

	v1 := r.Group("/api/v1")
	v1.GET("/health", health)
	v1.POST("/render", render)

	return r
}
