// Package http assembles the gin engine and mounts module routes.
package http

import (
	"callops_backend/platform/httpkit"
	"callops_backend/platform/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Module is a bounded context that mounts routes.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext carries the route groups modules mount onto.
type RouterContext struct {
	Engine *gin.Engine
	// V1 is the public API surface; per-route auth is applied by modules.
	V1 *gin.RouterGroup
}

// Config is the subset of configuration the router needs.
type Config interface {
	GetEnv() string
}

// NewRouter builds the engine with the shared middleware stack and mounts
// all modules.
func NewRouter(cfg Config, log *logger.Logger, limiter *httpkit.IPRateLimiter, modules ...Module) *gin.Engine {
	if cfg.GetEnv() != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(log))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Content-Type", "X-Webhook-Secret", "X-Request-Id"},
	}))
	if limiter != nil {
		engine.Use(limiter.RateLimit())
	}

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	ctx := &RouterContext{
		Engine: engine,
		V1:     engine.Group("/api/v1"),
	}

	for _, m := range modules {
		m.RegisterRoutes(ctx)
		log.Info("module mounted", "module", m.Name())
	}

	return engine
}

// NewRateLimiter builds the per-IP limiter for the public webhook surface.
func NewRateLimiter(rps float64, burst int, log *logger.Logger) *httpkit.IPRateLimiter {
	return httpkit.NewIPRateLimiter(rate.Limit(rps), burst, log)
}
