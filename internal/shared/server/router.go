package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"resume-wizard/internal/jobs"
	"resume-wizard/internal/services/health"
	"resume-wizard/internal/shared/config"
	"resume-wizard/internal/shared/metrics"
	"resume-wizard/internal/shared/server/middleware"
	"resume-wizard/internal/shared/server/respond"
)

// RouterDeps carries the handlers and middleware the router mounts.
type RouterDeps struct {
	Config      config.Config
	Health      *health.Service
	JobsHandler *jobs.Handler
	RateLimiter *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if !config.IsDevLike(deps.Config.Env) {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, deps.Health.Status(c.Request.Context()))
	})

	var mutating []gin.HandlerFunc
	if deps.RateLimiter != nil {
		mutating = append(mutating, deps.RateLimiter.Limit())
	}
	if deps.JobsHandler != nil {
		deps.JobsHandler.RegisterRoutes(api, mutating...)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
