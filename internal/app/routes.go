package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mx-space/contentgen/internal/middleware"
	"github.com/mx-space/contentgen/internal/modules/content/generation"
	"github.com/mx-space/contentgen/internal/pkg/response"
)

func (a *App) registerRoutes() {
	r := a.router

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	appInfo := gin.H{
		"name":    "contentgen",
		"version": "1.0.0",
	}

	r.Static(assetsPath, a.cfg.AssetsDir())

	api := r.Group(apiPrefix)
	api.Use(middleware.RateLimit(a.rc, a.cfg.RateLimit, a.logger))
	api.Use(middleware.Idempotence(a.rc))

	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/health", a.health)
	api.GET("/uptime", func(c *gin.Context) {
		uptime := time.Since(processStart)
		c.JSON(http.StatusOK, gin.H{
			"timestamp": uptime.Milliseconds(),
			"humanize":  humanizeDuration(uptime),
		})
	})

	generation.NewHandler(a.svc).RegisterRoutes(api)
}

// GET /health
func (a *App) health(c *gin.Context) {
	redisOK := a.rc.Ping(c.Request.Context()) == nil
	status := http.StatusOK
	state := "ok"
	if !redisOK {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":           state,
		"redis":            redisOK,
		"llm_configured":   a.cfg.LLM.Configured(),
		"image_configured": a.cfg.Image.APIKey != "",
		"s3_mirror":        a.cfg.Storage.S3.Enabled(),
		"uptime":           humanizeDuration(time.Since(processStart)),
		"jobs":             a.jobs.List(),
	})
}
