package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/4liaghaie/scraper-dashboard/internal/logger"
	"github.com/4liaghaie/scraper-dashboard/internal/stream"
)

// RouterDeps bundles what the router wires together.
type RouterDeps struct {
	Jobs    *JobsHandler
	Watcher stream.Watcher
	Logger  logger.Logger
}

// NewRouter builds the gin engine with all routes and middleware.
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(deps.Logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	jobs := r.Group("/jobs")
	{
		jobs.POST("/start", deps.Jobs.Start)
		jobs.GET("", deps.Jobs.List)
		jobs.GET("/kinds", deps.Jobs.Kinds)
		jobs.GET("/status/:id", deps.Jobs.Status)
		jobs.GET("/stream/:id", stream.Handler(deps.Watcher, deps.Logger))
		jobs.POST("/cancel/:id", deps.Jobs.Cancel)
		jobs.POST("/cancel-all", deps.Jobs.CancelAll)
	}

	return r
}

// requestLogger logs each request with latency and status. Stream
// requests are skipped; they are long-lived and logged by the handler.
func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.FullPath() == "/jobs/stream/:id" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		log.Info("http request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
		)
	}
}
