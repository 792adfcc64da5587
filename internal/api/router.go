package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/michellexbui/BirdBeaks/internal/config"
	"github.com/michellexbui/BirdBeaks/internal/handler"
	"github.com/michellexbui/BirdBeaks/internal/metrics"
	"github.com/michellexbui/BirdBeaks/internal/middleware"
	"github.com/michellexbui/BirdBeaks/internal/service"
)

// SetupRouter wires all routes and middleware
func SetupRouter(cfg *config.Config, runService *service.RunService) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(metrics.Middleware())
	r.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateLimitWindow))

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "BirdBeaks interpolation API is running",
		})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	runHandler := handler.NewRunHandler(runService)
	stationHandler := handler.NewStationHandler(runService)

	api := r.Group("/api/v1")
	{
		runs := api.Group("/runs")
		{
			runs.POST("", runHandler.CreateRun)
			runs.GET("", runHandler.ListRuns)
			runs.GET("/:id", runHandler.GetRun)
			runs.GET("/:id/cells", runHandler.GetRunCells)
			runs.GET("/:id/exclusions", runHandler.GetRunExclusions)
			runs.GET("/:id/coverage", runHandler.GetRunCoverage)
		}

		api.GET("/stations", stationHandler.ListStations)
	}

	return r
}
