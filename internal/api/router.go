package api

import (
	"context"
	"net/http"
	"time"

	"recipe-importer/internal/api/handlers"
	"recipe-importer/internal/api/handlers/health"
	"recipe-importer/internal/api/middleware"
	"recipe-importer/internal/core/jobs"
	"recipe-importer/internal/core/store"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const timeoutDuration = 30 * time.Second

// SetupRouter wires the HTTP surface. Import endpoints only enqueue; flows
// run on the worker binary.
func SetupRouter(cfg *config.Config, queue *jobs.Queue, st *store.Store) (*gin.Engine, error) {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(requestid.New())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(middleware.BodySizeLimit(cfg.Image.MaxSizeBytes))
	router.Use(middleware.Deduplication(cfg))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}

	// Request timeout plus config injection for the health handler.
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Set("config", cfg)

		c.Next()

		if ctx.Err() == context.DeadlineExceeded {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetHeader("X-Request-ID")),
				zap.Duration("timeout", timeoutDuration),
			)
			c.JSON(http.StatusGatewayTimeout, gin.H{
				"error": "Request timeout",
				"code":  "REQUEST_TIMEOUT",
			})
			c.Abort()
		}
	})

	router.GET("/health", health.HealthCheck)
	router.GET("/ready", health.ReadinessCheck)
	router.GET("/live", health.LivenessCheck)

	handler := handlers.NewHandler(queue, st)

	api := router.Group("/api/v1")
	{
		importGroup := api.Group("/import")
		{
			importGroup.POST("/url", handler.StartURLImport)
			importGroup.POST("/image", handler.StartImageImport)
			importGroup.POST("/document", handler.StartDocumentImport)
			importGroup.POST("/text", handler.StartTextImport)
			importGroup.GET("/jobs/:id", handler.GetJob)
		}

		recipeGroup := api.Group("/recipes")
		{
			recipeGroup.GET("", handler.ListRecipes)
			recipeGroup.GET("/:id", handler.GetRecipe)
			recipeGroup.DELETE("/:id", handler.DeleteRecipe)
			recipeGroup.POST("/:id/copy", handler.CopyRecipe)
		}
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
		zap.Duration("timeout", timeoutDuration),
		zap.Int64("max_body_size", cfg.Image.MaxSizeBytes),
	)

	return router, nil
}
