package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/atrai/atrai-backend-go/internal/analysis"
	"github.com/atrai/atrai-backend-go/internal/config"
	"github.com/atrai/atrai-backend-go/internal/handler"
	"github.com/atrai/atrai-backend-go/internal/middleware"
	"github.com/atrai/atrai-backend-go/internal/service"
)

// Services are the collaborators the router wires into handlers
type Services struct {
	Tasks   *service.AnalysisTaskService
	Queries *service.QueryService
}

// SetupRouter builds the gin engine with every /api/v1 route
func SetupRouter(cfg *config.Config, svc Services, logger *zap.Logger) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Prefer")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"policy":    cfg.Policy.Version,
			"processes": len(analysis.AnalyzerNames()),
		})
	})

	processes := handler.NewProcessHandler(svc.Tasks)
	tasks := handler.NewTaskHandler(svc.Tasks)
	collections := handler.NewCollectionHandler(svc.Queries)
	tours := handler.NewTourHandler(svc.Queries)

	api := r.Group("/api/v1")
	if cfg.RateLimit > 0 {
		api.Use(middleware.RateLimit(cfg.RateLimit, cfg.RateWindow))
	}
	{
		api.GET("/processes", processes.ListProcesses)
		api.POST("/processes/:name/execution", middleware.Auth(cfg.JWTSecret), processes.Execute)

		api.GET("/tasks", tasks.ListTasks)
		api.GET("/tasks/:id", tasks.GetTask)
		api.POST("/tasks/:id/cancel", middleware.Auth(cfg.JWTSecret), tasks.CancelTask)

		api.GET("/collections", collections.ListCollections)
		api.GET("/collections/:name", collections.GetCollection)
		api.GET("/collections/:name/items", collections.Items)
		api.DELETE("/collections/:name", middleware.Auth(cfg.JWTSecret), collections.DeleteCollection)

		api.GET("/tours", tours.ListTours)
		api.GET("/statistics/:tag", tours.GetStatistics)
	}

	return r
}
