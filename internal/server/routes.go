package server

import (
	"github.com/askgraph/askgraph/internal/server/middleware"
	"github.com/askgraph/askgraph/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Ask routes
	apiRoutes.POST("/ask", routes.AskHandler)
	apiRoutes.POST("/ask/stream", routes.AskStreamHandler)
	apiRoutes.POST("/ask/async", routes.AskAsyncHandler)
	apiRoutes.GET("/ask/estimate", routes.AskEstimateHandler)

	// Query routes
	apiRoutes.POST("/generate", routes.GenerateHandler)
	apiRoutes.POST("/execute", routes.ExecuteHandler)

	// Graph routes
	apiRoutes.GET("/schema", routes.SchemaHandler)
	apiRoutes.POST("/index/rebuild", routes.IndexRebuildHandler)
}
