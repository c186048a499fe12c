package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/askgraph/askgraph/internal/server/middleware"
	"github.com/askgraph/askgraph/pkg/common"
	"github.com/askgraph/askgraph/pkg/logger"
)

// GenerateHandler translates a question into a validated query without
// executing it.
func GenerateHandler(c echo.Context) error {
	data := new(common.GenerateRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	retrieved, err := app.Retriever.RetrieveContext(ctx, data.Question, askRetrievalOptions(app))
	if err != nil {
		return c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: err.Error()})
	}

	generated, err := app.Generator.Generate(ctx, data.Question, retrieved)
	if err != nil {
		logger.Warn("Query generation failed", "err", err)
		return c.JSON(http.StatusUnprocessableEntity, common.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, generated)
}
