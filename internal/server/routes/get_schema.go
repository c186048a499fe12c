package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/askgraph/askgraph/internal/server/middleware"
	"github.com/askgraph/askgraph/pkg/common"
)

// SchemaHandler returns the graph schema: labels, relationship types, and
// property keys.
func SchemaHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	schema, err := app.Store.GetSchema(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusBadGateway, common.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, schema)
}
