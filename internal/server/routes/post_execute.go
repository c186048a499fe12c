package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/askgraph/askgraph/internal/server/middleware"
	"github.com/askgraph/askgraph/pkg/common"
	"github.com/askgraph/askgraph/pkg/executor"
	"github.com/askgraph/askgraph/pkg/generator"
)

// ExecuteHandler runs an explicit query under the safety constraints,
// optionally paginated.
func ExecuteHandler(c echo.Context) error {
	data := new(common.ExecuteRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()
	format := executor.Format(data.Format)

	query := data.Query
	if data.Sanitize {
		query = generator.Sanitize(query, app.Config.Executor.DefaultLimit)
	}

	if data.Paginate {
		result, err := app.Executor.ExecutePaginated(ctx, query, data.Params, data.Page, data.PerPage, format)
		if err != nil {
			return executeError(c, err)
		}
		return c.JSON(http.StatusOK, result)
	}

	result, err := app.Executor.Execute(ctx, query, data.Params, format)
	if err != nil {
		return executeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func executeError(c echo.Context, err error) error {
	var execErr *executor.ExecError
	if !errors.As(err, &execErr) {
		return c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: err.Error()})
	}

	status := http.StatusInternalServerError
	switch execErr.Kind {
	case executor.KindInvalidInput:
		status = http.StatusBadRequest
	case executor.KindReadOnlyViolation:
		status = http.StatusForbidden
	case executor.KindTimeout:
		status = http.StatusGatewayTimeout
	}
	return c.JSON(status, common.ErrorResponse{Error: execErr.Message})
}
