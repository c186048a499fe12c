package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/askgraph/askgraph/internal/server/middleware"
	"github.com/askgraph/askgraph/pkg/common"
	"github.com/askgraph/askgraph/pkg/executor"
	"github.com/askgraph/askgraph/pkg/pipeline"
	"github.com/askgraph/askgraph/pkg/retrieval"
)

// AskHandler answers a question end to end and returns the full answer. The
// pipeline never fails the request; a failed run returns 200 with an error
// response inside.
func AskHandler(c echo.Context) error {
	data := new(common.AskRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	answer := app.Pipeline.Ask(ctx, data.Question, pipeline.Options{
		Format:           executor.Format(data.Format),
		Retrieval:        askRetrievalOptions(app),
		IncludeContext:   data.IncludeContext,
		IncludeExecution: data.IncludeExecution,
	})

	return c.JSON(http.StatusOK, answer)
}

func askRetrievalOptions(app *middleware.App) retrieval.Options {
	opts := retrieval.DefaultOptions(app.Config.QueryCollection)
	if app.Config.RetrievalLimit > 0 {
		opts.Limit = app.Config.RetrievalLimit
	}
	if app.Config.ExamplesPerLabel > 0 {
		opts.ExamplesPerLabel = app.Config.ExamplesPerLabel
	}
	return opts
}
