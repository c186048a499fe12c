package routes

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/askgraph/askgraph/internal/server/middleware"
	"github.com/askgraph/askgraph/pkg/common"
	"github.com/askgraph/askgraph/pkg/executor"
	"github.com/askgraph/askgraph/pkg/pipeline"
)

// AskStreamHandler answers a question like AskHandler but streams a JSON
// event per pipeline stage, ending with the full answer.
func AskStreamHandler(c echo.Context) error {
	data := new(common.AskRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c.Response().WriteHeader(http.StatusOK)
	enc := json.NewEncoder(c.Response())

	app.Pipeline.AskStream(ctx, data.Question, pipeline.Options{
		Format:           executor.Format(data.Format),
		Retrieval:        askRetrievalOptions(app),
		IncludeContext:   data.IncludeContext,
		IncludeExecution: data.IncludeExecution,
	}, func(event pipeline.StreamEvent) {
		if err := enc.Encode(event); err != nil {
			return
		}
		c.Response().Flush()
	})

	return nil
}
