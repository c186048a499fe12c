package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/askgraph/askgraph/internal/server/middleware"
	"github.com/askgraph/askgraph/internal/timing"
	"github.com/askgraph/askgraph/pkg/common"
)

// AskEstimateHandler predicts per-stage answering durations in milliseconds
// from recent history. Stages without history report zero.
func AskEstimateHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	stages := []string{
		timing.StageRetrieval,
		timing.StageGeneration,
		timing.StageExecution,
		timing.StageSynthesis,
		timing.StageTotal,
	}

	estimates := make(map[string]int64, len(stages))
	for _, stage := range stages {
		ms, err := app.Recorder.Predict(ctx, stage)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Failed to predict durations"})
		}
		estimates[stage] = ms
	}

	return c.JSON(http.StatusOK, estimates)
}
