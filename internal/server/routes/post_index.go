package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/askgraph/askgraph/internal/queue"
	"github.com/askgraph/askgraph/internal/server/middleware"
	"github.com/askgraph/askgraph/pkg/common"
)

// IndexRebuildHandler enqueues a context-index rebuild. The worker holds a
// lease while rebuilding, so concurrent requests collapse into one run.
func IndexRebuildHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	if err := queue.PublishFIFO(app.Queue, queue.IndexQueue, []byte("{}")); err != nil {
		return c.JSON(http.StatusBadGateway, common.ErrorResponse{Error: "Failed to enqueue index rebuild"})
	}

	return c.JSON(http.StatusAccepted, map[string]string{"status": "queued"})
}
