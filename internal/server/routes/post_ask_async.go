package routes

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/askgraph/askgraph/internal/queue"
	"github.com/askgraph/askgraph/internal/server/middleware"
	"github.com/askgraph/askgraph/pkg/common"
)

// AskAsyncHandler enqueues a question for the worker and returns the
// correlation id. The answer is published to the reply exchange under that
// id once the worker finishes.
func AskAsyncHandler(c echo.Context) error {
	data := new(common.AskRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App

	correlationID, err := gonanoid.New()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Failed to create job"})
	}

	job := common.AskJob{
		CorrelationID: correlationID,
		ReplyTopic:    correlationID,
		Request:       *data,
	}
	body, err := json.Marshal(job)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Failed to create job"})
	}

	if err := queue.PublishFIFO(app.Queue, queue.AskQueue, body); err != nil {
		return c.JSON(http.StatusBadGateway, common.ErrorResponse{Error: "Failed to enqueue question"})
	}

	return c.JSON(http.StatusAccepted, map[string]string{"correlation_id": correlationID})
}
