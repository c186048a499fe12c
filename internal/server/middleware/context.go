package middleware

import (
	"github.com/MicahParks/keyfunc/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/askgraph/askgraph/internal/config"
	"github.com/askgraph/askgraph/internal/timing"
	"github.com/askgraph/askgraph/pkg/ai"
	"github.com/askgraph/askgraph/pkg/executor"
	"github.com/askgraph/askgraph/pkg/generator"
	"github.com/askgraph/askgraph/pkg/graph"
	"github.com/askgraph/askgraph/pkg/pipeline"
	"github.com/askgraph/askgraph/pkg/response"
	"github.com/askgraph/askgraph/pkg/retrieval"
)

// AppUser is the authenticated caller.
type AppUser struct {
	UserID int64
	Role   string
}

// App bundles everything route handlers need.
type App struct {
	Config config.Config

	DBConn   *pgxpool.Pool
	Queue    *amqp091.Channel
	Key      *keyfunc.Keyfunc
	AiClient ai.GraphAIClient

	Store     graph.GraphStore
	Retriever *retrieval.Retriever
	Generator *generator.Generator
	Executor  *executor.Executor
	Responder *response.Generator
	Pipeline  *pipeline.Pipeline
	Recorder  *timing.Recorder

	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

// AppContext attaches the app and the authenticated user to each request.
type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

// AppContextMiddleware wraps every request in an AppContext.
func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
