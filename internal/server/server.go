package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/askgraph/askgraph/internal/config"
	"github.com/askgraph/askgraph/internal/queue"
	mid "github.com/askgraph/askgraph/internal/server/middleware"
	"github.com/askgraph/askgraph/internal/timing"
	"github.com/askgraph/askgraph/internal/util"
	"github.com/askgraph/askgraph/pkg/ai"
	oai "github.com/askgraph/askgraph/pkg/ai/ollama"
	gai "github.com/askgraph/askgraph/pkg/ai/openai"
	"github.com/askgraph/askgraph/pkg/executor"
	"github.com/askgraph/askgraph/pkg/generator"
	gneo "github.com/askgraph/askgraph/pkg/graph/neo4j"
	"github.com/askgraph/askgraph/pkg/logger"
	"github.com/askgraph/askgraph/pkg/pattern"
	"github.com/askgraph/askgraph/pkg/pipeline"
	"github.com/askgraph/askgraph/pkg/prompt"
	"github.com/askgraph/askgraph/pkg/response"
	"github.com/askgraph/askgraph/pkg/retrieval"
	"github.com/askgraph/askgraph/pkg/scope"
	"github.com/askgraph/askgraph/pkg/semantic"
	vpgx "github.com/askgraph/askgraph/pkg/vector/pgx"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	cfg := config.Load()

	jwksUrl := util.GetEnv("AUTH_URL") + "/jwks"
	k, err := keyfunc.NewDefault([]string{jwksUrl})
	if err != nil {
		logger.Fatal("Failed to load jwks keys", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runMigrations(cfg.DatabaseURL)

	poolCfg, err := NewPoolConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to parse database config", "err", err)
	}
	conn, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}

	err = queue.SetupQueues(ch, queue.Queues)
	if err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	store, err := gneo.NewGraphNeo4jStore(gneo.NewGraphNeo4jStoreParams{
		URI:      cfg.Neo4jURL,
		Username: cfg.Neo4jUser,
		Password: cfg.Neo4jPass,
		DBName:   cfg.Neo4jName,
	})
	if err != nil {
		logger.Fatal("Failed to create graph store", "err", err)
	}
	defer store.Close(ctx)

	aiClient := BuildAIClient()
	vectors := vpgx.NewPgVectorStore(conn)

	entityConfig := scope.Config{}
	if cfg.EntityConfigPath != "" {
		entityConfig, err = scope.LoadFile(cfg.EntityConfigPath)
		if err != nil {
			logger.Fatal("Failed to load entity configuration", "path", cfg.EntityConfigPath, "err", err)
		}
	}

	library := pattern.NewLibrary()
	builder := prompt.NewBuilder(nil, library, cfg.Generator.DefaultLimit)

	matcher := semantic.NewMatcher(aiClient, vectors)
	retriever := retrieval.NewRetriever(aiClient, vectors, store, entityConfig).WithMatcher(matcher)
	selector := retrieval.NewSelector(aiClient, vectors, cfg.IndexCollection)
	gen := generator.NewGenerator(aiClient, library, builder, cfg.Generator)
	exec := executor.NewExecutor(store, cfg.Executor)
	responder := response.NewGenerator(aiClient, cfg.Response)
	pipe := pipeline.New(retriever, selector, gen, exec, responder).WithMetrics(aiClient)

	masterAPIKey := util.GetEnv("MASTER_API_KEY")
	masterUserID, _ := strconv.ParseInt(util.GetEnv("MASTER_USER_ID"), 10, 64)
	masterUserRole := util.GetEnv("MASTER_USER_ROLE")

	app := &mid.App{
		Config:   cfg,
		DBConn:   conn,
		Queue:    ch,
		Key:      &k,
		AiClient: aiClient,

		Store:     store,
		Retriever: retriever,
		Generator: gen,
		Executor:  exec,
		Responder: responder,
		Pipeline:  pipe,
		Recorder:  timing.NewRecorder(conn),

		MasterAPIKey:   masterAPIKey,
		MasterUserID:   masterUserID,
		MasterUserRole: masterUserRole,
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}

// BuildAIClient creates the configured chat and embedding client. AI_ADAPTER
// selects the backend, anything but "ollama" means an OpenAI-compatible API.
func BuildAIClient() ai.GraphAIClient {
	adapter := util.GetEnv("AI_ADAPTER")

	if adapter == "ollama" {
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			ChatModel:      util.GetEnv("AI_CHAT_MODEL"),
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			Dimensions:     int(util.GetEnvNumeric("AI_EMBED_DIMENSIONS", 1536)),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 2)),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		return client
	}

	return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
		ChatModel:      util.GetEnv("AI_CHAT_MODEL"),
		EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
		Dimensions:     int(util.GetEnvNumeric("AI_EMBED_DIMENSIONS", 1536)),

		ChatURL:      util.GetEnv("AI_CHAT_URL"),
		ChatKey:      util.GetEnv("AI_CHAT_KEY"),
		EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
		EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),

		MaxConcurrentEmbeddings: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 4)),
	})
}

// NewPoolConfig parses the database URL into a pool configuration that
// registers the pgvector types on every new connection. The hook must be set
// before the pool is built; the pool only copies the config out afterwards.
func NewPoolConfig(databaseURL string) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	return poolCfg, nil
}

func runMigrations(databaseURL string) {
	path := util.GetEnvString("MIGRATIONS_PATH", "migrations")
	m, err := migrate.New("file://"+path, databaseURL)
	if err != nil {
		logger.Fatal("Failed to initialize migrations", "err", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal("Failed to run migrations", "err", err)
	}
}
