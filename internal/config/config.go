package config

import (
	"time"

	"github.com/askgraph/askgraph/internal/util"
	"github.com/askgraph/askgraph/pkg/executor"
	"github.com/askgraph/askgraph/pkg/generator"
	"github.com/askgraph/askgraph/pkg/response"
)

// Config bundles every setting the service reads from the environment.
type Config struct {
	DatabaseURL string
	Neo4jURL    string
	Neo4jUser   string
	Neo4jPass   string
	Neo4jName   string

	QueryCollection string
	IndexCollection string

	EntityConfigPath string

	Generator generator.Config
	Executor  executor.Config
	Response  response.Config

	RetrievalLimit   int
	ExamplesPerLabel int
	ScoreThreshold   float64
}

// Load reads the configuration from the environment, applying the documented
// defaults for anything unset.
func Load() Config {
	gen := generator.DefaultConfig()
	gen.Model = util.GetEnvString("AI_CHAT_MODEL", "")
	gen.MaxRetries = int(util.GetEnvNumeric("QUERY_MAX_RETRIES", 3))
	gen.ComplexityCeiling = int(util.GetEnvNumeric("QUERY_COMPLEXITY_CEILING", 100))
	gen.AllowWrite = util.GetEnvBool("QUERY_ALLOW_WRITE", false)
	gen.EnableTemplates = util.GetEnvBool("QUERY_ENABLE_TEMPLATES", true)
	gen.DefaultLimit = int(util.GetEnvNumeric("QUERY_DEFAULT_LIMIT", 100))

	exec := executor.DefaultConfig()
	exec.DefaultLimit = gen.DefaultLimit
	exec.MaxLimit = int(util.GetEnvNumeric("QUERY_MAX_LIMIT", 1000))
	exec.Timeout = time.Duration(util.GetEnvNumeric("QUERY_TIMEOUT_MS", 30000)) * time.Millisecond
	exec.ReadOnly = !gen.AllowWrite
	exec.SlowQueryThreshold = time.Duration(util.GetEnvNumeric("QUERY_SLOW_MS", 5000)) * time.Millisecond

	resp := response.DefaultConfig()
	resp.Model = util.GetEnvString("AI_CHAT_MODEL", "")
	resp.MaxDataTokens = int(util.GetEnvNumeric("RESPONSE_MAX_DATA_TOKENS", 2000))
	resp.MaxItems = int(util.GetEnvNumeric("RESPONSE_MAX_ITEMS", 20))

	return Config{
		DatabaseURL: util.GetEnv("DATABASE_URL"),
		Neo4jURL:    util.GetEnv("NEO4J_URL"),
		Neo4jUser:   util.GetEnv("NEO4J_USER"),
		Neo4jPass:   util.GetEnv("NEO4J_PASSWORD"),
		Neo4jName:   util.GetEnvString("NEO4J_DATABASE", "neo4j"),

		QueryCollection: util.GetEnvString("VECTOR_QUERY_COLLECTION", "similar_queries"),
		IndexCollection: util.GetEnvString("VECTOR_INDEX_COLLECTION", "context_index"),

		EntityConfigPath: util.GetEnvString("ENTITY_CONFIG_PATH", ""),

		Generator: gen,
		Executor:  exec,
		Response:  resp,

		RetrievalLimit:   int(util.GetEnvNumeric("RETRIEVAL_LIMIT", 5)),
		ExamplesPerLabel: int(util.GetEnvNumeric("RETRIEVAL_EXAMPLES_PER_LABEL", 3)),
		ScoreThreshold:   0.5,
	}
}
