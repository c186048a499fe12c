package generator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/askgraph/askgraph/internal/util"
	"github.com/askgraph/askgraph/pkg/ai"
	"github.com/askgraph/askgraph/pkg/logger"
	"github.com/askgraph/askgraph/pkg/pattern"
	"github.com/askgraph/askgraph/pkg/prompt"
	"github.com/askgraph/askgraph/pkg/retrieval"
)

// transportTries bounds retries of a single completion call against transient
// provider failures. Validation retries are governed by Config.MaxRetries.
const transportTries = 2

// Confidence levels. Template matches are trusted more than model output.
const (
	templateConfidence  = 0.9
	llmBaseConfidence   = 0.5
	confidencePerSignal = 0.1
)

var (
	// ErrEmptyQuestion is returned for a blank question.
	ErrEmptyQuestion = errors.New("question must not be empty")
	// ErrGenerationExhausted is returned when every attempt failed validation.
	ErrGenerationExhausted = errors.New("query generation exhausted all attempts")

	codeFenceRe = regexp.MustCompile("(?s)```(?:cypher|sql)?\\s*(.*?)```")
)

// Metadata records how a query came to be.
type Metadata struct {
	TemplateUsed string `json:"template_used,omitempty"`
	RetryCount   int    `json:"retry_count"`
	Complexity   int    `json:"complexity"`
	Model        string `json:"model,omitempty"`
}

// GeneratedQuery is the output of one generation run: the query, how sure we
// are of it, and any validation warnings that survived.
type GeneratedQuery struct {
	Cypher      string   `json:"cypher"`
	Explanation string   `json:"explanation"`
	Confidence  float64  `json:"confidence"`
	Warnings    []string `json:"warnings"`
	Metadata    Metadata `json:"metadata"`
}

// Config holds the generation knobs.
type Config struct {
	Model             string
	MaxRetries        int
	ComplexityCeiling int
	AllowWrite        bool
	EnableTemplates   bool
	DefaultLimit      int
	Temperature       float64
}

// DefaultConfig returns the standard generation settings.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        3,
		ComplexityCeiling: 100,
		EnableTemplates:   true,
		DefaultLimit:      100,
		Temperature:       0.1,
	}
}

// Generator turns questions into validated queries. It tries the template
// catalog first; when no template fires it asks the model, validating each
// attempt and feeding failures back as corrective feedback.
type Generator struct {
	llm     ai.ChatClient
	library *pattern.Library
	builder *prompt.Builder
	config  Config
}

// NewGenerator wires a generator from its collaborators.
func NewGenerator(llm ai.ChatClient, library *pattern.Library, builder *prompt.Builder, config Config) *Generator {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	return &Generator{
		llm:     llm,
		library: library,
		builder: builder,
		config:  config,
	}
}

// Generate produces a validated query for the question, or an error wrapping
// ErrGenerationExhausted when all attempts fail.
func (g *Generator) Generate(
	ctx context.Context,
	question string,
	retrieved *retrieval.Context,
) (*GeneratedQuery, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if retrieved == nil {
		retrieved = &retrieval.Context{}
	}

	if g.config.EnableTemplates && g.library != nil {
		if detection := g.library.Detect(question, retrieved.GraphSchema.Labels); detection != nil {
			logger.Debug("Template matched", "pattern", detection.Pattern.Name, "label", detection.Label)
			return &GeneratedQuery{
				Cypher:      detection.Cypher,
				Explanation: fmt.Sprintf("Matched the %q query shape for label %s.", detection.Pattern.Name, detection.Label),
				Confidence:  templateConfidence,
				Warnings:    []string{},
				Metadata: Metadata{
					TemplateUsed: detection.Pattern.Name,
					Complexity:   ComplexityScore(detection.Cypher),
				},
			}, nil
		}
	}

	return g.generateWithLLM(ctx, question, retrieved)
}

func (g *Generator) generateWithLLM(
	ctx context.Context,
	question string,
	retrieved *retrieval.Context,
) (*GeneratedQuery, error) {
	var lastErrors string

	for attempt := 0; attempt < g.config.MaxRetries; attempt++ {
		built := g.builder.Build(question, retrieved, lastErrors)

		opts := []ai.GenerateOption{
			ai.WithSystemPrompts(prompt.SystemPrompt),
			ai.WithTemperature(g.config.Temperature),
		}
		if g.config.Model != "" {
			opts = append(opts, ai.WithModel(g.config.Model))
		}

		raw, err := util.RetryWithContext(ctx, transportTries, func(ctx context.Context) (string, error) {
			return g.llm.GenerateCompletion(ctx, built, opts...)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to generate query: %w", err)
		}

		cypher := ExtractQuery(raw)
		result := Validate(cypher, g.config.AllowWrite, g.config.ComplexityCeiling)
		if result.Valid {
			return &GeneratedQuery{
				Cypher:      cypher,
				Explanation: "Generated from the question and graph schema.",
				Confidence:  llmConfidence(cypher, retrieved.GraphSchema.Labels),
				Warnings:    result.Warnings,
				Metadata: Metadata{
					RetryCount: attempt,
					Complexity: result.Complexity,
					Model:      g.config.Model,
				},
			}, nil
		}

		lastErrors = strings.Join(result.Errors, "; ")
		logger.Debug("Generated query rejected", "attempt", attempt+1, "errors", lastErrors)
	}

	return nil, fmt.Errorf("%w after %d attempts: %s", ErrGenerationExhausted, g.config.MaxRetries, lastErrors)
}

// ExtractQuery pulls the query text out of a model response, stripping code
// fences and surrounding prose.
func ExtractQuery(raw string) string {
	if groups := codeFenceRe.FindStringSubmatch(raw); groups != nil {
		return strings.TrimSpace(groups[1])
	}
	return strings.TrimSpace(raw)
}

// llmConfidence scores a model-generated query: a base of 0.5, plus 0.1 for
// every schema label the query references and 0.1 for a LIMIT clause, capped
// at 1.0.
func llmConfidence(cypher string, labels []string) float64 {
	confidence := llmBaseConfidence
	for _, label := range labels {
		if label != "" && strings.Contains(cypher, ":"+label) {
			confidence += confidencePerSignal
		}
	}
	if HasLimitClause(cypher) {
		confidence += confidencePerSignal
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}
