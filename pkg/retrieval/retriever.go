package retrieval

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/askgraph/askgraph/pkg/ai"
	"github.com/askgraph/askgraph/pkg/graph"
	"github.com/askgraph/askgraph/pkg/logger"
	"github.com/askgraph/askgraph/pkg/scope"
	"github.com/askgraph/askgraph/pkg/semantic"
	"github.com/askgraph/askgraph/pkg/vector"
)

// semanticThreshold is the minimum similarity for a semantic entity match to
// count as a detection.
const semanticThreshold = 0.6

// ErrEmptyQuestion is returned when the question is empty after trimming.
var ErrEmptyQuestion = errors.New("question must not be empty")

// labelRe guards schema labels before they are interpolated into sample
// queries. Labels that fail it are skipped, never quoted.
var labelRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// SimilarQuery is a previously answered question retrieved by vector
// similarity, with the query that answered it.
type SimilarQuery struct {
	Question string         `json:"question"`
	Query    string         `json:"query"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Context aggregates everything retrieved for one question. Any field may be
// empty if its source failed, with the failure recorded in Errors.
type Context struct {
	SimilarQueries   []SimilarQuery              `json:"similar_queries"`
	GraphSchema      graph.Schema                `json:"graph_schema"`
	RelevantEntities map[string][]map[string]any `json:"relevant_entities"`
	EntityMetadata   scope.Detection             `json:"entity_metadata"`
	Errors           []string                    `json:"errors"`
}

// Options controls what RetrieveContext gathers.
type Options struct {
	Collection       string
	Limit            int
	IncludeSchema    bool
	IncludeExamples  bool
	ExamplesPerLabel int
	ScoreThreshold   float64
}

// DefaultOptions returns the options used when callers pass the zero value.
func DefaultOptions(collection string) Options {
	return Options{
		Collection:       collection,
		Limit:            5,
		IncludeSchema:    true,
		IncludeExamples:  true,
		ExamplesPerLabel: 3,
		ScoreThreshold:   0.5,
	}
}

// Retriever gathers the context a question needs before query generation:
// similar past queries, graph schema, sample entities, and detected
// entity/scope mentions.
type Retriever struct {
	embedder     ai.EmbeddingClient
	vectors      vector.VectorStore
	store        graph.GraphStore
	entityConfig scope.Config
	matcher      *semantic.Matcher
}

// NewRetriever creates a retriever over the given collaborators. The entity
// configuration map is externally supplied and read-only here.
func NewRetriever(
	embedder ai.EmbeddingClient,
	vectors vector.VectorStore,
	store graph.GraphStore,
	entityConfig scope.Config,
) *Retriever {
	return &Retriever{
		embedder:     embedder,
		vectors:      vectors,
		store:        store,
		entityConfig: entityConfig,
	}
}

// WithMatcher enables semantic entity detection for questions where lexical
// matching finds nothing. Returns the receiver for chaining.
func (r *Retriever) WithMatcher(m *semantic.Matcher) *Retriever {
	r.matcher = m
	return r
}

// RetrieveContext builds the context for one question. Only an empty
// question fails the call; every retrieval step degrades independently,
// appending to Context.Errors and leaving its field empty.
func (r *Retriever) RetrieveContext(
	ctx context.Context,
	question string,
	opts Options,
) (*Context, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if opts.Limit <= 0 {
		opts.Limit = 5
	}
	if opts.ExamplesPerLabel <= 0 {
		opts.ExamplesPerLabel = 3
	}

	out := &Context{
		SimilarQueries:   []SimilarQuery{},
		RelevantEntities: map[string][]map[string]any{},
		Errors:           []string{},
	}

	r.retrieveSimilarQueries(ctx, question, opts, out)

	if opts.IncludeSchema {
		r.retrieveSchema(ctx, out)
	}
	if opts.IncludeExamples {
		r.retrieveExamples(ctx, opts, out)
	}

	out.EntityMetadata = scope.Detect(question, r.entityConfig)
	if len(out.EntityMetadata.DetectedEntities) == 0 && r.matcher != nil {
		r.detectSemantic(ctx, question, out)
	}

	return out, nil
}

// detectSemantic falls back to embedding similarity when no entity was
// mentioned literally.
func (r *Retriever) detectSemantic(ctx context.Context, question string, out *Context) {
	matches := r.matcher.MatchEntities(ctx, question, r.entityConfig, semanticThreshold)
	for _, match := range matches {
		entity, ok := r.entityConfig[match.Key]
		if !ok {
			continue
		}
		out.EntityMetadata.DetectedEntities = append(out.EntityMetadata.DetectedEntities, match.Key)
		out.EntityMetadata.EntityMetadata[match.Key] = entity
	}
}

func (r *Retriever) retrieveSimilarQueries(
	ctx context.Context,
	question string,
	opts Options,
	out *Context,
) {
	if r.vectors == nil || opts.Collection == "" {
		return
	}

	embedding, err := r.embedder.GenerateEmbedding(ctx, question)
	if err != nil {
		out.Errors = append(out.Errors, fmt.Sprintf("Vector search failed: %v", err))
		return
	}

	hits, err := r.vectors.Search(ctx, opts.Collection, embedding, opts.Limit, nil, opts.ScoreThreshold)
	if err != nil {
		out.Errors = append(out.Errors, fmt.Sprintf("Vector search failed: %v", err))
		return
	}

	// Hits arrive in the store's own ranking, already descending by score.
	for _, hit := range hits {
		similar := SimilarQuery{Score: hit.Score, Metadata: hit.Payload}
		if q, ok := hit.Payload["question"].(string); ok {
			similar.Question = q
		}
		if q, ok := hit.Payload["query"].(string); ok {
			similar.Query = q
		}
		out.SimilarQueries = append(out.SimilarQueries, similar)
	}
}

func (r *Retriever) retrieveSchema(ctx context.Context, out *Context) {
	schema, err := r.store.GetSchema(ctx)
	if err != nil {
		out.Errors = append(out.Errors, fmt.Sprintf("Schema fetch failed: %v", err))
		return
	}
	out.GraphSchema = schema
}

// retrieveExamples collects a bounded sample of entities per schema label.
// Label-level failures are isolated: one bad label does not drop the others.
func (r *Retriever) retrieveExamples(ctx context.Context, opts Options, out *Context) {
	for _, label := range out.GraphSchema.Labels {
		if !labelRe.MatchString(label) {
			out.Errors = append(out.Errors, fmt.Sprintf("Entity samples skipped for invalid label %q", label))
			continue
		}

		query := fmt.Sprintf("MATCH (n:%s) RETURN n LIMIT %d", label, opts.ExamplesPerLabel)
		rows, err := r.store.Query(ctx, query, nil)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("Entity samples failed for label %q: %v", label, err))
			continue
		}

		samples := make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			for _, value := range row {
				if node, ok := value.(graph.NodeRef); ok {
					samples = append(samples, node.Properties)
				}
			}
		}
		if len(samples) > 0 {
			out.RelevantEntities[label] = samples
		}
	}

	if len(out.GraphSchema.Labels) > 0 && len(out.RelevantEntities) == 0 {
		logger.Debug("No entity samples retrieved", "labels", len(out.GraphSchema.Labels))
	}
}
