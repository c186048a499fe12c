package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/askgraph/askgraph/internal/util"
	"github.com/askgraph/askgraph/pkg/ai"
	"github.com/askgraph/askgraph/pkg/graph"
	"github.com/askgraph/askgraph/pkg/logger"
	"github.com/askgraph/askgraph/pkg/scope"
	"github.com/askgraph/askgraph/pkg/vector"
)

// Index payload kinds.
const (
	kindEntity       = "entity"
	kindScope        = "scope"
	kindRelationship = "relationship"
)

// Selector reduces a full Context to the pieces relevant to one question, so
// prompts stay small on graphs with many labels. It keeps a vector index over
// entity names, scope concepts, and relationship types; when the index is
// missing or empty it falls back to keyword matching.
type Selector struct {
	embedder   ai.EmbeddingClient
	vectors    vector.VectorStore
	collection string
}

// NewSelector creates a selector indexing into the named collection.
func NewSelector(embedder ai.EmbeddingClient, vectors vector.VectorStore, collection string) *Selector {
	return &Selector{embedder: embedder, vectors: vectors, collection: collection}
}

// BuildIndex (re)builds the selection index from the entity configuration and
// graph schema. All texts are embedded in a single batched request.
func (s *Selector) BuildIndex(ctx context.Context, config scope.Config, schema graph.Schema) error {
	type entry struct {
		id   string
		kind string
		key  string
		text string
	}

	entries := make([]entry, 0, len(config)+len(schema.Labels)+len(schema.RelationshipTypes))
	for name, entity := range config {
		text := name
		for _, alias := range entity.Aliases {
			text += " " + alias
		}
		if entity.Description != "" {
			text += " " + entity.Description
		}
		entries = append(entries, entry{id: "entity:" + name, kind: kindEntity, key: name, text: text})

		for scopeName, sc := range entity.Scopes {
			scopeText := scopeName + " " + sc.Concept + " " + strings.Join(sc.Examples, " ")
			entries = append(entries, entry{
				id:   "scope:" + name + ":" + scopeName,
				kind: kindScope,
				key:  name + ":" + scopeName,
				text: scopeText,
			})
		}
	}
	for _, rel := range schema.RelationshipTypes {
		entries = append(entries, entry{id: "relationship:" + rel, kind: kindRelationship, key: rel, text: rel})
	}

	if len(entries) == 0 {
		return nil
	}

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.text
	}
	embeddings, err := s.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed index entries: %w", err)
	}

	exists, err := s.vectors.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check index collection: %w", err)
	}
	if !exists {
		if err := s.vectors.CreateCollection(ctx, s.collection, s.embedder.Dimensions()); err != nil {
			return fmt.Errorf("failed to create index collection: %w", err)
		}
	}

	points := make([]vector.Point, len(entries))
	for i, e := range entries {
		points[i] = vector.Point{
			ID:     e.id,
			Vector: embeddings[i],
			Payload: map[string]any{
				"kind": e.kind,
				"key":  e.key,
				"text": e.text,
			},
		}
	}
	if err := s.vectors.Upsert(ctx, s.collection, points); err != nil {
		return fmt.Errorf("failed to upsert index points: %w", err)
	}

	logger.Info("Selection index built", "collection", s.collection, "entries", len(points))
	return nil
}

// SelectRelevant returns a copy of full with RelevantEntities and the detected
// entity metadata narrowed to what the index (or keyword fallback) considers
// related to the question. Schema and similar queries pass through unchanged.
// Selection failures degrade to returning full unmodified.
func (s *Selector) SelectRelevant(
	ctx context.Context,
	question string,
	full *Context,
	limit int,
	threshold float64,
) *Context {
	if full == nil {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}

	keys := s.searchKeys(ctx, question, limit, threshold)
	if keys == nil {
		keys = keywordKeys(question, full)
	}
	if len(keys) == 0 {
		return full
	}

	selected := &Context{
		SimilarQueries:   full.SimilarQueries,
		GraphSchema:      full.GraphSchema,
		RelevantEntities: map[string][]map[string]any{},
		EntityMetadata:   full.EntityMetadata,
		Errors:           full.Errors,
	}
	for label, samples := range full.RelevantEntities {
		if keys[strings.ToLower(label)] {
			selected.RelevantEntities[label] = samples
		}
	}
	if len(selected.RelevantEntities) == 0 {
		// Nothing survived the cut; the full sample set beats an empty one.
		selected.RelevantEntities = full.RelevantEntities
	}
	return selected
}

// searchKeys queries the index and returns the matched keys lowercased, or
// nil when the index is unusable and the keyword fallback should run.
func (s *Selector) searchKeys(ctx context.Context, question string, limit int, threshold float64) map[string]bool {
	if s.vectors == nil || s.collection == "" {
		return nil
	}
	exists, err := s.vectors.CollectionExists(ctx, s.collection)
	if err != nil || !exists {
		return nil
	}
	count, err := s.vectors.Count(ctx, s.collection, nil)
	if err != nil || count == 0 {
		return nil
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, question)
	if err != nil {
		logger.Warn("Context selection fell back to keywords, embedding failed", "err", err)
		return nil
	}
	hits, err := s.vectors.Search(ctx, s.collection, embedding, limit, nil, threshold)
	if err != nil {
		logger.Warn("Context selection fell back to keywords, search failed", "err", err)
		return nil
	}

	keys := make(map[string]bool, len(hits))
	for _, hit := range hits {
		if key, ok := hit.Payload["key"].(string); ok {
			keys[strings.ToLower(key)] = true
		}
	}
	return keys
}

// keywordKeys is the fallback selection: a label is relevant when it, or its
// lowercase plural, appears in the normalized question.
func keywordKeys(question string, full *Context) map[string]bool {
	normalized := " " + util.NormalizeText(question) + " "
	keys := make(map[string]bool)
	for label := range full.RelevantEntities {
		lowered := strings.ToLower(label)
		if strings.Contains(normalized, " "+lowered+" ") ||
			strings.Contains(normalized, " "+lowered+"s ") ||
			strings.Contains(normalized, " "+lowered+"es ") {
			keys[lowered] = true
		}
	}
	return keys
}
