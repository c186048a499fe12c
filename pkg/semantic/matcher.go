package semantic

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/askgraph/askgraph/internal/util"
	"github.com/askgraph/askgraph/pkg/ai"
	"github.com/askgraph/askgraph/pkg/logger"
	"github.com/askgraph/askgraph/pkg/scope"
	"github.com/askgraph/askgraph/pkg/vector"
)

// Match methods, in order of preference.
const (
	MethodExact        = "exact"
	MethodEmbedding    = "embedding"
	MethodVectorSearch = "vector_search"
)

// Match is the result of comparing a query against one labeled candidate.
type Match struct {
	Key           string  `json:"key"`
	Score         float64 `json:"score"`
	Exact         bool    `json:"exact"`
	Method        string  `json:"method"`
	CandidateText string  `json:"candidate_text"`
}

// Matcher computes semantic similarity between a query string and labeled
// candidate strings. Matching is advisory: embedding failures are logged and
// reported as "no match" instead of propagating.
//
// The embedding cache is per-instance and read-mostly; callers needing
// isolation should use one Matcher per request.
type Matcher struct {
	embedder ai.EmbeddingClient
	vectors  vector.VectorStore

	cacheLock sync.RWMutex
	cache     map[string][]float32
}

// NewMatcher creates a matcher backed by the given embedding client. The
// vector store is optional; when present, populated collections can serve
// nearest-neighbor search in place of in-memory similarity.
func NewMatcher(embedder ai.EmbeddingClient, vectors vector.VectorStore) *Matcher {
	return &Matcher{
		embedder: embedder,
		vectors:  vectors,
		cache:    make(map[string][]float32),
	}
}

// ResetCache drops all cached embeddings. Useful for long-lived matchers
// whose candidate sets churn.
func (m *Matcher) ResetCache() {
	m.cacheLock.Lock()
	m.cache = make(map[string][]float32)
	m.cacheLock.Unlock()
}

// CosineSimilarity returns dot(a,b) / (‖a‖·‖b‖), in [-1,1]. Zero-length or
// zero-magnitude vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// FindBestMatch compares the query against every candidate and returns the
// highest-scoring one at or above threshold, or nil if none qualifies.
//
// An exact match after normalization short-circuits with score 1.0 and no
// embedding call. When collection names a populated vector-store collection,
// search delegates to the store's nearest-neighbor search instead of
// in-memory similarity.
func (m *Matcher) FindBestMatch(
	ctx context.Context,
	query string,
	candidates map[string]string,
	threshold float64,
	collection string,
) *Match {
	if len(candidates) == 0 {
		return nil
	}

	normalizedQuery := util.NormalizeText(query)
	for key, text := range candidates {
		if util.NormalizeText(text) == normalizedQuery {
			return &Match{
				Key:           key,
				Score:         1.0,
				Exact:         true,
				Method:        MethodExact,
				CandidateText: text,
			}
		}
	}

	if collection != "" {
		if match := m.vectorSearchMatch(ctx, query, collection, threshold); match != nil {
			return match
		}
	}

	matches := m.rankCandidates(ctx, query, candidates, threshold)
	if len(matches) == 0 {
		return nil
	}
	return &matches[0]
}

// MatchEntities ranks the configured entities against the query by name,
// alias, and description similarity, best first.
func (m *Matcher) MatchEntities(
	ctx context.Context,
	query string,
	config scope.Config,
	threshold float64,
) []Match {
	candidates := make(map[string]string)
	for name, entity := range config {
		candidates[name] = candidateText(name, entity.Aliases, entity.Description)
	}
	return m.rankCandidates(ctx, query, candidates, threshold)
}

// MatchScopes ranks scopes against the query by name, concept, and example
// similarity, best first.
func (m *Matcher) MatchScopes(
	ctx context.Context,
	query string,
	scopes map[string]scope.Scope,
	threshold float64,
) []Match {
	candidates := make(map[string]string)
	for name, sc := range scopes {
		candidates[name] = candidateText(name, sc.Examples, sc.Concept)
	}
	return m.rankCandidates(ctx, query, candidates, threshold)
}

// MatchLabel ranks schema labels against the query, best first.
func (m *Matcher) MatchLabel(
	ctx context.Context,
	query string,
	labels []string,
	threshold float64,
) []Match {
	candidates := make(map[string]string, len(labels))
	for _, label := range labels {
		candidates[label] = label
	}
	return m.rankCandidates(ctx, query, candidates, threshold)
}

// rankCandidates embeds the query and all distinct candidate texts, then
// returns candidates scoring at or above threshold sorted by descending
// score. Failures degrade to an empty result.
func (m *Matcher) rankCandidates(
	ctx context.Context,
	query string,
	candidates map[string]string,
	threshold float64,
) []Match {
	if len(candidates) == 0 {
		return nil
	}

	queryEmbedding, err := m.embed(ctx, query)
	if err != nil {
		logger.Warn("Semantic match skipped, query embedding failed", "err", err)
		return nil
	}

	texts := make([]string, 0, len(candidates))
	keys := make([]string, 0, len(candidates))
	for key, text := range candidates {
		keys = append(keys, key)
		texts = append(texts, text)
	}

	embeddings, err := m.embedAll(ctx, texts)
	if err != nil {
		logger.Warn("Semantic match skipped, candidate embedding failed", "err", err)
		return nil
	}

	matches := make([]Match, 0, len(candidates))
	for i, key := range keys {
		score := CosineSimilarity(queryEmbedding, embeddings[i])
		if score < threshold {
			continue
		}
		matches = append(matches, Match{
			Key:           key,
			Score:         clampScore(score),
			Method:        MethodEmbedding,
			CandidateText: texts[i],
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

func (m *Matcher) vectorSearchMatch(
	ctx context.Context,
	query string,
	collection string,
	threshold float64,
) *Match {
	if m.vectors == nil {
		return nil
	}

	exists, err := m.vectors.CollectionExists(ctx, collection)
	if err != nil || !exists {
		return nil
	}
	count, err := m.vectors.Count(ctx, collection, nil)
	if err != nil || count == 0 {
		return nil
	}

	queryEmbedding, err := m.embed(ctx, query)
	if err != nil {
		logger.Warn("Vector search match skipped, query embedding failed", "err", err)
		return nil
	}

	hits, err := m.vectors.Search(ctx, collection, queryEmbedding, 1, nil, threshold)
	if err != nil {
		logger.Warn("Vector search match failed", "collection", collection, "err", err)
		return nil
	}
	if len(hits) == 0 {
		return nil
	}

	hit := hits[0]
	text, _ := hit.Payload["text"].(string)
	key := hit.ID
	if payloadKey, ok := hit.Payload["key"].(string); ok && payloadKey != "" {
		key = payloadKey
	}
	return &Match{
		Key:           key,
		Score:         clampScore(hit.Score),
		Method:        MethodVectorSearch,
		CandidateText: text,
	}
}

// embed returns the embedding for one text, via the per-instance cache.
func (m *Matcher) embed(ctx context.Context, text string) ([]float32, error) {
	hash := util.TextHash(util.NormalizeText(text))

	m.cacheLock.RLock()
	cached, ok := m.cache[hash]
	m.cacheLock.RUnlock()
	if ok {
		return cached, nil
	}

	embedding, err := m.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	m.cacheLock.Lock()
	m.cache[hash] = embedding
	m.cacheLock.Unlock()
	return embedding, nil
}

// embedAll resolves texts against the cache and issues a single batched
// embedding request for the misses.
func (m *Matcher) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	m.cacheLock.RLock()
	for i, text := range texts {
		hash := util.TextHash(util.NormalizeText(text))
		if cached, ok := m.cache[hash]; ok {
			out[i] = cached
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	m.cacheLock.RUnlock()

	if len(missTexts) == 0 {
		return out, nil
	}

	embeddings, err := m.embedder.GenerateEmbeddings(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	m.cacheLock.Lock()
	for i, idx := range missIdx {
		out[idx] = embeddings[i]
		m.cache[util.TextHash(util.NormalizeText(missTexts[i]))] = embeddings[i]
	}
	m.cacheLock.Unlock()
	return out, nil
}

func candidateText(name string, extras []string, description string) string {
	text := name
	for _, extra := range extras {
		if extra != "" {
			text += " " + extra
		}
	}
	if description != "" {
		text += " " + description
	}
	return text
}

func clampScore(score float64) float64 {
	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}
