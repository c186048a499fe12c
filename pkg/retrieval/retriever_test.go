package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/askgraph/askgraph/pkg/graph"
	"github.com/askgraph/askgraph/pkg/scope"
	"github.com/askgraph/askgraph/pkg/semantic"
	"github.com/askgraph/askgraph/pkg/vector"
)

type fakeEmbedder struct {
	fail  bool
	calls int
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, input string) ([]float32, error) {
	res, err := f.GenerateEmbeddings(ctx, []string{input})
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

func (f *fakeEmbedder) GenerateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("embedding backend down")
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }

type fakeVectorStore struct {
	hits      []vector.SearchHit
	searchErr error
	points    map[string][]vector.Point
	exists    bool
	count     int
	created   []string
	upsertErr error
}

func (f *fakeVectorStore) Search(
	ctx context.Context,
	collection string,
	vec []float32,
	limit int,
	filter vector.Filter,
	threshold float64,
) ([]vector.SearchHit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if limit < len(f.hits) {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

func (f *fakeVectorStore) Upsert(ctx context.Context, collection string, points []vector.Point) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if f.points == nil {
		f.points = map[string][]vector.Point{}
	}
	f.points[collection] = append(f.points[collection], points...)
	return nil
}

func (f *fakeVectorStore) Count(ctx context.Context, collection string, filter vector.Filter) (int, error) {
	return f.count, nil
}

func (f *fakeVectorStore) DeletePoints(ctx context.Context, collection string, ids []string) error {
	return nil
}

func (f *fakeVectorStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	return f.exists, nil
}

func (f *fakeVectorStore) CreateCollection(ctx context.Context, collection string, dimensions int) error {
	f.created = append(f.created, collection)
	return nil
}

func (f *fakeVectorStore) DeleteCollection(ctx context.Context, collection string) error {
	return nil
}

type fakeGraphStore struct {
	schema    graph.Schema
	schemaErr error
	rows      map[string][]graph.Row
	queryErr  map[string]error
	queries   []string
}

func (f *fakeGraphStore) Query(ctx context.Context, query string, params map[string]any) ([]graph.Row, error) {
	f.queries = append(f.queries, query)
	if err, ok := f.queryErr[query]; ok {
		return nil, err
	}
	return f.rows[query], nil
}

func (f *fakeGraphStore) GetSchema(ctx context.Context) (graph.Schema, error) {
	if f.schemaErr != nil {
		return graph.Schema{}, f.schemaErr
	}
	return f.schema, nil
}

func (f *fakeGraphStore) Explain(ctx context.Context, query string, params map[string]any) ([]graph.Row, error) {
	return nil, nil
}

func (f *fakeGraphStore) Cancel(ctx context.Context, queryID string) error { return nil }

func TestRetrieveContext_EmptyQuestion(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{}, &fakeVectorStore{}, &fakeGraphStore{}, nil)

	_, err := r.RetrieveContext(context.Background(), "   ", DefaultOptions("queries"))
	if !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
}

func TestRetrieveContext_Full(t *testing.T) {
	vectors := &fakeVectorStore{
		exists: true,
		hits: []vector.SearchHit{
			{
				ID:    "q1",
				Score: 0.92,
				Payload: map[string]any{
					"question": "List every customer",
					"query":    "MATCH (n:Customer) RETURN n LIMIT 100",
				},
			},
		},
	}
	store := &fakeGraphStore{
		schema: graph.Schema{
			Labels:            []string{"Customer", "Order"},
			RelationshipTypes: []string{"PLACED"},
			PropertyKeys:      []string{"name"},
		},
		rows: map[string][]graph.Row{
			"MATCH (n:Customer) RETURN n LIMIT 3": {
				{"n": graph.NodeRef{ID: "1", Labels: []string{"Customer"}, Properties: map[string]any{"name": "Acme"}}},
			},
			"MATCH (n:Order) RETURN n LIMIT 3": {
				{"n": graph.NodeRef{ID: "2", Labels: []string{"Order"}, Properties: map[string]any{"total": 42}}},
			},
		},
	}
	config := scope.Config{
		"customer": {Label: "Customer", Aliases: []string{"client"}},
	}
	r := NewRetriever(&fakeEmbedder{}, vectors, store, config)

	got, err := r.RetrieveContext(context.Background(), "Show all customers", DefaultOptions("queries"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", got.Errors)
	}
	if len(got.SimilarQueries) != 1 {
		t.Fatalf("expected 1 similar query, got %d", len(got.SimilarQueries))
	}
	if got.SimilarQueries[0].Question != "List every customer" {
		t.Fatalf("unexpected similar question: %q", got.SimilarQueries[0].Question)
	}
	if got.SimilarQueries[0].Score != 0.92 {
		t.Fatalf("unexpected score: %f", got.SimilarQueries[0].Score)
	}
	if len(got.GraphSchema.Labels) != 2 {
		t.Fatalf("expected schema labels, got %v", got.GraphSchema.Labels)
	}
	if len(got.RelevantEntities["Customer"]) != 1 {
		t.Fatalf("expected Customer samples, got %v", got.RelevantEntities)
	}
	if got.RelevantEntities["Customer"][0]["name"] != "Acme" {
		t.Fatalf("unexpected sample: %v", got.RelevantEntities["Customer"][0])
	}
	if len(got.EntityMetadata.DetectedEntities) != 1 || got.EntityMetadata.DetectedEntities[0] != "customer" {
		t.Fatalf("unexpected detected entities: %v", got.EntityMetadata.DetectedEntities)
	}
}

func TestRetrieveContext_SemanticFallback(t *testing.T) {
	store := &fakeGraphStore{schema: graph.Schema{Labels: []string{"Customer"}}}
	config := scope.Config{
		"customer": {Label: "Customer", Aliases: []string{"client"}, Description: "people who buy"},
	}
	embedder := &fakeEmbedder{}
	r := NewRetriever(embedder, nil, store, config).
		WithMatcher(semantic.NewMatcher(embedder, nil))

	opts := DefaultOptions("")
	opts.IncludeExamples = false

	got, err := r.RetrieveContext(context.Background(), "Who purchased something?", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got.EntityMetadata.DetectedEntities) != 1 || got.EntityMetadata.DetectedEntities[0] != "customer" {
		t.Fatalf("expected semantic detection of customer, got %v", got.EntityMetadata.DetectedEntities)
	}
	if _, ok := got.EntityMetadata.EntityMetadata["customer"]; !ok {
		t.Fatal("detected entity must carry its configuration")
	}
}

func TestRetrieveContext_LexicalDetectionSkipsMatcher(t *testing.T) {
	store := &fakeGraphStore{schema: graph.Schema{Labels: []string{"Customer"}}}
	config := scope.Config{
		"customer": {Label: "Customer"},
	}
	embedder := &fakeEmbedder{}
	r := NewRetriever(embedder, nil, store, config).
		WithMatcher(semantic.NewMatcher(embedder, nil))

	opts := DefaultOptions("")
	opts.IncludeExamples = false

	got, err := r.RetrieveContext(context.Background(), "Show all customers", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got.EntityMetadata.DetectedEntities) != 1 {
		t.Fatalf("expected lexical detection, got %v", got.EntityMetadata.DetectedEntities)
	}
	if embedder.calls != 0 {
		t.Fatalf("lexical detection must not trigger embedding calls, got %d", embedder.calls)
	}
}

func TestRetrieveContext_VectorFailureIsPartial(t *testing.T) {
	vectors := &fakeVectorStore{searchErr: errors.New("connection refused")}
	store := &fakeGraphStore{
		schema: graph.Schema{Labels: []string{"Customer"}},
		rows: map[string][]graph.Row{
			"MATCH (n:Customer) RETURN n LIMIT 3": {
				{"n": graph.NodeRef{ID: "1", Properties: map[string]any{"name": "Acme"}}},
			},
		},
	}
	r := NewRetriever(&fakeEmbedder{}, vectors, store, nil)

	got, err := r.RetrieveContext(context.Background(), "Show all customers", DefaultOptions("queries"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got.SimilarQueries) != 0 {
		t.Fatalf("expected no similar queries, got %d", len(got.SimilarQueries))
	}
	if len(got.Errors) != 1 {
		t.Fatalf("expected exactly one error, got %v", got.Errors)
	}
	if !strings.HasPrefix(got.Errors[0], "Vector search failed:") {
		t.Fatalf("error should carry the vector search prefix: %q", got.Errors[0])
	}
	if len(got.GraphSchema.Labels) != 1 {
		t.Fatal("schema retrieval must survive a vector failure")
	}
	if len(got.RelevantEntities["Customer"]) != 1 {
		t.Fatal("entity samples must survive a vector failure")
	}
}

func TestRetrieveContext_InvalidLabelSkipped(t *testing.T) {
	store := &fakeGraphStore{
		schema: graph.Schema{Labels: []string{"Customer", "Bad`Label"}},
		rows: map[string][]graph.Row{
			"MATCH (n:Customer) RETURN n LIMIT 3": {
				{"n": graph.NodeRef{ID: "1", Properties: map[string]any{"name": "Acme"}}},
			},
		},
	}
	r := NewRetriever(&fakeEmbedder{}, nil, store, nil)

	got, err := r.RetrieveContext(context.Background(), "Show all customers", DefaultOptions(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, q := range store.queries {
		if strings.Contains(q, "Bad`Label") {
			t.Fatalf("invalid label must never reach the store: %q", q)
		}
	}
	if len(got.RelevantEntities["Customer"]) != 1 {
		t.Fatal("valid labels must still be sampled")
	}
	found := false
	for _, e := range got.Errors {
		if strings.Contains(e, "invalid label") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an invalid-label error, got %v", got.Errors)
	}
}

func TestRetrieveContext_LabelFailureIsolated(t *testing.T) {
	store := &fakeGraphStore{
		schema: graph.Schema{Labels: []string{"Customer", "Order"}},
		rows: map[string][]graph.Row{
			"MATCH (n:Order) RETURN n LIMIT 3": {
				{"n": graph.NodeRef{ID: "2", Properties: map[string]any{"total": 42}}},
			},
		},
		queryErr: map[string]error{
			"MATCH (n:Customer) RETURN n LIMIT 3": errors.New("boom"),
		},
	}
	r := NewRetriever(&fakeEmbedder{}, nil, store, nil)

	got, err := r.RetrieveContext(context.Background(), "Show all orders", DefaultOptions(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.RelevantEntities["Order"]) != 1 {
		t.Fatal("one failing label must not drop the others")
	}
	if len(got.Errors) != 1 || !strings.Contains(got.Errors[0], "Customer") {
		t.Fatalf("expected a Customer sample error, got %v", got.Errors)
	}
}
