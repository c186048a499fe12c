package retrieval

import (
	"context"
	"testing"

	"github.com/askgraph/askgraph/pkg/graph"
	"github.com/askgraph/askgraph/pkg/scope"
	"github.com/askgraph/askgraph/pkg/vector"
)

func fullContext() *Context {
	return &Context{
		SimilarQueries: []SimilarQuery{{Question: "q", Query: "MATCH (n) RETURN n"}},
		GraphSchema:    graph.Schema{Labels: []string{"Customer", "Order", "Product"}},
		RelevantEntities: map[string][]map[string]any{
			"Customer": {{"name": "Acme"}},
			"Order":    {{"total": 42}},
			"Product":  {{"sku": "X1"}},
		},
		Errors: []string{},
	}
}

func TestBuildIndex_BatchesEmbeddings(t *testing.T) {
	embedder := &fakeEmbedder{}
	vectors := &fakeVectorStore{}
	s := NewSelector(embedder, vectors, "context_index")

	config := scope.Config{
		"customer": {
			Label:   "Customer",
			Aliases: []string{"client"},
			Scopes: map[string]scope.Scope{
				"active": {ScopeName: "active", Concept: "customers with recent orders"},
			},
		},
	}
	schema := graph.Schema{RelationshipTypes: []string{"PLACED"}}

	if err := s.BuildIndex(context.Background(), config, schema); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if embedder.calls != 1 {
		t.Fatalf("index build must embed in one batch, got %d calls", embedder.calls)
	}
	if len(vectors.created) != 1 || vectors.created[0] != "context_index" {
		t.Fatalf("expected collection creation, got %v", vectors.created)
	}
	// One entity, one scope, one relationship type.
	if got := len(vectors.points["context_index"]); got != 3 {
		t.Fatalf("expected 3 index points, got %d", got)
	}
}

func TestSelectRelevant_IndexHits(t *testing.T) {
	vectors := &fakeVectorStore{
		exists: true,
		count:  3,
		hits: []vector.SearchHit{
			{ID: "entity:customer", Score: 0.9, Payload: map[string]any{"kind": "entity", "key": "Customer"}},
		},
	}
	s := NewSelector(&fakeEmbedder{}, vectors, "context_index")

	got := s.SelectRelevant(context.Background(), "who are our customers", fullContext(), 5, 0.5)
	if len(got.RelevantEntities) != 1 {
		t.Fatalf("expected 1 selected entity, got %v", got.RelevantEntities)
	}
	if _, ok := got.RelevantEntities["Customer"]; !ok {
		t.Fatalf("expected Customer selected, got %v", got.RelevantEntities)
	}
	if len(got.SimilarQueries) != 1 {
		t.Fatal("similar queries must pass through unchanged")
	}
	if len(got.GraphSchema.Labels) != 3 {
		t.Fatal("schema must pass through unchanged")
	}
}

func TestSelectRelevant_KeywordFallback(t *testing.T) {
	// No vector store at all: selection falls back to keywords.
	s := NewSelector(&fakeEmbedder{}, nil, "")

	got := s.SelectRelevant(context.Background(), "How many Orders do we have?", fullContext(), 5, 0.5)
	if len(got.RelevantEntities) != 1 {
		t.Fatalf("expected 1 selected entity, got %v", got.RelevantEntities)
	}
	if _, ok := got.RelevantEntities["Order"]; !ok {
		t.Fatalf("expected Order selected, got %v", got.RelevantEntities)
	}
}

func TestSelectRelevant_NoMatchKeepsFull(t *testing.T) {
	s := NewSelector(&fakeEmbedder{}, nil, "")

	full := fullContext()
	got := s.SelectRelevant(context.Background(), "what is the meaning of life", full, 5, 0.5)
	if len(got.RelevantEntities) != len(full.RelevantEntities) {
		t.Fatalf("no selection should keep the full context, got %v", got.RelevantEntities)
	}
}
