package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/askgraph/askgraph/pkg/ai"
	"github.com/askgraph/askgraph/pkg/graph"
	"github.com/askgraph/askgraph/pkg/pattern"
	"github.com/askgraph/askgraph/pkg/prompt"
	"github.com/askgraph/askgraph/pkg/retrieval"
)

// fakeChat replays scripted responses, one per GenerateCompletion call.
type fakeChat struct {
	responses []string
	err       error
	prompts   []string
}

func (f *fakeChat) GenerateCompletion(ctx context.Context, p string, opts ...ai.GenerateOption) (string, error) {
	f.prompts = append(f.prompts, p)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", errors.New("no scripted response")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func (f *fakeChat) GenerateCompletionWithFormat(ctx context.Context, name, description, p string, out any, opts ...ai.GenerateOption) error {
	return errors.New("not implemented")
}

func (f *fakeChat) GenerateChat(ctx context.Context, messages []ai.ChatMessage, opts ...ai.GenerateOption) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeChat) GenerateChatStream(ctx context.Context, messages []ai.ChatMessage, opts ...ai.GenerateOption) (<-chan ai.StreamEvent, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeChat) ResetMetrics() {}

func (f *fakeChat) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func newTestGenerator(chat *fakeChat, config Config) *Generator {
	library := pattern.NewLibrary()
	builder := prompt.NewBuilder(nil, library, config.DefaultLimit)
	return NewGenerator(chat, library, builder, config)
}

func schemaContext(labels ...string) *retrieval.Context {
	return &retrieval.Context{GraphSchema: graph.Schema{Labels: labels}}
}

func TestGenerate_TemplateListAll(t *testing.T) {
	chat := &fakeChat{}
	g := newTestGenerator(chat, DefaultConfig())

	got, err := g.Generate(context.Background(), "Show all customers", schemaContext("Customer"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Cypher != "MATCH (n:Customer) RETURN n LIMIT 100" {
		t.Fatalf("unexpected cypher: %q", got.Cypher)
	}
	if got.Confidence != 0.9 {
		t.Fatalf("template confidence must be 0.9, got %f", got.Confidence)
	}
	if got.Metadata.TemplateUsed != "list_all" {
		t.Fatalf("expected list_all template, got %q", got.Metadata.TemplateUsed)
	}
	if len(chat.prompts) != 0 {
		t.Fatal("template match must not call the model")
	}
}

func TestGenerate_TemplateCount(t *testing.T) {
	g := newTestGenerator(&fakeChat{}, DefaultConfig())

	got, err := g.Generate(context.Background(), "How many orders?", schemaContext("Order"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Cypher != "MATCH (n:Order) RETURN count(n) as count" {
		t.Fatalf("unexpected cypher: %q", got.Cypher)
	}
	if got.Metadata.TemplateUsed != "count" {
		t.Fatalf("expected count template, got %q", got.Metadata.TemplateUsed)
	}
}

func TestGenerate_LLMPath(t *testing.T) {
	chat := &fakeChat{
		responses: []string{"```cypher\nMATCH (n:Customer)-[:PLACED]->(o:Order) RETURN n, o LIMIT 50\n```"},
	}
	g := newTestGenerator(chat, DefaultConfig())

	got, err := g.Generate(context.Background(), "Which customers placed orders recently?", schemaContext("Customer", "Order"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strings.Contains(got.Cypher, "```") {
		t.Fatalf("code fences must be stripped: %q", got.Cypher)
	}
	// 0.5 base + 0.1 Customer + 0.1 Order + 0.1 LIMIT.
	if got.Confidence != 0.8 {
		t.Fatalf("expected confidence 0.8, got %f", got.Confidence)
	}
	if got.Metadata.RetryCount != 0 {
		t.Fatalf("expected no retries, got %d", got.Metadata.RetryCount)
	}
}

func TestGenerate_RetryWithFeedback(t *testing.T) {
	chat := &fakeChat{
		responses: []string{
			"MATCH (n) DETACH DELETE n RETURN n",
			"MATCH (n:Customer) RETURN n LIMIT 100",
		},
	}
	g := newTestGenerator(chat, DefaultConfig())

	got, err := g.Generate(context.Background(), "Remove everything about customers", schemaContext("Customer"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Metadata.RetryCount != 1 {
		t.Fatalf("expected 1 retry, got %d", got.Metadata.RetryCount)
	}
	if len(chat.prompts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(chat.prompts))
	}
	if !strings.Contains(chat.prompts[1], "forbidden keyword DELETE") {
		t.Fatal("retry prompt must carry the previous validation errors")
	}
	if strings.Contains(chat.prompts[0], "# Previous Attempt Failed") {
		t.Fatal("first attempt must not carry feedback")
	}
}

func TestGenerate_Exhausted(t *testing.T) {
	chat := &fakeChat{
		responses: []string{
			"DELETE everything",
			"DROP DATABASE",
			"please no",
		},
	}
	g := newTestGenerator(chat, DefaultConfig())

	_, err := g.Generate(context.Background(), "Destroy the graph", schemaContext("Customer"))
	if !errors.Is(err, ErrGenerationExhausted) {
		t.Fatalf("expected ErrGenerationExhausted, got %v", err)
	}
	if len(chat.prompts) != 3 {
		t.Fatalf("expected max_retries attempts, got %d", len(chat.prompts))
	}
}

func TestGenerate_EmptyQuestion(t *testing.T) {
	g := newTestGenerator(&fakeChat{}, DefaultConfig())

	_, err := g.Generate(context.Background(), "  ", schemaContext("Customer"))
	if !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
}

func TestGenerate_ModelError(t *testing.T) {
	chat := &fakeChat{err: errors.New("model unreachable")}
	g := newTestGenerator(chat, DefaultConfig())

	_, err := g.Generate(context.Background(), "Which customers churned?", schemaContext("Customer"))
	if err == nil || !strings.Contains(err.Error(), "model unreachable") {
		t.Fatalf("expected wrapped model error, got %v", err)
	}
}

func TestExtractQuery(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"MATCH (n) RETURN n", "MATCH (n) RETURN n"},
		{"```cypher\nMATCH (n) RETURN n\n```", "MATCH (n) RETURN n"},
		{"```\nMATCH (n) RETURN n\n```", "MATCH (n) RETURN n"},
		{"Here you go:\n```cypher\nMATCH (n) RETURN n\n```\nEnjoy!", "MATCH (n) RETURN n"},
		{"  MATCH (n) RETURN n  \n", "MATCH (n) RETURN n"},
	}
	for _, tt := range tests {
		if got := ExtractQuery(tt.raw); got != tt.want {
			t.Fatalf("ExtractQuery(%q): got %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestLLMConfidence_Capped(t *testing.T) {
	cypher := "MATCH (a:A)-->(b:B) MATCH (c:C)-->(d:D) MATCH (e:E)-->(f:F) RETURN a LIMIT 10"
	if got := llmConfidence(cypher, []string{"A", "B", "C", "D", "E", "F"}); got != 1.0 {
		t.Fatalf("confidence must cap at 1.0, got %f", got)
	}
}
