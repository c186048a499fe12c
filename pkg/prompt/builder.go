package prompt

import (
	"time"

	"github.com/askgraph/askgraph/pkg/pattern"
	"github.com/askgraph/askgraph/pkg/retrieval"
)

// SystemPrompt frames the generation conversation.
const SystemPrompt = `# Task Context
You translate natural-language questions about a graph database into Cypher queries. You only ever produce read-only queries grounded in the provided schema.`

// Builder assembles generation prompts from an injected section registry.
type Builder struct {
	registry     *Registry
	patterns     *pattern.Library
	defaultLimit int

	// now is swappable for tests.
	now func() time.Time
}

// NewBuilder creates a builder over the given registry. A nil registry gets
// the default section set.
func NewBuilder(registry *Registry, patterns *pattern.Library, defaultLimit int) *Builder {
	if registry == nil {
		registry = NewRegistry(DefaultSections()...)
	}
	return &Builder{
		registry:     registry,
		patterns:     patterns,
		defaultLimit: defaultLimit,
		now:          time.Now,
	}
}

// Registry exposes the builder's registry so callers can attach hooks.
func (b *Builder) Registry() *Registry {
	return b.registry
}

// Build renders the full generation prompt for a question. Feedback, when
// non-empty, carries the validation errors of the previous attempt.
func (b *Builder) Build(question string, context *retrieval.Context, feedback string) string {
	return b.registry.Render(&BuildContext{
		Question:     question,
		Context:      context,
		Patterns:     b.patterns,
		Feedback:     feedback,
		DefaultLimit: b.defaultLimit,
		Now:          b.now(),
	})
}
