package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/askgraph/askgraph/pkg/scope"
)

// Default section priorities. Lower renders earlier.
const (
	PriorityDate     = 10
	PrioritySchema   = 20
	PriorityExamples = 30
	PriorityScopes   = 40
	PriorityPatterns = 50
	PrioritySimilar  = 60
	PriorityRules    = 70
	PriorityFeedback = 80
	PriorityQuestion = 90
)

// DefaultSections returns the standard section set for query generation, in
// their default priority order.
func DefaultSections() []Section {
	return []Section{
		dateSection{},
		schemaSection{},
		examplesSection{},
		scopeSection{},
		patternSection{},
		similarSection{},
		rulesSection{},
		feedbackSection{},
		questionSection{},
	}
}

type dateSection struct{}

func (dateSection) Name() string                        { return "date" }
func (dateSection) Priority() int                       { return PriorityDate }
func (dateSection) ShouldInclude(bc *BuildContext) bool { return !bc.Now.IsZero() }
func (dateSection) Render(bc *BuildContext) string {
	return "# Current Date\n" + bc.Now.Format("2006-01-02")
}

type schemaSection struct{}

func (schemaSection) Name() string  { return "schema" }
func (schemaSection) Priority() int { return PrioritySchema }
func (schemaSection) ShouldInclude(bc *BuildContext) bool {
	return bc.Context != nil && len(bc.Context.GraphSchema.Labels) > 0
}
func (schemaSection) Render(bc *BuildContext) string {
	schema := bc.Context.GraphSchema
	var b strings.Builder
	b.WriteString("# Graph Schema\n")
	b.WriteString("Node labels: " + strings.Join(schema.Labels, ", "))
	if len(schema.RelationshipTypes) > 0 {
		b.WriteString("\nRelationship types: " + strings.Join(schema.RelationshipTypes, ", "))
	}
	if len(schema.PropertyKeys) > 0 {
		b.WriteString("\nProperty keys: " + strings.Join(schema.PropertyKeys, ", "))
	}
	return b.String()
}

type examplesSection struct{}

func (examplesSection) Name() string  { return "examples" }
func (examplesSection) Priority() int { return PriorityExamples }
func (examplesSection) ShouldInclude(bc *BuildContext) bool {
	return bc.Context != nil && len(bc.Context.RelevantEntities) > 0
}
func (examplesSection) Render(bc *BuildContext) string {
	labels := make([]string, 0, len(bc.Context.RelevantEntities))
	for label := range bc.Context.RelevantEntities {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var b strings.Builder
	b.WriteString("# Sample Entities\n")
	b.WriteString("Example property values per label, to ground property names and formats:")
	for _, label := range labels {
		for _, sample := range bc.Context.RelevantEntities[label] {
			encoded, err := json.Marshal(sample)
			if err != nil {
				continue
			}
			b.WriteString(fmt.Sprintf("\n- %s: %s", label, encoded))
		}
	}
	return b.String()
}

type scopeSection struct{}

func (scopeSection) Name() string  { return "scopes" }
func (scopeSection) Priority() int { return PriorityScopes }
func (scopeSection) ShouldInclude(bc *BuildContext) bool {
	return bc.Context != nil && len(bc.Context.EntityMetadata.DetectedScopes) > 0
}

// Render describes each detected scope by its specification type, so the
// model sees a concrete query fragment rather than just a concept name.
func (scopeSection) Render(bc *BuildContext) string {
	names := make([]string, 0, len(bc.Context.EntityMetadata.DetectedScopes))
	for name := range bc.Context.EntityMetadata.DetectedScopes {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("# Business Scopes\n")
	b.WriteString("The question mentions these defined business concepts. Apply their specifications:")
	for _, name := range names {
		sc := bc.Context.EntityMetadata.DetectedScopes[name]
		b.WriteString(fmt.Sprintf("\n- %q on entity %q: %s", name, sc.Entity, sc.Concept))
		b.WriteString("\n  " + renderScopeSpec(sc))
		for _, rule := range sc.BusinessRules {
			b.WriteString("\n  Rule: " + rule)
		}
	}
	return b.String()
}

func renderScopeSpec(sc scope.Scope) string {
	switch sc.SpecificationType {
	case scope.PropertyFilter:
		encoded, err := json.Marshal(sc.Filter)
		if err != nil {
			return "Filter the entity's properties."
		}
		return "Filter properties: " + string(encoded)
	case scope.RelationshipTraversal:
		if sc.RelationshipSpec == nil {
			return "Traverse the entity's relationships."
		}
		return fmt.Sprintf(
			"Traverse %s (%s) to %s nodes.",
			sc.RelationshipSpec.Relationship,
			sc.RelationshipSpec.Direction,
			sc.RelationshipSpec.TargetLabel,
		)
	case scope.Pattern:
		if sc.CypherPattern != "" {
			return "Use this pattern: " + sc.CypherPattern
		}
		return "Use the named query pattern with its parameters."
	default:
		return "Interpret the concept from its description."
	}
}

type patternSection struct{}

func (patternSection) Name() string  { return "patterns" }
func (patternSection) Priority() int { return PriorityPatterns }
func (patternSection) ShouldInclude(bc *BuildContext) bool {
	return bc.Patterns != nil && len(bc.Patterns.All()) > 0
}
func (patternSection) Render(bc *BuildContext) string {
	var b strings.Builder
	b.WriteString("# Known Query Shapes\n")
	b.WriteString("Prefer these shapes when the question fits one:")
	for _, p := range bc.Patterns.All() {
		b.WriteString(fmt.Sprintf("\n- %s: %s\n  %s", p.Name, p.Description, p.CypherTemplate))
	}
	return b.String()
}

type similarSection struct{}

func (similarSection) Name() string  { return "similar" }
func (similarSection) Priority() int { return PrioritySimilar }
func (similarSection) ShouldInclude(bc *BuildContext) bool {
	return bc.Context != nil && len(bc.Context.SimilarQueries) > 0
}
func (similarSection) Render(bc *BuildContext) string {
	var b strings.Builder
	b.WriteString("# Similar Past Questions\n")
	b.WriteString("Previously answered questions and the queries that answered them:")
	for _, sq := range bc.Context.SimilarQueries {
		b.WriteString(fmt.Sprintf("\n- Q: %s\n  A: %s", sq.Question, sq.Query))
	}
	return b.String()
}

type rulesSection struct{}

func (rulesSection) Name() string                        { return "rules" }
func (rulesSection) Priority() int                       { return PriorityRules }
func (rulesSection) ShouldInclude(bc *BuildContext) bool { return true }
func (rulesSection) Render(bc *BuildContext) string {
	limit := bc.DefaultLimit
	if limit <= 0 {
		limit = 100
	}
	return fmt.Sprintf(`# Rules
- Generate exactly one read-only Cypher query.
- Never use DELETE, REMOVE, DROP, CREATE, MERGE, SET, or DETACH.
- Only use labels, relationship types, and properties from the schema above.
- Always include a LIMIT clause, at most LIMIT %d unless the question asks for a count.
- Return only the Cypher query, no explanation and no code fences.`, limit)
}

type feedbackSection struct{}

func (feedbackSection) Name() string  { return "feedback" }
func (feedbackSection) Priority() int { return PriorityFeedback }
func (feedbackSection) ShouldInclude(bc *BuildContext) bool {
	return strings.TrimSpace(bc.Feedback) != ""
}
func (feedbackSection) Render(bc *BuildContext) string {
	return "# Previous Attempt Failed\n" +
		"Your last query was rejected for these reasons. Fix them:\n" +
		bc.Feedback
}

type questionSection struct{}

func (questionSection) Name() string                        { return "question" }
func (questionSection) Priority() int                       { return PriorityQuestion }
func (questionSection) ShouldInclude(bc *BuildContext) bool { return true }
func (questionSection) Render(bc *BuildContext) string {
	return "# Question\n" + bc.Question
}
