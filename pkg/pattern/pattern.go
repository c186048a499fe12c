package pattern

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/askgraph/askgraph/internal/util"
)

// Pattern is a fixed, parameterized query shape. SemanticTemplate describes
// the pattern in prose for prompt rendering; CypherTemplate is the query
// shape with {param} placeholders.
type Pattern struct {
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	SemanticTemplate string            `json:"semantic_template"`
	CypherTemplate   string            `json:"cypher_template"`
	Parameters       map[string]string `json:"parameters"`

	trigger *regexp.Regexp
}

// Detection is a template match against a question: the pattern, the schema
// label it resolved to, and the instantiated query text.
type Detection struct {
	Pattern Pattern
	Label   string
	Cypher  string
}

// Library is a read-only catalog of query patterns in priority order.
type Library struct {
	patterns []Pattern
	byName   map[string]Pattern
}

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// NewLibrary returns the default pattern catalog. Catalog order matters:
// template detection tests triggers in order and the first match wins.
func NewLibrary() *Library {
	return NewLibraryWith(defaultPatterns())
}

// NewLibraryWith builds a library from an explicit pattern list, preserving
// order. Patterns without triggers are still usable via Get/Instantiate.
func NewLibraryWith(patterns []Pattern) *Library {
	byName := make(map[string]Pattern, len(patterns))
	for _, p := range patterns {
		byName[p.Name] = p
	}
	return &Library{patterns: patterns, byName: byName}
}

func defaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:             "count",
			Description:      "Count entities of a given label",
			SemanticTemplate: "How many {label} are there",
			CypherTemplate:   "MATCH (n:{label}) RETURN count(n) as count",
			Parameters:       map[string]string{"label": "The node label to count"},
			trigger:          regexp.MustCompile(`^how many ([a-z0-9_ -]+?)\??$`),
		},
		{
			Name:             "list_all",
			Description:      "List all entities of a given label",
			SemanticTemplate: "Show all {label}",
			CypherTemplate:   "MATCH (n:{label}) RETURN n LIMIT 100",
			Parameters:       map[string]string{"label": "The node label to list"},
			trigger:          regexp.MustCompile(`^(?:show|list|get|display)(?: me)?(?: all| the| every)? ([a-z0-9_ -]+?)\??$`),
		},
		{
			Name:             "find_by_name",
			Description:      "Find an entity by its name property",
			SemanticTemplate: "Find the {label} named {name}",
			CypherTemplate:   "MATCH (n:{label}) WHERE toLower(n.name) CONTAINS toLower('{name}') RETURN n LIMIT 25",
			Parameters: map[string]string{
				"label": "The node label to search",
				"name":  "The name value to match",
			},
		},
		{
			Name:             "related_to",
			Description:      "List entities connected to a named entity",
			SemanticTemplate: "What is connected to the {label} named {name}",
			CypherTemplate:   "MATCH (n:{label})-[r]-(m) WHERE toLower(n.name) CONTAINS toLower('{name}') RETURN n, r, m LIMIT 50",
			Parameters: map[string]string{
				"label": "The node label of the anchor entity",
				"name":  "The name of the anchor entity",
			},
		},
	}
}

// Get returns the named pattern.
func (l *Library) Get(name string) (Pattern, bool) {
	p, ok := l.byName[name]
	return p, ok
}

// All returns the catalog in order.
func (l *Library) All() []Pattern {
	return l.patterns
}

// Instantiate substitutes params into the named pattern's semantic template.
// Every declared parameter must be supplied; missing parameters are a hard
// error.
func (l *Library) Instantiate(name string, params map[string]string) (string, error) {
	p, ok := l.byName[name]
	if !ok {
		return "", fmt.Errorf("unknown pattern %q", name)
	}
	return substitute(p.SemanticTemplate, p.Parameters, params)
}

// InstantiateCypher substitutes params into the named pattern's query
// template, with the same all-parameters-required rule.
func (l *Library) InstantiateCypher(name string, params map[string]string) (string, error) {
	p, ok := l.byName[name]
	if !ok {
		return "", fmt.Errorf("unknown pattern %q", name)
	}
	return substitute(p.CypherTemplate, p.Parameters, params)
}

func substitute(template string, declared map[string]string, params map[string]string) (string, error) {
	for name := range declared {
		if _, ok := params[name]; !ok {
			return "", fmt.Errorf("missing parameter %q", name)
		}
	}
	return placeholderRe.ReplaceAllStringFunc(template, func(token string) string {
		name := token[1 : len(token)-1]
		if value, ok := params[name]; ok {
			return value
		}
		return token
	}), nil
}

// Detect tests the question against each pattern's trigger in catalog order.
// The captured subject must resolve to one of the schema labels (singular or
// plural, case-insensitive) for a detection to fire.
func (l *Library) Detect(question string, labels []string) *Detection {
	normalized := util.NormalizeText(question)

	for _, p := range l.patterns {
		if p.trigger == nil {
			continue
		}
		groups := p.trigger.FindStringSubmatch(normalized)
		if groups == nil {
			continue
		}

		subject := groups[len(groups)-1]
		label := resolveLabel(subject, labels)
		if label == "" {
			continue
		}

		cypher, err := l.InstantiateCypher(p.Name, map[string]string{"label": label})
		if err != nil {
			continue
		}
		return &Detection{Pattern: p, Label: label, Cypher: cypher}
	}
	return nil
}

// resolveLabel maps a question subject like "customers" onto a schema label
// like "Customer", tolerating plural forms.
func resolveLabel(subject string, labels []string) string {
	subject = strings.TrimSpace(subject)
	singular := strings.TrimSuffix(subject, "s")

	for _, label := range labels {
		lowered := strings.ToLower(label)
		if lowered == subject || lowered == singular {
			return label
		}
		if lowered+"s" == subject || lowered+"es" == subject {
			return label
		}
	}
	return ""
}
