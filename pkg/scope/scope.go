package scope

import (
	"strings"

	"github.com/askgraph/askgraph/internal/util"
)

// SpecificationType describes how a scope translates into a query fragment.
type SpecificationType string

const (
	// PropertyFilter scopes restrict an entity by property values.
	PropertyFilter SpecificationType = "property_filter"
	// RelationshipTraversal scopes follow a relationship to another entity.
	RelationshipTraversal SpecificationType = "relationship_traversal"
	// Pattern scopes instantiate a named query pattern with parameters.
	Pattern SpecificationType = "pattern"
	// Generic scopes carry only a concept description.
	Generic SpecificationType = "generic"
)

// RelationshipSpec describes the traversal side of a relationship scope.
type RelationshipSpec struct {
	Relationship string `json:"relationship"`
	Direction    string `json:"direction"`
	TargetLabel  string `json:"target_label"`
}

// Scope is a named business concept (e.g. "volunteers") with a declarative
// specification convertible to a graph query fragment. Scopes are produced
// by an external discovery step and consumed read-only here.
type Scope struct {
	ScopeName         string            `json:"scope_name"`
	Entity            string            `json:"entity"`
	SpecificationType SpecificationType `json:"specification_type"`
	Concept           string            `json:"concept"`

	Filter           map[string]any    `json:"filter,omitempty"`
	RelationshipSpec *RelationshipSpec `json:"relationship_spec,omitempty"`
	PatternParams    map[string]string `json:"pattern_params,omitempty"`

	CypherPattern string   `json:"cypher_pattern,omitempty"`
	BusinessRules []string `json:"business_rules,omitempty"`
	Examples      []string `json:"examples,omitempty"`
}

// EntityConfig describes one entity known to the system: its graph label,
// the names users call it by, and the scopes defined on it.
type EntityConfig struct {
	Label       string           `json:"label"`
	Aliases     []string         `json:"aliases,omitempty"`
	Description string           `json:"description,omitempty"`
	Properties  []string         `json:"properties,omitempty"`
	Scopes      map[string]Scope `json:"scopes,omitempty"`
}

// Config is the externally supplied entity-configuration map, keyed by
// entity name.
type Config map[string]EntityConfig

// Detection holds the entities and scopes mentioned in a question.
type Detection struct {
	DetectedEntities []string                `json:"detected_entities"`
	EntityMetadata   map[string]EntityConfig `json:"entity_metadata"`
	DetectedScopes   map[string]Scope        `json:"detected_scopes"`
}

// Detect finds entity and scope mentions in a question by substring matching
// against entity names, aliases, and scope names. Matching is normalized
// (case- and whitespace-insensitive) but purely lexical; semantic detection
// is the matcher's job.
func Detect(question string, config Config) Detection {
	detection := Detection{
		DetectedEntities: []string{},
		EntityMetadata:   map[string]EntityConfig{},
		DetectedScopes:   map[string]Scope{},
	}

	normalized := util.NormalizeText(question)
	if normalized == "" {
		return detection
	}

	for name, entity := range config {
		if mentions(normalized, name) || mentionsAny(normalized, entity.Aliases) {
			detection.DetectedEntities = append(detection.DetectedEntities, name)
			detection.EntityMetadata[name] = entity
		}

		for scopeName, sc := range entity.Scopes {
			if mentions(normalized, scopeName) || mentions(normalized, sc.Concept) {
				detection.DetectedScopes[scopeName] = sc
			}
		}
	}

	return detection
}

func mentions(normalized, term string) bool {
	term = util.NormalizeText(term)
	if term == "" {
		return false
	}
	return strings.Contains(normalized, term)
}

func mentionsAny(normalized string, terms []string) bool {
	for _, term := range terms {
		if mentions(normalized, term) {
			return true
		}
	}
	return false
}
