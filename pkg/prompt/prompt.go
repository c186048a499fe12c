package prompt

import (
	"sort"
	"strings"
	"time"

	"github.com/askgraph/askgraph/pkg/pattern"
	"github.com/askgraph/askgraph/pkg/retrieval"
)

// BuildContext carries everything sections may render from.
type BuildContext struct {
	Question     string
	Context      *retrieval.Context
	Patterns     *pattern.Library
	Feedback     string
	DefaultLimit int
	Now          time.Time
}

// Section renders one named block of the generation prompt. Sections decide
// for themselves whether they apply to a given build.
type Section interface {
	Name() string
	Priority() int
	ShouldInclude(bc *BuildContext) bool
	Render(bc *BuildContext) string
}

// Hook produces extra text before or after a named section. Hooks returning
// an empty string contribute nothing.
type Hook func(bc *BuildContext) string

// Registry is an ordered, injectable collection of prompt sections. There is
// no package-level registry; each builder owns its own.
type Registry struct {
	sections []Section
	before   map[string][]Hook
	after    map[string][]Hook
}

// NewRegistry builds a registry from the given sections. Order of
// registration does not matter; rendering sorts by Priority.
func NewRegistry(sections ...Section) *Registry {
	return &Registry{
		sections: sections,
		before:   map[string][]Hook{},
		after:    map[string][]Hook{},
	}
}

// Register appends a section.
func (r *Registry) Register(s Section) {
	r.sections = append(r.sections, s)
}

// AddBefore registers a hook rendered immediately before the named section.
// Hooks on the same section run in registration order.
func (r *Registry) AddBefore(section string, hook Hook) {
	r.before[section] = append(r.before[section], hook)
}

// AddAfter registers a hook rendered immediately after the named section.
func (r *Registry) AddAfter(section string, hook Hook) {
	r.after[section] = append(r.after[section], hook)
}

// Render assembles the prompt: sections sorted by ascending priority, each
// wrapped by its before/after hooks, skipping sections whose ShouldInclude
// declines or whose rendering is empty.
func (r *Registry) Render(bc *BuildContext) string {
	ordered := make([]Section, len(r.sections))
	copy(ordered, r.sections)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})

	var blocks []string
	for _, section := range ordered {
		if !section.ShouldInclude(bc) {
			continue
		}

		for _, hook := range r.before[section.Name()] {
			if text := strings.TrimSpace(hook(bc)); text != "" {
				blocks = append(blocks, text)
			}
		}

		if text := strings.TrimSpace(section.Render(bc)); text != "" {
			blocks = append(blocks, text)
		}

		for _, hook := range r.after[section.Name()] {
			if text := strings.TrimSpace(hook(bc)); text != "" {
				blocks = append(blocks, text)
			}
		}
	}
	return strings.Join(blocks, "\n\n")
}
