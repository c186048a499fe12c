package response

import (
	"regexp"
	"strings"
)

// Visualization is a rendering suggestion for the result, with the reason it
// was suggested.
type Visualization struct {
	Type      string `json:"type"`
	Rationale string `json:"rationale"`
}

// Visualization types.
const (
	VisKPI   = "kpi"
	VisGraph = "graph"
	VisTable = "table"
	VisBar   = "bar"
	VisLine  = "line"
)

var (
	countProjectionRe     = regexp.MustCompile(`(?i)\bcount\s*\(`)
	aggregateProjectionRe = regexp.MustCompile(`(?i)\b(count|sum|avg|min|max|collect)\s*\(`)
)

// SuggestVisualizations proposes renderings from the query shape and result
// data. Several suggestions can co-occur; a table is suggested alongside the
// others whenever the result is genuinely tabular, and stands alone when
// nothing else fits.
func SuggestVisualizations(cypher string, rows []map[string]any) []Visualization {
	var suggestions []Visualization

	if countProjectionRe.MatchString(cypher) && len(rows) == 1 {
		suggestions = append(suggestions, Visualization{
			Type:      VisKPI,
			Rationale: "A single aggregated number reads best as a KPI card.",
		})
	}

	if returnsRelationships(cypher, rows) {
		suggestions = append(suggestions, Visualization{
			Type:      VisGraph,
			Rationale: "The result contains relationships between entities.",
		})
	}

	if len(rows) > 1 {
		if len(columnNames(rows)) > 1 {
			suggestions = append(suggestions, Visualization{
				Type:      VisTable,
				Rationale: "Multiple rows and columns read naturally as a table.",
			})
		}
		if aggregateProjectionRe.MatchString(cypher) && len(numericColumns(rows)) > 0 {
			suggestions = append(suggestions, Visualization{
				Type:      VisBar,
				Rationale: "Aggregated values across rows compare well as bars.",
			})
		}
		if hasColumnContaining(rows, "date") || hasColumnContaining(rows, "time") ||
			hasColumnContaining(rows, "year") || hasColumnContaining(rows, "month") {
			suggestions = append(suggestions, Visualization{
				Type:      VisLine,
				Rationale: "The result has a time dimension.",
			})
		}
	}

	if len(suggestions) == 0 {
		suggestions = append(suggestions, Visualization{
			Type:      VisTable,
			Rationale: "No specialized rendering fits; a table always works.",
		})
	}
	return suggestions
}

// returnsRelationships checks for relationship markers in the query or for
// relationship-shaped columns in the data.
func returnsRelationships(cypher string, rows []map[string]any) bool {
	if strings.Contains(cypher, "-[") || strings.Contains(cypher, "]-") {
		return true
	}
	for _, row := range rows {
		if _, ok := row["relationships"]; ok {
			return true
		}
		for name := range row {
			if strings.HasSuffix(name, ".type") {
				return true
			}
		}
	}
	return false
}
