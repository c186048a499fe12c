package generator

import (
	"fmt"
	"regexp"
	"strings"
)

// Write operations rejected in read-only mode.
var (
	writeKeywordRe = regexp.MustCompile(`(?i)\b(DELETE|REMOVE|DROP|CREATE|MERGE|SET|DETACH)\b`)
	limitRe        = regexp.MustCompile(`(?i)\bLIMIT\s+\d+\b`)
	matchRe        = regexp.MustCompile(`(?i)\bMATCH\b`)
	returnRe       = regexp.MustCompile(`(?i)\bRETURN\b`)
	whereRe        = regexp.MustCompile(`(?i)\bWHERE\b`)
	traversalRe    = regexp.MustCompile(`-\[|\]-`)
	aggregationRe  = regexp.MustCompile(`(?i)\b(count|sum|avg|min|max|collect)\s*\(`)

	clauseBoundaryRe = regexp.MustCompile(
		`(?is)\b(DELETE|REMOVE|DROP|CREATE|MERGE|SET|DETACH)\b.*?(\bMATCH\b|\bWHERE\b|\bRETURN\b|\bWITH\b|\bORDER\b|\bLIMIT\b|\bSKIP\b|\bUNWIND\b|$)`,
	)
)

// ValidationResult reports whether a query may run and why not.
type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Errors     []string `json:"errors"`
	Warnings   []string `json:"warnings"`
	Complexity int      `json:"complexity"`
	IsReadOnly bool     `json:"is_read_only"`
}

// ContainsWriteKeyword reports whether the query contains a write operation,
// matched on word boundaries and case-insensitively. Substrings inside
// identifiers (e.g. a "created_at" property) do not count.
func ContainsWriteKeyword(query string) bool {
	return writeKeywordRe.MatchString(query)
}

// HasLimitClause reports whether the query already bounds its result size.
func HasLimitClause(query string) bool {
	return limitRe.MatchString(query)
}

// ComplexityScore estimates query cost from its clause structure:
// 10 per MATCH, 5 per WHERE, 8 per relationship traversal, 3 per aggregation.
func ComplexityScore(query string) int {
	score := 10 * len(matchRe.FindAllString(query, -1))
	score += 5 * len(whereRe.FindAllString(query, -1))
	score += 8 * countTraversals(query)
	score += 3 * len(aggregationRe.FindAllString(query, -1))
	return score
}

// countTraversals counts relationship hops. Each hop contributes both a `-[`
// and a `]-` marker, so the raw marker count is halved, rounding up for
// degenerate fragments.
func countTraversals(query string) int {
	markers := len(traversalRe.FindAllString(query, -1))
	return (markers + 1) / 2
}

// Validate checks a query against the safety and sanity rules. Write
// keywords are fatal unless allowWrite is set; a missing MATCH or RETURN is
// fatal; a missing LIMIT and a complexity above ceiling are warnings only.
func Validate(query string, allowWrite bool, complexityCeiling int) ValidationResult {
	result := ValidationResult{
		Errors:   []string{},
		Warnings: []string{},
	}

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		// No text, no write keyword.
		result.IsReadOnly = true
		result.Errors = append(result.Errors, "query is empty")
		return result
	}

	result.IsReadOnly = !ContainsWriteKeyword(trimmed)
	if !result.IsReadOnly && !allowWrite {
		for _, kw := range writeKeywordRe.FindAllString(trimmed, -1) {
			result.Errors = append(result.Errors,
				fmt.Sprintf("query contains forbidden keyword %s", strings.ToUpper(kw)))
		}
	}

	if !matchRe.MatchString(trimmed) {
		result.Errors = append(result.Errors, "query has no MATCH clause")
	}
	if !returnRe.MatchString(trimmed) {
		result.Errors = append(result.Errors, "query has no RETURN clause")
	}

	if !HasLimitClause(trimmed) {
		result.Warnings = append(result.Warnings, "query has no LIMIT clause")
	}

	result.Complexity = ComplexityScore(trimmed)
	if complexityCeiling > 0 && result.Complexity > complexityCeiling {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("query complexity %d exceeds ceiling %d", result.Complexity, complexityCeiling))
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// Sanitize strips every write clause from the query (keyword through the next
// clause boundary) and appends a LIMIT when none exists. Sanitizing an
// already sanitized query returns it unchanged.
func Sanitize(query string, defaultLimit int) string {
	if defaultLimit <= 0 {
		defaultLimit = 100
	}

	cleaned := query
	for writeKeywordRe.MatchString(cleaned) {
		next := clauseBoundaryRe.ReplaceAllString(cleaned, "$2")
		if next == cleaned {
			// Keyword without a parseable clause; drop the keyword alone.
			next = writeKeywordRe.ReplaceAllString(cleaned, "")
		}
		cleaned = next
	}

	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned != "" && !HasLimitClause(cleaned) {
		cleaned = fmt.Sprintf("%s LIMIT %d", cleaned, defaultLimit)
	}
	return cleaned
}
