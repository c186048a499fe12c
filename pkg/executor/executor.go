package executor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/askgraph/askgraph/pkg/generator"
	"github.com/askgraph/askgraph/pkg/graph"
	"github.com/askgraph/askgraph/pkg/logger"
)

var (
	returnClauseRe = regexp.MustCompile(`(?is)\bRETURN\b.*$`)
	skipLimitRe    = regexp.MustCompile(`(?i)\s+\b(SKIP|LIMIT)\s+\d+\b`)
	countRe        = regexp.MustCompile(`(?i)\bcount\s*\(`)
)

// Config holds the execution knobs.
type Config struct {
	DefaultLimit       int
	MaxLimit           int
	Timeout            time.Duration
	ReadOnly           bool
	SlowQueryThreshold time.Duration
}

// DefaultConfig returns the standard execution settings.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:       100,
		MaxLimit:           1000,
		Timeout:            30 * time.Second,
		ReadOnly:           true,
		SlowQueryThreshold: 5 * time.Second,
	}
}

// Stats describes one execution.
type Stats struct {
	ExecutionTimeMs int64 `json:"execution_time_ms"`
	RowsReturned    int   `json:"rows_returned"`
}

// Metadata echoes the effective execution settings back to the caller.
type Metadata struct {
	Format    Format `json:"format"`
	ReadOnly  bool   `json:"read_only"`
	TimeoutMs int64  `json:"timeout_ms"`
}

// Result is the outcome of a successful execution.
type Result struct {
	Success  bool             `json:"success"`
	Data     []map[string]any `json:"data"`
	Stats    Stats            `json:"stats"`
	Metadata Metadata         `json:"metadata"`
}

// PageInfo describes one page of a paginated execution. Pages are 1-indexed.
type PageInfo struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// PaginatedResult bundles a page of rows with its position in the whole
// result set.
type PaginatedResult struct {
	Result
	PageInfo PageInfo `json:"page_info"`
}

// Executor runs validated queries against the graph store under the safety
// constraints: read-only enforcement before dispatch, a result-size limit,
// and a hard execution deadline.
type Executor struct {
	store  graph.GraphStore
	config Config
}

// NewExecutor creates an executor over the given store.
func NewExecutor(store graph.GraphStore, config Config) *Executor {
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 100
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = 1000
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Executor{store: store, config: config}
}

// Execute runs the query and formats its rows. In read-only mode a query
// containing write keywords fails closed before reaching the store. Queries
// without a LIMIT get the default limit appended, except aggregations.
func (e *Executor) Execute(
	ctx context.Context,
	query string,
	params map[string]any,
	format Format,
) (*Result, error) {
	prepared, execErr := e.prepare(query)
	if execErr != nil {
		return nil, execErr
	}

	rows, elapsed, execErr := e.run(ctx, prepared, params)
	if execErr != nil {
		return nil, execErr
	}

	if format == "" {
		format = FormatTable
	}
	return &Result{
		Success: true,
		Data:    FormatRows(rows, format),
		Stats: Stats{
			ExecutionTimeMs: elapsed.Milliseconds(),
			RowsReturned:    len(rows),
		},
		Metadata: Metadata{
			Format:    format,
			ReadOnly:  e.config.ReadOnly,
			TimeoutMs: e.config.Timeout.Milliseconds(),
		},
	}, nil
}

// ExecuteCount runs the query as a count. A query with a MATCH prefix has its
// RETURN clause replaced by a count(*) projection; anything else is wrapped
// in a subquery and counted from outside.
func (e *Executor) ExecuteCount(ctx context.Context, query string, params map[string]any) (int, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return 0, &ExecError{Kind: KindInvalidInput, Message: "query must not be empty"}
	}
	if e.config.ReadOnly && generator.ContainsWriteKeyword(trimmed) {
		return 0, &ExecError{Kind: KindReadOnlyViolation, Message: "write operations are not allowed"}
	}

	countQuery := rewriteAsCount(trimmed)
	rows, _, execErr := e.run(ctx, countQuery, params)
	if execErr != nil {
		return 0, execErr
	}
	if len(rows) == 0 {
		return 0, nil
	}

	for _, value := range rows[0] {
		if scalar, ok := value.(graph.Scalar); ok {
			switch n := scalar.Val.(type) {
			case int64:
				return int(n), nil
			case int:
				return n, nil
			case float64:
				return int(n), nil
			}
		}
	}
	return 0, &ExecError{Kind: KindExecution, Message: "count query returned no numeric value"}
}

// ExecutePaginated runs the query one page at a time. Page numbers are
// 1-indexed; out-of-range values are clamped instead of erroring. The total
// is counted first so the page info is exact.
func (e *Executor) ExecutePaginated(
	ctx context.Context,
	query string,
	params map[string]any,
	page int,
	perPage int,
	format Format,
) (*PaginatedResult, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = e.config.DefaultLimit
	}
	if perPage > e.config.MaxLimit {
		perPage = e.config.MaxLimit
	}

	total, err := e.ExecuteCount(ctx, query, params)
	if err != nil {
		return nil, err
	}

	totalPages := (total + perPage - 1) / perPage
	if totalPages > 0 && page > totalPages {
		page = totalPages
	}

	stripped := strings.TrimSpace(skipLimitRe.ReplaceAllString(query, ""))
	paged := fmt.Sprintf("%s SKIP %d LIMIT %d", stripped, (page-1)*perPage, perPage)

	prepared, execErr := e.prepare(paged)
	if execErr != nil {
		return nil, execErr
	}
	rows, elapsed, execErr := e.run(ctx, prepared, params)
	if execErr != nil {
		return nil, execErr
	}

	if format == "" {
		format = FormatTable
	}
	return &PaginatedResult{
		Result: Result{
			Success: true,
			Data:    FormatRows(rows, format),
			Stats: Stats{
				ExecutionTimeMs: elapsed.Milliseconds(),
				RowsReturned:    len(rows),
			},
			Metadata: Metadata{
				Format:    format,
				ReadOnly:  e.config.ReadOnly,
				TimeoutMs: e.config.Timeout.Milliseconds(),
			},
		},
		PageInfo: PageInfo{
			Page:       page,
			PerPage:    perPage,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

// Explain dry-runs the query through the store's plan facility.
func (e *Executor) Explain(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	prepared, execErr := e.prepare(query)
	if execErr != nil {
		return nil, execErr
	}

	runCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	rows, err := e.store.Explain(runCtx, prepared, params)
	if err != nil {
		return nil, e.classify(err, runCtx, 0)
	}
	return formatJSON(rows), nil
}

// Test reports whether the query plans without error.
func (e *Executor) Test(ctx context.Context, query string, params map[string]any) bool {
	_, err := e.Explain(ctx, query, params)
	return err == nil
}

// Cancel is a best-effort attempt to stop a running query.
func (e *Executor) Cancel(ctx context.Context, queryID string) error {
	return e.store.Cancel(ctx, queryID)
}

// prepare validates and normalizes a query before dispatch.
func (e *Executor) prepare(query string) (string, *ExecError) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", &ExecError{Kind: KindInvalidInput, Message: "query must not be empty"}
	}
	if e.config.ReadOnly && generator.ContainsWriteKeyword(trimmed) {
		return "", &ExecError{Kind: KindReadOnlyViolation, Message: "write operations are not allowed"}
	}
	if !generator.HasLimitClause(trimmed) && !countRe.MatchString(trimmed) {
		trimmed = fmt.Sprintf("%s LIMIT %d", trimmed, e.config.DefaultLimit)
	}
	return trimmed, nil
}

// run executes with the configured deadline and classifies failures.
func (e *Executor) run(
	ctx context.Context,
	query string,
	params map[string]any,
) ([]graph.Row, time.Duration, *ExecError) {
	runCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.store.Query(runCtx, query, params)
	elapsed := time.Since(start)

	if err != nil {
		return nil, elapsed, e.classify(err, runCtx, elapsed)
	}

	if e.config.SlowQueryThreshold > 0 && elapsed > e.config.SlowQueryThreshold {
		logger.Warn("Slow query", "elapsed_ms", elapsed.Milliseconds(), "query", query)
	}
	return rows, elapsed, nil
}

// classify maps a store failure onto the error taxonomy. A deadline hit on
// the execution context is a timeout regardless of how the driver phrased it.
func (e *Executor) classify(err error, runCtx context.Context, elapsed time.Duration) *ExecError {
	if runCtx.Err() == context.DeadlineExceeded {
		return &ExecError{
			Kind:      KindTimeout,
			Message:   fmt.Sprintf("query exceeded the %s execution deadline", e.config.Timeout),
			ElapsedMs: elapsed.Milliseconds(),
		}
	}
	return &ExecError{
		Kind:      KindExecution,
		Message:   err.Error(),
		ElapsedMs: elapsed.Milliseconds(),
	}
}

// rewriteAsCount turns a query into its count form.
func rewriteAsCount(query string) string {
	upper := strings.ToUpper(query)
	if strings.HasPrefix(upper, "MATCH") && returnClauseRe.MatchString(query) {
		return returnClauseRe.ReplaceAllString(query, "RETURN count(*) as count")
	}
	return fmt.Sprintf("CALL { %s } RETURN count(*) as count", query)
}
