package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/askgraph/askgraph/pkg/graph"
)

// fakeStore answers queries from a script and can simulate latency.
type fakeStore struct {
	rows    map[string][]graph.Row
	err     error
	delay   time.Duration
	queries []string
}

func (f *fakeStore) Query(ctx context.Context, query string, params map[string]any) ([]graph.Row, error) {
	f.queries = append(f.queries, query)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[query], nil
}

func (f *fakeStore) GetSchema(ctx context.Context) (graph.Schema, error) {
	return graph.Schema{}, nil
}

func (f *fakeStore) Explain(ctx context.Context, query string, params map[string]any) ([]graph.Row, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []graph.Row{{"plan": graph.Scalar{Val: "NodeByLabelScan"}}}, nil
}

func (f *fakeStore) Cancel(ctx context.Context, queryID string) error { return nil }

func TestExecute_ReadOnlyFailsClosed(t *testing.T) {
	store := &fakeStore{}
	e := NewExecutor(store, DefaultConfig())

	_, err := e.Execute(context.Background(), "MATCH (n) DETACH DELETE n RETURN n LIMIT 10", nil, FormatTable)
	var execErr *ExecError
	if !errors.As(err, &execErr) || execErr.Kind != KindReadOnlyViolation {
		t.Fatalf("expected read-only violation, got %v", err)
	}
	if len(store.queries) != 0 {
		t.Fatal("a rejected query must never reach the store")
	}
}

func TestExecute_InjectsLimit(t *testing.T) {
	store := &fakeStore{
		rows: map[string][]graph.Row{
			"MATCH (n:Customer) RETURN n LIMIT 100": {
				{"n": graph.NodeRef{ID: "1", Labels: []string{"Customer"}, Properties: map[string]any{"name": "Acme"}}},
			},
		},
	}
	e := NewExecutor(store, DefaultConfig())

	result, err := e.Execute(context.Background(), "MATCH (n:Customer) RETURN n", nil, FormatTable)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stats.RowsReturned != 1 {
		t.Fatalf("expected 1 row, got %d", result.Stats.RowsReturned)
	}
	if got := store.queries[0]; got != "MATCH (n:Customer) RETURN n LIMIT 100" {
		t.Fatalf("limit must be injected: %q", got)
	}
}

func TestExecute_CountQueriesKeepNoLimit(t *testing.T) {
	store := &fakeStore{
		rows: map[string][]graph.Row{
			"MATCH (n:Order) RETURN count(n) as count": {
				{"count": graph.Scalar{Val: int64(42)}},
			},
		},
	}
	e := NewExecutor(store, DefaultConfig())

	_, err := e.Execute(context.Background(), "MATCH (n:Order) RETURN count(n) as count", nil, FormatTable)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(store.queries[0], "LIMIT") {
		t.Fatalf("aggregations must not get a limit appended: %q", store.queries[0])
	}
}

func TestExecute_Timeout(t *testing.T) {
	store := &fakeStore{delay: 50 * time.Millisecond}
	config := DefaultConfig()
	config.Timeout = 10 * time.Millisecond
	e := NewExecutor(store, config)

	_, err := e.Execute(context.Background(), "MATCH (n) RETURN n LIMIT 10", nil, FormatTable)
	if !IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
	var execErr *ExecError
	errors.As(err, &execErr)
	if execErr.ElapsedMs < 10 {
		t.Fatalf("timeout must report elapsed time, got %dms", execErr.ElapsedMs)
	}
}

func TestExecute_StoreErrorIsNotTimeout(t *testing.T) {
	store := &fakeStore{err: errors.New("syntax error near RETURN")}
	e := NewExecutor(store, DefaultConfig())

	_, err := e.Execute(context.Background(), "MATCH (n) RETURN n LIMIT 10", nil, FormatTable)
	var execErr *ExecError
	if !errors.As(err, &execErr) || execErr.Kind != KindExecution {
		t.Fatalf("expected execution error, got %v", err)
	}
}

func TestExecute_EmptyQuery(t *testing.T) {
	e := NewExecutor(&fakeStore{}, DefaultConfig())

	_, err := e.Execute(context.Background(), "   ", nil, FormatTable)
	var execErr *ExecError
	if !errors.As(err, &execErr) || execErr.Kind != KindInvalidInput {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestExecuteCount_RewritesReturn(t *testing.T) {
	store := &fakeStore{
		rows: map[string][]graph.Row{
			"MATCH (n:Order) RETURN count(*) as count": {
				{"count": graph.Scalar{Val: int64(7)}},
			},
		},
	}
	e := NewExecutor(store, DefaultConfig())

	count, err := e.ExecuteCount(context.Background(), "MATCH (n:Order) RETURN n LIMIT 5", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 7 {
		t.Fatalf("expected 7, got %d", count)
	}
}

func TestExecuteCount_WrapsNonMatchQueries(t *testing.T) {
	store := &fakeStore{
		rows: map[string][]graph.Row{
			"CALL { UNWIND range(1, 3) as x RETURN x } RETURN count(*) as count": {
				{"count": graph.Scalar{Val: int64(3)}},
			},
		},
	}
	e := NewExecutor(store, DefaultConfig())

	count, err := e.ExecuteCount(context.Background(), "UNWIND range(1, 3) as x RETURN x", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}
}

func TestExecutePaginated(t *testing.T) {
	store := &fakeStore{
		rows: map[string][]graph.Row{
			"MATCH (n:Customer) RETURN count(*) as count": {
				{"count": graph.Scalar{Val: int64(25)}},
			},
			"MATCH (n:Customer) RETURN n SKIP 10 LIMIT 10": {
				{"n": graph.NodeRef{ID: "11", Properties: map[string]any{"name": "Pg2"}}},
			},
		},
	}
	e := NewExecutor(store, DefaultConfig())

	result, err := e.ExecutePaginated(context.Background(), "MATCH (n:Customer) RETURN n", nil, 2, 10, FormatTable)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PageInfo.Page != 2 || result.PageInfo.PerPage != 10 {
		t.Fatalf("unexpected page info: %+v", result.PageInfo)
	}
	if result.PageInfo.Total != 25 || result.PageInfo.TotalPages != 3 {
		t.Fatalf("unexpected totals: %+v", result.PageInfo)
	}
}

func TestExecutePaginated_ClampsPage(t *testing.T) {
	store := &fakeStore{
		rows: map[string][]graph.Row{
			"MATCH (n:Customer) RETURN count(*) as count": {
				{"count": graph.Scalar{Val: int64(25)}},
			},
			"MATCH (n:Customer) RETURN n SKIP 20 LIMIT 10": {
				{"n": graph.NodeRef{ID: "21", Properties: map[string]any{"name": "Last"}}},
			},
			"MATCH (n:Customer) RETURN n SKIP 0 LIMIT 10": {
				{"n": graph.NodeRef{ID: "1", Properties: map[string]any{"name": "First"}}},
			},
		},
	}
	e := NewExecutor(store, DefaultConfig())

	result, err := e.ExecutePaginated(context.Background(), "MATCH (n:Customer) RETURN n", nil, 99, 10, FormatTable)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PageInfo.Page != 3 {
		t.Fatalf("page must clamp to the last page, got %d", result.PageInfo.Page)
	}

	result, err = e.ExecutePaginated(context.Background(), "MATCH (n:Customer) RETURN n", nil, -5, 10, FormatTable)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PageInfo.Page != 1 {
		t.Fatalf("page must clamp to 1, got %d", result.PageInfo.Page)
	}
}

func TestTest(t *testing.T) {
	e := NewExecutor(&fakeStore{}, DefaultConfig())
	if !e.Test(context.Background(), "MATCH (n) RETURN n LIMIT 10", nil) {
		t.Fatal("expected a plannable query to pass")
	}

	failing := NewExecutor(&fakeStore{err: errors.New("bad syntax")}, DefaultConfig())
	if failing.Test(context.Background(), "MATCH (n RETURN", nil) {
		t.Fatal("expected a failing plan to report false")
	}
}
