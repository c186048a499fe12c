package graph

import (
	"context"
)

// Schema describes the shape of the graph: node labels, relationship types,
// and property keys, normalized from whatever key names the store reports.
type Schema struct {
	Labels            []string `json:"labels"`
	RelationshipTypes []string `json:"relationships"`
	PropertyKeys      []string `json:"properties"`
}

// Value is a single cell in a result row. It is a closed union: Scalar,
// NodeRef, RelRef, or List. Formatters switch exhaustively over these four
// instead of sniffing driver-specific types.
type Value interface {
	graphValue()
}

// Scalar wraps a plain value (string, number, bool, time, nil).
type Scalar struct {
	Val any `json:"value"`
}

// NodeRef is a node projected into a result row.
type NodeRef struct {
	ID         string         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
}

// RelRef is a relationship projected into a result row. Start and End hold
// the element ids of the endpoint nodes.
type RelRef struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Start      string         `json:"start"`
	End        string         `json:"end"`
	Properties map[string]any `json:"properties"`
}

// List is an ordered collection of values, e.g. from collect().
type List struct {
	Items []Value `json:"items"`
}

func (Scalar) graphValue()  {}
func (NodeRef) graphValue() {}
func (RelRef) graphValue()  {}
func (List) graphValue()    {}

// Row is one result record, keyed by the query's return column names.
type Row map[string]Value

// GraphStore defines the interface for executing queries against a graph
// database and inspecting its schema. Implementations convert their native
// row representation into the Value union at the boundary.
type GraphStore interface {
	Query(ctx context.Context, query string, params map[string]any) ([]Row, error)
	GetSchema(ctx context.Context) (Schema, error)

	// Explain dry-runs the query through the store's plan facility without
	// touching data.
	Explain(ctx context.Context, query string, params map[string]any) ([]Row, error)

	// Cancel is a best-effort attempt to stop a running query by id.
	// Implementations swallow "already finished or unknown id" conditions.
	Cancel(ctx context.Context, queryID string) error
}
