package executor

import (
	"testing"

	"github.com/askgraph/askgraph/pkg/graph"
)

func sampleRows() []graph.Row {
	node := graph.NodeRef{
		ID:         "n1",
		Labels:     []string{"Customer"},
		Properties: map[string]any{"name": "Acme", "city": "Oldenburg"},
	}
	rel := graph.RelRef{
		ID:         "r1",
		Type:       "PLACED",
		Start:      "n1",
		End:        "n2",
		Properties: map[string]any{"at": "2024-01-01"},
	}
	return []graph.Row{
		{"n": node, "r": rel, "total": graph.Scalar{Val: int64(42)}},
		{"n": node, "r": rel, "total": graph.Scalar{Val: int64(7)}},
	}
}

func TestFormatTable_Flattens(t *testing.T) {
	data := FormatRows(sampleRows(), FormatTable)
	if len(data) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(data))
	}

	row := data[0]
	if row["n.name"] != "Acme" {
		t.Fatalf("node properties must flatten to dotted columns: %v", row)
	}
	if row["r.type"] != "PLACED" {
		t.Fatalf("relationship type must flatten: %v", row)
	}
	if row["total"] != int64(42) {
		t.Fatalf("scalars keep their column: %v", row)
	}
}

func TestFormatGraph_Dedupes(t *testing.T) {
	data := FormatRows(sampleRows(), FormatGraph)
	if len(data) != 1 {
		t.Fatalf("graph format returns one synthetic row, got %d", len(data))
	}

	nodes, ok := data[0]["nodes"].([]map[string]any)
	if !ok || len(nodes) != 1 {
		t.Fatalf("expected 1 unique node, got %v", data[0]["nodes"])
	}
	rels, ok := data[0]["relationships"].([]map[string]any)
	if !ok || len(rels) != 1 {
		t.Fatalf("expected 1 unique relationship, got %v", data[0]["relationships"])
	}
	if rels[0]["start"] != "n1" || rels[0]["end"] != "n2" {
		t.Fatalf("relationship endpoints must survive: %v", rels[0])
	}
}

func TestFormatJSON_PreservesStructure(t *testing.T) {
	data := FormatRows(sampleRows(), FormatJSON)

	node, ok := data[0]["n"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested node object, got %T", data[0]["n"])
	}
	props, ok := node["properties"].(map[string]any)
	if !ok || props["name"] != "Acme" {
		t.Fatalf("node properties must nest: %v", node)
	}
	if data[0]["total"] != int64(42) {
		t.Fatalf("scalars stay plain: %v", data[0]["total"])
	}
}

func TestFormatRows_Lists(t *testing.T) {
	rows := []graph.Row{
		{"names": graph.List{Items: []graph.Value{
			graph.Scalar{Val: "a"},
			graph.Scalar{Val: "b"},
		}}},
	}

	data := FormatRows(rows, FormatTable)
	items, ok := data[0]["names"].([]any)
	if !ok || len(items) != 2 || items[0] != "a" {
		t.Fatalf("lists must flatten to plain slices: %v", data[0]["names"])
	}

	// Nodes inside collect() lists still show up in graph format.
	nested := []graph.Row{
		{"ns": graph.List{Items: []graph.Value{
			graph.NodeRef{ID: "x1", Labels: []string{"A"}},
		}}},
	}
	graphData := FormatRows(nested, FormatGraph)
	nodes := graphData[0]["nodes"].([]map[string]any)
	if len(nodes) != 1 || nodes[0]["id"] != "x1" {
		t.Fatalf("nested nodes must be collected: %v", nodes)
	}
}
