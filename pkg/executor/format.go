package executor

import (
	"fmt"

	"github.com/askgraph/askgraph/pkg/graph"
)

// Format selects the result shape.
type Format string

const (
	// FormatTable flattens nodes and relationships into one level per row.
	FormatTable Format = "table"
	// FormatGraph collects unique nodes and relationships across all rows.
	FormatGraph Format = "graph"
	// FormatJSON preserves the structural shape of every value.
	FormatJSON Format = "json"
)

// FormatRows converts result rows into the requested shape. Unknown formats
// fall back to table.
func FormatRows(rows []graph.Row, format Format) []map[string]any {
	switch format {
	case FormatGraph:
		return formatGraph(rows)
	case FormatJSON:
		return formatJSON(rows)
	default:
		return formatTable(rows)
	}
}

// formatTable flattens each row: node and relationship properties become
// dotted columns, scalars keep their column name.
func formatTable(rows []graph.Row) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		flat := make(map[string]any, len(row))
		for column, value := range row {
			flattenValue(flat, column, value)
		}
		out = append(out, flat)
	}
	return out
}

func flattenValue(flat map[string]any, column string, value graph.Value) {
	switch v := value.(type) {
	case graph.Scalar:
		flat[column] = v.Val
	case graph.NodeRef:
		flat[column+".labels"] = v.Labels
		for key, prop := range v.Properties {
			flat[column+"."+key] = prop
		}
	case graph.RelRef:
		flat[column+".type"] = v.Type
		for key, prop := range v.Properties {
			flat[column+"."+key] = prop
		}
	case graph.List:
		items := make([]any, len(v.Items))
		for i, item := range v.Items {
			items[i] = jsonValue(item)
		}
		flat[column] = items
	default:
		flat[column] = fmt.Sprintf("%v", value)
	}
}

// formatGraph collects the distinct nodes and relationships mentioned in any
// row, keyed by element id, into a single synthetic row.
func formatGraph(rows []graph.Row) []map[string]any {
	nodes := map[string]map[string]any{}
	relationships := map[string]map[string]any{}

	var collect func(value graph.Value)
	collect = func(value graph.Value) {
		switch v := value.(type) {
		case graph.NodeRef:
			nodes[v.ID] = map[string]any{
				"id":         v.ID,
				"labels":     v.Labels,
				"properties": v.Properties,
			}
		case graph.RelRef:
			relationships[v.ID] = map[string]any{
				"id":         v.ID,
				"type":       v.Type,
				"start":      v.Start,
				"end":        v.End,
				"properties": v.Properties,
			}
		case graph.List:
			for _, item := range v.Items {
				collect(item)
			}
		}
	}

	for _, row := range rows {
		for _, value := range row {
			collect(value)
		}
	}

	nodeList := make([]map[string]any, 0, len(nodes))
	for _, node := range nodes {
		nodeList = append(nodeList, node)
	}
	relList := make([]map[string]any, 0, len(relationships))
	for _, rel := range relationships {
		relList = append(relList, rel)
	}

	return []map[string]any{{
		"nodes":         nodeList,
		"relationships": relList,
	}}
}

// formatJSON keeps every value's structure: nodes and relationships become
// nested objects, lists stay lists.
func formatJSON(rows []graph.Row) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		encoded := make(map[string]any, len(row))
		for column, value := range row {
			encoded[column] = jsonValue(value)
		}
		out = append(out, encoded)
	}
	return out
}

func jsonValue(value graph.Value) any {
	switch v := value.(type) {
	case graph.Scalar:
		return v.Val
	case graph.NodeRef:
		return map[string]any{
			"id":         v.ID,
			"labels":     v.Labels,
			"properties": v.Properties,
		}
	case graph.RelRef:
		return map[string]any{
			"id":         v.ID,
			"type":       v.Type,
			"start":      v.Start,
			"end":        v.End,
			"properties": v.Properties,
		}
	case graph.List:
		items := make([]any, len(v.Items))
		for i, item := range v.Items {
			items[i] = jsonValue(item)
		}
		return items
	default:
		return fmt.Sprintf("%v", value)
	}
}
