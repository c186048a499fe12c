package neo4j

import (
	"context"
	"fmt"

	"github.com/askgraph/askgraph/pkg/graph"
	"github.com/askgraph/askgraph/pkg/logger"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// GraphNeo4jStore implements graph.GraphStore using the official Neo4j Go
// driver. Queries run through ExecuteQuery with eagerly buffered results.
type GraphNeo4jStore struct {
	driver neo4j.DriverWithContext
	dbName string
}

// NewGraphNeo4jStoreParams contains connection configuration for a Neo4j instance.
type NewGraphNeo4jStoreParams struct {
	URI      string
	Username string
	Password string
	DBName   string
}

// NewGraphNeo4jStore creates a store connected to the configured Neo4j
// instance. The connection is not verified here; call Verify for that.
func NewGraphNeo4jStore(params NewGraphNeo4jStoreParams) (*GraphNeo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(
		params.URI,
		neo4j.BasicAuth(params.Username, params.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create Neo4j driver: %w", err)
	}
	return &GraphNeo4jStore{driver: driver, dbName: params.DBName}, nil
}

// Verify checks connectivity to the Neo4j instance.
func (s *GraphNeo4jStore) Verify(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// Close releases the underlying driver connections.
func (s *GraphNeo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Query executes a Cypher query with parameters and converts every record
// into the graph.Value row representation.
func (s *GraphNeo4jStore) Query(
	ctx context.Context,
	query string,
	params map[string]any,
) ([]graph.Row, error) {
	result, err := neo4j.ExecuteQuery(
		ctx,
		s.driver,
		query,
		params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.dbName),
	)
	if err != nil {
		return nil, fmt.Errorf("error executing neo4j query: %w", err)
	}

	rows := make([]graph.Row, 0, len(result.Records))
	for _, record := range result.Records {
		row := make(graph.Row, len(record.Keys))
		for i, key := range record.Keys {
			row[key] = convertValue(record.Values[i])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// GetSchema reads labels, relationship types, and property keys through the
// db.* introspection procedures.
func (s *GraphNeo4jStore) GetSchema(ctx context.Context) (graph.Schema, error) {
	schema := graph.Schema{}

	labels, err := s.queryStrings(ctx, "CALL db.labels() YIELD label RETURN label")
	if err != nil {
		return schema, fmt.Errorf("fetch labels: %w", err)
	}
	schema.Labels = labels

	relTypes, err := s.queryStrings(ctx, "CALL db.relationshipTypes() YIELD relationshipType RETURN relationshipType")
	if err != nil {
		return schema, fmt.Errorf("fetch relationship types: %w", err)
	}
	schema.RelationshipTypes = relTypes

	propKeys, err := s.queryStrings(ctx, "CALL db.propertyKeys() YIELD propertyKey RETURN propertyKey")
	if err != nil {
		return schema, fmt.Errorf("fetch property keys: %w", err)
	}
	schema.PropertyKeys = propKeys

	return schema, nil
}

// Explain dry-runs the query through Neo4j's EXPLAIN facility. No data is
// touched; the returned rows describe the plan.
func (s *GraphNeo4jStore) Explain(
	ctx context.Context,
	query string,
	params map[string]any,
) ([]graph.Row, error) {
	return s.Query(ctx, "EXPLAIN "+query, params)
}

// Cancel terminates a running query by id. Failures are swallowed: the query
// has usually already finished, or the id is unknown.
func (s *GraphNeo4jStore) Cancel(ctx context.Context, queryID string) error {
	_, err := neo4j.ExecuteQuery(
		ctx,
		s.driver,
		"CALL dbms.killQuery($id)",
		map[string]any{"id": queryID},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.dbName),
	)
	if err != nil {
		logger.Debug("Query cancel ignored", "query_id", queryID, "err", err)
	}
	return nil
}

func (s *GraphNeo4jStore) queryStrings(ctx context.Context, query string) ([]string, error) {
	result, err := neo4j.ExecuteQuery(
		ctx,
		s.driver,
		query,
		nil,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.dbName),
	)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(result.Records))
	for _, record := range result.Records {
		if len(record.Values) == 0 {
			continue
		}
		if value, ok := record.Values[0].(string); ok {
			out = append(out, value)
		}
	}
	return out, nil
}

func convertValue(value any) graph.Value {
	switch v := value.(type) {
	case dbtype.Node:
		return graph.NodeRef{
			ID:         v.GetElementId(),
			Labels:     v.Labels,
			Properties: v.Props,
		}
	case dbtype.Relationship:
		return graph.RelRef{
			ID:         v.GetElementId(),
			Type:       v.Type,
			Start:      v.StartElementId,
			End:        v.EndElementId,
			Properties: v.Props,
		}
	case []any:
		items := make([]graph.Value, 0, len(v))
		for _, item := range v {
			items = append(items, convertValue(item))
		}
		return graph.List{Items: items}
	default:
		return graph.Scalar{Val: v}
	}
}
