package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/askgraph/askgraph/pkg/vector"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgVectorStore implements vector.VectorStore on Postgres with the pgvector
// extension. All collections share two tables: a registry of collection
// names/dimensions and a point table keyed by (collection, id).
//
// Cosine distance (`<=>`) orders searches; scores are reported as
// 1 - distance so that identical vectors score 1.0.
type PgVectorStore struct {
	conn *pgxpool.Pool
}

// NewPgVectorStore creates a vector store backed by the given connection pool.
// The pool must have pgvector types registered (see pgvector-go/pgx).
func NewPgVectorStore(conn *pgxpool.Pool) *PgVectorStore {
	return &PgVectorStore{conn: conn}
}

// Search returns the closest points to the query vector in descending score
// order, dropping hits below scoreThreshold.
func (s *PgVectorStore) Search(
	ctx context.Context,
	collection string,
	vec []float32,
	limit int,
	filter vector.Filter,
	scoreThreshold float64,
) ([]vector.SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, payload, 1 - (embedding <=> $2) AS score
		FROM vector_points
		WHERE collection = $1`
	args := []any{collection, pgvector.NewVector(vec)}

	if len(filter) > 0 {
		filterJSON, err := json.Marshal(map[string]any(filter))
		if err != nil {
			return nil, fmt.Errorf("marshal filter: %w", err)
		}
		query += fmt.Sprintf(" AND payload @> $%d", len(args)+1)
		args = append(args, filterJSON)
	}

	query += fmt.Sprintf(" AND 1 - (embedding <=> $2) >= $%d", len(args)+1)
	args = append(args, scoreThreshold)

	query += fmt.Sprintf(" ORDER BY embedding <=> $2 LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	hits := make([]vector.SearchHit, 0, limit)
	for rows.Next() {
		var hit vector.SearchHit
		var payload []byte
		if err := rows.Scan(&hit.ID, &payload, &hit.Score); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &hit.Payload); err != nil {
				return nil, fmt.Errorf("decode payload for %s: %w", hit.ID, err)
			}
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// Upsert inserts or replaces points in the collection. The collection must
// already exist; dimensionality mismatches surface as pgvector errors.
func (s *PgVectorStore) Upsert(ctx context.Context, collection string, points []vector.Point) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, point := range points {
		payloadJSON, err := json.Marshal(point.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload for %s: %w", point.ID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO vector_points (collection, id, embedding, payload)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (collection, id)
			DO UPDATE SET embedding = EXCLUDED.embedding, payload = EXCLUDED.payload`,
			collection, point.ID, pgvector.NewVector(point.Vector), payloadJSON,
		)
		if err != nil {
			return fmt.Errorf("upsert point %s: %w", point.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// Count returns the number of points in the collection matching the filter.
func (s *PgVectorStore) Count(ctx context.Context, collection string, filter vector.Filter) (int, error) {
	query := `SELECT count(*) FROM vector_points WHERE collection = $1`
	args := []any{collection}

	if len(filter) > 0 {
		filterJSON, err := json.Marshal(map[string]any(filter))
		if err != nil {
			return 0, fmt.Errorf("marshal filter: %w", err)
		}
		query += " AND payload @> $2"
		args = append(args, filterJSON)
	}

	var count int
	if err := s.conn.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("vector count: %w", err)
	}
	return count, nil
}

// DeletePoints removes the given ids from the collection. Unknown ids are ignored.
func (s *PgVectorStore) DeletePoints(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.conn.Exec(ctx,
		`DELETE FROM vector_points WHERE collection = $1 AND id = ANY($2)`,
		collection, ids,
	)
	return err
}

// CollectionExists reports whether the collection is registered.
func (s *PgVectorStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	var exists bool
	err := s.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM vector_collections WHERE name = $1)`,
		collection,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// CreateCollection registers a collection with a fixed dimensionality.
// Creating an existing collection is a no-op.
func (s *PgVectorStore) CreateCollection(ctx context.Context, collection string, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("invalid dimensions %d for collection %s", dimensions, collection)
	}
	_, err := s.conn.Exec(ctx, `
		INSERT INTO vector_collections (name, dimensions)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING`,
		collection, dimensions,
	)
	return err
}

// DeleteCollection removes a collection and all of its points.
func (s *PgVectorStore) DeleteCollection(ctx context.Context, collection string) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM vector_points WHERE collection = $1`, collection); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM vector_collections WHERE name = $1`, collection); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
