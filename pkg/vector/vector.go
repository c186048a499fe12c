package vector

import (
	"context"
)

// Point is a single entry in a vector collection: an identifier, its
// embedding, and an arbitrary JSON payload carried alongside it.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// SearchHit is one nearest-neighbor search result. Score is cosine
// similarity in [0,1], higher is closer.
type SearchHit struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Filter restricts search and count to points whose payload contains all the
// given key/value pairs.
type Filter map[string]any

// VectorStore defines the interface for named collections of embedded points.
// Collections must be created with a fixed dimensionality before upserting.
type VectorStore interface {
	Search(
		ctx context.Context,
		collection string,
		vector []float32,
		limit int,
		filter Filter,
		scoreThreshold float64,
	) ([]SearchHit, error)
	Upsert(ctx context.Context, collection string, points []Point) error
	Count(ctx context.Context, collection string, filter Filter) (int, error)
	DeletePoints(ctx context.Context, collection string, ids []string) error

	CollectionExists(ctx context.Context, collection string) (bool, error)
	CreateCollection(ctx context.Context, collection string, dimensions int) error
	DeleteCollection(ctx context.Context, collection string) error
}
