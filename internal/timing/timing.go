// Package timing records per-stage pipeline durations so operators can see
// where answering time goes and estimate it for new questions.
package timing

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pipeline stages with recorded durations.
const (
	StageRetrieval  = "retrieval"
	StageGeneration = "generation"
	StageExecution  = "execution"
	StageSynthesis  = "synthesis"
	StageTotal      = "total"
)

// Recorder persists stage durations to the ask_stats table.
type Recorder struct {
	conn *pgxpool.Pool
}

// NewRecorder creates a recorder over the pool.
func NewRecorder(conn *pgxpool.Pool) *Recorder {
	return &Recorder{conn: conn}
}

// Record stores one stage duration for a request.
func (r *Recorder) Record(ctx context.Context, requestID, stage string, durationMs int64) error {
	_, err := r.conn.Exec(ctx, insertStatSQL, requestID, stage, durationMs)
	return err
}

// Predict returns the average recent duration of a stage in milliseconds,
// over the last 100 recorded runs. Zero means no history.
func (r *Recorder) Predict(ctx context.Context, stage string) (int64, error) {
	var avg int64
	err := r.conn.QueryRow(ctx, predictStatSQL, stage).Scan(&avg)
	if err != nil {
		return 0, err
	}
	return avg, nil
}

const insertStatSQL = `
INSERT INTO ask_stats (request_id, stage, duration_ms)
VALUES ($1, $2, $3);
`

const predictStatSQL = `
SELECT COALESCE(AVG(duration_ms), 0)::bigint
FROM (
	SELECT duration_ms
	FROM ask_stats
	WHERE stage = $1
	ORDER BY created_at DESC
	LIMIT 100
) recent;
`
