package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/askgraph/askgraph/internal/timing"
	"github.com/askgraph/askgraph/pkg/common"
	"github.com/askgraph/askgraph/pkg/executor"
	"github.com/askgraph/askgraph/pkg/graph"
	"github.com/askgraph/askgraph/pkg/leaselock"
	"github.com/askgraph/askgraph/pkg/logger"
	"github.com/askgraph/askgraph/pkg/pipeline"
	"github.com/askgraph/askgraph/pkg/retrieval"
	"github.com/askgraph/askgraph/pkg/scope"
)

// indexLockKey serializes index rebuilds across worker instances.
const indexLockKey = "context_index_rebuild"

// AskHandler processes queued questions and index rebuilds.
type AskHandler struct {
	Pipeline     *pipeline.Pipeline
	Selector     *retrieval.Selector
	Store        graph.GraphStore
	EntityConfig scope.Config
	Locks        *leaselock.Client
	Recorder     *timing.Recorder

	QueryCollection string
	RetrievalLimit  int
}

// ProcessAsk answers one queued question and publishes the reply to the
// job's reply topic. Pipeline failures still produce a reply; only broken
// job payloads and publish failures are errors.
func (h *AskHandler) ProcessAsk(ctx context.Context, ch *amqp091.Channel, body []byte) error {
	job := new(common.AskJob)
	if err := json.Unmarshal(body, job); err != nil {
		return fmt.Errorf("failed to parse ask job: %w", err)
	}
	if job.ReplyTopic == "" {
		job.ReplyTopic = job.CorrelationID
	}

	start := time.Now()
	opts := pipeline.Options{
		Format:           executor.Format(job.Request.Format),
		Retrieval:        h.retrievalOptions(),
		IncludeContext:   job.Request.IncludeContext,
		IncludeExecution: job.Request.IncludeExecution,
	}

	// Stage events double as timing marks: each event closes the previous
	// stage. Pipeline and timing stage names match.
	stageStart := start
	lastStage := ""
	answer := h.Pipeline.AskStream(ctx, job.Request.Question, opts, func(event pipeline.StreamEvent) {
		if event.Chunk != "" {
			return
		}
		now := time.Now()
		if lastStage != "" {
			h.record(ctx, event.RequestID, lastStage, now.Sub(stageStart).Milliseconds())
		}
		lastStage = event.Stage
		stageStart = now
	})
	h.record(ctx, answer.RequestID, timing.StageTotal, time.Since(start).Milliseconds())

	reply := common.AskReply{
		CorrelationID: job.CorrelationID,
		Answer:        answer,
	}
	encoded, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to marshal ask reply: %w", err)
	}
	if err := PublishReply(ch, job.ReplyTopic, encoded); err != nil {
		return fmt.Errorf("failed to publish ask reply: %w", err)
	}

	logger.Info("Ask job answered",
		"correlation_id", job.CorrelationID,
		"request_id", answer.RequestID,
		"duration_ms", answer.DurationMs,
	)
	return nil
}

// ProcessIndex rebuilds the context-selection index under the shared lease
// lock. A busy lock means another worker is already rebuilding; the message
// is dropped as done.
func (h *AskHandler) ProcessIndex(ctx context.Context) error {
	if h.Selector == nil {
		return nil
	}

	err := h.Locks.WithLease(ctx, indexLockKey, leaselock.Options{TTL: 2 * time.Minute}, func(ctx context.Context) error {
		schema, err := h.Store.GetSchema(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch schema for index rebuild: %w", err)
		}
		return h.Selector.BuildIndex(ctx, h.EntityConfig, schema)
	})
	if errors.Is(err, leaselock.ErrBusy) {
		logger.Info("Index rebuild already in progress, skipping")
		return nil
	}
	return err
}

func (h *AskHandler) record(ctx context.Context, requestID, stage string, durationMs int64) {
	if h.Recorder == nil {
		return
	}
	if err := h.Recorder.Record(ctx, requestID, stage, durationMs); err != nil {
		logger.Warn("Failed to record stage duration", "stage", stage, "err", err)
	}
}

func (h *AskHandler) retrievalOptions() retrieval.Options {
	opts := retrieval.DefaultOptions(h.QueryCollection)
	if h.RetrievalLimit > 0 {
		opts.Limit = h.RetrievalLimit
	}
	return opts
}
