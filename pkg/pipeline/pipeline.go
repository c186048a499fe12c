package pipeline

import (
	"context"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/askgraph/askgraph/pkg/ai"
	"github.com/askgraph/askgraph/pkg/executor"
	"github.com/askgraph/askgraph/pkg/generator"
	"github.com/askgraph/askgraph/pkg/logger"
	"github.com/askgraph/askgraph/pkg/response"
	"github.com/askgraph/askgraph/pkg/retrieval"
)

// Answer is the full outcome of one pipeline run. Cypher stays empty when
// generation never produced a valid query.
type Answer struct {
	RequestID  string             `json:"request_id"`
	Question   string             `json:"question"`
	Cypher     string             `json:"cypher"`
	Confidence float64            `json:"confidence"`
	Response   *response.Response `json:"response"`
	Context    *retrieval.Context `json:"context,omitempty"`
	Execution  *executor.Result   `json:"execution,omitempty"`
	Metrics    *ai.ModelMetrics   `json:"metrics,omitempty"`
	DurationMs int64              `json:"duration_ms"`
}

// Options tunes a single run.
type Options struct {
	Format           executor.Format
	Retrieval        retrieval.Options
	IncludeContext   bool
	IncludeExecution bool
}

// Pipeline wires retrieval, generation, execution, and synthesis into the
// single ask operation.
// MetricsSource reports accumulated model usage.
type MetricsSource interface {
	GetMetrics() ai.ModelMetrics
}

type Pipeline struct {
	retriever *retrieval.Retriever
	selector  *retrieval.Selector
	generator *generator.Generator
	executor  *executor.Executor
	responder *response.Generator
	metrics   MetricsSource
}

// New assembles a pipeline. The selector is optional; without it the full
// retrieved context goes into the prompt.
func New(
	retriever *retrieval.Retriever,
	selector *retrieval.Selector,
	gen *generator.Generator,
	exec *executor.Executor,
	responder *response.Generator,
) *Pipeline {
	return &Pipeline{
		retriever: retriever,
		selector:  selector,
		generator: gen,
		executor:  exec,
		responder: responder,
	}
}

// WithMetrics attaches a model-usage source whose snapshot is copied onto
// every answer. Values accumulate until the source is reset. Returns the
// receiver for chaining.
func (p *Pipeline) WithMetrics(src MetricsSource) *Pipeline {
	p.metrics = src
	return p
}

// Stage names emitted during a streamed run.
const (
	StageRetrieval  = "retrieval"
	StageGeneration = "generation"
	StageExecution  = "execution"
	StageSynthesis  = "synthesis"
	StageDone       = "done"
)

// StreamEvent reports progress of one pipeline stage. During synthesis the
// answer text additionally arrives as incremental Chunk events.
type StreamEvent struct {
	RequestID string  `json:"request_id"`
	Stage     string  `json:"stage"`
	Message   string  `json:"message,omitempty"`
	Chunk     string  `json:"chunk,omitempty"`
	Answer    *Answer `json:"answer,omitempty"`
}

// Ask answers a question end to end. It never returns an error: every
// failure becomes a structured error response so callers always have
// something to show the user.
func (p *Pipeline) Ask(ctx context.Context, question string, opts Options) *Answer {
	return p.AskStream(ctx, question, opts, nil)
}

// AskStream runs the same pipeline and calls emit before each stage and once
// more with the finished answer. A nil emit turns it into a plain Ask.
func (p *Pipeline) AskStream(ctx context.Context, question string, opts Options, emit func(StreamEvent)) *Answer {
	start := time.Now()
	requestID, _ := gonanoid.New()
	streaming := emit != nil
	if emit == nil {
		emit = func(StreamEvent) {}
	}

	answer := &Answer{
		RequestID: requestID,
		Question:  question,
	}
	finish := func() *Answer {
		if p.metrics != nil {
			m := p.metrics.GetMetrics()
			answer.Metrics = &m
		}
		answer.DurationMs = time.Since(start).Milliseconds()
		emit(StreamEvent{RequestID: requestID, Stage: StageDone, Answer: answer})
		return answer
	}

	emit(StreamEvent{RequestID: requestID, Stage: StageRetrieval, Message: "Retrieving context"})
	retrieved, err := p.retriever.RetrieveContext(ctx, question, opts.Retrieval)
	if err != nil {
		logger.Warn("Context retrieval failed", "request_id", requestID, "err", err)
		answer.Response = p.responder.GenerateError(question, err)
		return finish()
	}
	if p.selector != nil {
		retrieved = p.selector.SelectRelevant(ctx, question, retrieved, 10, 0.5)
	}
	if opts.IncludeContext {
		answer.Context = retrieved
	}

	emit(StreamEvent{RequestID: requestID, Stage: StageGeneration, Message: "Generating query"})
	generated, err := p.generator.Generate(ctx, question, retrieved)
	if err != nil {
		logger.Warn("Query generation failed", "request_id", requestID, "err", err)
		answer.Response = p.responder.GenerateError(question, err)
		return finish()
	}
	answer.Cypher = generated.Cypher
	answer.Confidence = generated.Confidence

	emit(StreamEvent{RequestID: requestID, Stage: StageExecution, Message: "Executing query"})
	result, err := p.executor.Execute(ctx, generated.Cypher, nil, opts.Format)
	if err != nil {
		logger.Warn("Query execution failed",
			"request_id", requestID, "cypher", generated.Cypher, "err", err)
		answer.Response = p.responder.GenerateError(question, err)
		return finish()
	}
	if opts.IncludeExecution {
		answer.Execution = result
	}

	emit(StreamEvent{RequestID: requestID, Stage: StageSynthesis, Message: "Writing answer"})
	var resp *response.Response
	if streaming {
		resp, err = p.responder.GenerateStream(ctx, question, generated.Cypher, result, func(chunk string) {
			emit(StreamEvent{RequestID: requestID, Stage: StageSynthesis, Chunk: chunk})
		})
	} else {
		resp, err = p.responder.Generate(ctx, question, generated.Cypher, result)
	}
	if err != nil {
		logger.Warn("Response synthesis failed", "request_id", requestID, "err", err)
		answer.Response = p.responder.GenerateError(question, err)
		return finish()
	}
	answer.Response = resp

	logger.Info("Question answered",
		"request_id", requestID,
		"confidence", generated.Confidence,
		"rows", result.Stats.RowsReturned,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return finish()
}
