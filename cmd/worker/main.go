package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/askgraph/askgraph/internal/config"
	"github.com/askgraph/askgraph/internal/queue"
	"github.com/askgraph/askgraph/internal/server"
	"github.com/askgraph/askgraph/internal/timing"
	"github.com/askgraph/askgraph/internal/util"
	"github.com/askgraph/askgraph/pkg/executor"
	"github.com/askgraph/askgraph/pkg/generator"
	gneo "github.com/askgraph/askgraph/pkg/graph/neo4j"
	"github.com/askgraph/askgraph/pkg/leaselock"
	"github.com/askgraph/askgraph/pkg/logger"
	"github.com/askgraph/askgraph/pkg/logger/console"
	"github.com/askgraph/askgraph/pkg/pattern"
	"github.com/askgraph/askgraph/pkg/pipeline"
	"github.com/askgraph/askgraph/pkg/prompt"
	"github.com/askgraph/askgraph/pkg/response"
	"github.com/askgraph/askgraph/pkg/retrieval"
	"github.com/askgraph/askgraph/pkg/scope"
	"github.com/askgraph/askgraph/pkg/semantic"
	vpgx "github.com/askgraph/askgraph/pkg/vector/pgx"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Prefix: "worker",
		Debug:  util.GetEnvBool("DEBUG", false),
	})
	logger.Init(consoleLogger)

	cfg := config.Load()

	aiClient := server.BuildAIClient()

	// Init pgx client
	poolCfg, err := server.NewPoolConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to parse database config", "err", err)
	}
	pgConn, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	// Init graph store
	store, err := gneo.NewGraphNeo4jStore(gneo.NewGraphNeo4jStoreParams{
		URI:      cfg.Neo4jURL,
		Username: cfg.Neo4jUser,
		Password: cfg.Neo4jPass,
		DBName:   cfg.Neo4jName,
	})
	if err != nil {
		logger.Fatal("Failed to create graph store", "err", err)
	}
	defer store.Close(ctx)

	entityConfig := scope.Config{}
	if cfg.EntityConfigPath != "" {
		entityConfig, err = scope.LoadFile(cfg.EntityConfigPath)
		if err != nil {
			logger.Fatal("Failed to load entity configuration", "path", cfg.EntityConfigPath, "err", err)
		}
	}

	vectors := vpgx.NewPgVectorStore(pgConn)
	library := pattern.NewLibrary()
	builder := prompt.NewBuilder(nil, library, cfg.Generator.DefaultLimit)

	matcher := semantic.NewMatcher(aiClient, vectors)
	retriever := retrieval.NewRetriever(aiClient, vectors, store, entityConfig).WithMatcher(matcher)
	selector := retrieval.NewSelector(aiClient, vectors, cfg.IndexCollection)
	gen := generator.NewGenerator(aiClient, library, builder, cfg.Generator)
	exec := executor.NewExecutor(store, cfg.Executor)
	responder := response.NewGenerator(aiClient, cfg.Response)

	handler := &queue.AskHandler{
		Pipeline:     pipeline.New(retriever, selector, gen, exec, responder).WithMetrics(aiClient),
		Selector:     selector,
		Store:        store,
		EntityConfig: entityConfig,
		Locks:        leaselock.New(pgConn),
		Recorder:     timing.NewRecorder(pgConn),

		QueryCollection: cfg.QueryCollection,
		RetrievalLimit:  cfg.RetrievalLimit,
	}

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	// Init rabbitmq queues if not exist
	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	err = queue.SetupQueues(ch, queue.Queues)
	if err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	logger.Info("Listening for messages")

	// Single consumer channel with prefetch=1 so only one message is
	// delivered at a time across all queues.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	err = consumerCh.Qos(1, 0, true)
	if err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		go func(qName string) {
			consumerTag := fmt.Sprintf("%s_consumer", qName)
			msgs, err := consumerCh.Consume(
				qName,
				consumerTag,
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case qm := <-messageChan:
				startTime := time.Now()
				logger.Info("Received message", "queue", qm.queueName)

				var processingErr error
				switch qm.queueName {
				case queue.AskQueue:
					processingErr = handler.ProcessAsk(ctx, ch, qm.msg.Body)
				case queue.IndexQueue:
					processingErr = handler.ProcessIndex(ctx)
				}

				// If there was an error send to retry or dead-letter, otherwise ack the message
				if processingErr != nil {
					logger.Error("Error processing message", "queue", qm.queueName, "err", processingErr)
					handleProcessingError(consumerCh, qm.msg, qm.queueName)
				} else {
					err = qm.msg.Ack(false)
					if err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", qm.queueName)
				}

				metrics := aiClient.GetMetrics()
				logger.Info(
					"AI Metrics",
					"input_tokens", metrics.InputTokens,
					"output_tokens", metrics.OutputTokens,
					"total_tokens", metrics.TotalTokens,
					"duration_ms", metrics.DurationMs,
				)

				logger.Info("Processing time", "duration_ms", time.Since(startTime).Milliseconds())
				aiClient.ResetMetrics()
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}

func handleProcessingError(ch *amqp.Channel, msg amqp.Delivery, queueName string) {
	retries := 0
	if val, ok := msg.Headers["x-retries"]; ok {
		if v, ok := val.(int32); ok {
			retries = int(v)
		}
	}

	// After 10 retries the message goes to the dead-letter queue
	if retries >= 10 {
		dlqName := queueName + "_dlq"
		logger.Info("Sending message to DLQ", "dlq", dlqName)
		pubErr := ch.Publish(
			"",
			dlqName,
			false,
			false,
			amqp.Publishing{
				ContentType: "application/json",
				Body:        msg.Body,
				Headers:     msg.Headers,
			},
		)
		if pubErr != nil {
			logger.Error("Failed to publish to DLQ", "dlq", dlqName, "err", pubErr)
			msg.Nack(false, true)
			return
		}
		msg.Ack(false)
		return
	}

	retryName := queueName + "_retry"
	headers := msg.Headers
	if headers == nil {
		headers = amqp.Table{}
	}
	headers["x-retries"] = int32(retries + 1)

	pubErr := ch.Publish(
		"",
		retryName,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        msg.Body,
			Headers:     headers,
		},
	)
	if pubErr != nil {
		logger.Error("Failed to publish to retry queue", "retry_queue", retryName, "err", pubErr)
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}
