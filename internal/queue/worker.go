package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/zombar/plagiarismdetector/internal/database"
	"github.com/zombar/plagiarismdetector/internal/pipeline"
	"github.com/zombar/plagiarismdetector/internal/semantic"
	"github.com/zombar/plagiarismdetector/pkg/metrics"
)

// Worker wraps the Asynq server for processing tasks
type Worker struct {
	server          *asynq.Server
	mux             *asynq.ServeMux
	db              *database.DB
	checker         *pipeline.Checker
	embedder        *semantic.Model
	concurrency     int
	logger          *slog.Logger
	businessMetrics *metrics.BusinessMetrics
}

// WorkerConfig contains configuration for the queue worker
type WorkerConfig struct {
	RedisAddr   string
	Concurrency int
}

// NewWorker creates a new queue worker. The embedder may be nil, in which
// case embed-source tasks fail permanently.
func NewWorker(
	cfg WorkerConfig,
	db *database.DB,
	checker *pipeline.Checker,
	embedder *semantic.Model,
	businessMetrics *metrics.BusinessMetrics,
) *Worker {
	redisOpt := asynq.RedisClientOpt{
		Addr: cfg.RedisAddr,
	}

	serverCfg := asynq.Config{
		Concurrency: cfg.Concurrency,

		// Queue priority: higher value = higher priority. Checks are
		// user-facing; source embedding is background backfill.
		Queues: map[string]int{
			QueueChecks:    7,
			QueueEmbedding: 3,
		},

		// Proportional processing; embedding work is never starved outright.
		StrictPriority: false,

		RetryDelayFunc: retryDelay,

		ShutdownTimeout: 30 * time.Second,

		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)

			slog.Error("task processing error",
				"task_type", task.Type(),
				"error", err,
				"retry_count", retried,
				"max_retries", maxRetry,
			)
		}),
	}

	w := &Worker{
		server:          asynq.NewServer(redisOpt, serverCfg),
		mux:             asynq.NewServeMux(),
		db:              db,
		checker:         checker,
		embedder:        embedder,
		concurrency:     cfg.Concurrency,
		logger:          slog.Default(),
		businessMetrics: businessMetrics,
	}
	w.registerHandlers()
	return w
}

// retryDelay picks the backoff schedule per task type. Embedding talks to an
// external model server that can be down for a while, so it backs off far
// more patiently than check processing.
func retryDelay(n int, err error, task *asynq.Task) time.Duration {
	if task.Type() == TypeEmbedSource {
		delays := []time.Duration{
			30 * time.Second,
			1 * time.Minute,
			2 * time.Minute,
			5 * time.Minute,
			10 * time.Minute,
			20 * time.Minute,
			30 * time.Minute,
			1 * time.Hour,
			2 * time.Hour,
			4 * time.Hour,
		}
		if n < len(delays) {
			return delays[n]
		}
		return delays[len(delays)-1]
	}

	delays := []time.Duration{
		1 * time.Minute,
		5 * time.Minute,
		15 * time.Minute,
	}
	if n < len(delays) {
		return delays[n]
	}
	return delays[len(delays)-1]
}

// registerHandlers registers all task handlers with the worker
func (w *Worker) registerHandlers() {
	w.mux.HandleFunc(TypeCheckDocument, w.handleCheckDocument)
	w.mux.HandleFunc(TypeEmbedSource, w.handleEmbedSource)
}

// Start starts the worker to begin processing tasks. Run blocks until
// shutdown.
func (w *Worker) Start() error {
	w.logger.Info("starting asynq worker",
		"concurrency", w.concurrency,
		"queues", map[string]int{QueueChecks: 7, QueueEmbedding: 3},
	)

	if err := w.server.Run(w.mux); err != nil {
		return fmt.Errorf("asynq server error: %w", err)
	}
	return nil
}

// Shutdown stops the worker gracefully.
func (w *Worker) Shutdown() {
	w.logger.Info("shutting down asynq worker")
	w.server.Shutdown()
}
