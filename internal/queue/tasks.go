package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// handleCheckDocument runs one asynchronous plagiarism check.
func (w *Worker) handleCheckDocument(ctx context.Context, t *asynq.Task) error {
	var payload CheckDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		w.logger.Error("failed to unmarshal task payload", "error", err)
		return fmt.Errorf("invalid task payload: %w", err)
	}

	queueWait := queueWaitTime(payload.EnqueuedAt)
	if w.businessMetrics != nil {
		w.businessMetrics.QueueWaitSeconds.Observe(queueWait.Seconds())
	}

	w.logger.Info("processing check task",
		"report_id", payload.ReportID,
		"name", payload.Name,
		"text_length", len(payload.Text),
		"queue_wait_seconds", queueWait.Seconds(),
	)

	ctx, span := resumeSpan(ctx, payload.TraceID, payload.SpanID, "asynq.task.check_document",
		attribute.String("task.type", TypeCheckDocument),
		attribute.String("report.id", payload.ReportID),
		attribute.Int("text.length", len(payload.Text)),
		attribute.Float64("queue.wait_time_seconds", queueWait.Seconds()),
	)
	if span != nil {
		defer span.End()
	}

	report, err := w.checker.CheckWithID(ctx, payload.ReportID, payload.Name, payload.Text)
	if err != nil {
		if isRetriableBackendError(err) {
			retryCount, _ := asynq.GetRetryCount(ctx)
			w.logger.Warn("retriable error during check, will retry",
				"report_id", payload.ReportID,
				"error", err,
				"retry_count", retryCount,
			)
			return err // Let Asynq retry
		}
		w.logger.Error("permanent error during check",
			"report_id", payload.ReportID,
			"error", err,
		)
		return fmt.Errorf("check failed: %w", err)
	}

	w.logger.Info("check task completed",
		"report_id", report.ID,
		"similarity_pct", report.SimilarityPct,
		"flagged", report.Flagged,
	)
	return nil
}

// handleEmbedSource computes and stores the embedding for one source.
func (w *Worker) handleEmbedSource(ctx context.Context, t *asynq.Task) error {
	var payload EmbedSourcePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		w.logger.Error("failed to unmarshal task payload", "error", err)
		return fmt.Errorf("invalid task payload: %w", err)
	}

	queueWait := queueWaitTime(payload.EnqueuedAt)
	if w.businessMetrics != nil {
		w.businessMetrics.QueueWaitSeconds.Observe(queueWait.Seconds())
	}

	ctx, span := resumeSpan(ctx, payload.TraceID, payload.SpanID, "asynq.task.embed_source",
		attribute.String("task.type", TypeEmbedSource),
		attribute.String("source.id", payload.SourceID),
		attribute.Float64("queue.wait_time_seconds", queueWait.Seconds()),
	)
	if span != nil {
		defer span.End()
	}

	if w.embedder == nil {
		w.logger.Error("no embedder configured, dropping embed task", "source_id", payload.SourceID)
		return fmt.Errorf("no embedder configured: %w", asynq.SkipRetry)
	}

	source, err := w.db.GetSource(payload.SourceID)
	if err != nil {
		return fmt.Errorf("failed to retrieve source: %w", err)
	}

	start := time.Now()
	embedding, err := w.embedder.Embed(ctx, source.Text)
	if err != nil {
		if w.businessMetrics != nil {
			w.businessMetrics.EmbeddingsTotal.WithLabelValues("error").Inc()
		}
		if isRetriableBackendError(err) {
			retryCount, _ := asynq.GetRetryCount(ctx)
			w.logger.Warn("retriable embedding error, will retry",
				"source_id", payload.SourceID,
				"error", err,
				"retry_count", retryCount,
			)
			return err // Let Asynq retry
		}
		w.logger.Error("permanent embedding error",
			"source_id", payload.SourceID,
			"error", err,
		)
		return fmt.Errorf("embedding source: %w", err)
	}

	if err := w.db.SetSourceEmbedding(payload.SourceID, embedding); err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}

	if w.businessMetrics != nil {
		w.businessMetrics.EmbeddingsTotal.WithLabelValues("ok").Inc()
	}
	w.logger.Info("source embedded",
		"source_id", payload.SourceID,
		"dimension", len(embedding),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// resumeSpan reconstructs the enqueue-side trace context from payload IDs and
// starts a consumer span linked to it. Returns a nil span when the payload
// carries no usable trace context.
func resumeSpan(ctx context.Context, traceIDHex, spanIDHex, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if traceIDHex == "" || spanIDHex == "" {
		if existing := trace.SpanFromContext(ctx); existing.SpanContext().IsValid() {
			existing.SetAttributes(attrs...)
		}
		return ctx, nil
	}

	traceID, err := trace.TraceIDFromHex(traceIDHex)
	if err != nil {
		return ctx, nil
	}
	spanID, err := trace.SpanIDFromHex(spanIDHex)
	if err != nil {
		return ctx, nil
	}

	remoteSpanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx = trace.ContextWithRemoteSpanContext(ctx, remoteSpanCtx)

	ctx, span := otel.Tracer("plagiarismdetector").Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attrs...),
	)
	return ctx, span
}

func queueWaitTime(enqueuedAt int64) time.Duration {
	if enqueuedAt <= 0 {
		return 0
	}
	return time.Since(time.Unix(0, enqueuedAt))
}

// isRetriableBackendError reports whether an error looks like a transient
// connectivity or availability failure worth retrying.
func isRetriableBackendError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	retriablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"service unavailable",
		"bad gateway",
		"gateway timeout",
		"too many requests",
		"context deadline exceeded",
		"i/o timeout",
		"no such host",
		"network is unreachable",
	}

	for _, pattern := range retriablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
