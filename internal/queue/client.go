// Package queue wraps Asynq for asynchronous check processing and source
// embedding. Trace context and enqueue timestamps travel inside task payloads
// so workers can resume spans and measure queue wait.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Task type constants
const (
	TypeCheckDocument = "plagiarism:check_document"
	TypeEmbedSource   = "plagiarism:embed_source"
)

// Queue names, highest priority first.
const (
	QueueChecks    = "checks"
	QueueEmbedding = "embedding"
)

// CheckDocumentPayload carries one asynchronous check submission. ReportID is
// assigned at enqueue time so clients can poll for the result immediately.
type CheckDocumentPayload struct {
	ReportID string `json:"report_id"`
	Name     string `json:"name"`
	Text     string `json:"text"`
	// Tracing and timing fields
	TraceID    string `json:"trace_id,omitempty"`
	SpanID     string `json:"span_id,omitempty"`
	EnqueuedAt int64  `json:"enqueued_at"` // Unix timestamp in nanoseconds
}

// EmbedSourcePayload requests the embedding of one stored source.
type EmbedSourcePayload struct {
	SourceID string `json:"source_id"`
	// Tracing and timing fields
	TraceID    string `json:"trace_id,omitempty"`
	SpanID     string `json:"span_id,omitempty"`
	EnqueuedAt int64  `json:"enqueued_at"` // Unix timestamp in nanoseconds
}

// Client wraps the Asynq client for enqueueing tasks
type Client struct {
	client *asynq.Client
}

// ClientConfig contains configuration for the queue client
type ClientConfig struct {
	RedisAddr string
}

// NewClient creates a new queue client
func NewClient(cfg ClientConfig) *Client {
	redisOpt := asynq.RedisClientOpt{
		Addr: cfg.RedisAddr,
	}
	return &Client{client: asynq.NewClient(redisOpt)}
}

// EnqueueCheckDocument enqueues an asynchronous plagiarism check and returns
// the report ID the result will be stored under.
func (c *Client) EnqueueCheckDocument(ctx context.Context, reportID, name, text string) (string, error) {
	payload := CheckDocumentPayload{
		ReportID:   reportID,
		Name:       name,
		Text:       text,
		EnqueuedAt: time.Now().UnixNano(),
	}
	attachTraceContext(ctx, &payload.TraceID, &payload.SpanID, TypeCheckDocument, reportID, payload.EnqueuedAt)

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := asynq.NewTask(TypeCheckDocument, payloadBytes, asynq.TaskID(reportID))

	opts := []asynq.Option{
		asynq.MaxRetry(3),
		asynq.Timeout(5 * time.Minute),
		asynq.Queue(QueueChecks),
		asynq.Retention(7 * 24 * time.Hour),
	}

	info, err := c.client.Enqueue(task, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue check task: %w", err)
	}
	return info.ID, nil
}

// EnqueueEmbedSource enqueues the embedding of a stored source. Embedding
// runs against an external model server, so it gets the patient retry queue.
func (c *Client) EnqueueEmbedSource(ctx context.Context, sourceID string) (string, error) {
	payload := EmbedSourcePayload{
		SourceID:   sourceID,
		EnqueuedAt: time.Now().UnixNano(),
	}
	attachTraceContext(ctx, &payload.TraceID, &payload.SpanID, TypeEmbedSource, sourceID, payload.EnqueuedAt)

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := asynq.NewTask(TypeEmbedSource, payloadBytes, asynq.TaskID("embed:"+sourceID))

	opts := []asynq.Option{
		asynq.MaxRetry(10),
		asynq.Timeout(10 * time.Minute),
		asynq.Queue(QueueEmbedding),
		asynq.Retention(24 * time.Hour),
	}

	info, err := c.client.Enqueue(task, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue embed task: %w", err)
	}
	return info.ID, nil
}

// Close closes the underlying Asynq client.
func (c *Client) Close() error {
	return c.client.Close()
}

// attachTraceContext copies the current span identity into a payload and
// records the enqueue event on the span.
func attachTraceContext(ctx context.Context, traceID, spanID *string, taskType, taskID string, enqueuedAt int64) {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}
	sc := span.SpanContext()
	*traceID = sc.TraceID().String()
	*spanID = sc.SpanID().String()

	span.AddEvent("task_enqueued", trace.WithAttributes(
		attribute.String("task.type", taskType),
		attribute.String("task.id", taskID),
		attribute.Int64("enqueued_at", enqueuedAt),
	))
}
