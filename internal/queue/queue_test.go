package queue

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
)

// TestCheckDocumentPayload tests the CheckDocumentPayload structure
func TestCheckDocumentPayload(t *testing.T) {
	payload := CheckDocumentPayload{
		ReportID:   "report-123",
		Name:       "essay.txt",
		Text:       "Sample text to check for plagiarism",
		EnqueuedAt: time.Now().UnixNano(),
	}

	data, err := json.Marshal(payload)
	assert.NoError(t, err)
	assert.NotEmpty(t, data)

	var decoded CheckDocumentPayload
	err = json.Unmarshal(data, &decoded)
	assert.NoError(t, err)
	assert.Equal(t, payload.ReportID, decoded.ReportID)
	assert.Equal(t, payload.Name, decoded.Name)
	assert.Equal(t, payload.Text, decoded.Text)
	assert.Equal(t, payload.EnqueuedAt, decoded.EnqueuedAt)
}

// TestEmbedSourcePayload tests the EmbedSourcePayload structure
func TestEmbedSourcePayload(t *testing.T) {
	payload := EmbedSourcePayload{
		SourceID: "source-456",
		TraceID:  "0123456789abcdef0123456789abcdef",
		SpanID:   "0123456789abcdef",
	}

	data, err := json.Marshal(payload)
	assert.NoError(t, err)

	var decoded EmbedSourcePayload
	err = json.Unmarshal(data, &decoded)
	assert.NoError(t, err)
	assert.Equal(t, payload.SourceID, decoded.SourceID)
	assert.Equal(t, payload.TraceID, decoded.TraceID)
	assert.Equal(t, payload.SpanID, decoded.SpanID)
}

func TestPayloadOmitsEmptyTraceFields(t *testing.T) {
	data, err := json.Marshal(CheckDocumentPayload{ReportID: "r"})
	assert.NoError(t, err)
	assert.NotContains(t, string(data), "trace_id")
	assert.NotContains(t, string(data), "span_id")
}

func TestQueueWaitTime(t *testing.T) {
	assert.Equal(t, time.Duration(0), queueWaitTime(0))
	assert.Equal(t, time.Duration(0), queueWaitTime(-1))

	wait := queueWaitTime(time.Now().Add(-2 * time.Second).UnixNano())
	assert.InDelta(t, 2.0, wait.Seconds(), 0.5)
}

func TestRetryDelaySchedules(t *testing.T) {
	embedTask := asynq.NewTask(TypeEmbedSource, nil)
	checkTask := asynq.NewTask(TypeCheckDocument, nil)
	err := errors.New("any")

	// Embedding backs off patiently.
	assert.Equal(t, 30*time.Second, retryDelay(0, err, embedTask))
	assert.Equal(t, 1*time.Minute, retryDelay(1, err, embedTask))
	assert.Equal(t, 4*time.Hour, retryDelay(9, err, embedTask))
	// Past the schedule it stays at the final delay.
	assert.Equal(t, 4*time.Hour, retryDelay(50, err, embedTask))

	// Checks retry quickly.
	assert.Equal(t, 1*time.Minute, retryDelay(0, err, checkTask))
	assert.Equal(t, 5*time.Minute, retryDelay(1, err, checkTask))
	assert.Equal(t, 15*time.Minute, retryDelay(10, err, checkTask))
}

func TestIsRetriableBackendError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retriable bool
	}{
		{"nil", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"timeout", errors.New("request timeout exceeded"), true},
		{"service unavailable", errors.New("503 Service Unavailable"), true},
		{"deadline", errors.New("context deadline exceeded"), true},
		{"no such host", errors.New("lookup embedding-server: no such host"), true},
		{"validation failure", errors.New("invalid model name"), false},
		{"permanent", errors.New("unsupported input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retriable, isRetriableBackendError(tt.err))
		})
	}
}
