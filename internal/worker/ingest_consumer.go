// Package worker consumes ingestion tasks off NSQ when asynchronous
// ingestion is enabled. Each message runs the same synchronous pipeline the
// inline path uses; the queue only moves the work off the request thread.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"docqa/internal/middleware"
)

// Ingester runs the registered-document ingestion pipeline.
type Ingester interface {
	Process(ctx context.Context, id, path, name string) error
}

type IngestConsumer struct {
	ingester Ingester
	timeout  time.Duration
}

func NewIngestConsumer(ingester Ingester, timeout time.Duration) *IngestConsumer {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &IngestConsumer{ingester: ingester, timeout: timeout}
}

func (c *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IngestTaskPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison pill: invalid JSON will never parse, don't retry.
		slog.Error("poison pill: invalid ingest task", "error", err)
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.ingester.Process(ctx, payload.DocumentID, payload.Path, payload.Name); err != nil {
		slog.ErrorContext(ctx, "ingest task failed", "error", err, "document_id", payload.DocumentID, "name", payload.Name)
		// The document is already marked failed; requeueing would re-run a
		// pipeline that deterministically fails for bad input.
		return nil
	}

	slog.InfoContext(ctx, "ingest task completed", "document_id", payload.DocumentID, "name", payload.Name)
	return nil
}
