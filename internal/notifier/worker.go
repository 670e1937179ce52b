package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/CristianMorenoC/prueba-tecnica/internal/model"
	"github.com/CristianMorenoC/prueba-tecnica/internal/repository"
)

// Worker consumes change batches from the bus and hands them to the
// dispatcher. It runs decoupled from the request path.
type Worker struct {
	dispatcher *Dispatcher
	natsConn   *nats.Conn
}

func NewWorker(dispatcher *Dispatcher, nc *nats.Conn) *Worker {
	return &Worker{dispatcher: dispatcher, natsConn: nc}
}

// Run subscribes to the change feed and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	// QueueSubscribe: with several notifier replicas, each batch is
	// delivered to exactly one member of the group.
	sub, err := w.natsConn.QueueSubscribe(repository.TopicChanges, "notifier_group", func(m *nats.Msg) {
		var batch model.ChangeBatch
		if err := json.Unmarshal(m.Data, &batch); err != nil {
			slog.Error("notifier: failed to unmarshal change batch", "error", err)
			return
		}

		res := w.dispatcher.Process(ctx, batch.Records)
		slog.Info("notifier: batch handled",
			"records", len(batch.Records),
			"processed", res.Processed,
			"skipped", res.Skipped,
			"errors", res.Errors,
		)
	})
	if err != nil {
		return fmt.Errorf("notifier: failed to subscribe to NATS: %w", err)
	}

	slog.Info("Notification worker is running")

	// Wait for shutdown signal.
	<-ctx.Done()

	slog.Info("Notification worker shutting down, draining subscription...")
	// Close subscription gracefully, waiting for current processing to complete.
	return sub.Drain()
}

// Start implements the infrastructure.Server interface.
func (w *Worker) Start(ctx context.Context) error {
	return w.Run(ctx)
}

// Stop implements the infrastructure.Server interface (no-op, shutdown is via ctx).
func (w *Worker) Stop(ctx context.Context) error {
	return nil
}
