package repository

import (
	"encoding/json"
	"log/slog"

	"github.com/CristianMorenoC/prueba-tecnica/internal/model"
)

// ChangeFeed publishes store mutations to the message bus. Events from a
// transaction are held back until the transaction commits, so an aborted
// subscribe/cancel never produces a notification.
type ChangeFeed struct {
	bus MessageBus
}

func NewChangeFeed(bus MessageBus) *ChangeFeed {
	return &ChangeFeed{bus: bus}
}

// PublishBatch sends one envelope with all records of a committed unit of
// work. Delivery to the notifier is at-least-once; the notifier deduplicates
// by sequence number.
func (f *ChangeFeed) PublishBatch(events []model.ChangeEvent) {
	if len(events) == 0 {
		return
	}
	data, err := json.Marshal(model.ChangeBatch{Records: events})
	if err != nil {
		slog.Error("changefeed: failed to marshal batch", "error", err)
		return
	}
	if err := f.bus.Publish(TopicChanges, data); err != nil {
		slog.Error("changefeed: publish failed", "error", err, "records", len(events))
	}
}
