package repository

// Topics published by the repositories.
const (
	// TopicChanges carries post-commit change batches for the notifier.
	TopicChanges = "changes.records"
)

type MessageBus interface {
	Publish(topic string, data []byte) error
}
