package model

type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventModify EventKind = "MODIFY"
	EventRemove EventKind = "REMOVE"
)

// Key prefixes used by the change feed. Subscriptions live under
// USER#<user_id> / SUB#<fund_id>; profiles under USER#<user_id> / PROFILE.
const (
	KeyPrefixUser = "USER#"
	KeyPrefixSub  = "SUB#"
	KeyProfile    = "PROFILE"
)

// RecordAttributes is the after-image snapshot a change event carries.
// Contact fields may be absent; the notifier treats that as "nothing to send".
type RecordAttributes struct {
	Status        SubscriptionStatus `json:"status,omitempty"`
	Amount        int64              `json:"amount,omitempty"`
	Name          string             `json:"name,omitempty"`
	Email         string             `json:"email,omitempty"`
	Phone         string             `json:"phone,omitempty"`
	NotifyChannel NotifyChannel      `json:"notify_channel,omitempty"`
}

// ChangeEvent is one store mutation as seen by the notification router.
// SequenceNumber is stamped once by the producer, so redeliveries of the
// same event carry the same number and can be deduplicated.
type ChangeEvent struct {
	PK             string           `json:"pk"`
	SK             string           `json:"sk"`
	Kind           EventKind        `json:"event_kind"`
	SequenceNumber string           `json:"sequence_number"`
	Attributes     RecordAttributes `json:"attributes"`
}

// ChangeBatch is the envelope published on the change feed topic.
type ChangeBatch struct {
	Records []ChangeEvent `json:"records"`
}
