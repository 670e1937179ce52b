package notifier

import "context"

// Sender is the boundary to the delivery subsystem. Implementations decide
// how a notification actually reaches the user.
type Sender interface {
	SendEmail(ctx context.Context, recipient, subject, body string) error
	SendSMS(ctx context.Context, recipient, body string) error
	// RegisterContact subscribes an address or phone number with the
	// delivery subsystem, filtered to the given user, and returns a
	// registration id.
	RegisterContact(ctx context.Context, address, filterKey string) (string, error)
}

// Deduper remembers which change events were already dispatched.
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}
