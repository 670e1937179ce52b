package model

type NotifyChannel string

const (
	ChannelEmail NotifyChannel = "email"
	ChannelSMS   NotifyChannel = "sms"
)

func (c NotifyChannel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// Contact is the delivery information carried on change events so the
// notifier can address a user without reading the account store.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// Account holds a user's available balance in minor currency units.
// Balance never goes negative; only the lifecycle engine mutates it.
type Account struct {
	UserID        string        `json:"user_id"`
	Name          string        `json:"name"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone,omitempty"`
	Balance       int64         `json:"balance"`
	NotifyChannel NotifyChannel `json:"notify_channel"`
}
