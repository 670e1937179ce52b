package model

import "time"

type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription is a user's commitment of funds to a Fund. At most one
// record exists per (user_id, fund_id) pair; cancellation is a status
// transition, never a delete.
type Subscription struct {
	UserID        string             `json:"user_id"`
	FundID        string             `json:"fund_id"`
	Amount        int64              `json:"amount"`
	Status        SubscriptionStatus `json:"status"`
	NotifyChannel NotifyChannel      `json:"notification_channel"`
	CreatedAt     time.Time          `json:"created_at"`
	CancelledAt   *time.Time         `json:"cancelled_at,omitempty"`
}
