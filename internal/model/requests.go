package model

type SubscribeRequest struct {
	UserID        string        `json:"user_id"`
	FundID        string        `json:"fund_id"`
	Amount        int64         `json:"amount"`
	NotifyChannel NotifyChannel `json:"notification_channel"`
}

type CancelRequest struct {
	UserID string `json:"user_id"`
	FundID string `json:"fund_id"`
}

type CreateUserRequest struct {
	UserID         string        `json:"user_id,omitempty"`
	Name           string        `json:"name"`
	Email          string        `json:"email"`
	Phone          string        `json:"phone,omitempty"`
	InitialBalance int64         `json:"initial_balance"`
	NotifyChannel  NotifyChannel `json:"notify_channel"`
}
