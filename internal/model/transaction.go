package model

import "time"

type TransactionType string

const (
	TxOpen   TransactionType = "open"
	TxCancel TransactionType = "cancel"
)

// Transaction is one immutable ledger entry per balance-affecting event.
type Transaction struct {
	ID          int64           `json:"id"`
	UserID      string          `json:"user_id"`
	FundID      string          `json:"fund_id"`
	Amount      int64           `json:"amount"`
	Type        TransactionType `json:"transaction_type"`
	PrevBalance int64           `json:"prev_balance"`
	NewBalance  int64           `json:"new_balance"`
	Timestamp   time.Time       `json:"timestamp"`
}

// TransactionQuery filters the ledger listing. Zero values mean "no filter".
type TransactionQuery struct {
	UserID string
	FundID string
	Since  time.Time
	Limit  int
}
