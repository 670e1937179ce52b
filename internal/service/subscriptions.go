package service

import (
	"context"
	"time"

	"github.com/CristianMorenoC/prueba-tecnica/internal/model"
)

// SubscriptionService defines the business operations for fund
// subscriptions. All transport layers (HTTP, NATS) depend on this
// interface, not on the concrete engine.
type SubscriptionService interface {
	Subscribe(ctx context.Context, req model.SubscribeRequest) (*model.Subscription, error)
	Cancel(ctx context.Context, req model.CancelRequest) (*model.Subscription, error)
	ListFunds(ctx context.Context, limit int, cursor string) ([]model.Fund, string, error)
	ListSubscriptions(ctx context.Context, userID string, status model.SubscriptionStatus) ([]model.Subscription, error)
	ListTransactions(ctx context.Context, query model.TransactionQuery) ([]model.Transaction, error)
	CreateUser(ctx context.Context, req model.CreateUserRequest) (*model.Account, error)
	GetAccount(ctx context.Context, userID string) (*model.Account, error)
}

// Store ports consumed by the engine. The pgx repositories implement them
// in production; tests use in-memory fakes.

type FundCatalog interface {
	GetByID(ctx context.Context, fundID string) (*model.Fund, error)
	List(ctx context.Context, limit int, cursor string) ([]model.Fund, string, error)
}

type AccountStore interface {
	Get(ctx context.Context, userID string) (*model.Account, error)
	Create(ctx context.Context, acct *model.Account) (*model.Account, error)
	UpdateBalance(ctx context.Context, userID string, expected, newBalance int64) error
}

type SubscriptionStore interface {
	Get(ctx context.Context, userID, fundID string) (*model.Subscription, error)
	Create(ctx context.Context, sub *model.Subscription, contact model.Contact) (*model.Subscription, error)
	CancelActive(ctx context.Context, userID, fundID string, at time.Time) (*model.Subscription, error)
	ListByUser(ctx context.Context, userID string, status model.SubscriptionStatus) ([]model.Subscription, error)
}

type LedgerStore interface {
	Append(ctx context.Context, t *model.Transaction) (*model.Transaction, error)
	List(ctx context.Context, query model.TransactionQuery) ([]model.Transaction, error)
}

// UnitOfWork commits the persisted effects of one subscribe/cancel call
// together.
type UnitOfWork interface {
	Within(ctx context.Context, fn func(ctx context.Context) error) error
}
