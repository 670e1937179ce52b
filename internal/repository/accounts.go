package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CristianMorenoC/prueba-tecnica/internal/model"
)

// AccountRepo stores per-user available balances and profile data. Balance
// writes are conditional on the previously read value; a lost race surfaces
// as model.ErrConflict so the lifecycle engine can re-read and retry.
type AccountRepo struct {
	pool *pgxpool.Pool
	feed *ChangeFeed
}

func NewAccountRepo(pool *pgxpool.Pool, feed *ChangeFeed) *AccountRepo {
	return &AccountRepo{pool: pool, feed: feed}
}

func (r *AccountRepo) Get(ctx context.Context, userID string) (*model.Account, error) {
	var a model.Account
	err := q(ctx, r.pool).QueryRow(ctx,
		`SELECT user_id, name, email, phone, balance, notify_channel
		 FROM accounts WHERE user_id = $1`,
		userID,
	).Scan(&a.UserID, &a.Name, &a.Email, &a.Phone, &a.Balance, &a.NotifyChannel)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("select account: %w", err)
	}
	return &a, nil
}

// Create inserts a new profile and emits the PROFILE INSERT change event
// that drives contact registration and the welcome notification.
func (r *AccountRepo) Create(ctx context.Context, acct *model.Account) (*model.Account, error) {
	var createdAt time.Time
	err := q(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO accounts (user_id, name, email, phone, balance, notify_channel)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO NOTHING
		 RETURNING created_at`,
		acct.UserID, acct.Name, acct.Email, acct.Phone, acct.Balance, acct.NotifyChannel,
	).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrDuplicateUser
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}

	stage(ctx, r.feed, model.ChangeEvent{
		PK:             model.KeyPrefixUser + acct.UserID,
		SK:             model.KeyProfile,
		Kind:           model.EventInsert,
		SequenceNumber: strconv.FormatInt(createdAt.UnixNano(), 10),
		Attributes: model.RecordAttributes{
			Name:          acct.Name,
			Email:         acct.Email,
			Phone:         acct.Phone,
			NotifyChannel: acct.NotifyChannel,
		},
	})
	return acct, nil
}

// UpdateBalance writes newBalance only if the stored balance still equals
// expected. Returns model.ErrConflict when a concurrent writer got there
// first, model.ErrUserNotFound when the account is gone.
func (r *AccountRepo) UpdateBalance(ctx context.Context, userID string, expected, newBalance int64) error {
	tag, err := q(ctx, r.pool).Exec(ctx,
		`UPDATE accounts SET balance = $3 WHERE user_id = $1 AND balance = $2`,
		userID, expected, newBalance,
	)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := q(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE user_id = $1)`, userID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check account: %w", err)
	}
	if !exists {
		return model.ErrUserNotFound
	}
	return fmt.Errorf("%w: balance for user %s changed since read", model.ErrConflict, userID)
}
