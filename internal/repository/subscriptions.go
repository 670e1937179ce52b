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

// SubscriptionRepo keeps one row per (user_id, fund_id) pair. Cancellation
// is a status transition; rows are never deleted. Contact details are
// denormalized onto the row so change events can address the user without
// a second lookup.
type SubscriptionRepo struct {
	pool *pgxpool.Pool
	feed *ChangeFeed
}

func NewSubscriptionRepo(pool *pgxpool.Pool, feed *ChangeFeed) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool, feed: feed}
}

const subscriptionColumns = `user_id, fund_id, amount, status, notify_channel, created_at, cancelled_at`

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var s model.Subscription
	err := row.Scan(&s.UserID, &s.FundID, &s.Amount, &s.Status, &s.NotifyChannel, &s.CreatedAt, &s.CancelledAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubscriptionRepo) Get(ctx context.Context, userID, fundID string) (*model.Subscription, error) {
	s, err := scanSubscription(q(ctx, r.pool).QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1 AND fund_id = $2`,
		userID, fundID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("select subscription: %w", err)
	}
	return s, nil
}

// Create inserts an ACTIVE subscription. A previously cancelled row for the
// same pair is reactivated in place; an existing ACTIVE row is a duplicate
// and fails with model.ErrDuplicateSubscription.
func (r *SubscriptionRepo) Create(ctx context.Context, sub *model.Subscription, contact model.Contact) (*model.Subscription, error) {
	stored, err := scanSubscription(q(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO subscriptions
		   (user_id, fund_id, amount, status, notify_channel, user_name, user_email, user_phone, created_at)
		 VALUES ($1, $2, $3, 'active', $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id, fund_id) DO UPDATE SET
		   amount = EXCLUDED.amount,
		   status = 'active',
		   notify_channel = EXCLUDED.notify_channel,
		   user_name = EXCLUDED.user_name,
		   user_email = EXCLUDED.user_email,
		   user_phone = EXCLUDED.user_phone,
		   created_at = EXCLUDED.created_at,
		   cancelled_at = NULL
		 WHERE subscriptions.status = 'cancelled'
		 RETURNING `+subscriptionColumns,
		sub.UserID, sub.FundID, sub.Amount, sub.NotifyChannel,
		contact.Name, contact.Email, contact.Phone, sub.CreatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrDuplicateSubscription
		}
		return nil, fmt.Errorf("insert subscription: %w", err)
	}

	stage(ctx, r.feed, model.ChangeEvent{
		PK:             model.KeyPrefixUser + stored.UserID,
		SK:             model.KeyPrefixSub + stored.FundID,
		Kind:           model.EventInsert,
		SequenceNumber: strconv.FormatInt(stored.CreatedAt.UnixNano(), 10),
		Attributes: model.RecordAttributes{
			Status:        stored.Status,
			Amount:        stored.Amount,
			Name:          contact.Name,
			Email:         contact.Email,
			Phone:         contact.Phone,
			NotifyChannel: stored.NotifyChannel,
		},
	})
	return stored, nil
}

// CancelActive flips an ACTIVE subscription to CANCELLED. The status
// condition is evaluated at write time, so two concurrent cancels cannot
// both refund.
func (r *SubscriptionRepo) CancelActive(ctx context.Context, userID, fundID string, at time.Time) (*model.Subscription, error) {
	var (
		s       model.Subscription
		contact model.Contact
	)
	err := q(ctx, r.pool).QueryRow(ctx,
		`UPDATE subscriptions
		 SET status = 'cancelled', cancelled_at = $3
		 WHERE user_id = $1 AND fund_id = $2 AND status = 'active'
		 RETURNING `+subscriptionColumns+`, user_name, user_email, user_phone`,
		userID, fundID, at,
	).Scan(&s.UserID, &s.FundID, &s.Amount, &s.Status, &s.NotifyChannel, &s.CreatedAt, &s.CancelledAt,
		&contact.Name, &contact.Email, &contact.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.cancelMiss(ctx, userID, fundID)
		}
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}

	stage(ctx, r.feed, model.ChangeEvent{
		PK:             model.KeyPrefixUser + s.UserID,
		SK:             model.KeyPrefixSub + s.FundID,
		Kind:           model.EventModify,
		SequenceNumber: strconv.FormatInt(s.CancelledAt.UnixNano(), 10),
		Attributes: model.RecordAttributes{
			Status:        s.Status,
			Amount:        s.Amount,
			Name:          contact.Name,
			Email:         contact.Email,
			Phone:         contact.Phone,
			NotifyChannel: s.NotifyChannel,
		},
	})
	return &s, nil
}

// cancelMiss distinguishes "no row" from "row already cancelled".
func (r *SubscriptionRepo) cancelMiss(ctx context.Context, userID, fundID string) error {
	var status model.SubscriptionStatus
	err := q(ctx, r.pool).QueryRow(ctx,
		`SELECT status FROM subscriptions WHERE user_id = $1 AND fund_id = $2`,
		userID, fundID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrSubscriptionNotFound
		}
		return fmt.Errorf("check subscription: %w", err)
	}
	if status == model.StatusCancelled {
		return model.ErrAlreadyCancelled
	}
	return fmt.Errorf("%w: subscription for user %s changed since read", model.ErrConflict, userID)
}

// ListByUser returns the user's subscriptions, optionally filtered by status.
func (r *SubscriptionRepo) ListByUser(ctx context.Context, userID string, status model.SubscriptionStatus) ([]model.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`
	args := []any{userID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := q(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}
