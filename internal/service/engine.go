package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/CristianMorenoC/prueba-tecnica/internal/model"
)

// conflictRetries bounds how often a lost optimistic-lock race is retried
// before it surfaces to the caller.
const conflictRetries = 3

const conflictBackoff = 25 * time.Millisecond

// Engine is the subscription lifecycle engine: it validates a request
// against the fund catalog and the account balance, then commits the
// balance mutation, the subscription transition and the ledger append as
// one unit of work. Conditional writes plus a bounded retry keep concurrent
// requests for the same user from double-spending or double-refunding.
type Engine struct {
	funds    FundCatalog
	accounts AccountStore
	subs     SubscriptionStore
	ledger   LedgerStore
	uow      UnitOfWork
	now      func() time.Time
}

func NewEngine(funds FundCatalog, accounts AccountStore, subs SubscriptionStore, ledger LedgerStore, uow UnitOfWork) *Engine {
	return &Engine{
		funds:    funds,
		accounts: accounts,
		subs:     subs,
		ledger:   ledger,
		uow:      uow,
		now:      time.Now,
	}
}

var _ SubscriptionService = (*Engine)(nil)

func (e *Engine) Subscribe(ctx context.Context, req model.SubscribeRequest) (*model.Subscription, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", model.ErrInvalidAmount, req.Amount)
	}
	if !req.NotifyChannel.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidChannel, req.NotifyChannel)
	}

	fund, err := e.funds.GetByID(ctx, req.FundID)
	if err != nil {
		return nil, err
	}
	if req.Amount < fund.MinAmount {
		return nil, fmt.Errorf("%w: el monto mínimo para vincularse al fondo %s es %d",
			model.ErrMinAmount, fund.Name, fund.MinAmount)
	}

	var created *model.Subscription
	err = e.withConflictRetry(ctx, func(ctx context.Context) error {
		acct, err := e.accounts.Get(ctx, req.UserID)
		if err != nil {
			return err
		}
		newBalance := acct.Balance - req.Amount
		if newBalance < 0 {
			return fmt.Errorf("%w: no tiene saldo disponible para vincularse al fondo %s",
				model.ErrInsufficientBalance, fund.Name)
		}

		now := e.now().UTC()
		return e.uow.Within(ctx, func(ctx context.Context) error {
			if err := e.accounts.UpdateBalance(ctx, acct.UserID, acct.Balance, newBalance); err != nil {
				return err
			}
			stored, err := e.subs.Create(ctx, &model.Subscription{
				UserID:        acct.UserID,
				FundID:        fund.FundID,
				Amount:        req.Amount,
				Status:        model.StatusActive,
				NotifyChannel: req.NotifyChannel,
				CreatedAt:     now,
			}, model.Contact{Name: acct.Name, Email: acct.Email, Phone: acct.Phone})
			if err != nil {
				return err
			}
			if _, err := e.ledger.Append(ctx, &model.Transaction{
				UserID:      acct.UserID,
				FundID:      fund.FundID,
				Amount:      req.Amount,
				Type:        model.TxOpen,
				PrevBalance: acct.Balance,
				NewBalance:  newBalance,
				Timestamp:   now,
			}); err != nil {
				return err
			}
			created = stored
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (e *Engine) Cancel(ctx context.Context, req model.CancelRequest) (*model.Subscription, error) {
	fund, err := e.funds.GetByID(ctx, req.FundID)
	if err != nil {
		return nil, err
	}

	var cancelled *model.Subscription
	err = e.withConflictRetry(ctx, func(ctx context.Context) error {
		acct, err := e.accounts.Get(ctx, req.UserID)
		if err != nil {
			return err
		}
		sub, err := e.subs.Get(ctx, req.UserID, fund.FundID)
		if err != nil {
			return err
		}
		if sub.Status != model.StatusActive {
			return fmt.Errorf("%w: fund %s", model.ErrAlreadyCancelled, fund.FundID)
		}

		// Full refund, no penalty.
		newBalance := acct.Balance + sub.Amount
		now := e.now().UTC()
		return e.uow.Within(ctx, func(ctx context.Context) error {
			if err := e.accounts.UpdateBalance(ctx, acct.UserID, acct.Balance, newBalance); err != nil {
				return err
			}
			updated, err := e.subs.CancelActive(ctx, acct.UserID, fund.FundID, now)
			if err != nil {
				return err
			}
			if _, err := e.ledger.Append(ctx, &model.Transaction{
				UserID:      acct.UserID,
				FundID:      fund.FundID,
				Amount:      sub.Amount,
				Type:        model.TxCancel,
				PrevBalance: acct.Balance,
				NewBalance:  newBalance,
				Timestamp:   now,
			}); err != nil {
				return err
			}
			cancelled = updated
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// withConflictRetry reruns the whole validate-then-write sequence when a
// conditional write loses a race. Validation and not-found errors are
// terminal and pass through untouched.
func (e *Engine) withConflictRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(conflictRetries, retry.NewConstant(conflictBackoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, model.ErrConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (e *Engine) ListFunds(ctx context.Context, limit int, cursor string) ([]model.Fund, string, error) {
	return e.funds.List(ctx, limit, cursor)
}

func (e *Engine) ListSubscriptions(ctx context.Context, userID string, status model.SubscriptionStatus) ([]model.Subscription, error) {
	return e.subs.ListByUser(ctx, userID, status)
}

func (e *Engine) ListTransactions(ctx context.Context, query model.TransactionQuery) ([]model.Transaction, error) {
	return e.ledger.List(ctx, query)
}

func (e *Engine) CreateUser(ctx context.Context, req model.CreateUserRequest) (*model.Account, error) {
	if req.InitialBalance < 0 {
		return nil, fmt.Errorf("%w: initial balance %d", model.ErrInvalidAmount, req.InitialBalance)
	}
	channel := req.NotifyChannel
	if channel == "" {
		channel = model.ChannelEmail
	}
	if !channel.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidChannel, channel)
	}
	userID := req.UserID
	if userID == "" {
		userID = newUserID(e.now())
	}
	return e.accounts.Create(ctx, &model.Account{
		UserID:        userID,
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		Balance:       req.InitialBalance,
		NotifyChannel: channel,
	})
}

func (e *Engine) GetAccount(ctx context.Context, userID string) (*model.Account, error) {
	return e.accounts.Get(ctx, userID)
}

// newUserID builds ids like u<last 5 digits of unix time><4 random digits>.
func newUserID(now time.Time) string {
	ts := strconv.FormatInt(now.Unix(), 10)
	if len(ts) > 5 {
		ts = ts[len(ts)-5:]
	}
	return fmt.Sprintf("u%s%04d", ts, rand.IntN(10000))
}
