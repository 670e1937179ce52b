package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CristianMorenoC/prueba-tecnica/internal/model"
)

// querier is the subset of pgx shared by a pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

type txState struct {
	tx     pgx.Tx
	events []model.ChangeEvent
}

// q returns the querier for ctx: the enclosing transaction if one is open,
// otherwise the pool.
func q(ctx context.Context, pool *pgxpool.Pool) querier {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		return st.tx
	}
	return pool
}

// stage records a change event. Inside a unit of work it is held until
// commit; outside one it is published immediately.
func stage(ctx context.Context, feed *ChangeFeed, ev model.ChangeEvent) {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		st.events = append(st.events, ev)
		return
	}
	feed.PublishBatch([]model.ChangeEvent{ev})
}

// TxRunner runs a function inside one Postgres transaction, so the balance
// update, subscription write and ledger append of a subscribe/cancel commit
// or roll back together. Staged change events leave the process only after
// a successful commit.
type TxRunner struct {
	pool *pgxpool.Pool
	feed *ChangeFeed
}

func NewTxRunner(pool *pgxpool.Pool, feed *ChangeFeed) *TxRunner {
	return &TxRunner{pool: pool, feed: feed}
}

func (r *TxRunner) Within(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	st := &txState{tx: tx}
	if err := fn(context.WithValue(ctx, txKey{}, st)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	r.feed.PublishBatch(st.events)
	return nil
}
