package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CristianMorenoC/prueba-tecnica/internal/model"
)

// LedgerRepo is the append-only transaction record. Rows are never updated
// or deleted; the table is the audit trail and the only source for history
// queries.
type LedgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

func (r *LedgerRepo) Append(ctx context.Context, t *model.Transaction) (*model.Transaction, error) {
	err := q(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO transactions
		   (user_id, fund_id, amount, transaction_type, prev_balance, new_balance, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		t.UserID, t.FundID, t.Amount, t.Type, t.PrevBalance, t.NewBalance, t.Timestamp,
	).Scan(&t.ID)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	return t, nil
}

// List returns ledger entries newest first, applying whichever filters the
// query carries.
func (r *LedgerRepo) List(ctx context.Context, query model.TransactionQuery) ([]model.Transaction, error) {
	sql := `SELECT id, user_id, fund_id, amount, transaction_type, prev_balance, new_balance, created_at
	        FROM transactions`
	var (
		conds []string
		args  []any
	)
	if query.UserID != "" {
		args = append(args, query.UserID)
		conds = append(conds, "user_id = $"+strconv.Itoa(len(args)))
	}
	if query.FundID != "" {
		args = append(args, query.FundID)
		conds = append(conds, "fund_id = $"+strconv.Itoa(len(args)))
	}
	if !query.Since.IsZero() {
		args = append(args, query.Since)
		conds = append(conds, "created_at >= $"+strconv.Itoa(len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			sql += " WHERE " + c
		} else {
			sql += " AND " + c
		}
	}
	limit := query.Limit
	if limit <= 0 || limit > 200 {
		limit = defaultPageSize
	}
	args = append(args, limit)
	sql += " ORDER BY created_at DESC, id DESC LIMIT $" + strconv.Itoa(len(args))

	rows, err := q(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.FundID, &t.Amount, &t.Type,
			&t.PrevBalance, &t.NewBalance, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}
