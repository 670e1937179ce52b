package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CristianMorenoC/prueba-tecnica/internal/model"
)

const defaultPageSize = 50

// FundRepo reads the fund catalog. The catalog is reference data seeded by
// migration; nothing in the request path writes to it.
type FundRepo struct {
	pool *pgxpool.Pool
}

func NewFundRepo(pool *pgxpool.Pool) *FundRepo {
	return &FundRepo{pool: pool}
}

func (r *FundRepo) GetByID(ctx context.Context, fundID string) (*model.Fund, error) {
	var f model.Fund
	err := q(ctx, r.pool).QueryRow(ctx,
		`SELECT fund_id, name, min_amount, category FROM funds WHERE fund_id = $1`,
		fundID,
	).Scan(&f.FundID, &f.Name, &f.MinAmount, &f.Category)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrFundNotFound
		}
		return nil, fmt.Errorf("select fund: %w", err)
	}
	return &f, nil
}

// List pages through the catalog by fund_id. The returned cursor is the last
// fund_id of the page, empty when there are no more rows.
func (r *FundRepo) List(ctx context.Context, limit int, cursor string) ([]model.Fund, string, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultPageSize
	}

	rows, err := q(ctx, r.pool).Query(ctx,
		`SELECT fund_id, name, min_amount, category
		 FROM funds
		 WHERE fund_id > $1
		 ORDER BY fund_id
		 LIMIT $2`,
		cursor, limit+1,
	)
	if err != nil {
		return nil, "", fmt.Errorf("select funds: %w", err)
	}
	defer rows.Close()

	var funds []model.Fund
	for rows.Next() {
		var f model.Fund
		if err := rows.Scan(&f.FundID, &f.Name, &f.MinAmount, &f.Category); err != nil {
			return nil, "", fmt.Errorf("scan fund: %w", err)
		}
		funds = append(funds, f)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterate funds: %w", err)
	}

	next := ""
	if len(funds) > limit {
		funds = funds[:limit]
		next = funds[limit-1].FundID
	}
	return funds, next, nil
}
