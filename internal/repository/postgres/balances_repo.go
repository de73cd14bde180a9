package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/auripay/auripay-backend/internal/apperr"
	"github.com/auripay/auripay-backend/internal/models"
)

type balancesRepo struct{ pool *pgxpool.Pool }

func (r *balancesRepo) Upsert(ctx context.Context, snap models.BalanceSnapshot) error {
	const q = `
INSERT INTO balances (account_type, currency, amount, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (account_type) DO UPDATE SET
    currency   = EXCLUDED.currency,
    amount     = EXCLUDED.amount,
    updated_at = now()`
	_, err := r.pool.Exec(ctx, q, snap.AccountType, snap.Currency, snap.Amount)
	if err != nil {
		return &apperr.StorageError{Op: "upsert balance", Err: err}
	}
	return nil
}

func (r *balancesRepo) List(ctx context.Context) ([]models.BalanceSnapshot, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT account_type, currency, amount, updated_at FROM balances ORDER BY account_type`)
	if err != nil {
		return nil, &apperr.StorageError{Op: "list balances", Err: err}
	}
	defer rows.Close()

	var out []models.BalanceSnapshot
	for rows.Next() {
		var b models.BalanceSnapshot
		if err := rows.Scan(&b.AccountType, &b.Currency, &b.Amount, &b.UpdatedAt); err != nil {
			return nil, &apperr.StorageError{Op: "scan balance", Err: err}
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperr.StorageError{Op: "list balances", Err: err}
	}
	return out, nil
}
