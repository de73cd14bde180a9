package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/auripay/auripay-backend/internal/apperr"
	"github.com/auripay/auripay-backend/internal/models"
	repo "github.com/auripay/auripay-backend/internal/repository"
)

type transactionsRepo struct{ pool *pgxpool.Pool }

const txnColumns = `checkout_request_id, phone_number, customer_name, amount, platform_fee,
       status, service_name, result_desc, mpesa_receipt, created_at, updated_at`

func (r *transactionsRepo) RecordPending(ctx context.Context, tx models.Transaction) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	const q = `
INSERT INTO transactions (checkout_request_id, phone_number, customer_name, amount, platform_fee,
                          status, service_name, result_desc, mpesa_receipt, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,'pending',$6,$7,$8,$9,$9)
ON CONFLICT (checkout_request_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q,
		tx.CheckoutRequestID, tx.PhoneNumber, tx.CustomerName, tx.Amount, tx.PlatformFee,
		tx.ServiceName, tx.ResultDesc, tx.MpesaReceipt, tx.CreatedAt,
	)
	if err != nil {
		return &apperr.StorageError{Op: "record pending", Err: err}
	}
	return nil
}

// RecordSettlement is a single statement so the insert-vs-update fact is
// atomic with the write. The conflict branch carries the monotone guard:
// only a pending row may move to a terminal status, and only a success row
// may move to reversed. When the guard refuses, no row comes back and the
// existing row is re-read untouched.
//
// Failure callbacks carry no metadata and arrive with a zero amount; the
// initiated amount on the pending row must survive them.
//
// (xmax = 0) discriminates a fresh insert from a conflict update.
func (r *transactionsRepo) RecordSettlement(ctx context.Context, tx models.Transaction) (models.Transaction, repo.SettlementOutcome, error) {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	const q = `
INSERT INTO transactions (checkout_request_id, phone_number, customer_name, amount, platform_fee,
                          status, service_name, result_desc, mpesa_receipt, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())
ON CONFLICT (checkout_request_id) DO UPDATE SET
    status        = EXCLUDED.status,
    result_desc   = EXCLUDED.result_desc,
    amount        = CASE WHEN transactions.status = 'pending' AND EXCLUDED.amount <> 0
                         THEN EXCLUDED.amount ELSE transactions.amount END,
    phone_number  = COALESCE(NULLIF(EXCLUDED.phone_number, ''), transactions.phone_number),
    customer_name = COALESCE(NULLIF(EXCLUDED.customer_name, ''), transactions.customer_name),
    mpesa_receipt = COALESCE(NULLIF(EXCLUDED.mpesa_receipt, ''), transactions.mpesa_receipt),
    updated_at    = now()
WHERE transactions.status = 'pending'
   OR (transactions.status = 'success' AND EXCLUDED.status = 'reversed')
RETURNING checkout_request_id, phone_number, customer_name, amount, platform_fee,
          status, service_name, result_desc, mpesa_receipt, created_at, updated_at,
          (xmax = 0) AS inserted`

	var out models.Transaction
	var inserted bool
	err := r.pool.QueryRow(ctx, q,
		tx.CheckoutRequestID, tx.PhoneNumber, tx.CustomerName, tx.Amount, tx.PlatformFee,
		tx.Status, tx.ServiceName, tx.ResultDesc, tx.MpesaReceipt, tx.CreatedAt,
	).Scan(
		&out.CheckoutRequestID, &out.PhoneNumber, &out.CustomerName, &out.Amount, &out.PlatformFee,
		&out.Status, &out.ServiceName, &out.ResultDesc, &out.MpesaReceipt, &out.CreatedAt, &out.UpdatedAt,
		&inserted,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		// guard refused the write; the row is already terminal
		existing, gerr := r.Get(ctx, tx.CheckoutRequestID)
		if gerr != nil {
			return models.Transaction{}, repo.SettlementSkipped, gerr
		}
		return existing, repo.SettlementSkipped, nil
	}
	if err != nil {
		return models.Transaction{}, repo.SettlementSkipped, &apperr.StorageError{Op: "record settlement", Err: err}
	}
	if inserted {
		return out, repo.SettlementInserted, nil
	}
	return out, repo.SettlementUpdated, nil
}

func (r *transactionsRepo) MarkReversedByReceipt(ctx context.Context, receipt string) (bool, error) {
	const q = `
UPDATE transactions
   SET status = 'reversed', updated_at = now()
 WHERE mpesa_receipt = $1 AND status = 'success'`
	tag, err := r.pool.Exec(ctx, q, receipt)
	if err != nil {
		return false, &apperr.StorageError{Op: "mark reversed", Err: err}
	}
	return tag.RowsAffected() > 0, nil
}

func (r *transactionsRepo) Get(ctx context.Context, checkoutRequestID string) (models.Transaction, error) {
	var tx models.Transaction
	err := r.pool.QueryRow(ctx,
		`SELECT `+txnColumns+` FROM transactions WHERE checkout_request_id = $1`,
		checkoutRequestID,
	).Scan(
		&tx.CheckoutRequestID, &tx.PhoneNumber, &tx.CustomerName, &tx.Amount, &tx.PlatformFee,
		&tx.Status, &tx.ServiceName, &tx.ResultDesc, &tx.MpesaReceipt, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Transaction{}, repo.ErrNotFound
	}
	if err != nil {
		return models.Transaction{}, &apperr.StorageError{Op: "get transaction", Err: err}
	}
	return tx, nil
}

func (r *transactionsRepo) List(ctx context.Context, limit, offset int) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+txnColumns+` FROM transactions ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, &apperr.StorageError{Op: "list transactions", Err: err}
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(
			&tx.CheckoutRequestID, &tx.PhoneNumber, &tx.CustomerName, &tx.Amount, &tx.PlatformFee,
			&tx.Status, &tx.ServiceName, &tx.ResultDesc, &tx.MpesaReceipt, &tx.CreatedAt, &tx.UpdatedAt,
		); err != nil {
			return nil, &apperr.StorageError{Op: "scan transaction", Err: err}
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperr.StorageError{Op: "list transactions", Err: err}
	}
	return out, nil
}

func (r *transactionsRepo) KnownIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	known := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return known, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT checkout_request_id FROM transactions WHERE checkout_request_id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, &apperr.StorageError{Op: "known ids", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &apperr.StorageError{Op: "known ids", Err: err}
		}
		known[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, &apperr.StorageError{Op: "known ids", Err: err}
	}
	return known, nil
}
