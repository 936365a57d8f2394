package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TransferEventRow struct {
	ID              string
	PurchaseOrderID string
	ProviderRef     string
	Trial           bool
	CreatedAt       time.Time
}

type SupplierProfileRow struct {
	SupplierID    string
	BankVerified  bool
	AccountName   *string
	AccountNumber *string
	BankCode      *string
	RecipientCode *string
}

type PayoutRepo struct {
	db *pgxpool.Pool
}

func NewPayoutRepo(db *pgxpool.Pool) *PayoutRepo {
	return &PayoutRepo{db: db}
}

func (r *PayoutRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.db.BeginTx(ctx, pgx.TxOptions{})
}

// WithAdvisoryLock holds a session-level advisory lock keyed by the PO id on
// a dedicated connection for the duration of fn. Session scope (not
// transaction scope) lets the caller do external work under the lock without
// keeping a database transaction open.
func (r *PayoutRepo) WithAdvisoryLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock(hashtext($1));`, key); err != nil {
		return err
	}
	defer func() {
		_, _ = conn.Exec(ctx, `SELECT pg_advisory_unlock(hashtext($1));`, key)
	}()

	return fn(ctx)
}

func (r *PayoutRepo) HasOpenRefund(ctx context.Context, poID string, openStatuses []string) (bool, error) {
	const q = `
SELECT EXISTS (
	SELECT 1
	FROM refunds
	WHERE purchase_order_id = $1::uuid
	  AND status = ANY($2)
);
`
	var open bool
	if err := r.db.QueryRow(ctx, q, poID, openStatuses).Scan(&open); err != nil {
		return false, err
	}
	return open, nil
}

func (r *PayoutRepo) FindTransferEvent(ctx context.Context, poID string) (*TransferEventRow, error) {
	const q = `
SELECT id::text, purchase_order_id::text, provider_ref, trial, created_at
FROM payout_transfer_events
WHERE purchase_order_id = $1::uuid;
`
	var out TransferEventRow
	err := r.db.QueryRow(ctx, q, poID).Scan(&out.ID, &out.PurchaseOrderID, &out.ProviderRef, &out.Trial, &out.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *PayoutRepo) GetSupplierProfile(ctx context.Context, supplierID string) (*SupplierProfileRow, error) {
	const q = `
SELECT id::text, bank_verified, bank_account_name, bank_account_number, bank_code, paystack_recipient_code
FROM suppliers
WHERE id = $1::uuid;
`
	var out SupplierProfileRow
	err := r.db.QueryRow(ctx, q, supplierID).Scan(
		&out.SupplierID, &out.BankVerified, &out.AccountName, &out.AccountNumber, &out.BankCode, &out.RecipientCode,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *PayoutRepo) CacheRecipientCode(ctx context.Context, supplierID, code string) error {
	const q = `
UPDATE suppliers
SET paystack_recipient_code = $2,
    updated_at = now()
WHERE id = $1::uuid;
`
	_, err := r.db.Exec(ctx, q, supplierID, code)
	return err
}

func insertTransferEvent(ctx context.Context, tx pgx.Tx, poID, providerRef string, trial bool) error {
	const q = `
INSERT INTO payout_transfer_events (purchase_order_id, provider_ref, trial)
VALUES ($1::uuid, $2, $3);
`
	_, err := tx.Exec(ctx, q, poID, providerRef, trial)
	return err
}

// markPayoutReleased never touches a refunded row: the clawback made that
// status terminal.
func markPayoutReleased(ctx context.Context, tx pgx.Tx, poID string) error {
	const q = `
UPDATE purchase_orders
SET payout_status = 'released',
    paid_out_at = coalesce(paid_out_at, now()),
    updated_at = now()
WHERE id = $1::uuid
  AND payout_status <> 'refunded';
`
	_, err := tx.Exec(ctx, q, poID)
	return err
}

func markAllocationPaid(ctx context.Context, tx pgx.Tx, poID string) error {
	const q = `
UPDATE supplier_payment_allocations
SET status = 'paid',
    updated_at = now()
WHERE purchase_order_id = $1::uuid
  AND status NOT IN ('paid', 'refunded');
`
	_, err := tx.Exec(ctx, q, poID)
	return err
}

func insertCreditEntry(ctx context.Context, tx pgx.Tx, supplierID, poID string, amountKobo int64) error {
	const q = `
INSERT INTO supplier_ledger_entries (supplier_id, direction, amount_kobo, purchase_order_id, order_id)
SELECT $1::uuid, 'CREDIT', $3, po.id, po.order_id
FROM purchase_orders po
WHERE po.id = $2::uuid;
`
	_, err := tx.Exec(ctx, q, supplierID, poID, amountKobo)
	return err
}
