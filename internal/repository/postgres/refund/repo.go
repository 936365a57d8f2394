package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RefundRow struct {
	ID              string
	OrderID         string
	PurchaseOrderID string
	SupplierID      string
	UserID          string
	Reason          string
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type LedgerEntryRow struct {
	ID              string
	SupplierID      string
	Direction       string
	AmountKobo      int64
	RefundID        *string
	OrderID         *string
	PurchaseOrderID *string
	CreatedAt       time.Time
}

const refundColumns = `id::text, order_id::text, purchase_order_id::text, supplier_id::text, user_id::text,
       reason, status, created_at, updated_at`

func scanRefund(row pgx.Row) (*RefundRow, error) {
	var out RefundRow
	err := row.Scan(
		&out.ID, &out.OrderID, &out.PurchaseOrderID, &out.SupplierID, &out.UserID,
		&out.Reason, &out.Status, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type RefundRepo struct {
	db *pgxpool.Pool
}

func NewRefundRepo(db *pgxpool.Pool) *RefundRepo {
	return &RefundRepo{db: db}
}

func (r *RefundRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.db.BeginTx(ctx, pgx.TxOptions{})
}

// Insert resolves the accused supplier from the purchase order row so a
// client cannot blame a supplier that never touched the order.
func (r *RefundRepo) Insert(ctx context.Context, orderID, poID, userID, reason string) (*RefundRow, error) {
	const q = `
INSERT INTO refunds (order_id, purchase_order_id, supplier_id, user_id, reason)
SELECT $1::uuid, po.id, po.supplier_id, $3::uuid, $4
FROM purchase_orders po
WHERE po.id = $2::uuid
  AND po.order_id = $1::uuid
RETURNING ` + refundColumns + `;`
	return scanRefund(r.db.QueryRow(ctx, q, orderID, poID, userID, reason))
}

func (r *RefundRepo) GetByID(ctx context.Context, id string) (*RefundRow, error) {
	const q = `SELECT ` + refundColumns + ` FROM refunds WHERE id = $1::uuid;`
	return scanRefund(r.db.QueryRow(ctx, q, id))
}

func (r *RefundRepo) ListByOrder(ctx context.Context, orderID string) ([]RefundRow, error) {
	const q = `SELECT ` + refundColumns + ` FROM refunds WHERE order_id = $1::uuid ORDER BY created_at;`
	rows, err := r.db.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RefundRow
	for rows.Next() {
		rf, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rf)
	}
	return out, rows.Err()
}

func lockRefundStatus(ctx context.Context, tx pgx.Tx, refundID string) (string, error) {
	const q = `
SELECT status
FROM refunds
WHERE id = $1::uuid
FOR UPDATE;
`
	var status string
	if err := tx.QueryRow(ctx, q, refundID).Scan(&status); err != nil {
		return "", err
	}
	return status, nil
}

func updateRefundStatus(ctx context.Context, tx pgx.Tx, refundID, status string) (*RefundRow, error) {
	const q = `
UPDATE refunds
SET status = $2,
    updated_at = now()
WHERE id = $1::uuid
RETURNING ` + refundColumns + `;`
	return scanRefund(tx.QueryRow(ctx, q, refundID, status))
}

func insertRefundEvent(ctx context.Context, tx pgx.Tx, refundID, from, to, actorID string, note *string) error {
	const q = `
INSERT INTO refund_events (refund_id, from_state, to_state, actor_id, note)
VALUES ($1::uuid, $2, $3, $4::uuid, $5);
`
	_, err := tx.Exec(ctx, q, refundID, from, to, actorID, note)
	return err
}

// ListPaidAllocations returns the order's allocations that were already paid
// out, the set the clawback has to reverse.
func (r *RefundRepo) ListPaidAllocations(ctx context.Context, orderID string) (supplierIDs, poIDs []string, amounts []int64, err error) {
	const q = `
SELECT spa.supplier_id::text, spa.purchase_order_id::text, spa.amount_kobo
FROM supplier_payment_allocations spa
JOIN purchase_orders po ON po.id = spa.purchase_order_id
WHERE po.order_id = $1::uuid
  AND spa.status = 'paid'
ORDER BY spa.created_at;
`
	rows, err := r.db.Query(ctx, q, orderID)
	if err != nil {
		return nil, nil, nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var supplierID, poID string
		var amount int64
		if err := rows.Scan(&supplierID, &poID, &amount); err != nil {
			return nil, nil, nil, err
		}
		supplierIDs = append(supplierIDs, supplierID)
		poIDs = append(poIDs, poID)
		amounts = append(amounts, amount)
	}
	return supplierIDs, poIDs, amounts, rows.Err()
}

func insertLedgerEntry(ctx context.Context, tx pgx.Tx, supplierID, direction string, amountKobo int64, refundID, orderID, poID *string) (*LedgerEntryRow, error) {
	const q = `
INSERT INTO supplier_ledger_entries (supplier_id, direction, amount_kobo, refund_id, order_id, purchase_order_id)
VALUES ($1::uuid, $2, $3, $4::uuid, $5::uuid, $6::uuid)
RETURNING id::text, supplier_id::text, direction, amount_kobo, refund_id::text, order_id::text, purchase_order_id::text, created_at;
`
	var out LedgerEntryRow
	err := tx.QueryRow(ctx, q, supplierID, direction, amountKobo, refundID, orderID, poID).Scan(
		&out.ID, &out.SupplierID, &out.Direction, &out.AmountKobo,
		&out.RefundID, &out.OrderID, &out.PurchaseOrderID, &out.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func markAllocationRefunded(ctx context.Context, tx pgx.Tx, poID string) error {
	const q = `
UPDATE supplier_payment_allocations
SET status = 'refunded',
    updated_at = now()
WHERE purchase_order_id = $1::uuid;
`
	_, err := tx.Exec(ctx, q, poID)
	return err
}

func markPayoutRefunded(ctx context.Context, tx pgx.Tx, poID string) error {
	const q = `
UPDATE purchase_orders
SET payout_status = 'refunded',
    updated_at = now()
WHERE id = $1::uuid;
`
	_, err := tx.Exec(ctx, q, poID)
	return err
}

func (r *RefundRepo) SupplierBalance(ctx context.Context, supplierID string) (int64, error) {
	const q = `
SELECT coalesce(sum(CASE WHEN direction = 'CREDIT' THEN amount_kobo ELSE -amount_kobo END), 0)
FROM supplier_ledger_entries
WHERE supplier_id = $1::uuid;
`
	var balance int64
	if err := r.db.QueryRow(ctx, q, supplierID).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}
