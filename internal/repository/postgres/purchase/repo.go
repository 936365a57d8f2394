package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PurchaseOrderRow struct {
	ID                 string
	OrderID            string
	SupplierID         string
	SubtotalKobo       int64
	PlatformFeeKobo    int64
	SupplierAmountKobo int64
	PayoutPct          int
	Status             string
	PayoutStatus       string
	DeliveryOtpID      *string
	DeliveryVerifiedAt *time.Time
	DeliveredAt        *time.Time
	PaidOutAt          *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type PurchaseOrderItemRow struct {
	ID                    string
	PurchaseOrderID       string
	OrderItemID           string
	ProductID             string
	Qty                   int
	SupplierUnitPriceKobo int64
	ExternalStatus        *string
	ExternalRef           *string
	ReceiptURL            *string
}

const poColumns = `id::text, order_id::text, supplier_id::text, subtotal_kobo, platform_fee_kobo, supplier_amount_kobo,
       payout_pct, status, payout_status, delivery_otp_id::text, delivery_verified_at, delivered_at, paid_out_at,
       created_at, updated_at`

func scanPurchaseOrder(row pgx.Row) (*PurchaseOrderRow, error) {
	var out PurchaseOrderRow
	err := row.Scan(
		&out.ID, &out.OrderID, &out.SupplierID, &out.SubtotalKobo, &out.PlatformFeeKobo, &out.SupplierAmountKobo,
		&out.PayoutPct, &out.Status, &out.PayoutStatus, &out.DeliveryOtpID, &out.DeliveryVerifiedAt,
		&out.DeliveredAt, &out.PaidOutAt, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type PurchaseRepo struct {
	db *pgxpool.Pool
}

func NewPurchaseRepo(db *pgxpool.Pool) *PurchaseRepo {
	return &PurchaseRepo{db: db}
}

func (r *PurchaseRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.db.BeginTx(ctx, pgx.TxOptions{})
}

type splitItemRow struct {
	OrderItemID           string
	ProductID             string
	SupplierID            string
	SupplierKind          string
	SupplierPayoutPct     *int
	Qty                   int
	UnitPriceKobo         int64
	SupplierUnitPriceKobo int64
}

// getOrderForSplit joins order items with their suppliers so the splitter
// sees fulfilment kind and payout override in one read.
func (r *PurchaseRepo) getOrderForSplit(ctx context.Context, orderID string) (id, userID, status string, subtotal int64, items []splitItemRow, err error) {
	const qOrder = `
SELECT id::text, user_id::text, status, subtotal_kobo
FROM orders
WHERE id = $1::uuid;
`
	if err = r.db.QueryRow(ctx, qOrder, orderID).Scan(&id, &userID, &status, &subtotal); err != nil {
		return "", "", "", 0, nil, err
	}

	const qItems = `
SELECT oi.id::text, oi.product_id::text, oi.supplier_id::text, s.kind, s.payout_pct,
       oi.qty, oi.unit_price_kobo, oi.supplier_unit_price_kobo
FROM order_items oi
JOIN suppliers s ON s.id = oi.supplier_id
WHERE oi.order_id = $1::uuid
ORDER BY oi.created_at;
`
	rows, err := r.db.Query(ctx, qItems, orderID)
	if err != nil {
		return "", "", "", 0, nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var it splitItemRow
		if err := rows.Scan(
			&it.OrderItemID, &it.ProductID, &it.SupplierID, &it.SupplierKind, &it.SupplierPayoutPct,
			&it.Qty, &it.UnitPriceKobo, &it.SupplierUnitPriceKobo,
		); err != nil {
			return "", "", "", 0, nil, err
		}
		items = append(items, it)
	}
	return id, userID, status, subtotal, items, rows.Err()
}

func (r *PurchaseRepo) AlreadySplit(ctx context.Context, orderID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM purchase_orders WHERE order_id = $1::uuid);`
	var exists bool
	if err := r.db.QueryRow(ctx, q, orderID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func insertPurchaseOrder(ctx context.Context, tx pgx.Tx, orderID, supplierID string, subtotal, fee, supplierAmount int64, payoutPct int) (*PurchaseOrderRow, error) {
	const q = `
INSERT INTO purchase_orders (order_id, supplier_id, subtotal_kobo, platform_fee_kobo, supplier_amount_kobo, payout_pct)
VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6)
RETURNING ` + poColumns + `;`
	return scanPurchaseOrder(tx.QueryRow(ctx, q, orderID, supplierID, subtotal, fee, supplierAmount, payoutPct))
}

func insertPurchaseOrderItem(ctx context.Context, tx pgx.Tx, poID, orderItemID, productID string, qty int, supplierUnitPrice int64) (*PurchaseOrderItemRow, error) {
	const q = `
INSERT INTO purchase_order_items (purchase_order_id, order_item_id, product_id, qty, supplier_unit_price_kobo)
VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5)
RETURNING id::text, purchase_order_id::text, order_item_id::text, product_id::text, qty, supplier_unit_price_kobo,
          external_status, external_ref, receipt_url;
`
	var out PurchaseOrderItemRow
	err := tx.QueryRow(ctx, q, poID, orderItemID, productID, qty, supplierUnitPrice).Scan(
		&out.ID, &out.PurchaseOrderID, &out.OrderItemID, &out.ProductID, &out.Qty, &out.SupplierUnitPriceKobo,
		&out.ExternalStatus, &out.ExternalRef, &out.ReceiptURL,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func insertPaymentAllocation(ctx context.Context, tx pgx.Tx, supplierID, poID string, amount int64) error {
	const q = `
INSERT INTO supplier_payment_allocations (supplier_id, purchase_order_id, amount_kobo, status)
VALUES ($1::uuid, $2::uuid, $3, 'pending');
`
	_, err := tx.Exec(ctx, q, supplierID, poID, amount)
	return err
}

func (r *PurchaseRepo) GetPurchaseOrder(ctx context.Context, id string) (*PurchaseOrderRow, error) {
	const q = `SELECT ` + poColumns + ` FROM purchase_orders WHERE id = $1::uuid;`
	return scanPurchaseOrder(r.db.QueryRow(ctx, q, id))
}

func (r *PurchaseRepo) ListByOrder(ctx context.Context, orderID string) ([]PurchaseOrderRow, error) {
	const q = `SELECT ` + poColumns + ` FROM purchase_orders WHERE order_id = $1::uuid ORDER BY created_at;`
	rows, err := r.db.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PurchaseOrderRow
	for rows.Next() {
		po, err := scanPurchaseOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *po)
	}
	return out, rows.Err()
}

func (r *PurchaseRepo) ListItems(ctx context.Context, poID string) ([]PurchaseOrderItemRow, error) {
	const q = `
SELECT id::text, purchase_order_id::text, order_item_id::text, product_id::text, qty, supplier_unit_price_kobo,
       external_status, external_ref, receipt_url
FROM purchase_order_items
WHERE purchase_order_id = $1::uuid
ORDER BY id;
`
	rows, err := r.db.Query(ctx, q, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PurchaseOrderItemRow
	for rows.Next() {
		var it PurchaseOrderItemRow
		if err := rows.Scan(
			&it.ID, &it.PurchaseOrderID, &it.OrderItemID, &it.ProductID, &it.Qty, &it.SupplierUnitPriceKobo,
			&it.ExternalStatus, &it.ExternalRef, &it.ReceiptURL,
		); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func lockPurchaseOrderStatus(ctx context.Context, tx pgx.Tx, poID string) (string, error) {
	const q = `
SELECT status
FROM purchase_orders
WHERE id = $1::uuid
FOR UPDATE;
`
	var status string
	if err := tx.QueryRow(ctx, q, poID).Scan(&status); err != nil {
		return "", err
	}
	return status, nil
}

func updatePurchaseOrderStatus(ctx context.Context, tx pgx.Tx, poID, status string) (*PurchaseOrderRow, error) {
	const q = `
UPDATE purchase_orders
SET status = $2,
    updated_at = now()
WHERE id = $1::uuid
RETURNING ` + poColumns + `;`
	return scanPurchaseOrder(tx.QueryRow(ctx, q, poID, status))
}

// markDelivered also moves the payout into held: the funds are earmarked for
// the supplier from the moment of confirmed delivery until release.
func markDelivered(ctx context.Context, tx pgx.Tx, poID, otpRequestID string) (*PurchaseOrderRow, error) {
	const q = `
UPDATE purchase_orders
SET status = 'delivered',
    payout_status = CASE WHEN payout_status = 'pending' THEN 'held' ELSE payout_status END,
    delivery_otp_id = $2::uuid,
    delivery_verified_at = now(),
    delivered_at = now(),
    updated_at = now()
WHERE id = $1::uuid
RETURNING ` + poColumns + `;`
	return scanPurchaseOrder(tx.QueryRow(ctx, q, poID, otpRequestID))
}

func holdAllocation(ctx context.Context, tx pgx.Tx, poID string) error {
	const q = `
UPDATE supplier_payment_allocations
SET status = 'held',
    updated_at = now()
WHERE purchase_order_id = $1::uuid
  AND status = 'pending';
`
	_, err := tx.Exec(ctx, q, poID)
	return err
}

// undeliveredSiblings counts the order's purchase orders not yet delivered,
// failed legs excluded so a partially failed order can still complete.
func undeliveredSiblings(ctx context.Context, tx pgx.Tx, orderID string) (int, error) {
	const q = `
SELECT count(*)
FROM purchase_orders
WHERE order_id = $1::uuid
  AND status NOT IN ('delivered', 'failed_purchase');
`
	var n int
	if err := tx.QueryRow(ctx, q, orderID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func promoteOrderDelivered(ctx context.Context, tx pgx.Tx, orderID string) error {
	const q = `
UPDATE orders
SET status = 'delivered_all',
    updated_at = now()
WHERE id = $1::uuid
  AND status = 'paid';
`
	_, err := tx.Exec(ctx, q, orderID)
	return err
}

func (r *PurchaseRepo) MarkPurchaseOrderFailed(ctx context.Context, poID string) error {
	const q = `
UPDATE purchase_orders
SET status = 'failed_purchase',
    updated_at = now()
WHERE id = $1::uuid;
`
	_, err := r.db.Exec(ctx, q, poID)
	return err
}

func (r *PurchaseRepo) MarkItemPlaced(ctx context.Context, itemID, externalRef string) error {
	const q = `
UPDATE purchase_order_items
SET external_status = 'placed',
    external_ref = $2
WHERE id = $1::uuid;
`
	_, err := r.db.Exec(ctx, q, itemID, externalRef)
	return err
}

func (r *PurchaseRepo) MarkItemPaid(ctx context.Context, itemID string) error {
	const q = `
UPDATE purchase_order_items
SET external_status = 'paid'
WHERE id = $1::uuid;
`
	_, err := r.db.Exec(ctx, q, itemID)
	return err
}

func (r *PurchaseRepo) MarkItemReceipt(ctx context.Context, itemID, receiptURL string) error {
	const q = `
UPDATE purchase_order_items
SET receipt_url = $2
WHERE id = $1::uuid;
`
	_, err := r.db.Exec(ctx, q, itemID, receiptURL)
	return err
}

func (r *PurchaseRepo) MarkItemFailed(ctx context.Context, itemID, diagnosticRef string) error {
	const q = `
UPDATE purchase_order_items
SET external_status = 'failed',
    failure_reason = $2
WHERE id = $1::uuid;
`
	_, err := r.db.Exec(ctx, q, itemID, diagnosticRef)
	return err
}

func (r *PurchaseRepo) OrderOwner(ctx context.Context, poID string) (userID, phone string, err error) {
	const q = `
SELECT u.id::text, u.phone
FROM purchase_orders po
JOIN orders o ON o.id = po.order_id
JOIN users u ON u.id = o.user_id
WHERE po.id = $1::uuid;
`
	err = r.db.QueryRow(ctx, q, poID).Scan(&userID, &phone)
	return userID, phone, err
}
