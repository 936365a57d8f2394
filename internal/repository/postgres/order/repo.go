package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderRow struct {
	ID           string
	UserID       string
	Status       string
	Currency     string
	SubtotalKobo int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type OrderItemRow struct {
	ID                    string
	OrderID               string
	ProductID             string
	SupplierID            string
	Qty                   int
	UnitPriceKobo         int64
	SupplierUnitPriceKobo int64
	CreatedAt             time.Time
}

type OrderRepo struct {
	db *pgxpool.Pool
}

func NewOrderRepo(db *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{db: db}
}

func (r *OrderRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.db.BeginTx(ctx, pgx.TxOptions{})
}

func ensureUserExists(ctx context.Context, tx pgx.Tx, userID string) error {
	const q = `SELECT 1 FROM users WHERE id = $1::uuid AND is_active;`
	var one int
	return tx.QueryRow(ctx, q, userID).Scan(&one)
}

// getOfferPricing returns the customer unit price and the chosen supplier's
// unit cost for a product, or pgx.ErrNoRows when the supplier does not offer
// the product.
func getOfferPricing(ctx context.Context, tx pgx.Tx, productID, supplierID string) (unitPrice, supplierUnitPrice int64, err error) {
	const q = `
SELECT p.price_kobo, sp.unit_price_kobo
FROM products p
JOIN supplier_products sp ON sp.product_id = p.id
WHERE p.id = $1::uuid
  AND sp.supplier_id = $2::uuid
  AND p.is_active;
`
	if err := tx.QueryRow(ctx, q, productID, supplierID).Scan(&unitPrice, &supplierUnitPrice); err != nil {
		return 0, 0, err
	}
	return unitPrice, supplierUnitPrice, nil
}

func insertOrder(ctx context.Context, tx pgx.Tx, userID string) (*OrderRow, error) {
	const q = `
INSERT INTO orders (user_id)
VALUES ($1::uuid)
RETURNING id::text, user_id::text, status, currency, subtotal_kobo, created_at, updated_at;
`
	var out OrderRow
	err := tx.QueryRow(ctx, q, userID).Scan(
		&out.ID, &out.UserID, &out.Status, &out.Currency, &out.SubtotalKobo, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func insertOrderItem(ctx context.Context, tx pgx.Tx, orderID, productID, supplierID string, qty int, unitPrice, supplierUnitPrice int64) (*OrderItemRow, error) {
	const q = `
INSERT INTO order_items (order_id, product_id, supplier_id, qty, unit_price_kobo, supplier_unit_price_kobo)
VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6)
RETURNING id::text, order_id::text, product_id::text, supplier_id::text, qty, unit_price_kobo, supplier_unit_price_kobo, created_at;
`
	var out OrderItemRow
	err := tx.QueryRow(ctx, q, orderID, productID, supplierID, qty, unitPrice, supplierUnitPrice).Scan(
		&out.ID, &out.OrderID, &out.ProductID, &out.SupplierID, &out.Qty,
		&out.UnitPriceKobo, &out.SupplierUnitPriceKobo, &out.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func updateOrderSubtotal(ctx context.Context, tx pgx.Tx, orderID string, subtotal int64) (*OrderRow, error) {
	const q = `
UPDATE orders
SET subtotal_kobo = $2,
    updated_at = now()
WHERE id = $1::uuid
RETURNING id::text, user_id::text, status, currency, subtotal_kobo, created_at, updated_at;
`
	var out OrderRow
	err := tx.QueryRow(ctx, q, orderID, subtotal).Scan(
		&out.ID, &out.UserID, &out.Status, &out.Currency, &out.SubtotalKobo, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func lockOrderStatus(ctx context.Context, tx pgx.Tx, orderID string) (string, error) {
	const q = `
SELECT status
FROM orders
WHERE id = $1::uuid
FOR UPDATE;
`
	var status string
	if err := tx.QueryRow(ctx, q, orderID).Scan(&status); err != nil {
		return "", err
	}
	return status, nil
}

func updateOrderStatus(ctx context.Context, tx pgx.Tx, orderID, status string) (*OrderRow, error) {
	const q = `
UPDATE orders
SET status = $2,
    updated_at = now()
WHERE id = $1::uuid
RETURNING id::text, user_id::text, status, currency, subtotal_kobo, created_at, updated_at;
`
	var out OrderRow
	err := tx.QueryRow(ctx, q, orderID, status).Scan(
		&out.ID, &out.UserID, &out.Status, &out.Currency, &out.SubtotalKobo, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id string) (*OrderRow, error) {
	const q = `
SELECT id::text, user_id::text, status, currency, subtotal_kobo, created_at, updated_at
FROM orders
WHERE id = $1::uuid;
`
	var out OrderRow
	err := r.db.QueryRow(ctx, q, id).Scan(
		&out.ID, &out.UserID, &out.Status, &out.Currency, &out.SubtotalKobo, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *OrderRepo) ListItems(ctx context.Context, orderID string) ([]OrderItemRow, error) {
	const q = `
SELECT id::text, order_id::text, product_id::text, supplier_id::text, qty, unit_price_kobo, supplier_unit_price_kobo, created_at
FROM order_items
WHERE order_id = $1::uuid
ORDER BY created_at;
`
	rows, err := r.db.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItemRow
	for rows.Next() {
		var it OrderItemRow
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.ProductID, &it.SupplierID, &it.Qty,
			&it.UnitPriceKobo, &it.SupplierUnitPriceKobo, &it.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *OrderRepo) List(ctx context.Context, userID string, limit, offset int) ([]OrderRow, error) {
	const q = `
SELECT id::text, user_id::text, status, currency, subtotal_kobo, created_at, updated_at
FROM orders
WHERE ($1 = '' OR user_id::text = $1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3;
`
	rows, err := r.db.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRow
	for rows.Next() {
		var o OrderRow
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.Currency, &o.SubtotalKobo, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *OrderRepo) UserPhone(ctx context.Context, userID string) (string, error) {
	const q = `SELECT phone FROM users WHERE id = $1::uuid;`
	var phone string
	if err := r.db.QueryRow(ctx, q, userID).Scan(&phone); err != nil {
		return "", err
	}
	return phone, nil
}
