package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ProductRow struct {
	ID        string
	SKU       string
	Name      string
	PriceKobo int64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type OfferRow struct {
	ID            string
	ProductID     string
	SupplierID    string
	UnitPriceKobo int64
}

type CatalogRepo struct {
	db *pgxpool.Pool
}

func NewCatalogRepo(db *pgxpool.Pool) *CatalogRepo {
	return &CatalogRepo{db: db}
}

func (r *CatalogRepo) CreateProduct(ctx context.Context, sku, name string, priceKobo int64) (*ProductRow, error) {
	const q = `
INSERT INTO products (sku, name, price_kobo)
VALUES ($1, $2, $3)
RETURNING id::text, sku, name, price_kobo, is_active, created_at, updated_at;
`
	row := r.db.QueryRow(ctx, q, sku, name, priceKobo)

	var out ProductRow
	if err := row.Scan(&out.ID, &out.SKU, &out.Name, &out.PriceKobo, &out.IsActive, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *CatalogRepo) ListProducts(ctx context.Context, limit, offset int) ([]ProductRow, error) {
	const q = `
SELECT id::text, sku, name, price_kobo, is_active, created_at, updated_at
FROM products
ORDER BY created_at DESC
LIMIT $1 OFFSET $2;
`
	rows, err := r.db.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductRow
	for rows.Next() {
		var p ProductRow
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.PriceKobo, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *CatalogRepo) UpdateProduct(ctx context.Context, id string, name *string, priceKobo *int64, isActive *bool) (*ProductRow, error) {
	const q = `
UPDATE products
SET
  name = COALESCE($2, name),
  price_kobo = COALESCE($3, price_kobo),
  is_active = COALESCE($4, is_active),
  updated_at = now()
WHERE id = $1::uuid
RETURNING id::text, sku, name, price_kobo, is_active, created_at, updated_at;
`
	row := r.db.QueryRow(ctx, q, id, name, priceKobo, isActive)

	var out ProductRow
	if err := row.Scan(&out.ID, &out.SKU, &out.Name, &out.PriceKobo, &out.IsActive, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *CatalogRepo) UpsertOffer(ctx context.Context, productID, supplierID string, unitPriceKobo int64) (*OfferRow, error) {
	const q = `
INSERT INTO supplier_products (product_id, supplier_id, unit_price_kobo)
VALUES ($1::uuid, $2::uuid, $3)
ON CONFLICT (product_id, supplier_id)
DO UPDATE SET unit_price_kobo = EXCLUDED.unit_price_kobo
RETURNING id::text, product_id::text, supplier_id::text, unit_price_kobo;
`
	row := r.db.QueryRow(ctx, q, productID, supplierID, unitPriceKobo)

	var out OfferRow
	if err := row.Scan(&out.ID, &out.ProductID, &out.SupplierID, &out.UnitPriceKobo); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *CatalogRepo) ListOffers(ctx context.Context, productID string) ([]OfferRow, error) {
	const q = `
SELECT id::text, product_id::text, supplier_id::text, unit_price_kobo
FROM supplier_products
WHERE product_id = $1::uuid
ORDER BY unit_price_kobo;
`
	rows, err := r.db.Query(ctx, q, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OfferRow
	for rows.Next() {
		var o OfferRow
		if err := rows.Scan(&o.ID, &o.ProductID, &o.SupplierID, &o.UnitPriceKobo); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
