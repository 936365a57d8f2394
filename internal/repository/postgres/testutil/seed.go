package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func MustInsertUser(t *testing.T, db *pgxpool.Pool, email, phone, role string) string {
	t.Helper()

	uniq := fmt.Sprintf("%d", time.Now().UnixNano())
	emailUniq := fmt.Sprintf("%s.%s", uniq, email)

	var id string
	err := db.QueryRow(context.Background(), `
		INSERT INTO users (email, phone, password_hash, role, is_active)
		VALUES ($1, $2, 'x', $3, true)
		RETURNING id::text
	`, emailUniq, phone, role).Scan(&id)

	require.NoError(t, err)
	require.NotEmpty(t, id)
	return id
}

func MustInsertSupplier(t *testing.T, db *pgxpool.Pool, name, kind string, payoutPct *int, bankVerified bool) string {
	t.Helper()

	var id string
	err := db.QueryRow(context.Background(), `
		INSERT INTO suppliers (name, kind, payout_pct, bank_verified, bank_account_name, bank_account_number, bank_code)
		VALUES ($1, $2, $3, $4, $1, '0123456789', '058')
		RETURNING id::text
	`, name, kind, payoutPct, bankVerified).Scan(&id)

	require.NoError(t, err)
	require.NotEmpty(t, id)
	return id
}

func MustInsertProduct(t *testing.T, db *pgxpool.Pool, sku, name string, priceKobo int64) string {
	t.Helper()

	var id string
	err := db.QueryRow(context.Background(), `
		INSERT INTO products (sku, name, price_kobo, is_active)
		VALUES ($1, $2, $3, true)
		RETURNING id::text
	`, sku, name, priceKobo).Scan(&id)

	require.NoError(t, err)
	require.NotEmpty(t, id)
	return id
}

func MustInsertOffer(t *testing.T, db *pgxpool.Pool, productID, supplierID string, unitPriceKobo int64) string {
	t.Helper()

	var id string
	err := db.QueryRow(context.Background(), `
		INSERT INTO supplier_products (product_id, supplier_id, unit_price_kobo)
		VALUES ($1::uuid, $2::uuid, $3)
		RETURNING id::text
	`, productID, supplierID, unitPriceKobo).Scan(&id)

	require.NoError(t, err)
	require.NotEmpty(t, id)
	return id
}
