package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func MustOpenDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is required for integration tests")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse DATABASE_URL: %v", err)
	}

	// keep tests stable
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Fatalf("ping db: %v", err)
	}

	return pool
}

// Optional: cleanup between tests (truncate)
func TruncateAll(t *testing.T, db *pgxpool.Pool) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := db.Exec(ctx, `
TRUNCATE
  refund_events,
  refunds,
  supplier_ledger_entries,
  payout_transfer_events,
  supplier_payment_allocations,
  purchase_order_items,
  purchase_orders,
  otp_requests,
  order_items,
  orders,
  supplier_products,
  products,
  suppliers,
  users
RESTART IDENTITY CASCADE;
`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
}
