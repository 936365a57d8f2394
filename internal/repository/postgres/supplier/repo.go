package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doncapon/yemisshop-sub009/internal/gateway/supplier"
)

var ErrNotIntegrated = errors.New("supplier has no api integration")

// SupplierRepo resolves supplier API endpoints for the dispatch client.
type SupplierRepo struct {
	db *pgxpool.Pool
}

func NewSupplierRepo(db *pgxpool.Pool) *SupplierRepo {
	return &SupplierRepo{db: db}
}

func (r *SupplierRepo) Endpoint(ctx context.Context, supplierID string) (string, string, error) {
	const q = `
SELECT api_base_url, api_key
FROM suppliers
WHERE id = $1::uuid
  AND kind = 'ONLINE';
`
	var baseURL, apiKey *string
	err := r.db.QueryRow(ctx, q, supplierID).Scan(&baseURL, &apiKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", fmt.Errorf("%w: %s", ErrNotIntegrated, supplierID)
		}
		return "", "", err
	}
	if baseURL == nil || *baseURL == "" || apiKey == nil {
		return "", "", fmt.Errorf("%w: %s", ErrNotIntegrated, supplierID)
	}
	return *baseURL, *apiKey, nil
}

var _ supplier.Directory = (*SupplierRepo)(nil)
