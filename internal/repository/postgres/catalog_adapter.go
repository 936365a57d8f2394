package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	cataloguc "github.com/doncapon/yemisshop-sub009/internal/usecase/catalog"
)

const foreignKeyViolation = "23503"

type CatalogStoreAdapter struct {
	repo *CatalogRepo
}

func NewCatalogStoreAdapter(repo *CatalogRepo) *CatalogStoreAdapter {
	return &CatalogStoreAdapter{repo: repo}
}

func (a *CatalogStoreAdapter) CreateProduct(ctx context.Context, sku, name string, priceKobo int64) (*cataloguc.Product, error) {
	row, err := a.repo.CreateProduct(ctx, sku, name, priceKobo)
	if err != nil {
		return nil, err
	}
	out := toProduct(*row)
	return &out, nil
}

func (a *CatalogStoreAdapter) ListProducts(ctx context.Context, limit, offset int) ([]cataloguc.Product, error) {
	rows, err := a.repo.ListProducts(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]cataloguc.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, toProduct(r))
	}
	return out, nil
}

func (a *CatalogStoreAdapter) UpdateProduct(ctx context.Context, id string, name *string, priceKobo *int64, isActive *bool) (*cataloguc.Product, error) {
	row, err := a.repo.UpdateProduct(ctx, id, name, priceKobo, isActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cataloguc.ErrProductMissing
		}
		return nil, err
	}
	out := toProduct(*row)
	return &out, nil
}

func (a *CatalogStoreAdapter) UpsertOffer(ctx context.Context, productID, supplierID string, unitPriceKobo int64) (*cataloguc.Offer, error) {
	row, err := a.repo.UpsertOffer(ctx, productID, supplierID, unitPriceKobo)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return nil, cataloguc.ErrProductMissing
		}
		return nil, err
	}
	out := toOffer(*row)
	return &out, nil
}

func (a *CatalogStoreAdapter) ListOffers(ctx context.Context, productID string) ([]cataloguc.Offer, error) {
	rows, err := a.repo.ListOffers(ctx, productID)
	if err != nil {
		return nil, err
	}
	out := make([]cataloguc.Offer, 0, len(rows))
	for _, r := range rows {
		out = append(out, toOffer(r))
	}
	return out, nil
}

func toProduct(r ProductRow) cataloguc.Product {
	return cataloguc.Product{
		ID:        r.ID,
		SKU:       r.SKU,
		Name:      r.Name,
		PriceKobo: r.PriceKobo,
		IsActive:  r.IsActive,
	}
}

func toOffer(r OfferRow) cataloguc.Offer {
	return cataloguc.Offer{
		ID:            r.ID,
		ProductID:     r.ProductID,
		SupplierID:    r.SupplierID,
		UnitPriceKobo: r.UnitPriceKobo,
	}
}

var _ cataloguc.Store = (*CatalogStoreAdapter)(nil)
