package catalog

import (
	"context"
	"errors"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrProductMissing = errors.New("product not found")
)

type Product struct {
	ID        string `json:"id"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	PriceKobo int64  `json:"priceKobo"`
	IsActive  bool   `json:"isActive"`
}

// Offer is a supplier's standing quote for a product; the unit price is what
// the platform pays the supplier, in kobo.
type Offer struct {
	ID            string `json:"id"`
	ProductID     string `json:"productId"`
	SupplierID    string `json:"supplierId"`
	UnitPriceKobo int64  `json:"unitPriceKobo"`
}

type Store interface {
	CreateProduct(ctx context.Context, sku, name string, priceKobo int64) (*Product, error)
	ListProducts(ctx context.Context, limit, offset int) ([]Product, error)
	UpdateProduct(ctx context.Context, id string, name *string, priceKobo *int64, isActive *bool) (*Product, error)

	UpsertOffer(ctx context.Context, productID, supplierID string, unitPriceKobo int64) (*Offer, error)
	ListOffers(ctx context.Context, productID string) ([]Offer, error)
}

type Usecase struct {
	store Store
}

func New(store Store) *Usecase {
	return &Usecase{store: store}
}

type CreateProductInput struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	PriceKobo int64  `json:"priceKobo"`
}

func (u *Usecase) CreateProduct(ctx context.Context, in CreateProductInput) (*Product, error) {
	if in.SKU == "" || in.Name == "" || in.PriceKobo < 0 {
		return nil, ErrInvalidInput
	}
	return u.store.CreateProduct(ctx, in.SKU, in.Name, in.PriceKobo)
}

func (u *Usecase) ListProducts(ctx context.Context, limit, offset int) ([]Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return u.store.ListProducts(ctx, limit, offset)
}

type UpdateProductInput struct {
	Name      *string `json:"name"`
	PriceKobo *int64  `json:"priceKobo"`
	IsActive  *bool   `json:"isActive"`
}

func (u *Usecase) UpdateProduct(ctx context.Context, id string, in UpdateProductInput) (*Product, error) {
	if id == "" {
		return nil, ErrInvalidInput
	}
	if in.PriceKobo != nil && *in.PriceKobo < 0 {
		return nil, ErrInvalidInput
	}
	return u.store.UpdateProduct(ctx, id, in.Name, in.PriceKobo, in.IsActive)
}

type OfferInput struct {
	SupplierID    string `json:"supplierId"`
	UnitPriceKobo int64  `json:"unitPriceKobo"`
}

// UpsertOffer registers or reprices a supplier's quote for a product.
func (u *Usecase) UpsertOffer(ctx context.Context, productID string, in OfferInput) (*Offer, error) {
	if productID == "" || in.SupplierID == "" || in.UnitPriceKobo < 0 {
		return nil, ErrInvalidInput
	}
	return u.store.UpsertOffer(ctx, productID, in.SupplierID, in.UnitPriceKobo)
}

func (u *Usecase) ListOffers(ctx context.Context, productID string) ([]Offer, error) {
	if productID == "" {
		return nil, ErrInvalidInput
	}
	return u.store.ListOffers(ctx, productID)
}
