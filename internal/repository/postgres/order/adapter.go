package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	orderuc "github.com/doncapon/yemisshop-sub009/internal/usecase/order"
)

type OrderStoreAdapter struct {
	repo *OrderRepo
}

func NewOrderStoreAdapter(db *pgxpool.Pool) *OrderStoreAdapter {
	return &OrderStoreAdapter{repo: NewOrderRepo(db)}
}

func (a *OrderStoreAdapter) Create(ctx context.Context, in orderuc.CheckoutInput) (*orderuc.Order, error) {
	tx, err := a.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := ensureUserExists(ctx, tx, in.UserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, orderuc.ErrUserMissing
		}
		return nil, err
	}

	row, err := insertOrder(ctx, tx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	var subtotal int64
	items := make([]orderuc.Item, 0, len(in.Items))
	for _, it := range in.Items {
		unitPrice, supplierUnitPrice, err := getOfferPricing(ctx, tx, it.ProductID, it.SupplierID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: product %s supplier %s", orderuc.ErrOfferMissing, it.ProductID, it.SupplierID)
			}
			return nil, err
		}
		itemRow, err := insertOrderItem(ctx, tx, row.ID, it.ProductID, it.SupplierID, it.Qty, unitPrice, supplierUnitPrice)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
		subtotal += unitPrice * int64(it.Qty)
		items = append(items, toOrderItem(*itemRow))
	}

	row, err = updateOrderSubtotal(ctx, tx, row.ID, subtotal)
	if err != nil {
		return nil, fmt.Errorf("update subtotal: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	out := toOrder(*row)
	out.Items = items
	return &out, nil
}

func (a *OrderStoreAdapter) GetByID(ctx context.Context, id string) (*orderuc.Order, error) {
	row, err := a.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	items, err := a.repo.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}

	out := toOrder(*row)
	out.Items = make([]orderuc.Item, 0, len(items))
	for _, it := range items {
		out.Items = append(out.Items, toOrderItem(it))
	}
	return &out, nil
}

func (a *OrderStoreAdapter) List(ctx context.Context, in orderuc.ListInput) ([]orderuc.Order, error) {
	rows, err := a.repo.List(ctx, in.UserID, in.Limit, in.Offset)
	if err != nil {
		return nil, err
	}
	out := make([]orderuc.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, toOrder(r))
	}
	return out, nil
}

func (a *OrderStoreAdapter) UpdateStatus(ctx context.Context, id, from, to string) (*orderuc.Order, error) {
	tx, err := a.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := lockOrderStatus(ctx, tx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, orderuc.ErrNotFound
		}
		return nil, err
	}
	if current != from {
		return nil, fmt.Errorf("%w: order is %s", orderuc.ErrInvalidTransition, current)
	}

	row, err := updateOrderStatus(ctx, tx, id, to)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	out := toOrder(*row)
	return &out, nil
}

func (a *OrderStoreAdapter) UserContact(ctx context.Context, userID string) (string, error) {
	phone, err := a.repo.UserPhone(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", orderuc.ErrUserMissing
		}
		return "", err
	}
	return phone, nil
}

func toOrder(r OrderRow) orderuc.Order {
	return orderuc.Order{
		ID:           r.ID,
		UserID:       r.UserID,
		Status:       r.Status,
		Currency:     r.Currency,
		SubtotalKobo: r.SubtotalKobo,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func toOrderItem(r OrderItemRow) orderuc.Item {
	return orderuc.Item{
		ID:                      r.ID,
		OrderID:                 r.OrderID,
		ProductID:               r.ProductID,
		SupplierID:              r.SupplierID,
		Qty:                     r.Qty,
		UnitPriceKobo:           r.UnitPriceKobo,
		ChosenSupplierUnitPrice: r.SupplierUnitPriceKobo,
		CreatedAt:               r.CreatedAt,
	}
}

var _ orderuc.Store = (*OrderStoreAdapter)(nil)
