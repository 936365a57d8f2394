package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	purchaseuc "github.com/doncapon/yemisshop-sub009/internal/usecase/purchase"
)

const uniqueViolation = "23505"

type PurchaseStoreAdapter struct {
	repo *PurchaseRepo
}

func NewPurchaseStoreAdapter(db *pgxpool.Pool) *PurchaseStoreAdapter {
	return &PurchaseStoreAdapter{repo: NewPurchaseRepo(db)}
}

func (a *PurchaseStoreAdapter) GetOrderForSplit(ctx context.Context, orderID string) (*purchaseuc.SplitOrder, error) {
	id, userID, status, subtotal, items, err := a.repo.getOrderForSplit(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	out := purchaseuc.SplitOrder{
		ID:           id,
		UserID:       userID,
		Status:       status,
		SubtotalKobo: subtotal,
	}
	for _, it := range items {
		out.Items = append(out.Items, purchaseuc.SplitItem{
			OrderItemID:           it.OrderItemID,
			ProductID:             it.ProductID,
			SupplierID:            it.SupplierID,
			SupplierKind:          it.SupplierKind,
			SupplierPayoutPct:     it.SupplierPayoutPct,
			Qty:                   it.Qty,
			UnitPriceKobo:         it.UnitPriceKobo,
			SupplierUnitPriceKobo: it.SupplierUnitPriceKobo,
		})
	}
	return &out, nil
}

func (a *PurchaseStoreAdapter) AlreadySplit(ctx context.Context, orderID string) (bool, error) {
	return a.repo.AlreadySplit(ctx, orderID)
}

func (a *PurchaseStoreAdapter) CreatePurchaseOrders(ctx context.Context, orderID string, pos []purchaseuc.NewPurchaseOrder) ([]purchaseuc.PurchaseOrder, error) {
	tx, err := a.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	out := make([]purchaseuc.PurchaseOrder, 0, len(pos))
	for _, po := range pos {
		row, err := insertPurchaseOrder(ctx, tx, orderID, po.SupplierID, po.SubtotalKobo, po.PlatformFeeKobo, po.SupplierAmountKobo, po.PayoutPct)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return nil, purchaseuc.ErrAlreadySplit
			}
			return nil, fmt.Errorf("insert purchase order: %w", err)
		}

		mapped := toPurchaseOrder(*row)
		for _, it := range po.Items {
			itemRow, err := insertPurchaseOrderItem(ctx, tx, row.ID, it.OrderItemID, it.ProductID, it.Qty, it.SupplierUnitPriceKobo)
			if err != nil {
				return nil, fmt.Errorf("insert purchase order item: %w", err)
			}
			mapped.Items = append(mapped.Items, toItem(*itemRow))
		}

		if err := insertPaymentAllocation(ctx, tx, po.SupplierID, row.ID, po.SupplierAmountKobo); err != nil {
			return nil, fmt.Errorf("insert payment allocation: %w", err)
		}
		out = append(out, mapped)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return out, nil
}

func (a *PurchaseStoreAdapter) GetPurchaseOrder(ctx context.Context, id string) (*purchaseuc.PurchaseOrder, error) {
	row, err := a.repo.GetPurchaseOrder(ctx, id)
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

	out := toPurchaseOrder(*row)
	for _, it := range items {
		out.Items = append(out.Items, toItem(it))
	}
	return &out, nil
}

func (a *PurchaseStoreAdapter) ListByOrder(ctx context.Context, orderID string) ([]purchaseuc.PurchaseOrder, error) {
	rows, err := a.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := make([]purchaseuc.PurchaseOrder, 0, len(rows))
	for _, r := range rows {
		out = append(out, toPurchaseOrder(r))
	}
	return out, nil
}

func (a *PurchaseStoreAdapter) UpdateStatus(ctx context.Context, id, from, to string) (*purchaseuc.PurchaseOrder, error) {
	tx, err := a.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := lockPurchaseOrderStatus(ctx, tx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, purchaseuc.ErrNotFound
		}
		return nil, err
	}
	if current != from {
		return nil, fmt.Errorf("%w: purchase order is %s", purchaseuc.ErrInvalidTransition, current)
	}

	row, err := updatePurchaseOrderStatus(ctx, tx, id, to)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	out := toPurchaseOrder(*row)
	return &out, nil
}

// MarkDelivered flips the PO to delivered and, when it was the last
// undelivered sibling, promotes the parent order in the same transaction.
func (a *PurchaseStoreAdapter) MarkDelivered(ctx context.Context, poID, otpRequestID string) (*purchaseuc.PurchaseOrder, error) {
	tx, err := a.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := lockPurchaseOrderStatus(ctx, tx, poID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, purchaseuc.ErrNotFound
		}
		return nil, err
	}
	switch current {
	case purchaseuc.StatusDelivered:
		// lost the race to a concurrent confirmation; report the final row
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			return nil, err
		}
		return a.GetPurchaseOrder(ctx, poID)
	case purchaseuc.StatusShipped:
	default:
		return nil, fmt.Errorf("%w: purchase order is %s", purchaseuc.ErrInvalidTransition, current)
	}

	row, err := markDelivered(ctx, tx, poID, otpRequestID)
	if err != nil {
		return nil, fmt.Errorf("mark delivered: %w", err)
	}
	if err := holdAllocation(ctx, tx, poID); err != nil {
		return nil, fmt.Errorf("hold allocation: %w", err)
	}

	remaining, err := undeliveredSiblings(ctx, tx, row.OrderID)
	if err != nil {
		return nil, err
	}
	if remaining == 0 {
		if err := promoteOrderDelivered(ctx, tx, row.OrderID); err != nil {
			return nil, fmt.Errorf("promote order: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	out := toPurchaseOrder(*row)
	return &out, nil
}

func (a *PurchaseStoreAdapter) MarkPurchaseOrderFailed(ctx context.Context, poID string) error {
	return a.repo.MarkPurchaseOrderFailed(ctx, poID)
}

func (a *PurchaseStoreAdapter) MarkItemPlaced(ctx context.Context, itemID, externalRef string) error {
	return a.repo.MarkItemPlaced(ctx, itemID, externalRef)
}

func (a *PurchaseStoreAdapter) MarkItemPaid(ctx context.Context, itemID string) error {
	return a.repo.MarkItemPaid(ctx, itemID)
}

func (a *PurchaseStoreAdapter) MarkItemReceipt(ctx context.Context, itemID, receiptURL string) error {
	return a.repo.MarkItemReceipt(ctx, itemID, receiptURL)
}

func (a *PurchaseStoreAdapter) MarkItemFailed(ctx context.Context, itemID, diagnosticRef string) error {
	return a.repo.MarkItemFailed(ctx, itemID, diagnosticRef)
}

func (a *PurchaseStoreAdapter) OrderOwner(ctx context.Context, poID string) (string, string, error) {
	userID, phone, err := a.repo.OrderOwner(ctx, poID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", purchaseuc.ErrNotFound
		}
		return "", "", err
	}
	return userID, phone, nil
}

func toPurchaseOrder(r PurchaseOrderRow) purchaseuc.PurchaseOrder {
	return purchaseuc.PurchaseOrder{
		ID:                 r.ID,
		OrderID:            r.OrderID,
		SupplierID:         r.SupplierID,
		SubtotalKobo:       r.SubtotalKobo,
		PlatformFeeKobo:    r.PlatformFeeKobo,
		SupplierAmountKobo: r.SupplierAmountKobo,
		PayoutPct:          r.PayoutPct,
		Status:             r.Status,
		PayoutStatus:       r.PayoutStatus,
		DeliveryOtpID:      r.DeliveryOtpID,
		DeliveryVerifiedAt: r.DeliveryVerifiedAt,
		DeliveredAt:        r.DeliveredAt,
		PaidOutAt:          r.PaidOutAt,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func toItem(r PurchaseOrderItemRow) purchaseuc.Item {
	return purchaseuc.Item{
		ID:                    r.ID,
		PurchaseOrderID:       r.PurchaseOrderID,
		OrderItemID:           r.OrderItemID,
		ProductID:             r.ProductID,
		Qty:                   r.Qty,
		SupplierUnitPriceKobo: r.SupplierUnitPriceKobo,
		ExternalStatus:        r.ExternalStatus,
		ExternalRef:           r.ExternalRef,
		ReceiptURL:            r.ReceiptURL,
	}
}

var _ purchaseuc.Store = (*PurchaseStoreAdapter)(nil)
