package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	refunduc "github.com/doncapon/yemisshop-sub009/internal/usecase/refund"
)

type RefundStoreAdapter struct {
	repo *RefundRepo
}

func NewRefundStoreAdapter(db *pgxpool.Pool) *RefundStoreAdapter {
	return &RefundStoreAdapter{repo: NewRefundRepo(db)}
}

func (a *RefundStoreAdapter) Create(ctx context.Context, in refunduc.CreateInput) (*refunduc.Refund, error) {
	row, err := a.repo.Insert(ctx, in.OrderID, in.PurchaseOrderID, in.UserID, in.Reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: purchase order does not belong to order", refunduc.ErrInvalidInput)
		}
		return nil, err
	}
	out := toRefund(*row)
	return &out, nil
}

func (a *RefundStoreAdapter) GetByID(ctx context.Context, id string) (*refunduc.Refund, error) {
	row, err := a.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	out := toRefund(*row)
	return &out, nil
}

func (a *RefundStoreAdapter) ListByOrder(ctx context.Context, orderID string) ([]refunduc.Refund, error) {
	rows, err := a.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := make([]refunduc.Refund, 0, len(rows))
	for _, r := range rows {
		out = append(out, toRefund(r))
	}
	return out, nil
}

func (a *RefundStoreAdapter) Transition(ctx context.Context, refundID, from, to, actorID string, note *string) (*refunduc.Refund, error) {
	tx, err := a.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := lockRefundStatus(ctx, tx, refundID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, refunduc.ErrNotFound
		}
		return nil, err
	}
	if current != from {
		return nil, fmt.Errorf("%w: refund is %s", refunduc.ErrInvalidTransition, current)
	}

	row, err := updateRefundStatus(ctx, tx, refundID, to)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	if err := insertRefundEvent(ctx, tx, refundID, from, to, actorID, note); err != nil {
		return nil, fmt.Errorf("insert refund event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	out := toRefund(*row)
	return &out, nil
}

func (a *RefundStoreAdapter) ListPaidAllocations(ctx context.Context, orderID string) ([]refunduc.PaidAllocation, error) {
	supplierIDs, poIDs, amounts, err := a.repo.ListPaidAllocations(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := make([]refunduc.PaidAllocation, 0, len(supplierIDs))
	for i := range supplierIDs {
		out = append(out, refunduc.PaidAllocation{
			SupplierID:      supplierIDs[i],
			PurchaseOrderID: poIDs[i],
			AmountKobo:      amounts[i],
		})
	}
	return out, nil
}

func (a *RefundStoreAdapter) AppendDebits(ctx context.Context, refundID string, entries []refunduc.LedgerEntry) ([]refunduc.LedgerEntry, error) {
	tx, err := a.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	written := make([]refunduc.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		row, err := insertLedgerEntry(ctx, tx, e.SupplierID, e.Direction, e.AmountKobo, e.RefundID, e.OrderID, e.PurchaseOrderID)
		if err != nil {
			return nil, fmt.Errorf("insert ledger entry: %w", err)
		}
		if e.PurchaseOrderID != nil {
			if err := markAllocationRefunded(ctx, tx, *e.PurchaseOrderID); err != nil {
				return nil, fmt.Errorf("mark allocation refunded: %w", err)
			}
			if err := markPayoutRefunded(ctx, tx, *e.PurchaseOrderID); err != nil {
				return nil, fmt.Errorf("mark payout refunded: %w", err)
			}
		}
		written = append(written, toLedgerEntry(*row))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return written, nil
}

func (a *RefundStoreAdapter) SupplierBalance(ctx context.Context, supplierID string) (int64, error) {
	return a.repo.SupplierBalance(ctx, supplierID)
}

func toRefund(r RefundRow) refunduc.Refund {
	return refunduc.Refund{
		ID:              r.ID,
		OrderID:         r.OrderID,
		PurchaseOrderID: r.PurchaseOrderID,
		SupplierID:      r.SupplierID,
		UserID:          r.UserID,
		Reason:          r.Reason,
		Status:          r.Status,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func toLedgerEntry(r LedgerEntryRow) refunduc.LedgerEntry {
	return refunduc.LedgerEntry{
		ID:              r.ID,
		SupplierID:      r.SupplierID,
		Direction:       r.Direction,
		AmountKobo:      r.AmountKobo,
		RefundID:        r.RefundID,
		OrderID:         r.OrderID,
		PurchaseOrderID: r.PurchaseOrderID,
		CreatedAt:       r.CreatedAt,
	}
}

var _ refunduc.Store = (*RefundStoreAdapter)(nil)
