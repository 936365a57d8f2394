package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	payoutuc "github.com/doncapon/yemisshop-sub009/internal/usecase/payout"
	purchaseuc "github.com/doncapon/yemisshop-sub009/internal/usecase/purchase"
	"github.com/doncapon/yemisshop-sub009/internal/usecase/refund"
)

const uniqueViolation = "23505"

// PayoutStoreAdapter backs the release engine. Purchase order reads reuse the
// purchase store so both sides always see the same mapping.
type PayoutStoreAdapter struct {
	repo     *PayoutRepo
	purchase purchaseStore
}

type purchaseStore interface {
	GetPurchaseOrder(ctx context.Context, id string) (*purchaseuc.PurchaseOrder, error)
}

func NewPayoutStoreAdapter(db *pgxpool.Pool, purchase purchaseStore) *PayoutStoreAdapter {
	return &PayoutStoreAdapter{repo: NewPayoutRepo(db), purchase: purchase}
}

func (a *PayoutStoreAdapter) WithReleaseLock(ctx context.Context, poID string, fn func(ctx context.Context) error) error {
	return a.repo.WithAdvisoryLock(ctx, "payout:"+poID, fn)
}

func (a *PayoutStoreAdapter) GetPurchaseOrder(ctx context.Context, poID string) (*purchaseuc.PurchaseOrder, error) {
	return a.purchase.GetPurchaseOrder(ctx, poID)
}

func (a *PayoutStoreAdapter) HasOpenRefund(ctx context.Context, poID string) (bool, error) {
	return a.repo.HasOpenRefund(ctx, poID, refund.OpenStatuses)
}

func (a *PayoutStoreAdapter) FindTransferEvent(ctx context.Context, poID string) (*payoutuc.TransferEvent, error) {
	row, err := a.repo.FindTransferEvent(ctx, poID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &payoutuc.TransferEvent{
		ID:              row.ID,
		PurchaseOrderID: row.PurchaseOrderID,
		ProviderRef:     row.ProviderRef,
		Trial:           row.Trial,
		CreatedAt:       row.CreatedAt,
	}, nil
}

func (a *PayoutStoreAdapter) GetSupplierProfile(ctx context.Context, supplierID string) (*payoutuc.SupplierProfile, error) {
	row, err := a.repo.GetSupplierProfile(ctx, supplierID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	out := payoutuc.SupplierProfile{
		SupplierID:   row.SupplierID,
		BankVerified: row.BankVerified,
	}
	if row.AccountName != nil {
		out.Bank.AccountName = *row.AccountName
	}
	if row.AccountNumber != nil {
		out.Bank.AccountNumber = *row.AccountNumber
	}
	if row.BankCode != nil {
		out.Bank.BankCode = *row.BankCode
	}
	if row.RecipientCode != nil {
		out.RecipientCode = *row.RecipientCode
	}
	return &out, nil
}

func (a *PayoutStoreAdapter) CacheRecipientCode(ctx context.Context, supplierID, code string) error {
	return a.repo.CacheRecipientCode(ctx, supplierID, code)
}

// RecordRelease books the transfer in one transaction: the idempotency event,
// the PO payout flip, the allocation flip and the CREDIT ledger entry. A
// duplicate event means a concurrent release already booked it; that is
// treated as success after re-aligning local state.
func (a *PayoutStoreAdapter) RecordRelease(ctx context.Context, in payoutuc.RecordReleaseInput) error {
	tx, err := a.repo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertTransferEvent(ctx, tx, in.PurchaseOrderID, in.ProviderRef, in.Trial); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			_ = tx.Rollback(ctx)
			return a.SyncReleased(ctx, in.PurchaseOrderID)
		}
		return fmt.Errorf("insert transfer event: %w", err)
	}
	if err := markPayoutReleased(ctx, tx, in.PurchaseOrderID); err != nil {
		return fmt.Errorf("mark payout released: %w", err)
	}
	if err := markAllocationPaid(ctx, tx, in.PurchaseOrderID); err != nil {
		return fmt.Errorf("mark allocation paid: %w", err)
	}
	if err := insertCreditEntry(ctx, tx, in.SupplierID, in.PurchaseOrderID, in.AmountKobo); err != nil {
		return fmt.Errorf("insert credit entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (a *PayoutStoreAdapter) SyncReleased(ctx context.Context, poID string) error {
	tx, err := a.repo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := markPayoutReleased(ctx, tx, poID); err != nil {
		return fmt.Errorf("mark payout released: %w", err)
	}
	if err := markAllocationPaid(ctx, tx, poID); err != nil {
		return fmt.Errorf("mark allocation paid: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

var _ payoutuc.Store = (*PayoutStoreAdapter)(nil)
