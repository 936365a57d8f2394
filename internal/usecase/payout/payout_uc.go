package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/doncapon/yemisshop-sub009/internal/config"
	"github.com/doncapon/yemisshop-sub009/internal/usecase/purchase"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("purchase order not found")
	ErrNotDelivered       = errors.New("purchase order not delivered")
	ErrDeliveryUnverified = errors.New("delivery otp not verified")
	ErrOpenRefund         = errors.New("open refund blocks payout")
	ErrAlreadyRefunded    = errors.New("payout already clawed back")
	ErrSupplierUnverified = errors.New("supplier bank profile not verified")
	ErrTransferFailed     = errors.New("external transfer failed")
)

// TransferProvider is the external money-movement capability. Amounts are
// integer kobo; implementations carry their own bounded timeouts.
type TransferProvider interface {
	CreateRecipient(ctx context.Context, bank BankAccount) (recipientCode string, err error)
	InitiateTransfer(ctx context.Context, recipientCode string, amountKobo int64, reason string) (providerRef string, err error)
}

type BankAccount struct {
	AccountName   string
	AccountNumber string
	BankCode      string
}

// SupplierProfile is the payout-relevant slice of a supplier row.
type SupplierProfile struct {
	SupplierID    string
	BankVerified  bool
	Bank          BankAccount
	RecipientCode string // cached external recipient, empty until first payout
}

// TransferEvent is the ledger record of one external transfer initiation.
// At most one exists per purchase order (unique constraint).
type TransferEvent struct {
	ID              string
	PurchaseOrderID string
	ProviderRef     string
	Trial           bool
	CreatedAt       time.Time
}

type Store interface {
	// WithReleaseLock serializes release attempts for one PO across
	// processes. The postgres adapter takes a session-level advisory lock so
	// the lock can span the external transfer call without holding a
	// database transaction open.
	WithReleaseLock(ctx context.Context, poID string, fn func(ctx context.Context) error) error

	GetPurchaseOrder(ctx context.Context, poID string) (*purchase.PurchaseOrder, error)
	HasOpenRefund(ctx context.Context, poID string) (bool, error)
	FindTransferEvent(ctx context.Context, poID string) (*TransferEvent, error)
	GetSupplierProfile(ctx context.Context, supplierID string) (*SupplierProfile, error)
	CacheRecipientCode(ctx context.Context, supplierID, code string) error

	// RecordRelease writes the transfer event, flips the PO payout status to
	// RELEASED with paidOutAt, marks the allocation PAID and appends the
	// CREDIT ledger entry, all in one transaction. A unique-constraint
	// conflict on the transfer event means another release won the race and
	// is treated as success.
	RecordRelease(ctx context.Context, in RecordReleaseInput) error
	// SyncReleased re-aligns PO and allocation state with an existing
	// transfer event after a retried release.
	SyncReleased(ctx context.Context, poID string) error
}

type RecordReleaseInput struct {
	PurchaseOrderID string
	SupplierID      string
	AmountKobo      int64
	ProviderRef     string
	Trial           bool
}

type Result struct {
	Released        bool   `json:"released"`
	AlreadyReleased bool   `json:"alreadyReleased,omitempty"`
	ProviderRef     string `json:"providerRef,omitempty"`
	Trial           bool   `json:"trial,omitempty"`
}

// Engine releases a delivered purchase order's supplier amount, at most once.
type Engine struct {
	store    Store
	provider TransferProvider
	cfg      config.PayoutConfig
	log      *zap.Logger
}

func NewEngine(store Store, provider TransferProvider, cfg config.PayoutConfig, log *zap.Logger) *Engine {
	return &Engine{store: store, provider: provider, cfg: cfg, log: log}
}

// Release runs the eligibility gate and, when it passes, initiates exactly
// one external transfer for the purchase order. Retried or concurrent calls
// find the prior transfer event and only re-synchronize local state.
func (e *Engine) Release(ctx context.Context, poID string) (*Result, error) {
	if poID == "" {
		return nil, ErrInvalidInput
	}

	var out *Result
	err := e.store.WithReleaseLock(ctx, poID, func(ctx context.Context) error {
		res, err := e.releaseLocked(ctx, poID)
		out = res
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) releaseLocked(ctx context.Context, poID string) (*Result, error) {
	po, err := e.store.GetPurchaseOrder(ctx, poID)
	if err != nil {
		return nil, err
	}
	if po == nil {
		return nil, ErrNotFound
	}

	// REFUNDED is terminal. A clawed-back purchase order keeps its transfer
	// event, so this check must come before the idempotency resync or a
	// retried release would rewrite the payout status back to released.
	if po.PayoutStatus == purchase.PayoutRefunded {
		return nil, ErrAlreadyRefunded
	}

	// Idempotency: a prior transfer event means money already moved.
	ev, err := e.store.FindTransferEvent(ctx, poID)
	if err != nil {
		return nil, err
	}
	if ev != nil {
		if err := e.store.SyncReleased(ctx, poID); err != nil {
			return nil, err
		}
		return &Result{AlreadyReleased: true, ProviderRef: ev.ProviderRef, Trial: ev.Trial}, nil
	}

	if po.Status != purchase.StatusDelivered {
		return nil, fmt.Errorf("%w: purchase order is %s", ErrNotDelivered, po.Status)
	}
	if po.DeliveryVerifiedAt == nil {
		return nil, ErrDeliveryUnverified
	}

	open, err := e.store.HasOpenRefund(ctx, poID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, ErrOpenRefund
	}

	profile, err := e.store.GetSupplierProfile(ctx, po.SupplierID)
	if err != nil {
		return nil, err
	}
	if profile == nil || !profile.BankVerified {
		return nil, ErrSupplierUnverified
	}

	recipient := profile.RecipientCode
	if recipient == "" && !e.cfg.TrialMode {
		recipient, err = e.provider.CreateRecipient(ctx, profile.Bank)
		if err != nil {
			return nil, fmt.Errorf("%w: create recipient: %v", ErrTransferFailed, err)
		}
		if err := e.store.CacheRecipientCode(ctx, po.SupplierID, recipient); err != nil {
			return nil, err
		}
	}

	// The external call happens outside any database transaction; only the
	// advisory lock is held across it.
	var providerRef string
	if e.cfg.TrialMode {
		providerRef = "trial-" + uuid.NewString()
	} else {
		providerRef, err = e.provider.InitiateTransfer(ctx, recipient, po.SupplierAmountKobo,
			"payout for purchase order "+po.ID)
		if err != nil {
			// Payout status unchanged: the release stays safely retryable.
			return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}

	if err := e.store.RecordRelease(ctx, RecordReleaseInput{
		PurchaseOrderID: po.ID,
		SupplierID:      po.SupplierID,
		AmountKobo:      po.SupplierAmountKobo,
		ProviderRef:     providerRef,
		Trial:           e.cfg.TrialMode,
	}); err != nil {
		return nil, err
	}

	e.log.Info("payout released",
		zap.String("po_id", po.ID),
		zap.String("supplier_id", po.SupplierID),
		zap.Int64("amount_kobo", po.SupplierAmountKobo),
		zap.String("provider_ref", providerRef),
		zap.Bool("trial", e.cfg.TrialMode),
	)
	return &Result{Released: true, ProviderRef: providerRef, Trial: e.cfg.TrialMode}, nil
}
