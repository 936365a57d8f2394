package refund

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("refund not found")
	ErrInvalidTransition = errors.New("invalid refund status transition")
)

// Refund lifecycle.
const (
	StatusRequested      = "requested"
	StatusSupplierReview = "supplier_review"
	StatusEscalated      = "escalated"
	StatusDisputed       = "disputed"
	StatusApproved       = "approved"
	StatusRejected       = "rejected"
	StatusProcessing     = "processing"
	StatusRefunded       = "refunded"
)

// OpenStatuses are the refund states that block payout release entirely.
var OpenStatuses = []string{StatusRequested, StatusSupplierReview, StatusDisputed, StatusApproved, StatusProcessing}

// Ledger entry directions. Entries are append-only; a supplier's balance is
// always sum(CREDIT) - sum(DEBIT).
const (
	EntryDebit  = "DEBIT"
	EntryCredit = "CREDIT"
)

// Allocation statuses (SupplierPaymentAllocation).
const (
	AllocPending  = "pending"
	AllocHeld     = "held"
	AllocPaid     = "paid"
	AllocRefunded = "refunded"
)

type Refund struct {
	ID              string    `json:"id"`
	OrderID         string    `json:"orderId"`
	PurchaseOrderID string    `json:"purchaseOrderId"`
	SupplierID      string    `json:"supplierId"`
	UserID          string    `json:"userId"`
	Reason          string    `json:"reason"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Event struct {
	ID        string    `json:"id"`
	RefundID  string    `json:"refundId"`
	FromState string    `json:"fromState"`
	ToState   string    `json:"toState"`
	ActorID   string    `json:"actorId"`
	Note      *string   `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type LedgerEntry struct {
	ID              string    `json:"id"`
	SupplierID      string    `json:"supplierId"`
	Direction       string    `json:"direction"`
	AmountKobo      int64     `json:"amountKobo"`
	RefundID        *string   `json:"refundId,omitempty"`
	OrderID         *string   `json:"orderId,omitempty"`
	PurchaseOrderID *string   `json:"purchaseOrderId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// PaidAllocation is one already-paid-out allocation row loaded for clawback.
type PaidAllocation struct {
	SupplierID      string
	PurchaseOrderID string
	AmountKobo      int64
}

type Store interface {
	Create(ctx context.Context, in CreateInput) (*Refund, error)
	GetByID(ctx context.Context, id string) (*Refund, error)
	ListByOrder(ctx context.Context, orderID string) ([]Refund, error)
	// Transition locks the refund row, verifies the from-state under the lock,
	// writes the new status and appends the audit event in one transaction.
	Transition(ctx context.Context, refundID, from, to, actorID string, note *string) (*Refund, error)

	// ListPaidAllocations returns the order's allocations whose status is
	// paid, meaning money already left the platform to the supplier.
	ListPaidAllocations(ctx context.Context, orderID string) ([]PaidAllocation, error)
	// AppendDebits writes the DEBIT ledger entries, flips the debited
	// allocations and their POs to refunded, in one transaction.
	AppendDebits(ctx context.Context, refundID string, entries []LedgerEntry) ([]LedgerEntry, error)

	SupplierBalance(ctx context.Context, supplierID string) (int64, error)
}

type CreateInput struct {
	OrderID         string `json:"orderId"`
	PurchaseOrderID string `json:"purchaseOrderId"`
	SupplierID      string `json:"-"`
	UserID          string `json:"-"`
	Reason          string `json:"reason"`
}

type Usecase struct {
	store Store
	log   *zap.Logger
}

func New(store Store, log *zap.Logger) *Usecase {
	return &Usecase{store: store, log: log}
}

func (u *Usecase) Request(ctx context.Context, in CreateInput) (*Refund, error) {
	if in.OrderID == "" || in.PurchaseOrderID == "" || in.UserID == "" {
		return nil, ErrInvalidInput
	}
	return u.store.Create(ctx, in)
}

func (u *Usecase) GetByID(ctx context.Context, id string) (*Refund, error) {
	if id == "" {
		return nil, ErrInvalidInput
	}
	return u.store.GetByID(ctx, id)
}

func (u *Usecase) ListByOrder(ctx context.Context, orderID string) ([]Refund, error) {
	if orderID == "" {
		return nil, ErrInvalidInput
	}
	return u.store.ListByOrder(ctx, orderID)
}

// Decide moves a refund along its review path (supplier_review, escalated,
// disputed, rejected, processing). Approval goes through Approve so the
// clawback cannot be skipped.
func (u *Usecase) Decide(ctx context.Context, refundID, toStatus, actorID string, note *string) (*Refund, error) {
	if refundID == "" || actorID == "" {
		return nil, ErrInvalidInput
	}
	if toStatus == StatusApproved || toStatus == StatusRefunded {
		return nil, fmt.Errorf("%w: use the approval flow", ErrInvalidTransition)
	}
	cur, err := u.store.GetByID(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, ErrNotFound
	}
	if !isValidTransition(cur.Status, toStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, toStatus)
	}
	return u.store.Transition(ctx, refundID, cur.Status, toStatus, actorID, note)
}

// Approve marks the refund approved and immediately runs the clawback:
// every already-paid allocation of the order yields one DEBIT ledger entry
// against its supplier; never-paid allocations are simply withheld by the
// payout eligibility gate and need no debit.
func (u *Usecase) Approve(ctx context.Context, refundID, actorID string, note *string) (*Refund, []LedgerEntry, error) {
	if refundID == "" || actorID == "" {
		return nil, nil, ErrInvalidInput
	}
	cur, err := u.store.GetByID(ctx, refundID)
	if err != nil {
		return nil, nil, err
	}
	if cur == nil {
		return nil, nil, ErrNotFound
	}
	if !isValidTransition(cur.Status, StatusApproved) {
		return nil, nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, StatusApproved)
	}

	approved, err := u.store.Transition(ctx, refundID, cur.Status, StatusApproved, actorID, note)
	if err != nil {
		return nil, nil, err
	}

	entries, err := u.DebitForRefund(ctx, approved.OrderID, approved.ID)
	if err != nil {
		return approved, nil, err
	}

	final, err := u.store.Transition(ctx, refundID, StatusApproved, StatusRefunded, actorID, nil)
	if err != nil {
		return approved, entries, err
	}
	return final, entries, nil
}

// DebitForRefund computes and records the clawback for an approved refund.
// Allocations are grouped by (supplier, purchase order) and summed; each
// group with a positive paid amount yields exactly one DEBIT entry.
func (u *Usecase) DebitForRefund(ctx context.Context, orderID, refundID string) ([]LedgerEntry, error) {
	if orderID == "" || refundID == "" {
		return nil, ErrInvalidInput
	}

	paid, err := u.store.ListPaidAllocations(ctx, orderID)
	if err != nil {
		return nil, err
	}

	type groupKey struct{ supplierID, poID string }
	sums := map[groupKey]int64{}
	var order []groupKey
	for _, a := range paid {
		k := groupKey{a.SupplierID, a.PurchaseOrderID}
		if _, seen := sums[k]; !seen {
			order = append(order, k)
		}
		sums[k] += a.AmountKobo
	}

	var entries []LedgerEntry
	for _, k := range order {
		amount := sums[k]
		if amount <= 0 {
			continue
		}
		supplierID, poID, oID, rID := k.supplierID, k.poID, orderID, refundID
		entries = append(entries, LedgerEntry{
			SupplierID:      supplierID,
			Direction:       EntryDebit,
			AmountKobo:      amount,
			RefundID:        &rID,
			OrderID:         &oID,
			PurchaseOrderID: &poID,
		})
	}

	if len(entries) == 0 {
		return nil, nil
	}

	written, err := u.store.AppendDebits(ctx, refundID, entries)
	if err != nil {
		return nil, err
	}

	for _, e := range written {
		u.log.Info("refund clawback debit recorded",
			zap.String("refund_id", refundID),
			zap.String("supplier_id", e.SupplierID),
			zap.Int64("amount_kobo", e.AmountKobo),
		)
	}
	return written, nil
}

func (u *Usecase) SupplierBalance(ctx context.Context, supplierID string) (int64, error) {
	if supplierID == "" {
		return 0, ErrInvalidInput
	}
	return u.store.SupplierBalance(ctx, supplierID)
}

func isValidTransition(from, to string) bool {
	switch from {
	case StatusRequested:
		return to == StatusSupplierReview || to == StatusEscalated || to == StatusApproved || to == StatusRejected
	case StatusSupplierReview:
		return to == StatusEscalated || to == StatusDisputed || to == StatusApproved || to == StatusRejected
	case StatusEscalated, StatusDisputed:
		return to == StatusApproved || to == StatusRejected
	case StatusApproved:
		return to == StatusProcessing || to == StatusRefunded
	case StatusProcessing:
		return to == StatusRefunded
	default:
		return false
	}
}
