package purchase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/doncapon/yemisshop-sub009/internal/config"
	"github.com/doncapon/yemisshop-sub009/internal/notify"
	orderuc "github.com/doncapon/yemisshop-sub009/internal/usecase/order"
	otpuc "github.com/doncapon/yemisshop-sub009/internal/usecase/otp"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("purchase order not found")
	ErrOrderMissing      = errors.New("order not found")
	ErrOrderNotPaid      = errors.New("order not paid")
	ErrAlreadySplit      = errors.New("order already split")
	ErrInvalidTransition = errors.New("invalid purchase order status transition")
	ErrNotOwner          = errors.New("order does not belong to actor")
)

type Store interface {
	// GetOrderForSplit loads the paid order with supplier kind and payout
	// override resolved per item.
	GetOrderForSplit(ctx context.Context, orderID string) (*SplitOrder, error)
	AlreadySplit(ctx context.Context, orderID string) (bool, error)
	// CreatePurchaseOrders writes the POs, their items and the PENDING payment
	// allocations in a single transaction. A concurrent duplicate split is
	// rejected by the unique (order_id, supplier_id) constraint and surfaces
	// as ErrAlreadySplit.
	CreatePurchaseOrders(ctx context.Context, orderID string, pos []NewPurchaseOrder) ([]PurchaseOrder, error)

	GetPurchaseOrder(ctx context.Context, id string) (*PurchaseOrder, error)
	ListByOrder(ctx context.Context, orderID string) ([]PurchaseOrder, error)
	// UpdateStatus locks the PO row and re-checks the transition under the lock.
	UpdateStatus(ctx context.Context, id, from, to string) (*PurchaseOrder, error)
	// MarkDelivered sets delivered status, delivery timestamps and the
	// verified OTP reference; when every sibling PO is delivered it also
	// promotes the parent order, all in one transaction.
	MarkDelivered(ctx context.Context, poID, otpRequestID string) (*PurchaseOrder, error)
	MarkPurchaseOrderFailed(ctx context.Context, poID string) error
	MarkItemPlaced(ctx context.Context, itemID, externalRef string) error
	MarkItemPaid(ctx context.Context, itemID string) error
	MarkItemReceipt(ctx context.Context, itemID, receiptURL string) error
	MarkItemFailed(ctx context.Context, itemID, diagnosticRef string) error

	// OrderOwner resolves the owning user and their phone for a PO.
	OrderOwner(ctx context.Context, poID string) (userID, phone string, err error)
}

// Dispatcher places and pays an order leg with an externally integrated
// supplier. Every call carries a bounded timeout inside the implementation.
type Dispatcher interface {
	PlaceOrder(ctx context.Context, in PlaceOrderInput) (externalRef string, err error)
	PayOrder(ctx context.Context, externalRef string, amountKobo int64) error
	FetchReceipt(ctx context.Context, externalRef string) (receiptURL string, err error)
}

type PlaceOrderInput struct {
	SupplierID string
	ProductID  string
	Qty        int
}

type Usecase struct {
	store      Store
	dispatcher Dispatcher
	gate       *otpuc.Gate
	sender     notify.Sender
	cfg        config.PayoutConfig
	log        *zap.Logger
}

func New(store Store, dispatcher Dispatcher, gate *otpuc.Gate, sender notify.Sender, cfg config.PayoutConfig, log *zap.Logger) *Usecase {
	return &Usecase{store: store, dispatcher: dispatcher, gate: gate, sender: sender, cfg: cfg, log: log}
}

func SubjectKey(poID string) string { return "po:" + poID }

// Split partitions a paid order's items by supplier, settles the commission
// math in kobo and materializes one purchase order per supplier. It is safe
// to call at most once per order; re-invocation returns ErrAlreadySplit.
func (u *Usecase) Split(ctx context.Context, orderID string) error {
	if orderID == "" {
		return ErrInvalidInput
	}

	done, err := u.store.AlreadySplit(ctx, orderID)
	if err != nil {
		return err
	}
	if done {
		return ErrAlreadySplit
	}

	o, err := u.store.GetOrderForSplit(ctx, orderID)
	if err != nil {
		return err
	}
	if o == nil {
		return ErrOrderMissing
	}
	if o.Status != orderuc.StatusPaid {
		return fmt.Errorf("%w: order is %s", ErrOrderNotPaid, o.Status)
	}

	pos := u.buildPurchaseOrders(o)

	created, err := u.store.CreatePurchaseOrders(ctx, orderID, pos)
	if err != nil {
		return err
	}

	// Online legs are dispatched after the split transaction committed. One
	// leg failing marks only its own PO; siblings proceed.
	for i, po := range created {
		if pos[i].SupplierKind != SupplierOnline {
			continue
		}
		u.dispatchLeg(ctx, po)
	}
	return nil
}

// buildPurchaseOrders groups items by supplier and applies the commission
// split. All arithmetic is int64 kobo with floor division, so rounding
// remainders always accrue to the platform.
func (u *Usecase) buildPurchaseOrders(o *SplitOrder) []NewPurchaseOrder {
	grouped := map[string][]SplitItem{}
	for _, it := range o.Items {
		grouped[it.SupplierID] = append(grouped[it.SupplierID], it)
	}

	supplierIDs := make([]string, 0, len(grouped))
	for id := range grouped {
		supplierIDs = append(supplierIDs, id)
	}
	sort.Strings(supplierIDs)

	out := make([]NewPurchaseOrder, 0, len(supplierIDs))
	for _, supplierID := range supplierIDs {
		items := grouped[supplierID]

		var subtotal int64
		newItems := make([]NewItem, 0, len(items))
		for _, it := range items {
			subtotal += it.UnitPriceKobo * int64(it.Qty)
			newItems = append(newItems, NewItem{
				OrderItemID:           it.OrderItemID,
				ProductID:             it.ProductID,
				Qty:                   it.Qty,
				SupplierUnitPriceKobo: it.SupplierUnitPriceKobo,
			})
		}

		kind := items[0].SupplierKind
		var supplierAmount int64
		var payoutPct int
		if kind == SupplierOnline {
			// Floor the supplier share, not the fee, so the rounding
			// remainder lands with the platform here too.
			payoutPct = 100 - u.cfg.OnlineCommissionPct
			supplierAmount = floorPct(subtotal, payoutPct)
		} else {
			payoutPct = u.cfg.PhysicalPayoutPct
			if items[0].SupplierPayoutPct != nil {
				payoutPct = *items[0].SupplierPayoutPct
			}
			supplierAmount = floorPct(subtotal, payoutPct)
		}

		out = append(out, NewPurchaseOrder{
			SupplierID:         supplierID,
			SupplierKind:       kind,
			SubtotalKobo:       subtotal,
			PlatformFeeKobo:    subtotal - supplierAmount,
			SupplierAmountKobo: supplierAmount,
			PayoutPct:          payoutPct,
			Items:              newItems,
		})
	}
	return out
}

// floorPct applies pct to an amount in kobo with floor semantics.
func floorPct(amountKobo int64, pct int) int64 {
	return amountKobo * int64(pct) / 100
}

// dispatchLeg runs place -> pay -> receipt for each item of an online PO.
// Receipt fetch is best-effort; any other step failing marks the item and the
// PO as failed without touching sibling purchase orders.
func (u *Usecase) dispatchLeg(ctx context.Context, po PurchaseOrder) {
	failed := false
	for _, item := range po.Items {
		extRef, err := u.dispatcher.PlaceOrder(ctx, PlaceOrderInput{
			SupplierID: po.SupplierID,
			ProductID:  item.ProductID,
			Qty:        item.Qty,
		})
		if err != nil {
			u.failItem(ctx, po.ID, item.ID, fmt.Sprintf("place: %v", err))
			failed = true
			continue
		}
		if err := u.store.MarkItemPlaced(ctx, item.ID, extRef); err != nil {
			u.log.Error("mark item placed failed", zap.String("item_id", item.ID), zap.Error(err))
		}

		cost := item.SupplierUnitPriceKobo * int64(item.Qty)
		if err := u.dispatcher.PayOrder(ctx, extRef, cost); err != nil {
			u.failItem(ctx, po.ID, item.ID, fmt.Sprintf("pay %s: %v", extRef, err))
			failed = true
			continue
		}
		if err := u.store.MarkItemPaid(ctx, item.ID); err != nil {
			u.log.Error("mark item paid failed", zap.String("item_id", item.ID), zap.Error(err))
		}

		if url, err := u.dispatcher.FetchReceipt(ctx, extRef); err != nil {
			u.log.Warn("receipt fetch failed", zap.String("external_ref", extRef), zap.Error(err))
		} else if err := u.store.MarkItemReceipt(ctx, item.ID, url); err != nil {
			u.log.Error("mark item receipt failed", zap.String("item_id", item.ID), zap.Error(err))
		}
	}

	if failed {
		if err := u.store.MarkPurchaseOrderFailed(ctx, po.ID); err != nil {
			u.log.Error("mark purchase order failed errored", zap.String("po_id", po.ID), zap.Error(err))
		}
		return
	}
	if _, err := u.store.UpdateStatus(ctx, po.ID, StatusPending, StatusProcessing); err != nil {
		u.log.Error("purchase order status update failed", zap.String("po_id", po.ID), zap.Error(err))
	}
}

func (u *Usecase) failItem(ctx context.Context, poID, itemID, diag string) {
	u.log.Warn("supplier dispatch leg failed",
		zap.String("po_id", poID),
		zap.String("item_id", itemID),
		zap.String("diagnostic", diag),
	)
	if err := u.store.MarkItemFailed(ctx, itemID, diag); err != nil {
		u.log.Error("mark item failed errored", zap.String("item_id", itemID), zap.Error(err))
	}
}

func (u *Usecase) GetByID(ctx context.Context, id string) (*PurchaseOrder, error) {
	if id == "" {
		return nil, ErrInvalidInput
	}
	return u.store.GetPurchaseOrder(ctx, id)
}

func (u *Usecase) ListByOrder(ctx context.Context, orderID string) ([]PurchaseOrder, error) {
	if orderID == "" {
		return nil, ErrInvalidInput
	}
	return u.store.ListByOrder(ctx, orderID)
}

// MarkShipped is the supplier-side handoff that makes a PO eligible for
// delivery confirmation.
func (u *Usecase) MarkShipped(ctx context.Context, poID string) (*PurchaseOrder, error) {
	if poID == "" {
		return nil, ErrInvalidInput
	}
	return u.store.UpdateStatus(ctx, poID, StatusProcessing, StatusShipped)
}
