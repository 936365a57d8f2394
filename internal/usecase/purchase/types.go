package purchase

import "time"

// Purchase order lifecycle. Forward-only except administrative override.
const (
	StatusPending        = "pending"         // created by the split
	StatusProcessing     = "processing"      // dispatched (online) or accepted (physical)
	StatusShipped        = "shipped"         // supplier handed over to delivery
	StatusDelivered      = "delivered"       // customer confirmed receipt via OTP
	StatusFailedPurchase = "failed_purchase" // online dispatch leg failed
)

// Payout status, owned by the payout engine but persisted on the PO row.
const (
	PayoutPending  = "pending"
	PayoutHeld     = "held"
	PayoutReleased = "released"
	PayoutRefunded = "refunded"
)

// Supplier fulfilment kinds.
const (
	SupplierPhysical = "PHYSICAL"
	SupplierOnline   = "ONLINE"
)

// Item external-integration statuses (online suppliers only).
const (
	ExternalPlaced = "placed"
	ExternalPaid   = "paid"
	ExternalFailed = "failed"
)

// PurchaseOrder is one supplier's slice of a customer order, the unit of
// settlement. subtotal == supplierAmount + platformFee always holds, in kobo.
type PurchaseOrder struct {
	ID                 string     `json:"id"`
	OrderID            string     `json:"orderId"`
	SupplierID         string     `json:"supplierId"`
	SubtotalKobo       int64      `json:"subtotalKobo"`
	PlatformFeeKobo    int64      `json:"platformFeeKobo"`
	SupplierAmountKobo int64      `json:"supplierAmountKobo"`
	PayoutPct          int        `json:"payoutPct"`
	Status             string     `json:"status"`
	PayoutStatus       string     `json:"payoutStatus"`
	DeliveryOtpID      *string    `json:"deliveryOtpId,omitempty"`
	DeliveryVerifiedAt *time.Time `json:"deliveryVerifiedAt,omitempty"`
	DeliveredAt        *time.Time `json:"deliveredAt,omitempty"`
	PaidOutAt          *time.Time `json:"paidOutAt,omitempty"`
	Items              []Item     `json:"items,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// Item links a purchase order to the originating order item and carries the
// external-integration bookkeeping for online suppliers.
type Item struct {
	ID                    string  `json:"id"`
	PurchaseOrderID       string  `json:"purchaseOrderId"`
	OrderItemID           string  `json:"orderItemId"`
	ProductID             string  `json:"productId"`
	Qty                   int     `json:"qty"`
	SupplierUnitPriceKobo int64   `json:"supplierUnitPriceKobo"`
	ExternalStatus        *string `json:"externalStatus,omitempty"`
	ExternalRef           *string `json:"externalRef,omitempty"`
	ReceiptURL            *string `json:"receiptUrl,omitempty"`
}

// SplitOrder is the paid-order view the splitter consumes.
type SplitOrder struct {
	ID           string
	UserID       string
	Status       string
	SubtotalKobo int64
	Items        []SplitItem
}

type SplitItem struct {
	OrderItemID           string
	ProductID             string
	SupplierID            string
	SupplierKind          string
	SupplierPayoutPct     *int // per-supplier override for PHYSICAL, nil = default
	Qty                   int
	UnitPriceKobo         int64
	SupplierUnitPriceKobo int64
}

// NewPurchaseOrder is what the splitter asks the store to materialize.
type NewPurchaseOrder struct {
	SupplierID         string
	SupplierKind       string
	SubtotalKobo       int64
	PlatformFeeKobo    int64
	SupplierAmountKobo int64
	PayoutPct          int
	Items              []NewItem
}

type NewItem struct {
	OrderItemID           string
	ProductID             string
	Qty                   int
	SupplierUnitPriceKobo int64
}
