package order

import "time"

const (
	StatusPendingPayment = "pending_payment" // created at checkout, awaiting payment
	StatusPaid           = "paid"            // payment confirmed (items frozen, split fan-out done)
	StatusDeliveredAll   = "delivered_all"   // every purchase order delivered (terminal)
	StatusCanceled       = "canceled"        // terminal
)

type Order struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Status       string    `json:"status"`
	Currency     string    `json:"currency"`
	SubtotalKobo int64     `json:"subtotalKobo"`
	Items        []Item    `json:"items,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Item struct {
	ID                      string    `json:"id"`
	OrderID                 string    `json:"orderId"`
	ProductID               string    `json:"productId"`
	SupplierID              string    `json:"supplierId"`
	Qty                     int       `json:"qty"`
	UnitPriceKobo           int64     `json:"unitPriceKobo"`
	ChosenSupplierUnitPrice int64     `json:"chosenSupplierUnitPriceKobo"`
	CreatedAt               time.Time `json:"createdAt"`
}

type CheckoutInput struct {
	UserID string           `json:"-"`
	Items  []CheckoutItemIn `json:"items"`
}

type CheckoutItemIn struct {
	ProductID  string `json:"productId"`
	SupplierID string `json:"supplierId"`
	Qty        int    `json:"qty"`
}

type ListInput struct {
	UserID string
	Limit  int
	Offset int
}
