package purchase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/doncapon/yemisshop-sub009/internal/config"
	otpuc "github.com/doncapon/yemisshop-sub009/internal/usecase/otp"
)

// --- Fakes ---------------------------------------------------------------

type fakeStore struct {
	order     *SplitOrder
	split     bool
	pos       map[string]*PurchaseOrder
	items     map[string]*Item
	ownerID   string
	phone     string
	orderDone bool // parent order promoted to delivered_all
	seq       int
}

func newFakeStore(order *SplitOrder) *fakeStore {
	return &fakeStore{
		order:   order,
		pos:     map[string]*PurchaseOrder{},
		items:   map[string]*Item{},
		ownerID: order.UserID,
		phone:   "+2348012345678",
	}
}

func (f *fakeStore) GetOrderForSplit(_ context.Context, orderID string) (*SplitOrder, error) {
	if f.order == nil || f.order.ID != orderID {
		return nil, nil
	}
	return f.order, nil
}

func (f *fakeStore) AlreadySplit(_ context.Context, _ string) (bool, error) { return f.split, nil }

func (f *fakeStore) CreatePurchaseOrders(_ context.Context, orderID string, pos []NewPurchaseOrder) ([]PurchaseOrder, error) {
	if f.split {
		return nil, ErrAlreadySplit
	}
	f.split = true
	out := make([]PurchaseOrder, 0, len(pos))
	for _, np := range pos {
		f.seq++
		po := &PurchaseOrder{
			ID:                 fmt.Sprintf("po-%d", f.seq),
			OrderID:            orderID,
			SupplierID:         np.SupplierID,
			SubtotalKobo:       np.SubtotalKobo,
			PlatformFeeKobo:    np.PlatformFeeKobo,
			SupplierAmountKobo: np.SupplierAmountKobo,
			PayoutPct:          np.PayoutPct,
			Status:             StatusPending,
			PayoutStatus:       PayoutPending,
		}
		for _, ni := range np.Items {
			f.seq++
			item := Item{
				ID:                    fmt.Sprintf("poi-%d", f.seq),
				PurchaseOrderID:       po.ID,
				OrderItemID:           ni.OrderItemID,
				ProductID:             ni.ProductID,
				Qty:                   ni.Qty,
				SupplierUnitPriceKobo: ni.SupplierUnitPriceKobo,
			}
			po.Items = append(po.Items, item)
			cp := item
			f.items[item.ID] = &cp
		}
		f.pos[po.ID] = po
		out = append(out, *po)
	}
	return out, nil
}

func (f *fakeStore) GetPurchaseOrder(_ context.Context, id string) (*PurchaseOrder, error) {
	po, ok := f.pos[id]
	if !ok {
		return nil, nil
	}
	cp := *po
	return &cp, nil
}

func (f *fakeStore) ListByOrder(_ context.Context, orderID string) ([]PurchaseOrder, error) {
	var out []PurchaseOrder
	for _, po := range f.pos {
		if po.OrderID == orderID {
			out = append(out, *po)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id, from, to string) (*PurchaseOrder, error) {
	po, ok := f.pos[id]
	if !ok {
		return nil, ErrNotFound
	}
	if po.Status != from {
		return nil, ErrInvalidTransition
	}
	po.Status = to
	cp := *po
	return &cp, nil
}

func (f *fakeStore) MarkDelivered(_ context.Context, poID, otpRequestID string) (*PurchaseOrder, error) {
	po, ok := f.pos[poID]
	if !ok {
		return nil, ErrNotFound
	}
	now := time.Now()
	po.Status = StatusDelivered
	po.DeliveredAt = &now
	po.DeliveryVerifiedAt = &now
	po.DeliveryOtpID = &otpRequestID
	if po.PayoutStatus == PayoutPending {
		po.PayoutStatus = PayoutHeld
	}

	all := true
	for _, sib := range f.pos {
		if sib.OrderID == po.OrderID && sib.Status != StatusDelivered {
			all = false
		}
	}
	f.orderDone = all
	cp := *po
	return &cp, nil
}

func (f *fakeStore) MarkPurchaseOrderFailed(_ context.Context, poID string) error {
	f.pos[poID].Status = StatusFailedPurchase
	return nil
}

func (f *fakeStore) MarkItemPlaced(_ context.Context, itemID, ref string) error {
	st := ExternalPlaced
	f.items[itemID].ExternalStatus = &st
	f.items[itemID].ExternalRef = &ref
	return nil
}

func (f *fakeStore) MarkItemPaid(_ context.Context, itemID string) error {
	st := ExternalPaid
	f.items[itemID].ExternalStatus = &st
	return nil
}

func (f *fakeStore) MarkItemReceipt(_ context.Context, itemID, url string) error {
	f.items[itemID].ReceiptURL = &url
	return nil
}

func (f *fakeStore) MarkItemFailed(_ context.Context, itemID, diag string) error {
	st := ExternalFailed
	f.items[itemID].ExternalStatus = &st
	f.items[itemID].ExternalRef = &diag
	return nil
}

func (f *fakeStore) OrderOwner(_ context.Context, _ string) (string, string, error) {
	return f.ownerID, f.phone, nil
}

var _ Store = (*fakeStore)(nil)

type fakeDispatcher struct {
	placeCalls   int
	payCalls     int
	failSupplier string // PlaceOrder fails for this supplier
	failReceipt  bool
}

func (d *fakeDispatcher) PlaceOrder(_ context.Context, in PlaceOrderInput) (string, error) {
	d.placeCalls++
	if in.SupplierID == d.failSupplier {
		return "", errors.New("supplier api timeout")
	}
	return "ext-" + in.ProductID, nil
}

func (d *fakeDispatcher) PayOrder(_ context.Context, _ string, _ int64) error {
	d.payCalls++
	return nil
}

func (d *fakeDispatcher) FetchReceipt(_ context.Context, ref string) (string, error) {
	if d.failReceipt {
		return "", errors.New("receipt service unavailable")
	}
	return "https://receipts.example/" + ref, nil
}

type nopSender struct{}

func (nopSender) Send(context.Context, string, string) error { return nil }

// --- Helpers -------------------------------------------------------------

func payoutCfg() config.PayoutConfig {
	return config.PayoutConfig{PhysicalPayoutPct: 70, OnlineCommissionPct: 30}
}

func twoSupplierOrder() *SplitOrder {
	return &SplitOrder{
		ID:           "ord-1",
		UserID:       "user-1",
		Status:       "paid",
		SubtotalKobo: 500000 + 333300,
		Items: []SplitItem{
			{
				OrderItemID:           "oi-1",
				ProductID:             "prod-1",
				SupplierID:            "sup-physical",
				SupplierKind:          SupplierPhysical,
				Qty:                   1,
				UnitPriceKobo:         500000,
				SupplierUnitPriceKobo: 350000,
			},
			{
				OrderItemID:           "oi-2",
				ProductID:             "prod-2",
				SupplierID:            "sup-online",
				SupplierKind:          SupplierOnline,
				Qty:                   3,
				UnitPriceKobo:         111100,
				SupplierUnitPriceKobo: 80000,
			},
		},
	}
}

func newTestUsecase(store *fakeStore, d *fakeDispatcher) *Usecase {
	gate := otpuc.NewGate(newOtpMem(), config.OTPConfig{
		ResendCooldown: time.Minute,
		MaxAttempts:    5,
		LockWindow:     30 * time.Minute,
		PayTTL:         5 * time.Minute,
		CancelTTL:      5 * time.Minute,
		DeliveryTTL:    10 * time.Minute,
	})
	return New(store, d, gate, nopSender{}, payoutCfg(), zap.NewNop())
}

// minimal in-memory otp store for the delivery-flow tests
type otpMem struct {
	byID map[string]*otpuc.Request
	last map[string]time.Time
}

func newOtpMem() *otpMem {
	return &otpMem{byID: map[string]*otpuc.Request{}, last: map[string]time.Time{}}
}

func (m *otpMem) Create(_ context.Context, r *otpuc.Request) error {
	cp := *r
	m.byID[r.ID] = &cp
	m.last[r.SubjectKey+"|"+string(r.Purpose)] = r.CreatedAt
	return nil
}

func (m *otpMem) GetByID(_ context.Context, id string) (*otpuc.Request, error) {
	r, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *otpMem) LastIssuedAt(_ context.Context, s string, p otpuc.Purpose) (*time.Time, error) {
	t, ok := m.last[s+"|"+string(p)]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *otpMem) RecordAttempt(_ context.Context, id string, n int, lu *time.Time) error {
	m.byID[id].Attempts = n
	m.byID[id].LockedUntil = lu
	return nil
}

func (m *otpMem) MarkVerified(_ context.Context, id string, at time.Time) error {
	m.byID[id].VerifiedAt = &at
	return nil
}

func (m *otpMem) MarkConsumed(_ context.Context, id string, at time.Time) error {
	m.byID[id].ConsumedAt = &at
	return nil
}

// --- Tests ---------------------------------------------------------------

func TestSplit_TwoSuppliers_MoneyInvariants(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(twoSupplierOrder())
	d := &fakeDispatcher{}
	u := newTestUsecase(store, d)

	require.NoError(t, u.Split(ctx, "ord-1"))
	require.Len(t, store.pos, 2)

	var total int64
	bySupplier := map[string]*PurchaseOrder{}
	for _, po := range store.pos {
		total += po.SubtotalKobo
		bySupplier[po.SupplierID] = po
		require.Equal(t, po.SubtotalKobo, po.SupplierAmountKobo+po.PlatformFeeKobo,
			"subtotal must equal supplier amount plus platform fee")
	}
	require.Equal(t, store.order.SubtotalKobo, total, "PO subtotals must sum to the order subtotal")

	// PHYSICAL: 70% of 500000 = 350000 to supplier, 150000 platform.
	phys := bySupplier["sup-physical"]
	require.EqualValues(t, 500000, phys.SubtotalKobo)
	require.EqualValues(t, 350000, phys.SupplierAmountKobo)
	require.EqualValues(t, 150000, phys.PlatformFeeKobo)
	require.Equal(t, 70, phys.PayoutPct)

	// ONLINE: fee = floor(333300*30/100) = 99990; remainder to supplier.
	onl := bySupplier["sup-online"]
	require.EqualValues(t, 333300, onl.SubtotalKobo)
	require.EqualValues(t, 99990, onl.PlatformFeeKobo)
	require.EqualValues(t, 233310, onl.SupplierAmountKobo)
}

func TestSplit_FloorRemainderAccruesToPlatform(t *testing.T) {
	ctx := context.Background()

	oddOrder := func(kind string) *SplitOrder {
		return &SplitOrder{
			ID:     "ord-odd",
			UserID: "user-1",
			Status: "paid",
			Items: []SplitItem{{
				OrderItemID:   "oi-1",
				ProductID:     "p",
				SupplierID:    "s",
				SupplierKind:  kind,
				Qty:           1,
				UnitPriceKobo: 101,
			}},
		}
	}

	t.Run("physical", func(t *testing.T) {
		// 101 kobo at 70%: floor(70.7) = 70 to supplier, 31 to platform.
		store := newFakeStore(oddOrder(SupplierPhysical))
		u := newTestUsecase(store, &fakeDispatcher{})

		require.NoError(t, u.Split(ctx, "ord-odd"))
		for _, po := range store.pos {
			require.EqualValues(t, 70, po.SupplierAmountKobo)
			require.EqualValues(t, 31, po.PlatformFeeKobo)
		}
	})

	t.Run("online", func(t *testing.T) {
		// 101 kobo at 30% commission: the supplier share is floored too,
		// floor(70.7) = 70, so the remainder still lands with the platform.
		store := newFakeStore(oddOrder(SupplierOnline))
		u := newTestUsecase(store, &fakeDispatcher{})

		require.NoError(t, u.Split(ctx, "ord-odd"))
		for _, po := range store.pos {
			require.EqualValues(t, 70, po.SupplierAmountKobo)
			require.EqualValues(t, 31, po.PlatformFeeKobo)
		}
	})
}

func TestSplit_AtMostOnce(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(twoSupplierOrder())
	u := newTestUsecase(store, &fakeDispatcher{})

	require.NoError(t, u.Split(ctx, "ord-1"))
	err := u.Split(ctx, "ord-1")
	require.ErrorIs(t, err, ErrAlreadySplit)
}

func TestSplit_UnpaidOrderRejected(t *testing.T) {
	ctx := context.Background()
	o := twoSupplierOrder()
	o.Status = "pending_payment"
	store := newFakeStore(o)
	u := newTestUsecase(store, &fakeDispatcher{})

	err := u.Split(ctx, "ord-1")
	require.ErrorIs(t, err, ErrOrderNotPaid)
}

func TestSplit_OneLegFailureDoesNotBlockSiblings(t *testing.T) {
	ctx := context.Background()
	o := twoSupplierOrder()
	// Make both suppliers online; one of them fails at place-order.
	o.Items[0].SupplierKind = SupplierOnline
	store := newFakeStore(o)
	d := &fakeDispatcher{failSupplier: "sup-online"}
	u := newTestUsecase(store, d)

	require.NoError(t, u.Split(ctx, "ord-1"))

	for _, po := range store.pos {
		switch po.SupplierID {
		case "sup-online":
			require.Equal(t, StatusFailedPurchase, po.Status)
		case "sup-physical":
			require.Equal(t, StatusProcessing, po.Status)
		}
	}

	// The failed leg's item carries a diagnostic reference.
	var foundFailed bool
	for _, it := range store.items {
		if it.ExternalStatus != nil && *it.ExternalStatus == ExternalFailed {
			foundFailed = true
			require.NotNil(t, it.ExternalRef)
		}
	}
	require.True(t, foundFailed)
}

func TestSplit_ReceiptFailureIsBestEffort(t *testing.T) {
	ctx := context.Background()
	o := twoSupplierOrder()
	o.Items = o.Items[1:] // keep only the online leg
	store := newFakeStore(o)
	d := &fakeDispatcher{failReceipt: true}
	u := newTestUsecase(store, d)

	require.NoError(t, u.Split(ctx, "ord-1"))
	for _, po := range store.pos {
		require.Equal(t, StatusProcessing, po.Status, "receipt failure must not fail the leg")
	}
	for _, it := range store.items {
		require.Nil(t, it.ReceiptURL)
		require.Equal(t, ExternalPaid, *it.ExternalStatus)
	}
}

func TestDeliveryConfirm_FullFlow(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(twoSupplierOrder())
	u := newTestUsecase(store, &fakeDispatcher{})
	require.NoError(t, u.Split(ctx, "ord-1"))

	// Walk one PO to shipped.
	var poID string
	for id, po := range store.pos {
		if po.SupplierID == "sup-physical" {
			poID = id
		}
	}
	_, err := u.Accept(ctx, poID)
	require.NoError(t, err)
	_, err = u.MarkShipped(ctx, poID)
	require.NoError(t, err)

	iss, rep, err := u.RequestDeliveryOTP(ctx, poID, "user-1")
	require.NoError(t, err)
	require.True(t, rep.Sent)

	res, err := u.gate.Verify(ctx, iss.RequestID, iss.Code)
	require.NoError(t, err)
	require.True(t, res.Verified)

	po, err := u.ConfirmDelivery(ctx, poID, "user-1", iss.RequestID)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, po.Status)
	require.NotNil(t, po.DeliveredAt)
	require.NotNil(t, po.DeliveryVerifiedAt)

	// The sibling PO is not delivered, so the order is not done yet.
	require.False(t, store.orderDone)

	// Retried confirmation is a no-op success.
	again, err := u.ConfirmDelivery(ctx, poID, "user-1", iss.RequestID)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, again.Status)
}

func TestDeliveryConfirm_RejectsNonOwner(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(twoSupplierOrder())
	u := newTestUsecase(store, &fakeDispatcher{})
	require.NoError(t, u.Split(ctx, "ord-1"))

	var poID string
	for id := range store.pos {
		poID = id
	}
	_, _, err := u.RequestDeliveryOTP(ctx, poID, "someone-else")
	require.ErrorIs(t, err, ErrNotOwner)
}
