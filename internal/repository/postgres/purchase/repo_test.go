package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/doncapon/yemisshop-sub009/internal/config"
	orderpg "github.com/doncapon/yemisshop-sub009/internal/repository/postgres/order"
	otppg "github.com/doncapon/yemisshop-sub009/internal/repository/postgres/otp"
	"github.com/doncapon/yemisshop-sub009/internal/repository/postgres/testutil"
	orderuc "github.com/doncapon/yemisshop-sub009/internal/usecase/order"
	otpuc "github.com/doncapon/yemisshop-sub009/internal/usecase/otp"
	purchaseuc "github.com/doncapon/yemisshop-sub009/internal/usecase/purchase"
)

// --- Helpers -------------------------------------------------------------

type stubDispatcher struct {
	placed int
	paid   int
}

func (d *stubDispatcher) PlaceOrder(ctx context.Context, in purchaseuc.PlaceOrderInput) (string, error) {
	d.placed++
	return in.SupplierID + ":ext-1", nil
}

func (d *stubDispatcher) PayOrder(ctx context.Context, ref string, amountKobo int64) error {
	d.paid++
	return nil
}

func (d *stubDispatcher) FetchReceipt(ctx context.Context, ref string) (string, error) {
	return "https://receipts.example/ext-1.pdf", nil
}

type stubSender struct{}

func (stubSender) Send(ctx context.Context, destination, message string) error { return nil }

func testOTPConfig() config.OTPConfig {
	return config.OTPConfig{
		PayTTL:         5 * time.Minute,
		CancelTTL:      5 * time.Minute,
		DeliveryTTL:    10 * time.Minute,
		ResendCooldown: time.Second,
		MaxAttempts:    5,
		LockWindow:     30 * time.Minute,
	}
}

func testPayoutConfig() config.PayoutConfig {
	return config.PayoutConfig{PhysicalPayoutPct: 70, OnlineCommissionPct: 30}
}

// --- Tests ---------------------------------------------------------------

// This test validates:
// - Split creates one PO per supplier with commission applied in kobo
// - PENDING payment allocations are written alongside
// - a second Split is rejected
func TestSplit_TwoSuppliers_OK(t *testing.T) {
	pool := testutil.MustOpenDB(t)
	t.Cleanup(pool.Close)
	testutil.TruncateAll(t, pool)

	ctx := context.Background()
	userID := testutil.MustInsertUser(t, pool, "buyer@example.com", "+2348000000001", "customer")
	physID := testutil.MustInsertSupplier(t, pool, "Lagos Depot", "PHYSICAL", nil, true)
	onlineID := testutil.MustInsertSupplier(t, pool, "NaijaMart API", "ONLINE", nil, true)

	p1 := testutil.MustInsertProduct(t, pool, "SKU-GEN-001", "Generator", 500000)
	p2 := testutil.MustInsertProduct(t, pool, "SKU-FAN-002", "Ceiling Fan", 333300)
	testutil.MustInsertOffer(t, pool, p1, physID, 300000)
	testutil.MustInsertOffer(t, pool, p2, onlineID, 200000)

	orders := orderpg.NewOrderStoreAdapter(pool)
	o, err := orders.Create(ctx, orderuc.CheckoutInput{
		UserID: userID,
		Items: []orderuc.CheckoutItemIn{
			{ProductID: p1, SupplierID: physID, Qty: 1},
			{ProductID: p2, SupplierID: onlineID, Qty: 1},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(833300), o.SubtotalKobo)

	_, err = orders.UpdateStatus(ctx, o.ID, orderuc.StatusPendingPayment, orderuc.StatusPaid)
	require.NoError(t, err)

	gate := otpuc.NewGate(otppg.NewOtpStoreAdapter(otppg.NewOtpRepo(pool)), testOTPConfig())
	disp := &stubDispatcher{}
	uc := purchaseuc.New(NewPurchaseStoreAdapter(pool), disp, gate, stubSender{}, testPayoutConfig(), zap.NewNop())

	require.NoError(t, uc.Split(ctx, o.ID))

	pos, err := uc.ListByOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, pos, 2)

	bySupplier := map[string]purchaseuc.PurchaseOrder{}
	for _, po := range pos {
		bySupplier[po.SupplierID] = po
	}

	phys := bySupplier[physID]
	require.Equal(t, int64(500000), phys.SubtotalKobo)
	require.Equal(t, int64(350000), phys.SupplierAmountKobo)
	require.Equal(t, int64(150000), phys.PlatformFeeKobo)
	require.Equal(t, purchaseuc.StatusPending, phys.Status)
	require.Equal(t, purchaseuc.PayoutPending, phys.PayoutStatus)

	online := bySupplier[onlineID]
	require.Equal(t, int64(333300), online.SubtotalKobo)
	require.Equal(t, int64(99990), online.PlatformFeeKobo)
	require.Equal(t, int64(233310), online.SupplierAmountKobo)
	require.Equal(t, purchaseuc.StatusProcessing, online.Status)
	require.Equal(t, 1, disp.placed)
	require.Equal(t, 1, disp.paid)

	var allocCount int
	err = pool.QueryRow(ctx, `
		SELECT count(*) FROM supplier_payment_allocations spa
		JOIN purchase_orders po ON po.id = spa.purchase_order_id
		WHERE po.order_id = $1::uuid AND spa.status = 'pending'
	`, o.ID).Scan(&allocCount)
	require.NoError(t, err)
	require.Equal(t, 2, allocCount)

	err = uc.Split(ctx, o.ID)
	require.ErrorIs(t, err, purchaseuc.ErrAlreadySplit)
}

// This test validates:
//   - MarkDelivered flips the PO and promotes the order once every sibling
//     is delivered, in the same transaction
func TestMarkDelivered_PromotesOrder(t *testing.T) {
	pool := testutil.MustOpenDB(t)
	t.Cleanup(pool.Close)
	testutil.TruncateAll(t, pool)

	ctx := context.Background()
	userID := testutil.MustInsertUser(t, pool, "buyer@example.com", "+2348000000002", "customer")
	s1 := testutil.MustInsertSupplier(t, pool, "Depot A", "PHYSICAL", nil, true)
	s2 := testutil.MustInsertSupplier(t, pool, "Depot B", "PHYSICAL", nil, true)

	p1 := testutil.MustInsertProduct(t, pool, "SKU-A", "Item A", 100000)
	p2 := testutil.MustInsertProduct(t, pool, "SKU-B", "Item B", 200000)
	testutil.MustInsertOffer(t, pool, p1, s1, 60000)
	testutil.MustInsertOffer(t, pool, p2, s2, 120000)

	orders := orderpg.NewOrderStoreAdapter(pool)
	o, err := orders.Create(ctx, orderuc.CheckoutInput{
		UserID: userID,
		Items: []orderuc.CheckoutItemIn{
			{ProductID: p1, SupplierID: s1, Qty: 1},
			{ProductID: p2, SupplierID: s2, Qty: 1},
		},
	})
	require.NoError(t, err)
	_, err = orders.UpdateStatus(ctx, o.ID, orderuc.StatusPendingPayment, orderuc.StatusPaid)
	require.NoError(t, err)

	gate := otpuc.NewGate(otppg.NewOtpStoreAdapter(otppg.NewOtpRepo(pool)), testOTPConfig())
	store := NewPurchaseStoreAdapter(pool)
	uc := purchaseuc.New(store, &stubDispatcher{}, gate, stubSender{}, testPayoutConfig(), zap.NewNop())

	require.NoError(t, uc.Split(ctx, o.ID))
	pos, err := uc.ListByOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, pos, 2)

	for i, po := range pos {
		_, err = store.UpdateStatus(ctx, po.ID, purchaseuc.StatusPending, purchaseuc.StatusProcessing)
		require.NoError(t, err)
		_, err = store.UpdateStatus(ctx, po.ID, purchaseuc.StatusProcessing, purchaseuc.StatusShipped)
		require.NoError(t, err)

		iss, err := gate.Issue(ctx, purchaseuc.SubjectKey(po.ID), otpuc.PurposeDelivery)
		require.NoError(t, err)
		res, err := gate.Verify(ctx, iss.RequestID, iss.Code)
		require.NoError(t, err)
		require.True(t, res.Verified)

		delivered, err := store.MarkDelivered(ctx, po.ID, iss.RequestID)
		require.NoError(t, err)
		require.Equal(t, purchaseuc.StatusDelivered, delivered.Status)
		require.NotNil(t, delivered.DeliveryVerifiedAt)
		require.Equal(t, purchaseuc.PayoutHeld, delivered.PayoutStatus)

		var allocStatus string
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT status FROM supplier_payment_allocations WHERE purchase_order_id = $1::uuid`,
			po.ID).Scan(&allocStatus))
		require.Equal(t, "held", allocStatus)

		var orderStatus string
		require.NoError(t, pool.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1::uuid`, o.ID).Scan(&orderStatus))
		if i == 0 {
			require.Equal(t, orderuc.StatusPaid, orderStatus)
		} else {
			require.Equal(t, orderuc.StatusDeliveredAll, orderStatus)
		}
	}
}
