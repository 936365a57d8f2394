package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/doncapon/yemisshop-sub009/internal/repository/postgres/testutil"
	orderuc "github.com/doncapon/yemisshop-sub009/internal/usecase/order"
)

func seedOrder(t *testing.T, ctx context.Context, store *OrderStoreAdapter, userID, productID, supplierID string) *orderuc.Order {
	t.Helper()
	o, err := store.Create(ctx, orderuc.CheckoutInput{
		UserID: userID,
		Items:  []orderuc.CheckoutItemIn{{ProductID: productID, SupplierID: supplierID, Qty: 1}},
	})
	require.NoError(t, err)
	return o
}

// List with an empty user filter returns everyone's orders; a user id narrows
// it to that user.
func TestList_UserFilter(t *testing.T) {
	pool := testutil.MustOpenDB(t)
	t.Cleanup(pool.Close)
	testutil.TruncateAll(t, pool)

	ctx := context.Background()
	u1 := testutil.MustInsertUser(t, pool, "one@example.com", "+2348000000011", "customer")
	u2 := testutil.MustInsertUser(t, pool, "two@example.com", "+2348000000012", "customer")
	sup := testutil.MustInsertSupplier(t, pool, "Depot", "PHYSICAL", nil, true)
	prod := testutil.MustInsertProduct(t, pool, "SKU-L", "Listed Item", 100000)
	testutil.MustInsertOffer(t, pool, prod, sup, 60000)

	store := NewOrderStoreAdapter(pool)
	seedOrder(t, ctx, store, u1, prod, sup)
	seedOrder(t, ctx, store, u1, prod, sup)
	seedOrder(t, ctx, store, u2, prod, sup)

	all, err := store.List(ctx, orderuc.ListInput{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 3)

	mine, err := store.List(ctx, orderuc.ListInput{UserID: u2, Limit: 10})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, u2, mine[0].UserID)
}

func TestCreate_ResolvesOfferPricing(t *testing.T) {
	pool := testutil.MustOpenDB(t)
	t.Cleanup(pool.Close)
	testutil.TruncateAll(t, pool)

	ctx := context.Background()
	user := testutil.MustInsertUser(t, pool, "buyer@example.com", "+2348000000013", "customer")
	sup := testutil.MustInsertSupplier(t, pool, "Depot", "PHYSICAL", nil, true)
	prod := testutil.MustInsertProduct(t, pool, "SKU-P", "Priced Item", 250000)
	testutil.MustInsertOffer(t, pool, prod, sup, 150000)

	store := NewOrderStoreAdapter(pool)
	o, err := store.Create(ctx, orderuc.CheckoutInput{
		UserID: user,
		Items:  []orderuc.CheckoutItemIn{{ProductID: prod, SupplierID: sup, Qty: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, orderuc.StatusPendingPayment, o.Status)
	require.EqualValues(t, 500000, o.SubtotalKobo)
	require.Len(t, o.Items, 1)
	require.EqualValues(t, 250000, o.Items[0].UnitPriceKobo)
	require.EqualValues(t, 150000, o.Items[0].ChosenSupplierUnitPrice)

	_, err = store.Create(ctx, orderuc.CheckoutInput{
		UserID: user,
		Items:  []orderuc.CheckoutItemIn{{ProductID: prod, SupplierID: user, Qty: 1}},
	})
	require.ErrorIs(t, err, orderuc.ErrOfferMissing)
}
