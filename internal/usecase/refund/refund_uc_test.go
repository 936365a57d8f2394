package refund

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Fake store ----------------------------------------------------------

type fakeAllocation struct {
	PaidAllocation
	Status string
}

type fakeStore struct {
	refunds map[string]*Refund
	events  []Event
	allocs  []fakeAllocation
	ledger  []LedgerEntry
	seq     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{refunds: map[string]*Refund{}}
}

func (f *fakeStore) Create(_ context.Context, in CreateInput) (*Refund, error) {
	f.seq++
	r := &Refund{
		ID:              fmt.Sprintf("ref-%d", f.seq),
		OrderID:         in.OrderID,
		PurchaseOrderID: in.PurchaseOrderID,
		SupplierID:      in.SupplierID,
		UserID:          in.UserID,
		Reason:          in.Reason,
		Status:          StatusRequested,
		CreatedAt:       time.Now(),
	}
	f.refunds[r.ID] = r
	return r, nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*Refund, error) {
	r, ok := f.refunds[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) ListByOrder(_ context.Context, orderID string) ([]Refund, error) {
	var out []Refund
	for _, r := range f.refunds {
		if r.OrderID == orderID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) Transition(_ context.Context, id, from, to, actorID string, note *string) (*Refund, error) {
	r, ok := f.refunds[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != from {
		return nil, ErrInvalidTransition
	}
	r.Status = to
	f.events = append(f.events, Event{RefundID: id, FromState: from, ToState: to, ActorID: actorID, Note: note})
	cp := *r
	return &cp, nil
}

func (f *fakeStore) ListPaidAllocations(_ context.Context, _ string) ([]PaidAllocation, error) {
	var out []PaidAllocation
	for _, a := range f.allocs {
		if a.Status == AllocPaid {
			out = append(out, a.PaidAllocation)
		}
	}
	return out, nil
}

func (f *fakeStore) AppendDebits(_ context.Context, _ string, entries []LedgerEntry) ([]LedgerEntry, error) {
	out := make([]LedgerEntry, 0, len(entries))
	for _, e := range entries {
		f.seq++
		e.ID = fmt.Sprintf("led-%d", f.seq)
		e.CreatedAt = time.Now()
		f.ledger = append(f.ledger, e)
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeStore) SupplierBalance(_ context.Context, supplierID string) (int64, error) {
	var bal int64
	for _, e := range f.ledger {
		if e.SupplierID != supplierID {
			continue
		}
		if e.Direction == EntryCredit {
			bal += e.AmountKobo
		} else {
			bal -= e.AmountKobo
		}
	}
	return bal, nil
}

var _ Store = (*fakeStore)(nil)

// --- Tests ---------------------------------------------------------------

func TestApprove_PaidAllocationYieldsOneDebit(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	u := New(store, zap.NewNop())

	r, err := u.Request(ctx, CreateInput{
		OrderID: "ord-1", PurchaseOrderID: "po-1", SupplierID: "sup-1", UserID: "user-1",
		Reason: "damaged on arrival",
	})
	require.NoError(t, err)
	require.Equal(t, StatusRequested, r.Status)

	store.allocs = []fakeAllocation{
		{PaidAllocation{SupplierID: "sup-1", PurchaseOrderID: "po-1", AmountKobo: 350000}, AllocPaid},
	}

	final, entries, err := u.Approve(ctx, r.ID, "admin-1", nil)
	require.NoError(t, err)
	require.Equal(t, StatusRefunded, final.Status)

	require.Len(t, entries, 1)
	require.Equal(t, EntryDebit, entries[0].Direction)
	require.EqualValues(t, 350000, entries[0].AmountKobo)
	require.Equal(t, "sup-1", entries[0].SupplierID)
	require.Equal(t, r.ID, *entries[0].RefundID)
	require.Equal(t, "po-1", *entries[0].PurchaseOrderID)

	bal, err := u.SupplierBalance(ctx, "sup-1")
	require.NoError(t, err)
	require.EqualValues(t, -350000, bal)
}

func TestApprove_UnpaidAllocationsProduceNoDebit(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	u := New(store, zap.NewNop())

	r, err := u.Request(ctx, CreateInput{
		OrderID: "ord-1", PurchaseOrderID: "po-1", SupplierID: "sup-1", UserID: "user-1",
		Reason: "never shipped",
	})
	require.NoError(t, err)

	// Nothing was ever paid out for this order. Pending and held allocations
	// are simply withheld by the eligibility gate; only paid money comes back.
	store.allocs = []fakeAllocation{
		{PaidAllocation{SupplierID: "sup-1", PurchaseOrderID: "po-1", AmountKobo: 350000}, AllocHeld},
		{PaidAllocation{SupplierID: "sup-2", PurchaseOrderID: "po-2", AmountKobo: 120000}, AllocPending},
	}

	final, entries, err := u.Approve(ctx, r.ID, "admin-1", nil)
	require.NoError(t, err)
	require.Equal(t, StatusRefunded, final.Status)
	require.Empty(t, entries)
	require.Empty(t, store.ledger)
}

func TestDebitForRefund_GroupsBySupplierAndPO(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	u := New(store, zap.NewNop())

	store.allocs = []fakeAllocation{
		{PaidAllocation{SupplierID: "sup-1", PurchaseOrderID: "po-1", AmountKobo: 100000}, AllocPaid},
		{PaidAllocation{SupplierID: "sup-1", PurchaseOrderID: "po-1", AmountKobo: 50000}, AllocPaid},
		{PaidAllocation{SupplierID: "sup-2", PurchaseOrderID: "po-2", AmountKobo: 70000}, AllocPaid},
	}

	entries, err := u.DebitForRefund(ctx, "ord-1", "ref-x")
	require.NoError(t, err)
	require.Len(t, entries, 2, "one entry per (supplier, purchase order) group")

	byPO := map[string]int64{}
	for _, e := range entries {
		byPO[*e.PurchaseOrderID] = e.AmountKobo
	}
	require.EqualValues(t, 150000, byPO["po-1"])
	require.EqualValues(t, 70000, byPO["po-2"])
}

func TestDecide_ReviewPath(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	u := New(store, zap.NewNop())

	r, err := u.Request(ctx, CreateInput{
		OrderID: "ord-1", PurchaseOrderID: "po-1", SupplierID: "sup-1", UserID: "user-1",
		Reason: "wrong item",
	})
	require.NoError(t, err)

	r, err = u.Decide(ctx, r.ID, StatusSupplierReview, "admin-1", nil)
	require.NoError(t, err)
	require.Equal(t, StatusSupplierReview, r.Status)

	r, err = u.Decide(ctx, r.ID, StatusRejected, "admin-1", nil)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, r.Status)

	// Rejected is terminal.
	_, err = u.Decide(ctx, r.ID, StatusEscalated, "admin-1", nil)
	require.ErrorIs(t, err, ErrInvalidTransition)

	// Every hop is on the audit trail.
	require.Len(t, store.events, 2)
}

func TestDecide_ApprovalMustUseApproveFlow(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	u := New(store, zap.NewNop())

	r, err := u.Request(ctx, CreateInput{
		OrderID: "ord-1", PurchaseOrderID: "po-1", SupplierID: "sup-1", UserID: "user-1",
		Reason: "late",
	})
	require.NoError(t, err)

	_, err = u.Decide(ctx, r.ID, StatusApproved, "admin-1", nil)
	require.ErrorIs(t, err, ErrInvalidTransition)
}
