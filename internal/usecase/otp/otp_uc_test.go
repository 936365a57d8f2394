package otp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/doncapon/yemisshop-sub009/internal/config"
)

// --- Fake store ----------------------------------------------------------

type memStore struct {
	byID map[string]*Request
	last map[string]time.Time
}

func newMemStore() *memStore {
	return &memStore{byID: map[string]*Request{}, last: map[string]time.Time{}}
}

func (m *memStore) key(subject string, p Purpose) string { return subject + "|" + string(p) }

func (m *memStore) Create(_ context.Context, req *Request) error {
	cp := *req
	m.byID[req.ID] = &cp
	m.last[m.key(req.SubjectKey, req.Purpose)] = req.CreatedAt
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*Request, error) {
	r, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) LastIssuedAt(_ context.Context, subject string, p Purpose) (*time.Time, error) {
	t, ok := m.last[m.key(subject, p)]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *memStore) RecordAttempt(_ context.Context, id string, attempts int, lockedUntil *time.Time) error {
	m.byID[id].Attempts = attempts
	m.byID[id].LockedUntil = lockedUntil
	return nil
}

func (m *memStore) MarkVerified(_ context.Context, id string, at time.Time) error {
	m.byID[id].VerifiedAt = &at
	return nil
}

func (m *memStore) MarkConsumed(_ context.Context, id string, at time.Time) error {
	m.byID[id].ConsumedAt = &at
	return nil
}

var _ Store = (*memStore)(nil)

func testCfg() config.OTPConfig {
	return config.OTPConfig{
		ResendCooldown: time.Minute,
		MaxAttempts:    5,
		LockWindow:     30 * time.Minute,
		PayTTL:         5 * time.Minute,
		CancelTTL:      5 * time.Minute,
		DeliveryTTL:    10 * time.Minute,
	}
}

func newTestGate(store *memStore) *Gate {
	g := NewGate(store, testCfg())
	return g
}

// wrongCode returns a code guaranteed to differ from the issued one.
func wrongCode(code string) string {
	if code == "000000" {
		return "000001"
	}
	return "000000"
}

// --- Tests ---------------------------------------------------------------

func TestIssueThenVerify_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	g := newTestGate(store)

	iss, err := g.Issue(ctx, "order:abc", PurposePayOrder)
	require.NoError(t, err)
	require.NotEmpty(t, iss.RequestID)
	require.Len(t, iss.Code, 6)

	res, err := g.Verify(ctx, iss.RequestID, iss.Code)
	require.NoError(t, err)
	require.True(t, res.Verified)

	// Second verify with the same id succeeds idempotently, attempts untouched.
	res2, err := g.Verify(ctx, iss.RequestID, iss.Code)
	require.NoError(t, err)
	require.True(t, res2.Verified)
	require.Equal(t, 0, store.byID[iss.RequestID].Attempts)
}

func TestIssue_PlaintextNeverStored(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	g := newTestGate(store)

	iss, err := g.Issue(ctx, "order:abc", PurposePayOrder)
	require.NoError(t, err)

	req := store.byID[iss.RequestID]
	require.NotEqual(t, []byte(iss.Code), req.CodeHash)
	require.Len(t, req.CodeHash, 32)
	require.Len(t, req.Salt, 16)
}

func TestIssue_ResendCooldown(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	g := newTestGate(store)

	_, err := g.Issue(ctx, "order:abc", PurposePayOrder)
	require.NoError(t, err)

	_, err = g.Issue(ctx, "order:abc", PurposePayOrder)
	require.ErrorIs(t, err, ErrCooldown)

	// A different purpose for the same subject is unaffected.
	_, err = g.Issue(ctx, "order:abc", PurposeCancelOrder)
	require.NoError(t, err)

	// After the cooldown elapses, re-issue succeeds.
	g.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = g.Issue(ctx, "order:abc", PurposePayOrder)
	require.NoError(t, err)
}

func TestVerify_LockoutAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	g := newTestGate(store)

	iss, err := g.Issue(ctx, "order:abc", PurposeDelivery)
	require.NoError(t, err)
	bad := wrongCode(iss.Code)

	for i := 1; i <= 4; i++ {
		res, err := g.Verify(ctx, iss.RequestID, bad)
		require.NoError(t, err)
		require.False(t, res.Verified)
		require.Equal(t, ReasonIncorrect, res.Reason)
		require.Equal(t, 5-i, res.AttemptsLeft)
	}

	// Fifth wrong attempt trips the lock.
	res, err := g.Verify(ctx, iss.RequestID, bad)
	require.NoError(t, err)
	require.False(t, res.Verified)
	require.Equal(t, ReasonLocked, res.Reason)
	require.NotNil(t, res.RetryAt)

	// Sixth attempt with the CORRECT code is still rejected while locked.
	res, err = g.Verify(ctx, iss.RequestID, iss.Code)
	require.NoError(t, err)
	require.False(t, res.Verified)
	require.Equal(t, ReasonLocked, res.Reason)

	// Once the lock window elapses the correct code goes through.
	g.now = func() time.Time { return time.Now().Add(31 * time.Minute) }
	res, err = g.Verify(ctx, iss.RequestID, iss.Code)
	require.NoError(t, err)
	require.False(t, res.Verified) // expired by then (10m TTL)
	require.Equal(t, ReasonExpired, res.Reason)
}

func TestVerify_ExpiredCorrectCodeReportsExpired(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	g := newTestGate(store)

	iss, err := g.Issue(ctx, "order:abc", PurposePayOrder)
	require.NoError(t, err)

	g.now = func() time.Time { return time.Now().Add(6 * time.Minute) }

	res, err := g.Verify(ctx, iss.RequestID, iss.Code)
	require.NoError(t, err)
	require.False(t, res.Verified)
	require.Equal(t, ReasonExpired, res.Reason)

	// An expired request never verifies, even on retry.
	res, err = g.Verify(ctx, iss.RequestID, iss.Code)
	require.NoError(t, err)
	require.False(t, res.Verified)
}

func TestVerify_WrongCodeAfterExpiryReportsIncorrect(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	g := newTestGate(store)

	iss, err := g.Issue(ctx, "order:abc", PurposePayOrder)
	require.NoError(t, err)

	g.now = func() time.Time { return time.Now().Add(6 * time.Minute) }

	// Hash check runs first, so a wrong late code is "incorrect".
	res, err := g.Verify(ctx, iss.RequestID, wrongCode(iss.Code))
	require.NoError(t, err)
	require.Equal(t, ReasonIncorrect, res.Reason)
}

func TestConsume_SingleUse(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	g := newTestGate(store)

	iss, err := g.Issue(ctx, "order:abc", PurposePayOrder)
	require.NoError(t, err)

	// Consuming before verification must fail.
	err = g.Consume(ctx, iss.RequestID, "order:abc", PurposePayOrder)
	require.ErrorIs(t, err, ErrNotVerified)

	_, err = g.Verify(ctx, iss.RequestID, iss.Code)
	require.NoError(t, err)

	// Wrong subject or purpose is rejected.
	err = g.Consume(ctx, iss.RequestID, "order:other", PurposePayOrder)
	require.ErrorIs(t, err, ErrWrongSubject)
	err = g.Consume(ctx, iss.RequestID, "order:abc", PurposeCancelOrder)
	require.ErrorIs(t, err, ErrWrongSubject)

	require.NoError(t, g.Consume(ctx, iss.RequestID, "order:abc", PurposePayOrder))

	err = g.Consume(ctx, iss.RequestID, "order:abc", PurposePayOrder)
	require.ErrorIs(t, err, ErrConsumed)
}
