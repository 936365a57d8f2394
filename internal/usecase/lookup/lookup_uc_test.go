package lookup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/doncapon/yemisshop-sub009/internal/config"
)

type memRates struct {
	counts map[string]int64
	resets map[string]time.Time
}

func newMemRates() *memRates {
	return &memRates{counts: map[string]int64{}, resets: map[string]time.Time{}}
}

func (m *memRates) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	if _, ok := m.counts[key]; !ok {
		m.resets[key] = time.Now().Add(window)
	}
	m.counts[key]++
	return m.counts[key], m.resets[key], nil
}

func (m *memRates) Clear(_ context.Context, key string) error {
	delete(m.counts, key)
	delete(m.resets, key)
	return nil
}

type fakeRegistry struct{ calls int }

func (f *fakeRegistry) LookupRC(_ context.Context, rc string) (*CompanyProfile, error) {
	f.calls++
	return &CompanyProfile{RCNumber: rc, CompanyName: "Acme Ventures Ltd", Active: true}, nil
}

func TestLookup_WithinBudget(t *testing.T) {
	ctx := context.Background()
	reg := &fakeRegistry{}
	u := New(newMemRates(), reg, config.LookupConfig{MaxPerWindow: 3, Window: 24 * time.Hour})

	for i := 0; i < 3; i++ {
		profile, state, err := u.Lookup(ctx, "RC123456")
		require.NoError(t, err)
		require.Equal(t, "Acme Ventures Ltd", profile.CompanyName)
		require.Equal(t, 2-i, state.Remaining)
	}
	require.Equal(t, 3, reg.calls)
}

func TestLookup_ThrottledWithoutRegistryCall(t *testing.T) {
	ctx := context.Background()
	reg := &fakeRegistry{}
	u := New(newMemRates(), reg, config.LookupConfig{MaxPerWindow: 1, Window: time.Hour})

	_, _, err := u.Lookup(ctx, "RC1")
	require.NoError(t, err)

	_, state, err := u.Lookup(ctx, "RC1")
	require.ErrorIs(t, err, ErrThrottled)
	require.NotNil(t, state)
	require.False(t, state.RetryAt.IsZero())
	require.Equal(t, 1, reg.calls, "throttled request must not reach the registry")

	// A different RC number has its own budget.
	_, _, err = u.Lookup(ctx, "RC2")
	require.NoError(t, err)
}

func TestLookup_ResetClearsWindow(t *testing.T) {
	ctx := context.Background()
	reg := &fakeRegistry{}
	u := New(newMemRates(), reg, config.LookupConfig{MaxPerWindow: 1, Window: time.Hour})

	_, _, err := u.Lookup(ctx, "RC1")
	require.NoError(t, err)
	_, _, err = u.Lookup(ctx, "RC1")
	require.ErrorIs(t, err, ErrThrottled)

	require.NoError(t, u.Reset(ctx, "RC1"))
	_, _, err = u.Lookup(ctx, "RC1")
	require.NoError(t, err)
}
