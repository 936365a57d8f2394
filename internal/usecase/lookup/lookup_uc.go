// Package lookup throttles third-party company-registry (RC number) lookups.
// The gate is structurally similar to the OTP gate but sits off the money
// path; its counters live in a shared store so multiple instances of the
// service enforce one budget.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doncapon/yemisshop-sub009/internal/config"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrThrottled    = errors.New("rc lookup throttled")
	ErrNotFound     = errors.New("rc number not found")
)

// RateStore tracks lookup counts per key with a window-scoped lifecycle.
// Incr creates the window on first use and must set its TTL atomically with
// the first increment.
type RateStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
	Clear(ctx context.Context, key string) error
}

// Provider is the external registry. Failures and timeouts surface as-is.
type Provider interface {
	LookupRC(ctx context.Context, rcNumber string) (*CompanyProfile, error)
}

type CompanyProfile struct {
	RCNumber    string `json:"rcNumber"`
	CompanyName string `json:"companyName"`
	CompanyType string `json:"companyType,omitempty"`
	Address     string `json:"address,omitempty"`
	Active      bool   `json:"active"`
}

type ThrottleState struct {
	Remaining int       `json:"remaining"`
	RetryAt   time.Time `json:"retryAt"`
}

type Usecase struct {
	rates    RateStore
	provider Provider
	cfg      config.LookupConfig
}

func New(rates RateStore, provider Provider, cfg config.LookupConfig) *Usecase {
	return &Usecase{rates: rates, provider: provider, cfg: cfg}
}

func rateKey(rc string) string { return "rc-lookup:" + rc }

// Lookup checks the budget for the RC number before touching the registry.
// A throttled caller gets the reset time so the client can render guidance.
func (u *Usecase) Lookup(ctx context.Context, rcNumber string) (*CompanyProfile, *ThrottleState, error) {
	rc := strings.TrimSpace(rcNumber)
	if rc == "" {
		return nil, nil, ErrInvalidInput
	}

	count, resetAt, err := u.rates.Incr(ctx, rateKey(rc), u.cfg.Window)
	if err != nil {
		return nil, nil, err
	}
	if count > int64(u.cfg.MaxPerWindow) {
		return nil, &ThrottleState{RetryAt: resetAt},
			fmt.Errorf("%w: retry after %s", ErrThrottled, resetAt.Format(time.RFC3339))
	}

	profile, err := u.provider.LookupRC(ctx, rc)
	if err != nil {
		return nil, nil, err
	}

	remaining := u.cfg.MaxPerWindow - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return profile, &ThrottleState{Remaining: remaining, RetryAt: resetAt}, nil
}

// Reset clears a key's window, for operator remediation.
func (u *Usecase) Reset(ctx context.Context, rcNumber string) error {
	rc := strings.TrimSpace(rcNumber)
	if rc == "" {
		return ErrInvalidInput
	}
	return u.rates.Clear(ctx, rateKey(rc))
}
