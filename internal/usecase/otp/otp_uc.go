package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/doncapon/yemisshop-sub009/internal/config"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("otp request not found")
	ErrCooldown     = errors.New("otp resend cooldown active")
	ErrNotVerified  = errors.New("otp not verified")
	ErrConsumed     = errors.New("otp already consumed")
	ErrWrongSubject = errors.New("otp subject mismatch")
)

type Purpose string

const (
	PurposePayOrder    Purpose = "PAY_ORDER"
	PurposeCancelOrder Purpose = "CANCEL_ORDER"
	PurposeDelivery    Purpose = "DELIVERY"
)

const codeDigits = 1000000 // codes are 6 digits, zero-padded

// Request is one passcode challenge. Only the salted hash of the code is ever
// stored; the plaintext code exists only in the IssueResult handed to the
// notification path.
type Request struct {
	ID          string
	SubjectKey  string
	Purpose     Purpose
	Salt        []byte
	CodeHash    []byte
	ExpiresAt   time.Time
	Attempts    int
	LockedUntil *time.Time
	VerifiedAt  *time.Time
	ConsumedAt  *time.Time
	CreatedAt   time.Time
}

type Store interface {
	Create(ctx context.Context, req *Request) error
	GetByID(ctx context.Context, id string) (*Request, error)
	// LastIssuedAt returns the creation time of the most recent request for
	// the subject+purpose pair, or nil when none exists.
	LastIssuedAt(ctx context.Context, subjectKey string, purpose Purpose) (*time.Time, error)
	RecordAttempt(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error
	MarkVerified(ctx context.Context, id string, at time.Time) error
	MarkConsumed(ctx context.Context, id string, at time.Time) error
}

type IssueResult struct {
	RequestID string    `json:"requestId"`
	ExpiresAt time.Time `json:"expiresAt"`
	// Code never leaves the process except through the notification channel.
	Code string `json:"-"`
}

type VerifyResult struct {
	Verified     bool       `json:"verified"`
	Reason       string     `json:"reason,omitempty"`
	AttemptsLeft int        `json:"attemptsLeft,omitempty"`
	RetryAt      *time.Time `json:"retryAt,omitempty"`
}

const (
	ReasonIncorrect = "incorrect"
	ReasonExpired   = "expired"
	ReasonLocked    = "locked"
)

// Gate is the one-time-passcode state machine shared by the pay, cancel and
// delivery confirmation flows.
type Gate struct {
	store Store
	cfg   config.OTPConfig
	now   func() time.Time
}

func NewGate(store Store, cfg config.OTPConfig) *Gate {
	return &Gate{store: store, cfg: cfg, now: time.Now}
}

func (g *Gate) ttl(p Purpose) time.Duration {
	switch p {
	case PurposeDelivery:
		return g.cfg.DeliveryTTL
	case PurposeCancelOrder:
		return g.cfg.CancelTTL
	default:
		return g.cfg.PayTTL
	}
}

// Issue creates a fresh challenge for subjectKey+purpose. A re-issue inside
// the resend cooldown is rejected to blunt notification abuse.
func (g *Gate) Issue(ctx context.Context, subjectKey string, purpose Purpose) (*IssueResult, error) {
	if subjectKey == "" {
		return nil, ErrInvalidInput
	}
	switch purpose {
	case PurposePayOrder, PurposeCancelOrder, PurposeDelivery:
	default:
		return nil, ErrInvalidInput
	}

	last, err := g.store.LastIssuedAt(ctx, subjectKey, purpose)
	if err != nil {
		return nil, err
	}
	now := g.now()
	if last != nil && now.Sub(*last) < g.cfg.ResendCooldown {
		return nil, fmt.Errorf("%w: retry after %s", ErrCooldown, last.Add(g.cfg.ResendCooldown).Format(time.RFC3339))
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	req := &Request{
		ID:         uuid.NewString(),
		SubjectKey: subjectKey,
		Purpose:    purpose,
		Salt:       salt,
		CodeHash:   hashCode(salt, code),
		ExpiresAt:  now.Add(g.ttl(purpose)),
		CreatedAt:  now,
	}
	if err := g.store.Create(ctx, req); err != nil {
		return nil, err
	}

	return &IssueResult{RequestID: req.ID, ExpiresAt: req.ExpiresAt, Code: code}, nil
}

// Verify checks a submitted code. The hash comparison runs before the expiry
// check on purpose: a correct-but-late code reports "expired", not
// "incorrect". A request already verified returns success idempotently.
func (g *Gate) Verify(ctx context.Context, requestID, code string) (*VerifyResult, error) {
	if requestID == "" || code == "" {
		return nil, ErrInvalidInput
	}

	req, err := g.store.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrNotFound
	}

	if req.VerifiedAt != nil {
		return &VerifyResult{Verified: true}, nil
	}

	now := g.now()
	if req.LockedUntil != nil && now.Before(*req.LockedUntil) {
		retry := *req.LockedUntil
		return &VerifyResult{Reason: ReasonLocked, RetryAt: &retry}, nil
	}

	if !matches(req, code) {
		attempts := req.Attempts + 1
		var lockedUntil *time.Time
		if attempts >= g.cfg.MaxAttempts {
			t := now.Add(g.cfg.LockWindow)
			lockedUntil = &t
		}
		if err := g.store.RecordAttempt(ctx, req.ID, attempts, lockedUntil); err != nil {
			return nil, err
		}
		if lockedUntil != nil {
			retry := *lockedUntil
			return &VerifyResult{Reason: ReasonLocked, RetryAt: &retry}, nil
		}
		return &VerifyResult{Reason: ReasonIncorrect, AttemptsLeft: g.cfg.MaxAttempts - attempts}, nil
	}

	if now.After(req.ExpiresAt) {
		return &VerifyResult{Reason: ReasonExpired}, nil
	}

	if err := g.store.MarkVerified(ctx, req.ID, now); err != nil {
		return nil, err
	}
	return &VerifyResult{Verified: true}, nil
}

// Consume spends a verified request on behalf of a privileged action. The
// request id doubles as the opaque token the client presents after a
// successful Verify; consuming enforces single use.
func (g *Gate) Consume(ctx context.Context, requestID, subjectKey string, purpose Purpose) error {
	if requestID == "" {
		return ErrInvalidInput
	}

	req, err := g.store.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return ErrNotFound
	}
	if req.SubjectKey != subjectKey || req.Purpose != purpose {
		return ErrWrongSubject
	}
	if req.VerifiedAt == nil {
		return ErrNotVerified
	}
	if req.ConsumedAt != nil {
		return ErrConsumed
	}
	return g.store.MarkConsumed(ctx, req.ID, g.now())
}

// IsVerified reports whether a verified, unexpired-at-verification challenge
// exists for the subject. Used by the payout eligibility gate.
func (g *Gate) IsVerified(ctx context.Context, requestID string) (bool, error) {
	req, err := g.store.GetByID(ctx, requestID)
	if err != nil {
		return false, err
	}
	return req != nil && req.VerifiedAt != nil, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeDigits))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func hashCode(salt []byte, code string) []byte {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(code))
	return h.Sum(nil)
}

func matches(req *Request, code string) bool {
	return subtle.ConstantTimeCompare(req.CodeHash, hashCode(req.Salt, code)) == 1
}
