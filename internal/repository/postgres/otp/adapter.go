package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	otpuc "github.com/doncapon/yemisshop-sub009/internal/usecase/otp"
)

type OtpStoreAdapter struct {
	repo *OtpRepo
}

func NewOtpStoreAdapter(repo *OtpRepo) *OtpStoreAdapter {
	return &OtpStoreAdapter{repo: repo}
}

func (a *OtpStoreAdapter) Create(ctx context.Context, req *otpuc.Request) error {
	return a.repo.Insert(ctx, &OtpRequestRow{
		ID:         req.ID,
		SubjectKey: req.SubjectKey,
		Purpose:    string(req.Purpose),
		Salt:       req.Salt,
		CodeHash:   req.CodeHash,
		ExpiresAt:  req.ExpiresAt,
		CreatedAt:  req.CreatedAt,
	})
}

func (a *OtpStoreAdapter) GetByID(ctx context.Context, id string) (*otpuc.Request, error) {
	row, err := a.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &otpuc.Request{
		ID:          row.ID,
		SubjectKey:  row.SubjectKey,
		Purpose:     otpuc.Purpose(row.Purpose),
		Salt:        row.Salt,
		CodeHash:    row.CodeHash,
		ExpiresAt:   row.ExpiresAt,
		Attempts:    row.Attempts,
		LockedUntil: row.LockedUntil,
		VerifiedAt:  row.VerifiedAt,
		ConsumedAt:  row.ConsumedAt,
		CreatedAt:   row.CreatedAt,
	}, nil
}

func (a *OtpStoreAdapter) LastIssuedAt(ctx context.Context, subjectKey string, purpose otpuc.Purpose) (*time.Time, error) {
	t, err := a.repo.LastIssuedAt(ctx, subjectKey, string(purpose))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func (a *OtpStoreAdapter) RecordAttempt(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error {
	return a.repo.RecordAttempt(ctx, id, attempts, lockedUntil)
}

func (a *OtpStoreAdapter) MarkVerified(ctx context.Context, id string, at time.Time) error {
	return a.repo.MarkVerified(ctx, id, at)
}

func (a *OtpStoreAdapter) MarkConsumed(ctx context.Context, id string, at time.Time) error {
	return a.repo.MarkConsumed(ctx, id, at)
}

// Compile-time check
var _ otpuc.Store = (*OtpStoreAdapter)(nil)
