package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type OtpRequestRow struct {
	ID          string
	SubjectKey  string
	Purpose     string
	Salt        []byte
	CodeHash    []byte
	ExpiresAt   time.Time
	Attempts    int
	LockedUntil *time.Time
	VerifiedAt  *time.Time
	ConsumedAt  *time.Time
	CreatedAt   time.Time
}

type OtpRepo struct {
	db *pgxpool.Pool
}

func NewOtpRepo(db *pgxpool.Pool) *OtpRepo {
	return &OtpRepo{db: db}
}

func (r *OtpRepo) Insert(ctx context.Context, row *OtpRequestRow) error {
	const q = `
INSERT INTO otp_requests (id, subject_key, purpose, salt, code_hash, expires_at, created_at)
VALUES ($1::uuid, $2, $3, $4, $5, $6, $7);
`
	_, err := r.db.Exec(ctx, q, row.ID, row.SubjectKey, row.Purpose, row.Salt, row.CodeHash, row.ExpiresAt, row.CreatedAt)
	return err
}

func (r *OtpRepo) GetByID(ctx context.Context, id string) (*OtpRequestRow, error) {
	const q = `
SELECT id::text, subject_key, purpose, salt, code_hash, expires_at,
       attempts, locked_until, verified_at, consumed_at, created_at
FROM otp_requests
WHERE id = $1::uuid;
`
	var out OtpRequestRow
	err := r.db.QueryRow(ctx, q, id).Scan(
		&out.ID, &out.SubjectKey, &out.Purpose, &out.Salt, &out.CodeHash, &out.ExpiresAt,
		&out.Attempts, &out.LockedUntil, &out.VerifiedAt, &out.ConsumedAt, &out.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *OtpRepo) LastIssuedAt(ctx context.Context, subjectKey, purpose string) (*time.Time, error) {
	const q = `
SELECT created_at
FROM otp_requests
WHERE subject_key = $1 AND purpose = $2
ORDER BY created_at DESC
LIMIT 1;
`
	var t time.Time
	if err := r.db.QueryRow(ctx, q, subjectKey, purpose).Scan(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *OtpRepo) RecordAttempt(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error {
	const q = `
UPDATE otp_requests
SET attempts = $2,
    locked_until = $3
WHERE id = $1::uuid
  AND consumed_at IS NULL;
`
	_, err := r.db.Exec(ctx, q, id, attempts, lockedUntil)
	return err
}

func (r *OtpRepo) MarkVerified(ctx context.Context, id string, at time.Time) error {
	const q = `
UPDATE otp_requests
SET verified_at = $2
WHERE id = $1::uuid
  AND verified_at IS NULL
  AND consumed_at IS NULL;
`
	_, err := r.db.Exec(ctx, q, id, at)
	return err
}

func (r *OtpRepo) MarkConsumed(ctx context.Context, id string, at time.Time) error {
	const q = `
UPDATE otp_requests
SET consumed_at = $2
WHERE id = $1::uuid
  AND consumed_at IS NULL;
`
	_, err := r.db.Exec(ctx, q, id, at)
	return err
}
