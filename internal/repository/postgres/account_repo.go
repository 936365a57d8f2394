package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doncapon/yemisshop-sub009/internal/usecase/auth"
)

type AccountRepo struct {
	db *pgxpool.Pool
}

func NewAccountRepo(db *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id::text, email, password_hash, role, is_active
		FROM users
		WHERE email = $1
	`, email)

	var a auth.Account
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Role, &a.IsActive); err != nil {
		return nil, err
	}
	return &a, nil
}

var _ auth.AccountFinder = (*AccountRepo)(nil)
