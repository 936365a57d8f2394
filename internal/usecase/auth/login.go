package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account inactive")
)

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
	RoleSupplier = "supplier"
)

type AccountFinder interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
}

type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
}

type LoginResult struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"` // seconds
	Role        string `json:"role"`
}

type LoginUsecase struct {
	finder    AccountFinder
	jwtSecret []byte
	expMin    int
}

func NewLoginUsecase(finder AccountFinder, jwtSecret string, expiresMinutes int) *LoginUsecase {
	if expiresMinutes <= 0 {
		expiresMinutes = 60
	}
	return &LoginUsecase{
		finder:    finder,
		jwtSecret: []byte(jwtSecret),
		expMin:    expiresMinutes,
	}
}

func (u *LoginUsecase) Execute(ctx context.Context, email, password string) (*LoginResult, error) {
	acct, err := u.finder.FindByEmail(ctx, email)
	if err != nil {
		// Hide whether the email exists
		return nil, ErrInvalidCredentials
	}
	if !acct.IsActive {
		return nil, ErrInactiveAccount
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	exp := now.Add(time.Duration(u.expMin) * time.Minute)

	claims := jwt.MapClaims{
		"sub":   acct.ID,
		"typ":   acct.Role,
		"email": acct.Email,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(u.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken: signed,
		ExpiresIn:   u.expMin * 60,
		Role:        acct.Role,
	}, nil
}
