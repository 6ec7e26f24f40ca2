package ports

import (
	"context"

	"github.com/learnhub/user-service/internal/core/domain"
)

// RegisterInput is the DTO passed from the transport layer to Register.
type RegisterInput struct {
	Username       string
	Email          string
	Password       string
	Role           string // optional; empty means learner
	IdempotencyKey string // optional
}

// RegisterResult is returned by Register. Replayed is true when the account
// was created by an earlier request carrying the same idempotency key.
type RegisterResult struct {
	Account  domain.PublicAccount
	Replayed bool
}

// AuthResult is the outcome of a successful login.
type AuthResult struct {
	Token string               `json:"token"`
	User  domain.PublicAccount `json:"user"`
}

// UpdateInput lists the fields a profile update may change. Nil means untouched.
type UpdateInput struct {
	Username *string
	Email    *string
	Password *string
}

// AccountService implements the account use cases.
type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (*RegisterResult, error)
	Authenticate(ctx context.Context, email, password string) (*AuthResult, error)
	GetByID(ctx context.Context, id string) (*domain.PublicAccount, error)
	Update(ctx context.Context, id string, in UpdateInput) (*domain.PublicAccount, error)
}
