package ports

import (
	"context"

	"github.com/learnhub/user-service/internal/core/domain"
)

// AccountRepository persists accounts. Implementations must enforce username
// and email uniqueness atomically and report violations as domain.ErrConflict.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	// FindByEmailOrUsername returns the first account matching either field.
	FindByEmailOrUsername(ctx context.Context, email, username string) (*domain.Account, error)
	// Update overwrites the mutable fields (username, email, password hash,
	// updatedAt) of the account with the same ID.
	Update(ctx context.Context, account *domain.Account) (*domain.Account, error)
}

// IdempotencyStore remembers which account a registration idempotency key produced.
type IdempotencyStore interface {
	Lookup(ctx context.Context, key string) (accountID string, found bool, err error)
	Remember(ctx context.Context, key, accountID string) error
}
