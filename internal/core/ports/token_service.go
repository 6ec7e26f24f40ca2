package ports

import (
	"time"

	"github.com/learnhub/user-service/internal/core/domain"
)

// TokenClaims is the identity asserted by a verified session token.
type TokenClaims struct {
	AccountID string
	Role      domain.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService issues and verifies session tokens.
type TokenService interface {
	Issue(accountID string, role domain.Role) (string, error)
	Verify(token string) (*TokenClaims, error)
}
