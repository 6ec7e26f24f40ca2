// Package auth holds the credential primitives: bcrypt password hashing and
// JWT session tokens.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/learnhub/user-service/internal/core/domain"
)

// DefaultCost matches the work factor the service has always used.
const DefaultCost = 10

// BcryptHasher hashes passwords with bcrypt at a fixed cost. bcrypt embeds a
// fresh random salt in every hash it produces.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher for cost. A cost outside bcrypt's
// accepted range falls back to DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Cost reports the configured work factor.
func (h *BcryptHasher) Cost() int { return h.cost }

// Hash returns a salted bcrypt hash of plaintext.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrHashing, err)
	}
	return string(b), nil
}

// Verify reports whether plaintext matches hashed. A mismatch is not an
// error; a malformed hash is.
func (h *BcryptHasher) Verify(plaintext, hashed string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", domain.ErrHashing, err)
	}
}
