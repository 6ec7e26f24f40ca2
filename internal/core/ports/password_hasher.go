package ports

import "context"

// PasswordHasher derives and checks salted one-way password hashes.
// Verify returns false with a nil error for a wrong password; an error is
// only returned when hashed is malformed or the primitive fails.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, hashed string) (bool, error)
}
