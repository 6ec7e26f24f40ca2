package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleLearner    Role = "learner"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

const (
	UsernameMinLen = 3
	UsernameMaxLen = 30
	PasswordMinLen = 6
	// bcrypt only reads the first 72 bytes and rejects longer input.
	PasswordMaxBytes = 72
)

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// ParseRole returns the Role for s. An empty string yields RoleLearner.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.TrimSpace(s)); r {
	case "":
		return RoleLearner, nil
	case RoleLearner, RoleInstructor, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: role must be one of learner, instructor, admin", ErrValidation)
	}
}

// Valid reports whether r is a member of the role enumeration.
func (r Role) Valid() bool {
	return r == RoleLearner || r == RoleInstructor || r == RoleAdmin
}

// Account is the persisted user record. It carries the password hash and
// must never be serialized to a caller; use Public for that.
type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicAccount is the sanitized view of an Account returned by every
// service operation.
type PublicAccount struct {
	ID        string    `json:"_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Public strips the password hash.
func (a *Account) Public() PublicAccount {
	return PublicAccount{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// NormalizeUsername trims surrounding whitespace and enforces the length bounds.
func NormalizeUsername(s string) (string, error) {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n < UsernameMinLen || n > UsernameMaxLen {
		return "", fmt.Errorf("%w: username must be between %d and %d characters", ErrValidation, UsernameMinLen, UsernameMaxLen)
	}
	return s, nil
}

// NormalizeEmail trims and lowercases s and checks the basic address shape.
func NormalizeEmail(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !emailPattern.MatchString(s) {
		return "", fmt.Errorf("%w: email must be a valid email", ErrValidation)
	}
	return s, nil
}

// CheckPassword enforces the plaintext length bounds.
func CheckPassword(s string) error {
	if utf8.RuneCountInString(s) < PasswordMinLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, PasswordMinLen)
	}
	if len(s) > PasswordMaxBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, PasswordMaxBytes)
	}
	return nil
}
