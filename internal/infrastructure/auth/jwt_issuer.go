package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/learnhub/user-service/internal/core/domain"
	"github.com/learnhub/user-service/internal/core/ports"
)

// sessionClaims is the JWT payload of a session token.
type sessionClaims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTIssuer signs and verifies HS256 session tokens with a process-wide secret.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTIssuer builds an issuer. The secret and ttl are fixed for the
// lifetime of the issuer.
func NewJWTIssuer(secret string, ttl time.Duration) (*JWTIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must be provided")
	}
	if ttl <= 0 {
		return nil, errors.New("jwt ttl must be positive")
	}
	return &JWTIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns the default token lifetime.
func (i *JWTIssuer) TTL() time.Duration { return i.ttl }

// Issue signs a token for accountID and role using the default TTL.
func (i *JWTIssuer) Issue(accountID string, role domain.Role) (string, error) {
	return i.IssueWithTTL(accountID, role, i.ttl)
}

// IssueWithTTL signs a token that expires ttl from now.
func (i *JWTIssuer) IssueWithTTL(accountID string, role domain.Role, ttl time.Duration) (string, error) {
	now := i.now()
	claims := sessionClaims{
		UserID: accountID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verify checks the signature and expiry of token. Expired tokens yield
// domain.ErrTokenExpired; anything else wrong yields domain.ErrTokenInvalid.
func (i *JWTIssuer) Verify(token string) (*ports.TokenClaims, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}

	role := domain.Role(claims.Role)
	if claims.UserID == "" || !role.Valid() {
		return nil, domain.ErrTokenInvalid
	}

	out := &ports.TokenClaims{
		AccountID: claims.UserID,
		Role:      role,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
