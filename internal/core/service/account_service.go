package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/learnhub/user-service/internal/core/domain"
	"github.com/learnhub/user-service/internal/core/ports"
	"github.com/learnhub/user-service/internal/pkg/metrics"
)

// AccountService implements registration, login, profile lookup and profile update.
type AccountService struct {
	repo   ports.AccountRepository
	hasher ports.PasswordHasher
	tokens ports.TokenService
	idem   ports.IdempotencyStore
	log    zerolog.Logger
	now    func() time.Time

	// dummyHash is verified against on unknown-email logins so both failure
	// paths spend one bcrypt round.
	dummyMu   sync.Mutex
	dummyHash string
}

// NewAccountService wires the service. idem may be nil, in which case
// Idempotency-Key replay is disabled.
func NewAccountService(
	repo ports.AccountRepository,
	hasher ports.PasswordHasher,
	tokens ports.TokenService,
	idem ports.IdempotencyStore,
	log zerolog.Logger,
) *AccountService {
	return &AccountService{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
		idem:   idem,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a new account. If an idempotency key is supplied and was
// already used, the account created by that earlier request is returned
// without side effects.
func (s *AccountService) Register(ctx context.Context, in ports.RegisterInput) (*ports.RegisterResult, error) {
	username, err := domain.NormalizeUsername(in.Username)
	if err != nil {
		return nil, err
	}
	email, err := domain.NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckPassword(in.Password); err != nil {
		return nil, err
	}
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}

	if replay, ok := s.replay(ctx, in.IdempotencyKey, email, username); ok {
		return replay, nil
	}

	// The unique indexes are the real guard; this only saves a bcrypt round
	// for the common duplicate case.
	existing, err := s.repo.FindByEmailOrUsername(ctx, email, username)
	switch {
	case err == nil && existing != nil:
		return nil, domain.ErrConflict
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("register: lookup: %w", err)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	now := s.now()
	created, err := s.repo.Create(ctx, &domain.Account{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("register: create: %w", err)
	}

	if in.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.Remember(ctx, in.IdempotencyKey, created.ID); err != nil {
			s.log.Warn().Err(err).Str("account_id", created.ID).Msg("failed to record idempotency key")
		}
	}

	metrics.AccountsRegisteredTotal.WithLabelValues(string(created.Role)).Inc()
	s.log.Info().Str("account_id", created.ID).Str("role", string(created.Role)).Msg("account registered")

	return &ports.RegisterResult{Account: created.Public()}, nil
}

// replay resolves a previously seen idempotency key. The recorded account is
// only returned when its email and username match the request; any other use
// of the key is ignored. Store failures are logged and treated as a miss.
func (s *AccountService) replay(ctx context.Context, key, email, username string) (*ports.RegisterResult, bool) {
	if key == "" || s.idem == nil {
		return nil, false
	}

	accountID, found, err := s.idem.Lookup(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Msg("idempotency lookup failed, registering anyway")
		return nil, false
	}
	if !found {
		return nil, false
	}

	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		s.log.Warn().Err(err).Str("account_id", accountID).Msg("idempotency key points at missing account")
		return nil, false
	}
	if account.Email != email || account.Username != username {
		s.log.Warn().Str("account_id", accountID).Msg("idempotency key reused with a different body, ignoring")
		return nil, false
	}

	metrics.RegistrationsReplayedTotal.Inc()
	s.log.Info().Str("account_id", accountID).Msg("idempotent registration replay")
	return &ports.RegisterResult{Account: account.Public(), Replayed: true}, true
}

// Authenticate checks an email/password pair and issues a session token.
// Unknown email and wrong password produce the same error.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	account, err := s.repo.FindByEmail(ctx, normalizeLoginEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.burnVerify(ctx, password)
			metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
			return nil, domain.ErrUnauthorized
		}
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("authenticate: lookup: %w", err)
	}

	ok, err := s.hasher.Verify(ctx, password, account.PasswordHash)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if !ok {
		metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, domain.ErrUnauthorized
	}

	token, err := s.tokens.Issue(account.ID, account.Role)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("authenticate: issue token: %w", err)
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	return &ports.AuthResult{Token: token, User: account.Public()}, nil
}

// burnVerify runs a verify that cannot succeed, so an unknown email costs
// as much as a wrong password. The reference hash is built on first use with
// the configured hasher and cost.
func (s *AccountService) burnVerify(ctx context.Context, password string) {
	s.dummyMu.Lock()
	if s.dummyHash == "" {
		hash, err := s.hasher.Hash(ctx, "unknown-account-placeholder")
		if err != nil {
			s.dummyMu.Unlock()
			s.log.Warn().Err(err).Msg("could not build reference hash for unknown-email login")
			return
		}
		s.dummyHash = hash
	}
	hash := s.dummyHash
	s.dummyMu.Unlock()

	_, _ = s.hasher.Verify(ctx, password, hash)
}

// GetByID returns the sanitized account.
func (s *AccountService) GetByID(ctx context.Context, id string) (*domain.PublicAccount, error) {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	pub := account.Public()
	return &pub, nil
}

// Update merges the provided fields onto the account and persists it.
// Only username, email and password can change; updatedAt always moves.
func (s *AccountService) Update(ctx context.Context, id string, in ports.UpdateInput) (*domain.PublicAccount, error) {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Username != nil {
		username, err := domain.NormalizeUsername(*in.Username)
		if err != nil {
			return nil, err
		}
		account.Username = username
	}
	if in.Email != nil {
		email, err := domain.NormalizeEmail(*in.Email)
		if err != nil {
			return nil, err
		}
		account.Email = email
	}
	if in.Password != nil {
		if err := domain.CheckPassword(*in.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(ctx, *in.Password)
		if err != nil {
			return nil, fmt.Errorf("update: %w", err)
		}
		account.PasswordHash = hash
	}
	account.UpdatedAt = s.now()

	updated, err := s.repo.Update(ctx, account)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update: %w", err)
	}

	s.log.Info().Str("account_id", updated.ID).Bool("password_changed", in.Password != nil).Msg("account updated")

	pub := updated.Public()
	return &pub, nil
}

// normalizeLoginEmail lowercases without shape validation; a malformed
// address simply finds nothing.
func normalizeLoginEmail(email string) string {
	if normalized, err := domain.NormalizeEmail(email); err == nil {
		return normalized
	}
	return email
}
