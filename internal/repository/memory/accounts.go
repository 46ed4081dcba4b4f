package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
	"github.com/arklim/social-platform-accounts/internal/core/port"
	"github.com/arklim/social-platform-accounts/internal/repository"
)

// AccountRepository is an in-memory implementation of port.AccountRepository.
// It backs development environments without a database and the lifecycle
// tests. A single mutex guards every operation, which gives the same
// atomicity guarantees the PostgreSQL unique indexes and find-and-clear
// updates provide: check-and-insert and find-and-clear are indivisible with
// respect to concurrent callers.
type AccountRepository struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
}

// NewAccountRepository constructs an empty in-memory repository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[string]*domain.Account)}
}

// Create inserts the account unless its login or email collides with an
// existing record. Login is checked before email, matching the registration
// ordering.
func (r *AccountRepository) Create(_ context.Context, account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if strings.EqualFold(existing.Login, account.Login) {
			return repository.ErrDuplicateLogin
		}
	}
	for _, existing := range r.accounts {
		if strings.EqualFold(existing.Email, account.Email) {
			return repository.ErrDuplicateEmail
		}
	}

	stored := cloneAccount(account)
	r.accounts[account.ID] = &stored
	return nil
}

// GetByLogin retrieves an account by case-insensitive login match.
func (r *AccountRepository) GetByLogin(_ context.Context, login string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, account := range r.accounts {
		if strings.EqualFold(account.Login, login) {
			out := cloneAccount(*account)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

// GetByEmail retrieves an account by case-insensitive email match.
func (r *AccountRepository) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, account := range r.accounts {
		if strings.EqualFold(account.Email, email) {
			out := cloneAccount(*account)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ActivateByKey redeems an activation key exactly once.
func (r *AccountRepository) ActivateByKey(_ context.Context, key string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, account := range r.accounts {
		if account.ActivationKey != nil && *account.ActivationKey == key {
			account.Activated = true
			account.ActivationKey = nil
			out := cloneAccount(*account)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

// UpdateProfile overwrites profile fields, rejecting an email held by another
// account.
func (r *AccountRepository) UpdateProfile(_ context.Context, login string, profile domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var target *domain.Account
	for _, account := range r.accounts {
		if strings.EqualFold(account.Login, login) {
			target = account
			break
		}
	}
	if target == nil {
		return repository.ErrNotFound
	}

	for _, account := range r.accounts {
		if account.ID != target.ID && strings.EqualFold(account.Email, profile.Email) {
			return repository.ErrDuplicateEmail
		}
	}

	target.FirstName = profile.FirstName
	target.LastName = profile.LastName
	target.Email = profile.Email
	target.LangKey = profile.LangKey
	target.ImageURL = profile.ImageURL
	return nil
}

// UpdatePassword replaces the credential hash for an account.
func (r *AccountRepository) UpdatePassword(_ context.Context, id string, passwordHash string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.PasswordHash = passwordHash
	return nil
}

// SetResetKey opens or supersedes a reset window for the account.
func (r *AccountRepository) SetResetKey(_ context.Context, id string, key string, requestedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	keyCopy := key
	at := requestedAt
	account.ResetKey = &keyCopy
	account.ResetDate = &at
	return nil
}

// FinishPasswordReset redeems a reset key exactly once, refusing keys issued
// before notBefore.
func (r *AccountRepository) FinishPasswordReset(_ context.Context, key string, passwordHash string, notBefore time.Time) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, account := range r.accounts {
		if account.ResetKey == nil || *account.ResetKey != key {
			continue
		}
		if account.ResetDate == nil || account.ResetDate.Before(notBefore) {
			return nil, repository.ErrNotFound
		}
		account.PasswordHash = passwordHash
		account.ResetKey = nil
		account.ResetDate = nil
		out := cloneAccount(*account)
		return &out, nil
	}
	return nil, repository.ErrNotFound
}

func cloneAccount(account domain.Account) domain.Account {
	out := account
	if account.ActivationKey != nil {
		val := *account.ActivationKey
		out.ActivationKey = &val
	}
	if account.ResetKey != nil {
		val := *account.ResetKey
		out.ResetKey = &val
	}
	if account.ResetDate != nil {
		val := *account.ResetDate
		out.ResetDate = &val
	}
	if account.Authorities != nil {
		out.Authorities = append([]string(nil), account.Authorities...)
	}
	return out
}

var _ port.AccountRepository = (*AccountRepository)(nil)
