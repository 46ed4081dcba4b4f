package port

import (
	"context"
	"time"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
)

// AccountRepository exposes persistence behavior for accounts.
//
// Login and email comparisons are case-insensitive throughout. Create must
// reject duplicates atomically with respect to concurrent creations, returning
// repository.ErrDuplicateLogin or repository.ErrDuplicateEmail. ActivateByKey
// and FinishPasswordReset are atomic find-and-clear operations: for a given key
// exactly one concurrent caller succeeds, the rest observe
// repository.ErrNotFound.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByLogin(ctx context.Context, login string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	ActivateByKey(ctx context.Context, key string) (*domain.Account, error)
	UpdateProfile(ctx context.Context, login string, profile domain.Profile) error
	UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error
	SetResetKey(ctx context.Context, id string, key string, requestedAt time.Time) error
	// FinishPasswordReset replaces the password hash for the account holding
	// the given reset key, provided the key was issued at or after notBefore,
	// and clears the key and its timestamp in the same operation.
	FinishPasswordReset(ctx context.Context, key string, passwordHash string, notBefore time.Time) (*domain.Account, error)
}
