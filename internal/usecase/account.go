package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
	"github.com/arklim/social-platform-accounts/internal/core/port"
	"github.com/arklim/social-platform-accounts/internal/infra/logger"
	"github.com/arklim/social-platform-accounts/internal/infra/security"
	"github.com/arklim/social-platform-accounts/internal/repository"
)

const (
	activationKeyBytes = 20
	resetKeyBytes      = 20

	// defaultResetKeyTTL bounds how long an issued reset key may be redeemed.
	// Activation keys deliberately carry no expiry.
	defaultResetKeyTTL = 24 * time.Hour

	defaultLangKey   = "en"
	defaultAuthority = "ROLE_USER"

	passwordChangeSource = "password_change"
	passwordResetSource  = "password_reset"
)

var (
	// ErrInvalidPassword indicates the candidate password violates the policy
	// or the supplied current password failed verification.
	ErrInvalidPassword = errors.New("password invalid")
	// ErrLoginAlreadyUsed indicates another account already holds the login.
	ErrLoginAlreadyUsed = errors.New("login already used")
	// ErrEmailAlreadyUsed indicates another account already holds the email.
	ErrEmailAlreadyUsed = errors.New("email already used")
	// ErrKeyNotFound indicates an activation or reset key did not resolve to
	// an account, either because it never existed, was already redeemed, or
	// the reset window has closed.
	ErrKeyNotFound = errors.New("key not found")
	// ErrAccountNotFound indicates the requested account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrCurrentAccountMissing signals the record for an authenticated caller
	// is gone. Given correct session handling this is unreachable, so it is
	// surfaced as an internal consistency fault rather than a user error.
	ErrCurrentAccountMissing = errors.New("authenticated account record missing")
)

// AccountService orchestrates registration, activation, profile updates,
// password changes, and the password-reset flow.
type AccountService struct {
	accounts    port.AccountRepository
	hasher      port.PasswordHasher
	mailer      port.MailSender
	events      port.EventPublisher
	validator   *security.PasswordValidator
	logger      *zap.Logger
	now         func() time.Time
	resetKeyTTL time.Duration
}

// RegistrationInput captures the payload required to create a new account.
type RegistrationInput struct {
	Login     string
	Email     string
	FirstName string
	LastName  string
	LangKey   string
	ImageURL  string
	Password  string
}

// NewAccountService constructs an AccountService.
func NewAccountService(accounts port.AccountRepository, hasher port.PasswordHasher, mailer port.MailSender, events port.EventPublisher, validator *security.PasswordValidator, log *zap.Logger) *AccountService {
	if hasher == nil {
		hasher = security.Hasher{}
	}
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &AccountService{
		accounts:    accounts,
		hasher:      hasher,
		mailer:      mailer,
		events:      events,
		validator:   validator,
		logger:      log,
		now:         time.Now,
		resetKeyTTL: defaultResetKeyTTL,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *AccountService) WithClock(clock func() time.Time) *AccountService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// WithResetKeyTTL overrides the reset key validity window.
func (s *AccountService) WithResetKeyTTL(ttl time.Duration) *AccountService {
	if ttl > 0 {
		s.resetKeyTTL = ttl
	}
	return s
}

// Register creates a pending account with a fresh activation key and hands the
// key to the mail pipeline. The uniqueness checks are re-validated by the
// repository's atomic create, so a concurrent duplicate loses with the same
// error the pre-check would have produced. Registration succeeds once the
// record is durably created; mail delivery failure is logged, never surfaced.
func (s *AccountService) Register(ctx context.Context, input RegistrationInput) (domain.Account, error) {
	login := strings.TrimSpace(input.Login)
	email := strings.TrimSpace(input.Email)
	if login == "" {
		return domain.Account{}, fmt.Errorf("login is required")
	}
	if email == "" {
		return domain.Account{}, fmt.Errorf("email is required")
	}

	if err := s.validator.Validate(input.Password); err != nil {
		return domain.Account{}, fmt.Errorf("%w: %v", ErrInvalidPassword, err)
	}

	// Login is checked before email so a request colliding on both reports
	// the login conflict deterministically.
	if _, err := s.accounts.GetByLogin(ctx, login); err == nil {
		return domain.Account{}, ErrLoginAlreadyUsed
	} else if !errors.Is(err, repository.ErrNotFound) {
		return domain.Account{}, fmt.Errorf("lookup login: %w", err)
	}
	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return domain.Account{}, ErrEmailAlreadyUsed
	} else if !errors.Is(err, repository.ErrNotFound) {
		return domain.Account{}, fmt.Errorf("lookup email: %w", err)
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}

	activationKey, err := security.GenerateSecureKey(activationKeyBytes)
	if err != nil {
		return domain.Account{}, fmt.Errorf("generate activation key: %w", err)
	}

	langKey := strings.TrimSpace(input.LangKey)
	if langKey == "" {
		langKey = defaultLangKey
	}

	account := domain.Account{
		ID:            uuid.NewString(),
		Login:         login,
		Email:         email,
		PasswordHash:  passwordHash,
		FirstName:     strings.TrimSpace(input.FirstName),
		LastName:      strings.TrimSpace(input.LastName),
		LangKey:       langKey,
		ImageURL:      strings.TrimSpace(input.ImageURL),
		Activated:     false,
		ActivationKey: &activationKey,
		Authorities:   []string{defaultAuthority},
		CreatedAt:     s.now().UTC(),
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateLogin):
			return domain.Account{}, ErrLoginAlreadyUsed
		case errors.Is(err, repository.ErrDuplicateEmail):
			return domain.Account{}, ErrEmailAlreadyUsed
		}
		return domain.Account{}, fmt.Errorf("create account: %w", err)
	}

	if s.mailer != nil {
		if err := s.mailer.SendActivationEmail(ctx, account.Sanitized(), activationKey); err != nil {
			s.logger.Warn("dispatch activation email failed",
				zap.String("login", account.Login),
				zap.String("email", logger.MaskEmail(account.Email)),
				zap.Error(err),
			)
		}
	}

	s.publishRegisteredEvent(ctx, account)

	return account.Sanitized(), nil
}

// Activate redeems an activation key, transitioning the account from pending
// to active exactly once. A replayed key no longer resolves because the key
// is cleared on success.
func (s *AccountService) Activate(ctx context.Context, key string) (domain.Account, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.Account{}, ErrKeyNotFound
	}

	account, err := s.accounts.ActivateByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Account{}, ErrKeyNotFound
		}
		return domain.Account{}, fmt.Errorf("activate account: %w", err)
	}

	s.publishActivatedEvent(ctx, *account)

	return account.Sanitized(), nil
}

// GetAccount returns the account view for the given login, without credential
// material.
func (s *AccountService) GetAccount(ctx context.Context, login string) (domain.Account, error) {
	account, err := s.accounts.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Account{}, ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("lookup account: %w", err)
	}
	return account.Sanitized(), nil
}

// UpdateProfile overwrites the mutable profile fields of the caller's
// account. The email collision check runs before the existence check,
// mirroring the save-account ordering, and is re-validated atomically by the
// repository write.
func (s *AccountService) UpdateProfile(ctx context.Context, login string, profile domain.Profile) error {
	email := strings.TrimSpace(profile.Email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	profile.Email = email

	existing, err := s.accounts.GetByEmail(ctx, email)
	if err == nil && !strings.EqualFold(existing.Login, login) {
		return ErrEmailAlreadyUsed
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("lookup email: %w", err)
	}

	if err := s.accounts.UpdateProfile(ctx, login, profile); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return ErrEmailAlreadyUsed
		case errors.Is(err, repository.ErrNotFound):
			return ErrCurrentAccountMissing
		}
		return fmt.Errorf("update profile: %w", err)
	}

	return nil
}

// ChangePassword replaces the caller's credential after verifying the current
// one. A policy violation on the new password and a failed verification of
// the current password surface as the same error kind.
func (s *AccountService) ChangePassword(ctx context.Context, login, currentPassword, newPassword string) error {
	if err := s.validator.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPassword, err)
	}

	account, err := s.accounts.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCurrentAccountMissing
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	matches, err := s.hasher.Verify(currentPassword, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify current password: %w", err)
	}
	if !matches {
		return ErrInvalidPassword
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	changedAt := s.now().UTC()
	if err := s.accounts.UpdatePassword(ctx, account.ID, passwordHash, changedAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCurrentAccountMissing
		}
		return fmt.Errorf("update password: %w", err)
	}

	s.publishPasswordChangedEvent(ctx, *account, changedAt, passwordChangeSource)

	return nil
}

// RequestPasswordReset opens a reset window for the active account holding
// the email and mails the key. An unknown or not-yet-activated email reports
// success identically with no key issuance, so callers cannot probe which
// addresses are registered.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("password reset requested for non existing mail",
				zap.String("email", logger.MaskEmail(email)),
			)
			return nil
		}
		return fmt.Errorf("lookup email: %w", err)
	}

	if !account.Activated {
		s.logger.Warn("password reset requested for non activated account",
			zap.String("login", account.Login),
		)
		return nil
	}

	resetKey, err := security.GenerateSecureKey(resetKeyBytes)
	if err != nil {
		return fmt.Errorf("generate reset key: %w", err)
	}

	requestedAt := s.now().UTC()
	if err := s.accounts.SetResetKey(ctx, account.ID, resetKey, requestedAt); err != nil {
		return fmt.Errorf("store reset key: %w", err)
	}

	if s.mailer != nil {
		if err := s.mailer.SendPasswordResetMail(ctx, account.Sanitized(), resetKey); err != nil {
			s.logger.Warn("dispatch password reset email failed",
				zap.String("login", account.Login),
				zap.String("email", logger.MaskEmail(account.Email)),
				zap.Error(err),
			)
		}
	}

	s.publishResetRequestedEvent(ctx, *account, requestedAt, requestedAt.Add(s.resetKeyTTL))

	return nil
}

// CompletePasswordReset redeems a reset key and installs the new credential.
// Keys older than the validity window never match, even when the key string
// itself is correct.
func (s *AccountService) CompletePasswordReset(ctx context.Context, newPassword, key string) error {
	if err := s.validator.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPassword, err)
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return ErrKeyNotFound
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	changedAt := s.now().UTC()
	notBefore := changedAt.Add(-s.resetKeyTTL)

	account, err := s.accounts.FinishPasswordReset(ctx, key, passwordHash, notBefore)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("finish password reset: %w", err)
	}

	s.publishPasswordChangedEvent(ctx, *account, changedAt, passwordResetSource)

	return nil
}

func (s *AccountService) publishRegisteredEvent(ctx context.Context, account domain.Account) {
	if s.events == nil {
		return
	}

	event := domain.AccountRegisteredEvent{
		EventID:      uuid.NewString(),
		AccountID:    account.ID,
		Login:        account.Login,
		Email:        account.Email,
		LangKey:      account.LangKey,
		RegisteredAt: account.CreatedAt,
	}

	if err := s.events.PublishAccountRegistered(ctx, event); err != nil {
		s.logger.Warn("publish account registered failed", zap.String("login", account.Login), zap.Error(err))
	}
}

func (s *AccountService) publishActivatedEvent(ctx context.Context, account domain.Account) {
	if s.events == nil {
		return
	}

	event := domain.AccountActivatedEvent{
		EventID:     uuid.NewString(),
		AccountID:   account.ID,
		Login:       account.Login,
		ActivatedAt: s.now().UTC(),
	}

	if err := s.events.PublishAccountActivated(ctx, event); err != nil {
		s.logger.Warn("publish account activated failed", zap.String("login", account.Login), zap.Error(err))
	}
}

func (s *AccountService) publishPasswordChangedEvent(ctx context.Context, account domain.Account, changedAt time.Time, source string) {
	if s.events == nil {
		return
	}

	event := domain.PasswordChangedEvent{
		EventID:   uuid.NewString(),
		AccountID: account.ID,
		Login:     account.Login,
		ChangedAt: changedAt,
		Source:    source,
	}

	if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
		s.logger.Warn("publish password changed failed", zap.String("login", account.Login), zap.Error(err))
	}
}

func (s *AccountService) publishResetRequestedEvent(ctx context.Context, account domain.Account, requestedAt, expiresAt time.Time) {
	if s.events == nil {
		return
	}

	event := domain.PasswordResetRequestedEvent{
		EventID:           uuid.NewString(),
		AccountID:         account.ID,
		Login:             account.Login,
		RequestedAt:       requestedAt,
		ExpiresAt:         expiresAt,
		MaskedDestination: logger.MaskEmail(account.Email),
	}

	if err := s.events.PublishPasswordResetRequested(ctx, event); err != nil {
		s.logger.Warn("publish password reset requested failed", zap.String("login", account.Login), zap.Error(err))
	}
}
