package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
	"github.com/arklim/social-platform-accounts/internal/core/port"
	"github.com/arklim/social-platform-accounts/internal/repository"
)

const (
	loginConstraint = "accounts_login_lower_key"
	emailConstraint = "accounts_email_lower_key"
)

var accountColumns = []string{
	"id",
	"login",
	"email",
	"password_hash",
	"first_name",
	"last_name",
	"lang_key",
	"image_url",
	"activated",
	"activation_key",
	"reset_key",
	"reset_date",
	"authorities",
	"created_at",
}

// AccountRepository implements port.AccountRepository using PostgreSQL.
//
// Login and email uniqueness is enforced by unique indexes on lower(login) and
// lower(email); key redemption uses single-statement find-and-clear updates, so
// concurrent callers contend only inside the database.
type AccountRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewAccountRepository(exec pgExecutor) *AccountRepository {
	return &AccountRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new account row. Duplicate login or email surfaces as
// repository.ErrDuplicateLogin / repository.ErrDuplicateEmail via the unique
// index violation, so exactly one of two concurrent registrations wins.
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) error {
	query := r.builder.Insert("accounts.accounts").
		Columns(accountColumns...).
		Values(
			account.ID,
			account.Login,
			account.Email,
			account.PasswordHash,
			account.FirstName,
			account.LastName,
			account.LangKey,
			account.ImageURL,
			account.Activated,
			account.ActivationKey,
			account.ResetKey,
			account.ResetDate,
			account.Authorities,
			account.CreatedAt,
		)

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return mapUniqueViolation(err, "insert account")
	}

	return nil
}

// GetByLogin retrieves an account by case-insensitive login match.
func (r *AccountRepository) GetByLogin(ctx context.Context, login string) (*domain.Account, error) {
	return r.getOne(ctx, squirrel.Expr("lower(login) = lower(?)", login))
}

// GetByEmail retrieves an account by case-insensitive email match.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.getOne(ctx, squirrel.Expr("lower(email) = lower(?)", email))
}

// ActivateByKey flips the account holding the given activation key to
// activated and clears the key in a single statement. Replays and concurrent
// redemption attempts observe repository.ErrNotFound.
func (r *AccountRepository) ActivateByKey(ctx context.Context, key string) (*domain.Account, error) {
	query := r.builder.Update("accounts.accounts").
		Set("activated", true).
		Set("activation_key", nil).
		Where(squirrel.Eq{"activation_key": key}).
		Suffix("RETURNING " + columnList())

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build activate account sql: %w", err)
	}

	account, err := scanAccount(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("activate account: %w", err)
	}

	return account, nil
}

// UpdateProfile overwrites the mutable profile fields of the account
// identified by login. An email collision with another account surfaces as
// repository.ErrDuplicateEmail from the unique index, keeping the uniqueness
// check atomic with the write.
func (r *AccountRepository) UpdateProfile(ctx context.Context, login string, profile domain.Profile) error {
	query := r.builder.Update("accounts.accounts").
		Set("first_name", profile.FirstName).
		Set("last_name", profile.LastName).
		Set("email", profile.Email).
		Set("lang_key", profile.LangKey).
		Set("image_url", profile.ImageURL).
		Where(squirrel.Expr("lower(login) = lower(?)", login))

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build update profile sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return mapUniqueViolation(err, "update profile")
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdatePassword replaces the credential hash for an account.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error {
	query := r.builder.Update("accounts.accounts").
		Set("password_hash", passwordHash).
		Set("password_changed_at", changedAt).
		Where(squirrel.Eq{"id": id})

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetResetKey opens (or supersedes) a reset window for the account. A newer
// request atomically replaces any outstanding key.
func (r *AccountRepository) SetResetKey(ctx context.Context, id string, key string, requestedAt time.Time) error {
	query := r.builder.Update("accounts.accounts").
		Set("reset_key", key).
		Set("reset_date", requestedAt).
		Where(squirrel.Eq{"id": id})

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build set reset key sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("set reset key: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// FinishPasswordReset replaces the credential hash for the account holding the
// reset key, provided the key was issued at or after notBefore, and clears the
// key and timestamp in the same statement. Expired or unknown keys observe
// repository.ErrNotFound.
func (r *AccountRepository) FinishPasswordReset(ctx context.Context, key string, passwordHash string, notBefore time.Time) (*domain.Account, error) {
	query := r.builder.Update("accounts.accounts").
		Set("password_hash", passwordHash).
		Set("reset_key", nil).
		Set("reset_date", nil).
		Where(squirrel.Eq{"reset_key": key}).
		Where(squirrel.GtOrEq{"reset_date": notBefore}).
		Suffix("RETURNING " + columnList())

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build finish password reset sql: %w", err)
	}

	account, err := scanAccount(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("finish password reset: %w", err)
	}

	return account, nil
}

func (r *AccountRepository) getOne(ctx context.Context, pred any) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From("accounts.accounts").
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	account, err := scanAccount(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	return account, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account       domain.Account
		activationKey sql.NullString
		resetKey      sql.NullString
		resetDate     *time.Time
	)

	if err := row.Scan(
		&account.ID,
		&account.Login,
		&account.Email,
		&account.PasswordHash,
		&account.FirstName,
		&account.LastName,
		&account.LangKey,
		&account.ImageURL,
		&account.Activated,
		&activationKey,
		&resetKey,
		&resetDate,
		&account.Authorities,
		&account.CreatedAt,
	); err != nil {
		return nil, err
	}

	if activationKey.Valid {
		val := activationKey.String
		account.ActivationKey = &val
	}
	if resetKey.Valid {
		val := resetKey.String
		account.ResetKey = &val
	}
	account.ResetDate = resetDate

	return &account, nil
}

func columnList() string {
	out := accountColumns[0]
	for _, col := range accountColumns[1:] {
		out += ", " + col
	}
	return out
}

func mapUniqueViolation(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case loginConstraint:
			return repository.ErrDuplicateLogin
		case emailConstraint:
			return repository.ErrDuplicateEmail
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ port.AccountRepository = (*AccountRepository)(nil)
