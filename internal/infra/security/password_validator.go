package security

import (
	"fmt"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

const (
	// DefaultPasswordMinLength and DefaultPasswordMaxLength bound acceptable
	// password lengths. Candidates outside the inclusive range are rejected;
	// there are no character-class requirements.
	DefaultPasswordMinLength = 4
	DefaultPasswordMaxLength = 100
)

// PasswordValidationError represents a single password policy violation.
type PasswordValidationError struct {
	Code    string
	Message string
}

// Error implements error for PasswordValidationError.
func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordRule validates a password according to a specific policy rule.
type PasswordRule interface {
	Validate(password string) error
}

// PasswordRuleFunc adapts a function to be used as a PasswordRule.
type PasswordRuleFunc func(password string) error

// Validate executes the underlying rule function.
func (f PasswordRuleFunc) Validate(password string) error {
	return f(password)
}

// PasswordValidator applies a sequence of password rules.
type PasswordValidator struct {
	rules []PasswordRule
}

// NewPasswordValidator constructs a validator with the provided rules.
func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordValidator{rules: copied}
}

// Validate executes all rules and returns the first encountered violation.
func (v *PasswordValidator) Validate(password string) error {
	if v == nil {
		return fmt.Errorf("password validator not configured")
	}
	for _, rule := range v.rules {
		if err := rule.Validate(password); err != nil {
			return err
		}
	}
	return nil
}

// DefaultPasswordValidator returns the built-in validator enforcing the
// service password policy: a non-empty candidate whose length falls within
// the default inclusive range.
func DefaultPasswordValidator() *PasswordValidator {
	return NewPasswordValidator(
		LengthRangeRule(DefaultPasswordMinLength, DefaultPasswordMaxLength),
	)
}

// LengthRangeRule rejects empty candidates and candidates whose rune length
// falls outside the inclusive [min, max] range. A candidate is never
// truncated or coerced; it either passes or is rejected.
func LengthRangeRule(min, max int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		length := len([]rune(password))
		if length == 0 {
			return &PasswordValidationError{
				Code:    "empty",
				Message: "password must not be empty",
			}
		}
		if length < min {
			return &PasswordValidationError{
				Code:    "min_length",
				Message: fmt.Sprintf("password must be at least %d characters long", min),
			}
		}
		if length > max {
			return &PasswordValidationError{
				Code:    "max_length",
				Message: fmt.Sprintf("password must be at most %d characters long", max),
			}
		}
		return nil
	})
}

// RequirePasswordStrengthRule enforces a minimum zxcvbn score to reject weak
// passwords. Disabled when minScore is zero or negative; deployments opt in
// through configuration.
func RequirePasswordStrengthRule(minScore int, userInputs ...string) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if minScore <= 0 {
			return nil
		}
		if minScore > 4 {
			minScore = 4
		}

		result := zxcvbn.PasswordStrength(password, userInputs)
		if result.Score >= minScore {
			return nil
		}

		return &PasswordValidationError{
			Code:    "weak_password",
			Message: "password is too weak; choose a more complex value",
		}
	})
}
