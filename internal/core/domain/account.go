package domain

import "time"

// Account mirrors the persisted representation in the accounts table.
//
// ActivationKey is present only while the account is pending; it is cleared
// atomically when the key is redeemed. ResetKey and ResetDate are present only
// while a password reset window is open.
type Account struct {
	ID            string
	Login         string
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	LangKey       string
	ImageURL      string
	Activated     bool
	ActivationKey *string
	ResetKey      *string
	ResetDate     *time.Time
	Authorities   []string
	CreatedAt     time.Time
}

// Profile carries the mutable display fields of an account. Login is immutable
// and therefore not part of the profile.
type Profile struct {
	FirstName string
	LastName  string
	Email     string
	LangKey   string
	ImageURL  string
}

// Sanitized returns a copy of the account without credential or key material,
// suitable for returning to callers.
func (a Account) Sanitized() Account {
	out := a
	out.PasswordHash = ""
	out.ActivationKey = nil
	out.ResetKey = nil
	return out
}
