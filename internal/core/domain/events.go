package domain

import "time"

// AccountRegisteredEvent is published when a new pending account is created.
type AccountRegisteredEvent struct {
	EventID      string
	AccountID    string
	Login        string
	Email        string
	LangKey      string
	RegisteredAt time.Time
	Metadata     map[string]any
}

// AccountActivatedEvent is published when an activation key is redeemed.
type AccountActivatedEvent struct {
	EventID     string
	AccountID   string
	Login       string
	ActivatedAt time.Time
	Metadata    map[string]any
}

// PasswordChangedEvent is published after a credential change, whether through
// the authenticated change flow or the reset flow.
type PasswordChangedEvent struct {
	EventID   string
	AccountID string
	Login     string
	ChangedAt time.Time
	Source    string
	Metadata  map[string]any
}

// PasswordResetRequestedEvent is published when a reset key is issued. The raw
// key is never part of the event; only the masked destination is carried.
type PasswordResetRequestedEvent struct {
	EventID           string
	AccountID         string
	Login             string
	RequestedAt       time.Time
	ExpiresAt         time.Time
	MaskedDestination string
	Metadata          map[string]any
}
