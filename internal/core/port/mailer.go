package port

import (
	"context"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
)

// MailSender hands activation and reset keys to the outbound mail pipeline.
//
// Delivery is fire-and-forget from the caller's perspective: implementations
// enqueue and return immediately, and a delivery failure must never roll back
// the account mutation that triggered it.
type MailSender interface {
	SendActivationEmail(ctx context.Context, account domain.Account, key string) error
	SendPasswordResetMail(ctx context.Context, account domain.Account, key string) error
}
