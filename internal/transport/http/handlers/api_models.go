package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse reports liveness information.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// AccountResponse is the external view of an account. Credential and key
// material never appear here.
type AccountResponse struct {
	ID          string    `json:"id"`
	Login       string    `json:"login"`
	Email       string    `json:"email"`
	FirstName   string    `json:"firstName,omitempty"`
	LastName    string    `json:"lastName,omitempty"`
	LangKey     string    `json:"langKey,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Activated   bool      `json:"activated"`
	Authorities []string  `json:"authorities,omitempty"`
	CreatedDate time.Time `json:"createdDate"`
}

func newAccountResponse(account domain.Account) AccountResponse {
	return AccountResponse{
		ID:          account.ID,
		Login:       account.Login,
		Email:       account.Email,
		FirstName:   account.FirstName,
		LastName:    account.LastName,
		LangKey:     account.LangKey,
		ImageURL:    account.ImageURL,
		Activated:   account.Activated,
		Authorities: account.Authorities,
		CreatedDate: account.CreatedAt,
	}
}

// RegistrationRequest defines the account registration payload.
type RegistrationRequest struct {
	Login     string `json:"login" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	LangKey   string `json:"langKey"`
	ImageURL  string `json:"imageUrl"`
}

// ProfileUpdateRequest defines the payload for updating the caller's account.
type ProfileUpdateRequest struct {
	Email     string `json:"email" binding:"required,email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	LangKey   string `json:"langKey"`
	ImageURL  string `json:"imageUrl"`
}

// PasswordChangeRequest carries the current and new password for the
// authenticated change flow.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

// PasswordResetFinishRequest redeems a reset key with the new password.
type PasswordResetFinishRequest struct {
	Key         string `json:"key" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}
