package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
	"github.com/arklim/social-platform-accounts/internal/transport/http/middleware"
	"github.com/arklim/social-platform-accounts/internal/usecase"
)

// maxResetRequestBody bounds the plain text email body of reset-password/init.
const maxResetRequestBody = 1 << 10

// AccountHandler exposes the account lifecycle endpoints.
type AccountHandler struct {
	accounts *usecase.AccountService
}

// NewAccountHandler builds an account handler instance.
func NewAccountHandler(accounts *usecase.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// Register creates a new pending account.
func (h *AccountHandler) Register(c *gin.Context) {
	var req RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	account, err := h.accounts.Register(c.Request.Context(), usecase.RegistrationInput{
		Login:     req.Login,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		LangKey:   req.LangKey,
		ImageURL:  req.ImageURL,
	})
	if err != nil {
		respondWithMappedError(c, err, []errorCase{
			{Err: usecase.ErrInvalidPassword, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
			{Err: usecase.ErrLoginAlreadyUsed, Status: http.StatusConflict, Message: "login already in use"},
			{Err: usecase.ErrEmailAlreadyUsed, Status: http.StatusConflict, Message: "email already in use"},
		}, http.StatusInternalServerError, "failed to register account")
		return
	}

	c.JSON(http.StatusCreated, newAccountResponse(account))
}

// Activate redeems an activation key supplied as a query parameter.
func (h *AccountHandler) Activate(c *gin.Context) {
	key := c.Query("key")

	account, err := h.accounts.Activate(c.Request.Context(), key)
	if err != nil {
		respondWithMappedError(c, err, []errorCase{
			{Err: usecase.ErrKeyNotFound, Status: http.StatusNotFound, Message: "no account was found for this activation key"},
		}, http.StatusInternalServerError, "failed to activate account")
		return
	}

	c.JSON(http.StatusOK, newAccountResponse(account))
}

// Authenticate echoes the authenticated caller's login. Anonymous callers
// get an empty body.
func (h *AccountHandler) Authenticate(c *gin.Context) {
	login, _ := middleware.GetAuthenticatedLogin(c)
	c.String(http.StatusOK, login)
}

// GetAccount returns the caller's account view.
func (h *AccountHandler) GetAccount(c *gin.Context) {
	login, ok := middleware.GetAuthenticatedLogin(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	account, err := h.accounts.GetAccount(c.Request.Context(), login)
	if err != nil {
		respondWithMappedError(c, err, []errorCase{
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "failed to load account")
		return
	}

	c.JSON(http.StatusOK, newAccountResponse(account))
}

// SaveAccount updates the caller's profile fields.
func (h *AccountHandler) SaveAccount(c *gin.Context) {
	login, ok := middleware.GetAuthenticatedLogin(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid account payload"))
		return
	}

	err := h.accounts.UpdateProfile(c.Request.Context(), login, domain.Profile{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		LangKey:   req.LangKey,
		ImageURL:  req.ImageURL,
	})
	if err != nil {
		respondWithMappedError(c, err, []errorCase{
			{Err: usecase.ErrEmailAlreadyUsed, Status: http.StatusConflict, Message: "email already in use"},
			{Err: usecase.ErrCurrentAccountMissing, Status: http.StatusInternalServerError, Message: "current account could not be found"},
		}, http.StatusInternalServerError, "failed to update account")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "account updated"})
}

// ChangePassword replaces the caller's password after verifying the current one.
func (h *AccountHandler) ChangePassword(c *gin.Context) {
	login, ok := middleware.GetAuthenticatedLogin(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid password payload"))
		return
	}

	err := h.accounts.ChangePassword(c.Request.Context(), login, req.CurrentPassword, req.NewPassword)
	if err != nil {
		respondWithMappedError(c, err, []errorCase{
			{Err: usecase.ErrInvalidPassword, Status: http.StatusBadRequest, Message: "password could not be changed"},
			{Err: usecase.ErrCurrentAccountMissing, Status: http.StatusInternalServerError, Message: "current account could not be found"},
		}, http.StatusInternalServerError, "failed to change password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password changed"})
}

// RequestPasswordReset opens a reset window for the submitted email. The body
// is the plain text email address. The response never reveals whether the
// email is registered.
func (h *AccountHandler) RequestPasswordReset(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxResetRequestBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request body"))
		return
	}

	email := strings.TrimSpace(string(body))
	if email == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email is required"))
		return
	}

	if err := h.accounts.RequestPasswordReset(c.Request.Context(), email); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to process reset request"))
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "reset request registered"})
}

// FinishPasswordReset redeems a reset key with the new password.
func (h *AccountHandler) FinishPasswordReset(c *gin.Context) {
	var req PasswordResetFinishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid reset payload"))
		return
	}

	err := h.accounts.CompletePasswordReset(c.Request.Context(), req.NewPassword, req.Key)
	if err != nil {
		respondWithMappedError(c, err, []errorCase{
			{Err: usecase.ErrInvalidPassword, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
			{Err: usecase.ErrKeyNotFound, Status: http.StatusNotFound, Message: "no account was found for this reset key"},
		}, http.StatusInternalServerError, "failed to finish password reset")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password reset"})
}
