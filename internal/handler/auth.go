package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hermod-app/hermod/internal/model"
	"github.com/hermod-app/hermod/internal/service"
	"github.com/sirupsen/logrus"
)

const (
	logoutMessage   = "Logouts with JWT's are performed client-side"
	registerMessage = "New user stored."
	forgotMessage   = "If the account exists and has an email address, a reset link has been sent."
)

type AuthHandler struct {
	validator *service.CredentialValidator
	tokens    *service.TokenService
	accounts  *service.AccountService
	logger    logrus.FieldLogger
}

func NewAuthHandler(validator *service.CredentialValidator, tokens *service.TokenService, accounts *service.AccountService, logger logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{
		validator: validator,
		tokens:    tokens,
		accounts:  accounts,
		logger:    logger,
	}
}

// Login godoc
// @Summary Login
// @Description Exchanges Basic credentials for a bearer token.
// @Tags auth
// @Produce plain
// @Security BasicAuth
// @Success 200 {string} string "JWT"
// @Failure 401 "Basic challenge, empty body"
// @Failure 500 {object} model.ErrorResponse
// @Router /login [get]
func (h *AuthHandler) Login(c *gin.Context) {
	account, err := h.validator.Validate(c.Request.Context(), c.Request.Header)
	if err != nil {
		writeAuthError(c, h.logger, err)
		return
	}

	token, err := h.tokens.Issue(account.ID)
	if err != nil {
		writeAuthError(c, h.logger, err)
		return
	}

	c.Set(accountKey, account)
	c.String(http.StatusOK, token)
}

// Logout godoc
// @Summary Logout
// @Description Tokens are stateless; clients log out by discarding them.
// @Tags auth
// @Produce plain
// @Failure 400 {string} string
// @Router /logout [get]
func (h *AuthHandler) Logout(c *gin.Context) {
	c.String(http.StatusBadRequest, logoutMessage)
}

// Register godoc
// @Summary Register a new account
// @Tags auth
// @Accept x-www-form-urlencoded
// @Produce plain
// @Param username formData string true "Username"
// @Param password formData string true "Password"
// @Param email formData string false "Email for password resets"
// @Success 200 {string} string
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request"})
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "username and password are required"})
		return
	}

	if _, err := h.accounts.Register(c.Request.Context(), req.Username, req.Password, req.Email); err != nil {
		writeAuthError(c, h.logger, err)
		return
	}
	c.String(http.StatusOK, registerMessage)
}

// WhoAmI godoc
// @Summary Current account
// @Tags auth
// @Produce plain
// @Security BearerAuth
// @Success 200 {string} string "username"
// @Failure 401 {object} model.ErrorResponse
// @Router /whoami [get]
func (h *AuthHandler) WhoAmI(c *gin.Context) {
	account := GetAccount(c)
	if account == nil {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "unauthorized"})
		return
	}
	c.String(http.StatusOK, account.Username)
}

// ChangePassword godoc
// @Summary Change password
// @Tags auth
// @Accept x-www-form-urlencoded
// @Produce json
// @Security BearerAuth
// @Param current_password formData string true "Current password"
// @Param new_password formData string true "New password"
// @Success 200 {object} model.StatusResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /password/change [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	account := GetAccount(c)
	if account == nil {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "unauthorized"})
		return
	}

	var req model.ChangePasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request"})
		return
	}

	err := h.accounts.ChangePassword(c.Request.Context(), account, req.CurrentPassword, req.NewPassword)
	if errors.Is(err, service.ErrInvalidCredentials) {
		c.JSON(http.StatusForbidden, model.ErrorResponse{Error: "current password is incorrect"})
		return
	}
	if err != nil {
		writeAuthError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.StatusResponse{Status: "password_changed"})
}

// ForgotPassword godoc
// @Summary Request a password reset link
// @Description The response is the same whether or not the account exists.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.ForgotPasswordRequest true "Username"
// @Success 200 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /password/forgot [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req model.ForgotPasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request"})
		return
	}
	if req.Username == "" {
		req.Username = c.Query("username")
	}

	if err := h.accounts.ForgotPassword(c.Request.Context(), req.Username); err != nil {
		writeAuthError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Status: "ok", Message: forgotMessage})
}

// ResetPassword godoc
// @Summary Reset a password with a reset link id
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.ResetPasswordRequest true "Reset id and new password"
// @Success 200 {object} model.StatusResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /password/reset [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req model.ResetPasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request"})
		return
	}

	if err := h.accounts.ResetPassword(c.Request.Context(), req.ResetID, req.NewPassword); err != nil {
		writeAuthError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.StatusResponse{Status: "password_reset"})
}
