package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/identity"
	"github.com/ErlanBelekov/account-service/internal/transport/http/middleware"
	"github.com/ErlanBelekov/account-service/internal/usecase"
	"github.com/gin-gonic/gin"
)

// authUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	Signup(ctx context.Context, in usecase.SignupInput) (*domain.User, string, error)
	Login(ctx context.Context, email, password string) (*domain.User, string, error)
	AdminLogin(ctx context.Context, email, password string) (*domain.User, string, error)
	UpdatePassword(ctx context.Context, userID, current, next string) (string, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken, newPassword string) (*domain.User, string, error)
	CurrentUser(ctx context.Context, userID string) (*domain.User, error)
	SetUserActive(ctx context.Context, userID string, active bool) error
}

type AuthHandler struct {
	auth         authUsecaser
	logger       *slog.Logger
	cookieTTL    time.Duration
	secureCookie bool
}

func NewAuthHandler(auth authUsecaser, cookieTTL time.Duration, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		logger:       logger.With("component", "auth_handler"),
		cookieTTL:    cookieTTL,
		secureCookie: secureCookie,
	}
}

type userResponse struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
	Active bool        `json:"active"`
}

// The password hash never leaves the service.
func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
		Active: u.Active,
	}
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// writeSession sends the token in the body and mirrors it into an
// httpOnly cookie whose lifetime matches the token's.
func (h *AuthHandler) writeSession(c *gin.Context, status int, user *domain.User, token string) {
	c.SetCookie(middleware.SessionCookie, token, int(h.cookieTTL.Seconds()), "/", "", h.secureCookie, true)
	c.JSON(status, sessionResponse{Token: token, User: toUserResponse(user)})
}

type signupRequest struct {
	Name            string `json:"name"            binding:"required"`
	Email           string `json:"email"           binding:"required,email"`
	Password        string `json:"password"        binding:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required,eqfield=Password"`
}

// POST /signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, token, err := h.auth.Signup(c.Request.Context(), usecase.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			c.JSON(http.StatusBadRequest, gin.H{"error": errDuplicateEmail})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "signup", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	h.writeSession(c, http.StatusCreated, user, token)
}

type loginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	h.login(c, h.auth.Login)
}

// POST /admin/login — as Login, plus 403 when the user is not an admin.
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	h.login(c, h.auth.AdminLogin)
}

func (h *AuthHandler) login(c *gin.Context, fn func(ctx context.Context, email, password string) (*domain.User, string, error)) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, token, err := fn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": domain.ErrInvalidCredentials.Error()})
		case errors.Is(err, domain.ErrAccountInactive):
			c.JSON(http.StatusUnauthorized, gin.H{"error": domain.ErrAccountInactive.Error()})
		case errors.Is(err, domain.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": domain.ErrForbidden.Error()})
		default:
			h.logger.ErrorContext(c.Request.Context(), "login", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	h.writeSession(c, http.StatusOK, user, token)
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// POST /forgot-password
// Always returns 200 to avoid revealing whether the email exists.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "forgot password", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "If that email is registered, a reset link is on its way"})
}

type resetPasswordRequest struct {
	NewPassword        string `json:"newPassword"        binding:"required,min=8"`
	NewPasswordConfirm string `json:"newPasswordConfirm" binding:"required,eqfield=NewPassword"`
}

// PATCH /reset-password/:token
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, token, err := h.auth.ResetPassword(c.Request.Context(), c.Param("token"), req.NewPassword)
	if err != nil {
		if errors.Is(err, domain.ErrResetTokenInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrResetTokenInvalid.Error()})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "reset password", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	h.writeSession(c, http.StatusOK, user, token)
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword"     binding:"required,min=8"`
	// Optional: browser clients send it, API clients may omit it.
	NewPasswordConfirm string `json:"newPasswordConfirm" binding:"omitempty,eqfield=NewPassword"`
}

// PATCH /update-my-password — authenticated.
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	ident, ok := identity.FromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	var req updatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.auth.UpdatePassword(c.Request.Context(), ident.UserID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Current password is incorrect"})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "update password", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.SetCookie(middleware.SessionCookie, token, int(h.cookieTTL.Seconds()), "/", "", h.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"token": token})
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// PATCH /admin/users/:id/active — admin only.
func (h *AuthHandler) SetUserActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.Param("id")
	if err := h.auth.SetUserActive(c.Request.Context(), userID, *req.Active); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "set user active", "target_user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": userID, "active": *req.Active})
}

// GET /me — authenticated.
func (h *AuthHandler) Me(c *gin.Context) {
	ident, ok := identity.FromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	user, err := h.auth.CurrentUser(c.Request.Context(), ident.UserID)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "load current user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}
