package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jordanlanch/crmleads/pkg/api/errors"
	apimw "github.com/jordanlanch/crmleads/pkg/api/middleware"
	"github.com/jordanlanch/crmleads/pkg/auth"
	"github.com/jordanlanch/crmleads/pkg/domain"
	"github.com/jordanlanch/crmleads/pkg/logger"
	"github.com/jordanlanch/crmleads/pkg/models"
	"github.com/labstack/echo/v4"
)

// UserFinder looks accounts up by email.
type UserFinder interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// CodeService issues and redeems two-factor codes.
type CodeService interface {
	Send(ctx context.Context, email, name string) error
	Verify(ctx context.Context, email, code string) error
}

// LoginRecorder counts login outcomes.
type LoginRecorder interface {
	RecordLoginAttempt(success bool)
}

// AuthConfig holds token settings.
type AuthConfig struct {
	JWTSecret          string
	JWTExpirationHours int
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	users     UserFinder
	codes     CodeService
	blacklist *auth.TokenBlacklist
	config    AuthConfig
	recorder  LoginRecorder
	logger    logger.Logger
	validator *validator.Validate
}

// NewAuthHandler creates a new auth handler. recorder may be nil.
func NewAuthHandler(users UserFinder, codes CodeService, blacklist *auth.TokenBlacklist, cfg AuthConfig, recorder LoginRecorder, log logger.Logger) *AuthHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &AuthHandler{
		users:     users,
		codes:     codes,
		blacklist: blacklist,
		config:    cfg,
		recorder:  recorder,
		logger:    log,
		validator: validator.New(),
	}
}

func (h *AuthHandler) recordLogin(success bool) {
	if h.recorder != nil {
		h.recorder.RecordLoginAttempt(success)
	}
}

func invalidCredentials(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "invalid_credentials",
		Message: "Invalid email or password",
	})
}

func (h *AuthHandler) issueToken(c echo.Context, u *models.User) error {
	token, err := auth.GenerateJWT(u.ID, u.Email, u.Role, h.config.JWTSecret, h.config.JWTExpirationHours)
	if err != nil {
		return errors.InternalError(c, err)
	}
	return c.JSON(http.StatusOK, models.AuthResponse{Token: token, User: u})
}

// Login godoc
// @Summary Log in with email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Credentials"
// @Success 200 {object} models.AuthResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if domain.IsNotFound(err) {
			h.recordLogin(false)
			return invalidCredentials(c)
		}
		return errors.DatabaseError(c, err)
	}

	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		h.recordLogin(false)
		return invalidCredentials(c)
	}
	if !u.IsActive() {
		h.recordLogin(false)
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "account_inactive",
			Message: "Account is deactivated",
		})
	}

	h.recordLogin(true)
	h.logger.Info("user logged in", "user_id", u.ID)
	return h.issueToken(c, u)
}

// SendTwoFactor godoc
// @Summary Mail a one-time login code
// @Description Always answers 200 so the endpoint cannot be used to probe for accounts
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body models.SendTwoFactorRequest true "Account email"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /api/v1/auth/send-2fa [post]
func (h *AuthHandler) SendTwoFactor(c echo.Context) error {
	var req models.SendTwoFactorRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	sent := models.SuccessResponse{
		Success: true,
		Message: "If the account exists, a verification code has been sent",
	}

	u, err := h.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if domain.IsNotFound(err) {
			return c.JSON(http.StatusOK, sent)
		}
		return errors.DatabaseError(c, err)
	}
	if !u.IsActive() {
		h.logger.Warn("verification code requested for inactive account", "user_id", u.ID)
		return c.JSON(http.StatusOK, sent)
	}

	if err := h.codes.Send(ctx, u.Email, u.FullName()); err != nil {
		return errors.InternalError(c, err)
	}
	return c.JSON(http.StatusOK, sent)
}

// VerifyTwoFactor godoc
// @Summary Redeem a one-time login code
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body models.VerifyTwoFactorRequest true "Email and code"
// @Success 200 {object} models.AuthResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /api/v1/auth/verify-2fa [post]
func (h *AuthHandler) VerifyTwoFactor(c echo.Context) error {
	var req models.VerifyTwoFactorRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.codes.Verify(ctx, req.Email, req.Code); err != nil {
		h.recordLogin(false)
		return errors.FromDomain(c, err)
	}

	u, err := h.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	if !u.IsActive() {
		h.recordLogin(false)
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "account_inactive",
			Message: "Account is deactivated",
		})
	}

	h.recordLogin(true)
	h.logger.Info("user logged in with verification code", "user_id", u.ID)
	return h.issueToken(c, u)
}

// Logout godoc
// @Summary Revoke the current token
// @Tags Authentication
// @Produce json
// @Success 200 {object} models.SuccessResponse
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	token := apimw.Token(c)
	if token == "" {
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "missing_token",
			Message: "No token found in request",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	// The entry only has to outlive the token itself.
	expiration := time.Duration(h.config.JWTExpirationHours) * time.Hour
	if err := h.blacklist.Add(ctx, token, expiration); err != nil {
		return errors.InternalError(c, err)
	}

	h.logger.Info("user logged out", "user_id", apimw.UserID(c))
	return c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: "Successfully logged out",
	})
}
