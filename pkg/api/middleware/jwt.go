package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jordanlanch/crmleads/pkg/auth"
	"github.com/jordanlanch/crmleads/pkg/models"
	"github.com/jordanlanch/crmleads/pkg/rbac"
	"github.com/labstack/echo/v4"
)

// Context keys set by the auth middlewares.
const (
	KeyToken       = "token"
	KeyUserID      = "user_id"
	KeyUserEmail   = "user_email"
	KeyUserRole    = "user_role"
	KeyConditional = "rbac_conditional"
)

// UserGetter loads the account behind a token.
type UserGetter interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// JWTMiddleware creates a JWT authentication middleware without revocation or account checks.
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	return JWTMiddlewareWithBlacklist(secret, nil, nil)
}

// JWTMiddlewareWithBlacklist creates a JWT authentication middleware with blacklist support.
// When users is set, the account must still exist and be active, and its
// stored role replaces the role in the token.
func JWTMiddlewareWithBlacklist(secret string, blacklist *auth.TokenBlacklist, users UserGetter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   "missing_token",
					Message: "Authorization header is required",
				})
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   "invalid_token_format",
					Message: "Authorization header must be 'Bearer {token}'",
				})
			}
			token := parts[1]

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			claims, err := auth.ValidateJWTWithBlacklist(ctx, token, secret, blacklist)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   "invalid_token",
					Message: err.Error(),
				})
			}

			role := claims.Role
			if users != nil {
				user, err := users.GetUser(ctx, claims.UserID)
				if err != nil {
					return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
						Error:   "user_not_found",
						Message: "User account not found",
					})
				}
				if !user.IsActive() {
					return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
						Error:   "account_inactive",
						Message: "This account has been deactivated",
					})
				}
				role = user.Role
			}

			// Kept for logout.
			c.Set(KeyToken, token)

			c.Set(KeyUserID, claims.UserID)
			c.Set(KeyUserEmail, claims.Email)
			c.Set(KeyUserRole, role)

			return next(c)
		}
	}
}

// UserID returns the authenticated user's id, or "".
func UserID(c echo.Context) string {
	id, _ := c.Get(KeyUserID).(string)
	return id
}

// UserRole returns the authenticated user's role, or "".
func UserRole(c echo.Context) rbac.Role {
	role, _ := c.Get(KeyUserRole).(rbac.Role)
	return role
}

// Token returns the bearer token of the request, or "".
func Token(c echo.Context) string {
	token, _ := c.Get(KeyToken).(string)
	return token
}
