package errors

import (
	"context"
	stderrors "errors"
	"net/http"
	"sync/atomic"

	"github.com/jordanlanch/crmleads/pkg/domain"
	"github.com/jordanlanch/crmleads/pkg/logger"
	"github.com/jordanlanch/crmleads/pkg/models"
	"github.com/labstack/echo/v4"
)

var errLogger atomic.Value

func init() {
	errLogger.Store(logger.Discard())
}

// SetLogger routes the helpers' diagnostics to log.
func SetLogger(log logger.Logger) {
	if log != nil {
		errLogger.Store(log)
	}
}

func logf() logger.Logger {
	return errLogger.Load().(logger.Logger)
}

// ValidationError returns a generic validation error without exposing internal details
func ValidationError(c echo.Context, err error) error {
	logf().Warn("validation error", "path", c.Request().URL.Path, "error", err)

	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "validation_error",
		Message: "Invalid request data. Please check your input and try again.",
	})
}

// DatabaseError returns a generic database error without exposing internal details
func DatabaseError(c echo.Context, err error) error {
	logf().Error("database error", "path", c.Request().URL.Path, "error", err)

	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "database_error",
		Message: "A database error occurred. Please try again later.",
	})
}

// InternalError returns a generic internal server error
func InternalError(c echo.Context, err error) error {
	logf().Error("internal error", "path", c.Request().URL.Path, "error", err)

	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred. Please try again later.",
	})
}

// UnauthorizedError returns a generic unauthorized error
func UnauthorizedError(c echo.Context, reason string) error {
	logf().Debug("unauthorized", "path", c.Request().URL.Path, "reason", reason)

	return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "unauthorized",
		Message: "You are not authorized to access this resource.",
	})
}

// ForbiddenError returns a generic forbidden error
func ForbiddenError(c echo.Context, reason string) error {
	logf().Debug("forbidden", "path", c.Request().URL.Path, "reason", reason)

	return c.JSON(http.StatusForbidden, models.ErrorResponse{
		Error:   "forbidden",
		Message: "You do not have permission to access this resource.",
	})
}

// NotFoundError returns a generic not found error
func NotFoundError(c echo.Context, resource string) error {
	return c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error:   "not_found",
		Message: "The requested resource was not found.",
	})
}

// ConflictError returns a generic conflict error
func ConflictError(c echo.Context, message string) error {
	return c.JSON(http.StatusConflict, models.ErrorResponse{
		Error:   "conflict",
		Message: message, // Message is safe to expose (e.g., "Rule name already exists")
	})
}

// FromDomain writes the response for an error returned by a service.
// Domain error messages are built by this codebase and are safe to expose;
// anything else is reported as an internal error.
func FromDomain(c echo.Context, err error) error {
	var de *domain.DomainError
	if !stderrors.As(err, &de) {
		if stderrors.Is(err, domain.ErrConcurrentUpdate) {
			return ConflictError(c, "The record was changed by another request. Please retry.")
		}
		if stderrors.Is(err, context.DeadlineExceeded) {
			logf().Warn("request timed out", "path", c.Request().URL.Path, "error", err)
			return c.JSON(http.StatusGatewayTimeout, models.ErrorResponse{
				Error:   "timeout",
				Message: "The request took too long. Please try again.",
			})
		}
		return InternalError(c, err)
	}

	switch de.Code {
	case domain.ErrCodeNotFound:
		return c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not_found", Message: de.Message})
	case domain.ErrCodeInactive:
		return c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Error: "inactive", Message: de.Message})
	case domain.ErrCodeNoEligibleCandidate:
		return c.JSON(http.StatusConflict, models.ErrorResponse{Error: "no_eligible_candidate", Message: de.Message})
	case domain.ErrCodeInvalidRuleConfiguration:
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid_rule_configuration", Message: de.Message})
	case domain.ErrCodeValidation:
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "validation_error", Message: de.Message})
	case domain.ErrCodeConflict:
		return ConflictError(c, de.Message)
	case domain.ErrCodeForbidden:
		return ForbiddenError(c, de.Message)
	case domain.ErrCodeUnauthorized:
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized", Message: de.Message})
	}
	return InternalError(c, err)
}
