package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error with a code and message
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Error codes
const (
	ErrCodeNotFound                 = "NOT_FOUND"
	ErrCodeInactive                 = "INACTIVE"
	ErrCodeNoEligibleCandidate      = "NO_ELIGIBLE_CANDIDATE"
	ErrCodeInvalidRuleConfiguration = "INVALID_RULE_CONFIGURATION"
	ErrCodeValidation               = "VALIDATION_ERROR"
	ErrCodeUnauthorized             = "UNAUTHORIZED"
	ErrCodeForbidden                = "FORBIDDEN"
	ErrCodeConflict                 = "CONFLICT"
	ErrCodeInternal                 = "INTERNAL_ERROR"
)

// ErrConcurrentUpdate is returned by conditional writes that matched no row
// because another writer got there first. Callers may retry from a fresh read.
var ErrConcurrentUpdate = errors.New("concurrent update")

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) error {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewInactiveError reports that an entity exists but may not take part in the operation.
func NewInactiveError(resource string) error {
	return &DomainError{
		Code:    ErrCodeInactive,
		Message: fmt.Sprintf("%s is not active", resource),
	}
}

// NewNoEligibleCandidateError is returned when neither a rule nor the system fallback yields a user.
func NewNoEligibleCandidateError() error {
	return &DomainError{
		Code:    ErrCodeNoEligibleCandidate,
		Message: "no active users available for assignment",
	}
}

// NewInvalidRuleConfigurationError creates a rule validation error
func NewInvalidRuleConfigurationError(msg string) error {
	return &DomainError{
		Code:    ErrCodeInvalidRuleConfiguration,
		Message: msg,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(msg string) error {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: msg,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError() error {
	return &DomainError{
		Code:    ErrCodeUnauthorized,
		Message: "Authentication required",
	}
}

// NewPermissionDeniedError creates a new forbidden error
func NewPermissionDeniedError(msg string) error {
	return &DomainError{
		Code:    ErrCodeForbidden,
		Message: msg,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(msg string) error {
	return &DomainError{
		Code:    ErrCodeConflict,
		Message: msg,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(err error) error {
	return &DomainError{
		Code:    ErrCodeInternal,
		Message: "An internal error occurred",
		Err:     err,
	}
}

func hasCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsInactive checks if the error is an inactive error
func IsInactive(err error) bool { return hasCode(err, ErrCodeInactive) }

// IsNoEligibleCandidate checks if no user could be selected
func IsNoEligibleCandidate(err error) bool { return hasCode(err, ErrCodeNoEligibleCandidate) }

// IsInvalidRuleConfiguration checks if the error is a rule validation error
func IsInvalidRuleConfiguration(err error) bool {
	return hasCode(err, ErrCodeInvalidRuleConfiguration)
}

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsUnauthorized checks if the error is an unauthorized error
func IsUnauthorized(err error) bool { return hasCode(err, ErrCodeUnauthorized) }

// IsPermissionDenied checks if the error is a forbidden error
func IsPermissionDenied(err error) bool { return hasCode(err, ErrCodeForbidden) }

// IsConflict checks if the error is a conflict error
func IsConflict(err error) bool { return hasCode(err, ErrCodeConflict) }

// GetErrorCode extracts the error code from a domain error
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternal
}
