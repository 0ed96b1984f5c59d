package models

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse represents an authentication response
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// SendTwoFactorRequest asks for a verification code to be mailed to the caller.
type SendTwoFactorRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyTwoFactorRequest redeems a verification code.
type VerifyTwoFactorRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// AutoAssignRequest represents an automatic assignment request
type AutoAssignRequest struct {
	LeadID string `json:"lead_id" validate:"required"`
}

// ManualAssignRequest represents a manual assignment request
type ManualAssignRequest struct {
	LeadID string `json:"lead_id" validate:"required"`
	UserID string `json:"user_id" validate:"required"`
	Notes  string `json:"notes,omitempty" validate:"max=1000"`
}

// TransferRequest moves an active assignment to another user
type TransferRequest struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
	NewUserID    string `json:"new_user_id" validate:"required"`
	Reason       string `json:"reason,omitempty" validate:"max=1000"`
}

// RejectRequest carries the reason an assignee declines a lead
type RejectRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// AssignmentResult is returned by every assignment operation.
type AssignmentResult struct {
	Assignment *LeadAssignment `json:"assignment"`
	Lead       *Lead           `json:"lead"`
	User       *User           `json:"user"`
	Score      float64         `json:"score,omitempty"`
}

// AssignmentHistoryResponse is a page of assignment records with stats.
type AssignmentHistoryResponse struct {
	Assignments []LeadAssignment `json:"assignments"`
	Pagination  Pagination       `json:"pagination"`
	Stats       *AssignmentStats `json:"stats"`
}

// RuleRequest creates or replaces an assignment rule.
type RuleRequest struct {
	Name        string         `json:"name" yaml:"name" validate:"required,min=2,max=120"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty" validate:"max=1000"`
	IsActive    *bool          `json:"is_active,omitempty" yaml:"is_active,omitempty"`
	Priority    int            `json:"priority" yaml:"priority" validate:"gte=0,lte=1000"`
	Conditions  RuleConditions `json:"conditions" yaml:"conditions"`
	Strategy    StrategySpec   `json:"strategy" yaml:"strategy"`
	Fallback    *Fallback      `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// RuleUpdateRequest patches an assignment rule; nil fields are kept.
type RuleUpdateRequest struct {
	Name        *string         `json:"name,omitempty" validate:"omitempty,min=2,max=120"`
	Description *string         `json:"description,omitempty" validate:"omitempty,max=1000"`
	IsActive    *bool           `json:"is_active,omitempty"`
	Priority    *int            `json:"priority,omitempty" validate:"omitempty,gte=0,lte=1000"`
	Conditions  *RuleConditions `json:"conditions,omitempty"`
	Strategy    *StrategySpec   `json:"strategy,omitempty"`
	Fallback    *Fallback       `json:"fallback,omitempty"`
	// ClearFallback removes the fallback block.
	ClearFallback bool `json:"clear_fallback,omitempty"`
}

// SetActiveRequest toggles a rule.
type SetActiveRequest struct {
	IsActive bool `json:"is_active"`
}

// RuleListResponse is a page of rules with table stats.
type RuleListResponse struct {
	Rules      []AssignmentRule `json:"rules"`
	Pagination Pagination       `json:"pagination"`
	Stats      RuleStats        `json:"stats"`
}

// PermissionsResponse lists what the caller's role can do.
type PermissionsResponse struct {
	Role      string              `json:"role"`
	Resources map[string][]string `json:"resources"`
}
