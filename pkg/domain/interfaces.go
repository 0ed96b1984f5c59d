package domain

import (
	"context"
	"time"

	"github.com/jordanlanch/crmleads/pkg/models"
)

// LeadRepository defines data access operations for leads
type LeadRepository interface {
	GetLead(ctx context.Context, id string) (*models.Lead, error)
	CreateLead(ctx context.Context, lead *models.Lead) error
}

// UserRepository defines data access operations for users
type UserRepository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	// ListCandidateUsers returns active users whose role can receive leads.
	ListCandidateUsers(ctx context.Context) ([]models.User, error)
}

// RuleRepository defines data access operations for assignment rules
type RuleRepository interface {
	GetRule(ctx context.Context, id string) (*models.AssignmentRule, error)
	GetRuleByName(ctx context.Context, name string) (*models.AssignmentRule, error)
	// ListActiveRules returns active rules by priority desc, then creation time, then id.
	ListActiveRules(ctx context.Context) ([]models.AssignmentRule, error)
	ListRules(ctx context.Context, filter models.RuleFilter) ([]models.AssignmentRule, int, error)
	RuleStats(ctx context.Context) (*models.RuleStats, error)
	CreateRule(ctx context.Context, rule *models.AssignmentRule) error
	UpdateRule(ctx context.Context, rule *models.AssignmentRule) error
	DeleteRule(ctx context.Context, id string) error
}

// AssignmentRepository defines reads of assignment records plus the
// transactional unit used to write them.
type AssignmentRepository interface {
	GetAssignment(ctx context.Context, id string) (*models.LeadAssignment, error)
	// GetActiveAssignment returns the active record for a lead, or a not found error.
	GetActiveAssignment(ctx context.Context, leadID string) (*models.LeadAssignment, error)
	// CountActiveByDay counts active records per assignee for one assigned day.
	CountActiveByDay(ctx context.Context, day string) (map[string]int, error)
	ListAssignments(ctx context.Context, filter models.HistoryFilter) ([]models.LeadAssignment, int, error)
	AssignmentStats(ctx context.Context, filter models.HistoryFilter) (*models.AssignmentStats, error)
	// WithTx runs fn in one transaction, committing only if fn returns nil.
	WithTx(ctx context.Context, fn func(tx AssignmentTx) error) error
}

// AssignmentTx is the write side of an assignment. Conditional writes return
// ErrConcurrentUpdate when the row changed since it was read.
type AssignmentTx interface {
	InsertAssignment(ctx context.Context, a *models.LeadAssignment) error
	// CloseAssignment moves an active record to status; it fails with
	// ErrConcurrentUpdate if the record is no longer active.
	CloseAssignment(ctx context.Context, id string, status models.AssignmentStatus, change AssignmentClose) error
	// ClaimUser bumps the user's claim sequence if it still equals expectedSeq.
	ClaimUser(ctx context.Context, userID string, expectedSeq int64, at time.Time) error
	// SetLeadOwner updates the owner if the lead version still equals expectedVersion.
	// An empty userID clears the owner.
	SetLeadOwner(ctx context.Context, leadID, userID string, status models.LeadStatus, expectedVersion int64, at time.Time) error
}

// AssignmentClose carries the fields written when a record leaves the active state.
type AssignmentClose struct {
	At              time.Time
	TransferredTo   string
	TransferredBy   string
	RejectionReason string
}

// AssignmentStore is everything the assignment service needs from storage.
type AssignmentStore interface {
	LeadRepository
	UserRepository
	RuleRepository
	AssignmentRepository
}
