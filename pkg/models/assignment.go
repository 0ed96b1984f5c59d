package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// AssignmentType records how an owner was chosen.
type AssignmentType string

const (
	AssignmentManual    AssignmentType = "manual"
	AssignmentAutomatic AssignmentType = "automatic"
	AssignmentRuleBased AssignmentType = "rule_based"
)

// AssignmentStatus is the lifecycle state of an assignment record.
type AssignmentStatus string

const (
	AssignmentActive      AssignmentStatus = "active"
	AssignmentTransferred AssignmentStatus = "transferred"
	AssignmentRejected    AssignmentStatus = "rejected"
	AssignmentCompleted   AssignmentStatus = "completed"
)

// CanTransition reports whether a record may move from s to next.
// Only active records change state, and never back to active.
func (s AssignmentStatus) CanTransition(next AssignmentStatus) bool {
	if s != AssignmentActive {
		return false
	}
	switch next {
	case AssignmentTransferred, AssignmentRejected, AssignmentCompleted:
		return true
	}
	return false
}

// SelectionPath names the branch of the assignment flow that produced an owner.
type SelectionPath string

const (
	PathRule           SelectionPath = "rule"
	PathRuleFallback   SelectionPath = "rule_fallback"
	PathSystemFallback SelectionPath = "system_fallback"
	PathManual         SelectionPath = "manual"
	PathTransfer       SelectionPath = "transfer"
)

// AssignmentMetadata is the audit trail of an automatic decision.
type AssignmentMetadata struct {
	Path          SelectionPath `json:"path,omitempty"`
	Strategy      StrategyType  `json:"strategy,omitempty"`
	RuleName      string        `json:"rule_name,omitempty"`
	// MatchedRule names a rule that matched but yielded nobody.
	MatchedRule   string        `json:"matched_rule,omitempty"`
	Score         float64       `json:"score,omitempty"`
	MatchedSkills []string      `json:"matched_skills,omitempty"`
	MatchedRegion bool          `json:"matched_region,omitempty"`
	MatchedSource bool          `json:"matched_source,omitempty"`
	Attempts      int           `json:"attempts,omitempty"`
}

// Value implements driver.Valuer.
func (m AssignmentMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *AssignmentMetadata) Scan(src any) error {
	return scanJSON(src, m)
}

// LeadAssignment records that a lead was given to a user. At most one record
// per lead is active at a time.
type LeadAssignment struct {
	ID              string             `json:"id" db:"id"`
	LeadID          string             `json:"lead_id" db:"lead_id"`
	AssignedTo      string             `json:"assigned_to" db:"assigned_to"`
	AssignedBy      string             `json:"assigned_by" db:"assigned_by"`
	RuleID          string             `json:"rule_id,omitempty" db:"rule_id"`
	AssignmentType  AssignmentType     `json:"assignment_type" db:"assignment_type"`
	Status          AssignmentStatus   `json:"status" db:"status"`
	TransferredTo   string             `json:"transferred_to,omitempty" db:"transferred_to"`
	TransferredBy   string             `json:"transferred_by,omitempty" db:"transferred_by"`
	TransferredAt   *time.Time         `json:"transferred_at,omitempty" db:"transferred_at"`
	RejectionReason string             `json:"rejection_reason,omitempty" db:"rejection_reason"`
	Notes           string             `json:"notes,omitempty" db:"notes"`
	Metadata        AssignmentMetadata `json:"metadata" db:"metadata"`
	AssignedAt      time.Time          `json:"assigned_at" db:"assigned_at"`
	AssignedDay     string             `json:"-" db:"assigned_day"`
	ClosedAt        *time.Time         `json:"closed_at,omitempty" db:"closed_at"`
	UpdatedAt       time.Time          `json:"updated_at" db:"updated_at"`
}

// HistoryFilter narrows assignment history queries. Zero values do not filter.
type HistoryFilter struct {
	LeadID         string
	AssignedTo     string
	AssignedBy     string
	RuleID         string
	Status         AssignmentStatus
	AssignmentType AssignmentType
	From           *time.Time
	To             *time.Time
	Page           int
	Limit          int
}

// Normalize clamps pagination to sane bounds.
func (f *HistoryFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
}

// Offset returns the row offset for the current page.
func (f HistoryFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// AssignmentStats aggregates assignment records matching a filter.
type AssignmentStats struct {
	Total    int                      `json:"total"`
	ByStatus map[AssignmentStatus]int `json:"by_status"`
	ByType   map[AssignmentType]int   `json:"by_type"`
}

// Pagination describes a page of results.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPagination computes the page count for total rows.
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}
