package models

import "time"

// LeadSource is where a lead came from.
type LeadSource string

const (
	SourceWebsite     LeadSource = "website"
	SourceSocialMedia LeadSource = "social_media"
	SourceReferral    LeadSource = "referral"
	SourceColdCall    LeadSource = "cold_call"
	SourceEmail       LeadSource = "email"
	SourceEvent       LeadSource = "event"
	SourceOther       LeadSource = "other"
)

// LeadStatus is the pipeline stage of a lead.
type LeadStatus string

const (
	LeadStatusNew         LeadStatus = "new"
	LeadStatusContacted   LeadStatus = "contacted"
	LeadStatusQualified   LeadStatus = "qualified"
	LeadStatusProposal    LeadStatus = "proposal"
	LeadStatusNegotiation LeadStatus = "negotiation"
	LeadStatusClosedWon   LeadStatus = "closed_won"
	LeadStatusClosedLost  LeadStatus = "closed_lost"
	LeadStatusAssigned    LeadStatus = "assigned"
)

// LeadPriority ranks a lead for follow-up.
type LeadPriority string

const (
	PriorityLow    LeadPriority = "low"
	PriorityMedium LeadPriority = "medium"
	PriorityHigh   LeadPriority = "high"
	PriorityUrgent LeadPriority = "urgent"
)

// Lead is a prospective customer record. AssignedTo is empty while the lead
// has no owner and is only changed by the assignment service.
type Lead struct {
	ID           string       `json:"id" db:"id"`
	FirstName    string       `json:"first_name" db:"first_name"`
	LastName     string       `json:"last_name" db:"last_name"`
	Email        string       `json:"email" db:"email"`
	Phone        string       `json:"phone,omitempty" db:"phone"`
	Company      string       `json:"company,omitempty" db:"company"`
	Source       LeadSource   `json:"source" db:"source"`
	Status       LeadStatus   `json:"status" db:"status"`
	Priority     LeadPriority `json:"priority" db:"priority"`
	Value        *float64     `json:"value,omitempty" db:"deal_value"`
	Currency     string       `json:"currency,omitempty" db:"currency"`
	Region       string       `json:"region,omitempty" db:"region"`
	CustomFields JSONMap      `json:"custom_fields,omitempty" db:"custom_fields"`
	AssignedTo   string       `json:"assigned_to,omitempty" db:"assigned_to"`
	Version      int64        `json:"-" db:"version"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// FullName returns "First Last".
func (l *Lead) FullName() string {
	if l.LastName == "" {
		return l.FirstName
	}
	return l.FirstName + " " + l.LastName
}
