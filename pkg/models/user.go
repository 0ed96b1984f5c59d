package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jordanlanch/crmleads/pkg/rbac"
)

// UserStatus is active or inactive; only active users can own leads.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// User is a CRM account. Only active users with an assignable role are candidates
// for automatic assignment.
type User struct {
	ID               string        `json:"id" db:"id"`
	Email            string        `json:"email" db:"email"`
	FirstName        string        `json:"first_name" db:"first_name"`
	LastName         string        `json:"last_name" db:"last_name"`
	PasswordHash     string        `json:"-" db:"password_hash"`
	Role             rbac.Role     `json:"role" db:"role"`
	Status           UserStatus    `json:"status" db:"status"`
	Skills           StringList    `json:"skills,omitempty" db:"skills"`
	Region           string        `json:"region,omitempty" db:"region"`
	PreferredSources StringList    `json:"preferred_sources,omitempty" db:"preferred_sources"`
	WorkingHours     *WorkingHours `json:"working_hours,omitempty" db:"working_hours"`
	LastAssignedAt   *time.Time    `json:"last_assigned_at,omitempty" db:"last_assigned_at"`
	AssignmentSeq    int64         `json:"-" db:"assignment_seq"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the user may take part in assignments.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// IsCandidate reports whether the user can be selected automatically.
func (u *User) IsCandidate() bool {
	return u.IsActive() && u.Role.Assignable()
}

// FullName returns "First Last".
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// PrefersSource reports whether the user listed source as preferred.
func (u *User) PrefersSource(source LeadSource) bool {
	return source != "" && slices.Contains([]string(u.PreferredSources), string(source))
}

// WorkingHours is a daily availability window. Start and End are "HH:MM";
// the window is [Start, End). Days uses 0 for Sunday through 6 for Saturday;
// an empty list means every day.
type WorkingHours struct {
	Start    string `json:"start" yaml:"start"`
	End      string `json:"end" yaml:"end"`
	Days     []int  `json:"days,omitempty" yaml:"days,omitempty"`
	Timezone string `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// ParseClock converts "HH:MM" (or "HH") to minutes after midnight; "24:00" is allowed.
func ParseClock(s string) (int, error) {
	hh, mm, hasMinutes := strings.Cut(strings.TrimSpace(s), ":")
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m := 0
	if hasMinutes {
		if m, err = strconv.Atoi(mm); err != nil || m < 0 || m > 59 {
			return 0, fmt.Errorf("invalid minutes in %q", s)
		}
	}
	total := h*60 + m
	if h < 0 || total > 24*60 {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return total, nil
}

// Location resolves the window's timezone, falling back to def when unset or unknown.
func (w *WorkingHours) Location(def *time.Location) *time.Location {
	if w.Timezone != "" {
		if loc, err := time.LoadLocation(w.Timezone); err == nil {
			return loc
		}
	}
	if def == nil {
		return time.UTC
	}
	return def
}

// Contains reports whether now falls inside the window.
func (w *WorkingHours) Contains(now time.Time, def *time.Location) bool {
	start, err := ParseClock(w.Start)
	if err != nil {
		return false
	}
	end, err := ParseClock(w.End)
	if err != nil {
		return false
	}
	local := now.In(w.Location(def))
	if len(w.Days) > 0 && !slices.Contains(w.Days, int(local.Weekday())) {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	return minute >= start && minute < end
}

// Validate checks the window bounds, days and timezone.
func (w *WorkingHours) Validate() error {
	start, err := ParseClock(w.Start)
	if err != nil {
		return err
	}
	end, err := ParseClock(w.End)
	if err != nil {
		return err
	}
	if start >= end {
		return fmt.Errorf("working hours start %s must be before end %s", w.Start, w.End)
	}
	for _, d := range w.Days {
		if d < 0 || d > 6 {
			return fmt.Errorf("working day %d out of range 0-6", d)
		}
	}
	if w.Timezone != "" {
		if _, err := time.LoadLocation(w.Timezone); err != nil {
			return fmt.Errorf("unknown timezone %q", w.Timezone)
		}
	}
	return nil
}

// Value implements driver.Valuer.
func (w WorkingHours) Value() (driver.Value, error) {
	b, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (w *WorkingHours) Scan(src any) error {
	return scanJSON(src, w)
}
