package leadassignment

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/jordanlanch/crmleads/pkg/models"
)

// Snapshot is the state a selection decision reads. It is taken once per
// attempt so selection itself is pure.
type Snapshot struct {
	// Users may include inactive or non-assignable accounts; they are never selected.
	Users []models.User
	// TodayCounts holds active assignments created today, keyed by user id.
	TodayCounts map[string]int
	Now         time.Time
	// Location is the reference timezone for windows without their own.
	Location *time.Location
}

// candidates returns the selectable users ordered by id.
func (s Snapshot) candidates() []models.User {
	out := make([]models.User, 0, len(s.Users))
	for _, u := range s.Users {
		if u.IsCandidate() {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b models.User) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s Snapshot) count(userID string) int {
	return s.TodayCounts[userID]
}

// Select runs one strategy over the snapshot. It returns nil when the strategy
// yields nobody. Ties always break on ascending user id.
func Select(strategy models.Strategy, snap Snapshot) *models.User {
	switch st := strategy.(type) {
	case models.SpecificUser:
		return selectSpecific(st, snap)
	case models.RoundRobin:
		return selectRoundRobin(snap)
	case models.LeastAssigned:
		return selectLeastAssigned(st, snap)
	case models.MostAvailable:
		return selectMostAvailable(st, snap)
	case models.SkillBased:
		return selectSkillBased(st, snap)
	}
	return nil
}

func selectSpecific(st models.SpecificUser, snap Snapshot) *models.User {
	if st.UserID == "" {
		return nil
	}
	for _, u := range snap.candidates() {
		if u.ID == st.UserID {
			return &u
		}
	}
	return nil
}

// selectRoundRobin picks whoever was given a lead longest ago; never-assigned users go first.
func selectRoundRobin(snap Snapshot) *models.User {
	var best *models.User
	for _, u := range snap.candidates() {
		if best == nil || assignedBefore(u, *best) {
			picked := u
			best = &picked
		}
	}
	return best
}

func assignedBefore(a, b models.User) bool {
	switch {
	case a.LastAssignedAt == nil && b.LastAssignedAt == nil:
		return false
	case a.LastAssignedAt == nil:
		return true
	case b.LastAssignedAt == nil:
		return false
	}
	return a.LastAssignedAt.Before(*b.LastAssignedAt)
}

func selectLeastAssigned(st models.LeastAssigned, snap Snapshot) *models.User {
	var best *models.User
	bestCount := 0
	for _, u := range snap.candidates() {
		n := snap.count(u.ID)
		if st.MaxPerDay > 0 && n >= st.MaxPerDay {
			continue
		}
		if best == nil || n < bestCount {
			picked := u
			best, bestCount = &picked, n
		}
	}
	return best
}

// selectMostAvailable keeps users inside their working window (their own,
// else the strategy's, else always open) and prefers the lightest load today.
func selectMostAvailable(st models.MostAvailable, snap Snapshot) *models.User {
	var best *models.User
	bestCount := 0
	for _, u := range snap.candidates() {
		window := u.WorkingHours
		if window == nil {
			window = st.WorkingHours
		}
		if window != nil && !window.Contains(snap.Now, snap.Location) {
			continue
		}
		n := snap.count(u.ID)
		if best == nil || n < bestCount {
			picked := u
			best, bestCount = &picked, n
		}
	}
	return best
}

func selectSkillBased(st models.SkillBased, snap Snapshot) *models.User {
	required := normalizeSkills(st.Skills)
	if len(required) == 0 {
		return nil
	}
	var best *models.User
	bestScore := 0.0
	for _, u := range snap.candidates() {
		score := skillCoverage(required, u.Skills)
		if score > bestScore {
			picked := u
			best, bestScore = &picked, score
		}
	}
	return best
}

// SystemFallback returns the earliest created candidate. It makes no fairness claim.
func SystemFallback(snap Snapshot) *models.User {
	var best *models.User
	for _, u := range snap.candidates() {
		if best == nil || u.CreatedAt.Before(best.CreatedAt) {
			picked := u
			best = &picked
		}
	}
	return best
}

func normalizeSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		k := foldCase(strings.TrimSpace(s))
		if k != "" && !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}

// matchedSkills returns the required skills the user has, in required order.
func matchedSkills(required []string, have []string) []string {
	owned := normalizeSkills(have)
	var out []string
	for _, r := range required {
		if slices.Contains(owned, r) {
			out = append(out, r)
		}
	}
	return out
}

// skillCoverage is |required ∩ have| / |required|; required must be normalized.
func skillCoverage(required []string, have []string) float64 {
	if len(required) == 0 {
		return 0
	}
	return float64(len(matchedSkills(required, have))) / float64(len(required))
}
