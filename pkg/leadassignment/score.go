package leadassignment

import (
	"math"

	"github.com/jordanlanch/crmleads/pkg/models"
)

// Score weights. The total is capped at 100.
const (
	skillWeight        = 40
	regionWeight       = 30
	sourceWeight       = 20
	availabilityWeight = 10
)

// ScoreBreakdown is a suitability score with the facts behind it.
type ScoreBreakdown struct {
	Total         float64
	MatchedSkills []string
	MatchedRegion bool
	MatchedSource bool
}

// Score rates how well user fits lead under rule. It is recorded for audit
// and never drives selection. defaultCap applies when the rule has no daily cap.
func Score(lead *models.Lead, user *models.User, rule *models.AssignmentRule, todayCount, defaultCap int) ScoreBreakdown {
	var b ScoreBreakdown

	if rule != nil {
		if required := normalizeSkills(rule.RequiredSkills()); len(required) > 0 {
			b.MatchedSkills = matchedSkills(required, user.Skills)
			b.Total += float64(len(b.MatchedSkills)) / float64(len(required)) * skillWeight
		}
	}

	if lead.Region != "" && user.Region == lead.Region {
		b.MatchedRegion = true
		b.Total += regionWeight
	}

	if user.PrefersSource(lead.Source) {
		b.MatchedSource = true
		b.Total += sourceWeight
	}

	dailyCap := defaultCap
	if rule != nil {
		dailyCap = rule.DailyCap(defaultCap)
	}
	if dailyCap > 0 {
		b.Total += math.Max(0, float64(dailyCap-todayCount)/float64(dailyCap)) * availabilityWeight
	}

	b.Total = math.Min(100, b.Total)
	return b
}
