package testdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jordanlanch/crmleads/pkg/domain"
	"github.com/jordanlanch/crmleads/pkg/models"
	"github.com/jordanlanch/crmleads/pkg/rbac"
)

// Regions used for generated leads and users.
var Regions = []string{"north", "south", "east", "west", "central"}

// Skills used for generated users.
var Skills = []string{"enterprise", "smb", "saas", "healthcare", "fintech", "retail", "spanish", "german"}

var (
	sources    = []string{"website", "social_media", "referral", "cold_call", "email", "event", "other"}
	priorities = []string{"low", "medium", "high", "urgent"}
	industries = []string{"software", "manufacturing", "healthcare", "retail", "finance", "logistics"}
)

// LeadGeneratorConfig configures lead generation parameters
type LeadGeneratorConfig struct {
	Count       int
	MinValue    float64
	MaxValue    float64
	ValueChance float64 // 0.0-1.0 (probability of having a deal value)
	PhoneChance float64
	// Region pins every lead to one region when set.
	Region string
	// Source pins every lead to one source when set.
	Source models.LeadSource
}

// DefaultLeadConfig returns settings that produce a varied but realistic mix.
func DefaultLeadConfig(count int) LeadGeneratorConfig {
	return LeadGeneratorConfig{
		Count:       count,
		MinValue:    100,
		MaxValue:    50000,
		ValueChance: 0.8,
		PhoneChance: 0.7,
	}
}

// Generator creates fake CRM records. A seeded generator is deterministic.
type Generator struct {
	faker *gofakeit.Faker
	now   func() time.Time
}

// NewGenerator returns a generator seeded with seed; 0 picks a random seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed), now: time.Now}
}

// GenerateLead creates a single lead with realistic data
func (g *Generator) GenerateLead(config LeadGeneratorConfig) *models.Lead {
	f := g.faker
	now := g.now().UTC()

	first, last := f.FirstName(), f.LastName()
	company := f.Company()
	lead := &models.Lead{
		ID:        uuid.NewString(),
		FirstName: first,
		LastName:  last,
		Email:     emailFor(first, last, company),
		Company:   company,
		Source:    models.LeadSource(f.RandomString(sources)),
		Status:    models.LeadStatusNew,
		Priority:  models.LeadPriority(f.RandomString(priorities)),
		Currency:  "USD",
		Region:    f.RandomString(Regions),
		CustomFields: models.JSONMap{
			"industry":  f.RandomString(industries),
			"employees": float64(f.Number(1, 5000)),
			"website":   "https://www." + domainOf(company) + ".com",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if config.Region != "" {
		lead.Region = config.Region
	}
	if config.Source != "" {
		lead.Source = config.Source
	}
	if f.Float64() < config.PhoneChance {
		lead.Phone = f.Phone()
	}
	if f.Float64() < config.ValueChance {
		v := float64(int(f.Float64Range(config.MinValue, config.MaxValue)))
		lead.Value = &v
	}
	return lead
}

// GenerateLeads creates multiple leads with the given config
func (g *Generator) GenerateLeads(config LeadGeneratorConfig) []*models.Lead {
	leads := make([]*models.Lead, config.Count)
	for i := 0; i < config.Count; i++ {
		leads[i] = g.GenerateLead(config)
	}
	return leads
}

// GenerateUser creates an active user with the given role, a region and a few skills.
func (g *Generator) GenerateUser(role rbac.Role) *models.User {
	f := g.faker
	now := g.now().UTC()
	first, last := f.FirstName(), f.LastName()

	skills := make([]string, 0, 3)
	for len(skills) < 1+f.Number(0, 2) {
		s := f.RandomString(Skills)
		if !strings.Contains(strings.Join(skills, ","), s) {
			skills = append(skills, s)
		}
	}

	return &models.User{
		ID:               uuid.NewString(),
		Email:            emailFor(first, last, "crmleads"),
		FirstName:        first,
		LastName:         last,
		Role:             role,
		Status:           models.UserStatusActive,
		Skills:           skills,
		Region:           f.RandomString(Regions),
		PreferredSources: []string{f.RandomString(sources)},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// BulkInsertLeads stores generated leads one by one, stopping at the first failure.
func BulkInsertLeads(ctx context.Context, repo domain.LeadRepository, leads []*models.Lead) error {
	for i, l := range leads {
		if err := repo.CreateLead(ctx, l); err != nil {
			return fmt.Errorf("failed to insert lead %d: %w", i, err)
		}
	}
	return nil
}

// BulkInsertUsers stores generated users one by one, stopping at the first failure.
func BulkInsertUsers(ctx context.Context, repo domain.UserRepository, users []*models.User) error {
	for i, u := range users {
		if err := repo.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("failed to insert user %d: %w", i, err)
		}
	}
	return nil
}

func emailFor(first, last, company string) string {
	local := strings.ToLower(first + "." + last)
	local = strings.NewReplacer(" ", "", "'", "").Replace(local)
	return fmt.Sprintf("%s.%s@%s.com", local, uuid.NewString()[:6], domainOf(company))
}

func domainOf(company string) string {
	d := strings.ToLower(company)
	d = strings.NewReplacer(" ", "", "'", "", ",", "", ".", "", "&", "").Replace(d)
	if len(d) > 20 {
		d = d[:20]
	}
	if d == "" {
		d = "example"
	}
	return d
}
