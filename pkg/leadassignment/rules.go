package leadassignment

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/jordanlanch/crmleads/pkg/domain"
	"github.com/jordanlanch/crmleads/pkg/logger"
	"github.com/jordanlanch/crmleads/pkg/models"
)

// RuleStore is the storage needed to administer rules.
type RuleStore interface {
	domain.RuleRepository
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// RuleService creates, edits and lists assignment rules. Every write is
// validated so the engine never sees a rule it cannot run.
type RuleService struct {
	store    RuleStore
	clock    clockwork.Clock
	validate *validator.Validate
	logger   logger.Logger
}

// NewRuleService creates a new rule service.
func NewRuleService(store RuleStore, clk clockwork.Clock, log logger.Logger) *RuleService {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &RuleService{store: store, clock: clk, validate: validator.New(), logger: log}
}

// CreateRule validates and stores a new rule. Rules are active unless the request says otherwise.
func (s *RuleService) CreateRule(ctx context.Context, req models.RuleRequest, actorID string) (*models.AssignmentRule, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, invalidRule(err)
	}
	strategy, err := req.Strategy.Build()
	if err != nil {
		return nil, domain.NewInvalidRuleConfigurationError(err.Error())
	}

	now := s.clock.Now()
	rule := &models.AssignmentRule{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		IsActive:    req.IsActive == nil || *req.IsActive,
		Priority:    req.Priority,
		Conditions:  req.Conditions,
		Strategy:    strategy,
		Fallback:    req.Fallback,
		CreatedBy:   actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.ValidateRule(ctx, rule); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueName(ctx, rule.Name, ""); err != nil {
		return nil, err
	}
	if err := s.store.CreateRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}

	s.logger.Info("assignment rule created", "rule_id", rule.ID, "name", rule.Name, "actor_id", actorID)
	return rule, nil
}

// UpdateRule applies a partial update.
func (s *RuleService) UpdateRule(ctx context.Context, id string, req models.RuleUpdateRequest) (*models.AssignmentRule, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, invalidRule(err)
	}
	rule, err := s.store.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		rule.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		rule.Description = *req.Description
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.Conditions != nil {
		rule.Conditions = *req.Conditions
	}
	if req.Strategy != nil {
		st, err := req.Strategy.Build()
		if err != nil {
			return nil, domain.NewInvalidRuleConfigurationError(err.Error())
		}
		rule.Strategy = st
	}
	if req.ClearFallback {
		rule.Fallback = nil
	} else if req.Fallback != nil {
		rule.Fallback = req.Fallback
	}
	rule.UpdatedAt = s.clock.Now()

	if err := s.ValidateRule(ctx, rule); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueName(ctx, rule.Name, rule.ID); err != nil {
		return nil, err
	}
	if err := s.store.UpdateRule(ctx, rule); err != nil {
		return nil, err
	}
	s.logger.Info("assignment rule updated", "rule_id", rule.ID)
	return rule, nil
}

// SetRuleActive toggles whether the engine considers a rule.
func (s *RuleService) SetRuleActive(ctx context.Context, id string, active bool) (*models.AssignmentRule, error) {
	rule, err := s.store.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.IsActive == active {
		return rule, nil
	}
	rule.IsActive = active
	rule.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateRule(ctx, rule); err != nil {
		return nil, err
	}
	s.logger.Info("assignment rule toggled", "rule_id", rule.ID, "active", active)
	return rule, nil
}

// DeleteRule removes a rule. Past assignments keep their rule id.
func (s *RuleService) DeleteRule(ctx context.Context, id string) error {
	if err := s.store.DeleteRule(ctx, id); err != nil {
		return err
	}
	s.logger.Info("assignment rule deleted", "rule_id", id)
	return nil
}

// GetRule fetches a rule by id.
func (s *RuleService) GetRule(ctx context.Context, id string) (*models.AssignmentRule, error) {
	return s.store.GetRule(ctx, id)
}

// ListRules returns a page of rules ordered by priority with table-wide stats.
func (s *RuleService) ListRules(ctx context.Context, filter models.RuleFilter) (*models.RuleListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	rules, total, err := s.store.ListRules(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	stats, err := s.store.RuleStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count rules: %w", err)
	}
	if rules == nil {
		rules = []models.AssignmentRule{}
	}
	return &models.RuleListResponse{
		Rules:      rules,
		Pagination: models.NewPagination(filter.Page, filter.Limit, total),
		Stats:      *stats,
	}, nil
}

// ImportResult counts what an import changed.
type ImportResult struct {
	Created int
	Updated int
}

// ImportRules upserts rules by name. Each request is validated like CreateRule.
func (s *RuleService) ImportRules(ctx context.Context, reqs []models.RuleRequest, actorID string) (*ImportResult, error) {
	res := &ImportResult{}
	for _, req := range reqs {
		existing, err := s.store.GetRuleByName(ctx, strings.TrimSpace(req.Name))
		if err != nil && !domain.IsNotFound(err) {
			return res, err
		}
		if existing == nil {
			if _, err := s.CreateRule(ctx, req, actorID); err != nil {
				return res, fmt.Errorf("rule %q: %w", req.Name, err)
			}
			res.Created++
			continue
		}
		strategy := req.Strategy
		upd := models.RuleUpdateRequest{
			Description:   &req.Description,
			IsActive:      req.IsActive,
			Priority:      &req.Priority,
			Conditions:    &req.Conditions,
			Strategy:      &strategy,
			Fallback:      req.Fallback,
			ClearFallback: req.Fallback == nil,
		}
		if _, err := s.UpdateRule(ctx, existing.ID, upd); err != nil {
			return res, fmt.Errorf("rule %q: %w", req.Name, err)
		}
		res.Updated++
	}
	return res, nil
}

// ValidateRule checks the semantic constraints of a rule that struct tags cannot express.
func (s *RuleService) ValidateRule(ctx context.Context, rule *models.AssignmentRule) error {
	if rule.Name == "" {
		return domain.NewInvalidRuleConfigurationError("name is required")
	}
	if rule.Priority < 0 {
		return domain.NewInvalidRuleConfigurationError("priority must not be negative")
	}
	if err := s.validate.Struct(rule.Conditions); err != nil {
		return invalidRule(err)
	}
	if err := validateConditions(rule.Conditions); err != nil {
		return err
	}

	switch st := rule.Strategy.(type) {
	case nil:
		return domain.NewInvalidRuleConfigurationError("strategy is required")
	case models.SpecificUser:
		if err := s.requireUser(ctx, st.UserID, "specific_user strategy"); err != nil {
			return err
		}
	case models.SkillBased:
		if len(normalizeSkills(st.Skills)) == 0 {
			return domain.NewInvalidRuleConfigurationError("skill_based strategy requires at least one skill")
		}
	case models.LeastAssigned:
		if st.MaxPerDay < 0 {
			return domain.NewInvalidRuleConfigurationError("max_per_day must not be negative")
		}
	case models.MostAvailable:
		if st.WorkingHours != nil {
			if err := st.WorkingHours.Validate(); err != nil {
				return domain.NewInvalidRuleConfigurationError(err.Error())
			}
		}
	}

	if fb := rule.Fallback; fb != nil {
		if !slices.Contains(models.FallbackTypes, fb.Type) {
			return domain.NewInvalidRuleConfigurationError(
				fmt.Sprintf("fallback type %q must be one of round_robin, least_assigned or specific_user", fb.Type))
		}
		if fb.Type == models.StrategySpecificUser {
			if err := s.requireUser(ctx, fb.UserID, "specific_user fallback"); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateConditions(c models.RuleConditions) error {
	if r := c.ValueRange; r != nil && r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return domain.NewInvalidRuleConfigurationError("value_range min must not exceed max")
	}
	for _, cf := range c.CustomFields {
		if cf.Operator == models.OpGreaterThan || cf.Operator == models.OpLessThan {
			if _, ok := toNumber(cf.Value); !ok {
				return domain.NewInvalidRuleConfigurationError(
					fmt.Sprintf("custom field %q: %s needs a numeric value", cf.Field, cf.Operator))
			}
		}
	}
	return nil
}

func (s *RuleService) requireUser(ctx context.Context, userID, what string) error {
	if userID == "" {
		return domain.NewInvalidRuleConfigurationError(what + " requires user_id")
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.NewInvalidRuleConfigurationError(what + " references an unknown user")
		}
		return err
	}
	if !user.Role.Assignable() {
		return domain.NewInvalidRuleConfigurationError(
			fmt.Sprintf("%s targets user %s whose role %s cannot receive leads", what, userID, user.Role))
	}
	return nil
}

func (s *RuleService) ensureUniqueName(ctx context.Context, name, selfID string) error {
	existing, err := s.store.GetRuleByName(ctx, name)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil
		}
		return err
	}
	if existing.ID != selfID {
		return domain.NewConflictError(fmt.Sprintf("a rule named %q already exists", name))
	}
	return nil
}

func invalidRule(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return domain.NewInvalidRuleConfigurationError(
			fmt.Sprintf("%s failed on the '%s' rule", fe.Namespace(), fe.Tag()))
	}
	return domain.NewInvalidRuleConfigurationError(err.Error())
}
