package leadassignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/jordanlanch/crmleads/pkg/domain"
	"github.com/jordanlanch/crmleads/pkg/logger"
	"github.com/jordanlanch/crmleads/pkg/models"
)

// Recorder receives assignment outcomes for metrics.
type Recorder interface {
	RecordAssignment(assignmentType, path string)
	RecordAssignmentConflict(operation string)
	RecordAssignmentFailure(operation, code string)
}

type nopRecorder struct{}

func (nopRecorder) RecordAssignment(string, string) {}
func (nopRecorder) RecordAssignmentConflict(string) {}
func (nopRecorder) RecordAssignmentFailure(string, string) {}

// Options configures a Service. Zero values pick defaults.
type Options struct {
	Clock    clockwork.Clock
	Location *time.Location
	// DefaultDailyCap is the capacity used by scoring when a rule has none.
	DefaultDailyCap int
	// MaxRetries bounds how often an operation is retried after losing a race.
	MaxRetries int
	Logger     logger.Logger
	Recorder   Recorder
}

// Service assigns leads to users: rule-driven, manual and by transfer.
type Service struct {
	store      domain.AssignmentStore
	clock      clockwork.Clock
	location   *time.Location
	defaultCap int
	maxRetries int
	logger     logger.Logger
	recorder   Recorder
}

// NewService creates a new lead assignment service.
func NewService(store domain.AssignmentStore, opts Options) *Service {
	s := &Service{
		store:      store,
		clock:      opts.Clock,
		location:   opts.Location,
		defaultCap: opts.DefaultDailyCap,
		maxRetries: opts.MaxRetries,
		logger:     opts.Logger,
		recorder:   opts.Recorder,
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.defaultCap <= 0 {
		s.defaultCap = 10
	}
	if s.maxRetries < 0 {
		s.maxRetries = 0
	} else if s.maxRetries == 0 {
		s.maxRetries = 3
	}
	if s.logger == nil {
		s.logger = logger.Discard()
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	return s
}

// AssignedDay is the calendar day, in the reference timezone, that t counts towards.
func (s *Service) AssignedDay(t time.Time) string {
	return t.In(s.location).Format(time.DateOnly)
}

// decision is the outcome of running rules and fallbacks over a snapshot.
type decision struct {
	user *models.User
	// rule is set only when the rule or its fallback picked the user.
	rule     *models.AssignmentRule
	strategy models.StrategyType
	// matched is the first matching rule, even when it yielded nobody.
	matched *models.AssignmentRule
	typ     models.AssignmentType
	path    models.SelectionPath
}

// decide walks active rules by priority, stops at the first match, then tries
// the rule's strategy, its fallback and finally the system fallback.
func (s *Service) decide(lead *models.Lead, rules []models.AssignmentRule, snap Snapshot) (decision, error) {
	var matched *models.AssignmentRule
	for i := range rules {
		if rules[i].IsActive && Matches(lead, &rules[i]) {
			matched = &rules[i]
			break
		}
	}

	if matched != nil {
		if u := Select(matched.Strategy, snap); u != nil {
			return decision{user: u, rule: matched, strategy: matched.Strategy.Type(), matched: matched,
				typ: models.AssignmentRuleBased, path: models.PathRule}, nil
		}
		if matched.Fallback != nil {
			fb, err := matched.Fallback.Strategy()
			if err != nil {
				s.logger.Warn("ignoring invalid rule fallback", "rule_id", matched.ID, "error", err)
			} else if u := Select(fb, snap); u != nil {
				return decision{user: u, rule: matched, strategy: matched.Fallback.Type, matched: matched,
					typ: models.AssignmentAutomatic, path: models.PathRuleFallback}, nil
			}
		}
	}

	if u := SystemFallback(snap); u != nil {
		return decision{user: u, matched: matched, typ: models.AssignmentAutomatic, path: models.PathSystemFallback}, nil
	}
	return decision{}, domain.NewNoEligibleCandidateError()
}

// AutoAssign picks an owner for a lead through the rule engine and persists it.
func (s *Service) AutoAssign(ctx context.Context, leadID, actorID string) (*models.AssignmentResult, error) {
	return withRetry(ctx, s, "auto_assign", func(attempt int) (*models.AssignmentResult, error) {
		return s.autoAssignOnce(ctx, leadID, actorID, attempt)
	})
}

func (s *Service) autoAssignOnce(ctx context.Context, leadID, actorID string, attempt int) (*models.AssignmentResult, error) {
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	day := s.AssignedDay(now)

	users, err := s.store.ListCandidateUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	counts, err := s.store.CountActiveByDay(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to count assignments: %w", err)
	}
	rules, err := s.store.ListActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rules: %w", err)
	}

	d, err := s.decide(lead, rules, Snapshot{Users: users, TodayCounts: counts, Now: now, Location: s.location})
	if err != nil {
		return nil, err
	}

	score := Score(lead, d.user, d.rule, counts[d.user.ID], s.defaultCap)
	meta := models.AssignmentMetadata{
		Path:          d.path,
		Score:         score.Total,
		MatchedSkills: score.MatchedSkills,
		MatchedRegion: score.MatchedRegion,
		MatchedSource: score.MatchedSource,
		Attempts:      attempt,
	}
	record := s.newRecord(lead.ID, d.user.ID, actorID, d.typ, now)
	if d.rule != nil {
		meta.RuleName = d.rule.Name
		meta.Strategy = d.strategy
		record.RuleID = d.rule.ID
	} else if d.matched != nil {
		meta.MatchedRule = d.matched.Name
	}
	record.Metadata = meta

	if err := s.commit(ctx, lead, d.user, record, domain.AssignmentClose{At: now, TransferredTo: d.user.ID, TransferredBy: actorID}); err != nil {
		return nil, err
	}

	s.logger.Info("lead auto-assigned",
		"lead_id", lead.ID, "user_id", d.user.ID, "type", d.typ, "path", d.path, "score", score.Total)
	return s.result(lead, d.user, record, score.Total), nil
}

// ManualAssign gives a lead to a specific active user.
func (s *Service) ManualAssign(ctx context.Context, leadID, userID, actorID, notes string) (*models.AssignmentResult, error) {
	return withRetry(ctx, s, "manual_assign", func(attempt int) (*models.AssignmentResult, error) {
		lead, err := s.store.GetLead(ctx, leadID)
		if err != nil {
			return nil, err
		}
		user, err := s.activeUser(ctx, userID)
		if err != nil {
			return nil, err
		}

		now := s.clock.Now()
		record := s.newRecord(lead.ID, user.ID, actorID, models.AssignmentManual, now)
		record.Notes = notes
		record.Metadata = models.AssignmentMetadata{Path: models.PathManual, Attempts: attempt}

		if err := s.commit(ctx, lead, user, record, domain.AssignmentClose{At: now, TransferredTo: user.ID, TransferredBy: actorID}); err != nil {
			return nil, err
		}

		s.logger.Info("lead manually assigned", "lead_id", lead.ID, "user_id", user.ID, "actor_id", actorID)
		return s.result(lead, user, record, 0), nil
	})
}

// Transfer moves an active assignment to another active user.
func (s *Service) Transfer(ctx context.Context, assignmentID, newUserID, actorID, reason string) (*models.AssignmentResult, error) {
	return withRetry(ctx, s, "transfer", func(attempt int) (*models.AssignmentResult, error) {
		current, err := s.store.GetAssignment(ctx, assignmentID)
		if err != nil {
			return nil, err
		}
		if current.Status != models.AssignmentActive {
			return nil, domain.NewInactiveError("assignment")
		}
		user, err := s.activeUser(ctx, newUserID)
		if err != nil {
			return nil, err
		}
		if user.ID == current.AssignedTo {
			return nil, domain.NewValidationError("lead is already assigned to this user")
		}
		lead, err := s.store.GetLead(ctx, current.LeadID)
		if err != nil {
			return nil, err
		}

		if reason == "" {
			reason = "No reason provided"
		}
		now := s.clock.Now()
		record := s.newRecord(lead.ID, user.ID, actorID, models.AssignmentManual, now)
		record.Notes = fmt.Sprintf("Transferred from %s. Reason: %s", current.AssignedTo, reason)
		record.Metadata = models.AssignmentMetadata{Path: models.PathTransfer, Attempts: attempt}

		err = s.store.WithTx(ctx, func(tx domain.AssignmentTx) error {
			if err := tx.SetLeadOwner(ctx, lead.ID, user.ID, lead.Status, lead.Version, now); err != nil {
				return err
			}
			if err := tx.CloseAssignment(ctx, current.ID, models.AssignmentTransferred, domain.AssignmentClose{
				At: now, TransferredTo: user.ID, TransferredBy: actorID,
			}); err != nil {
				return err
			}
			if err := tx.InsertAssignment(ctx, record); err != nil {
				return err
			}
			return tx.ClaimUser(ctx, user.ID, user.AssignmentSeq, now)
		})
		if err != nil {
			return nil, err
		}

		s.recorder.RecordAssignment(string(record.AssignmentType), string(models.PathTransfer))
		s.logger.Info("lead transferred",
			"lead_id", lead.ID, "from_user_id", current.AssignedTo, "to_user_id", user.ID, "actor_id", actorID)
		return s.result(lead, user, record, 0), nil
	})
}

// Complete closes an active assignment as done. The lead keeps its owner.
func (s *Service) Complete(ctx context.Context, assignmentID, actorID string) (*models.LeadAssignment, error) {
	return withRetry(ctx, s, "complete", func(int) (*models.LeadAssignment, error) {
		current, err := s.store.GetAssignment(ctx, assignmentID)
		if err != nil {
			return nil, err
		}
		if !current.Status.CanTransition(models.AssignmentCompleted) {
			return nil, domain.NewInactiveError("assignment")
		}
		now := s.clock.Now()
		err = s.store.WithTx(ctx, func(tx domain.AssignmentTx) error {
			return tx.CloseAssignment(ctx, current.ID, models.AssignmentCompleted, domain.AssignmentClose{At: now})
		})
		if err != nil {
			return nil, err
		}
		current.Status = models.AssignmentCompleted
		current.ClosedAt = &now
		current.UpdatedAt = now
		s.logger.Info("assignment completed", "assignment_id", current.ID, "actor_id", actorID)
		return current, nil
	})
}

// Reject closes an active assignment as declined and releases the lead if
// the rejecting user still owns it.
func (s *Service) Reject(ctx context.Context, assignmentID, actorID, reason string) (*models.LeadAssignment, error) {
	return withRetry(ctx, s, "reject", func(int) (*models.LeadAssignment, error) {
		current, err := s.store.GetAssignment(ctx, assignmentID)
		if err != nil {
			return nil, err
		}
		if !current.Status.CanTransition(models.AssignmentRejected) {
			return nil, domain.NewInactiveError("assignment")
		}
		lead, err := s.store.GetLead(ctx, current.LeadID)
		if err != nil {
			return nil, err
		}
		now := s.clock.Now()
		err = s.store.WithTx(ctx, func(tx domain.AssignmentTx) error {
			if lead.AssignedTo == current.AssignedTo {
				if err := tx.SetLeadOwner(ctx, lead.ID, "", models.LeadStatusNew, lead.Version, now); err != nil {
					return err
				}
			}
			return tx.CloseAssignment(ctx, current.ID, models.AssignmentRejected, domain.AssignmentClose{At: now, RejectionReason: reason})
		})
		if err != nil {
			return nil, err
		}
		current.Status = models.AssignmentRejected
		current.RejectionReason = reason
		current.ClosedAt = &now
		current.UpdatedAt = now
		s.logger.Info("assignment rejected", "assignment_id", current.ID, "actor_id", actorID)
		return current, nil
	})
}

// Assignment returns one assignment record.
func (s *Service) Assignment(ctx context.Context, id string) (*models.LeadAssignment, error) {
	return s.store.GetAssignment(ctx, id)
}

// CurrentAssignment returns the active assignment of a lead, or nil if it has none.
func (s *Service) CurrentAssignment(ctx context.Context, leadID string) (*models.LeadAssignment, error) {
	if _, err := s.store.GetLead(ctx, leadID); err != nil {
		return nil, err
	}
	a, err := s.store.GetActiveAssignment(ctx, leadID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch assignment: %w", err)
	}
	return a, nil
}

// UserAssignments lists a user's active assignments, newest first.
func (s *Service) UserAssignments(ctx context.Context, userID string, limit int) ([]models.LeadAssignment, error) {
	filter := models.HistoryFilter{AssignedTo: userID, Status: models.AssignmentActive, Limit: limit}
	filter.Normalize()
	items, _, err := s.store.ListAssignments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assignments: %w", err)
	}
	return items, nil
}

// History returns one page of assignment records plus aggregate stats for the same filter.
func (s *Service) History(ctx context.Context, filter models.HistoryFilter) (*models.AssignmentHistoryResponse, error) {
	filter.Normalize()
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, domain.NewValidationError("date_from must not be after date_to")
	}
	items, total, err := s.store.ListAssignments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assignment history: %w", err)
	}
	stats, err := s.store.AssignmentStats(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate assignments: %w", err)
	}
	if items == nil {
		items = []models.LeadAssignment{}
	}
	return &models.AssignmentHistoryResponse{
		Assignments: items,
		Pagination:  models.NewPagination(filter.Page, filter.Limit, total),
		Stats:       stats,
	}, nil
}

func (s *Service) activeUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, domain.NewInactiveError("user")
	}
	return user, nil
}

func (s *Service) newRecord(leadID, userID, actorID string, typ models.AssignmentType, now time.Time) *models.LeadAssignment {
	return &models.LeadAssignment{
		ID:             uuid.NewString(),
		LeadID:         leadID,
		AssignedTo:     userID,
		AssignedBy:     actorID,
		AssignmentType: typ,
		Status:         models.AssignmentActive,
		AssignedAt:     now,
		AssignedDay:    s.AssignedDay(now),
		UpdatedAt:      now,
	}
}

// commit writes a new ownership in one transaction: lead owner first (the
// version check serializes writers on the lead), then the previous active
// record is closed, the new record inserted and the user claimed. The lead
// moves to the assigned status.
func (s *Service) commit(ctx context.Context, lead *models.Lead, user *models.User, record *models.LeadAssignment, closing domain.AssignmentClose) error {
	previous, err := s.store.GetActiveAssignment(ctx, lead.ID)
	if err != nil && !domain.IsNotFound(err) {
		return fmt.Errorf("failed to fetch current assignment: %w", err)
	}

	err = s.store.WithTx(ctx, func(tx domain.AssignmentTx) error {
		if err := tx.SetLeadOwner(ctx, lead.ID, user.ID, models.LeadStatusAssigned, lead.Version, record.AssignedAt); err != nil {
			return err
		}
		if previous != nil {
			if err := tx.CloseAssignment(ctx, previous.ID, models.AssignmentTransferred, closing); err != nil {
				return err
			}
		}
		if err := tx.InsertAssignment(ctx, record); err != nil {
			return err
		}
		return tx.ClaimUser(ctx, user.ID, user.AssignmentSeq, record.AssignedAt)
	})
	if err != nil {
		return err
	}

	lead.Status = models.LeadStatusAssigned
	s.recorder.RecordAssignment(string(record.AssignmentType), string(record.Metadata.Path))
	return nil
}

func (s *Service) result(lead *models.Lead, user *models.User, record *models.LeadAssignment, score float64) *models.AssignmentResult {
	owned := *lead
	owned.AssignedTo = user.ID
	owned.Version++
	owned.UpdatedAt = record.AssignedAt
	return &models.AssignmentResult{Assignment: record, Lead: &owned, User: user, Score: score}
}

// withRetry reruns fn from a fresh read each time it loses a conditional write.
func withRetry[T any](ctx context.Context, s *Service, op string, fn func(attempt int) (T, error)) (T, error) {
	var zero T
	for attempt := 1; attempt <= s.maxRetries+1; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		out, err := fn(attempt)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			s.recorder.RecordAssignmentFailure(op, domain.GetErrorCode(err))
			return zero, err
		}
		s.recorder.RecordAssignmentConflict(op)
		s.logger.Debug("assignment write lost a race, retrying", "operation", op, "attempt", attempt)
	}
	s.recorder.RecordAssignmentFailure(op, domain.ErrCodeConflict)
	return zero, domain.NewConflictError("assignment is being changed concurrently, please retry")
}
