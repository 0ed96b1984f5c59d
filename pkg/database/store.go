package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jmoiron/sqlx"
	"github.com/jordanlanch/crmleads/pkg/domain"
	"github.com/jordanlanch/crmleads/pkg/models"
	"github.com/jordanlanch/crmleads/pkg/rbac"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	leadColumns = []string{
		"id", "first_name", "last_name", "email", "phone", "company", "source", "status", "priority",
		"deal_value", "currency", "region", "custom_fields", "assigned_to", "version", "created_at", "updated_at",
	}
	userColumns = []string{
		"id", "email", "first_name", "last_name", "password_hash", "role", "status", "skills", "region",
		"preferred_sources", "working_hours", "last_assigned_at", "assignment_seq", "created_at", "updated_at",
	}
	ruleColumns = []string{
		"id", "name", "description", "is_active", "priority", "conditions", "strategy", "fallback",
		"created_by", "created_at", "updated_at",
	}
	assignmentColumns = []string{
		"id", "lead_id", "assigned_to", "assigned_by", "rule_id", "assignment_type", "status",
		"transferred_to", "transferred_by", "transferred_at", "rejection_reason", "notes", "metadata",
		"assigned_at", "assigned_day", "closed_at", "updated_at",
	}
)

func columnList(cols []string) string {
	return strings.Join(cols, ", ")
}

func namedValues(cols []string) string {
	return ":" + strings.Join(cols, ", :")
}

// Store implements domain.AssignmentStore on top of sqlx. Static statements
// are plain SQL rebound per driver; filtered listings go through the ent
// dialect builder.
type Store struct {
	db      *sqlx.DB
	dialect string
}

var _ domain.AssignmentStore = (*Store)(nil)

// NewStore creates a store on an open client.
func NewStore(c *Client) *Store {
	return &Store{db: c.DB, dialect: c.Dialect()}
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

// ---- leads ----

func (s *Store) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	var lead models.Lead
	q := s.db.Rebind(`SELECT ` + columnList(leadColumns) + ` FROM leads WHERE id = ?`)
	if err := s.db.GetContext(ctx, &lead, q, id); err != nil {
		return nil, readError(err, "lead")
	}
	return &lead, nil
}

func (s *Store) CreateLead(ctx context.Context, lead *models.Lead) error {
	row := *lead
	row.CreatedAt, row.UpdatedAt = stamp(row.CreatedAt), stamp(row.UpdatedAt)
	q := `INSERT INTO leads (` + columnList(leadColumns) + `) VALUES (` + namedValues(leadColumns) + `)`
	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		return writeError(err, "lead")
	}
	return nil
}

// ---- users ----

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	q := s.db.Rebind(`SELECT ` + columnList(userColumns) + ` FROM users WHERE id = ?`)
	if err := s.db.GetContext(ctx, &u, q, id); err != nil {
		return nil, readError(err, "user")
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	q := s.db.Rebind(`SELECT ` + columnList(userColumns) + ` FROM users WHERE LOWER(email) = ?`)
	if err := s.db.GetContext(ctx, &u, q, strings.ToLower(strings.TrimSpace(email))); err != nil {
		return nil, readError(err, "user")
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	row := *user
	row.Email = strings.ToLower(strings.TrimSpace(row.Email))
	row.CreatedAt, row.UpdatedAt = stamp(row.CreatedAt), stamp(row.UpdatedAt)
	q := `INSERT INTO users (` + columnList(userColumns) + `) VALUES (` + namedValues(userColumns) + `)`
	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		return writeError(err, "user")
	}
	return nil
}

func (s *Store) ListCandidateUsers(ctx context.Context) ([]models.User, error) {
	var roles []any
	for _, r := range rbac.Roles() {
		if r.Assignable() {
			roles = append(roles, string(r))
		}
	}
	b := s.builder()
	q, args := b.Select(userColumns...).
		From(b.Table("users")).
		Where(entsql.And(
			entsql.EQ("status", string(models.UserStatusActive)),
			entsql.In("role", roles...),
		)).
		OrderBy("id").
		Query()

	var users []models.User
	if err := s.db.SelectContext(ctx, &users, q, args...); err != nil {
		return nil, fmt.Errorf("failed to list candidate users: %w", err)
	}
	return users, nil
}

// ---- rules ----

type ruleRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	IsActive    bool           `db:"is_active"`
	Priority    int            `db:"priority"`
	Conditions  string         `db:"conditions"`
	Strategy    string         `db:"strategy"`
	Fallback    sql.NullString `db:"fallback"`
	CreatedBy   string         `db:"created_by"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func newRuleRow(r *models.AssignmentRule) (ruleRow, error) {
	conditions, err := json.Marshal(r.Conditions)
	if err != nil {
		return ruleRow{}, fmt.Errorf("encode conditions: %w", err)
	}
	strategy, err := models.EncodeStrategy(r.Strategy)
	if err != nil {
		return ruleRow{}, err
	}
	row := ruleRow{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		IsActive:    r.IsActive,
		Priority:    r.Priority,
		Conditions:  string(conditions),
		Strategy:    strategy,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   stamp(r.CreatedAt),
		UpdatedAt:   stamp(r.UpdatedAt),
	}
	if r.Fallback != nil {
		fb, err := json.Marshal(r.Fallback)
		if err != nil {
			return ruleRow{}, fmt.Errorf("encode fallback: %w", err)
		}
		row.Fallback = sql.NullString{String: string(fb), Valid: true}
	}
	return row, nil
}

func (r ruleRow) toModel() (models.AssignmentRule, error) {
	rule := models.AssignmentRule{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		IsActive:    r.IsActive,
		Priority:    r.Priority,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.Conditions), &rule.Conditions); err != nil {
		return rule, fmt.Errorf("rule %s: decode conditions: %w", r.ID, err)
	}
	st, err := models.DecodeStrategy([]byte(r.Strategy))
	if err != nil {
		return rule, fmt.Errorf("rule %s: %w", r.ID, err)
	}
	rule.Strategy = st
	if r.Fallback.Valid && r.Fallback.String != "" {
		var fb models.Fallback
		if err := json.Unmarshal([]byte(r.Fallback.String), &fb); err != nil {
			return rule, fmt.Errorf("rule %s: decode fallback: %w", r.ID, err)
		}
		rule.Fallback = &fb
	}
	return rule, nil
}

func toRules(rows []ruleRow) ([]models.AssignmentRule, error) {
	out := make([]models.AssignmentRule, 0, len(rows))
	for _, row := range rows {
		r, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) getRule(ctx context.Context, where string, arg any) (*models.AssignmentRule, error) {
	var row ruleRow
	q := s.db.Rebind(`SELECT ` + columnList(ruleColumns) + ` FROM assignment_rules WHERE ` + where + ` = ?`)
	if err := s.db.GetContext(ctx, &row, q, arg); err != nil {
		return nil, readError(err, "assignment rule")
	}
	rule, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (s *Store) GetRule(ctx context.Context, id string) (*models.AssignmentRule, error) {
	return s.getRule(ctx, "id", id)
}

func (s *Store) GetRuleByName(ctx context.Context, name string) (*models.AssignmentRule, error) {
	return s.getRule(ctx, "name", name)
}

func (s *Store) ListActiveRules(ctx context.Context) ([]models.AssignmentRule, error) {
	b := s.builder()
	q, args := b.Select(ruleColumns...).
		From(b.Table("assignment_rules")).
		Where(entsql.EQ("is_active", true)).
		OrderBy(entsql.Desc("priority"), "created_at", "id").
		Query()

	var rows []ruleRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("failed to list active rules: %w", err)
	}
	return toRules(rows)
}

func rulePredicates(f models.RuleFilter) []*entsql.Predicate {
	var preds []*entsql.Predicate
	if f.Search != "" {
		preds = append(preds, entsql.ContainsFold("name", f.Search))
	}
	if f.Active != nil {
		preds = append(preds, entsql.EQ("is_active", *f.Active))
	}
	return preds
}

func (s *Store) ListRules(ctx context.Context, f models.RuleFilter) ([]models.AssignmentRule, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	b := s.builder()
	total, err := s.count(ctx, b.Select(entsql.Count("*")).From(b.Table("assignment_rules")), rulePredicates(f))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count rules: %w", err)
	}

	sel := b.Select(ruleColumns...).
		From(b.Table("assignment_rules")).
		OrderBy(entsql.Desc("priority"), "created_at", "id").
		Limit(f.Limit).
		Offset((f.Page - 1) * f.Limit)
	where(sel, rulePredicates(f))
	q, args := sel.Query()

	var rows []ruleRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list rules: %w", err)
	}
	rules, err := toRules(rows)
	return rules, total, err
}

func (s *Store) RuleStats(ctx context.Context) (*models.RuleStats, error) {
	var row struct {
		Total  int `db:"total"`
		Active int `db:"active"`
	}
	q := `SELECT COUNT(*) AS total, COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0) AS active FROM assignment_rules`
	if err := s.db.GetContext(ctx, &row, q); err != nil {
		return nil, fmt.Errorf("failed to count rules: %w", err)
	}
	return &models.RuleStats{Total: row.Total, Active: row.Active, Inactive: row.Total - row.Active}, nil
}

func (s *Store) CreateRule(ctx context.Context, rule *models.AssignmentRule) error {
	row, err := newRuleRow(rule)
	if err != nil {
		return err
	}
	q := `INSERT INTO assignment_rules (` + columnList(ruleColumns) + `) VALUES (` + namedValues(ruleColumns) + `)`
	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		return writeError(err, "assignment rule")
	}
	return nil
}

func (s *Store) UpdateRule(ctx context.Context, rule *models.AssignmentRule) error {
	row, err := newRuleRow(rule)
	if err != nil {
		return err
	}
	q := `UPDATE assignment_rules SET name = :name, description = :description, is_active = :is_active,
		priority = :priority, conditions = :conditions, strategy = :strategy, fallback = :fallback,
		updated_at = :updated_at WHERE id = :id`
	res, err := s.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return writeError(err, "assignment rule")
	}
	return expectRow(res, domain.NewNotFoundError("assignment rule"))
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM assignment_rules WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return expectRow(res, domain.NewNotFoundError("assignment rule"))
}

// ---- assignments ----

func (s *Store) GetAssignment(ctx context.Context, id string) (*models.LeadAssignment, error) {
	var a models.LeadAssignment
	q := s.db.Rebind(`SELECT ` + columnList(assignmentColumns) + ` FROM lead_assignments WHERE id = ?`)
	if err := s.db.GetContext(ctx, &a, q, id); err != nil {
		return nil, readError(err, "assignment")
	}
	return &a, nil
}

func (s *Store) GetActiveAssignment(ctx context.Context, leadID string) (*models.LeadAssignment, error) {
	var a models.LeadAssignment
	q := s.db.Rebind(`SELECT ` + columnList(assignmentColumns) + ` FROM lead_assignments WHERE lead_id = ? AND status = ?`)
	if err := s.db.GetContext(ctx, &a, q, leadID, string(models.AssignmentActive)); err != nil {
		return nil, readError(err, "assignment")
	}
	return &a, nil
}

func (s *Store) CountActiveByDay(ctx context.Context, day string) (map[string]int, error) {
	var rows []struct {
		AssignedTo string `db:"assigned_to"`
		N          int    `db:"n"`
	}
	q := s.db.Rebind(`SELECT assigned_to, COUNT(*) AS n FROM lead_assignments
		WHERE assigned_day = ? AND status = ? GROUP BY assigned_to`)
	if err := s.db.SelectContext(ctx, &rows, q, day, string(models.AssignmentActive)); err != nil {
		return nil, fmt.Errorf("failed to count assignments: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.AssignedTo] = r.N
	}
	return out, nil
}

func historyPredicates(f models.HistoryFilter) []*entsql.Predicate {
	var preds []*entsql.Predicate
	eq := func(col, v string) {
		if v != "" {
			preds = append(preds, entsql.EQ(col, v))
		}
	}
	eq("lead_id", f.LeadID)
	eq("assigned_to", f.AssignedTo)
	eq("assigned_by", f.AssignedBy)
	eq("rule_id", f.RuleID)
	eq("status", string(f.Status))
	eq("assignment_type", string(f.AssignmentType))
	if f.From != nil {
		preds = append(preds, entsql.GTE("assigned_at", f.From.UTC()))
	}
	if f.To != nil {
		preds = append(preds, entsql.LTE("assigned_at", f.To.UTC()))
	}
	return preds
}

func (s *Store) ListAssignments(ctx context.Context, f models.HistoryFilter) ([]models.LeadAssignment, int, error) {
	f.Normalize()
	b := s.builder()
	total, err := s.count(ctx, b.Select(entsql.Count("*")).From(b.Table("lead_assignments")), historyPredicates(f))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count assignments: %w", err)
	}

	sel := b.Select(assignmentColumns...).
		From(b.Table("lead_assignments")).
		OrderBy(entsql.Desc("assigned_at"), "id").
		Limit(f.Limit).
		Offset(f.Offset())
	where(sel, historyPredicates(f))
	q, args := sel.Query()

	var items []models.LeadAssignment
	if err := s.db.SelectContext(ctx, &items, q, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list assignments: %w", err)
	}
	return items, total, nil
}

func (s *Store) AssignmentStats(ctx context.Context, f models.HistoryFilter) (*models.AssignmentStats, error) {
	stats := &models.AssignmentStats{
		ByStatus: map[models.AssignmentStatus]int{},
		ByType:   map[models.AssignmentType]int{},
	}
	for _, col := range []string{"status", "assignment_type"} {
		b := s.builder()
		sel := b.Select(entsql.As(col, "k"), entsql.As(entsql.Count("*"), "n")).
			From(b.Table("lead_assignments")).
			GroupBy(col)
		where(sel, historyPredicates(f))
		q, args := sel.Query()

		var rows []struct {
			K string `db:"k"`
			N int    `db:"n"`
		}
		if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
			return nil, fmt.Errorf("failed to aggregate assignments by %s: %w", col, err)
		}
		for _, r := range rows {
			if col == "status" {
				stats.ByStatus[models.AssignmentStatus(r.K)] = r.N
				stats.Total += r.N
			} else {
				stats.ByType[models.AssignmentType(r.K)] = r.N
			}
		}
	}
	return stats, nil
}

// ---- helpers ----

func where(sel *entsql.Selector, preds []*entsql.Predicate) {
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
}

func (s *Store) count(ctx context.Context, sel *entsql.Selector, preds []*entsql.Predicate) (int, error) {
	where(sel, preds)
	q, args := sel.Query()
	var n int
	if err := s.db.GetContext(ctx, &n, q, args...); err != nil {
		return 0, err
	}
	return n, nil
}

// stamp normalizes a timestamp to UTC so that text-encoded times sort correctly.
func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func stampPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func readError(err error, resource string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewNotFoundError(resource)
	}
	return fmt.Errorf("failed to get %s: %w", resource, err)
}

func writeError(err error, resource string) error {
	if isUniqueViolation(err) {
		return domain.NewConflictError(resource + " already exists")
	}
	return fmt.Errorf("failed to save %s: %w", resource, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// expectRow returns notFound when res touched no rows.
func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
