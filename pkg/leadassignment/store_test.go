package leadassignment

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jordanlanch/crmleads/pkg/domain"
	"github.com/jordanlanch/crmleads/pkg/models"
)

// memStore is an in-memory domain.AssignmentStore. WithTx holds the lock and
// restores a snapshot when fn fails, so partial writes never survive.
type memStore struct {
	mu          sync.Mutex
	leads       map[string]models.Lead
	users       map[string]models.User
	rules       map[string]models.AssignmentRule
	assignments map[string]models.LeadAssignment

	// beforeTx runs, unlocked, before each transaction; tests use it to race writers.
	beforeTx func(n int)
	txCount  int
	commits  int
}

func newMemStore() *memStore {
	return &memStore{
		leads:       map[string]models.Lead{},
		users:       map[string]models.User{},
		rules:       map[string]models.AssignmentRule{},
		assignments: map[string]models.LeadAssignment{},
	}
}

func (m *memStore) GetLead(_ context.Context, id string) (*models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return nil, domain.NewNotFoundError("lead")
	}
	return &l, nil
}

func (m *memStore) CreateLead(_ context.Context, lead *models.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads[lead.ID] = *lead
	return nil
}

func (m *memStore) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.NewNotFoundError("user")
	}
	return &u, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, domain.NewNotFoundError("user")
}

func (m *memStore) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = *user
	return nil
}

func (m *memStore) ListCandidateUsers(_ context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.users {
		if u.IsCandidate() {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) GetRule(_ context.Context, id string) (*models.AssignmentRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return nil, domain.NewNotFoundError("assignment rule")
	}
	return &r, nil
}

func (m *memStore) GetRuleByName(_ context.Context, name string) (*models.AssignmentRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.Name == name {
			return &r, nil
		}
	}
	return nil, domain.NewNotFoundError("assignment rule")
}

func (m *memStore) sortedRules() []models.AssignmentRule {
	out := slices.Collect(maps.Values(m.rules))
	slices.SortFunc(out, func(a, b models.AssignmentRule) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (m *memStore) ListActiveRules(_ context.Context) ([]models.AssignmentRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AssignmentRule
	for _, r := range m.sortedRules() {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ListRules(_ context.Context, f models.RuleFilter) ([]models.AssignmentRule, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.AssignmentRule
	for _, r := range m.sortedRules() {
		if f.Active != nil && r.IsActive != *f.Active {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(f.Search)) {
			continue
		}
		all = append(all, r)
	}
	start := min((f.Page-1)*f.Limit, len(all))
	end := min(start+f.Limit, len(all))
	return all[start:end], len(all), nil
}

func (m *memStore) RuleStats(_ context.Context) (*models.RuleStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &models.RuleStats{Total: len(m.rules)}
	for _, r := range m.rules {
		if r.IsActive {
			st.Active++
		}
	}
	st.Inactive = st.Total - st.Active
	return st, nil
}

func (m *memStore) CreateRule(_ context.Context, rule *models.AssignmentRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.ID] = *rule
	return nil
}

func (m *memStore) UpdateRule(_ context.Context, rule *models.AssignmentRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[rule.ID]; !ok {
		return domain.NewNotFoundError("assignment rule")
	}
	m.rules[rule.ID] = *rule
	return nil
}

func (m *memStore) DeleteRule(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[id]; !ok {
		return domain.NewNotFoundError("assignment rule")
	}
	delete(m.rules, id)
	return nil
}

func (m *memStore) GetAssignment(_ context.Context, id string) (*models.LeadAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return nil, domain.NewNotFoundError("assignment")
	}
	return &a, nil
}

func (m *memStore) GetActiveAssignment(_ context.Context, leadID string) (*models.LeadAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assignments {
		if a.LeadID == leadID && a.Status == models.AssignmentActive {
			return &a, nil
		}
	}
	return nil, domain.NewNotFoundError("assignment")
}

func (m *memStore) CountActiveByDay(_ context.Context, day string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{}
	for _, a := range m.assignments {
		if a.Status == models.AssignmentActive && a.AssignedDay == day {
			out[a.AssignedTo]++
		}
	}
	return out, nil
}

func (m *memStore) filtered(f models.HistoryFilter) []models.LeadAssignment {
	var out []models.LeadAssignment
	for _, a := range m.assignments {
		switch {
		case f.LeadID != "" && a.LeadID != f.LeadID,
			f.AssignedTo != "" && a.AssignedTo != f.AssignedTo,
			f.AssignedBy != "" && a.AssignedBy != f.AssignedBy,
			f.RuleID != "" && a.RuleID != f.RuleID,
			f.Status != "" && a.Status != f.Status,
			f.AssignmentType != "" && a.AssignmentType != f.AssignmentType,
			f.From != nil && a.AssignedAt.Before(*f.From),
			f.To != nil && a.AssignedAt.After(*f.To):
			continue
		}
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b models.LeadAssignment) int {
		if c := b.AssignedAt.Compare(a.AssignedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (m *memStore) ListAssignments(_ context.Context, f models.HistoryFilter) ([]models.LeadAssignment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.filtered(f)
	start := min(f.Offset(), len(all))
	end := min(start+f.Limit, len(all))
	return all[start:end], len(all), nil
}

func (m *memStore) AssignmentStats(_ context.Context, f models.HistoryFilter) (*models.AssignmentStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &models.AssignmentStats{ByStatus: map[models.AssignmentStatus]int{}, ByType: map[models.AssignmentType]int{}}
	for _, a := range m.filtered(f) {
		st.Total++
		st.ByStatus[a.Status]++
		st.ByType[a.AssignmentType]++
	}
	return st, nil
}

func (m *memStore) WithTx(ctx context.Context, fn func(tx domain.AssignmentTx) error) error {
	m.mu.Lock()
	m.txCount++
	n := m.txCount
	hook := m.beforeTx
	m.mu.Unlock()
	if hook != nil {
		hook(n)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	leads, users, assignments := maps.Clone(m.leads), maps.Clone(m.users), maps.Clone(m.assignments)
	if err := fn(memTx{m}); err != nil {
		m.leads, m.users, m.assignments = leads, users, assignments
		return err
	}
	m.commits++
	return nil
}

// memTx writes straight to the maps; the caller holds the lock.
type memTx struct{ m *memStore }

func (t memTx) InsertAssignment(_ context.Context, a *models.LeadAssignment) error {
	if a.Status == models.AssignmentActive {
		for _, other := range t.m.assignments {
			if other.LeadID == a.LeadID && other.Status == models.AssignmentActive {
				return fmt.Errorf("lead %s already has an active assignment: %w", a.LeadID, domain.ErrConcurrentUpdate)
			}
		}
	}
	t.m.assignments[a.ID] = *a
	return nil
}

func (t memTx) CloseAssignment(_ context.Context, id string, status models.AssignmentStatus, change domain.AssignmentClose) error {
	a, ok := t.m.assignments[id]
	if !ok || a.Status != models.AssignmentActive {
		return domain.ErrConcurrentUpdate
	}
	a.Status = status
	a.ClosedAt = &change.At
	a.UpdatedAt = change.At
	if status == models.AssignmentTransferred {
		a.TransferredTo = change.TransferredTo
		a.TransferredBy = change.TransferredBy
		a.TransferredAt = &change.At
	}
	if change.RejectionReason != "" {
		a.RejectionReason = change.RejectionReason
	}
	t.m.assignments[id] = a
	return nil
}

func (t memTx) ClaimUser(_ context.Context, userID string, expectedSeq int64, at time.Time) error {
	u, ok := t.m.users[userID]
	if !ok || u.AssignmentSeq != expectedSeq {
		return domain.ErrConcurrentUpdate
	}
	u.AssignmentSeq++
	u.LastAssignedAt = &at
	t.m.users[userID] = u
	return nil
}

func (t memTx) SetLeadOwner(_ context.Context, leadID, userID string, status models.LeadStatus, expectedVersion int64, at time.Time) error {
	l, ok := t.m.leads[leadID]
	if !ok || l.Version != expectedVersion {
		return domain.ErrConcurrentUpdate
	}
	l.AssignedTo = userID
	l.Status = status
	l.Version++
	l.UpdatedAt = at
	t.m.leads[leadID] = l
	return nil
}

// activeFor returns every active record of a lead.
func (m *memStore) activeFor(leadID string) []models.LeadAssignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LeadAssignment
	for _, a := range m.assignments {
		if a.LeadID == leadID && a.Status == models.AssignmentActive {
			out = append(out, a)
		}
	}
	return out
}

func (m *memStore) assignmentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.assignments)
}
