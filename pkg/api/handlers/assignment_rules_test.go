package handlers

import (
	"net/http"
	"testing"

	"github.com/jordanlanch/crmleads/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ruleRequest(name, userID string) models.RuleRequest {
	return models.RuleRequest{
		Name:     name,
		Priority: 10,
		Conditions: models.RuleConditions{
			LeadSources: []models.LeadSource{models.SourceReferral},
		},
		Strategy: models.StrategySpec{Type: models.StrategySpecificUser, UserID: userID},
	}
}

func TestAssignmentRules_GateRunsBeforeLookup(t *testing.T) {
	f := setupAPI(t)

	rec := f.as(t, "s1", http.MethodGet, "/api/v1/assignment-rules/unknown", nil)
	requireStatus(t, http.StatusForbidden, rec)
	assert.Equal(t, "forbidden", errorCode(t, rec))

	rec = f.as(t, "mgr", http.MethodGet, "/api/v1/assignment-rules/unknown", nil)
	requireStatus(t, http.StatusNotFound, rec)
	assert.Equal(t, "not_found", errorCode(t, rec))
}

func TestAssignmentRules_CRUD(t *testing.T) {
	f := setupAPI(t)

	rec := f.as(t, "mgr", http.MethodPost, "/api/v1/assignment-rules", ruleRequest("Referrals", "s1"))
	requireStatus(t, http.StatusCreated, rec)
	rule := decode[models.AssignmentRule](t, rec)
	assert.NotEmpty(t, rule.ID)
	assert.True(t, rule.IsActive)
	assert.Equal(t, "mgr", rule.CreatedBy)

	t.Run("duplicate name", func(t *testing.T) {
		rec := f.as(t, "mgr", http.MethodPost, "/api/v1/assignment-rules", ruleRequest("Referrals", "s2"))
		requireStatus(t, http.StatusConflict, rec)
		assert.Equal(t, "conflict", errorCode(t, rec))
	})

	t.Run("unknown target user", func(t *testing.T) {
		rec := f.as(t, "mgr", http.MethodPost, "/api/v1/assignment-rules", ruleRequest("Ghosts", "ghost"))
		requireStatus(t, http.StatusBadRequest, rec)
		assert.Equal(t, "invalid_rule_configuration", errorCode(t, rec))
	})

	t.Run("target outside the sales floor", func(t *testing.T) {
		for _, target := range []string{"admin", "viewer"} {
			rec := f.as(t, "mgr", http.MethodPost, "/api/v1/assignment-rules", ruleRequest("To "+target, target))
			requireStatus(t, http.StatusBadRequest, rec)
			assert.Equal(t, "invalid_rule_configuration", errorCode(t, rec))
		}
	})

	t.Run("update", func(t *testing.T) {
		priority := 99
		rec := f.as(t, "mgr", http.MethodPut, "/api/v1/assignment-rules/"+rule.ID, models.RuleUpdateRequest{Priority: &priority})
		requireStatus(t, http.StatusOK, rec)
		assert.Equal(t, 99, decode[models.AssignmentRule](t, rec).Priority)
	})

	t.Run("deactivate", func(t *testing.T) {
		rec := f.as(t, "mgr", http.MethodPatch, "/api/v1/assignment-rules/"+rule.ID+"/active", models.SetActiveRequest{IsActive: false})
		requireStatus(t, http.StatusOK, rec)
		assert.False(t, decode[models.AssignmentRule](t, rec).IsActive)
	})

	t.Run("list", func(t *testing.T) {
		rec := f.as(t, "mgr", http.MethodGet, "/api/v1/assignment-rules?search=refer&active=false", nil)
		requireStatus(t, http.StatusOK, rec)
		list := decode[models.RuleListResponse](t, rec)
		require.Len(t, list.Rules, 1)
		assert.Equal(t, rule.ID, list.Rules[0].ID)

		rec = f.as(t, "mgr", http.MethodGet, "/api/v1/assignment-rules?active=maybe", nil)
		requireStatus(t, http.StatusBadRequest, rec)
		assert.Equal(t, "invalid_filter", errorCode(t, rec))
	})

	t.Run("viewer cannot write", func(t *testing.T) {
		rec := f.as(t, "viewer", http.MethodDelete, "/api/v1/assignment-rules/"+rule.ID, nil)
		requireStatus(t, http.StatusForbidden, rec)
	})

	t.Run("delete", func(t *testing.T) {
		rec := f.as(t, "mgr", http.MethodDelete, "/api/v1/assignment-rules/"+rule.ID, nil)
		requireStatus(t, http.StatusNoContent, rec)

		rec = f.as(t, "mgr", http.MethodGet, "/api/v1/assignment-rules/"+rule.ID, nil)
		requireStatus(t, http.StatusNotFound, rec)
	})
}

func TestAssignmentRules_RequiresToken(t *testing.T) {
	f := setupAPI(t)
	rec := f.do(t, http.MethodGet, "/api/v1/assignment-rules", "", nil)
	requireStatus(t, http.StatusUnauthorized, rec)
}
