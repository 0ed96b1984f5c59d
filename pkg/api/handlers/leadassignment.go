package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jordanlanch/crmleads/pkg/api/errors"
	apimw "github.com/jordanlanch/crmleads/pkg/api/middleware"
	"github.com/jordanlanch/crmleads/pkg/domain"
	"github.com/jordanlanch/crmleads/pkg/models"
	"github.com/jordanlanch/crmleads/pkg/rbac"
	"github.com/labstack/echo/v4"
)

// AssignmentService is the lead assignment engine as seen by HTTP handlers.
type AssignmentService interface {
	AutoAssign(ctx context.Context, leadID, actorID string) (*models.AssignmentResult, error)
	ManualAssign(ctx context.Context, leadID, userID, actorID, notes string) (*models.AssignmentResult, error)
	Transfer(ctx context.Context, assignmentID, newUserID, actorID, reason string) (*models.AssignmentResult, error)
	Complete(ctx context.Context, assignmentID, actorID string) (*models.LeadAssignment, error)
	Reject(ctx context.Context, assignmentID, actorID, reason string) (*models.LeadAssignment, error)
	Assignment(ctx context.Context, id string) (*models.LeadAssignment, error)
	CurrentAssignment(ctx context.Context, leadID string) (*models.LeadAssignment, error)
	UserAssignments(ctx context.Context, userID string, limit int) ([]models.LeadAssignment, error)
	History(ctx context.Context, filter models.HistoryFilter) (*models.AssignmentHistoryResponse, error)
}

// LeadAssignmentHandler handles lead assignment operations.
type LeadAssignmentHandler struct {
	service   AssignmentService
	validator *validator.Validate
}

// NewLeadAssignmentHandler creates a new lead assignment handler.
func NewLeadAssignmentHandler(service AssignmentService) *LeadAssignmentHandler {
	return &LeadAssignmentHandler{
		service:   service,
		validator: validator.New(),
	}
}

func invalidBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "invalid_request",
		Message: "Invalid request body",
	})
}

// AutoAssign godoc
// @Summary Auto-assign a lead
// @Description Route a lead through the active assignment rules, their fallbacks and the system fallback
// @Tags Lead Assignment
// @Accept json
// @Produce json
// @Param request body models.AutoAssignRequest true "Lead to assign"
// @Success 200 {object} models.AssignmentResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse "No eligible user"
// @Security BearerAuth
// @Router /api/v1/assignments/auto-assign [post]
func (h *LeadAssignmentHandler) AutoAssign(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.AutoAssignRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	result, err := h.service.AutoAssign(ctx, req.LeadID, apimw.UserID(c))
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// ManualAssign godoc
// @Summary Manually assign a lead
// @Description Give a lead to a specific active user
// @Tags Lead Assignment
// @Accept json
// @Produce json
// @Param request body models.ManualAssignRequest true "Assignment details"
// @Success 200 {object} models.AssignmentResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse "User is not active"
// @Security BearerAuth
// @Router /api/v1/assignments/manual-assign [post]
func (h *LeadAssignmentHandler) ManualAssign(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.ManualAssignRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	result, err := h.service.ManualAssign(ctx, req.LeadID, req.UserID, apimw.UserID(c), req.Notes)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Transfer godoc
// @Summary Transfer an assignment
// @Description Close an active assignment as transferred and give the lead to another user
// @Tags Lead Assignment
// @Accept json
// @Produce json
// @Param request body models.TransferRequest true "Transfer details"
// @Success 200 {object} models.AssignmentResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/assignments/transfer [post]
func (h *LeadAssignmentHandler) Transfer(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.TransferRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	result, err := h.service.Transfer(ctx, req.AssignmentID, req.NewUserID, apimw.UserID(c), req.Reason)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// ownAssignment loads an assignment and checks the caller may update it.
// On failure it writes the response and returns a nil assignment.
func (h *LeadAssignmentHandler) ownAssignment(ctx context.Context, c echo.Context) (*models.LeadAssignment, error) {
	a, err := h.service.Assignment(ctx, c.Param("id"))
	if err != nil {
		if apimw.IsConditional(c) && domain.IsNotFound(err) {
			return nil, errors.ForbiddenError(c, "assignment belongs to another user")
		}
		return nil, errors.FromDomain(c, err)
	}
	if !apimw.Allowed(c, rbac.ResourceAssignments, rbac.ActionUpdate, a.AssignedTo, nil) {
		return nil, errors.ForbiddenError(c, "assignment belongs to another user")
	}
	return a, nil
}

// Complete godoc
// @Summary Complete an assignment
// @Tags Lead Assignment
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} models.LeadAssignment
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse "Assignment is not active"
// @Security BearerAuth
// @Router /api/v1/assignments/{id}/complete [patch]
func (h *LeadAssignmentHandler) Complete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	a, respErr := h.ownAssignment(ctx, c)
	if a == nil {
		return respErr
	}

	done, err := h.service.Complete(ctx, a.ID, apimw.UserID(c))
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, done)
}

// Reject godoc
// @Summary Reject an assignment
// @Description The assignee declines the lead; it returns to the unassigned pool
// @Tags Lead Assignment
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param request body models.RejectRequest true "Reason"
// @Success 200 {object} models.LeadAssignment
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/assignments/{id}/reject [patch]
func (h *LeadAssignmentHandler) Reject(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.RejectRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	a, respErr := h.ownAssignment(ctx, c)
	if a == nil {
		return respErr
	}

	rejected, err := h.service.Reject(ctx, a.ID, apimw.UserID(c), req.Reason)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, rejected)
}

// CurrentAssignment godoc
// @Summary Get the active assignment of a lead
// @Tags Lead Assignment
// @Produce json
// @Param id path string true "Lead ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/leads/{id}/current-assignment [get]
func (h *LeadAssignmentHandler) CurrentAssignment(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	a, err := h.service.CurrentAssignment(ctx, c.Param("id"))
	if err != nil {
		// Owner-scoped callers must not learn which lead ids exist.
		if apimw.IsConditional(c) && domain.IsNotFound(err) {
			return errors.ForbiddenError(c, "lead belongs to another user")
		}
		return errors.FromDomain(c, err)
	}

	owner := ""
	if a != nil {
		owner = a.AssignedTo
	}
	if !apimw.Allowed(c, rbac.ResourceLeads, rbac.ActionRead, owner, nil) {
		return errors.ForbiddenError(c, "lead belongs to another user")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"assignment": a,
	})
}

// MyAssignments godoc
// @Summary List the caller's active assignments
// @Tags Lead Assignment
// @Produce json
// @Param limit query int false "Max records (default 20, max 100)"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/v1/assignments/mine [get]
func (h *LeadAssignmentHandler) MyAssignments(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	items, err := h.service.UserAssignments(ctx, apimw.UserID(c), limit)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	if items == nil {
		items = []models.LeadAssignment{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"assignments": items,
		"count":       len(items),
	})
}

// History godoc
// @Summary Assignment history
// @Description Filtered, paginated assignment records with aggregate stats. Sales users only see their own records.
// @Tags Lead Assignment
// @Produce json
// @Param lead_id query string false "Lead ID"
// @Param assigned_to query string false "Assignee user ID"
// @Param assigned_by query string false "Actor user ID"
// @Param rule_id query string false "Rule ID"
// @Param status query string false "active, transferred, rejected, completed"
// @Param assignment_type query string false "manual, automatic, rule_based"
// @Param date_from query string false "RFC3339 time or YYYY-MM-DD"
// @Param date_to query string false "RFC3339 time or YYYY-MM-DD (whole day)"
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (default 20, max 100)"
// @Success 200 {object} models.AssignmentHistoryResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/assignments/history [get]
func (h *LeadAssignmentHandler) History(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	filter, err := parseHistoryFilter(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_filter",
			Message: err.Error(),
		})
	}

	if apimw.IsConditional(c) {
		if filter.AssignedTo == "" {
			filter.AssignedTo = apimw.UserID(c)
		}
		if !apimw.Allowed(c, rbac.ResourceAssignments, rbac.ActionRead, filter.AssignedTo, nil) {
			return errors.ForbiddenError(c, "history of another user")
		}
	}

	page, err := h.service.History(ctx, filter)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

type filterError string

func (e filterError) Error() string { return string(e) }

func parseHistoryFilter(c echo.Context) (models.HistoryFilter, error) {
	f := models.HistoryFilter{
		LeadID:         c.QueryParam("lead_id"),
		AssignedTo:     c.QueryParam("assigned_to"),
		AssignedBy:     c.QueryParam("assigned_by"),
		RuleID:         c.QueryParam("rule_id"),
		Status:         models.AssignmentStatus(c.QueryParam("status")),
		AssignmentType: models.AssignmentType(c.QueryParam("assignment_type")),
	}

	switch f.Status {
	case "", models.AssignmentActive, models.AssignmentTransferred, models.AssignmentRejected, models.AssignmentCompleted:
	default:
		return f, filterError("unknown status " + strconv.Quote(string(f.Status)))
	}
	switch f.AssignmentType {
	case "", models.AssignmentManual, models.AssignmentAutomatic, models.AssignmentRuleBased:
	default:
		return f, filterError("unknown assignment_type " + strconv.Quote(string(f.AssignmentType)))
	}

	var err error
	if f.From, err = parseDateParam(c.QueryParam("date_from"), false); err != nil {
		return f, filterError("date_from: " + err.Error())
	}
	if f.To, err = parseDateParam(c.QueryParam("date_to"), true); err != nil {
		return f, filterError("date_to: " + err.Error())
	}

	if v := c.QueryParam("page"); v != "" {
		if f.Page, err = strconv.Atoi(v); err != nil {
			return f, filterError("page must be a number")
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil {
			return f, filterError("limit must be a number")
		}
	}
	return f, nil
}

// parseDateParam accepts RFC3339 or a bare date. A bare end date covers the whole day.
func parseDateParam(v string, endOfDay bool) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, filterError("expected RFC3339 or YYYY-MM-DD")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
