package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/jordanlanch/crmleads/pkg/api/errors"
	apimw "github.com/jordanlanch/crmleads/pkg/api/middleware"
	"github.com/jordanlanch/crmleads/pkg/models"
	"github.com/labstack/echo/v4"
)

// RuleService administers assignment rules.
type RuleService interface {
	CreateRule(ctx context.Context, req models.RuleRequest, actorID string) (*models.AssignmentRule, error)
	UpdateRule(ctx context.Context, id string, req models.RuleUpdateRequest) (*models.AssignmentRule, error)
	SetRuleActive(ctx context.Context, id string, active bool) (*models.AssignmentRule, error)
	DeleteRule(ctx context.Context, id string) error
	GetRule(ctx context.Context, id string) (*models.AssignmentRule, error)
	ListRules(ctx context.Context, filter models.RuleFilter) (*models.RuleListResponse, error)
}

// AssignmentRuleHandler handles assignment rule CRUD.
// Request bodies are validated by the service.
type AssignmentRuleHandler struct {
	service RuleService
}

// NewAssignmentRuleHandler creates a new assignment rule handler.
func NewAssignmentRuleHandler(service RuleService) *AssignmentRuleHandler {
	return &AssignmentRuleHandler{service: service}
}

// ListRules godoc
// @Summary List assignment rules
// @Tags Assignment Rules
// @Produce json
// @Param search query string false "Name contains (case-insensitive)"
// @Param active query bool false "Only active or only inactive rules"
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (default 20, max 100)"
// @Success 200 {object} models.RuleListResponse
// @Security BearerAuth
// @Router /api/v1/assignment-rules [get]
func (h *AssignmentRuleHandler) ListRules(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	filter := models.RuleFilter{Search: c.QueryParam("search")}
	if v := c.QueryParam("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid_filter",
				Message: "active must be true or false",
			})
		}
		filter.Active = &active
	}
	filter.Page, _ = strconv.Atoi(c.QueryParam("page"))
	filter.Limit, _ = strconv.Atoi(c.QueryParam("limit"))

	resp, err := h.service.ListRules(ctx, filter)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetRule godoc
// @Summary Get an assignment rule
// @Tags Assignment Rules
// @Produce json
// @Param id path string true "Rule ID"
// @Success 200 {object} models.AssignmentRule
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/assignment-rules/{id} [get]
func (h *AssignmentRuleHandler) GetRule(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	rule, err := h.service.GetRule(ctx, c.Param("id"))
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, rule)
}

// CreateRule godoc
// @Summary Create an assignment rule
// @Tags Assignment Rules
// @Accept json
// @Produce json
// @Param request body models.RuleRequest true "Rule"
// @Success 201 {object} models.AssignmentRule
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse "Name already in use"
// @Security BearerAuth
// @Router /api/v1/assignment-rules [post]
func (h *AssignmentRuleHandler) CreateRule(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.RuleRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}

	rule, err := h.service.CreateRule(ctx, req, apimw.UserID(c))
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusCreated, rule)
}

// UpdateRule godoc
// @Summary Update an assignment rule
// @Description Partial update; omitted fields keep their value
// @Tags Assignment Rules
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param request body models.RuleUpdateRequest true "Changes"
// @Success 200 {object} models.AssignmentRule
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/assignment-rules/{id} [put]
func (h *AssignmentRuleHandler) UpdateRule(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.RuleUpdateRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}

	rule, err := h.service.UpdateRule(ctx, c.Param("id"), req)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, rule)
}

// SetRuleActive godoc
// @Summary Activate or deactivate an assignment rule
// @Tags Assignment Rules
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param request body models.SetActiveRequest true "State"
// @Success 200 {object} models.AssignmentRule
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/assignment-rules/{id}/active [patch]
func (h *AssignmentRuleHandler) SetRuleActive(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.SetActiveRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}

	rule, err := h.service.SetRuleActive(ctx, c.Param("id"), req.IsActive)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, rule)
}

// DeleteRule godoc
// @Summary Delete an assignment rule
// @Description Past assignments keep the rule id for audit
// @Tags Assignment Rules
// @Param id path string true "Rule ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/assignment-rules/{id} [delete]
func (h *AssignmentRuleHandler) DeleteRule(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.service.DeleteRule(ctx, c.Param("id")); err != nil {
		return errors.FromDomain(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
