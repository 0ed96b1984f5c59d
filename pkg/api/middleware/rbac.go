package middleware

import (
	"github.com/jordanlanch/crmleads/pkg/api/errors"
	"github.com/jordanlanch/crmleads/pkg/logger"
	"github.com/jordanlanch/crmleads/pkg/rbac"
	"github.com/labstack/echo/v4"
)

// DenialRecorder counts refused requests.
type DenialRecorder interface {
	RecordPermissionDenied(role, resource, action string)
}

// Gate checks the caller's role before the handler runs. It must be chained
// after the JWT middleware. Grants carrying conditions let the request through
// with KeyConditional set; the handler then decides with IsAllowed once the
// owner of the resource is known.
type Gate struct {
	prefix   string
	recorder DenialRecorder
	logger   logger.Logger
}

// NewGate creates a gate for routes mounted under prefix (e.g. "/api/v1").
func NewGate(prefix string, recorder DenialRecorder, log logger.Logger) *Gate {
	if log == nil {
		log = logger.Discard()
	}
	return &Gate{prefix: prefix, recorder: recorder, logger: log}
}

// ByPath derives the resource from the first path segment after the prefix
// and the action from the HTTP method. Unmapped paths and methods are denied.
func (g *Gate) ByPath() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			resource, ok := rbac.ResourceForPath(g.prefix, c.Request().URL.Path)
			if !ok {
				return g.deny(c, "", "", "unmapped resource")
			}
			action, ok := rbac.ActionForMethod(c.Request().Method)
			if !ok {
				return g.deny(c, resource, "", "unmapped method")
			}
			return g.check(c, next, resource, action)
		}
	}
}

// Require gates a route on a fixed (resource, action) pair.
func (g *Gate) Require(resource rbac.Resource, action rbac.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return g.check(c, next, resource, action)
		}
	}
}

func (g *Gate) check(c echo.Context, next echo.HandlerFunc, resource rbac.Resource, action rbac.Action) error {
	role := UserRole(c)
	granted, conditional, err := rbac.HasGrant(role, resource, action)
	if err != nil {
		return g.deny(c, resource, action, err.Error())
	}
	if !granted {
		return g.deny(c, resource, action, "no grant")
	}
	c.Set(KeyConditional, conditional)
	return next(c)
}

func (g *Gate) deny(c echo.Context, resource rbac.Resource, action rbac.Action, reason string) error {
	role := UserRole(c)
	g.logger.Warn("permission denied",
		"user_id", UserID(c),
		"role", string(role),
		"resource", string(resource),
		"action", string(action),
		"path", c.Request().URL.Path,
		"reason", reason,
	)
	if g.recorder != nil {
		g.recorder.RecordPermissionDenied(string(role), string(resource), string(action))
	}
	return errors.ForbiddenError(c, reason)
}

// IsConditional reports whether the gate admitted the request on a conditional grant.
func IsConditional(c echo.Context) bool {
	conditional, _ := c.Get(KeyConditional).(bool)
	return conditional
}

// Allowed evaluates the caller's permission on a concrete resource owned by ownerID.
func Allowed(c echo.Context, resource rbac.Resource, action rbac.Action, ownerID string, attrs map[string]string) bool {
	ok, err := rbac.IsAllowed(UserRole(c), resource, action, rbac.Context{
		UserID:         UserID(c),
		ResourceUserID: ownerID,
		Attributes:     attrs,
	})
	return err == nil && ok
}
