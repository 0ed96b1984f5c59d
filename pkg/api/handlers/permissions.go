package handlers

import (
	"net/http"

	apimw "github.com/jordanlanch/crmleads/pkg/api/middleware"
	"github.com/jordanlanch/crmleads/pkg/models"
	"github.com/jordanlanch/crmleads/pkg/rbac"
	"github.com/labstack/echo/v4"
)

// Permissions godoc
// @Summary List what the caller's role can do
// @Description Conditional grants are listed too; ownership is checked per request
// @Tags Authentication
// @Produce json
// @Success 200 {object} models.PermissionsResponse
// @Security BearerAuth
// @Router /api/v1/permissions/me [get]
func Permissions(c echo.Context) error {
	role := apimw.UserRole(c)

	out := make(map[string][]string)
	for _, res := range rbac.AccessibleResources(role) {
		actions := rbac.ResourceActions(role, res)
		names := make([]string, 0, len(actions))
		for _, a := range actions {
			names = append(names, string(a))
		}
		out[string(res)] = names
	}

	return c.JSON(http.StatusOK, models.PermissionsResponse{
		Role:      string(role),
		Resources: out,
	})
}
