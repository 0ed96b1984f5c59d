package rbac

import (
	"net/http"
	"strings"
)

// ActionForMethod maps an HTTP method onto an action. Unmapped methods
// (HEAD, OPTIONS) return false.
func ActionForMethod(method string) (Action, bool) {
	switch method {
	case http.MethodGet:
		return ActionRead, true
	case http.MethodPost:
		return ActionCreate, true
	case http.MethodPut, http.MethodPatch:
		return ActionUpdate, true
	case http.MethodDelete:
		return ActionDelete, true
	}
	return "", false
}

var segmentResources = map[string]Resource{
	"leads":            ResourceLeads,
	"users":            ResourceUsers,
	"analytics":        ResourceAnalytics,
	"activities":       ResourceActivities,
	"settings":         ResourceSettings,
	"assignment-rules": ResourceAssignmentRules,
	"assignments":      ResourceAssignments,
	"email":            ResourceEmail,
	"ai":               ResourceAI,
}

// ResourceForPath maps a request path to a resource by its first segment
// after prefix, e.g. "/api/v1/assignments/history" -> assignments.
func ResourceForPath(prefix, path string) (Resource, bool) {
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.TrimPrefix(rest, "/")
	segment, _, _ := strings.Cut(rest, "/")
	res, ok := segmentResources[segment]
	return res, ok
}
